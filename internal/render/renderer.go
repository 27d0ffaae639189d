// Package render draws battle snapshots with gg. It only reads snapshots;
// nothing here feeds back into the simulation.
package render

import (
	"bytes"
	"image"
	"image/png"
	"io"
	"sync"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"

	"marble-royale/internal/assets"
	"marble-royale/internal/game"
)

// PortraitSource resolves a fighter id to a portrait. assets.Manager
// implements it.
type PortraitSource interface {
	Portrait(id string) image.Image
}

// layer is one pass of the fixed draw order.
type layer struct {
	name  string
	world bool // Drawn under the camera transform
	draw  func(r *Renderer, dc *gg.Context, snap *game.Snapshot)
}

// layers is the fixed draw order, back to front.
var layers = []layer{
	{"background", false, (*Renderer).drawBackground},
	{"rings", true, (*Renderer).drawRings},
	{"trails", true, (*Renderer).drawTrails},
	{"marbles", true, (*Renderer).drawMarbles},
	{"projectiles", true, (*Renderer).drawProjectiles},
	{"slashes", true, (*Renderer).drawSlashes},
	{"particles", true, (*Renderer).drawParticles},
	{"texts", true, (*Renderer).drawTexts},
	{"banners", false, (*Renderer).drawBanners},
	{"vignette", false, (*Renderer).drawVignette},
	{"cutin", false, (*Renderer).drawCutIn},
}

// Layers returns the layer names in draw order.
func Layers() []string {
	names := make([]string, len(layers))
	for i, l := range layers {
		names[i] = l.name
	}
	return names
}

// Renderer draws snapshots. It is safe for concurrent use; draws are
// serialized because font faces are stateful.
type Renderer struct {
	Width, Height int
	Portraits     PortraitSource

	mu     sync.Mutex
	small  font.Face
	medium font.Face
	large  font.Face

	// trace records layer names as they are drawn, for tests
	trace func(name string)
}

// NewRenderer creates a renderer for a width x height canvas. portraits
// and fonts may be nil.
func NewRenderer(width, height int, portraits PortraitSource, fonts *assets.Fonts) *Renderer {
	if fonts == nil {
		fonts = assets.LoadFonts("")
	}
	return &Renderer{
		Width:     width,
		Height:    height,
		Portraits: portraits,
		small:     fonts.NewFace(14),
		medium:    fonts.NewFace(22),
		large:     fonts.NewFace(48),
	}
}

// Draw renders snap onto dc in the fixed layer order.
func (r *Renderer) Draw(dc *gg.Context, snap *game.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	inWorld := false
	for _, l := range layers {
		if l.world && !inWorld {
			dc.Push()
			r.applyCamera(dc, snap)
			inWorld = true
		} else if !l.world && inWorld {
			dc.Pop()
			inWorld = false
		}
		if r.trace != nil {
			r.trace(l.name)
		}
		l.draw(r, dc, snap)
	}
	if inWorld {
		dc.Pop()
	}
}

// applyCamera centers the camera focus and applies its zoom.
func (r *Renderer) applyCamera(dc *gg.Context, snap *game.Snapshot) {
	cam := snap.Camera
	zoom := cam.Zoom
	if zoom <= 0 {
		zoom = 1
	}
	w, h := float64(r.Width), float64(r.Height)
	cx, cy := cam.X, cam.Y
	if cx == 0 && cy == 0 {
		cx, cy = snap.Width/2, snap.Height/2
	}
	// Scale the arena to the canvas, then zoom around the focus point
	sx, sy := 1.0, 1.0
	if snap.Width > 0 && snap.Height > 0 {
		sx, sy = w/snap.Width, h/snap.Height
	}
	dc.Translate(w/2, h/2)
	dc.Scale(zoom*sx, zoom*sy)
	dc.Translate(-cx, -cy)
}

// Render draws snap on a fresh canvas.
func (r *Renderer) Render(snap *game.Snapshot) image.Image {
	dc := gg.NewContext(r.Width, r.Height)
	r.Draw(dc, snap)
	return dc.Image()
}

// RenderPNG encodes one frame as PNG.
func (r *Renderer) RenderPNG(w io.Writer, snap *game.Snapshot) error {
	return png.Encode(w, r.Render(snap))
}

// PNGBytes renders a frame to PNG bytes.
func (r *Renderer) PNGBytes(snap *game.Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.RenderPNG(&buf, snap); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
