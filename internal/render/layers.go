package render

import (
	"fmt"
	"image/color"
	"math"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"

	"marble-royale/internal/assets"
	"marble-royale/internal/game"
)

var (
	colorBackground = color.RGBA{12, 12, 28, 255}
	colorGrid       = color.RGBA{30, 30, 45, 255}
	colorBarBack    = color.RGBA{51, 51, 51, 255}
	colorFreeze     = color.RGBA{120, 200, 255, 110}
	colorRage       = color.RGBA{255, 40, 40, 90}
	colorGauge      = color.RGBA{255, 215, 64, 255}
	colorGaugeFull  = color.RGBA{255, 255, 255, 255}
)

func withAlpha(hex string, a float64) color.RGBA {
	c := assets.ParseHexColor(hex)
	a = math.Max(0, math.Min(1, a))
	// gg expects premultiplied color.RGBA
	return color.RGBA{
		R: uint8(float64(c.R) * a),
		G: uint8(float64(c.G) * a),
		B: uint8(float64(c.B) * a),
		A: uint8(255 * a),
	}
}

func (r *Renderer) setFace(dc *gg.Context, f font.Face) {
	if f != nil {
		dc.SetFontFace(f)
	}
}

// -----------------------------------------------------------------------------
// World layers
// -----------------------------------------------------------------------------

func (r *Renderer) drawBackground(dc *gg.Context, snap *game.Snapshot) {
	dc.SetColor(colorBackground)
	dc.DrawRectangle(0, 0, float64(r.Width), float64(r.Height))
	dc.Fill()

	dc.SetColor(colorGrid)
	dc.SetLineWidth(1)
	gridSize := 100.0
	for x := 0.0; x < float64(r.Width); x += gridSize {
		dc.DrawLine(x, 0, x, float64(r.Height))
		dc.Stroke()
	}
	for y := 0.0; y < float64(r.Height); y += gridSize {
		dc.DrawLine(0, y, float64(r.Width), y)
		dc.Stroke()
	}
}

func (r *Renderer) drawRings(dc *gg.Context, snap *game.Snapshot) {
	for i := range snap.Rings {
		ring := &snap.Rings[i]
		dc.SetColor(withAlpha(ring.Color, ring.Alpha()))
		dc.SetLineWidth(math.Max(1, ring.Width))
		dc.DrawCircle(ring.X, ring.Y, ring.Radius)
		dc.Stroke()
	}
}

func (r *Renderer) drawTrails(dc *gg.Context, snap *game.Snapshot) {
	for i := range snap.Marbles {
		m := &snap.Marbles[i]
		if !m.Alive {
			continue
		}
		pts := m.TrailPoints()
		for j, p := range pts {
			t := float64(j+1) / float64(len(pts)+1)
			dc.SetColor(withAlpha(m.Color, 0.35*t))
			dc.DrawCircle(p.X, p.Y, m.Radius*(0.4+0.5*t))
			dc.Fill()
		}
	}
}

func (r *Renderer) drawMarbles(dc *gg.Context, snap *game.Snapshot) {
	for i := range snap.Marbles {
		m := &snap.Marbles[i]
		if m.Alive {
			r.drawMarble(dc, m)
		} else {
			r.drawFallen(dc, m)
		}
	}
}

// drawMarble draws one live marble with its status overlays: rage aura,
// body or portrait, hit flash, freeze tint, element badge, bars and name.
func (r *Renderer) drawMarble(dc *gg.Context, m *game.MarbleSnapshot) {
	x, y, rad := m.X, m.Y, m.Radius
	bodyAlpha := 1.0
	if m.IsClone {
		bodyAlpha = 0.55
	}

	// Shadow
	dc.SetColor(color.RGBA{0, 0, 0, 90})
	dc.DrawCircle(x, y+rad*0.2, rad)
	dc.Fill()

	if m.Rage {
		dc.SetColor(colorRage)
		dc.DrawCircle(x, y, rad*1.35)
		dc.Fill()
	}

	dc.SetColor(withAlpha(m.Color, bodyAlpha))
	dc.DrawCircle(x, y, rad)
	dc.Fill()

	if r.Portraits != nil && !m.IsClone {
		if img := r.Portraits.Portrait(m.FighterID); img != nil {
			b := img.Bounds()
			if b.Dx() > 0 && b.Dy() > 0 {
				inner := rad * 0.86
				dc.Push()
				dc.Translate(x, y)
				dc.Scale(2*inner/float64(b.Dx()), 2*inner/float64(b.Dy()))
				dc.DrawImageAnchored(img, 0, 0, 0.5, 0.5)
				dc.Pop()
			}
		}
	}

	if m.Flash > 0 {
		dc.SetColor(color.RGBA{255, 255, 255, uint8(200 * m.Flash)})
		dc.DrawCircle(x, y, rad)
		dc.Fill()
	}
	if m.Frozen {
		dc.SetColor(colorFreeze)
		dc.DrawCircle(x, y, rad)
		dc.Fill()
	}

	// Border, thicker while buffed
	dc.SetColor(color.White)
	lw := 2.0
	if m.Buffed {
		lw = 4
	}
	dc.SetLineWidth(lw)
	dc.DrawCircle(x, y, rad)
	dc.Stroke()

	// Element badge
	if m.Element != game.ElementNone {
		bx, by := x+rad*0.72, y-rad*0.72
		dc.SetColor(assets.ParseHexColor(game.ElementColor(m.Element)))
		dc.DrawCircle(bx, by, math.Max(4, rad*0.22))
		dc.Fill()
	}

	// HP bar
	barW := math.Max(40, rad*2)
	barH := 6.0
	top := y - rad - 16
	ratio := 0.0
	if m.MaxHP > 0 {
		ratio = float64(m.HP) / float64(m.MaxHP)
	}
	dc.SetColor(colorBarBack)
	dc.DrawRectangle(x-barW/2, top, barW, barH)
	dc.Fill()
	switch {
	case ratio > 0.5:
		dc.SetColor(color.RGBA{83, 255, 69, 255})
	case ratio > 0.25:
		dc.SetColor(color.RGBA{255, 149, 0, 255})
	default:
		dc.SetColor(color.RGBA{255, 62, 62, 255})
	}
	dc.DrawRectangle(x-barW/2, top, barW*ratio, barH)
	dc.Fill()

	// Ultimate gauge under the hp bar
	if m.UltimateName != "" && !m.IsClone {
		g := m.Gauge / game.GaugeMax
		dc.SetColor(colorBarBack)
		dc.DrawRectangle(x-barW/2, top+barH+1, barW, 3)
		dc.Fill()
		if g >= 1 || m.UltimateFired {
			dc.SetColor(colorGaugeFull)
		} else {
			dc.SetColor(colorGauge)
		}
		dc.DrawRectangle(x-barW/2, top+barH+1, barW*math.Min(1, g), 3)
		dc.Fill()
	}

	r.setFace(dc, r.small)
	dc.SetColor(color.White)
	dc.DrawStringAnchored(m.Name, x, y+rad+12, 0.5, 0.5)
}

// drawFallen draws an eliminated fighter as a faded disc with an X.
func (r *Renderer) drawFallen(dc *gg.Context, m *game.MarbleSnapshot) {
	if m.IsClone {
		return
	}
	dc.SetColor(withAlpha(m.Color, 0.25))
	dc.DrawCircle(m.X, m.Y, m.Radius)
	dc.Fill()

	s := m.Radius * 0.4
	dc.SetColor(color.RGBA{255, 0, 0, 180})
	dc.SetLineWidth(3)
	dc.DrawLine(m.X-s, m.Y-s, m.X+s, m.Y+s)
	dc.Stroke()
	dc.DrawLine(m.X+s, m.Y-s, m.X-s, m.Y+s)
	dc.Stroke()
}

func (r *Renderer) drawProjectiles(dc *gg.Context, snap *game.Snapshot) {
	for i := range snap.Projectiles {
		p := &snap.Projectiles[i]
		for j := range p.TrailX {
			if p.TrailX[j] == 0 && p.TrailY[j] == 0 {
				continue
			}
			dc.SetColor(withAlpha(p.Color, 0.3))
			dc.DrawCircle(p.TrailX[j], p.TrailY[j], p.Radius*0.6)
			dc.Fill()
		}

		dc.Push()
		dc.RotateAbout(p.Rotation, p.X, p.Y)
		dc.SetColor(assets.ParseHexColor(p.Color))
		if p.Kind == game.ProjectileStraight {
			dc.DrawRectangle(p.X-p.Radius*2, p.Y-p.Radius/2, p.Radius*4, p.Radius)
		} else {
			dc.DrawEllipse(p.X, p.Y, p.Radius*1.4, p.Radius)
		}
		dc.Fill()
		dc.Pop()
	}
}

func (r *Renderer) drawSlashes(dc *gg.Context, snap *game.Snapshot) {
	for i := range snap.Slashes {
		s := &snap.Slashes[i]
		dc.SetColor(withAlpha(s.Color, s.Alpha()))
		dc.SetLineWidth(math.Max(1, s.Width*s.Alpha()))
		dc.SetLineCapRound()
		dc.DrawLine(s.X1, s.Y1, s.X2, s.Y2)
		dc.Stroke()
	}
}

func (r *Renderer) drawParticles(dc *gg.Context, snap *game.Snapshot) {
	for i := range snap.Particles {
		p := &snap.Particles[i]
		dc.SetColor(withAlpha(p.Color, p.Alpha()))
		dc.DrawCircle(p.X, p.Y, math.Max(1, p.Size))
		dc.Fill()
	}
}

func (r *Renderer) drawTexts(dc *gg.Context, snap *game.Snapshot) {
	for i := range snap.Texts {
		t := &snap.Texts[i]
		switch {
		case t.Size >= 28:
			r.setFace(dc, r.large)
		case t.Size >= 18:
			r.setFace(dc, r.medium)
		default:
			r.setFace(dc, r.small)
		}
		// Dark outline for contrast
		dc.SetColor(color.RGBA{0, 0, 0, uint8(200 * t.Alpha())})
		dc.DrawStringAnchored(t.Text, t.X+1, t.Y+1, 0.5, 0.5)
		dc.SetColor(withAlpha(t.Color, t.Alpha()))
		dc.DrawStringAnchored(t.Text, t.X, t.Y, 0.5, 0.5)
	}
}

// -----------------------------------------------------------------------------
// Screen layers
// -----------------------------------------------------------------------------

// drawBanners draws the rolling kill feed, the alive counter and the
// winner headline.
func (r *Renderer) drawBanners(dc *gg.Context, snap *game.Snapshot) {
	w := float64(r.Width)

	r.setFace(dc, r.medium)
	dc.SetColor(color.White)
	dc.DrawStringAnchored(fmt.Sprintf("%d alive  x%d", snap.AliveCount, snap.Speed), 20, 28, 0, 0.5)

	r.setFace(dc, r.small)
	y := 24.0
	for i := len(snap.KillFeed) - 1; i >= 0; i-- {
		k := snap.KillFeed[i]
		age := snap.Frame - k.Frame
		if age > game.KillBannerTicks {
			continue
		}
		a := 1.0
		if fade := game.KillBannerTicks - age; fade < 30 {
			a = float64(fade) / 30
		}

		dc.SetColor(color.RGBA{0, 0, 0, uint8(150 * a)})
		dc.DrawRoundedRectangle(w-300, y-13, 280, 26, 6)
		dc.Fill()
		dc.SetColor(withAlpha(k.KillerColor, a))
		dc.DrawStringAnchored(k.KillerName, w-290, y, 0, 0.5)
		dc.SetColor(color.RGBA{uint8(220 * a), uint8(220 * a), uint8(220 * a), uint8(255 * a)})
		dc.DrawStringAnchored("💀", w-160, y, 0.5, 0.5)
		dc.SetColor(withAlpha(k.VictimColor, a))
		dc.DrawStringAnchored(k.VictimName, w-30, y, 1, 0.5)
		y += 32
	}

	if snap.Finished && snap.WinnerName != "" {
		r.setFace(dc, r.large)
		headline := snap.WinnerName + " WINS"
		if snap.SuddenDeath {
			headline += " (sudden death)"
		}
		dc.SetColor(color.RGBA{0, 0, 0, 200})
		dc.DrawStringAnchored(headline, w/2+3, float64(r.Height)*0.18+3, 0.5, 0.5)
		dc.SetColor(colorGauge)
		dc.DrawStringAnchored(headline, w/2, float64(r.Height)*0.18, 0.5, 0.5)
	}
}

// drawVignette darkens the edges and adds letterbox bars during slow-mo.
func (r *Renderer) drawVignette(dc *gg.Context, snap *game.Snapshot) {
	if !snap.SlowMo {
		return
	}
	w, h := float64(r.Width), float64(r.Height)

	grad := gg.NewRadialGradient(w/2, h/2, math.Min(w, h)*0.3, w/2, h/2, math.Hypot(w, h)/2)
	grad.AddColorStop(0, color.RGBA{0, 0, 0, 0})
	grad.AddColorStop(1, color.RGBA{0, 0, 0, 170})
	dc.SetFillStyle(grad)
	dc.DrawRectangle(0, 0, w, h)
	dc.Fill()

	bar := h * 0.07
	dc.SetColor(color.Black)
	dc.DrawRectangle(0, 0, w, bar)
	dc.DrawRectangle(0, h-bar, w, bar)
	dc.Fill()
}

// drawCutIn draws the ultimate cinematic: dimmed arena, a colored band
// sliding in, the caster's portrait and the ability name.
func (r *Renderer) drawCutIn(dc *gg.Context, snap *game.Snapshot) {
	if !snap.CutInActive {
		return
	}
	c := snap.CutIn
	p := snap.CutInProgress
	w, h := float64(r.Width), float64(r.Height)

	// Ease in over the first quarter, fade out over the last 15%
	slide := easeOutCubic(math.Min(1, p*4))
	fade := 1.0
	if p > 0.85 {
		fade = (1 - p) / 0.15
	}

	dc.SetColor(color.RGBA{0, 0, 0, uint8(160 * fade)})
	dc.DrawRectangle(0, 0, w, h)
	dc.Fill()

	bandH := h * 0.34
	bandY := h/2 - bandH/2
	offset := (1 - slide) * w
	dc.Push()
	dc.Translate(-offset, 0)
	dc.SetColor(withAlpha(c.Color, 0.85*fade))
	dc.MoveTo(0, bandY+bandH*0.15)
	dc.LineTo(w, bandY)
	dc.LineTo(w, bandY+bandH*0.85)
	dc.LineTo(0, bandY+bandH)
	dc.ClosePath()
	dc.Fill()
	dc.Pop()

	// Spotlight portrait
	px, py := w*0.22+offset*-0.5, h/2
	pr := bandH * 0.6
	dc.SetColor(color.RGBA{255, 255, 255, uint8(230 * fade)})
	dc.DrawCircle(px, py, pr+6)
	dc.Fill()
	if r.Portraits != nil {
		if img := r.Portraits.Portrait(c.SubjectID); img != nil {
			b := img.Bounds()
			if b.Dx() > 0 && b.Dy() > 0 {
				dc.Push()
				dc.Translate(px, py)
				dc.Scale(2*pr/float64(b.Dx()), 2*pr/float64(b.Dy()))
				dc.DrawImageAnchored(img, 0, 0, 0.5, 0.5)
				dc.Pop()
			}
		}
	}

	tx := w*0.42 - offset*0.3
	r.setFace(dc, r.large)
	dc.SetColor(color.RGBA{0, 0, 0, uint8(180 * fade)})
	dc.DrawStringAnchored(c.Ability, tx+3, py-8+3, 0, 0.5)
	dc.SetColor(color.RGBA{255, 255, 255, uint8(255 * fade)})
	dc.DrawStringAnchored(c.Ability, tx, py-8, 0, 0.5)
	r.setFace(dc, r.medium)
	dc.DrawStringAnchored(c.Name, tx, py+36, 0, 0.5)
}

func easeOutCubic(t float64) float64 {
	t = 1 - t
	return 1 - t*t*t
}
