// Package assets owns everything a battle loads before its first frame:
// fighter portraits, fonts and sound cues. A Manager is built once per
// session and handed to the renderer; nothing in the simulation looks
// assets up on its own.
package assets

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"  // Support GIF format
	_ "image/jpeg" // Support JPEG format
	_ "image/png"  // Support PNG format
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Support WebP format
	"golang.org/x/sync/errgroup"

	"marble-royale/internal/config"
	"marble-royale/internal/game"
)

// MaxPortraitBytes bounds a single portrait download.
const MaxPortraitBytes = 4 << 20

// Manager holds the decoded assets of one session.
type Manager struct {
	cfg    config.AssetConfig
	client *http.Client
	fonts  *Fonts
	sounds *SoundBank

	mu        sync.RWMutex
	portraits map[string]image.Image
	degraded  int
}

// NewManager creates a manager. Fonts are parsed immediately; sounds are
// loaded only when audio is enabled.
func NewManager(cfg config.AssetConfig, audio config.AudioConfig) *Manager {
	if cfg.PortraitSize <= 0 {
		cfg.PortraitSize = config.DefaultAssets().PortraitSize
	}
	if cfg.MaxConcurrentFetches <= 0 {
		cfg.MaxConcurrentFetches = config.DefaultAssets().MaxConcurrentFetches
	}

	m := &Manager{
		cfg:       cfg,
		client:    &http.Client{Timeout: cfg.PortraitTimeout},
		fonts:     LoadFonts(cfg.FontPath),
		portraits: make(map[string]image.Image),
	}
	if audio.Enabled {
		m.sounds = LoadSoundBank(cfg.SoundDir, audio.SampleRate)
	}
	return m
}

// Preload fetches every fighter portrait concurrently. A portrait that
// fails to load degrades to a placeholder; only cancellation of ctx is
// returned as an error.
func (m *Manager) Preload(ctx context.Context, fighters []game.Fighter) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.MaxConcurrentFetches)

	for _, f := range fighters {
		g.Go(func() error {
			img, err := m.load(gctx, f.Portrait)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				log.Printf("⚠️ Portrait for %s unavailable, using placeholder: %v", f.ID, err)
			}
			m.store(f, img)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("preload portraits: %w", err)
	}
	log.Printf("🖼️ Preloaded %d portraits (%d placeholders)", len(fighters), m.Degraded())
	return nil
}

func (m *Manager) store(f game.Fighter, img image.Image) {
	placeholder := img == nil
	if placeholder {
		img = Placeholder(f.Name, m.cfg.PortraitSize, m.fonts)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.portraits[f.ID] = img
	if placeholder {
		m.degraded++
	}
}

// load fetches and decodes one portrait reference: an http(s) URL, a
// file:// URL or a local path. Empty references return (nil, nil).
func (m *Manager) load(ctx context.Context, ref string) (image.Image, error) {
	if ref == "" {
		return nil, nil
	}
	if m.cfg.PortraitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.PortraitTimeout)
		defer cancel()
	}

	var r io.ReadCloser
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
		if err != nil {
			return nil, err
		}
		resp, err := m.client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("status %d", resp.StatusCode)
		}
		r = resp.Body
	} else {
		f, err := os.Open(strings.TrimPrefix(ref, "file://"))
		if err != nil {
			return nil, err
		}
		r = f
	}
	defer r.Close()

	img, format, err := image.Decode(io.LimitReader(r, MaxPortraitBytes))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log.Printf("🖼️ Portrait decoded (format: %s)", format)
	return MakeCircular(img, m.cfg.PortraitSize), nil
}

// Portrait returns the portrait for a fighter id. Ids that were never
// preloaded get a placeholder, so the result is never nil.
func (m *Manager) Portrait(id string) image.Image {
	m.mu.RLock()
	img, ok := m.portraits[id]
	m.mu.RUnlock()
	if ok {
		return img
	}

	img = Placeholder(id, m.cfg.PortraitSize, m.fonts)
	m.mu.Lock()
	if existing, ok := m.portraits[id]; ok {
		img = existing
	} else {
		m.portraits[id] = img
	}
	m.mu.Unlock()
	return img
}

// Degraded returns how many preloaded portraits are placeholders.
func (m *Manager) Degraded() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.degraded
}

// Fonts returns the session typeface.
func (m *Manager) Fonts() *Fonts {
	return m.fonts
}

// Sounds returns the cue bank, or nil when audio is disabled.
func (m *Manager) Sounds() *SoundBank {
	return m.sounds
}

// Close drops every cached asset. The manager must not be used afterwards.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.portraits = make(map[string]image.Image)
	m.degraded = 0
	m.client.CloseIdleConnections()
	log.Println("🧹 Assets released")
}

// MakeCircular scales img to a size x size square and masks it to a circle.
func MakeCircular(img image.Image, size int) image.Image {
	b := img.Bounds()
	side := b.Dx()
	if b.Dy() < side {
		side = b.Dy()
	}
	// Center crop to a square before scaling
	crop := image.Rect(0, 0, side, side).Add(image.Pt(b.Min.X+(b.Dx()-side)/2, b.Min.Y+(b.Dy()-side)/2))

	square := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(square, square.Bounds(), img, crop, draw.Src, nil)

	circle := image.NewRGBA(square.Bounds())
	c := size / 2
	r2 := c * c
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			dx, dy := x-c, y-c
			if dx*dx+dy*dy <= r2 {
				circle.SetRGBA(x, y, square.RGBAAt(x, y))
			}
		}
	}
	return circle
}
