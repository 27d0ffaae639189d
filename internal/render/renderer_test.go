package render

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"reflect"
	"testing"

	"github.com/fogleman/gg"

	"marble-royale/internal/game"
)

type stubPortraits struct {
	calls map[string]int
}

func (s *stubPortraits) Portrait(id string) image.Image {
	if s.calls == nil {
		s.calls = make(map[string]int)
	}
	s.calls[id]++
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	return img
}

func testSnapshot(t *testing.T) *game.Snapshot {
	t.Helper()
	fighters := []game.Fighter{
		{ID: "AAA", Name: "Alpha", Color: "#ff5722", Element: game.ElementFire,
			Stats:  game.Stats{HP: 100, MaxHP: 100, Attack: 15, Speed: 40},
			Skills: []game.Skill{game.MustSkill("meteor")}},
		{ID: "BBB", Name: "Bravo", Color: "#29b6f6", Element: game.ElementWater,
			Stats: game.Stats{HP: 100, MaxHP: 100, Attack: 15, Speed: 40}},
		{ID: "CCC", Name: "Charlie", Color: "#8bc34a",
			Stats: game.Stats{HP: 100, MaxHP: 100, Attack: 15, Speed: 40}},
	}
	opts := game.DefaultOptions()
	opts.Seed = 3
	w, err := game.NewWorld(fighters, opts)
	if err != nil {
		t.Fatalf("NewWorld failed: %v", err)
	}
	for i := 0; i < 200; i++ {
		w.Frame()
	}
	var snap game.Snapshot
	w.Snapshot(&snap)

	// Pin presentation state so assertions don't depend on the battle's course
	for i := range snap.Marbles {
		snap.Marbles[i].Alive = !snap.Marbles[i].IsClone
	}
	snap.SlowMo = false
	snap.CutInActive = false
	return &snap
}

// TestLayerOrder verifies the fixed back-to-front draw order
func TestLayerOrder(t *testing.T) {
	want := []string{
		"background", "rings", "trails", "marbles", "projectiles", "slashes",
		"particles", "texts", "banners", "vignette", "cutin",
	}
	if got := Layers(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}

	r := NewRenderer(320, 180, nil, nil)
	var drawn []string
	r.trace = func(name string) { drawn = append(drawn, name) }
	r.Draw(gg.NewContext(320, 180), testSnapshot(t))

	if !reflect.DeepEqual(drawn, want) {
		t.Errorf("Draw visited %v", drawn)
	}
}

// TestRenderPNG verifies a frame encodes to a decodable PNG of the canvas size
func TestRenderPNG(t *testing.T) {
	r := NewRenderer(320, 180, &stubPortraits{}, nil)

	var buf bytes.Buffer
	if err := r.RenderPNG(&buf, testSnapshot(t)); err != nil {
		t.Fatalf("RenderPNG failed: %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 320 || b.Dy() != 180 {
		t.Errorf("Expected 320x180, got %v", b)
	}
}

// TestRenderDoesNotMutateSnapshot verifies drawing is read-only
func TestRenderDoesNotMutateSnapshot(t *testing.T) {
	snap := testSnapshot(t)
	before := snap.Marbles[0]
	feed := len(snap.KillFeed)

	NewRenderer(320, 180, &stubPortraits{}, nil).Render(snap)

	if snap.Marbles[0].X != before.X || snap.Marbles[0].HP != before.HP || len(snap.KillFeed) != feed {
		t.Error("Render must not modify the snapshot")
	}
}

// TestPortraitsForLiveFightersOnly verifies portraits are looked up for live non-clone marbles
func TestPortraitsForLiveFightersOnly(t *testing.T) {
	snap := testSnapshot(t)
	snap.Marbles[1].Alive = false
	portraits := &stubPortraits{}

	NewRenderer(320, 180, portraits, nil).Render(snap)

	if portraits.calls["AAA"] == 0 {
		t.Error("Expected a portrait lookup for a live fighter")
	}
	if portraits.calls["BBB"] != 0 {
		t.Error("Fallen fighters are drawn without portraits")
	}
}

// TestCutInOverlay verifies the cinematic darkens the frame and shows the caster
func TestCutInOverlay(t *testing.T) {
	snap := testSnapshot(t)
	r := NewRenderer(320, 180, &stubPortraits{}, nil)
	plain := r.Render(snap)

	snap.CutInActive = true
	snap.CutInProgress = 0.5
	snap.CutIn = game.CutIn{SubjectID: "AAA", Name: "Alpha", Ability: "Meteor", Color: "#ff3d00"}
	cut := r.Render(snap)

	// Top-left corner is outside the band; it should only be darker
	if luminance(cut.At(2, 2)) >= luminance(plain.At(2, 2)) && luminance(plain.At(2, 2)) > 0 {
		t.Error("Expected the cut-in to dim the arena")
	}
}

// TestSlowMoVignette verifies letterbox bars are drawn during slow-mo
func TestSlowMoVignette(t *testing.T) {
	snap := testSnapshot(t)
	snap.SlowMo = true
	img := NewRenderer(320, 180, nil, nil).Render(snap)

	r, g, b, _ := img.At(160, 2).RGBA()
	if r != 0 || g != 0 || b != 0 {
		t.Errorf("Expected a black letterbox bar, got %d %d %d", r>>8, g>>8, b>>8)
	}
}

func luminance(c color.Color) uint32 {
	r, g, b, _ := c.RGBA()
	return (r + g + b) / 3
}

// TestWithAlpha verifies premultiplied alpha and clamping
func TestWithAlpha(t *testing.T) {
	if got := withAlpha("#ff0000", 0.5); got.R != 127 || got.A != 127 {
		t.Errorf("Expected half red, got %v", got)
	}
	if got := withAlpha("#ffffff", 2); got.A != 255 {
		t.Errorf("Alpha should clamp to 1, got %v", got)
	}
	if got := withAlpha("#ffffff", -1); got.A != 0 {
		t.Errorf("Alpha should clamp to 0, got %v", got)
	}
}
