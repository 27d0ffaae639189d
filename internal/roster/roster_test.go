package roster

import (
	"strings"
	"testing"

	"marble-royale/internal/game"
)

// TestScaleToHP verifies the compressive transform and its clamps
func TestScaleToHP(t *testing.T) {
	tests := []struct {
		name  string
		scale float64
		want  int
	}{
		{"zero", 0, MinHP},
		{"tiny", 1000, MinHP},
		{"million", 1e6, 120},
		{"billion", 1e9, 240},
		{"trillion", 1e12, 360},
		{"huge", 1e15, MaxHP},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ScaleToHP(tt.scale); got != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, got)
			}
		})
	}
}

// TestNormalizeClampsStats verifies extreme metrics stay within the stat ranges
func TestNormalizeClampsStats(t *testing.T) {
	tests := []struct {
		name string
		m    Metrics
	}{
		{"all zero", Metrics{ID: "ZERO"}},
		{"extreme high", Metrics{ID: "HIGH", Scale: 1e20, Momentum: 50, Volatility: 9, Engagement: 5, Stability: 3}},
		{"negative", Metrics{ID: "NEG", Scale: -5, Momentum: -10, Volatility: -1, Engagement: -1, Stability: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := Normalize(tt.m)
			s := f.Stats
			if s.HP != s.MaxHP || s.MaxHP < MinHP || s.MaxHP > MaxHP {
				t.Errorf("hp %d/%d out of range", s.HP, s.MaxHP)
			}
			if s.Attack < MinAttack || s.Attack > MaxAttack {
				t.Errorf("attack %f out of range", s.Attack)
			}
			if s.Speed < MinSpeed || s.Speed > MaxSpeed {
				t.Errorf("speed %f out of range", s.Speed)
			}
			if s.CritChance < MinCrit || s.CritChance > MaxCrit {
				t.Errorf("crit %f out of range", s.CritChance)
			}
			if s.Defense < 0 || s.Defense > MaxDefense {
				t.Errorf("defense %f out of range", s.Defense)
			}
			if err := f.Validate(); err != nil {
				t.Errorf("Normalized fighter failed validation: %v", err)
			}
		})
	}
}

// TestNormalizeDefaults verifies name and color fall back when missing
func TestNormalizeDefaults(t *testing.T) {
	f := Normalize(Metrics{ID: "AAPL", Sector: "Technology"})
	if f.Name != "AAPL" {
		t.Errorf("Expected name to default to id, got %q", f.Name)
	}
	if f.Color == "" {
		t.Error("Expected a palette color")
	}
	if f.Element != game.ElementLightning {
		t.Errorf("Expected technology to map to lightning, got %q", f.Element)
	}

	g := Normalize(Metrics{ID: "AAPL", Name: "Apple", Color: "#aaaaaa", Sector: "unknown"})
	if g.Name != "Apple" || g.Color != "#aaaaaa" {
		t.Errorf("Explicit name and color must be kept, got %q %q", g.Name, g.Color)
	}
	if g.Element == game.ElementNone {
		t.Error("Unknown sectors still get an element")
	}
}

// TestLoadoutDeterministic verifies the same id always gets the same skills
func TestLoadoutDeterministic(t *testing.T) {
	ids := []string{"AAPL", "MSFT", "NVDA", "TSLA", "AMZN", "GOOG", "META", "NFLX", "AMD", "INTC"}
	ultimates := 0

	for _, id := range ids {
		a, b := Loadout(id), Loadout(id)
		if len(a) < 1 || len(a) > 2 {
			t.Fatalf("%s: expected 1-2 skills, got %d", id, len(a))
		}
		if len(a) != len(b) {
			t.Fatalf("%s: loadout not deterministic", id)
		}
		for i := range a {
			if a[i].ID != b[i].ID {
				t.Errorf("%s: skill %d differs, %s vs %s", id, i, a[i].ID, b[i].ID)
			}
		}
		if a[0].Slot == game.SlotUltimate {
			t.Errorf("%s: first skill must not be an ultimate", id)
		}
		if len(a) == 2 {
			if a[1].Slot != game.SlotUltimate {
				t.Errorf("%s: second skill must be an ultimate, got %s", id, a[1].Slot)
			}
			ultimates++
		}
		if Loadout(strings.ToLower(id))[0].ID != a[0].ID {
			t.Errorf("%s: case must not matter", id)
		}
	}

	if ultimates == 0 {
		t.Error("Expected at least one fighter with an ultimate")
	}
}
