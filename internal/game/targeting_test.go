package game

import (
	"fmt"
	"math/rand"
	"testing"
)

func targetField() []*Marble {
	self := testMarble("SELF", 100, 10)
	near := testMarble("NEAR", 300, 10)
	near.X, near.Y = 50, 0
	weak := testMarble("WEAK", 100, 10)
	weak.X, weak.Y = 200, 0
	weak.HP = 5
	far := testMarble("FAR", 150, 10)
	far.X, far.Y = 900, 0
	dead := testMarble("DEAD", 100, 10)
	dead.X, dead.Y = 10, 0
	dead.Alive = false
	return []*Marble{self, near, weak, far, dead}
}

// TestPickTargetStrategies verifies each strategy picks its preferred opponent
func TestPickTargetStrategies(t *testing.T) {
	tests := []struct {
		strategy TargetStrategy
		want     string
	}{
		{TargetNearest, "NEAR"},
		{TargetWeakest, "WEAK"},
		{TargetFarthest, "FAR"},
	}

	for _, tt := range tests {
		t.Run(tt.strategy.String(), func(t *testing.T) {
			field := targetField()
			field[0].MaxHP = 200 // above the snowball ratio of the largest
			field[0].Strategy = tt.strategy

			got := PickTarget(field[0], field, rand.New(rand.NewSource(1)))
			if got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

// TestPickTargetAntiSnowball verifies small marbles sometimes gang up on the largest
func TestPickTargetAntiSnowball(t *testing.T) {
	field := targetField()
	self := field[0]
	self.Strategy = TargetFarthest
	rng := rand.New(rand.NewSource(42))

	counts := map[string]int{}
	const trials = 2000
	for i := 0; i < trials; i++ {
		counts[PickTarget(self, field, rng)]++
	}

	if counts["NEAR"] == 0 || counts["FAR"] == 0 {
		t.Fatalf("Expected both the largest and the strategy pick, got %v", counts)
	}
	ratio := float64(counts["NEAR"]) / trials
	if ratio < AntiSnowballChance-0.05 || ratio > AntiSnowballChance+0.05 {
		t.Errorf("Expected about %.2f on the largest, got %.2f", AntiSnowballChance, ratio)
	}
}

// TestPickTargetNeverInvalid verifies no pick is ever self, dead or a teammate
func TestPickTargetNeverInvalid(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for round := 0; round < 200; round++ {
		var marbles []*Marble
		for i := 0; i < 8; i++ {
			m := testMarble(fmt.Sprintf("M%d", i), 50+rng.Intn(300), 10)
			m.X, m.Y = rng.Float64()*1000, rng.Float64()*700
			m.Alive = rng.Float64() > 0.3
			m.Strategy = TargetStrategy(rng.Intn(3))
			marbles = append(marbles, m)
		}
		clone := testMarble("M0~clone1", 30, 5)
		clone.IsClone, clone.OwnerID = true, "M0"
		marbles = append(marbles, clone)

		byID := map[string]*Marble{}
		for _, m := range marbles {
			byID[m.ID] = m
		}
		for _, m := range marbles {
			id := PickTarget(m, marbles, rng)
			if id == "" {
				continue
			}
			target := byID[id]
			if target == m || !target.Alive || target.TeamID() == m.TeamID() {
				t.Fatalf("%s picked invalid target %s", m.ID, id)
			}
		}
	}
}

// TestPickTargetNoOpponents verifies an empty result when nobody is left
func TestPickTargetNoOpponents(t *testing.T) {
	self := testMarble("SELF", 100, 10)
	dead := testMarble("DEAD", 100, 10)
	dead.Alive = false

	if got := PickTarget(self, []*Marble{self, dead}, rand.New(rand.NewSource(1))); got != "" {
		t.Errorf("Expected no target, got %s", got)
	}
}

// TestUpdateTargetsReplacesDead verifies a dead target is dropped on the next tick
func TestUpdateTargetsReplacesDead(t *testing.T) {
	w := newTestWorld(t, testFighter("AAA", 100, 10), testFighter("BBB", 100, 10), testFighter("CCC", 100, 10))
	w.updateTargets()
	a := w.Marble("AAA")
	old := a.TargetID
	if old == "" {
		t.Fatal("Expected an initial target")
	}

	w.kill(w.Marble(old), nil, "test")
	w.updateTargets()

	if a.TargetID == old || a.TargetID == "" {
		t.Errorf("Expected a new target, still %q", a.TargetID)
	}
}

// TestStrategyForClass verifies class names map to strategies
func TestStrategyForClass(t *testing.T) {
	tests := []struct {
		class string
		want  TargetStrategy
	}{
		{"assassin", TargetWeakest},
		{"sniper", TargetFarthest},
		{"brawler", TargetNearest},
		{"", TargetNearest},
	}
	for _, tt := range tests {
		if got := StrategyForClass(tt.class); got != tt.want {
			t.Errorf("StrategyForClass(%q) = %s, want %s", tt.class, got, tt.want)
		}
	}
}
