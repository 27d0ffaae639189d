package game

import (
	"math/rand"
)

// Targeting tuning
const (
	RetargetBase       = 45   // Minimum ticks between voluntary retargets
	RetargetJitter     = 30   // Random extra ticks added to RetargetBase
	AntiSnowballRatio  = 0.5  // Below this fraction of the largest rival's maxHp...
	AntiSnowballChance = 0.35 // ...target the largest rival with this probability
)

// validTarget reports whether t may be targeted by m.
func validTarget(m, t *Marble) bool {
	return t != nil && t != m && t.Alive && t.TeamID() != m.TeamID()
}

// PickTarget chooses a target for m among marbles. It returns "" when no
// valid opponent is left. The choice never names m itself, a dead marble,
// or a member of m's own team.
func PickTarget(m *Marble, marbles []*Marble, rng *rand.Rand) string {
	var nearest, weakest, farthest, largest *Marble
	var nearD, farD float64

	for _, o := range marbles {
		if !validTarget(m, o) {
			continue
		}
		dx, dy := o.X-m.X, o.Y-m.Y
		d := dx*dx + dy*dy

		if nearest == nil || d < nearD {
			nearest, nearD = o, d
		}
		if farthest == nil || d > farD {
			farthest, farD = o, d
		}
		if weakest == nil || o.HP < weakest.HP {
			weakest = o
		}
		if largest == nil || o.MaxHP > largest.MaxHP {
			largest = o
		}
	}
	if nearest == nil {
		return ""
	}

	// Anti-snowball: small marbles sometimes gang up on the leader
	if float64(m.MaxHP) < AntiSnowballRatio*float64(largest.MaxHP) && rng.Float64() < AntiSnowballChance {
		return largest.ID
	}

	switch m.Strategy {
	case TargetWeakest:
		return weakest.ID
	case TargetFarthest:
		return farthest.ID
	default:
		return nearest.ID
	}
}

// updateTargets refreshes every live marble's target. Dead or invalid
// targets are replaced immediately; valid ones only when the retarget
// timer elapses.
func (w *World) updateTargets() {
	for _, m := range w.marbles {
		if !m.Alive {
			continue
		}
		current := w.byID[m.TargetID]
		if validTarget(m, current) && w.tick < m.RetargetAt {
			continue
		}
		m.TargetID = PickTarget(m, w.marbles, w.rng)
		m.RetargetAt = w.tick + RetargetBase + int64(w.rng.Intn(RetargetJitter))
	}
}

// nearestOpponentOf returns the closest live marble not on team.
func (w *World) nearestOpponentOf(x, y float64, team string) *Marble {
	var best *Marble
	var bestD float64
	for _, m := range w.marbles {
		if !m.Alive || m.TeamID() == team {
			continue
		}
		dx, dy := m.X-x, m.Y-y
		if d := dx*dx + dy*dy; best == nil || d < bestD {
			best, bestD = m, d
		}
	}
	return best
}

// opponentsWithin returns live opponents of team whose edge lies within
// radius of (x, y). A fresh slice is returned because resolving one area
// hit can trigger another (a detonation inside a meteor).
func (w *World) opponentsWithin(x, y, radius float64, team string) []*Marble {
	var out []*Marble
	for _, m := range w.marbles {
		if !m.Alive || m.TeamID() == team {
			continue
		}
		dx, dy := m.X-x, m.Y-y
		reach := radius + m.Radius
		if dx*dx+dy*dy <= reach*reach {
			out = append(out, m)
		}
	}
	return out
}
