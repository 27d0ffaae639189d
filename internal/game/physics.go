package game

import (
	"math"
)

// Physics tuning
const (
	SteerForce       = 0.16    // Base acceleration toward the target per tick
	JitterBase       = 0.04    // Random walk amplitude at tick 0
	JitterGrowth     = 0.00002 // Added per tick so late battles stay lively
	JitterMax        = 0.5
	SpeedCapBase     = 2.2
	SpeedCapPerPoint = 0.045 // Speed stat contribution to the cap

	// Bounces are slightly super-elastic so the arena never settles
	WallRestitution      = 1.05
	CollisionRestitution = 1.15
)

// unbuffedCap is the speed cap from the speed stat alone.
func (m *Marble) unbuffedCap() float64 {
	return SpeedCapBase + m.Speed*SpeedCapPerPoint
}

// SpeedCap returns the effective cap given current status. Deep freeze
// overrides every other multiplier.
func (m *Marble) SpeedCap(freezeFactor float64) float64 {
	base := m.unbuffedCap()
	if m.FreezeTimer > 0 {
		return base * freezeFactor
	}
	if m.Rage {
		base *= RageSpeedMul
	}
	for _, b := range m.Buffs {
		base *= b.Speed
	}
	if m.SlowTimer > 0 {
		base *= SlowSpeedMul
	}
	return base
}

// steerScale scales steering by the attack stat and rage.
func (m *Marble) steerScale() float64 {
	s := 0.5 + m.Attack/60
	if s > 2 {
		s = 2
	}
	if m.Rage {
		s *= RageSpeedMul
	}
	return s
}

// moveMarble applies steering, jitter and the speed cap, integrates the
// position and bounces off the arena walls.
func (w *World) moveMarble(m *Marble) {
	t := w.byID[m.TargetID]
	if !validTarget(m, t) {
		// Target died earlier this tick
		m.TargetID = PickTarget(m, w.marbles, w.rng)
		t = w.byID[m.TargetID]
	}
	if t != nil {
		dx, dy := t.X-m.X, t.Y-m.Y
		if d := math.Hypot(dx, dy); d > 0 {
			f := SteerForce * m.steerScale()
			m.VX += dx / d * f
			m.VY += dy / d * f
		}
	}

	j := JitterBase + float64(w.tick)*JitterGrowth
	if j > JitterMax {
		j = JitterMax
	}
	m.VX += (w.rng.Float64()*2 - 1) * j
	m.VY += (w.rng.Float64()*2 - 1) * j

	limit := m.SpeedCap(w.battle.FreezeSpeedFactor)
	if v := math.Hypot(m.VX, m.VY); v > limit {
		m.VX = m.VX / v * limit
		m.VY = m.VY / v * limit
	}

	m.X += m.VX
	m.Y += m.VY
	w.bounceWalls(m)
	m.pushTrail()
}

// bounceWalls reflects velocity off the arena boundary with restitution.
func (w *World) bounceWalls(m *Marble) {
	r := m.Radius
	if m.X-r < 0 {
		m.X = r
		m.VX = math.Abs(m.VX) * WallRestitution
		w.wallSparks(m, m.X-r, m.Y, 1, 0)
	} else if m.X+r > w.width {
		m.X = w.width - r
		m.VX = -math.Abs(m.VX) * WallRestitution
		w.wallSparks(m, m.X+r, m.Y, -1, 0)
	}
	if m.Y-r < 0 {
		m.Y = r
		m.VY = math.Abs(m.VY) * WallRestitution
		w.wallSparks(m, m.X, m.Y-r, 0, 1)
	} else if m.Y+r > w.height {
		m.Y = w.height - r
		m.VY = -math.Abs(m.VY) * WallRestitution
		w.wallSparks(m, m.X, m.Y+r, 0, -1)
	}
}

func (w *World) wallSparks(m *Marble, x, y, nx, ny float64) {
	if w.fastForward {
		return
	}
	if math.Hypot(m.VX, m.VY) > 2.5 {
		w.fx.Sparks(w.rng, x, y, nx, ny, m.Color, 3)
	}
}

// resolveCollisions rebuilds the broad phase and resolves every
// overlapping pair once: impulse, positional separation, then the damage
// exchange.
func (w *World) resolveCollisions() {
	w.grid.Clear()
	for i, m := range w.marbles {
		if m.Alive {
			w.grid.Insert(uint32(i), m.X, m.Y, m.Radius)
		}
	}

	for i, a := range w.marbles {
		if !a.Alive {
			continue
		}
		// Copy: the damage exchange below may run skills that query again
		w.pairs = append(w.pairs[:0], w.grid.QueryRadius(a.X, a.Y, a.Radius)...)
		for _, id := range w.pairs {
			j := int(id)
			if j <= i || j >= len(w.marbles) {
				continue
			}
			b := w.marbles[j]
			if !a.Alive {
				break
			}
			if !b.Alive {
				continue
			}
			dx, dy := b.X-a.X, b.Y-a.Y
			rr := a.Radius + b.Radius
			d2 := dx*dx + dy*dy
			if d2 >= rr*rr {
				continue
			}
			w.collide(a, b, dx, dy, math.Sqrt(d2), rr)
		}
	}
}

// collide resolves one overlapping pair. (dx, dy) points from a to b.
func (w *World) collide(a, b *Marble, dx, dy, d, rr float64) {
	if d == 0 {
		// Perfectly stacked: push apart along x
		dx, dy, d = 1, 0, 1
	}
	nx, ny := dx/d, dy/d

	relSpeed := math.Hypot(a.VX-b.VX, a.VY-b.VY)

	invA := 1 / a.Mass
	invB := 1 / b.Mass
	invSum := invA + invB

	// Impulse along the normal, only while approaching
	if rvn := (b.VX-a.VX)*nx + (b.VY-a.VY)*ny; rvn < 0 {
		j := -(1 + CollisionRestitution) * rvn / invSum
		a.VX -= j * invA * nx
		a.VY -= j * invA * ny
		b.VX += j * invB * nx
		b.VY += j * invB * ny
	}

	// Separate by inverse mass so the heavier marble moves less
	if overlap := rr - d; overlap > 0 {
		a.X -= nx * overlap * invA / invSum
		a.Y -= ny * overlap * invA / invSum
		b.X += nx * overlap * invB / invSum
		b.Y += ny * overlap * invB / invSum
		w.clampInside(a)
		w.clampInside(b)
	}

	if a.TeamID() == b.TeamID() {
		return
	}
	w.exchange(a, b, relSpeed)
}

// clampInside keeps m within the arena after positional separation.
func (w *World) clampInside(m *Marble) {
	m.X = math.Max(m.Radius, math.Min(w.width-m.Radius, m.X))
	m.Y = math.Max(m.Radius, math.Min(w.height-m.Radius, m.Y))
}
