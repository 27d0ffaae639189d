package game

import (
	"math"
	"math/rand"

	"marble-royale/internal/config"
)

// Particle is a short-lived dot thrown off by hits, walls and deaths.
type Particle struct {
	X, Y    float64
	VX, VY  float64
	Life    int
	MaxLife int
	Size    float64
	Color   string
	Gravity float64
}

// Ring is an expanding shockwave circle.
type Ring struct {
	X, Y      float64
	Radius    float64
	MaxRadius float64
	Width     float64
	Life      int
	MaxLife   int
	Color     string
}

// FloatingText is a damage number or callout that drifts upward.
type FloatingText struct {
	X, Y    float64
	VY      float64
	Text    string
	Color   string
	Size    float64
	Life    int
	MaxLife int
}

// SlashLine is a brief streak drawn across a heavy hit.
type SlashLine struct {
	X1, Y1  float64
	X2, Y2  float64
	Width   float64
	Life    int
	MaxLife int
	Color   string
}

func alpha(life, maxLife int) float64 {
	if maxLife <= 0 {
		return 0
	}
	return float64(life) / float64(maxLife)
}

// Alpha returns the remaining opacity.
func (p *Particle) Alpha() float64 { return alpha(p.Life, p.MaxLife) }
func (r *Ring) Alpha() float64 { return alpha(r.Life, r.MaxLife) }
func (t *FloatingText) Alpha() float64 { return alpha(t.Life, t.MaxLife) }
func (s *SlashLine) Alpha() float64 { return alpha(s.Life, s.MaxLife) }

// Effects owns the ephemeral visual entities. Gameplay only spawns into it;
// nothing in the simulation reads these back.
type Effects struct {
	Particles []Particle
	Rings     []Ring
	Texts     []FloatingText
	Slashes   []SlashLine

	limits config.ResourceLimits
}

// NewEffects creates effect queues with capacity reserved up to the limits.
func NewEffects(limits config.ResourceLimits) *Effects {
	return &Effects{
		Particles: make([]Particle, 0, limits.MaxParticles),
		Rings:     make([]Ring, 0, limits.MaxRings),
		Texts:     make([]FloatingText, 0, limits.MaxTexts),
		Slashes:   make([]SlashLine, 0, limits.MaxSlashes),
		limits:    limits,
	}
}

// Update advances every effect by one tick and culls expired ones in place.
func (e *Effects) Update() {
	// Zero-allocation in-place filter
	n := 0
	for i := range e.Particles {
		p := &e.Particles[i]
		p.X += p.VX
		p.Y += p.VY
		p.VY += p.Gravity
		p.VX *= 0.96
		p.VY *= 0.96
		p.Life--
		if p.Life > 0 {
			e.Particles[n] = *p
			n++
		}
	}
	e.Particles = e.Particles[:n]

	n = 0
	for i := range e.Rings {
		r := &e.Rings[i]
		r.Life--
		progress := 1.0 - alpha(r.Life, r.MaxLife)
		// Ease out so the ring pops then settles
		r.Radius = r.MaxRadius * (1.0 - (1.0-progress)*(1.0-progress))
		if r.Life > 0 {
			e.Rings[n] = *r
			n++
		}
	}
	e.Rings = e.Rings[:n]

	n = 0
	for i := range e.Texts {
		t := &e.Texts[i]
		t.Y += t.VY
		t.VY *= 0.94
		t.Life--
		if t.Life > 0 {
			e.Texts[n] = *t
			n++
		}
	}
	e.Texts = e.Texts[:n]

	n = 0
	for i := range e.Slashes {
		s := &e.Slashes[i]
		s.Life--
		if s.Life > 0 {
			e.Slashes[n] = *s
			n++
		}
	}
	e.Slashes = e.Slashes[:n]
}

// Clear drops every effect, keeping capacity.
func (e *Effects) Clear() {
	e.Particles = e.Particles[:0]
	e.Rings = e.Rings[:0]
	e.Texts = e.Texts[:0]
	e.Slashes = e.Slashes[:0]
}

// Burst throws n particles outward from (x, y).
func (e *Effects) Burst(rng *rand.Rand, x, y float64, color string, n int, speed float64) {
	for i := 0; i < n && len(e.Particles) < e.limits.MaxParticles; i++ {
		angle := rng.Float64() * 2 * math.Pi
		v := speed * (0.4 + rng.Float64()*0.8)
		life := 18 + rng.Intn(18)
		e.Particles = append(e.Particles, Particle{
			X: x, Y: y,
			VX:      math.Cos(angle) * v,
			VY:      math.Sin(angle) * v,
			Life:    life,
			MaxLife: life,
			Size:    1.5 + rng.Float64()*2.5,
			Color:   color,
			Gravity: 0.05,
		})
	}
}

// Sparks throws a small cone of particles along the normal (nx, ny).
func (e *Effects) Sparks(rng *rand.Rand, x, y, nx, ny float64, color string, n int) {
	base := math.Atan2(ny, nx)
	for i := 0; i < n && len(e.Particles) < e.limits.MaxParticles; i++ {
		angle := base + (rng.Float64()-0.5)*1.2
		v := 2 + rng.Float64()*3
		e.Particles = append(e.Particles, Particle{
			X: x, Y: y,
			VX:      math.Cos(angle) * v,
			VY:      math.Sin(angle) * v,
			Life:    10,
			MaxLife: 10,
			Size:    1.5,
			Color:   color,
		})
	}
}

// AddRing spawns an expanding ring unless the queue is full.
func (e *Effects) AddRing(x, y, maxRadius float64, color string, life int) {
	if len(e.Rings) >= e.limits.MaxRings {
		return
	}
	e.Rings = append(e.Rings, Ring{
		X: x, Y: y,
		MaxRadius: maxRadius,
		Width:     4,
		Life:      life,
		MaxLife:   life,
		Color:     color,
	})
}

// AddText spawns a floating callout. When full the oldest text is dropped
// so fresh damage numbers are always visible.
func (e *Effects) AddText(x, y float64, text, color string, size float64) {
	if e.limits.MaxTexts <= 0 {
		return
	}
	if len(e.Texts) >= e.limits.MaxTexts {
		copy(e.Texts, e.Texts[1:])
		e.Texts = e.Texts[:len(e.Texts)-1]
	}
	e.Texts = append(e.Texts, FloatingText{
		X: x, Y: y,
		VY:      -1.6,
		Text:    text,
		Color:   color,
		Size:    size,
		Life:    45,
		MaxLife: 45,
	})
}

// AddSlash spawns a streak through (x, y) at the given angle.
func (e *Effects) AddSlash(x, y, angle, length float64, color string) {
	if len(e.Slashes) >= e.limits.MaxSlashes {
		return
	}
	dx := math.Cos(angle) * length / 2
	dy := math.Sin(angle) * length / 2
	e.Slashes = append(e.Slashes, SlashLine{
		X1: x - dx, Y1: y - dy,
		X2: x + dx, Y2: y + dy,
		Width:   3,
		Life:    12,
		MaxLife: 12,
		Color:   color,
	})
}
