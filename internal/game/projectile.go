package game

import (
	"math"
)

// ProjectileKind selects the guidance model.
type ProjectileKind uint8

const (
	ProjectileHoming   ProjectileKind = iota // Steers toward its target every tick
	ProjectileStraight                       // Flies straight, hits the first marble in its path
)

// Projectile represents a munition spawned by a skill.
// Projectiles travel through space over multiple ticks and check collision each tick.
type Projectile struct {
	ID       uint64
	Kind     ProjectileKind
	OwnerID  string // Marble that fired it (kill credit)
	TargetID string // Homing only

	X, Y   float64
	VX, VY float64
	Speed  float64
	Radius float64

	Damage int
	Life   int // Remaining ticks
	Color  string
	Cause  string // Skill id for the battle log

	// Trail positions (ring buffer)
	TrailX   [4]float64
	TrailY   [4]float64
	TrailIdx int
}

// Projectile system constants
const (
	ProjectileLifetime = 240  // 4 seconds at 60 TPS
	ProjectileRadius   = 6.0  // Collision radius
	HomingTurnRate     = 0.18 // Fraction of the desired velocity blended in per tick
	HomingSpeed        = 7.0
	StraightSpeed      = 16.0
	projectileMargin   = 60.0 // Out-of-bounds slack before culling
)

// Rotation returns the angle of travel in radians.
func (p *Projectile) Rotation() float64 {
	return math.Atan2(p.VY, p.VX)
}

// advance records the trail and moves one tick.
func (p *Projectile) advance() {
	p.TrailX[p.TrailIdx] = p.X
	p.TrailY[p.TrailIdx] = p.Y
	p.TrailIdx = (p.TrailIdx + 1) % len(p.TrailX)

	p.X += p.VX
	p.Y += p.VY
	p.Life--
}

// steer bends a homing projectile toward (tx, ty).
func (p *Projectile) steer(tx, ty float64) {
	dx, dy := tx-p.X, ty-p.Y
	d := math.Hypot(dx, dy)
	if d == 0 {
		return
	}
	wantX := dx / d * p.Speed
	wantY := dy / d * p.Speed
	p.VX += (wantX - p.VX) * HomingTurnRate
	p.VY += (wantY - p.VY) * HomingTurnRate

	// Keep constant speed so homing shots never stall
	if v := math.Hypot(p.VX, p.VY); v > 0 {
		p.VX = p.VX / v * p.Speed
		p.VY = p.VY / v * p.Speed
	}
}

// outOfBounds reports whether the projectile left the arena.
func (p *Projectile) outOfBounds(width, height float64) bool {
	return p.X < -projectileMargin || p.X > width+projectileMargin ||
		p.Y < -projectileMargin || p.Y > height+projectileMargin
}

// segmentHit returns the parameter t in [0,1] at which the segment from
// (x0, y0) to (x1, y1) first comes within r of (cx, cy), or -1.
func segmentHit(x0, y0, x1, y1, cx, cy, r float64) float64 {
	dx, dy := x1-x0, y1-y0
	fx, fy := x0-cx, y0-cy

	a := dx*dx + dy*dy
	c := fx*fx + fy*fy - r*r
	if c <= 0 {
		return 0 // starts inside
	}
	if a == 0 {
		return -1
	}
	b := 2 * (fx*dx + fy*dy)
	disc := b*b - 4*a*c
	if disc < 0 {
		return -1
	}
	t := (-b - math.Sqrt(disc)) / (2 * a)
	if t < 0 || t > 1 {
		return -1
	}
	return t
}

// updateProjectiles advances every projectile by one tick, resolves hits
// and culls in place.
func (w *World) updateProjectiles() {
	// Index loop: a hit can resolve an ultimate that spawns more projectiles
	n := 0
	for i := 0; i < len(w.projectiles); i++ {
		p := w.projectiles[i]
		if w.stepProjectile(p) {
			w.projectiles[n] = p
			n++
		}
	}
	for i := n; i < len(w.projectiles); i++ {
		w.projectiles[i] = nil
	}
	w.projectiles = w.projectiles[:n]
}

// stepProjectile returns false once the projectile should be removed.
func (w *World) stepProjectile(p *Projectile) bool {
	owner := w.byID[p.OwnerID]

	switch p.Kind {
	case ProjectileHoming:
		target := w.byID[p.TargetID]
		if target == nil || !target.Alive {
			// Retarget to the nearest opponent of the owner team
			if target = w.nearestOpponentOf(p.X, p.Y, teamOf(owner, p.OwnerID)); target != nil {
				p.TargetID = target.ID
			}
		}
		if target != nil {
			p.steer(target.X, target.Y)
		}
		p.advance()
		if target != nil {
			dx, dy := target.X-p.X, target.Y-p.Y
			rr := target.Radius + p.Radius
			if dx*dx+dy*dy <= rr*rr {
				w.projectileHit(p, owner, target)
				return false
			}
		}

	case ProjectileStraight:
		x0, y0 := p.X, p.Y
		p.advance()
		team := teamOf(owner, p.OwnerID)
		var hit *Marble
		best := 2.0
		for _, m := range w.marbles {
			if !m.Alive || m.TeamID() == team {
				continue
			}
			if t := segmentHit(x0, y0, p.X, p.Y, m.X, m.Y, m.Radius+p.Radius); t >= 0 && t < best {
				best, hit = t, m
			}
		}
		if hit != nil {
			w.projectileHit(p, owner, hit)
			return false
		}
	}

	return p.Life > 0 && !p.outOfBounds(w.width, w.height)
}

func (w *World) projectileHit(p *Projectile, owner, victim *Marble) {
	dealt := w.applyDamage(victim, p.Damage, owner, p.Cause)
	victim.FlashTimer = FlashTicks
	w.fx.Burst(w.rng, p.X, p.Y, p.Color, 8, 3)
	w.fx.AddText(victim.X, victim.Y-victim.Radius, itoa(dealt), p.Color, 18)
	if owner != nil {
		owner.DamageDealt += dealt
	}
	w.emit(EventTypeDamage, p.OwnerID, "", DamagePayload{
		AttackerID: p.OwnerID,
		VictimID:   victim.ID,
		Damage:     dealt,
		VictimHP:   victim.HP,
		Cause:      p.Cause,
	})
}

// spawnProjectile queues a projectile unless the cap is reached.
func (w *World) spawnProjectile(p *Projectile) bool {
	if len(w.projectiles) >= w.limits.MaxProjectiles {
		return false
	}
	w.projectileSeq++
	p.ID = w.projectileSeq
	if p.Radius == 0 {
		p.Radius = ProjectileRadius
	}
	if p.Life == 0 {
		p.Life = ProjectileLifetime
	}
	for i := range p.TrailX {
		p.TrailX[i], p.TrailY[i] = p.X, p.Y
	}
	w.projectiles = append(w.projectiles, p)
	return true
}

// teamOf resolves the team of a projectile owner that may have been removed.
func teamOf(owner *Marble, ownerID string) string {
	if owner != nil {
		return owner.TeamID()
	}
	return ownerID
}
