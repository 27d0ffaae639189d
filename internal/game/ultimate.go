package game

import (
	"fmt"
	"math"
	"sort"
)

// UltimateEffect applies an ultimate for caster. Effects run only after
// the caster's cut-in has finished, or immediately when fast-forwarding.
type UltimateEffect func(w *World, caster *Marble, s Skill)

// ultimateEffects is keyed by skill id so ultimates can be added without
// touching the resolver.
// Filled in init because the effects reach back into resolveUltimate
// through kill credit.
var ultimateEffects map[string]UltimateEffect

func init() {
	ultimateEffects = map[string]UltimateEffect{
		"meteor":       meteorEffect,
		"volley":       volleyEffect,
		"overdrive":    overdriveEffect,
		"mirror_image": mirrorImageEffect,
		"blizzard":     blizzardEffect,
		"railgun":      railgunEffect,
	}
}

// addGauge charges m's ultimate gauge. The gauge never decreases; it locks
// at GaugeMax and the ultimate fires at most once per battle.
func (w *World) addGauge(m *Marble, amount float64) {
	if !m.Alive || m.IsClone || m.UltimateFired || amount <= 0 {
		return
	}
	if m.Gauge >= GaugeMax {
		return
	}
	m.Gauge = math.Min(GaugeMax, m.Gauge+amount)
	if m.Gauge >= GaugeMax {
		w.triggerUltimate(m)
	}
}

// triggerUltimate hands a cut-in request to the director. The effect is
// deferred until the cut-in ends.
func (w *World) triggerUltimate(m *Marble) {
	s, ok := m.Ultimate()
	if !ok {
		return
	}
	m.UltimateFired = true
	m.UltimatePending = true

	w.emit(EventTypeUltimate, m.ID, fmt.Sprintf("🌟 %s unleashes %s", m.Name, s.Name),
		UltimatePayload{ActorID: m.ID, SkillID: s.ID})

	if w.fastForward {
		w.resolveUltimate(m.ID)
		return
	}
	w.director.RequestCutIn(CutIn{
		SubjectID: m.ID,
		Name:      m.Name,
		Portrait:  m.Portrait,
		SkillID:   s.ID,
		Ability:   s.Name,
		Color:     s.Color,
	})
}

// resolveUltimate applies a pending ultimate. A caster that died during
// its own cut-in fizzles.
func (w *World) resolveUltimate(id string) {
	m := w.byID[id]
	if m == nil || !m.UltimatePending {
		return
	}
	m.UltimatePending = false
	s, _ := m.Ultimate()

	if !m.Alive || w.finished {
		w.emit(EventTypeUltimate, m.ID, "", UltimatePayload{ActorID: m.ID, SkillID: s.ID, Resolved: true, Fizzled: true})
		return
	}
	if effect, ok := ultimateEffects[s.ID]; ok {
		effect(w, m, s)
	}
	w.emit(EventTypeUltimate, m.ID, "", UltimatePayload{ActorID: m.ID, SkillID: s.ID, Resolved: true})
}

func meteorEffect(w *World, c *Marble, s Skill) {
	dmg := int(math.Round(c.Attack * s.Power))
	for _, o := range w.opponentsWithin(c.X, c.Y, s.Radius, c.TeamID()) {
		dealt := w.applyDamage(o, dmg, c, s.ID)
		o.FlashTimer = FlashTicks
		c.DamageDealt += dealt
		if !w.fastForward {
			w.fx.AddText(o.X, o.Y-o.Radius, itoa(dealt), s.Color, 24)
		}
	}
	if !w.fastForward {
		w.fx.AddRing(c.X, c.Y, s.Radius, s.Color, 40)
		w.fx.AddRing(c.X, c.Y, s.Radius*0.6, "#ffffff", 30)
		w.fx.Burst(w.rng, c.X, c.Y, s.Color, 60, 7)
	}
	w.requestSlowMo(c.X, c.Y)
}

func volleyEffect(w *World, c *Marble, s Skill) {
	targets := make([]*Marble, 0, len(w.marbles))
	for _, o := range w.marbles {
		if validTarget(c, o) {
			targets = append(targets, o)
		}
	}
	if len(targets) == 0 {
		return
	}
	sort.SliceStable(targets, func(i, j int) bool {
		di := (targets[i].X-c.X)*(targets[i].X-c.X) + (targets[i].Y-c.Y)*(targets[i].Y-c.Y)
		dj := (targets[j].X-c.X)*(targets[j].X-c.X) + (targets[j].Y-c.Y)*(targets[j].Y-c.Y)
		return di < dj
	})

	dmg := int(math.Round(c.Attack * s.Power))
	count := s.Count
	if count < 1 {
		count = 1
	}
	for i := 0; i < count; i++ {
		t := targets[i%len(targets)]
		// Fan the shots out so they visibly curve in
		angle := 2 * math.Pi * float64(i) / float64(count)
		w.spawnProjectile(&Projectile{
			Kind:     ProjectileHoming,
			OwnerID:  c.ID,
			TargetID: t.ID,
			X:        c.X + math.Cos(angle)*c.Radius,
			Y:        c.Y + math.Sin(angle)*c.Radius,
			VX:       math.Cos(angle) * HomingSpeed,
			VY:       math.Sin(angle) * HomingSpeed,
			Speed:    HomingSpeed,
			Damage:   dmg,
			Color:    s.Color,
			Cause:    s.ID,
		})
	}
}

func overdriveEffect(w *World, c *Marble, s Skill) {
	c.addBuff(s.ID, s.Duration, 1+s.Power, 1.35)
	c.heal(c.MaxHP / 4)
	if !w.fastForward {
		w.fx.AddRing(c.X, c.Y, c.Radius*3, s.Color, 30)
		w.fx.AddText(c.X, c.Y-c.Radius-12, "OVERDRIVE", s.Color, 24)
	}
}

func mirrorImageEffect(w *World, c *Marble, s Skill) {
	for i := 0; i < s.Count; i++ {
		if len(w.marbles) >= w.limits.MaxMarbles {
			return
		}
		angle := 2*math.Pi*float64(i)/float64(s.Count) + w.rng.Float64()
		hp := int(math.Round(float64(c.MaxHP) * s.Power))
		if hp < 1 {
			hp = 1
		}
		r := c.Radius * 0.7
		w.cloneSeq++
		clone := &Marble{
			index:      len(w.marbles),
			ID:         fmt.Sprintf("%s~clone%d", c.ID, w.cloneSeq),
			FighterID:  c.FighterID,
			Name:       c.Name,
			Color:      c.Color,
			Portrait:   c.Portrait,
			Class:      c.Class,
			Element:    c.Element,
			Strategy:   c.Strategy,
			Attack:     c.Attack * 0.5,
			baseAttack: c.Attack * 0.5,
			Speed:      c.Speed,
			CritChance: c.CritChance,
			Defense:    c.Defense * 0.5,
			X:          c.X + math.Cos(angle)*c.Radius*1.8,
			Y:          c.Y + math.Sin(angle)*c.Radius*1.8,
			VX:         math.Cos(angle) * 3,
			VY:         math.Sin(angle) * 3,
			BaseRadius: r,
			Radius:     r,
			Mass:       float64(hp),
			HP:         hp,
			MaxHP:      hp,
			Alive:      true,
			IsClone:    true,
			OwnerID:    c.ID,
			CloneLife:  s.Duration,
		}
		w.marbles = append(w.marbles, clone)
		w.byID[clone.ID] = clone
		if !w.fastForward {
			w.fx.Burst(w.rng, clone.X, clone.Y, s.Color, 12, 2.5)
		}
	}
}

func blizzardEffect(w *World, c *Marble, s Skill) {
	dmg := int(math.Round(c.Attack * s.Power))
	for _, o := range w.opponentsWithin(c.X, c.Y, s.Radius, c.TeamID()) {
		if o.FreezeTimer < s.Duration {
			o.FreezeTimer = s.Duration
		}
		c.DamageDealt += w.applyDamage(o, dmg, c, s.ID)
	}
	if !w.fastForward {
		w.fx.AddRing(c.X, c.Y, s.Radius, s.Color, 40)
		w.fx.Burst(w.rng, c.X, c.Y, "#ffffff", 40, 5)
	}
}

func railgunEffect(w *World, c *Marble, s Skill) {
	t := w.byID[c.TargetID]
	if !validTarget(c, t) {
		t = w.nearestOpponentOf(c.X, c.Y, c.TeamID())
	}
	if t == nil {
		return
	}
	dx, dy := t.X-c.X, t.Y-c.Y
	d := math.Hypot(dx, dy)
	if d == 0 {
		dx, d = 1, 1
	}
	nx, ny := dx/d, dy/d
	w.spawnProjectile(&Projectile{
		Kind:    ProjectileStraight,
		OwnerID: c.ID,
		X:       c.X + nx*c.Radius,
		Y:       c.Y + ny*c.Radius,
		VX:      nx * StraightSpeed,
		VY:      ny * StraightSpeed,
		Speed:   StraightSpeed,
		Radius:  ProjectileRadius * 1.5,
		Damage:  int(math.Round(c.Attack * s.Power)),
		Color:   s.Color,
		Cause:   s.ID,
	})
	if !w.fastForward {
		w.fx.AddSlash(c.X+nx*c.Radius*2, c.Y+ny*c.Radius*2, math.Atan2(ny, nx), c.Radius*3, s.Color)
	}
}
