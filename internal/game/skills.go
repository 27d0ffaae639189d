package game

import (
	"fmt"
	"math"
)

// runPeriodic fires periodic skills on ticks I, 2I, 3I, ...
func (w *World) runPeriodic(m *Marble) {
	for _, s := range m.Skills {
		if s.Trigger != TriggerPeriodic || s.Interval <= 0 {
			continue
		}
		if w.tick%int64(s.Interval) != 0 {
			continue
		}
		w.firePeriodic(m, s)
		if !m.Alive {
			return
		}
	}
}

func (w *World) firePeriodic(m *Marble, s Skill) {
	amount := 0
	switch s.ID {
	case "regen":
		amount = m.heal(int(math.Floor(float64(m.MaxHP) * s.Power)))
		if amount > 0 && !w.fastForward {
			w.fx.AddText(m.X, m.Y-m.Radius, "+"+itoa(amount), s.Color, 15)
		}

	case "momentum":
		if s.Count > 0 && m.creep >= s.Count {
			return
		}
		m.creep++
		m.Attack = m.baseAttack * (1 + s.Power*float64(m.creep))

	case "frost_aura":
		for _, o := range w.opponentsWithin(m.X, m.Y, s.Radius, m.TeamID()) {
			if o.SlowTimer < s.Duration {
				o.SlowTimer = s.Duration
			}
			amount++
		}
		w.fx.AddRing(m.X, m.Y, s.Radius, s.Color, 24)

	case "ember":
		var target *Marble
		var best float64
		for _, o := range w.opponentsWithin(m.X, m.Y, s.Radius, m.TeamID()) {
			dx, dy := o.X-m.X, o.Y-m.Y
			if d := dx*dx + dy*dy; target == nil || d < best {
				target, best = o, d
			}
		}
		if target == nil {
			return
		}
		amount = w.applyDamage(target, int(math.Round(m.Attack*s.Power)), m, s.ID)
		if !w.fastForward {
			w.fx.AddSlash(target.X, target.Y, math.Atan2(target.Y-m.Y, target.X-m.X), target.Radius*1.6, s.Color)
			w.fx.AddText(target.X, target.Y-target.Radius, itoa(amount), s.Color, 15)
		}

	case "tailwind":
		m.addBuff(s.ID, s.Duration, 1, 1+s.Power)

	case "hex":
		for _, o := range w.opponentsWithin(m.X, m.Y, s.Radius, m.TeamID()) {
			if o.AttackDebuffTimer < s.Duration {
				o.AttackDebuffTimer = s.Duration
			}
			amount++
		}
		w.fx.AddRing(m.X, m.Y, s.Radius, s.Color, 24)

	default:
		return
	}

	w.emit(EventTypeSkill, m.ID, "", SkillPayload{ActorID: m.ID, SkillID: s.ID, Trigger: string(TriggerPeriodic), Amount: amount})
}

// checkThresholds fires each threshold skill exactly once, the first time
// hp drops below its ratio.
func (w *World) checkThresholds(m *Marble) {
	if !m.Alive {
		return
	}
	for i, s := range m.Skills {
		if s.Trigger != TriggerThreshold || m.thresholds[i] {
			continue
		}
		if m.HPRatio() >= s.Threshold {
			continue
		}
		m.thresholds[i] = true
		w.fireThreshold(m, s)
		if !m.Alive {
			return
		}
	}
}

func (w *World) fireThreshold(m *Marble, s Skill) {
	switch s.ID {
	case "berserk":
		m.Rage = true
		if !w.fastForward {
			w.fx.AddText(m.X, m.Y-m.Radius-10, "RAGE", s.Color, 22)
			w.fx.Burst(w.rng, m.X, m.Y, s.Color, 16, 3)
		}

	case "detonate":
		dmg := int(math.Round(m.Attack * s.Power))
		for _, o := range w.opponentsWithin(m.X, m.Y, s.Radius, m.TeamID()) {
			w.applyDamage(o, dmg, m, s.ID)
			o.FlashTimer = FlashTicks
		}
		if !w.fastForward {
			w.fx.AddRing(m.X, m.Y, s.Radius, s.Color, 30)
			w.fx.Burst(w.rng, m.X, m.Y, s.Color, 40, 6)
		}
		w.requestSlowMo(m.X, m.Y)

	case "adrenaline":
		m.addBuff(s.ID, s.Duration, 1, 1+s.Power)
	}

	w.emit(EventTypeThreshold, m.ID, fmt.Sprintf("⚡ %s triggers %s", m.Name, s.Name),
		SkillPayload{ActorID: m.ID, SkillID: s.ID, Trigger: string(TriggerThreshold)})
}

// runOnKill fires the killer's onKill skills.
func (w *World) runOnKill(m, victim *Marble) {
	for _, s := range m.Skills {
		if s.Trigger != TriggerOnKill {
			continue
		}
		switch s.ID {
		case "devour":
			w.absorb(m, int(math.Round(float64(victim.MaxHP)*s.Power)))
		case "bloodlust":
			m.addBuff(s.ID, s.Duration, 1+s.Power, 1.2)
			m.heal(m.MaxHP / 10)
		default:
			continue
		}
		w.emit(EventTypeSkill, m.ID, "", SkillPayload{ActorID: m.ID, SkillID: s.ID, Trigger: string(TriggerOnKill)})
	}
}
