package game

import (
	"fmt"
	"math"
	"math/rand"
)

// Combat tuning
const (
	CritMultiplier     = 1.75
	HitSpeedRef        = 10.0 // Relative speed at which the speed term saturates
	DefenseScale       = 100.0
	SlowMoCritFraction = 0.25 // A crit dealing this share of victim maxHp triggers slow-mo
)

// onDamagedOrder is the fixed evaluation order of defensive skills.
var onDamagedOrder = []string{"iron_skin", "mirror", "evasion", "bulwark", "thorns"}

// HitResult is the outcome of one directed hit, computed before anything
// is applied so both sides of a collision see the same pre-hit state.
type HitResult struct {
	AttackerID string
	DefenderID string

	Raw      float64 // Attack x speed term x buffs, before crit
	Crit     bool
	Element  float64
	Incoming int // After crit, bonuses, element and defense
	Damage   int // Final damage to the defender

	Reflected    int
	Dodged       bool
	Blocked      bool
	Heal         int // Attacker lifesteal
	SlowTarget   int // Ticks of slow applied to the defender
	SlowAttacker int // Ticks of slow applied to the attacker
	CountsHit    bool

	// Applied lists the skill ids that modified this hit, in evaluation order
	Applied []string
}

// AppliedCount returns how many times skill id modified the hit.
func (h HitResult) AppliedCount(id string) int {
	n := 0
	for _, s := range h.Applied {
		if s == id {
			n++
		}
	}
	return n
}

func (h *HitResult) unapply(id string) {
	n := 0
	for _, s := range h.Applied {
		if s != id {
			h.Applied[n] = s
			n++
		}
	}
	h.Applied = h.Applied[:n]
}

// ComputeHit resolves the damage pipeline for att hitting def at relSpeed.
// It does not mutate either marble.
func ComputeHit(att, def *Marble, relSpeed float64, rng *rand.Rand) HitResult {
	h := HitResult{AttackerID: att.ID, DefenderID: def.ID}

	speedTerm := 0.7 + 0.6*math.Min(relSpeed/HitSpeedRef, 1)
	h.Raw = att.Attack * speedTerm * att.attackMultiplier()
	dmg := h.Raw

	critChance := att.CritChance
	for _, s := range att.Skills {
		if s.ID == "sharpshooter" {
			critChance += s.Power
		}
	}
	if critChance > 0 && rng.Float64() < critChance {
		h.Crit = true
		dmg *= CritMultiplier
		if att.HasSkill("sharpshooter") {
			h.Applied = append(h.Applied, "sharpshooter")
		}
	}

	// Attack modifiers
	bonus := 0.0
	for _, s := range att.Skills {
		if s.Trigger != TriggerOnAttack {
			continue
		}
		switch s.ID {
		case "double_tap", "arc_lightning":
			if rng.Float64() < s.Chance {
				bonus += dmg * s.Power
				h.Applied = append(h.Applied, s.ID)
			}
		case "finisher":
			if def.HPRatio() < s.Threshold {
				bonus += dmg * s.Power
				h.Applied = append(h.Applied, s.ID)
			}
		case "frostbite":
			if rng.Float64() < s.Chance {
				h.SlowTarget = s.Duration
				h.Applied = append(h.Applied, s.ID)
			}
		}
	}
	dmg += bonus

	h.Element = ElementMultiplier(att.Element, def.Element)
	dmg *= h.Element
	dmg *= DefenseScale / (DefenseScale + def.Defense)

	h.Incoming = int(math.Round(dmg))
	if h.Incoming < 1 {
		h.Incoming = 1
	}

	// Defensive skills in fixed order
	reduced := false
	for _, id := range onDamagedOrder {
		s, ok := def.skill(id)
		if !ok {
			continue
		}
		switch id {
		case "iron_skin":
			dmg *= 1 - s.Power
			reduced = true
			h.Applied = append(h.Applied, id)
		case "mirror":
			h.Reflected += int(math.Round(float64(h.Incoming) * s.Power))
			h.Applied = append(h.Applied, id)
		case "evasion":
			if def.HPRatio() < s.Threshold && rng.Float64() < s.Chance {
				h.Dodged = true
				dmg = 0
				// Dodge and reduction are exclusive
				if reduced {
					h.unapply("iron_skin")
				}
				h.Applied = append(h.Applied, id)
			}
		case "bulwark":
			if h.Dodged || s.Interval <= 0 {
				continue
			}
			h.CountsHit = true
			if (def.hitsTaken+1)%s.Interval == 0 {
				h.Blocked = true
				dmg = 0
				h.Applied = append(h.Applied, id)
			}
		case "thorns":
			h.Reflected += int(math.Round(float64(h.Incoming) * s.Power))
			h.SlowAttacker = s.Duration
			h.Applied = append(h.Applied, id)
		}
	}

	if !h.Dodged && !h.Blocked {
		h.Damage = int(math.Round(dmg))
		if h.Damage < 1 {
			h.Damage = 1
		}
	}

	if h.Damage > 0 {
		if s, ok := att.skill("vampiric"); ok {
			h.Heal = int(math.Round(float64(h.Damage) * s.Power))
			h.Applied = append(h.Applied, "vampiric")
		}
	}

	return h
}

// skill returns the marble's skill with the given id.
func (m *Marble) skill(id string) (Skill, bool) {
	for _, s := range m.Skills {
		if s.ID == id {
			return s, true
		}
	}
	return Skill{}, false
}

type pairKey struct {
	attacker, defender int
}

// pairCooldown shrinks with the number of live marbles and as the battle
// drags on, never below MinPairCooldown.
func (w *World) pairCooldown() int64 {
	base := w.battle.BasePairCooldown
	floor := w.battle.MinPairCooldown
	alive := 0
	for _, m := range w.marbles {
		if m.Alive {
			alive++
		}
	}
	crowd := 0
	if alive > 2 {
		crowd = 2 * (alive - 2)
	}
	cd := base - crowd - int(w.tick/1800)
	if cd < floor {
		cd = floor
	}
	return int64(cd)
}

// exchange runs the damage exchange of a colliding pair. Both directed
// hits are computed from the same pre-hit state and then applied.
func (w *World) exchange(a, b *Marble, relSpeed float64) {
	abKey := pairKey{a.index, b.index}
	baKey := pairKey{b.index, a.index}
	abReady := w.pairReady[abKey] <= w.tick
	baReady := w.pairReady[baKey] <= w.tick
	if !abReady && !baReady {
		return
	}

	cd := w.pairCooldown()
	var ab, ba HitResult
	if abReady {
		ab = ComputeHit(a, b, relSpeed, w.rng)
		w.pairReady[abKey] = w.tick + cd
	}
	if baReady {
		ba = ComputeHit(b, a, relSpeed, w.rng)
		w.pairReady[baKey] = w.tick + cd
	}

	w.emit(EventTypeCollision, a.ID, "", DamagePayload{
		AttackerID: a.ID,
		VictimID:   b.ID,
		Damage:     ab.Damage,
		VictimHP:   b.HP,
		Cause:      "collision",
	})

	if abReady {
		w.applyHit(a, b, ab)
	}
	if baReady {
		w.applyHit(b, a, ba)
	}
}

// applyHit commits a computed hit.
func (w *World) applyHit(att, def *Marble, h HitResult) {
	if h.CountsHit {
		def.hitsTaken++
	}

	dealt := 0
	if h.Damage > 0 {
		dealt = w.applyDamage(def, h.Damage, att, "collision")
		def.FlashTimer = FlashTicks
		att.DamageDealt += dealt
	}

	if !w.fastForward {
		w.hitEffects(att, def, h, dealt)
	}

	kind := EventTypeDamage
	msg := ""
	if h.Crit {
		kind = EventTypeCrit
		msg = fmt.Sprintf("💥 %s crits %s for %d", att.Name, def.Name, dealt)
	}
	w.emit(kind, att.ID, msg, DamagePayload{
		AttackerID: att.ID,
		VictimID:   def.ID,
		Damage:     dealt,
		VictimHP:   def.HP,
		Crit:       h.Crit,
		Skills:     h.Applied,
		Cause:      "collision",
	})
	for _, id := range h.Applied {
		actor := att
		if def.HasSkill(id) && !att.HasSkill(id) {
			actor = def
		}
		w.emit(EventTypeSkill, actor.ID, "", SkillPayload{ActorID: actor.ID, SkillID: id, Trigger: "hit"})
	}

	if h.Reflected > 0 && att.Alive {
		w.applyDamage(att, h.Reflected, def, "reflect")
		att.FlashTimer = FlashTicks
	}
	if h.SlowAttacker > att.SlowTimer && att.Alive {
		att.SlowTimer = h.SlowAttacker
	}
	if h.SlowTarget > def.SlowTimer && def.Alive {
		def.SlowTimer = h.SlowTarget
	}
	if h.Heal > 0 {
		att.heal(h.Heal)
	}

	if h.Damage > 0 {
		gain := GaugeOnHit
		if h.Crit {
			gain += GaugeOnCrit
		}
		w.addGauge(att, gain)
		w.addGauge(def, GaugeOnDamaged)
	}

	if h.Crit && float64(dealt) >= SlowMoCritFraction*float64(def.MaxHP) {
		w.requestSlowMo(def.X, def.Y)
	}
}

func (w *World) hitEffects(att, def *Marble, h HitResult, dealt int) {
	x := (att.X + def.X) / 2
	y := (att.Y + def.Y) / 2
	switch {
	case h.Dodged:
		w.fx.AddText(def.X, def.Y-def.Radius, "DODGE", "#a5d6a7", 16)
	case h.Blocked:
		w.fx.AddText(def.X, def.Y-def.Radius, "BLOCK", "#b0bec5", 16)
		w.fx.AddRing(def.X, def.Y, def.Radius*1.4, "#b0bec5", 14)
	case h.Crit:
		w.fx.AddText(def.X, def.Y-def.Radius, itoa(dealt)+"!", "#ffeb3b", 26)
		w.fx.AddSlash(x, y, math.Atan2(def.Y-att.Y, def.X-att.X)+math.Pi/2, def.Radius*2.2, "#ffffff")
		w.fx.Burst(w.rng, x, y, "#ffeb3b", 14, 4)
	default:
		w.fx.AddText(def.X, def.Y-def.Radius, itoa(dealt), "#ffffff", 16)
		w.fx.Burst(w.rng, x, y, att.Color, 5, 2.5)
	}
}

// applyDamage removes hp from victim and returns the amount dealt. A hit
// that would leave no fighter alive stops at 1 hp instead.
func (w *World) applyDamage(victim *Marble, amount int, source *Marble, cause string) int {
	if !victim.Alive || amount <= 0 {
		return 0
	}
	if amount >= victim.HP && !victim.IsClone && w.aliveFighters() == 1 {
		amount = victim.HP - 1
	}
	if amount <= 0 {
		return 0
	}

	victim.HP -= amount
	if victim.HP <= 0 {
		w.kill(victim, source, cause)
		return amount
	}
	w.checkThresholds(victim)
	return amount
}

// kill removes victim and credits the killer (a clone's owner for clones).
func (w *World) kill(victim, source *Marble, cause string) {
	victim.Alive = false
	victim.HP = 0
	victim.VX, victim.VY = 0, 0

	credit := source
	if credit != nil && credit.IsClone {
		credit = w.byID[credit.OwnerID]
	}

	absorbed := 0
	if !victim.IsClone && credit != nil && credit.Alive && credit.TeamID() != victim.TeamID() {
		absorbed = int(math.Round(float64(victim.MaxHP) * w.battle.AbsorptionRate))
		w.absorb(credit, absorbed)
		credit.Kills++
		w.runOnKill(credit, victim)
		w.addGauge(credit, GaugeOnKill)
	}

	if !w.fastForward {
		w.fx.Burst(w.rng, victim.X, victim.Y, victim.Color, 30, 5)
		w.fx.AddRing(victim.X, victim.Y, victim.Radius*2.5, victim.Color, 30)
	}

	if victim.IsClone {
		return
	}
	w.eliminated++
	victim.Eliminated = w.eliminated

	killerName, killerID, killerColor := "the arena", "", "#ffffff"
	if credit != nil {
		killerName, killerID, killerColor = credit.Name, credit.ID, credit.Color
	}
	w.director.PushKill(KillEntry{
		KillerID:    killerID,
		KillerName:  killerName,
		VictimID:    victim.ID,
		VictimName:  victim.Name,
		KillerColor: killerColor,
		VictimColor: victim.Color,
		Frame:       w.frame,
	})
	w.requestSlowMo(victim.X, victim.Y)
	w.despawnClones(victim.ID)

	kills := 0
	maxHP := 0
	if credit != nil {
		kills, maxHP = credit.Kills, credit.MaxHP
	}
	w.emit(EventTypeKill, killerID, fmt.Sprintf("💀 %s eliminated %s (%s)", killerName, victim.Name, cause), KillPayload{
		KillerID:    killerID,
		VictimID:    victim.ID,
		KillerKills: kills,
		Absorbed:    absorbed,
		KillerMaxHP: maxHP,
	})
}

// absorb grows m by gain max hp. Mass tracks max hp and radius scales by
// the same ratio, clamped to the arena's maximum radius.
func (w *World) absorb(m *Marble, gain int) {
	if gain <= 0 || m.MaxHP <= 0 {
		return
	}
	ratio := float64(m.MaxHP+gain) / float64(m.MaxHP)
	m.MaxHP += gain
	m.HP += gain
	m.Mass = float64(m.MaxHP)
	m.BaseRadius = math.Min(m.BaseRadius*ratio, w.maxRadius)
	m.Radius = math.Min(m.Radius*ratio, w.maxRadius)
}

// despawnClones removes the clones of a dead owner without kill credit.
func (w *World) despawnClones(ownerID string) {
	for _, m := range w.marbles {
		if m.IsClone && m.Alive && m.OwnerID == ownerID {
			w.expireClone(m)
		}
	}
}

func (w *World) expireClone(m *Marble) {
	m.Alive = false
	m.HP = 0
	m.VX, m.VY = 0, 0
	if !w.fastForward {
		w.fx.Burst(w.rng, m.X, m.Y, m.Color, 10, 2)
	}
}
