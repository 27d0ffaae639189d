package game

import "sort"

// SkillSlot is the loadout slot a skill occupies.
type SkillSlot string

const (
	SlotAttack   SkillSlot = "attack"   // Modifies outgoing hits
	SlotPassive  SkillSlot = "passive"  // Reacts to damage, thresholds or kills
	SlotPeriodic SkillSlot = "periodic" // Fires on a fixed tick interval
	SlotUltimate SkillSlot = "ultimate" // Gauge-gated, resolved after a cut-in
)

// TriggerKind decides when the resolver evaluates a skill.
type TriggerKind string

const (
	TriggerOnAttack  TriggerKind = "onAttack"
	TriggerOnDamaged TriggerKind = "onDamaged"
	TriggerPeriodic  TriggerKind = "periodic"
	TriggerThreshold TriggerKind = "threshold"
	TriggerOnKill    TriggerKind = "onKill"
	TriggerGauge     TriggerKind = "gauge"
)

// Skill is a closed-set ability descriptor. Which fields matter depends on
// the skill id; unused fields stay zero.
type Skill struct {
	ID          string      `json:"id" yaml:"id"`
	Name        string      `json:"name" yaml:"name"`
	Description string      `json:"description" yaml:"description"`
	Slot        SkillSlot   `json:"slot" yaml:"slot"`
	Trigger     TriggerKind `json:"trigger" yaml:"trigger"`
	Color       string      `json:"color" yaml:"color"`

	Chance    float64 `json:"chance,omitempty" yaml:"chance"`       // Proc probability
	Power     float64 `json:"power,omitempty" yaml:"power"`         // Multiplier or fraction
	Threshold float64 `json:"threshold,omitempty" yaml:"threshold"` // HP ratio trigger
	Interval  int     `json:"interval,omitempty" yaml:"interval"`   // Ticks between periodic fires
	Duration  int     `json:"duration,omitempty" yaml:"duration"`   // Ticks a status lasts
	Radius    float64 `json:"radius,omitempty" yaml:"radius"`       // Area of effect
	Count     int     `json:"count,omitempty" yaml:"count"`         // Projectiles, clones or stacks
}

// skillCatalog is the closed set of skills the resolver understands.
var skillCatalog = map[string]Skill{
	// On attack
	"sharpshooter": {ID: "sharpshooter", Name: "Sharpshooter", Description: "Raises crit chance",
		Slot: SlotAttack, Trigger: TriggerOnAttack, Color: "#ffd54f", Power: 0.15},
	"double_tap": {ID: "double_tap", Name: "Double Tap", Description: "Chance for a bonus strike",
		Slot: SlotAttack, Trigger: TriggerOnAttack, Color: "#ffb74d", Chance: 0.25, Power: 0.5},
	"finisher": {ID: "finisher", Name: "Finisher", Description: "Bonus damage against low-hp targets",
		Slot: SlotAttack, Trigger: TriggerOnAttack, Color: "#e53935", Threshold: 0.3, Power: 0.6},
	"arc_lightning": {ID: "arc_lightning", Name: "Arc Lightning", Description: "Rarely chains a lightning bonus",
		Slot: SlotAttack, Trigger: TriggerOnAttack, Color: "#fff176", Chance: 0.12, Power: 0.8},
	"vampiric": {ID: "vampiric", Name: "Vampiric", Description: "Heals for part of damage dealt",
		Slot: SlotAttack, Trigger: TriggerOnAttack, Color: "#ad1457", Power: 0.2},
	"frostbite": {ID: "frostbite", Name: "Frostbite", Description: "Hits may slow the target",
		Slot: SlotAttack, Trigger: TriggerOnAttack, Color: "#80deea", Chance: 0.3, Duration: 90},

	// On damaged
	"iron_skin": {ID: "iron_skin", Name: "Iron Skin", Description: "Reduces incoming damage",
		Slot: SlotPassive, Trigger: TriggerOnDamaged, Color: "#90a4ae", Power: 0.2},
	"mirror": {ID: "mirror", Name: "Mirror", Description: "Reflects part of incoming damage",
		Slot: SlotPassive, Trigger: TriggerOnDamaged, Color: "#b39ddb", Power: 0.25},
	"evasion": {ID: "evasion", Name: "Evasion", Description: "May dodge while wounded",
		Slot: SlotPassive, Trigger: TriggerOnDamaged, Color: "#a5d6a7", Threshold: 0.5, Chance: 0.3},
	"bulwark": {ID: "bulwark", Name: "Bulwark", Description: "Blocks every Nth hit",
		Slot: SlotPassive, Trigger: TriggerOnDamaged, Color: "#78909c", Interval: 4},
	"thorns": {ID: "thorns", Name: "Thorns", Description: "Returns damage and slows attackers",
		Slot: SlotPassive, Trigger: TriggerOnDamaged, Color: "#66bb6a", Power: 0.15, Duration: 60},

	// Periodic
	"regen": {ID: "regen", Name: "Regeneration", Description: "Heals a share of max hp on an interval",
		Slot: SlotPeriodic, Trigger: TriggerPeriodic, Color: "#69f0ae", Interval: 120, Power: 0.05},
	"momentum": {ID: "momentum", Name: "Momentum", Description: "Attack creeps upward over time",
		Slot: SlotPeriodic, Trigger: TriggerPeriodic, Color: "#ff7043", Interval: 300, Power: 0.08, Count: 5},
	"frost_aura": {ID: "frost_aura", Name: "Frost Aura", Description: "Slows nearby opponents",
		Slot: SlotPeriodic, Trigger: TriggerPeriodic, Color: "#4fc3f7", Interval: 180, Radius: 160, Duration: 75},
	"ember": {ID: "ember", Name: "Ember", Description: "Burns the nearest opponent in range",
		Slot: SlotPeriodic, Trigger: TriggerPeriodic, Color: "#ff5722", Interval: 90, Radius: 200, Power: 0.4},
	"tailwind": {ID: "tailwind", Name: "Tailwind", Description: "Periodic burst of speed",
		Slot: SlotPeriodic, Trigger: TriggerPeriodic, Color: "#b2ff59", Interval: 240, Power: 0.35, Duration: 90},
	"hex": {ID: "hex", Name: "Hex", Description: "Weakens the attacks of nearby opponents",
		Slot: SlotPeriodic, Trigger: TriggerPeriodic, Color: "#7e57c2", Interval: 200, Radius: 180, Duration: 120},

	// Threshold
	"berserk": {ID: "berserk", Name: "Berserk", Description: "Enters rage when wounded",
		Slot: SlotPassive, Trigger: TriggerThreshold, Color: "#d50000", Threshold: 0.35},
	"detonate": {ID: "detonate", Name: "Last Stand", Description: "Explodes once when near death",
		Slot: SlotPassive, Trigger: TriggerThreshold, Color: "#ff6d00", Threshold: 0.25, Radius: 170, Power: 1.5},
	"adrenaline": {ID: "adrenaline", Name: "Adrenaline", Description: "Speed surge at half hp",
		Slot: SlotPassive, Trigger: TriggerThreshold, Color: "#ffea00", Threshold: 0.5, Power: 0.4, Duration: 150},

	// On kill
	"devour": {ID: "devour", Name: "Devour", Description: "Absorbs extra mass from kills",
		Slot: SlotPassive, Trigger: TriggerOnKill, Color: "#6a1b9a", Power: 0.15},
	"bloodlust": {ID: "bloodlust", Name: "Bloodlust", Description: "Kills grant a frenzy",
		Slot: SlotPassive, Trigger: TriggerOnKill, Color: "#c62828", Power: 0.3, Duration: 180},

	// Ultimates
	"meteor": {ID: "meteor", Name: "Meteor", Description: "Crashes down on every nearby opponent",
		Slot: SlotUltimate, Trigger: TriggerGauge, Color: "#ff3d00", Radius: 260, Power: 2.5},
	"volley": {ID: "volley", Name: "Volley", Description: "Fires homing shots at the closest opponents",
		Slot: SlotUltimate, Trigger: TriggerGauge, Color: "#ffca28", Count: 5, Power: 1.2},
	"overdrive": {ID: "overdrive", Name: "Overdrive", Description: "Heals and supercharges attack and speed",
		Slot: SlotUltimate, Trigger: TriggerGauge, Color: "#00e5ff", Power: 0.6, Duration: 300},
	"mirror_image": {ID: "mirror_image", Name: "Mirror Image", Description: "Summons temporary clones",
		Slot: SlotUltimate, Trigger: TriggerGauge, Color: "#e1bee7", Count: 2, Duration: 420, Power: 0.3},
	"blizzard": {ID: "blizzard", Name: "Blizzard", Description: "Deep-freezes opponents in a wide area",
		Slot: SlotUltimate, Trigger: TriggerGauge, Color: "#b3e5fc", Radius: 320, Duration: 150, Power: 0.5},
	"railgun": {ID: "railgun", Name: "Railgun", Description: "Fires a piercing straight shot",
		Slot: SlotUltimate, Trigger: TriggerGauge, Color: "#18ffff", Power: 4},
}

// GetSkill returns a catalog skill by id.
func GetSkill(id string) (Skill, bool) {
	s, ok := skillCatalog[id]
	return s, ok
}

// MustSkill returns a catalog skill and panics on unknown ids. Only used
// for compile-time constant loadouts.
func MustSkill(id string) Skill {
	s, ok := skillCatalog[id]
	if !ok {
		panic("unknown skill: " + id)
	}
	return s
}

// AllSkills returns the catalog sorted by slot then id.
func AllSkills() []Skill {
	out := make([]Skill, 0, len(skillCatalog))
	for _, s := range skillCatalog {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Slot != out[j].Slot {
			return out[i].Slot < out[j].Slot
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// SkillIDs returns the catalog ids of a slot, sorted. Used by roster
// normalization to pick loadouts deterministically.
func SkillIDs(slot SkillSlot) []string {
	var ids []string
	for id, s := range skillCatalog {
		if s.Slot == slot {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
