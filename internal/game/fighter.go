package game

import (
	"errors"
	"fmt"
)

// Stats is the base stat block a Fighter brings into the arena.
type Stats struct {
	HP         int     `json:"hp" yaml:"hp"`
	MaxHP      int     `json:"maxHp" yaml:"max_hp"`
	Attack     float64 `json:"attack" yaml:"attack"`
	Speed      float64 `json:"speed" yaml:"speed"`
	CritChance float64 `json:"critChance" yaml:"crit_chance"`
	Defense    float64 `json:"defense" yaml:"defense"`
}

// Fighter is the immutable identity of one combatant. Marbles are derived
// from it at battle start and never write back.
type Fighter struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Portrait string  `json:"portrait"`
	Color    string  `json:"color"`
	Class    string  `json:"class"`
	Element  Element `json:"element"`
	Stats    Stats   `json:"stats"`
	Skills   []Skill `json:"skills"`
}

// ErrInvalidFighter is returned when a stat block can't be simulated.
var ErrInvalidFighter = errors.New("invalid fighter")

// MaxSkills is the most skills one fighter can carry into a battle.
const MaxSkills = 2

// Validate checks a complete fighter: sane stats and 1 to MaxSkills
// skills, at most one per slot.
func (f Fighter) Validate() error {
	if err := f.validateCore(); err != nil {
		return err
	}
	if len(f.Skills) == 0 {
		return fmt.Errorf("%w: %s has no skills", ErrInvalidFighter, f.ID)
	}
	return nil
}

// validateCore is what the simulation itself needs. Bare fighters with no
// skills are allowed so baseline battles can run without any triggers.
func (f Fighter) validateCore() error {
	if f.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidFighter)
	}
	if f.Stats.MaxHP <= 0 {
		return fmt.Errorf("%w: %s has maxHp %d", ErrInvalidFighter, f.ID, f.Stats.MaxHP)
	}
	if f.Stats.HP <= 0 || f.Stats.HP > f.Stats.MaxHP {
		return fmt.Errorf("%w: %s has hp %d of %d", ErrInvalidFighter, f.ID, f.Stats.HP, f.Stats.MaxHP)
	}
	if f.Stats.Attack < 0 || f.Stats.Speed < 0 || f.Stats.Defense < 0 {
		return fmt.Errorf("%w: %s has negative stats", ErrInvalidFighter, f.ID)
	}
	if f.Stats.CritChance < 0 || f.Stats.CritChance > 1 {
		return fmt.Errorf("%w: %s crit chance %.2f out of range", ErrInvalidFighter, f.ID, f.Stats.CritChance)
	}
	if len(f.Skills) > MaxSkills {
		return fmt.Errorf("%w: %s has %d skills, max %d", ErrInvalidFighter, f.ID, len(f.Skills), MaxSkills)
	}
	slots := make(map[SkillSlot]bool, len(f.Skills))
	for _, s := range f.Skills {
		if _, ok := skillCatalog[s.ID]; !ok {
			return fmt.Errorf("%w: %s has unknown skill %q", ErrInvalidFighter, f.ID, s.ID)
		}
		if slots[s.Slot] {
			return fmt.Errorf("%w: %s has two %s skills", ErrInvalidFighter, f.ID, s.Slot)
		}
		slots[s.Slot] = true
	}
	return nil
}

// TargetStrategy selects how a marble picks its default target.
type TargetStrategy int

const (
	TargetNearest  TargetStrategy = iota // Default: closest living opponent
	TargetWeakest                        // Lowest current hp
	TargetFarthest                       // Most distant opponent
)

// StrategyForClass maps a fighter class tag to its targeting strategy.
func StrategyForClass(class string) TargetStrategy {
	switch class {
	case "assassin":
		return TargetWeakest
	case "sniper":
		return TargetFarthest
	default:
		return TargetNearest
	}
}

func (s TargetStrategy) String() string {
	switch s {
	case TargetWeakest:
		return "weakest"
	case TargetFarthest:
		return "farthest"
	default:
		return "nearest"
	}
}
