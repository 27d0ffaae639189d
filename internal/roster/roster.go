// Package roster turns external fighter metrics (market data, channel
// statistics) into game stat blocks and loads them for a battle.
package roster

import (
	"hash/fnv"
	"math"
	"strings"

	"marble-royale/internal/game"
)

// Kind is the domain a set of metrics comes from.
type Kind string

const (
	KindMarket  Kind = "market"
	KindChannel Kind = "channel"
)

// Metrics are the raw source statistics for one fighter.
//
// For market fighters Scale is market capitalization, Momentum the recent
// price change as a fraction, Volatility the annualized volatility and
// Engagement the volume-to-float ratio. For channel fighters Scale is the
// subscriber count, Momentum the growth rate and Engagement likes per view.
type Metrics struct {
	ID         string  `json:"id" yaml:"id"`
	Name       string  `json:"name" yaml:"name"`
	Kind       Kind    `json:"kind" yaml:"kind"`
	Scale      float64 `json:"scale" yaml:"scale"`
	Momentum   float64 `json:"momentum" yaml:"momentum"`
	Volatility float64 `json:"volatility" yaml:"volatility"`
	Engagement float64 `json:"engagement" yaml:"engagement"`
	Stability  float64 `json:"stability" yaml:"stability"`
	Sector     string  `json:"sector" yaml:"sector"`
	Class      string  `json:"class" yaml:"class"`
	Portrait   string  `json:"portrait" yaml:"portrait"`
	Color      string  `json:"color" yaml:"color"`
}

// Stat ranges produced by Normalize.
const (
	MinHP      = 60
	MaxHP      = 400
	MinAttack  = 6.0
	MaxAttack  = 30.0
	MinSpeed   = 30.0
	MaxSpeed   = 80.0
	MinCrit    = 0.02
	MaxCrit    = 0.45
	MaxDefense = 50.0
)

// sectorElements maps common sector names onto element tags. Unknown
// sectors get an element from the id hash.
var sectorElements = map[string]game.Element{
	"energy":        game.ElementFire,
	"industrials":   game.ElementFire,
	"gaming":        game.ElementFire,
	"consumer":      game.ElementWind,
	"entertainment": game.ElementWind,
	"music":         game.ElementWind,
	"finance":       game.ElementEarth,
	"materials":     game.ElementEarth,
	"real estate":   game.ElementEarth,
	"technology":    game.ElementLightning,
	"science":       game.ElementLightning,
	"education":     game.ElementLightning,
	"healthcare":    game.ElementWater,
	"utilities":     game.ElementWater,
	"lifestyle":     game.ElementWater,
}

var palette = []string{
	"#e53935", "#8e24aa", "#3949ab", "#039be5", "#00897b",
	"#7cb342", "#fdd835", "#fb8c00", "#6d4c41", "#d81b60",
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func hashID(id string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(strings.ToUpper(id)))
	return h.Sum32()
}

// ScaleToHP compresses a scale metric spanning many orders of magnitude
// onto the hp range: every factor of ten adds 40 hp.
func ScaleToHP(scale float64) int {
	if scale < 1 {
		scale = 1
	}
	return int(math.Round(clamp(40*math.Log10(scale)-120, MinHP, MaxHP)))
}

// Normalize maps source metrics onto a fighter stat block.
func Normalize(m Metrics) game.Fighter {
	h := hashID(m.ID)
	hp := ScaleToHP(m.Scale)

	name := m.Name
	if name == "" {
		name = m.ID
	}
	color := m.Color
	if color == "" {
		color = palette[h%uint32(len(palette))]
	}

	return game.Fighter{
		ID:       m.ID,
		Name:     name,
		Portrait: m.Portrait,
		Color:    color,
		Class:    m.Class,
		Element:  elementFor(m.Sector, h),
		Stats: game.Stats{
			HP:         hp,
			MaxHP:      hp,
			Attack:     clamp(12+40*m.Momentum, MinAttack, MaxAttack),
			Speed:      clamp(MinSpeed+60*m.Volatility, MinSpeed, MaxSpeed),
			CritChance: clamp(MinCrit+2*m.Engagement, MinCrit, MaxCrit),
			Defense:    clamp(m.Stability*MaxDefense, 0, MaxDefense),
		},
		Skills: Loadout(m.ID),
	}
}

func elementFor(sector string, h uint32) game.Element {
	if e, ok := sectorElements[strings.ToLower(strings.TrimSpace(sector))]; ok {
		return e
	}
	return game.Elements[h%uint32(len(game.Elements))]
}

// Loadout assigns 1-2 skills deterministically from the id hash: one
// attack, passive or periodic skill, plus an ultimate for three ids in four.
func Loadout(id string) []game.Skill {
	h := hashID(id)

	var pool []string
	pool = append(pool, game.SkillIDs(game.SlotAttack)...)
	pool = append(pool, game.SkillIDs(game.SlotPassive)...)
	pool = append(pool, game.SkillIDs(game.SlotPeriodic)...)

	skills := []game.Skill{game.MustSkill(pool[h%uint32(len(pool))])}
	if (h>>8)%4 != 0 {
		ultimates := game.SkillIDs(game.SlotUltimate)
		skills = append(skills, game.MustSkill(ultimates[(h>>16)%uint32(len(ultimates))]))
	}
	return skills
}
