package game

// Element is the categorical tag used by the advantage matrix.
type Element string

const (
	ElementNone      Element = ""
	ElementFire      Element = "fire"
	ElementWind      Element = "wind"
	ElementEarth     Element = "earth"
	ElementLightning Element = "lightning"
	ElementWater     Element = "water"
)

// Elements lists the tagged elements in advantage-cycle order.
// Each element beats the one after it; the last beats the first.
var Elements = []Element{ElementFire, ElementWind, ElementEarth, ElementLightning, ElementWater}

// ElementAdvantage is the advantaged multiplier. Disadvantaged hits use its inverse.
const ElementAdvantage = 1.25

var elementBeats = func() map[Element]Element {
	m := make(map[Element]Element, len(Elements))
	for i, e := range Elements {
		m[e] = Elements[(i+1)%len(Elements)]
	}
	return m
}()

// ElementMultiplier returns the damage multiplier for attacker vs defender.
func ElementMultiplier(attacker, defender Element) float64 {
	if attacker == ElementNone || defender == ElementNone || attacker == defender {
		return 1.0
	}
	if elementBeats[attacker] == defender {
		return ElementAdvantage
	}
	if elementBeats[defender] == attacker {
		return 1.0 / ElementAdvantage
	}
	return 1.0
}

// ElementColor returns the badge color for an element.
func ElementColor(e Element) string {
	switch e {
	case ElementFire:
		return "#ff5722"
	case ElementWind:
		return "#8bc34a"
	case ElementEarth:
		return "#a1887f"
	case ElementLightning:
		return "#ffeb3b"
	case ElementWater:
		return "#29b6f6"
	default:
		return "#9e9e9e"
	}
}
