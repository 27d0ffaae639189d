package game

import "sort"

// StandingEntry is one fighter's line in the battle standings.
type StandingEntry struct {
	Rank        int     `json:"rank"`
	FighterID   string  `json:"fighterId"`
	Name        string  `json:"name"`
	Color       string  `json:"color"`
	Alive       bool    `json:"alive"`
	HP          int     `json:"hp"`
	MaxHP       int     `json:"maxHp"`
	Kills       int     `json:"kills"`
	DamageDealt int     `json:"damageDealt"`
	Eliminated  int     `json:"eliminated,omitempty"`
	HPRatio     float64 `json:"hpRatio"`
}

// Standings ranks the fighters (clones excluded). Survivors come first,
// ordered by hp ratio, then kills. Eliminated fighters follow in reverse
// elimination order, so the last one out is ranked right after the
// survivors. Rank is 1-based.
func (w *World) Standings() []StandingEntry {
	out := make([]StandingEntry, 0, w.initialFighters)
	for _, m := range w.marbles {
		if m.IsClone {
			continue
		}
		out = append(out, StandingEntry{
			FighterID:   m.FighterID,
			Name:        m.Name,
			Color:       m.Color,
			Alive:       m.Alive,
			HP:          m.HP,
			MaxHP:       m.MaxHP,
			Kills:       m.Kills,
			DamageDealt: m.DamageDealt,
			Eliminated:  m.Eliminated,
			HPRatio:     m.HPRatio(),
		})
	}
	sortStandings(out)
	return out
}

func sortStandings(entries []StandingEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Alive != b.Alive {
			return a.Alive
		}
		if !a.Alive {
			return a.Eliminated > b.Eliminated
		}
		if a.HPRatio != b.HPRatio {
			return a.HPRatio > b.HPRatio
		}
		if a.Kills != b.Kills {
			return a.Kills > b.Kills
		}
		return a.DamageDealt > b.DamageDealt
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
}

// TopStandings returns at most n entries from the top of the standings.
func (w *World) TopStandings(n int) []StandingEntry {
	all := w.Standings()
	if n > 0 && n < len(all) {
		all = all[:n]
	}
	return all
}

// Rank returns a fighter's 1-based standing, or 0 if the id is unknown.
func (w *World) Rank(fighterID string) int {
	for _, e := range w.Standings() {
		if e.FighterID == fighterID {
			return e.Rank
		}
	}
	return 0
}
