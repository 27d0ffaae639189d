package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"marble-royale/internal/game"
	"marble-royale/internal/roster"
	"marble-royale/internal/session"
)

const (
	defaultAudioWindow = time.Second
	maxAudioWindow     = 5 * time.Second
)

// Handler methods for routerHandlers

func (h *routerHandlers) handleGetBattle(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.battle.Status())
}

func (h *routerHandlers) handleStartBattle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs   []string `json:"ids"`
		Share string   `json:"share"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}

	// Both forms go through the share-list decoder so ids are normalized alike
	param := req.Share
	if len(req.IDs) > 0 {
		param = strings.Join(req.IDs, ",")
	}
	ids := roster.ParseShareList(param)
	if len(ids) == 0 {
		writeError(w, "Select at least two fighters", http.StatusBadRequest)
		return
	}

	log.Printf("🎮 Battle requested via API: %s", roster.ShareList(ids))
	if err := h.battle.Start(r.Context(), ids); err != nil {
		h.writeBattleError(w, err)
		return
	}
	writeJSON(w, h.battle.Status())
}

func (h *routerHandlers) handleSetSpeed(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Speed int `json:"speed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}

	applied, err := h.battle.SetSpeed(req.Speed)
	if err != nil {
		h.writeBattleError(w, err)
		return
	}
	writeJSON(w, map[string]int{"speed": applied})
}

func (h *routerHandlers) handleSkip(w http.ResponseWriter, r *http.Request) {
	winner, err := h.battle.Skip()
	if err != nil {
		h.writeBattleError(w, err)
		return
	}
	writeJSON(w, map[string]string{"winnerId": winner})
}

func (h *routerHandlers) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := h.battle.Stop(); err != nil {
		h.writeBattleError(w, err)
		return
	}
	writeJSON(w, map[string]bool{"success": true})
}

func (h *routerHandlers) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.battle.Snapshot()
	if err != nil {
		h.writeBattleError(w, err)
		return
	}
	writeJSON(w, snap)
}

func (h *routerHandlers) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	var since uint64
	if v := r.URL.Query().Get("since"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeError(w, "since must be a non-negative integer", http.StatusBadRequest)
			return
		}
		since = n
	}

	events, err := h.battle.Events(since)
	if err != nil {
		h.writeBattleError(w, err)
		return
	}
	writeJSON(w, events)
}

func (h *routerHandlers) handleGetStandings(w http.ResponseWriter, r *http.Request) {
	standings, err := h.battle.Standings()
	if err != nil {
		h.writeBattleError(w, err)
		return
	}
	if v := r.URL.Query().Get("top"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n < len(standings) {
			standings = standings[:n]
		}
	}
	writeJSON(w, standings)
}

func (h *routerHandlers) handleGetFrame(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	data, err := h.battle.FramePNG()
	if err != nil {
		h.writeBattleError(w, err)
		return
	}
	RecordRender(time.Since(start))

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(data)
}

func (h *routerHandlers) handleGetAudio(w http.ResponseWriter, r *http.Request) {
	window := defaultAudioWindow
	if v := r.URL.Query().Get("ms"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil || ms <= 0 {
			writeError(w, "ms must be a positive integer", http.StatusBadRequest)
			return
		}
		window = time.Duration(ms) * time.Millisecond
	}
	if window > maxAudioWindow {
		window = maxAudioWindow
	}

	data, err := h.battle.AudioWAV(window)
	if err != nil {
		h.writeBattleError(w, err)
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(data)
}

// rosterEntry is one selectable fighter with its normalized stats.
type rosterEntry struct {
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	Kind    roster.Kind  `json:"kind"`
	Sector  string       `json:"sector,omitempty"`
	Color   string       `json:"color"`
	Element game.Element `json:"element"`
	Stats   game.Stats   `json:"stats"`
	Skills  []string     `json:"skills"`
}

func (h *routerHandlers) handleGetRoster(w http.ResponseWriter, r *http.Request) {
	entries := make([]rosterEntry, 0)
	if h.roster == nil {
		writeJSON(w, entries)
		return
	}

	list, err := h.roster.List(r.Context())
	if err != nil {
		log.Printf("⚠️ Roster listing failed: %v", err)
		writeError(w, "Roster unavailable", http.StatusBadGateway)
		return
	}
	for _, m := range list {
		f := roster.Normalize(m)
		skills := make([]string, len(f.Skills))
		for i, s := range f.Skills {
			skills[i] = s.ID
		}
		entries = append(entries, rosterEntry{
			ID:      f.ID,
			Name:    f.Name,
			Kind:    m.Kind,
			Sector:  m.Sector,
			Color:   f.Color,
			Element: f.Element,
			Stats:   f.Stats,
			Skills:  skills,
		})
	}
	writeJSON(w, entries)
}

func (h *routerHandlers) handleGetSkills(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, game.AllSkills())
}

// writeBattleError maps session and roster errors to HTTP responses.
// Setup failures carry the session's user-facing message.
func (h *routerHandlers) writeBattleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNoBattle):
		writeError(w, "No battle has been started", http.StatusNotFound)
	case errors.Is(err, session.ErrBattleRunning):
		writeError(w, "A battle is already running", http.StatusConflict)
	case errors.Is(err, session.ErrNoSelection):
		writeError(w, "Select at least two fighters", http.StatusBadRequest)
	case errors.Is(err, session.ErrAudioDisabled):
		writeError(w, "Audio is disabled", http.StatusNotFound)
	case roster.IsAbort(err), errors.Is(err, game.ErrNotEnoughFighters),
		errors.Is(err, game.ErrTooManyFighters), errors.Is(err, game.ErrInvalidFighter):
		writeError(w, h.battle.Status().Message, http.StatusUnprocessableEntity)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, h.battle.Status().Message, http.StatusServiceUnavailable)
	default:
		log.Printf("❌ Battle request failed: %v", err)
		writeError(w, "Internal error", http.StatusInternalServerError)
	}
}

// Helper functions (package-level for reuse)

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
