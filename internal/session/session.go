// Package session orchestrates one battle at a time: fighter selection,
// the loading phase (roster metrics and portraits), the running engine and
// the finished result. All user-facing failure handling lives here; the
// simulation core never sees a bad roster.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"marble-royale/internal/assets"
	"marble-royale/internal/config"
	"marble-royale/internal/game"
	"marble-royale/internal/render"
	"marble-royale/internal/roster"
)

var (
	// ErrBattleRunning is returned by Start while a battle is loading or running.
	ErrBattleRunning = errors.New("battle already running")
	// ErrNoBattle is returned by battle controls when nothing has been started.
	ErrNoBattle = errors.New("no battle")
	// ErrNoSelection is returned by Start when no fighter ids were given.
	ErrNoSelection = errors.New("no fighters selected")
	// ErrAudioDisabled is returned by AudioWAV when the cue bank is off.
	ErrAudioDisabled = errors.New("audio disabled")
)

// Phase is the coarse lifecycle state shown to the user.
type Phase string

const (
	PhaseSelecting Phase = "selecting"
	PhaseLoading   Phase = "loading"
	PhaseBattling  Phase = "battling"
	PhaseFinished  Phase = "finished"
)

// lingerAfterFinish keeps the frame loop alive so the winner banner and
// fading effects are still rendered after the last kill.
const lingerAfterFinish = 3 * time.Second

// Config wires a session to its collaborators.
type Config struct {
	App    config.AppConfig
	Source roster.Source

	// Observer receives per-frame statistics (optional).
	Observer game.FrameObserver

	// Sinks receive every battle event in addition to the event log (optional).
	Sinks []game.EventSink

	// OnFinish is called with the winner after the battle ends (optional).
	// It runs while the engine lock is held and must not call the session.
	OnFinish func(winnerID, winnerName string)
}

// battle is everything owned by one started battle.
type battle struct {
	fighters []game.Fighter
	engine   *game.Engine
	assets   *assets.Manager
	renderer *render.Renderer
	cues     *render.CueMixer
	eventLog *game.EventLog
	started  time.Time
}

// Session is safe for concurrent use. Engine calls are made without
// holding mu, since the engine's finish callback takes mu itself.
type Session struct {
	cfg Config

	mu         sync.RWMutex
	phase      Phase
	message    string
	current    *battle
	winnerID   string
	winnerName string
	battles    int
}

// New creates a session in the selecting phase.
func New(cfg Config) *Session {
	return &Session{
		cfg:   cfg,
		phase: PhaseSelecting,
	}
}

// Start loads the fighters for ids, preloads their assets and starts the
// engine. Loading runs under ctx; once the battle is running it no longer
// depends on ctx. On failure the session returns to the selecting phase
// with a user-facing message and the error is returned.
func (s *Session) Start(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return ErrNoSelection
	}

	s.mu.Lock()
	if s.phase == PhaseLoading || s.phase == PhaseBattling {
		s.mu.Unlock()
		return ErrBattleRunning
	}
	previous := s.current
	s.current = nil
	s.phase = PhaseLoading
	s.message = ""
	s.winnerID, s.winnerName = "", ""
	s.mu.Unlock()

	previous.teardown()

	log.Printf("📋 Loading battle: %s", roster.ShareList(ids))
	b, err := s.load(ctx, ids)
	if err != nil {
		s.abort(err)
		return err
	}

	s.mu.Lock()
	s.current = b
	s.phase = PhaseBattling
	s.battles++
	s.mu.Unlock()

	b.engine.Start()
	log.Printf("🎮 Battle started with %d fighters", len(b.fighters))
	return nil
}

// load runs the loading phase and builds the battle without starting it.
func (s *Session) load(ctx context.Context, ids []string) (*battle, error) {
	app := s.cfg.App

	fighters, err := roster.Load(ctx, s.cfg.Source, ids, app.Battle.MinParticipants, 0)
	if err != nil {
		return nil, err
	}

	mgr := assets.NewManager(app.Assets, app.Audio)
	if err := mgr.Preload(ctx, fighters); err != nil {
		mgr.Close()
		return nil, err
	}

	b := &battle{
		fighters: fighters,
		assets:   mgr,
		renderer: render.NewRenderer(app.Arena.Width, app.Arena.Height, mgr, mgr.Fonts()),
		eventLog: game.NewEventLog(),
		started:  time.Now(),
	}

	if err := b.eventLog.Start(app.Server.EventLogPath); err != nil {
		log.Printf("⚠️ Event log file disabled: %v", err)
		if err := b.eventLog.Start(""); err != nil {
			mgr.Close()
			return nil, fmt.Errorf("start event log: %w", err)
		}
	}

	sinks := []game.EventSink{b.eventLog}
	if bank := mgr.Sounds(); bank != nil {
		b.cues = render.NewCueMixer(bank, app.Audio.Volume)
		sinks = append(sinks, b.cues)
	}
	sinks = append(sinks, s.cfg.Sinks...)

	world, err := game.NewWorld(fighters, game.Options{
		Arena:    app.Arena,
		Battle:   app.Battle,
		Limits:   app.Limits,
		Sinks:    sinks,
		OnFinish: func(winnerID string) { s.finish(b, winnerID) },
	})
	if err != nil {
		b.eventLog.Stop()
		mgr.Close()
		return nil, err
	}

	b.engine = game.NewEngine(world, game.EngineConfig{
		FPS:      app.Arena.FPS,
		Linger:   lingerAfterFinish,
		Observer: s.cfg.Observer,
	})
	return b, nil
}

// finish is the world's terminal callback. Results of a battle that has
// already been replaced or stopped are ignored.
func (s *Session) finish(b *battle, winnerID string) {
	s.mu.Lock()
	if s.current != b {
		s.mu.Unlock()
		return
	}
	name := winnerID
	for _, f := range b.fighters {
		if f.ID == winnerID {
			name = f.Name
			break
		}
	}
	s.phase = PhaseFinished
	s.winnerID, s.winnerName = winnerID, name
	s.mu.Unlock()

	log.Printf("🏆 Battle won by %s", name)
	if s.cfg.OnFinish != nil {
		s.cfg.OnFinish(winnerID, name)
	}
}

// abort returns to selection with a message the UI can show as is.
func (s *Session) abort(err error) {
	msg := UserMessage(err, s.cfg.App.Battle.MinParticipants)
	log.Printf("⚠️ Battle aborted: %v", err)

	s.mu.Lock()
	s.phase = PhaseSelecting
	s.message = msg
	s.mu.Unlock()
}

// UserMessage turns a setup error into text for the selection screen.
func UserMessage(err error, minimum int) string {
	switch {
	case errors.Is(err, roster.ErrTooFewFighters), errors.Is(err, game.ErrNotEnoughFighters):
		return fmt.Sprintf("Not enough fighters could be loaded. Pick at least %d that exist.", minimum)
	case errors.Is(err, game.ErrTooManyFighters):
		return "Too many fighters selected."
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "Battle setup was cancelled."
	default:
		return "The battle could not be started. Please try again."
	}
}

// engine returns the current engine, or ErrNoBattle.
func (s *Session) engine() (*game.Engine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil, ErrNoBattle
	}
	return s.current.engine, nil
}

// Stop ends the current battle and returns to selection.
func (s *Session) Stop() error {
	s.mu.Lock()
	b := s.current
	if b == nil {
		s.mu.Unlock()
		return ErrNoBattle
	}
	s.current = nil
	s.phase = PhaseSelecting
	s.message = "Battle stopped."
	s.mu.Unlock()

	b.teardown()
	return nil
}

// Skip fast-forwards the running battle to its end.
func (s *Session) Skip() (string, error) {
	e, err := s.engine()
	if err != nil {
		return "", err
	}
	winner, ticks := e.Skip()
	log.Printf("⏩ Skipped %d ticks", ticks)
	return winner, nil
}

// SetSpeed changes the ticks-per-frame multiplier and returns the applied value.
func (s *Session) SetSpeed(n int) (int, error) {
	e, err := s.engine()
	if err != nil {
		return 0, err
	}
	return e.SetSpeed(n), nil
}

// Snapshot returns a private copy of the latest published frame.
func (s *Session) Snapshot() (*game.Snapshot, error) {
	e, err := s.engine()
	if err != nil {
		return nil, err
	}
	snap := &game.Snapshot{}
	e.LatestSnapshot(snap)
	return snap, nil
}

// Events returns retained battle events with a sequence above since.
func (s *Session) Events(since uint64) ([]game.Event, error) {
	e, err := s.engine()
	if err != nil {
		return nil, err
	}
	return e.Events(since), nil
}

// Standings returns the current ranking.
func (s *Session) Standings() ([]game.StandingEntry, error) {
	e, err := s.engine()
	if err != nil {
		return nil, err
	}
	return e.Standings(), nil
}

// FramePNG renders the current frame.
func (s *Session) FramePNG() ([]byte, error) {
	s.mu.RLock()
	b := s.current
	s.mu.RUnlock()
	if b == nil {
		return nil, ErrNoBattle
	}

	snap := &game.Snapshot{}
	b.engine.LatestSnapshot(snap)
	return b.renderer.PNGBytes(snap)
}

// AudioWAV drains d worth of mixed cue audio as a WAV file.
func (s *Session) AudioWAV(d time.Duration) ([]byte, error) {
	s.mu.RLock()
	b := s.current
	s.mu.RUnlock()
	if b == nil {
		return nil, ErrNoBattle
	}
	if b.cues == nil {
		return nil, ErrAudioDisabled
	}
	return b.cues.WAVBytes(d)
}

// Status is the session summary served to the UI.
type Status struct {
	Phase      Phase        `json:"phase"`
	Message    string       `json:"message,omitempty"`
	Fighters   []string     `json:"fighters,omitempty"`
	Share      string       `json:"share,omitempty"`
	WinnerID   string       `json:"winnerId,omitempty"`
	WinnerName string       `json:"winnerName,omitempty"`
	Battles    int          `json:"battles"`
	Elapsed    float64      `json:"elapsedSeconds,omitempty"`
	Degraded   int          `json:"degradedPortraits,omitempty"`
	Audio      bool         `json:"audio"`
	Engine     *game.Status `json:"engine,omitempty"`
}

// Status returns the current summary.
func (s *Session) Status() Status {
	s.mu.RLock()
	st := Status{
		Phase:      s.phase,
		Message:    s.message,
		WinnerID:   s.winnerID,
		WinnerName: s.winnerName,
		Battles:    s.battles,
	}
	b := s.current
	s.mu.RUnlock()

	if b == nil {
		return st
	}
	st.Fighters = make([]string, len(b.fighters))
	for i, f := range b.fighters {
		st.Fighters[i] = f.ID
	}
	st.Share = roster.ShareList(st.Fighters)
	st.Elapsed = time.Since(b.started).Seconds()
	st.Degraded = b.assets.Degraded()
	st.Audio = b.cues != nil
	es := b.engine.Status()
	st.Engine = &es
	return st
}

// Phase returns the current phase.
func (s *Session) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

// Close stops any battle. Used on shutdown.
func (s *Session) Close() {
	s.mu.Lock()
	b := s.current
	s.current = nil
	s.phase = PhaseSelecting
	s.mu.Unlock()

	b.teardown()
}

// teardown stops the engine and releases what the battle owns. A nil
// battle is a no-op.
func (b *battle) teardown() {
	if b == nil {
		return
	}
	b.engine.Stop()
	b.eventLog.Stop()
	b.assets.Close()
	log.Printf("🧹 Battle torn down after %s", time.Since(b.started).Round(time.Second))
}
