package game

import (
	"log"
	"sync"
	"time"
)

// FrameStats is reported to the observer after every frame.
type FrameStats struct {
	Duration      time.Duration
	Ticks         int
	Alive         int
	Marbles       int
	Projectiles   int
	Particles     int
	DirectorState string
}

// FrameObserver receives per-frame statistics (metrics, profiling).
type FrameObserver interface {
	ObserveFrame(stats FrameStats)
}

// EngineConfig configures the real-time frame loop.
type EngineConfig struct {
	FPS int

	// Linger keeps frames running after the battle ends so effects fade out.
	Linger time.Duration

	Observer FrameObserver
}

// Engine drives a World at a fixed frame rate on its own goroutine and
// publishes snapshots through a triple-buffered pool. Every World access
// goes through the engine lock, so the world's OnFinish callback must not
// call back into the engine.
type Engine struct {
	mu    sync.RWMutex
	world *World
	pool  *SnapshotPool

	fps      int
	linger   int // Frames to keep running after the battle ends
	observer FrameObserver

	running  bool
	ticker   *time.Ticker
	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewEngine wraps a world. The first snapshot is published immediately.
func NewEngine(world *World, cfg EngineConfig) *Engine {
	if cfg.FPS <= 0 {
		cfg.FPS = 60
	}
	e := &Engine{
		world:    world,
		pool:     NewSnapshotPool(world.limits),
		fps:      cfg.FPS,
		linger:   int(cfg.Linger.Seconds() * float64(cfg.FPS)),
		observer: cfg.Observer,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
	e.publish()
	return e
}

// Start begins the frame loop
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.ticker = time.NewTicker(time.Second / time.Duration(e.fps))
	e.mu.Unlock()

	go func() {
		defer close(e.done)
		defer e.ticker.Stop()
		for {
			select {
			case <-e.ticker.C:
				if !e.frame() {
					e.mu.Lock()
					e.running = false
					e.mu.Unlock()
					log.Println("🏁 Frame loop finished")
					return
				}
			case <-e.stopChan:
				return
			}
		}
	}()

	log.Printf("🎮 Battle engine started at %d FPS", e.fps)
}

// Stop stops the frame loop and waits for it to exit. Safe to call twice.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		close(e.stopChan)
		e.mu.Lock()
		started := e.ticker != nil
		e.running = false
		e.mu.Unlock()
		if started {
			<-e.done
		}
		log.Println("🛑 Battle engine stopped")
	})
}

// Done is closed once the frame loop has exited.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// Running reports whether the frame loop is active.
func (e *Engine) Running() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// frame runs one frame and returns false once the loop should exit.
func (e *Engine) frame() bool {
	start := time.Now()

	e.mu.Lock()
	ticks := e.world.Frame()
	e.publish()
	finished := e.world.Finished()
	stats := FrameStats{
		Ticks:         ticks,
		Alive:         e.world.aliveFighters(),
		Marbles:       len(e.world.marbles),
		Projectiles:   len(e.world.projectiles),
		Particles:     len(e.world.fx.Particles),
		DirectorState: e.world.director.State(),
	}
	if finished {
		e.linger--
	}
	keepGoing := !finished || e.linger > 0
	e.mu.Unlock()

	if e.observer != nil {
		stats.Duration = time.Since(start)
		e.observer.ObserveFrame(stats)
	}
	return keepGoing
}

// publish writes the current world into the next snapshot slot.
// Caller must hold the lock.
func (e *Engine) publish() {
	snap := e.pool.AcquireWrite()
	e.world.Snapshot(snap)
	e.pool.PublishWrite()
}

// LatestSnapshot copies the most recently published frame into dst and
// returns its sequence. It never takes the engine lock.
func (e *Engine) LatestSnapshot(dst *Snapshot) uint64 {
	return e.pool.CopyLatest(dst)
}

// SetSpeed changes the ticks-per-frame multiplier and returns the value applied.
func (e *Engine) SetSpeed(n int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n = e.world.SetSpeed(n)
	e.publish()
	return n
}

// Skip fast-forwards the battle to its end.
func (e *Engine) Skip() (winner string, ticks int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	winner, ticks = e.world.FastForward()
	e.publish()
	return winner, ticks
}

// Events returns retained battle events after the given sequence.
func (e *Engine) Events(since uint64) []Event {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.world.Events(since)
}

// Status is a compact summary of the running battle.
type Status struct {
	Tick          int64  `json:"tick"`
	Frame         int64  `json:"frame"`
	Speed         int    `json:"speed"`
	Alive         int    `json:"alive"`
	Finished      bool   `json:"finished"`
	WinnerID      string `json:"winnerId"`
	DirectorState string `json:"directorState"`
	Seed          int64  `json:"seed"`
}

// Status returns a summary under the read lock.
func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Status{
		Tick:          e.world.tick,
		Frame:         e.world.frame,
		Speed:         e.world.speed,
		Alive:         e.world.aliveFighters(),
		Finished:      e.world.finished,
		WinnerID:      e.world.winner,
		DirectorState: e.world.director.State(),
		Seed:          e.world.seed,
	}
}

// Standings returns the current fighter ranking under the read lock.
func (e *Engine) Standings() []StandingEntry {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.world.Standings()
}
