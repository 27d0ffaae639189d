package game

import (
	"errors"
	"fmt"
	"log"
	"math"
	"math/rand"
	"strconv"
	"time"

	"marble-royale/internal/config"
	"marble-royale/internal/game/spatial"
)

var (
	// ErrNotEnoughFighters is returned when a battle would start with fewer
	// than the minimum number of participants.
	ErrNotEnoughFighters = errors.New("not enough fighters")
	// ErrTooManyFighters is returned when the roster exceeds the marble cap.
	ErrTooManyFighters = errors.New("too many fighters")
	// ErrDuplicateFighter is returned when two fighters share an id.
	ErrDuplicateFighter = errors.New("duplicate fighter id")
)

const gridCellSize = 64.0

// Options configures a World.
type Options struct {
	Arena  config.ArenaConfig
	Battle config.BattleConfig
	Limits config.ResourceLimits

	// Seed overrides Battle.Seed. Zero means time based.
	Seed int64

	// Sinks receive every event after it is appended to the history.
	Sinks []EventSink

	// OnFinish fires exactly once with the winning fighter id.
	OnFinish func(winnerID string)
}

// DefaultOptions returns options built from the config defaults.
func DefaultOptions() Options {
	return Options{
		Arena:  config.DefaultArena(),
		Battle: config.DefaultBattle(),
		Limits: config.DefaultLimits(),
	}
}

// World is the single-threaded battle simulation. It owns every marble,
// projectile and effect; callers outside this package only read it through
// Snapshot or while holding the Engine lock.
type World struct {
	arena  config.ArenaConfig
	battle config.BattleConfig
	limits config.ResourceLimits

	width, height float64
	maxRadius     float64

	marbles []*Marble
	byID    map[string]*Marble

	projectiles   []*Projectile
	projectileSeq uint64
	cloneSeq      int
	eliminated    int

	fx       *Effects
	director *Director

	grid      *spatial.Grid
	pairs     []uint32
	pairReady map[pairKey]int64

	rng  *rand.Rand
	seed int64

	tick  int64
	frame int64
	speed int

	initialFighters int
	fastForward     bool
	finished        bool
	suddenDeath     bool
	winner          string
	onFinish        func(string)
	finishFired     bool

	sinks    []EventSink
	history  []Event
	eventSeq uint64
}

// NewWorld places fighters on a ring around the arena center and starts
// the director. Fighter ids must be unique.
func NewWorld(fighters []Fighter, opts Options) (*World, error) {
	if opts.Arena.Width <= 0 || opts.Arena.Height <= 0 {
		opts.Arena = config.DefaultArena()
	}
	if opts.Battle.BasePairCooldown == 0 {
		opts.Battle = config.DefaultBattle()
	}
	if opts.Limits.MaxMarbles == 0 {
		opts.Limits = config.DefaultLimits()
	}

	minimum := opts.Battle.MinParticipants
	if minimum < 2 {
		minimum = 2
	}
	if len(fighters) < minimum {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrNotEnoughFighters, len(fighters), minimum)
	}
	if len(fighters) > opts.Limits.MaxMarbles {
		return nil, fmt.Errorf("%w: have %d, max %d", ErrTooManyFighters, len(fighters), opts.Limits.MaxMarbles)
	}

	seen := make(map[string]bool, len(fighters))
	for _, f := range fighters {
		if err := f.validateCore(); err != nil {
			return nil, err
		}
		if seen[f.ID] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateFighter, f.ID)
		}
		seen[f.ID] = true
	}

	seed := opts.Seed
	if seed == 0 {
		seed = opts.Battle.Seed
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	width := float64(opts.Arena.Width)
	height := float64(opts.Arena.Height)
	speed := opts.Battle.SpeedMultiplier
	if speed < 1 {
		speed = 1
	}

	w := &World{
		arena:           opts.Arena,
		battle:          opts.Battle,
		limits:          opts.Limits,
		width:           width,
		height:          height,
		maxRadius:       opts.Battle.MaxRadiusFraction * math.Min(width, height),
		marbles:         make([]*Marble, 0, opts.Limits.MaxMarbles),
		byID:            make(map[string]*Marble, opts.Limits.MaxMarbles),
		projectiles:     make([]*Projectile, 0, opts.Limits.MaxProjectiles),
		fx:              NewEffects(opts.Limits),
		director:        NewDirector(opts.Battle.SlowMoStride, opts.Battle.SlowMoFrames, opts.Battle.CutInFrames, opts.Limits.KillFeedSize),
		grid:            spatial.NewGrid(width, height, gridCellSize, opts.Limits.MaxMarbles),
		pairReady:       make(map[pairKey]int64),
		rng:             rand.New(rand.NewSource(seed)),
		seed:            seed,
		speed:           speed,
		initialFighters: len(fighters),
		onFinish:        opts.OnFinish,
		sinks:           opts.Sinks,
		history:         make([]Event, 0, opts.Limits.MaxEventHistory),
	}
	if w.maxRadius <= 0 {
		w.maxRadius = math.Min(width, height) / 4
	}

	// Spawn on a ring so nobody starts in contact
	cx, cy := width/2, height/2
	ring := math.Min(width, height) * 0.36
	offset := w.rng.Float64() * 2 * math.Pi
	ids := make([]string, 0, len(fighters))
	for i, f := range fighters {
		angle := offset + 2*math.Pi*float64(i)/float64(len(fighters))
		m := newMarble(f, i, cx+math.Cos(angle)*ring, cy+math.Sin(angle)*ring)
		if m.Radius > w.maxRadius {
			m.Radius, m.BaseRadius = w.maxRadius, w.maxRadius
		}
		// Small tangential kick so the opening isn't a straight rush
		m.VX = -math.Sin(angle) * (0.5 + w.rng.Float64())
		m.VY = math.Cos(angle) * (0.5 + w.rng.Float64())
		m.pushTrail()
		w.marbles = append(w.marbles, m)
		w.byID[m.ID] = m
		ids = append(ids, m.ID)
	}

	w.director.Camera.X, w.director.Camera.Y = cx, cy
	w.director.Camera.TargetX, w.director.Camera.TargetY = cx, cy
	w.director.Start()

	w.emit(EventTypeStart, "", fmt.Sprintf("⚔️ Battle started with %d fighters", len(fighters)), StartPayload{
		Fighters: ids,
		Seed:     seed,
		Width:    opts.Arena.Width,
		Height:   opts.Arena.Height,
	})
	return w, nil
}

// Frame advances presentation by one frame and runs as many simulation
// ticks as the director allows. It returns the number of ticks run.
func (w *World) Frame() int {
	w.frame++
	if w.finished {
		w.fx.Update()
		w.director.Follow(w.focus())
		return 0
	}

	before, hadCutIn := w.director.ActiveCutIn()
	w.director.Update(w.frame, w.cutInValid, w.cutInEnded)
	if c, ok := w.director.ActiveCutIn(); ok && (!hadCutIn || c.SubjectID != before.SubjectID || c.StartFrame != before.StartFrame) {
		w.emit(EventTypeCutIn, c.SubjectID, "", UltimatePayload{ActorID: c.SubjectID, SkillID: c.SkillID})
	}

	n := w.director.TicksThisFrame(w.frame, w.speed)
	ran := 0
	for i := 0; i < n && !w.finished; i++ {
		w.Step()
		ran++
		// A freshly requested cut-in freezes the rest of this frame
		if w.director.Pending() {
			break
		}
	}

	w.director.Follow(w.focus())
	return ran
}

func (w *World) cutInValid(c CutIn) bool {
	m := w.byID[c.SubjectID]
	return m != nil && m.Alive && m.UltimatePending && !w.finished
}

func (w *World) cutInEnded(c CutIn) {
	w.resolveUltimate(c.SubjectID)
	w.checkFinish()
}

// Step advances the simulation by exactly one tick.
func (w *World) Step() {
	if w.finished {
		return
	}
	w.tick++

	w.updateTargets()

	for i := 0; i < len(w.marbles); i++ {
		m := w.marbles[i]
		if !m.Alive {
			continue
		}
		m.tickTimers()
		if m.IsClone {
			m.CloneLife--
			if m.CloneLife <= 0 {
				w.expireClone(m)
				continue
			}
		}
		w.runPeriodic(m)
		if !m.Alive {
			continue
		}
		w.addGauge(m, GaugePerTick)
		if !m.Alive {
			continue
		}
		w.moveMarble(m)
	}

	w.resolveCollisions()
	w.updateProjectiles()
	w.fx.Update()
	w.checkFinish()
}

// FastForward runs the battle to completion without presentation. Pending
// ultimates resolve immediately. If the tick cap is reached the fighter
// with the best hp ratio wins by sudden death.
func (w *World) FastForward() (winner string, ticks int) {
	if w.finished {
		return w.winner, 0
	}
	w.fastForward = true
	for _, c := range w.director.Flush() {
		w.resolveUltimate(c.SubjectID)
	}

	start := w.tick
	limit := int64(w.battle.FastForwardCap)
	if limit <= 0 {
		limit = int64(config.DefaultBattle().FastForwardCap)
	}
	w.checkFinish()
	for !w.finished && w.tick-start < limit {
		w.Step()
	}
	if !w.finished {
		w.suddenDeathFinish()
	}

	w.fx.Clear()
	w.projectiles = w.projectiles[:0]
	return w.winner, int(w.tick - start)
}

func (w *World) suddenDeathFinish() {
	var best *Marble
	for _, m := range w.marbles {
		if !m.Alive || m.IsClone {
			continue
		}
		if best == nil || m.HPRatio() > best.HPRatio() ||
			(m.HPRatio() == best.HPRatio() && m.HP > best.HP) {
			best = m
		}
	}
	for _, m := range w.marbles {
		if m.Alive && !m.IsClone && m != best {
			w.kill(m, nil, "sudden death")
		}
	}
	w.suddenDeath = true
	log.Printf("⏱️ Tick cap reached, sudden death after %d ticks", w.tick)
	w.checkFinish()
}

// checkFinish ends the battle once at most one fighter is left.
func (w *World) checkFinish() {
	if w.finished || w.aliveFighters() > 1 {
		return
	}
	w.finished = true

	var survivor *Marble
	for _, m := range w.marbles {
		if m.Alive && !m.IsClone {
			survivor = m
			break
		}
	}
	for _, m := range w.marbles {
		if m.Alive && m.IsClone {
			w.expireClone(m)
		}
	}
	if survivor != nil {
		w.winner = survivor.FighterID
	}
	// Ultimates still waiting on a cut-in fizzle
	for _, c := range w.director.Flush() {
		w.resolveUltimate(c.SubjectID)
	}

	name := "nobody"
	if survivor != nil {
		name = survivor.Name
	}
	w.emit(EventTypeFinish, w.winner, fmt.Sprintf("🏆 %s wins after %d ticks", name, w.tick), FinishPayload{
		WinnerID:    w.winner,
		Ticks:       w.tick,
		SuddenDeath: w.suddenDeath,
	})

	if w.onFinish != nil && !w.finishFired {
		w.finishFired = true
		w.onFinish(w.winner)
	}
}

// requestSlowMo asks the director for slow motion at (x, y).
func (w *World) requestSlowMo(x, y float64) {
	if w.fastForward || w.finished {
		return
	}
	wasSlow := w.director.State() == DirectorSlowMo
	w.director.Impact(x, y)
	if !wasSlow && w.director.State() == DirectorSlowMo {
		w.emit(EventTypeSlowMo, "", "", nil)
	}
}

// emit appends to the bounded history and forwards to every sink.
func (w *World) emit(kind EventType, actorID, message string, payload interface{}) {
	w.eventSeq++
	ev := NewEvent(kind, uint64(w.tick), actorID, message, payload)
	ev.Sequence = w.eventSeq

	if limit := w.limits.MaxEventHistory; limit > 0 {
		if len(w.history) >= limit {
			copy(w.history, w.history[1:])
			w.history = w.history[:len(w.history)-1]
		}
		w.history = append(w.history, ev)
	}
	for _, s := range w.sinks {
		s.Emit(ev)
	}
}

// Events returns retained events with a sequence greater than since.
func (w *World) Events(since uint64) []Event {
	out := make([]Event, 0, len(w.history))
	for _, ev := range w.history {
		if ev.Sequence > since {
			out = append(out, ev)
		}
	}
	return out
}

// focus returns the centroid of the surviving fighters.
func (w *World) focus() (float64, float64, func(string) (float64, float64, bool)) {
	var sx, sy float64
	n := 0
	for _, m := range w.marbles {
		if m.Alive && !m.IsClone {
			sx += m.X
			sy += m.Y
			n++
		}
	}
	if n == 0 {
		return w.width / 2, w.height / 2, w.position
	}
	return sx / float64(n), sy / float64(n), w.position
}

func (w *World) position(id string) (float64, float64, bool) {
	m := w.byID[id]
	if m == nil {
		return 0, 0, false
	}
	return m.X, m.Y, true
}

func (w *World) aliveFighters() int {
	n := 0
	for _, m := range w.marbles {
		if m.Alive && !m.IsClone {
			n++
		}
	}
	return n
}

// SetSpeed sets the ticks-per-frame multiplier, clamped to the configured range.
func (w *World) SetSpeed(n int) int {
	if n < 1 {
		n = 1
	}
	if limit := w.battle.MaxSpeedMultiplier; limit > 0 && n > limit {
		n = limit
	}
	w.speed = n
	return n
}

// Accessors

func (w *World) Speed() int { return w.speed }
func (w *World) Tick() int64 { return w.tick }
func (w *World) FrameCount() int64 { return w.frame }
func (w *World) Seed() int64 { return w.seed }
func (w *World) Finished() bool { return w.finished }
func (w *World) Winner() string { return w.winner }
func (w *World) SuddenDeath() bool { return w.suddenDeath }
func (w *World) AliveFighters() int { return w.aliveFighters() }
func (w *World) Director() *Director { return w.director }
func (w *World) Effects() *Effects { return w.fx }
func (w *World) Marbles() []*Marble { return w.marbles }
func (w *World) Projectiles() []*Projectile { return w.projectiles }
func (w *World) Size() (float64, float64) { return w.width, w.height }

// Marble returns the marble with the given id.
func (w *World) Marble(id string) *Marble {
	return w.byID[id]
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
