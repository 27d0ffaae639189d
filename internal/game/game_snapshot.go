package game

import (
	"sync"
	"sync/atomic"
	"time"

	"marble-royale/internal/config"
)

// MarbleSnapshot is an immutable copy of marble state for rendering
// Uses value types (not pointers) to ensure immutability
type MarbleSnapshot struct {
	ID        string  `json:"id"`
	FighterID string  `json:"fighterId"`
	Name      string  `json:"name"`
	Color     string  `json:"color"`
	Portrait  string  `json:"portrait"`
	Element   Element `json:"element"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	VX        float64 `json:"vx"`
	VY        float64 `json:"vy"`
	Radius    float64 `json:"radius"`
	HP        int     `json:"hp"`
	MaxHP     int     `json:"maxHp"`
	Alive     bool    `json:"alive"`
	IsClone   bool    `json:"isClone"`
	Kills     int     `json:"kills"`
	TargetID  string  `json:"targetId"`

	Rage     bool    `json:"rage"`
	Frozen   bool    `json:"frozen"`
	Slowed   bool    `json:"slowed"`
	Buffed   bool    `json:"buffed"`
	Debuffed bool    `json:"debuffed"`
	Flash    float64 `json:"flash"` // 1 on the hit tick, fades to 0

	Gauge         float64 `json:"gauge"`
	UltimateName  string  `json:"ultimateName,omitempty"`
	UltimateFired bool    `json:"ultimateFired"`

	Trail      [TrailLength]Point `json:"-"`
	TrailIdx   int                `json:"-"`
	TrailCount int                `json:"-"`
}

// TrailPoints returns the trail oldest first.
func (m *MarbleSnapshot) TrailPoints() []Point {
	out := make([]Point, 0, m.TrailCount)
	start := m.TrailIdx - m.TrailCount
	if start < 0 {
		start += TrailLength
	}
	for i := 0; i < m.TrailCount; i++ {
		out = append(out, m.Trail[(start+i)%TrailLength])
	}
	return out
}

// ProjectileSnapshot is an immutable projectile for rendering
type ProjectileSnapshot struct {
	X        float64        `json:"x"`
	Y        float64        `json:"y"`
	Rotation float64        `json:"rotation"`
	Radius   float64        `json:"radius"`
	Color    string         `json:"color"`
	Kind     ProjectileKind `json:"kind"`
	TrailX   [4]float64     `json:"-"`
	TrailY   [4]float64     `json:"-"`
}

// Snapshot is a complete immutable frame for rendering and the HTTP API
// All slices are pre-allocated and capped by the resource limits
type Snapshot struct {
	Sequence  uint64    `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`
	Tick      int64     `json:"tick"`
	Frame     int64     `json:"frame"`
	Width     float64   `json:"width"`
	Height    float64   `json:"height"`
	Speed     int       `json:"speed"`

	Marbles     []MarbleSnapshot     `json:"marbles"`
	Projectiles []ProjectileSnapshot `json:"projectiles"`
	Particles   []Particle           `json:"-"`
	Rings       []Ring               `json:"-"`
	Texts       []FloatingText       `json:"-"`
	Slashes     []SlashLine          `json:"-"`

	Camera        Camera      `json:"camera"`
	DirectorState string      `json:"directorState"`
	SlowMo        bool        `json:"slowMo"`
	CutIn         CutIn       `json:"cutIn"`
	CutInActive   bool        `json:"cutInActive"`
	CutInProgress float64     `json:"cutInProgress"`
	KillFeed      []KillEntry `json:"killFeed"`

	AliveCount  int    `json:"aliveCount"`
	Finished    bool   `json:"finished"`
	WinnerID    string `json:"winnerId"`
	WinnerName  string `json:"winnerName"`
	SuddenDeath bool   `json:"suddenDeath"`
}

// Snapshot copies the current world state into dst, reusing its slices.
func (w *World) Snapshot(dst *Snapshot) {
	dst.Tick = w.tick
	dst.Frame = w.frame
	dst.Width, dst.Height = w.width, w.height
	dst.Speed = w.speed

	dst.Marbles = dst.Marbles[:0]
	for _, m := range w.marbles {
		if !m.Alive && m.IsClone {
			continue
		}
		ms := MarbleSnapshot{
			ID:            m.ID,
			FighterID:     m.FighterID,
			Name:          m.Name,
			Color:         m.Color,
			Portrait:      m.Portrait,
			Element:       m.Element,
			X:             m.X,
			Y:             m.Y,
			VX:            m.VX,
			VY:            m.VY,
			Radius:        m.Radius,
			HP:            m.HP,
			MaxHP:         m.MaxHP,
			Alive:         m.Alive,
			IsClone:       m.IsClone,
			Kills:         m.Kills,
			TargetID:      m.TargetID,
			Rage:          m.Rage,
			Frozen:        m.FreezeTimer > 0,
			Slowed:        m.SlowTimer > 0,
			Buffed:        m.Buffed(),
			Debuffed:      m.AttackDebuffTimer > 0,
			Flash:         float64(m.FlashTimer) / FlashTicks,
			Gauge:         m.Gauge,
			UltimateFired: m.UltimateFired,
			Trail:         m.Trail,
			TrailIdx:      m.TrailIdx,
			TrailCount:    m.TrailCount,
		}
		if s, ok := m.Ultimate(); ok {
			ms.UltimateName = s.Name
		}
		dst.Marbles = append(dst.Marbles, ms)
	}

	dst.Projectiles = dst.Projectiles[:0]
	for _, p := range w.projectiles {
		dst.Projectiles = append(dst.Projectiles, ProjectileSnapshot{
			X:        p.X,
			Y:        p.Y,
			Rotation: p.Rotation(),
			Radius:   p.Radius,
			Color:    p.Color,
			Kind:     p.Kind,
			TrailX:   p.TrailX,
			TrailY:   p.TrailY,
		})
	}

	dst.Particles = append(dst.Particles[:0], w.fx.Particles...)
	dst.Rings = append(dst.Rings[:0], w.fx.Rings...)
	dst.Texts = append(dst.Texts[:0], w.fx.Texts...)
	dst.Slashes = append(dst.Slashes[:0], w.fx.Slashes...)

	dst.Camera = w.director.Camera
	dst.DirectorState = w.director.State()
	dst.SlowMo = dst.DirectorState == DirectorSlowMo
	dst.CutIn, dst.CutInActive = w.director.ActiveCutIn()
	dst.CutInProgress = 0
	if dst.CutInActive {
		dst.CutInProgress = dst.CutIn.Progress(w.frame)
	}
	dst.KillFeed = append(dst.KillFeed[:0], w.director.KillFeed()...)

	dst.AliveCount = w.aliveFighters()
	dst.Finished = w.finished
	dst.WinnerID = w.winner
	dst.WinnerName = ""
	if m := w.byID[w.winner]; m != nil {
		dst.WinnerName = m.Name
	}
	dst.SuddenDeath = w.suddenDeath
}

// CopyTo copies s into dst, reusing dst's slices.
func (s *Snapshot) CopyTo(dst *Snapshot) {
	marbles := append(dst.Marbles[:0], s.Marbles...)
	projectiles := append(dst.Projectiles[:0], s.Projectiles...)
	particles := append(dst.Particles[:0], s.Particles...)
	rings := append(dst.Rings[:0], s.Rings...)
	texts := append(dst.Texts[:0], s.Texts...)
	slashes := append(dst.Slashes[:0], s.Slashes...)
	feed := append(dst.KillFeed[:0], s.KillFeed...)

	*dst = *s
	dst.Marbles = marbles
	dst.Projectiles = projectiles
	dst.Particles = particles
	dst.Rings = rings
	dst.Texts = texts
	dst.Slashes = slashes
	dst.KillFeed = feed
}

// SnapshotPool pre-allocates snapshots to avoid GC pressure
// Uses triple buffering so readers never wait on the frame loop
type SnapshotPool struct {
	snapshots [3]Snapshot
	slots     [3]sync.RWMutex // Writer holds a slot while filling it, readers while copying
	limits    config.ResourceLimits
	writeIdx  uint32 // atomic - producer index
	readIdx   uint32 // atomic - consumer index
	sequence  uint64 // atomic - monotonic sequence
}

// NewSnapshotPool creates a pool with pre-allocated slices
func NewSnapshotPool(limits config.ResourceLimits) *SnapshotPool {
	pool := &SnapshotPool{limits: limits}

	for i := 0; i < 3; i++ {
		pool.snapshots[i] = Snapshot{
			Marbles:     make([]MarbleSnapshot, 0, limits.MaxMarbles),
			Projectiles: make([]ProjectileSnapshot, 0, limits.MaxProjectiles),
			Particles:   make([]Particle, 0, limits.MaxParticles),
			Rings:       make([]Ring, 0, limits.MaxRings),
			Texts:       make([]FloatingText, 0, limits.MaxTexts),
			Slashes:     make([]SlashLine, 0, limits.MaxSlashes),
			KillFeed:    make([]KillEntry, 0, limits.KillFeedSize),
		}
	}

	return pool
}

// AcquireWrite gets the next write slot (producer only, called from the frame loop)
// Returns a snapshot with a fresh sequence number; World.Snapshot resets the slices.
// The slot stays locked until PublishWrite.
func (p *SnapshotPool) AcquireWrite() *Snapshot {
	idx := atomic.AddUint32(&p.writeIdx, 1) % 3
	p.slots[idx].Lock()
	snap := &p.snapshots[idx]

	snap.Sequence = atomic.AddUint64(&p.sequence, 1)
	snap.Timestamp = time.Now()

	return snap
}

// PublishWrite marks write complete and advances read pointer
// Called after snapshot is fully populated
func (p *SnapshotPool) PublishWrite() {
	idx := atomic.LoadUint32(&p.writeIdx)
	atomic.StoreUint32(&p.readIdx, idx)
	p.slots[idx%3].Unlock()
}

// CopyLatest copies the latest complete snapshot into dst and returns its
// sequence, 0 if nothing was published yet. Safe from any goroutine.
func (p *SnapshotPool) CopyLatest(dst *Snapshot) uint64 {
	idx := atomic.LoadUint32(&p.readIdx) % 3
	p.slots[idx].RLock()
	defer p.slots[idx].RUnlock()
	src := &p.snapshots[idx]
	src.CopyTo(dst)
	return src.Sequence
}

// Limits returns the resource limits
func (p *SnapshotPool) Limits() config.ResourceLimits {
	return p.limits
}
