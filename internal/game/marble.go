package game

import "math"

// Tuning constants shared by the physics stepper and the combat resolver.
const (
	TrailLength = 10 // Positions kept per marble for motion trails

	RadiusBase      = 6.0 // Radius = RadiusBase + RadiusPerSqrtHP*sqrt(maxHp)
	RadiusPerSqrtHP = 1.6

	GaugeMax       = 100.0
	GaugePerTick   = 0.05
	GaugeOnHit     = 3.0
	GaugeOnCrit    = 4.0 // Added on top of GaugeOnHit
	GaugeOnDamaged = 1.5
	GaugeOnKill    = 30.0

	RageAttackMul   = 1.3
	RageSpeedMul    = 1.25
	SlowSpeedMul    = 0.55
	DebuffAttackMul = 0.7
	FlashTicks      = 8
)

// Point is a 2D position.
type Point struct {
	X, Y float64
}

// Marble is the live per-battle entity derived from a Fighter.
// All fields are owned by the World; nothing outside the game package
// mutates a Marble during a battle.
type Marble struct {
	index int // Position in World.marbles, stable for the whole battle

	ID        string
	FighterID string // Owning fighter; equals ID except for clones
	Name      string
	Color     string
	Portrait  string
	Class     string
	Element   Element
	Skills    []Skill
	Strategy  TargetStrategy

	// Combat stats (Attack changes with stat creep)
	Attack     float64
	baseAttack float64
	Speed      float64
	CritChance float64
	Defense    float64

	// Kinematics
	X, Y       float64
	VX, VY     float64
	BaseRadius float64
	Radius     float64
	Mass       float64 // Always equal to MaxHP

	HP, MaxHP int
	Alive     bool

	// Targeting
	TargetID   string
	RetargetAt int64

	// Status
	Rage              bool
	FlashTimer        int
	SlowTimer         int
	FreezeTimer       int
	AttackDebuffTimer int
	Buffs             []Buff // At most one per source skill

	// Ultimate
	Gauge           float64
	UltimateFired   bool
	UltimatePending bool

	// Clones
	IsClone   bool
	OwnerID   string
	CloneLife int

	// Bookkeeping
	Kills       int
	DamageDealt int
	Eliminated  int // Elimination order, 1 for the first fighter out; 0 while alive
	hitsTaken   int
	creep       int
	thresholds  []bool // Parallel to Skills; set once a threshold skill fired

	Trail      [TrailLength]Point
	TrailIdx   int
	TrailCount int
}

// newMarble derives a live marble from a fighter.
func newMarble(f Fighter, index int, x, y float64) *Marble {
	skills := make([]Skill, len(f.Skills))
	copy(skills, f.Skills)

	r := RadiusForHP(f.Stats.MaxHP)
	return &Marble{
		index:      index,
		ID:         f.ID,
		FighterID:  f.ID,
		Name:       f.Name,
		Color:      f.Color,
		Portrait:   f.Portrait,
		Class:      f.Class,
		Element:    f.Element,
		Skills:     skills,
		Strategy:   StrategyForClass(f.Class),
		Attack:     f.Stats.Attack,
		baseAttack: f.Stats.Attack,
		Speed:      f.Stats.Speed,
		CritChance: f.Stats.CritChance,
		Defense:    f.Stats.Defense,
		X:          x,
		Y:          y,
		BaseRadius: r,
		Radius:     r,
		Mass:       float64(f.Stats.MaxHP),
		HP:         f.Stats.HP,
		MaxHP:      f.Stats.MaxHP,
		Alive:      true,
		thresholds: make([]bool, len(skills)),
	}
}

// RadiusForHP returns the starting radius for a given max hp.
func RadiusForHP(maxHP int) float64 {
	return RadiusBase + RadiusPerSqrtHP*math.Sqrt(float64(maxHP))
}

// HPRatio returns current hp as a fraction of max hp.
func (m *Marble) HPRatio() float64 {
	if m.MaxHP <= 0 {
		return 0
	}
	return float64(m.HP) / float64(m.MaxHP)
}

// TeamID groups a fighter with its clones so they never target each other.
func (m *Marble) TeamID() string {
	if m.IsClone {
		return m.OwnerID
	}
	return m.ID
}

// Ultimate returns the marble's ultimate skill, if it has one.
func (m *Marble) Ultimate() (Skill, bool) {
	for _, s := range m.Skills {
		if s.Trigger == TriggerGauge {
			return s, true
		}
	}
	return Skill{}, false
}

// HasSkill reports whether the marble carries the given skill.
func (m *Marble) HasSkill(id string) bool {
	for _, s := range m.Skills {
		if s.ID == id {
			return true
		}
	}
	return false
}

// attackMultiplier folds rage, buff and debuff into one factor.
func (m *Marble) attackMultiplier() float64 {
	mul := 1.0
	if m.Rage {
		mul *= RageAttackMul
	}
	for _, b := range m.Buffs {
		mul *= b.Attack
	}
	if m.AttackDebuffTimer > 0 {
		mul *= DebuffAttackMul
	}
	return mul
}

// heal restores hp up to max and returns the amount actually healed.
func (m *Marble) heal(amount int) int {
	if !m.Alive || amount <= 0 {
		return 0
	}
	if m.HP+amount > m.MaxHP {
		amount = m.MaxHP - m.HP
	}
	m.HP += amount
	return amount
}

// pushTrail records the current position in the trail ring buffer.
func (m *Marble) pushTrail() {
	m.Trail[m.TrailIdx] = Point{X: m.X, Y: m.Y}
	m.TrailIdx = (m.TrailIdx + 1) % TrailLength
	if m.TrailCount < TrailLength {
		m.TrailCount++
	}
}

// TrailPoints returns valid trail points, oldest first.
func (m *Marble) TrailPoints() []Point {
	if m.TrailCount == 0 {
		return nil
	}
	out := make([]Point, m.TrailCount)
	start := m.TrailIdx - m.TrailCount
	if start < 0 {
		start += TrailLength
	}
	for i := 0; i < m.TrailCount; i++ {
		out[i] = m.Trail[(start+i)%TrailLength]
	}
	return out
}

// tickTimers decrements every status timer by one tick.
func (m *Marble) tickTimers() {
	if m.FlashTimer > 0 {
		m.FlashTimer--
	}
	if m.SlowTimer > 0 {
		m.SlowTimer--
	}
	if m.FreezeTimer > 0 {
		m.FreezeTimer--
	}
	if m.AttackDebuffTimer > 0 {
		m.AttackDebuffTimer--
	}
	live := m.Buffs[:0]
	for _, b := range m.Buffs {
		b.Timer--
		if b.Timer > 0 {
			live = append(live, b)
		}
	}
	m.Buffs = live
}

// Buff is a timed self-buff from one skill. Buffs from different sources
// stack multiplicatively; recasting the same source refreshes it.
type Buff struct {
	Source string
	Timer  int
	Attack float64 // Attack multiplier
	Speed  float64 // Speed cap multiplier
}

// addBuff applies or refreshes the buff from source.
func (m *Marble) addBuff(source string, ticks int, attack, speed float64) {
	if ticks <= 0 {
		return
	}
	b := Buff{Source: source, Timer: ticks, Attack: attack, Speed: speed}
	for i := range m.Buffs {
		if m.Buffs[i].Source == source {
			m.Buffs[i] = b
			return
		}
	}
	m.Buffs = append(m.Buffs, b)
}

// BuffTicks returns the remaining ticks of the buff from source.
func (m *Marble) BuffTicks(source string) int {
	for _, b := range m.Buffs {
		if b.Source == source {
			return b.Timer
		}
	}
	return 0
}

// Buffed reports whether any self-buff is active.
func (m *Marble) Buffed() bool { return len(m.Buffs) > 0 }
