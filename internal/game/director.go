package game

import (
	"context"
	"log"

	"github.com/looplab/fsm"
)

// Director states
const (
	DirectorIdle      = "idle"
	DirectorFollowing = "following"
	DirectorSlowMo    = "slowmo"
	DirectorCutIn     = "cutin"
)

// Camera easing
const (
	CameraLerp      = 0.08
	ZoomLerp        = 0.06
	ZoomFollowing   = 1.0
	ZoomSlowMo      = 1.35
	ZoomCutIn       = 1.6
	KillBannerTicks = 240 // Frames a kill stays in the feed
)

// Camera holds presentation state. The renderer reads it; gameplay never does.
type Camera struct {
	X, Y       float64
	Zoom       float64
	TargetX    float64
	TargetY    float64
	TargetZoom float64
}

// CutIn is a full-freeze cinematic announcing an ultimate.
type CutIn struct {
	SubjectID  string `json:"subjectId"`
	Name       string `json:"name"`
	Portrait   string `json:"portrait"`
	SkillID    string `json:"skillId"`
	Ability    string `json:"ability"`
	Color      string `json:"color"`
	StartFrame int64  `json:"startFrame"`
	Duration   int64  `json:"duration"`
}

// Progress returns 0..1 through the cut-in at frame.
func (c CutIn) Progress(frame int64) float64 {
	if c.Duration <= 0 {
		return 1
	}
	p := float64(frame-c.StartFrame) / float64(c.Duration)
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// KillEntry is one line of the rolling kill feed.
type KillEntry struct {
	KillerID    string `json:"killerId"`
	KillerName  string `json:"killerName"`
	KillerColor string `json:"killerColor"`
	VictimID    string `json:"victimId"`
	VictimName  string `json:"victimName"`
	VictimColor string `json:"victimColor"`
	Frame       int64  `json:"frame"`
}

// Director drives the camera through Idle, Following, SlowMo and CutIn.
// Cut-in requests queue FIFO; a cut-in suspends the simulation entirely.
type Director struct {
	fsm    *fsm.FSM
	Camera Camera

	cutIn    *CutIn
	queue    []CutIn
	slowMo   int // Remaining slow-mo frames
	killFeed []KillEntry

	slowMoStride int
	slowMoFrames int
	cutInFrames  int64
	feedSize     int
}

// NewDirector creates a director in the idle state.
func NewDirector(slowMoStride, slowMoFrames, cutInFrames, feedSize int) *Director {
	if slowMoStride < 1 {
		slowMoStride = 1
	}
	d := &Director{
		Camera:       Camera{Zoom: ZoomFollowing, TargetZoom: ZoomFollowing},
		slowMoStride: slowMoStride,
		slowMoFrames: slowMoFrames,
		cutInFrames:  int64(cutInFrames),
		feedSize:     feedSize,
	}
	d.fsm = fsm.NewFSM(
		DirectorIdle,
		fsm.Events{
			{Name: "follow", Src: []string{DirectorIdle}, Dst: DirectorFollowing},
			{Name: "impact", Src: []string{DirectorFollowing}, Dst: DirectorSlowMo},
			{Name: "calm", Src: []string{DirectorSlowMo}, Dst: DirectorFollowing},
			{Name: "ultimate", Src: []string{DirectorIdle, DirectorFollowing, DirectorSlowMo}, Dst: DirectorCutIn},
			{Name: "resume", Src: []string{DirectorCutIn}, Dst: DirectorFollowing},
			{Name: "reset", Src: []string{DirectorFollowing, DirectorSlowMo, DirectorCutIn}, Dst: DirectorIdle},
		},
		fsm.Callbacks{
			"enter_" + DirectorSlowMo: func(_ context.Context, _ *fsm.Event) {
				d.Camera.TargetZoom = ZoomSlowMo
			},
			"enter_" + DirectorCutIn: func(_ context.Context, _ *fsm.Event) {
				d.Camera.TargetZoom = ZoomCutIn
			},
			"enter_" + DirectorFollowing: func(_ context.Context, _ *fsm.Event) {
				d.Camera.TargetZoom = ZoomFollowing
			},
		},
	)
	return d
}

// State returns the current director state.
func (d *Director) State() string {
	return d.fsm.Current()
}

func (d *Director) fire(event string) {
	if !d.fsm.Can(event) {
		return
	}
	if err := d.fsm.Event(context.Background(), event); err != nil {
		log.Printf("⚠️ Director %s -> %s failed: %v", d.fsm.Current(), event, err)
	}
}

// Start moves from idle to following.
func (d *Director) Start() {
	d.fire("follow")
}

// Reset returns to idle and drops every pending presentation request.
func (d *Director) Reset() {
	d.fire("reset")
	d.cutIn = nil
	d.queue = d.queue[:0]
	d.slowMo = 0
}

// Impact starts (or extends) slow motion focused on (x, y). Ignored while
// a cut-in is playing.
func (d *Director) Impact(x, y float64) {
	if d.fsm.Is(DirectorCutIn) || d.fsm.Is(DirectorIdle) {
		return
	}
	d.slowMo = d.slowMoFrames
	d.Camera.TargetX, d.Camera.TargetY = x, y
	d.fire("impact")
}

// RequestCutIn queues a cut-in. It starts on the next Update.
func (d *Director) RequestCutIn(c CutIn) {
	c.Duration = d.cutInFrames
	d.queue = append(d.queue, c)
}

// Pending reports whether a cut-in is playing or queued.
func (d *Director) Pending() bool {
	return d.cutIn != nil || len(d.queue) > 0
}

// ActiveCutIn returns the cut-in currently playing.
func (d *Director) ActiveCutIn() (CutIn, bool) {
	if d.cutIn == nil {
		return CutIn{}, false
	}
	return *d.cutIn, true
}

// SlowMoRemaining returns the frames of slow motion left.
func (d *Director) SlowMoRemaining() int {
	return d.slowMo
}

// Update advances the director by one frame. When a cut-in ends, onEnd is
// called with it before the next queued one starts. valid filters queued
// cut-ins whose subject can no longer act.
func (d *Director) Update(frame int64, valid func(CutIn) bool, onEnd func(CutIn)) {
	if d.cutIn != nil && frame >= d.cutIn.StartFrame+d.cutIn.Duration {
		ended := *d.cutIn
		d.cutIn = nil
		d.fire("resume")
		onEnd(ended)
	}

	for d.cutIn == nil && len(d.queue) > 0 {
		next := d.queue[0]
		copy(d.queue, d.queue[1:])
		d.queue = d.queue[:len(d.queue)-1]
		if valid != nil && !valid(next) {
			onEnd(next)
			continue
		}
		next.StartFrame = frame
		d.cutIn = &next
		d.slowMo = 0
		d.fire("ultimate")
	}

	if d.fsm.Is(DirectorSlowMo) {
		d.slowMo--
		if d.slowMo <= 0 {
			d.slowMo = 0
			d.fire("calm")
		}
	}

	// Expire old kill banners
	n := 0
	for _, k := range d.killFeed {
		if frame-k.Frame < KillBannerTicks {
			d.killFeed[n] = k
			n++
		}
	}
	d.killFeed = d.killFeed[:n]
}

// TicksThisFrame returns how many simulation ticks run this frame: none
// during a cut-in, one every slowMoStride frames in slow motion, otherwise
// the speed multiplier.
func (d *Director) TicksThisFrame(frame int64, speed int) int {
	switch d.fsm.Current() {
	case DirectorCutIn:
		return 0
	case DirectorSlowMo:
		if frame%int64(d.slowMoStride) == 0 {
			return 1
		}
		return 0
	default:
		return speed
	}
}

// Follow eases the camera toward its focus. Outside slow-mo and cut-ins
// the focus is (fx, fy), usually the centroid of the survivors.
func (d *Director) Follow(fx, fy float64, subject func(id string) (float64, float64, bool)) {
	switch d.fsm.Current() {
	case DirectorCutIn:
		if d.cutIn == nil {
			break
		}
		if x, y, ok := subject(d.cutIn.SubjectID); ok {
			d.Camera.TargetX, d.Camera.TargetY = x, y
		}
	case DirectorSlowMo:
		// Keep the impact point
	default:
		d.Camera.TargetX, d.Camera.TargetY = fx, fy
	}
	d.Camera.X += (d.Camera.TargetX - d.Camera.X) * CameraLerp
	d.Camera.Y += (d.Camera.TargetY - d.Camera.Y) * CameraLerp
	d.Camera.Zoom += (d.Camera.TargetZoom - d.Camera.Zoom) * ZoomLerp
}

// PushKill appends to the kill feed, dropping the oldest entry when full.
func (d *Director) PushKill(k KillEntry) {
	if d.feedSize <= 0 {
		return
	}
	if len(d.killFeed) >= d.feedSize {
		copy(d.killFeed, d.killFeed[1:])
		d.killFeed = d.killFeed[:len(d.killFeed)-1]
	}
	d.killFeed = append(d.killFeed, k)
}

// KillFeed returns the current kill feed, oldest first.
func (d *Director) KillFeed() []KillEntry {
	return d.killFeed
}

// Flush drops the active and queued cut-ins and returns them in order.
// Used when skipping to the end so deferred ultimates still resolve.
func (d *Director) Flush() []CutIn {
	var out []CutIn
	if d.cutIn != nil {
		out = append(out, *d.cutIn)
		d.cutIn = nil
		d.fire("resume")
	}
	out = append(out, d.queue...)
	d.queue = d.queue[:0]
	if d.fsm.Is(DirectorSlowMo) {
		d.slowMo = 0
		d.fire("calm")
	}
	return out
}
