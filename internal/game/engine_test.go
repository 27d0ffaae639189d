package game

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type countingObserver struct {
	frames atomic.Int64
	ticks  atomic.Int64
}

func (o *countingObserver) ObserveFrame(stats FrameStats) {
	o.frames.Add(1)
	o.ticks.Add(int64(stats.Ticks))
}

func newTestEngine(t testing.TB, cfg EngineConfig) *Engine {
	t.Helper()
	w := newTestWorld(t,
		testFighter("AAA", 400, 12), testFighter("BBB", 400, 12),
		testFighter("CCC", 400, 12), testFighter("DDD", 400, 12))
	return NewEngine(w, cfg)
}

// TestNewEngine verifies the first snapshot is published before Start
func TestNewEngine(t *testing.T) {
	engine := newTestEngine(t, EngineConfig{})

	var snap Snapshot
	if seq := engine.LatestSnapshot(&snap); seq == 0 || len(snap.Marbles) != 4 {
		t.Fatalf("Expected an initial snapshot with 4 marbles, got seq=%d marbles=%d", seq, len(snap.Marbles))
	}
	if engine.Running() {
		t.Error("Engine should not run before Start")
	}
}

// TestEngineStartStop verifies engine can start and stop without panics
func TestEngineStartStop(t *testing.T) {
	obs := &countingObserver{}
	engine := newTestEngine(t, EngineConfig{FPS: 200, Observer: obs})

	engine.Start()
	engine.Start()
	time.Sleep(100 * time.Millisecond)

	if !engine.Running() {
		t.Error("Engine should be running")
	}

	engine.Stop()

	// Should not panic on double stop
	engine.Stop()

	if engine.Running() {
		t.Error("Engine should be stopped")
	}
	if obs.frames.Load() == 0 {
		t.Error("Observer saw no frames")
	}
	if got := engine.Status().Tick; got != obs.ticks.Load() {
		t.Errorf("Observer ticks %d disagree with world tick %d", obs.ticks.Load(), got)
	}
}

// TestEngineStopBeforeStart verifies Stop on an idle engine returns
func TestEngineStopBeforeStart(t *testing.T) {
	engine := newTestEngine(t, EngineConfig{})

	done := make(chan struct{})
	go func() {
		engine.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked on an engine that never started")
	}
}

// TestEngineSkip verifies skipping finishes the battle and publishes the result
func TestEngineSkip(t *testing.T) {
	engine := newTestEngine(t, EngineConfig{FPS: 60})

	winner, _ := engine.Skip()
	if winner == "" {
		t.Fatal("Skip returned no winner")
	}

	status := engine.Status()
	if !status.Finished || status.WinnerID != winner || status.Alive != 1 {
		t.Errorf("Unexpected status after skip: %+v", status)
	}
	var snap Snapshot
	engine.LatestSnapshot(&snap)
	if !snap.Finished || snap.WinnerID != winner || snap.WinnerName == "" {
		t.Errorf("Snapshot should carry the result, got finished=%v winner=%q", snap.Finished, snap.WinnerID)
	}
	if len(engine.Events(0)) == 0 {
		t.Error("Expected battle events")
	}
}

// TestEngineExitsAfterLinger verifies the loop ends on its own after a finished battle
func TestEngineExitsAfterLinger(t *testing.T) {
	engine := newTestEngine(t, EngineConfig{FPS: 200, Linger: 50 * time.Millisecond})
	engine.Skip()
	engine.Start()

	select {
	case <-engine.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Frame loop did not exit after the battle ended")
	}
	if engine.Running() {
		t.Error("Engine should report stopped")
	}
	engine.Stop()
}

// TestEngineSetSpeed verifies the multiplier is clamped and reported
func TestEngineSetSpeed(t *testing.T) {
	engine := newTestEngine(t, EngineConfig{})

	if got := engine.SetSpeed(3); got != 3 {
		t.Errorf("Expected speed 3, got %d", got)
	}
	if got := engine.SetSpeed(99); got != 8 {
		t.Errorf("Expected speed clamped to 8, got %d", got)
	}
	if engine.Status().Speed != 8 {
		t.Errorf("Status should report 8, got %d", engine.Status().Speed)
	}
	var snap Snapshot
	engine.LatestSnapshot(&snap)
	if snap.Speed != 8 {
		t.Errorf("Published snapshot should report 8, got %d", snap.Speed)
	}
}

// TestConcurrentAccess verifies readers and controls can run alongside the frame loop
func TestConcurrentAccess(t *testing.T) {
	engine := newTestEngine(t, EngineConfig{FPS: 500})
	engine.Start()
	defer engine.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			var snap Snapshot
			for j := 0; j < 50; j++ {
				switch j % 4 {
				case 0:
					engine.LatestSnapshot(&snap)
				case 1:
					engine.Status()
				case 2:
					engine.Events(uint64(j))
				case 3:
					engine.SetSpeed(1 + (worker+j)%8)
				}
				time.Sleep(time.Millisecond)
			}
		}(i)
	}
	wg.Wait()
}

// TestSnapshotCopiesWorld verifies a snapshot mirrors the world without sharing state
func TestSnapshotCopiesWorld(t *testing.T) {
	w := newTestWorld(t, testFighter("AAA", 100, 10), testFighter("BBB", 100, 10))
	giveSkills(w.Marble("AAA"), MustSkill("meteor"))
	w.Step()

	var snap Snapshot
	w.Snapshot(&snap)

	if snap.Tick != 1 || len(snap.Marbles) != 2 {
		t.Fatalf("Expected tick 1 with 2 marbles, got %d with %d", snap.Tick, len(snap.Marbles))
	}
	a := snap.Marbles[0]
	if a.ID != "AAA" || a.UltimateName != "Meteor" {
		t.Errorf("Unexpected marble snapshot %+v", a)
	}
	if len(a.TrailPoints()) != 2 {
		t.Errorf("Expected 2 trail points, got %d", len(a.TrailPoints()))
	}

	w.Marble("AAA").HP = 1
	if snap.Marbles[0].HP == 1 {
		t.Error("Snapshot must not alias the world")
	}
}

// TestSnapshotSkipsDeadClones verifies expired clones vanish from snapshots
func TestSnapshotSkipsDeadClones(t *testing.T) {
	w := newTestWorld(t, testFighter("AAA", 100, 10), testFighter("BBB", 100, 10))
	mirrorImageEffect(w, w.Marble("AAA"), MustSkill("mirror_image"))

	var snap Snapshot
	w.Snapshot(&snap)
	if len(snap.Marbles) != 4 {
		t.Fatalf("Expected 2 fighters and 2 clones, got %d", len(snap.Marbles))
	}

	w.despawnClones("AAA")
	w.Snapshot(&snap)
	if len(snap.Marbles) != 2 {
		t.Errorf("Expected dead clones skipped, got %d", len(snap.Marbles))
	}
}

// TestSnapshotPoolTripleBuffer verifies publish order and sequence numbers
func TestSnapshotPoolTripleBuffer(t *testing.T) {
	pool := NewSnapshotPool(testOptions().Limits)

	var last uint64
	for i := 0; i < 10; i++ {
		snap := pool.AcquireWrite()
		snap.Tick = int64(i)
		pool.PublishWrite()

		var read Snapshot
		seq := pool.CopyLatest(&read)
		if read.Tick != int64(i) {
			t.Fatalf("Expected tick %d, got %d", i, read.Tick)
		}
		if seq <= last || read.Sequence != seq {
			t.Fatalf("Sequence must increase, %d after %d", seq, last)
		}
		last = seq
	}
}

// TestLatestSnapshotIsPrivate verifies a copied frame is not overwritten by later frames
func TestLatestSnapshotIsPrivate(t *testing.T) {
	engine := newTestEngine(t, EngineConfig{})

	var snap Snapshot
	first := engine.LatestSnapshot(&snap)
	x := snap.Marbles[0].X
	for i := 0; i < 5; i++ {
		engine.frame()
	}

	if snap.Marbles[0].X != x {
		t.Error("Copied snapshot changed after later frames")
	}
	var next Snapshot
	if seq := engine.LatestSnapshot(&next); seq != first+5 {
		t.Errorf("Expected sequence %d, got %d", first+5, seq)
	}
	if next.Frame <= snap.Frame {
		t.Errorf("Expected a newer frame, got %d after %d", next.Frame, snap.Frame)
	}
}

// TestLatestSnapshotDoesNotWaitForEngineLock verifies readers copy frames while the engine is locked
func TestLatestSnapshotDoesNotWaitForEngineLock(t *testing.T) {
	engine := newTestEngine(t, EngineConfig{})
	engine.mu.Lock()
	defer engine.mu.Unlock()

	done := make(chan uint64)
	go func() {
		var snap Snapshot
		done <- engine.LatestSnapshot(&snap)
	}()
	select {
	case seq := <-done:
		if seq == 0 {
			t.Error("Expected the initial snapshot")
		}
	case <-time.After(time.Second):
		t.Fatal("LatestSnapshot blocked on the engine lock")
	}
}

// =============================================================================
// STRESS: full battles through the real frame loop
// Run with: go test -v -run=TestStress ./internal/game/...
// =============================================================================

func TestStress_FullBattles(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping stress test in short mode")
	}

	ultimates := SkillIDs(SlotUltimate)
	for seed := int64(1); seed <= 3; seed++ {
		var fighters []Fighter
		for i := 0; i < 24; i++ {
			f := testFighter(fmt.Sprintf("F%02d", i), 60+i*5, 8+float64(i%5))
			f.Skills = []Skill{MustSkill(ultimates[i%len(ultimates)])}
			fighters = append(fighters, f)
		}
		opts := testOptions()
		opts.Seed = seed
		finished := 0
		opts.OnFinish = func(string) { finished++ }
		w, err := NewWorld(fighters, opts)
		if err != nil {
			t.Fatalf("NewWorld failed: %v", err)
		}
		w.SetSpeed(8)

		start := time.Now()
		frames := 0
		for !w.Finished() && frames < 200_000 {
			w.Frame()
			frames++
		}

		t.Logf("Seed %d: %d frames, %d ticks, winner %s in %v", seed, frames, w.Tick(), w.Winner(), time.Since(start))
		if !w.Finished() {
			w.FastForward()
		}
		if finished != 1 {
			t.Errorf("Seed %d: OnFinish fired %d times", seed, finished)
		}
	}
}
