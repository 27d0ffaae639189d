package game

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

// TestEventLogWritesNDJSON verifies every accepted event lands on disk as one JSON line
func TestEventLogWritesNDJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "battle.ndjson")
	el := NewEventLog()
	if err := el.Start(path); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	for i := 0; i < 20; i++ {
		ev := NewEvent(EventTypeDamage, uint64(i), "AAA", "", DamagePayload{AttackerID: "AAA", VictimID: "BBB", Damage: i})
		ev.Sequence = uint64(i + 1)
		if !el.Emit(ev) {
			t.Fatalf("Event %d rejected", i)
		}
	}
	el.Stop()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()

	var seqs []uint64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var ev Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			t.Fatalf("Bad line %q: %v", scanner.Text(), err)
		}
		seqs = append(seqs, ev.Sequence)
	}

	if len(seqs) != 20 {
		t.Fatalf("Expected 20 lines, got %d", len(seqs))
	}
	for i, s := range seqs {
		if s != uint64(i+1) {
			t.Errorf("Line %d has sequence %d", i, s)
		}
	}
	if el.TotalCount() != 20 {
		t.Errorf("Expected total 20, got %d", el.TotalCount())
	}
}

// TestEventLogRejectsWhenStopped verifies Emit is a no-op before Start
func TestEventLogRejectsWhenStopped(t *testing.T) {
	el := NewEventLog()
	if el.Emit(NewEvent(EventTypeKill, 1, "AAA", "", nil)) {
		t.Error("Emit should fail before Start")
	}
}

// TestEventLogActorLimit verifies one noisy actor is throttled
func TestEventLogActorLimit(t *testing.T) {
	el := NewEventLog()
	if err := el.Start(""); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer el.Stop()

	accepted := 0
	for i := 0; i < MaxEventsPerActor; i++ {
		if el.Emit(NewEvent(EventTypeSkill, uint64(i), "LOUD", "", nil)) {
			accepted++
		}
	}

	if accepted >= MaxEventsPerActor {
		t.Errorf("Expected throttling, accepted all %d", accepted)
	}
	if el.DroppedCount() == 0 {
		t.Error("Expected dropped events")
	}
	if !el.Emit(NewEvent(EventTypeSkill, 1, "QUIET", "", nil)) {
		t.Error("Other actors should not be throttled")
	}
}

// TestEventLogAsSink verifies the log can be attached to a world
func TestEventLogAsSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sink.ndjson")
	el := NewEventLog()
	if err := el.Start(path); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	opts := testOptions()
	opts.Sinks = []EventSink{el}
	w, err := NewWorld([]Fighter{testFighter("AAA", 100, 10), testFighter("BBB", 100, 10)}, opts)
	if err != nil {
		t.Fatalf("NewWorld failed: %v", err)
	}
	w.FastForward()
	el.Stop()

	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		t.Errorf("Expected a non-empty log, err=%v", err)
	}
}

// TestEventTypeText verifies event types marshal by name
func TestEventTypeText(t *testing.T) {
	data, err := json.Marshal(NewEvent(EventTypeUltimate, 5, "AAA", "", nil))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if raw["type"] != "ultimate" {
		t.Errorf("Expected type \"ultimate\", got %v", raw["type"])
	}
}
