package game

import (
	"encoding/json"
	"time"
)

// EventType enum for battle event classification
type EventType uint8

const (
	EventTypeUnknown EventType = iota
	EventTypeStart
	EventTypeCollision
	EventTypeDamage
	EventTypeCrit
	EventTypeSkill
	EventTypeThreshold
	EventTypeKill
	EventTypeUltimate
	EventTypeCutIn
	EventTypeSlowMo
	EventTypeFinish
)

// EventVersion for backwards compatibility of the NDJSON log
const EventVersion uint8 = 1

// Event is one entry of the battle log
type Event struct {
	Version   uint8           `json:"version"`
	Type      EventType       `json:"type"`
	Timestamp int64           `json:"timestamp"` // Unix nano
	Sequence  uint64          `json:"sequence"`  // Monotonic per battle
	TickNum   uint64          `json:"tickNum"`   // Simulation tick this occurred in
	ActorID   string          `json:"actorId"`   // Source marble (for rate limiting)
	Message   string          `json:"message"`   // Human-readable line for the battle log UI
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// String returns human-readable event type
func (t EventType) String() string {
	switch t {
	case EventTypeStart:
		return "start"
	case EventTypeCollision:
		return "collision"
	case EventTypeDamage:
		return "damage"
	case EventTypeCrit:
		return "crit"
	case EventTypeSkill:
		return "skill"
	case EventTypeThreshold:
		return "threshold"
	case EventTypeKill:
		return "kill"
	case EventTypeUltimate:
		return "ultimate"
	case EventTypeCutIn:
		return "cutin"
	case EventTypeSlowMo:
		return "slowmo"
	case EventTypeFinish:
		return "finish"
	default:
		return "unknown"
	}
}

// MarshalText lets the NDJSON log and the HTTP API print the type name.
func (t EventType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText parses a type name written by MarshalText.
func (t *EventType) UnmarshalText(text []byte) error {
	for k := EventTypeStart; k <= EventTypeFinish; k++ {
		if k.String() == string(text) {
			*t = k
			return nil
		}
	}
	*t = EventTypeUnknown
	return nil
}

// Typed payloads for different event types

// StartPayload lists the battle participants
type StartPayload struct {
	Fighters []string `json:"fighters"`
	Seed     int64    `json:"seed"`
	Width    int      `json:"width"`
	Height   int      `json:"height"`
}

// DamagePayload contains damage event details
type DamagePayload struct {
	AttackerID string   `json:"attackerId"`
	VictimID   string   `json:"victimId"`
	Damage     int      `json:"damage"`
	VictimHP   int      `json:"victimHp"`
	Crit       bool     `json:"crit"`
	Skills     []string `json:"skills,omitempty"`
	Cause      string   `json:"cause"` // collision, projectile, reflect, aura, ultimate
}

// KillPayload contains kill event details
type KillPayload struct {
	KillerID    string `json:"killerId"`
	VictimID    string `json:"victimId"`
	KillerKills int    `json:"killerKills"`
	Absorbed    int    `json:"absorbed"`
	KillerMaxHP int    `json:"killerMaxHp"`
}

// SkillPayload contains a skill activation
type SkillPayload struct {
	ActorID string `json:"actorId"`
	SkillID string `json:"skillId"`
	Trigger string `json:"trigger"`
	Amount  int    `json:"amount,omitempty"`
}

// UltimatePayload contains an ultimate trigger or resolution
type UltimatePayload struct {
	ActorID  string `json:"actorId"`
	SkillID  string `json:"skillId"`
	Resolved bool   `json:"resolved"`
	Fizzled  bool   `json:"fizzled,omitempty"`
}

// FinishPayload contains the battle result
type FinishPayload struct {
	WinnerID    string `json:"winnerId"`
	Ticks       int64  `json:"ticks"`
	SuddenDeath bool   `json:"suddenDeath"`
}

// EncodePayload marshals a payload to JSON bytes
func EncodePayload(payload interface{}) []byte {
	if payload == nil {
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return data
}

// NewEvent creates a new event with the current timestamp
func NewEvent(eventType EventType, tickNum uint64, actorID, message string, payload interface{}) Event {
	return Event{
		Version:   EventVersion,
		Type:      eventType,
		Timestamp: time.Now().UnixNano(),
		TickNum:   tickNum,
		ActorID:   actorID,
		Message:   message,
		Payload:   EncodePayload(payload),
	}
}

// EventSink receives every battle event as it is recorded.
// Emit returns false when the sink dropped the event.
type EventSink interface {
	Emit(event Event) bool
}
