package world

import (
	"encoding/json"
	"time"
)

// EventType enum for event classification
type EventType uint8

const (
	EventTypeUnknown EventType = iota
	EventTypeStep              // Step boundary with scene seed
	EventTypeContact
	EventTypeWallBounce
)

// EventVersion for backwards compatibility in replay
const EventVersion uint8 = 1

// Event is the core event structure for the event log
type Event struct {
	Version   uint8     `json:"version"`   // Schema version
	Type      EventType `json:"type"`      // Event type
	Timestamp int64     `json:"timestamp"` // Unix nano
	Sequence  uint64    `json:"sequence"`  // Monotonic sequence
	StepNum   uint64    `json:"stepNum"`   // World step this occurred in
	Key       string    `json:"key"`       // Rate limiting key, e.g. a body pair
	Payload   []byte    `json:"payload"`   // JSON-encoded payload
}

// String returns human-readable event type
func (t EventType) String() string {
	switch t {
	case EventTypeStep:
		return "step"
	case EventTypeContact:
		return "contact"
	case EventTypeWallBounce:
		return "wall_bounce"
	default:
		return "unknown"
	}
}

// StepPayload contains step boundary information for replay
type StepPayload struct {
	Seed         int64   `json:"seed"`
	FeatureCount int     `json:"featureCount"`
	StepSize     float64 `json:"stepSize"`
	Advanced     float64 `json:"advanced"`
}

// ContactPayload describes one reported time of impact
type ContactPayload struct {
	FeatureA int     `json:"featureA"`
	FeatureB int     `json:"featureB"`
	BodyA    int     `json:"bodyA"`
	BodyB    int     `json:"bodyB"`
	Time     float64 `json:"time"`
	KindA    string  `json:"kindA"`
	KindB    string  `json:"kindB"`
}

// WallBouncePayload records a body reflected at the arena bounds
type WallBouncePayload struct {
	BodyID   int        `json:"bodyId"`
	Velocity [3]float64 `json:"velocity"`
}

// EncodePayload marshals a payload to JSON bytes
func EncodePayload(payload interface{}) []byte {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return data
}

// NewEvent creates a new event with the current timestamp
func NewEvent(eventType EventType, stepNum uint64, key string, payload interface{}) Event {
	return Event{
		Version:   EventVersion,
		Type:      eventType,
		Timestamp: time.Now().UnixNano(),
		StepNum:   stepNum,
		Key:       key,
		Payload:   EncodePayload(payload),
	}
}
