package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Entity kinds carried by a ChangeMessage.
const (
	EntityProject   = "project"
	EntityTimeEntry = "time_entry"
)

// Actions carried by a ChangeMessage.
const (
	ActionCreated = "created"
	ActionDeleted = "deleted"
)

// ChangeMessage announces that a project or time entry was created or deleted.
// It carries just enough for a consumer to find the affected week; the consumer
// reads current state from the store.
type ChangeMessage struct {
	Entity    string     `json:"entity"`
	Action    string     `json:"action"`
	ID        string     `json:"id"`
	ProjectID string     `json:"projectId,omitempty"`
	StartTime *time.Time `json:"startTime,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// NewChangeMessage creates a message stamped with the current time.
func NewChangeMessage(entity, action, id, projectID string, start *time.Time) *ChangeMessage {
	return &ChangeMessage{
		Entity:    entity,
		Action:    action,
		ID:        id,
		ProjectID: projectID,
		StartTime: start,
		Timestamp: time.Now(),
	}
}

// Validate rejects messages a consumer cannot act on.
func (m *ChangeMessage) Validate() error {
	switch m.Entity {
	case EntityProject, EntityTimeEntry:
	default:
		return fmt.Errorf("unknown entity %q", m.Entity)
	}
	switch m.Action {
	case ActionCreated, ActionDeleted:
	default:
		return fmt.Errorf("unknown action %q", m.Action)
	}
	if m.ID == "" {
		return fmt.Errorf("message has no id")
	}
	return nil
}

// ToJSON converts the message to JSON bytes
func (m *ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ChangeMessageFromJSON decodes and validates a message.
func ChangeMessageFromJSON(data []byte) (*ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
