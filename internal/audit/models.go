package audit

import (
	"time"

	"github.com/google/uuid"
)

// Action names a registry change.
type Action string

const (
	ActionPersonCreated Action = "person_created"
	ActionPersonUpdated Action = "person_updated"
	ActionPersonDeleted Action = "person_deleted"
)

// Event records one change to the registry. It is transport-agnostic so
// sinks can serialize it however they like.
type Event struct {
	ID        uuid.UUID `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Action    Action    `json:"action"`
	PersonID  int64     `json:"person_id"`
	Name      string    `json:"name,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	ClientIP  string    `json:"client_ip,omitempty"`
}
