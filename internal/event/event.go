package event

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeLotCreated     Type = "lot.created"
	TypeLotUpdated     Type = "lot.updated"
	TypeLotDeactivated Type = "lot.deactivated"

	TypeUserRegistered    Type = "user.registered"
	TypeUserStatusChanged Type = "user.status_changed"
	TypePasswordChanged   Type = "user.password_changed"

	TypeTokenRotated Type = "token.rotated"
	TypeTokenRevoked Type = "token.revoked"
)

type Event struct {
	ID        string `json:"id"`
	Type      Type   `json:"type"`
	Payload   any    `json:"payload"`
	Timestamp string `json:"timestamp"`
	ActorID   string `json:"actor_id,omitempty"` // Who triggered the event
}

// New stamps an event with a fresh id and the current UTC time.
func New(t Type, actorID string, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		Payload:   payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		ActorID:   actorID,
	}
}

// Public reports whether the event may be pushed to unauthenticated
// websocket listeners.
func (t Type) Public() bool {
	switch t {
	case TypeLotCreated, TypeLotUpdated, TypeLotDeactivated:
		return true
	default:
		return false
	}
}

type Bus interface {
	Publish(e Event)
	Subscribe() (<-chan Event, func()) // Returns channel and unsubscribe function
}
