package audit

import (
	"errors"
	"time"
)

// Result is the outcome of an audited action.
type Result string

const (
	ResultSuccess Result = "success"
	ResultFailure Result = "failure"
	ResultError   Result = "error"
)

// Event is one audit record, e.g. a note on a subscription or order.
type Event struct {
	ID         string         `json:"id"`
	ActorID    string         `json:"actor_id,omitempty"`
	Action     string         `json:"action"`
	Resource   string         `json:"resource,omitempty"`
	ResourceID string         `json:"resource_id,omitempty"`
	Message    string         `json:"message,omitempty"`
	Result     Result         `json:"result"`
	Error      string         `json:"error,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Validate checks the required fields.
func (e *Event) Validate() error {
	if e.Action == "" {
		return errors.Join(ErrEventValidation, errors.New("action is required"))
	}
	return nil
}

// EventOption customizes an event before it is stored.
type EventOption func(*Event)

// WithResource sets the resource type and id.
func WithResource(resource, id string) EventOption {
	return func(e *Event) {
		e.Resource = resource
		e.ResourceID = id
	}
}

// WithMessage sets a human readable message.
func WithMessage(msg string) EventOption {
	return func(e *Event) { e.Message = msg }
}

// WithMetadata adds a metadata entry.
func WithMetadata(key string, value any) EventOption {
	return func(e *Event) {
		if e.Metadata == nil {
			e.Metadata = make(map[string]any)
		}
		e.Metadata[key] = value
	}
}
