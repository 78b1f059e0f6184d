// Package events defines the payloads published when the session history changes.
package events

import "time"

// Event types carried in the outbox and the event_type header.
const (
	TypeSessionCompleted = "session.completed"
	TypeSessionDeleted   = "session.deleted"
)

// TopicSessionEvents is the default topic for session events.
const TopicSessionEvents = "session_events"

// Record headers set by the publisher and read by consumers.
const (
	HeaderEventType     = "event_type"
	HeaderSchemaSubject = "schema_subject"
)

// Known reports whether eventType is one this package defines.
func Known(eventType string) bool {
	switch eventType {
	case TypeSessionCompleted, TypeSessionDeleted:
		return true
	}
	return false
}

// SessionCompleted is emitted when a meditation session is recorded.
type SessionCompleted struct {
	SessionID   string    `json:"session_id"`
	Title       string    `json:"title"`
	Duration    string    `json:"duration"`
	CompletedAt time.Time `json:"completed_at"`
}

// SessionDeleted is emitted when a session is removed from the history.
type SessionDeleted struct {
	SessionID string    `json:"session_id"`
	DeletedAt time.Time `json:"deleted_at"`
}
