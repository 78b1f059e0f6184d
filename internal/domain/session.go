package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Session is a completed meditation session, the record the streak engine counts.
type Session struct {
	ID          string
	Title       string
	Duration    string
	CompletedAt time.Time
}

// RawSession is the loosely typed shape sessions are persisted and exchanged in.
type RawSession struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Duration    string `json:"duration"`
	CompletedAt string `json:"completedAt"`
}

var (
	// ErrSessionNotFound is returned when a session cannot be located.
	ErrSessionNotFound = errors.New("session not found")
	// ErrInvalidInput marks caller supplied values that fail validation.
	ErrInvalidInput = errors.New("invalid input")
)

// InvalidRecordError reports a record whose timestamp is missing or malformed.
type InvalidRecordError struct {
	ID     string
	Reason string
}

func (e *InvalidRecordError) Error() string {
	id := e.ID
	if id == "" {
		id = "<empty>"
	}
	return fmt.Sprintf("invalid session record %s: %s", id, e.Reason)
}

// ParseSession validates a raw record and converts it into a Session.
func ParseSession(raw RawSession) (Session, error) {
	if strings.TrimSpace(raw.ID) == "" {
		return Session{}, &InvalidRecordError{ID: raw.ID, Reason: "missing id"}
	}

	value := strings.TrimSpace(raw.CompletedAt)
	if value == "" {
		return Session{}, &InvalidRecordError{ID: raw.ID, Reason: "missing completedAt"}
	}

	completedAt, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return Session{}, &InvalidRecordError{ID: raw.ID, Reason: fmt.Sprintf("malformed completedAt %q", value)}
	}

	return Session{
		ID:          raw.ID,
		Title:       raw.Title,
		Duration:    raw.Duration,
		CompletedAt: completedAt,
	}, nil
}

// ParseSessions parses every record, failing on the first invalid one.
func ParseSessions(raw []RawSession) ([]Session, error) {
	out := make([]Session, 0, len(raw))
	for _, r := range raw {
		s, err := ParseSession(r)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Raw converts the session back into its persisted shape.
func (s Session) Raw() RawSession {
	return RawSession{
		ID:          s.ID,
		Title:       s.Title,
		Duration:    s.Duration,
		CompletedAt: s.CompletedAt.UTC().Format(time.RFC3339Nano),
	}
}
