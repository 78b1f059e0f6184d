package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PersistenceHandler appends consumed session events to session_event_log.
type PersistenceHandler struct {
	pool *pgxpool.Pool
}

// NewPersistenceHandler constructs a handler backed by the provided pool.
func NewPersistenceHandler(pool *pgxpool.Pool) *PersistenceHandler {
	return &PersistenceHandler{pool: pool}
}

type sessionEnvelope struct {
	SessionID   string    `json:"session_id"`
	CompletedAt time.Time `json:"completed_at"`
	DeletedAt   time.Time `json:"deleted_at"`
}

// Handle stores the event once per session and event type; redeliveries are ignored.
func (h *PersistenceHandler) Handle(ctx context.Context, msg Message) error {
	var env sessionEnvelope
	if err := json.Unmarshal(msg.Payload, &env); err != nil {
		return fmt.Errorf("decode session event: %w", err)
	}
	if env.SessionID == "" {
		return fmt.Errorf("session event %s without session_id", msg.EventType)
	}

	occurredAt := env.CompletedAt
	if occurredAt.IsZero() {
		occurredAt = env.DeletedAt
	}
	if occurredAt.IsZero() {
		occurredAt = msg.Timestamp
	}

	_, err := h.pool.Exec(ctx,
		`INSERT INTO session_event_log (event_key, session_id, event_type, payload, occurred_at)
         VALUES ($1,$2,$3,$4,$5)
         ON CONFLICT (event_key) DO NOTHING`,
		env.SessionID+":"+msg.EventType,
		env.SessionID,
		msg.EventType,
		msg.Payload,
		occurredAt.UTC(),
	)
	return err
}
