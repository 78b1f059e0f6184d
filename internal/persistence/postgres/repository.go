// Package postgres persists sessions in Postgres and records outbox events in the same transaction.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scottdixon-github/App-Garden/internal/domain"
	"github.com/scottdixon-github/App-Garden/internal/events"
	"github.com/scottdixon-github/App-Garden/internal/observability"
)

const aggregateSession = "session"

// Repository provides Postgres-backed persistence for sessions and outbox events.
type Repository struct {
	pool    *pgxpool.Pool
	catalog map[string]EventMetadata
	clock   func() time.Time
}

// NewRepository constructs a Repository publishing session events to topic.
func NewRepository(pool *pgxpool.Pool, topic string) *Repository {
	if topic == "" {
		topic = events.TopicSessionEvents
	}
	return &Repository{
		pool:    pool,
		catalog: eventCatalog(topic),
		clock:   time.Now,
	}
}

const selectSessions = `SELECT session_id, title, duration, completed_at FROM sessions`

// LoadAll returns every session in insertion order.
func (r *Repository) LoadAll(ctx context.Context) ([]domain.Session, error) {
	rows, err := r.pool.Query(ctx, selectSessions+` ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	return collectSessions(rows)
}

// Append persists the session with a session.completed outbox row and returns the full list.
func (r *Repository) Append(ctx context.Context, session domain.Session) (sessions []domain.Session, err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	_, err = tx.Exec(ctx,
		`INSERT INTO sessions (session_id, title, duration, completed_at) VALUES ($1,$2,$3,$4)`,
		session.ID, session.Title, session.Duration, session.CompletedAt.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}

	if err = r.insertOutbox(ctx, tx, session.ID, events.TypeSessionCompleted, events.SessionCompleted{
		SessionID:   session.ID,
		Title:       session.Title,
		Duration:    session.Duration,
		CompletedAt: session.CompletedAt.UTC(),
	}); err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, selectSessions+` ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	sessions, err = collectSessions(rows)
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, err
	}
	observability.RecordSessionPersisted(session.CompletedAt)
	return sessions, nil
}

// Get retrieves a session by ID, returning nil when absent.
func (r *Repository) Get(ctx context.Context, id string) (*domain.Session, error) {
	row := r.pool.QueryRow(ctx, selectSessions+` WHERE session_id=$1`, id)
	var session domain.Session
	if err := row.Scan(&session.ID, &session.Title, &session.Duration, &session.CompletedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

// Update rewrites title and duration.
func (r *Repository) Update(ctx context.Context, session domain.Session) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE sessions SET title=$1, duration=$2, updated_at=NOW() WHERE session_id=$3`,
		session.Title, session.Duration, session.ID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

// Delete removes a session and records a session.deleted outbox row.
func (r *Repository) Delete(ctx context.Context, id string) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	tag, err := tx.Exec(ctx, `DELETE FROM sessions WHERE session_id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		err = domain.ErrSessionNotFound
		return err
	}

	if err = r.insertOutbox(ctx, tx, id, events.TypeSessionDeleted, events.SessionDeleted{
		SessionID: id,
		DeletedAt: r.clock().UTC(),
	}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// ListPage returns sessions newest first using keyset pagination.
func (r *Repository) ListPage(ctx context.Context, cursor *domain.Cursor, limit int) ([]domain.Session, *domain.Cursor, error) {
	args := []interface{}{limit}
	query := selectSessions
	if cursor != nil {
		query += ` WHERE (completed_at, session_id) < ($2, $3)`
		args = append(args, cursor.CompletedAt, cursor.ID)
	}
	query += ` ORDER BY completed_at DESC, session_id DESC LIMIT $1`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	results, err := collectSessions(rows)
	if err != nil {
		return nil, nil, err
	}

	var next *domain.Cursor
	if len(results) == limit {
		last := results[len(results)-1]
		next = &domain.Cursor{CompletedAt: last.CompletedAt, ID: last.ID}
	}
	return results, next, nil
}

func (r *Repository) insertOutbox(ctx context.Context, tx pgx.Tx, sessionID, eventType string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	meta, ok := r.catalog[eventType]
	if !ok {
		return fmt.Errorf("unknown event type: %s", eventType)
	}

	const stmt = `INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`

	_, err = tx.Exec(ctx, stmt,
		aggregateSession,
		sessionID,
		eventType,
		meta.Topic,
		meta.SchemaSubject,
		sessionID,
		body,
		fmt.Sprintf("%s:%s", sessionID, eventType),
	)
	return err
}

func collectSessions(rows pgx.Rows) ([]domain.Session, error) {
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		var s domain.Session
		if err := rows.Scan(&s.ID, &s.Title, &s.Duration, &s.CompletedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	Topic         string
	SchemaSubject string
}

func eventCatalog(topic string) map[string]EventMetadata {
	subject := topic + "-value"
	return map[string]EventMetadata{
		events.TypeSessionCompleted: {Topic: topic, SchemaSubject: subject},
		events.TypeSessionDeleted:   {Topic: topic, SchemaSubject: subject},
	}
}
