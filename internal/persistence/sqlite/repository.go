// Package sqlite stores sessions and garden documents in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/scottdixon-github/App-Garden/internal/domain"
	"github.com/scottdixon-github/App-Garden/internal/persistence/kv"
)

// SessionRepository implements domain.SessionRepository on database/sql.
// The driver is registered by the caller.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository constructs a repository over db.
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// InitTable creates the tables used by this package.
func (r *SessionRepository) InitTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS meditation_sessions (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			duration TEXT NOT NULL DEFAULT '',
			completed_at TEXT NOT NULL,
			seq INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS meditation_sessions_completed_at ON meditation_sessions (completed_at);
		CREATE TABLE IF NOT EXISTS documents (
			key TEXT PRIMARY KEY,
			value BLOB NOT NULL,
			updated_at TEXT NOT NULL
		);
	`
	_, err := r.db.ExecContext(ctx, query)
	return err
}

// Seed inserts sessions when the table is empty.
func (r *SessionRepository) Seed(ctx context.Context, sessions []domain.Session) error {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM meditation_sessions`).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	for _, s := range sessions {
		if err := r.insert(ctx, r.db, s); err != nil {
			return err
		}
	}
	return nil
}

// LoadAll returns sessions in insertion order.
func (r *SessionRepository) LoadAll(ctx context.Context) ([]domain.Session, error) {
	return r.loadAll(ctx, r.db)
}

// Append inserts the session and returns the full list read in the same transaction.
func (r *SessionRepository) Append(ctx context.Context, session domain.Session) ([]domain.Session, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := r.insert(ctx, tx, session); err != nil {
		return nil, err
	}
	sessions, err := r.loadAll(ctx, tx)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return sessions, nil
}

// Get returns nil when the session does not exist.
func (r *SessionRepository) Get(ctx context.Context, id string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, title, duration, completed_at FROM meditation_sessions WHERE id = ?`, id)

	var raw domain.RawSession
	err := row.Scan(&raw.ID, &raw.Title, &raw.Duration, &raw.CompletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	session, err := domain.ParseSession(raw)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// Update rewrites title and duration.
func (r *SessionRepository) Update(ctx context.Context, session domain.Session) error {
	res, err := r.db.ExecContext(ctx, `UPDATE meditation_sessions SET title = ?, duration = ? WHERE id = ?`,
		session.Title, session.Duration, session.ID)
	if err != nil {
		return err
	}
	return expectRow(res)
}

// Delete removes a session.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM meditation_sessions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectRow(res)
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (r *SessionRepository) insert(ctx context.Context, q querier, session domain.Session) error {
	raw := session.Raw()
	_, err := q.ExecContext(ctx, `
		INSERT INTO meditation_sessions (id, title, duration, completed_at, seq)
		VALUES (?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM meditation_sessions))`,
		raw.ID, raw.Title, raw.Duration, raw.CompletedAt)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *SessionRepository) loadAll(ctx context.Context, q querier) ([]domain.Session, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, title, duration, completed_at FROM meditation_sessions ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		var raw domain.RawSession
		if err := rows.Scan(&raw.ID, &raw.Title, &raw.Duration, &raw.CompletedAt); err != nil {
			return nil, err
		}
		session, err := domain.ParseSession(raw)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

func expectRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

// DocumentStore implements kv.Store on the documents table so garden lists can
// share the SQLite file with sessions.
type DocumentStore struct {
	db *sql.DB
}

// NewDocumentStore constructs a DocumentStore. InitTable must have run.
func NewDocumentStore(db *sql.DB) *DocumentStore {
	return &DocumentStore{db: db}
}

// Get implements kv.Store.
func (s *DocumentStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM documents WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, kv.ErrNotFound
	}
	return value, err
}

// Set implements kv.Store.
func (s *DocumentStore) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().Format(time.RFC3339))
	return err
}

// Remove implements kv.Store.
func (s *DocumentStore) Remove(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE key = ?`, key)
	return err
}
