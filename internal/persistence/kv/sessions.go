package kv

import (
	"context"
	"sync"

	"github.com/scottdixon-github/App-Garden/internal/domain"
)

// SessionRepository keeps the session history as one JSON list.
type SessionRepository struct {
	list *Collection[domain.RawSession]
	seed bool

	mu sync.Mutex
}

// NewSessionRepository constructs the repository. When seed is set an absent list
// is initialised with the sample history.
func NewSessionRepository(store Store, seed bool) *SessionRepository {
	return &SessionRepository{
		list: NewCollection[domain.RawSession](store, KeySessions),
		seed: seed,
	}
}

func (r *SessionRepository) load(ctx context.Context) ([]domain.Session, error) {
	raw, found, err := r.list.Load(ctx)
	if err != nil {
		return nil, err
	}
	if !found && r.seed {
		sessions := domain.SampleSessions()
		if err := r.save(ctx, sessions); err != nil {
			return nil, err
		}
		return sessions, nil
	}
	return domain.ParseSessions(raw)
}

func (r *SessionRepository) save(ctx context.Context, sessions []domain.Session) error {
	raw := make([]domain.RawSession, 0, len(sessions))
	for _, s := range sessions {
		raw = append(raw, s.Raw())
	}
	return r.list.Save(ctx, raw)
}

// LoadAll implements domain.SessionRepository.
func (r *SessionRepository) LoadAll(ctx context.Context) ([]domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load(ctx)
}

// Append implements domain.SessionRepository.
func (r *SessionRepository) Append(ctx context.Context, session domain.Session) ([]domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessions, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	sessions = append(sessions, session)
	if err := r.save(ctx, sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// Get implements domain.SessionRepository.
func (r *SessionRepository) Get(ctx context.Context, id string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessions, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	for _, s := range sessions {
		if s.ID == id {
			found := s
			return &found, nil
		}
	}
	return nil, nil
}

// Update implements domain.SessionRepository.
func (r *SessionRepository) Update(ctx context.Context, session domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessions, err := r.load(ctx)
	if err != nil {
		return err
	}
	for i := range sessions {
		if sessions[i].ID == session.ID {
			sessions[i].Title = session.Title
			sessions[i].Duration = session.Duration
			return r.save(ctx, sessions)
		}
	}
	return domain.ErrSessionNotFound
}

// Delete implements domain.SessionRepository.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessions, err := r.load(ctx)
	if err != nil {
		return err
	}
	for i := range sessions {
		if sessions[i].ID == id {
			return r.save(ctx, append(sessions[:i], sessions[i+1:]...))
		}
	}
	return domain.ErrSessionNotFound
}
