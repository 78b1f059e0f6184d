// Package domain defines the business logic for the garden streak service.
package domain

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SessionRepository captures persistence operations for meditation sessions.
type SessionRepository interface {
	LoadAll(ctx context.Context) ([]Session, error)
	// Append stores the session and returns the updated full list.
	Append(ctx context.Context, session Session) ([]Session, error)
	Get(ctx context.Context, id string) (*Session, error)
	// Update rewrites title and duration; CompletedAt is never changed.
	Update(ctx context.Context, session Session) error
	Delete(ctx context.Context, id string) error
}

// SessionPager is implemented by repositories that can page through sessions
// newest first without loading the whole history.
type SessionPager interface {
	ListPage(ctx context.Context, cursor *Cursor, limit int) ([]Session, *Cursor, error)
}

// CachedSnapshot is a snapshot together with the cache generation its sessions
// were loaded at and the instant it stops being accurate.
type CachedSnapshot struct {
	Snapshot   Snapshot  `json:"snapshot"`
	Generation int64     `json:"generation"`
	ValidUntil time.Time `json:"validUntil"`
}

// servable reports whether the entry may answer a read at now, given the current generation.
func (e *CachedSnapshot) servable(generation int64, now time.Time) bool {
	return e != nil && e.Generation >= generation && now.Before(e.ValidUntil)
}

// SnapshotCache stores snapshots keyed by calendar day. Every change to the
// session history bumps a shared generation, and a snapshot tagged with
// generation g reflects every change whose bump returned g or less.
type SnapshotCache interface {
	Generation(ctx context.Context) (int64, error)
	Bump(ctx context.Context) (int64, error)
	Get(ctx context.Context, day string) (*CachedSnapshot, error)
	// Put stores entry unless the cached one carries a newer generation and
	// reports whether it did.
	Put(ctx context.Context, day string, entry CachedSnapshot) (bool, error)
}

// SnapshotNotifier pushes fresh snapshots to interested presentation clients.
type SnapshotNotifier interface {
	Publish(ctx context.Context, snap Snapshot) error
}

// Cursor models the pagination token for session listings.
type Cursor struct {
	CompletedAt time.Time
	ID          string
}

// RecordSessionInput captures the payload from the API layer.
type RecordSessionInput struct {
	Title    string
	Duration string
}

// UpdateSessionInput carries the mutable fields of a session.
type UpdateSessionInput struct {
	ID       string
	Title    string
	Duration string
}

// Option configures optional behaviour for the Service.
type Option func(*Service)

// WithClock overrides the source of the current instant.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		s.clock = clock
	}
}

// WithCache attaches a snapshot cache.
func WithCache(cache SnapshotCache) Option {
	return func(s *Service) {
		s.cache = cache
	}
}

// WithNotifier attaches a snapshot notifier.
func WithNotifier(notifier SnapshotNotifier) Option {
	return func(s *Service) {
		s.notifier = notifier
	}
}

// WithLogger overrides the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// Service orchestrates session workflows and streak recomputation.
type Service struct {
	repo     SessionRepository
	cache    SnapshotCache
	notifier SnapshotNotifier
	clock    func() time.Time
	logger   *zap.Logger

	// mu serialises writers; readers work on the list the repository hands back.
	mu sync.Mutex
}

// NewService constructs a Service.
func NewService(repo SessionRepository, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		cache:    noopCache{},
		notifier: noopNotifier{},
		clock:    time.Now,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the service clock reading.
func (s *Service) Now() time.Time {
	return s.clock()
}

// RecordSession appends a newly completed session and returns it with the refreshed snapshot.
func (s *Service) RecordSession(ctx context.Context, input RecordSessionInput) (*Session, Snapshot, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, Snapshot{}, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	session := Session{
		ID:          uuid.NewString(),
		Title:       title,
		Duration:    strings.TrimSpace(input.Duration),
		CompletedAt: now,
	}

	sessions, err := s.repo.Append(ctx, session)
	if err != nil {
		return nil, Snapshot{}, err
	}

	snap := ComputeSnapshot(sessions, now)
	s.publish(ctx, now, sessions, snap)

	s.logger.Info("session recorded",
		zap.String("session_id", session.ID),
		zap.Int("current_streak", snap.CurrentStreak),
		zap.Int("total_sessions", snap.TotalSessions),
	)
	return &session, snap, nil
}

// Snapshot returns the streak statistics for the current instant, served from
// cache while the cached entry is current and still valid at now.
func (s *Service) Snapshot(ctx context.Context) (Snapshot, error) {
	now := s.clock()
	day := DayKey(now)

	generation, genErr := s.cache.Generation(ctx)
	if genErr != nil {
		s.logger.Warn("snapshot cache generation read failed", zap.Error(genErr))
	} else if cached, err := s.cache.Get(ctx, day); err != nil {
		s.logger.Warn("snapshot cache read failed", zap.String("day", day), zap.Error(err))
	} else if cached.servable(generation, now) {
		return cached.Snapshot, nil
	}

	sessions, err := s.repo.LoadAll(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	snap := ComputeSnapshot(sessions, now)
	if genErr == nil {
		s.store(ctx, now, generation, sessions, snap)
	}
	return snap, nil
}

// Refresh recomputes the snapshot from storage, updates the cache and notifies subscribers.
func (s *Service) Refresh(ctx context.Context) (Snapshot, error) {
	generation, genErr := s.cache.Bump(ctx)
	if genErr != nil {
		s.logger.Warn("snapshot cache generation bump failed", zap.Error(genErr))
	}

	sessions, err := s.repo.LoadAll(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	now := s.clock()
	snap := ComputeSnapshot(sessions, now)
	if genErr == nil {
		s.store(ctx, now, generation, sessions, snap)
	}
	s.notify(ctx, snap)
	return snap, nil
}

// GetSession fetches by ID.
func (s *Service) GetSession(ctx context.Context, id string) (*Session, error) {
	session, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// ListSessions returns sessions newest first with cursor pagination.
func (s *Service) ListSessions(ctx context.Context, cursor *Cursor, limit int) ([]Session, *Cursor, error) {
	if pager, ok := s.repo.(SessionPager); ok && limit > 0 {
		return pager.ListPage(ctx, cursor, limit)
	}

	sessions, err := s.repo.LoadAll(ctx)
	if err != nil {
		return nil, nil, err
	}

	sort.Slice(sessions, func(i, j int) bool {
		return after(sessions[i], sessions[j])
	})

	start := 0
	if cursor != nil {
		start = len(sessions)
		for i, session := range sessions {
			if after(Session{ID: cursor.ID, CompletedAt: cursor.CompletedAt}, session) {
				start = i
				break
			}
		}
	}

	end := len(sessions)
	if limit > 0 && start+limit < end {
		end = start + limit
	}
	page := sessions[start:end]

	var next *Cursor
	if limit > 0 && len(page) == limit && end < len(sessions) {
		last := page[len(page)-1]
		next = &Cursor{CompletedAt: last.CompletedAt, ID: last.ID}
	}
	return page, next, nil
}

// UpdateSession rewrites the descriptive fields of a session.
func (s *Service) UpdateSession(ctx context.Context, input UpdateSessionInput) (*Session, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.GetSession(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	session.Title = title
	session.Duration = strings.TrimSpace(input.Duration)

	if err := s.repo.Update(ctx, *session); err != nil {
		return nil, err
	}
	if _, err := s.Refresh(ctx); err != nil {
		s.logger.Warn("snapshot refresh after update failed", zap.Error(err))
	}
	return session, nil
}

// DeleteSession removes a session and refreshes the snapshot.
func (s *Service) DeleteSession(ctx context.Context, id string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.Delete(ctx, id); err != nil {
		return Snapshot{}, err
	}
	return s.Refresh(ctx)
}

// publish caches and announces a snapshot computed after a change made by this
// service. Session changes are serialised by s.mu, so sessions already holds
// every change tagged with the bumped generation.
func (s *Service) publish(ctx context.Context, now time.Time, sessions []Session, snap Snapshot) {
	if generation, err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("snapshot cache generation bump failed", zap.Error(err))
	} else {
		s.store(ctx, now, generation, sessions, snap)
	}
	s.notify(ctx, snap)
}

func (s *Service) store(ctx context.Context, now time.Time, generation int64, sessions []Session, snap Snapshot) {
	day := DayKey(now)
	stored, err := s.cache.Put(ctx, day, CachedSnapshot{
		Snapshot:   snap,
		Generation: generation,
		ValidUntil: SnapshotValidUntil(sessions, now),
	})
	if err != nil {
		s.logger.Warn("snapshot cache write failed", zap.String("day", day), zap.Error(err))
	} else if !stored {
		s.logger.Debug("newer snapshot already cached", zap.String("day", day), zap.Int64("generation", generation))
	}
}

func (s *Service) notify(ctx context.Context, snap Snapshot) {
	if err := s.notifier.Publish(ctx, snap); err != nil {
		s.logger.Warn("snapshot publish failed", zap.Error(err))
	}
}

// after orders sessions newest first, breaking ties by ID.
func after(a, b Session) bool {
	if a.CompletedAt.Equal(b.CompletedAt) {
		return a.ID > b.ID
	}
	return a.CompletedAt.After(b.CompletedAt)
}

type noopCache struct{}

func (noopCache) Generation(context.Context) (int64, error) { return 0, nil }
func (noopCache) Bump(context.Context) (int64, error) { return 0, nil }
func (noopCache) Get(context.Context, string) (*CachedSnapshot, error) { return nil, nil }
func (noopCache) Put(context.Context, string, CachedSnapshot) (bool, error) { return true, nil }

// MultiNotifier publishes to every notifier, joining their errors.
type MultiNotifier []SnapshotNotifier

// Publish implements SnapshotNotifier.
func (m MultiNotifier) Publish(ctx context.Context, snap Snapshot) error {
	var result error
	for _, n := range m {
		if err := n.Publish(ctx, snap); err != nil {
			result = errors.Join(result, err)
		}
	}
	return result
}

type noopNotifier struct{}

func (noopNotifier) Publish(context.Context, Snapshot) error { return nil }
