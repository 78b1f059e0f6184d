package domain

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memorySessions struct {
	mu       sync.Mutex
	sessions []Session
}

func (m *memorySessions) LoadAll(context.Context) ([]Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Session(nil), m.sessions...), nil
}

func (m *memorySessions) Append(_ context.Context, session Session) ([]Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = append(m.sessions, session)
	return append([]Session(nil), m.sessions...), nil
}

func (m *memorySessions) Get(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.ID == id {
			found := s
			return &found, nil
		}
	}
	return nil, nil
}

func (m *memorySessions) Update(_ context.Context, session Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.sessions {
		if m.sessions[i].ID == session.ID {
			m.sessions[i].Title = session.Title
			m.sessions[i].Duration = session.Duration
			return nil
		}
	}
	return ErrSessionNotFound
}

func (m *memorySessions) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.sessions {
		if m.sessions[i].ID == id {
			m.sessions = append(m.sessions[:i], m.sessions[i+1:]...)
			return nil
		}
	}
	return ErrSessionNotFound
}

type recordingCache struct {
	mu         sync.Mutex
	generation int64
	entries    map[string]CachedSnapshot
	rejected   int
}

func (c *recordingCache) Generation(context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation, nil
}

func (c *recordingCache) Bump(context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	return c.generation, nil
}

func (c *recordingCache) Get(_ context.Context, day string) (*CachedSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[day]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (c *recordingCache) Put(_ context.Context, day string, entry CachedSnapshot) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if current, ok := c.entries[day]; ok && current.Generation > entry.Generation {
		c.rejected++
		return false, nil
	}
	c.entries[day] = entry
	return true, nil
}

func (c *recordingCache) snapshot(day string) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[day].Snapshot
}

// blockingSessions holds the first LoadAll until release is closed.
type blockingSessions struct {
	*memorySessions
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (b *blockingSessions) LoadAll(ctx context.Context) ([]Session, error) {
	sessions, err := b.memorySessions.LoadAll(ctx)
	first := false
	b.once.Do(func() { first = true })
	if first {
		close(b.entered)
		<-b.release
	}
	return sessions, err
}

type recordingNotifier struct {
	published []Snapshot
}

func (n *recordingNotifier) Publish(_ context.Context, snap Snapshot) error {
	n.published = append(n.published, snap)
	return nil
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func newTestService(t *testing.T, seed ...Session) (*Service, *memorySessions, *fakeClock, *recordingCache, *recordingNotifier) {
	t.Helper()
	repo := &memorySessions{sessions: seed}
	clock := &fakeClock{now: testNow}
	cache := &recordingCache{entries: map[string]CachedSnapshot{}}
	notifier := &recordingNotifier{}
	svc := NewService(repo, WithClock(clock.Now), WithCache(cache), WithNotifier(notifier))
	return svc, repo, clock, cache, notifier
}

func TestServiceRecordSession(t *testing.T) {
	svc, repo, _, cache, notifier := newTestService(t,
		sessionAt("y", daysAgo(1)),
		sessionAt("yy", daysAgo(2)),
	)

	session, snap, err := svc.RecordSession(context.Background(), RecordSessionInput{Title: " Evening Nature Sounds ", Duration: "20 min"})
	require.NoError(t, err)
	require.NotEmpty(t, session.ID)
	require.Equal(t, "Evening Nature Sounds", session.Title)
	require.Equal(t, testNow, session.CompletedAt)

	require.Equal(t, 3, snap.CurrentStreak)
	require.Equal(t, 3, snap.TotalSessions)
	require.Equal(t, 40, snap.TotalMinutes)
	require.Len(t, repo.sessions, 3)
	require.Equal(t, snap, cache.snapshot(DayKey(testNow)))
	require.Equal(t, int64(1), cache.entries[DayKey(testNow)].Generation)
	require.Equal(t, []Snapshot{snap}, notifier.published)
}

func TestServiceRecordSessionRequiresTitle(t *testing.T) {
	svc, repo, _, _, _ := newTestService(t)

	_, _, err := svc.RecordSession(context.Background(), RecordSessionInput{Title: "  "})
	require.ErrorIs(t, err, ErrInvalidInput)
	require.Empty(t, repo.sessions)
}

func TestServiceSnapshotServesCachedDay(t *testing.T) {
	svc, repo, clock, cache, _ := newTestService(t, sessionAt("a", daysAgo(0)))

	first, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, first.TotalSessions)

	// Writes behind the service's back are not visible until the day changes.
	repo.sessions = append(repo.sessions, sessionAt("b", daysAgo(0)))
	cached, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	require.Equal(t, first, cached)

	clock.now = testNow.AddDate(0, 0, 1)
	nextDay, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, nextDay.TotalSessions)
	require.Equal(t, 1, nextDay.CurrentStreak)
	require.Len(t, cache.entries, 2)
}

func TestServiceSnapshotIgnoresOlderConcurrentLoad(t *testing.T) {
	repo := &blockingSessions{
		memorySessions: &memorySessions{},
		entered:        make(chan struct{}),
		release:        make(chan struct{}),
	}
	cache := &recordingCache{entries: map[string]CachedSnapshot{}}
	svc := NewService(repo, WithClock(func() time.Time { return testNow }), WithCache(cache))
	ctx := context.Background()

	type result struct {
		snap Snapshot
		err  error
	}
	done := make(chan result, 1)
	go func() {
		snap, err := svc.Snapshot(ctx)
		done <- result{snap, err}
	}()
	<-repo.entered

	_, recorded, err := svc.RecordSession(ctx, RecordSessionInput{Title: "Body Scan", Duration: "10 min"})
	require.NoError(t, err)
	require.Equal(t, 1, recorded.TotalSessions)

	close(repo.release)
	stale := <-done
	require.NoError(t, stale.err)
	require.Zero(t, stale.snap.TotalSessions)

	require.Equal(t, 1, cache.rejected)
	require.Equal(t, recorded, cache.snapshot(DayKey(testNow)))

	current, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	require.Equal(t, recorded, current)
}

func TestServiceSnapshotSkipsEntriesFromOlderGenerations(t *testing.T) {
	svc, repo, _, cache, _ := newTestService(t, sessionAt("a", daysAgo(0)))
	ctx := context.Background()

	_, err := svc.Snapshot(ctx)
	require.NoError(t, err)

	// A change made elsewhere bumps the generation without rewriting the entry.
	_, err = cache.Bump(ctx)
	require.NoError(t, err)
	repo.sessions = append(repo.sessions, sessionAt("b", daysAgo(0)))

	snap, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, snap.TotalSessions)
}

func TestServiceSnapshotRecomputesWhenSessionLeavesWeek(t *testing.T) {
	morning := time.Date(2025, time.May, 20, 9, 0, 0, 0, time.UTC)
	svc, repo, clock, _, _ := newTestService(t, sessionAt("a", time.Date(2025, time.May, 13, 10, 0, 0, 0, time.UTC)))
	clock.now = morning

	first, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, first.SessionsThisWeek)

	clock.now = time.Date(2025, time.May, 20, 18, 0, 0, 0, time.UTC)
	evening, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	require.Zero(t, evening.SessionsThisWeek)
	require.Equal(t, ComputeSnapshot(repo.sessions, clock.now), evening)
}

func TestServiceSnapshotStreakDecaysWithClock(t *testing.T) {
	svc, _, clock, _, _ := newTestService(t, sessionAt("a", daysAgo(0)))

	clock.now = testNow.AddDate(0, 0, 2)
	snap, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, snap.CurrentStreak)
	require.Equal(t, 1, snap.LongestStreak)
}

func TestServiceListSessionsPaginates(t *testing.T) {
	svc, _, _, _, _ := newTestService(t,
		sessionAt("c", daysAgo(2)),
		sessionAt("a", daysAgo(0)),
		sessionAt("b", daysAgo(1)),
		sessionAt("d", daysAgo(3)),
		sessionAt("e", daysAgo(4)),
	)
	ctx := context.Background()

	page, next, err := svc.ListSessions(ctx, nil, 2)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, ids(page))
	require.NotNil(t, next)

	page, next, err = svc.ListSessions(ctx, next, 2)
	require.NoError(t, err)
	require.Equal(t, []string{"c", "d"}, ids(page))
	require.NotNil(t, next)

	page, next, err = svc.ListSessions(ctx, next, 2)
	require.NoError(t, err)
	require.Equal(t, []string{"e"}, ids(page))
	require.Nil(t, next)
}

func TestServiceUpdateSessionKeepsCompletedAt(t *testing.T) {
	svc, repo, _, _, _ := newTestService(t, sessionAt("a", daysAgo(3)))

	updated, err := svc.UpdateSession(context.Background(), UpdateSessionInput{ID: "a", Title: "Renamed", Duration: "25 min"})
	require.NoError(t, err)
	require.Equal(t, "Renamed", updated.Title)
	require.Equal(t, daysAgo(3), repo.sessions[0].CompletedAt)
	require.Equal(t, "25 min", repo.sessions[0].Duration)

	_, err = svc.UpdateSession(context.Background(), UpdateSessionInput{ID: "missing", Title: "x"})
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestServiceDeleteSession(t *testing.T) {
	svc, _, _, cache, notifier := newTestService(t,
		sessionAt("a", daysAgo(0)),
		sessionAt("b", daysAgo(1)),
	)

	snap, err := svc.DeleteSession(context.Background(), "a")
	require.NoError(t, err)
	require.Equal(t, 1, snap.TotalSessions)
	require.Equal(t, 1, snap.CurrentStreak)
	require.Equal(t, int64(1), cache.generation)
	require.Equal(t, snap, cache.snapshot(DayKey(testNow)))
	require.Len(t, notifier.published, 1)

	_, err = svc.DeleteSession(context.Background(), "a")
	require.ErrorIs(t, err, ErrSessionNotFound)

	_, err = svc.GetSession(context.Background(), "a")
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func ids(sessions []Session) []string {
	out := make([]string, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.ID)
	}
	return out
}

type failingNotifier struct{ err error }

func (f failingNotifier) Publish(context.Context, Snapshot) error { return f.err }

func TestMultiNotifierPublishesToAll(t *testing.T) {
	first, second := &recordingNotifier{}, &recordingNotifier{}
	boom := errors.New("hub closed")
	multi := MultiNotifier{first, failingNotifier{err: boom}, second}

	err := multi.Publish(context.Background(), Snapshot{CurrentStreak: 2})
	require.ErrorIs(t, err, boom)
	require.Len(t, first.published, 1)
	require.Len(t, second.published, 1)
}

func TestServiceNotifierFailureDoesNotFailRecord(t *testing.T) {
	repo := &memorySessions{}
	svc := NewService(repo, WithClock(func() time.Time { return testNow }), WithNotifier(failingNotifier{err: errors.New("down")}))

	_, snap, err := svc.RecordSession(context.Background(), RecordSessionInput{Title: "Breathing"})
	require.NoError(t, err)
	require.Equal(t, 1, snap.TotalSessions)
}
