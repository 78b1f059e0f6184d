//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/scottdixon-github/App-Garden/internal/domain"
	"github.com/scottdixon-github/App-Garden/internal/testsupport"
)

func TestRedisSnapshotCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	client, err := NewClient(ctx, testsupport.StartRedis(t))
	require.NoError(t, err)
	defer client.Close()

	c := NewRedisSnapshotCache(client)
	c.now = func() time.Time { return time.Date(2025, time.May, 10, 12, 0, 0, 0, time.UTC) }

	miss, err := c.Get(ctx, "2025-05-10")
	require.NoError(t, err)
	require.Nil(t, miss)

	entry := domain.CachedSnapshot{
		Snapshot:   domain.Snapshot{CurrentStreak: 3, LongestStreak: 5, SessionsThisWeek: 4, TotalSessions: 9, TotalMinutes: 120},
		Generation: 2,
		ValidUntil: time.Date(2025, time.May, 11, 0, 0, 0, 0, time.UTC),
	}
	stored, err := c.Put(ctx, "2025-05-10", entry)
	require.NoError(t, err)
	require.True(t, stored)

	got, err := c.Get(ctx, "2025-05-10")
	require.NoError(t, err)
	require.Equal(t, entry.Snapshot, got.Snapshot)
	require.Equal(t, int64(2), got.Generation)
	require.True(t, entry.ValidUntil.Equal(got.ValidUntil))

	ttl, err := client.TTL(ctx, snapshotKeyPrefix+"2025-05-10").Result()
	require.NoError(t, err)
	require.Greater(t, ttl, time.Duration(0))
}

func TestRedisSnapshotCacheKeepsNewerGeneration(t *testing.T) {
	ctx := context.Background()
	client, err := NewClient(ctx, testsupport.StartRedis(t))
	require.NoError(t, err)
	defer client.Close()

	c := NewRedisSnapshotCache(client)
	validUntil := time.Now().Add(time.Hour)

	gen, err := c.Generation(ctx)
	require.NoError(t, err)
	require.Zero(t, gen)

	gen, err = c.Bump(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), gen)

	fresh := domain.CachedSnapshot{Snapshot: domain.Snapshot{TotalSessions: 1}, Generation: 1, ValidUntil: validUntil}
	stored, err := c.Put(ctx, "2025-05-10", fresh)
	require.NoError(t, err)
	require.True(t, stored)

	stale := domain.CachedSnapshot{Snapshot: domain.Snapshot{TotalSessions: 0}, Generation: 0, ValidUntil: validUntil}
	stored, err = c.Put(ctx, "2025-05-10", stale)
	require.NoError(t, err)
	require.False(t, stored)

	got, err := c.Get(ctx, "2025-05-10")
	require.NoError(t, err)
	require.Equal(t, 1, got.Snapshot.TotalSessions)

	same := domain.CachedSnapshot{Snapshot: domain.Snapshot{TotalSessions: 1, TotalMinutes: 10}, Generation: 1, ValidUntil: validUntil}
	stored, err = c.Put(ctx, "2025-05-10", same)
	require.NoError(t, err)
	require.True(t, stored)
}

func TestRedisNotifierDeliversToSubscribers(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := NewClient(ctx, testsupport.StartRedis(t))
	require.NoError(t, err)
	defer client.Close()

	received := make(chan domain.Snapshot, 1)
	subCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() {
		done <- Subscribe(subCtx, client, "streak:updates", nil, func(s domain.Snapshot) {
			select {
			case received <- s:
			default:
			}
		})
	}()

	notifier := NewRedisNotifier(client, "streak:updates")
	want := domain.Snapshot{CurrentStreak: 2, TotalSessions: 2}

	// Publish until the subscriber is attached.
	require.Eventually(t, func() bool {
		require.NoError(t, notifier.Publish(ctx, want))
		select {
		case got := <-received:
			require.Equal(t, want, got)
			return true
		default:
			return false
		}
	}, 10*time.Second, 100*time.Millisecond)

	stop()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestNewClientRejectsBadURL(t *testing.T) {
	_, err := NewClient(context.Background(), "://nope")
	require.ErrorContains(t, err, "parse redis url")
}
