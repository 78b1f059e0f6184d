//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/scottdixon-github/App-Garden/internal/domain"
	"github.com/scottdixon-github/App-Garden/internal/events"
	"github.com/scottdixon-github/App-Garden/internal/persistence/postgres"
	"github.com/scottdixon-github/App-Garden/internal/testsupport"
)

func TestRepositoryWritesOutboxWithSessions(t *testing.T) {
	ctx := context.Background()
	pool, _ := testsupport.StartPostgres(t)
	repo := postgres.NewRepository(pool, "")

	base := time.Date(2025, time.May, 10, 8, 0, 0, 0, time.UTC)
	first := domain.Session{ID: uuid.NewString(), Title: "Morning", Duration: "10 min", CompletedAt: base.AddDate(0, 0, -1)}
	second := domain.Session{ID: uuid.NewString(), Title: "Evening", Duration: "15 min", CompletedAt: base}

	_, err := repo.Append(ctx, first)
	require.NoError(t, err)
	sessions, err := repo.Append(ctx, second)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	require.Equal(t, first.ID, sessions[0].ID)

	snap := domain.ComputeSnapshot(sessions, base.Add(time.Hour))
	require.Equal(t, 2, snap.CurrentStreak)

	page, next, err := repo.ListPage(ctx, nil, 1)
	require.NoError(t, err)
	require.Equal(t, second.ID, page[0].ID)
	require.NotNil(t, next)
	page, _, err = repo.ListPage(ctx, next, 1)
	require.NoError(t, err)
	require.Equal(t, first.ID, page[0].ID)

	require.NoError(t, repo.Update(ctx, domain.Session{ID: first.ID, Title: "Sunrise", Duration: "12 min"}))
	got, err := repo.Get(ctx, first.ID)
	require.NoError(t, err)
	require.Equal(t, "Sunrise", got.Title)
	require.True(t, first.CompletedAt.Equal(got.CompletedAt))

	require.NoError(t, repo.Delete(ctx, first.ID))
	require.ErrorIs(t, repo.Delete(ctx, first.ID), domain.ErrSessionNotFound)
	missing, err := repo.Get(ctx, first.ID)
	require.NoError(t, err)
	require.Nil(t, missing)

	rows, err := pool.Query(ctx, `SELECT event_type, topic FROM outbox ORDER BY event_id`)
	require.NoError(t, err)
	defer rows.Close()

	var types []string
	for rows.Next() {
		var eventType, topic string
		require.NoError(t, rows.Scan(&eventType, &topic))
		require.Equal(t, events.TopicSessionEvents, topic)
		types = append(types, eventType)
	}
	require.NoError(t, rows.Err())
	require.Equal(t, []string{events.TypeSessionCompleted, events.TypeSessionCompleted, events.TypeSessionDeleted}, types)
}
