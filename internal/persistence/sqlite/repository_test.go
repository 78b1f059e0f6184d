package sqlite_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/scottdixon-github/App-Garden/internal/domain"
	"github.com/scottdixon-github/App-Garden/internal/persistence/kv"
	"github.com/scottdixon-github/App-Garden/internal/persistence/sqlite"
)

func setupTestDB(t *testing.T) (*sql.DB, *sqlite.SessionRepository) {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// Every pooled connection would get its own in-memory database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	repo := sqlite.NewSessionRepository(db)
	require.NoError(t, repo.InitTable(context.Background()))
	return db, repo
}

func TestSessionRepositoryAppendKeepsInsertionOrder(t *testing.T) {
	_, repo := setupTestDB(t)
	ctx := context.Background()

	later := domain.Session{ID: "b", Title: "Evening", Duration: "20 min", CompletedAt: time.Date(2025, time.May, 10, 19, 0, 0, 0, time.UTC)}
	earlier := domain.Session{ID: "a", Title: "Morning", Duration: "10 min", CompletedAt: time.Date(2025, time.May, 9, 7, 0, 0, 0, time.UTC)}

	_, err := repo.Append(ctx, later)
	require.NoError(t, err)
	sessions, err := repo.Append(ctx, earlier)
	require.NoError(t, err)
	require.Equal(t, []domain.Session{later, earlier}, sessions)

	snap := domain.ComputeSnapshot(sessions, time.Date(2025, time.May, 10, 21, 0, 0, 0, time.UTC))
	require.Equal(t, 2, snap.CurrentStreak)
}

func TestSessionRepositoryGetUpdateDelete(t *testing.T) {
	_, repo := setupTestDB(t)
	ctx := context.Background()

	session := domain.Session{ID: "a", Title: "Morning", Duration: "10 min", CompletedAt: time.Date(2025, time.May, 9, 7, 0, 0, 0, time.UTC)}
	_, err := repo.Append(ctx, session)
	require.NoError(t, err)

	missing, err := repo.Get(ctx, "nope")
	require.NoError(t, err)
	require.Nil(t, missing)

	require.NoError(t, repo.Update(ctx, domain.Session{ID: "a", Title: "Sunrise", Duration: "15 min"}))
	got, err := repo.Get(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, "Sunrise", got.Title)
	require.Equal(t, session.CompletedAt, got.CompletedAt)

	require.NoError(t, repo.Delete(ctx, "a"))
	require.ErrorIs(t, repo.Delete(ctx, "a"), domain.ErrSessionNotFound)
	require.ErrorIs(t, repo.Update(ctx, session), domain.ErrSessionNotFound)
}

func TestSessionRepositorySeedOnlyWhenEmpty(t *testing.T) {
	_, repo := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.Seed(ctx, domain.SampleSessions()))
	require.NoError(t, repo.Seed(ctx, domain.SampleSessions()))

	sessions, err := repo.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 5)
}

func TestSessionRepositoryRejectsMalformedRows(t *testing.T) {
	db, repo := setupTestDB(t)
	ctx := context.Background()

	_, err := db.ExecContext(ctx, `INSERT INTO meditation_sessions (id, title, duration, completed_at, seq) VALUES ('x', 't', '', '05/09/2025', 1)`)
	require.NoError(t, err)

	_, err = repo.LoadAll(ctx)
	var invalid *domain.InvalidRecordError
	require.ErrorAs(t, err, &invalid)
	require.Equal(t, "x", invalid.ID)
}

func TestDocumentStoreBacksGardenLists(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()
	store := sqlite.NewDocumentStore(db)

	_, err := store.Get(ctx, kv.KeyPlots)
	require.ErrorIs(t, err, kv.ErrNotFound)

	garden := domain.NewGardenService(kv.GardenStores(store), domain.WithSampleData(true))
	plot, err := garden.AddPlot(ctx, domain.Plot{Name: "Balcony", Size: "2x2 ft"})
	require.NoError(t, err)

	plots, err := garden.ListPlots(ctx)
	require.NoError(t, err)
	require.Len(t, plots, 4)
	require.Equal(t, plot.ID, plots[3].ID)

	require.NoError(t, store.Remove(ctx, kv.KeyPlots))
	_, err = store.Get(ctx, kv.KeyPlots)
	require.ErrorIs(t, err, kv.ErrNotFound)
}
