//go:build integration

package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/scottdixon-github/App-Garden/internal/events"
	"github.com/scottdixon-github/App-Garden/internal/testsupport"
)

func TestDispatcherPublishesMessages(t *testing.T) {
	ctx := context.Background()
	pool, _ := testsupport.StartPostgres(t)

	require.NotZero(t, seedOutbox(t, ctx, pool, uuid.NewString(), events.TypeSessionCompleted))

	producer := &stubProducer{}
	registry := &stubRegistry{id: 42}
	dispatcher := NewDispatcher(pool, producer, registry, 10*time.Millisecond, 5)

	beforeDelivered := testutil.ToFloat64(deliveredCounter)
	beforeHistogram := histogramSampleCount(t)

	require.NoError(t, dispatcher.processBatch(ctx))

	require.Len(t, producer.writes, 1)
	require.Equal(t, events.TopicSessionEvents, producer.writes[0].topic)
	require.Len(t, producer.writes[0].messages, 1)

	require.InDelta(t, beforeDelivered+1, testutil.ToFloat64(deliveredCounter), 0.0001)
	require.Greater(t, histogramSampleCount(t), beforeHistogram)

	var published int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE published_at IS NOT NULL`).Scan(&published))
	require.Equal(t, 1, published)

	// Nothing left to claim.
	require.NoError(t, dispatcher.processBatch(ctx))
	require.Len(t, producer.writes, 1)
}

func TestDispatcherRoutesMessagesToDLQOnFailure(t *testing.T) {
	ctx := context.Background()
	pool, _ := testsupport.StartPostgres(t)

	sessionID := uuid.NewString()
	require.NotZero(t, seedOutbox(t, ctx, pool, sessionID, events.TypeSessionDeleted))

	producer := &stubProducer{err: errors.New("kafka write failed")}
	dispatcher := NewDispatcher(pool, producer, &stubRegistry{id: 7}, 10*time.Millisecond, 5)

	beforeFailed := testutil.ToFloat64(failedCounter)
	beforeDLQ := testutil.ToFloat64(dlqCounter.WithLabelValues(events.TopicSessionEvents))

	require.NoError(t, dispatcher.processBatch(ctx))

	require.InDelta(t, beforeFailed+1, testutil.ToFloat64(failedCounter), 0.0001)
	require.InDelta(t, beforeDLQ+1, testutil.ToFloat64(dlqCounter.WithLabelValues(events.TopicSessionEvents)), 0.0001)

	var dlqCount int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_dlq WHERE aggregate_id = $1`, sessionID).Scan(&dlqCount))
	require.Equal(t, 1, dlqCount)

	var published int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE published_at IS NOT NULL`).Scan(&published))
	require.Equal(t, 1, published)
}

func TestDispatcherCachesSchemaIDsAcrossBatch(t *testing.T) {
	ctx := context.Background()
	pool, _ := testsupport.StartPostgres(t)

	require.NotZero(t, seedOutbox(t, ctx, pool, uuid.NewString(), events.TypeSessionCompleted))
	require.NotZero(t, seedOutbox(t, ctx, pool, uuid.NewString(), events.TypeSessionCompleted))

	producer := &stubProducer{}
	registry := &stubRegistry{id: 21}
	dispatcher := NewDispatcher(pool, producer, registry, 10*time.Millisecond, 5)

	require.NoError(t, dispatcher.processBatch(ctx))

	require.Len(t, producer.writes, 1)
	require.Len(t, producer.writes[0].messages, 2)
	require.Len(t, registry.calls, 1, "schema registry should be invoked once due to cache")
}

func TestDispatcherUnknownSchemaMovesEventsToDLQ(t *testing.T) {
	ctx := context.Background()
	pool, _ := testsupport.StartPostgres(t)

	eventID := seedOutbox(t, ctx, pool, uuid.NewString(), "session.unknown")
	require.NotZero(t, eventID)

	producer := &stubProducer{}
	registry := &stubRegistry{id: 99}
	dispatcher := NewDispatcher(pool, producer, registry, 10*time.Millisecond, 5)

	require.NoError(t, dispatcher.processBatch(ctx))

	require.Empty(t, producer.writes, "unknown schema should skip kafka writes")
	require.Empty(t, registry.calls)

	var reason string
	require.NoError(t, pool.QueryRow(ctx, `SELECT reason FROM outbox_dlq WHERE event_id = $1`, eventID).Scan(&reason))
	require.Contains(t, reason, "no schema metadata for event_type=session.unknown")
}

func TestDLQManagerRequeuesThenRedelivers(t *testing.T) {
	ctx := context.Background()
	pool, _ := testsupport.StartPostgres(t)

	sessionID := uuid.NewString()
	seedOutbox(t, ctx, pool, sessionID, events.TypeSessionCompleted)

	registry := &stubRegistry{id: 100}
	failing := NewDispatcher(pool, &stubProducer{err: errors.New("upstream kafka unavailable")}, registry, 5*time.Millisecond, 10)
	require.NoError(t, failing.processBatch(ctx))

	manager := NewDLQManager(pool, 5, time.Second, nil)
	replayed, err := manager.RunOnce(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 1, replayed)

	var remaining int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_dlq`).Scan(&remaining))
	require.Zero(t, remaining)
	require.Zero(t, testutil.ToFloat64(dlqBacklogGauge.WithLabelValues("pending")))

	producer := &stubProducer{}
	healthy := NewDispatcher(pool, producer, registry, 5*time.Millisecond, 10)
	require.NoError(t, healthy.processBatch(ctx))

	require.Len(t, producer.writes, 1)
	require.Equal(t, sessionID, string(producer.writes[0].messages[0].Key))
}

func TestDLQManagerQuarantinesExhaustedEntries(t *testing.T) {
	ctx := context.Background()
	pool, _ := testsupport.StartPostgres(t)

	seedOutbox(t, ctx, pool, uuid.NewString(), events.TypeSessionDeleted)
	failing := NewDispatcher(pool, &stubProducer{err: errors.New("down")}, &stubRegistry{id: 1}, 5*time.Millisecond, 10)
	require.NoError(t, failing.processBatch(ctx))

	_, err := pool.Exec(ctx, `UPDATE outbox_dlq SET retry_count = 3`)
	require.NoError(t, err)

	before := testutil.ToFloat64(dlqActionCounter.WithLabelValues(events.TypeSessionDeleted, dlqActionQuarantined))

	manager := NewDLQManager(pool, 3, time.Second, nil)
	_, err = manager.RunOnce(ctx, 10)
	require.NoError(t, err)

	var reason string
	require.NoError(t, pool.QueryRow(ctx, `SELECT quarantine_reason FROM outbox_dlq WHERE quarantined_at IS NOT NULL`).Scan(&reason))
	require.Equal(t, "retry limit reached", reason)
	require.InDelta(t, before+1, testutil.ToFloat64(dlqActionCounter.WithLabelValues(events.TypeSessionDeleted, dlqActionQuarantined)), 0.0001)

	// Quarantined entries are skipped on later runs.
	processed, err := manager.RunOnce(ctx, 10)
	require.NoError(t, err)
	require.Zero(t, processed)
}

func histogramSampleCount(t *testing.T) uint64 {
	t.Helper()

	metric := &dto.Metric{}
	require.NoError(t, batchDuration.Write(metric))
	hist := metric.GetHistogram()
	require.NotNil(t, hist)
	return hist.GetSampleCount()
}

func seedOutbox(t *testing.T, ctx context.Context, pool *pgxpool.Pool, sessionID, eventType string) int64 {
	t.Helper()

	payload, err := json.Marshal(events.SessionCompleted{
		SessionID:   sessionID,
		Title:       "Morning Garden Meditation",
		Duration:    "10 min",
		CompletedAt: time.Now().UTC().Truncate(time.Second),
	})
	require.NoError(t, err)

	var eventID int64
	err = pool.QueryRow(ctx,
		`INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload)
         VALUES ($1,$2,$3,$4,$5,$6,$7)
         RETURNING event_id`,
		"session",
		sessionID,
		eventType,
		events.TopicSessionEvents,
		events.TopicSessionEvents+"-value",
		sessionID,
		payload,
	).Scan(&eventID)
	require.NoError(t, err)
	return eventID
}
