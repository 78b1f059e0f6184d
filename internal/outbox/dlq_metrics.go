package outbox

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	dlqActionRequeued    = "requeued"
	dlqActionRetry       = "retry_scheduled"
	dlqActionQuarantined = "quarantined"
)

var (
	dlqActionCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "garden_streak",
		Subsystem: "dlq",
		Name:      "entries_total",
		Help:      "Dead-lettered session events handled by the DLQ manager, by action.",
	}, []string{"event_type", "action"})

	dlqBacklogGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "garden_streak",
		Subsystem: "dlq",
		Name:      "entries",
		Help:      "Rows in outbox_dlq, split into pending and quarantined.",
	}, []string{"state"})
)

func init() {
	prometheus.MustRegister(dlqActionCounter, dlqBacklogGauge)
}

func recordDLQAction(entry dlqEntry, action string) {
	dlqActionCounter.WithLabelValues(entry.EventType, action).Inc()
}

func updateBacklogGauge(ctx context.Context, pool *pgxpool.Pool) {
	var pending, quarantined int
	err := pool.QueryRow(ctx,
		`SELECT COUNT(*) FILTER (WHERE quarantined_at IS NULL),
                COUNT(*) FILTER (WHERE quarantined_at IS NOT NULL)
           FROM outbox_dlq`,
	).Scan(&pending, &quarantined)
	if err != nil {
		return
	}
	dlqBacklogGauge.WithLabelValues("pending").Set(float64(pending))
	dlqBacklogGauge.WithLabelValues("quarantined").Set(float64(quarantined))
}
