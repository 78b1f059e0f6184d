// Package observability exposes Prometheus gauges describing the streak state.
package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/scottdixon-github/App-Garden/internal/domain"
)

var (
	sessionPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "garden_streak",
		Subsystem: "persistence",
		Name:      "last_session_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent session persisted.",
	})
	currentStreakGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "garden_streak",
		Subsystem: "snapshot",
		Name:      "current_streak_days",
		Help:      "Current run of consecutive active days.",
	})
	longestStreakGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "garden_streak",
		Subsystem: "snapshot",
		Name:      "longest_streak_days",
		Help:      "Longest run of consecutive active days in the history.",
	})
	sessionsThisWeekGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "garden_streak",
		Subsystem: "snapshot",
		Name:      "sessions_this_week",
		Help:      "Sessions completed in the trailing seven days.",
	})
	totalSessionsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "garden_streak",
		Subsystem: "snapshot",
		Name:      "sessions_total",
		Help:      "Sessions in the history.",
	})
)

func init() {
	prometheus.MustRegister(sessionPersistGauge, currentStreakGauge, longestStreakGauge, sessionsThisWeekGauge, totalSessionsGauge)
}

// RecordSessionPersisted updates the persistence watermark gauge.
func RecordSessionPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	sessionPersistGauge.Set(float64(ts.Unix()))
}

// RecordSnapshot mirrors a freshly computed snapshot into the gauges.
func RecordSnapshot(snap domain.Snapshot) {
	currentStreakGauge.Set(float64(snap.CurrentStreak))
	longestStreakGauge.Set(float64(snap.LongestStreak))
	sessionsThisWeekGauge.Set(float64(snap.SessionsThisWeek))
	totalSessionsGauge.Set(float64(snap.TotalSessions))
}

// SnapshotRecorder adapts RecordSnapshot to the notifier port.
type SnapshotRecorder struct{}

// Publish implements domain.SnapshotNotifier.
func (SnapshotRecorder) Publish(_ context.Context, snap domain.Snapshot) error {
	RecordSnapshot(snap)
	return nil
}
