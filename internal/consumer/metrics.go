package consumer

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/scottdixon-github/App-Garden/internal/domain"
)

const (
	outcomeProcessed    = "processed"
	outcomeHandlerError = "handler_error"
	outcomeDecodeError  = "decode_error"
)

var (
	messagesCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "garden_streak",
		Subsystem: "consumer",
		Name:      "messages_total",
		Help:      "Session event messages read from Kafka, by outcome.",
	}, []string{"event_type", "outcome"})

	lastEventGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "garden_streak",
		Subsystem: "consumer",
		Name:      "last_event_timestamp_seconds",
		Help:      "Unix timestamp of the most recent session event applied.",
	})

	projectedStreakGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "garden_streak",
		Subsystem: "consumer",
		Name:      "projected_streak_days",
		Help:      "Streak lengths from the last projected snapshot.",
	}, []string{"kind"})
)

func init() {
	prometheus.MustRegister(messagesCounter, lastEventGauge, projectedStreakGauge)
}

func recordOutcome(msg Message, outcome string) {
	eventType := msg.EventType
	if eventType == "" {
		eventType = "unknown"
	}
	messagesCounter.WithLabelValues(eventType, outcome).Inc()
	if outcome == outcomeProcessed && !msg.Timestamp.IsZero() {
		lastEventGauge.Set(float64(msg.Timestamp.Unix()))
	}
}

func recordProjection(snap domain.Snapshot) {
	projectedStreakGauge.WithLabelValues("current").Set(float64(snap.CurrentStreak))
	projectedStreakGauge.WithLabelValues("longest").Set(float64(snap.LongestStreak))
}
