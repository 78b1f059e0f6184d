package consumer

import (
	"context"

	"go.uber.org/zap"

	"github.com/scottdixon-github/App-Garden/internal/domain"
	"github.com/scottdixon-github/App-Garden/internal/events"
)

type snapshotRefresher interface {
	Refresh(context.Context) (domain.Snapshot, error)
}

// SnapshotProjector recomputes the streak snapshot whenever the session history changes,
// which refreshes the cache and notifies subscribers.
type SnapshotProjector struct {
	service snapshotRefresher
	logger  *zap.Logger
}

// NewSnapshotProjector wraps a service exposing Refresh.
func NewSnapshotProjector(service snapshotRefresher, logger *zap.Logger) *SnapshotProjector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotProjector{service: service, logger: logger}
}

// Handle ignores event types that do not change the history.
func (p *SnapshotProjector) Handle(ctx context.Context, msg Message) error {
	switch msg.EventType {
	case events.TypeSessionCompleted, events.TypeSessionDeleted:
	default:
		return nil
	}

	snap, err := p.service.Refresh(ctx)
	if err != nil {
		return err
	}
	recordProjection(snap)
	p.logger.Debug("snapshot projected",
		zap.String("event_type", msg.EventType),
		zap.Int("current_streak", snap.CurrentStreak),
		zap.Int("total_sessions", snap.TotalSessions),
	)
	return nil
}

// Handlers runs each handler in order and stops at the first error so the
// message is redelivered.
type Handlers []Handler

// Handle implements Handler.
func (hs Handlers) Handle(ctx context.Context, msg Message) error {
	for _, h := range hs {
		if err := h.Handle(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}
