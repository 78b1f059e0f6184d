package cache

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/scottdixon-github/App-Garden/internal/domain"
)

// RedisNotifier publishes snapshots as JSON on a pub/sub channel so processes
// other than the writer (the consumer, for example) can reach websocket clients.
type RedisNotifier struct {
	client  redis.UniversalClient
	channel string
}

// NewRedisNotifier constructs a RedisNotifier.
func NewRedisNotifier(client redis.UniversalClient, channel string) *RedisNotifier {
	return &RedisNotifier{client: client, channel: channel}
}

// Publish implements domain.SnapshotNotifier.
func (n *RedisNotifier) Publish(ctx context.Context, snap domain.Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return n.client.Publish(ctx, n.channel, raw).Err()
}

// Subscribe delivers every snapshot published on channel to fn until ctx is done.
// Undecodable payloads are logged and skipped.
func Subscribe(ctx context.Context, client redis.UniversalClient, channel string, logger *zap.Logger, fn func(domain.Snapshot)) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	sub := client.Subscribe(ctx, channel)
	defer sub.Close()

	// Wait for the subscription to be confirmed before reading.
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var snap domain.Snapshot
			if err := json.Unmarshal([]byte(msg.Payload), &snap); err != nil {
				logger.Warn("discarding malformed snapshot update", zap.String("channel", channel), zap.Error(err))
				continue
			}
			fn(snap)
		}
	}
}
