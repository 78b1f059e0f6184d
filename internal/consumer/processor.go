// Package consumer reads session events from Kafka and applies them downstream.
package consumer

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/scottdixon-github/App-Garden/internal/events"
)

// wireHeaderLen is the magic byte plus the big-endian schema id.
const wireHeaderLen = 5

// ErrUndecodable marks records that can never be handled and are skipped.
var ErrUndecodable = errors.New("undecodable session event")

// Reader is the subset of kafka.Reader the processor uses.
type Reader interface {
	FetchMessage(context.Context) (kafka.Message, error)
	CommitMessages(context.Context, ...kafka.Message) error
	Close() error
}

// Handler applies one decoded session event.
type Handler interface {
	Handle(context.Context, Message) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(context.Context, Message) error

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, msg Message) error { return f(ctx, msg) }

// Message is a session event unwrapped from its wire frame.
type Message struct {
	Topic         string
	Partition     int
	Offset        int64
	Timestamp     time.Time
	Key           string
	EventType     string
	SchemaSubject string
	SchemaID      int
	Payload       json.RawMessage
}

// Option configures a Processor.
type Option func(*Processor)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// Processor fetches records, unwraps them and hands them to a Handler.
// A record is committed once handled or once found undecodable; a handler
// failure leaves it uncommitted for redelivery.
type Processor struct {
	reader  Reader
	handler Handler
	logger  *zap.Logger
}

// NewProcessor builds a Processor.
func NewProcessor(reader Reader, handler Handler, opts ...Option) *Processor {
	p := &Processor{
		reader:  reader,
		handler: handler,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run blocks until ctx is done or the reader reports cancellation.
func (p *Processor) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		raw, err := p.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			p.logger.Warn("fetch failed", zap.Error(err))
			continue
		}

		if p.apply(ctx, raw) {
			if err := p.reader.CommitMessages(ctx, raw); err != nil {
				p.logger.Error("commit failed", zap.Int64("offset", raw.Offset), zap.Error(err))
			}
		}
	}
}

// apply reports whether raw should be committed.
func (p *Processor) apply(ctx context.Context, raw kafka.Message) bool {
	msg, err := decodeMessage(raw)
	if err != nil {
		p.logger.Warn("skipping session event",
			zap.String("topic", raw.Topic),
			zap.Int("partition", raw.Partition),
			zap.Int64("offset", raw.Offset),
			zap.Error(err),
		)
		recordOutcome(msg, outcomeDecodeError)
		return true
	}

	if err := p.handler.Handle(ctx, msg); err != nil {
		p.logger.Error("session event not applied",
			zap.String("event_type", msg.EventType),
			zap.String("session_id", msg.Key),
			zap.Error(err),
		)
		recordOutcome(msg, outcomeHandlerError)
		return false
	}

	recordOutcome(msg, outcomeProcessed)
	return true
}

func decodeMessage(raw kafka.Message) (Message, error) {
	msg := Message{
		Topic:     raw.Topic,
		Partition: raw.Partition,
		Offset:    raw.Offset,
		Timestamp: raw.Time,
		Key:       string(raw.Key),
	}
	if len(raw.Value) < wireHeaderLen {
		return msg, fmt.Errorf("%w: payload length %d", ErrUndecodable, len(raw.Value))
	}
	if raw.Value[0] != 0 {
		return msg, fmt.Errorf("%w: magic byte %d", ErrUndecodable, raw.Value[0])
	}

	eventType, ok := headerValue(raw, events.HeaderEventType)
	if !ok {
		return msg, fmt.Errorf("%w: missing %s header", ErrUndecodable, events.HeaderEventType)
	}
	msg.EventType = eventType
	if !events.Known(eventType) {
		return msg, fmt.Errorf("%w: event type %q", ErrUndecodable, eventType)
	}

	msg.SchemaSubject, _ = headerValue(raw, events.HeaderSchemaSubject)
	msg.SchemaID = int(binary.BigEndian.Uint32(raw.Value[1:wireHeaderLen]))
	msg.Payload = json.RawMessage(append([]byte(nil), raw.Value[wireHeaderLen:]...))
	return msg, nil
}

func headerValue(raw kafka.Message, key string) (string, bool) {
	for _, header := range raw.Headers {
		if header.Key == key {
			return string(header.Value), true
		}
	}
	return "", false
}
