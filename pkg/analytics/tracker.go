// Package analytics records product events for a downstream forwarder.
package analytics

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-redis/redis/v8"
)

const DefaultStream = "waitlist:events"

type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type Event struct {
	Name       string
	Properties map[string]any
	OccurredAt time.Time
}

// Sink receives captured events.
type Sink interface {
	Publish(ctx context.Context, event Event) error
}

// Tracker is process-scoped state. Init runs its factory at most once; until
// then, and when init failed or produced no sink, Capture is a no-op.
type Tracker struct {
	once    sync.Once
	mu      sync.RWMutex
	sink    Sink
	initErr error
	logger  Logger
}

func NewTracker(logger Logger) *Tracker {
	return &Tracker{logger: logger}
}

var ErrNotInitialized = errors.New("analytics tracker not initialized")

// Init is idempotent: only the first call's factory is used and later calls
// return the first call's error.
func (t *Tracker) Init(factory func() (Sink, error)) error {
	t.once.Do(func() {
		sink, err := factory()

		t.mu.Lock()
		t.sink, t.initErr = sink, err
		t.mu.Unlock()

		if t.logger == nil {
			return
		}
		switch {
		case err != nil:
			t.logger.Warn("Analytics initialization failed; events will be dropped", "error", err)
		case sink == nil:
			t.logger.Info("Analytics disabled")
		default:
			t.logger.Info("Analytics initialized")
		}
	})

	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.initErr
}

func (t *Tracker) Ready() bool {
	if t == nil {
		return false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.sink != nil
}

// Capture publishes an event. Errors are returned for logging only.
func (t *Tracker) Capture(ctx context.Context, name string, properties map[string]any) error {
	if t == nil {
		return ErrNotInitialized
	}

	t.mu.RLock()
	sink := t.sink
	t.mu.RUnlock()

	if sink == nil {
		return ErrNotInitialized
	}

	return sink.Publish(ctx, Event{
		Name:       name,
		Properties: properties,
		OccurredAt: time.Now().UTC(),
	})
}

// RedisStreamSink appends events to a Redis stream.
type RedisStreamSink struct {
	client *redis.Client
	stream string
	maxLen int64
}

func NewRedisStreamSink(client *redis.Client, stream string) *RedisStreamSink {
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisStreamSink{client: client, stream: stream, maxLen: 100000}
}

func (s *RedisStreamSink) Publish(ctx context.Context, event Event) error {
	props, err := sonic.Marshal(event.Properties)
	if err != nil {
		return err
	}

	return s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"event":       event.Name,
			"properties":  string(props),
			"occurred_at": event.OccurredAt.Format(time.RFC3339Nano),
		},
	}).Err()
}
