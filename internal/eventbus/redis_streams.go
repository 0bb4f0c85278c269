package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisStreamsClient is the subset of Redis Streams operations the bus
// needs. The abstraction allows for easy mocking in tests.
type RedisStreamsClient interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) (string, error)
	XReadGroup(ctx context.Context, args *redis.XReadGroupArgs) ([]redis.XStream, error)
	XAck(ctx context.Context, stream, group string, ids ...string) (int64, error)
	XGroupCreateMkStream(ctx context.Context, stream, group, start string) error
}

// RedisStreamsClientAdapter adapts a go-redis/v9 Client to the
// RedisStreamsClient interface.
type RedisStreamsClientAdapter struct {
	Client *redis.Client
}

// XAdd adds an entry to a stream.
func (a *RedisStreamsClientAdapter) XAdd(ctx context.Context, args *redis.XAddArgs) (string, error) {
	return a.Client.XAdd(ctx, args).Result()
}

// XReadGroup reads entries from a stream using a consumer group.
func (a *RedisStreamsClientAdapter) XReadGroup(ctx context.Context, args *redis.XReadGroupArgs) ([]redis.XStream, error) {
	return a.Client.XReadGroup(ctx, args).Result()
}

// XAck acknowledges processed messages.
func (a *RedisStreamsClientAdapter) XAck(ctx context.Context, stream, group string, ids ...string) (int64, error) {
	return a.Client.XAck(ctx, stream, group, ids...).Result()
}

// XGroupCreateMkStream creates a consumer group (and the stream if needed).
func (a *RedisStreamsClientAdapter) XGroupCreateMkStream(ctx context.Context, stream, group, start string) error {
	return a.Client.XGroupCreateMkStream(ctx, stream, group, start).Err()
}

// RedisStreamsConfig holds configuration for the Redis Streams event bus.
type RedisStreamsConfig struct {
	StreamKey     string        // Redis stream key name
	ConsumerGroup string        // Consumer group name
	ConsumerName  string        // Unique consumer name within the group
	MaxLen        int64         // Max stream length (0 = unlimited, uses MAXLEN ~ approximation)
	BlockTimeout  time.Duration // Block timeout for XREADGROUP (0 = non-blocking)
	BatchSize     int64         // Number of messages to read at once
}

// DefaultRedisStreamsConfig returns default configuration.
func DefaultRedisStreamsConfig() RedisStreamsConfig {
	return RedisStreamsConfig{
		StreamKey:     "httpcapture-events",
		ConsumerGroup: "httpcapture-consumers",
		ConsumerName:  "consumer-1",
		MaxLen:        10000,
		BlockTimeout:  5 * time.Second,
		BatchSize:     100,
	}
}

// RedisStreamsEventBus implements EventBus on Redis Streams, giving capture
// events durable, at-least-once delivery across processes.
type RedisStreamsEventBus struct {
	client       RedisStreamsClient
	config       RedisStreamsConfig
	logger       *zap.Logger
	stopCh       chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup
	groupCreated atomic.Bool
	published    atomic.Int64
	dropped      atomic.Int64
}

// NewRedisStreamsEventBus creates a new Redis Streams event bus.
func NewRedisStreamsEventBus(client RedisStreamsClient, config RedisStreamsConfig, logger *zap.Logger) *RedisStreamsEventBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStreamsEventBus{
		client: client,
		config: config,
		logger: logger,
		stopCh: make(chan struct{}),
	}
}

// EnsureConsumerGroup creates the consumer group if it doesn't exist.
func (b *RedisStreamsEventBus) EnsureConsumerGroup(ctx context.Context) error {
	if b.groupCreated.Load() {
		return nil
	}
	err := b.client.XGroupCreateMkStream(ctx, b.config.StreamKey, b.config.ConsumerGroup, "0")
	if err != nil && !isGroupExistsError(err) {
		return fmt.Errorf("create consumer group: %w", err)
	}
	b.groupCreated.Store(true)
	return nil
}

// isGroupExistsError checks if the error indicates the group already
// exists. Redis returns "BUSYGROUP Consumer Group name already exists".
func isGroupExistsError(err error) bool {
	return err != nil && err.Error() == "BUSYGROUP Consumer Group name already exists"
}

// Publish adds an event to the Redis stream using XADD.
func (b *RedisStreamsEventBus) Publish(ctx context.Context, evt Event) {
	data, err := json.Marshal(evt)
	if err != nil {
		b.logger.Error("marshal capture event", zap.Error(err))
		b.dropped.Add(1)
		return
	}

	args := &redis.XAddArgs{
		Stream: b.config.StreamKey,
		Values: map[string]interface{}{"data": string(data)},
	}
	if b.config.MaxLen > 0 {
		args.MaxLen = b.config.MaxLen
		args.Approx = true
	}

	if _, err := b.client.XAdd(ctx, args); err != nil {
		b.logger.Error("publish capture event", zap.String("stream", b.config.StreamKey), zap.Error(err))
		b.dropped.Add(1)
		return
	}
	b.published.Add(1)
}

// Subscribe returns a channel fed by a background consumer-group reader.
func (b *RedisStreamsEventBus) Subscribe() <-chan Event {
	ch := make(chan Event, b.config.BatchSize)
	b.wg.Add(1)
	go b.consumeLoop(ch)
	return ch
}

func (b *RedisStreamsEventBus) consumeLoop(ch chan Event) {
	defer b.wg.Done()
	defer close(ch)

	ctx := context.Background()
	if err := b.EnsureConsumerGroup(ctx); err != nil {
		b.logger.Error("ensure consumer group", zap.Error(err))
		return
	}

	for {
		select {
		case <-b.stopCh:
			return
		default:
		}

		streams, err := b.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    b.config.ConsumerGroup,
			Consumer: b.config.ConsumerName,
			Streams:  []string{b.config.StreamKey, ">"},
			Count:    b.config.BatchSize,
			Block:    b.config.BlockTimeout,
		})
		if err != nil {
			if err == redis.Nil {
				continue
			}
			select {
			case <-b.stopCh:
				return
			default:
				b.logger.Warn("read capture event stream", zap.Error(err))
				time.Sleep(time.Second)
				continue
			}
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				evt, ok := decodeStreamMessage(msg)
				if !ok {
					// Ack malformed entries so they are not redelivered forever.
					_, _ = b.client.XAck(ctx, b.config.StreamKey, b.config.ConsumerGroup, msg.ID)
					continue
				}
				select {
				case ch <- evt:
					_, _ = b.client.XAck(ctx, b.config.StreamKey, b.config.ConsumerGroup, msg.ID)
				case <-b.stopCh:
					return
				}
			}
		}
	}
}

func decodeStreamMessage(msg redis.XMessage) (Event, bool) {
	var evt Event
	raw, ok := msg.Values["data"].(string)
	if !ok {
		return evt, false
	}
	if err := json.Unmarshal([]byte(raw), &evt); err != nil {
		return evt, false
	}
	return evt, true
}

// Stop shuts down the consumer goroutines and waits for them to exit.
func (b *RedisStreamsEventBus) Stop() {
	b.stopOnce.Do(func() { close(b.stopCh) })
	b.wg.Wait()
}

// Stats returns published and dropped counts.
func (b *RedisStreamsEventBus) Stats() (published, dropped int64) {
	return b.published.Load(), b.dropped.Load()
}
