package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"teos_mining/internal/domain"
	"teos_mining/internal/logger"
	"teos_mining/internal/metrics"

	redis "github.com/redis/go-redis/v9"
)

const (
	DefaultStream = "teos:claim-events"

	payloadField = "event"
)

// RedisBus publishes to a Redis stream and consumes it with consumer
// groups. Unacknowledged entries are reclaimed with XAUTOCLAIM once they
// have been idle for MinIdle.
type RedisBus struct {
	client      *redis.Client
	stream      string
	consumer    string
	maxLen      int64
	block       time.Duration
	minIdle     time.Duration
	maxAttempts int

	mu       sync.Mutex
	attempts map[string]int
}

var (
	_ Bus          = (*RedisBus)(nil)
	_ GroupRemover = (*RedisBus)(nil)
)

func NewRedisBus(client *redis.Client, stream string) *RedisBus {
	if stream == "" {
		stream = DefaultStream
	}
	host, _ := os.Hostname()
	return &RedisBus{
		client:      client,
		stream:      stream,
		consumer:    fmt.Sprintf("%s-%d", host, os.Getpid()),
		maxLen:      100000,
		block:       2 * time.Second,
		minIdle:     30 * time.Second,
		maxAttempts: defaultMaxAttempts,
		attempts:    make(map[string]int),
	}
}

// WithTiming overrides the read block and reclaim idle durations
func (b *RedisBus) WithTiming(block, minIdle time.Duration) *RedisBus {
	b.block = block
	b.minIdle = minIdle
	return b
}

func (b *RedisBus) Publish(ctx context.Context, ev domain.ClaimEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	err = b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: b.stream,
		MaxLen: b.maxLen,
		Approx: true,
		Values: map[string]interface{}{payloadField: payload},
	}).Err()
	if err != nil {
		return domain.Transient(fmt.Errorf("xadd: %w", err))
	}
	return nil
}

func (b *RedisBus) ensureGroup(ctx context.Context, group string, fromLatest bool) error {
	start := "0"
	if fromLatest {
		start = "$"
	}
	err := b.client.XGroupCreateMkStream(ctx, b.stream, group, start).Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create group %s: %w", group, err)
	}
	return nil
}

func (b *RedisBus) Subscribe(ctx context.Context, group string, h Handler, opts ...SubscribeOption) error {
	o := applyOptions(opts)
	if err := b.ensureGroup(ctx, group, o.fromLatest); err != nil {
		return err
	}
	log := logger.With("component", "redis_bus", "group", group)

	lastReclaim := time.Time{}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if time.Since(lastReclaim) >= b.minIdle {
			lastReclaim = time.Now()
			msgs, _, err := b.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
				Stream:   b.stream,
				Group:    group,
				MinIdle:  b.minIdle,
				Start:    "0-0",
				Count:    50,
				Consumer: b.consumer,
			}).Result()
			if err != nil && !errors.Is(err, redis.Nil) && ctx.Err() == nil {
				log.Warn("xautoclaim failed", "error", err)
			}
			for _, m := range msgs {
				b.handle(ctx, group, m, h)
			}
		}

		streams, err := b.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    group,
			Consumer: b.consumer,
			Streams:  []string{b.stream, ">"},
			Count:    50,
			Block:    b.block,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn("xreadgroup failed", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}
		for _, s := range streams {
			for _, m := range s.Messages {
				b.handle(ctx, group, m, h)
			}
		}
	}
}

// handle acks on success. Failed entries stay pending for XAUTOCLAIM until
// the attempt budget runs out.
func (b *RedisBus) handle(ctx context.Context, group string, m redis.XMessage, h Handler) {
	ev, err := decodeMessage(m)
	if err != nil {
		logger.Error("dropping undecodable event", "group", group, "id", m.ID, "error", err)
		b.ack(ctx, group, m.ID)
		metrics.BusDeliveries.WithLabelValues(group, "dropped").Inc()
		return
	}

	if err := h(ctx, ev); err != nil {
		key := group + "/" + m.ID
		b.mu.Lock()
		b.attempts[key]++
		n := b.attempts[key]
		b.mu.Unlock()

		logger.Warn("event handler failed", "group", group, "event_id", ev.ID, "attempt", n, "error", err)
		metrics.BusDeliveries.WithLabelValues(group, "retry").Inc()
		if n >= b.maxAttempts {
			logger.Error("event dropped after retries", "group", group, "event_id", ev.ID)
			metrics.BusDeliveries.WithLabelValues(group, "dropped").Inc()
			b.ack(ctx, group, m.ID)
			b.forget(key)
		}
		return
	}

	b.ack(ctx, group, m.ID)
	b.forget(group + "/" + m.ID)
	metrics.BusDeliveries.WithLabelValues(group, "ok").Inc()
}

func (b *RedisBus) ack(ctx context.Context, group, id string) {
	if err := b.client.XAck(ctx, b.stream, group, id).Err(); err != nil {
		logger.Warn("xack failed", "group", group, "id", id, "error", err)
	}
}

func (b *RedisBus) forget(key string) {
	b.mu.Lock()
	delete(b.attempts, key)
	b.mu.Unlock()
}

func decodeMessage(m redis.XMessage) (domain.ClaimEvent, error) {
	var ev domain.ClaimEvent
	raw, ok := m.Values[payloadField]
	if !ok {
		return ev, errors.New("missing event field")
	}
	var data []byte
	switch v := raw.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return ev, fmt.Errorf("unexpected payload type %T", raw)
	}
	if err := json.Unmarshal(data, &ev); err != nil {
		return ev, fmt.Errorf("decode event: %w", err)
	}
	return ev, nil
}

// RemoveGroup destroys the consumer group and its pending entries
func (b *RedisBus) RemoveGroup(ctx context.Context, group string) error {
	if err := b.client.XGroupDestroy(ctx, b.stream, group).Err(); err != nil {
		return fmt.Errorf("destroy group %s: %w", group, err)
	}
	return nil
}

// Close leaves the shared client open; its owner closes it.
func (b *RedisBus) Close() error {
	return nil
}
