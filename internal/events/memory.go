package events

import (
	"context"
	"sync"
	"time"

	"teos_mining/internal/domain"
	"teos_mining/internal/logger"
	"teos_mining/internal/metrics"
)

const (
	defaultCapacity    = 10000
	defaultMaxAttempts = 5
	defaultRetryDelay  = 200 * time.Millisecond
)

// MemoryBus is an in-process log with one read offset per group. The log
// keeps the last capacity events so a group that subscribes late still
// replays them.
type MemoryBus struct {
	mu     sync.Mutex
	log    []domain.ClaimEvent
	base   int
	groups map[string]int
	notify chan struct{}
	closed bool

	capacity    int
	maxAttempts int
	retryDelay  time.Duration
}

var (
	_ Bus          = (*MemoryBus)(nil)
	_ GroupRemover = (*MemoryBus)(nil)
)

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		groups:      make(map[string]int),
		notify:      make(chan struct{}),
		capacity:    defaultCapacity,
		maxAttempts: defaultMaxAttempts,
		retryDelay:  defaultRetryDelay,
	}
}

// WithRetry overrides the per-event attempt budget and delay between attempts
func (b *MemoryBus) WithRetry(maxAttempts int, delay time.Duration) *MemoryBus {
	b.mu.Lock()
	defer b.mu.Unlock()
	if maxAttempts > 0 {
		b.maxAttempts = maxAttempts
	}
	b.retryDelay = delay
	return b
}

func (b *MemoryBus) Publish(ctx context.Context, ev domain.ClaimEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	b.log = append(b.log, ev)
	if len(b.log) > b.capacity {
		drop := len(b.log) - b.capacity
		b.log = b.log[drop:]
		b.base += drop
		for g, off := range b.groups {
			if off < b.base {
				logger.Warn("memory bus overflow, events skipped", "group", g, "skipped", b.base-off)
				b.groups[g] = b.base
			}
		}
	}
	b.wake()
	return nil
}

func (b *MemoryBus) wake() {
	close(b.notify)
	b.notify = make(chan struct{})
}

func (b *MemoryBus) Subscribe(ctx context.Context, group string, h Handler, opts ...SubscribeOption) error {
	o := applyOptions(opts)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	if _, ok := b.groups[group]; !ok {
		if o.fromLatest {
			b.groups[group] = b.base + len(b.log)
		} else {
			b.groups[group] = b.base
		}
	}
	b.mu.Unlock()

	for {
		b.mu.Lock()
		if b.closed {
			b.mu.Unlock()
			return nil
		}
		off := b.groups[group]
		if off < b.base+len(b.log) {
			ev := b.log[off-b.base]
			b.groups[group] = off + 1
			b.mu.Unlock()

			if err := b.deliver(ctx, group, ev, h); err != nil {
				return err
			}
			continue
		}
		wait := b.notify
		b.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-wait:
		}
	}
}

// deliver retries h with a bounded budget. Only context cancellation is
// returned; exhausted events are logged and dropped.
func (b *MemoryBus) deliver(ctx context.Context, group string, ev domain.ClaimEvent, h Handler) error {
	for attempt := 1; attempt <= b.maxAttempts; attempt++ {
		err := h(ctx, ev)
		if err == nil {
			metrics.BusDeliveries.WithLabelValues(group, "ok").Inc()
			return nil
		}
		metrics.BusDeliveries.WithLabelValues(group, "retry").Inc()
		logger.Warn("event handler failed", "group", group, "event_id", ev.ID, "attempt", attempt, "error", err)

		if attempt == b.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.retryDelay):
		}
	}
	metrics.BusDeliveries.WithLabelValues(group, "dropped").Inc()
	logger.Error("event dropped after retries", "group", group, "event_id", ev.ID)
	return nil
}

// RemoveGroup forgets the group's offset; a later Subscribe starts fresh
func (b *MemoryBus) RemoveGroup(ctx context.Context, group string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.groups, group)
	return nil
}

func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		b.wake()
	}
	return nil
}
