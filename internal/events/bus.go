// Package events carries claim and referral-bonus events from the claim
// path to background consumers. Delivery is at least once, so handlers
// must be idempotent.
package events

import (
	"context"
	"errors"

	"teos_mining/internal/domain"
)

var ErrClosed = errors.New("event bus closed")

// Handler processes one event. A non-nil error asks for redelivery.
type Handler func(ctx context.Context, ev domain.ClaimEvent) error

type Bus interface {
	Publish(ctx context.Context, ev domain.ClaimEvent) error
	// Subscribe blocks, feeding events to h until ctx is done or the bus
	// closes. Consumers sharing a group split the events between them.
	Subscribe(ctx context.Context, group string, h Handler, opts ...SubscribeOption) error
	Close() error
}

// GroupRemover is implemented by buses whose consumer groups outlive the
// process. Per-instance consumers remove their group on shutdown.
type GroupRemover interface {
	RemoveGroup(ctx context.Context, group string) error
}

type subscribeOptions struct {
	fromLatest bool
}

type SubscribeOption func(*subscribeOptions)

// FromLatest starts a new group at the end of the stream instead of
// replaying retained events.
func FromLatest() SubscribeOption {
	return func(o *subscribeOptions) { o.fromLatest = true }
}

func applyOptions(opts []SubscribeOption) subscribeOptions {
	var o subscribeOptions
	for _, fn := range opts {
		fn(&o)
	}
	return o
}
