package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"teos_mining/internal/domain"
	"teos_mining/internal/events"
	"teos_mining/internal/logger"
	"teos_mining/internal/metrics"

	"github.com/google/uuid"
)

// Hub fans claim events out to the sockets of the account they credit
type Hub struct {
	mu      sync.RWMutex
	clients map[uuid.UUID]map[*Client]struct{}

	bus   events.Bus
	group string
}

// NewHub builds a hub reading bus under group. Each server instance needs
// its own group so every instance sees every event; the default is keyed
// on host and pid and removed again when Run returns.
func NewHub(bus events.Bus, group string) *Hub {
	if group == "" {
		group = defaultGroup()
	}
	return &Hub{
		clients: make(map[uuid.UUID]map[*Client]struct{}),
		bus:     bus,
		group:   group,
	}
}

func defaultGroup() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "local"
	}
	return fmt.Sprintf("ws-%s-%d", host, os.Getpid())
}

func (h *Hub) Group() string { return h.group }

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	set, ok := h.clients[c.AccountID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.AccountID] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()
	metrics.WSConnections.Inc()
	logger.Debug("ws client registered", "account_id", c.AccountID)
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	set, ok := h.clients[c.AccountID]
	if ok {
		if _, present := set[c]; present {
			delete(set, c)
			metrics.WSConnections.Dec()
		}
		if len(set) == 0 {
			delete(h.clients, c.AccountID)
		}
	}
	h.mu.Unlock()
}

// Connections returns the number of registered sockets
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}

// Run consumes new events until ctx is done or the bus closes
func (h *Hub) Run(ctx context.Context) {
	defer h.removeGroup()
	for {
		err := h.bus.Subscribe(ctx, h.group, h.dispatch, events.FromLatest())
		if err == nil || errors.Is(err, events.ErrClosed) || ctx.Err() != nil {
			return
		}
		logger.Warn("ws hub subscription failed, retrying", "group", h.group, "error", err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

func (h *Hub) removeGroup() {
	r, ok := h.bus.(events.GroupRemover)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.RemoveGroup(ctx, h.group); err != nil {
		logger.Warn("ws hub group cleanup failed", "group", h.group, "error", err)
	}
}

// dispatch never fails: a slow socket loses the frame, not the stream
func (h *Hub) dispatch(ctx context.Context, ev domain.ClaimEvent) error {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients[ev.AccountID]))
	for c := range h.clients[ev.AccountID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()
	if len(targets) == 0 {
		return nil
	}

	payload, err := json.Marshal(messageFor(ev))
	if err != nil {
		logger.Error("ws encode event failed", "event_id", ev.ID, "error", err)
		return nil
	}
	for _, c := range targets {
		c.queue(payload)
	}
	return nil
}
