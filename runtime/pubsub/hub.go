package pubsub

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Hub is an in-memory broker. Each topic is a room of subscriber channels.
type Hub struct {
	rooms  map[string]map[string]chan any
	subs   map[string]*Subscription
	buffer int
	logger *zap.Logger
	closed bool
	mu     sync.RWMutex
}

// HubOption configures a Hub
type HubOption func(*Hub)

// WithBuffer sets the per-subscription channel buffer
func WithBuffer(size int) HubOption {
	return func(h *Hub) {
		if size >= 0 {
			h.buffer = size
		}
	}
}

// WithLogger sets the logger used to report dropped payloads
func WithLogger(logger *zap.Logger) HubOption {
	return func(h *Hub) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHub creates an empty hub
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		rooms:  make(map[string]map[string]chan any),
		subs:   make(map[string]*Subscription),
		buffer: 64,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Publish delivers payload to every subscriber of topic. A subscriber whose
// buffer is full misses the payload.
func (h *Hub) Publish(ctx context.Context, topic string, payload any) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return ErrClosed
	}

	for id, ch := range h.rooms[topic] {
		select {
		case ch <- payload:
		case <-ctx.Done():
			return ctx.Err()
		default:
			h.logger.Warn("dropping payload for slow subscriber",
				zap.String("topic", topic),
				zap.String("subscription", id))
		}
	}
	return nil
}

// Subscribe opens a subscription to topics
func (h *Hub) Subscribe(ctx context.Context, topics ...string) (*Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrClosed
	}

	id := uuid.NewString()
	ch := make(chan any, h.buffer)
	for _, topic := range topics {
		room, ok := h.rooms[topic]
		if !ok {
			room = make(map[string]chan any)
			h.rooms[topic] = room
		}
		room[id] = ch
	}

	sub := NewSubscription(id, topics, ch, func() { h.release(id, topics, ch) })
	h.subs[id] = sub
	return sub, nil
}

func (h *Hub) release(id string, topics []string, ch chan any) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[id]; !ok {
		return
	}
	delete(h.subs, id)
	for _, topic := range topics {
		delete(h.rooms[topic], id)
		if len(h.rooms[topic]) == 0 {
			delete(h.rooms, topic)
		}
	}
	close(ch)
}

// Count returns the number of subscribers of topic
func (h *Hub) Count(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[topic])
}

// Topics returns the topics with at least one subscriber
func (h *Hub) Topics() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	topics := make([]string, 0, len(h.rooms))
	for topic := range h.rooms {
		topics = append(topics, topic)
	}
	return topics
}

// Close ends every open subscription
func (h *Hub) Close() error {
	h.mu.Lock()
	subs := make([]*Subscription, 0, len(h.subs))
	for _, s := range h.subs {
		subs = append(subs, s)
	}
	h.closed = true
	h.mu.Unlock()

	for _, s := range subs {
		s.Unsubscribe()
	}
	return nil
}
