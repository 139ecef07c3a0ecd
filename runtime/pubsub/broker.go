// Package pubsub delivers change events to subscription resolvers.
package pubsub

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by a closed broker
var ErrClosed = errors.New("pubsub: broker closed")

// Broker publishes payloads on topics and opens subscriptions to them.
type Broker interface {
	Publish(ctx context.Context, topic string, payload any) error
	Subscribe(ctx context.Context, topics ...string) (*Subscription, error)
}

// Subscription is an open stream of payloads from one or more topics.
type Subscription struct {
	ID     string
	Topics []string
	C      <-chan any

	release func()
	once    sync.Once
}

// NewSubscription wraps a payload channel. release is called once, by the
// first Unsubscribe.
func NewSubscription(id string, topics []string, c <-chan any, release func()) *Subscription {
	return &Subscription{ID: id, Topics: topics, C: c, release: release}
}

// Unsubscribe runs the cleanup callbacks, in order, and then releases the
// underlying source. Later calls do nothing.
func (s *Subscription) Unsubscribe(cleanup ...func()) {
	s.once.Do(func() {
		for _, fn := range cleanup {
			if fn != nil {
				fn()
			}
		}
		if s.release != nil {
			s.release()
		}
	})
}
