// Package events is an in-process topic bus connecting the canonicalization
// service to the components that react to registered and canonicalized tools.
package events

import (
	"context"
	"path"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Event is a notification delivered to subscribers.
type Event struct {
	Topic     string         // e.g. "tool.registered", "tool.canonicalized"
	Source    string         // publishing component
	Data      map[string]any // payload
	Timestamp time.Time
}

// Handler processes one event.
type Handler func(ctx context.Context, e Event)

// SubscriptionID uniquely identifies a subscription.
type SubscriptionID uint64

type subscription struct {
	id         SubscriptionID
	pattern    string
	subscriber string
	handler    Handler
}

// Bus delivers events to every subscription whose pattern matches the topic.
// Patterns use path.Match syntax, so "tool.*" matches "tool.registered".
type Bus struct {
	mu     sync.RWMutex
	subs   []subscription
	nextID atomic.Uint64
	logger *zap.Logger
}

// NewBus creates an empty bus. A nil logger disables logging.
func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{logger: logger}
}

// Subscribe registers handler for topics matching pattern.
func (b *Bus) Subscribe(pattern, subscriber string, handler Handler) SubscriptionID {
	id := SubscriptionID(b.nextID.Add(1))

	b.mu.Lock()
	b.subs = append(b.subs, subscription{
		id:         id,
		pattern:    pattern,
		subscriber: subscriber,
		handler:    handler,
	})
	b.mu.Unlock()

	b.logger.Debug("bus: subscribed",
		zap.String("pattern", pattern),
		zap.String("subscriber", subscriber),
		zap.Uint64("subscription_id", uint64(id)),
	)
	return id
}

// Unsubscribe removes a subscription. Returns true if it existed.
func (b *Bus) Unsubscribe(id SubscriptionID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return true
		}
	}
	return false
}

// Publish delivers an event synchronously, in subscription order, and
// returns the number of handlers invoked. A panicking handler is logged and
// does not stop delivery to the rest.
func (b *Bus) Publish(ctx context.Context, topic, source string, data map[string]any) int {
	e := Event{
		Topic:     topic,
		Source:    source,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}

	b.mu.RLock()
	matched := make([]subscription, 0, len(b.subs))
	for _, s := range b.subs {
		if ok, _ := path.Match(s.pattern, topic); ok {
			matched = append(matched, s)
		}
	}
	b.mu.RUnlock()

	if len(matched) == 0 {
		b.logger.Debug("bus: event published (no subscribers)", zap.String("topic", topic))
		return 0
	}

	for _, s := range matched {
		b.deliver(ctx, s, e)
	}
	return len(matched)
}

func (b *Bus) deliver(ctx context.Context, s subscription, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("bus: event handler panic",
				zap.String("topic", e.Topic),
				zap.String("subscriber", s.subscriber),
				zap.Any("panic", r),
			)
		}
	}()
	s.handler(ctx, e)
}

// Subscribers returns the number of subscriptions matching topic.
func (b *Bus) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := 0
	for _, s := range b.subs {
		if ok, _ := path.Match(s.pattern, topic); ok {
			n++
		}
	}
	return n
}
