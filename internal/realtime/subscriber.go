package realtime

import "context"

// Handler receives the raw payload of every event delivered on a topic.
// Delivery order is preserved per topic; no ordering holds across topics.
type Handler func(topic string, payload []byte)

// Subscriber is the change-event subscription service. Implementations must
// stop delivering events for a topic once Unsubscribe returns, so a channel
// switch can tear down cleanly before the next snapshot load begins.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string, handler Handler) error
	Unsubscribe(ctx context.Context, topic string) error
	Close() error
}
