package realtime

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/PouplarWesel/Shrubbi-sub000/pkg/logger"
)

// RedisSubscriber delivers change events over redis pub/sub, one redis
// channel per topic.
type RedisSubscriber struct {
	client   *redis.Client
	log      *logger.Logger
	mu       sync.RWMutex
	pubsub   *redis.PubSub
	handlers map[string]Handler
	ctx      context.Context
	cancel   context.CancelFunc
	started  bool
}

func NewRedisSubscriber(client *redis.Client, log *logger.Logger) *RedisSubscriber {
	if log == nil {
		log = logger.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisSubscriber{
		client:   client,
		log:      log,
		handlers: make(map[string]Handler),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (s *RedisSubscriber) Subscribe(ctx context.Context, topic string, handler Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pubsub == nil {
		s.pubsub = s.client.Subscribe(s.ctx)
	}
	if err := s.pubsub.Subscribe(ctx, topic); err != nil {
		return err
	}
	s.handlers[topic] = handler
	if !s.started {
		s.started = true
		go s.listen()
	}
	return nil
}

func (s *RedisSubscriber) Unsubscribe(ctx context.Context, topic string) error {
	s.mu.Lock()
	delete(s.handlers, topic)
	pubsub := s.pubsub
	s.mu.Unlock()

	if pubsub == nil {
		return nil
	}
	return pubsub.Unsubscribe(ctx, topic)
}

func (s *RedisSubscriber) Close() error {
	s.cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = make(map[string]Handler)
	if s.pubsub != nil {
		return s.pubsub.Close()
	}
	return nil
}

func (s *RedisSubscriber) listen() {
	ch := s.pubsub.Channel()
	for {
		select {
		case <-s.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			s.mu.RLock()
			handler := s.handlers[msg.Channel]
			s.mu.RUnlock()
			if handler == nil {
				continue
			}
			handler(msg.Channel, []byte(msg.Payload))
		}
	}
}
