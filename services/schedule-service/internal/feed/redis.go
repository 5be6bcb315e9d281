package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

type RedisFeed struct {
	rdb    *redis.Client
	logger *slog.Logger
}

func NewRedisFeed(rdb *redis.Client, logger *slog.Logger) *RedisFeed {
	return &RedisFeed{rdb: rdb, logger: logger}
}

func (f *RedisFeed) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	ps := f.rdb.Subscribe(ctx, channel)
	// Force the SUBSCRIBE round trip so a dead broker fails here, not on the
	// first receive.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	sub := &redisSubscription{
		ps:     ps,
		events: make(chan Event),
		done:   make(chan struct{}),
	}
	go sub.pump(f.logger)
	return sub, nil
}

type redisSubscription struct {
	ps        *redis.PubSub
	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
}

func (s *redisSubscription) pump(logger *slog.Logger) {
	defer close(s.events)
	for msg := range s.ps.Channel() {
		var ev Event
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			logger.Warn("malformed feed payload", "channel", msg.Channel, "err", err)
			// Still worth a refetch: something changed even if we cannot say what.
			ev = Event{Type: "update"}
		}
		select {
		case s.events <- ev:
		case <-s.done:
			return
		}
	}
}

func (s *redisSubscription) Events() <-chan Event {
	return s.events
}

// Status pings over the pub/sub connection itself, which is what catches a
// silently dropped socket that never produced an error event.
func (s *redisSubscription) Status(ctx context.Context) error {
	return s.ps.Ping(ctx)
}

func (s *redisSubscription) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return s.ps.Close()
}
