package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"societyhub/internal/cache"
	"societyhub/internal/logger"
)

// RedisFeed distributes events over redis pub/sub so that every API instance
// sees writes made by the others. One channel is used per collection.
type RedisFeed struct {
	client *cache.Client
	prefix string
	log    *logger.Logger
}

// NewRedis creates a feed publishing on "<prefix><collection>" channels.
func NewRedis(client *cache.Client, prefix string, log *logger.Logger) *RedisFeed {
	return &RedisFeed{client: client, prefix: prefix, log: log.With("service", "RedisFeed")}
}

func (f *RedisFeed) channel(collection string) string {
	return f.prefix + collection
}

func (f *RedisFeed) Publish(ctx context.Context, ev Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return f.client.Publish(ctx, f.channel(ev.Collection), raw)
}

func (f *RedisFeed) Subscribe(ctx context.Context, collection string) (*Listener, error) {
	subCtx, cancel := context.WithCancel(ctx)
	sub, err := f.client.Subscribe(subCtx, f.channel(collection))
	if err != nil {
		cancel()
		return nil, err
	}

	out := make(chan Event, listenerBuffer)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(out)
		msgs := sub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case m, ok := <-msgs:
				if !ok || m == nil {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
					f.log.Warn("bad feed payload", "channel", m.Channel, "error", err)
					continue
				}
				offer(out, ev)
			}
		}
	}()

	return newListener(out, func() {
		cancel()
		_ = sub.Close()
		wg.Wait()
	}), nil
}
