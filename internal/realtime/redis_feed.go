package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/erfan-mirasadi/menu-3d/internal/model"
)

// RedisFeed fans changes out over Redis pub/sub, one channel per
// restaurant, so every server instance sees every committed change.
type RedisFeed struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisFeed(rdb *redis.Client, prefix string) *RedisFeed {
	return &RedisFeed{rdb: rdb, prefix: prefix}
}

func (f *RedisFeed) channel(restaurantID string) string {
	return fmt.Sprintf("%s:changes:%s", f.prefix, restaurantID)
}

func (f *RedisFeed) Publish(ctx context.Context, ev model.ChangeEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode change: %w", err)
	}
	return f.rdb.Publish(ctx, f.channel(ev.RestaurantID), payload).Err()
}

func (f *RedisFeed) Subscribe(ctx context.Context, restaurantID string) (<-chan model.ChangeEvent, func(), error) {
	ps := f.rdb.Subscribe(ctx, f.channel(restaurantID))
	// Receive blocks until the subscription is confirmed, so no change
	// published after Subscribe returns is missed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, fmt.Errorf("subscribe %s: %w", restaurantID, err)
	}
	out := make(chan model.ChangeEvent, subscriberBuffer)
	done := make(chan struct{})
	go func() {
		defer close(out)
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev model.ChangeEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					log.Printf("realtime: bad change on %s: %v", msg.Channel, err)
					continue
				}
				select {
				case out <- ev:
				default:
					log.Printf("realtime: subscriber of %s is full, dropped %s %s", restaurantID, ev.Type, ev.Table)
				}
			}
		}
	}()
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			_ = ps.Close()
		})
	}
	return out, cancel, nil
}
