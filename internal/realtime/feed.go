// Package realtime turns the ledger's committed row changes into debounced,
// per-viewer snapshot pushes. A restaurant's changes arrive on a Feed; a
// Coordinator per restaurant waits for a quiet window, re-reads one
// consistent snapshot and hands it to the viewers the burst concerned.
package realtime

import (
	"context"
	"log"
	"sync"

	"github.com/erfan-mirasadi/menu-3d/internal/model"
)

// Feed carries committed changes scoped to a restaurant. Publish makes it a
// repository.ChangeSink.
type Feed interface {
	Publish(ctx context.Context, ev model.ChangeEvent) error
	// Subscribe delivers the restaurant's changes until cancel is called or
	// ctx ends. The channel is closed when delivery stops.
	Subscribe(ctx context.Context, restaurantID string) (events <-chan model.ChangeEvent, cancel func(), err error)
}

// SnapshotSource reads the consistent view a coordinator pushes.
type SnapshotSource interface {
	Snapshot(ctx context.Context, restaurantID string) (model.Snapshot, error)
}

const subscriberBuffer = 64

// MemoryFeed is an in-process Feed for the memory driver and tests.
type MemoryFeed struct {
	mu   sync.Mutex
	subs map[string]map[*memorySub]struct{}
}

type memorySub struct {
	ch   chan model.ChangeEvent
	once sync.Once
}

func NewMemoryFeed() *MemoryFeed {
	return &MemoryFeed{subs: map[string]map[*memorySub]struct{}{}}
}

// Publish fans ev out without blocking. A subscriber whose buffer is full
// misses the event; its coordinator re-reads the whole snapshot on the next
// one anyway.
func (f *MemoryFeed) Publish(_ context.Context, ev model.ChangeEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for s := range f.subs[ev.RestaurantID] {
		select {
		case s.ch <- ev:
		default:
			log.Printf("realtime: subscriber of %s is full, dropped %s %s", ev.RestaurantID, ev.Type, ev.Table)
		}
	}
	return nil
}

func (f *MemoryFeed) Subscribe(ctx context.Context, restaurantID string) (<-chan model.ChangeEvent, func(), error) {
	s := &memorySub{ch: make(chan model.ChangeEvent, subscriberBuffer)}
	f.mu.Lock()
	if f.subs[restaurantID] == nil {
		f.subs[restaurantID] = map[*memorySub]struct{}{}
	}
	f.subs[restaurantID][s] = struct{}{}
	f.mu.Unlock()

	cancel := func() {
		s.once.Do(func() {
			f.mu.Lock()
			delete(f.subs[restaurantID], s)
			if len(f.subs[restaurantID]) == 0 {
				delete(f.subs, restaurantID)
			}
			f.mu.Unlock()
			close(s.ch)
		})
	}
	go func() {
		<-ctx.Done()
		cancel()
	}()
	return s.ch, cancel, nil
}
