package realtime

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/erfan-mirasadi/menu-3d/internal/model"
)

// Hub runs one Coordinator per restaurant while anyone watches it.
type Hub struct {
	ctx      context.Context
	source   SnapshotSource
	feed     Feed
	throttle Throttle
	window   time.Duration

	mu     sync.Mutex
	coords map[string]*hubEntry
}

type hubEntry struct {
	coord  *Coordinator
	refs   int
	cancel context.CancelFunc
}

// NewHub returns a hub whose coordinators stop when ctx ends.
func NewHub(ctx context.Context, source SnapshotSource, feed Feed, throttle Throttle, window time.Duration) *Hub {
	return &Hub{
		ctx:      ctx,
		source:   source,
		feed:     feed,
		throttle: throttle,
		window:   window,
		coords:   map[string]*hubEntry{},
	}
}

// Subscription is one viewer's stream.
type Subscription struct {
	Snapshots <-chan model.Snapshot
	Notes     <-chan Notification
	close     func()
}

// Close stops the stream. It is safe to call more than once.
func (s *Subscription) Close() { s.close() }

// Watch starts streaming restaurantID to v.
func (h *Hub) Watch(restaurantID string, v Viewer) *Subscription {
	h.mu.Lock()
	e, ok := h.coords[restaurantID]
	if !ok {
		ctx, cancel := context.WithCancel(h.ctx)
		e = &hubEntry{
			coord:  NewCoordinator(restaurantID, h.source, h.feed, h.throttle, h.window),
			cancel: cancel,
		}
		h.coords[restaurantID] = e
		go func(c *Coordinator) {
			if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("realtime: coordinator %s stopped: %v", restaurantID, err)
			}
		}(e.coord)
	}
	e.refs++
	h.mu.Unlock()

	snaps, notes, stop := e.coord.Watch(v)
	var once sync.Once
	return &Subscription{
		Snapshots: snaps,
		Notes:     notes,
		close: func() {
			once.Do(func() {
				stop()
				h.release(restaurantID, e)
			})
		},
	}
}

func (h *Hub) release(restaurantID string, e *hubEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	e.refs--
	if e.refs > 0 {
		return
	}
	e.cancel()
	if h.coords[restaurantID] == e {
		delete(h.coords, restaurantID)
	}
}

// Snapshot returns the restaurant as v sees it, from a running coordinator
// when there is one, otherwise straight from the source.
func (h *Hub) Snapshot(ctx context.Context, restaurantID string, v Viewer) (model.Snapshot, error) {
	h.mu.Lock()
	e := h.coords[restaurantID]
	h.mu.Unlock()
	if e != nil {
		if snap, ok := e.coord.Current(v); ok {
			return snap, nil
		}
	}
	snap, err := h.source.Snapshot(ctx, restaurantID)
	if err != nil {
		return model.Snapshot{}, err
	}
	return View(v, snap), nil
}

func (h *Hub) active() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.coords)
}
