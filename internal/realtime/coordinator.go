package realtime

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/erfan-mirasadi/menu-3d/internal/model"
)

// DefaultWindow is the quiet period a burst of changes must end with
// before the snapshot is re-read.
const DefaultWindow = 500 * time.Millisecond

// ErrFeedClosed is returned by Run when the feed stops delivering.
var ErrFeedClosed = errors.New("realtime: change feed closed")

// Coordinator keeps the latest snapshot of one restaurant and pushes it to
// watchers. Events reset a single debounce timer; only when it fires is the
// snapshot re-read, once, and delivered to the watchers the burst concerned.
type Coordinator struct {
	restaurantID string
	source       SnapshotSource
	feed         Feed
	throttle     Throttle
	window       time.Duration

	current atomic.Pointer[model.Snapshot]

	mu       sync.Mutex
	watchers map[*watcher]struct{}
	fetches  atomic.Int64
}

type watcher struct {
	viewer Viewer
	snaps  chan model.Snapshot
	notes  chan Notification
	dirty  bool
}

// NewCoordinator builds a coordinator. throttle may be nil to disable
// notification de-duplication; window <= 0 selects DefaultWindow.
func NewCoordinator(restaurantID string, source SnapshotSource, feed Feed, throttle Throttle, window time.Duration) *Coordinator {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Coordinator{
		restaurantID: restaurantID,
		source:       source,
		feed:         feed,
		throttle:     throttle,
		window:       window,
		watchers:     map[*watcher]struct{}{},
	}
}

// Run subscribes to the feed and serves watchers until ctx ends.
func (c *Coordinator) Run(ctx context.Context) error {
	events, cancel, err := c.feed.Subscribe(ctx, c.restaurantID)
	if err != nil {
		return err
	}
	defer cancel()

	c.refresh(ctx, true)

	timer := time.NewTimer(c.window)
	timer.Stop()
	defer timer.Stop()
	armed := false

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return ErrFeedClosed
			}
			c.observe(ctx, ev)
			timer.Reset(c.window)
			armed = true
		case <-timer.C:
			if !armed {
				continue
			}
			armed = false
			c.refresh(ctx, false)
		}
	}
}

// observe marks the watchers ev concerns and raises its notification.
func (c *Coordinator) observe(ctx context.Context, ev model.ChangeEvent) {
	note, notable := notificationFor(ev)
	if notable && c.throttle != nil && !c.throttle.Allow(ctx, c.restaurantID+":"+note.Key) {
		notable = false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for w := range c.watchers {
		if Relevant(w.viewer, ev) {
			w.dirty = true
		}
		if notable && notifies(w.viewer, note) {
			select {
			case w.notes <- note:
			default:
			}
		}
	}
}

// refresh re-reads the snapshot and pushes it to dirty watchers, or to all
// of them when all is set.
func (c *Coordinator) refresh(ctx context.Context, all bool) {
	c.fetches.Add(1)
	snap, err := c.source.Snapshot(ctx, c.restaurantID)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("realtime: snapshot of %s failed: %v", c.restaurantID, err)
		}
		return
	}
	c.current.Store(&snap)

	c.mu.Lock()
	defer c.mu.Unlock()
	for w := range c.watchers {
		if all || w.dirty {
			w.dirty = false
			push(w.snaps, View(w.viewer, snap))
		}
	}
}

// push replaces an undelivered snapshot with the newer one.
func push(ch chan model.Snapshot, snap model.Snapshot) {
	for {
		select {
		case ch <- snap:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// Current returns the last snapshot as v sees it.
func (c *Coordinator) Current(v Viewer) (model.Snapshot, bool) {
	snap := c.current.Load()
	if snap == nil {
		return model.Snapshot{}, false
	}
	return View(v, *snap), true
}

// Watch registers a viewer. The snapshot channel holds at most the newest
// undelivered snapshot; call stop to unregister.
func (c *Coordinator) Watch(v Viewer) (snaps <-chan model.Snapshot, notes <-chan Notification, stop func()) {
	w := &watcher{
		viewer: v,
		snaps:  make(chan model.Snapshot, 1),
		notes:  make(chan Notification, 16),
	}
	c.mu.Lock()
	c.watchers[w] = struct{}{}
	if snap := c.current.Load(); snap != nil {
		push(w.snaps, View(v, *snap))
	}
	c.mu.Unlock()

	var once sync.Once
	stop = func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.watchers, w)
			c.mu.Unlock()
		})
	}
	return w.snaps, w.notes, stop
}

// Fetches counts snapshot reads, for metrics and tests.
func (c *Coordinator) Fetches() int64 { return c.fetches.Load() }
