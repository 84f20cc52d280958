package realtime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erfan-mirasadi/menu-3d/internal/model"
)

const window = 40 * time.Millisecond

type countingSource struct {
	mu    sync.Mutex
	snap  model.Snapshot
	calls int
}

func (s *countingSource) Snapshot(_ context.Context, restaurantID string) (model.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	out := s.snap
	out.RestaurantID = restaurantID
	return out, nil
}

func (s *countingSource) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func itemChange(typ model.ChangeType, tableID, id string, from, to model.OrderStatus) model.ChangeEvent {
	ev := model.ChangeEvent{Type: typ, Table: model.TableOrderItems, RestaurantID: "r1"}
	if from != "" {
		ev.Old = &model.RowRef{ID: id, SessionID: "s-" + tableID, TableID: tableID, Status: string(from)}
	}
	if to != "" {
		ev.New = &model.RowRef{ID: id, SessionID: "s-" + tableID, TableID: tableID, Status: string(to)}
	}
	return ev
}

func receive(t *testing.T, ch <-chan model.Snapshot) model.Snapshot {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(time.Second):
		t.Fatal("no snapshot delivered")
		return model.Snapshot{}
	}
}

func quiet(t *testing.T, ch <-chan model.Snapshot) {
	t.Helper()
	select {
	case <-ch:
		t.Fatal("unexpected snapshot")
	case <-time.After(4 * window):
	}
}

func startCoordinator(t *testing.T, src SnapshotSource, feed Feed) *Coordinator {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	c := NewCoordinator("r1", src, feed, NewMemoryThrottle(time.Minute), window)
	go func() { _ = c.Run(ctx) }()
	require.Eventually(t, func() bool {
		_, ok := c.Current(Viewer{Role: model.RoleAdmin})
		return ok
	}, time.Second, 5*time.Millisecond)
	return c
}

func TestDebounceCollapsesBurst(t *testing.T) {
	src := &countingSource{}
	feed := NewMemoryFeed()
	c := startCoordinator(t, src, feed)
	snaps, _, stop := c.Watch(Viewer{Role: model.RoleWaiter})
	defer stop()
	receive(t, snaps)
	require.Equal(t, 1, src.count())

	for i := 0; i < 5; i++ {
		require.NoError(t, feed.Publish(context.Background(), itemChange(model.ChangeInsert, "t1", "i", "", model.StatusPending)))
		time.Sleep(window / 8)
	}
	receive(t, snaps)
	quiet(t, snaps)
	assert.Equal(t, 2, src.count(), "one re-read per quiet window")
}

func TestKitchenIgnoresPending(t *testing.T) {
	src := &countingSource{}
	feed := NewMemoryFeed()
	c := startCoordinator(t, src, feed)

	kitchen, _, stopK := c.Watch(Viewer{Role: model.RoleKitchen})
	defer stopK()
	waiter, _, stopW := c.Watch(Viewer{Role: model.RoleWaiter})
	defer stopW()
	receive(t, kitchen)
	receive(t, waiter)

	require.NoError(t, feed.Publish(context.Background(), itemChange(model.ChangeInsert, "t1", "i1", "", model.StatusPending)))
	receive(t, waiter)
	quiet(t, kitchen)

	require.NoError(t, feed.Publish(context.Background(), itemChange(model.ChangeUpdate, "t1", "i1", model.StatusPending, model.StatusConfirmed)))
	receive(t, kitchen)
}

func TestGuestSeesOnlyOwnTable(t *testing.T) {
	src := &countingSource{snap: model.Snapshot{
		Tables: []model.Table{{ID: "t1"}, {ID: "t2"}},
		Sessions: []model.SessionView{
			{Session: model.Session{ID: "s-t1", TableID: "t1"}},
			{Session: model.Session{ID: "s-t2", TableID: "t2"}},
		},
	}}
	feed := NewMemoryFeed()
	c := startCoordinator(t, src, feed)

	snaps, notes, stop := c.Watch(Viewer{Role: model.RoleGuest, TableID: "t1"})
	defer stop()
	first := receive(t, snaps)
	require.Len(t, first.Sessions, 1)
	assert.Equal(t, "t1", first.Sessions[0].Session.TableID)

	require.NoError(t, feed.Publish(context.Background(), itemChange(model.ChangeUpdate, "t2", "x", model.StatusPreparing, model.StatusReady)))
	quiet(t, snaps)

	require.NoError(t, feed.Publish(context.Background(), itemChange(model.ChangeUpdate, "t1", "y", model.StatusPreparing, model.StatusReady)))
	receive(t, snaps)
	select {
	case n := <-notes:
		assert.Equal(t, NoteItemReady, n.Kind)
		assert.Equal(t, "y", n.RowID)
	case <-time.After(time.Second):
		t.Fatal("no notification")
	}
}

func TestNotificationsAreDeduplicated(t *testing.T) {
	src := &countingSource{}
	feed := NewMemoryFeed()
	c := startCoordinator(t, src, feed)
	_, notes, stop := c.Watch(Viewer{Role: model.RoleWaiter})
	defer stop()

	req := model.ChangeEvent{Type: model.ChangeInsert, Table: model.TableServiceRequests, RestaurantID: "r1",
		New: &model.RowRef{ID: "rq1", TableID: "t1", Status: string(model.RequestPending)}}
	require.NoError(t, feed.Publish(context.Background(), req))
	require.NoError(t, feed.Publish(context.Background(), req))

	select {
	case n := <-notes:
		assert.Equal(t, NoteServiceRequest, n.Kind)
	case <-time.After(time.Second):
		t.Fatal("no notification")
	}
	select {
	case n := <-notes:
		t.Fatalf("duplicate notification %+v", n)
	case <-time.After(4 * window):
	}
}

func TestRelevant(t *testing.T) {
	pending := itemChange(model.ChangeInsert, "t1", "i", "", model.StatusPending)
	confirmed := itemChange(model.ChangeUpdate, "t1", "i", model.StatusPending, model.StatusConfirmed)
	payment := model.ChangeEvent{Table: model.TableTransactions, New: &model.RowRef{ID: "p", TableID: "t1"}}

	cases := []struct {
		name   string
		viewer Viewer
		ev     model.ChangeEvent
		want   bool
	}{
		{"kitchen skips pending", Viewer{Role: model.RoleKitchen}, pending, false},
		{"kitchen sees confirmed", Viewer{Role: model.RoleKitchen}, confirmed, true},
		{"kitchen skips payments", Viewer{Role: model.RoleKitchen}, payment, false},
		{"guest own table", Viewer{Role: model.RoleGuest, TableID: "t1"}, pending, true},
		{"guest other table", Viewer{Role: model.RoleGuest, TableID: "t2"}, pending, false},
		{"guest without table", Viewer{Role: model.RoleGuest}, pending, false},
		{"waiter skips payments", Viewer{Role: model.RoleWaiter}, payment, false},
		{"cashier sees payments", Viewer{Role: model.RoleCashier}, payment, true},
		{"unknown role", Viewer{Role: "robot"}, pending, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Relevant(tc.viewer, tc.ev))
		})
	}
}

func TestKitchenView(t *testing.T) {
	snap := model.Snapshot{
		Sessions: []model.SessionView{{
			Session: model.Session{ID: "s1"},
			Items: []model.OrderItem{
				{ID: "a", Status: model.StatusPending},
				{ID: "b", Status: model.StatusPreparing},
				{ID: "c", Status: model.StatusServed},
			},
		}, {
			Session: model.Session{ID: "s2"},
			Items:   []model.OrderItem{{ID: "d", Status: model.StatusDraft}},
		}},
		Requests: []model.ServiceRequest{{ID: "r"}},
	}
	got := View(Viewer{Role: model.RoleKitchen}, snap)
	require.Len(t, got.Sessions, 1)
	require.Len(t, got.Sessions[0].Items, 1)
	assert.Equal(t, "b", got.Sessions[0].Items[0].ID)
	assert.Empty(t, got.Requests)
}

func TestMemoryThrottle(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	th := NewMemoryThrottle(2 * time.Second)
	th.now = func() time.Time { return now }

	assert.True(t, th.Allow(context.Background(), "k"))
	assert.False(t, th.Allow(context.Background(), "k"))
	assert.True(t, th.Allow(context.Background(), "other"))
	now = now.Add(2 * time.Second)
	assert.True(t, th.Allow(context.Background(), "k"))
}

func TestHubSharesCoordinators(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	src := &countingSource{}
	h := NewHub(ctx, src, NewMemoryFeed(), nil, window)

	a := h.Watch("r1", Viewer{Role: model.RoleWaiter})
	b := h.Watch("r1", Viewer{Role: model.RoleCashier})
	receive(t, a.Snapshots)
	receive(t, b.Snapshots)
	assert.Equal(t, 1, h.active())

	a.Close()
	a.Close()
	assert.Equal(t, 1, h.active())
	b.Close()
	assert.Equal(t, 0, h.active())

	snap, err := h.Snapshot(ctx, "r1", Viewer{Role: model.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, "r1", snap.RestaurantID)
}

func TestMemoryFeedScopesByRestaurant(t *testing.T) {
	feed := NewMemoryFeed()
	ctx, cancel := context.WithCancel(context.Background())
	events, stop, err := feed.Subscribe(ctx, "r1")
	require.NoError(t, err)
	defer stop()

	require.NoError(t, feed.Publish(ctx, model.ChangeEvent{RestaurantID: "r2", Table: model.TableBills}))
	require.NoError(t, feed.Publish(ctx, model.ChangeEvent{RestaurantID: "r1", Table: model.TableSessions}))
	ev := <-events
	assert.Equal(t, model.TableSessions, ev.Table)

	cancel()
	require.Eventually(t, func() bool {
		_, open := <-events
		return !open
	}, time.Second, 5*time.Millisecond)
}
