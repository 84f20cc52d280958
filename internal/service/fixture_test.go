package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/erfan-mirasadi/menu-3d/internal/model"
	"github.com/erfan-mirasadi/menu-3d/internal/queue"
	"github.com/erfan-mirasadi/menu-3d/internal/repository"
)

var (
	waiter  = model.Actor{ID: "waiter-1", Role: model.RoleWaiter, RestaurantID: "r1"}
	cashier = model.Actor{ID: "cashier-1", Role: model.RoleCashier, RestaurantID: "r1"}
	cook    = model.Actor{ID: "cook-1", Role: model.RoleKitchen, RestaurantID: "r1"}
	guest   = model.Actor{ID: "guest-1", Role: model.RoleGuest, RestaurantID: "r1", TableID: "t1"}
	ctx     = context.Background()
)

type eventRecorder struct {
	mu  sync.Mutex
	evs []queue.LedgerEvent
}

func (r *eventRecorder) Publish(_ context.Context, ev queue.LedgerEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evs = append(r.evs, ev)
	return nil
}

func (r *eventRecorder) types() []queue.LedgerEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]queue.LedgerEventType, 0, len(r.evs))
	for _, ev := range r.evs {
		out = append(out, ev.Type)
	}
	return out
}

type changeRecorder struct {
	mu  sync.Mutex
	evs []model.ChangeEvent
}

func (r *changeRecorder) Publish(_ context.Context, ev model.ChangeEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evs = append(r.evs, ev)
	return nil
}

func (r *changeRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.evs)
}

type fixture struct {
	store   *repository.MemoryStore
	svc     *Service
	events  *eventRecorder
	changes *changeRecorder
}

func newFixture(t *testing.T, kitchen bool) *fixture {
	t.Helper()
	changes := &changeRecorder{}
	store := repository.NewMemoryStore(changes)
	store.AddTable(model.Table{ID: "t1", RestaurantID: "r1", Label: "T1"})
	store.AddTable(model.Table{ID: "t2", RestaurantID: "r1", Label: "T2"})
	store.AddProduct(model.Product{ID: "burger", RestaurantID: "r1", Name: "Burger", Price: 1000, Available: true})
	store.AddProduct(model.Product{ID: "soda", RestaurantID: "r1", Name: "Soda", Price: 500, Available: true})
	store.AddProduct(model.Product{ID: "soup", RestaurantID: "r1", Name: "Soup", Price: 700, Available: false})

	var (
		mu  sync.Mutex
		now = time.Date(2026, 3, 1, 19, 0, 0, 0, time.UTC)
		seq int
	)
	events := &eventRecorder{}
	svc := New(store, Options{
		KitchenEnabled: kitchen,
		Events:         events,
		Now: func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			now = now.Add(time.Second)
			return now
		},
		NewID: func() string {
			mu.Lock()
			defer mu.Unlock()
			seq++
			return fmt.Sprintf("id-%04d", seq)
		},
	})
	return &fixture{store: store, svc: svc, events: events, changes: changes}
}

// seatedTable opens t1 with 2×Burger (10.00) and 1×Soda (5.00) confirmed.
func (f *fixture) seatedTable(t *testing.T) (sess *model.Session, burger, soda *model.OrderItem) {
	t.Helper()
	sess, err := f.svc.OpenTable(ctx, waiter, "t1")
	require.NoError(t, err)
	burger, err = f.svc.AddItem(ctx, waiter, AddItemInput{SessionID: sess.ID, ProductID: "burger", Quantity: 2, Status: model.StatusConfirmed})
	require.NoError(t, err)
	soda, err = f.svc.AddItem(ctx, waiter, AddItemInput{SessionID: sess.ID, ProductID: "soda", Quantity: 1, Status: model.StatusConfirmed})
	require.NoError(t, err)
	return sess, burger, soda
}

func cash(amount model.Money) SinglePayment {
	return SinglePayment{PaymentLeg{Method: model.MethodCash, Amount: amount}}
}
