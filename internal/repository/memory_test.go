package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erfan-mirasadi/menu-3d/internal/model"
)

type sinkRecorder struct {
	mu  sync.Mutex
	evs []model.ChangeEvent
}

func (s *sinkRecorder) Publish(_ context.Context, ev model.ChangeEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evs = append(s.evs, ev)
	return nil
}

func seeded(t *testing.T) (*MemoryStore, *sinkRecorder, *model.Session) {
	t.Helper()
	sink := &sinkRecorder{}
	st := NewMemoryStore(sink)
	st.AddTable(model.Table{ID: "t1", RestaurantID: "r1", Label: "T1"})
	sess := &model.Session{ID: "s1", TableID: "t1", RestaurantID: "r1", Status: model.SessionActive, CreatedAt: time.Now()}

	tx, err := st.BeginTx(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.InsertSession(context.Background(), sess))
	require.NoError(t, tx.Commit())
	return st, sink, sess
}

func TestMemoryRollbackLeavesNoTrace(t *testing.T) {
	st, sink, sess := seeded(t)
	ctx := context.Background()
	before := len(sink.evs)

	tx, err := st.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.InsertOrderItem(ctx, &model.OrderItem{ID: "i1", SessionID: sess.ID, Quantity: 1, Status: model.StatusPending}))
	require.NoError(t, tx.Rollback())

	tx, err = st.BeginTx(ctx)
	require.NoError(t, err)
	defer tx.Rollback()
	_, err = tx.GetOrderItem(ctx, "i1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Len(t, sink.evs, before)
}

func TestMemoryCommitPublishesScopedChanges(t *testing.T) {
	st, sink, sess := seeded(t)
	ctx := context.Background()

	tx, err := st.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.InsertOrderItem(ctx, &model.OrderItem{ID: "i1", SessionID: sess.ID, Quantity: 2, Status: model.StatusConfirmed}))
	require.NoError(t, tx.Commit())
	require.NoError(t, tx.Rollback(), "rollback after commit is a no-op")

	last := sink.evs[len(sink.evs)-1]
	assert.Equal(t, model.ChangeInsert, last.Type)
	assert.Equal(t, model.TableOrderItems, last.Table)
	assert.Equal(t, "r1", last.RestaurantID)
	require.NotNil(t, last.New)
	assert.Equal(t, "t1", last.New.TableID)
	assert.Equal(t, string(model.StatusConfirmed), last.New.Status)
}

func TestMemoryGuardedWrites(t *testing.T) {
	st, _, sess := seeded(t)
	ctx := context.Background()

	tx, err := st.BeginTx(ctx)
	require.NoError(t, err)
	item := &model.OrderItem{ID: "i1", SessionID: sess.ID, Quantity: 2, Status: model.StatusConfirmed}
	require.NoError(t, tx.InsertOrderItem(ctx, item))
	stale := VersionOf(*item)

	updated := *item
	updated.Quantity = 1
	require.NoError(t, tx.UpdateOrderItem(ctx, &updated, stale))
	assert.ErrorIs(t, tx.UpdateOrderItem(ctx, &updated, stale), ErrConflict)
	assert.ErrorIs(t, tx.DeleteOrderItem(ctx, item.ID, stale), ErrConflict)

	bill := &model.Bill{ID: "b1", SessionID: sess.ID, TotalAmount: 1000, Status: model.BillUnpaid}
	require.NoError(t, tx.InsertBill(ctx, bill))
	assert.ErrorIs(t, tx.InsertBill(ctx, &model.Bill{ID: "b2", SessionID: sess.ID}), ErrConflict)

	bill.PaidAmount = 500
	require.NoError(t, tx.UpdateBill(ctx, bill, 0))
	assert.ErrorIs(t, tx.UpdateBill(ctx, bill, 0), ErrConflict)
	require.NoError(t, tx.Commit())
}

func TestUpdatesCarryPreviousStatus(t *testing.T) {
	st, sink, sess := seeded(t)
	ctx := context.Background()

	tx, err := st.BeginTx(ctx)
	require.NoError(t, err)
	bill := &model.Bill{ID: "b1", SessionID: sess.ID, TotalAmount: 1000, Status: model.BillUnpaid}
	require.NoError(t, tx.InsertBill(ctx, bill))
	req := &model.ServiceRequest{ID: "r1", SessionID: sess.ID, TableID: "t1", Kind: model.RequestCallWaiter, Status: model.RequestPending, CreatedAt: time.Now()}
	require.NoError(t, tx.InsertServiceRequest(ctx, req))
	require.NoError(t, tx.Commit())
	mark := len(sink.evs)

	tx, err = st.BeginTx(ctx)
	require.NoError(t, err)
	bill.PaidAmount = 1000
	bill.Status = model.BillPaid
	require.NoError(t, tx.UpdateBill(ctx, bill, 0))
	require.NoError(t, tx.ResolveServiceRequest(ctx, req.ID, time.Now()))
	closed := *sess
	closed.Status = model.SessionClosed
	require.NoError(t, tx.UpdateSession(ctx, &closed))
	require.NoError(t, tx.Commit())

	got := sink.evs[mark:]
	require.Len(t, got, 3)
	want := []struct{ table, old, new string }{
		{model.TableBills, string(model.BillUnpaid), string(model.BillPaid)},
		{model.TableServiceRequests, string(model.RequestPending), string(model.RequestResolved)},
		{model.TableSessions, string(model.SessionActive), string(model.SessionClosed)},
	}
	for i, w := range want {
		ev := got[i]
		assert.Equal(t, model.ChangeUpdate, ev.Type)
		assert.Equal(t, w.table, ev.Table)
		require.NotNil(t, ev.Old, w.table)
		require.NotNil(t, ev.New, w.table)
		assert.Equal(t, w.old, ev.Old.Status, w.table)
		assert.Equal(t, w.new, ev.New.Status, w.table)
		assert.Equal(t, ev.New.ID, ev.Old.ID)
		assert.Equal(t, "t1", ev.Old.TableID)
	}
}

func TestBillRefs(t *testing.T) {
	b := &model.Bill{ID: "b1", SessionID: "s1", TotalAmount: 500, Status: model.BillPaid}
	old, next := billRefs(model.BillUnpaid, b)
	assert.Equal(t, string(model.BillUnpaid), old.Status)
	assert.Nil(t, old.Data)
	assert.Equal(t, string(model.BillPaid), next.Status)
	assert.Equal(t, "s1", next.SessionID)
	assert.NotEmpty(t, next.Data)
}

func TestMemorySnapshot(t *testing.T) {
	st, _, sess := seeded(t)
	ctx := context.Background()

	tx, err := st.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.InsertOrderItem(ctx, &model.OrderItem{ID: "live", SessionID: sess.ID, Quantity: 1, Status: model.StatusPending}))
	require.NoError(t, tx.InsertOrderItem(ctx, &model.OrderItem{ID: "gone", SessionID: sess.ID, Quantity: 1, Status: model.StatusCancelled}))
	require.NoError(t, tx.InsertServiceRequest(ctx, &model.ServiceRequest{ID: "rq", SessionID: sess.ID, TableID: "t1", Kind: model.RequestCallWaiter, Status: model.RequestPending}))
	require.NoError(t, tx.Commit())

	snap, err := st.Snapshot(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, snap.Sessions, 1)
	require.Len(t, snap.Sessions[0].Items, 1)
	assert.Equal(t, "live", snap.Sessions[0].Items[0].ID)
	assert.Len(t, snap.Requests, 1)
	assert.Len(t, snap.Tables, 1)

	other, err := st.Snapshot(ctx, "r2")
	require.NoError(t, err)
	assert.Empty(t, other.Sessions)
}
