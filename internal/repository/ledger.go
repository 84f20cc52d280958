package repository

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/erfan-mirasadi/menu-3d/internal/model"
)

// Ledger is the durable store for sessions, order items, bills,
// transactions and the activity log. All mutations go through a LedgerTx.
type Ledger interface {
	BeginTx(ctx context.Context) (LedgerTx, error)
	// Snapshot reads tables, active sessions with their live items and
	// pending service requests of one restaurant.
	Snapshot(ctx context.Context, restaurantID string) (model.Snapshot, error)
}

// ItemVersion is the state an order item was read in. Guarded writes only
// apply while the row still matches it.
type ItemVersion struct {
	Status   model.OrderStatus
	Quantity int
}

// VersionOf captures the guard for item.
func VersionOf(item model.OrderItem) ItemVersion {
	return ItemVersion{Status: item.Status, Quantity: item.Quantity}
}

// LedgerTx is one atomic unit of work. Row changes made through it are
// published on the change feed after Commit succeeds. Rollback after Commit
// is a no-op, so callers may defer it.
type LedgerTx interface {
	Commit() error
	Rollback() error

	GetTable(ctx context.Context, id string) (*model.Table, error)
	GetProduct(ctx context.Context, id string) (*model.Product, error)

	GetSession(ctx context.Context, id string) (*model.Session, error)
	ActiveSessionForTable(ctx context.Context, tableID string) (*model.Session, error)
	InsertSession(ctx context.Context, s *model.Session) error
	UpdateSession(ctx context.Context, s *model.Session) error

	ListOrderItems(ctx context.Context, sessionID string, statuses ...model.OrderStatus) ([]model.OrderItem, error)
	GetOrderItem(ctx context.Context, id string) (*model.OrderItem, error)
	InsertOrderItem(ctx context.Context, item *model.OrderItem) error
	UpdateOrderItem(ctx context.Context, item *model.OrderItem, expect ItemVersion) error
	DeleteOrderItem(ctx context.Context, id string, expect ItemVersion) error

	GetBill(ctx context.Context, id string) (*model.Bill, error)
	GetBillBySession(ctx context.Context, sessionID string) (*model.Bill, error)
	InsertBill(ctx context.Context, b *model.Bill) error
	UpdateBill(ctx context.Context, b *model.Bill, expectedPaid model.Money) error

	InsertTransactions(ctx context.Context, txns []model.Transaction) error
	ListTransactions(ctx context.Context, billID string) ([]model.Transaction, error)

	AppendActivity(ctx context.Context, entry *model.ActivityLog) error
	ListActivity(ctx context.Context, sessionID string) ([]model.ActivityLog, error)

	InsertServiceRequest(ctx context.Context, r *model.ServiceRequest) error
	GetServiceRequest(ctx context.Context, id string) (*model.ServiceRequest, error)
	ResolveServiceRequest(ctx context.Context, id string, at time.Time) error
	ResolveServiceRequests(ctx context.Context, sessionID string, at time.Time) (int, error)
}

// ChangeSink receives committed row changes. The realtime feed implements it.
type ChangeSink interface {
	Publish(ctx context.Context, ev model.ChangeEvent) error
}

// changeLog buffers the row changes of one transaction until commit.
type changeLog struct {
	events []model.ChangeEvent
}

func (c *changeLog) add(ev model.ChangeEvent) { c.events = append(c.events, ev) }

// flush hands committed changes to the sink. The write is already durable,
// so a feed failure is logged; clients catch up on their next snapshot.
func (c *changeLog) flush(sink ChangeSink) {
	if sink == nil || len(c.events) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for _, ev := range c.events {
		if err := sink.Publish(ctx, ev); err != nil {
			log.Printf("ledger: publish %s %s failed: %v", ev.Type, ev.Table, err)
		}
	}
	c.events = nil
}

func rowRef(id, sessionID, tableID, status string, row any) *model.RowRef {
	ref := &model.RowRef{ID: id, SessionID: sessionID, TableID: tableID, Status: status}
	if row != nil {
		ref.Data, _ = json.Marshal(row)
	}
	return ref
}

// The *Refs helpers build the old/new pair of an update from the status the
// row held before it. Both drivers use them so subscribers see the same
// transition whichever store is behind the ledger.

func billRefs(prev model.BillStatus, b *model.Bill) (old, new *model.RowRef) {
	return rowRef(b.ID, b.SessionID, "", string(prev), nil),
		rowRef(b.ID, b.SessionID, "", string(b.Status), b)
}

func sessionRefs(prev model.SessionStatus, s *model.Session) (old, new *model.RowRef) {
	return rowRef(s.ID, s.ID, s.TableID, string(prev), nil),
		rowRef(s.ID, s.ID, s.TableID, string(s.Status), s)
}

func requestRefs(prev model.ServiceRequestStatus, r *model.ServiceRequest) (old, new *model.RowRef) {
	return rowRef(r.ID, r.SessionID, r.TableID, string(prev), nil),
		rowRef(r.ID, r.SessionID, r.TableID, string(r.Status), r)
}
