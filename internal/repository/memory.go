package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/erfan-mirasadi/menu-3d/internal/model"
)

// MemoryStore is an in-process Ledger. A transaction holds the store lock
// from BeginTx until Commit or Rollback and works on a private copy, so
// transactions are serializable and a rollback leaves no trace. It backs
// the memory driver and the service tests.
type MemoryStore struct {
	mu   sync.Mutex
	data memData
	sink ChangeSink
}

type memData struct {
	tables   map[string]model.Table
	products map[string]model.Product
	sessions map[string]model.Session
	items    map[string]model.OrderItem
	bills    map[string]model.Bill // keyed by bill id
	txns     []model.Transaction
	activity []model.ActivityLog
	requests map[string]model.ServiceRequest
}

// NewMemoryStore returns an empty store publishing changes to sink (may be nil).
func NewMemoryStore(sink ChangeSink) *MemoryStore {
	return &MemoryStore{
		sink: sink,
		data: memData{
			tables:   map[string]model.Table{},
			products: map[string]model.Product{},
			sessions: map[string]model.Session{},
			items:    map[string]model.OrderItem{},
			bills:    map[string]model.Bill{},
			requests: map[string]model.ServiceRequest{},
		},
	}
}

// AddTable seeds a table.
func (s *MemoryStore) AddTable(t model.Table) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.tables[t.ID] = t
}

// AddProduct seeds a catalog product.
func (s *MemoryStore) AddProduct(p model.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.products[p.ID] = p
}

func (d memData) clone() memData {
	out := memData{
		tables:   make(map[string]model.Table, len(d.tables)),
		products: make(map[string]model.Product, len(d.products)),
		sessions: make(map[string]model.Session, len(d.sessions)),
		items:    make(map[string]model.OrderItem, len(d.items)),
		bills:    make(map[string]model.Bill, len(d.bills)),
		txns:     append([]model.Transaction(nil), d.txns...),
		activity: append([]model.ActivityLog(nil), d.activity...),
		requests: make(map[string]model.ServiceRequest, len(d.requests)),
	}
	for k, v := range d.tables {
		out.tables[k] = v
	}
	for k, v := range d.products {
		out.products[k] = v
	}
	for k, v := range d.sessions {
		out.sessions[k] = v
	}
	for k, v := range d.items {
		out.items[k] = v
	}
	for k, v := range d.bills {
		out.bills[k] = v
	}
	for k, v := range d.requests {
		out.requests[k] = v
	}
	return out
}

// BeginTx locks the store and starts a transaction on a copy of its data.
func (s *MemoryStore) BeginTx(ctx context.Context) (LedgerTx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	return &memTx{store: s, work: s.data.clone()}, nil
}

// Snapshot implements Ledger.
func (s *MemoryStore) Snapshot(ctx context.Context, restaurantID string) (model.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return model.Snapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := model.Snapshot{RestaurantID: restaurantID, TakenAt: time.Now().UTC()}
	for _, t := range s.data.tables {
		if t.RestaurantID == restaurantID {
			snap.Tables = append(snap.Tables, t)
		}
	}
	sort.Slice(snap.Tables, func(i, j int) bool { return snap.Tables[i].Label < snap.Tables[j].Label })
	for _, sess := range s.data.sessions {
		if sess.RestaurantID != restaurantID || sess.Status != model.SessionActive {
			continue
		}
		view := model.SessionView{Session: sess}
		for _, it := range s.data.items {
			if it.SessionID == sess.ID && it.Status != model.StatusCancelled {
				view.Items = append(view.Items, it)
			}
		}
		sortItems(view.Items)
		snap.Sessions = append(snap.Sessions, view)
	}
	sort.Slice(snap.Sessions, func(i, j int) bool {
		return snap.Sessions[i].Session.CreatedAt.Before(snap.Sessions[j].Session.CreatedAt)
	})
	for _, r := range s.data.requests {
		if r.Status != model.RequestPending {
			continue
		}
		if sess, ok := s.data.sessions[r.SessionID]; ok && sess.RestaurantID == restaurantID {
			snap.Requests = append(snap.Requests, r)
		}
	}
	sort.Slice(snap.Requests, func(i, j int) bool { return snap.Requests[i].CreatedAt.Before(snap.Requests[j].CreatedAt) })
	return snap, nil
}

func sortItems(items []model.OrderItem) {
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		}
		return items[i].ID < items[j].ID
	})
}

type memTx struct {
	store   *MemoryStore
	work    memData
	changes changeLog
	done    bool
}

func (t *memTx) Commit() error {
	if t.done {
		return ErrConflict
	}
	t.store.data = t.work
	t.done = true
	t.store.mu.Unlock()
	t.changes.flush(t.store.sink)
	return nil
}

func (t *memTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	t.store.mu.Unlock()
	return nil
}

func (t *memTx) record(table string, typ model.ChangeType, sessionID string, old, new *model.RowRef) {
	sess := t.work.sessions[sessionID]
	for _, r := range []*model.RowRef{old, new} {
		if r != nil && r.TableID == "" {
			r.TableID = sess.TableID
		}
	}
	t.changes.add(model.ChangeEvent{
		Type: typ, Table: table, RestaurantID: sess.RestaurantID,
		Old: old, New: new, At: time.Now().UTC(),
	})
}

func (t *memTx) GetTable(_ context.Context, id string) (*model.Table, error) {
	v, ok := t.work.tables[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &v, nil
}

func (t *memTx) GetProduct(_ context.Context, id string) (*model.Product, error) {
	v, ok := t.work.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &v, nil
}

func (t *memTx) GetSession(_ context.Context, id string) (*model.Session, error) {
	v, ok := t.work.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &v, nil
}

func (t *memTx) ActiveSessionForTable(_ context.Context, tableID string) (*model.Session, error) {
	for _, v := range t.work.sessions {
		if v.TableID == tableID && v.Status == model.SessionActive {
			return &v, nil
		}
	}
	return nil, ErrNotFound
}

func (t *memTx) InsertSession(_ context.Context, s *model.Session) error {
	if _, ok := t.work.sessions[s.ID]; ok {
		return ErrConflict
	}
	t.work.sessions[s.ID] = *s
	t.record(model.TableSessions, model.ChangeInsert, s.ID, nil, rowRef(s.ID, s.ID, s.TableID, string(s.Status), s))
	return nil
}

func (t *memTx) UpdateSession(_ context.Context, s *model.Session) error {
	old, ok := t.work.sessions[s.ID]
	if !ok {
		return ErrNotFound
	}
	t.work.sessions[s.ID] = *s
	prev, next := sessionRefs(old.Status, s)
	t.record(model.TableSessions, model.ChangeUpdate, s.ID, prev, next)
	return nil
}

func (t *memTx) ListOrderItems(_ context.Context, sessionID string, statuses ...model.OrderStatus) ([]model.OrderItem, error) {
	want := make(map[model.OrderStatus]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}
	out := []model.OrderItem{}
	for _, it := range t.work.items {
		if it.SessionID != sessionID {
			continue
		}
		if len(want) > 0 && !want[it.Status] {
			continue
		}
		out = append(out, it)
	}
	sortItems(out)
	return out, nil
}

func (t *memTx) GetOrderItem(_ context.Context, id string) (*model.OrderItem, error) {
	v, ok := t.work.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &v, nil
}

func (t *memTx) InsertOrderItem(_ context.Context, item *model.OrderItem) error {
	if _, ok := t.work.items[item.ID]; ok {
		return ErrConflict
	}
	t.work.items[item.ID] = *item
	t.record(model.TableOrderItems, model.ChangeInsert, item.SessionID, nil,
		rowRef(item.ID, item.SessionID, "", string(item.Status), item))
	return nil
}

func (t *memTx) UpdateOrderItem(_ context.Context, item *model.OrderItem, expect ItemVersion) error {
	cur, ok := t.work.items[item.ID]
	if !ok {
		return ErrNotFound
	}
	if VersionOf(cur) != expect {
		return ErrConflict
	}
	t.work.items[item.ID] = *item
	t.record(model.TableOrderItems, model.ChangeUpdate, item.SessionID,
		rowRef(cur.ID, cur.SessionID, "", string(cur.Status), nil),
		rowRef(item.ID, item.SessionID, "", string(item.Status), item))
	return nil
}

func (t *memTx) DeleteOrderItem(_ context.Context, id string, expect ItemVersion) error {
	cur, ok := t.work.items[id]
	if !ok {
		return ErrNotFound
	}
	if VersionOf(cur) != expect {
		return ErrConflict
	}
	delete(t.work.items, id)
	t.record(model.TableOrderItems, model.ChangeDelete, cur.SessionID,
		rowRef(cur.ID, cur.SessionID, "", string(cur.Status), nil), nil)
	return nil
}

func (t *memTx) GetBill(_ context.Context, id string) (*model.Bill, error) {
	b, ok := t.work.bills[id]
	if !ok {
		return nil, ErrNotFound
	}
	b.Adjustments = append([]model.Adjustment(nil), b.Adjustments...)
	return &b, nil
}

func (t *memTx) GetBillBySession(_ context.Context, sessionID string) (*model.Bill, error) {
	for _, b := range t.work.bills {
		if b.SessionID == sessionID {
			b.Adjustments = append([]model.Adjustment(nil), b.Adjustments...)
			return &b, nil
		}
	}
	return nil, ErrNotFound
}

func (t *memTx) InsertBill(_ context.Context, b *model.Bill) error {
	for _, cur := range t.work.bills {
		if cur.ID == b.ID || cur.SessionID == b.SessionID {
			return ErrConflict
		}
	}
	stored := *b
	stored.Adjustments = append([]model.Adjustment(nil), b.Adjustments...)
	t.work.bills[b.ID] = stored
	t.record(model.TableBills, model.ChangeInsert, b.SessionID, nil, rowRef(b.ID, b.SessionID, "", string(b.Status), b))
	return nil
}

func (t *memTx) UpdateBill(_ context.Context, b *model.Bill, expectedPaid model.Money) error {
	cur, ok := t.work.bills[b.ID]
	if !ok {
		return ErrNotFound
	}
	if cur.PaidAmount != expectedPaid {
		return ErrConflict
	}
	stored := *b
	stored.Adjustments = append([]model.Adjustment(nil), b.Adjustments...)
	t.work.bills[b.ID] = stored
	prev, next := billRefs(cur.Status, b)
	t.record(model.TableBills, model.ChangeUpdate, b.SessionID, prev, next)
	return nil
}

func (t *memTx) InsertTransactions(_ context.Context, txns []model.Transaction) error {
	for _, tx := range txns {
		bill, ok := t.work.bills[tx.BillID]
		if !ok {
			return ErrNotFound
		}
		tx.PaidItems = append([]model.PaidItem(nil), tx.PaidItems...)
		t.work.txns = append(t.work.txns, tx)
		t.record(model.TableTransactions, model.ChangeInsert, bill.SessionID, nil, rowRef(tx.ID, bill.SessionID, "", "", tx))
	}
	return nil
}

func (t *memTx) ListTransactions(_ context.Context, billID string) ([]model.Transaction, error) {
	out := []model.Transaction{}
	for _, tx := range t.work.txns {
		if tx.BillID == billID {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (t *memTx) AppendActivity(_ context.Context, entry *model.ActivityLog) error {
	t.work.activity = append(t.work.activity, *entry)
	return nil
}

func (t *memTx) ListActivity(_ context.Context, sessionID string) ([]model.ActivityLog, error) {
	out := []model.ActivityLog{}
	for _, a := range t.work.activity {
		if a.SessionID == sessionID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (t *memTx) InsertServiceRequest(_ context.Context, r *model.ServiceRequest) error {
	if _, ok := t.work.requests[r.ID]; ok {
		return ErrConflict
	}
	t.work.requests[r.ID] = *r
	t.record(model.TableServiceRequests, model.ChangeInsert, r.SessionID, nil, rowRef(r.ID, r.SessionID, r.TableID, string(r.Status), r))
	return nil
}

func (t *memTx) GetServiceRequest(_ context.Context, id string) (*model.ServiceRequest, error) {
	v, ok := t.work.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &v, nil
}

func (t *memTx) ResolveServiceRequest(_ context.Context, id string, at time.Time) error {
	r, ok := t.work.requests[id]
	if !ok {
		return ErrNotFound
	}
	if r.Status == model.RequestResolved {
		return ErrConflict
	}
	t.resolve(r, at)
	return nil
}

func (t *memTx) ResolveServiceRequests(_ context.Context, sessionID string, at time.Time) (int, error) {
	n := 0
	for _, r := range t.work.requests {
		if r.SessionID == sessionID && r.Status == model.RequestPending {
			t.resolve(r, at)
			n++
		}
	}
	return n, nil
}

func (t *memTx) resolve(r model.ServiceRequest, at time.Time) {
	was := r.Status
	r.Status = model.RequestResolved
	r.ResolvedAt = &at
	t.work.requests[r.ID] = r
	prev, next := requestRefs(was, &r)
	t.record(model.TableServiceRequests, model.ChangeUpdate, r.SessionID, prev, next)
}
