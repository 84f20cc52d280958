package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/erfan-mirasadi/menu-3d/internal/model"
)

// MySQLStore is the production Ledger on top of MySQL. Row locks are taken
// with SELECT ... FOR UPDATE on the session, table and bill rows a
// transaction mutates; order-item writes are guarded by their read version.
// The DSN must set clientFoundRows=true so a guarded UPDATE that writes
// identical values still reports its matched row.
type MySQLStore struct {
	db   *sql.DB
	sink ChangeSink
}

// NewMySQLStore returns a store bound to db publishing committed changes to sink.
func NewMySQLStore(db *sql.DB, sink ChangeSink) *MySQLStore {
	return &MySQLStore{db: db, sink: sink}
}

// DB exposes the underlying handle.
func (s *MySQLStore) DB() *sql.DB { return s.db }

// BeginTx implements Ledger.
func (s *MySQLStore) BeginTx(ctx context.Context) (LedgerTx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &mysqlTx{tx: tx, sink: s.sink, scopes: map[string]sessionScope{}}, nil
}

type sessionScope struct {
	restaurantID string
	tableID      string
}

type mysqlTx struct {
	tx      *sql.Tx
	sink    ChangeSink
	changes changeLog
	scopes  map[string]sessionScope
	done    bool
}

type scanner interface {
	Scan(dest ...any) error
}

func (t *mysqlTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return err
	}
	t.done = true
	t.changes.flush(t.sink)
	return nil
}

func (t *mysqlTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	return t.tx.Rollback()
}

// scope resolves the restaurant and table a session belongs to, so change
// events can be routed and filtered.
func (t *mysqlTx) scope(ctx context.Context, sessionID string) sessionScope {
	if sc, ok := t.scopes[sessionID]; ok {
		return sc
	}
	var sc sessionScope
	err := t.tx.QueryRowContext(ctx,
		`SELECT restaurant_id, table_id FROM sessions WHERE id = ?`, sessionID,
	).Scan(&sc.restaurantID, &sc.tableID)
	if err == nil {
		t.scopes[sessionID] = sc
	}
	return sc
}

func (t *mysqlTx) record(ctx context.Context, table string, typ model.ChangeType, sessionID string, old, new *model.RowRef) {
	sc := t.scope(ctx, sessionID)
	for _, r := range []*model.RowRef{old, new} {
		if r != nil && r.TableID == "" {
			r.TableID = sc.tableID
		}
	}
	t.changes.add(model.ChangeEvent{
		Type: typ, Table: table, RestaurantID: sc.restaurantID,
		Old: old, New: new, At: time.Now().UTC(),
	})
}

// notFound maps sql.ErrNoRows to ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// duplicate maps a duplicate key, a deadlock victim or a lock wait
// timeout to ErrConflict: each means a concurrent writer got there first.
func duplicate(err error) error {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case 1062, 1205, 1213:
			return ErrConflict
		}
	}
	return err
}

// guarded turns a zero-row guarded write into ErrConflict.
func guarded(res sql.Result, err error) error {
	if err != nil {
		return duplicate(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

func nullTime(p *time.Time) sql.NullTime {
	if p == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: p.UTC(), Valid: true}
}

func (t *mysqlTx) GetTable(ctx context.Context, id string) (*model.Table, error) {
	var tb model.Table
	err := t.tx.QueryRowContext(ctx,
		`SELECT id, restaurant_id, label FROM restaurant_tables WHERE id = ? FOR UPDATE`, id,
	).Scan(&tb.ID, &tb.RestaurantID, &tb.Label)
	if err != nil {
		return nil, notFound(err)
	}
	return &tb, nil
}

func (t *mysqlTx) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	var p model.Product
	err := t.tx.QueryRowContext(ctx,
		`SELECT id, restaurant_id, name, price, available FROM products WHERE id = ?`, id,
	).Scan(&p.ID, &p.RestaurantID, &p.Name, &p.Price, &p.Available)
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}
