package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/erfan-mirasadi/menu-3d/internal/model"
)

const billColumns = `id, session_id, total_amount, paid_amount, status, adjustments, created_at, updated_at`

func (t *mysqlTx) GetBill(ctx context.Context, id string) (*model.Bill, error) {
	return t.scanBill(ctx, `id = ?`, id)
}

func (t *mysqlTx) GetBillBySession(ctx context.Context, sessionID string) (*model.Bill, error) {
	return t.scanBill(ctx, `session_id = ?`, sessionID)
}

// scanBill reads and locks one bill row.
func (t *mysqlTx) scanBill(ctx context.Context, where string, arg any) (*model.Bill, error) {
	var b model.Bill
	var adjs []byte
	err := t.tx.QueryRowContext(ctx,
		`SELECT `+billColumns+` FROM bills WHERE `+where+` FOR UPDATE`, arg,
	).Scan(&b.ID, &b.SessionID, &b.TotalAmount, &b.PaidAmount, &b.Status, &adjs, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	if len(adjs) > 0 {
		if err := json.Unmarshal(adjs, &b.Adjustments); err != nil {
			return nil, fmt.Errorf("decode adjustments of bill %s: %w", b.ID, err)
		}
	}
	return &b, nil
}

func (t *mysqlTx) InsertBill(ctx context.Context, b *model.Bill) error {
	adjs, err := encodeAdjustments(b.Adjustments)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx,
		`INSERT INTO bills (`+billColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.SessionID, b.TotalAmount, b.PaidAmount, b.Status, adjs, b.CreatedAt.UTC(), b.UpdatedAt.UTC())
	if err != nil {
		return duplicate(err)
	}
	t.record(ctx, model.TableBills, model.ChangeInsert, b.SessionID, nil, rowRef(b.ID, b.SessionID, "", string(b.Status), b))
	return nil
}

// UpdateBill applies only while paid_amount still equals expectedPaid, so
// two payments that both read the same remaining amount cannot both land.
func (t *mysqlTx) UpdateBill(ctx context.Context, b *model.Bill, expectedPaid model.Money) error {
	adjs, err := encodeAdjustments(b.Adjustments)
	if err != nil {
		return err
	}
	var was model.BillStatus
	if err := t.tx.QueryRowContext(ctx, `SELECT status FROM bills WHERE id = ? FOR UPDATE`, b.ID).Scan(&was); err != nil {
		return notFound(err)
	}
	res, err := t.tx.ExecContext(ctx,
		`UPDATE bills SET total_amount = ?, paid_amount = ?, status = ?, adjustments = ?, updated_at = ?
		 WHERE id = ? AND paid_amount = ?`,
		b.TotalAmount, b.PaidAmount, b.Status, adjs, b.UpdatedAt.UTC(), b.ID, expectedPaid)
	if err := guarded(res, err); err != nil {
		return err
	}
	prev, next := billRefs(was, b)
	t.record(ctx, model.TableBills, model.ChangeUpdate, b.SessionID, prev, next)
	return nil
}

func encodeAdjustments(adjs []model.Adjustment) ([]byte, error) {
	if adjs == nil {
		adjs = []model.Adjustment{}
	}
	return json.Marshal(adjs)
}

func (t *mysqlTx) InsertTransactions(ctx context.Context, txns []model.Transaction) error {
	if len(txns) == 0 {
		return nil
	}
	var sessionID string
	if err := t.tx.QueryRowContext(ctx, `SELECT session_id FROM bills WHERE id = ?`, txns[0].BillID).Scan(&sessionID); err != nil {
		return notFound(err)
	}
	query := `INSERT INTO transactions (id, bill_id, amount, method, recorded_by, paid_items, created_at) VALUES `
	args := make([]any, 0, len(txns)*7)
	for i, tx := range txns {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?, ?, ?)"
		items := tx.PaidItems
		if items == nil {
			items = []model.PaidItem{}
		}
		raw, err := json.Marshal(items)
		if err != nil {
			return err
		}
		args = append(args, tx.ID, tx.BillID, tx.Amount, tx.Method, tx.RecordedBy, raw, tx.CreatedAt.UTC())
	}
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		return duplicate(err)
	}
	for _, tx := range txns {
		t.record(ctx, model.TableTransactions, model.ChangeInsert, sessionID, nil, rowRef(tx.ID, sessionID, "", "", tx))
	}
	return nil
}

func (t *mysqlTx) ListTransactions(ctx context.Context, billID string) ([]model.Transaction, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT id, bill_id, amount, method, recorded_by, paid_items, created_at
		 FROM transactions WHERE bill_id = ? ORDER BY created_at, id`, billID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Transaction{}
	for rows.Next() {
		var tx model.Transaction
		var raw []byte
		if err := rows.Scan(&tx.ID, &tx.BillID, &tx.Amount, &tx.Method, &tx.RecordedBy, &raw, &tx.CreatedAt); err != nil {
			return nil, err
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &tx.PaidItems); err != nil {
				return nil, fmt.Errorf("decode paid items of transaction %s: %w", tx.ID, err)
			}
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (t *mysqlTx) AppendActivity(ctx context.Context, e *model.ActivityLog) error {
	details := e.Details
	if len(details) == 0 {
		details = json.RawMessage(`{}`)
	}
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO activity_logs (id, restaurant_id, session_id, action, actor_id, details, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.RestaurantID, e.SessionID, e.Action, e.ActorID, []byte(details), e.CreatedAt.UTC())
	return duplicate(err)
}

func (t *mysqlTx) ListActivity(ctx context.Context, sessionID string) ([]model.ActivityLog, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT id, restaurant_id, session_id, action, actor_id, details, created_at
		 FROM activity_logs WHERE session_id = ? ORDER BY created_at, id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.ActivityLog{}
	for rows.Next() {
		var e model.ActivityLog
		var raw []byte
		if err := rows.Scan(&e.ID, &e.RestaurantID, &e.SessionID, &e.Action, &e.ActorID, &raw, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Details = json.RawMessage(raw)
		out = append(out, e)
	}
	return out, rows.Err()
}
