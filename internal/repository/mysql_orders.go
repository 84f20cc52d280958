package repository

import (
	"context"
	"database/sql"

	"github.com/erfan-mirasadi/menu-3d/internal/model"
)

const itemColumns = `id, session_id, product_id, product_name, quantity, unit_price, status, notes, created_by, created_role, created_at`

func scanItem(row scanner) (*model.OrderItem, error) {
	var it model.OrderItem
	var notes sql.NullString
	if err := row.Scan(&it.ID, &it.SessionID, &it.ProductID, &it.ProductName, &it.Quantity, &it.UnitPrice,
		&it.Status, &notes, &it.CreatedBy, &it.CreatedRole, &it.CreatedAt); err != nil {
		return nil, err
	}
	it.Notes = stringPtr(notes)
	it.CreatedAt = it.CreatedAt.UTC()
	return &it, nil
}

// ListOrderItems returns the session's items in creation order, optionally
// restricted to the given statuses.
func (t *mysqlTx) ListOrderItems(ctx context.Context, sessionID string, statuses ...model.OrderStatus) ([]model.OrderItem, error) {
	q := `SELECT ` + itemColumns + ` FROM order_items WHERE session_id = ?`
	args := []any{sessionID}
	if len(statuses) > 0 {
		q += ` AND status IN (` + placeholders(len(statuses)) + `)`
		for _, s := range statuses {
			args = append(args, s)
		}
	}
	q += ` ORDER BY created_at, id`
	rows, err := t.tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []model.OrderItem{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (t *mysqlTx) GetOrderItem(ctx context.Context, id string) (*model.OrderItem, error) {
	it, err := scanItem(t.tx.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM order_items WHERE id = ? FOR UPDATE`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return it, nil
}

func (t *mysqlTx) InsertOrderItem(ctx context.Context, it *model.OrderItem) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO order_items (`+itemColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		it.ID, it.SessionID, it.ProductID, it.ProductName, it.Quantity, it.UnitPrice,
		it.Status, nullString(it.Notes), it.CreatedBy, it.CreatedRole, it.CreatedAt.UTC())
	if err != nil {
		return duplicate(err)
	}
	t.record(ctx, model.TableOrderItems, model.ChangeInsert, it.SessionID, nil, rowRef(it.ID, it.SessionID, "", string(it.Status), it))
	return nil
}

// UpdateOrderItem writes quantity, status and notes only while the row still
// has the status and quantity it was read with. unit_price is never updated.
func (t *mysqlTx) UpdateOrderItem(ctx context.Context, it *model.OrderItem, expect ItemVersion) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE order_items SET quantity = ?, status = ?, notes = ?
		 WHERE id = ? AND status = ? AND quantity = ?`,
		it.Quantity, it.Status, nullString(it.Notes), it.ID, expect.Status, expect.Quantity)
	if err := guarded(res, err); err != nil {
		return err
	}
	t.record(ctx, model.TableOrderItems, model.ChangeUpdate, it.SessionID,
		&model.RowRef{ID: it.ID, SessionID: it.SessionID, Status: string(expect.Status)},
		rowRef(it.ID, it.SessionID, "", string(it.Status), it))
	return nil
}

func (t *mysqlTx) DeleteOrderItem(ctx context.Context, id string, expect ItemVersion) error {
	var sessionID string
	if err := t.tx.QueryRowContext(ctx, `SELECT session_id FROM order_items WHERE id = ?`, id).Scan(&sessionID); err != nil {
		return notFound(err)
	}
	res, err := t.tx.ExecContext(ctx,
		`DELETE FROM order_items WHERE id = ? AND status = ? AND quantity = ?`,
		id, expect.Status, expect.Quantity)
	if err := guarded(res, err); err != nil {
		return err
	}
	t.record(ctx, model.TableOrderItems, model.ChangeDelete, sessionID,
		&model.RowRef{ID: id, SessionID: sessionID, Status: string(expect.Status)}, nil)
	return nil
}
