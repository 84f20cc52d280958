package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/erfan-mirasadi/menu-3d/internal/model"
)

const sessionColumns = `id, table_id, restaurant_id, status, note, created_at, closed_at`

func scanSession(row scanner) (*model.Session, error) {
	var s model.Session
	var note sql.NullString
	var closed sql.NullTime
	if err := row.Scan(&s.ID, &s.TableID, &s.RestaurantID, &s.Status, &note, &s.CreatedAt, &closed); err != nil {
		return nil, err
	}
	s.Note = stringPtr(note)
	s.ClosedAt = timePtr(closed)
	s.CreatedAt = s.CreatedAt.UTC()
	return &s, nil
}

func (t *mysqlTx) GetSession(ctx context.Context, id string) (*model.Session, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ? FOR UPDATE`, id)
	s, err := scanSession(row)
	if err != nil {
		return nil, notFound(err)
	}
	t.scopes[s.ID] = sessionScope{restaurantID: s.RestaurantID, tableID: s.TableID}
	return s, nil
}

func (t *mysqlTx) ActiveSessionForTable(ctx context.Context, tableID string) (*model.Session, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE table_id = ? AND status = ? LIMIT 1 FOR UPDATE`,
		tableID, model.SessionActive)
	s, err := scanSession(row)
	if err != nil {
		return nil, notFound(err)
	}
	return s, nil
}

func (t *mysqlTx) InsertSession(ctx context.Context, s *model.Session) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO sessions (`+sessionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.TableID, s.RestaurantID, s.Status, nullString(s.Note), s.CreatedAt.UTC(), nullTime(s.ClosedAt))
	if err != nil {
		return duplicate(err)
	}
	t.scopes[s.ID] = sessionScope{restaurantID: s.RestaurantID, tableID: s.TableID}
	t.record(ctx, model.TableSessions, model.ChangeInsert, s.ID, nil, rowRef(s.ID, s.ID, s.TableID, string(s.Status), s))
	return nil
}

func (t *mysqlTx) UpdateSession(ctx context.Context, s *model.Session) error {
	var was model.SessionStatus
	if err := t.tx.QueryRowContext(ctx, `SELECT status FROM sessions WHERE id = ? FOR UPDATE`, s.ID).Scan(&was); err != nil {
		return notFound(err)
	}
	res, err := t.tx.ExecContext(ctx,
		`UPDATE sessions SET status = ?, note = ?, closed_at = ? WHERE id = ?`,
		s.Status, nullString(s.Note), nullTime(s.ClosedAt), s.ID)
	if err := guarded(res, err); err != nil {
		if errors.Is(err, ErrConflict) {
			return ErrNotFound
		}
		return err
	}
	prev, next := sessionRefs(was, s)
	t.record(ctx, model.TableSessions, model.ChangeUpdate, s.ID, prev, next)
	return nil
}

const requestColumns = `id, session_id, table_id, kind, status, created_at, resolved_at`

func scanRequest(row scanner) (*model.ServiceRequest, error) {
	var r model.ServiceRequest
	var resolved sql.NullTime
	if err := row.Scan(&r.ID, &r.SessionID, &r.TableID, &r.Kind, &r.Status, &r.CreatedAt, &resolved); err != nil {
		return nil, err
	}
	r.ResolvedAt = timePtr(resolved)
	return &r, nil
}

func (t *mysqlTx) InsertServiceRequest(ctx context.Context, r *model.ServiceRequest) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO service_requests (`+requestColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.SessionID, r.TableID, r.Kind, r.Status, r.CreatedAt.UTC(), nullTime(r.ResolvedAt))
	if err != nil {
		return duplicate(err)
	}
	t.record(ctx, model.TableServiceRequests, model.ChangeInsert, r.SessionID, nil, rowRef(r.ID, r.SessionID, r.TableID, string(r.Status), r))
	return nil
}

func (t *mysqlTx) GetServiceRequest(ctx context.Context, id string) (*model.ServiceRequest, error) {
	r, err := scanRequest(t.tx.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM service_requests WHERE id = ? FOR UPDATE`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return r, nil
}

func (t *mysqlTx) ResolveServiceRequest(ctx context.Context, id string, at time.Time) error {
	r, err := t.GetServiceRequest(ctx, id)
	if err != nil {
		return err
	}
	res, err := t.tx.ExecContext(ctx,
		`UPDATE service_requests SET status = ?, resolved_at = ? WHERE id = ? AND status = ?`,
		model.RequestResolved, at.UTC(), id, model.RequestPending)
	if err := guarded(res, err); err != nil {
		return err
	}
	was := r.Status
	r.Status = model.RequestResolved
	r.ResolvedAt = &at
	prev, next := requestRefs(was, r)
	t.record(ctx, model.TableServiceRequests, model.ChangeUpdate, r.SessionID, prev, next)
	return nil
}

func (t *mysqlTx) ResolveServiceRequests(ctx context.Context, sessionID string, at time.Time) (int, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT `+requestColumns+` FROM service_requests WHERE session_id = ? AND status = ? FOR UPDATE`,
		sessionID, model.RequestPending)
	if err != nil {
		return 0, err
	}
	var pending []*model.ServiceRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			rows.Close()
			return 0, err
		}
		pending = append(pending, r)
	}
	if err := rows.Close(); err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}
	if _, err := t.tx.ExecContext(ctx,
		`UPDATE service_requests SET status = ?, resolved_at = ? WHERE session_id = ? AND status = ?`,
		model.RequestResolved, at.UTC(), sessionID, model.RequestPending); err != nil {
		return 0, err
	}
	for _, r := range pending {
		was := r.Status
		r.Status = model.RequestResolved
		r.ResolvedAt = &at
		prev, next := requestRefs(was, r)
		t.record(ctx, model.TableServiceRequests, model.ChangeUpdate, sessionID, prev, next)
	}
	return len(pending), nil
}
