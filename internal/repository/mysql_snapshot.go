package repository

import (
	"context"
	"strings"
	"time"

	"github.com/erfan-mirasadi/menu-3d/internal/model"
)

// Snapshot reads the restaurant's read model outside any transaction. The
// three queries are not one consistent read; the realtime coordinator
// re-fetches after every settled burst so a torn read is short-lived.
func (s *MySQLStore) Snapshot(ctx context.Context, restaurantID string) (model.Snapshot, error) {
	snap := model.Snapshot{RestaurantID: restaurantID, TakenAt: time.Now().UTC()}

	trows, err := s.db.QueryContext(ctx,
		`SELECT id, restaurant_id, label FROM restaurant_tables WHERE restaurant_id = ? ORDER BY label`, restaurantID)
	if err != nil {
		return snap, err
	}
	for trows.Next() {
		var tb model.Table
		if err := trows.Scan(&tb.ID, &tb.RestaurantID, &tb.Label); err != nil {
			trows.Close()
			return snap, err
		}
		snap.Tables = append(snap.Tables, tb)
	}
	if err := trows.Close(); err != nil {
		return snap, err
	}

	srows, err := s.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE restaurant_id = ? AND status = ? ORDER BY created_at`,
		restaurantID, model.SessionActive)
	if err != nil {
		return snap, err
	}
	index := map[string]int{}
	for srows.Next() {
		sess, err := scanSession(srows)
		if err != nil {
			srows.Close()
			return snap, err
		}
		index[sess.ID] = len(snap.Sessions)
		snap.Sessions = append(snap.Sessions, model.SessionView{Session: *sess, Items: []model.OrderItem{}})
	}
	if err := srows.Close(); err != nil {
		return snap, err
	}
	if len(snap.Sessions) == 0 {
		return snap, nil
	}

	irows, err := s.db.QueryContext(ctx,
		`SELECT `+prefixed("i", itemColumns)+` FROM order_items i
		 JOIN sessions s ON s.id = i.session_id
		 WHERE s.restaurant_id = ? AND s.status = ? AND i.status <> ?
		 ORDER BY i.created_at, i.id`,
		restaurantID, model.SessionActive, model.StatusCancelled)
	if err != nil {
		return snap, err
	}
	for irows.Next() {
		it, err := scanItem(irows)
		if err != nil {
			irows.Close()
			return snap, err
		}
		if idx, ok := index[it.SessionID]; ok {
			snap.Sessions[idx].Items = append(snap.Sessions[idx].Items, *it)
		}
	}
	if err := irows.Close(); err != nil {
		return snap, err
	}

	rrows, err := s.db.QueryContext(ctx,
		`SELECT `+prefixed("r", requestColumns)+` FROM service_requests r
		 JOIN sessions s ON s.id = r.session_id
		 WHERE s.restaurant_id = ? AND r.status = ?
		 ORDER BY r.created_at`,
		restaurantID, model.RequestPending)
	if err != nil {
		return snap, err
	}
	defer rrows.Close()
	for rrows.Next() {
		r, err := scanRequest(rrows)
		if err != nil {
			return snap, err
		}
		snap.Requests = append(snap.Requests, *r)
	}
	return snap, rrows.Err()
}

// prefixed qualifies a comma-separated column list with a table alias.
func prefixed(alias, cols string) string {
	parts := strings.Split(cols, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
