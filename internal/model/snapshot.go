package model

import "time"

// SessionView is an active session with its live order items.
type SessionView struct {
	Session Session     `json:"session"`
	Items   []OrderItem `json:"items"`
}

// Snapshot is the consistent read model every role client renders from.
type Snapshot struct {
	RestaurantID string           `json:"restaurant_id"`
	Tables       []Table          `json:"tables"`
	Sessions     []SessionView    `json:"sessions"`
	Requests     []ServiceRequest `json:"requests"`
	TakenAt      time.Time        `json:"taken_at"`
}

// SessionByID finds a session view in the snapshot.
func (s *Snapshot) SessionByID(id string) (*SessionView, bool) {
	if s == nil {
		return nil, false
	}
	for i := range s.Sessions {
		if s.Sessions[i].Session.ID == id {
			return &s.Sessions[i], true
		}
	}
	return nil, false
}

// ForTable narrows a snapshot to one table, for guest viewers.
func (s Snapshot) ForTable(tableID string) Snapshot {
	out := Snapshot{RestaurantID: s.RestaurantID, TakenAt: s.TakenAt}
	for _, t := range s.Tables {
		if t.ID == tableID {
			out.Tables = append(out.Tables, t)
		}
	}
	for _, sv := range s.Sessions {
		if sv.Session.TableID == tableID {
			out.Sessions = append(out.Sessions, sv)
		}
	}
	for _, r := range s.Requests {
		if r.TableID == tableID {
			out.Requests = append(out.Requests, r)
		}
	}
	return out
}
