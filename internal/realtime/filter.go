package realtime

import (
	"github.com/erfan-mirasadi/menu-3d/internal/model"
)

// Viewer is who a snapshot stream is rendered for. Filtering by viewer only
// cuts noise; access is checked by the core and the HTTP layer.
type Viewer struct {
	Role    model.Role
	TableID string
}

// kitchenStatuses are the states a kitchen display renders.
var kitchenStatuses = map[string]bool{
	string(model.StatusConfirmed): true,
	string(model.StatusPreparing): true,
	string(model.StatusReady):     true,
}

// Relevant reports whether ev should wake v.
func Relevant(v Viewer, ev model.ChangeEvent) bool {
	switch v.Role {
	case model.RoleGuest:
		return touchesTable(ev, v.TableID)
	case model.RoleKitchen:
		if ev.Table != model.TableOrderItems {
			return false
		}
		return (ev.Old != nil && kitchenStatuses[ev.Old.Status]) || (ev.New != nil && kitchenStatuses[ev.New.Status])
	case model.RoleWaiter:
		return ev.Table != model.TableTransactions
	case model.RoleCashier, model.RoleAdmin:
		return true
	}
	return false
}

func touchesTable(ev model.ChangeEvent, tableID string) bool {
	if tableID == "" {
		return false
	}
	return (ev.Old != nil && ev.Old.TableID == tableID) || (ev.New != nil && ev.New.TableID == tableID)
}

// View narrows a snapshot to what v may render.
func View(v Viewer, snap model.Snapshot) model.Snapshot {
	switch v.Role {
	case model.RoleGuest:
		return snap.ForTable(v.TableID)
	case model.RoleKitchen:
		out := snap
		out.Requests = nil
		out.Sessions = make([]model.SessionView, 0, len(snap.Sessions))
		for _, sv := range snap.Sessions {
			items := make([]model.OrderItem, 0, len(sv.Items))
			for _, it := range sv.Items {
				if kitchenStatuses[string(it.Status)] {
					items = append(items, it)
				}
			}
			if len(items) > 0 {
				out.Sessions = append(out.Sessions, model.SessionView{Session: sv.Session, Items: items})
			}
		}
		return out
	}
	return snap
}

// NotificationKind is a toast or sound worth raising once.
type NotificationKind string

const (
	NoteNewOrder       NotificationKind = "new_order"
	NoteKitchenTicket  NotificationKind = "kitchen_ticket"
	NoteItemReady      NotificationKind = "item_ready"
	NoteServiceRequest NotificationKind = "service_request"
	NoteBillPaid       NotificationKind = "bill_paid"
)

// Notification is raised alongside snapshot pushes.
type Notification struct {
	Kind      NotificationKind `json:"kind"`
	Key       string           `json:"key"`
	TableID   string           `json:"table_id,omitempty"`
	SessionID string           `json:"session_id,omitempty"`
	RowID     string           `json:"row_id"`
}

// notificationFor classifies ev, if it warrants one.
func notificationFor(ev model.ChangeEvent) (Notification, bool) {
	row := ev.New
	if row == nil {
		return Notification{}, false
	}
	var kind NotificationKind
	switch {
	case ev.Table == model.TableServiceRequests && ev.Type == model.ChangeInsert:
		kind = NoteServiceRequest
	case ev.Table == model.TableOrderItems && row.Status == string(model.StatusPending) && (ev.Old == nil || ev.Old.Status != row.Status):
		kind = NoteNewOrder
	case ev.Table == model.TableOrderItems && row.Status == string(model.StatusConfirmed) && (ev.Old == nil || ev.Old.Status != row.Status):
		kind = NoteKitchenTicket
	case ev.Table == model.TableOrderItems && row.Status == string(model.StatusReady) && (ev.Old == nil || ev.Old.Status != row.Status):
		kind = NoteItemReady
	case ev.Table == model.TableBills && row.Status == string(model.BillPaid) && (ev.Old == nil || ev.Old.Status != row.Status):
		kind = NoteBillPaid
	default:
		return Notification{}, false
	}
	return Notification{
		Kind:      kind,
		Key:       string(kind) + ":" + row.ID,
		TableID:   row.TableID,
		SessionID: row.SessionID,
		RowID:     row.ID,
	}, true
}

// notifies reports whether v cares about a notification kind.
func notifies(v Viewer, n Notification) bool {
	switch v.Role {
	case model.RoleGuest:
		return n.TableID == v.TableID && (n.Kind == NoteItemReady || n.Kind == NoteBillPaid)
	case model.RoleKitchen:
		return n.Kind == NoteKitchenTicket
	case model.RoleWaiter:
		return n.Kind != NoteBillPaid && n.Kind != NoteKitchenTicket
	case model.RoleCashier, model.RoleAdmin:
		return true
	}
	return false
}
