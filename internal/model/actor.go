package model

// Role is the opaque actor role supplied by the authentication layer.
type Role string

const (
	RoleGuest   Role = "guest"
	RoleWaiter  Role = "waiter"
	RoleCashier Role = "cashier"
	RoleKitchen Role = "kitchen"
	RoleAdmin   Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleGuest, RoleWaiter, RoleCashier, RoleKitchen, RoleAdmin:
		return true
	}
	return false
}

// Orders reports whether the role has ordering rights over other people's
// items (confirming, editing, closing tables).
func (r Role) Orders() bool {
	return r == RoleWaiter || r == RoleCashier || r == RoleAdmin
}

// Actor identifies who performs a core operation. Guests carry the table
// they scanned so the core can scope their actions to that table.
type Actor struct {
	ID           string `json:"id"`
	Role         Role   `json:"role"`
	RestaurantID string `json:"restaurant_id"`
	TableID      string `json:"table_id,omitempty"`
}

// IsStaff is true for any non-guest actor.
func (a Actor) IsStaff() bool { return a.Role != RoleGuest && a.Role.Valid() }
