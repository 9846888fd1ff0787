package domain

import "time"

type Role string

const (
	RoleFan    Role = "fan"
	RoleVendor Role = "vendor"
	RoleAdmin  Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleFan || r == RoleVendor || r == RoleAdmin
}

type User struct {
	ID          string    `json:"id"`
	AuthID      string    `json:"authId"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	Role        Role      `json:"role"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// CanManageOrders is true for staff who move orders through fulfilment.
func (u User) CanManageOrders() bool {
	return u.Role == RoleAdmin || u.Role == RoleVendor
}
