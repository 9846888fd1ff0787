package domain

import "time"

// Real-time event names carried in the {"type", "data"} envelope.
const (
	EventJoinStadium    = "join:stadium"
	EventLeaveStadium   = "leave:stadium"
	EventStadiumJoined  = "stadium:joined"
	EventLocationUpdate = "location:update"
	EventCheckIn        = "event:checkin"
	EventPing           = "ping"
	EventPong           = "pong"

	EventFanLocation = "fan:location_update"
	EventNewCheckIn  = "event:new_checkin"
	EventOrderStatus = "order:status"
	EventError       = "error"
)

// Room names.
const AdminsRoom = "admins"

func StadiumRoom(stadiumID string) string { return "stadium:" + stadiumID }

func UserRoom(userID string) string { return "user:" + userID }

// OrderStatusUpdate is pushed to the order owner and staff.
type OrderStatusUpdate struct {
	OrderID   string      `json:"orderId"`
	UserID    string      `json:"userId"`
	Status    OrderStatus `json:"status"`
	Reason    string      `json:"reason,omitempty"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// CheckInNotice is broadcast to the stadium room after a new check-in.
type CheckInNotice struct {
	EventID   string    `json:"eventId"`
	StadiumID string    `json:"stadiumId"`
	UserID    string    `json:"userId"`
	Count     int64     `json:"count"`
	CreatedAt time.Time `json:"createdAt"`
}
