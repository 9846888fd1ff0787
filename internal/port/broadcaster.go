package port

// Broadcaster fans real-time messages out to connected clients by room.
type Broadcaster interface {
	// BroadcastToRoom sends to every member of room except the client with excludeClientID (0 = none)
	BroadcastToRoom(room, msgType string, data any, excludeClientID uint64)

	// SendToUser delivers to every connection of the user
	SendToUser(userID, msgType string, data any)
}
