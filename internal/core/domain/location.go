package domain

import "time"

type UserLocation struct {
	UserID    string    `json:"userId"`
	StadiumID string    `json:"stadiumId"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  float64   `json:"accuracy"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NearbyFan is a geo search hit relative to a query point.
type NearbyFan struct {
	UserID    string  `json:"userId"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	DistanceM float64 `json:"distanceM"`
}

type CheckIn struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	EventID   string    `json:"eventId"`
	StadiumID string    `json:"stadiumId"`
	CreatedAt time.Time `json:"createdAt"`
}

// CheckInCounterKey names the cached check-in counter of an event.
func CheckInCounterKey(eventID string) string { return "event:" + eventID + ":checkins" }

func ValidCoordinates(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}
