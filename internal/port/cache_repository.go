package port

import (
	"context"
	"time"

	"github.com/Neiland85/ochio-club-monorepo-sub001/internal/core/domain"
)

type CacheRepository interface {
	// ReserveStock atomically decreases stock for every product in quantities,
	// returns false (and changes nothing) if any product is short
	ReserveStock(ctx context.Context, quantities map[string]int) (bool, error)

	// ReleaseStock restores stock (for rollback on failure)
	ReleaseStock(ctx context.Context, quantities map[string]int) error

	// SetStock overwrites the cached stock of a product
	SetStock(ctx context.Context, productID string, quantity int) error

	// SetIdempotency sets a key for idempotency check, returns false if already exists
	SetIdempotency(ctx context.Context, key string) (bool, error)

	// GetJSON loads a cached value into dst, returns false on a miss
	GetJSON(ctx context.Context, key string, dst any) (bool, error)

	// SetJSON caches value under key for ttl
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error

	// Delete removes cached keys
	Delete(ctx context.Context, keys ...string) error
}

type GeoRepository interface {
	// AddFanPosition records a fan's position in the stadium geo set
	AddFanPosition(ctx context.Context, loc domain.UserLocation) error

	// RemoveFanPosition drops a fan from the stadium geo set
	RemoveFanPosition(ctx context.Context, stadiumID, userID string) error

	// NearbyFans searches the stadium geo set around a point
	NearbyFans(ctx context.Context, stadiumID string, lat, lng, radiusM float64, limit int) ([]domain.NearbyFan, error)

	// IncrementCheckIns bumps the event check-in counter, ok=false when it was never seeded
	IncrementCheckIns(ctx context.Context, eventID string) (n int64, ok bool, err error)

	// CheckInCount returns the counter, ok=false when it is not cached
	CheckInCount(ctx context.Context, eventID string) (int64, bool, error)

	// SeedCheckInCount raises the counter to count (from the database), expires it after ttl
	// and returns the stored value
	SeedCheckInCount(ctx context.Context, eventID string, count int64, ttl time.Duration) (int64, error)
}
