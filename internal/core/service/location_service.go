package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Neiland85/ochio-club-monorepo-sub001/internal/core/domain"
	"github.com/Neiland85/ochio-club-monorepo-sub001/internal/logging"
	"github.com/Neiland85/ochio-club-monorepo-sub001/internal/metrics"
	"github.com/Neiland85/ochio-club-monorepo-sub001/internal/port"
)

const (
	nearbyFansLimit = 100

	// checkInCounterTTL bounds how long a cached counter outlives its last
	// reseed; an expired counter is rebuilt from Postgres on the next read.
	checkInCounterTTL = 24 * time.Hour
)

// VenueReader resolves the stadiums and events fans interact with.
type VenueReader interface {
	GetStadium(ctx context.Context, id string) (*domain.Stadium, error)
	GetEvent(ctx context.Context, id string) (*domain.Event, error)
}

type LocationUpdate struct {
	StadiumID string
	Latitude  float64
	Longitude float64
	Accuracy  float64
}

// LocationService relays fan positions and event check-ins. Postgres keeps
// the latest fix per user; Redis holds the per-stadium geo index and the
// check-in counters.
type LocationService struct {
	locations port.LocationRepository
	geo       port.GeoRepository
	venues    VenueReader
	notifier  port.Broadcaster
	freshness time.Duration
	maxRadius float64
}

func NewLocationService(locations port.LocationRepository, geo port.GeoRepository, venues VenueReader, notifier port.Broadcaster, freshness time.Duration, maxRadius float64) *LocationService {
	return &LocationService{
		locations: locations,
		geo:       geo,
		venues:    venues,
		notifier:  notifier,
		freshness: freshness,
		maxRadius: maxRadius,
	}
}

// JoinStadium checks that the stadium exists before a client subscribes to it.
func (s *LocationService) JoinStadium(ctx context.Context, stadiumID string) (*domain.Stadium, error) {
	if stadiumID == "" {
		return nil, fmt.Errorf("%w: stadium is required", ErrInvalidInput)
	}
	return s.venues.GetStadium(ctx, stadiumID)
}

// UpdateLocation stores the fan's position and relays it to the rest of the
// stadium room. senderID is the socket to skip, 0 for REST callers.
func (s *LocationService) UpdateLocation(ctx context.Context, userID string, in LocationUpdate, senderID uint64) (*domain.UserLocation, error) {
	if in.StadiumID == "" {
		return nil, fmt.Errorf("%w: stadium is required", ErrInvalidInput)
	}
	if !domain.ValidCoordinates(in.Latitude, in.Longitude) {
		return nil, fmt.Errorf("%w: coordinates out of range", ErrInvalidInput)
	}
	if in.Accuracy < 0 {
		return nil, fmt.Errorf("%w: accuracy must not be negative", ErrInvalidInput)
	}
	if _, err := s.venues.GetStadium(ctx, in.StadiumID); err != nil {
		return nil, err
	}

	loc := domain.UserLocation{
		UserID:    userID,
		StadiumID: in.StadiumID,
		Latitude:  in.Latitude,
		Longitude: in.Longitude,
		Accuracy:  in.Accuracy,
		UpdatedAt: time.Now(),
	}

	previous, err := s.locations.UpsertLocation(ctx, loc)
	if err != nil {
		return nil, fmt.Errorf("save location: %w", err)
	}

	if previous != "" && previous != loc.StadiumID {
		if err := s.geo.RemoveFanPosition(ctx, previous, userID); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("stadium_id", previous).Msg("failed to drop fan from previous stadium")
		}
	}
	if err := s.geo.AddFanPosition(ctx, loc); err != nil {
		// the database row is authoritative; nearby search lags until the next fix
		logging.Ctx(ctx).Warn().Err(err).Str("stadium_id", loc.StadiumID).Msg("failed to index fan position")
	}

	metrics.LocationUpdates.Inc()
	if s.notifier != nil {
		s.notifier.BroadcastToRoom(domain.StadiumRoom(loc.StadiumID), domain.EventFanLocation, loc, senderID)
	}
	return &loc, nil
}

// CheckIn records the user's attendance once per event. created is false for
// a repeat, in which case nothing is broadcast.
func (s *LocationService) CheckIn(ctx context.Context, userID, eventID string) (*domain.CheckInNotice, bool, error) {
	if eventID == "" {
		return nil, false, fmt.Errorf("%w: event is required", ErrInvalidInput)
	}

	event, err := s.venues.GetEvent(ctx, eventID)
	if err != nil {
		return nil, false, err
	}

	now := time.Now()
	created, err := s.locations.CreateCheckIn(ctx, domain.CheckIn{
		ID:        uuid.New().String(),
		UserID:    userID,
		EventID:   eventID,
		StadiumID: event.StadiumID,
		CreatedAt: now,
	})
	if err != nil {
		return nil, false, fmt.Errorf("save check-in: %w", err)
	}

	notice := &domain.CheckInNotice{
		EventID:   eventID,
		StadiumID: event.StadiumID,
		UserID:    userID,
		CreatedAt: now,
	}

	if !created {
		metrics.CheckIns.WithLabelValues("repeat").Inc()
		notice.Count, err = s.count(ctx, eventID)
		if err != nil {
			return nil, false, err
		}
		return notice, false, nil
	}

	metrics.CheckIns.WithLabelValues("new").Inc()
	notice.Count, err = s.incrementCount(ctx, eventID)
	if err != nil {
		return nil, false, err
	}

	if s.notifier != nil {
		s.notifier.BroadcastToRoom(domain.StadiumRoom(event.StadiumID), domain.EventNewCheckIn, notice, 0)
	}
	logging.Ctx(ctx).Info().Str("event_id", eventID).Int64("count", notice.Count).Msg("check-in recorded")
	return notice, true, nil
}

// incrementCount bumps the Redis counter, seeding it from Postgres when it is
// missing. The database row for this check-in already exists, so the seed
// includes it.
func (s *LocationService) incrementCount(ctx context.Context, eventID string) (int64, error) {
	n, ok, err := s.geo.IncrementCheckIns(ctx, eventID)
	if err == nil && ok {
		return n, nil
	}
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("event_id", eventID).Msg("check-in counter unavailable")
	}
	return s.seedCount(ctx, eventID)
}

// CheckInCount returns the number of fans checked in to an existing event.
func (s *LocationService) CheckInCount(ctx context.Context, eventID string) (int64, error) {
	if _, err := s.venues.GetEvent(ctx, eventID); err != nil {
		return 0, err
	}
	return s.count(ctx, eventID)
}

func (s *LocationService) count(ctx context.Context, eventID string) (int64, error) {
	n, ok, err := s.geo.CheckInCount(ctx, eventID)
	if err == nil && ok {
		return n, nil
	}
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("event_id", eventID).Msg("check-in counter unavailable")
	}
	return s.seedCount(ctx, eventID)
}

func (s *LocationService) seedCount(ctx context.Context, eventID string) (int64, error) {
	count, err := s.locations.CountCheckIns(ctx, eventID)
	if err != nil {
		return 0, fmt.Errorf("count check-ins: %w", err)
	}

	seeded, err := s.geo.SeedCheckInCount(ctx, eventID, count, checkInCounterTTL)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("event_id", eventID).Msg("failed to seed check-in counter")
		return count, nil
	}
	return seeded, nil
}

// ListFans returns the latest positions in a stadium that are still fresh.
func (s *LocationService) ListFans(ctx context.Context, stadiumID string) ([]domain.UserLocation, error) {
	if _, err := s.venues.GetStadium(ctx, stadiumID); err != nil {
		return nil, err
	}

	locs, err := s.locations.ListLocations(ctx, stadiumID, time.Now().Add(-s.freshness))
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	if locs == nil {
		locs = []domain.UserLocation{}
	}
	return locs, nil
}

func (s *LocationService) NearbyFans(ctx context.Context, stadiumID string, lat, lng, radiusM float64) ([]domain.NearbyFan, error) {
	if !domain.ValidCoordinates(lat, lng) {
		return nil, fmt.Errorf("%w: coordinates out of range", ErrInvalidInput)
	}
	if radiusM <= 0 || radiusM > s.maxRadius {
		return nil, fmt.Errorf("%w: radius must be in (0, %.0f] meters", ErrInvalidInput, s.maxRadius)
	}

	fans, err := s.geo.NearbyFans(ctx, stadiumID, lat, lng, radiusM, nearbyFansLimit)
	if err != nil {
		return nil, fmt.Errorf("nearby search: %w", err)
	}
	if fans == nil {
		fans = []domain.NearbyFan{}
	}
	return fans, nil
}

// PruneStaleLocations deletes positions older than the freshness window and
// removes them from the geo index.
func (s *LocationService) PruneStaleLocations(ctx context.Context) (int, error) {
	stale, err := s.locations.DeleteStaleLocations(ctx, time.Now().Add(-s.freshness))
	if err != nil {
		return 0, fmt.Errorf("delete stale locations: %w", err)
	}

	for _, loc := range stale {
		if err := s.geo.RemoveFanPosition(ctx, loc.StadiumID, loc.UserID); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("user_id", loc.UserID).Msg("failed to remove stale fan position")
		}
	}
	return len(stale), nil
}
