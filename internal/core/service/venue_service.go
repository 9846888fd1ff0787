package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Neiland85/ochio-club-monorepo-sub001/internal/core/domain"
	"github.com/Neiland85/ochio-club-monorepo-sub001/internal/logging"
	"github.com/Neiland85/ochio-club-monorepo-sub001/internal/metrics"
	"github.com/Neiland85/ochio-club-monorepo-sub001/internal/port"
)

func stadiumCacheKey(id string) string { return "venue:stadium:" + id }

func eventCacheKey(id string) string { return "venue:event:" + id }

// VenueService manages stadiums and the events held in them. Single-entity
// reads are cached because every socket join and check-in resolves them.
type VenueService struct {
	venues port.VenueRepository
	cache  port.CacheRepository
	ttl    time.Duration
}

func NewVenueService(venues port.VenueRepository, cache port.CacheRepository, ttl time.Duration) *VenueService {
	return &VenueService{venues: venues, cache: cache, ttl: ttl}
}

func validateStadium(s domain.Stadium) error {
	var errs []string
	if strings.TrimSpace(s.Name) == "" {
		errs = append(errs, "name is required")
	}
	if !domain.ValidCoordinates(s.Latitude, s.Longitude) {
		errs = append(errs, "coordinates out of range")
	}
	if s.Capacity < 0 {
		errs = append(errs, "capacity must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(errs, ", "))
	}
	return nil
}

func (s *VenueService) CreateStadium(ctx context.Context, st domain.Stadium) (*domain.Stadium, error) {
	if err := validateStadium(st); err != nil {
		return nil, err
	}

	now := time.Now()
	st.ID = uuid.New().String()
	st.CreatedAt = now
	st.UpdatedAt = now

	if err := s.venues.CreateStadium(ctx, st); err != nil {
		return nil, fmt.Errorf("create stadium: %w", err)
	}
	logging.Ctx(ctx).Info().Str("stadium_id", st.ID).Str("name", st.Name).Msg("stadium created")
	return &st, nil
}

func (s *VenueService) GetStadium(ctx context.Context, id string) (*domain.Stadium, error) {
	var st domain.Stadium
	if s.cached(ctx, stadiumCacheKey(id), &st) {
		return &st, nil
	}

	found, err := s.venues.GetStadium(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get stadium %s: %w", id, err)
	}
	s.store(ctx, stadiumCacheKey(id), found)
	return found, nil
}

func (s *VenueService) ListStadiums(ctx context.Context) ([]domain.Stadium, error) {
	stadiums, err := s.venues.ListStadiums(ctx)
	if err != nil {
		return nil, fmt.Errorf("list stadiums: %w", err)
	}
	if stadiums == nil {
		stadiums = []domain.Stadium{}
	}
	return stadiums, nil
}

func (s *VenueService) UpdateStadium(ctx context.Context, st domain.Stadium) (*domain.Stadium, error) {
	if err := validateStadium(st); err != nil {
		return nil, err
	}
	if err := s.venues.UpdateStadium(ctx, st); err != nil {
		return nil, fmt.Errorf("update stadium %s: %w", st.ID, err)
	}
	s.evict(ctx, stadiumCacheKey(st.ID))

	return s.GetStadium(ctx, st.ID)
}

func (s *VenueService) DeleteStadium(ctx context.Context, id string) error {
	if err := s.venues.DeleteStadium(ctx, id); err != nil {
		return fmt.Errorf("delete stadium %s: %w", id, err)
	}
	s.evict(ctx, stadiumCacheKey(id))
	return nil
}

func (s *VenueService) validateEvent(ctx context.Context, e domain.Event) error {
	var errs []string
	if strings.TrimSpace(e.Name) == "" {
		errs = append(errs, "name is required")
	}
	if e.StadiumID == "" {
		errs = append(errs, "stadium is required")
	}
	if e.StartsAt.IsZero() || !e.EndsAt.After(e.StartsAt) {
		errs = append(errs, "event must end after it starts")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(errs, ", "))
	}

	if _, err := s.GetStadium(ctx, e.StadiumID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("%w: unknown stadium %s", ErrInvalidInput, e.StadiumID)
		}
		return err
	}
	return nil
}

func (s *VenueService) CreateEvent(ctx context.Context, e domain.Event) (*domain.Event, error) {
	if err := s.validateEvent(ctx, e); err != nil {
		return nil, err
	}

	now := time.Now()
	e.ID = uuid.New().String()
	e.CreatedAt = now
	e.UpdatedAt = now

	if err := s.venues.CreateEvent(ctx, e); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	logging.Ctx(ctx).Info().Str("event_id", e.ID).Str("stadium_id", e.StadiumID).Msg("event created")
	return &e, nil
}

func (s *VenueService) GetEvent(ctx context.Context, id string) (*domain.Event, error) {
	var e domain.Event
	if s.cached(ctx, eventCacheKey(id), &e) {
		return &e, nil
	}

	found, err := s.venues.GetEvent(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get event %s: %w", id, err)
	}
	s.store(ctx, eventCacheKey(id), found)
	return found, nil
}

// ListEvents filters by stadium when stadiumID is set; upcomingOnly keeps
// events that have not ended yet.
func (s *VenueService) ListEvents(ctx context.Context, stadiumID string, upcomingOnly bool) ([]domain.Event, error) {
	var after time.Time
	if upcomingOnly {
		after = time.Now()
	}

	events, err := s.venues.ListEvents(ctx, stadiumID, after)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	if events == nil {
		events = []domain.Event{}
	}
	return events, nil
}

func (s *VenueService) UpdateEvent(ctx context.Context, e domain.Event) (*domain.Event, error) {
	if err := s.validateEvent(ctx, e); err != nil {
		return nil, err
	}
	if err := s.venues.UpdateEvent(ctx, e); err != nil {
		return nil, fmt.Errorf("update event %s: %w", e.ID, err)
	}
	s.evict(ctx, eventCacheKey(e.ID))

	return s.GetEvent(ctx, e.ID)
}

func (s *VenueService) DeleteEvent(ctx context.Context, id string) error {
	if err := s.venues.DeleteEvent(ctx, id); err != nil {
		return fmt.Errorf("delete event %s: %w", id, err)
	}
	s.evict(ctx, eventCacheKey(id), domain.CheckInCounterKey(id))
	return nil
}

func (s *VenueService) cached(ctx context.Context, key string, dst any) bool {
	found, err := s.cache.GetJSON(ctx, key, dst)
	switch {
	case err != nil:
		metrics.RecordCache("venue", "error")
		logging.Ctx(ctx).Debug().Err(err).Str("key", key).Msg("venue cache read failed")
		return false
	case found:
		metrics.RecordCache("venue", "hit")
	default:
		metrics.RecordCache("venue", "miss")
	}
	return found
}

func (s *VenueService) store(ctx context.Context, key string, value any) {
	if err := s.cache.SetJSON(ctx, key, value, s.ttl); err != nil {
		logging.Ctx(ctx).Debug().Err(err).Str("key", key).Msg("venue cache write failed")
	}
}

func (s *VenueService) evict(ctx context.Context, keys ...string) {
	if err := s.cache.Delete(ctx, keys...); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Strs("keys", keys).Msg("venue cache eviction failed")
	}
}
