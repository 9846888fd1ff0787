package service

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/Neiland85/ochio-club-monorepo-sub001/internal/core/domain"
	"github.com/Neiland85/ochio-club-monorepo-sub001/internal/port"
)

// PushService stores browser push subscriptions. Sending notifications is
// handled elsewhere.
type PushService struct {
	subs port.PushRepository
}

func NewPushService(subs port.PushRepository) *PushService {
	return &PushService{subs: subs}
}

func (s *PushService) Subscribe(ctx context.Context, userID, endpoint, p256dh, auth string) (*domain.PushSubscription, error) {
	if endpoint == "" || p256dh == "" || auth == "" {
		return nil, fmt.Errorf("%w: endpoint and keys are required", ErrInvalidInput)
	}
	if u, err := url.Parse(endpoint); err != nil || u.Scheme != "https" || u.Host == "" {
		return nil, fmt.Errorf("%w: endpoint must be an https URL", ErrInvalidInput)
	}

	sub, err := s.subs.UpsertSubscription(ctx, domain.PushSubscription{
		ID:        uuid.New().String(),
		UserID:    userID,
		Endpoint:  endpoint,
		P256dh:    p256dh,
		Auth:      auth,
		CreatedAt: time.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("save subscription: %w", err)
	}
	return sub, nil
}

func (s *PushService) Unsubscribe(ctx context.Context, userID, endpoint string) error {
	if endpoint == "" {
		return fmt.Errorf("%w: endpoint is required", ErrInvalidInput)
	}
	if err := s.subs.DeleteSubscription(ctx, userID, endpoint); err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	return nil
}

func (s *PushService) ListSubscriptions(ctx context.Context, userID string) ([]domain.PushSubscription, error) {
	subs, err := s.subs.ListSubscriptionsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	if subs == nil {
		subs = []domain.PushSubscription{}
	}
	return subs, nil
}

func (s *PushService) ListAllSubscriptions(ctx context.Context, limit, offset int) ([]domain.PushSubscription, error) {
	if limit <= 0 || limit > maxUserLimit {
		limit = maxUserLimit
	}
	if offset < 0 {
		offset = 0
	}

	subs, err := s.subs.ListSubscriptions(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	if subs == nil {
		subs = []domain.PushSubscription{}
	}
	return subs, nil
}
