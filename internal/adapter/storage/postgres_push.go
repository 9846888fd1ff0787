package storage

import (
	"context"
	"fmt"

	"github.com/Neiland85/ochio-club-monorepo-sub001/internal/core/domain"
)

const pushColumns = `id, user_id, endpoint, p256dh, auth, created_at`

func scanSubscription(row rowScanner) (domain.PushSubscription, error) {
	var s domain.PushSubscription
	err := row.Scan(&s.ID, &s.UserID, &s.Endpoint, &s.P256dh, &s.Auth, &s.CreatedAt)
	return s, err
}

// UpsertSubscription keys on endpoint: a browser re-subscribing under another
// account moves the subscription to that account.
func (p *PostgresAdapter) UpsertSubscription(ctx context.Context, sub domain.PushSubscription) (*domain.PushSubscription, error) {
	saved, err := scanSubscription(p.db.QueryRowContext(ctx, `
		INSERT INTO push_subscriptions (`+pushColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (endpoint) DO UPDATE
		SET user_id = EXCLUDED.user_id, p256dh = EXCLUDED.p256dh, auth = EXCLUDED.auth
		RETURNING `+pushColumns,
		sub.ID, sub.UserID, sub.Endpoint, sub.P256dh, sub.Auth, sub.CreatedAt,
	))
	if err != nil {
		return nil, translate(err, "upsert push subscription")
	}
	return &saved, nil
}

func (p *PostgresAdapter) DeleteSubscription(ctx context.Context, userID, endpoint string) error {
	result, err := p.db.ExecContext(ctx,
		`DELETE FROM push_subscriptions WHERE user_id = $1 AND endpoint = $2`, userID, endpoint)
	if err != nil {
		return translate(err, "delete push subscription")
	}
	return expectOne(result, ErrNotFound)
}

func (p *PostgresAdapter) ListSubscriptionsByUser(ctx context.Context, userID string) ([]domain.PushSubscription, error) {
	return p.querySubscriptions(ctx, `
		SELECT `+pushColumns+` FROM push_subscriptions
		WHERE user_id = $1 ORDER BY created_at`, userID)
}

func (p *PostgresAdapter) ListSubscriptions(ctx context.Context, limit, offset int) ([]domain.PushSubscription, error) {
	return p.querySubscriptions(ctx, `
		SELECT `+pushColumns+` FROM push_subscriptions
		ORDER BY created_at LIMIT $1 OFFSET $2`, limit, offset)
}

func (p *PostgresAdapter) querySubscriptions(ctx context.Context, query string, args ...any) ([]domain.PushSubscription, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translate(err, "query push subscriptions")
	}
	defer rows.Close()

	var subs []domain.PushSubscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan push subscription: %w", err)
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}
