package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/Neiland85/ochio-club-monorepo-sub001/internal/core/domain"
)

const locationColumns = `user_id, stadium_id, latitude, longitude, accuracy_m, updated_at`

func scanLocation(row rowScanner) (domain.UserLocation, error) {
	var l domain.UserLocation
	err := row.Scan(&l.UserID, &l.StadiumID, &l.Latitude, &l.Longitude, &l.Accuracy, &l.UpdatedAt)
	return l, err
}

// UpsertLocation stores the user's latest position and returns the stadium
// of the position it replaced ("" for a first fix).
func (p *PostgresAdapter) UpsertLocation(ctx context.Context, loc domain.UserLocation) (string, error) {
	var previous string
	err := p.db.QueryRowContext(ctx, `
		WITH prev AS (SELECT stadium_id FROM user_locations WHERE user_id = $1)
		INSERT INTO user_locations (`+locationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE
		SET stadium_id = EXCLUDED.stadium_id, latitude = EXCLUDED.latitude,
		    longitude = EXCLUDED.longitude, accuracy_m = EXCLUDED.accuracy_m,
		    updated_at = EXCLUDED.updated_at
		RETURNING COALESCE((SELECT stadium_id::text FROM prev), '')`,
		loc.UserID, loc.StadiumID, loc.Latitude, loc.Longitude, loc.Accuracy, loc.UpdatedAt,
	).Scan(&previous)
	if err != nil {
		return "", translate(err, "upsert location")
	}
	return previous, nil
}

func (p *PostgresAdapter) ListLocations(ctx context.Context, stadiumID string, since time.Time) ([]domain.UserLocation, error) {
	return p.queryLocations(ctx, `
		SELECT `+locationColumns+` FROM user_locations
		WHERE stadium_id = $1 AND updated_at >= $2
		ORDER BY updated_at DESC`, stadiumID, since)
}

func (p *PostgresAdapter) DeleteStaleLocations(ctx context.Context, before time.Time) ([]domain.UserLocation, error) {
	return p.queryLocations(ctx, `
		DELETE FROM user_locations WHERE updated_at < $1
		RETURNING `+locationColumns, before)
}

func (p *PostgresAdapter) queryLocations(ctx context.Context, query string, args ...any) ([]domain.UserLocation, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translate(err, "query locations")
	}
	defer rows.Close()

	var locs []domain.UserLocation
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		locs = append(locs, l)
	}
	return locs, rows.Err()
}

func (p *PostgresAdapter) CreateCheckIn(ctx context.Context, c domain.CheckIn) (bool, error) {
	result, err := p.db.ExecContext(ctx, `
		INSERT INTO check_ins (id, user_id, event_id, stadium_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, event_id) DO NOTHING`,
		c.ID, c.UserID, c.EventID, c.StadiumID, c.CreatedAt,
	)
	if err != nil {
		return false, translate(err, "insert check-in")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

func (p *PostgresAdapter) CountCheckIns(ctx context.Context, eventID string) (int64, error) {
	var n int64
	err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM check_ins WHERE event_id = $1`, eventID).Scan(&n)
	if err != nil {
		return 0, translate(err, "count check-ins")
	}
	return n, nil
}
