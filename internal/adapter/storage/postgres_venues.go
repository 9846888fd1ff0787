package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Neiland85/ochio-club-monorepo-sub001/internal/core/domain"
)

const (
	stadiumColumns = `id, name, city, latitude, longitude, capacity, created_at, updated_at`
	eventColumns   = `id, stadium_id, name, description, starts_at, ends_at, created_at, updated_at`
)

func scanStadium(row rowScanner) (domain.Stadium, error) {
	var s domain.Stadium
	err := row.Scan(&s.ID, &s.Name, &s.City, &s.Latitude, &s.Longitude, &s.Capacity, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

func scanEvent(row rowScanner) (domain.Event, error) {
	var e domain.Event
	err := row.Scan(&e.ID, &e.StadiumID, &e.Name, &e.Description, &e.StartsAt, &e.EndsAt, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

func (p *PostgresAdapter) CreateStadium(ctx context.Context, s domain.Stadium) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO stadiums (`+stadiumColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.ID, s.Name, s.City, s.Latitude, s.Longitude, s.Capacity, s.CreatedAt, s.UpdatedAt,
	)
	return translate(err, "insert stadium")
}

func (p *PostgresAdapter) GetStadium(ctx context.Context, id string) (*domain.Stadium, error) {
	s, err := scanStadium(p.db.QueryRowContext(ctx, `SELECT `+stadiumColumns+` FROM stadiums WHERE id = $1`, id))
	if err != nil {
		return nil, translate(err, "query stadium")
	}
	return &s, nil
}

func (p *PostgresAdapter) ListStadiums(ctx context.Context) ([]domain.Stadium, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+stadiumColumns+` FROM stadiums ORDER BY name`)
	if err != nil {
		return nil, translate(err, "query stadiums")
	}
	defer rows.Close()

	var stadiums []domain.Stadium
	for rows.Next() {
		s, err := scanStadium(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stadium: %w", err)
		}
		stadiums = append(stadiums, s)
	}
	return stadiums, rows.Err()
}

func (p *PostgresAdapter) UpdateStadium(ctx context.Context, s domain.Stadium) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE stadiums
		SET name = $1, city = $2, latitude = $3, longitude = $4, capacity = $5, updated_at = NOW()
		WHERE id = $6`,
		s.Name, s.City, s.Latitude, s.Longitude, s.Capacity, s.ID,
	)
	if err != nil {
		return translate(err, "update stadium")
	}
	return expectOne(result, ErrNotFound)
}

func (p *PostgresAdapter) DeleteStadium(ctx context.Context, id string) error {
	result, err := p.db.ExecContext(ctx, `DELETE FROM stadiums WHERE id = $1`, id)
	if err != nil {
		return translate(err, "delete stadium")
	}
	return expectOne(result, ErrNotFound)
}

func (p *PostgresAdapter) CreateEvent(ctx context.Context, e domain.Event) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO events (`+eventColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.StadiumID, e.Name, e.Description, e.StartsAt, e.EndsAt, e.CreatedAt, e.UpdatedAt,
	)
	return translate(err, "insert event")
}

func (p *PostgresAdapter) GetEvent(ctx context.Context, id string) (*domain.Event, error) {
	e, err := scanEvent(p.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
	if err != nil {
		return nil, translate(err, "query event")
	}
	return &e, nil
}

func (p *PostgresAdapter) ListEvents(ctx context.Context, stadiumID string, after time.Time) ([]domain.Event, error) {
	var (
		where []string
		args  []any
	)
	if stadiumID != "" {
		args = append(args, stadiumID)
		where = append(where, fmt.Sprintf("stadium_id = $%d", len(args)))
	}
	if !after.IsZero() {
		args = append(args, after)
		where = append(where, fmt.Sprintf("ends_at >= $%d", len(args)))
	}

	query := `SELECT ` + eventColumns + ` FROM events`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY starts_at`

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translate(err, "query events")
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (p *PostgresAdapter) UpdateEvent(ctx context.Context, e domain.Event) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE events
		SET stadium_id = $1, name = $2, description = $3, starts_at = $4, ends_at = $5, updated_at = NOW()
		WHERE id = $6`,
		e.StadiumID, e.Name, e.Description, e.StartsAt, e.EndsAt, e.ID,
	)
	if err != nil {
		return translate(err, "update event")
	}
	return expectOne(result, ErrNotFound)
}

func (p *PostgresAdapter) DeleteEvent(ctx context.Context, id string) error {
	result, err := p.db.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return translate(err, "delete event")
	}
	return expectOne(result, ErrNotFound)
}
