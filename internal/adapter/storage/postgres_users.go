package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Neiland85/ochio-club-monorepo-sub001/internal/core/domain"
)

const userColumns = `id, auth_id, email, display_name, role, created_at, updated_at`

// scanUser reads a users row. Email is NULL for identities without one
// (phone or anonymous sign-in) so the unique index only covers real addresses.
func scanUser(row rowScanner) (domain.User, error) {
	var (
		u     domain.User
		email sql.NullString
	)
	err := row.Scan(&u.ID, &u.AuthID, &email, &u.DisplayName, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	u.Email = email.String
	return u, err
}

func (p *PostgresAdapter) CreateUser(ctx context.Context, u domain.User) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.ID, u.AuthID, nullString(u.Email), u.DisplayName, u.Role, u.CreatedAt, u.UpdatedAt,
	)
	return translate(err, "insert user")
}

func (p *PostgresAdapter) GetUser(ctx context.Context, id string) (*domain.User, error) {
	u, err := scanUser(p.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, translate(err, "query user")
	}
	return &u, nil
}

func (p *PostgresAdapter) GetUserByAuthID(ctx context.Context, authID string) (*domain.User, error) {
	u, err := scanUser(p.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE auth_id = $1`, authID))
	if err != nil {
		return nil, translate(err, "query user by auth id")
	}
	return &u, nil
}

func (p *PostgresAdapter) ListUsers(ctx context.Context, limit, offset int) ([]domain.User, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+userColumns+` FROM users
		ORDER BY created_at LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, translate(err, "query users")
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (p *PostgresAdapter) UpdateUser(ctx context.Context, u domain.User) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE users SET email = $1, display_name = $2, role = $3, updated_at = NOW()
		WHERE id = $4`,
		nullString(u.Email), u.DisplayName, u.Role, u.ID,
	)
	if err != nil {
		return translate(err, "update user")
	}
	return expectOne(result, ErrNotFound)
}

func (p *PostgresAdapter) DeleteUser(ctx context.Context, id string) error {
	result, err := p.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return translate(err, "delete user")
	}
	return expectOne(result, ErrNotFound)
}
