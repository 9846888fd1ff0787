package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/Neiland85/ochio-club-monorepo-sub001/internal/core/domain"
)

var (
	ErrNotFound       = domain.ErrNotFound
	ErrConflict       = domain.ErrConflict
	ErrOptimisticLock = domain.ErrOptimisticLock
	ErrStockExhausted = domain.ErrStockExhausted
	ErrReferenced     = domain.ErrReferenced
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
	pqInvalidTextRepr     = "22P02"
)

type PostgresAdapter struct {
	db *sql.DB
}

func NewPostgresAdapter(db *sql.DB) *PostgresAdapter {
	return &PostgresAdapter{db: db}
}

func (p *PostgresAdapter) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// translate maps driver errors onto the package sentinels. A malformed UUID
// cannot match any row, so it reads as not found.
func translate(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation:
			return fmt.Errorf("%s: %w", op, ErrConflict)
		case pqForeignKeyViolation:
			return fmt.Errorf("%s: %w (%s)", op, ErrReferenced, pqErr.Constraint)
		case pqInvalidTextRepr:
			return fmt.Errorf("%s: %w", op, ErrNotFound)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// expectOne turns "zero rows affected" into notFound.
func expectOne(res sql.Result, notFound error) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return notFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

type rowScanner interface {
	Scan(dest ...any) error
}
