package storage

import (
	"context"
	"fmt"

	"github.com/Neiland85/ochio-club-monorepo-sub001/internal/core/domain"
)

const productColumns = `id, sku, name, description, price_cents, stock, version, active, image_url, created_at, updated_at`

func scanProduct(row rowScanner) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.Description, &p.PriceCents, &p.Stock,
		&p.Version, &p.Active, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (p *PostgresAdapter) CreateProduct(ctx context.Context, prod domain.Product) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		prod.ID, prod.SKU, prod.Name, prod.Description, prod.PriceCents, prod.Stock,
		prod.Version, prod.Active, prod.ImageURL, prod.CreatedAt, prod.UpdatedAt,
	)
	return translate(err, "insert product")
}

func (p *PostgresAdapter) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	prod, err := scanProduct(p.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		return nil, translate(err, "query product")
	}
	return &prod, nil
}

func (p *PostgresAdapter) ListProducts(ctx context.Context, activeOnly bool) ([]domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products`
	if activeOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY name`

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, translate(err, "query products")
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		prod, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, prod)
	}
	return products, rows.Err()
}

// UpdateProduct changes descriptive fields only; stock goes through UpdateStock.
func (p *PostgresAdapter) UpdateProduct(ctx context.Context, prod domain.Product) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE products
		SET sku = $1, name = $2, description = $3, price_cents = $4, active = $5,
		    image_url = $6, updated_at = NOW()
		WHERE id = $7`,
		prod.SKU, prod.Name, prod.Description, prod.PriceCents, prod.Active, prod.ImageURL, prod.ID,
	)
	if err != nil {
		return translate(err, "update product")
	}
	return expectOne(result, ErrNotFound)
}

func (p *PostgresAdapter) DeleteProduct(ctx context.Context, id string) error {
	result, err := p.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return translate(err, "delete product")
	}
	return expectOne(result, ErrNotFound)
}

func (p *PostgresAdapter) UpdateStock(ctx context.Context, id string, stock, version int) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE products
		SET stock = $1, version = version + 1, updated_at = NOW()
		WHERE id = $2 AND version = $3`,
		stock, id, version,
	)
	if err != nil {
		return fmt.Errorf("update stock: %w", err)
	}

	return expectOne(result, ErrOptimisticLock)
}
