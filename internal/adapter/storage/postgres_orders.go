package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/lib/pq"

	"github.com/Neiland85/ochio-club-monorepo-sub001/internal/core/domain"
)

const orderColumns = `id, user_id, COALESCE(event_id::text, ''), status, total_cents, created_at, updated_at`

func (p *PostgresAdapter) CreateOrder(ctx context.Context, order domain.Order) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, event_id, status, total_cents, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		order.ID, order.UserID, nullString(order.EventID), order.Status, order.TotalCents,
		order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return translate(err, "insert order")
	}

	for _, item := range order.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, product_id, quantity, unit_price_cents)
			VALUES ($1, $2, $3, $4)`,
			order.ID, item.ProductID, item.Quantity, item.UnitPriceCents,
		)
		if err != nil {
			return translate(err, "insert order item")
		}
	}

	// Lock products in a fixed order so concurrent orders cannot deadlock.
	quantities := order.Quantities()
	ids := make([]string, 0, len(quantities))
	for id := range quantities {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		result, err := tx.ExecContext(ctx, `
			UPDATE products
			SET stock = stock - $1, version = version + 1, updated_at = NOW()
			WHERE id = $2 AND stock >= $1`,
			quantities[id], id,
		)
		if err != nil {
			return fmt.Errorf("update stock: %w", err)
		}
		if err := expectOne(result, ErrStockExhausted); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var o domain.Order
	err := row.Scan(&o.ID, &o.UserID, &o.EventID, &o.Status, &o.TotalCents, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

func (p *PostgresAdapter) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	o, err := scanOrder(p.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		return nil, translate(err, "query order")
	}

	orders := []domain.Order{o}
	if err := p.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

func (p *PostgresAdapter) ListOrdersByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	return p.queryOrders(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

func (p *PostgresAdapter) ListOrders(ctx context.Context, status domain.OrderStatus, limit int) ([]domain.Order, error) {
	if status == "" {
		return p.queryOrders(ctx,
			`SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC LIMIT $1`, limit)
	}
	return p.queryOrders(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE status = $1 ORDER BY created_at DESC LIMIT $2`, status, limit)
}

func (p *PostgresAdapter) queryOrders(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translate(err, "query orders")
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}

	if err := p.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// attachItems loads the items of all orders with one query.
func (p *PostgresAdapter) attachItems(ctx context.Context, orders []domain.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]string, len(orders))
	index := make(map[string]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT order_id, product_id, quantity, unit_price_cents
		FROM order_items WHERE order_id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.OrderID, &item.ProductID, &item.Quantity, &item.UnitPriceCents); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		if i, ok := index[item.OrderID]; ok {
			orders[i].Items = append(orders[i].Items, item)
		}
	}
	return rows.Err()
}

func (p *PostgresAdapter) UpdateOrderStatus(ctx context.Context, id string, from, to domain.OrderStatus) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE orders SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3`,
		to, id, from,
	)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	return expectOne(result, ErrOptimisticLock)
}

// CancelOrder moves an order to a terminal status (cancelled or rejected) and
// returns its stock.
func (p *PostgresAdapter) CancelOrder(ctx context.Context, id string, from, to domain.OrderStatus) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE orders SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3`,
		to, id, from,
	)
	if err != nil {
		return fmt.Errorf("cancel order: %w", err)
	}
	if err := expectOne(result, ErrOptimisticLock); err != nil {
		return err
	}

	if err := restockItems(ctx, tx, id); err != nil {
		return err
	}

	return tx.Commit()
}

func restockItems(ctx context.Context, tx *sql.Tx, orderID string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE products p
		SET stock = p.stock + i.qty, version = p.version + 1, updated_at = NOW()
		FROM (
			SELECT product_id, SUM(quantity) AS qty
			FROM order_items WHERE order_id = $1
			GROUP BY product_id
		) i
		WHERE p.id = i.product_id`, orderID)
	if err != nil {
		return fmt.Errorf("restock items: %w", err)
	}
	return nil
}
