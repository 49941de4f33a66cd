// Package product provides the catalog reads and stock reservations used when
// an order is created or cancelled.
package product

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/MikeMC777/entregas-ecom/internal/store"
)

var (
	ErrNotFound          = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
)

type Repository interface {
	Lookup(ctx context.Context, q store.Querier, ids []string) (map[string]Product, error)
	Reserve(ctx context.Context, q store.Querier, id string, qty int) error
	Release(ctx context.Context, q store.Querier, id string, qty int) error
}

type PGRepo struct{}

func NewPGRepo() *PGRepo { return &PGRepo{} }

// Lookup returns the active products among ids keyed by id. Missing or
// inactive products are simply absent from the map.
func (r *PGRepo) Lookup(ctx context.Context, q store.Querier, ids []string) (map[string]Product, error) {
	rows, err := q.Query(ctx, `
		SELECT id, seller_id, name, price::text, stock, is_active, updated_at
		FROM products
		WHERE id = ANY($1) AND is_active
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]Product, len(ids))
	for rows.Next() {
		var (
			p     Product
			price string
		)
		if err := rows.Scan(&p.ID, &p.SellerID, &p.Name, &price, &p.Stock, &p.IsActive, &p.UpdatedAt); err != nil {
			return nil, err
		}
		if p.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("product %s: bad price %q: %w", p.ID, price, err)
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

// Reserve decrements stock only when enough is left, so two checkouts racing
// for the last unit cannot both succeed.
func (r *PGRepo) Reserve(ctx context.Context, q store.Querier, id string, qty int) error {
	tag, err := q.Exec(ctx, `
		UPDATE products
		SET stock = stock - $2, updated_at = NOW()
		WHERE id = $1 AND is_active AND stock >= $2
	`, id, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInsufficientStock
	}
	return nil
}

func (r *PGRepo) Release(ctx context.Context, q store.Querier, id string, qty int) error {
	_, err := q.Exec(ctx, `
		UPDATE products
		SET stock = stock + $2, updated_at = NOW()
		WHERE id = $1
	`, id, qty)
	return err
}
