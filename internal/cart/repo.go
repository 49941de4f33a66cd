// Package cart reads and clears a customer's cart. Cart rows only live until
// checkout turns them into an order.
package cart

import (
	"context"

	"github.com/MikeMC777/entregas-ecom/internal/store"
)

type Line struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type Repository interface {
	Lines(ctx context.Context, q store.Querier, userID string) ([]Line, error)
	Remove(ctx context.Context, q store.Querier, userID string, productIDs []string) (int64, error)
	Clear(ctx context.Context, q store.Querier, userID string) (int64, error)
}

type PGRepo struct{}

func NewPGRepo() *PGRepo { return &PGRepo{} }

// Lines locks the user's existing cart rows for the rest of the transaction.
// Rows inserted after the read are not locked, so checkout removes only the
// products it read (see Remove).
func (r *PGRepo) Lines(ctx context.Context, q store.Querier, userID string) ([]Line, error) {
	rows, err := q.Query(ctx, `
		SELECT product_id, quantity
		FROM cart_items
		WHERE user_id = $1
		ORDER BY product_id
		FOR UPDATE
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ProductID, &l.Quantity); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// Remove deletes the given products from the user's cart. Checkout passes the
// products it read and priced; a line added concurrently stays in the cart.
func (r *PGRepo) Remove(ctx context.Context, q store.Querier, userID string, productIDs []string) (int64, error) {
	if len(productIDs) == 0 {
		return 0, nil
	}
	tag, err := q.Exec(ctx,
		`DELETE FROM cart_items WHERE user_id = $1 AND product_id = ANY($2)`, userID, productIDs)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Clear empties the user's cart.
func (r *PGRepo) Clear(ctx context.Context, q store.Querier, userID string) (int64, error) {
	tag, err := q.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
