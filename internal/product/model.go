package product

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is the catalog row as checkout sees it. The catalog itself is
// managed elsewhere; this service only reads prices and reserves stock.
type Product struct {
	ID       string          `json:"id"`
	SellerID string          `json:"seller_id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Stock    int             `json:"stock"`
	IsActive bool            `json:"is_active"`
	// UpdatedAt is informational; prices are always re-read at checkout.
	UpdatedAt time.Time `json:"updated_at"`
}
