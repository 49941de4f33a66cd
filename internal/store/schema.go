package store

import (
	"context"
	"log"
	"time"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id          TEXT PRIMARY KEY,
		seller_id   TEXT NOT NULL,
		name        TEXT NOT NULL,
		price       NUMERIC(12,2) NOT NULL CHECK (price >= 0),
		stock       INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
		is_active   BOOLEAN NOT NULL DEFAULT TRUE,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS cart_items (
		user_id     TEXT NOT NULL,
		product_id  TEXT NOT NULL REFERENCES products(id),
		quantity    INTEGER NOT NULL CHECK (quantity > 0),
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (user_id, product_id)
	)`,
	`CREATE TABLE IF NOT EXISTS delivery_agents (
		id                   TEXT PRIMARY KEY,
		name                 TEXT NOT NULL,
		phone                TEXT NOT NULL DEFAULT '',
		approval_status      TEXT NOT NULL DEFAULT 'pending',
		vehicle_type         TEXT NOT NULL DEFAULT '',
		is_available         BOOLEAN NOT NULL DEFAULT FALSE,
		current_lat          DOUBLE PRECISION,
		current_lng          DOUBLE PRECISION,
		location_updated_at  TIMESTAMPTZ,
		rating               NUMERIC(3,2) NOT NULL DEFAULT 0,
		completed_deliveries INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS delivery_addresses (
		id             BIGSERIAL PRIMARY KEY,
		full_name      TEXT NOT NULL,
		phone          TEXT NOT NULL,
		address_line1  TEXT NOT NULL,
		address_line2  TEXT NOT NULL DEFAULT '',
		city           TEXT NOT NULL,
		postal_code    TEXT NOT NULL,
		latitude       DOUBLE PRECISION,
		longitude      DOUBLE PRECISION,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id                     BIGSERIAL PRIMARY KEY,
		order_number           TEXT NOT NULL UNIQUE,
		customer_id            TEXT NOT NULL,
		subtotal               NUMERIC(12,2) NOT NULL,
		delivery_charge        NUMERIC(12,2) NOT NULL,
		discount               NUMERIC(12,2) NOT NULL DEFAULT 0,
		total                  NUMERIC(12,2) NOT NULL,
		payment_method         TEXT NOT NULL,
		payment_status         TEXT NOT NULL DEFAULT 'pending',
		status                 TEXT NOT NULL,
		delivery_status        TEXT NOT NULL,
		delivery_boy_id        TEXT REFERENCES delivery_agents(id),
		delivery_otp           TEXT,
		delivery_address_id    BIGINT NOT NULL REFERENCES delivery_addresses(id),
		delivery_instructions  TEXT NOT NULL DEFAULT '',
		created_at             TIMESTAMPTZ NOT NULL,
		updated_at             TIMESTAMPTZ NOT NULL,
		delivery_accepted_at   TIMESTAMPTZ,
		delivery_picked_at     TIMESTAMPTZ,
		delivery_out_at        TIMESTAMPTZ,
		delivery_completed_at  TIMESTAMPTZ,
		actual_delivery_time   TIMESTAMPTZ,
		cancelled_at           TIMESTAMPTZ,
		CHECK (total = subtotal + delivery_charge - discount)
	)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		id            BIGSERIAL PRIMARY KEY,
		order_id      BIGINT NOT NULL REFERENCES orders(id),
		product_id    TEXT NOT NULL,
		seller_id     TEXT NOT NULL,
		product_name  TEXT NOT NULL,
		quantity      INTEGER NOT NULL CHECK (quantity > 0),
		unit_price    NUMERIC(12,2) NOT NULL,
		total_price   NUMERIC(12,2) NOT NULL,
		CHECK (total_price = unit_price * quantity)
	)`,
	`CREATE INDEX IF NOT EXISTS orders_customer_idx ON orders (customer_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS orders_agent_idx ON orders (delivery_boy_id)`,
	`CREATE INDEX IF NOT EXISTS orders_pool_idx ON orders (created_at) WHERE delivery_boy_id IS NULL AND delivery_status = 'pending'`,
	`CREATE INDEX IF NOT EXISTS order_items_order_idx ON order_items (order_id)`,
	`CREATE INDEX IF NOT EXISTS order_items_seller_idx ON order_items (seller_id, order_id)`,
}

// EnsureSchema creates the engine's tables and indexes when missing.
func EnsureSchema(ctx context.Context, q Querier) error {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	for _, stmt := range schema {
		if _, err := q.Exec(ctx, stmt); err != nil {
			log.Printf("[store] schema statement failed: %v", err)
			return err
		}
	}
	log.Printf("[store] schema ensured statements=%d", len(schema))
	return nil
}
