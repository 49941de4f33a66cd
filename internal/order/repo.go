package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/MikeMC777/entregas-ecom/internal/lifecycle"
	"github.com/MikeMC777/entregas-ecom/internal/store"
)

var (
	ErrNotFound = errors.New("order not found")
	// ErrConflict means a guarded write matched no row: the order exists but
	// is no longer in the state the caller expected.
	ErrConflict = errors.New("order state changed")
)

type Filter struct {
	CustomerID string
	SellerID   string
	AgentID    string
	// IncludePool adds unassigned pending orders to the result.
	IncludePool bool
	Limit       int
	Offset      int
}

// DeliveryChange moves an assigned order one delivery step forward,
// reconciling the customer-facing status in the same write.
type DeliveryChange struct {
	OrderID    int64
	AgentID    string
	From       lifecycle.DeliveryStatus
	To         lifecycle.DeliveryStatus
	StatusFrom lifecycle.Status
	StatusTo   lifecycle.Status
	At         time.Time
}

// Assignment is an admin placement of an agent on an order. PrevAgent and
// PrevDelivery are what the admin saw; the write fails if either moved.
type Assignment struct {
	OrderID      int64
	AgentID      string
	OTP          string
	PrevAgent    *string
	PrevDelivery lifecycle.DeliveryStatus
	At           time.Time
}

type Repository interface {
	Insert(ctx context.Context, q store.Querier, o *Order) error
	Get(ctx context.Context, id int64) (*Order, error)
	List(ctx context.Context, f Filter) ([]Order, error)
	SetStatus(ctx context.Context, q store.Querier, id int64, from, to lifecycle.Status, at time.Time) error
	Cancel(ctx context.Context, q store.Querier, id int64, from lifecycle.Status, at time.Time) error
	Accept(ctx context.Context, id int64, agentID, otp string, at time.Time) error
	Assign(ctx context.Context, a Assignment) error
	AdvanceDelivery(ctx context.Context, ch DeliveryChange) error
	Complete(ctx context.Context, q store.Querier, id int64, agentID, otp string, at time.Time) error
}

type PGRepo struct{ db store.DB }

func NewPGRepo(db store.DB) *PGRepo { return &PGRepo{db: db} }

const orderColumns = `
	o.id, o.order_number, o.customer_id,
	o.subtotal::text, o.delivery_charge::text, o.discount::text, o.total::text,
	o.payment_method, o.payment_status, o.status, o.delivery_status,
	o.delivery_boy_id, o.delivery_otp, o.delivery_instructions,
	o.created_at, o.updated_at, o.delivery_accepted_at, o.delivery_picked_at,
	o.delivery_out_at, o.delivery_completed_at, o.actual_delivery_time, o.cancelled_at,
	a.id, a.full_name, a.phone, a.address_line1, a.address_line2, a.city, a.postal_code,
	a.latitude, a.longitude`

// poolClause matches orders any available agent may claim.
const poolClause = `(o.delivery_boy_id IS NULL AND o.delivery_status = 'pending' AND o.status NOT IN ('delivered', 'cancelled'))`

// Insert writes the address snapshot, the order and its items. It must run
// inside the checkout transaction; IDs are filled in on o.
func (r *PGRepo) Insert(ctx context.Context, q store.Querier, o *Order) error {
	a := &o.Address
	if err := q.QueryRow(ctx, `
		INSERT INTO delivery_addresses (full_name, phone, address_line1, address_line2, city, postal_code, latitude, longitude)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING id
	`, a.FullName, a.Phone, a.AddressLine1, a.AddressLine2, a.City, a.PostalCode, a.Latitude, a.Longitude).Scan(&a.ID); err != nil {
		return fmt.Errorf("insert address: %w", err)
	}

	if err := q.QueryRow(ctx, `
		INSERT INTO orders (
			order_number, customer_id, subtotal, delivery_charge, discount, total,
			payment_method, payment_status, status, delivery_status,
			delivery_address_id, delivery_instructions, created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$13)
		RETURNING id
	`, o.OrderNumber, o.CustomerID,
		o.Subtotal.StringFixed(2), o.DeliveryCharge.StringFixed(2), o.Discount.StringFixed(2), o.Total.StringFixed(2),
		o.PaymentMethod, o.PaymentStatus, string(o.Status), string(o.DeliveryStatus),
		a.ID, o.DeliveryInstructions, o.CreatedAt).Scan(&o.ID); err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for i := range o.Items {
		it := &o.Items[i]
		it.OrderID = o.ID
		if err := q.QueryRow(ctx, `
			INSERT INTO order_items (order_id, product_id, seller_id, product_name, quantity, unit_price, total_price)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
			RETURNING id
		`, o.ID, it.ProductID, it.SellerID, it.ProductName, it.Quantity,
			it.UnitPrice.StringFixed(2), it.TotalPrice.StringFixed(2)).Scan(&it.ID); err != nil {
			return fmt.Errorf("insert item %s: %w", it.ProductID, err)
		}
	}
	return nil
}

func (r *PGRepo) Get(ctx context.Context, id int64) (*Order, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	o, err := scanOrder(r.db.QueryRow(ctx, `
		SELECT `+orderColumns+`
		FROM orders o
		JOIN delivery_addresses a ON a.id = o.delivery_address_id
		WHERE o.id = $1
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	items, err := r.items(ctx, []int64{o.ID})
	if err != nil {
		return nil, err
	}
	o.Items = items[o.ID]
	return o, nil
}

// List returns orders newest first. Filters combine with AND, except that
// IncludePool widens an agent filter to the unassigned pool.
func (r *PGRepo) List(ctx context.Context, f Filter) ([]Order, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	var (
		where []string
		args  []interface{}
	)
	add := func(cond string, v interface{}) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.CustomerID != "" {
		add("o.customer_id = $%d", f.CustomerID)
	}
	if f.SellerID != "" {
		add("EXISTS (SELECT 1 FROM order_items i WHERE i.order_id = o.id AND i.seller_id = $%d)", f.SellerID)
	}
	switch {
	case f.AgentID != "" && f.IncludePool:
		add("(o.delivery_boy_id = $%d OR "+poolClause+")", f.AgentID)
	case f.AgentID != "":
		add("o.delivery_boy_id = $%d", f.AgentID)
	case f.IncludePool:
		where = append(where, poolClause)
	}

	query := `SELECT ` + orderColumns + `
		FROM orders o
		JOIN delivery_addresses a ON a.id = o.delivery_address_id`
	if len(where) > 0 {
		query += "\n\t\tWHERE " + strings.Join(where, " AND ")
	}
	args = append(args, f.Limit, f.Offset)
	query += fmt.Sprintf("\n\t\tORDER BY o.created_at DESC, o.id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		out []Order
		ids []int64
	)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return out, nil
	}

	items, err := r.items(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Items = items[out[i].ID]
	}
	return out, nil
}

func (r *PGRepo) items(ctx context.Context, orderIDs []int64) (map[int64][]Item, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, order_id, product_id, seller_id, product_name, quantity, unit_price::text, total_price::text
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, id
	`, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64][]Item, len(orderIDs))
	for rows.Next() {
		var (
			it          Item
			unit, total string
		)
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.SellerID, &it.ProductName, &it.Quantity, &unit, &total); err != nil {
			return nil, err
		}
		if err := parseMoney(map[string]*decimal.Decimal{"unit_price": &it.UnitPrice, "total_price": &it.TotalPrice},
			map[string]string{"unit_price": unit, "total_price": total}); err != nil {
			return nil, err
		}
		out[it.OrderID] = append(out[it.OrderID], it)
	}
	return out, rows.Err()
}

// SetStatus moves the customer-facing status only if it still equals from.
func (r *PGRepo) SetStatus(ctx context.Context, q store.Querier, id int64, from, to lifecycle.Status, at time.Time) error {
	tag, err := q.Exec(ctx, `
		UPDATE orders
		SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2
	`, id, string(from), string(to), at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return classifyMiss(ctx, q, id)
	}
	return nil
}

func (r *PGRepo) Cancel(ctx context.Context, q store.Querier, id int64, from lifecycle.Status, at time.Time) error {
	tag, err := q.Exec(ctx, `
		UPDATE orders
		SET status = 'cancelled', delivery_status = 'cancelled', delivery_otp = NULL,
		    cancelled_at = $3, updated_at = $3
		WHERE id = $1 AND status = $2
	`, id, string(from), at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return classifyMiss(ctx, q, id)
	}
	return nil
}

// Accept claims a pooled order for agentID. The WHERE clause is the whole
// race guard: of any number of concurrent calls at most one matches a row.
func (r *PGRepo) Accept(ctx context.Context, id int64, agentID, otp string, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tag, err := r.db.Exec(ctx, `
		UPDATE orders
		SET delivery_boy_id = $2, delivery_status = 'accepted', delivery_otp = $3,
		    delivery_accepted_at = $4, updated_at = $4
		WHERE id = $1
		  AND delivery_boy_id IS NULL
		  AND delivery_status = 'pending'
		  AND status NOT IN ('delivered', 'cancelled')
	`, id, agentID, otp, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return classifyMiss(ctx, r.db, id)
	}
	return nil
}

func (r *PGRepo) Assign(ctx context.Context, a Assignment) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tag, err := r.db.Exec(ctx, `
		UPDATE orders
		SET delivery_boy_id = $2, delivery_status = 'accepted', delivery_otp = $3,
		    delivery_accepted_at = $6, updated_at = $6
		WHERE id = $1
		  AND delivery_boy_id IS NOT DISTINCT FROM $4
		  AND delivery_status = $5
		  AND delivery_status IN ('pending', 'accepted')
		  AND status NOT IN ('delivered', 'cancelled')
	`, a.OrderID, a.AgentID, a.OTP, a.PrevAgent, string(a.PrevDelivery), a.At)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return classifyMiss(ctx, r.db, a.OrderID)
	}
	return nil
}

var deliveryStampColumn = map[lifecycle.DeliveryStatus]string{
	lifecycle.DeliveryPickedUp:       "delivery_picked_at",
	lifecycle.DeliveryOutForDelivery: "delivery_out_at",
}

func (r *PGRepo) AdvanceDelivery(ctx context.Context, ch DeliveryChange) error {
	col, ok := deliveryStampColumn[ch.To]
	if !ok {
		return fmt.Errorf("advance delivery: no timestamp column for %q", ch.To)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tag, err := r.db.Exec(ctx, `
		UPDATE orders
		SET delivery_status = $4, status = $6, `+col+` = $7, updated_at = $7
		WHERE id = $1 AND delivery_boy_id = $2 AND delivery_status = $3 AND status = $5
	`, ch.OrderID, ch.AgentID, string(ch.From), string(ch.To), string(ch.StatusFrom), string(ch.StatusTo), ch.At)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return classifyMiss(ctx, r.db, ch.OrderID)
	}
	return nil
}

// Complete is the only write that reaches delivered. The OTP comparison in
// the WHERE clause makes a replayed or stale code match nothing, since the
// code is cleared by the same statement.
func (r *PGRepo) Complete(ctx context.Context, q store.Querier, id int64, agentID, otp string, at time.Time) error {
	tag, err := q.Exec(ctx, `
		UPDATE orders
		SET status = 'delivered', delivery_status = 'delivered', delivery_otp = NULL,
		    delivery_completed_at = $4, actual_delivery_time = $4, updated_at = $4,
		    payment_status = CASE WHEN payment_method = 'cod' THEN 'paid' ELSE payment_status END
		WHERE id = $1
		  AND delivery_boy_id = $2
		  AND delivery_status = 'out_for_delivery'
		  AND delivery_otp = $3
	`, id, agentID, otp, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return classifyMiss(ctx, q, id)
	}
	return nil
}

// classifyMiss tells a missing order apart from one that moved on.
func classifyMiss(ctx context.Context, q store.Querier, id int64) error {
	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrConflict
}

func scanOrder(row pgx.Row) (*Order, error) {
	var (
		o                                 Order
		subtotal, charge, discount, total string
		status, delivery                  string
	)
	a := &o.Address
	if err := row.Scan(
		&o.ID, &o.OrderNumber, &o.CustomerID,
		&subtotal, &charge, &discount, &total,
		&o.PaymentMethod, &o.PaymentStatus, &status, &delivery,
		&o.DeliveryBoyID, &o.DeliveryOTP, &o.DeliveryInstructions,
		&o.CreatedAt, &o.UpdatedAt, &o.DeliveryAcceptedAt, &o.DeliveryPickedAt,
		&o.DeliveryOutAt, &o.DeliveryCompletedAt, &o.ActualDeliveryTime, &o.CancelledAt,
		&a.ID, &a.FullName, &a.Phone, &a.AddressLine1, &a.AddressLine2, &a.City, &a.PostalCode,
		&a.Latitude, &a.Longitude,
	); err != nil {
		return nil, err
	}
	o.Status = lifecycle.Status(status)
	o.DeliveryStatus = lifecycle.DeliveryStatus(delivery)

	if err := parseMoney(
		map[string]*decimal.Decimal{"subtotal": &o.Subtotal, "delivery_charge": &o.DeliveryCharge, "discount": &o.Discount, "total": &o.Total},
		map[string]string{"subtotal": subtotal, "delivery_charge": charge, "discount": discount, "total": total},
	); err != nil {
		return nil, fmt.Errorf("order %d: %w", o.ID, err)
	}
	return &o, nil
}

func parseMoney(dst map[string]*decimal.Decimal, raw map[string]string) error {
	for name, p := range dst {
		d, err := decimal.NewFromString(raw[name])
		if err != nil {
			return fmt.Errorf("bad %s %q: %w", name, raw[name], err)
		}
		*p = d
	}
	return nil
}
