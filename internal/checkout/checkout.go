// Package checkout turns a cart, or a single buy-now line, into an order.
// Prices come from the catalog inside the same transaction that reserves
// stock, writes the order and clears the cart; client-sent prices are never
// read.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/MikeMC777/entregas-ecom/internal/apperr"
	"github.com/MikeMC777/entregas-ecom/internal/auth"
	"github.com/MikeMC777/entregas-ecom/internal/cart"
	"github.com/MikeMC777/entregas-ecom/internal/lifecycle"
	"github.com/MikeMC777/entregas-ecom/internal/order"
	"github.com/MikeMC777/entregas-ecom/internal/product"
	"github.com/MikeMC777/entregas-ecom/internal/realtime"
	"github.com/MikeMC777/entregas-ecom/internal/store"
)

// Policy prices delivery. An order ships free only when its subtotal is
// strictly above FreeAbove.
type Policy struct {
	Fee       decimal.Decimal
	FreeAbove decimal.Decimal
}

func (p Policy) DeliveryCharge(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.GreaterThan(p.FreeAbove) {
		return decimal.Zero
	}
	return p.Fee
}

type OrderWriter interface {
	Insert(ctx context.Context, q store.Querier, o *order.Order) error
}

type Service struct {
	db      store.DB
	carts   cart.Repository
	catalog product.Repository
	orders  OrderWriter
	policy  Policy
	bus     realtime.Broadcaster
	now     func() time.Time
}

func NewService(db store.DB, carts cart.Repository, catalog product.Repository, orders OrderWriter, policy Policy, bus realtime.Broadcaster) *Service {
	if bus == nil {
		bus = realtime.Nop{}
	}
	return &Service{db: db, carts: carts, catalog: catalog, orders: orders, policy: policy, bus: bus, now: time.Now}
}

// FromCart places an order for everything in the caller's cart and empties
// the cart in the same transaction.
func (s *Service) FromCart(ctx context.Context, who auth.Identity, req order.CreateOrderRequest) (*order.Order, error) {
	return s.place(ctx, who, req, true, func(q store.Querier) ([]cart.Line, error) {
		return s.carts.Lines(ctx, q, who.UserID)
	})
}

// BuyNow places a single-line order. The cart is left alone.
func (s *Service) BuyNow(ctx context.Context, who auth.Identity, req order.BuyNowRequest) (*order.Order, error) {
	line := cart.Line{ProductID: req.ProductID, Quantity: req.Quantity}
	return s.place(ctx, who, req.CreateOrderRequest, false, func(store.Querier) ([]cart.Line, error) {
		return []cart.Line{line}, nil
	})
}

func (s *Service) place(ctx context.Context, who auth.Identity, req order.CreateOrderRequest, fromCart bool,
	readLines func(q store.Querier) ([]cart.Line, error)) (*order.Order, error) {
	if err := auth.Authorize(who, auth.ActionCheckout); err != nil {
		return nil, err
	}

	at := s.now().UTC()
	var placed *order.Order
	err := store.InTx(ctx, s.db, func(tx pgx.Tx) error {
		lines, err := readLines(tx)
		if err != nil {
			return fmt.Errorf("read lines: %w", err)
		}
		lines = merge(lines)
		if len(lines) == 0 {
			return apperr.Validation("empty_cart", "cart is empty")
		}

		o, err := s.build(ctx, tx, who, req, lines, at)
		if err != nil {
			return err
		}
		for _, it := range o.Items {
			if err := s.catalog.Reserve(ctx, tx, it.ProductID, it.Quantity); err != nil {
				if errors.Is(err, product.ErrInsufficientStock) {
					return apperr.Conflict("out_of_stock", "not enough stock for "+it.ProductName)
				}
				return fmt.Errorf("reserve %s: %w", it.ProductID, err)
			}
		}
		if err := s.orders.Insert(ctx, tx, o); err != nil {
			return err
		}
		if fromCart {
			if _, err := s.carts.Remove(ctx, tx, who.UserID, productIDs(lines)); err != nil {
				return fmt.Errorf("clear cart: %w", err)
			}
		}
		placed = o
		return nil
	})
	if err != nil {
		var ae *apperr.Error
		if errors.As(err, &ae) {
			return nil, ae
		}
		log.Printf("[checkout] customer=%s err=%v", who.UserID, err)
		return nil, apperr.Internal("could not place order", err)
	}

	log.Printf("[checkout] placed order=%d number=%s customer=%s total=%s items=%d",
		placed.ID, placed.OrderNumber, placed.CustomerID, placed.Total.StringFixed(2), len(placed.Items))
	s.announce(placed)
	return placed, nil
}

func (s *Service) build(ctx context.Context, q store.Querier, who auth.Identity, req order.CreateOrderRequest,
	lines []cart.Line, at time.Time) (*order.Order, error) {
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	catalog, err := s.catalog.Lookup(ctx, q, ids)
	if err != nil {
		return nil, fmt.Errorf("lookup products: %w", err)
	}

	o := &order.Order{
		OrderNumber:          NewOrderNumber(at),
		CustomerID:           who.UserID,
		PaymentMethod:        req.PaymentMethod,
		PaymentStatus:        order.PaymentPending,
		Status:               lifecycle.StatusPlaced,
		DeliveryStatus:       lifecycle.DeliveryPending,
		DeliveryInstructions: strings.TrimSpace(req.DeliveryInstructions),
		Address:              req.DeliveryAddress.Address(),
		CreatedAt:            at,
		UpdatedAt:            at,
	}
	subtotal := decimal.Zero
	for _, l := range lines {
		if l.Quantity <= 0 {
			return nil, apperr.Validation("invalid_quantity", "quantity must be positive for "+l.ProductID)
		}
		p, ok := catalog[l.ProductID]
		if !ok {
			return nil, apperr.Validation("product_not_found", "product "+l.ProductID+" is not available")
		}
		line := p.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
		o.Items = append(o.Items, order.Item{
			ProductID:   p.ID,
			SellerID:    p.SellerID,
			ProductName: p.Name,
			Quantity:    l.Quantity,
			UnitPrice:   p.Price,
			TotalPrice:  line,
		})
		subtotal = subtotal.Add(line)
	}

	o.Subtotal = subtotal
	o.DeliveryCharge = s.policy.DeliveryCharge(subtotal)
	o.Discount = decimal.Zero
	o.Total = o.Subtotal.Add(o.DeliveryCharge).Sub(o.Discount)
	if !o.Consistent() {
		return nil, apperr.Internal("order totals do not add up", nil)
	}
	return o, nil
}

func (s *Service) announce(o *order.Order) {
	s.bus.Broadcast(realtime.NewEvent(realtime.EventNewOrder, o.ID, realtime.NewOrderPayload{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		CustomerID:  o.CustomerID,
		Total:       o.Total.StringFixed(2),
		ItemCount:   len(o.Items),
		SellerIDs:   o.SellerIDs(),
	}), realtime.Audience{CustomerID: o.CustomerID, SellerIDs: o.SellerIDs()})

	s.bus.Broadcast(realtime.NewEvent(realtime.EventOrdersChanged, o.ID, realtime.OrdersChangedPayload{
		Reason: "new", OrderID: o.ID, DeliveryStatus: string(o.DeliveryStatus),
	}), realtime.Audience{Pool: true})
}

// NewOrderNumber builds a human-facing order number such as
// ORD-20260115-9F3A0C1B.
func NewOrderNumber(at time.Time) string {
	return "ORD-" + at.UTC().Format("20060102") + "-" + strings.ToUpper(uuid.NewString()[:8])
}

// merge folds repeated products into one line, keeping first-seen order.
func merge(lines []cart.Line) []cart.Line {
	idx := make(map[string]int, len(lines))
	out := make([]cart.Line, 0, len(lines))
	for _, l := range lines {
		if i, ok := idx[l.ProductID]; ok {
			out[i].Quantity += l.Quantity
			continue
		}
		idx[l.ProductID] = len(out)
		out = append(out, l)
	}
	return out
}

func productIDs(lines []cart.Line) []string {
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	return ids
}
