package order

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/MikeMC777/entregas-ecom/internal/apperr"
	"github.com/MikeMC777/entregas-ecom/internal/auth"
	"github.com/MikeMC777/entregas-ecom/internal/lifecycle"
	"github.com/MikeMC777/entregas-ecom/internal/product"
	"github.com/MikeMC777/entregas-ecom/internal/realtime"
	"github.com/MikeMC777/entregas-ecom/internal/store"
)

// Service serves order reads and the seller/admin/customer status changes.
// Delivery progress lives in the dispatch package.
type Service struct {
	db       store.DB
	orders   Repository
	products product.Repository
	bus      realtime.Broadcaster
	now      func() time.Time
}

func NewService(db store.DB, orders Repository, products product.Repository, bus realtime.Broadcaster) *Service {
	if bus == nil {
		bus = realtime.Nop{}
	}
	return &Service{db: db, orders: orders, products: products, bus: bus, now: time.Now}
}

// Audience is everyone with a stake in o.
func (o *Order) Audience() realtime.Audience {
	a := realtime.Audience{CustomerID: o.CustomerID, SellerIDs: o.SellerIDs()}
	if o.DeliveryBoyID != nil {
		a.AgentID = *o.DeliveryBoyID
	}
	return a
}

// Visible reports whether who may see o at all.
func Visible(who auth.Identity, o *Order) bool {
	switch who.Role {
	case auth.RoleAdmin:
		return true
	case auth.RoleCustomer:
		return o.CustomerID == who.UserID
	case auth.RoleSeller:
		return o.HasSeller(who.UserID)
	case auth.RoleDelivery:
		return o.AssignedTo(who.UserID) || o.Unassigned()
	}
	return false
}

// Present returns o as who may see it. Only the ordering customer and admins
// get the delivery code.
func Present(who auth.Identity, o Order) Order {
	if who.Role == auth.RoleAdmin || (who.Role == auth.RoleCustomer && o.CustomerID == who.UserID) {
		return o
	}
	return o.WithoutOTP()
}

func (s *Service) List(ctx context.Context, who auth.Identity, limit, offset int) ([]Order, error) {
	if err := auth.Authorize(who, auth.ActionListOrders); err != nil {
		return nil, err
	}
	f := Filter{Limit: limit, Offset: offset}
	switch who.Role {
	case auth.RoleCustomer:
		f.CustomerID = who.UserID
	case auth.RoleSeller:
		f.SellerID = who.UserID
	case auth.RoleDelivery:
		f.AgentID = who.UserID
	}

	list, err := s.orders.List(ctx, f)
	if err != nil {
		return nil, apperr.Internal("could not list orders", err)
	}
	out := make([]Order, 0, len(list))
	for _, o := range list {
		out = append(out, Present(who, o))
	}
	return out, nil
}

// Get hides orders the caller may not see behind the same not-found answer
// as missing ones.
func (s *Service) Get(ctx context.Context, who auth.Identity, id int64) (*Order, error) {
	if err := auth.Authorize(who, auth.ActionViewOrder); err != nil {
		return nil, err
	}
	o, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !Visible(who, o) {
		return nil, apperr.NotFound("order_not_found", "order not found")
	}
	out := Present(who, *o)
	return &out, nil
}

func (s *Service) UpdateStatus(ctx context.Context, who auth.Identity, id int64, target string) (*Order, error) {
	to, err := lifecycle.ParseStatus(target)
	if err != nil {
		return nil, apperr.Validation("unknown_status", "unknown status "+target)
	}
	if to == lifecycle.StatusCancelled {
		return s.Cancel(ctx, who, id, "")
	}
	if err := auth.Authorize(who, auth.ActionSetStatus); err != nil {
		return nil, err
	}
	if !auth.CanSetStatus(who.Role, to) {
		return nil, apperr.Forbidden("status_not_allowed", "role "+string(who.Role)+" may not set "+string(to))
	}

	o, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !Visible(who, o) {
		return nil, apperr.NotFound("order_not_found", "order not found")
	}
	if err := lifecycle.CheckStatus(o.Status, to); err != nil {
		return nil, apperr.Conflict("invalid_transition", err.Error())
	}

	at := s.now().UTC()
	if err := s.orders.SetStatus(ctx, s.db, id, o.Status, to, at); err != nil {
		return nil, s.writeErr("update status", id, err)
	}
	log.Printf("[order] status id=%d %s->%s by=%s:%s", id, o.Status, to, who.Role, who.UserID)

	o.Status = to
	o.UpdatedAt = at
	s.bus.Broadcast(realtime.NewEvent(realtime.EventStatusUpdated, o.ID, realtime.StatusUpdatedPayload{
		OrderID: o.ID, NewStatus: string(o.Status), DeliveryStatus: string(o.DeliveryStatus),
	}), o.Audience())

	out := Present(who, *o)
	return &out, nil
}

// Cancel stops an order and puts its stock back in one transaction.
// Customers may only cancel their own orders before preparation starts.
func (s *Service) Cancel(ctx context.Context, who auth.Identity, id int64, reason string) (*Order, error) {
	if err := auth.Authorize(who, auth.ActionCancel); err != nil {
		return nil, err
	}
	o, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !Visible(who, o) {
		return nil, apperr.NotFound("order_not_found", "order not found")
	}
	switch o.Status {
	case lifecycle.StatusDelivered:
		return nil, apperr.Conflict("already_delivered", "order already delivered")
	case lifecycle.StatusCancelled:
		return nil, apperr.Conflict("already_cancelled", "order already cancelled")
	}
	if who.Role == auth.RoleCustomer && o.Status != lifecycle.StatusPlaced && o.Status != lifecycle.StatusConfirmed {
		return nil, apperr.Conflict("cancel_window_closed", "order can no longer be cancelled")
	}
	if err := lifecycle.CheckStatus(o.Status, lifecycle.StatusCancelled); err != nil {
		return nil, apperr.Conflict("invalid_transition", err.Error())
	}

	at := s.now().UTC()
	err = store.InTx(ctx, s.db, func(tx pgx.Tx) error {
		if err := s.orders.Cancel(ctx, tx, id, o.Status, at); err != nil {
			return err
		}
		for _, it := range o.Items {
			if err := s.products.Release(ctx, tx, it.ProductID, it.Quantity); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, s.writeErr("cancel", id, err)
	}
	log.Printf("[order] cancelled id=%d from=%s by=%s:%s reason=%q", id, o.Status, who.Role, who.UserID, reason)

	wasPooled := o.Unassigned()
	o.Status = lifecycle.StatusCancelled
	o.DeliveryStatus = lifecycle.DeliveryCancelled
	o.DeliveryOTP = nil
	o.CancelledAt = &at
	o.UpdatedAt = at

	aud := o.Audience()
	s.bus.Broadcast(realtime.NewEvent(realtime.EventStatusUpdated, o.ID, realtime.StatusUpdatedPayload{
		OrderID: o.ID, NewStatus: string(o.Status), DeliveryStatus: string(o.DeliveryStatus),
	}), aud)
	if aud.AgentID != "" || wasPooled {
		s.bus.Broadcast(realtime.NewEvent(realtime.EventOrdersChanged, o.ID, realtime.OrdersChangedPayload{
			Reason: "cancelled", OrderID: o.ID, DeliveryBoyID: aud.AgentID, DeliveryStatus: string(o.DeliveryStatus),
		}), realtime.Audience{AgentID: aud.AgentID, Pool: wasPooled})
	}

	out := Present(who, *o)
	return &out, nil
}

func (s *Service) load(ctx context.Context, id int64) (*Order, error) {
	o, err := s.orders.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.NotFound("order_not_found", "order not found")
	}
	if err != nil {
		return nil, apperr.Internal("could not load order", err)
	}
	return o, nil
}

func (s *Service) writeErr(op string, id int64, err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return apperr.NotFound("order_not_found", "order not found")
	case errors.Is(err, ErrConflict):
		return apperr.Conflict("status_changed", "order changed concurrently, reload and retry")
	}
	log.Printf("[order] %s id=%d err=%v", op, id, err)
	return apperr.Internal("could not "+op+" order", err)
}
