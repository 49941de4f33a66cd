// Package dispatch coordinates who delivers an order: the unassigned pool,
// agent self-accept, admin push-assignment, delivery progress updates and
// the OTP gate that is the only way to mark an order delivered.
package dispatch

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/MikeMC777/entregas-ecom/internal/agent"
	"github.com/MikeMC777/entregas-ecom/internal/apperr"
	"github.com/MikeMC777/entregas-ecom/internal/auth"
	"github.com/MikeMC777/entregas-ecom/internal/lifecycle"
	"github.com/MikeMC777/entregas-ecom/internal/order"
	"github.com/MikeMC777/entregas-ecom/internal/realtime"
	"github.com/MikeMC777/entregas-ecom/internal/store"
)

// Orders is the slice of the order repository dispatch writes through.
// Every write is conditional on the state the caller observed.
type Orders interface {
	Get(ctx context.Context, id int64) (*order.Order, error)
	List(ctx context.Context, f order.Filter) ([]order.Order, error)
	Accept(ctx context.Context, id int64, agentID, otp string, at time.Time) error
	Assign(ctx context.Context, a order.Assignment) error
	AdvanceDelivery(ctx context.Context, ch order.DeliveryChange) error
	Complete(ctx context.Context, q store.Querier, id int64, agentID, otp string, at time.Time) error
}

type CartClearer interface {
	Clear(ctx context.Context, q store.Querier, userID string) (int64, error)
}

type Coordinator struct {
	db       store.DB
	orders   Orders
	agents   agent.Repository
	carts    CartClearer
	bus      realtime.Broadcaster
	attempts *AttemptLimiter
	now      func() time.Time
	newOTP   func() (string, error)
}

func NewCoordinator(db store.DB, orders Orders, agents agent.Repository, carts CartClearer,
	bus realtime.Broadcaster, attempts *AttemptLimiter) *Coordinator {
	if bus == nil {
		bus = realtime.Nop{}
	}
	return &Coordinator{
		db: db, orders: orders, agents: agents, carts: carts, bus: bus, attempts: attempts,
		now: time.Now, newOTP: NewOTP,
	}
}

// Queue lists what an agent can work on: orders assigned to them plus, for
// approved agents, the unassigned pool. Admins may look at one agent's queue
// or at the pool alone.
func (c *Coordinator) Queue(ctx context.Context, who auth.Identity, agentID string, limit, offset int) ([]order.Order, error) {
	if err := auth.Authorize(who, auth.ActionDeliveryQueue); err != nil {
		return nil, err
	}
	f := order.Filter{IncludePool: true, Limit: limit, Offset: offset}
	switch who.Role {
	case auth.RoleDelivery:
		if agentID != "" && agentID != who.UserID {
			return nil, apperr.Forbidden("forbidden", "agents may only read their own queue")
		}
		ag, err := c.agent(ctx, who.UserID)
		if err != nil {
			return nil, err
		}
		f.AgentID = ag.ID
		f.IncludePool = ag.Approved()
	case auth.RoleAdmin:
		f.AgentID = agentID
	}

	list, err := c.orders.List(ctx, f)
	if err != nil {
		return nil, apperr.Internal("could not list delivery queue", err)
	}
	for i := range list {
		list[i] = order.Present(who, list[i])
	}
	return list, nil
}

// Accept claims a pooled order for the calling agent. Of any number of
// concurrent accepts for one order exactly one succeeds; the rest get
// already_assigned.
func (c *Coordinator) Accept(ctx context.Context, who auth.Identity, orderID int64) (*order.Order, error) {
	if err := auth.Authorize(who, auth.ActionAcceptDelivery); err != nil {
		return nil, err
	}
	ag, err := c.agent(ctx, who.UserID)
	if err != nil {
		return nil, err
	}
	if !ag.Approved() {
		return nil, apperr.Forbidden("agent_not_approved", "delivery agent is not approved")
	}
	if !ag.IsAvailable {
		return nil, apperr.Conflict("agent_unavailable", "mark yourself available before accepting orders")
	}

	otp, err := c.newOTP()
	if err != nil {
		return nil, apperr.Internal("could not issue delivery code", err)
	}
	at := c.now().UTC()
	if err := c.orders.Accept(ctx, orderID, ag.ID, otp, at); err != nil {
		switch {
		case errors.Is(err, order.ErrConflict):
			log.Printf("[dispatch] accept lost order=%d agent=%s", orderID, ag.ID)
			return nil, apperr.Conflict("already_assigned", "order was accepted by another delivery agent")
		case errors.Is(err, order.ErrNotFound):
			return nil, apperr.NotFound("order_not_found", "order not found")
		}
		return nil, apperr.Internal("could not accept order", err)
	}
	c.attempts.Forget(orderID)
	log.Printf("[dispatch] accepted order=%d agent=%s", orderID, ag.ID)

	o := c.reload(ctx, orderID, func(o *order.Order) {
		o.DeliveryBoyID = &ag.ID
		o.DeliveryStatus = lifecycle.DeliveryAccepted
		o.DeliveryAcceptedAt = &at
	})
	c.assignmentEvents(o, "accepted", "", true)

	out := order.Present(who, *o)
	return &out, nil
}

// AdminAssign places agentID on an order that is still pending or merely
// accepted. A new code is issued on every assignment.
func (c *Coordinator) AdminAssign(ctx context.Context, who auth.Identity, orderID int64, agentID string) (*order.Order, error) {
	if err := auth.Authorize(who, auth.ActionAssignDelivery); err != nil {
		return nil, err
	}
	ag, err := c.agents.Get(ctx, agentID)
	if errors.Is(err, agent.ErrNotFound) {
		return nil, apperr.NotFound("agent_not_found", "delivery agent not found")
	}
	if err != nil {
		return nil, apperr.Internal("could not load delivery agent", err)
	}
	if !ag.Approved() {
		return nil, apperr.Conflict("agent_not_approved", "delivery agent is not approved")
	}

	o, err := c.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status.Terminal() {
		return nil, apperr.Conflict("order_closed", "order is already "+string(o.Status))
	}
	if o.DeliveryStatus != lifecycle.DeliveryPending && o.DeliveryStatus != lifecycle.DeliveryAccepted {
		return nil, apperr.Conflict("delivery_in_progress", "order is already "+string(o.DeliveryStatus))
	}
	if o.AssignedTo(ag.ID) {
		return o, nil
	}

	otp, err := c.newOTP()
	if err != nil {
		return nil, apperr.Internal("could not issue delivery code", err)
	}
	at := c.now().UTC()
	prev := ""
	if o.DeliveryBoyID != nil {
		prev = *o.DeliveryBoyID
	}
	wasPooled := o.Unassigned()
	err = c.orders.Assign(ctx, order.Assignment{
		OrderID: orderID, AgentID: ag.ID, OTP: otp,
		PrevAgent: o.DeliveryBoyID, PrevDelivery: o.DeliveryStatus, At: at,
	})
	if err != nil {
		switch {
		case errors.Is(err, order.ErrConflict):
			return nil, apperr.Conflict("assignment_changed", "order assignment changed concurrently, reload and retry")
		case errors.Is(err, order.ErrNotFound):
			return nil, apperr.NotFound("order_not_found", "order not found")
		}
		return nil, apperr.Internal("could not assign order", err)
	}
	c.attempts.Forget(orderID)
	log.Printf("[dispatch] assigned order=%d agent=%s prev=%q by=%s", orderID, ag.ID, prev, who.UserID)

	o.DeliveryBoyID = &ag.ID
	o.DeliveryStatus = lifecycle.DeliveryAccepted
	o.DeliveryOTP = &otp
	o.DeliveryAcceptedAt = &at
	o.UpdatedAt = at
	c.assignmentEvents(o, "assigned", prev, wasPooled)
	return o, nil
}

// UpdateStatus advances the calling agent's delivery one step. accepted claims
// a pooled order exactly as Accept does. delivered is refused here; it is
// reachable only through CompleteDelivery.
func (c *Coordinator) UpdateStatus(ctx context.Context, who auth.Identity, orderID int64, target string) (*order.Order, error) {
	if err := auth.Authorize(who, auth.ActionAdvanceDelivery); err != nil {
		return nil, err
	}
	to, err := lifecycle.ParseDeliveryStatus(target)
	if err != nil {
		return nil, apperr.Validation("unknown_status", "unknown delivery status "+target)
	}
	switch to {
	case lifecycle.DeliveryAccepted:
		return c.Accept(ctx, who, orderID)
	case lifecycle.DeliveryDelivered:
		return nil, apperr.Validation("otp_required", "use complete-delivery with the customer's code")
	case lifecycle.DeliveryPickedUp, lifecycle.DeliveryOutForDelivery:
	default:
		return nil, apperr.Validation("invalid_delivery_status", "agents may only set accepted, picked_up or out_for_delivery")
	}

	o, err := c.held(ctx, who, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status.Terminal() {
		return nil, apperr.Conflict("order_closed", "order is already "+string(o.Status))
	}
	if err := lifecycle.CheckDelivery(o.DeliveryStatus, to); err != nil {
		return nil, apperr.Conflict("invalid_transition", err.Error())
	}

	at := c.now().UTC()
	statusTo := lifecycle.Reconcile(o.Status, to)
	err = c.orders.AdvanceDelivery(ctx, order.DeliveryChange{
		OrderID: orderID, AgentID: who.UserID,
		From: o.DeliveryStatus, To: to,
		StatusFrom: o.Status, StatusTo: statusTo,
		At: at,
	})
	if err != nil {
		if errors.Is(err, order.ErrConflict) || errors.Is(err, order.ErrNotFound) {
			return nil, apperr.Conflict("status_changed", "order changed concurrently, reload and retry")
		}
		return nil, apperr.Internal("could not update delivery status", err)
	}
	log.Printf("[dispatch] delivery order=%d %s->%s status=%s agent=%s", orderID, o.DeliveryStatus, to, statusTo, who.UserID)

	o.DeliveryStatus = to
	o.Status = statusTo
	o.UpdatedAt = at
	switch to {
	case lifecycle.DeliveryPickedUp:
		o.DeliveryPickedAt = &at
	case lifecycle.DeliveryOutForDelivery:
		o.DeliveryOutAt = &at
	}
	c.statusEvents(o, "status")

	out := order.Present(who, *o)
	return &out, nil
}

// CompleteDelivery is the OTP gate. On a match the order, its delivery and
// any cash-on-delivery payment close together, the customer's cart is
// cleared and the agent's completed count goes up, all in one transaction.
func (c *Coordinator) CompleteDelivery(ctx context.Context, who auth.Identity, orderID int64, otp string) (*order.Order, error) {
	if err := auth.Authorize(who, auth.ActionCompleteDelivery); err != nil {
		return nil, err
	}
	o, err := c.held(ctx, who, orderID)
	if err != nil {
		return nil, err
	}
	if o.DeliveryStatus == lifecycle.DeliveryDelivered || o.Status == lifecycle.StatusDelivered {
		return nil, apperr.Conflict("already_delivered", "order already delivered")
	}
	if o.Status == lifecycle.StatusCancelled {
		return nil, apperr.Conflict("order_closed", "order was cancelled")
	}
	if !c.attempts.Allow(orderID) {
		log.Printf("[dispatch] otp throttled order=%d agent=%s", orderID, who.UserID)
		return nil, apperr.New(apperr.KindRateLimited, "too_many_attempts", "too many code attempts, wait a minute")
	}
	if err := lifecycle.CheckDelivery(o.DeliveryStatus, lifecycle.DeliveryDelivered); err != nil {
		return nil, apperr.Conflict("not_out_for_delivery", "order must be out for delivery before completion")
	}
	if !otpMatches(o.DeliveryOTP, otp) {
		log.Printf("[dispatch] otp mismatch order=%d agent=%s", orderID, who.UserID)
		return nil, apperr.Integrity("invalid_otp", "delivery code does not match")
	}

	at := c.now().UTC()
	err = store.InTx(ctx, c.db, func(tx pgx.Tx) error {
		if err := c.orders.Complete(ctx, tx, orderID, who.UserID, otp, at); err != nil {
			return err
		}
		if _, err := c.carts.Clear(ctx, tx, o.CustomerID); err != nil {
			return err
		}
		return c.agents.RecordCompletion(ctx, tx, who.UserID)
	})
	if err != nil {
		switch {
		case errors.Is(err, order.ErrConflict):
			// The code was spent or replaced between the read and the write.
			return nil, apperr.Conflict("already_delivered", "order already delivered or its code changed")
		case errors.Is(err, order.ErrNotFound):
			return nil, apperr.NotFound("order_not_found", "order not found")
		}
		log.Printf("[dispatch] complete order=%d err=%v", orderID, err)
		return nil, apperr.Internal("could not complete delivery", err)
	}
	c.attempts.Forget(orderID)
	log.Printf("[dispatch] delivered order=%d agent=%s", orderID, who.UserID)

	o.Status = lifecycle.StatusDelivered
	o.DeliveryStatus = lifecycle.DeliveryDelivered
	o.DeliveryOTP = nil
	o.DeliveryCompletedAt = &at
	o.ActualDeliveryTime = &at
	o.UpdatedAt = at
	if o.PaymentMethod == order.PaymentCOD {
		o.PaymentStatus = order.PaymentPaid
	}
	c.statusEvents(o, "delivered")
	return o, nil
}

// PingLocation records the agent's position. When orderID names an order the
// agent is carrying, the customer sees the position too.
func (c *Coordinator) PingLocation(ctx context.Context, who auth.Identity, orderID int64, lat, lng float64) error {
	if err := auth.Authorize(who, auth.ActionReportLocation); err != nil {
		return err
	}
	at := c.now().UTC()
	if err := c.agents.UpdateLocation(ctx, who.UserID, lat, lng, at); err != nil {
		if errors.Is(err, agent.ErrNotFound) {
			return apperr.Forbidden("agent_not_registered", "no delivery agent profile for caller")
		}
		return apperr.Internal("could not record location", err)
	}
	if orderID == 0 {
		return nil
	}

	o, err := c.orders.Get(ctx, orderID)
	if err != nil || !o.AssignedTo(who.UserID) || o.Status.Terminal() {
		return nil
	}
	c.bus.Broadcast(realtime.NewEvent(realtime.EventDeliveryLocation, o.ID, realtime.LocationPayload{
		OrderID: o.ID, Lat: lat, Lng: lng, Timestamp: at,
	}), realtime.Audience{CustomerID: o.CustomerID})
	return nil
}

func (c *Coordinator) SetAvailability(ctx context.Context, who auth.Identity, available bool) error {
	if err := auth.Authorize(who, auth.ActionSetAvailability); err != nil {
		return err
	}
	if err := c.agents.SetAvailability(ctx, who.UserID, available); err != nil {
		if errors.Is(err, agent.ErrNotFound) {
			return apperr.Forbidden("agent_not_registered", "no delivery agent profile for caller")
		}
		return apperr.Internal("could not update availability", err)
	}
	log.Printf("[dispatch] availability agent=%s available=%t", who.UserID, available)
	return nil
}

func (c *Coordinator) agent(ctx context.Context, id string) (*agent.Agent, error) {
	ag, err := c.agents.Get(ctx, id)
	if errors.Is(err, agent.ErrNotFound) {
		return nil, apperr.Forbidden("agent_not_registered", "no delivery agent profile for caller")
	}
	if err != nil {
		return nil, apperr.Internal("could not load delivery agent", err)
	}
	return ag, nil
}

func (c *Coordinator) load(ctx context.Context, id int64) (*order.Order, error) {
	o, err := c.orders.Get(ctx, id)
	if errors.Is(err, order.ErrNotFound) {
		return nil, apperr.NotFound("order_not_found", "order not found")
	}
	if err != nil {
		return nil, apperr.Internal("could not load order", err)
	}
	return o, nil
}

// held loads an order the caller must be carrying.
func (c *Coordinator) held(ctx context.Context, who auth.Identity, id int64) (*order.Order, error) {
	o, err := c.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !o.AssignedTo(who.UserID) {
		if order.Visible(who, o) {
			return nil, apperr.Forbidden("not_assigned", "order is not assigned to you")
		}
		return nil, apperr.NotFound("order_not_found", "order not found")
	}
	return o, nil
}

// reload fetches the committed order for event addressing. If that read fails
// the write has still happened, so patch is applied to a bare order instead.
func (c *Coordinator) reload(ctx context.Context, id int64, patch func(*order.Order)) *order.Order {
	o, err := c.orders.Get(ctx, id)
	if err != nil {
		log.Printf("[dispatch] reload order=%d err=%v", id, err)
		o = &order.Order{ID: id}
		patch(o)
	}
	return o
}

func (c *Coordinator) assignmentEvents(o *order.Order, reason, prevAgent string, wasPooled bool) {
	aud := o.Audience()
	c.bus.Broadcast(realtime.NewEvent(realtime.EventOrdersChanged, o.ID, realtime.OrdersChangedPayload{
		Reason: reason, OrderID: o.ID, DeliveryBoyID: aud.AgentID, DeliveryStatus: string(o.DeliveryStatus),
	}), realtime.Audience{AgentID: aud.AgentID, Pool: wasPooled})
	if prevAgent != "" && prevAgent != aud.AgentID {
		c.bus.Broadcast(realtime.NewEvent(realtime.EventOrdersChanged, o.ID, realtime.OrdersChangedPayload{
			Reason: "reassigned", OrderID: o.ID, DeliveryBoyID: aud.AgentID, DeliveryStatus: string(o.DeliveryStatus),
		}), realtime.Audience{AgentID: prevAgent})
	}
	c.statusEvents(o, "")
}

func (c *Coordinator) statusEvents(o *order.Order, agentReason string) {
	aud := o.Audience()
	c.bus.Broadcast(realtime.NewEvent(realtime.EventStatusUpdated, o.ID, realtime.StatusUpdatedPayload{
		OrderID: o.ID, NewStatus: string(o.Status), DeliveryStatus: string(o.DeliveryStatus),
	}), aud)
	if agentReason != "" && aud.AgentID != "" {
		c.bus.Broadcast(realtime.NewEvent(realtime.EventOrdersChanged, o.ID, realtime.OrdersChangedPayload{
			Reason: agentReason, OrderID: o.ID, DeliveryBoyID: aud.AgentID, DeliveryStatus: string(o.DeliveryStatus),
		}), realtime.Audience{AgentID: aud.AgentID})
	}
}
