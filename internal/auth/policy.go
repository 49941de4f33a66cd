package auth

import (
	"github.com/MikeMC777/entregas-ecom/internal/apperr"
	"github.com/MikeMC777/entregas-ecom/internal/lifecycle"
)

type Action string

const (
	ActionCheckout         Action = "order:checkout"
	ActionListOrders       Action = "order:list"
	ActionViewOrder        Action = "order:view"
	ActionSetStatus        Action = "order:set-status"
	ActionCancel           Action = "order:cancel"
	ActionDeliveryQueue    Action = "delivery:queue"
	ActionAcceptDelivery   Action = "delivery:accept"
	ActionAdvanceDelivery  Action = "delivery:advance"
	ActionCompleteDelivery Action = "delivery:complete"
	ActionReportLocation   Action = "delivery:location"
	ActionSetAvailability  Action = "delivery:availability"
	ActionAssignDelivery   Action = "admin:assign"
	ActionSubscribe        Action = "realtime:subscribe"
)

var policy = map[Action][]Role{
	ActionCheckout:         {RoleCustomer},
	ActionListOrders:       {RoleCustomer, RoleSeller, RoleDelivery, RoleAdmin},
	ActionViewOrder:        {RoleCustomer, RoleSeller, RoleDelivery, RoleAdmin},
	ActionSetStatus:        {RoleSeller, RoleAdmin},
	ActionCancel:           {RoleCustomer, RoleSeller, RoleAdmin},
	ActionDeliveryQueue:    {RoleDelivery, RoleAdmin},
	ActionAcceptDelivery:   {RoleDelivery},
	ActionAdvanceDelivery:  {RoleDelivery},
	ActionCompleteDelivery: {RoleDelivery},
	ActionReportLocation:   {RoleDelivery},
	ActionSetAvailability:  {RoleDelivery},
	ActionAssignDelivery:   {RoleAdmin},
	ActionSubscribe:        {RoleCustomer, RoleSeller, RoleDelivery, RoleAdmin},
}

// statusTargets lists the customer-facing statuses each role may request
// directly. Delivery agents move status only through delivery updates, and
// nobody reaches delivered except through the OTP gate.
var statusTargets = map[Role][]lifecycle.Status{
	RoleSeller: {lifecycle.StatusConfirmed, lifecycle.StatusPreparing, lifecycle.StatusReady, lifecycle.StatusCancelled},
	RoleAdmin: {
		lifecycle.StatusConfirmed, lifecycle.StatusPreparing, lifecycle.StatusReady,
		lifecycle.StatusOutForDelivery, lifecycle.StatusCancelled,
	},
}

func Allowed(r Role, a Action) bool {
	for _, allowed := range policy[a] {
		if allowed == r {
			return true
		}
	}
	return false
}

func Authorize(id Identity, a Action) error {
	if id.UserID == "" {
		return apperr.Auth("unauthorized", "unauthenticated")
	}
	if !Allowed(id.Role, a) {
		return apperr.Forbidden("forbidden", "role "+string(id.Role)+" may not perform "+string(a))
	}
	return nil
}

func CanSetStatus(r Role, target lifecycle.Status) bool {
	for _, s := range statusTargets[r] {
		if s == target {
			return true
		}
	}
	return false
}
