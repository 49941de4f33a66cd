// Package lifecycle holds the one transition table for an order's customer-facing
// status and its delivery status. Every path that changes either field asks
// this package first.
package lifecycle

import (
	"errors"
	"fmt"
)

type Status string

const (
	StatusPlaced         Status = "placed"
	StatusConfirmed      Status = "confirmed"
	StatusPreparing      Status = "preparing"
	StatusReady          Status = "ready"
	StatusOutForDelivery Status = "out_for_delivery"
	StatusDelivered      Status = "delivered"
	StatusCancelled      Status = "cancelled"
)

type DeliveryStatus string

const (
	DeliveryPending        DeliveryStatus = "pending"
	DeliveryAccepted       DeliveryStatus = "accepted"
	DeliveryPickedUp       DeliveryStatus = "picked_up"
	DeliveryOutForDelivery DeliveryStatus = "out_for_delivery"
	DeliveryDelivered      DeliveryStatus = "delivered"
	DeliveryCancelled      DeliveryStatus = "cancelled"
)

var (
	ErrUnknownStatus     = errors.New("unknown status")
	ErrIllegalTransition = errors.New("illegal transition")
)

// statusChain is the forward path; cancellation is added to every non-terminal state.
var statusChain = []Status{
	StatusPlaced, StatusConfirmed, StatusPreparing, StatusReady, StatusOutForDelivery, StatusDelivered,
}

var deliveryChain = []DeliveryStatus{
	DeliveryPending, DeliveryAccepted, DeliveryPickedUp, DeliveryOutForDelivery, DeliveryDelivered,
}

var (
	statusNext   = buildNext(statusChain, StatusCancelled)
	deliveryNext = buildNext(deliveryChain, DeliveryCancelled)
)

func buildNext[S ~string](chain []S, cancelled S) map[S]map[S]struct{} {
	next := make(map[S]map[S]struct{}, len(chain))
	for i := 0; i < len(chain)-1; i++ {
		next[chain[i]] = map[S]struct{}{chain[i+1]: {}, cancelled: {}}
	}
	return next
}

// TransitionError names the rejected edge.
type TransitionError struct {
	Field string
	From  string
	To    string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s cannot move from %q to %q", e.Field, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrIllegalTransition }

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if st == StatusCancelled || indexOf(statusChain, st) >= 0 {
		return st, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
}

func ParseDeliveryStatus(s string) (DeliveryStatus, error) {
	ds := DeliveryStatus(s)
	if ds == DeliveryCancelled || indexOf(deliveryChain, ds) >= 0 {
		return ds, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
}

func (s Status) Terminal() bool { return s == StatusDelivered || s == StatusCancelled }

func (d DeliveryStatus) Terminal() bool { return d == DeliveryDelivered || d == DeliveryCancelled }

// CheckStatus returns a *TransitionError when to is not an allowed next state of from.
func CheckStatus(from, to Status) error {
	if _, ok := statusNext[from][to]; ok {
		return nil
	}
	return &TransitionError{Field: "status", From: string(from), To: string(to)}
}

func CheckDelivery(from, to DeliveryStatus) error {
	if _, ok := deliveryNext[from][to]; ok {
		return nil
	}
	return &TransitionError{Field: "deliveryStatus", From: string(from), To: string(to)}
}

// Reachable reports whether to lies ahead of from on the forward status path.
// Cancellation is never reachable this way.
func Reachable(from, to Status) bool {
	i, j := indexOf(statusChain, from), indexOf(statusChain, to)
	return i >= 0 && j > i
}

// statusFor maps a delivery status to the customer-facing status it implies.
var statusFor = map[DeliveryStatus]Status{
	DeliveryPickedUp:       StatusOutForDelivery,
	DeliveryOutForDelivery: StatusOutForDelivery,
	DeliveryDelivered:      StatusDelivered,
	DeliveryCancelled:      StatusCancelled,
}

// Reconcile returns the status an order should hold once its delivery status
// becomes d. A status already at or past the implied one is left alone; a
// lagging status is fast-forwarded along the forward path, since a parcel in
// the agent's hands is necessarily ready.
func Reconcile(current Status, d DeliveryStatus) Status {
	target, ok := statusFor[d]
	if !ok || current.Terminal() {
		return current
	}
	if target == StatusCancelled {
		return target
	}
	if Reachable(current, target) {
		return target
	}
	return current
}

func indexOf[S comparable](chain []S, v S) int {
	for i, s := range chain {
		if s == v {
			return i
		}
	}
	return -1
}
