// Package realtime pushes order lifecycle events to connected dashboards.
// Every connection is placed into rooms derived from its verified identity
// and events are addressed to rooms, never to individual sockets.
package realtime

import (
	"sync"
	"time"

	"github.com/MikeMC777/entregas-ecom/internal/auth"
)

const (
	EventNewOrder         = "new-order"
	EventOrdersChanged    = "delivery:orders-changed"
	EventStatusUpdated    = "order:status-updated"
	EventDeliveryLocation = "order:delivery_location"

	EventRegistered = "registered"
	EventError      = "error"
)

const (
	RoomAdmins = "admins"
	RoomPool   = "delivery:pool"
)

type Event struct {
	Name    string      `json:"event"`
	OrderID int64       `json:"orderId,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	At      time.Time   `json:"at"`
}

func NewEvent(name string, orderID int64, data interface{}) Event {
	return Event{Name: name, OrderID: orderID, Data: data, At: time.Now().UTC()}
}

type NewOrderPayload struct {
	OrderID     int64    `json:"orderId"`
	OrderNumber string   `json:"orderNumber"`
	CustomerID  string   `json:"customerId"`
	Total       string   `json:"total"`
	ItemCount   int      `json:"itemCount"`
	SellerIDs   []string `json:"sellerIds"`
}

type OrdersChangedPayload struct {
	Reason         string `json:"reason"`
	OrderID        int64  `json:"orderId"`
	DeliveryBoyID  string `json:"deliveryBoyId,omitempty"`
	DeliveryStatus string `json:"deliveryStatus"`
}

type StatusUpdatedPayload struct {
	OrderID        int64  `json:"orderId"`
	NewStatus      string `json:"newStatus"`
	DeliveryStatus string `json:"deliveryStatus"`
}

type LocationPayload struct {
	OrderID   int64     `json:"orderId"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Timestamp time.Time `json:"timestamp"`
}

// Audience names the parties of one order. The admins room is always
// included.
type Audience struct {
	CustomerID string
	SellerIDs  []string
	AgentID    string
	Pool       bool
}

func Room(role auth.Role, userID string) string {
	return string(role) + ":" + userID
}

func (a Audience) Rooms() []string {
	rooms := []string{RoomAdmins}
	if a.CustomerID != "" {
		rooms = append(rooms, Room(auth.RoleCustomer, a.CustomerID))
	}
	for _, s := range a.SellerIDs {
		if s != "" {
			rooms = append(rooms, Room(auth.RoleSeller, s))
		}
	}
	if a.AgentID != "" {
		rooms = append(rooms, Room(auth.RoleDelivery, a.AgentID))
	}
	if a.Pool {
		rooms = append(rooms, RoomPool)
	}
	return rooms
}

// RoomsFor lists the rooms a verified identity joins on registration.
func RoomsFor(id auth.Identity) []string {
	rooms := []string{Room(id.Role, id.UserID)}
	switch id.Role {
	case auth.RoleDelivery:
		rooms = append(rooms, RoomPool)
	case auth.RoleAdmin:
		rooms = append(rooms, RoomAdmins)
	}
	return rooms
}

// Broadcaster is handed events after the state change they describe has
// committed. Implementations must not block the caller.
type Broadcaster interface {
	Broadcast(ev Event, to Audience)
}

type Nop struct{}

func (Nop) Broadcast(Event, Audience) {}

// Fanout hands every event to each sink in order.
type Fanout []Broadcaster

func (f Fanout) Broadcast(ev Event, to Audience) {
	for _, b := range f {
		if b != nil {
			b.Broadcast(ev, to)
		}
	}
}

type Delivery struct {
	Event    Event
	Audience Audience
}

// Recorder keeps every event it sees. Used by tests across packages.
type Recorder struct {
	mu  sync.Mutex
	got []Delivery
}

func (r *Recorder) Broadcast(ev Event, to Audience) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, Delivery{Event: ev, Audience: to})
}

func (r *Recorder) All() []Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Delivery, len(r.got))
	copy(out, r.got)
	return out
}

func (r *Recorder) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.got))
	for _, d := range r.got {
		out = append(out, d.Event.Name)
	}
	return out
}
