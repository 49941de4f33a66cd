package realtime

import (
	"encoding/json"
	"log"
	"sync"
)

// Client is one registered connection. Sends never block: when the buffer
// is full the event is dropped for that client only.
type Client struct {
	Role   string
	UserID string

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func NewClient(role, userID string, buffer int) *Client {
	if buffer <= 0 {
		buffer = 1
	}
	return &Client{Role: role, UserID: userID, send: make(chan []byte, buffer)}
}

func (c *Client) offer(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Messages exposes the outbound queue to the connection writer.
func (c *Client) Messages() <-chan []byte { return c.send }

type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
	of    map[*Client][]string

	// emitMu keeps events in commit order per client.
	emitMu sync.Mutex
}

func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]map[*Client]struct{}),
		of:    make(map[*Client][]string),
	}
}

func (h *Hub) Join(c *Client, rooms ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, r := range rooms {
		members, ok := h.rooms[r]
		if !ok {
			members = make(map[*Client]struct{})
			h.rooms[r] = members
		}
		members[c] = struct{}{}
	}
	h.of[c] = append(h.of[c], rooms...)
}

// Leave removes c from every room and closes its queue.
func (h *Hub) Leave(c *Client) {
	h.mu.Lock()
	for _, r := range h.of[c] {
		if members, ok := h.rooms[r]; ok {
			delete(members, c)
			if len(members) == 0 {
				delete(h.rooms, r)
			}
		}
	}
	delete(h.of, c)
	h.mu.Unlock()
	c.close()
}

func (h *Hub) Occupants(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) Broadcast(ev Event, to Audience) {
	h.Emit(ev, to.Rooms()...)
}

// Emit delivers ev once to every client in any of rooms and reports how
// many clients accepted it.
func (h *Hub) Emit(ev Event, rooms ...string) int {
	msg, err := json.Marshal(ev)
	if err != nil {
		log.Printf("[realtime] marshal event=%s order=%d err=%v", ev.Name, ev.OrderID, err)
		return 0
	}

	h.emitMu.Lock()
	defer h.emitMu.Unlock()

	h.mu.RLock()
	targets := make(map[*Client]struct{})
	for _, r := range rooms {
		for c := range h.rooms[r] {
			targets[c] = struct{}{}
		}
	}
	h.mu.RUnlock()

	delivered := 0
	for c := range targets {
		if c.offer(msg) {
			delivered++
			continue
		}
		log.Printf("[realtime] drop event=%s order=%d client=%s:%s", ev.Name, ev.OrderID, c.Role, c.UserID)
	}
	return delivered
}
