package realtime

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/MikeMC777/entregas-ecom/internal/auth"
)

const (
	registerWait = 10 * time.Second
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10
	maxInbound   = 4096

	registerEvent = "register-client"
)

type TokenVerifier interface {
	Verify(token string) (auth.Identity, error)
}

type inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type RegisterPayload struct {
	Role   string `json:"role"`
	UserID string `json:"userId"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Server struct {
	hub      *Hub
	verifier TokenVerifier
	buffer   int
	upgrader websocket.Upgrader
}

func NewServer(hub *Hub, verifier TokenVerifier, buffer int) *Server {
	return &Server{
		hub:      hub,
		verifier: verifier,
		buffer:   buffer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browsers connect from the storefront and dashboard origins; the
			// token is what authenticates the socket.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handle upgrades an authenticated request. The token comes from the
// Authorization header or the token query parameter, since browsers cannot
// set headers on a websocket handshake.
func (s *Server) Handle(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token, _ = auth.BearerToken(c.GetHeader("Authorization"))
	}
	id, err := s.verifier.Verify(token)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "valid token required"})
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[realtime] upgrade user=%s err=%v", id.UserID, err)
		return
	}
	go s.serve(conn, id)
}

func (s *Server) serve(conn *websocket.Conn, id auth.Identity) {
	conn.SetReadLimit(maxInbound)
	_ = conn.SetReadDeadline(time.Now().Add(registerWait))

	var msg inbound
	if err := conn.ReadJSON(&msg); err != nil {
		log.Printf("[realtime] no registration user=%s err=%v", id.UserID, err)
		_ = conn.Close()
		return
	}
	if msg.Event != registerEvent {
		s.reject(conn, "registration_required", "first message must be register-client")
		return
	}
	var reg RegisterPayload
	if err := json.Unmarshal(msg.Data, &reg); err != nil {
		s.reject(conn, "invalid_registration", "malformed register-client payload")
		return
	}
	if reg.Role != string(id.Role) || reg.UserID != id.UserID {
		log.Printf("[realtime] identity mismatch token=%s:%s claimed=%s:%s", id.Role, id.UserID, reg.Role, reg.UserID)
		s.reject(conn, "identity_mismatch", "registration does not match token")
		return
	}

	client := NewClient(string(id.Role), id.UserID, s.buffer)
	rooms := RoomsFor(id)
	s.hub.Join(client, rooms...)
	client.offer(mustJSON(NewEvent(EventRegistered, 0, gin.H{"rooms": rooms})))
	log.Printf("[realtime] registered user=%s role=%s rooms=%v", id.UserID, id.Role, rooms)

	go writePump(conn, client)
	readPump(conn)
	s.hub.Leave(client)
}

func (s *Server) reject(conn *websocket.Conn, code, message string) {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = conn.WriteJSON(NewEvent(EventError, 0, errorPayload{Code: code, Message: message}))
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, code))
	_ = conn.Close()
}

// readPump drains the connection until it fails. Clients have nothing to say
// after registering; reading keeps pongs and close frames flowing.
func readPump(conn *websocket.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writePump(conn *websocket.Conn, c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.Messages():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func mustJSON(v interface{}) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
