package gateway

import (
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/soyeahso/concierge/internal/logging"
	"github.com/soyeahso/concierge/internal/metrics"
)

// ErrForeignUser is returned when a guest-bound connection names another user.
var ErrForeignUser = errors.New("connection is bound to a different user")

// Client is an authenticated WebSocket connection. UserID is set for
// guest-bound connections and empty for operator consoles.
type Client struct {
	ConnID      string
	Info        ClientInfo
	UserID      string
	Socket      *websocket.Conn
	AuthResult  AuthResult
	ConnectedAt time.Time

	turns atomic.Int64

	mu     sync.Mutex
	closed bool
}

// NewClient creates a Client for a newly authenticated WebSocket connection.
func NewClient(conn *websocket.Conn, info ClientInfo, authResult AuthResult, userID string) *Client {
	return &Client{
		ConnID:      uuid.NewString(),
		Info:        info,
		UserID:      userID,
		Socket:      conn,
		AuthResult:  authResult,
		ConnectedAt: time.Now(),
	}
}

// Scope is ScopeGuest for a guest-bound connection, else ScopeOperator.
func (c *Client) Scope() string {
	if c.UserID != "" {
		return ScopeGuest
	}
	return ScopeOperator
}

// resolveUser picks the user a request acts on. Operators must name one;
// guests act as themselves and may not name anyone else.
func (c *Client) resolveUser(requested string) (string, error) {
	if c.UserID == "" {
		return requested, nil
	}
	if requested != "" && requested != c.UserID {
		return "", ErrForeignUser
	}
	return c.UserID, nil
}

// sees reports whether data about userID may be shown on this connection.
func (c *Client) sees(userID string) bool {
	return c.UserID == "" || c.UserID == userID
}

// Turns is the number of turns run over this connection.
func (c *Client) Turns() int64 { return c.turns.Load() }

// Send writes a frame to the client. Safe for concurrent use.
func (c *Client) Send(frame Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClientClosed
	}
	c.Socket.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.Socket.WriteJSON(frame)
}

// SendEvent sends a named event with payload.
func (c *Client) SendEvent(event string, payload any, seq int64) error {
	f, err := NewEvent(event, payload, seq)
	if err != nil {
		return err
	}
	return c.Send(f)
}

// Respond sends a success response for the given request ID.
func (c *Client) Respond(reqID string, payload any) error {
	f, err := NewResponse(reqID, payload)
	if err != nil {
		return err
	}
	return c.Send(f)
}

// RespondError sends an error response for the given request ID.
func (c *Client) RespondError(reqID string, errShape ErrorShape) error {
	return c.Send(NewErrorResponse(reqID, errShape))
}

// ReadFrame reads the next frame from the WebSocket.
func (c *Client) ReadFrame() (Frame, error) {
	_, msg, err := c.Socket.ReadMessage()
	if err != nil {
		return Frame{}, err
	}
	var f Frame
	if err := json.Unmarshal(msg, &f); err != nil {
		return Frame{}, err
	}
	return f, nil
}

// Close closes the WebSocket connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.Socket.Close()
}

// ClientRegistry tracks connected WebSocket clients.
type ClientRegistry struct {
	mu      sync.RWMutex
	clients map[string]*Client // connID → Client
	metrics *metrics.Metrics
	log     *logging.Logger
}

// NewClientRegistry creates an empty client registry. m may be nil.
func NewClientRegistry(m *metrics.Metrics, log *logging.Logger) *ClientRegistry {
	return &ClientRegistry{
		clients: make(map[string]*Client),
		metrics: m,
		log:     log,
	}
}

// Add registers a connected client.
func (r *ClientRegistry) Add(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c.ConnID] = c
	r.metrics.WSOpened()
	r.log.Info().
		Str("connId", c.ConnID).
		Str("clientId", c.Info.ID).
		Str("scope", c.Scope()).
		Str("userId", c.UserID).
		Msg("client connected")
}

// Remove unregisters a client by connection ID.
func (r *ClientRegistry) Remove(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clients[connID]; !ok {
		return
	}
	delete(r.clients, connID)
	r.metrics.WSClosed()
	r.log.Info().Str("connId", connID).Msg("client disconnected")
}

// Get returns a client by connection ID.
func (r *ClientRegistry) Get(connID string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[connID]
	return c, ok
}

// Count returns the number of connected clients.
func (r *ClientRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Broadcast sends an event to every operator console and to the guest
// connections of the user named by data["userId"]. It returns how many
// clients it was delivered to.
func (r *ClientRegistry) Broadcast(event string, data map[string]any, seq int64) int {
	userID, _ := data["userId"].(string)

	r.mu.RLock()
	defer r.mu.RUnlock()
	delivered := 0
	for _, c := range r.clients {
		if !c.sees(userID) {
			continue
		}
		if err := c.SendEvent(event, data, seq); err != nil {
			r.log.Warn().Err(err).Str("connId", c.ConnID).Str("event", event).Msg("broadcast send failed")
			continue
		}
		delivered++
	}
	return delivered
}

// ForUser returns the guest connections bound to userID.
func (r *ClientRegistry) ForUser(userID string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Client
	for _, c := range r.clients {
		if c.UserID != "" && c.UserID == userID {
			out = append(out, c)
		}
	}
	return out
}

// CloseAll closes all connected clients.
func (r *ClientRegistry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, c := range r.clients {
		c.Close()
		delete(r.clients, id)
		r.metrics.WSClosed()
	}
}
