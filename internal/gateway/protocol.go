package gateway

import (
	"encoding/json"

	"github.com/soyeahso/concierge/internal/agent"
	"github.com/soyeahso/concierge/internal/domain"
)

// ProtocolVersion is the WebSocket protocol version spoken by this server.
const ProtocolVersion = 1

// Frame types for the WebSocket protocol.
const (
	FrameTypeRequest  = "req"
	FrameTypeResponse = "res"
	FrameTypeEvent    = "event"
)

// RPC methods available over the WebSocket.
const (
	MethodConnect         = "connect"
	MethodHealth          = "health"
	MethodTurn            = "turn"
	MethodReservationList = "reservations.list"
	MethodReservationGet  = "reservations.get"
	MethodSessionGet      = "session.get"
	MethodChannelsStatus  = "channels.status"
)

// Frame is the envelope for every WebSocket message. Type discriminates
// between request, response and event frames.
type Frame struct {
	Type string `json:"type"`

	// Request fields
	ID     string          `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`

	// Response fields
	OK      *bool           `json:"ok,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`

	// Event fields
	Event string `json:"event,omitempty"`
	Seq   int64  `json:"seq,omitempty"`

	Error *ErrorShape `json:"error,omitempty"`
}

// ErrorShape is the error format shared by response frames and HTTP errors.
type ErrorShape struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	Retryable    bool   `json:"retryable,omitempty"`
	RetryAfterMs int64  `json:"retryAfterMs,omitempty"`
}

// ConnectParams are sent by the client in the initial "connect" request.
// A non-empty UserID binds the connection to one guest: turns run as that
// guest and only that guest's reservations and events are visible.
// Without it the connection is an operator console that sees everything.
type ConnectParams struct {
	Client ClientInfo   `json:"client"`
	Auth   *ConnectAuth `json:"auth,omitempty"`
	UserID string       `json:"userId,omitempty"`
}

// Connection scopes reported in HelloOK.
const (
	ScopeGuest    = "guest"
	ScopeOperator = "operator"
)

// ClientInfo identifies the connecting client.
type ClientInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName,omitempty"`
	Version     string `json:"version,omitempty"`
}

// ConnectAuth carries credentials in the connect request.
type ConnectAuth struct {
	Token    string `json:"token,omitempty"`
	Password string `json:"password,omitempty"`
}

// HelloOK is the server's response payload after successful authentication.
type HelloOK struct {
	Protocol int        `json:"protocol"`
	Scope    string     `json:"scope"`
	UserID   string     `json:"userId,omitempty"`
	Server   ServerInfo `json:"server"`
	Features Features   `json:"features"`
}

// ServerInfo identifies the gateway server.
type ServerInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit,omitempty"`
	Hotel   string `json:"hotel"`
	ConnID  string `json:"connId"`
}

// Features advertises available RPC methods and events.
type Features struct {
	Methods []string `json:"methods"`
	Events  []string `json:"events"`
}

// TurnRequest is the body of POST /v1/turns and the params of the "turn"
// method. AccessToken is the guest's credential for outbound notification.
type TurnRequest struct {
	UserID      string `json:"userId"`
	Message     string `json:"message"`
	AccessToken string `json:"accessToken,omitempty"`
}

// TurnResponse is the reply to a turn.
type TurnResponse struct {
	TurnID      string              `json:"turnId"`
	Reply       string              `json:"reply"`
	Intent      domain.Intent       `json:"intent,omitempty"`
	Status      string              `json:"status"`
	Completed   bool                `json:"completed,omitempty"`
	Reservation *domain.Reservation `json:"reservation,omitempty"`
	DurationMs  int64               `json:"durationMs"`
}

func newTurnResponse(res agent.Result) TurnResponse {
	return TurnResponse{
		TurnID:      res.TurnID,
		Reply:       res.Reply,
		Intent:      res.Intent,
		Status:      string(res.Status),
		Completed:   res.Completed,
		Reservation: res.Reservation,
		DurationMs:  res.Duration.Milliseconds(),
	}
}

// IDParams selects a reservation or a session.
type IDParams struct {
	ID     int    `json:"id,omitempty"`
	UserID string `json:"userId,omitempty"`
}

// NewRequest creates a request frame.
func NewRequest(id, method string, params any) (Frame, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return Frame{}, err
	}
	return Frame{
		Type:   FrameTypeRequest,
		ID:     id,
		Method: method,
		Params: raw,
	}, nil
}

// NewResponse creates a success response frame.
func NewResponse(id string, payload any) (Frame, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, err
	}
	ok := true
	return Frame{
		Type:    FrameTypeResponse,
		ID:      id,
		OK:      &ok,
		Payload: raw,
	}, nil
}

// NewErrorResponse creates an error response frame.
func NewErrorResponse(id string, errShape ErrorShape) Frame {
	ok := false
	return Frame{
		Type:  FrameTypeResponse,
		ID:    id,
		OK:    &ok,
		Error: &errShape,
	}
}

// NewEvent creates an event frame.
func NewEvent(event string, payload any, seq int64) (Frame, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{
		Type:    FrameTypeEvent,
		Event:   event,
		Payload: raw,
		Seq:     seq,
	}, nil
}
