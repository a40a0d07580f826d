// Package hooks dispatches concierge lifecycle events to in-process
// handlers and configured shell commands.
package hooks

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/soyeahso/concierge/internal/logging"
)

// Event names for the hook system.
const (
	EventTurnReceived           = "turn_received"
	EventReplySending           = "reply_sending"
	EventFlowStarted            = "flow_started"
	EventBookingCompleted       = "booking_completed"
	EventReservationRescheduled = "reservation_rescheduled"
	EventReservationNotFound    = "reservation_not_found"
	EventFlowAbandoned          = "flow_abandoned"
	EventGatewayStart           = "gateway_start"
	EventGatewayStop            = "gateway_stop"
)

// AllEvents lists all known hook event names.
var AllEvents = []string{
	EventTurnReceived,
	EventReplySending,
	EventFlowStarted,
	EventBookingCompleted,
	EventReservationRescheduled,
	EventReservationNotFound,
	EventFlowAbandoned,
	EventGatewayStart,
	EventGatewayStop,
}

// Payload carries event data to hook handlers. UserID is lifted out of
// Data["userId"] so command hooks can filter on it without parsing Data.
type Payload struct {
	Event  string         `json:"event"`
	UserID string         `json:"userId,omitempty"`
	At     time.Time      `json:"at"`
	Data   map[string]any `json:"data,omitempty"`
}

// Handler is a function that handles a hook event.
// Returning an error logs the failure but does not stop processing.
type Handler func(ctx context.Context, p Payload) error

// Manager manages hook registrations and dispatches events. A failing or
// panicking handler is logged and never reaches the emitter.
type Manager struct {
	mu       sync.RWMutex
	handlers map[string][]namedHandler
	log      *logging.Logger
	now      func() time.Time

	pendingMu sync.Mutex
	pending   int
	idle      chan struct{} // closed when pending drops to zero
}

type namedHandler struct {
	name    string
	handler Handler
}

// NewManager creates a hook manager.
func NewManager(log *logging.Logger) *Manager {
	return &Manager{
		handlers: make(map[string][]namedHandler),
		log:      log.Sub("hooks"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// On registers a handler for the given event.
// The name identifies the handler for logging and debugging.
func (m *Manager) On(event, name string, handler Handler) {
	if !slices.Contains(AllEvents, event) {
		m.log.Warn().Str("event", event).Str("handler", name).Msg("hook registered for unknown event")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[event] = append(m.handlers[event], namedHandler{name: name, handler: handler})
	m.log.Debug().Str("event", event).Str("handler", name).Msg("hook registered")
}

// Off removes all handlers with the given name from the event.
func (m *Manager) Off(event, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.handlers[event] = slices.DeleteFunc(m.handlers[event], func(h namedHandler) bool {
		return h.name == name
	})
}

func (m *Manager) snapshot(event string) []namedHandler {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.handlers[event])
}

func (m *Manager) payload(event string, data map[string]any) Payload {
	p := Payload{Event: event, At: m.now(), Data: data}
	if id, ok := data["userId"].(string); ok {
		p.UserID = id
	}
	return p
}

// call runs one handler, turning a panic into an error.
func (m *Manager) call(ctx context.Context, h namedHandler, p Payload) {
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return h.handler(ctx, p)
	}()
	if err != nil {
		m.log.Warn().
			Err(err).
			Str("event", p.Event).
			Str("handler", h.name).
			Str("userId", p.UserID).
			Msg("hook handler error")
	}
}

// Emit dispatches an event to all registered handlers synchronously.
// Handlers are called in registration order. Errors are logged but do not
// prevent subsequent handlers from running.
func (m *Manager) Emit(ctx context.Context, event string, data map[string]any) {
	handlers := m.snapshot(event)
	if len(handlers) == 0 {
		return
	}

	p := m.payload(event, data)
	for _, h := range handlers {
		m.call(ctx, h, p)
	}
}

// EmitAsync dispatches an event to all registered handlers concurrently
// and returns immediately. Wait blocks until they finish.
func (m *Manager) EmitAsync(ctx context.Context, event string, data map[string]any) {
	handlers := m.snapshot(event)
	if len(handlers) == 0 {
		return
	}

	p := m.payload(event, data)
	m.begin(len(handlers))
	for _, h := range handlers {
		go func() {
			defer m.end()
			m.call(ctx, h, p)
		}()
	}
}

func (m *Manager) begin(n int) {
	m.pendingMu.Lock()
	defer m.pendingMu.Unlock()
	if m.pending == 0 {
		m.idle = make(chan struct{})
	}
	m.pending += n
}

func (m *Manager) end() {
	m.pendingMu.Lock()
	defer m.pendingMu.Unlock()
	m.pending--
	if m.pending == 0 {
		close(m.idle)
	}
}

// Wait blocks until every handler started by EmitAsync has returned, or
// until ctx is done. It reports whether all handlers finished.
func (m *Manager) Wait(ctx context.Context) bool {
	m.pendingMu.Lock()
	if m.pending == 0 {
		m.pendingMu.Unlock()
		return true
	}
	idle := m.idle
	m.pendingMu.Unlock()

	select {
	case <-idle:
		return true
	case <-ctx.Done():
		return false
	}
}

// Count returns the number of handlers registered for an event.
func (m *Manager) Count(event string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.handlers[event])
}

// Events returns the events that have at least one handler registered,
// sorted by name.
func (m *Manager) Events() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]string, 0, len(m.handlers))
	for event, handlers := range m.handlers {
		if len(handlers) > 0 {
			events = append(events, event)
		}
	}
	sort.Strings(events)
	return events
}
