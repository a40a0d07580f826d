package domain

import (
	"context"
	"encoding/json"
	"time"
)

// Flow names the multi-turn transaction a session is in.
type Flow string

const (
	FlowNone         Flow = ""
	FlowBooking      Flow = "booking"
	FlowRescheduling Flow = "rescheduling"
)

// Slot names. Booking and rescheduling slots never share a session context.
const (
	SlotCheckInDate     = "checkInDate"
	SlotCheckOutDate    = "checkOutDate"
	SlotRoomType        = "roomType"
	SlotNumGuests       = "numGuests"
	SlotReservationID   = "reservationId"
	SlotNewCheckInDate  = "newCheckInDate"
	SlotNewCheckOutDate = "newCheckOutDate"
)

// FlowSlots lists each flow's slots in collection order.
var FlowSlots = map[Flow][]string{
	FlowBooking:      {SlotCheckInDate, SlotCheckOutDate, SlotRoomType, SlotNumGuests},
	FlowRescheduling: {SlotReservationID, SlotNewCheckInDate, SlotNewCheckOutDate},
}

// Exchange is one user message and the reply it got.
type Exchange struct {
	User      string    `json:"user"`
	Assistant string    `json:"assistant"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is the dialogue state for one user. Flow and Context form a single
// tagged state: Context only ever holds slots belonging to Flow.
type Session struct {
	UserID      string         `json:"userId"`
	Flow        Flow           `json:"flow,omitempty"`
	Context     map[string]any `json:"context"`
	History     []Exchange     `json:"history"`
	LastUpdated time.Time      `json:"lastUpdated"`
}

// NewSession returns the default session for a user who has never written.
func NewSession(userID string) *Session {
	return &Session{
		UserID:  userID,
		Context: map[string]any{},
		History: []Exchange{},
	}
}

// Begin starts a flow with an empty context.
func (s *Session) Begin(f Flow) {
	s.Flow = f
	s.Context = map[string]any{}
}

// Reset ends whatever flow is active and drops its slots.
func (s *Session) Reset() {
	s.Begin(FlowNone)
}

// Active reports whether a flow is in progress.
func (s *Session) Active() bool {
	return s.Flow != FlowNone
}

// Has reports whether a slot has been collected.
func (s *Session) Has(slot string) bool {
	_, ok := s.Context[slot]
	return ok
}

// Fill stores a slot value if the slot belongs to the active flow and is not
// already set. It reports whether the value was stored.
func (s *Session) Fill(slot string, value any) bool {
	if !s.owns(slot) || s.Has(slot) {
		return false
	}
	if s.Context == nil {
		s.Context = map[string]any{}
	}
	s.Context[slot] = value
	return true
}

// Unset drops a collected slot so it is asked for again.
func (s *Session) Unset(slot string) {
	delete(s.Context, slot)
}

// String returns a string slot, or "" when unset.
func (s *Session) String(slot string) string {
	v, _ := s.Context[slot].(string)
	return v
}

// Int returns an integer slot, or 0 when unset.
func (s *Session) Int(slot string) int {
	switch v := s.Context[slot].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// Missing returns the active flow's slots not yet collected, in order.
func (s *Session) Missing() []string {
	var missing []string
	for _, slot := range FlowSlots[s.Flow] {
		if !s.Has(slot) {
			missing = append(missing, slot)
		}
	}
	return missing
}

// Record appends an exchange to the history and bumps LastUpdated.
func (s *Session) Record(user, assistant string, at time.Time) {
	s.History = append(s.History, Exchange{User: user, Assistant: assistant, Timestamp: at})
	s.LastUpdated = at
}

// Clone returns a deep copy so a turn can work on state it may throw away.
func (s *Session) Clone() *Session {
	c := *s
	c.Context = make(map[string]any, len(s.Context))
	for k, v := range s.Context {
		c.Context[k] = v
	}
	c.History = append([]Exchange(nil), s.History...)
	return &c
}

func (s *Session) owns(slot string) bool {
	for _, name := range FlowSlots[s.Flow] {
		if name == slot {
			return true
		}
	}
	return false
}

// UnmarshalJSON decodes numbers in Context as ints so a reload compares equal
// to what was saved.
func (s *Session) UnmarshalJSON(data []byte) error {
	type plain Session
	var raw struct {
		plain
		Context map[string]json.RawMessage `json:"context"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = Session(raw.plain)
	s.Context = make(map[string]any, len(raw.Context))
	for k, v := range raw.Context {
		val, err := decodeSlotValue(v)
		if err != nil {
			return err
		}
		s.Context[k] = val
	}
	if s.History == nil {
		s.History = []Exchange{}
	}
	return nil
}

func decodeSlotValue(raw json.RawMessage) (any, error) {
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if i, err := n.Int64(); err == nil {
			return int(i), nil
		}
		f, err := n.Float64()
		return f, err
	}
	var v any
	err := json.Unmarshal(raw, &v)
	return v, err
}

// SessionStore persists sessions.
//
// Load never fails: a missing or unreadable record yields NewSession(userID).
// Save fully overwrites the stored record for s.UserID.
type SessionStore interface {
	Load(ctx context.Context, userID string) *Session
	Save(ctx context.Context, s *Session) error
	List(ctx context.Context) []string
}
