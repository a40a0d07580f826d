// Package intent decides what a guest's message is about.
package intent

import (
	"strings"

	"github.com/soyeahso/concierge/internal/domain"
)

// Keyword sets matched as lower-cased substrings.
var (
	BookingKeywords      = []string{"book", "booking", "reserve", "reservation", "room", "stay", "check in"}
	ReschedulingKeywords = []string{"reschedule", "change", "modify", "update", "cancel"}
)

// Decision is the classifier's verdict for one turn.
type Decision struct {
	Intent domain.Intent
	// Started is set when this turn opened a new flow.
	Started bool
	// Sticky is set when an in-progress flow decided the intent.
	Sticky bool
	// Ambiguous is set when both keyword sets matched and booking won on
	// check order alone.
	Ambiguous bool
}

// Classifier maps a message to an intent. The zero value uses the default
// keyword sets.
type Classifier struct {
	Booking      []string
	Rescheduling []string
}

// Classify returns the intent for text given the session's state. When a
// new flow starts, the session is switched into it; nothing else is touched.
func (c Classifier) Classify(s *domain.Session, text string) Decision {
	switch s.Flow {
	case domain.FlowBooking:
		return Decision{Intent: domain.IntentBooking, Sticky: true}
	case domain.FlowRescheduling:
		return Decision{Intent: domain.IntentRescheduling, Sticky: true}
	}

	lower := strings.ToLower(text)
	booking := containsAny(lower, c.bookingKeywords())
	rescheduling := containsAny(lower, c.reschedulingKeywords())

	var in domain.Intent
	switch {
	case booking:
		in = domain.IntentBooking
	case rescheduling:
		in = domain.IntentRescheduling
	default:
		return Decision{Intent: domain.IntentQuestion}
	}
	s.Begin(in.Flow())
	return Decision{Intent: in, Started: true, Ambiguous: booking && rescheduling}
}

func (c Classifier) bookingKeywords() []string {
	if len(c.Booking) > 0 {
		return c.Booking
	}
	return BookingKeywords
}

func (c Classifier) reschedulingKeywords() []string {
	if len(c.Rescheduling) > 0 {
		return c.Rescheduling
	}
	return ReschedulingKeywords
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
