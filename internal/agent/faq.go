package agent

import (
	"fmt"
	"strings"

	"github.com/soyeahso/concierge/internal/domain"
)

// FAQ is a canned answer category matched by lower-cased substring keywords.
type FAQ struct {
	Name     string
	Keywords []string
	Answer   func(h domain.Hotel) string
}

// DefaultFAQs are checked in order; the first category with a matching
// keyword answers. Words that start a flow ("room", "check in", "cancel")
// never reach here, so the sets avoid relying on them.
var DefaultFAQs = []FAQ{
	{
		Name:     "amenities",
		Keywords: []string{"amenit", "facilit", "pool", "spa", "restaurant", "wifi", "wi-fi", "internet"},
		Answer: func(h domain.Hotel) string {
			return fmt.Sprintf("%s offers %s.", h.Name, joinAnd(h.Amenities))
		},
	},
	{
		Name:     "pricing",
		Keywords: []string{"price", "pricing", "cost", "rate", "how much", "tariff", "charge"},
		Answer: func(h domain.Hotel) string {
			parts := make([]string, 0, len(h.Rooms))
			for _, name := range h.RoomNames() {
				parts = append(parts, fmt.Sprintf("%s %d", name, h.Rooms[name].Price))
			}
			return fmt.Sprintf("Our prices per stay: %s.", joinAnd(parts))
		},
	},
	{
		Name:     "room types",
		Keywords: []string{"suite", "deluxe", "standard", "capacity", "accommodat", "types"},
		Answer: func(h domain.Hotel) string {
			parts := make([]string, 0, len(h.Rooms))
			for _, name := range h.RoomNames() {
				parts = append(parts, fmt.Sprintf("%s (up to %d guests)", name, h.Rooms[name].Capacity))
			}
			return fmt.Sprintf("We offer %s.", joinAnd(parts))
		},
	},
	{
		Name:     "location",
		Keywords: []string{"where", "location", "located", "address", "directions"},
		Answer: func(h domain.Hotel) string {
			return fmt.Sprintf("%s is located in %s.", h.Name, h.Location)
		},
	},
	{
		Name:     "check-in/out times",
		Keywords: []string{"check-in", "checkin", "check-out", "checkout", "check out", "what time"},
		Answer: func(h domain.Hotel) string {
			return fmt.Sprintf("Check-in is at %s and check-out is at %s.", h.CheckInTime, h.CheckOutTime)
		},
	},
	{
		Name:     "cancellation policy",
		Keywords: []string{"cancellation", "refund", "policy"},
		Answer: func(h domain.Hotel) string {
			if h.CancellationPolicy == "" {
				return "Please contact the front desk about cancellations."
			}
			return "Cancellation policy: " + h.CancellationPolicy
		},
	},
}

// MatchFAQ returns the first category whose keywords appear in text.
func MatchFAQ(faqs []FAQ, text string) (FAQ, bool) {
	lower := strings.ToLower(text)
	for _, f := range faqs {
		for _, kw := range f.Keywords {
			if strings.Contains(lower, kw) {
				return f, true
			}
		}
	}
	return FAQ{}, false
}

func joinAnd(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	}
	return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
}
