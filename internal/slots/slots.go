// Package slots pulls typed values out of free-text guest messages.
//
// Every extractor is pure: it looks only at the message and returns either
// a value or the reason it found none. Deciding what to do with a rejection
// (re-prompt, correct, ignore) is left to the dialogue layer.
package slots

import (
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"github.com/soyeahso/concierge/internal/domain"
)

// Rejection reasons.
const (
	ReasonNoDate       = "no YYYY-MM-DD date found"
	ReasonNoOption     = "no recognized option"
	ReasonNoNumber     = "no number found"
	ReasonOutOfRange   = "number out of range"
	ReasonNotAllDigits = "message is not a number"
	ReasonUnknownSlot  = "unknown slot"
)

// Result is the outcome of running an extractor over one message.
type Result struct {
	Value  any
	OK     bool
	Reason string
}

func found(v any) Result { return Result{Value: v, OK: true} }

func rejected(reason string) Result { return Result{Reason: reason} }

// Extractor pulls one slot value out of a message.
type Extractor interface {
	Extract(text string) Result
}

var datePattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)

// Dates returns the distinct YYYY-MM-DD strings in text, in order of
// appearance. Only the shape is checked: 2025-13-40 is accepted.
func Dates(text string) []string {
	var out []string
	for _, m := range datePattern.FindAllString(text, -1) {
		if !slices.Contains(out, m) {
			out = append(out, m)
		}
	}
	return out
}

// DateExtractor yields the first date in a message that is not in Skip.
type DateExtractor struct {
	Skip []string
}

func (e DateExtractor) Extract(text string) Result {
	for _, d := range Dates(text) {
		if !slices.Contains(e.Skip, d) {
			return found(d)
		}
	}
	return rejected(ReasonNoDate)
}

// EnumExtractor yields the first whitespace-delimited token that, lower-cased
// and stripped of surrounding punctuation, equals one of Options.
type EnumExtractor struct {
	Options []string
}

func (e EnumExtractor) Extract(text string) Result {
	for _, tok := range tokens(text) {
		if slices.Contains(e.Options, tok) {
			return found(tok)
		}
	}
	return rejected(ReasonNoOption)
}

var explicitGuests = regexp.MustCompile(`(?i)\b(\d+)\s*(?:guests?|people|persons?)\b`)

// GuestCountExtractor yields a party size. An explicit "<N> guests",
// "<N> people" or "<N> persons" wins; otherwise the first standalone integer
// in [Min, Max] is taken unless ExplicitOnly is set.
type GuestCountExtractor struct {
	Min, Max     int
	ExplicitOnly bool
}

// DefaultGuestCount accepts bare numbers from 1 to 10.
var DefaultGuestCount = GuestCountExtractor{Min: 1, Max: 10}

func (e GuestCountExtractor) Extract(text string) Result {
	if m := explicitGuests.FindStringSubmatch(text); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 {
			return rejected(ReasonOutOfRange)
		}
		return found(n)
	}
	if e.ExplicitOnly {
		return rejected(ReasonNoNumber)
	}

	reason := ReasonNoNumber
	for _, tok := range tokens(text) {
		if !allDigits(tok) {
			continue
		}
		n, err := strconv.Atoi(tok)
		if err == nil && n >= e.Min && n <= e.Max {
			return found(n)
		}
		reason = ReasonOutOfRange
	}
	return rejected(reason)
}

// DigitsExtractor accepts a message that is, once trimmed, nothing but
// digits, and yields it as an int.
type DigitsExtractor struct{}

func (DigitsExtractor) Extract(text string) Result {
	s := strings.TrimSpace(text)
	if !allDigits(s) {
		return rejected(ReasonNotAllDigits)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return rejected(ReasonOutOfRange)
	}
	return found(n)
}

// Booking is the partial set of booking values found in one message. Empty
// fields were not found.
type Booking struct {
	CheckInDate  string
	CheckOutDate string
	RoomType     string
	NumGuests    int
}

// Values returns the found fields keyed by slot name.
func (b Booking) Values() map[string]any {
	out := map[string]any{}
	if b.CheckInDate != "" {
		out[domain.SlotCheckInDate] = b.CheckInDate
	}
	if b.CheckOutDate != "" {
		out[domain.SlotCheckOutDate] = b.CheckOutDate
	}
	if b.RoomType != "" {
		out[domain.SlotRoomType] = b.RoomType
	}
	if b.NumGuests > 0 {
		out[domain.SlotNumGuests] = b.NumGuests
	}
	return out
}

// ExtractBooking reads every booking value a message carries. The first two
// distinct dates become check-in and check-out; rooms are the catalog keys.
func ExtractBooking(text string, rooms []string) Booking {
	var b Booking
	dates := Dates(text)
	if len(dates) > 0 {
		b.CheckInDate = dates[0]
	}
	if len(dates) > 1 {
		b.CheckOutDate = dates[1]
	}
	if r := (EnumExtractor{Options: rooms}).Extract(text); r.OK {
		b.RoomType = r.Value.(string)
	}
	if r := DefaultGuestCount.Extract(text); r.OK {
		b.NumGuests = r.Value.(int)
	}
	return b
}

// ExtractRescheduling reads one rescheduling slot from a message. The
// reservation id must be the whole message; dates take the first match.
func ExtractRescheduling(text, slot string) Result {
	switch slot {
	case domain.SlotReservationID:
		return DigitsExtractor{}.Extract(text)
	case domain.SlotNewCheckInDate, domain.SlotNewCheckOutDate:
		return DateExtractor{}.Extract(text)
	}
	return rejected(ReasonUnknownSlot)
}

// tokens splits on whitespace, lower-cases, and trims surrounding punctuation.
func tokens(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	out := fields[:0]
	for _, f := range fields {
		f = strings.TrimFunc(f, unicode.IsPunct)
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
