package dialogue

import (
	"fmt"
	"strings"

	"github.com/soyeahso/concierge/internal/domain"
	"github.com/soyeahso/concierge/internal/slots"
)

// Slot is one entry in a flow's checklist.
type Slot struct {
	Name   string
	Prompt string
	// Correction replaces Prompt when the guest answered the prompt with
	// something unusable. Empty means the prompt is simply repeated.
	Correction string
	// Extract reads the slot when it is the one being asked for.
	Extract func(text string, s *domain.Session) slots.Result
	// Eager, when set, is also tried while an earlier slot is still missing.
	Eager func(text string, s *domain.Session) slots.Result
}

func use(e slots.Extractor) func(string, *domain.Session) slots.Result {
	return func(text string, _ *domain.Session) slots.Result { return e.Extract(text) }
}

// fromBooking reads one field of the whole-message booking extraction.
// reason is reported when the field is absent.
func fromBooking(rooms []string, slot, reason string) func(string, *domain.Session) slots.Result {
	return func(text string, _ *domain.Session) slots.Result {
		if v, ok := slots.ExtractBooking(text, rooms).Values()[slot]; ok {
			return slots.Result{Value: v, OK: true}
		}
		return slots.Result{Reason: reason}
	}
}

func rescheduling(slot string) func(string, *domain.Session) slots.Result {
	return func(text string, _ *domain.Session) slots.Result {
		return slots.ExtractRescheduling(text, slot)
	}
}

// dateAfter reads a date that differs from the one already held in other,
// so a single message can carry both ends of a stay.
func dateAfter(other string) func(string, *domain.Session) slots.Result {
	return func(text string, s *domain.Session) slots.Result {
		var skip []string
		if v := s.String(other); v != "" {
			skip = append(skip, v)
		}
		return slots.DateExtractor{Skip: skip}.Extract(text)
	}
}

// BookingSlots is the booking checklist for a catalog. Every slot except the
// guest count fallback is read eagerly so one message can fill several.
func BookingSlots(h domain.Hotel) []Slot {
	rooms := h.RoomNames()
	roomPrompt := fmt.Sprintf("Please choose a room type: %s.", strings.Join(rooms, ", "))
	return []Slot{
		{
			Name:    domain.SlotCheckInDate,
			Prompt:  "Please provide check-in date (YYYY-MM-DD).",
			Extract: fromBooking(rooms, domain.SlotCheckInDate, slots.ReasonNoDate),
		},
		{
			Name:    domain.SlotCheckOutDate,
			Prompt:  "Please provide check-out date (YYYY-MM-DD).",
			Extract: dateAfter(domain.SlotCheckInDate),
			Eager:   dateAfter(domain.SlotCheckInDate),
		},
		{
			Name:       domain.SlotRoomType,
			Prompt:     roomPrompt,
			Correction: "We don't offer that room type. " + roomPrompt,
			Extract:    fromBooking(rooms, domain.SlotRoomType, slots.ReasonNoOption),
			Eager:      fromBooking(rooms, domain.SlotRoomType, slots.ReasonNoOption),
		},
		{
			Name:       domain.SlotNumGuests,
			Prompt:     "How many guests?",
			Correction: "Please enter a valid number of guests.",
			Extract:    fromBooking(rooms, domain.SlotNumGuests, slots.ReasonNoNumber),
			Eager:      use(slots.GuestCountExtractor{ExplicitOnly: true}),
		},
	}
}

// ReschedulingSlots is the rescheduling checklist. Slots are read only when
// asked for; a message that fills one may go on to fill the next.
func ReschedulingSlots() []Slot {
	return []Slot{
		{
			Name:       domain.SlotReservationID,
			Prompt:     "Please provide your reservation ID.",
			Correction: "Please enter a valid reservation ID.",
			Extract:    rescheduling(domain.SlotReservationID),
		},
		{
			Name:    domain.SlotNewCheckInDate,
			Prompt:  "Please provide new check-in date (YYYY-MM-DD).",
			Extract: rescheduling(domain.SlotNewCheckInDate),
		},
		{
			Name:    domain.SlotNewCheckOutDate,
			Prompt:  "Please provide new check-out date (YYYY-MM-DD).",
			Extract: dateAfter(domain.SlotNewCheckInDate),
		},
	}
}
