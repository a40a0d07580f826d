// Package dialogue drives the booking and rescheduling flows: it merges
// slot values pulled from each message into the session, asks for what is
// still missing, and completes the transaction once the checklist is full.
package dialogue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/soyeahso/concierge/internal/domain"
	"github.com/soyeahso/concierge/internal/logging"
)

// Fixed replies.
const (
	Apology         = "Sorry, something went wrong. Please try again."
	NotFoundReply   = "Reservation ID not found."
	RescheduleReply = "Reservation updated successfully!"
)

// Status classifies how a turn ended.
type Status string

const (
	// StatusOK means the reply reflects everything that happened.
	StatusOK Status = "ok"
	// StatusRecoverable means the turn failed and the guest was asked to
	// retry; the session keeps its pre-failure progress.
	StatusRecoverable Status = "recoverable"
	// StatusDegraded means the guest got a real answer but persisting the
	// session afterwards failed.
	StatusDegraded Status = "degraded"
)

// Outcome is the result of one turn through a flow.
type Outcome struct {
	Reply  string
	Intent domain.Intent
	Flow   domain.Flow
	// Completed is set when the flow reached its terminal step this turn.
	Completed bool
	// NotFound is set when a rescheduling flow ended on an unknown id.
	NotFound bool
	// Reservation is the record created or rescheduled, if any.
	Reservation *domain.Reservation
	// Filled lists the slots collected this turn.
	Filled []string
	Status Status
	Err    error
}

// Orchestrator runs the slot-filling state machine for each flow.
type Orchestrator struct {
	hotel        domain.Hotel
	reservations domain.ReservationStore
	log          *logging.Logger
	now          func() time.Time
	checklists   map[domain.Flow][]Slot
}

// New creates an Orchestrator for the given catalog and reservation store.
func New(hotel domain.Hotel, reservations domain.ReservationStore, log *logging.Logger) *Orchestrator {
	return &Orchestrator{
		hotel:        hotel,
		reservations: reservations,
		log:          log.Sub("dialogue"),
		now:          time.Now,
		checklists: map[domain.Flow][]Slot{
			domain.FlowBooking:      BookingSlots(hotel),
			domain.FlowRescheduling: ReschedulingSlots(),
		},
	}
}

// Advance processes one message for the session's active flow. resumed is
// true when the flow was already in progress before this message; only then
// can an unusable answer earn a correction instead of the plain prompt.
func (o *Orchestrator) Advance(ctx context.Context, s *domain.Session, text string, resumed bool) Outcome {
	checklist, ok := o.checklists[s.Flow]
	if !ok {
		return Outcome{Reply: Apology, Status: StatusRecoverable, Err: fmt.Errorf("no active flow for %q", s.UserID)}
	}
	flow := s.Flow

	filled, asked, reason := merge(checklist, s, text)
	if len(filled) > 0 {
		o.log.Debug().Str("userId", s.UserID).Str("flow", string(flow)).Strs("filled", filled).Msg("slots collected")
	}

	if next := firstMissing(checklist, s); next != nil {
		reply := next.Prompt
		if resumed && len(filled) == 0 && asked != nil && asked.Correction != "" {
			reply = asked.Correction
			o.log.Debug().Str("userId", s.UserID).Str("slot", asked.Name).Str("reason", reason).Msg("slot rejected")
		}
		return Outcome{Reply: reply, Intent: flowIntent(flow), Flow: flow, Filled: filled, Status: StatusOK}
	}

	var out Outcome
	switch flow {
	case domain.FlowBooking:
		out = o.completeBooking(ctx, s)
	case domain.FlowRescheduling:
		out = o.completeRescheduling(ctx, s)
	}
	out.Intent = flowIntent(flow)
	out.Flow = flow
	out.Filled = filled
	return out
}

func flowIntent(f domain.Flow) domain.Intent {
	if f == domain.FlowRescheduling {
		return domain.IntentRescheduling
	}
	return domain.IntentBooking
}

// merge copies extracted values into the session's empty slots. The first
// missing slot is read with its main extractor; once a slot stays missing,
// later slots are read only through their eager extractor. It returns the
// slots filled, the slot that was being asked for when nothing matched and
// the extractor's reason.
func merge(checklist []Slot, s *domain.Session, text string) (filled []string, asked *Slot, reason string) {
	gap := false
	for i := range checklist {
		sl := &checklist[i]
		if s.Has(sl.Name) {
			continue
		}

		var extract = sl.Extract
		if gap {
			if sl.Eager == nil {
				continue
			}
			extract = sl.Eager
		}

		res := extract(text, s)
		if res.OK && s.Fill(sl.Name, res.Value) {
			filled = append(filled, sl.Name)
			continue
		}
		if !gap {
			asked, reason, gap = sl, res.Reason, true
		}
	}
	return filled, asked, reason
}

func (o *Orchestrator) correction(f domain.Flow, name string) string {
	for _, sl := range o.checklists[f] {
		if sl.Name == name {
			return sl.Correction
		}
	}
	return Apology
}

func firstMissing(checklist []Slot, s *domain.Session) *Slot {
	missing := s.Missing()
	if len(missing) == 0 {
		return nil
	}
	for i := range checklist {
		if checklist[i].Name == missing[0] {
			return &checklist[i]
		}
	}
	return nil
}

func (o *Orchestrator) completeBooking(ctx context.Context, s *domain.Session) Outcome {
	roomType := s.String(domain.SlotRoomType)
	room, ok := o.hotel.Room(roomType)
	if !ok {
		// The catalog changed since the slot was collected.
		s.Unset(domain.SlotRoomType)
		o.log.Warn().Str("userId", s.UserID).Str("roomType", roomType).Msg("room type no longer offered")
		return Outcome{Reply: o.correction(domain.FlowBooking, domain.SlotRoomType), Status: StatusOK}
	}

	saved, err := o.reservations.Append(ctx, domain.Reservation{
		UserID:       s.UserID,
		CheckInDate:  s.String(domain.SlotCheckInDate),
		CheckOutDate: s.String(domain.SlotCheckOutDate),
		RoomType:     roomType,
		NumGuests:    s.Int(domain.SlotNumGuests),
		TotalPrice:   room.Price,
	})
	if err != nil {
		o.log.Error().Err(err).Str("userId", s.UserID).Msg("saving reservation failed")
		return Outcome{Reply: Apology, Status: StatusRecoverable, Err: err}
	}

	s.Reset()
	o.log.Info().
		Str("userId", saved.UserID).
		Int("reservationId", saved.ID).
		Str("roomType", saved.RoomType).
		Int("totalPrice", saved.TotalPrice).
		Msg("booking completed")

	return Outcome{
		Reply:       Confirmation(saved),
		Completed:   true,
		Reservation: &saved,
		Status:      StatusOK,
	}
}

func (o *Orchestrator) completeRescheduling(ctx context.Context, s *domain.Session) Outcome {
	id := s.Int(domain.SlotReservationID)
	checkIn := s.String(domain.SlotNewCheckInDate)
	checkOut := s.String(domain.SlotNewCheckOutDate)

	updated, err := o.reservations.Update(ctx, id, func(r *domain.Reservation) {
		r.Reschedule(checkIn, checkOut, o.now())
	})
	switch {
	case errors.Is(err, domain.ErrReservationNotFound):
		s.Reset()
		o.log.Info().Str("userId", s.UserID).Int("reservationId", id).Msg("reschedule target not found")
		return Outcome{Reply: NotFoundReply, Completed: true, NotFound: true, Status: StatusOK}
	case err != nil:
		o.log.Error().Err(err).Str("userId", s.UserID).Int("reservationId", id).Msg("rescheduling failed")
		return Outcome{Reply: Apology, Status: StatusRecoverable, Err: err}
	}

	s.Reset()
	o.log.Info().Str("userId", s.UserID).Int("reservationId", id).
		Str("checkIn", checkIn).Str("checkOut", checkOut).Msg("reservation rescheduled")

	return Outcome{
		Reply:       fmt.Sprintf("%s Reservation %d now runs %s to %s.", RescheduleReply, id, checkIn, checkOut),
		Completed:   true,
		Reservation: &updated,
		Status:      StatusOK,
	}
}

// Confirmation renders the booking confirmation for a saved reservation.
func Confirmation(r domain.Reservation) string {
	guests := "guests"
	if r.NumGuests == 1 {
		guests = "guest"
	}
	return fmt.Sprintf("Booking confirmed! Reservation ID: %d. %s room for %d %s, %s to %s. Total price: %d.",
		r.ID, r.RoomType, r.NumGuests, guests, r.CheckInDate, r.CheckOutDate, r.TotalPrice)
}
