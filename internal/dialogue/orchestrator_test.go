package dialogue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/soyeahso/concierge/internal/domain"
	"github.com/soyeahso/concierge/internal/logging"
	"github.com/soyeahso/concierge/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	checkInPrompt  = "Please provide check-in date (YYYY-MM-DD)."
	checkOutPrompt = "Please provide check-out date (YYYY-MM-DD)."
	roomPrompt     = "Please choose a room type: standard, deluxe, suite."
	guestsPrompt   = "How many guests?"
)

func newTestOrchestrator(rs domain.ReservationStore) *Orchestrator {
	o := New(domain.DefaultHotel(), rs, logging.New(nil, "silent"))
	o.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return o
}

func bookingSession(user string) *domain.Session {
	s := domain.NewSession(user)
	s.Begin(domain.FlowBooking)
	return s
}

func TestBookingOneSlotPerMessage(t *testing.T) {
	rs := store.NewMemoryReservationStore()
	o := newTestOrchestrator(rs)
	ctx := context.Background()
	s := bookingSession("alice")

	steps := []struct {
		text   string
		resume bool
		reply  string
	}{
		{"I want to book a room", false, checkInPrompt},
		{"2025-07-01", true, checkOutPrompt},
		{"2025-07-03", true, roomPrompt},
		{"deluxe", true, guestsPrompt},
	}
	for _, step := range steps {
		out := o.Advance(ctx, s, step.text, step.resume)
		assert.Equal(t, step.reply, out.Reply, "after %q", step.text)
		assert.False(t, out.Completed)
		assert.Equal(t, domain.IntentBooking, out.Intent)
	}

	out := o.Advance(ctx, s, "2", true)
	require.True(t, out.Completed)
	require.NotNil(t, out.Reservation)
	assert.Equal(t, StatusOK, out.Status)
	assert.Equal(t, 1, out.Reservation.ID)
	assert.Contains(t, out.Reply, "Reservation ID: 1")
	assert.Contains(t, out.Reply, "8000")
	assert.False(t, s.Active())
	assert.Empty(t, s.Context)

	list := rs.List(ctx)
	require.Len(t, list, 1)
	assert.Equal(t, "deluxe", list[0].RoomType)
	assert.Equal(t, 2, list[0].NumGuests)
	assert.Equal(t, "alice", list[0].UserID)
}

func TestBookingAllSlotsInOneMessage(t *testing.T) {
	rs := store.NewMemoryReservationStore()
	o := newTestOrchestrator(rs)
	s := bookingSession("alice")

	out := o.Advance(context.Background(), s, "book a suite from 2025-07-01 to 2025-07-04 for 3 guests", false)
	require.True(t, out.Completed)
	assert.Equal(t, []string{domain.SlotCheckInDate, domain.SlotCheckOutDate, domain.SlotRoomType, domain.SlotNumGuests}, out.Filled)
	assert.Equal(t, "2025-07-01", out.Reservation.CheckInDate)
	assert.Equal(t, "2025-07-04", out.Reservation.CheckOutDate)
	assert.Equal(t, 12000, out.Reservation.TotalPrice)
	assert.Equal(t, 3, out.Reservation.NumGuests)
}

func TestBookingPartialMessages(t *testing.T) {
	o := newTestOrchestrator(store.NewMemoryReservationStore())
	ctx := context.Background()
	s := bookingSession("alice")

	out := o.Advance(ctx, s, "a deluxe room please", false)
	assert.Equal(t, checkInPrompt, out.Reply)
	assert.Equal(t, "deluxe", s.String(domain.SlotRoomType))

	out = o.Advance(ctx, s, "2025-07-01 to 2025-07-03", true)
	assert.Equal(t, guestsPrompt, out.Reply)

	out = o.Advance(ctx, s, "actually a suite, 2", true)
	require.True(t, out.Completed)
	assert.Equal(t, "deluxe", out.Reservation.RoomType, "first write wins")
	assert.Equal(t, 2, out.Reservation.NumGuests)
}

func TestBookingMalformedDateRepeatsPrompt(t *testing.T) {
	o := newTestOrchestrator(store.NewMemoryReservationStore())
	s := bookingSession("alice")
	o.Advance(context.Background(), s, "I want to book a room", false)
	before := s.Clone()

	for _, text := range []string{"july 1st", "july 1", "2025/07/01", "tomorrow"} {
		out := o.Advance(context.Background(), s, text, true)
		assert.Equal(t, checkInPrompt, out.Reply, text)
		assert.Equal(t, before.Context, s.Context, text)
	}
}

func TestBookingCheckOutMustDiffer(t *testing.T) {
	o := newTestOrchestrator(store.NewMemoryReservationStore())
	s := bookingSession("alice")
	o.Advance(context.Background(), s, "2025-07-01", true)

	out := o.Advance(context.Background(), s, "2025-07-01", true)
	assert.Equal(t, checkOutPrompt, out.Reply)
	assert.False(t, s.Has(domain.SlotCheckOutDate))
}

func TestBookingCorrections(t *testing.T) {
	tests := []struct {
		name  string
		setup []string
		text  string
		want  string
	}{
		{"unknown room type", []string{"2025-07-01 2025-07-03"}, "penthouse",
			"We don't offer that room type. " + roomPrompt},
		{"guest count words", []string{"2025-07-01 2025-07-03", "suite"}, "two",
			"Please enter a valid number of guests."},
		{"guest count out of range", []string{"2025-07-01 2025-07-03", "suite"}, "15",
			"Please enter a valid number of guests."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newTestOrchestrator(store.NewMemoryReservationStore())
			s := bookingSession("alice")
			for _, msg := range tt.setup {
				o.Advance(context.Background(), s, msg, true)
			}
			out := o.Advance(context.Background(), s, tt.text, true)
			assert.Equal(t, tt.want, out.Reply)
			assert.False(t, out.Completed)
		})
	}
}

func TestNoCorrectionOnOpeningMessage(t *testing.T) {
	o := newTestOrchestrator(store.NewMemoryReservationStore())
	s := domain.NewSession("alice")
	s.Begin(domain.FlowRescheduling)

	out := o.Advance(context.Background(), s, "I need to reschedule", false)
	assert.Equal(t, "Please provide your reservation ID.", out.Reply)

	out = o.Advance(context.Background(), s, "it's #3", true)
	assert.Equal(t, "Please enter a valid reservation ID.", out.Reply)
}

func seedReservations(t *testing.T, rs domain.ReservationStore, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := rs.Append(context.Background(), domain.Reservation{
			UserID: "alice", CheckInDate: "2025-07-01", CheckOutDate: "2025-07-03",
			RoomType: "standard", NumGuests: 1, TotalPrice: 5000,
		})
		require.NoError(t, err)
	}
}

func TestRescheduling(t *testing.T) {
	rs := store.NewMemoryReservationStore()
	seedReservations(t, rs, 3)
	o := newTestOrchestrator(rs)
	ctx := context.Background()

	s := domain.NewSession("alice")
	s.Begin(domain.FlowRescheduling)

	assert.Equal(t, "Please provide your reservation ID.", o.Advance(ctx, s, "reschedule please", false).Reply)
	assert.Equal(t, "Please provide new check-in date (YYYY-MM-DD).", o.Advance(ctx, s, " 2 ", true).Reply)
	assert.Equal(t, "Please provide new check-out date (YYYY-MM-DD).", o.Advance(ctx, s, "2025-08-01", true).Reply)

	out := o.Advance(ctx, s, "2025-08-05", true)
	require.True(t, out.Completed)
	assert.Equal(t, domain.IntentRescheduling, out.Intent)
	assert.Contains(t, out.Reply, "Reservation updated successfully!")
	assert.False(t, s.Active())
	assert.Empty(t, s.Context)

	r, ok := rs.FindByID(ctx, 2)
	require.True(t, ok)
	assert.Equal(t, "2025-08-01", r.CheckInDate)
	assert.Equal(t, "2025-08-05", r.CheckOutDate)
	assert.Equal(t, 5000, r.TotalPrice)
	require.NotNil(t, r.UpdatedAt)
	assert.Equal(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), *r.UpdatedAt)
}

func TestReschedulingBothDatesInOneMessage(t *testing.T) {
	rs := store.NewMemoryReservationStore()
	seedReservations(t, rs, 1)
	o := newTestOrchestrator(rs)
	s := domain.NewSession("alice")
	s.Begin(domain.FlowRescheduling)

	o.Advance(context.Background(), s, "1", true)
	out := o.Advance(context.Background(), s, "move it to 2025-09-01 through 2025-09-04", true)
	require.True(t, out.Completed)
	assert.Equal(t, "2025-09-04", out.Reservation.CheckOutDate)
}

func TestReschedulingNotFound(t *testing.T) {
	rs := store.NewMemoryReservationStore()
	seedReservations(t, rs, 3)
	before := rs.List(context.Background())
	o := newTestOrchestrator(rs)
	ctx := context.Background()

	s := domain.NewSession("alice")
	s.Begin(domain.FlowRescheduling)
	o.Advance(ctx, s, "9999", true)
	o.Advance(ctx, s, "2025-08-01", true)
	out := o.Advance(ctx, s, "2025-08-05", true)

	assert.Equal(t, NotFoundReply, out.Reply)
	assert.True(t, out.Completed)
	assert.True(t, out.NotFound)
	assert.Nil(t, out.Reservation)
	assert.False(t, s.Active())
	assert.Empty(t, s.Context)
	assert.Equal(t, before, rs.List(ctx))
}

type failingStore struct {
	domain.ReservationStore
}

func (failingStore) Append(context.Context, domain.Reservation) (domain.Reservation, error) {
	return domain.Reservation{}, errors.New("disk full")
}

func (failingStore) Update(context.Context, int, func(*domain.Reservation)) (domain.Reservation, error) {
	return domain.Reservation{}, errors.New("disk full")
}

func TestStoreFailureIsRecoverable(t *testing.T) {
	o := newTestOrchestrator(failingStore{store.NewMemoryReservationStore()})
	s := bookingSession("alice")

	out := o.Advance(context.Background(), s, "suite 2025-07-01 2025-07-02 2 guests", false)
	assert.Equal(t, Apology, out.Reply)
	assert.Equal(t, StatusRecoverable, out.Status)
	assert.Error(t, out.Err)
	assert.False(t, out.Completed)
	assert.True(t, s.Active(), "slots are kept so the next message retries")
	assert.Empty(t, s.Missing())

	s = domain.NewSession("alice")
	s.Begin(domain.FlowRescheduling)
	o.Advance(context.Background(), s, "1", true)
	out = o.Advance(context.Background(), s, "2025-08-01 2025-08-02", true)
	assert.Equal(t, StatusRecoverable, out.Status)
	assert.True(t, s.Active())
}

func TestRoomTypeDroppedFromCatalog(t *testing.T) {
	o := newTestOrchestrator(store.NewMemoryReservationStore())
	s := bookingSession("alice")
	s.Fill(domain.SlotCheckInDate, "2025-07-01")
	s.Fill(domain.SlotCheckOutDate, "2025-07-02")
	s.Fill(domain.SlotRoomType, "penthouse")

	out := o.Advance(context.Background(), s, "2", true)
	assert.Equal(t, "We don't offer that room type. "+roomPrompt, out.Reply)
	assert.False(t, s.Has(domain.SlotRoomType))
	assert.True(t, s.Has(domain.SlotNumGuests))
}

func TestAdvanceWithoutFlow(t *testing.T) {
	o := newTestOrchestrator(store.NewMemoryReservationStore())
	out := o.Advance(context.Background(), domain.NewSession("alice"), "hello", false)
	assert.Equal(t, StatusRecoverable, out.Status)
	assert.Equal(t, Apology, out.Reply)
}

func TestConfirmation(t *testing.T) {
	r := domain.Reservation{ID: 7, RoomType: "standard", NumGuests: 1, CheckInDate: "2025-07-01",
		CheckOutDate: "2025-07-02", TotalPrice: 5000}
	assert.Equal(t,
		"Booking confirmed! Reservation ID: 7. standard room for 1 guest, 2025-07-01 to 2025-07-02. Total price: 5000.",
		Confirmation(r))
}

func TestChecklistOrder(t *testing.T) {
	o := newTestOrchestrator(store.NewMemoryReservationStore())
	var names []string
	for _, sl := range o.checklists[domain.FlowBooking] {
		names = append(names, sl.Name)
	}
	assert.Equal(t, domain.FlowSlots[domain.FlowBooking], names)

	names = nil
	for _, sl := range o.checklists[domain.FlowRescheduling] {
		names = append(names, sl.Name)
	}
	assert.Equal(t, domain.FlowSlots[domain.FlowRescheduling], names)
}
