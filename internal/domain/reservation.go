package domain

import (
	"context"
	"errors"
	"time"
)

// ErrReservationNotFound is returned when no reservation has the requested id.
var ErrReservationNotFound = errors.New("reservation not found")

// Reservation is one completed booking. ID and TotalPrice are fixed at creation.
type Reservation struct {
	ID           int        `json:"id" db:"id"`
	UserID       string     `json:"userId" db:"user_id"`
	CheckInDate  string     `json:"checkInDate" db:"check_in_date"`
	CheckOutDate string     `json:"checkOutDate" db:"check_out_date"`
	RoomType     string     `json:"roomType" db:"room_type"`
	NumGuests    int        `json:"numGuests" db:"num_guests"`
	TotalPrice   int        `json:"totalPrice" db:"total_price"`
	CreatedAt    time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt    *time.Time `json:"updatedAt,omitempty" db:"updated_at"`
}

// Reschedule moves the stay to new dates. Price and id are untouched.
func (r *Reservation) Reschedule(checkIn, checkOut string, at time.Time) {
	r.CheckInDate = checkIn
	r.CheckOutDate = checkOut
	ts := at.UTC().Truncate(time.Second)
	r.UpdatedAt = &ts
}

// ReservationStore persists reservations.
//
// List degrades to an empty result when the backing storage cannot be read.
// Append assigns the id (max existing + 1, starting at 1) and CreatedAt;
// implementations serialize allocation so ids are never reused.
type ReservationStore interface {
	List(ctx context.Context) []Reservation
	Append(ctx context.Context, r Reservation) (Reservation, error)
	FindByID(ctx context.Context, id int) (Reservation, bool)
	Update(ctx context.Context, id int, mutate func(*Reservation)) (Reservation, error)
}

// NextReservationID returns max(existing ids)+1, or 1 for an empty list.
func NextReservationID(existing []Reservation) int {
	next := 1
	for _, r := range existing {
		if r.ID >= next {
			next = r.ID + 1
		}
	}
	return next
}
