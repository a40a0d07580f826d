package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/soyeahso/concierge/internal/domain"
)

func nowUTC() time.Time { return time.Now().UTC().Truncate(time.Second) }

// timeLayout is RFC 3339 with fixed-width fractional seconds so stored
// timestamps sort correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

// reservationRow is the SQL shape of a reservation.
type reservationRow struct {
	ID           int            `db:"id"`
	UserID       string         `db:"user_id"`
	CheckInDate  string         `db:"check_in_date"`
	CheckOutDate string         `db:"check_out_date"`
	RoomType     string         `db:"room_type"`
	NumGuests    int            `db:"num_guests"`
	TotalPrice   int            `db:"total_price"`
	CreatedAt    string         `db:"created_at"`
	UpdatedAt    sql.NullString `db:"updated_at"`
}

func toRow(r domain.Reservation) reservationRow {
	row := reservationRow{
		ID:           r.ID,
		UserID:       r.UserID,
		CheckInDate:  r.CheckInDate,
		CheckOutDate: r.CheckOutDate,
		RoomType:     r.RoomType,
		NumGuests:    r.NumGuests,
		TotalPrice:   r.TotalPrice,
		CreatedAt:    formatTime(r.CreatedAt),
	}
	if r.UpdatedAt != nil {
		row.UpdatedAt = sql.NullString{String: formatTime(*r.UpdatedAt), Valid: true}
	}
	return row
}

func (row reservationRow) domain() domain.Reservation {
	r := domain.Reservation{
		ID:           row.ID,
		UserID:       row.UserID,
		CheckInDate:  row.CheckInDate,
		CheckOutDate: row.CheckOutDate,
		RoomType:     row.RoomType,
		NumGuests:    row.NumGuests,
		TotalPrice:   row.TotalPrice,
		CreatedAt:    parseTime(row.CreatedAt),
	}
	if row.UpdatedAt.Valid {
		t := parseTime(row.UpdatedAt.String)
		r.UpdatedAt = &t
	}
	return r
}

const reservationColumns = `id, user_id, check_in_date, check_out_date, room_type, num_guests, total_price, created_at, updated_at`

// SQLReservationStore implements domain.ReservationStore on a SQL database.
// Id allocation runs inside a transaction behind a process-wide mutex;
// Postgres additionally locks the table so separate processes cannot race.
type SQLReservationStore struct {
	db  *DB
	mu  sync.Mutex
	now func() time.Time
}

// NewSQLReservationStore creates a reservation store using the given database.
func NewSQLReservationStore(db *DB) *SQLReservationStore {
	return &SQLReservationStore{db: db, now: nowUTC}
}

// List returns all reservations ordered by id. Query failures yield an
// empty list.
func (s *SQLReservationStore) List(ctx context.Context) []domain.Reservation {
	var rows []reservationRow
	err := s.db.x.SelectContext(ctx, &rows, `SELECT `+reservationColumns+` FROM reservations ORDER BY id`)
	if err != nil {
		s.db.log.Warn().Err(err).Msg("failed to list reservations")
		return []domain.Reservation{}
	}
	out := make([]domain.Reservation, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.domain())
	}
	return out
}

// Append stores r under the next free id and returns the stored record.
func (s *SQLReservationStore) Append(ctx context.Context, r domain.Reservation) (domain.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.x.BeginTxx(ctx, nil)
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	if s.db.driver == DriverPostgres {
		if _, err := tx.ExecContext(ctx, `LOCK TABLE reservations IN SHARE ROW EXCLUSIVE MODE`); err != nil {
			return domain.Reservation{}, fmt.Errorf("locking reservations: %w", err)
		}
	}

	var next int
	if err := tx.GetContext(ctx, &next, `SELECT COALESCE(MAX(id), 0) + 1 FROM reservations`); err != nil {
		return domain.Reservation{}, fmt.Errorf("allocating reservation id: %w", err)
	}

	r.ID = next
	r.CreatedAt = s.now()
	r.UpdatedAt = nil

	_, err = tx.NamedExecContext(ctx,
		`INSERT INTO reservations (`+reservationColumns+`)
		 VALUES (:id, :user_id, :check_in_date, :check_out_date, :room_type, :num_guests, :total_price, :created_at, :updated_at)`,
		toRow(r))
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("inserting reservation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.Reservation{}, fmt.Errorf("commit append: %w", err)
	}
	return r, nil
}

// FindByID returns the reservation with the given id.
func (s *SQLReservationStore) FindByID(ctx context.Context, id int) (domain.Reservation, bool) {
	row, err := getReservation(ctx, s.db.x, s.db.x.Rebind(`SELECT `+reservationColumns+` FROM reservations WHERE id = ?`), id)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.db.log.Warn().Err(err).Int("reservationId", id).Msg("failed to load reservation")
		}
		return domain.Reservation{}, false
	}
	return row.domain(), true
}

// Update applies mutate to the reservation with the given id and writes it
// back. The id, price and creation time cannot be changed.
func (s *SQLReservationStore) Update(ctx context.Context, id int, mutate func(*domain.Reservation)) (domain.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.x.BeginTxx(ctx, nil)
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback()

	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`
	if s.db.driver == DriverPostgres {
		query += ` FOR UPDATE`
	}
	row, err := getReservation(ctx, tx, tx.Rebind(query), id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Reservation{}, domain.ErrReservationNotFound
	}
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("loading reservation %d: %w", id, err)
	}

	orig := row.domain()
	r := orig
	mutate(&r)
	r.ID, r.TotalPrice, r.CreatedAt = orig.ID, orig.TotalPrice, orig.CreatedAt

	_, err = tx.NamedExecContext(ctx,
		`UPDATE reservations SET user_id = :user_id, check_in_date = :check_in_date,
		   check_out_date = :check_out_date, room_type = :room_type, num_guests = :num_guests,
		   updated_at = :updated_at
		 WHERE id = :id`,
		toRow(r))
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("updating reservation %d: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return domain.Reservation{}, fmt.Errorf("commit update: %w", err)
	}
	return r, nil
}

func getReservation(ctx context.Context, q sqlx.QueryerContext, query string, id int) (reservationRow, error) {
	var row reservationRow
	err := sqlx.GetContext(ctx, q, &row, query, id)
	return row, err
}
