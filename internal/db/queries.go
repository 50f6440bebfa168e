package db

import (
	"context"
	"database/sql"
	"time"
)

// DBTX is the minimal query surface shared by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// Queries bundles the hand-written SQL for the reservation schema.
type Queries struct {
	db DBTX
}

func NewQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

type Booking struct {
	ID          int64
	Ref         string
	Date        string
	Hour        string
	Duration    float64
	TableNumber string
	People      int64
	Starters    string // JSON array
	Phone       string
	Address     string
	Email       string
	CreatedAt   time.Time
}

type Event struct {
	ID          int64
	Date        string
	Hour        string
	Duration    float64
	TableNumber string
	Repeat      string
}

const bookingColumns = `id, ref, date, hour, duration, table_number, people, starters, phone, address, email, created_at`

func scanBooking(row interface{ Scan(...any) error }) (Booking, error) {
	var b Booking
	err := row.Scan(&b.ID, &b.Ref, &b.Date, &b.Hour, &b.Duration, &b.TableNumber,
		&b.People, &b.Starters, &b.Phone, &b.Address, &b.Email, &b.CreatedAt)
	return b, err
}

type CreateBookingParams struct {
	Ref         string
	Date        string
	Hour        string
	Duration    float64
	TableNumber string
	People      int64
	Starters    string
	Phone       string
	Address     string
	Email       string
}

func (q *Queries) CreateBooking(ctx context.Context, arg CreateBookingParams) (Booking, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO bookings (ref, date, hour, duration, table_number, people, starters, phone, address, email)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING `+bookingColumns,
		arg.Ref, arg.Date, arg.Hour, arg.Duration, arg.TableNumber,
		arg.People, arg.Starters, arg.Phone, arg.Address, arg.Email,
	)
	return scanBooking(row)
}

func (q *Queries) GetBookingByRef(ctx context.Context, ref string) (Booking, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE ref = ?`, ref)
	return scanBooking(row)
}

type ListBookingsBetweenParams struct {
	DateStart string
	DateEnd   string
}

// ListBookingsBetween returns bookings whose date falls inside the inclusive
// range. Canonical dates compare lexicographically, so plain string
// comparison is the range check.
func (q *Queries) ListBookingsBetween(ctx context.Context, arg ListBookingsBetweenParams) ([]Booking, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE date >= ? AND date <= ?
		ORDER BY date, hour, id`,
		arg.DateStart, arg.DateEnd,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// DeleteBookingsBefore removes bookings dated strictly before cutoffDate and
// reports how many were purged.
func (q *Queries) DeleteBookingsBefore(ctx context.Context, cutoffDate string) (int64, error) {
	result, err := q.db.ExecContext(ctx, `DELETE FROM bookings WHERE date < ?`, cutoffDate)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

type CreateEventParams struct {
	Date        string
	Hour        string
	Duration    float64
	TableNumber string
	Repeat      string
}

func (q *Queries) CreateEvent(ctx context.Context, arg CreateEventParams) (Event, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO events (date, hour, duration, table_number, repeat)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id, date, hour, duration, table_number, repeat`,
		arg.Date, arg.Hour, arg.Duration, arg.TableNumber, arg.Repeat,
	)
	var e Event
	err := row.Scan(&e.ID, &e.Date, &e.Hour, &e.Duration, &e.TableNumber, &e.Repeat)
	return e, err
}

type ListEventsBetweenParams struct {
	DateStart string
	DateEnd   string
}

// ListEventsBetween returns one-off events inside the inclusive range.
func (q *Queries) ListEventsBetween(ctx context.Context, arg ListEventsBetweenParams) ([]Event, error) {
	return q.listEvents(ctx, `
		SELECT id, date, hour, duration, table_number, repeat
		FROM events
		WHERE repeat = '' AND date >= ? AND date <= ?
		ORDER BY date, hour, id`,
		arg.DateStart, arg.DateEnd)
}

// ListRepeatingEvents returns every recurring event regardless of date; the
// availability engine expands them against its own window.
func (q *Queries) ListRepeatingEvents(ctx context.Context) ([]Event, error) {
	return q.listEvents(ctx, `
		SELECT id, date, hour, duration, table_number, repeat
		FROM events
		WHERE repeat <> ''
		ORDER BY date, hour, id`)
}

func (q *Queries) listEvents(ctx context.Context, query string, args ...any) ([]Event, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.Date, &e.Hour, &e.Duration, &e.TableNumber, &e.Repeat); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
