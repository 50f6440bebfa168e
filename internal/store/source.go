// Package store adapts the SQLite reservation store to the availability
// engine's DataSource contract, so the service can answer occupancy queries
// in-process with the same engine the widget runs remotely.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tablebook/tablebook/internal/booking"
	"github.com/tablebook/tablebook/internal/db"
	"github.com/tablebook/tablebook/internal/occupancy"
	"github.com/tablebook/tablebook/internal/timeslot"
)

// Source implements booking.DataSource over the local database.
type Source struct {
	db *db.DB
}

func NewSource(database *db.DB) *Source {
	return &Source{db: database}
}

// ListBookings returns confirmed bookings inside the inclusive date range.
func (s *Source) ListBookings(ctx context.Context, dateStart, dateEnd time.Time) ([]booking.Reservation, error) {
	rows, err := s.db.Queries.ListBookingsBetween(ctx, db.ListBookingsBetweenParams{
		DateStart: timeslot.FormatDate(dateStart),
		DateEnd:   timeslot.FormatDate(dateEnd),
	})
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}

	out := make([]booking.Reservation, 0, len(rows))
	for _, row := range rows {
		out = append(out, ReservationFromRow(row))
	}
	return out, nil
}

// ListEvents returns one-off events window-filtered, or every recurring event
// when repeating is true.
func (s *Source) ListEvents(ctx context.Context, dateStart, dateEnd time.Time, repeating bool) ([]booking.Event, error) {
	var (
		rows []db.Event
		err  error
	)
	if repeating {
		rows, err = s.db.Queries.ListRepeatingEvents(ctx)
	} else {
		rows, err = s.db.Queries.ListEventsBetween(ctx, db.ListEventsBetweenParams{
			DateStart: timeslot.FormatDate(dateStart),
			DateEnd:   timeslot.FormatDate(dateEnd),
		})
	}
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	out := make([]booking.Event, 0, len(rows))
	for _, row := range rows {
		out = append(out, booking.Event{
			ID:       row.ID,
			Date:     row.Date,
			Hour:     row.Hour,
			Duration: row.Duration,
			Table:    booking.TableRef(occupancy.NormalizeTable(row.TableNumber)),
			Repeat:   row.Repeat,
		})
	}
	return out, nil
}

// CreateBooking persists a booking and returns the canonical confirmed record.
// Validation and conflict checking are the API layer's responsibility; this is
// the storage write only.
func (s *Source) CreateBooking(ctx context.Context, payload booking.Payload) (booking.Reservation, error) {
	starters, err := json.Marshal(payload.Starters)
	if err != nil {
		return booking.Reservation{}, fmt.Errorf("encode starters: %w", err)
	}
	if payload.Starters == nil {
		starters = []byte("[]")
	}

	row, err := s.db.Queries.CreateBooking(ctx, db.CreateBookingParams{
		Ref:         uuid.New().String(),
		Date:        payload.Date,
		Hour:        payload.Hour,
		Duration:    payload.Duration,
		TableNumber: string(payload.Table.ID()),
		People:      int64(payload.People),
		Starters:    string(starters),
		Phone:       payload.Phone,
		Address:     payload.Address,
		Email:       payload.Email,
	})
	if err != nil {
		return booking.Reservation{}, fmt.Errorf("create booking: %w", err)
	}
	return ReservationFromRow(row), nil
}

// ReservationFromRow converts a storage row into the wire record.
func ReservationFromRow(row db.Booking) booking.Reservation {
	var starters []string
	if row.Starters != "" {
		// Bad stored JSON degrades to no starters rather than failing a list.
		_ = json.Unmarshal([]byte(row.Starters), &starters)
	}
	return booking.Reservation{
		ID:       row.ID,
		Ref:      row.Ref,
		Date:     row.Date,
		Hour:     row.Hour,
		Duration: row.Duration,
		Table:    booking.TableRef(occupancy.NormalizeTable(row.TableNumber)),
		People:   int(row.People),
		Starters: starters,
		Phone:    row.Phone,
		Address:  row.Address,
		Email:    row.Email,
	}
}
