// Package booking implements the availability engine behind the reservation
// widget: it pulls the three record streams for the visible date window,
// folds them into an occupancy index, and answers which tables are free for
// any (date, half-hour slot) while tracking the single selected table.
package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/teambition/rrule-go"
	"golang.org/x/sync/errgroup"

	"github.com/tablebook/tablebook/internal/occupancy"
	"github.com/tablebook/tablebook/internal/timeslot"
)

var (
	// ErrAlreadyBooked rejects selecting a table that is occupied for the
	// cursor slot. User-visible and non-fatal.
	ErrAlreadyBooked = errors.New("table is already booked for this slot")

	// ErrRefreshInFlight rejects starting a window refresh while another is
	// still running. Two ingestion passes must never interleave.
	ErrRefreshInFlight = errors.New("window refresh already in flight")

	// ErrWindowInverted rejects a refresh whose end date precedes its start.
	ErrWindowInverted = errors.New("window end precedes window start")
)

// DataSource is the external data-access collaborator. Implementations own
// all transport concerns, including timeouts.
type DataSource interface {
	// ListBookings returns confirmed bookings overlapping the inclusive
	// date range.
	ListBookings(ctx context.Context, dateStart, dateEnd time.Time) ([]Reservation, error)

	// ListEvents returns events. With repeating false the result is
	// window-filtered one-off events; with repeating true it is every
	// recurring event regardless of the window.
	ListEvents(ctx context.Context, dateStart, dateEnd time.Time, repeating bool) ([]Event, error)

	// CreateBooking submits a booking and returns the server's canonical
	// confirmed record.
	CreateBooking(ctx context.Context, payload Payload) (Reservation, error)
}

// Option configures an Engine.
type Option func(*Engine)

// WithStrictRecurrence bounds daily-event expansion below by each event's own
// anchor date. The default mirrors the widget's historical behavior, which
// treats every daily event as active across the whole window.
func WithStrictRecurrence() Option {
	return func(e *Engine) { e.strictRecurrence = true }
}

// WithUpdateFunc registers the callback fired after every successful refresh
// or locally recorded booking, so the UI adapter can re-render.
func WithUpdateFunc(fn func()) Option {
	return func(e *Engine) { e.onUpdate = fn }
}

// Engine owns the visible window, the occupancy index built for it, and the
// booking cursor. All mutating operations run to completion under one lock;
// only the three refresh fetches execute concurrently.
type Engine struct {
	src DataSource

	mu          sync.Mutex
	index       *occupancy.Index
	windowStart time.Time
	windowEnd   time.Time
	refreshing  bool
	generation  uint64

	cursorDate  string
	cursorHour  float64
	selected    occupancy.TableID
	hasSelected bool

	strictRecurrence bool
	onUpdate         func()
}

// New creates an engine with an empty index. Call Refresh to populate it.
func New(src DataSource, opts ...Option) *Engine {
	e := &Engine{
		src:   src,
		index: occupancy.New(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Refresh fetches the three record streams for the inclusive window
// [windowStart, windowEnd] and swaps in a freshly built index once all three
// have arrived. On any fetch failure the previous index is left untouched;
// the engine never exposes a partially ingested index. A refresh that
// completes after a newer one has already committed is discarded.
func (e *Engine) Refresh(ctx context.Context, windowStart, windowEnd time.Time) error {
	start := timeslot.AddDays(windowStart, 0)
	end := timeslot.AddDays(windowEnd, 0)
	if end.Before(start) {
		return ErrWindowInverted
	}

	e.mu.Lock()
	if e.refreshing {
		e.mu.Unlock()
		return ErrRefreshInFlight
	}
	e.refreshing = true
	gen := e.generation
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.refreshing = false
		e.mu.Unlock()
	}()

	logger := log.With().
		Str("component", "availability_engine").
		Str("window_start", timeslot.FormatDate(start)).
		Str("window_end", timeslot.FormatDate(end)).
		Logger()

	var (
		bookings  []Reservation
		oneOff    []Event
		repeating []Event
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		bookings, err = e.src.ListBookings(gctx, start, end)
		if err != nil {
			return fmt.Errorf("list bookings: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		oneOff, err = e.src.ListEvents(gctx, start, end, false)
		if err != nil {
			return fmt.Errorf("list events: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		repeating, err = e.src.ListEvents(gctx, start, end, true)
		if err != nil {
			return fmt.Errorf("list repeating events: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("Window refresh failed")
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	records := make([]occupancy.Record, 0, len(bookings)+len(oneOff))
	for _, b := range bookings {
		records = append(records, b.record())
	}
	for _, ev := range oneOff {
		records = append(records, ev.record())
	}
	records = append(records, e.expandDaily(repeating, start, end)...)

	idx := occupancy.Build(records)

	e.mu.Lock()
	if e.generation != gen {
		// A newer refresh committed while this one awaited transport.
		e.mu.Unlock()
		logger.Debug().Msg("Discarding stale window refresh")
		return nil
	}
	e.generation++
	e.index = idx
	e.windowStart = start
	e.windowEnd = end
	e.mu.Unlock()

	logger.Info().
		Int("bookings", len(bookings)).
		Int("events", len(oneOff)).
		Int("repeating_events", len(repeating)).
		Int("occupied_slots", idx.SlotCount()).
		Msg("Window refresh complete")

	e.notify()
	return nil
}

// expandDaily materializes recurring events into one occurrence per window
// date. Legacy mode ignores each event's anchor date entirely; strict mode
// runs a DAILY recurrence rule anchored at the event date, so occurrences
// before the anchor are excluded.
func (e *Engine) expandDaily(events []Event, start, end time.Time) []occupancy.Record {
	var out []occupancy.Record
	for _, ev := range events {
		if ev.Repeat != RepeatDaily {
			continue
		}
		if !e.strictRecurrence {
			for d := start; !d.After(end); d = timeslot.AddDays(d, 1) {
				rec := ev.record()
				rec.Date = timeslot.FormatDate(d)
				out = append(out, rec)
			}
			continue
		}

		anchor, err := timeslot.ParseDate(ev.Date)
		if err != nil {
			log.Warn().Err(err).Int64("event_id", ev.ID).Msg("Skipping repeating event with malformed anchor date")
			continue
		}
		rule, err := rrule.NewRRule(rrule.ROption{Freq: rrule.DAILY, Dtstart: anchor})
		if err != nil {
			log.Warn().Err(err).Int64("event_id", ev.ID).Msg("Skipping repeating event with invalid recurrence")
			continue
		}
		for _, d := range rule.Between(start, end, true) {
			rec := ev.record()
			rec.Date = timeslot.FormatDate(d)
			out = append(out, rec)
		}
	}
	return out
}

// Window returns the boundary dates of the last committed refresh.
func (e *Engine) Window() (time.Time, time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.windowStart, e.windowEnd
}

// IsSlotFree reports whether table can still be booked on date at the given
// decimal hour.
func (e *Engine) IsSlotFree(date string, hour float64, table string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.index.IsFree(date, hour, occupancy.NormalizeTable(table))
}

// OccupiedTables returns the tables taken on date at the given decimal hour.
func (e *Engine) OccupiedTables(date string, hour float64) []occupancy.TableID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.index.OccupiedTables(date, hour)
}

// SetCursor moves the booking cursor to (date, hour). Any selection is
// dropped: a selected table is only meaningful relative to a fixed slot.
func (e *Engine) SetCursor(date string, hour float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cursorDate != date || e.cursorHour != hour {
		e.hasSelected = false
		e.selected = ""
	}
	e.cursorDate = date
	e.cursorHour = hour
}

// Cursor returns the current (date, hour) cursor.
func (e *Engine) Cursor() (string, float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cursorDate, e.cursorHour
}

// SelectTable selects table for the slot at (date, hour), replacing any prior
// selection and moving the cursor if needed. It fails with ErrAlreadyBooked
// when the slot is occupied.
func (e *Engine) SelectTable(date string, hour float64, table string) error {
	id := occupancy.NormalizeTable(table)

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.index.IsFree(date, hour, id) {
		return ErrAlreadyBooked
	}
	e.cursorDate = date
	e.cursorHour = hour
	e.selected = id
	e.hasSelected = true
	return nil
}

// ClearSelection drops the current selection, if any. Clicking the selected
// table again maps to this.
func (e *Engine) ClearSelection() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hasSelected = false
	e.selected = ""
}

// SelectedTable returns the currently selected table, if one is selected.
func (e *Engine) SelectedTable() (occupancy.TableID, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selected, e.hasSelected
}

// SubmitBooking sends payload to the reservation service and, only after the
// server confirms, records the confirmed reservation locally. Nothing is
// ingested speculatively: a rejected submission leaves the index unchanged.
func (e *Engine) SubmitBooking(ctx context.Context, payload Payload) (Reservation, error) {
	confirmed, err := e.src.CreateBooking(ctx, payload)
	if err != nil {
		return Reservation{}, fmt.Errorf("create booking: %w", err)
	}

	if err := e.RecordBooking(confirmed); err != nil {
		// The server accepted the booking; a local ingest failure only means
		// the index misses it until the next refresh.
		log.Warn().Err(err).Str("ref", confirmed.Ref).Msg("Confirmed booking could not be indexed locally")
	}
	return confirmed, nil
}

// RecordBooking patches the index with a server-confirmed reservation so the
// UI reflects the new occupancy without a full refresh, then clears the
// selection and notifies.
func (e *Engine) RecordBooking(rec Reservation) error {
	e.mu.Lock()
	err := e.index.Ingest(rec.record())
	if err == nil {
		e.hasSelected = false
		e.selected = ""
	}
	e.mu.Unlock()

	if err != nil {
		return fmt.Errorf("record booking: %w", err)
	}
	e.notify()
	return nil
}

func (e *Engine) notify() {
	if e.onUpdate != nil {
		e.onUpdate()
	}
}
