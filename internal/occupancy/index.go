// Package occupancy builds and queries the derived occupancy index: a mapping
// from calendar date to half-hour slot to the set of tables taken in that
// slot. The index answers point queries only; it is rebuilt wholesale from
// the source record streams on every refresh.
package occupancy

import (
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/tablebook/tablebook/internal/timeslot"
)

// TableID is a canonical table identifier. Numeric-looking identifiers are
// normalized to their integer form so "05" and 5 compare equal; anything else
// is compared verbatim.
type TableID string

// NormalizeTable canonicalizes a raw table identifier. This is the single
// place identifier normalization happens; both ingestion and queries must go
// through it.
func NormalizeTable(raw string) TableID {
	trimmed := strings.TrimSpace(raw)
	if n, err := strconv.Atoi(trimmed); err == nil {
		return TableID(strconv.Itoa(n))
	}
	return TableID(trimmed)
}

// Record is a single reservation-like occurrence: one table occupied on one
// date from Hour for Duration hours. Bookings, one-off events and expanded
// recurring-event occurrences all ingest through this shape.
type Record struct {
	Date     string
	Hour     string
	Duration float64
	Table    TableID
}

type tableSet map[TableID]struct{}

// Index maps date -> half-hour slot (in integer half-slot units) -> occupied
// tables. A missing date or slot means nothing is booked there, which is the
// dominant case and the fast path.
type Index struct {
	days map[string]map[int]tableSet
}

// New returns an empty index.
func New() *Index {
	return &Index{days: make(map[string]map[int]tableSet)}
}

// Build constructs an index from a record set in one pass. Malformed records
// are skipped with a warning rather than failing the whole build; one bad
// historical row must not take down a refresh.
func Build(records []Record) *Index {
	idx := New()
	for _, rec := range records {
		if err := idx.Ingest(rec); err != nil {
			log.Warn().
				Err(err).
				Str("date", rec.Date).
				Str("hour", rec.Hour).
				Str("table", string(rec.Table)).
				Msg("Skipping malformed reservation record")
		}
	}
	return idx
}

// Ingest expands rec into per-slot occupancy: every half-hour slot in
// [hour, hour+duration) gains rec.Table on rec.Date. Slot iteration runs in
// integer half-slot units, so a duration that is any multiple of 0.5 lands
// exactly on the interval end with no float drift.
func (x *Index) Ingest(rec Record) error {
	hour, err := timeslot.HourToNumber(rec.Hour)
	if err != nil {
		return err
	}
	start, err := timeslot.HalfSlots(hour)
	if err != nil {
		return err
	}
	length, err := timeslot.HalfSlots(rec.Duration)
	if err != nil {
		return err
	}
	if length <= 0 {
		return &timeslot.FormatError{Field: "duration", Value: rec.Hour, Why: "must be positive"}
	}

	day, ok := x.days[rec.Date]
	if !ok {
		day = make(map[int]tableSet)
		x.days[rec.Date] = day
	}
	for slot := start; slot < start+length; slot++ {
		tables, ok := day[slot]
		if !ok {
			tables = make(tableSet)
			day[slot] = tables
		}
		tables[rec.Table] = struct{}{}
	}
	return nil
}

// IsFree reports whether table is unclaimed on date at the given decimal
// hour. Dates and slots that were never ingested are fully available.
func (x *Index) IsFree(date string, hour float64, table TableID) bool {
	day, ok := x.days[date]
	if !ok {
		return true
	}
	slot, err := timeslot.HalfSlots(hour)
	if err != nil {
		return true
	}
	tables, ok := day[slot]
	if !ok {
		return true
	}
	_, taken := tables[table]
	return !taken
}

// OccupiedTables returns the tables taken on date at the given decimal hour,
// in no particular order. The slice is empty when the slot was never
// ingested.
func (x *Index) OccupiedTables(date string, hour float64) []TableID {
	day, ok := x.days[date]
	if !ok {
		return nil
	}
	slot, err := timeslot.HalfSlots(hour)
	if err != nil {
		return nil
	}
	tables := make([]TableID, 0, len(day[slot]))
	for id := range day[slot] {
		tables = append(tables, id)
	}
	return tables
}

// SlotCount returns how many (date, slot) cells hold at least one table.
// Used by availability reporting and tests.
func (x *Index) SlotCount() int {
	var n int
	for _, day := range x.days {
		n += len(day)
	}
	return n
}
