// Package timeslot provides calendar-date and wall-clock conversions for the
// half-hour reservation grid. All functions are pure; dates are date-only
// values pinned to UTC so day arithmetic never drifts across DST boundaries.
package timeslot

import (
	"fmt"
	"math"
	"time"
)

const (
	// DateLayout is the canonical date form used as index keys and query
	// parameters. Lexicographic order matches chronological order.
	DateLayout = "2006-01-02"

	// HourLayout is the canonical wall-clock form accepted from records.
	HourLayout = "15:04"
)

// FormatError reports a date or hour string that does not fit the half-hour
// reservation grid. It is local to ingestion: a single malformed record is
// skipped, never the whole refresh.
type FormatError struct {
	Field string
	Value string
	Why   string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("malformed %s %q: %s", e.Field, e.Value, e.Why)
}

// FormatDate renders t in canonical YYYY-MM-DD form.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate parses a canonical YYYY-MM-DD string into a date-only UTC value.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, &FormatError{Field: "date", Value: s, Why: "want YYYY-MM-DD"}
	}
	return t, nil
}

// AddDays returns t shifted by n calendar days. t is truncated to a date-only
// value first so the result is safe to compare and format regardless of any
// time-of-day component on the input.
func AddDays(t time.Time, n int) time.Time {
	t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return t.AddDate(0, 0, n)
}

// HourToNumber parses an HH:MM string into a decimal hour, e.g. "12:30"
// becomes 12.5. Minutes other than 00 or 30 are rejected: the half-hour slot
// is the system's only scheduling granularity.
func HourToNumber(s string) (float64, error) {
	t, err := time.Parse(HourLayout, s)
	if err != nil {
		return 0, &FormatError{Field: "hour", Value: s, Why: "want HH:MM"}
	}
	m := t.Minute()
	if m != 0 && m != 30 {
		return 0, &FormatError{Field: "hour", Value: s, Why: "minutes must be 00 or 30"}
	}
	return float64(t.Hour()) + float64(m)/60, nil
}

// NumberToHour renders a decimal hour back into HH:MM form.
func NumberToHour(v float64) string {
	h := int(v)
	m := 0
	if v-float64(h) >= 0.5 {
		m = 30
	}
	return fmt.Sprintf("%02d:%02d", h, m)
}

// HalfSlots converts a decimal-hour quantity (a start hour or duration) into
// integer half-hour units. Slot arithmetic is done in these units so the
// index never iterates on floats. Values off the 0.5 grid are rejected.
func HalfSlots(v float64) (int, error) {
	doubled := v * 2
	rounded := math.Round(doubled)
	if math.Abs(doubled-rounded) > 1e-9 {
		return 0, &FormatError{Field: "hours", Value: fmt.Sprintf("%g", v), Why: "must be a multiple of 0.5"}
	}
	return int(rounded), nil
}

// SlotHour converts integer half-hour units back into a decimal hour.
func SlotHour(slots int) float64 {
	return float64(slots) / 2
}
