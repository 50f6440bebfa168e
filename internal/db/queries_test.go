package db_test

import (
	"context"
	"testing"

	"github.com/tablebook/tablebook/internal/db"
	"github.com/tablebook/tablebook/internal/testutil"
)

func seedBooking(t *testing.T, q *db.Queries, ref, date, hour string) db.Booking {
	t.Helper()
	b, err := q.CreateBooking(context.Background(), db.CreateBookingParams{
		Ref:         ref,
		Date:        date,
		Hour:        hour,
		Duration:    1,
		TableNumber: "5",
		People:      2,
		Starters:    `["bread"]`,
		Phone:       "+14155552671",
		Address:     "1 Main St",
	})
	if err != nil {
		t.Fatalf("seed booking %s: %v", ref, err)
	}
	return b
}

func TestCreateAndGetBooking(t *testing.T) {
	database := testutil.NewTestDB(t)
	q := database.Queries

	created := seedBooking(t, q, "ref-1", "2024-06-10", "18:00")
	if created.ID == 0 {
		t.Fatal("expected assigned id")
	}

	got, err := q.GetBookingByRef(context.Background(), "ref-1")
	if err != nil {
		t.Fatalf("get by ref: %v", err)
	}
	if got.Date != "2024-06-10" || got.Hour != "18:00" || got.TableNumber != "5" {
		t.Fatalf("booking row: %+v", got)
	}
	if got.Starters != `["bread"]` {
		t.Fatalf("starters: %s", got.Starters)
	}
	if got.CreatedAt.IsZero() {
		t.Fatal("created_at not set")
	}
}

func TestListBookingsBetweenIsInclusive(t *testing.T) {
	database := testutil.NewTestDB(t)
	q := database.Queries

	seedBooking(t, q, "ref-1", "2024-06-09", "18:00")
	seedBooking(t, q, "ref-2", "2024-06-10", "18:00")
	seedBooking(t, q, "ref-3", "2024-06-12", "18:00")
	seedBooking(t, q, "ref-4", "2024-06-13", "18:00")

	rows, err := q.ListBookingsBetween(context.Background(), db.ListBookingsBetweenParams{
		DateStart: "2024-06-10",
		DateEnd:   "2024-06-12",
	})
	if err != nil {
		t.Fatalf("list between: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows: %d", len(rows))
	}
	if rows[0].Ref != "ref-2" || rows[1].Ref != "ref-3" {
		t.Fatalf("order: %s, %s", rows[0].Ref, rows[1].Ref)
	}
}

func TestDeleteBookingsBefore(t *testing.T) {
	database := testutil.NewTestDB(t)
	q := database.Queries

	seedBooking(t, q, "old-1", "2024-05-01", "18:00")
	seedBooking(t, q, "old-2", "2024-05-20", "18:00")
	seedBooking(t, q, "keep", "2024-06-10", "18:00")

	purged, err := q.DeleteBookingsBefore(context.Background(), "2024-06-01")
	if err != nil {
		t.Fatalf("delete before: %v", err)
	}
	if purged != 2 {
		t.Fatalf("purged: %d", purged)
	}

	remaining, err := q.ListBookingsBetween(context.Background(), db.ListBookingsBetweenParams{
		DateStart: "2024-01-01",
		DateEnd:   "2024-12-31",
	})
	if err != nil {
		t.Fatalf("list remaining: %v", err)
	}
	if len(remaining) != 1 || remaining[0].Ref != "keep" {
		t.Fatalf("remaining: %+v", remaining)
	}
}

func TestEventQueriesSplitByRepeat(t *testing.T) {
	database := testutil.NewTestDB(t)
	q := database.Queries
	ctx := context.Background()

	if _, err := q.CreateEvent(ctx, db.CreateEventParams{
		Date: "2024-06-10", Hour: "20:00", Duration: 2, TableNumber: "1",
	}); err != nil {
		t.Fatalf("create one-off event: %v", err)
	}
	if _, err := q.CreateEvent(ctx, db.CreateEventParams{
		Date: "2024-01-01", Hour: "12:00", Duration: 0.5, TableNumber: "2", Repeat: "daily",
	}); err != nil {
		t.Fatalf("create repeating event: %v", err)
	}

	oneOff, err := q.ListEventsBetween(ctx, db.ListEventsBetweenParams{
		DateStart: "2024-06-01",
		DateEnd:   "2024-06-30",
	})
	if err != nil {
		t.Fatalf("list one-off: %v", err)
	}
	if len(oneOff) != 1 || oneOff[0].TableNumber != "1" {
		t.Fatalf("one-off events: %+v", oneOff)
	}

	repeating, err := q.ListRepeatingEvents(ctx)
	if err != nil {
		t.Fatalf("list repeating: %v", err)
	}
	if len(repeating) != 1 || repeating[0].Repeat != "daily" {
		t.Fatalf("repeating events: %+v", repeating)
	}
}
