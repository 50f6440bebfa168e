package availability

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tablebook/tablebook/internal/booking"
	"github.com/tablebook/tablebook/internal/config"
	appdb "github.com/tablebook/tablebook/internal/db"
	"github.com/tablebook/tablebook/internal/occupancy"
	"github.com/tablebook/tablebook/internal/testutil"
)

func setupAvailabilityTest(t *testing.T) *appdb.DB {
	t.Helper()
	database := testutil.NewTestDB(t)
	InitHandlers(database, config.BookingConfig{
		OpenHour:         "12:00",
		CloseHour:        "23:30",
		MaxDurationHours: 4,
		PhoneRegion:      "US",
	})
	return database
}

func getAvailability(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	recorder := httptest.NewRecorder()
	HandleAvailabilityGet(recorder, req)
	return recorder
}

func TestAvailabilityCombinesBookingsAndEvents(t *testing.T) {
	database := setupAvailabilityTest(t)
	ctx := context.Background()

	_, err := database.Queries.CreateBooking(ctx, appdb.CreateBookingParams{
		Ref:         "ref-avail-1",
		Date:        "2024-06-10",
		Hour:        "19:00",
		Duration:    1.5,
		TableNumber: "5",
		People:      2,
		Starters:    "[]",
		Phone:       "+14155552671",
	})
	if err != nil {
		t.Fatalf("seed booking: %v", err)
	}
	// Daily event anchored in the past still lands on the queried date.
	_, err = database.Queries.CreateEvent(ctx, appdb.CreateEventParams{
		Date:        "2020-01-01",
		Hour:        "19:30",
		Duration:    1,
		TableNumber: "7",
		Repeat:      booking.RepeatDaily,
	})
	if err != nil {
		t.Fatalf("seed event: %v", err)
	}

	recorder := getAvailability(t, "/api/v1/availability?date=2024-06-10&hour=19:30")
	if recorder.Code != http.StatusOK {
		t.Fatalf("status: %d body: %s", recorder.Code, recorder.Body.String())
	}

	var got struct {
		Date     string              `json:"date"`
		Hour     string              `json:"hour"`
		Occupied []occupancy.TableID `json:"occupied"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Date != "2024-06-10" || got.Hour != "19:30" {
		t.Fatalf("slot echo: %+v", got)
	}
	occupied := map[occupancy.TableID]bool{}
	for _, id := range got.Occupied {
		occupied[id] = true
	}
	if len(occupied) != 2 || !occupied["5"] || !occupied["7"] {
		t.Fatalf("occupied tables: %v", got.Occupied)
	}

	// Both the booking and the event end by 20:30.
	recorder = getAvailability(t, "/api/v1/availability?date=2024-06-10&hour=20:30")
	if err := json.Unmarshal(recorder.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(got.Occupied) != 0 {
		t.Fatalf("expected free slot, occupied: %v", got.Occupied)
	}
}

func TestAvailabilityValidatesParams(t *testing.T) {
	setupAvailabilityTest(t)

	cases := []struct {
		name   string
		target string
	}{
		{"missing date", "/api/v1/availability?hour=19:00"},
		{"bad date", "/api/v1/availability?date=tomorrow&hour=19:00"},
		{"missing hour", "/api/v1/availability?date=2024-06-10"},
		{"off-grid hour", "/api/v1/availability?date=2024-06-10&hour=19:15"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if recorder := getAvailability(t, tc.target); recorder.Code != http.StatusBadRequest {
				t.Fatalf("status: %d", recorder.Code)
			}
		})
	}
}
