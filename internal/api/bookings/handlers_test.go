package bookings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/tablebook/tablebook/internal/booking"
	"github.com/tablebook/tablebook/internal/config"
	"github.com/tablebook/tablebook/internal/testutil"
)

type capturedEmail struct {
	recipient string
	subject   string
}

type fakeSender struct {
	sent chan capturedEmail
}

func (f *fakeSender) Send(ctx context.Context, recipient, subject, body string) error {
	f.sent <- capturedEmail{recipient: recipient, subject: subject}
	return nil
}

func setupBookingTest(t *testing.T) *fakeSender {
	t.Helper()

	database := testutil.NewTestDB(t)
	sender := &fakeSender{sent: make(chan capturedEmail, 1)}
	cfg := config.BookingConfig{
		OpenHour:         "12:00",
		CloseHour:        "23:30",
		MaxDurationHours: 4,
		PhoneRegion:      "US",
	}
	InitHandlers(database, cfg, nil, sender)
	return sender
}

func postBooking(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	HandleBookingCreate(recorder, req)
	return recorder
}

const validBookingBody = `{
	"date": "2024-06-10",
	"hour": "18:00",
	"table": 5,
	"duration": 1,
	"ppl": 2,
	"starters": ["bread"],
	"phone": "+14155552671",
	"address": "1 Main St"
}`

func TestBookingCreateAndList(t *testing.T) {
	setupBookingTest(t)

	recorder := postBooking(t, validBookingBody)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("create status: %d body: %s", recorder.Code, recorder.Body.String())
	}

	var confirmed booking.Reservation
	if err := json.Unmarshal(recorder.Body.Bytes(), &confirmed); err != nil {
		t.Fatalf("decode confirmed: %v", err)
	}
	if confirmed.Ref == "" {
		t.Fatal("confirmed record missing booking reference")
	}
	if confirmed.Table != "5" || confirmed.Date != "2024-06-10" {
		t.Fatalf("confirmed record: %+v", confirmed)
	}

	listReq := httptest.NewRequest(http.MethodGet,
		"/api/v1/bookings?date_gte=2024-06-10&date_lte=2024-06-10", nil)
	listRecorder := httptest.NewRecorder()
	HandleBookingsList(listRecorder, listReq)
	if listRecorder.Code != http.StatusOK {
		t.Fatalf("list status: %d", listRecorder.Code)
	}
	var listed []booking.Reservation
	if err := json.Unmarshal(listRecorder.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listed) != 1 || listed[0].Ref != confirmed.Ref {
		t.Fatalf("listed: %+v", listed)
	}
}

func TestBookingCreateRejectsConflict(t *testing.T) {
	setupBookingTest(t)

	if recorder := postBooking(t, validBookingBody); recorder.Code != http.StatusCreated {
		t.Fatalf("first create status: %d", recorder.Code)
	}

	// Same table, overlapping half-hour.
	overlapping := strings.Replace(validBookingBody, `"hour": "18:00"`, `"hour": "18:30"`, 1)
	recorder := postBooking(t, overlapping)
	if recorder.Code != http.StatusConflict {
		t.Fatalf("conflict status: %d body: %s", recorder.Code, recorder.Body.String())
	}

	// A different table in the same slot is fine.
	otherTable := strings.Replace(validBookingBody, `"table": 5`, `"table": 6`, 1)
	if recorder := postBooking(t, otherTable); recorder.Code != http.StatusCreated {
		t.Fatalf("other table status: %d body: %s", recorder.Code, recorder.Body.String())
	}
}

func TestBookingCreateValidation(t *testing.T) {
	setupBookingTest(t)

	cases := []struct {
		name        string
		mutate      func(string) string
		wantMessage string
	}{
		{
			name:        "quarter hour start",
			mutate:      func(s string) string { return strings.Replace(s, `"18:00"`, `"18:15"`, 1) },
			wantMessage: "hour must be HH:MM on the half hour",
		},
		{
			name:        "off-grid duration",
			mutate:      func(s string) string { return strings.Replace(s, `"duration": 1`, `"duration": 0.75`, 1) },
			wantMessage: "duration must be a positive multiple of 0.5",
		},
		{
			name:        "duration beyond cap",
			mutate:      func(s string) string { return strings.Replace(s, `"duration": 1`, `"duration": 4.5`, 1) },
			wantMessage: "duration must not exceed",
		},
		{
			name:        "before opening",
			mutate:      func(s string) string { return strings.Replace(s, `"18:00"`, `"09:00"`, 1) },
			wantMessage: "before opening",
		},
		{
			name:        "past closing",
			mutate:      func(s string) string { return strings.Replace(s, `"18:00"`, `"23:00"`, 1) },
			wantMessage: "end by closing",
		},
		{
			name:        "zero guests",
			mutate:      func(s string) string { return strings.Replace(s, `"ppl": 2`, `"ppl": 0`, 1) },
			wantMessage: "ppl must be at least 1",
		},
		{
			name:        "bad phone",
			mutate:      func(s string) string { return strings.Replace(s, "+14155552671", "12", 1) },
			wantMessage: "phone must be a valid phone number",
		},
		{
			name:        "missing date",
			mutate:      func(s string) string { return strings.Replace(s, "2024-06-10", "someday", 1) },
			wantMessage: "date is required",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			recorder := postBooking(t, tc.mutate(validBookingBody))
			if recorder.Code != http.StatusBadRequest {
				t.Fatalf("status: %d body: %s", recorder.Code, recorder.Body.String())
			}
			if !strings.Contains(recorder.Body.String(), tc.wantMessage) {
				t.Fatalf("message %q missing in: %s", tc.wantMessage, recorder.Body.String())
			}
		})
	}
}

func TestBookingCreateSendsConfirmationEmail(t *testing.T) {
	sender := setupBookingTest(t)

	withEmail := strings.Replace(validBookingBody,
		`"address": "1 Main St"`,
		`"address": "1 Main St", "email": "guest@example.com"`, 1)
	if recorder := postBooking(t, withEmail); recorder.Code != http.StatusCreated {
		t.Fatalf("create status: %d", recorder.Code)
	}

	select {
	case sent := <-sender.sent:
		if sent.recipient != "guest@example.com" {
			t.Fatalf("recipient: %s", sent.recipient)
		}
		if !strings.Contains(sent.subject, "2024-06-10") {
			t.Fatalf("subject: %s", sent.subject)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("confirmation email was not sent")
	}
}

func TestBookingCreateWithoutEmailSkipsConfirmation(t *testing.T) {
	sender := setupBookingTest(t)

	if recorder := postBooking(t, validBookingBody); recorder.Code != http.StatusCreated {
		t.Fatalf("create status: %d", recorder.Code)
	}

	select {
	case sent := <-sender.sent:
		t.Fatalf("unexpected email to %s", sent.recipient)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestBookingCreateRateLimited(t *testing.T) {
	database := testutil.NewTestDB(t)
	cfg := config.BookingConfig{
		OpenHour: "12:00", CloseHour: "23:30", MaxDurationHours: 4, PhoneRegion: "US",
	}
	InitHandlers(database, cfg, rate.NewLimiter(rate.Limit(0), 0), nil)

	recorder := postBooking(t, validBookingBody)
	if recorder.Code != http.StatusTooManyRequests {
		t.Fatalf("status: %d", recorder.Code)
	}
}

func TestBookingsListRequiresWindow(t *testing.T) {
	setupBookingTest(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings", nil)
	recorder := httptest.NewRecorder()
	HandleBookingsList(recorder, req)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("status: %d", recorder.Code)
	}
}
