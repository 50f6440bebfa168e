// internal/api/bookings/handlers.go
package bookings

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nyaruka/phonenumbers"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/tablebook/tablebook/internal/api/apiutil"
	"github.com/tablebook/tablebook/internal/booking"
	"github.com/tablebook/tablebook/internal/config"
	appdb "github.com/tablebook/tablebook/internal/db"
	"github.com/tablebook/tablebook/internal/email"
	"github.com/tablebook/tablebook/internal/store"
	"github.com/tablebook/tablebook/internal/timeslot"
)

var (
	source     *store.Source
	bookingCfg config.BookingConfig
	sender     email.Sender
	limiter    *rate.Limiter
)

const bookingQueryTimeout = 5 * time.Second

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(d *appdb.DB, cfg config.BookingConfig, rl *rate.Limiter, emailSender email.Sender) {
	if d == nil {
		return
	}
	source = store.NewSource(d)
	bookingCfg = cfg
	limiter = rl
	sender = emailSender
}

// GET /api/v1/bookings?date_gte=YYYY-MM-DD&date_lte=YYYY-MM-DD
func HandleBookingsList(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	if source == nil {
		logger.Error().Msg("Booking store not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	start, err := timeslot.ParseDate(r.URL.Query().Get("date_gte"))
	if err != nil {
		http.Error(w, "date_gte is required as YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	end, err := timeslot.ParseDate(r.URL.Query().Get("date_lte"))
	if err != nil {
		http.Error(w, "date_lte is required as YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	if end.Before(start) {
		http.Error(w, "date_lte must not precede date_gte", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), bookingQueryTimeout)
	defer cancel()

	reservations, err := source.ListBookings(ctx, start, end)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to list bookings")
		http.Error(w, "Failed to list bookings", http.StatusInternalServerError)
		return
	}
	if reservations == nil {
		reservations = []booking.Reservation{}
	}
	apiutil.WriteJSON(w, r, http.StatusOK, reservations)
}

// POST /api/v1/bookings
func HandleBookingCreate(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	if source == nil {
		logger.Error().Msg("Booking store not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if limiter != nil && !limiter.Allow() {
		http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
		return
	}

	payload, err := decodeBookingPayload(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validateBookingPayload(payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), bookingQueryTimeout)
	defer cancel()

	if err := ensureSlotsFree(ctx, payload); err != nil {
		var conflict apiutil.SlotConflictError
		if errors.As(err, &conflict) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		logger.Error().Err(err).Msg("Failed to check table availability")
		http.Error(w, "Failed to check table availability", http.StatusInternalServerError)
		return
	}

	confirmed, err := source.CreateBooking(ctx, payload)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create booking")
		http.Error(w, "Failed to create booking", http.StatusInternalServerError)
		return
	}

	logger.Info().
		Str("ref", confirmed.Ref).
		Str("date", confirmed.Date).
		Str("hour", confirmed.Hour).
		Str("table", string(confirmed.Table.ID())).
		Msg("Booking created")

	email.SendBookingConfirmation(sender, confirmed, logger)

	apiutil.WriteJSON(w, r, http.StatusCreated, confirmed)
}

func decodeBookingPayload(r *http.Request) (booking.Payload, error) {
	var payload booking.Payload
	if err := decodeJSONBody(r, &payload); err != nil {
		return booking.Payload{}, fmt.Errorf("invalid booking payload: %w", err)
	}
	return payload, nil
}

func validateBookingPayload(p booking.Payload) error {
	if _, err := timeslot.ParseDate(p.Date); err != nil {
		return fmt.Errorf("date is required as YYYY-MM-DD")
	}
	hour, err := timeslot.HourToNumber(p.Hour)
	if err != nil {
		return fmt.Errorf("hour must be HH:MM on the half hour")
	}
	durationSlots, err := timeslot.HalfSlots(p.Duration)
	if err != nil || durationSlots <= 0 {
		return fmt.Errorf("duration must be a positive multiple of 0.5")
	}
	maxSlots, err := timeslot.HalfSlots(bookingCfg.MaxDurationHours)
	if err == nil && maxSlots > 0 && durationSlots > maxSlots {
		return fmt.Errorf("duration must not exceed %g hours", bookingCfg.MaxDurationHours)
	}
	if p.Table.ID() == "" {
		return fmt.Errorf("table is required")
	}
	if p.People < 1 {
		return fmt.Errorf("ppl must be at least 1")
	}

	open, err := timeslot.HourToNumber(bookingCfg.OpenHour)
	if err == nil && hour < open {
		return fmt.Errorf("hour must not be before opening at %s", bookingCfg.OpenHour)
	}
	closing, err := timeslot.HourToNumber(bookingCfg.CloseHour)
	if err == nil && hour+p.Duration > closing {
		return fmt.Errorf("booking must end by closing at %s", bookingCfg.CloseHour)
	}

	if p.Phone == "" {
		return fmt.Errorf("phone is required")
	}
	parsed, err := phonenumbers.Parse(p.Phone, bookingCfg.PhoneRegion)
	if err != nil || !phonenumbers.IsValidNumber(parsed) {
		return fmt.Errorf("phone must be a valid phone number")
	}
	return nil
}

// ensureSlotsFree runs the availability engine over the booking's date and
// checks every half-hour slot the booking would occupy.
func ensureSlotsFree(ctx context.Context, p booking.Payload) error {
	opts := []booking.Option{}
	if bookingCfg.StrictRecurrence {
		opts = append(opts, booking.WithStrictRecurrence())
	}
	eng := booking.New(source, opts...)

	day, err := timeslot.ParseDate(p.Date)
	if err != nil {
		return fmt.Errorf("parse booking date: %w", err)
	}
	if err := eng.Refresh(ctx, day, day); err != nil {
		return fmt.Errorf("load occupancy: %w", err)
	}

	hour, err := timeslot.HourToNumber(p.Hour)
	if err != nil {
		return fmt.Errorf("parse booking hour: %w", err)
	}
	startSlot, err := timeslot.HalfSlots(hour)
	if err != nil {
		return fmt.Errorf("slot for hour: %w", err)
	}
	durationSlots, err := timeslot.HalfSlots(p.Duration)
	if err != nil {
		return fmt.Errorf("slots for duration: %w", err)
	}

	for slot := startSlot; slot < startSlot+durationSlots; slot++ {
		slotHour := timeslot.SlotHour(slot)
		if !eng.IsSlotFree(p.Date, slotHour, string(p.Table.ID())) {
			return apiutil.SlotConflictError{
				Table: string(p.Table.ID()),
				Date:  p.Date,
				Hour:  timeslot.NumberToHour(slotHour),
			}
		}
	}
	return nil
}
