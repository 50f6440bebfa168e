// internal/api/availability/handlers.go
package availability

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tablebook/tablebook/internal/api/apiutil"
	"github.com/tablebook/tablebook/internal/booking"
	"github.com/tablebook/tablebook/internal/config"
	appdb "github.com/tablebook/tablebook/internal/db"
	"github.com/tablebook/tablebook/internal/occupancy"
	"github.com/tablebook/tablebook/internal/store"
	"github.com/tablebook/tablebook/internal/timeslot"
)

var (
	source     *store.Source
	bookingCfg config.BookingConfig
)

const availabilityQueryTimeout = 5 * time.Second

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(d *appdb.DB, cfg config.BookingConfig) {
	if d == nil {
		return
	}
	source = store.NewSource(d)
	bookingCfg = cfg
}

type slotAvailability struct {
	Date     string             `json:"date"`
	Hour     string             `json:"hour"`
	Occupied []occupancy.TableID `json:"occupied"`
}

// GET /api/v1/availability?date=YYYY-MM-DD&hour=HH:MM
//
// Answers with the occupied tables for one slot, computed by the same
// availability engine the widget runs client-side.
func HandleAvailabilityGet(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	if source == nil {
		logger.Error().Msg("Availability store not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	date := r.URL.Query().Get("date")
	day, err := timeslot.ParseDate(date)
	if err != nil {
		http.Error(w, "date is required as YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	hourStr := r.URL.Query().Get("hour")
	hour, err := timeslot.HourToNumber(hourStr)
	if err != nil {
		http.Error(w, "hour must be HH:MM on the half hour", http.StatusBadRequest)
		return
	}

	opts := []booking.Option{}
	if bookingCfg.StrictRecurrence {
		opts = append(opts, booking.WithStrictRecurrence())
	}
	eng := booking.New(source, opts...)

	ctx, cancel := context.WithTimeout(r.Context(), availabilityQueryTimeout)
	defer cancel()

	if err := eng.Refresh(ctx, day, day); err != nil {
		logger.Error().Err(err).Str("date", date).Msg("Failed to load occupancy")
		http.Error(w, "Failed to load occupancy", http.StatusInternalServerError)
		return
	}

	occupied := eng.OccupiedTables(date, hour)
	if occupied == nil {
		occupied = []occupancy.TableID{}
	}
	apiutil.WriteJSON(w, r, http.StatusOK, slotAvailability{
		Date:     date,
		Hour:     hourStr,
		Occupied: occupied,
	})
}
