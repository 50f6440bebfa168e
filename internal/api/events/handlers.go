// internal/api/events/handlers.go
package events

import (
	"context"
	"net/http"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"

	"github.com/tablebook/tablebook/internal/api/apiutil"
	"github.com/tablebook/tablebook/internal/booking"
	appdb "github.com/tablebook/tablebook/internal/db"
	"github.com/tablebook/tablebook/internal/store"
	"github.com/tablebook/tablebook/internal/timeslot"
)

var (
	source    *store.Source
	respCache *gocache.Cache
)

const eventQueryTimeout = 5 * time.Second

// InitHandlers must be called during server startup before handling requests.
// Event data changes rarely, so list responses are served from a TTL cache.
func InitHandlers(d *appdb.DB, cacheTTL time.Duration) {
	if d == nil {
		return
	}
	source = store.NewSource(d)
	respCache = gocache.New(cacheTTL, 2*cacheTTL)
}

// GET /api/v1/events?repeat=none|daily[&date_gte&date_lte]
func HandleEventsList(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	if source == nil {
		logger.Error().Msg("Event store not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	repeating := false
	switch r.URL.Query().Get("repeat") {
	case booking.RepeatDaily:
		repeating = true
	case "", "none":
	default:
		http.Error(w, "repeat must be none or daily", http.StatusBadRequest)
		return
	}

	cacheKey := r.URL.RequestURI()
	if cached, found := respCache.Get(cacheKey); found {
		apiutil.WriteJSON(w, r, http.StatusOK, cached)
		return
	}

	var start, end time.Time
	if !repeating {
		var err error
		start, err = timeslot.ParseDate(r.URL.Query().Get("date_gte"))
		if err != nil {
			http.Error(w, "date_gte is required as YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		end, err = timeslot.ParseDate(r.URL.Query().Get("date_lte"))
		if err != nil {
			http.Error(w, "date_lte is required as YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		if end.Before(start) {
			http.Error(w, "date_lte must not precede date_gte", http.StatusBadRequest)
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), eventQueryTimeout)
	defer cancel()

	events, err := source.ListEvents(ctx, start, end, repeating)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to list events")
		http.Error(w, "Failed to list events", http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []booking.Event{}
	}

	respCache.SetDefault(cacheKey, events)
	apiutil.WriteJSON(w, r, http.StatusOK, events)
}
