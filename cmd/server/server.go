// cmd/server/server.go
package main

import (
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/tablebook/tablebook/internal/api"
	"github.com/tablebook/tablebook/internal/api/availability"
	"github.com/tablebook/tablebook/internal/api/bookings"
	"github.com/tablebook/tablebook/internal/api/events"
	"github.com/tablebook/tablebook/internal/config"
	"github.com/tablebook/tablebook/internal/db"
	"github.com/tablebook/tablebook/internal/email"
)

func newServer(cfg *config.Config, database *db.DB, sender email.Sender) *http.Server {
	router := http.NewServeMux()

	handler := api.ChainMiddleware(
		router,
		api.WithLogging,
		api.WithRecovery,
		api.WithRequestID,
		api.WithContentType,
	)

	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit.BookingsPerMinute/60), cfg.RateLimit.Burst)
	bookings.InitHandlers(database, cfg.Booking, limiter, sender)
	events.InitHandlers(database, cfg.Cache.EventsTTL)
	availability.InitHandlers(database, cfg.Booking)

	registerRoutes(router)

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	mux.HandleFunc("/api/v1/bookings", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			bookings.HandleBookingsList(w, r)
		case http.MethodPost:
			bookings.HandleBookingCreate(w, r)
		default:
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/api/v1/events", events.HandleEventsList)
	mux.HandleFunc("/api/v1/availability", availability.HandleAvailabilityGet)
}
