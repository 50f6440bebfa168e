// Package apiutil holds helpers shared by the API handler packages.
package apiutil

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
)

// WriteJSON encodes v to the response with the given status code.
func WriteJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to encode response")
	}
}

// SlotConflictError reports a booking that collides with existing occupancy.
type SlotConflictError struct {
	Table string
	Date  string
	Hour  string
}

func (e SlotConflictError) Error() string {
	return fmt.Sprintf("table %s is already booked on %s at %s", e.Table, e.Date, e.Hour)
}
