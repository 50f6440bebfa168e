package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tablebook/tablebook/internal/db"
	"github.com/tablebook/tablebook/internal/timeslot"
)

const cleanupJobTimeout = 2 * time.Minute

// RegisterCleanupJob schedules the nightly purge of bookings older than
// retentionDays. A zero or negative retention disables the job.
func RegisterCleanupJob(database *db.DB, retentionDays int) error {
	if database == nil {
		return fmt.Errorf("cleanup job requires database")
	}
	if retentionDays <= 0 {
		log.Info().Msg("Booking retention purge disabled")
		return nil
	}

	jobName := "booking_retention_purge"
	cronExpr := "0 3 * * *"
	jobLogger := log.With().
		Str("component", "booking_retention_purge_job").
		Int("retention_days", retentionDays).
		Logger()

	_, err := AddJob(jobName, cronExpr, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cleanupJobTimeout)
		defer cancel()

		cutoff := timeslot.FormatDate(timeslot.AddDays(time.Now().UTC(), -retentionDays))
		purged, err := database.Queries.DeleteBookingsBefore(ctx, cutoff)
		if err != nil {
			jobLogger.Error().Err(err).Str("cutoff", cutoff).Msg("Failed to purge expired bookings")
			return
		}
		if purged > 0 {
			jobLogger.Info().Int64("purged", purged).Str("cutoff", cutoff).Msg("Purged expired bookings")
		}
	})
	if err != nil {
		return fmt.Errorf("register cleanup job: %w", err)
	}
	return nil
}
