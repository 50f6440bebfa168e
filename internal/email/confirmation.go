package email

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tablebook/tablebook/internal/booking"
)

const confirmationEmailTimeout = 5 * time.Second

// BuildConfirmation renders the subject and plain-text body for a confirmed
// booking.
func BuildConfirmation(res booking.Reservation) (subject, body string) {
	subject = fmt.Sprintf("Your table is booked for %s at %s", res.Date, res.Hour)

	var b strings.Builder
	fmt.Fprintf(&b, "Thank you for your booking!\n\n")
	fmt.Fprintf(&b, "Date:     %s\n", res.Date)
	fmt.Fprintf(&b, "Time:     %s\n", res.Hour)
	fmt.Fprintf(&b, "Table:    %s\n", res.Table.ID())
	fmt.Fprintf(&b, "Duration: %g h\n", res.Duration)
	if res.People > 0 {
		fmt.Fprintf(&b, "Guests:   %d\n", res.People)
	}
	if len(res.Starters) > 0 {
		fmt.Fprintf(&b, "Starters: %s\n", strings.Join(res.Starters, ", "))
	}
	fmt.Fprintf(&b, "\nBooking reference: %s\n", res.Ref)
	return subject, b.String()
}

// SendBookingConfirmation sends a confirmation email asynchronously. Nothing
// happens when no sender is configured or the booking carries no email
// address; delivery failures are logged, never surfaced to the booking flow.
func SendBookingConfirmation(sender Sender, res booking.Reservation, logger *zerolog.Logger) {
	if sender == nil {
		return
	}
	recipient := strings.TrimSpace(res.Email)
	if recipient == "" {
		return
	}

	subject, body := BuildConfirmation(res)

	go func() {
		sendCtx, cancel := context.WithTimeout(context.Background(), confirmationEmailTimeout)
		defer cancel()
		if err := sender.Send(sendCtx, recipient, subject, body); err != nil && logger != nil {
			logger.Error().Err(err).Str("recipient", recipient).Str("ref", res.Ref).Msg("Failed to send confirmation email")
		}
	}()
}
