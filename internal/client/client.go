// Package client implements the booking.DataSource contract over the
// reservation service's JSON API. All transport concerns, including timeouts,
// live here.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tablebook/tablebook/internal/booking"
	"github.com/tablebook/tablebook/internal/timeslot"
)

const defaultTimeout = 10 * time.Second

// StatusError reports a non-2xx response from the reservation service.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("reservation service returned %d for %s", e.Status, e.URL)
}

// Client talks to the reservation service.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client, e.g. for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a client for the service rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListBookings fetches confirmed bookings overlapping the inclusive window.
func (c *Client) ListBookings(ctx context.Context, dateStart, dateEnd time.Time) ([]booking.Reservation, error) {
	params := url.Values{
		"date_gte": []string{timeslot.FormatDate(dateStart)},
		"date_lte": []string{timeslot.FormatDate(dateEnd)},
	}
	var out []booking.Reservation
	if err := c.getJSON(ctx, "/api/v1/bookings", params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListEvents fetches events. Repeating events are fetched without window
// bounds; their expansion is the engine's job.
func (c *Client) ListEvents(ctx context.Context, dateStart, dateEnd time.Time, repeating bool) ([]booking.Event, error) {
	params := url.Values{}
	if repeating {
		params.Set("repeat", booking.RepeatDaily)
	} else {
		params.Set("repeat", "none")
		params.Set("date_gte", timeslot.FormatDate(dateStart))
		params.Set("date_lte", timeslot.FormatDate(dateEnd))
	}
	var out []booking.Event
	if err := c.getJSON(ctx, "/api/v1/events", params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateBooking submits a booking and decodes the confirmed record.
func (c *Client) CreateBooking(ctx context.Context, payload booking.Payload) (booking.Reservation, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return booking.Reservation{}, fmt.Errorf("encode booking payload: %w", err)
	}

	endpoint := c.baseURL + "/api/v1/bookings"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return booking.Reservation{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return booking.Reservation{}, fmt.Errorf("post booking: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.drainForLog(resp, endpoint)
		return booking.Reservation{}, &StatusError{URL: endpoint, Status: resp.StatusCode}
	}

	var confirmed booking.Reservation
	if err := json.NewDecoder(resp.Body).Decode(&confirmed); err != nil {
		return booking.Reservation{}, fmt.Errorf("decode confirmed booking: %w", err)
	}
	return confirmed, nil
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.drainForLog(resp, endpoint)
		return &StatusError{URL: endpoint, Status: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) drainForLog(resp *http.Response, endpoint string) {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	log.Warn().
		Str("url", endpoint).
		Int("status", resp.StatusCode).
		Str("body", string(snippet)).
		Msg("Reservation service request failed")
}
