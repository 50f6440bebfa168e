package booking

import (
	"encoding/json"
	"strconv"

	"github.com/tablebook/tablebook/internal/occupancy"
)

// RepeatDaily marks an event that recurs every calendar day.
const RepeatDaily = "daily"

// TableRef is a table identifier as it appears on the wire. Upstream data is
// inconsistent about the type (bookings carry numbers, widget markup carries
// strings), so it accepts either and normalizes through occupancy.NormalizeTable.
type TableRef string

func (t *TableRef) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = TableRef(occupancy.NormalizeTable(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*t = TableRef(occupancy.NormalizeTable(n.String()))
	return nil
}

func (t TableRef) MarshalJSON() ([]byte, error) {
	// Numeric identifiers go back out as JSON numbers, matching the upstream
	// booking schema.
	if _, err := strconv.Atoi(string(t)); err == nil {
		return []byte(t), nil
	}
	return json.Marshal(string(t))
}

// ID returns the canonical identifier for index lookups.
func (t TableRef) ID() occupancy.TableID {
	return occupancy.TableID(t)
}

// Reservation is a confirmed booking as returned by the reservation service.
type Reservation struct {
	ID       int64    `json:"id,omitempty"`
	Ref      string   `json:"ref,omitempty"`
	Date     string   `json:"date"`
	Hour     string   `json:"hour"`
	Duration float64  `json:"duration"`
	Table    TableRef `json:"table"`
	People   int      `json:"ppl,omitempty"`
	Starters []string `json:"starters,omitempty"`
	Phone    string   `json:"phone,omitempty"`
	Address  string   `json:"address,omitempty"`
	Email    string   `json:"email,omitempty"`
}

// Event is a restaurant event blocking a table, either on a single date or
// recurring daily.
type Event struct {
	ID       int64    `json:"id,omitempty"`
	Date     string   `json:"date"`
	Hour     string   `json:"hour"`
	Duration float64  `json:"duration"`
	Table    TableRef `json:"table"`
	Repeat   string   `json:"repeat,omitempty"`
}

// Payload is a booking submission. The service responds with the canonical
// confirmed Reservation, which is what gets ingested locally.
type Payload struct {
	Date     string   `json:"date"`
	Hour     string   `json:"hour"`
	Table    TableRef `json:"table"`
	Duration float64  `json:"duration"`
	People   int      `json:"ppl"`
	Starters []string `json:"starters"`
	Phone    string   `json:"phone"`
	Address  string   `json:"address"`
	Email    string   `json:"email,omitempty"`
}

func (r Reservation) record() occupancy.Record {
	return occupancy.Record{Date: r.Date, Hour: r.Hour, Duration: r.Duration, Table: r.Table.ID()}
}

func (e Event) record() occupancy.Record {
	return occupancy.Record{Date: e.Date, Hour: e.Hour, Duration: e.Duration, Table: e.Table.ID()}
}
