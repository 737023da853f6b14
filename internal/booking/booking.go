// Package booking describes a completed lesson reservation and renders the
// messages sent about it.
package booking

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Details are the fields collected during the booking conversation.
type Details struct {
	Discipline string `json:"discipline,omitempty"`
	Weekday    string `json:"weekday,omitempty"`
	Time       string `json:"time,omitempty"`
	Date       string `json:"date,omitempty"` // yyyy-mm-dd
	Name       string `json:"name,omitempty"`
	Surname    string `json:"surname,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

// Complete reports whether every field needed for a reservation is present.
func (d Details) Complete() bool {
	return d.Discipline != "" && d.Time != "" && d.Date != "" &&
		d.Name != "" && d.Surname != "" && d.Phone != ""
}

// Booking is a reserved seat handed once to the notifiers. It is not persisted.
type Booking struct {
	Reference      string    `json:"reference"`
	Identity       string    `json:"identity"`
	Details        Details   `json:"details"`
	RemainingSeats int       `json:"remaining_seats"`
	ReservedAt     time.Time `json:"reserved_at"`
}

// New builds a booking with a fresh reference.
func New(identity string, details Details, remainingSeats int, reservedAt time.Time) Booking {
	return Booking{
		Reference:      strings.ToUpper(uuid.NewString()[:8]),
		Identity:       identity,
		Details:        details,
		RemainingSeats: remainingSeats,
		ReservedAt:     reservedAt.UTC(),
	}
}

// FullName joins name and surname.
func (b Booking) FullName() string {
	return strings.TrimSpace(b.Details.Name + " " + b.Details.Surname)
}

// DisplayDate formats the lesson date as "Monday 19/10/2026".
func (b Booking) DisplayDate() string {
	return DisplayDate(b.Details.Date)
}

// DisplayDate formats an ISO date for people; unparseable input is returned as is.
func DisplayDate(iso string) string {
	d, err := time.Parse("2006-01-02", iso)
	if err != nil {
		return iso
	}
	return d.Format("Monday 02/01/2006")
}
