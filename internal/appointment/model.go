package appointment

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Date is a naive calendar date in "2006-01-02" form. The scheduler has no
// timezone concept: a booking on 2025-08-25 at 09:00 means clinic wall-clock
// time, whatever that is.
type Date string

// ParseDate validates s and returns it as a Date.
func ParseDate(s string) (Date, error) {
	if _, err := time.Parse("2006-01-02", s); err != nil {
		return "", fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date(s), nil
}

// DateOf truncates t to its calendar date.
func DateOf(t time.Time) Date {
	return Date(t.Format("2006-01-02"))
}

func (d Date) IsZero() bool { return d == "" }

// Time returns the date at midnight. Panics are avoided by returning the
// zero time for an invalid value; only ParseDate-produced dates are expected.
func (d Date) Time() time.Time {
	t, _ := time.Parse("2006-01-02", string(d))
	return t
}

// Before reports whether d sorts before other. The wire form is
// lexicographically ordered, so string comparison is enough.
func (d Date) Before(other Date) bool { return d < other }

// TimeOfDay is a clock time expressed as whole minutes since midnight.
// Keeping it as an integer makes interval math and the half-open overlap
// test exact, instead of re-parsing "HH:MM" strings at every comparison.
type TimeOfDay int

const minutesPerDay = 24 * 60

// ParseTimeOfDay parses "HH:MM" (24h clock).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("parse time of day %q: want HH:MM", s)
	}
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("parse time of day %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("parse time of day %q: out of range", s)
	}
	return TimeOfDay(h*60 + m), nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

func (t TimeOfDay) Valid() bool { return t >= 0 && t <= minutesPerDay }

// MarshalJSON renders the wire form "HH:MM".
func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Window is a half-open [Start, End) interval within a single day.
type Window struct {
	Start TimeOfDay
	End   TimeOfDay
}

// Overlaps reports whether two half-open windows intersect. Back-to-back
// windows (a.End == b.Start) do not overlap.
func (w Window) Overlaps(o Window) bool {
	return w.Start < o.End && o.Start < w.End
}

// Duration is the window length in minutes.
func (w Window) Duration() int { return int(w.End - w.Start) }

func (w Window) valid() bool {
	return w.Start >= 0 && w.End <= minutesPerDay && w.Start < w.End
}

// Priority of an appointment from the scheduler's point of view.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// ConsultationType classifies the visit.
type ConsultationType string

const (
	ConsultFirstVisit ConsultationType = "first_visit"
	ConsultFollowUp   ConsultationType = "follow_up"
	ConsultTreatment  ConsultationType = "treatment"
	ConsultEmergency  ConsultationType = "emergency"
	ConsultOther      ConsultationType = "other"
)

func (c ConsultationType) Valid() bool {
	switch c {
	case ConsultFirstVisit, ConsultFollowUp, ConsultTreatment, ConsultEmergency, ConsultOther:
		return true
	}
	return false
}

// ServiceItem is one line of work within an appointment. Costs are integer
// cents; durations are whole minutes.
type ServiceItem struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Duration int    `json:"duration"`
	Cost     int64  `json:"cost"`
}

// Cost totals derived from the service list. Total = Subtotal - Discount.
type Cost struct {
	Subtotal int64 `json:"subtotal"`
	Discount int64 `json:"discount"`
	Total    int64 `json:"total"`
}

// Cancellation records why and by whom an appointment was cancelled. It is
// populated only when the appointment reaches the cancelled status.
type Cancellation struct {
	Reason      string    `json:"reason"`
	Category    string    `json:"category"`
	RequestedBy string    `json:"requested_by"`
	RequestedAt time.Time `json:"requested_at"`
}

// CheckIn records patient arrival details, set on the checked_in transition.
type CheckIn struct {
	At    time.Time `json:"at"`
	Notes string    `json:"notes,omitempty"`
}

// RescheduleEntry is one prior placement of the appointment. Entries are
// append-only: once recorded they are never edited or removed.
type RescheduleEntry struct {
	Date   Date      `json:"date"`
	Start  TimeOfDay `json:"start"`
	End    TimeOfDay `json:"end"`
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
}

// Appointment is the central scheduling entity. Values are treated as
// immutable: mutation goes through ApplyTransition or the repository, both
// of which work on copies.
type Appointment struct {
	ID     uuid.UUID
	Number string

	Date   Date
	Window Window

	PatientID uuid.UUID
	DentistID uuid.UUID
	ClinicID  uuid.UUID

	// Denormalized display fields carried on the row so that repository
	// free-text search does not need to join foreign entities.
	PatientName string
	DentistName string
	Reason      string

	Status           Status
	Priority         Priority
	ConsultationType ConsultationType

	Services []ServiceItem
	Cost     Cost

	Cancellation      *Cancellation
	CheckIn           *CheckIn
	CompletedAt       *time.Time
	RescheduleHistory []RescheduleEntry

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Duration is the booked length in minutes, always equal to the window
// length and to the sum of service durations.
func (a Appointment) Duration() int { return a.Window.Duration() }

// clone returns a deep copy so that stored values can never be mutated
// through slices or pointers held by callers.
func (a Appointment) clone() Appointment {
	c := a
	if a.Services != nil {
		c.Services = make([]ServiceItem, len(a.Services))
		copy(c.Services, a.Services)
	}
	if a.RescheduleHistory != nil {
		c.RescheduleHistory = make([]RescheduleEntry, len(a.RescheduleHistory))
		copy(c.RescheduleHistory, a.RescheduleHistory)
	}
	if a.Cancellation != nil {
		cc := *a.Cancellation
		c.Cancellation = &cc
	}
	if a.CheckIn != nil {
		ci := *a.CheckIn
		c.CheckIn = &ci
	}
	if a.CompletedAt != nil {
		t := *a.CompletedAt
		c.CompletedAt = &t
	}
	return c
}

// NewAppointmentParams carries everything the booking flow supplies when
// creating an appointment. The window end, duration and cost totals are
// derived, never supplied.
type NewAppointmentParams struct {
	PatientID uuid.UUID
	DentistID uuid.UUID
	ClinicID  uuid.UUID

	PatientName string
	DentistName string
	Reason      string

	Date  Date
	Start TimeOfDay

	Services []ServiceItem
	Discount int64

	Priority         Priority
	ConsultationType ConsultationType
}

// NewAppointment is the only way to construct an Appointment from scratch.
// It validates the required fields, derives the window from the service
// durations and sums the cost, and starts the lifecycle at scheduled.
func NewAppointment(p NewAppointmentParams) (Appointment, error) {
	if p.PatientID == uuid.Nil {
		return Appointment{}, &ValidationError{Field: "patient_id", Reason: "is required"}
	}
	if p.DentistID == uuid.Nil {
		return Appointment{}, &ValidationError{Field: "dentist_id", Reason: "is required"}
	}
	if p.ClinicID == uuid.Nil {
		return Appointment{}, &ValidationError{Field: "clinic_id", Reason: "is required"}
	}
	if p.Date.IsZero() {
		return Appointment{}, &ValidationError{Field: "date", Reason: "is required"}
	}
	if _, err := ParseDate(string(p.Date)); err != nil {
		return Appointment{}, &ValidationError{Field: "date", Reason: "is not a valid date"}
	}
	if len(p.Services) == 0 {
		return Appointment{}, &ValidationError{Field: "services", Reason: "must not be empty"}
	}

	var totalMin int
	var subtotal int64
	for i, s := range p.Services {
		if s.Duration <= 0 {
			return Appointment{}, &ValidationError{
				Field:  fmt.Sprintf("services[%d].duration", i),
				Reason: "must be positive",
			}
		}
		if s.Cost < 0 {
			return Appointment{}, &ValidationError{
				Field:  fmt.Sprintf("services[%d].cost", i),
				Reason: "must not be negative",
			}
		}
		totalMin += s.Duration
		subtotal += s.Cost
	}
	if p.Discount < 0 || p.Discount > subtotal {
		return Appointment{}, &ValidationError{Field: "discount", Reason: "out of range"}
	}

	w := Window{Start: p.Start, End: p.Start + TimeOfDay(totalMin)}
	if !w.valid() {
		return Appointment{}, &ValidationError{Field: "start_time", Reason: "window falls outside the day"}
	}

	priority := p.Priority
	if priority == "" {
		priority = PriorityNormal
	}
	if !priority.Valid() {
		return Appointment{}, &ValidationError{Field: "priority", Reason: "unknown value"}
	}
	consult := p.ConsultationType
	if consult == "" {
		consult = ConsultOther
	}
	if !consult.Valid() {
		return Appointment{}, &ValidationError{Field: "consultation_type", Reason: "unknown value"}
	}

	services := make([]ServiceItem, len(p.Services))
	copy(services, p.Services)

	return Appointment{
		Date:             p.Date,
		Window:           w,
		PatientID:        p.PatientID,
		DentistID:        p.DentistID,
		ClinicID:         p.ClinicID,
		PatientName:      p.PatientName,
		DentistName:      p.DentistName,
		Reason:           p.Reason,
		Status:           StatusScheduled,
		Priority:         priority,
		ConsultationType: consult,
		Services:         services,
		Cost: Cost{
			Subtotal: subtotal,
			Discount: p.Discount,
			Total:    subtotal - p.Discount,
		},
	}, nil
}

// NewBookingNumber generates a human-readable booking code.
func NewBookingNumber() string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return "APT-" + raw[:8]
}
