package appointment

import (
	"context"

	"github.com/google/uuid"
)

// Filter selects appointments for a query. Zero-valued fields match
// everything.
type Filter struct {
	From Date
	To   Date

	Statuses   []Status
	DentistIDs []uuid.UUID
	PatientIDs []uuid.UUID
	ClinicIDs  []uuid.UUID

	// Search is a case-insensitive substring match across patient name,
	// dentist name and reason.
	Search string
}

// SortField names a supported query ordering.
type SortField string

const (
	SortByDateTime    SortField = "date_time"
	SortByPatientName SortField = "patient_name"
	SortByDentistName SortField = "dentist_name"
	SortByTotalCost   SortField = "total_cost"
)

type Sort struct {
	Field SortField
	Desc  bool
}

// Page is offset/limit pagination. Limit <= 0 means no limit.
type Page struct {
	Offset int
	Limit  int
}

// QueryResult carries one page of matches plus the totals computed before
// slicing.
type QueryResult struct {
	Items      []Appointment
	Total      int
	TotalPages int
}

// Patch is a partial update of the mutable display fields. Temporal, status
// and service-list changes go through the Service, which re-runs the
// relevant checks; the repository merge stays dumb.
type Patch struct {
	Reason           *string
	PatientName      *string
	DentistName      *string
	Priority         *Priority
	ConsultationType *ConsultationType
}

// Repository holds the appointment collection. It performs no conflict or
// transition checks of its own; the orchestrating service runs those before
// writing.
type Repository interface {
	// Create validates required fields, assigns id, number and timestamps
	// when absent, and inserts.
	Create(ctx context.Context, a Appointment) (Appointment, error)

	// Update merges patch into the stored appointment and refreshes
	// updated_at.
	Update(ctx context.Context, id uuid.UUID, patch Patch) (Appointment, error)

	// Save replaces the stored appointment with a, guarded by a
	// compare-and-swap on the status the caller read (expect). A mismatch
	// returns ErrStaleStatus.
	Save(ctx context.Context, a Appointment, expect Status) (Appointment, error)

	// Remove hard-deletes, for administrative cleanup only; cancellation
	// is a status, not a removal.
	Remove(ctx context.Context, id uuid.UUID) error

	GetByID(ctx context.Context, id uuid.UUID) (Appointment, error)

	// ListByDate returns every appointment on the given date, the
	// comparison population for conflict detection.
	ListByDate(ctx context.Context, date Date) ([]Appointment, error)

	Query(ctx context.Context, f Filter, s Sort, p Page) (QueryResult, error)
}

// validateStored checks the required-field invariants the repository
// enforces on insert, mirroring what NewAppointment guarantees for values
// built through the factory.
func validateStored(a Appointment) error {
	if a.PatientID == uuid.Nil {
		return &ValidationError{Field: "patient_id", Reason: "is required"}
	}
	if a.DentistID == uuid.Nil {
		return &ValidationError{Field: "dentist_id", Reason: "is required"}
	}
	if a.ClinicID == uuid.Nil {
		return &ValidationError{Field: "clinic_id", Reason: "is required"}
	}
	if a.Date.IsZero() {
		return &ValidationError{Field: "date", Reason: "is required"}
	}
	if !a.Window.valid() {
		return &ValidationError{Field: "start_time", Reason: "window is invalid"}
	}
	if len(a.Services) == 0 {
		return &ValidationError{Field: "services", Reason: "must not be empty"}
	}
	if !a.Status.Valid() {
		return &ValidationError{Field: "status", Reason: "unknown value"}
	}
	return nil
}

func (f Filter) matches(a Appointment) bool {
	if !f.From.IsZero() && a.Date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && f.To.Before(a.Date) {
		return false
	}
	if len(f.Statuses) > 0 && !containsStatus(f.Statuses, a.Status) {
		return false
	}
	if len(f.DentistIDs) > 0 && !containsID(f.DentistIDs, a.DentistID) {
		return false
	}
	if len(f.PatientIDs) > 0 && !containsID(f.PatientIDs, a.PatientID) {
		return false
	}
	if len(f.ClinicIDs) > 0 && !containsID(f.ClinicIDs, a.ClinicID) {
		return false
	}
	if f.Search != "" && !matchesSearch(a, f.Search) {
		return false
	}
	return true
}

func containsStatus(set []Status, s Status) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

func containsID(set []uuid.UUID, id uuid.UUID) bool {
	for _, v := range set {
		if v == id {
			return true
		}
	}
	return false
}
