package appointment

import "github.com/google/uuid"

// ConflictKind names the shared resource two appointments collide on.
type ConflictKind string

const (
	ConflictPatient ConflictKind = "PATIENT"
	ConflictDentist ConflictKind = "DENTIST"
	ConflictClinic  ConflictKind = "CLINIC"
)

// Conflict is one detected collision between a candidate booking and an
// existing appointment.
type Conflict struct {
	Kind ConflictKind `json:"kind"`
	With uuid.UUID    `json:"with"`
}

// FindConflicts checks candidate against the population and returns every
// collision found. An empty result means the candidate is bookable.
//
// An existing appointment is only a conflict source when all of these hold:
// it is not the candidate itself, it is on the same date, it is not
// cancelled, it shares the patient, dentist or clinic, and its window
// overlaps the candidate's under half-open semantics. One conflict is
// emitted per shared resource, so a same-dentist same-clinic overlap yields
// both a DENTIST and a CLINIC entry.
func FindConflicts(candidate Appointment, population []Appointment) []Conflict {
	var conflicts []Conflict

	for _, other := range population {
		if other.ID == candidate.ID {
			continue
		}
		if other.Date != candidate.Date {
			continue
		}
		if other.Status == StatusCancelled {
			continue
		}
		if !candidate.Window.Overlaps(other.Window) {
			continue
		}

		if candidate.PatientID != uuid.Nil && other.PatientID == candidate.PatientID {
			conflicts = append(conflicts, Conflict{Kind: ConflictPatient, With: other.ID})
		}
		if candidate.DentistID != uuid.Nil && other.DentistID == candidate.DentistID {
			conflicts = append(conflicts, Conflict{Kind: ConflictDentist, With: other.ID})
		}
		if candidate.ClinicID != uuid.Nil && other.ClinicID == candidate.ClinicID {
			conflicts = append(conflicts, Conflict{Kind: ConflictClinic, With: other.ID})
		}
	}

	return conflicts
}
