package appointment

import (
	"testing"

	"github.com/google/uuid"
)

func TestWindowOverlapSymmetry(t *testing.T) {
	cases := []struct {
		name string
		a, b Window
		want bool
	}{
		{"identical", Window{540, 585}, Window{540, 585}, true},
		{"partial", Window{540, 585}, Window{570, 600}, true},
		{"contained", Window{540, 600}, Window{555, 570}, true},
		{"back_to_back", Window{540, 570}, Window{570, 600}, false},
		{"disjoint", Window{480, 510}, Window{540, 570}, false},
		{"one_minute_overlap", Window{540, 571}, Window{570, 600}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.a.Overlaps(tc.b); got != tc.want {
				t.Errorf("overlap(%v, %v) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
			if tc.a.Overlaps(tc.b) != tc.b.Overlaps(tc.a) {
				t.Errorf("overlap must be symmetric for %v, %v", tc.a, tc.b)
			}
		})
	}
}

func TestFindConflictsSharedDentistAndClinic(t *testing.T) {
	// Existing 09:00-09:45, candidate 09:30-10:00, same dentist and clinic
	// but different patients: one DENTIST and one CLINIC conflict.
	existing := testAppointment(StatusScheduled)

	candidate := testAppointment(StatusScheduled)
	candidate.DentistID = existing.DentistID
	candidate.ClinicID = existing.ClinicID
	candidate.Window = Window{Start: 9*60 + 30, End: 10 * 60}

	conflicts := FindConflicts(candidate, []Appointment{existing})
	if len(conflicts) != 2 {
		t.Fatalf("got %d conflicts, want 2: %+v", len(conflicts), conflicts)
	}

	kinds := map[ConflictKind]bool{}
	for _, c := range conflicts {
		kinds[c.Kind] = true
		if c.With != existing.ID {
			t.Errorf("conflict references %s, want %s", c.With, existing.ID)
		}
	}
	if !kinds[ConflictDentist] || !kinds[ConflictClinic] {
		t.Errorf("want DENTIST and CLINIC kinds, got %+v", kinds)
	}
	if kinds[ConflictPatient] {
		t.Error("different patients must not yield a PATIENT conflict")
	}
}

func TestFindConflictsDisjointResources(t *testing.T) {
	existing := testAppointment(StatusScheduled)

	candidate := testAppointment(StatusScheduled)
	candidate.Window = Window{Start: 9*60 + 30, End: 10 * 60}

	if got := FindConflicts(candidate, []Appointment{existing}); len(got) != 0 {
		t.Errorf("unrelated dentist/patient/clinic must not conflict, got %+v", got)
	}
}

func TestFindConflictsBackToBack(t *testing.T) {
	existing := testAppointment(StatusScheduled)
	existing.Window = Window{Start: 9 * 60, End: 9*60 + 30}

	candidate := testAppointment(StatusScheduled)
	candidate.DentistID = existing.DentistID
	candidate.Window = Window{Start: 9*60 + 30, End: 10 * 60}

	if got := FindConflicts(candidate, []Appointment{existing}); len(got) != 0 {
		t.Errorf("back-to-back bookings must not conflict, got %+v", got)
	}
}

func TestFindConflictsSelfExclusion(t *testing.T) {
	appt := testAppointment(StatusScheduled)

	if got := FindConflicts(appt, []Appointment{appt}); len(got) != 0 {
		t.Errorf("an appointment must never conflict with itself, got %+v", got)
	}
}

func TestFindConflictsCancelledExcluded(t *testing.T) {
	existing := testAppointment(StatusCancelled)

	candidate := testAppointment(StatusScheduled)
	candidate.DentistID = existing.DentistID
	candidate.PatientID = existing.PatientID
	candidate.ClinicID = existing.ClinicID

	if got := FindConflicts(candidate, []Appointment{existing}); len(got) != 0 {
		t.Errorf("cancelled bookings must never be a conflict source, got %+v", got)
	}
}

func TestFindConflictsDifferentDate(t *testing.T) {
	existing := testAppointment(StatusScheduled)

	candidate := testAppointment(StatusScheduled)
	candidate.DentistID = existing.DentistID
	candidate.Date = "2025-08-26"

	if got := FindConflicts(candidate, []Appointment{existing}); len(got) != 0 {
		t.Errorf("different dates must not conflict, got %+v", got)
	}
}

func TestFindConflictsSamePatient(t *testing.T) {
	existing := testAppointment(StatusScheduled)

	candidate := testAppointment(StatusScheduled)
	candidate.PatientID = existing.PatientID
	candidate.Window = Window{Start: 9*60 + 15, End: 9*60 + 45}

	conflicts := FindConflicts(candidate, []Appointment{existing})
	if len(conflicts) != 1 || conflicts[0].Kind != ConflictPatient {
		t.Fatalf("want a single PATIENT conflict, got %+v", conflicts)
	}
}

func TestFindConflictsNilPatientProbe(t *testing.T) {
	// Slot probes carry no patient; a nil patient id must never match.
	existing := testAppointment(StatusScheduled)

	probe := Appointment{
		Date:      existing.Date,
		Window:    existing.Window,
		DentistID: uuid.New(),
		ClinicID:  uuid.New(),
	}

	if got := FindConflicts(probe, []Appointment{existing}); len(got) != 0 {
		t.Errorf("nil patient must not match, got %+v", got)
	}
}
