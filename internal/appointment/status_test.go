package appointment

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func testAppointment(status Status) Appointment {
	return Appointment{
		ID:               uuid.New(),
		Number:           "APT-TEST0001",
		Date:             "2025-08-25",
		Window:           Window{Start: 9 * 60, End: 9*60 + 45},
		PatientID:        uuid.New(),
		DentistID:        uuid.New(),
		ClinicID:         uuid.New(),
		Status:           status,
		Priority:         PriorityNormal,
		ConsultationType: ConsultTreatment,
		Services: []ServiceItem{
			{Code: "EXAM", Name: "Routine examination", Duration: 45, Cost: 6500},
		},
		Cost:      Cost{Subtotal: 6500, Total: 6500},
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
}

func allowed(from Status) map[Status]bool {
	out := make(map[Status]bool)
	for _, t := range validTransitions[from] {
		out[t] = true
	}
	return out
}

func TestCanTransitionClosure(t *testing.T) {
	// Every pair not in the table must be rejected, and every pair in the
	// table accepted.
	for _, from := range AllStatuses {
		want := allowed(from)
		for _, to := range AllStatuses {
			got := CanTransition(from, to)
			if got != want[to] {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want[to])
			}
		}
	}
}

func TestCancelledIsTerminal(t *testing.T) {
	for _, to := range AllStatuses {
		if CanTransition(StatusCancelled, to) {
			t.Errorf("cancelled must have no outgoing transitions, but %s is allowed", to)
		}
		if _, err := ApplyTransition(testAppointment(StatusCancelled), to, TransitionMeta{}); err == nil {
			t.Errorf("ApplyTransition out of cancelled to %s must fail", to)
		}
	}
}

func TestApplyTransitionRejectsIllegalMove(t *testing.T) {
	// completed is only reachable from in_consultation or needs_follow_up.
	appt := testAppointment(StatusConfirmed)

	_, err := ApplyTransition(appt, StatusCompleted, TransitionMeta{})
	var transitionErr *InvalidTransitionError
	if !errors.As(err, &transitionErr) {
		t.Fatalf("want InvalidTransitionError, got %v", err)
	}
	if transitionErr.From != StatusConfirmed || transitionErr.To != StatusCompleted {
		t.Errorf("error carries %s -> %s, want confirmed -> completed", transitionErr.From, transitionErr.To)
	}
}

func TestApplyTransitionCompletesConsultation(t *testing.T) {
	appt := testAppointment(StatusInConsultation)

	next, err := ApplyTransition(appt, StatusCompleted, TransitionMeta{})
	if err != nil {
		t.Fatalf("ApplyTransition: %v", err)
	}
	if next.Status != StatusCompleted {
		t.Errorf("status = %s, want completed", next.Status)
	}
	if next.CompletedAt == nil {
		t.Error("CompletedAt must be set on completion")
	}
	if appt.Status != StatusInConsultation {
		t.Error("input appointment must not be mutated")
	}
}

func TestApplyTransitionPopulatesCancellation(t *testing.T) {
	appt := testAppointment(StatusScheduled)

	next, err := ApplyTransition(appt, StatusCancelled, TransitionMeta{
		CancelReason:      "patient request",
		CancelCategory:    "patient",
		CancelRequestedBy: "front desk",
	})
	if err != nil {
		t.Fatalf("ApplyTransition: %v", err)
	}
	if next.Cancellation == nil {
		t.Fatal("cancellation details must be populated")
	}
	if next.Cancellation.Reason != "patient request" ||
		next.Cancellation.Category != "patient" ||
		next.Cancellation.RequestedBy != "front desk" {
		t.Errorf("cancellation = %+v", next.Cancellation)
	}
	if next.Cancellation.RequestedAt.IsZero() {
		t.Error("cancellation timestamp must be set")
	}
}

func TestApplyTransitionRecordsCheckIn(t *testing.T) {
	appt := testAppointment(StatusConfirmed)

	next, err := ApplyTransition(appt, StatusCheckedIn, TransitionMeta{CheckInNotes: "arrived early"})
	if err != nil {
		t.Fatalf("ApplyTransition: %v", err)
	}
	if next.CheckIn == nil || next.CheckIn.Notes != "arrived early" {
		t.Errorf("check-in = %+v", next.CheckIn)
	}
}

func TestPausedRescheduledAsymmetry(t *testing.T) {
	// paused may enter rescheduled, but rescheduled only returns to
	// scheduled, never back to paused.
	if !CanTransition(StatusPaused, StatusRescheduled) {
		t.Error("paused -> rescheduled must be allowed")
	}
	if CanTransition(StatusRescheduled, StatusPaused) {
		t.Error("rescheduled -> paused must not be allowed")
	}
	if !CanTransition(StatusRescheduled, StatusScheduled) {
		t.Error("rescheduled -> scheduled must be allowed")
	}
}

func TestStatusValid(t *testing.T) {
	for _, s := range AllStatuses {
		if !s.Valid() {
			t.Errorf("%s must be valid", s)
		}
	}
	if Status("on_hold").Valid() {
		t.Error("unknown status must be invalid")
	}
}
