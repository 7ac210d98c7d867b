package appointment

import "time"

// Status is the appointment lifecycle state. The set is closed: values come
// only from the constants below and transitions only from validTransitions.
type Status string

const (
	StatusScheduled      Status = "scheduled"
	StatusConfirmed      Status = "confirmed"
	StatusCheckedIn      Status = "checked_in"
	StatusInConsultation Status = "in_consultation"
	StatusCompleted      Status = "completed"
	StatusNoShow         Status = "no_show"
	StatusCancelled      Status = "cancelled"
	StatusRescheduled    Status = "rescheduled"
	StatusPaused         Status = "paused"
	StatusNeedsFollowUp  Status = "needs_follow_up"
)

// AllStatuses lists every lifecycle state, for validation and for exhaustive
// iteration in tests.
var AllStatuses = []Status{
	StatusScheduled,
	StatusConfirmed,
	StatusCheckedIn,
	StatusInConsultation,
	StatusCompleted,
	StatusNoShow,
	StatusCancelled,
	StatusRescheduled,
	StatusPaused,
	StatusNeedsFollowUp,
}

func (s Status) Valid() bool {
	for _, v := range AllStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// validTransitions is the full lifecycle graph. cancelled is terminal.
// Note the asymmetry: paused may go to rescheduled, but rescheduled only
// returns to scheduled, never back to paused.
var validTransitions = map[Status][]Status{
	StatusScheduled:      {StatusConfirmed, StatusRescheduled, StatusCancelled},
	StatusConfirmed:      {StatusCheckedIn, StatusNoShow, StatusRescheduled, StatusCancelled},
	StatusCheckedIn:      {StatusInConsultation, StatusCancelled},
	StatusInConsultation: {StatusCompleted, StatusPaused, StatusNeedsFollowUp},
	StatusPaused:         {StatusInConsultation, StatusRescheduled},
	StatusCompleted:      {StatusNeedsFollowUp},
	StatusNoShow:         {StatusRescheduled, StatusCancelled},
	StatusRescheduled:    {StatusScheduled, StatusCancelled},
	StatusNeedsFollowUp:  {StatusCompleted},
	StatusCancelled:      {},
}

// CanTransition reports whether the state machine allows from -> to.
func CanTransition(from, to Status) bool {
	for _, t := range validTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// TransitionMeta carries the status-specific details a transition may need.
// Fields irrelevant to the target status are ignored.
type TransitionMeta struct {
	CancelReason      string
	CancelCategory    string
	CancelRequestedBy string
	CheckInNotes      string
}

// ApplyTransition returns a copy of a with the new status and any
// status-specific side fields populated from meta. It is pure apart from
// reading the clock; persistence is the caller's job.
func ApplyTransition(a Appointment, target Status, meta TransitionMeta) (Appointment, error) {
	if !CanTransition(a.Status, target) {
		return Appointment{}, &InvalidTransitionError{From: a.Status, To: target}
	}

	now := time.Now().UTC()
	next := a.clone()
	next.Status = target
	next.UpdatedAt = now

	switch target {
	case StatusCancelled:
		next.Cancellation = &Cancellation{
			Reason:      meta.CancelReason,
			Category:    meta.CancelCategory,
			RequestedBy: meta.CancelRequestedBy,
			RequestedAt: now,
		}
	case StatusCheckedIn:
		next.CheckIn = &CheckIn{At: now, Notes: meta.CheckInNotes}
	case StatusCompleted:
		next.CompletedAt = &now
	}

	return next, nil
}
