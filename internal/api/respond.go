package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/clinicdesk/appointment-scheduling/internal/appointment"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// writeDomainError maps the kernel's error kinds onto HTTP statuses:
// validation -> 400, unknown id -> 404, business-rule failures
// (conflicts, illegal transitions, lost races) -> 409.
func writeDomainError(w http.ResponseWriter, err error) {
	var (
		validationErr *appointment.ValidationError
		transitionErr *appointment.InvalidTransitionError
		conflictErr   *appointment.ConflictError
	)

	switch {
	case errors.As(err, &validationErr):
		writeError(w, http.StatusBadRequest, "validation_error", validationErr.Error())
	case errors.Is(err, appointment.ErrNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.As(err, &transitionErr):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:       "invalid_status_transition",
			Details:     transitionErr.Error(),
			From:        string(transitionErr.From),
			AttemptedTo: string(transitionErr.To),
		})
	case errors.As(err, &conflictErr):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:     "booking_conflict",
			Details:   conflictErr.Error(),
			Conflicts: conflictErr.Conflicts,
		})
	case errors.Is(err, appointment.ErrBeingBooked):
		writeError(w, http.StatusConflict, "resource_being_booked", "another booking for this resource is in progress, please retry")
	case errors.Is(err, appointment.ErrStaleStatus):
		writeError(w, http.StatusConflict, "stale_status", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
