package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinicdesk/appointment-scheduling/internal/appointment"
)

type serviceItemPayload struct {
	Code     string `json:"code" validate:"required"`
	Name     string `json:"name" validate:"required"`
	Duration int    `json:"duration" validate:"required,gt=0"`
	Cost     int64  `json:"cost" validate:"gte=0"`
}

type CreateAppointmentRequest struct {
	PatientID        string               `json:"patient_id" validate:"required,uuid"`
	DentistID        string               `json:"dentist_id" validate:"required,uuid"`
	ClinicID         string               `json:"clinic_id" validate:"required,uuid"`
	PatientName      string               `json:"patient_name"`
	DentistName      string               `json:"dentist_name"`
	Reason           string               `json:"reason"`
	Date             string               `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime        string               `json:"start_time" validate:"required"`
	Priority         string               `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
	ConsultationType string               `json:"consultation_type" validate:"omitempty,oneof=first_visit follow_up treatment emergency other"`
	Discount         int64                `json:"discount" validate:"gte=0"`
	Services         []serviceItemPayload `json:"services" validate:"required,min=1,dive"`
}

type TransitionRequest struct {
	Target            string `json:"target" validate:"required"`
	CancelReason      string `json:"cancel_reason"`
	CancelCategory    string `json:"cancel_category"`
	CancelRequestedBy string `json:"cancel_requested_by"`
	CheckInNotes      string `json:"check_in_notes"`
}

type RescheduleRequest struct {
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime string `json:"start_time" validate:"required"`
	Reason    string `json:"reason"`
}

type UpdateServicesRequest struct {
	Services []serviceItemPayload `json:"services" validate:"required,min=1,dive"`
	Discount int64                `json:"discount" validate:"gte=0"`
}

type PatchAppointmentRequest struct {
	Reason           *string `json:"reason"`
	PatientName      *string `json:"patient_name"`
	DentistName      *string `json:"dentist_name"`
	Priority         *string `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
	ConsultationType *string `json:"consultation_type" validate:"omitempty,oneof=first_visit follow_up treatment emergency other"`
}

type templateSlotPayload struct {
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
	DentistID string `json:"dentist_id" validate:"required,uuid"`
	ClinicID  string `json:"clinic_id" validate:"required,uuid"`
}

// AvailableSlotsRequest carries the schedule template supplied by the
// clinic configuration collaborator; the kernel never invents slots.
type AvailableSlotsRequest struct {
	DentistID string                `json:"dentist_id" validate:"required,uuid"`
	ClinicID  string                `json:"clinic_id" validate:"required,uuid"`
	Date      string                `json:"date" validate:"required,datetime=2006-01-02"`
	Slots     []templateSlotPayload `json:"slots" validate:"dive"`
}

type AppointmentResponse struct {
	ID                uuid.UUID                     `json:"id"`
	Number            string                        `json:"number"`
	Date              string                        `json:"date"`
	StartTime         string                        `json:"start_time"`
	EndTime           string                        `json:"end_time"`
	Duration          int                           `json:"duration"`
	PatientID         uuid.UUID                     `json:"patient_id"`
	DentistID         uuid.UUID                     `json:"dentist_id"`
	ClinicID          uuid.UUID                     `json:"clinic_id"`
	PatientName       string                        `json:"patient_name,omitempty"`
	DentistName       string                        `json:"dentist_name,omitempty"`
	Reason            string                        `json:"reason,omitempty"`
	Status            string                        `json:"status"`
	Priority          string                        `json:"priority"`
	ConsultationType  string                        `json:"consultation_type"`
	Services          []appointment.ServiceItem     `json:"services"`
	Cost              appointment.Cost              `json:"cost"`
	Cancellation      *appointment.Cancellation     `json:"cancellation,omitempty"`
	CheckIn           *appointment.CheckIn          `json:"check_in,omitempty"`
	CompletedAt       *time.Time                    `json:"completed_at,omitempty"`
	RescheduleHistory []appointment.RescheduleEntry `json:"reschedule_history,omitempty"`
	CreatedAt         time.Time                     `json:"created_at"`
	UpdatedAt         time.Time                     `json:"updated_at"`
}

func toAppointmentResponse(a appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:                a.ID,
		Number:            a.Number,
		Date:              string(a.Date),
		StartTime:         a.Window.Start.String(),
		EndTime:           a.Window.End.String(),
		Duration:          a.Duration(),
		PatientID:         a.PatientID,
		DentistID:         a.DentistID,
		ClinicID:          a.ClinicID,
		PatientName:       a.PatientName,
		DentistName:       a.DentistName,
		Reason:            a.Reason,
		Status:            string(a.Status),
		Priority:          string(a.Priority),
		ConsultationType:  string(a.ConsultationType),
		Services:          a.Services,
		Cost:              a.Cost,
		Cancellation:      a.Cancellation,
		CheckIn:           a.CheckIn,
		CompletedAt:       a.CompletedAt,
		RescheduleHistory: a.RescheduleHistory,
		CreatedAt:         a.CreatedAt,
		UpdatedAt:         a.UpdatedAt,
	}
}

type ListAppointmentsResponse struct {
	Items      []AppointmentResponse `json:"items"`
	Total      int                   `json:"total"`
	TotalPages int                   `json:"total_pages"`
}

type SlotsResponse struct {
	Slots []appointment.Slot `json:"slots"`
}

type ErrorResponse struct {
	Error       string                 `json:"error"`
	Details     string                 `json:"details,omitempty"`
	Conflicts   []appointment.Conflict `json:"conflicts,omitempty"`
	From        string                 `json:"from,omitempty"`
	AttemptedTo string                 `json:"attempted_to,omitempty"`
}

func toServiceItems(payloads []serviceItemPayload) []appointment.ServiceItem {
	items := make([]appointment.ServiceItem, len(payloads))
	for i, p := range payloads {
		items[i] = appointment.ServiceItem{
			Code:     p.Code,
			Name:     p.Name,
			Duration: p.Duration,
			Cost:     p.Cost,
		}
	}
	return items
}
