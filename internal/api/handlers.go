package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/clinicdesk/appointment-scheduling/internal/appointment"
)

var validate = validator.New()

func decodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return err
	}
	return validate.Struct(dst)
}

func createAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if err := decodeAndValidate(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
			return
		}

		start, err := appointment.ParseTimeOfDay(req.StartTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start_time", "start_time must be HH:MM")
			return
		}

		appt, err := svc.Create(r.Context(), appointment.NewAppointmentParams{
			PatientID:        uuid.MustParse(req.PatientID),
			DentistID:        uuid.MustParse(req.DentistID),
			ClinicID:         uuid.MustParse(req.ClinicID),
			PatientName:      req.PatientName,
			DentistName:      req.DentistName,
			Reason:           req.Reason,
			Date:             appointment.Date(req.Date),
			Start:            start,
			Services:         toServiceItems(req.Services),
			Discount:         req.Discount,
			Priority:         appointment.Priority(req.Priority),
			ConsultationType: appointment.ConsultationType(req.ConsultationType),
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func getAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		appt, err := svc.Get(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func listAppointmentsHandler(svc *appointment.Service, defaultPageSize int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		filter, err := parseFilter(q)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_filter", err.Error())
			return
		}

		sortBy := appointment.Sort{
			Field: appointment.SortField(q.Get("sort")),
			Desc:  strings.EqualFold(q.Get("order"), "desc"),
		}
		if sortBy.Field == "" {
			sortBy.Field = appointment.SortByDateTime
		}

		page := appointment.Page{
			Offset: atoiDefault(q.Get("offset"), 0),
			Limit:  atoiDefault(q.Get("limit"), defaultPageSize),
		}

		res, err := svc.Query(r.Context(), filter, sortBy, page)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		items := make([]AppointmentResponse, len(res.Items))
		for i, a := range res.Items {
			items[i] = toAppointmentResponse(a)
		}
		writeJSON(w, http.StatusOK, ListAppointmentsResponse{
			Items:      items,
			Total:      res.Total,
			TotalPages: res.TotalPages,
		})
	}
}

func patchAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		var req PatchAppointmentRequest
		if err := decodeAndValidate(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
			return
		}

		patch := appointment.Patch{
			Reason:      req.Reason,
			PatientName: req.PatientName,
			DentistName: req.DentistName,
		}
		if req.Priority != nil {
			p := appointment.Priority(*req.Priority)
			patch.Priority = &p
		}
		if req.ConsultationType != nil {
			c := appointment.ConsultationType(*req.ConsultationType)
			patch.ConsultationType = &c
		}

		appt, err := svc.Patch(r.Context(), id, patch)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func removeAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		if err := svc.Remove(r.Context(), id); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func transitionHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		var req TransitionRequest
		if err := decodeAndValidate(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
			return
		}

		target := appointment.Status(req.Target)
		if !target.Valid() {
			writeError(w, http.StatusBadRequest, "invalid_status", "unknown target status "+req.Target)
			return
		}

		appt, err := svc.Transition(r.Context(), id, target, appointment.TransitionMeta{
			CancelReason:      req.CancelReason,
			CancelCategory:    req.CancelCategory,
			CancelRequestedBy: req.CancelRequestedBy,
			CheckInNotes:      req.CheckInNotes,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func rescheduleHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		var req RescheduleRequest
		if err := decodeAndValidate(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
			return
		}

		start, err := appointment.ParseTimeOfDay(req.StartTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start_time", "start_time must be HH:MM")
			return
		}

		appt, err := svc.Reschedule(r.Context(), id, appointment.Date(req.Date), start, req.Reason)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func updateServicesHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		var req UpdateServicesRequest
		if err := decodeAndValidate(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
			return
		}

		appt, err := svc.UpdateServices(r.Context(), id, toServiceItems(req.Services), req.Discount)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func availableSlotsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AvailableSlotsRequest
		if err := decodeAndValidate(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
			return
		}

		templates := make([]appointment.TemplateSlot, 0, len(req.Slots))
		for _, t := range req.Slots {
			start, err := appointment.ParseTimeOfDay(t.StartTime)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_slot_time", "slot start_time must be HH:MM")
				return
			}
			end, err := appointment.ParseTimeOfDay(t.EndTime)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_slot_time", "slot end_time must be HH:MM")
				return
			}
			templates = append(templates, appointment.TemplateSlot{
				Date:      appointment.Date(t.Date),
				Start:     start,
				End:       end,
				DentistID: uuid.MustParse(t.DentistID),
				ClinicID:  uuid.MustParse(t.ClinicID),
			})
		}

		slots, err := svc.AvailableSlots(r.Context(),
			uuid.MustParse(req.DentistID),
			uuid.MustParse(req.ClinicID),
			appointment.Date(req.Date),
			templates,
		)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, SlotsResponse{Slots: slots})
	}
}

// Helpers

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func parseFilter(q map[string][]string) (appointment.Filter, error) {
	get := func(key string) string {
		if vs := q[key]; len(vs) > 0 {
			return vs[0]
		}
		return ""
	}

	var f appointment.Filter

	if v := get("from"); v != "" {
		d, err := appointment.ParseDate(v)
		if err != nil {
			return f, err
		}
		f.From = d
	}
	if v := get("to"); v != "" {
		d, err := appointment.ParseDate(v)
		if err != nil {
			return f, err
		}
		f.To = d
	}
	for _, s := range splitCSV(get("status")) {
		f.Statuses = append(f.Statuses, appointment.Status(s))
	}

	var err error
	if f.DentistIDs, err = parseIDs(get("dentist_id")); err != nil {
		return f, err
	}
	if f.PatientIDs, err = parseIDs(get("patient_id")); err != nil {
		return f, err
	}
	if f.ClinicIDs, err = parseIDs(get("clinic_id")); err != nil {
		return f, err
	}

	f.Search = get("q")
	return f, nil
}

func parseIDs(csv string) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for _, s := range splitCSV(csv) {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}
