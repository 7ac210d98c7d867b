package appointment

import "github.com/google/uuid"

// TemplateSlot is one bookable window from the clinic's schedule
// configuration. Templates are supplied by the caller; the resolver never
// invents slots of its own.
type TemplateSlot struct {
	Date      Date      `json:"date"`
	Start     TimeOfDay `json:"start"`
	End       TimeOfDay `json:"end"`
	DentistID uuid.UUID `json:"dentist_id"`
	ClinicID  uuid.UUID `json:"clinic_id"`
}

// Slot is a template window the scheduler can still book.
type Slot struct {
	Date      Date      `json:"date"`
	Start     TimeOfDay `json:"start"`
	End       TimeOfDay `json:"end"`
	DentistID uuid.UUID `json:"dentist_id"`
	ClinicID  uuid.UUID `json:"clinic_id"`
	Available bool      `json:"available"`
}

// AvailableSlots filters templates down to the windows not already consumed
// by a non-cancelled appointment of the given dentist or clinic on date.
// Template order is preserved. A partial selection (nil dentist or clinic,
// zero date) means "no answer yet" and returns nothing rather than
// everything.
func AvailableSlots(dentistID, clinicID uuid.UUID, date Date, templates []TemplateSlot, population []Appointment) []Slot {
	if dentistID == uuid.Nil || clinicID == uuid.Nil || date.IsZero() {
		return nil
	}

	var out []Slot
	for _, t := range templates {
		if t.DentistID != dentistID || t.ClinicID != clinicID || t.Date != date {
			continue
		}

		// Probe the window as a patient-less candidate scoped to this
		// dentist and clinic.
		probe := Appointment{
			Date:      t.Date,
			Window:    Window{Start: t.Start, End: t.End},
			DentistID: t.DentistID,
			ClinicID:  t.ClinicID,
		}
		if len(FindConflicts(probe, population)) > 0 {
			continue
		}

		out = append(out, Slot{
			Date:      t.Date,
			Start:     t.Start,
			End:       t.End,
			DentistID: t.DentistID,
			ClinicID:  t.ClinicID,
			Available: true,
		})
	}
	return out
}
