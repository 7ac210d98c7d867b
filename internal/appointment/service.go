package appointment

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	redisclient "github.com/clinicdesk/appointment-scheduling/internal/redis"
)

// Locker serializes check-then-commit sequences per scheduling resource so
// that two concurrent bookings cannot both pass conflict detection against
// a stale population.
type Locker interface {
	WithLock(ctx context.Context, keys []string, fn func(ctx context.Context) error) error
}

// Service is the orchestrating use-case layer: every scheduling action runs
// state-machine check, then conflict check, then commit, in that order.
// The repository itself stays a dumb store.
type Service struct {
	repo   Repository
	locker Locker
	log    zerolog.Logger
}

func NewService(repo Repository, locker Locker, log zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		locker: locker,
		log:    log.With().Str("component", "scheduler").Logger(),
	}
}

// resourceKeys are the lock keys for the three resources a booking can
// collide on, scoped by date. Sorted so concurrent callers always acquire
// in the same order.
func resourceKeys(a Appointment) []string {
	keys := []string{
		fmt.Sprintf("sched:%s:dentist:%s", a.Date, a.DentistID),
		fmt.Sprintf("sched:%s:patient:%s", a.Date, a.PatientID),
		fmt.Sprintf("sched:%s:clinic:%s", a.Date, a.ClinicID),
	}
	sort.Strings(keys)
	return keys
}

// Create books a new appointment: it validates through the factory, then
// holds the resource locks across the conflict check and the insert.
// Nothing is written when any check fails.
func (s *Service) Create(ctx context.Context, p NewAppointmentParams) (Appointment, error) {
	candidate, err := NewAppointment(p)
	if err != nil {
		return Appointment{}, err
	}

	var created Appointment
	err = s.locker.WithLock(ctx, resourceKeys(candidate), func(lockCtx context.Context) error {
		population, err := s.repo.ListByDate(lockCtx, candidate.Date)
		if err != nil {
			return fmt.Errorf("load population: %w", err)
		}
		if conflicts := FindConflicts(candidate, population); len(conflicts) > 0 {
			return &ConflictError{Conflicts: conflicts}
		}

		created, err = s.repo.Create(lockCtx, candidate)
		if err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return Appointment{}, ErrBeingBooked
		}
		return Appointment{}, err
	}

	s.log.Info().
		Str("appointment_id", created.ID.String()).
		Str("number", created.Number).
		Str("date", string(created.Date)).
		Str("window", created.Window.Start.String()+"-"+created.Window.End.String()).
		Msg("appointment created")

	return created, nil
}

// Transition applies a status change after the state machine approves it,
// persisting with a compare-and-swap on the status that was read.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, target Status, meta TransitionMeta) (Appointment, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Appointment{}, err
	}

	next, err := ApplyTransition(current, target, meta)
	if err != nil {
		return Appointment{}, err
	}

	saved, err := s.repo.Save(ctx, next, current.Status)
	if err != nil {
		return Appointment{}, err
	}

	s.log.Info().
		Str("appointment_id", id.String()).
		Str("from", string(current.Status)).
		Str("to", string(target)).
		Msg("status transition")

	return saved, nil
}

// Reschedule moves an appointment to a new date and start time. The move is
// only legal when the state machine allows entering rescheduled from the
// current status; the prior placement is recorded in the append-only
// history and the appointment lands back in scheduled.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, date Date, start TimeOfDay, reason string) (Appointment, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Appointment{}, err
	}
	if !CanTransition(current.Status, StatusRescheduled) {
		return Appointment{}, &InvalidTransitionError{From: current.Status, To: StatusRescheduled}
	}
	if _, err := ParseDate(string(date)); err != nil {
		return Appointment{}, &ValidationError{Field: "date", Reason: "is not a valid date"}
	}

	candidate := current.clone()
	candidate.Date = date
	candidate.Window = Window{Start: start, End: start + TimeOfDay(current.Duration())}
	if !candidate.Window.valid() {
		return Appointment{}, &ValidationError{Field: "start_time", Reason: "window falls outside the day"}
	}

	var saved Appointment
	err = s.locker.WithLock(ctx, resourceKeys(candidate), func(lockCtx context.Context) error {
		population, err := s.repo.ListByDate(lockCtx, candidate.Date)
		if err != nil {
			return fmt.Errorf("load population: %w", err)
		}
		if conflicts := FindConflicts(candidate, population); len(conflicts) > 0 {
			return &ConflictError{Conflicts: conflicts}
		}

		next := candidate
		next.RescheduleHistory = append(next.RescheduleHistory, RescheduleEntry{
			Date:   current.Date,
			Start:  current.Window.Start,
			End:    current.Window.End,
			Reason: reason,
			At:     time.Now().UTC(),
		})
		next.Status = StatusScheduled

		saved, err = s.repo.Save(lockCtx, next, current.Status)
		if err != nil {
			return fmt.Errorf("save rescheduled appointment: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return Appointment{}, ErrBeingBooked
		}
		return Appointment{}, err
	}

	s.log.Info().
		Str("appointment_id", id.String()).
		Str("from_date", string(current.Date)).
		Str("to_date", string(date)).
		Msg("appointment rescheduled")

	return saved, nil
}

// UpdateServices replaces the service line items, recomputing the window
// end and the cost totals. A grown window is re-checked for conflicts
// before anything is written.
func (s *Service) UpdateServices(ctx context.Context, id uuid.UUID, services []ServiceItem, discount int64) (Appointment, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Appointment{}, err
	}

	if len(services) == 0 {
		return Appointment{}, &ValidationError{Field: "services", Reason: "must not be empty"}
	}
	var totalMin int
	var subtotal int64
	for i, item := range services {
		if item.Duration <= 0 {
			return Appointment{}, &ValidationError{
				Field:  fmt.Sprintf("services[%d].duration", i),
				Reason: "must be positive",
			}
		}
		if item.Cost < 0 {
			return Appointment{}, &ValidationError{
				Field:  fmt.Sprintf("services[%d].cost", i),
				Reason: "must not be negative",
			}
		}
		totalMin += item.Duration
		subtotal += item.Cost
	}
	if discount < 0 || discount > subtotal {
		return Appointment{}, &ValidationError{Field: "discount", Reason: "out of range"}
	}

	candidate := current.clone()
	candidate.Services = append([]ServiceItem(nil), services...)
	candidate.Window = Window{Start: current.Window.Start, End: current.Window.Start + TimeOfDay(totalMin)}
	candidate.Cost = Cost{Subtotal: subtotal, Discount: discount, Total: subtotal - discount}
	if !candidate.Window.valid() {
		return Appointment{}, &ValidationError{Field: "services", Reason: "total duration falls outside the day"}
	}

	var saved Appointment
	err = s.locker.WithLock(ctx, resourceKeys(candidate), func(lockCtx context.Context) error {
		if candidate.Window != current.Window {
			population, err := s.repo.ListByDate(lockCtx, candidate.Date)
			if err != nil {
				return fmt.Errorf("load population: %w", err)
			}
			if conflicts := FindConflicts(candidate, population); len(conflicts) > 0 {
				return &ConflictError{Conflicts: conflicts}
			}
		}

		saved, err = s.repo.Save(lockCtx, candidate, current.Status)
		if err != nil {
			return fmt.Errorf("save services: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return Appointment{}, ErrBeingBooked
		}
		return Appointment{}, err
	}

	return saved, nil
}

// AvailableSlots resolves the bookable windows for a dentist and clinic on
// a date against the current population.
func (s *Service) AvailableSlots(ctx context.Context, dentistID, clinicID uuid.UUID, date Date, templates []TemplateSlot) ([]Slot, error) {
	if dentistID == uuid.Nil || clinicID == uuid.Nil || date.IsZero() {
		return []Slot{}, nil
	}

	population, err := s.repo.ListByDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("load population: %w", err)
	}

	slots := AvailableSlots(dentistID, clinicID, date, templates, population)
	if slots == nil {
		slots = []Slot{}
	}
	return slots, nil
}

// MarkOverdueNoShows sweeps confirmed appointments whose window has fully
// passed into no_show. Intended to be called periodically by the worker.
func (s *Service) MarkOverdueNoShows(ctx context.Context, now time.Time) (int, error) {
	today := DateOf(now)
	nowMin := TimeOfDay(now.Hour()*60 + now.Minute())

	res, err := s.repo.Query(ctx, Filter{
		Statuses: []Status{StatusConfirmed},
		To:       today,
	}, Sort{Field: SortByDateTime}, Page{})
	if err != nil {
		return 0, fmt.Errorf("find overdue confirmed appointments: %w", err)
	}

	var marked int
	for _, appt := range res.Items {
		overdue := appt.Date.Before(today) || (appt.Date == today && appt.Window.End <= nowMin)
		if !overdue {
			continue
		}

		next, err := ApplyTransition(appt, StatusNoShow, TransitionMeta{})
		if err != nil {
			continue
		}
		if _, err := s.repo.Save(ctx, next, appt.Status); err != nil {
			if errors.Is(err, ErrStaleStatus) || errors.Is(err, ErrNotFound) {
				continue
			}
			s.log.Error().Err(err).
				Str("appointment_id", appt.ID.String()).
				Msg("failed to mark no-show")
			continue
		}
		marked++
	}

	return marked, nil
}

// Get returns a single appointment by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

// Query answers filtered, sorted, paginated reads.
func (s *Service) Query(ctx context.Context, f Filter, sortBy Sort, p Page) (QueryResult, error) {
	if p.Limit < 0 {
		p.Limit = 0
	}
	if p.Limit > 200 {
		p.Limit = 200
	}
	return s.repo.Query(ctx, f, sortBy, p)
}

// Patch merges a partial update of the display fields.
func (s *Service) Patch(ctx context.Context, id uuid.UUID, patch Patch) (Appointment, error) {
	return s.repo.Update(ctx, id, patch)
}

// Remove hard-deletes an appointment; administrative cleanup only.
func (s *Service) Remove(ctx context.Context, id uuid.UUID) error {
	return s.repo.Remove(ctx, id)
}
