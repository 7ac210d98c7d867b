package appointment

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is the in-process store: a mutex-guarded map with
// snapshot reads. It backs tests and single-node deployments and is the
// reference for PgRepository's behavior.
type MemoryRepository struct {
	mu    sync.RWMutex
	items map[uuid.UUID]Appointment
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{items: make(map[uuid.UUID]Appointment)}
}

func (r *MemoryRepository) Create(ctx context.Context, a Appointment) (Appointment, error) {
	if err := validateStored(a); err != nil {
		return Appointment{}, err
	}

	now := time.Now().UTC()
	stored := a.clone()
	if stored.ID == uuid.Nil {
		stored.ID = uuid.New()
	}
	if stored.Number == "" {
		stored.Number = NewBookingNumber()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.items[stored.ID]; exists {
		return Appointment{}, &ValidationError{Field: "id", Reason: "already exists"}
	}
	r.items[stored.ID] = stored
	return stored.clone(), nil
}

func (r *MemoryRepository) Update(ctx context.Context, id uuid.UUID, patch Patch) (Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.items[id]
	if !ok {
		return Appointment{}, ErrNotFound
	}

	next := stored.clone()
	if patch.Reason != nil {
		next.Reason = *patch.Reason
	}
	if patch.PatientName != nil {
		next.PatientName = *patch.PatientName
	}
	if patch.DentistName != nil {
		next.DentistName = *patch.DentistName
	}
	if patch.Priority != nil {
		if !patch.Priority.Valid() {
			return Appointment{}, &ValidationError{Field: "priority", Reason: "unknown value"}
		}
		next.Priority = *patch.Priority
	}
	if patch.ConsultationType != nil {
		if !patch.ConsultationType.Valid() {
			return Appointment{}, &ValidationError{Field: "consultation_type", Reason: "unknown value"}
		}
		next.ConsultationType = *patch.ConsultationType
	}
	next.UpdatedAt = time.Now().UTC()

	r.items[id] = next
	return next.clone(), nil
}

func (r *MemoryRepository) Save(ctx context.Context, a Appointment, expect Status) (Appointment, error) {
	if err := validateStored(a); err != nil {
		return Appointment{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.items[a.ID]
	if !ok {
		return Appointment{}, ErrNotFound
	}
	if stored.Status != expect {
		return Appointment{}, ErrStaleStatus
	}

	next := a.clone()
	next.CreatedAt = stored.CreatedAt
	next.UpdatedAt = time.Now().UTC()
	r.items[a.ID] = next
	return next.clone(), nil
}

func (r *MemoryRepository) Remove(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return ErrNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, id uuid.UUID) (Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.items[id]
	if !ok {
		return Appointment{}, ErrNotFound
	}
	return stored.clone(), nil
}

func (r *MemoryRepository) ListByDate(ctx context.Context, date Date) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Appointment
	for _, a := range r.items {
		if a.Date == date {
			out = append(out, a.clone())
		}
	}
	sortAppointments(out, Sort{Field: SortByDateTime})
	return out, nil
}

func (r *MemoryRepository) Query(ctx context.Context, f Filter, s Sort, p Page) (QueryResult, error) {
	r.mu.RLock()
	var matched []Appointment
	for _, a := range r.items {
		if f.matches(a) {
			matched = append(matched, a.clone())
		}
	}
	r.mu.RUnlock()

	sortAppointments(matched, s)

	total := len(matched)
	items := paginate(matched, p)

	return QueryResult{
		Items:      items,
		Total:      total,
		TotalPages: totalPages(total, p.Limit),
	}, nil
}

func matchesSearch(a Appointment, search string) bool {
	needle := strings.ToLower(search)
	return strings.Contains(strings.ToLower(a.PatientName), needle) ||
		strings.Contains(strings.ToLower(a.DentistName), needle) ||
		strings.Contains(strings.ToLower(a.Reason), needle)
}

func sortAppointments(items []Appointment, s Sort) {
	less := func(a, b Appointment) bool {
		switch s.Field {
		case SortByPatientName:
			if a.PatientName != b.PatientName {
				return a.PatientName < b.PatientName
			}
		case SortByDentistName:
			if a.DentistName != b.DentistName {
				return a.DentistName < b.DentistName
			}
		case SortByTotalCost:
			if a.Cost.Total != b.Cost.Total {
				return a.Cost.Total < b.Cost.Total
			}
		}
		// date+time is both the default ordering and the tie-breaker.
		if a.Date != b.Date {
			return a.Date.Before(b.Date)
		}
		return a.Window.Start < b.Window.Start
	}

	sort.SliceStable(items, func(i, j int) bool {
		if s.Desc {
			return less(items[j], items[i])
		}
		return less(items[i], items[j])
	})
}

func paginate(items []Appointment, p Page) []Appointment {
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Offset >= len(items) {
		return []Appointment{}
	}
	items = items[p.Offset:]
	if p.Limit > 0 && p.Limit < len(items) {
		items = items[:p.Limit]
	}
	return items
}

func totalPages(total, limit int) int {
	if limit <= 0 {
		if total > 0 {
			return 1
		}
		return 0
	}
	return (total + limit - 1) / limit
}
