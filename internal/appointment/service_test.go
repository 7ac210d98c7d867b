package appointment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func newTestService() (*Service, *MemoryRepository) {
	repo := NewMemoryRepository()
	svc := NewService(repo, NewMutexLocker(), zerolog.Nop())
	return svc, repo
}

func TestServiceCreateBooksAppointment(t *testing.T) {
	svc, _ := newTestService()

	created, err := svc.Create(context.Background(), validParams())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Status != StatusScheduled {
		t.Errorf("status = %s, want scheduled", created.Status)
	}
	if created.Number == "" || created.ID == uuid.Nil {
		t.Error("identity must be assigned")
	}
}

func TestServiceCreateBlocksOnConflict(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	params := validParams()
	if _, err := svc.Create(ctx, params); err != nil {
		t.Fatalf("first create: %v", err)
	}

	// Same dentist, overlapping window, different patient and clinic.
	second := validParams()
	second.DentistID = params.DentistID
	second.Start = params.Start + 15

	_, err := svc.Create(ctx, second)
	var conflictErr *ConflictError
	if !errors.As(err, &conflictErr) {
		t.Fatalf("want ConflictError, got %v", err)
	}
	if len(conflictErr.Conflicts) != 1 || conflictErr.Conflicts[0].Kind != ConflictDentist {
		t.Errorf("conflicts = %+v", conflictErr.Conflicts)
	}

	// The failed create must not have written anything.
	res, _ := repo.Query(ctx, Filter{}, Sort{}, Page{})
	if res.Total != 1 {
		t.Errorf("repository holds %d appointments, want 1", res.Total)
	}
}

func TestServiceCreateAllowsBackToBack(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	params := validParams()
	if _, err := svc.Create(ctx, params); err != nil {
		t.Fatalf("first create: %v", err)
	}

	second := validParams()
	second.DentistID = params.DentistID
	second.ClinicID = params.ClinicID
	second.Start = params.Start + 45 // first ends exactly here

	if _, err := svc.Create(ctx, second); err != nil {
		t.Errorf("back-to-back booking must succeed, got %v", err)
	}
}

func TestServiceConcurrentCreateSingleWinner(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	base := validParams()

	const racers = 8
	var wg sync.WaitGroup
	results := make(chan error, racers)

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p := validParams()
			p.DentistID = base.DentistID // contended resource
			_, err := svc.Create(ctx, p)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var wins, conflicts int
	for err := range results {
		switch {
		case err == nil:
			wins++
		default:
			var conflictErr *ConflictError
			if !errors.As(err, &conflictErr) {
				t.Errorf("unexpected error: %v", err)
				continue
			}
			conflicts++
		}
	}

	if wins != 1 || conflicts != racers-1 {
		t.Errorf("wins = %d conflicts = %d, want exactly one winner", wins, conflicts)
	}
	res, _ := repo.Query(ctx, Filter{}, Sort{}, Page{})
	if res.Total != 1 {
		t.Errorf("repository holds %d appointments, want 1", res.Total)
	}
}

func TestServiceTransition(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, validParams())
	if err != nil {
		t.Fatal(err)
	}

	confirmed, err := svc.Transition(ctx, created.ID, StatusConfirmed, TransitionMeta{})
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if confirmed.Status != StatusConfirmed {
		t.Errorf("status = %s", confirmed.Status)
	}

	// confirmed -> completed skips the consultation and must be rejected.
	_, err = svc.Transition(ctx, created.ID, StatusCompleted, TransitionMeta{})
	var transitionErr *InvalidTransitionError
	if !errors.As(err, &transitionErr) {
		t.Fatalf("want InvalidTransitionError, got %v", err)
	}

	// Walk the legal path to completed.
	for _, target := range []Status{StatusCheckedIn, StatusInConsultation, StatusCompleted} {
		if _, err := svc.Transition(ctx, created.ID, target, TransitionMeta{}); err != nil {
			t.Fatalf("transition to %s: %v", target, err)
		}
	}

	final, _ := svc.Get(ctx, created.ID)
	if final.Status != StatusCompleted || final.CompletedAt == nil {
		t.Errorf("final = %s completedAt = %v", final.Status, final.CompletedAt)
	}
}

func TestServiceTransitionUnknownID(t *testing.T) {
	svc, _ := newTestService()
	if _, err := svc.Transition(context.Background(), uuid.New(), StatusConfirmed, TransitionMeta{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("want ErrNotFound, got %v", err)
	}
}

func TestServiceRescheduleMovesAndRecordsHistory(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, validParams())
	if err != nil {
		t.Fatal(err)
	}

	moved, err := svc.Reschedule(ctx, created.ID, "2025-08-26", 14*60, "patient asked")
	if err != nil {
		t.Fatalf("reschedule: %v", err)
	}

	if moved.Date != "2025-08-26" || moved.Window.Start != 14*60 {
		t.Errorf("moved to %s %s", moved.Date, moved.Window.Start)
	}
	if moved.Duration() != created.Duration() {
		t.Errorf("duration changed: %d -> %d", created.Duration(), moved.Duration())
	}
	if moved.Status != StatusScheduled {
		t.Errorf("status = %s, want scheduled", moved.Status)
	}
	if len(moved.RescheduleHistory) != 1 {
		t.Fatalf("history length = %d, want 1", len(moved.RescheduleHistory))
	}
	entry := moved.RescheduleHistory[0]
	if entry.Date != created.Date || entry.Start != created.Window.Start || entry.Reason != "patient asked" {
		t.Errorf("history entry = %+v", entry)
	}

	// A second move appends, never rewrites.
	again, err := svc.Reschedule(ctx, created.ID, "2025-08-27", 10*60, "dentist away")
	if err != nil {
		t.Fatal(err)
	}
	if len(again.RescheduleHistory) != 2 || again.RescheduleHistory[0] != entry {
		t.Errorf("history must be append-only: %+v", again.RescheduleHistory)
	}
}

func TestServiceRescheduleConflictLeavesOriginal(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	blocker := validParams()
	blocker.Date = "2025-08-26"
	blocker.Start = 14 * 60
	if _, err := svc.Create(ctx, blocker); err != nil {
		t.Fatal(err)
	}

	victim := validParams()
	victim.DentistID = blocker.DentistID
	created, err := svc.Create(ctx, victim)
	if err != nil {
		t.Fatal(err)
	}

	_, err = svc.Reschedule(ctx, created.ID, "2025-08-26", 14*60, "collide")
	var conflictErr *ConflictError
	if !errors.As(err, &conflictErr) {
		t.Fatalf("want ConflictError, got %v", err)
	}

	unchanged, _ := svc.Get(ctx, created.ID)
	if unchanged.Date != created.Date || len(unchanged.RescheduleHistory) != 0 {
		t.Error("failed reschedule must not leave partial writes")
	}
}

func TestServiceRescheduleIllegalFromStatus(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, validParams())
	if err != nil {
		t.Fatal(err)
	}
	for _, target := range []Status{StatusConfirmed, StatusCheckedIn, StatusInConsultation, StatusCompleted} {
		if _, err := svc.Transition(ctx, created.ID, target, TransitionMeta{}); err != nil {
			t.Fatal(err)
		}
	}

	_, err = svc.Reschedule(ctx, created.ID, "2025-08-26", 14*60, "too late")
	var transitionErr *InvalidTransitionError
	if !errors.As(err, &transitionErr) {
		t.Fatalf("want InvalidTransitionError, got %v", err)
	}
	if transitionErr.From != StatusCompleted || transitionErr.To != StatusRescheduled {
		t.Errorf("error = %+v", transitionErr)
	}
}

func TestServiceUpdateServicesRecomputes(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, validParams())
	if err != nil {
		t.Fatal(err)
	}

	updated, err := svc.UpdateServices(ctx, created.ID, []ServiceItem{
		{Code: "ROOT", Name: "Root canal treatment", Duration: 90, Cost: 45000},
	}, 5000)
	if err != nil {
		t.Fatalf("update services: %v", err)
	}

	if updated.Duration() != 90 {
		t.Errorf("duration = %d, want 90", updated.Duration())
	}
	if updated.Window.End != created.Window.Start+90 {
		t.Errorf("end = %s", updated.Window.End)
	}
	if updated.Cost.Subtotal != 45000 || updated.Cost.Total != 40000 {
		t.Errorf("cost = %+v", updated.Cost)
	}
}

func TestServiceUpdateServicesConflictOnGrow(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	first := validParams()
	created, err := svc.Create(ctx, first)
	if err != nil {
		t.Fatal(err)
	}

	neighbor := validParams()
	neighbor.DentistID = first.DentistID
	neighbor.Start = first.Start + 45
	if _, err := svc.Create(ctx, neighbor); err != nil {
		t.Fatal(err)
	}

	// Growing the first booking to 60 minutes overlaps the neighbor.
	_, err = svc.UpdateServices(ctx, created.ID, []ServiceItem{
		{Code: "FILL", Name: "Composite filling", Duration: 60, Cost: 18000},
	}, 0)
	var conflictErr *ConflictError
	if !errors.As(err, &conflictErr) {
		t.Fatalf("want ConflictError, got %v", err)
	}

	unchanged, _ := svc.Get(ctx, created.ID)
	if unchanged.Duration() != 45 {
		t.Error("failed service update must not change the stored value")
	}
}

func TestServiceAvailableSlots(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	params := validParams()
	params.Start = 9 * 60
	params.Services = []ServiceItem{{Code: "EXAM", Name: "Routine examination", Duration: 30, Cost: 6500}}
	created, err := svc.Create(ctx, params)
	if err != nil {
		t.Fatal(err)
	}

	templates := []TemplateSlot{
		{Date: created.Date, Start: 8 * 60, End: 8*60 + 30, DentistID: created.DentistID, ClinicID: created.ClinicID},
		{Date: created.Date, Start: 9 * 60, End: 9*60 + 30, DentistID: created.DentistID, ClinicID: created.ClinicID},
		{Date: created.Date, Start: 10 * 60, End: 10*60 + 30, DentistID: created.DentistID, ClinicID: created.ClinicID},
	}

	slots, err := svc.AvailableSlots(ctx, created.DentistID, created.ClinicID, created.Date, templates)
	if err != nil {
		t.Fatal(err)
	}
	if len(slots) != 2 || slots[0].Start != 8*60 || slots[1].Start != 10*60 {
		t.Errorf("slots = %+v", slots)
	}

	empty, err := svc.AvailableSlots(ctx, uuid.Nil, created.ClinicID, created.Date, templates)
	if err != nil || len(empty) != 0 {
		t.Errorf("partial selection must yield no slots, got %v %v", empty, err)
	}
}

func TestServiceMarkOverdueNoShows(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	yesterday := DateOf(time.Now().AddDate(0, 0, -1))
	tomorrow := DateOf(time.Now().AddDate(0, 0, 1))

	overdue := validParams()
	overdue.Date = yesterday
	createdOverdue, err := svc.Create(ctx, overdue)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Transition(ctx, createdOverdue.ID, StatusConfirmed, TransitionMeta{}); err != nil {
		t.Fatal(err)
	}

	// Confirmed but in the future: untouched.
	future := validParams()
	future.Date = tomorrow
	createdFuture, err := svc.Create(ctx, future)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Transition(ctx, createdFuture.ID, StatusConfirmed, TransitionMeta{}); err != nil {
		t.Fatal(err)
	}

	// Past but never confirmed: not the worker's business.
	stale := validParams()
	stale.Date = yesterday
	stale.Start = 14 * 60
	if _, err := svc.Create(ctx, stale); err != nil {
		t.Fatal(err)
	}

	marked, err := svc.MarkOverdueNoShows(ctx, time.Now())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if marked != 1 {
		t.Errorf("marked = %d, want 1", marked)
	}

	swept, _ := svc.Get(ctx, createdOverdue.ID)
	if swept.Status != StatusNoShow {
		t.Errorf("overdue status = %s, want no_show", swept.Status)
	}
	untouched, _ := svc.Get(ctx, createdFuture.ID)
	if untouched.Status != StatusConfirmed {
		t.Errorf("future status = %s, want confirmed", untouched.Status)
	}
}

func TestServiceQueryCapsLimit(t *testing.T) {
	svc, _ := newTestService()

	res, err := svc.Query(context.Background(), Filter{}, Sort{}, Page{Limit: 100000})
	if err != nil {
		t.Fatal(err)
	}
	if res.Total != 0 {
		t.Errorf("total = %d", res.Total)
	}
}
