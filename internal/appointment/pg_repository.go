package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgRepository is the Postgres-backed store used in multi-instance
// deployments. It implements the same contract as MemoryRepository.
type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const appointmentColumns = `
	id, number, date, start_min, end_min,
	patient_id, dentist_id, clinic_id,
	patient_name, dentist_name, reason,
	status, priority, consultation_type,
	services, cost_subtotal, cost_discount, cost_total,
	cancellation, check_in, completed_at, reschedule_history,
	created_at, updated_at`

func scanAppointment(row pgx.Row) (Appointment, error) {
	var (
		a            Appointment
		date         time.Time
		startMin     int
		endMin       int
		services     []byte
		cancellation []byte
		checkIn      []byte
		history      []byte
	)

	err := row.Scan(
		&a.ID, &a.Number, &date, &startMin, &endMin,
		&a.PatientID, &a.DentistID, &a.ClinicID,
		&a.PatientName, &a.DentistName, &a.Reason,
		&a.Status, &a.Priority, &a.ConsultationType,
		&services, &a.Cost.Subtotal, &a.Cost.Discount, &a.Cost.Total,
		&cancellation, &checkIn, &a.CompletedAt, &history,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Appointment{}, ErrNotFound
		}
		return Appointment{}, err
	}

	a.Date = DateOf(date)
	a.Window = Window{Start: TimeOfDay(startMin), End: TimeOfDay(endMin)}

	if len(services) > 0 {
		if err := json.Unmarshal(services, &a.Services); err != nil {
			return Appointment{}, fmt.Errorf("decode services: %w", err)
		}
	}
	if len(cancellation) > 0 {
		if err := json.Unmarshal(cancellation, &a.Cancellation); err != nil {
			return Appointment{}, fmt.Errorf("decode cancellation: %w", err)
		}
	}
	if len(checkIn) > 0 {
		if err := json.Unmarshal(checkIn, &a.CheckIn); err != nil {
			return Appointment{}, fmt.Errorf("decode check_in: %w", err)
		}
	}
	if len(history) > 0 {
		if err := json.Unmarshal(history, &a.RescheduleHistory); err != nil {
			return Appointment{}, fmt.Errorf("decode reschedule_history: %w", err)
		}
	}

	return a, nil
}

func encodeAppointment(a Appointment) (services, cancellation, checkIn, history []byte, err error) {
	services, err = json.Marshal(a.Services)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("encode services: %w", err)
	}
	if a.Cancellation != nil {
		cancellation, err = json.Marshal(a.Cancellation)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("encode cancellation: %w", err)
		}
	}
	if a.CheckIn != nil {
		checkIn, err = json.Marshal(a.CheckIn)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("encode check_in: %w", err)
		}
	}
	if len(a.RescheduleHistory) > 0 {
		history, err = json.Marshal(a.RescheduleHistory)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("encode reschedule_history: %w", err)
		}
	}
	return services, cancellation, checkIn, history, nil
}

func (r *PgRepository) Create(ctx context.Context, a Appointment) (Appointment, error) {
	if err := validateStored(a); err != nil {
		return Appointment{}, err
	}

	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Number == "" {
		a.Number = NewBookingNumber()
	}

	services, cancellation, checkIn, history, err := encodeAppointment(a)
	if err != nil {
		return Appointment{}, err
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (
			id, number, date, start_min, end_min,
			patient_id, dentist_id, clinic_id,
			patient_name, dentist_name, reason,
			status, priority, consultation_type,
			services, cost_subtotal, cost_discount, cost_total,
			cancellation, check_in, completed_at, reschedule_history,
			created_at, updated_at
		)
		VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8,
			$9, $10, $11,
			$12, $13, $14,
			$15, $16, $17, $18,
			$19, $20, $21, $22,
			now(), now()
		)
		RETURNING `+appointmentColumns,
		a.ID, a.Number, a.Date.Time(), int(a.Window.Start), int(a.Window.End),
		a.PatientID, a.DentistID, a.ClinicID,
		a.PatientName, a.DentistName, a.Reason,
		a.Status, a.Priority, a.ConsultationType,
		services, a.Cost.Subtotal, a.Cost.Discount, a.Cost.Total,
		cancellation, checkIn, a.CompletedAt, history,
	)
	return scanAppointment(row)
}

func (r *PgRepository) Update(ctx context.Context, id uuid.UUID, patch Patch) (Appointment, error) {
	sets := []string{"updated_at = now()"}
	args := []any{id}

	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if patch.Reason != nil {
		add("reason", *patch.Reason)
	}
	if patch.PatientName != nil {
		add("patient_name", *patch.PatientName)
	}
	if patch.DentistName != nil {
		add("dentist_name", *patch.DentistName)
	}
	if patch.Priority != nil {
		if !patch.Priority.Valid() {
			return Appointment{}, &ValidationError{Field: "priority", Reason: "unknown value"}
		}
		add("priority", *patch.Priority)
	}
	if patch.ConsultationType != nil {
		if !patch.ConsultationType.Valid() {
			return Appointment{}, &ValidationError{Field: "consultation_type", Reason: "unknown value"}
		}
		add("consultation_type", *patch.ConsultationType)
	}

	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET `+strings.Join(sets, ", ")+`
		WHERE id = $1
		RETURNING `+appointmentColumns, args...)
	return scanAppointment(row)
}

func (r *PgRepository) Save(ctx context.Context, a Appointment, expect Status) (Appointment, error) {
	if err := validateStored(a); err != nil {
		return Appointment{}, err
	}

	services, cancellation, checkIn, history, err := encodeAppointment(a)
	if err != nil {
		return Appointment{}, err
	}

	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET date = $3, start_min = $4, end_min = $5,
		    patient_name = $6, dentist_name = $7, reason = $8,
		    status = $9, priority = $10, consultation_type = $11,
		    services = $12, cost_subtotal = $13, cost_discount = $14, cost_total = $15,
		    cancellation = $16, check_in = $17, completed_at = $18, reschedule_history = $19,
		    updated_at = now()
		WHERE id = $1
		  AND status = $2
		RETURNING `+appointmentColumns,
		a.ID, expect,
		a.Date.Time(), int(a.Window.Start), int(a.Window.End),
		a.PatientName, a.DentistName, a.Reason,
		a.Status, a.Priority, a.ConsultationType,
		services, a.Cost.Subtotal, a.Cost.Discount, a.Cost.Total,
		cancellation, checkIn, a.CompletedAt, history,
	)

	saved, err := scanAppointment(row)
	if err == nil {
		return saved, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Appointment{}, err
	}

	// Distinguish a missing row from a lost compare-and-swap.
	if _, getErr := r.GetByID(ctx, a.ID); getErr == nil {
		return Appointment{}, ErrStaleStatus
	}
	return Appointment{}, ErrNotFound
}

func (r *PgRepository) Remove(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListByDate(ctx context.Context, date Date) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE date = $1
		ORDER BY start_min
	`, date.Time())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAppointments(rows)
}

var sortColumns = map[SortField]string{
	SortByDateTime:    "date, start_min",
	SortByPatientName: "patient_name, date, start_min",
	SortByDentistName: "dentist_name, date, start_min",
	SortByTotalCost:   "cost_total, date, start_min",
}

func (r *PgRepository) Query(ctx context.Context, f Filter, s Sort, p Page) (QueryResult, error) {
	where, args := buildFilter(f)

	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM appointments`+where, args...,
	).Scan(&total); err != nil {
		return QueryResult{}, fmt.Errorf("count appointments: %w", err)
	}

	order, ok := sortColumns[s.Field]
	if !ok {
		order = sortColumns[SortByDateTime]
	}
	dir := "ASC"
	if s.Desc {
		dir = "DESC"
	}
	// Apply the direction to every sort column so ties stay deterministic.
	orderParts := strings.Split(order, ", ")
	for i, col := range orderParts {
		orderParts[i] = col + " " + dir
	}

	q := `SELECT ` + appointmentColumns + ` FROM appointments` + where +
		` ORDER BY ` + strings.Join(orderParts, ", ")
	if p.Limit > 0 {
		args = append(args, p.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if p.Offset > 0 {
		args = append(args, p.Offset)
		q += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return QueryResult{}, err
	}
	defer rows.Close()

	items, err := collectAppointments(rows)
	if err != nil {
		return QueryResult{}, err
	}
	if items == nil {
		items = []Appointment{}
	}

	return QueryResult{
		Items:      items,
		Total:      total,
		TotalPages: totalPages(total, p.Limit),
	}, nil
}

func buildFilter(f Filter) (string, []any) {
	var conds []string
	var args []any

	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if !f.From.IsZero() {
		add("date >= $%d", f.From.Time())
	}
	if !f.To.IsZero() {
		add("date <= $%d", f.To.Time())
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		add("status = ANY($%d)", statuses)
	}
	if len(f.DentistIDs) > 0 {
		add("dentist_id = ANY($%d)", f.DentistIDs)
	}
	if len(f.PatientIDs) > 0 {
		add("patient_id = ANY($%d)", f.PatientIDs)
	}
	if len(f.ClinicIDs) > 0 {
		add("clinic_id = ANY($%d)", f.ClinicIDs)
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf(
			"(patient_name ILIKE $%d OR dentist_name ILIKE $%d OR reason ILIKE $%d)", n, n, n))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
