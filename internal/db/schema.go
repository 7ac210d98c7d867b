package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS dentists (
	id          uuid PRIMARY KEY,
	name        text NOT NULL,
	specialty   text,
	created_at  timestamptz NOT NULL DEFAULT now(),
	updated_at  timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS patients (
	id          uuid PRIMARY KEY,
	name        text NOT NULL,
	email       text,
	created_at  timestamptz NOT NULL DEFAULT now(),
	updated_at  timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS clinics (
	id          uuid PRIMARY KEY,
	name        text NOT NULL,
	created_at  timestamptz NOT NULL DEFAULT now(),
	updated_at  timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS appointments (
	id                  uuid PRIMARY KEY,
	number              text NOT NULL UNIQUE,
	date                date NOT NULL,
	start_min           int NOT NULL,
	end_min             int NOT NULL,
	patient_id          uuid NOT NULL,
	dentist_id          uuid NOT NULL,
	clinic_id           uuid NOT NULL,
	patient_name        text NOT NULL DEFAULT '',
	dentist_name        text NOT NULL DEFAULT '',
	reason              text NOT NULL DEFAULT '',
	status              text NOT NULL,
	priority            text NOT NULL,
	consultation_type   text NOT NULL,
	services            jsonb NOT NULL,
	cost_subtotal       bigint NOT NULL DEFAULT 0,
	cost_discount       bigint NOT NULL DEFAULT 0,
	cost_total          bigint NOT NULL DEFAULT 0,
	cancellation        jsonb,
	check_in            jsonb,
	completed_at        timestamptz,
	reschedule_history  jsonb,
	created_at          timestamptz NOT NULL DEFAULT now(),
	updated_at          timestamptz NOT NULL DEFAULT now(),
	CHECK (start_min >= 0 AND end_min <= 1440 AND start_min < end_min)
);

CREATE INDEX IF NOT EXISTS idx_appointments_date ON appointments (date);
CREATE INDEX IF NOT EXISTS idx_appointments_dentist ON appointments (dentist_id, date);
CREATE INDEX IF NOT EXISTS idx_appointments_patient ON appointments (patient_id, date);
CREATE INDEX IF NOT EXISTS idx_appointments_clinic ON appointments (clinic_id, date);
CREATE INDEX IF NOT EXISTS idx_appointments_status ON appointments (status);
`

// EnsureSchema creates the scheduling tables when they do not exist yet.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
