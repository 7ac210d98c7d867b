package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/clinicdesk/appointment-scheduling/internal/appointment"
	"github.com/clinicdesk/appointment-scheduling/internal/db"
)

type pool struct {
	dentists []person
	patients []person
	clinics  []uuid.UUID
}

type person struct {
	id   uuid.UUID
	name string
}

var services = []appointment.ServiceItem{
	{Code: "EXAM", Name: "Routine examination", Duration: 30, Cost: 6500},
	{Code: "CLEAN", Name: "Hygiene cleaning", Duration: 45, Cost: 9000},
	{Code: "FILL", Name: "Composite filling", Duration: 60, Cost: 18000},
	{Code: "XRAY", Name: "Panoramic x-ray", Duration: 15, Cost: 4500},
	{Code: "ROOT", Name: "Root canal treatment", Duration: 90, Cost: 45000},
}

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "seed").Logger()
	log.Info().Msg("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal().Msg("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer pgPool.Close()

	if err := db.EnsureSchema(context.Background(), pgPool); err != nil {
		log.Fatal().Err(err).Msg("ensure schema")
	}

	gofakeit.Seed(time.Now().UnixNano())

	p, err := seedEntities(context.Background(), pgPool, log)
	if err != nil {
		log.Fatal().Err(err).Msg("seed entities")
	}

	if err := seedAppointments(context.Background(), pgPool, p, log); err != nil {
		log.Fatal().Err(err).Msg("seed appointments")
	}

	log.Info().Msg("seed complete")
}

func seedEntities(ctx context.Context, pgPool *pgxpool.Pool, log zerolog.Logger) (pool, error) {
	var p pool

	specialties := []string{
		"Orthodontics",
		"Endodontics",
		"Periodontics",
		"Prosthodontics",
		"Oral Surgery",
		"Pediatric Dentistry",
		"General Dentistry",
	}

	tx, err := pgPool.Begin(ctx)
	if err != nil {
		return p, err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < 3; i++ {
		id := uuid.New()
		name := gofakeit.Company() + " Dental"
		if _, err := tx.Exec(ctx, `
			INSERT INTO clinics (id, name, created_at, updated_at)
			VALUES ($1, $2, now(), now())
		`, id, name); err != nil {
			return p, err
		}
		p.clinics = append(p.clinics, id)
	}

	for i := 0; i < 12; i++ {
		id := uuid.New()
		name := "Dr. " + gofakeit.Name()
		specialty := specialties[gofakeit.Number(0, len(specialties)-1)]
		if _, err := tx.Exec(ctx, `
			INSERT INTO dentists (id, name, specialty, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, id, name, specialty); err != nil {
			return p, err
		}
		p.dentists = append(p.dentists, person{id: id, name: name})
	}

	for i := 0; i < 400; i++ {
		id := uuid.New()
		name := gofakeit.Name()
		email := gofakeit.Email()
		if _, err := tx.Exec(ctx, `
			INSERT INTO patients (id, name, email, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, id, name, email); err != nil {
			return p, err
		}
		p.patients = append(p.patients, person{id: id, name: name})
	}

	if err := tx.Commit(ctx); err != nil {
		return p, err
	}

	log.Info().
		Int("clinics", len(p.clinics)).
		Int("dentists", len(p.dentists)).
		Int("patients", len(p.patients)).
		Msg("entities seeded")
	return p, nil
}

// seedAppointments books through the service so every seeded row has passed
// the same conflict checks real bookings do; colliding picks are skipped.
func seedAppointments(ctx context.Context, pgPool *pgxpool.Pool, p pool, log zerolog.Logger) error {
	repo := appointment.NewPgRepository(pgPool)
	svc := appointment.NewService(repo, appointment.NewMutexLocker(), log)

	consultTypes := []appointment.ConsultationType{
		appointment.ConsultFirstVisit,
		appointment.ConsultFollowUp,
		appointment.ConsultTreatment,
		appointment.ConsultEmergency,
		appointment.ConsultOther,
	}

	var created, skipped int
	for day := 0; day < 7; day++ {
		date := appointment.DateOf(time.Now().AddDate(0, 0, day))

		for _, dentist := range p.dentists {
			clinic := p.clinics[gofakeit.Number(0, len(p.clinics)-1)]

			// Working day 09:00-17:00, booked at random in half-hour steps.
			for startMin := 9 * 60; startMin < 17*60; startMin += 30 {
				if gofakeit.Number(0, 99) >= 40 {
					continue
				}

				patient := p.patients[gofakeit.Number(0, len(p.patients)-1)]
				svcItem := services[gofakeit.Number(0, len(services)-1)]

				_, err := svc.Create(ctx, appointment.NewAppointmentParams{
					PatientID:        patient.id,
					DentistID:        dentist.id,
					ClinicID:         clinic,
					PatientName:      patient.name,
					DentistName:      dentist.name,
					Reason:           svcItem.Name,
					Date:             date,
					Start:            appointment.TimeOfDay(startMin),
					Services:         []appointment.ServiceItem{svcItem},
					ConsultationType: consultTypes[gofakeit.Number(0, len(consultTypes)-1)],
				})
				if err != nil {
					var conflictErr *appointment.ConflictError
					if errors.As(err, &conflictErr) {
						skipped++
						continue
					}
					return err
				}
				created++
			}
		}
	}

	log.Info().Int("created", created).Int("skipped_conflicts", skipped).Msg("appointments seeded")
	return nil
}
