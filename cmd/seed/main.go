package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinhub/scheduling-engine/internal/db"
	"github.com/clinhub/scheduling-engine/internal/schedule"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	professionals, err := seedProfessionals(context.Background(), pool, 40)
	if err != nil {
		log.Fatalf("seed professionals: %v", err)
	}
	if err := seedBlocks(context.Background(), pool, professionals); err != nil {
		log.Fatalf("seed blocks: %v", err)
	}
	if err := seedAppointments(context.Background(), pool, professionals, 2000); err != nil {
		log.Fatalf("seed appointments: %v", err)
	}

	log.Println("seed complete")
}

func seedProfessionals(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d professionals", count)

	types := []schedule.ProfessionalType{
		schedule.ProfessionalDoctor,
		schedule.ProfessionalNutritionist,
		schedule.ProfessionalTherapist,
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		name := gofakeit.Name()
		ptype := types[gofakeit.Number(0, len(types)-1)]
		active := gofakeit.Number(0, 9) > 0    // ~10% deactivated
		complete := gofakeit.Number(0, 19) > 0 // ~5% incomplete profiles

		_, err := tx.Exec(ctx, `
			INSERT INTO professionals (id, name, ptype, active, profile_complete, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, now(), now())
		`, id, name, ptype, active, complete)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("professionals seeded")
	return ids, nil
}

func seedBlocks(ctx context.Context, pool *pgxpool.Pool, professionals []uuid.UUID) error {
	log.Println("seeding blocks")

	types := []schedule.BlockType{
		schedule.BlockVacation,
		schedule.BlockHoliday,
		schedule.BlockPersonal,
		schedule.BlockOther,
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	today := time.Now().Truncate(24 * time.Hour)
	for _, profID := range professionals {
		// A handful of blocks over the next month per professional.
		for i := 0; i < gofakeit.Number(0, 4); i++ {
			date := today.AddDate(0, 0, gofakeit.Number(1, 30))
			btype := types[gofakeit.Number(0, len(types)-1)]

			var start, end *int
			if gofakeit.Bool() {
				// Partial block on a half-hour boundary inside working hours.
				s := 420 + 30*gofakeit.Number(0, 18)
				e := s + 30*gofakeit.Number(1, 4)
				if e > 1110 {
					e = 1110
				}
				start, end = &s, &e
			}

			reason := gofakeit.Sentence(4)

			// Overlapping picks are simply skipped; the registry rejects them.
			_, err := tx.Exec(ctx, `
				INSERT INTO blocks (id, professional_id, block_date, start_minute, end_minute, block_type, reason, created_at)
				SELECT $1, $2, $3, $4, $5, $6, $7, now()
				WHERE NOT EXISTS (
					SELECT 1 FROM blocks b
					WHERE b.professional_id = $2 AND b.block_date = $3
					  AND (b.start_minute IS NULL OR $4::int IS NULL
					       OR (b.start_minute < $5 AND $4 < b.end_minute))
				)
			`, uuid.New(), profID, date, start, end, btype, reason)
			if err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("blocks seeded")
	return nil
}

func seedAppointments(ctx context.Context, pool *pgxpool.Pool, professionals []uuid.UUID, count int) error {
	log.Printf("seeding %d appointments", count)

	statuses := []schedule.AppointmentStatus{
		schedule.StatusScheduled,
		schedule.StatusScheduled,
		schedule.StatusCompleted,
		schedule.StatusCancelled,
		schedule.StatusNoShow,
	}

	const batchSize = 500

	patients := make([]uuid.UUID, 300)
	for i := range patients {
		patients[i] = uuid.New()
	}

	today := time.Now().Truncate(24 * time.Hour)

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			profID := professionals[gofakeit.Number(0, len(professionals)-1)]
			patientID := patients[gofakeit.Number(0, len(patients)-1)]
			date := today.AddDate(0, 0, gofakeit.Number(-30, 30))
			startMin := 420 + 30*gofakeit.Number(0, 22)
			status := statuses[gofakeit.Number(0, len(statuses)-1)]
			if date.Before(today) && status == schedule.StatusScheduled {
				status = schedule.StatusCompleted
			}

			// Capacity guard rides on the insert so the seed never
			// overfills a slot.
			_, err := tx.Exec(ctx, `
				INSERT INTO appointments (id, professional_id, patient_id, appt_date, start_minute, end_minute, status, created_at, updated_at)
				SELECT $1, $2, $3, $4, $5, $6, $7, now(), now()
				WHERE $7 <> 'scheduled' OR (
					SELECT count(*) FROM appointments a
					WHERE a.professional_id = $2 AND a.appt_date = $4
					  AND a.start_minute = $5 AND a.status = 'scheduled'
				) < 2
			`, uuid.New(), profID, patientID, date, startMin, startMin+30, status)
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Printf("appointments seeded: %d/%d", end, count)
	}

	log.Println("appointments seeded")
	return nil
}
