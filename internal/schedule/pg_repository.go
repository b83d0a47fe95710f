package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanProfessional(row pgx.Row) (*Professional, error) {
	var p Professional

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Type,
		&p.Active,
		&p.ProfileComplete,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfessionalNotFound
		}
		return nil, err
	}

	return &p, nil
}

func scanBlock(row pgx.Row) (*Block, error) {
	var b Block
	var start, end *int
	var reason *string

	err := row.Scan(
		&b.ID,
		&b.ProfessionalID,
		&b.Date,
		&start,
		&end,
		&b.Type,
		&reason,
		&b.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBlockNotFound
		}
		return nil, err
	}

	b.StartMinute = start
	b.EndMinute = end
	b.Reason = reason
	return &b, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var videoLink, cancelReason *string
	var cancelledBy *CancelActor

	err := row.Scan(
		&a.ID,
		&a.ProfessionalID,
		&a.PatientID,
		&a.Date,
		&a.StartMinute,
		&a.EndMinute,
		&a.Status,
		&videoLink,
		&cancelReason,
		&cancelledBy,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.VideoLink = videoLink
	a.CancelReason = cancelReason
	a.CancelledBy = cancelledBy
	return &a, nil
}

const appointmentColumns = `id, professional_id, patient_id, appt_date, start_minute, end_minute, status, video_link, cancel_reason, cancelled_by, created_at, updated_at`

// Interface methods

func (r *PgRepository) GetProfessionalByID(ctx context.Context, id uuid.UUID) (*Professional, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, ptype, active, profile_complete, created_at, updated_at
		FROM professionals
		WHERE id = $1
	`, id)
	return scanProfessional(row)
}

func (r *PgRepository) ListProfessionals(ctx context.Context, ptype *ProfessionalType, limit, offset int) ([]Professional, int, error) {
	var total int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*)
		FROM professionals
		WHERE active AND profile_complete
		  AND ($1::text IS NULL OR ptype = $1)
	`, ptype).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count professionals: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, name, ptype, active, profile_complete, created_at, updated_at
		FROM professionals
		WHERE active AND profile_complete
		  AND ($1::text IS NULL OR ptype = $1)
		ORDER BY name, id
		LIMIT $2 OFFSET $3
	`, ptype, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []Professional
	for rows.Next() {
		p, err := scanProfessional(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return result, total, nil
}

func (r *PgRepository) ListBlocks(ctx context.Context, professionalID uuid.UUID, from, to time.Time) ([]Block, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, professional_id, block_date, start_minute, end_minute, block_type, reason, created_at
		FROM blocks
		WHERE professional_id = $1
		  AND block_date BETWEEN $2 AND $3
		ORDER BY block_date, start_minute NULLS FIRST
	`, professionalID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Block
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// CreateBlock inserts the block only if no existing block for the same
// professional and date intersects it. A full-day block (null start)
// conflicts with any block on the date; two partial blocks conflict iff
// [s1,e1) intersects [s2,e2). The NOT EXISTS subquery reads a snapshot
// taken at statement start and cannot see another session's uncommitted
// insert, so concurrent creates for the same professional-day serialize on
// an advisory lock before the check runs.
func (r *PgRepository) CreateBlock(ctx context.Context, b Block) (uuid.UUID, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("create block: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		SELECT pg_advisory_xact_lock(hashtextextended($1 || ':' || $2, 0))
	`, b.ProfessionalID.String(), b.Date.Format("2006-01-02"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("lock professional-day for block create: %w", err)
	}

	id := uuid.New()

	var returned uuid.UUID
	err = tx.QueryRow(ctx, `
		INSERT INTO blocks (id, professional_id, block_date, start_minute, end_minute, block_type, reason, created_at)
		SELECT $1, $2, $3, $4, $5, $6, $7, now()
		WHERE NOT EXISTS (
			SELECT 1
			FROM blocks existing
			WHERE existing.professional_id = $2
			  AND existing.block_date = $3
			  AND (
			       existing.start_minute IS NULL
			    OR $4::int IS NULL
			    OR (existing.start_minute < $5 AND $4 < existing.end_minute)
			  )
		)
		RETURNING id
	`, id, b.ProfessionalID, b.Date, b.StartMinute, b.EndMinute, b.Type, b.Reason).Scan(&returned)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, ErrBlockOverlap
		}
		return uuid.Nil, fmt.Errorf("create block: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, fmt.Errorf("create block: %w", err)
	}

	return returned, nil
}

func (r *PgRepository) DeleteBlock(ctx context.Context, blockID, professionalID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM blocks
		WHERE id = $1 AND professional_id = $2
	`, blockID, professionalID)
	if err != nil {
		return fmt.Errorf("delete block: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBlockNotFound
	}
	return nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListAppointmentsByProfessional(ctx context.Context, professionalID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE professional_id = $1
		  AND appt_date BETWEEN $2 AND $3
		ORDER BY appt_date, start_minute, id
	`, professionalID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAppointments(rows)
}

func (r *PgRepository) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, f AppointmentFilter, limit, offset int) ([]Appointment, int, error) {
	where := `WHERE patient_id = $1`
	args := []any{patientID}

	if f.Status != nil {
		args = append(args, *f.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if f.FromDate != nil {
		args = append(args, *f.FromDate)
		where += fmt.Sprintf(" AND appt_date >= $%d", len(args))
	}
	if f.ToDate != nil {
		args = append(args, *f.ToDate)
		where += fmt.Sprintf(" AND appt_date <= $%d", len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM appointments `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count patient appointments: %w", err)
	}

	args = append(args, limit, offset)
	query := fmt.Sprintf(`
		SELECT `+appointmentColumns+`
		FROM appointments
		%s
		ORDER BY appt_date DESC, start_minute DESC, id
		LIMIT $%d OFFSET $%d
	`, where, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	result, err := collectAppointments(rows)
	if err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

func (r *PgRepository) CountScheduledSlots(ctx context.Context, professionalID uuid.UUID, from, to time.Time) ([]SlotCount, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT appt_date, start_minute, count(*)
		FROM appointments
		WHERE professional_id = $1
		  AND appt_date BETWEEN $2 AND $3
		  AND status = 'scheduled'
		GROUP BY appt_date, start_minute
	`, professionalID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []SlotCount
	for rows.Next() {
		var c SlotCount
		if err := rows.Scan(&c.Date, &c.StartMinute, &c.Count); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// TransitionAppointment applies scheduled -> terminal atomically: the
// status predicate rides on the UPDATE itself, so of two concurrent
// transitions exactly one wins and the other sees ErrNotScheduled.
func (r *PgRepository) TransitionAppointment(ctx context.Context, id uuid.UUID, to AppointmentStatus, by *CancelActor, reason *string) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    cancelled_by = $3,
		    cancel_reason = $4,
		    updated_at = now()
		WHERE id = $1
		  AND status = 'scheduled'
		RETURNING `+appointmentColumns+`
	`, id, to, by, reason)

	appt, err := scanAppointment(row)
	if err == nil {
		return appt, nil
	}
	if !errors.Is(err, ErrAppointmentNotFound) {
		return nil, err
	}

	// No scheduled row was updated; distinguish a terminal-state appointment
	// from a missing one.
	if _, getErr := r.GetAppointmentByID(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, ErrNotScheduled
}

// sweepCutoff splits a wall-clock instant into the (calendar day, minute
// of day) pair the elapsed query compares against. Both come from the same
// clock reading, so the date never lags the minute in non-UTC zones.
func sweepCutoff(now time.Time) (time.Time, int) {
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), now.Hour()*60 + now.Minute()
}

func (r *PgRepository) FindElapsedScheduled(ctx context.Context, now time.Time) ([]Appointment, error) {
	day, minute := sweepCutoff(now)

	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = 'scheduled'
		  AND (appt_date < $1 OR (appt_date = $1 AND end_minute <= $2))
	`, day, minute)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAppointments(rows)
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

// ListPatientSummaries satisfies PatientAggregator with one grouping query.
func (r *PgRepository) ListPatientSummaries(ctx context.Context, professionalID uuid.UUID, limit, offset int) ([]PatientSummary, int, error) {
	var total int
	err := r.pool.QueryRow(ctx, `
		SELECT count(DISTINCT patient_id)
		FROM appointments
		WHERE professional_id = $1
	`, professionalID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count patients: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT patient_id,
		       count(*),
		       count(*) FILTER (WHERE status = 'scheduled'),
		       count(*) FILTER (WHERE status = 'completed'),
		       count(*) FILTER (WHERE status = 'cancelled'),
		       count(*) FILTER (WHERE status = 'no_show'),
		       max(appt_date) FILTER (WHERE status = 'completed')
		FROM appointments
		WHERE professional_id = $1
		GROUP BY patient_id
		ORDER BY patient_id
		LIMIT $2 OFFSET $3
	`, professionalID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []PatientSummary
	for rows.Next() {
		var s PatientSummary
		var lastVisit *time.Time
		if err := rows.Scan(&s.PatientID, &s.Total, &s.Scheduled, &s.Completed, &s.Cancelled, &s.NoShow, &lastVisit); err != nil {
			return nil, 0, err
		}
		s.LastVisit = lastVisit
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return result, total, nil
}

// ListPatientIDs and ListAppointmentsForPatientOfProfessional back the
// per-patient fallback summarizer.
func (r *PgRepository) ListPatientIDs(ctx context.Context, professionalID uuid.UUID, limit, offset int) ([]uuid.UUID, int, error) {
	var total int
	err := r.pool.QueryRow(ctx, `
		SELECT count(DISTINCT patient_id)
		FROM appointments
		WHERE professional_id = $1
	`, professionalID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count patients: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT patient_id
		FROM appointments
		WHERE professional_id = $1
		ORDER BY patient_id
		LIMIT $2 OFFSET $3
	`, professionalID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, 0, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return ids, total, nil
}

func (r *PgRepository) ListAppointmentsForPatientOfProfessional(ctx context.Context, professionalID, patientID uuid.UUID) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE professional_id = $1 AND patient_id = $2
		ORDER BY appt_date, start_minute
	`, professionalID, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAppointments(rows)
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
