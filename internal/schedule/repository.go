package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrProfessionalNotFound = errors.New("professional not found")
	ErrAppointmentNotFound  = errors.New("appointment not found")
	ErrBlockNotFound        = errors.New("block not found")

	// ErrBlockOverlap is returned when a block cannot be created because
	// another block already occupies part of the requested interval (or
	// either side is a full-day block).
	ErrBlockOverlap = errors.New("block overlaps an existing block")

	// ErrNotScheduled is returned by the atomic status transition when the
	// appointment exists but is no longer in the scheduled state.
	ErrNotScheduled = errors.New("appointment is not in scheduled status")
)

// AppointmentFilter narrows patient appointment listings.
type AppointmentFilter struct {
	Status   *AppointmentStatus
	FromDate *time.Time
	ToDate   *time.Time
}

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetProfessionalByID(ctx context.Context, id uuid.UUID) (*Professional, error)

	// ListProfessionals returns active, profile-complete professionals,
	// optionally filtered by type, plus the total matching count.
	ListProfessionals(ctx context.Context, ptype *ProfessionalType, limit, offset int) ([]Professional, int, error)

	// Blocks
	ListBlocks(ctx context.Context, professionalID uuid.UUID, from, to time.Time) ([]Block, error)
	// CreateBlock persists the block only if no existing block for the same
	// professional and date intersects it; the check and the insert run as
	// one atomic statement. Returns ErrBlockOverlap on conflict.
	CreateBlock(ctx context.Context, b Block) (uuid.UUID, error)
	DeleteBlock(ctx context.Context, blockID, professionalID uuid.UUID) error

	// Appointments
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListAppointmentsByProfessional(ctx context.Context, professionalID uuid.UUID, from, to time.Time) ([]Appointment, error)
	ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, f AppointmentFilter, limit, offset int) ([]Appointment, int, error)
	// CountScheduledSlots tallies scheduled appointments per (date, slot
	// start) for the availability calculator.
	CountScheduledSlots(ctx context.Context, professionalID uuid.UUID, from, to time.Time) ([]SlotCount, error)

	// TransitionAppointment moves a scheduled appointment into a terminal
	// state in one atomic statement. Returns ErrNotScheduled when the row
	// exists in another status and ErrAppointmentNotFound when it does not
	// exist at all.
	TransitionAppointment(ctx context.Context, id uuid.UUID, to AppointmentStatus, by *CancelActor, reason *string) (*Appointment, error)

	// FindElapsedScheduled returns scheduled appointments whose slot end has
	// passed, for the no-show worker.
	FindElapsedScheduled(ctx context.Context, now time.Time) ([]Appointment, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}

// PatientAggregator is an optional repository capability: producing the
// per-patient summary listing with a single aggregating query. Repositories
// that cannot (older schemas without the aggregate view) are served by the
// per-patient fallback instead.
type PatientAggregator interface {
	ListPatientSummaries(ctx context.Context, professionalID uuid.UUID, limit, offset int) ([]PatientSummary, int, error)
}

// PatientLister supports the fallback summary path: page through the
// distinct patients seen by a professional, then aggregate each one.
type PatientLister interface {
	ListPatientIDs(ctx context.Context, professionalID uuid.UUID, limit, offset int) ([]uuid.UUID, int, error)
	ListAppointmentsForPatientOfProfessional(ctx context.Context, professionalID, patientID uuid.UUID) ([]Appointment, error)
}
