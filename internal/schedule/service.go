package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	EventBlockCreated         = "BLOCK_CREATED"
	EventBlockDeleted         = "BLOCK_DELETED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
	EventAppointmentNoShow    = "APPOINTMENT_NO_SHOW"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100

	// maxRangeDays bounds availability and schedule range queries.
	maxRangeDays = 92
)

type Service struct {
	repo       Repository
	grid       *SlotGrid
	capacity   int
	summarizer Summarizer
	log        zerolog.Logger
}

func NewService(repo Repository, grid *SlotGrid, capacity int, log zerolog.Logger) *Service {
	return &Service{
		repo:       repo,
		grid:       grid,
		capacity:   capacity,
		summarizer: NewSummarizer(repo),
		log:        log,
	}
}

func (s *Service) Grid() *SlotGrid { return s.grid }

// AvailableSlots returns the bookable slots for a professional over a date
// range, omitting rows whose available spots dropped to zero. The
// professional must be active; availability for an inactive professional is
// meaningless, not zero everywhere.
func (s *Service) AvailableSlots(ctx context.Context, professionalID uuid.UUID, from, to time.Time) ([]DaySlot, *Professional, error) {
	grid, prof, err := s.AvailabilityGrid(ctx, professionalID, from, to)
	if err != nil {
		return nil, nil, err
	}

	bookable := make([]DaySlot, 0, len(grid))
	for _, row := range grid {
		if row.AvailableSpots > 0 {
			bookable = append(bookable, row)
		}
	}
	return bookable, prof, nil
}

// AvailabilityGrid computes the full per-date, per-slot answer including
// zero-availability rows, which the audit/debug paths need.
func (s *Service) AvailabilityGrid(ctx context.Context, professionalID uuid.UUID, from, to time.Time) ([]DaySlot, *Professional, error) {
	if err := validateRange(from, to); err != nil {
		return nil, nil, err
	}

	prof, err := s.repo.GetProfessionalByID(ctx, professionalID)
	if err != nil {
		if errors.Is(err, ErrProfessionalNotFound) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("load professional: %w", err)
	}
	if !prof.Active {
		return nil, nil, ErrProfessionalInactive
	}

	blocks, err := s.repo.ListBlocks(ctx, professionalID, from, to)
	if err != nil {
		return nil, nil, fmt.Errorf("load blocks: %w", err)
	}

	counts, err := s.repo.CountScheduledSlots(ctx, professionalID, from, to)
	if err != nil {
		return nil, nil, fmt.Errorf("count scheduled slots: %w", err)
	}

	return s.computeGrid(blocks, counts, from, to), prof, nil
}

func (s *Service) computeGrid(blocks []Block, counts []SlotCount, from, to time.Time) []DaySlot {
	fullDay := make(map[string]bool)
	partial := make(map[string][]Block)
	for _, b := range blocks {
		key := dateKey(b.Date)
		if b.FullDay() {
			fullDay[key] = true
		} else {
			partial[key] = append(partial[key], b)
		}
	}

	counted := make(map[string]map[int]int)
	for _, c := range counts {
		key := dateKey(c.Date)
		if counted[key] == nil {
			counted[key] = make(map[int]int)
		}
		counted[key][c.StartMinute] = c.Count
	}

	var grid []DaySlot
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		key := dateKey(day)

		if fullDay[key] {
			for _, slot := range s.grid.Slots() {
				grid = append(grid, DaySlot{Date: day, Slot: slot, AvailableSpots: 0})
			}
			continue
		}

		for _, slot := range s.grid.Slots() {
			spots := s.capacity

			for _, b := range partial[key] {
				if b.Covers(slot.StartMinute, slot.EndMinute) {
					spots = 0
					break
				}
			}

			if spots > 0 {
				spots -= counted[key][slot.StartMinute]
				if spots < 0 {
					spots = 0
				}
			}

			grid = append(grid, DaySlot{Date: day, Slot: slot, AvailableSpots: spots})
		}
	}

	return grid
}

// Blocks

type CreateBlockInput struct {
	ProfessionalID uuid.UUID
	Date           time.Time
	StartMinute    *int
	EndMinute      *int
	Type           BlockType
	Reason         *string
}

// CreateBlock validates the interval and persists it. The overlap-free
// invariant itself is enforced by the repository in the same statement as
// the insert; a conflict surfaces as ErrBlockOverlap.
func (s *Service) CreateBlock(ctx context.Context, in CreateBlockInput) (uuid.UUID, error) {
	verr := NewValidationError()

	if in.ProfessionalID == uuid.Nil {
		verr.Add("professional_id", "is required")
	}
	if in.Date.IsZero() {
		verr.Add("date", "is required")
	}
	if !ValidBlockType(in.Type) {
		verr.Add("type", "must be one of vacation, holiday, personal, other")
	}
	switch {
	case (in.StartMinute == nil) != (in.EndMinute == nil):
		verr.Add("start_time", "start and end must be both present or both absent")
	case in.StartMinute != nil:
		if *in.StartMinute < 0 || *in.EndMinute > 24*60 {
			verr.Add("start_time", "must fall within a single day")
		} else if *in.StartMinute >= *in.EndMinute {
			verr.Add("end_time", "must be after start time")
		}
	}
	if err := verr.Err(); err != nil {
		return uuid.Nil, err
	}

	if _, err := s.repo.GetProfessionalByID(ctx, in.ProfessionalID); err != nil {
		if errors.Is(err, ErrProfessionalNotFound) {
			return uuid.Nil, err
		}
		return uuid.Nil, fmt.Errorf("load professional: %w", err)
	}

	id, err := s.repo.CreateBlock(ctx, Block{
		ProfessionalID: in.ProfessionalID,
		Date:           in.Date,
		StartMinute:    in.StartMinute,
		EndMinute:      in.EndMinute,
		Type:           in.Type,
		Reason:         in.Reason,
	})
	if err != nil {
		return uuid.Nil, err
	}

	s.logEvent(ctx, nil, EventBlockCreated, map[string]any{
		"block_id":        id.String(),
		"professional_id": in.ProfessionalID.String(),
		"date":            dateKey(in.Date),
		"type":            string(in.Type),
	})

	return id, nil
}

// DeleteBlock removes a block owned by the professional. Missing or
// foreign blocks return ErrBlockNotFound.
func (s *Service) DeleteBlock(ctx context.Context, blockID, professionalID uuid.UUID) error {
	if err := s.repo.DeleteBlock(ctx, blockID, professionalID); err != nil {
		return err
	}

	s.logEvent(ctx, nil, EventBlockDeleted, map[string]any{
		"block_id":        blockID.String(),
		"professional_id": professionalID.String(),
	})
	return nil
}

func (s *Service) ListBlocks(ctx context.Context, professionalID uuid.UUID, from, to time.Time) ([]Block, error) {
	if err := validateRange(from, to); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetProfessionalByID(ctx, professionalID); err != nil {
		if errors.Is(err, ErrProfessionalNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load professional: %w", err)
	}
	return s.repo.ListBlocks(ctx, professionalID, from, to)
}

// Cancellation

type CancelInput struct {
	AppointmentID  uuid.UUID
	CancelledBy    CancelActor
	Reason         *string
	PatientID      *uuid.UUID
	ProfessionalID *uuid.UUID
}

// CancelResult is a business-rule outcome, not a fault: a cancel attempt
// on an already-terminal appointment returns Success=false with a message
// rather than an error.
type CancelResult struct {
	Success     bool
	Message     string
	Appointment *Appointment
}

// CancelAppointment validates actor authorization and applies the
// scheduled -> cancelled transition. Ownership checks run before any
// mutation; the transition itself is atomic at the repository so two
// concurrent cancels cannot both report success.
func (s *Service) CancelAppointment(ctx context.Context, in CancelInput) (CancelResult, error) {
	verr := NewValidationError()
	if !ValidCancelActor(in.CancelledBy) {
		verr.Add("cancelled_by", "must be one of patient, professional, system")
	}
	if in.CancelledBy == ActorPatient && in.PatientID == nil {
		verr.Add("patient_id", "is required when cancelled_by is patient")
	}
	if in.CancelledBy == ActorProfessional && in.ProfessionalID == nil {
		verr.Add("professional_id", "is required when cancelled_by is professional")
	}
	if err := verr.Err(); err != nil {
		return CancelResult{}, err
	}

	appt, err := s.repo.GetAppointmentByID(ctx, in.AppointmentID)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return CancelResult{}, err
		}
		return CancelResult{}, fmt.Errorf("load appointment: %w", err)
	}

	switch in.CancelledBy {
	case ActorPatient:
		if *in.PatientID != appt.PatientID {
			return CancelResult{}, ErrOwnershipMismatch
		}
	case ActorProfessional:
		if *in.ProfessionalID != appt.ProfessionalID {
			return CancelResult{}, ErrOwnershipMismatch
		}
	case ActorSystem:
		// full authority
	}

	actor := in.CancelledBy
	updated, err := s.repo.TransitionAppointment(ctx, in.AppointmentID, StatusCancelled, &actor, in.Reason)
	if err != nil {
		if errors.Is(err, ErrNotScheduled) {
			// Re-read for the message; the row may have turned terminal
			// between the ownership check and the transition.
			current, getErr := s.repo.GetAppointmentByID(ctx, in.AppointmentID)
			status := appt.Status
			if getErr == nil {
				status = current.Status
			}
			return CancelResult{
				Success: false,
				Message: fmt.Sprintf("appointment cannot be cancelled: status is %s", status),
			}, nil
		}
		if errors.Is(err, ErrAppointmentNotFound) {
			return CancelResult{}, err
		}
		return CancelResult{}, fmt.Errorf("cancel appointment: %w", err)
	}

	s.logEvent(ctx, &updated.ID, EventAppointmentCancelled, map[string]any{
		"cancelled_by": string(in.CancelledBy),
		"reason":       derefString(in.Reason),
	})

	return CancelResult{
		Success:     true,
		Message:     "appointment cancelled",
		Appointment: updated,
	}, nil
}

// Query surface reads

func (s *Service) Schedule(ctx context.Context, professionalID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	if err := validateRange(from, to); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetProfessionalByID(ctx, professionalID); err != nil {
		if errors.Is(err, ErrProfessionalNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load professional: %w", err)
	}
	return s.repo.ListAppointmentsByProfessional(ctx, professionalID, from, to)
}

func (s *Service) PatientAppointments(ctx context.Context, patientID uuid.UUID, f AppointmentFilter, limit, offset int) ([]Appointment, int, error) {
	if f.Status != nil && !ValidAppointmentStatus(*f.Status) {
		verr := NewValidationError()
		verr.Add("status", "must be one of scheduled, completed, cancelled, no_show")
		return nil, 0, verr
	}
	limit, offset = clampPage(limit, offset)
	return s.repo.ListAppointmentsByPatient(ctx, patientID, f, limit, offset)
}

func (s *Service) Professionals(ctx context.Context, ptype *ProfessionalType, limit, offset int) ([]Professional, int, error) {
	if ptype != nil && !ValidProfessionalType(*ptype) {
		verr := NewValidationError()
		verr.Add("type", "must be one of doctor, nutritionist, therapist")
		return nil, 0, verr
	}
	limit, offset = clampPage(limit, offset)
	return s.repo.ListProfessionals(ctx, ptype, limit, offset)
}

func (s *Service) PatientSummaries(ctx context.Context, professionalID uuid.UUID, limit, offset int) ([]PatientSummary, int, error) {
	if s.summarizer == nil {
		return nil, 0, ErrSummariesUnsupported
	}
	if _, err := s.repo.GetProfessionalByID(ctx, professionalID); err != nil {
		if errors.Is(err, ErrProfessionalNotFound) {
			return nil, 0, err
		}
		return nil, 0, fmt.Errorf("load professional: %w", err)
	}
	limit, offset = clampPage(limit, offset)
	return s.summarizer.PatientSummaries(ctx, professionalID, limit, offset)
}

// MarkNoShows transitions scheduled appointments whose slot end has passed
// into no_show as the system actor. Intended to be called periodically by
// the worker; returns the number of appointments transitioned.
func (s *Service) MarkNoShows(ctx context.Context, now time.Time) (int, error) {
	elapsed, err := s.repo.FindElapsedScheduled(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("find elapsed scheduled appointments: %w", err)
	}

	actor := ActorSystem
	marked := 0
	for _, appt := range elapsed {
		_, err := s.repo.TransitionAppointment(ctx, appt.ID, StatusNoShow, &actor, nil)
		if err != nil {
			if errors.Is(err, ErrNotScheduled) || errors.Is(err, ErrAppointmentNotFound) {
				// Lost the race to a concurrent transition; nothing to do.
				continue
			}
			s.log.Error().Err(err).Str("appointment_id", appt.ID.String()).Msg("mark no-show failed")
			continue
		}
		marked++
		s.logEvent(ctx, &appt.ID, EventAppointmentNoShow, map[string]any{
			"slot_end": FormatMinute(appt.EndMinute),
			"date":     dateKey(appt.Date),
		})
	}

	return marked, nil
}

func (s *Service) logEvent(ctx context.Context, appointmentID *uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Error().Err(err).Str("event", eventType).Msg("marshal event payload failed")
		data = nil
	}

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: appointmentID,
		Payload:       data,
		CreatedAt:     time.Now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Error().Err(err).Str("event", eventType).Msg("insert event log failed")
	}
}

func validateRange(from, to time.Time) error {
	verr := NewValidationError()
	if from.IsZero() {
		verr.Add("start_date", "is required")
	}
	if to.IsZero() {
		verr.Add("end_date", "is required")
	}
	if verr.Empty() {
		if to.Before(from) {
			verr.Add("end_date", "must not be before start_date")
		} else if to.Sub(from) > maxRangeDays*24*time.Hour {
			verr.Add("end_date", fmt.Sprintf("range must not exceed %d days", maxRangeDays))
		}
	}
	return verr.Err()
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func dateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
