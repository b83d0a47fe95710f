package schedule

import (
	"context"

	"github.com/google/uuid"
)

// Summarizer produces the per-patient appointment aggregates a
// professional sees on their patient list.
type Summarizer interface {
	PatientSummaries(ctx context.Context, professionalID uuid.UUID, limit, offset int) ([]PatientSummary, int, error)
}

// NewSummarizer picks the strategy by repository capability: the batch
// aggregate when the repository can group in one query, the per-patient
// fallback otherwise. Selection is an interface assertion, never an
// error-message sniff. Returns nil when the repository supports neither.
func NewSummarizer(repo Repository) Summarizer {
	if agg, ok := repo.(PatientAggregator); ok {
		return &aggregateSummarizer{agg: agg}
	}
	if lister, ok := repo.(PatientLister); ok {
		return &perPatientSummarizer{lister: lister}
	}
	return nil
}

type aggregateSummarizer struct {
	agg PatientAggregator
}

func (s *aggregateSummarizer) PatientSummaries(ctx context.Context, professionalID uuid.UUID, limit, offset int) ([]PatientSummary, int, error) {
	return s.agg.ListPatientSummaries(ctx, professionalID, limit, offset)
}

// perPatientSummarizer recomputes the aggregates with one listing per
// patient. Slower, but produces identical numbers when the batch query is
// unavailable.
type perPatientSummarizer struct {
	lister PatientLister
}

func (s *perPatientSummarizer) PatientSummaries(ctx context.Context, professionalID uuid.UUID, limit, offset int) ([]PatientSummary, int, error) {
	ids, total, err := s.lister.ListPatientIDs(ctx, professionalID, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	summaries := make([]PatientSummary, 0, len(ids))
	for _, patientID := range ids {
		appts, err := s.lister.ListAppointmentsForPatientOfProfessional(ctx, professionalID, patientID)
		if err != nil {
			return nil, 0, err
		}
		summaries = append(summaries, summarize(patientID, appts))
	}

	return summaries, total, nil
}

func summarize(patientID uuid.UUID, appts []Appointment) PatientSummary {
	s := PatientSummary{PatientID: patientID}
	for i := range appts {
		a := &appts[i]
		s.Total++
		switch a.Status {
		case StatusScheduled:
			s.Scheduled++
		case StatusCompleted:
			s.Completed++
			if s.LastVisit == nil || a.Date.After(*s.LastVisit) {
				d := a.Date
				s.LastVisit = &d
			}
		case StatusCancelled:
			s.Cancelled++
		case StatusNoShow:
			s.NoShow++
		}
	}
	return s
}
