package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinhub/scheduling-engine/internal/schedule"
)

const dateLayout = "2006-01-02"

type ProfessionalResponse struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Type string    `json:"type"`
}

type SlotResponse struct {
	Date           string `json:"date"`
	Start          string `json:"start"`
	End            string `json:"end"`
	AvailableSpots int    `json:"available_spots"`
}

type AvailableSlotsResponse struct {
	Slots        []SlotResponse       `json:"slots"`
	Professional ProfessionalResponse `json:"professional"`
}

type AppointmentResponse struct {
	ID             uuid.UUID `json:"id"`
	ProfessionalID uuid.UUID `json:"professional_id"`
	PatientID      uuid.UUID `json:"patient_id"`
	Date           string    `json:"date"`
	Start          string    `json:"start"`
	End            string    `json:"end"`
	Status         string    `json:"status"`
	VideoLink      *string   `json:"video_link,omitempty"`
	CancelReason   *string   `json:"cancel_reason,omitempty"`
	CancelledBy    *string   `json:"cancelled_by,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type BlockResponse struct {
	ID             uuid.UUID `json:"id"`
	ProfessionalID uuid.UUID `json:"professional_id"`
	Date           string    `json:"date"`
	StartTime      *string   `json:"start_time,omitempty"`
	EndTime        *string   `json:"end_time,omitempty"`
	Type           string    `json:"type"`
	Reason         *string   `json:"reason,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type CreateBlockRequest struct {
	Date      string  `json:"date"`
	StartTime *string `json:"start_time,omitempty"`
	EndTime   *string `json:"end_time,omitempty"`
	Type      string  `json:"type"`
	Reason    *string `json:"reason,omitempty"`
}

type CreateBlockResponse struct {
	ID uuid.UUID `json:"id"`
}

type CancelAppointmentRequest struct {
	CancelledBy    string  `json:"cancelled_by"`
	Reason         *string `json:"reason,omitempty"`
	PatientID      *string `json:"patient_id,omitempty"`
	ProfessionalID *string `json:"professional_id,omitempty"`
}

type CancelAppointmentResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type PatientSummaryResponse struct {
	PatientID uuid.UUID `json:"patient_id"`
	Total     int       `json:"total"`
	Scheduled int       `json:"scheduled"`
	Completed int       `json:"completed"`
	Cancelled int       `json:"cancelled"`
	NoShow    int       `json:"no_show"`
	LastVisit *string   `json:"last_visit,omitempty"`
}

// PageResponse wraps paginated listings.
type PageResponse struct {
	Data    any  `json:"data"`
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

func newPageResponse(data any, total, limit, offset int) PageResponse {
	return PageResponse{
		Data:    data,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: offset+limit < total,
	}
}

type ErrorResponse struct {
	Error   string            `json:"error"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Converters

func toProfessionalResponse(p *schedule.Professional) ProfessionalResponse {
	return ProfessionalResponse{
		ID:   p.ID,
		Name: p.Name,
		Type: string(p.Type),
	}
}

func toSlotResponse(s schedule.DaySlot) SlotResponse {
	return SlotResponse{
		Date:           s.Date.Format(dateLayout),
		Start:          s.Slot.Start(),
		End:            s.Slot.End(),
		AvailableSpots: s.AvailableSpots,
	}
}

func toAppointmentResponse(a *schedule.Appointment) AppointmentResponse {
	resp := AppointmentResponse{
		ID:             a.ID,
		ProfessionalID: a.ProfessionalID,
		PatientID:      a.PatientID,
		Date:           a.Date.Format(dateLayout),
		Start:          schedule.FormatMinute(a.StartMinute),
		End:            schedule.FormatMinute(a.EndMinute),
		Status:         string(a.Status),
		VideoLink:      a.VideoLink,
		CancelReason:   a.CancelReason,
		CreatedAt:      a.CreatedAt,
	}
	if a.CancelledBy != nil {
		by := string(*a.CancelledBy)
		resp.CancelledBy = &by
	}
	return resp
}

func toBlockResponse(b *schedule.Block) BlockResponse {
	resp := BlockResponse{
		ID:             b.ID,
		ProfessionalID: b.ProfessionalID,
		Date:           b.Date.Format(dateLayout),
		Type:           string(b.Type),
		Reason:         b.Reason,
		CreatedAt:      b.CreatedAt,
	}
	if b.StartMinute != nil {
		s := schedule.FormatMinute(*b.StartMinute)
		resp.StartTime = &s
	}
	if b.EndMinute != nil {
		e := schedule.FormatMinute(*b.EndMinute)
		resp.EndTime = &e
	}
	return resp
}

func toPatientSummaryResponse(s schedule.PatientSummary) PatientSummaryResponse {
	resp := PatientSummaryResponse{
		PatientID: s.PatientID,
		Total:     s.Total,
		Scheduled: s.Scheduled,
		Completed: s.Completed,
		Cancelled: s.Cancelled,
		NoShow:    s.NoShow,
	}
	if s.LastVisit != nil {
		d := s.LastVisit.Format(dateLayout)
		resp.LastVisit = &d
	}
	return resp
}
