package schedule

import (
	"time"

	"github.com/google/uuid"
)

type ProfessionalType string

const (
	ProfessionalDoctor       ProfessionalType = "doctor"
	ProfessionalNutritionist ProfessionalType = "nutritionist"
	ProfessionalTherapist    ProfessionalType = "therapist"
)

func ValidProfessionalType(t ProfessionalType) bool {
	switch t {
	case ProfessionalDoctor, ProfessionalNutritionist, ProfessionalTherapist:
		return true
	}
	return false
}

type BlockType string

const (
	BlockVacation BlockType = "vacation"
	BlockHoliday  BlockType = "holiday"
	BlockPersonal BlockType = "personal"
	BlockOther    BlockType = "other"
)

func ValidBlockType(t BlockType) bool {
	switch t {
	case BlockVacation, BlockHoliday, BlockPersonal, BlockOther:
		return true
	}
	return false
}

type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "scheduled"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusNoShow    AppointmentStatus = "no_show"
)

func ValidAppointmentStatus(s AppointmentStatus) bool {
	switch s {
	case StatusScheduled, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// CancelActor is the role initiating a cancellation.
type CancelActor string

const (
	ActorPatient      CancelActor = "patient"
	ActorProfessional CancelActor = "professional"
	ActorSystem       CancelActor = "system"
)

func ValidCancelActor(a CancelActor) bool {
	switch a {
	case ActorPatient, ActorProfessional, ActorSystem:
		return true
	}
	return false
}

type Professional struct {
	ID              uuid.UUID
	Name            string
	Type            ProfessionalType
	Active          bool
	ProfileComplete bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Block is an unavailability exception owned by one professional.
// StartMinute/EndMinute are minutes since midnight; both nil means a
// full-day block.
type Block struct {
	ID             uuid.UUID
	ProfessionalID uuid.UUID
	Date           time.Time
	StartMinute    *int
	EndMinute      *int
	Type           BlockType
	Reason         *string
	CreatedAt      time.Time
}

func (b *Block) FullDay() bool {
	return b.StartMinute == nil && b.EndMinute == nil
}

// Covers reports whether the block makes the interval [start, end)
// unavailable. A full-day block covers everything on its date; partial
// blocks use the half-open intersection test s1 < e2 && s2 < e1.
func (b *Block) Covers(start, end int) bool {
	if b.FullDay() {
		return true
	}
	return *b.StartMinute < end && start < *b.EndMinute
}

type Appointment struct {
	ID             uuid.UUID
	ProfessionalID uuid.UUID
	PatientID      uuid.UUID
	Date           time.Time
	StartMinute    int
	EndMinute      int
	Status         AppointmentStatus
	VideoLink      *string
	CancelReason   *string
	CancelledBy    *CancelActor
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// SlotCount is a scheduled-appointment tally for one (date, slot start).
type SlotCount struct {
	Date        time.Time
	StartMinute int
	Count       int
}

// DaySlot is one availability answer row.
type DaySlot struct {
	Date           time.Time
	Slot           Slot
	AvailableSpots int
}

// PatientSummary aggregates one patient's appointment history with a
// professional.
type PatientSummary struct {
	PatientID uuid.UUID
	Total     int
	Scheduled int
	Completed int
	Cancelled int
	NoShow    int
	LastVisit *time.Time
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
