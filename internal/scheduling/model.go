package scheduling

import (
	"time"

	"github.com/google/uuid"

	"github.com/JoeFilfli/schedule-wise-medical-sub000/internal/timerange"
)

type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "scheduled"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusNoShow    AppointmentStatus = "no_show"
)

func (s AppointmentStatus) IsValid() bool {
	switch s {
	case StatusScheduled, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// Transition table. scheduled is the only non-terminal state; nothing
// leaves completed, cancelled, or no_show.
var allowedTransitions = map[AppointmentStatus][]AppointmentStatus{
	StatusScheduled: {StatusCompleted, StatusCancelled, StatusNoShow},
	StatusCompleted: {},
	StatusCancelled: {},
	StatusNoShow:    {},
}

func (s AppointmentStatus) CanTransitionTo(next AppointmentStatus) bool {
	for _, t := range allowedTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

type Doctor struct {
	ID        uuid.UUID
	Name      string
	Specialty *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Slot is a doctor-owned bookable time window. (doctor_id, start_time)
// is unique per doctor.
type Slot struct {
	ID        uuid.UUID
	DoctorID  uuid.UUID
	StartTime time.Time
	EndTime   time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (s *Slot) Range() timerange.Range {
	return timerange.Range{Start: s.StartTime, End: s.EndTime}
}

// Appointment is one patient's reservation of a slot. ScheduledStart
// and ScheduledEnd snapshot the slot's times so the appointment stays
// meaningful after the slot row is gone; SlotID goes nil when the slot
// is deleted out from under a cancelled appointment.
type Appointment struct {
	ID             uuid.UUID
	SlotID         *uuid.UUID
	DoctorID       uuid.UUID
	PatientID      uuid.UUID
	Status         AppointmentStatus
	Type           string
	Note           string
	Review         *string
	Price          *float64
	ScheduledStart time.Time
	ScheduledEnd   time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// SlotView is a slot annotated with its booking state, as returned by
// slot listings.
type SlotView struct {
	Slot
	Booked        bool
	AppointmentID *uuid.UUID
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	SlotID        *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

// GenerationResult reports a generation pass: Created holds persisted
// slots, Skipped the candidate ranges that already existed. A non-empty
// Skipped is expected output, not a failure.
type GenerationResult struct {
	Created []Slot
	Skipped []timerange.Range
}

// DayClearResult reports a bulk day delete.
type DayClearResult struct {
	Cancelled int
	Deleted   int
}
