package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrPatientNotFound     = errors.New("patient not found")
	ErrSlotNotFound        = errors.New("slot not found")
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrDuplicateSlot means a slot with the same (doctor, start) already
	// exists. The generator treats this as a skip, not a failure.
	ErrDuplicateSlot = errors.New("slot already exists for doctor at start time")

	// ErrSlotTaken means another scheduled appointment already holds the
	// slot; raised by the partial unique index on insert.
	ErrSlotTaken = errors.New("slot already has a scheduled appointment")
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)

	// CreateSlot persists a new slot; ErrDuplicateSlot when the doctor
	// already has one starting at the same instant.
	CreateSlot(ctx context.Context, slot *Slot) error
	GetSlotByID(ctx context.Context, id uuid.UUID) (*Slot, error)

	// ListSlots returns a doctor's slots with start_time in [from, to),
	// each annotated with its booking state, ordered by start_time.
	ListSlots(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]SlotView, error)

	// DeleteSlotCascade cancels the slot's scheduled appointment (if
	// any) and removes the slot row in one transaction. Returns the
	// cancelled appointment, or nil when the slot was free.
	DeleteSlotCascade(ctx context.Context, slotID uuid.UUID) (*Appointment, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// GetScheduledAppointmentForSlot is the pre-insert conflict check.
	GetScheduledAppointmentForSlot(ctx context.Context, slotID uuid.UUID) (*Appointment, error)

	// CreateScheduledAppointment inserts a scheduled appointment;
	// ErrSlotTaken when a concurrent booker won the slot.
	CreateScheduledAppointment(ctx context.Context, appt *Appointment) error

	// UpdateAppointmentStatus is a compare-and-set on status;
	// ErrAppointmentNotFound when no row matched (id, from).
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error)

	// ResolveAppointment moves a scheduled appointment to a terminal
	// status with review/price attached, compare-and-set like
	// UpdateAppointmentStatus.
	ResolveAppointment(ctx context.Context, id uuid.UUID, to AppointmentStatus, review *string, price *float64) (*Appointment, error)

	ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
