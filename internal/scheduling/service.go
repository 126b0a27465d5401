package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JoeFilfli/schedule-wise-medical-sub000/internal/metrics"
	redisclient "github.com/JoeFilfli/schedule-wise-medical-sub000/internal/redis"
)

const (
	EventSlotsGenerated       = "SLOTS_GENERATED"
	EventSlotsCopied          = "SLOTS_COPIED"
	EventSlotDeleted          = "SLOT_DELETED"
	EventAppointmentBooked    = "APPOINTMENT_BOOKED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
	EventAppointmentResolved  = "APPOINTMENT_RESOLVED"
)

var (
	ErrSlotAlreadyBooked = errors.New("slot already has a scheduled appointment")
	ErrSlotBeingBooked   = errors.New("slot is currently being booked, please retry")
	ErrInvalidTransition = errors.New("invalid appointment status transition")
)

type Service struct {
	repo     Repository
	locker   redisclient.Locker
	notifier Notifier
	metrics  *metrics.Collector
	log      *zap.Logger
}

func NewService(repo Repository, locker redisclient.Locker, notifier Notifier, collector *metrics.Collector, log *zap.Logger) *Service {
	return &Service{
		repo:     repo,
		locker:   locker,
		notifier: notifier,
		metrics:  collector,
		log:      log,
	}
}

// Book reserves a free slot for a patient. A per-slot distributed lock
// guards the check-and-create; the partial unique index on
// appointments(slot_id) is the backstop, so even two processes that
// both slip past the lock serialize to one winner.
func (s *Service) Book(ctx context.Context, slotID, patientID uuid.UUID, apptType, note string) (*Appointment, error) {
	if _, err := s.repo.GetPatientByID(ctx, patientID); err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	slot, err := s.repo.GetSlotByID(ctx, slotID)
	if err != nil {
		if errors.Is(err, ErrSlotNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load slot: %w", err)
	}

	var created *Appointment

	err = s.locker.WithSlotLock(ctx, slotID, func(lockCtx context.Context) error {
		// Re-check inside the critical section: a cancelled appointment
		// leaves the slot free again, only a scheduled one blocks it.
		existing, err := s.repo.GetScheduledAppointmentForSlot(lockCtx, slotID)
		if err != nil && !errors.Is(err, ErrAppointmentNotFound) {
			return fmt.Errorf("check scheduled appointment: %w", err)
		}
		if existing != nil {
			return ErrSlotAlreadyBooked
		}

		appt := &Appointment{
			SlotID:         &slot.ID,
			DoctorID:       slot.DoctorID,
			PatientID:      patientID,
			Type:           apptType,
			Note:           note,
			ScheduledStart: slot.StartTime,
			ScheduledEnd:   slot.EndTime,
		}

		if err := s.repo.CreateScheduledAppointment(lockCtx, appt); err != nil {
			if errors.Is(err, ErrSlotTaken) {
				return ErrSlotAlreadyBooked
			}
			return fmt.Errorf("create appointment: %w", err)
		}

		created = appt

		s.logEvent(lockCtx, EventAppointmentBooked, &appt.ID, &slot.ID, map[string]any{
			"patient_id":      patientID.String(),
			"doctor_id":       slot.DoctorID.String(),
			"scheduled_start": slot.StartTime,
		})

		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			s.metrics.BookingsTotal.WithLabelValues("locked").Inc()
			return nil, ErrSlotBeingBooked
		}
		if errors.Is(err, ErrSlotAlreadyBooked) {
			s.metrics.BookingsTotal.WithLabelValues("conflict").Inc()
		}
		return nil, err
	}

	s.metrics.BookingsTotal.WithLabelValues("booked").Inc()
	return created, nil
}

// Cancel moves a scheduled appointment to cancelled and returns its
// slot to the bookable pool. Cancelling an already-cancelled
// appointment is a no-op; cancelling a completed or no-show one is an
// invalid transition.
func (s *Service) Cancel(ctx context.Context, appointmentID uuid.UUID) error {
	appt, err := s.repo.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return err
		}
		return fmt.Errorf("load appointment: %w", err)
	}

	return s.cancel(ctx, appt, "cancelled")
}

func (s *Service) cancel(ctx context.Context, appt *Appointment, reason string) error {
	if appt.Status == StatusCancelled {
		return nil
	}
	if !appt.Status.CanTransitionTo(StatusCancelled) {
		return ErrInvalidTransition
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, StatusScheduled, StatusCancelled)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// Lost a race: the status changed under us. Re-read and apply
			// the same rules so a concurrent cancel stays idempotent.
			current, getErr := s.repo.GetAppointmentByID(ctx, appt.ID)
			if getErr != nil {
				return getErr
			}
			if current.Status == StatusCancelled {
				return nil
			}
			return ErrInvalidTransition
		}
		return fmt.Errorf("cancel appointment: %w", err)
	}

	s.metrics.CancellationsTotal.Inc()
	s.logEvent(ctx, EventAppointmentCancelled, &updated.ID, updated.SlotID, map[string]any{
		"reason": reason,
	})
	s.sendNotification(ctx, NotifyAppointmentCancelled, updated, reason)

	return nil
}

// Reschedule cancels the old appointment and books the new slot for the
// same patient, in that order. The two steps are not atomic: if the new
// slot was taken in the meantime, the old appointment stays cancelled
// and the conflict surfaces to the caller.
func (s *Service) Reschedule(ctx context.Context, oldAppointmentID, newSlotID uuid.UUID, apptType, note string) (*Appointment, error) {
	old, err := s.repo.GetAppointmentByID(ctx, oldAppointmentID)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	if err := s.cancel(ctx, old, "rescheduled"); err != nil {
		return nil, err
	}

	created, err := s.Book(ctx, newSlotID, old.PatientID, apptType, note)
	if err != nil {
		if errors.Is(err, ErrSlotAlreadyBooked) || errors.Is(err, ErrSlotBeingBooked) {
			s.metrics.ReschedulesTotal.WithLabelValues("conflict").Inc()
		} else {
			s.metrics.ReschedulesTotal.WithLabelValues("failed").Inc()
		}
		s.log.Warn("reschedule: book step failed after cancel",
			zap.String("old_appointment_id", oldAppointmentID.String()),
			zap.String("new_slot_id", newSlotID.String()),
			zap.Error(err))
		return nil, err
	}

	s.metrics.ReschedulesTotal.WithLabelValues("moved").Inc()
	s.sendNotification(ctx, NotifyAppointmentRescheduled, created, "rescheduled")

	return created, nil
}

// Resolve applies a doctor's terminal status to a scheduled
// appointment, attaching the review note and price.
func (s *Service) Resolve(ctx context.Context, appointmentID uuid.UUID, status AppointmentStatus, review *string, price *float64) (*Appointment, error) {
	if !status.IsValid() || status == StatusScheduled {
		return nil, ErrInvalidTransition
	}

	appt, err := s.repo.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	if !appt.Status.CanTransitionTo(status) {
		return nil, ErrInvalidTransition
	}

	updated, err := s.repo.ResolveAppointment(ctx, appointmentID, status, review, price)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// Row existed a moment ago; a concurrent writer moved it out
			// of scheduled first.
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("resolve appointment: %w", err)
	}

	s.metrics.ResolutionsTotal.WithLabelValues(string(status)).Inc()
	s.logEvent(ctx, EventAppointmentResolved, &updated.ID, updated.SlotID, map[string]any{
		"status": string(status),
	})

	return updated, nil
}

// DeleteSlot removes a slot on the doctor's behalf, cancelling its
// scheduled appointment first. The cancelled patient is notified once.
func (s *Service) DeleteSlot(ctx context.Context, slotID uuid.UUID) error {
	cancelled, err := s.repo.DeleteSlotCascade(ctx, slotID)
	if err != nil {
		if errors.Is(err, ErrSlotNotFound) {
			return err
		}
		return fmt.Errorf("delete slot: %w", err)
	}

	s.metrics.SlotsDeletedTotal.Inc()
	s.logEvent(ctx, EventSlotDeleted, nil, &slotID, nil)

	if cancelled != nil {
		s.metrics.CancellationsTotal.Inc()
		s.logEvent(ctx, EventAppointmentCancelled, &cancelled.ID, &slotID, map[string]any{
			"reason": "slot_deleted",
		})
		s.sendNotification(ctx, NotifyAppointmentCancelled, cancelled, "slot_deleted")
	}

	return nil
}

// DeleteSlotsForDay bulk-clears a doctor's slots for one day. Each
// booked slot cancels its appointment with a single notification, same
// as DeleteSlot.
func (s *Service) DeleteSlotsForDay(ctx context.Context, doctorID uuid.UUID, day time.Time) (*DayClearResult, error) {
	if _, err := s.repo.GetDoctorByID(ctx, doctorID); err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	views, err := s.repo.ListSlots(ctx, doctorID, day, day.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("list slots for day: %w", err)
	}

	result := &DayClearResult{}
	for _, v := range views {
		slotID := v.ID
		cancelled, err := s.repo.DeleteSlotCascade(ctx, slotID)
		if err != nil {
			if errors.Is(err, ErrSlotNotFound) {
				continue // already gone, someone else cleared it
			}
			return result, fmt.Errorf("delete slot %s: %w", slotID, err)
		}

		result.Deleted++
		s.metrics.SlotsDeletedTotal.Inc()

		if cancelled != nil {
			result.Cancelled++
			s.metrics.CancellationsTotal.Inc()
			s.logEvent(ctx, EventAppointmentCancelled, &cancelled.ID, &slotID, map[string]any{
				"reason": "slot_deleted",
			})
			s.sendNotification(ctx, NotifyAppointmentCancelled, cancelled, "slot_deleted")
		}
	}

	s.logEvent(ctx, EventSlotDeleted, nil, nil, map[string]any{
		"doctor_id": doctorID.String(),
		"day":       day,
		"deleted":   result.Deleted,
		"cancelled": result.Cancelled,
	})

	return result, nil
}

// ListSlots returns a doctor's slots with start times in [from, to),
// each carrying its booking state. Availability is a pure query over
// the store; no calendar state lives in the process.
func (s *Service) ListSlots(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]SlotView, error) {
	if _, err := s.repo.GetDoctorByID(ctx, doctorID); err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	views, err := s.repo.ListSlots(ctx, doctorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	return views, nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return appt, nil
}

func (s *Service) ListPatientAppointments(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	appts, err := s.repo.ListAppointmentsByPatient(ctx, patientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list appointments by patient: %w", err)
	}
	return appts, nil
}

func (s *Service) sendNotification(ctx context.Context, kind string, appt *Appointment, reason string) {
	if err := s.notifier.Notify(ctx, kind, appt, reason); err != nil {
		s.log.Error("failed to publish notification",
			zap.String("kind", kind),
			zap.String("appointment_id", appt.ID.String()),
			zap.Error(err))
		return
	}
	s.metrics.NotificationsTotal.Inc()
}

func (s *Service) logEvent(ctx context.Context, eventType string, appointmentID, slotID *uuid.UUID, payload map[string]any) {
	var data []byte
	if payload != nil {
		var err error
		data, err = json.Marshal(payload)
		if err != nil {
			s.log.Error("failed to marshal event payload",
				zap.String("event_type", eventType), zap.Error(err))
			data = nil
		}
	}

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: appointmentID,
		SlotID:        slotID,
		Payload:       data,
		CreatedAt:     time.Now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Error("failed to insert event log",
			zap.String("event_type", eventType), zap.Error(err))
	}
}
