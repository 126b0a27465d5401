package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	constraintSlotDoctorStart   = "uq_slots_doctor_start"
	constraintSlotScheduledOnce = "uq_appointments_slot_scheduled"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == constraint
	}
	return false
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	var specialty *string

	err := row.Scan(
		&d.ID,
		&d.Name,
		&specialty,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}

	d.Specialty = specialty
	return &d, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var email *string

	err := row.Scan(
		&p.ID,
		&p.Name,
		&email,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	p.Email = email
	return &p, nil
}

func scanSlot(row pgx.Row) (*Slot, error) {
	var s Slot

	err := row.Scan(
		&s.ID,
		&s.DoctorID,
		&s.StartTime,
		&s.EndTime,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}

	return &s, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var slotID *uuid.UUID
	var review *string
	var price *float64

	err := row.Scan(
		&a.ID,
		&slotID,
		&a.DoctorID,
		&a.PatientID,
		&a.Status,
		&a.Type,
		&a.Note,
		&review,
		&price,
		&a.ScheduledStart,
		&a.ScheduledEnd,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.SlotID = slotID
	a.Review = review
	a.Price = price
	return &a, nil
}

const appointmentColumns = `id, slot_id, doctor_id, patient_id, status, type, note, review, price, scheduled_start, scheduled_end, created_at, updated_at`

// Interface methods

func (r *PgRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, specialty, created_at, updated_at
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) CreateSlot(ctx context.Context, slot *Slot) error {
	if slot.ID == uuid.Nil {
		slot.ID = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO slots (id, doctor_id, start_time, end_time, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		RETURNING id, doctor_id, start_time, end_time, created_at, updated_at
	`, slot.ID, slot.DoctorID, slot.StartTime, slot.EndTime)

	created, err := scanSlot(row)
	if err != nil {
		if isUniqueViolation(err, constraintSlotDoctorStart) {
			return ErrDuplicateSlot
		}
		return err
	}

	*slot = *created
	return nil
}

func (r *PgRepository) GetSlotByID(ctx context.Context, id uuid.UUID) (*Slot, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, doctor_id, start_time, end_time, created_at, updated_at
		FROM slots
		WHERE id = $1
	`, id)
	return scanSlot(row)
}

func (r *PgRepository) ListSlots(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]SlotView, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT s.id, s.doctor_id, s.start_time, s.end_time, s.created_at, s.updated_at,
		       a.id
		FROM slots s
		LEFT JOIN appointments a
		  ON a.slot_id = s.id AND a.status = 'scheduled'
		WHERE s.doctor_id = $1
		  AND s.start_time >= $2
		  AND s.start_time < $3
		ORDER BY s.start_time
	`, doctorID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []SlotView
	for rows.Next() {
		var v SlotView
		var apptID *uuid.UUID

		err := rows.Scan(
			&v.ID,
			&v.DoctorID,
			&v.StartTime,
			&v.EndTime,
			&v.CreatedAt,
			&v.UpdatedAt,
			&apptID,
		)
		if err != nil {
			return nil, err
		}

		v.AppointmentID = apptID
		v.Booked = apptID != nil
		result = append(result, v)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// DeleteSlotCascade cancels the scheduled appointment holding the slot
// (if any), detaches every appointment snapshot from the slot row, and
// deletes the slot, all in one transaction so no reader observes a
// deleted slot with a live appointment.
func (r *PgRepository) DeleteSlotCascade(ctx context.Context, slotID uuid.UUID) (*Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin delete slot tx: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'cancelled',
		    updated_at = now()
		WHERE slot_id = $1
		  AND status = 'scheduled'
		RETURNING `+appointmentColumns+`
	`, slotID)

	cancelled, err := scanAppointment(row)
	if err != nil && !errors.Is(err, ErrAppointmentNotFound) {
		return nil, fmt.Errorf("cancel appointment for slot: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE appointments
		SET slot_id = NULL,
		    updated_at = now()
		WHERE slot_id = $1
	`, slotID); err != nil {
		return nil, fmt.Errorf("detach appointments from slot: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		DELETE FROM slots
		WHERE id = $1
	`, slotID)
	if err != nil {
		return nil, fmt.Errorf("delete slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrSlotNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit delete slot tx: %w", err)
	}

	if cancelled != nil {
		cancelled.SlotID = nil
	}
	return cancelled, nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) GetScheduledAppointmentForSlot(ctx context.Context, slotID uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE slot_id = $1 AND status = 'scheduled'
	`, slotID)
	return scanAppointment(row)
}

func (r *PgRepository) CreateScheduledAppointment(ctx context.Context, appt *Appointment) error {
	if appt.ID == uuid.Nil {
		appt.ID = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, slot_id, doctor_id, patient_id, status, type, note, scheduled_start, scheduled_end, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 'scheduled', $5, $6, $7, $8, now(), now())
		RETURNING `+appointmentColumns+`
	`, appt.ID, appt.SlotID, appt.DoctorID, appt.PatientID, appt.Type, appt.Note, appt.ScheduledStart, appt.ScheduledEnd)

	created, err := scanAppointment(row)
	if err != nil {
		if isUniqueViolation(err, constraintSlotScheduledOnce) {
			return ErrSlotTaken
		}
		return err
	}

	*appt = *created
	return nil
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, to, from)

	return scanAppointment(row)
}

func (r *PgRepository) ResolveAppointment(ctx context.Context, id uuid.UUID, to AppointmentStatus, review *string, price *float64) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    review = $3,
		    price = $4,
		    updated_at = now()
		WHERE id = $1
		  AND status = 'scheduled'
		RETURNING `+appointmentColumns+`
	`, id, to, review, price)

	return scanAppointment(row)
}

func (r *PgRepository) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1
		ORDER BY scheduled_start DESC
		LIMIT $2 OFFSET $3
	`, patientID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

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

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, slot_id, payload, created_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, now()))
	`, ev.EventType, ev.AppointmentID, ev.SlotID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
