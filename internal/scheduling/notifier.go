package scheduling

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	NotifyAppointmentCancelled   = "appointment.cancelled"
	NotifyAppointmentRescheduled = "appointment.rescheduled"
)

// Notifier delivers the patient/doctor notification obligation for
// cancellations and reschedules. Delivery is external; the engine only
// publishes.
type Notifier interface {
	Notify(ctx context.Context, kind string, appt *Appointment, reason string) error
}

type notifyMessage struct {
	Kind          string    `json:"kind"`
	AppointmentID string    `json:"appointment_id"`
	DoctorID      string    `json:"doctor_id"`
	PatientID     string    `json:"patient_id"`
	Start         time.Time `json:"scheduled_start"`
	End           time.Time `json:"scheduled_end"`
	Reason        string    `json:"reason,omitempty"`
	SentAt        time.Time `json:"sent_at"`
}

type redisNotifier struct {
	client  *redis.Client
	channel string
}

// NewRedisNotifier publishes notification events to a Redis pub/sub
// channel for the external delivery service to consume.
func NewRedisNotifier(client *redis.Client, channel string) Notifier {
	if channel == "" {
		channel = "notifications:appointments"
	}
	return &redisNotifier{client: client, channel: channel}
}

func (n *redisNotifier) Notify(ctx context.Context, kind string, appt *Appointment, reason string) error {
	msg := notifyMessage{
		Kind:          kind,
		AppointmentID: appt.ID.String(),
		DoctorID:      appt.DoctorID.String(),
		PatientID:     appt.PatientID.String(),
		Start:         appt.ScheduledStart,
		End:           appt.ScheduledEnd,
		Reason:        reason,
		SentAt:        time.Now(),
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	if err := n.client.Publish(ctx, n.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}

	return nil
}

// NopNotifier discards notifications; used when no delivery channel is
// configured and in tests.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, string, *Appointment, string) error { return nil }
