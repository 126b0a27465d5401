package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/JoeFilfli/schedule-wise-medical-sub000/internal/scheduling"
)

type GenerateSlotsRequest struct {
	Day               string `json:"day"`        // 2006-01-02
	WorkStart         string `json:"work_start"` // 15:04
	WorkEnd           string `json:"work_end"`   // 15:04
	SlotLengthMinutes int    `json:"slot_length_minutes"`
	BreakMinutes      int    `json:"break_minutes"`
}

type CopyPreviousWeekRequest struct {
	WeekStart string `json:"week_start"` // 2006-01-02
}

type CopyPreviousWeekResponse struct {
	Copied int `json:"copied"`
}

type BookRequest struct {
	SlotID    string `json:"slot_id"`
	PatientID string `json:"patient_id"`
	Type      string `json:"type"`
	Note      string `json:"note"`
}

type RescheduleRequest struct {
	NewSlotID string `json:"new_slot_id"`
	Type      string `json:"type"`
	Note      string `json:"note"`
}

type ResolveRequest struct {
	Status string   `json:"status"`
	Review *string  `json:"review,omitempty"`
	Price  *float64 `json:"price,omitempty"`
}

type SlotResponse struct {
	ID            uuid.UUID  `json:"id"`
	DoctorID      uuid.UUID  `json:"doctor_id"`
	StartTime     time.Time  `json:"start_time"`
	EndTime       time.Time  `json:"end_time"`
	Booked        bool       `json:"booked"`
	AppointmentID *uuid.UUID `json:"appointment_id,omitempty"`
}

type TimeRangeResponse struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type GenerateSlotsResponse struct {
	Created []SlotResponse      `json:"created"`
	Skipped []TimeRangeResponse `json:"skipped"`
}

type AppointmentResponse struct {
	ID             uuid.UUID  `json:"id"`
	SlotID         *uuid.UUID `json:"slot_id,omitempty"`
	DoctorID       uuid.UUID  `json:"doctor_id"`
	PatientID      uuid.UUID  `json:"patient_id"`
	Status         string     `json:"status"`
	Type           string     `json:"type,omitempty"`
	Note           string     `json:"note,omitempty"`
	Review         *string    `json:"review,omitempty"`
	Price          *float64   `json:"price,omitempty"`
	ScheduledStart time.Time  `json:"scheduled_start"`
	ScheduledEnd   time.Time  `json:"scheduled_end"`
}

type DayClearResponse struct {
	Cancelled int `json:"cancelled"`
	Deleted   int `json:"deleted"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toAppointmentResponse(a *scheduling.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:             a.ID,
		SlotID:         a.SlotID,
		DoctorID:       a.DoctorID,
		PatientID:      a.PatientID,
		Status:         string(a.Status),
		Type:           a.Type,
		Note:           a.Note,
		Review:         a.Review,
		Price:          a.Price,
		ScheduledStart: a.ScheduledStart,
		ScheduledEnd:   a.ScheduledEnd,
	}
}

func toSlotResponse(v scheduling.SlotView) SlotResponse {
	return SlotResponse{
		ID:            v.ID,
		DoctorID:      v.DoctorID,
		StartTime:     v.StartTime,
		EndTime:       v.EndTime,
		Booked:        v.Booked,
		AppointmentID: v.AppointmentID,
	}
}
