package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JoeFilfli/schedule-wise-medical-sub000/internal/timerange"
)

var (
	ErrInvalidConfiguration = errors.New("invalid slot generation configuration")
	ErrNoSlotsToCopy        = errors.New("no slots in the previous week to copy")
)

// GenerateSlots walks a doctor's working window for one day, emitting
// candidate slots of slotLengthMin minutes separated by breakMin
// minutes, and persists the ones that do not already exist. Candidates
// whose start collides with an existing slot land in Skipped, which
// makes re-running the same parameters an idempotent no-op. Candidates
// persist independently; there is no wrapping transaction.
//
// day is the midnight instant of the target day; workStart and workEnd
// are offsets from it.
func (s *Service) GenerateSlots(ctx context.Context, doctorID uuid.UUID, day time.Time, workStart, workEnd time.Duration, slotLengthMin, breakMin int) (*GenerationResult, error) {
	if slotLengthMin <= 0 {
		return nil, fmt.Errorf("%w: slot length must be positive, got %d", ErrInvalidConfiguration, slotLengthMin)
	}
	if breakMin < 0 {
		return nil, fmt.Errorf("%w: break must not be negative, got %d", ErrInvalidConfiguration, breakMin)
	}
	if workEnd <= workStart {
		return nil, fmt.Errorf("%w: working window end %s must be after start %s", ErrInvalidConfiguration, workEnd, workStart)
	}

	if _, err := s.repo.GetDoctorByID(ctx, doctorID); err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	slotLen := time.Duration(slotLengthMin) * time.Minute
	step := slotLen + time.Duration(breakMin)*time.Minute
	windowEnd := day.Add(workEnd)

	result := &GenerationResult{}

	// The cursor advances by slot length plus break, so no two
	// candidates overlap. A candidate whose end would pass the window
	// stops the walk.
	for cursor := day.Add(workStart); !cursor.Add(slotLen).After(windowEnd); cursor = cursor.Add(step) {
		candidate := timerange.Range{Start: cursor, End: cursor.Add(slotLen)}

		slot := &Slot{
			DoctorID:  doctorID,
			StartTime: candidate.Start,
			EndTime:   candidate.End,
		}

		err := s.repo.CreateSlot(ctx, slot)
		if err != nil {
			if errors.Is(err, ErrDuplicateSlot) {
				result.Skipped = append(result.Skipped, candidate)
				continue
			}
			return result, fmt.Errorf("create slot at %s: %w", candidate.Start, err)
		}

		result.Created = append(result.Created, *slot)
	}

	s.metrics.SlotsGeneratedTotal.Add(float64(len(result.Created)))
	s.metrics.SlotsSkippedTotal.Add(float64(len(result.Skipped)))
	s.logEvent(ctx, EventSlotsGenerated, nil, nil, map[string]any{
		"doctor_id": doctorID.String(),
		"day":       day,
		"created":   len(result.Created),
		"skipped":   len(result.Skipped),
	})

	return result, nil
}

// CopyPreviousWeek re-creates last week's slots for the week starting
// at weekStart, shifting each one forward by exactly seven days.
// Targets that already exist are skipped. ErrNoSlotsToCopy when the
// source week holds no slots at all.
func (s *Service) CopyPreviousWeek(ctx context.Context, doctorID uuid.UUID, weekStart time.Time) (int, error) {
	if _, err := s.repo.GetDoctorByID(ctx, doctorID); err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return 0, err
		}
		return 0, fmt.Errorf("load doctor: %w", err)
	}

	sourceStart := weekStart.AddDate(0, 0, -7)
	source, err := s.repo.ListSlots(ctx, doctorID, sourceStart, weekStart)
	if err != nil {
		return 0, fmt.Errorf("list source week slots: %w", err)
	}
	if len(source) == 0 {
		return 0, ErrNoSlotsToCopy
	}

	const week = 7 * 24 * time.Hour

	copied := 0
	for _, v := range source {
		shifted := v.Range().Shift(week)

		slot := &Slot{
			DoctorID:  doctorID,
			StartTime: shifted.Start,
			EndTime:   shifted.End,
		}

		err := s.repo.CreateSlot(ctx, slot)
		if err != nil {
			if errors.Is(err, ErrDuplicateSlot) {
				continue
			}
			return copied, fmt.Errorf("copy slot to %s: %w", shifted.Start, err)
		}
		copied++
	}

	s.metrics.SlotsGeneratedTotal.Add(float64(copied))
	s.logEvent(ctx, EventSlotsCopied, nil, nil, map[string]any{
		"doctor_id":  doctorID.String(),
		"week_start": weekStart,
		"copied":     copied,
	})

	return copied, nil
}
