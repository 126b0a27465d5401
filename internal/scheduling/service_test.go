package scheduling

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/JoeFilfli/schedule-wise-medical-sub000/internal/metrics"
)

// One collector per test binary; promauto registers globally.
var testCollector = metrics.NewCollector("test")

// -- Mock Repository --

type mockRepo struct {
	mu       sync.Mutex
	doctors  map[uuid.UUID]*Doctor
	patients map[uuid.UUID]*Patient
	slots    map[uuid.UUID]*Slot
	appts    map[uuid.UUID]*Appointment
	events   []EventLog
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		doctors:  make(map[uuid.UUID]*Doctor),
		patients: make(map[uuid.UUID]*Patient),
		slots:    make(map[uuid.UUID]*Slot),
		appts:    make(map[uuid.UUID]*Appointment),
	}
}

func (m *mockRepo) addDoctor() uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.doctors[id] = &Doctor{ID: id, Name: "Dr. Test"}
	return id
}

func (m *mockRepo) addPatient() uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.patients[id] = &Patient{ID: id, Name: "Pat Test"}
	return id
}

func (m *mockRepo) addSlot(doctorID uuid.UUID, start, end time.Time) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.slots[id] = &Slot{ID: id, DoctorID: doctorID, StartTime: start, EndTime: end}
	return id
}

func (m *mockRepo) GetDoctorByID(_ context.Context, id uuid.UUID) (*Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	return d, nil
}

func (m *mockRepo) GetPatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return p, nil
}

func (m *mockRepo) CreateSlot(_ context.Context, slot *Slot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.slots {
		if existing.DoctorID == slot.DoctorID && existing.StartTime.Equal(slot.StartTime) {
			return ErrDuplicateSlot
		}
	}
	if slot.ID == uuid.Nil {
		slot.ID = uuid.New()
	}
	slot.CreatedAt = time.Now()
	slot.UpdatedAt = slot.CreatedAt
	stored := *slot
	m.slots[slot.ID] = &stored
	return nil
}

func (m *mockRepo) GetSlotByID(_ context.Context, id uuid.UUID) (*Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	copied := *s
	return &copied, nil
}

func (m *mockRepo) scheduledForSlotLocked(slotID uuid.UUID) *Appointment {
	for _, a := range m.appts {
		if a.SlotID != nil && *a.SlotID == slotID && a.Status == StatusScheduled {
			return a
		}
	}
	return nil
}

func (m *mockRepo) ListSlots(_ context.Context, doctorID uuid.UUID, from, to time.Time) ([]SlotView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var views []SlotView
	for _, s := range m.slots {
		if s.DoctorID != doctorID || s.StartTime.Before(from) || !s.StartTime.Before(to) {
			continue
		}
		v := SlotView{Slot: *s}
		if a := m.scheduledForSlotLocked(s.ID); a != nil {
			v.Booked = true
			id := a.ID
			v.AppointmentID = &id
		}
		views = append(views, v)
	}
	sort.Slice(views, func(i, j int) bool { return views[i].StartTime.Before(views[j].StartTime) })
	return views, nil
}

func (m *mockRepo) DeleteSlotCascade(_ context.Context, slotID uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.slots[slotID]; !ok {
		return nil, ErrSlotNotFound
	}

	var cancelled *Appointment
	if a := m.scheduledForSlotLocked(slotID); a != nil {
		a.Status = StatusCancelled
		a.UpdatedAt = time.Now()
		copied := *a
		cancelled = &copied
	}
	for _, a := range m.appts {
		if a.SlotID != nil && *a.SlotID == slotID {
			a.SlotID = nil
		}
	}
	delete(m.slots, slotID)

	if cancelled != nil {
		cancelled.SlotID = nil
	}
	return cancelled, nil
}

func (m *mockRepo) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	copied := *a
	return &copied, nil
}

func (m *mockRepo) GetScheduledAppointmentForSlot(_ context.Context, slotID uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a := m.scheduledForSlotLocked(slotID); a != nil {
		copied := *a
		return &copied, nil
	}
	return nil, ErrAppointmentNotFound
}

func (m *mockRepo) CreateScheduledAppointment(_ context.Context, appt *Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// Mirrors the partial unique index: one scheduled appointment per slot.
	if appt.SlotID != nil && m.scheduledForSlotLocked(*appt.SlotID) != nil {
		return ErrSlotTaken
	}
	if appt.ID == uuid.Nil {
		appt.ID = uuid.New()
	}
	appt.Status = StatusScheduled
	appt.CreatedAt = time.Now()
	appt.UpdatedAt = appt.CreatedAt
	stored := *appt
	m.appts[appt.ID] = &stored
	return nil
}

func (m *mockRepo) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	a.UpdatedAt = time.Now()
	copied := *a
	return &copied, nil
}

func (m *mockRepo) ResolveAppointment(_ context.Context, id uuid.UUID, to AppointmentStatus, review *string, price *float64) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok || a.Status != StatusScheduled {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	a.Review = review
	a.Price = price
	a.UpdatedAt = time.Now()
	copied := *a
	return &copied, nil
}

func (m *mockRepo) ListAppointmentsByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []Appointment
	for _, a := range m.appts {
		if a.PatientID == patientID {
			result = append(result, *a)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ScheduledStart.After(result[j].ScheduledStart) })
	return result, nil
}

func (m *mockRepo) InsertEvent(_ context.Context, ev EventLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

// -- Mock collaborators --

// passLocker runs the critical section with no exclusion, so tests
// exercise the repository uniqueness backstop the way a second process
// instance would.
type passLocker struct{}

func (passLocker) WithSlotLock(ctx context.Context, _ uuid.UUID, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []string // kind + ":" + appointment id
}

func (n *recordingNotifier) Notify(_ context.Context, kind string, appt *Appointment, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, kind+":"+appt.ID.String())
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

func newTestService(repo *mockRepo, notifier Notifier) *Service {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return NewService(repo, passLocker{}, notifier, testCollector, zap.NewNop())
}

func day(y int, mo time.Month, d int) time.Time {
	return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
}

// -- Book --

func TestBookFreeSlot(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, nil)

	doctorID := repo.addDoctor()
	patientID := repo.addPatient()
	start := day(2024, 6, 3).Add(9 * time.Hour)
	slotID := repo.addSlot(doctorID, start, start.Add(20*time.Minute))

	appt, err := svc.Book(context.Background(), slotID, patientID, "consultation", "first visit")
	if err != nil {
		t.Fatalf("Book: %v", err)
	}

	if appt.Status != StatusScheduled {
		t.Errorf("status = %s, want %s", appt.Status, StatusScheduled)
	}
	if appt.SlotID == nil || *appt.SlotID != slotID {
		t.Errorf("slot id = %v, want %s", appt.SlotID, slotID)
	}
	if !appt.ScheduledStart.Equal(start) || !appt.ScheduledEnd.Equal(start.Add(20*time.Minute)) {
		t.Errorf("snapshot times = %s..%s, want slot times", appt.ScheduledStart, appt.ScheduledEnd)
	}
	if appt.DoctorID != doctorID || appt.PatientID != patientID {
		t.Error("doctor/patient references not carried onto appointment")
	}
}

func TestBookUnknownSlotAndPatient(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, nil)

	patientID := repo.addPatient()

	if _, err := svc.Book(context.Background(), uuid.New(), patientID, "", ""); !errors.Is(err, ErrSlotNotFound) {
		t.Errorf("unknown slot: got %v, want ErrSlotNotFound", err)
	}

	doctorID := repo.addDoctor()
	start := day(2024, 6, 3).Add(9 * time.Hour)
	slotID := repo.addSlot(doctorID, start, start.Add(20*time.Minute))

	if _, err := svc.Book(context.Background(), slotID, uuid.New(), "", ""); !errors.Is(err, ErrPatientNotFound) {
		t.Errorf("unknown patient: got %v, want ErrPatientNotFound", err)
	}
}

func TestBookBookedSlotConflicts(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, nil)

	doctorID := repo.addDoctor()
	start := day(2024, 6, 3).Add(9 * time.Hour)
	slotID := repo.addSlot(doctorID, start, start.Add(20*time.Minute))

	if _, err := svc.Book(context.Background(), slotID, repo.addPatient(), "", ""); err != nil {
		t.Fatalf("first booking: %v", err)
	}

	_, err := svc.Book(context.Background(), slotID, repo.addPatient(), "", "")
	if !errors.Is(err, ErrSlotAlreadyBooked) {
		t.Errorf("second booking: got %v, want ErrSlotAlreadyBooked", err)
	}
}

func TestConcurrentBookingOneWinner(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, nil)

	doctorID := repo.addDoctor()
	start := day(2024, 6, 3).Add(9 * time.Hour)
	slotID := repo.addSlot(doctorID, start, start.Add(20*time.Minute))

	const n = 32
	patients := make([]uuid.UUID, n)
	for i := range patients {
		patients[i] = repo.addPatient()
	}

	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Book(context.Background(), slotID, patients[i], "", "")
		}(i)
	}
	wg.Wait()

	wins, conflicts := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrSlotAlreadyBooked):
			conflicts++
		default:
			t.Errorf("unexpected booking error: %v", err)
		}
	}

	if wins != 1 {
		t.Errorf("winners = %d, want exactly 1", wins)
	}
	if conflicts != n-1 {
		t.Errorf("conflicts = %d, want %d", conflicts, n-1)
	}
}

func TestBookCancelledSlotIsFreeAgain(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, nil)

	doctorID := repo.addDoctor()
	start := day(2024, 6, 3).Add(9 * time.Hour)
	slotID := repo.addSlot(doctorID, start, start.Add(20*time.Minute))

	first, err := svc.Book(context.Background(), slotID, repo.addPatient(), "", "")
	if err != nil {
		t.Fatalf("first booking: %v", err)
	}
	if err := svc.Cancel(context.Background(), first.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	// The slot row survives cancellation and returns to the pool.
	second, err := svc.Book(context.Background(), slotID, repo.addPatient(), "", "")
	if err != nil {
		t.Fatalf("rebooking after cancel: %v", err)
	}
	if second.ID == first.ID {
		t.Error("rebooking must create a new appointment")
	}
}

// -- Cancel --

func TestCancelIsIdempotent(t *testing.T) {
	repo := newMockRepo()
	notifier := &recordingNotifier{}
	svc := newTestService(repo, notifier)

	doctorID := repo.addDoctor()
	start := day(2024, 6, 3).Add(9 * time.Hour)
	slotID := repo.addSlot(doctorID, start, start.Add(20*time.Minute))

	appt, err := svc.Book(context.Background(), slotID, repo.addPatient(), "", "")
	if err != nil {
		t.Fatalf("book: %v", err)
	}

	if err := svc.Cancel(context.Background(), appt.ID); err != nil {
		t.Fatalf("first cancel: %v", err)
	}
	if err := svc.Cancel(context.Background(), appt.ID); err != nil {
		t.Fatalf("second cancel should be a no-op, got: %v", err)
	}

	if got := notifier.count(); got != 1 {
		t.Errorf("notifications = %d, want 1 (no re-notify on idempotent cancel)", got)
	}
}

func TestCancelFromTerminalStateFails(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, nil)

	doctorID := repo.addDoctor()
	start := day(2024, 6, 3).Add(9 * time.Hour)
	slotID := repo.addSlot(doctorID, start, start.Add(20*time.Minute))

	appt, err := svc.Book(context.Background(), slotID, repo.addPatient(), "", "")
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if _, err := svc.Resolve(context.Background(), appt.ID, StatusCompleted, nil, nil); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if err := svc.Cancel(context.Background(), appt.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("cancel completed: got %v, want ErrInvalidTransition", err)
	}
}

func TestCancelUnknownAppointment(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, nil)

	if err := svc.Cancel(context.Background(), uuid.New()); !errors.Is(err, ErrAppointmentNotFound) {
		t.Errorf("got %v, want ErrAppointmentNotFound", err)
	}
}

// -- Reschedule --

func TestRescheduleMovesPatient(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, nil)

	doctorID := repo.addDoctor()
	patientID := repo.addPatient()
	startA := day(2024, 6, 3).Add(9 * time.Hour)
	startB := day(2024, 6, 3).Add(10 * time.Hour)
	slotA := repo.addSlot(doctorID, startA, startA.Add(20*time.Minute))
	slotB := repo.addSlot(doctorID, startB, startB.Add(20*time.Minute))

	old, err := svc.Book(context.Background(), slotA, patientID, "consultation", "")
	if err != nil {
		t.Fatalf("book: %v", err)
	}

	moved, err := svc.Reschedule(context.Background(), old.ID, slotB, "consultation", "moved")
	if err != nil {
		t.Fatalf("reschedule: %v", err)
	}

	if moved.PatientID != patientID {
		t.Error("reschedule must keep the same patient")
	}
	if !moved.ScheduledStart.Equal(startB) {
		t.Errorf("new appointment start = %s, want %s", moved.ScheduledStart, startB)
	}

	oldAfter, err := svc.GetAppointment(context.Background(), old.ID)
	if err != nil {
		t.Fatalf("get old appointment: %v", err)
	}
	if oldAfter.Status != StatusCancelled {
		t.Errorf("old status = %s, want %s", oldAfter.Status, StatusCancelled)
	}
}

func TestRescheduleConflictLeavesOldCancelled(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, nil)

	doctorID := repo.addDoctor()
	patientID := repo.addPatient()
	startA := day(2024, 6, 3).Add(9 * time.Hour)
	startB := day(2024, 6, 3).Add(10 * time.Hour)
	slotA := repo.addSlot(doctorID, startA, startA.Add(20*time.Minute))
	slotB := repo.addSlot(doctorID, startB, startB.Add(20*time.Minute))

	old, err := svc.Book(context.Background(), slotA, patientID, "", "")
	if err != nil {
		t.Fatalf("book old: %v", err)
	}
	// Another patient takes the target slot first.
	if _, err := svc.Book(context.Background(), slotB, repo.addPatient(), "", ""); err != nil {
		t.Fatalf("book target: %v", err)
	}

	_, err = svc.Reschedule(context.Background(), old.ID, slotB, "", "")
	if !errors.Is(err, ErrSlotAlreadyBooked) {
		t.Fatalf("reschedule into taken slot: got %v, want ErrSlotAlreadyBooked", err)
	}

	// The cancel step already happened; the old booking is not restored.
	oldAfter, err := svc.GetAppointment(context.Background(), old.ID)
	if err != nil {
		t.Fatalf("get old appointment: %v", err)
	}
	if oldAfter.Status != StatusCancelled {
		t.Errorf("old status after failed reschedule = %s, want %s", oldAfter.Status, StatusCancelled)
	}
}

func TestRescheduleUnknownSlotNotCountedAsConflict(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, nil)

	doctorID := repo.addDoctor()
	start := day(2024, 6, 3).Add(9 * time.Hour)
	slotID := repo.addSlot(doctorID, start, start.Add(20*time.Minute))

	old, err := svc.Book(context.Background(), slotID, repo.addPatient(), "", "")
	if err != nil {
		t.Fatalf("book: %v", err)
	}

	conflictBefore := testutil.ToFloat64(testCollector.ReschedulesTotal.WithLabelValues("conflict"))
	failedBefore := testutil.ToFloat64(testCollector.ReschedulesTotal.WithLabelValues("failed"))

	_, err = svc.Reschedule(context.Background(), old.ID, uuid.New(), "", "")
	if !errors.Is(err, ErrSlotNotFound) {
		t.Fatalf("reschedule to unknown slot: got %v, want ErrSlotNotFound", err)
	}

	if got := testutil.ToFloat64(testCollector.ReschedulesTotal.WithLabelValues("conflict")); got != conflictBefore {
		t.Errorf("conflict outcome = %v, want unchanged %v (a missing slot is not a booking conflict)", got, conflictBefore)
	}
	if got := testutil.ToFloat64(testCollector.ReschedulesTotal.WithLabelValues("failed")); got != failedBefore+1 {
		t.Errorf("failed outcome = %v, want %v", got, failedBefore+1)
	}
}

// -- Resolve --

func TestResolveScheduledAppointment(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, nil)

	doctorID := repo.addDoctor()
	start := day(2024, 6, 3).Add(9 * time.Hour)
	slotID := repo.addSlot(doctorID, start, start.Add(20*time.Minute))

	appt, err := svc.Book(context.Background(), slotID, repo.addPatient(), "", "")
	if err != nil {
		t.Fatalf("book: %v", err)
	}

	review := "routine checkup, all clear"
	price := 85.0
	resolved, err := svc.Resolve(context.Background(), appt.ID, StatusCompleted, &review, &price)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if resolved.Status != StatusCompleted {
		t.Errorf("status = %s, want %s", resolved.Status, StatusCompleted)
	}
	if resolved.Review == nil || *resolved.Review != review {
		t.Errorf("review = %v, want %q", resolved.Review, review)
	}
	if resolved.Price == nil || *resolved.Price != price {
		t.Errorf("price = %v, want %v", resolved.Price, price)
	}
}

func TestResolveTerminalStateFails(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, nil)

	doctorID := repo.addDoctor()
	start := day(2024, 6, 3).Add(9 * time.Hour)
	slotID := repo.addSlot(doctorID, start, start.Add(20*time.Minute))

	appt, err := svc.Book(context.Background(), slotID, repo.addPatient(), "", "")
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if _, err := svc.Resolve(context.Background(), appt.ID, StatusNoShow, nil, nil); err != nil {
		t.Fatalf("first resolve: %v", err)
	}

	for _, status := range []AppointmentStatus{StatusCompleted, StatusNoShow, StatusCancelled} {
		if _, err := svc.Resolve(context.Background(), appt.ID, status, nil, nil); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("resolve %s from terminal: got %v, want ErrInvalidTransition", status, err)
		}
	}
}

func TestResolveRejectsNonTerminalTarget(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, nil)

	if _, err := svc.Resolve(context.Background(), uuid.New(), StatusScheduled, nil, nil); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("resolve to scheduled: got %v, want ErrInvalidTransition", err)
	}
	if _, err := svc.Resolve(context.Background(), uuid.New(), AppointmentStatus("bogus"), nil, nil); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("resolve to bogus status: got %v, want ErrInvalidTransition", err)
	}
}

// -- Slot deletion --

func TestDeleteSlotCancelsAndNotifiesOnce(t *testing.T) {
	repo := newMockRepo()
	notifier := &recordingNotifier{}
	svc := newTestService(repo, notifier)

	doctorID := repo.addDoctor()
	start := day(2024, 6, 3).Add(9 * time.Hour)
	slotID := repo.addSlot(doctorID, start, start.Add(20*time.Minute))

	appt, err := svc.Book(context.Background(), slotID, repo.addPatient(), "", "")
	if err != nil {
		t.Fatalf("book: %v", err)
	}

	if err := svc.DeleteSlot(context.Background(), slotID); err != nil {
		t.Fatalf("delete slot: %v", err)
	}

	after, err := svc.GetAppointment(context.Background(), appt.ID)
	if err != nil {
		t.Fatalf("get appointment: %v", err)
	}
	if after.Status != StatusCancelled {
		t.Errorf("appointment status = %s, want %s", after.Status, StatusCancelled)
	}
	if after.SlotID != nil {
		t.Error("appointment should be detached from the deleted slot")
	}
	if !after.ScheduledStart.Equal(start) {
		t.Error("snapshot times must survive slot deletion")
	}
	if got := notifier.count(); got != 1 {
		t.Errorf("notifications = %d, want exactly 1", got)
	}

	if _, err := svc.Book(context.Background(), slotID, repo.addPatient(), "", ""); !errors.Is(err, ErrSlotNotFound) {
		t.Errorf("booking a deleted slot: got %v, want ErrSlotNotFound", err)
	}
}

func TestDeleteSlotsForDay(t *testing.T) {
	repo := newMockRepo()
	notifier := &recordingNotifier{}
	svc := newTestService(repo, notifier)

	doctorID := repo.addDoctor()
	target := day(2024, 6, 3)
	for hour := 9; hour < 12; hour++ {
		repo.addSlot(doctorID, target.Add(time.Duration(hour)*time.Hour), target.Add(time.Duration(hour)*time.Hour+20*time.Minute))
	}
	// Slot on another day stays untouched.
	otherStart := target.AddDate(0, 0, 1).Add(9 * time.Hour)
	repo.addSlot(doctorID, otherStart, otherStart.Add(20*time.Minute))

	views, err := svc.ListSlots(context.Background(), doctorID, target, target.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	bookedSlot := views[0].ID
	appt, err := svc.Book(context.Background(), bookedSlot, repo.addPatient(), "", "")
	if err != nil {
		t.Fatalf("book: %v", err)
	}

	result, err := svc.DeleteSlotsForDay(context.Background(), doctorID, target)
	if err != nil {
		t.Fatalf("delete day: %v", err)
	}

	if result.Deleted != 3 {
		t.Errorf("deleted = %d, want 3", result.Deleted)
	}
	if result.Cancelled != 1 {
		t.Errorf("cancelled = %d, want 1", result.Cancelled)
	}
	if got := notifier.count(); got != 1 {
		t.Errorf("notifications = %d, want exactly 1", got)
	}

	// The cancellation audit event references both the appointment and
	// the slot whose removal triggered it, same as single slot delete.
	cancelEvents := 0
	for _, ev := range repo.events {
		if ev.EventType != EventAppointmentCancelled {
			continue
		}
		cancelEvents++
		if ev.AppointmentID == nil || *ev.AppointmentID != appt.ID {
			t.Errorf("cancellation event appointment = %v, want %s", ev.AppointmentID, appt.ID)
		}
		if ev.SlotID == nil || *ev.SlotID != bookedSlot {
			t.Errorf("cancellation event slot = %v, want %s", ev.SlotID, bookedSlot)
		}
	}
	if cancelEvents != 1 {
		t.Errorf("cancellation events = %d, want 1", cancelEvents)
	}

	remaining, err := svc.ListSlots(context.Background(), doctorID, target, target.AddDate(0, 0, 2))
	if err != nil {
		t.Fatalf("list remaining: %v", err)
	}
	if len(remaining) != 1 || !remaining[0].StartTime.Equal(otherStart) {
		t.Errorf("remaining slots = %d, want only the next-day slot", len(remaining))
	}
}

// -- Listing --

func TestListSlotsShowsBookingState(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, nil)

	doctorID := repo.addDoctor()
	target := day(2024, 6, 3)
	free := repo.addSlot(doctorID, target.Add(8*time.Hour), target.Add(8*time.Hour+20*time.Minute))
	booked := repo.addSlot(doctorID, target.Add(9*time.Hour), target.Add(9*time.Hour+20*time.Minute))

	appt, err := svc.Book(context.Background(), booked, repo.addPatient(), "", "")
	if err != nil {
		t.Fatalf("book: %v", err)
	}

	views, err := svc.ListSlots(context.Background(), doctorID, target, target.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("len = %d, want 2", len(views))
	}

	if views[0].ID != free || views[0].Booked {
		t.Errorf("first slot should be the free 08:00 slot, got booked=%v", views[0].Booked)
	}
	if views[1].ID != booked || !views[1].Booked {
		t.Error("second slot should be booked")
	}
	if views[1].AppointmentID == nil || *views[1].AppointmentID != appt.ID {
		t.Error("booked slot should reference its appointment")
	}
}
