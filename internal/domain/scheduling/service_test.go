package scheduling

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/slotbook/slotbook/internal/domain/directory"
	"github.com/slotbook/slotbook/internal/platform/auth"
)

// -- Directory stubs --

type stubMembers struct{ m map[uuid.UUID]*directory.Member }

func (s *stubMembers) Create(_ context.Context, mb *directory.Member) error {
	s.m[mb.ID] = mb
	return nil
}

func (s *stubMembers) GetByID(_ context.Context, orgID, id uuid.UUID) (*directory.Member, error) {
	mb, ok := s.m[id]
	if !ok || mb.OrgID != orgID {
		return nil, pgx.ErrNoRows
	}
	return mb, nil
}

func (s *stubMembers) GetByExternalID(_ context.Context, _ uuid.UUID, _ string) (*directory.Member, error) {
	return nil, pgx.ErrNoRows
}

func (s *stubMembers) Update(_ context.Context, mb *directory.Member) error {
	s.m[mb.ID] = mb
	return nil
}

func (s *stubMembers) List(_ context.Context, _ uuid.UUID, _ bool, _, _ int) ([]*directory.Member, int, error) {
	return nil, 0, nil
}

type stubServices struct{ m map[uuid.UUID]*directory.Service }

func (s *stubServices) Create(_ context.Context, sv *directory.Service) error {
	s.m[sv.ID] = sv
	return nil
}

func (s *stubServices) GetByID(_ context.Context, orgID, id uuid.UUID) (*directory.Service, error) {
	sv, ok := s.m[id]
	if !ok || sv.OrgID != orgID {
		return nil, pgx.ErrNoRows
	}
	return sv, nil
}

func (s *stubServices) Update(_ context.Context, sv *directory.Service) error {
	s.m[sv.ID] = sv
	return nil
}

func (s *stubServices) List(_ context.Context, _ uuid.UUID, _ bool, _, _ int) ([]*directory.Service, int, error) {
	return nil, 0, nil
}

type stubClients struct{ m map[uuid.UUID]*directory.Client }

func (s *stubClients) Create(_ context.Context, cl *directory.Client) error {
	s.m[cl.ID] = cl
	return nil
}

func (s *stubClients) GetByID(_ context.Context, orgID, id uuid.UUID) (*directory.Client, error) {
	cl, ok := s.m[id]
	if !ok || cl.OrgID != orgID {
		return nil, pgx.ErrNoRows
	}
	return cl, nil
}

func (s *stubClients) GetByExternalID(_ context.Context, _ uuid.UUID, _ string) (*directory.Client, error) {
	return nil, pgx.ErrNoRows
}

func (s *stubClients) Update(_ context.Context, cl *directory.Client) error {
	s.m[cl.ID] = cl
	return nil
}

func (s *stubClients) List(_ context.Context, _ uuid.UUID, _ bool, _, _ int) ([]*directory.Client, int, error) {
	return nil, 0, nil
}

// -- Fixture --

type engine struct {
	scheduler *Scheduler
	generator *Generator
	calc      *Calculator
	store     *MemStore
	tc        auth.TenantContext

	member  *directory.Member
	service *directory.Service
	client  *directory.Client

	members  *stubMembers
	services *stubServices
	clients  *stubClients
}

func newEngine(t *testing.T) *engine {
	t.Helper()
	tc := auth.TenantContext{OrgID: uuid.New(), UserID: uuid.New()}
	e := &engine{
		store:    NewMemStore(),
		tc:       tc,
		members:  &stubMembers{m: make(map[uuid.UUID]*directory.Member)},
		services: &stubServices{m: make(map[uuid.UUID]*directory.Service)},
		clients:  &stubClients{m: make(map[uuid.UUID]*directory.Client)},
	}
	e.member = &directory.Member{ID: uuid.New(), OrgID: tc.OrgID, DisplayName: "Dana Reeves", IsActive: true}
	e.service = &directory.Service{ID: uuid.New(), OrgID: tc.OrgID, Name: "Cut", DurationMinutes: 45, IsActive: true}
	e.client = &directory.Client{ID: uuid.New(), OrgID: tc.OrgID, Name: "Alex Kim", IsActive: true}
	e.members.m[e.member.ID] = e.member
	e.services.m[e.service.ID] = e.service
	e.clients.m[e.client.ID] = e.client

	appts := e.store.Appointments()
	shifts := e.store.Shifts()
	locker := e.store.Locker()
	e.scheduler = NewScheduler(appts, shifts, e.members, e.services, e.clients, locker)
	e.generator = NewGenerator(shifts, appts, e.members, locker)
	e.calc = NewCalculator(e.members, e.services, shifts, NewResolver(appts, shifts))
	return e
}

// day returns a date n days from now, at UTC midnight.
func day(n int) time.Time {
	now := time.Now().UTC()
	d := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return d.AddDate(0, 0, n)
}

func dateStr(t time.Time) string { return t.Format("2006-01-02") }

// addShift seeds a 09:00-17:00 working shift directly into the store.
func (e *engine) addShift(t *testing.T, date time.Time, startMin, endMin int, breaks ...BreakWindow) *Shift {
	t.Helper()
	shift := &Shift{
		OrgID:       e.tc.OrgID,
		MemberID:    e.member.ID,
		Date:        date,
		StartMinute: startMin,
		EndMinute:   endMin,
		Status:      StatusScheduled,
		Breaks:      breaks,
	}
	if err := e.store.Shifts().Create(context.Background(), shift); err != nil {
		t.Fatalf("seed shift: %v", err)
	}
	return shift
}

func (e *engine) book(t *testing.T, start time.Time) *Appointment {
	t.Helper()
	appt, err := e.scheduler.CreateAppointment(context.Background(), e.tc, CreateAppointmentInput{
		MemberID:  e.member.ID,
		ServiceID: e.service.ID,
		ClientID:  &e.client.ID,
		StartTime: start,
	})
	if err != nil {
		t.Fatalf("CreateAppointment: %v", err)
	}
	return appt
}

func at(date time.Time, minute int) time.Time {
	return date.Add(time.Duration(minute) * time.Minute)
}

// -- Appointment tests --

func TestCreateAppointmentNoDoubleBooking(t *testing.T) {
	e := newEngine(t)
	date := day(7)
	e.addShift(t, date, 540, 1020)

	first := e.book(t, at(date, 600)) // 10:00-10:45
	if first.Status != StatusScheduled {
		t.Errorf("new appointment status = %s, want SCHEDULED", first.Status)
	}

	// Overlapping window for the same member must be rejected.
	_, err := e.scheduler.CreateAppointment(context.Background(), e.tc, CreateAppointmentInput{
		MemberID:  e.member.ID,
		ServiceID: e.service.ID,
		ClientID:  &e.client.ID,
		StartTime: at(date, 630), // 10:30, inside the first booking
	})
	var cErr *ConflictError
	if !errors.As(err, &cErr) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if cErr.EntityType != "appointment" || cErr.EntityID != first.ID {
		t.Errorf("conflict should name the blocking appointment: %+v", cErr)
	}

	// Touching windows do not overlap.
	if _, err := e.scheduler.CreateAppointment(context.Background(), e.tc, CreateAppointmentInput{
		MemberID:  e.member.ID,
		ServiceID: e.service.ID,
		ClientID:  &e.client.ID,
		StartTime: at(date, 645), // starts exactly at the first booking's end
	}); err != nil {
		t.Errorf("back-to-back booking should succeed: %v", err)
	}
}

func TestConcurrentBookingExactlyOneWinner(t *testing.T) {
	e := newEngine(t)
	date := day(7)
	e.addShift(t, date, 540, 1020)
	start := at(date, 600)

	input := CreateAppointmentInput{
		MemberID:  e.member.ID,
		ServiceID: e.service.ID,
		ClientID:  &e.client.ID,
		StartTime: start,
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.scheduler.CreateAppointment(context.Background(), e.tc, input)
		}(i)
	}
	wg.Wait()

	var successes, conflicts int
	for _, err := range errs {
		var cErr *ConflictError
		switch {
		case err == nil:
			successes++
		case errors.As(err, &cErr):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if successes != 1 || conflicts != 1 {
		t.Fatalf("got %d successes and %d conflicts, want exactly 1 and 1", successes, conflicts)
	}
}

func TestRescheduleKeepsIdentity(t *testing.T) {
	e := newEngine(t)
	date := day(7)
	e.addShift(t, date, 540, 1020)

	appt := e.book(t, at(date, 600))
	moved, err := e.scheduler.RescheduleAppointment(context.Background(), e.tc, appt.ID, at(date, 780), "client asked")
	if err != nil {
		t.Fatalf("Reschedule: %v", err)
	}
	if moved.ID != appt.ID || moved.MemberID != appt.MemberID || moved.ServiceID != appt.ServiceID {
		t.Error("reschedule changed identity fields")
	}
	if moved.ClientID == nil || *moved.ClientID != *appt.ClientID {
		t.Error("reschedule changed client")
	}
	if !moved.StartTime.Equal(at(date, 780)) {
		t.Errorf("start = %v, want %v", moved.StartTime, at(date, 780))
	}
	if moved.EndTime.Sub(moved.StartTime) != 45*time.Minute {
		t.Errorf("duration changed: %v", moved.EndTime.Sub(moved.StartTime))
	}
	if moved.Status != StatusScheduled {
		t.Errorf("status changed to %s", moved.Status)
	}
	if moved.Notes != "client asked" {
		t.Errorf("notes = %q", moved.Notes)
	}

	// Rescheduling onto another booking's window conflicts.
	other := e.book(t, at(date, 900))
	_, err = e.scheduler.RescheduleAppointment(context.Background(), e.tc, appt.ID, at(date, 910), "")
	var cErr *ConflictError
	if !errors.As(err, &cErr) || cErr.EntityID != other.ID {
		t.Fatalf("expected conflict with %s, got %v", other.ID, err)
	}

	// Rescheduling to its own window re-validates cleanly (excludeID).
	if _, err := e.scheduler.RescheduleAppointment(context.Background(), e.tc, appt.ID, at(date, 780), ""); err != nil {
		t.Errorf("reschedule onto own window: %v", err)
	}
}

func TestTerminalStatesAreImmutable(t *testing.T) {
	e := newEngine(t)
	date := day(7)
	e.addShift(t, date, 540, 1020)

	appt := e.book(t, at(date, 600))
	for _, st := range []Status{StatusConfirmed, StatusInProgress, StatusCompleted} {
		next := st
		if _, err := e.scheduler.UpdateAppointment(context.Background(), e.tc, appt.ID, UpdateAppointmentInput{Status: &next}); err != nil {
			t.Fatalf("transition to %s: %v", st, err)
		}
	}

	for _, st := range []Status{StatusScheduled, StatusConfirmed, StatusInProgress, StatusCancelled, StatusNoShow} {
		next := st
		_, err := e.scheduler.UpdateAppointment(context.Background(), e.tc, appt.ID, UpdateAppointmentInput{Status: &next})
		var tErr *InvalidTransitionError
		if !errors.As(err, &tErr) {
			t.Errorf("COMPLETED -> %s: expected InvalidTransitionError, got %v", st, err)
		}
	}
	_, err := e.scheduler.CancelAppointment(context.Background(), e.tc, appt.ID, "too late")
	var tErr *InvalidTransitionError
	if !errors.As(err, &tErr) {
		t.Errorf("cancel of completed appointment: expected InvalidTransitionError, got %v", err)
	}

	got, err := e.scheduler.GetAppointment(context.Background(), e.tc, appt.ID)
	if err != nil {
		t.Fatalf("GetAppointment: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Errorf("record changed after rejected transitions: %s", got.Status)
	}

	// Note edits stay allowed on terminal records.
	notes := "left a tip"
	if _, err := e.scheduler.UpdateAppointment(context.Background(), e.tc, appt.ID, UpdateAppointmentInput{Notes: &notes}); err != nil {
		t.Errorf("note edit on terminal record: %v", err)
	}
}

func TestWalkInExclusivity(t *testing.T) {
	e := newEngine(t)
	date := day(7)
	e.addShift(t, date, 540, 1020)
	name := "Walk In"

	// Both client and walk-in name.
	_, err := e.scheduler.CreateAppointment(context.Background(), e.tc, CreateAppointmentInput{
		MemberID:         e.member.ID,
		ServiceID:        e.service.ID,
		ClientID:         &e.client.ID,
		WalkInClientName: &name,
		StartTime:        at(date, 600),
	})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Errorf("both client and walk-in: expected ValidationError, got %v", err)
	}

	// Neither.
	_, err = e.scheduler.CreateAppointment(context.Background(), e.tc, CreateAppointmentInput{
		MemberID:  e.member.ID,
		ServiceID: e.service.ID,
		StartTime: at(date, 600),
	})
	if !errors.As(err, &vErr) {
		t.Errorf("neither client nor walk-in: expected ValidationError, got %v", err)
	}
}

func TestWalkInBookingAndConvert(t *testing.T) {
	e := newEngine(t)
	date := day(7)
	e.addShift(t, date, 540, 1020)
	name, phone := "Walk In", "+15550100"
	duration := 30

	appt, err := e.scheduler.CreateAppointment(context.Background(), e.tc, CreateAppointmentInput{
		MemberID:          e.member.ID,
		ServiceID:         e.service.ID,
		WalkInClientName:  &name,
		WalkInClientPhone: &phone,
		StartTime:         at(date, 600),
		DurationMinutes:   &duration,
	})
	if err != nil {
		t.Fatalf("walk-in booking: %v", err)
	}
	if !appt.IsWalkIn() {
		t.Fatal("expected a walk-in appointment")
	}
	if appt.EndTime.Sub(appt.StartTime) != 30*time.Minute {
		t.Errorf("explicit walk-in duration not honored: %v", appt.EndTime.Sub(appt.StartTime))
	}

	converted, err := e.scheduler.ConvertWalkIn(context.Background(), e.tc, appt.ID, e.client.ID)
	if err != nil {
		t.Fatalf("ConvertWalkIn: %v", err)
	}
	if converted.ClientID == nil || *converted.ClientID != e.client.ID {
		t.Error("client not attached")
	}
	if converted.WalkInClientName != nil || converted.WalkInClientPhone != nil {
		t.Error("walk-in fields not cleared")
	}

	// A second convert hits the already-has-a-client rule.
	_, err = e.scheduler.ConvertWalkIn(context.Background(), e.tc, appt.ID, e.client.ID)
	var sErr *InvalidStateError
	if !errors.As(err, &sErr) {
		t.Errorf("expected InvalidStateError, got %v", err)
	}
}

func TestCancelAppointment(t *testing.T) {
	e := newEngine(t)
	date := day(7)
	e.addShift(t, date, 540, 1020)
	appt := e.book(t, at(date, 600))

	_, err := e.scheduler.CancelAppointment(context.Background(), e.tc, appt.ID, "")
	var sErr *InvalidStateError
	if !errors.As(err, &sErr) {
		t.Fatalf("empty reason: expected InvalidStateError, got %v", err)
	}

	cancelled, err := e.scheduler.CancelAppointment(context.Background(), e.tc, appt.ID, "client called off")
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if cancelled.Status != StatusCancelled {
		t.Errorf("status = %s", cancelled.Status)
	}
	if cancelled.CancellationReason == nil || *cancelled.CancellationReason != "client called off" {
		t.Error("reason not recorded")
	}
	if cancelled.CancelledAt == nil || cancelled.CancelledByUserID == nil || *cancelled.CancelledByUserID != e.tc.UserID {
		t.Error("cancellation audit fields not set")
	}

	// A cancelled appointment no longer blocks its window.
	if _, err := e.scheduler.CreateAppointment(context.Background(), e.tc, CreateAppointmentInput{
		MemberID:  e.member.ID,
		ServiceID: e.service.ID,
		ClientID:  &e.client.ID,
		StartTime: at(date, 600),
	}); err != nil {
		t.Errorf("rebooking a cancelled window: %v", err)
	}
}

func TestBookingAgainstInactiveResources(t *testing.T) {
	e := newEngine(t)
	date := day(7)
	e.addShift(t, date, 540, 1020)

	e.service.IsActive = false
	_, err := e.scheduler.CreateAppointment(context.Background(), e.tc, CreateAppointmentInput{
		MemberID:  e.member.ID,
		ServiceID: e.service.ID,
		ClientID:  &e.client.ID,
		StartTime: at(date, 600),
	})
	if !errors.Is(err, ErrInactive) {
		t.Errorf("inactive service: expected ErrInactive, got %v", err)
	}
	e.service.IsActive = true

	e.member.IsActive = false
	_, err = e.scheduler.CreateAppointment(context.Background(), e.tc, CreateAppointmentInput{
		MemberID:  e.member.ID,
		ServiceID: e.service.ID,
		ClientID:  &e.client.ID,
		StartTime: at(date, 600),
	})
	if !errors.Is(err, ErrInactive) {
		t.Errorf("inactive member: expected ErrInactive, got %v", err)
	}
}

func TestCrossTenantAppointmentLookup(t *testing.T) {
	e := newEngine(t)
	date := day(7)
	e.addShift(t, date, 540, 1020)
	appt := e.book(t, at(date, 600))

	other := auth.TenantContext{OrgID: uuid.New(), UserID: uuid.New()}
	_, err := e.scheduler.GetAppointment(context.Background(), other, appt.ID)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("cross-tenant read: expected ErrNotFound, got %v", err)
	}
}

// -- Availability tests --

func TestAvailabilityAgreesWithBooking(t *testing.T) {
	e := newEngine(t)
	date := day(7)
	e.addShift(t, date, 540, 1020, BreakWindow{StartMinute: 720, EndMinute: 750})

	check := func(clock string) Availability {
		t.Helper()
		avail, err := e.calc.IsAvailable(context.Background(), e.tc, e.member.ID, e.service.ID, dateStr(date), clock)
		if err != nil {
			t.Fatalf("IsAvailable(%s): %v", clock, err)
		}
		return avail
	}

	// Free window inside the shift: available, and the booking succeeds.
	if avail := check("10:00"); !avail.Available {
		t.Fatalf("10:00 should be available: %s", avail.Reason)
	}
	appt := e.book(t, at(date, 600))

	// Booked window: unavailable, and a booking attempt conflicts.
	if avail := check("10:00"); avail.Available {
		t.Error("10:00 should be blocked by the existing booking")
	}
	_, err := e.scheduler.CreateAppointment(context.Background(), e.tc, CreateAppointmentInput{
		MemberID:  e.member.ID,
		ServiceID: e.service.ID,
		ClientID:  &e.client.ID,
		StartTime: at(date, 600),
	})
	var cErr *ConflictError
	if !errors.As(err, &cErr) || cErr.EntityID != appt.ID {
		t.Errorf("expected conflict with %s, got %v", appt.ID, err)
	}

	// Window crossing the lunch break: unavailable with a break reason, and
	// the booking attempt is rejected the same way.
	if avail := check("11:45"); avail.Available || avail.Reason != "requested window overlaps a break" {
		t.Errorf("11:45 should hit the break, got %+v", avail)
	}
	_, err = e.scheduler.CreateAppointment(context.Background(), e.tc, CreateAppointmentInput{
		MemberID:  e.member.ID,
		ServiceID: e.service.ID,
		ClientID:  &e.client.ID,
		StartTime: at(date, 705),
	})
	if !errors.As(err, &cErr) {
		t.Errorf("break-crossing booking: expected ConflictError, got %v", err)
	}

	// Outside any shift.
	if avail := check("18:00"); avail.Available || avail.Reason != "no active shift covers the requested window" {
		t.Errorf("18:00 should have no covering shift, got %+v", avail)
	}

	// Window running past the shift end.
	if avail := check("16:30"); avail.Available {
		t.Error("16:30 + 45min runs past the shift end")
	}
}

func TestAvailabilityErrors(t *testing.T) {
	e := newEngine(t)
	date := day(7)

	_, err := e.calc.IsAvailable(context.Background(), e.tc, uuid.New(), e.service.ID, dateStr(date), "10:00")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown member: expected ErrNotFound, got %v", err)
	}

	e.member.IsActive = false
	_, err = e.calc.IsAvailable(context.Background(), e.tc, e.member.ID, e.service.ID, dateStr(date), "10:00")
	if !errors.Is(err, ErrInactive) {
		t.Errorf("inactive member: expected ErrInactive, got %v", err)
	}
	e.member.IsActive = true

	_, err = e.calc.IsAvailable(context.Background(), e.tc, e.member.ID, e.service.ID, "not-a-date", "10:00")
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Errorf("bad date: expected ValidationError, got %v", err)
	}
	_, err = e.calc.IsAvailable(context.Background(), e.tc, e.member.ID, e.service.ID, dateStr(date), "25:99")
	if !errors.As(err, &vErr) {
		t.Errorf("bad clock: expected ValidationError, got %v", err)
	}
}

func TestFindConflictsNamesBothKinds(t *testing.T) {
	e := newEngine(t)
	date := day(7)
	shift := e.addShift(t, date, 540, 1020)
	appt := e.book(t, at(date, 600))

	conflicts, err := e.scheduler.FindConflicts(context.Background(), e.tc, e.member.ID, at(date, 590), at(date, 650))
	if err != nil {
		t.Fatalf("FindConflicts: %v", err)
	}
	kinds := map[string]uuid.UUID{}
	for _, c := range conflicts {
		kinds[c.EntityType] = c.EntityID
	}
	if kinds["appointment"] != appt.ID {
		t.Errorf("appointment conflict missing: %+v", conflicts)
	}
	if kinds["shift"] != shift.ID {
		t.Errorf("shift conflict missing: %+v", conflicts)
	}
}

func TestListAppointmentsFilters(t *testing.T) {
	e := newEngine(t)
	date := day(7)
	e.addShift(t, date, 540, 1020)
	a1 := e.book(t, at(date, 540))
	a2 := e.book(t, at(date, 600))
	e.book(t, at(date, 660))

	items, total, err := e.scheduler.ListAppointments(context.Background(), e.tc, AppointmentFilter{MemberID: e.member.ID}, 2, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 3 || len(items) != 2 {
		t.Fatalf("total=%d len=%d, want 3 and 2", total, len(items))
	}
	if items[0].ID != a1.ID || items[1].ID != a2.ID {
		t.Error("expected start-time ordering")
	}

	items, total, err = e.scheduler.ListAppointments(context.Background(), e.tc, AppointmentFilter{
		From: at(date, 600),
		To:   at(date, 660),
	}, 10, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 1 || items[0].ID != a2.ID {
		t.Errorf("time-range filter: total=%d", total)
	}
}
