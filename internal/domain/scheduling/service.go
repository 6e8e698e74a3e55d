package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/slotbook/slotbook/internal/domain/directory"
	"github.com/slotbook/slotbook/internal/platform/auth"
	"github.com/slotbook/slotbook/internal/platform/db"
)

// Scheduler validates and persists appointment mutations. All writes run
// inside the Locker's member scope so the conflict check and the insert are
// atomic with respect to competing bookings for the same member.
type Scheduler struct {
	appts    AppointmentRepository
	shifts   ShiftRepository
	members  directory.MemberRepository
	services directory.ServiceRepository
	clients  directory.ClientRepository
	resolver *Resolver
	locker   Locker
	now      func() time.Time
}

func NewScheduler(appts AppointmentRepository, shifts ShiftRepository, members directory.MemberRepository, services directory.ServiceRepository, clients directory.ClientRepository, locker Locker) *Scheduler {
	return &Scheduler{
		appts:    appts,
		shifts:   shifts,
		members:  members,
		services: services,
		clients:  clients,
		resolver: NewResolver(appts, shifts),
		locker:   locker,
		now:      time.Now,
	}
}

type CreateAppointmentInput struct {
	MemberID          uuid.UUID  `json:"member_id"`
	ServiceID         uuid.UUID  `json:"service_id"`
	ClientID          *uuid.UUID `json:"client_id,omitempty"`
	WalkInClientName  *string    `json:"walk_in_client_name,omitempty"`
	WalkInClientPhone *string    `json:"walk_in_client_phone,omitempty"`
	StartTime         time.Time  `json:"start_time"`
	DurationMinutes   *int       `json:"duration_minutes,omitempty"`
	Notes             string     `json:"notes,omitempty"`
	InternalNotes     string     `json:"internal_notes,omitempty"`
}

// CreateAppointment books a member for a service. Exactly one of ClientID
// and WalkInClientName must be set. The window derives from the service
// duration, or from DurationMinutes for walk-ins. The new record starts in
// SCHEDULED.
func (s *Scheduler) CreateAppointment(ctx context.Context, tc auth.TenantContext, in CreateAppointmentInput) (*Appointment, error) {
	hasClient := in.ClientID != nil
	hasWalkIn := in.WalkInClientName != nil && *in.WalkInClientName != ""
	if hasClient == hasWalkIn {
		return nil, &ValidationError{Field: "client_id", Msg: "exactly one of client_id and walk_in_client_name is required"}
	}
	if in.StartTime.IsZero() {
		return nil, &ValidationError{Field: "start_time", Msg: "start_time is required"}
	}

	member, err := s.members.GetByID(ctx, tc.OrgID, in.MemberID)
	if err != nil {
		return nil, mapLookupErr("member", in.MemberID, err)
	}
	if !member.IsActive {
		return nil, fmt.Errorf("member %s: %w", in.MemberID, ErrInactive)
	}
	svc, err := s.services.GetByID(ctx, tc.OrgID, in.ServiceID)
	if err != nil {
		return nil, mapLookupErr("service", in.ServiceID, err)
	}
	if !svc.IsActive {
		return nil, fmt.Errorf("service %s: %w", in.ServiceID, ErrInactive)
	}
	if hasClient {
		client, err := s.clients.GetByID(ctx, tc.OrgID, *in.ClientID)
		if err != nil {
			return nil, mapLookupErr("client", *in.ClientID, err)
		}
		if !client.IsActive {
			return nil, fmt.Errorf("client %s: %w", *in.ClientID, ErrInactive)
		}
	}

	duration := svc.DurationMinutes
	if hasWalkIn && in.DurationMinutes != nil {
		duration = *in.DurationMinutes
	}
	if duration < directory.MinServiceDuration || duration > directory.MaxServiceDuration {
		return nil, &ValidationError{Field: "duration_minutes", Msg: fmt.Sprintf("must be between %d and %d", directory.MinServiceDuration, directory.MaxServiceDuration)}
	}

	appt := &Appointment{
		OrgID:          tc.OrgID,
		MemberID:       in.MemberID,
		ServiceID:      in.ServiceID,
		ClientID:       in.ClientID,
		StartTime:      in.StartTime.UTC(),
		EndTime:        in.StartTime.UTC().Add(time.Duration(duration) * time.Minute),
		Status:         StatusScheduled,
		Notes:          in.Notes,
		InternalNotes:  in.InternalNotes,
		BookedByUserID: tc.UserID,
	}
	if hasWalkIn {
		appt.WalkInClientName = in.WalkInClientName
		appt.WalkInClientPhone = in.WalkInClientPhone
	}

	err = s.locker.WithMemberLock(ctx, tc.OrgID, in.MemberID, func(ctx context.Context) error {
		if err := s.requireBookableWindow(ctx, tc, in.MemberID, appt.StartTime, appt.EndTime, uuid.Nil); err != nil {
			return err
		}
		return s.appts.Create(ctx, appt)
	})
	if err != nil {
		return nil, mapWriteErr("appointment", err)
	}
	return appt, nil
}

// requireBookableWindow enforces on write exactly what the Calculator
// reports on read: an active shift must cover the window net of breaks, and
// no non-cancelled appointment may overlap it.
func (s *Scheduler) requireBookableWindow(ctx context.Context, tc auth.TenantContext, memberID uuid.UUID, start, end time.Time, excludeID uuid.UUID) error {
	date := truncateToDay(start)
	startMin := int(start.Sub(date) / time.Minute)
	endMin := startMin + int(end.Sub(start)/time.Minute)

	cov, reason, err := shiftCoverage(ctx, tc, s.shifts, memberID, date, startMin, endMin)
	if err != nil {
		return err
	}
	if !cov {
		return &ConflictError{EntityType: "shift", Msg: reason}
	}

	conflicts, err := s.resolver.AppointmentConflicts(ctx, tc, memberID, start, end, excludeID)
	if err != nil {
		return err
	}
	if len(conflicts) > 0 {
		return conflictError(conflicts)
	}
	return nil
}

// RescheduleAppointment moves a non-terminal appointment to a new start,
// re-validating the derived window while excluding the record itself. Only
// the time fields and notes change.
func (s *Scheduler) RescheduleAppointment(ctx context.Context, tc auth.TenantContext, id uuid.UUID, newStart time.Time, notes string) (*Appointment, error) {
	existing, err := s.appts.GetByID(ctx, tc.OrgID, id)
	if err != nil {
		return nil, mapLookupErr("appointment", id, err)
	}

	var out *Appointment
	err = s.locker.WithMemberLock(ctx, tc.OrgID, existing.MemberID, func(ctx context.Context) error {
		// Re-read under the lock so a concurrent update cannot be clobbered.
		appt, err := s.appts.GetByID(ctx, tc.OrgID, id)
		if err != nil {
			return mapLookupErr("appointment", id, err)
		}
		if appt.Status.Terminal() {
			return &InvalidStateError{Msg: fmt.Sprintf("appointment is %s and cannot be rescheduled", appt.Status)}
		}
		duration := appt.EndTime.Sub(appt.StartTime)
		if !appt.IsWalkIn() {
			if svc, err := s.services.GetByID(ctx, tc.OrgID, appt.ServiceID); err == nil {
				duration = time.Duration(svc.DurationMinutes) * time.Minute
			}
		}
		start := newStart.UTC()
		end := start.Add(duration)
		if err := s.requireBookableWindow(ctx, tc, appt.MemberID, start, end, appt.ID); err != nil {
			return err
		}
		appt.StartTime = start
		appt.EndTime = end
		appt.Notes = appendNote(appt.Notes, notes)
		if err := s.appts.Update(ctx, appt); err != nil {
			return err
		}
		out = appt
		return nil
	})
	if err != nil {
		return nil, mapWriteErr("appointment", err)
	}
	return out, nil
}

// CancelAppointment marks a non-terminal appointment CANCELLED. The reason
// is mandatory and recorded together with who cancelled and when.
func (s *Scheduler) CancelAppointment(ctx context.Context, tc auth.TenantContext, id uuid.UUID, reason string) (*Appointment, error) {
	if reason == "" {
		return nil, &InvalidStateError{Msg: "cancellation reason is required"}
	}
	appt, err := s.appts.GetByID(ctx, tc.OrgID, id)
	if err != nil {
		return nil, mapLookupErr("appointment", id, err)
	}
	if !appt.Status.CanTransitionTo(StatusCancelled) {
		return nil, &InvalidTransitionError{From: appt.Status, To: StatusCancelled}
	}
	now := s.now().UTC()
	appt.Status = StatusCancelled
	appt.CancellationReason = &reason
	appt.CancelledAt = &now
	cancelledBy := tc.UserID
	appt.CancelledByUserID = &cancelledBy
	if err := s.appts.Update(ctx, appt); err != nil {
		return nil, mapWriteErr("appointment", err)
	}
	return appt, nil
}

// ConvertWalkIn attaches a registered client to a walk-in appointment and
// clears the free-text walk-in fields. The appointment must not already
// reference a client.
func (s *Scheduler) ConvertWalkIn(ctx context.Context, tc auth.TenantContext, id, clientID uuid.UUID) (*Appointment, error) {
	appt, err := s.appts.GetByID(ctx, tc.OrgID, id)
	if err != nil {
		return nil, mapLookupErr("appointment", id, err)
	}
	if !appt.IsWalkIn() {
		return nil, &InvalidStateError{Msg: "appointment already has a client"}
	}
	client, err := s.clients.GetByID(ctx, tc.OrgID, clientID)
	if err != nil {
		return nil, mapLookupErr("client", clientID, err)
	}
	if !client.IsActive {
		return nil, fmt.Errorf("client %s: %w", clientID, ErrInactive)
	}
	appt.ClientID = &client.ID
	appt.WalkInClientName = nil
	appt.WalkInClientPhone = nil
	if err := s.appts.Update(ctx, appt); err != nil {
		return nil, mapWriteErr("appointment", err)
	}
	return appt, nil
}

type UpdateAppointmentInput struct {
	Status        *Status `json:"status,omitempty"`
	Notes         *string `json:"notes,omitempty"`
	InternalNotes *string `json:"internal_notes,omitempty"`
}

// UpdateAppointment applies a partial update. Status changes go through the
// transition table; terminal records accept note edits only.
func (s *Scheduler) UpdateAppointment(ctx context.Context, tc auth.TenantContext, id uuid.UUID, in UpdateAppointmentInput) (*Appointment, error) {
	appt, err := s.appts.GetByID(ctx, tc.OrgID, id)
	if err != nil {
		return nil, mapLookupErr("appointment", id, err)
	}
	if in.Status != nil && *in.Status != appt.Status {
		if !appt.Status.CanTransitionTo(*in.Status) {
			return nil, &InvalidTransitionError{From: appt.Status, To: *in.Status}
		}
		appt.Status = *in.Status
	}
	if in.Notes != nil {
		appt.Notes = *in.Notes
	}
	if in.InternalNotes != nil {
		appt.InternalNotes = *in.InternalNotes
	}
	if err := s.appts.Update(ctx, appt); err != nil {
		return nil, mapWriteErr("appointment", err)
	}
	return appt, nil
}

func (s *Scheduler) GetAppointment(ctx context.Context, tc auth.TenantContext, id uuid.UUID) (*Appointment, error) {
	appt, err := s.appts.GetByID(ctx, tc.OrgID, id)
	if err != nil {
		return nil, mapLookupErr("appointment", id, err)
	}
	return appt, nil
}

func (s *Scheduler) ListAppointments(ctx context.Context, tc auth.TenantContext, f AppointmentFilter, limit, offset int) ([]*Appointment, int, error) {
	return s.appts.List(ctx, tc.OrgID, f, limit, offset)
}

// FindConflicts exposes the resolver's blocking-window query.
func (s *Scheduler) FindConflicts(ctx context.Context, tc auth.TenantContext, memberID uuid.UUID, start, end time.Time) ([]Conflict, error) {
	return s.resolver.FindConflicts(ctx, tc, memberID, start, end, uuid.Nil)
}

func appendNote(existing, addition string) string {
	if addition == "" {
		return existing
	}
	if existing == "" {
		return addition
	}
	return existing + "\n" + addition
}

func mapLookupErr(entity string, id uuid.UUID, err error) error {
	if db.IsNotFound(err) {
		return fmt.Errorf("%s %s: %w", entity, id, ErrNotFound)
	}
	return err
}

// mapWriteErr converts a storage-level race loss (exclusion or unique
// violation that survived the bounded retries) into the same ConflictError
// the pre-write check produces.
func mapWriteErr(entity string, err error) error {
	if err == nil {
		return nil
	}
	if db.IsConflict(err) {
		return &ConflictError{EntityType: entity, Msg: "an overlapping booking was created concurrently"}
	}
	return err
}
