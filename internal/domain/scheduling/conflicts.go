package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/slotbook/slotbook/internal/platform/auth"
	"github.com/slotbook/slotbook/pkg/timewindow"
)

// Conflict names an existing record blocking a proposed window.
type Conflict struct {
	EntityType string    `json:"entity_type"`
	EntityID   uuid.UUID `json:"entity_id"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
}

// Resolver answers "does any existing appointment or shift overlap this
// window". Pure query, no mutation; all writers consult it before
// persisting, under the Locker's member scope.
type Resolver struct {
	appts  AppointmentRepository
	shifts ShiftRepository
}

func NewResolver(appts AppointmentRepository, shifts ShiftRepository) *Resolver {
	return &Resolver{appts: appts, shifts: shifts}
}

// AppointmentConflicts returns non-cancelled appointments for the member
// overlapping [start, end), excluding excludeID so a record can be
// re-validated during its own update.
func (r *Resolver) AppointmentConflicts(ctx context.Context, tc auth.TenantContext, memberID uuid.UUID, start, end time.Time, excludeID uuid.UUID) ([]Conflict, error) {
	appts, err := r.appts.ListOverlapping(ctx, tc.OrgID, memberID, start, end)
	if err != nil {
		return nil, err
	}
	var out []Conflict
	for _, a := range appts {
		if a.ID == excludeID {
			continue
		}
		out = append(out, Conflict{EntityType: "appointment", EntityID: a.ID, Start: a.StartTime, End: a.EndTime})
	}
	return out, nil
}

// ShiftConflicts returns non-cancelled shifts for the member on date whose
// [startMin, endMin) working window overlaps the candidate one.
func (r *Resolver) ShiftConflicts(ctx context.Context, tc auth.TenantContext, memberID uuid.UUID, date time.Time, startMin, endMin int, excludeID uuid.UUID) ([]Conflict, error) {
	shifts, err := r.shifts.ListByDateRange(ctx, tc.OrgID, memberID, date, date)
	if err != nil {
		return nil, err
	}
	var out []Conflict
	for _, s := range shifts {
		if s.ID == excludeID {
			continue
		}
		if !timewindow.OverlapsMinutes(startMin, endMin, s.StartMinute, s.EndMinute) {
			continue
		}
		ws, we := s.Window()
		out = append(out, Conflict{EntityType: "shift", EntityID: s.ID, Start: ws, End: we})
	}
	return out, nil
}

// FindConflicts scans both appointments and shifts overlapping the absolute
// window [start, end). Reads only; used by the blocking-window query surface.
func (r *Resolver) FindConflicts(ctx context.Context, tc auth.TenantContext, memberID uuid.UUID, start, end time.Time, excludeID uuid.UUID) ([]Conflict, error) {
	out, err := r.AppointmentConflicts(ctx, tc, memberID, start, end, excludeID)
	if err != nil {
		return nil, err
	}

	from := truncateToDay(start)
	to := truncateToDay(end.Add(-time.Nanosecond))
	shifts, err := r.shifts.ListByDateRange(ctx, tc.OrgID, memberID, from, to)
	if err != nil {
		return nil, err
	}
	for _, s := range shifts {
		if s.ID == excludeID {
			continue
		}
		ws, we := s.Window()
		if timewindow.Overlaps(start, end, ws, we) {
			out = append(out, Conflict{EntityType: "shift", EntityID: s.ID, Start: ws, End: we})
		}
	}
	return out, nil
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// conflictError wraps the first conflict of a non-empty scan.
func conflictError(conflicts []Conflict) *ConflictError {
	c := conflicts[0]
	return &ConflictError{EntityType: c.EntityType, EntityID: c.EntityID}
}
