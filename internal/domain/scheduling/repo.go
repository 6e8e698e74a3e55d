package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AppointmentFilter narrows ListAppointments. Zero values mean "no filter".
type AppointmentFilter struct {
	MemberID uuid.UUID
	ClientID uuid.UUID
	From     time.Time
	To       time.Time
	Status   Status
}

// ShiftFilter narrows ListShifts.
type ShiftFilter struct {
	MemberID uuid.UUID
	From     time.Time
	To       time.Time
}

type AppointmentRepository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, orgID, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	// ListOverlapping returns non-cancelled appointments for the member whose
	// [start_time, end_time) window overlaps [start, end).
	ListOverlapping(ctx context.Context, orgID, memberID uuid.UUID, start, end time.Time) ([]*Appointment, error)
	List(ctx context.Context, orgID uuid.UUID, f AppointmentFilter, limit, offset int) ([]*Appointment, int, error)
}

type ShiftRepository interface {
	Create(ctx context.Context, s *Shift) error
	GetByID(ctx context.Context, orgID, id uuid.UUID) (*Shift, error)
	Update(ctx context.Context, s *Shift) error
	Delete(ctx context.Context, orgID, id uuid.UUID) error
	// ListByDateRange returns non-cancelled shifts for the member on dates in
	// [from, to] inclusive.
	ListByDateRange(ctx context.Context, orgID, memberID uuid.UUID, from, to time.Time) ([]*Shift, error)
	List(ctx context.Context, orgID uuid.UUID, f ShiftFilter, limit, offset int) ([]*Shift, int, error)
}

// Locker serializes a check-then-act sequence against concurrent writers for
// the same member. The function runs with the member claimed: the Postgres
// implementation locks the member row inside a retried transaction, the
// in-memory implementation holds the store mutex.
type Locker interface {
	WithMemberLock(ctx context.Context, orgID, memberID uuid.UUID, fn func(ctx context.Context) error) error
}
