package scheduling

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/slotbook/slotbook/pkg/timewindow"
)

// MemStore is a map-backed store for appointments and shifts. Its Locker
// serializes all check-then-act writers on one mutex, which trivially
// satisfies the one-winner guarantee for concurrent bookings. Map access is
// guarded separately so reads never wait on a writer's validation.
type MemStore struct {
	writeMu sync.Mutex
	mu      sync.RWMutex
	appts   map[uuid.UUID]*Appointment
	shifts  map[uuid.UUID]*Shift
}

func NewMemStore() *MemStore {
	return &MemStore{
		appts:  make(map[uuid.UUID]*Appointment),
		shifts: make(map[uuid.UUID]*Shift),
	}
}

func (s *MemStore) Appointments() AppointmentRepository { return &memApptRepo{s} }
func (s *MemStore) Shifts() ShiftRepository             { return &memShiftRepo{s} }
func (s *MemStore) Locker() Locker                      { return &memLocker{s} }

type memLocker struct{ store *MemStore }

func (l *memLocker) WithMemberLock(ctx context.Context, _, _ uuid.UUID, fn func(ctx context.Context) error) error {
	l.store.writeMu.Lock()
	defer l.store.writeMu.Unlock()
	return fn(ctx)
}

// -- Appointments --

type memApptRepo struct{ store *MemStore }

func copyAppt(a *Appointment) *Appointment {
	cp := *a
	return &cp
}

func (r *memApptRepo) Create(_ context.Context, a *Appointment) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.CreatedAt = time.Now().UTC()
	a.UpdatedAt = a.CreatedAt
	r.store.appts[a.ID] = copyAppt(a)
	return nil
}

func (r *memApptRepo) GetByID(_ context.Context, orgID, id uuid.UUID) (*Appointment, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	a, ok := r.store.appts[id]
	if !ok || a.OrgID != orgID {
		return nil, pgx.ErrNoRows
	}
	return copyAppt(a), nil
}

func (r *memApptRepo) Update(_ context.Context, a *Appointment) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	existing, ok := r.store.appts[a.ID]
	if !ok || existing.OrgID != a.OrgID {
		return pgx.ErrNoRows
	}
	a.UpdatedAt = time.Now().UTC()
	r.store.appts[a.ID] = copyAppt(a)
	return nil
}

func (r *memApptRepo) ListOverlapping(_ context.Context, orgID, memberID uuid.UUID, start, end time.Time) ([]*Appointment, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var out []*Appointment
	for _, a := range r.store.appts {
		if a.OrgID != orgID || a.MemberID != memberID || a.Status == StatusCancelled {
			continue
		}
		if timewindow.Overlaps(a.StartTime, a.EndTime, start, end) {
			out = append(out, copyAppt(a))
		}
	}
	sortAppts(out)
	return out, nil
}

func (r *memApptRepo) List(_ context.Context, orgID uuid.UUID, f AppointmentFilter, limit, offset int) ([]*Appointment, int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var matched []*Appointment
	for _, a := range r.store.appts {
		if a.OrgID != orgID {
			continue
		}
		if f.MemberID != uuid.Nil && a.MemberID != f.MemberID {
			continue
		}
		if f.ClientID != uuid.Nil && (a.ClientID == nil || *a.ClientID != f.ClientID) {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		if !f.From.IsZero() && a.EndTime.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && !a.StartTime.Before(f.To) {
			continue
		}
		matched = append(matched, copyAppt(a))
	}
	sortAppts(matched)
	return page(matched, limit, offset), len(matched), nil
}

func sortAppts(appts []*Appointment) {
	sort.Slice(appts, func(i, j int) bool {
		if !appts[i].StartTime.Equal(appts[j].StartTime) {
			return appts[i].StartTime.Before(appts[j].StartTime)
		}
		return appts[i].ID.String() < appts[j].ID.String()
	})
}

// -- Shifts --

type memShiftRepo struct{ store *MemStore }

func copyShift(s *Shift) *Shift {
	cp := *s
	cp.Breaks = append([]BreakWindow(nil), s.Breaks...)
	return &cp
}

func (r *memShiftRepo) Create(_ context.Context, s *Shift) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	s.CreatedAt = time.Now().UTC()
	s.UpdatedAt = s.CreatedAt
	r.store.shifts[s.ID] = copyShift(s)
	return nil
}

func (r *memShiftRepo) GetByID(_ context.Context, orgID, id uuid.UUID) (*Shift, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	s, ok := r.store.shifts[id]
	if !ok || s.OrgID != orgID {
		return nil, pgx.ErrNoRows
	}
	return copyShift(s), nil
}

func (r *memShiftRepo) Update(_ context.Context, s *Shift) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	existing, ok := r.store.shifts[s.ID]
	if !ok || existing.OrgID != s.OrgID {
		return pgx.ErrNoRows
	}
	s.UpdatedAt = time.Now().UTC()
	r.store.shifts[s.ID] = copyShift(s)
	return nil
}

func (r *memShiftRepo) Delete(_ context.Context, orgID, id uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	s, ok := r.store.shifts[id]
	if !ok || s.OrgID != orgID {
		return pgx.ErrNoRows
	}
	delete(r.store.shifts, id)
	return nil
}

func (r *memShiftRepo) ListByDateRange(_ context.Context, orgID, memberID uuid.UUID, from, to time.Time) ([]*Shift, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var out []*Shift
	for _, s := range r.store.shifts {
		if s.OrgID != orgID || s.MemberID != memberID || s.Status == StatusCancelled {
			continue
		}
		if s.Date.Before(from) || s.Date.After(to) {
			continue
		}
		out = append(out, copyShift(s))
	}
	sortShifts(out)
	return out, nil
}

func (r *memShiftRepo) List(_ context.Context, orgID uuid.UUID, f ShiftFilter, limit, offset int) ([]*Shift, int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var matched []*Shift
	for _, s := range r.store.shifts {
		if s.OrgID != orgID {
			continue
		}
		if f.MemberID != uuid.Nil && s.MemberID != f.MemberID {
			continue
		}
		if !f.From.IsZero() && s.Date.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && s.Date.After(f.To) {
			continue
		}
		matched = append(matched, copyShift(s))
	}
	sortShifts(matched)
	return page(matched, limit, offset), len(matched), nil
}

func sortShifts(shifts []*Shift) {
	sort.Slice(shifts, func(i, j int) bool {
		if !shifts[i].Date.Equal(shifts[j].Date) {
			return shifts[i].Date.Before(shifts[j].Date)
		}
		if shifts[i].StartMinute != shifts[j].StartMinute {
			return shifts[i].StartMinute < shifts[j].StartMinute
		}
		return shifts[i].ID.String() < shifts[j].ID.String()
	})
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
