package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/slotbook/slotbook/internal/domain/directory"
	"github.com/slotbook/slotbook/internal/platform/auth"
	"github.com/slotbook/slotbook/internal/platform/db"
	"github.com/slotbook/slotbook/pkg/timewindow"
)

// Availability is the read-only answer to "can this member take this service
// at this time". It reflects exactly the invariants the write path enforces,
// so a true answer stays bookable until a competing write lands.
type Availability struct {
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

// Calculator computes member availability. Reads only; safe to call
// repeatedly.
type Calculator struct {
	members  directory.MemberRepository
	services directory.ServiceRepository
	shifts   ShiftRepository
	resolver *Resolver
}

func NewCalculator(members directory.MemberRepository, services directory.ServiceRepository, shifts ShiftRepository, resolver *Resolver) *Calculator {
	return &Calculator{members: members, services: services, shifts: shifts, resolver: resolver}
}

// IsAvailable checks whether the member can take the service starting at
// clock ("HH:MM") on date ("2006-01-02"). A missing or inactive member or
// service is an error; a blocked window is a false result with a reason.
func (c *Calculator) IsAvailable(ctx context.Context, tc auth.TenantContext, memberID, serviceID uuid.UUID, dateStr, clock string) (Availability, error) {
	member, err := c.members.GetByID(ctx, tc.OrgID, memberID)
	if err != nil {
		if db.IsNotFound(err) {
			return Availability{}, fmt.Errorf("member %s: %w", memberID, ErrNotFound)
		}
		return Availability{}, err
	}
	svc, err := c.services.GetByID(ctx, tc.OrgID, serviceID)
	if err != nil {
		if db.IsNotFound(err) {
			return Availability{}, fmt.Errorf("service %s: %w", serviceID, ErrNotFound)
		}
		return Availability{}, err
	}
	if !member.IsActive {
		return Availability{}, fmt.Errorf("member %s: %w", memberID, ErrInactive)
	}
	if !svc.IsActive {
		return Availability{}, fmt.Errorf("service %s: %w", serviceID, ErrInactive)
	}

	date, err := parseDate(dateStr)
	if err != nil {
		return Availability{}, err
	}
	startMin, err := timewindow.ParseClock(clock)
	if err != nil {
		return Availability{}, &ValidationError{Field: "time", Msg: err.Error()}
	}
	endMin := startMin + svc.DurationMinutes

	cov, reason, err := shiftCoverage(ctx, tc, c.shifts, memberID, date, startMin, endMin)
	if err != nil {
		return Availability{}, err
	}
	if !cov {
		return Availability{Available: false, Reason: reason}, nil
	}

	start := date.Add(time.Duration(startMin) * time.Minute)
	end := date.Add(time.Duration(endMin) * time.Minute)
	conflicts, err := c.resolver.AppointmentConflicts(ctx, tc, memberID, start, end, uuid.Nil)
	if err != nil {
		return Availability{}, err
	}
	if len(conflicts) > 0 {
		return Availability{Available: false, Reason: conflictError(conflicts).Error()}, nil
	}
	return Availability{Available: true}, nil
}

// shiftCoverage reports whether an active shift covers [startMin, endMin)
// net of its breaks, distinguishing "no shift" from "break overlap".
func shiftCoverage(ctx context.Context, tc auth.TenantContext, repo ShiftRepository, memberID uuid.UUID, date time.Time, startMin, endMin int) (bool, string, error) {
	shifts, err := repo.ListByDateRange(ctx, tc.OrgID, memberID, date, date)
	if err != nil {
		return false, "", err
	}
	brokenByBreak := false
	for _, s := range shifts {
		if s.Covers(startMin, endMin) {
			return true, "", nil
		}
		if startMin >= s.StartMinute && endMin <= s.EndMinute {
			brokenByBreak = true
		}
	}
	if brokenByBreak {
		return false, "requested window overlaps a break", nil
	}
	return false, "no active shift covers the requested window", nil
}

func parseDate(s string) (time.Time, error) {
	d, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		return time.Time{}, &ValidationError{Field: "date", Msg: "must be YYYY-MM-DD"}
	}
	return d, nil
}
