// Package scheduling is the booking engine: it decides whether a proposed
// appointment or shift is valid, computes member availability, expands
// recurring shift series and enforces non-overlap and status-transition
// invariants under concurrent mutation.
package scheduling

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/slotbook/slotbook/pkg/timewindow"
)

// Status is the shared lifecycle for appointments and shifts.
type Status string

const (
	StatusScheduled  Status = "SCHEDULED"
	StatusConfirmed  Status = "CONFIRMED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
	StatusNoShow     Status = "NO_SHOW"
)

// transitions is the single source of truth for permitted status changes.
// Terminal states have no outgoing edges.
var transitions = map[Status][]Status{
	StatusScheduled:  {StatusConfirmed, StatusInProgress, StatusCancelled, StatusNoShow},
	StatusConfirmed:  {StatusInProgress, StatusCancelled, StatusNoShow},
	StatusInProgress: {StatusCompleted, StatusNoShow},
	StatusCompleted:  {},
	StatusCancelled:  {},
	StatusNoShow:     {},
}

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if _, ok := transitions[st]; !ok {
		return "", fmt.Errorf("unknown status %q", s)
	}
	return st, nil
}

// CanTransitionTo reports whether the change from s to next is permitted.
func (s Status) CanTransitionTo(next Status) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Terminal reports whether s admits no further status transition.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// Shift duration bounds in minutes.
const (
	MinShiftDuration = 30
	MaxShiftDuration = 720
	MaxBreaks        = 5
)

// BreakWindow is a pause inside a shift, in minutes since midnight.
type BreakWindow struct {
	StartMinute int `db:"start_minute" json:"start_minute"`
	EndMinute   int `db:"end_minute" json:"end_minute"`
}

// Shift is a member's working window on one date. Start/End are minutes
// since midnight in the organization's local day.
type Shift struct {
	ID                uuid.UUID     `db:"id" json:"id"`
	OrgID             uuid.UUID     `db:"org_id" json:"org_id"`
	MemberID          uuid.UUID     `db:"member_id" json:"member_id"`
	Date              time.Time     `db:"date" json:"date"`
	StartMinute       int           `db:"start_minute" json:"start_minute"`
	EndMinute         int           `db:"end_minute" json:"end_minute"`
	Status            Status        `db:"status" json:"status"`
	Breaks            []BreakWindow `db:"breaks" json:"breaks,omitempty"`
	ParentShiftID     *uuid.UUID    `db:"parent_shift_id" json:"parent_shift_id,omitempty"`
	RecurrencePattern *string       `db:"recurrence_pattern" json:"recurrence_pattern,omitempty"`
	Notes             string        `db:"notes" json:"notes,omitempty"`
	CreatedAt         time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time     `db:"updated_at" json:"updated_at"`
}

// Window returns the shift's absolute [start, end) window.
func (s *Shift) Window() (time.Time, time.Time) {
	day := s.Date
	return day.Add(time.Duration(s.StartMinute) * time.Minute),
		day.Add(time.Duration(s.EndMinute) * time.Minute)
}

// Covers reports whether [startMin, endMin) fits inside the working window
// without touching any break.
func (s *Shift) Covers(startMin, endMin int) bool {
	if startMin < s.StartMinute || endMin > s.EndMinute {
		return false
	}
	for _, b := range s.Breaks {
		if timewindow.OverlapsMinutes(startMin, endMin, b.StartMinute, b.EndMinute) {
			return false
		}
	}
	return true
}

// validateShiftWindow checks the invariants shared by direct and generated
// shifts: duration bounds and break nesting.
func validateShiftWindow(startMin, endMin int, breaks []BreakWindow) error {
	dur := endMin - startMin
	if dur < MinShiftDuration || dur > MaxShiftDuration {
		return &ValidationError{Field: "end_time", Msg: fmt.Sprintf("shift duration must be between %d and %d minutes", MinShiftDuration, MaxShiftDuration)}
	}
	if len(breaks) > MaxBreaks {
		return &ValidationError{Field: "breaks", Msg: fmt.Sprintf("at most %d breaks per shift", MaxBreaks)}
	}
	for i, b := range breaks {
		if b.StartMinute >= b.EndMinute {
			return &ValidationError{Field: "breaks", Msg: fmt.Sprintf("break %d start must be before its end", i)}
		}
		if b.StartMinute < startMin || b.EndMinute > endMin {
			return &ValidationError{Field: "breaks", Msg: fmt.Sprintf("break %d must fall inside the shift window", i)}
		}
		for j := 0; j < i; j++ {
			if timewindow.OverlapsMinutes(b.StartMinute, b.EndMinute, breaks[j].StartMinute, breaks[j].EndMinute) {
				return &ValidationError{Field: "breaks", Msg: fmt.Sprintf("breaks %d and %d overlap", j, i)}
			}
		}
	}
	return nil
}

// Appointment is a booking of a member for a service. StartTime/EndTime are
// absolute; EndTime derives from the service duration (or an explicit
// duration for walk-ins) at creation and is only recomputed on reschedule.
type Appointment struct {
	ID                 uuid.UUID  `db:"id" json:"id"`
	OrgID              uuid.UUID  `db:"org_id" json:"org_id"`
	MemberID           uuid.UUID  `db:"member_id" json:"member_id"`
	ServiceID          uuid.UUID  `db:"service_id" json:"service_id"`
	ClientID           *uuid.UUID `db:"client_id" json:"client_id,omitempty"`
	WalkInClientName   *string    `db:"walk_in_client_name" json:"walk_in_client_name,omitempty"`
	WalkInClientPhone  *string    `db:"walk_in_client_phone" json:"walk_in_client_phone,omitempty"`
	StartTime          time.Time  `db:"start_time" json:"start_time"`
	EndTime            time.Time  `db:"end_time" json:"end_time"`
	Status             Status     `db:"status" json:"status"`
	Notes              string     `db:"notes" json:"notes,omitempty"`
	InternalNotes      string     `db:"internal_notes" json:"internal_notes,omitempty"`
	CancellationReason *string    `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	CancelledAt        *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`
	BookedByUserID     uuid.UUID  `db:"booked_by_user_id" json:"booked_by_user_id"`
	CancelledByUserID  *uuid.UUID `db:"cancelled_by_user_id" json:"cancelled_by_user_id,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

// IsWalkIn reports whether the appointment has no registered client.
func (a *Appointment) IsWalkIn() bool {
	return a.ClientID == nil
}

// Recurrence bounds.
const (
	MaxOccurrences = 365
	MaxBulkItems   = 50
	MaxCopyTargets = 31
)

// RecurrenceSpec describes how to expand a base shift into a series. It is
// generation input only; each occurrence is persisted as a standalone Shift.
type RecurrenceSpec struct {
	Pattern        timewindow.Pattern `json:"pattern"`
	EndDate        *time.Time         `json:"end_date,omitempty"`
	MaxOccurrences *int               `json:"max_occurrences,omitempty"`
	Interval       int                `json:"interval,omitempty"`
	DaysOfWeek     []int              `json:"days_of_week,omitempty"`
}

// Validate checks the spec's own consistency: a termination condition is
// required and the occurrence count is bounded.
func (r *RecurrenceSpec) Validate() error {
	if _, err := timewindow.ParsePattern(string(r.Pattern)); err != nil {
		return &ValidationError{Field: "pattern", Msg: err.Error()}
	}
	if r.EndDate == nil && r.MaxOccurrences == nil {
		return &ValidationError{Field: "recurrence", Msg: "end_date or max_occurrences is required"}
	}
	if r.MaxOccurrences != nil && (*r.MaxOccurrences < 1 || *r.MaxOccurrences > MaxOccurrences) {
		return &ValidationError{Field: "max_occurrences", Msg: fmt.Sprintf("must be between 1 and %d", MaxOccurrences)}
	}
	if r.Pattern == timewindow.PatternCustom && r.Interval < 1 {
		return &ValidationError{Field: "interval", Msg: "custom pattern requires interval >= 1"}
	}
	for _, d := range r.DaysOfWeek {
		if d < 0 || d > 6 {
			return &ValidationError{Field: "days_of_week", Msg: "weekdays must be 0 (Sunday) through 6 (Saturday)"}
		}
	}
	return nil
}
