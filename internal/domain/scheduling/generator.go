package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/slotbook/slotbook/internal/domain/directory"
	"github.com/slotbook/slotbook/internal/platform/auth"
	"github.com/slotbook/slotbook/pkg/timewindow"
)

// Generator validates and persists shift mutations, including recurring
// series expansion and the partial-success bulk operations.
type Generator struct {
	shifts   ShiftRepository
	members  directory.MemberRepository
	resolver *Resolver
	locker   Locker
	now      func() time.Time
}

func NewGenerator(shifts ShiftRepository, appts AppointmentRepository, members directory.MemberRepository, locker Locker) *Generator {
	return &Generator{
		shifts:   shifts,
		members:  members,
		resolver: NewResolver(appts, shifts),
		locker:   locker,
		now:      time.Now,
	}
}

type BreakInput struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type ShiftInput struct {
	MemberID  uuid.UUID    `json:"member_id"`
	Date      string       `json:"date"`
	StartTime string       `json:"start_time"`
	EndTime   string       `json:"end_time"`
	Breaks    []BreakInput `json:"breaks,omitempty"`
	Notes     string       `json:"notes,omitempty"`
}

// parsedShift is a ShiftInput after wire-format validation.
type parsedShift struct {
	date     time.Time
	startMin int
	endMin   int
	breaks   []BreakWindow
}

func (g *Generator) parseShiftInput(in ShiftInput) (parsedShift, error) {
	var p parsedShift
	var err error
	if p.date, err = parseDate(in.Date); err != nil {
		return p, err
	}
	if p.startMin, err = timewindow.ParseClock(in.StartTime); err != nil {
		return p, &ValidationError{Field: "start_time", Msg: err.Error()}
	}
	if p.endMin, err = timewindow.ParseClock(in.EndTime); err != nil {
		return p, &ValidationError{Field: "end_time", Msg: err.Error()}
	}
	for i, b := range in.Breaks {
		var bw BreakWindow
		if bw.StartMinute, err = timewindow.ParseClock(b.StartTime); err != nil {
			return p, &ValidationError{Field: "breaks", Msg: fmt.Sprintf("break %d: %v", i, err)}
		}
		if bw.EndMinute, err = timewindow.ParseClock(b.EndTime); err != nil {
			return p, &ValidationError{Field: "breaks", Msg: fmt.Sprintf("break %d: %v", i, err)}
		}
		p.breaks = append(p.breaks, bw)
	}
	if err := validateShiftWindow(p.startMin, p.endMin, p.breaks); err != nil {
		return p, err
	}
	return p, nil
}

func (g *Generator) today() time.Time {
	return truncateToDay(g.now().UTC())
}

func (g *Generator) checkMember(ctx context.Context, tc auth.TenantContext, memberID uuid.UUID) error {
	member, err := g.members.GetByID(ctx, tc.OrgID, memberID)
	if err != nil {
		return mapLookupErr("member", memberID, err)
	}
	if !member.IsActive {
		return fmt.Errorf("member %s: %w", memberID, ErrInactive)
	}
	return nil
}

// CreateShift validates and persists one shift. The date must not be in the
// past and the window must not overlap another shift for the member.
func (g *Generator) CreateShift(ctx context.Context, tc auth.TenantContext, in ShiftInput) (*Shift, error) {
	if err := g.checkMember(ctx, tc, in.MemberID); err != nil {
		return nil, err
	}
	p, err := g.parseShiftInput(in)
	if err != nil {
		return nil, err
	}
	if p.date.Before(g.today()) {
		return nil, &ValidationError{Field: "date", Msg: "shift date cannot be in the past"}
	}

	shift := &Shift{
		OrgID:       tc.OrgID,
		MemberID:    in.MemberID,
		Date:        p.date,
		StartMinute: p.startMin,
		EndMinute:   p.endMin,
		Status:      StatusScheduled,
		Breaks:      p.breaks,
		Notes:       in.Notes,
	}
	err = g.locker.WithMemberLock(ctx, tc.OrgID, in.MemberID, func(ctx context.Context) error {
		conflicts, err := g.resolver.ShiftConflicts(ctx, tc, in.MemberID, p.date, p.startMin, p.endMin, uuid.Nil)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return conflictError(conflicts)
		}
		return g.shifts.Create(ctx, shift)
	})
	if err != nil {
		return nil, mapWriteErr("shift", err)
	}
	return shift, nil
}

type SkippedOccurrence struct {
	Date   time.Time `json:"date"`
	Reason string    `json:"reason"`
}

type RecurringShiftResult struct {
	CreatedShifts      []*Shift            `json:"created_shifts"`
	TotalShiftsCreated int                 `json:"total_shifts_created"`
	Skipped            []SkippedOccurrence `json:"skipped,omitempty"`
}

// CreateRecurringShift expands the base shift into a series. Occurrences
// that collide with an existing shift are skipped and reported, never
// fatal: the series is a partial-success operation. Every created
// occurrence carries ParentShiftID = the first occurrence's id (the first
// one references itself).
func (g *Generator) CreateRecurringShift(ctx context.Context, tc auth.TenantContext, in ShiftInput, spec RecurrenceSpec) (*RecurringShiftResult, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if err := g.checkMember(ctx, tc, in.MemberID); err != nil {
		return nil, err
	}
	p, err := g.parseShiftInput(in)
	if err != nil {
		return nil, err
	}
	if p.date.Before(g.today()) {
		return nil, &ValidationError{Field: "date", Msg: "series cannot start in the past"}
	}

	dates := expandOccurrences(p.date, spec)
	pattern := string(spec.Pattern)
	seriesID := uuid.New()

	result := &RecurringShiftResult{}
	err = g.locker.WithMemberLock(ctx, tc.OrgID, in.MemberID, func(ctx context.Context) error {
		// Local accumulators: the locker may retry this function, so the
		// result must be rebuilt from scratch on each attempt.
		var created []*Shift
		var skipped []SkippedOccurrence
		for _, date := range dates {
			conflicts, err := g.resolver.ShiftConflicts(ctx, tc, in.MemberID, date, p.startMin, p.endMin, uuid.Nil)
			if err != nil {
				return err
			}
			if len(conflicts) > 0 {
				skipped = append(skipped, SkippedOccurrence{
					Date:   date,
					Reason: conflictError(conflicts).Error(),
				})
				continue
			}
			shift := &Shift{
				OrgID:             tc.OrgID,
				MemberID:          in.MemberID,
				Date:              date,
				StartMinute:       p.startMin,
				EndMinute:         p.endMin,
				Status:            StatusScheduled,
				Breaks:            p.breaks,
				ParentShiftID:     &seriesID,
				RecurrencePattern: &pattern,
				Notes:             in.Notes,
			}
			if len(created) == 0 {
				shift.ID = seriesID
			}
			if err := g.shifts.Create(ctx, shift); err != nil {
				return err
			}
			created = append(created, shift)
		}
		result.CreatedShifts = created
		result.Skipped = skipped
		return nil
	})
	if err != nil {
		return nil, mapWriteErr("shift", err)
	}
	result.TotalShiftsCreated = len(result.CreatedShifts)
	return result, nil
}

// expandOccurrences maps the recurrence spec onto concrete dates. The loop
// is bounded: at most MaxOccurrences dates, and the raw index never exceeds
// MaxOccurrences * 7 so a weekday filter cannot spin forever.
func expandOccurrences(start time.Time, spec RecurrenceSpec) []time.Time {
	maxOcc := MaxOccurrences
	if spec.MaxOccurrences != nil {
		maxOcc = *spec.MaxOccurrences
	}
	weekdays := make(map[int]bool, len(spec.DaysOfWeek))
	for _, d := range spec.DaysOfWeek {
		weekdays[d] = true
	}

	var dates []time.Time
	for i := 0; i <= MaxOccurrences*7; i++ {
		date := timewindow.AddOccurrence(start, spec.Pattern, spec.Interval, i)
		if spec.EndDate != nil && date.After(*spec.EndDate) {
			break
		}
		if len(weekdays) > 0 && !weekdays[timewindow.Weekday(date)] {
			continue
		}
		dates = append(dates, date)
		if len(dates) >= maxOcc {
			break
		}
	}
	return dates
}

type BulkShiftUpdate struct {
	ID        uuid.UUID `json:"id"`
	StartTime *string   `json:"start_time,omitempty"`
	EndTime   *string   `json:"end_time,omitempty"`
	Status    *Status   `json:"status,omitempty"`
	Notes     *string   `json:"notes,omitempty"`
}

type BulkFailure struct {
	ID     uuid.UUID `json:"id"`
	Reason string    `json:"reason"`
}

type BulkShiftResult struct {
	Succeeded []*Shift      `json:"succeeded"`
	Failed    []BulkFailure `json:"failed,omitempty"`
}

// BulkUpdateShifts applies each update independently; one bad item never
// blocks the rest. The batch size itself is the only whole-batch check.
func (g *Generator) BulkUpdateShifts(ctx context.Context, tc auth.TenantContext, updates []BulkShiftUpdate) (*BulkShiftResult, error) {
	if len(updates) == 0 || len(updates) > MaxBulkItems {
		return nil, &ValidationError{Field: "updates", Msg: fmt.Sprintf("between 1 and %d items per batch", MaxBulkItems)}
	}
	result := &BulkShiftResult{}
	for _, upd := range updates {
		shift, err := g.applyShiftUpdate(ctx, tc, upd)
		if err != nil {
			result.Failed = append(result.Failed, BulkFailure{ID: upd.ID, Reason: err.Error()})
			continue
		}
		result.Succeeded = append(result.Succeeded, shift)
	}
	return result, nil
}

func (g *Generator) applyShiftUpdate(ctx context.Context, tc auth.TenantContext, upd BulkShiftUpdate) (*Shift, error) {
	shift, err := g.shifts.GetByID(ctx, tc.OrgID, upd.ID)
	if err != nil {
		return nil, mapLookupErr("shift", upd.ID, err)
	}

	if upd.Status != nil && *upd.Status != shift.Status {
		if !shift.Status.CanTransitionTo(*upd.Status) {
			return nil, &InvalidTransitionError{From: shift.Status, To: *upd.Status}
		}
		shift.Status = *upd.Status
	}
	if upd.Notes != nil {
		shift.Notes = *upd.Notes
	}

	timeChanged := upd.StartTime != nil || upd.EndTime != nil
	if timeChanged {
		startMin, endMin := shift.StartMinute, shift.EndMinute
		if upd.StartTime != nil {
			if startMin, err = timewindow.ParseClock(*upd.StartTime); err != nil {
				return nil, &ValidationError{Field: "start_time", Msg: err.Error()}
			}
		}
		if upd.EndTime != nil {
			if endMin, err = timewindow.ParseClock(*upd.EndTime); err != nil {
				return nil, &ValidationError{Field: "end_time", Msg: err.Error()}
			}
		}
		if err := validateShiftWindow(startMin, endMin, shift.Breaks); err != nil {
			return nil, err
		}
		shift.StartMinute = startMin
		shift.EndMinute = endMin
	}

	err = g.locker.WithMemberLock(ctx, tc.OrgID, shift.MemberID, func(ctx context.Context) error {
		if timeChanged {
			conflicts, err := g.resolver.ShiftConflicts(ctx, tc, shift.MemberID, shift.Date, shift.StartMinute, shift.EndMinute, shift.ID)
			if err != nil {
				return err
			}
			if len(conflicts) > 0 {
				return conflictError(conflicts)
			}
		}
		return g.shifts.Update(ctx, shift)
	})
	if err != nil {
		return nil, mapWriteErr("shift", err)
	}
	return shift, nil
}

type BulkDeleteResult struct {
	Deleted []uuid.UUID   `json:"deleted"`
	Failed  []BulkFailure `json:"failed,omitempty"`
}

// BulkDeleteShifts removes each shift independently, reporting per-item
// outcomes.
func (g *Generator) BulkDeleteShifts(ctx context.Context, tc auth.TenantContext, ids []uuid.UUID) (*BulkDeleteResult, error) {
	if len(ids) == 0 || len(ids) > MaxBulkItems {
		return nil, &ValidationError{Field: "ids", Msg: fmt.Sprintf("between 1 and %d items per batch", MaxBulkItems)}
	}
	result := &BulkDeleteResult{}
	for _, id := range ids {
		if _, err := g.shifts.GetByID(ctx, tc.OrgID, id); err != nil {
			result.Failed = append(result.Failed, BulkFailure{ID: id, Reason: mapLookupErr("shift", id, err).Error()})
			continue
		}
		if err := g.shifts.Delete(ctx, tc.OrgID, id); err != nil {
			result.Failed = append(result.Failed, BulkFailure{ID: id, Reason: err.Error()})
			continue
		}
		result.Deleted = append(result.Deleted, id)
	}
	return result, nil
}

type CopyShiftsInput struct {
	SourceStart string      `json:"source_start"`
	SourceEnd   string      `json:"source_end"`
	TargetStart string      `json:"target_start"`
	MemberIDs   []uuid.UUID `json:"member_ids"`
}

type CopyShiftsResult struct {
	CreatedShifts      []*Shift            `json:"created_shifts"`
	TotalShiftsCreated int                 `json:"total_shifts_created"`
	Skipped            []SkippedOccurrence `json:"skipped,omitempty"`
}

// CopyShifts replays each member's shifts from the source date range onto
// the range starting at TargetStart, preserving day offsets. Copies that
// collide are skipped and reported.
func (g *Generator) CopyShifts(ctx context.Context, tc auth.TenantContext, in CopyShiftsInput) (*CopyShiftsResult, error) {
	srcStart, err := parseDate(in.SourceStart)
	if err != nil {
		return nil, err
	}
	srcEnd, err := parseDate(in.SourceEnd)
	if err != nil {
		return nil, err
	}
	tgtStart, err := parseDate(in.TargetStart)
	if err != nil {
		return nil, err
	}
	if srcEnd.Before(srcStart) {
		return nil, &ValidationError{Field: "source_end", Msg: "must not precede source_start"}
	}
	spanDays := int(srcEnd.Sub(srcStart).Hours()/24) + 1
	if spanDays > MaxCopyTargets {
		return nil, &ValidationError{Field: "source_end", Msg: fmt.Sprintf("source range spans at most %d days", MaxCopyTargets)}
	}
	if len(in.MemberIDs) == 0 {
		return nil, &ValidationError{Field: "member_ids", Msg: "at least one member is required"}
	}
	if tgtStart.Before(g.today()) {
		return nil, &ValidationError{Field: "target_start", Msg: "target range cannot start in the past"}
	}

	result := &CopyShiftsResult{}
	for _, memberID := range in.MemberIDs {
		if err := g.checkMember(ctx, tc, memberID); err != nil {
			return nil, err
		}
		source, err := g.shifts.ListByDateRange(ctx, tc.OrgID, memberID, srcStart, srcEnd)
		if err != nil {
			return nil, err
		}
		err = g.locker.WithMemberLock(ctx, tc.OrgID, memberID, func(ctx context.Context) error {
			var created []*Shift
			var skipped []SkippedOccurrence
			for _, src := range source {
				date := tgtStart.Add(src.Date.Sub(srcStart))
				conflicts, err := g.resolver.ShiftConflicts(ctx, tc, memberID, date, src.StartMinute, src.EndMinute, uuid.Nil)
				if err != nil {
					return err
				}
				if len(conflicts) > 0 {
					skipped = append(skipped, SkippedOccurrence{
						Date:   date,
						Reason: conflictError(conflicts).Error(),
					})
					continue
				}
				cp := &Shift{
					OrgID:       tc.OrgID,
					MemberID:    memberID,
					Date:        date,
					StartMinute: src.StartMinute,
					EndMinute:   src.EndMinute,
					Status:      StatusScheduled,
					Breaks:      append([]BreakWindow(nil), src.Breaks...),
					Notes:       src.Notes,
				}
				if err := g.shifts.Create(ctx, cp); err != nil {
					return err
				}
				created = append(created, cp)
			}
			result.CreatedShifts = append(result.CreatedShifts, created...)
			result.Skipped = append(result.Skipped, skipped...)
			return nil
		})
		if err != nil {
			return nil, mapWriteErr("shift", err)
		}
	}
	result.TotalShiftsCreated = len(result.CreatedShifts)
	return result, nil
}

// UpdateShiftStatus applies the shared transition table to a shift.
func (g *Generator) UpdateShiftStatus(ctx context.Context, tc auth.TenantContext, id uuid.UUID, next Status) (*Shift, error) {
	shift, err := g.shifts.GetByID(ctx, tc.OrgID, id)
	if err != nil {
		return nil, mapLookupErr("shift", id, err)
	}
	if next == shift.Status {
		return shift, nil
	}
	if !shift.Status.CanTransitionTo(next) {
		return nil, &InvalidTransitionError{From: shift.Status, To: next}
	}
	shift.Status = next
	if err := g.shifts.Update(ctx, shift); err != nil {
		return nil, err
	}
	return shift, nil
}

func (g *Generator) GetShift(ctx context.Context, tc auth.TenantContext, id uuid.UUID) (*Shift, error) {
	shift, err := g.shifts.GetByID(ctx, tc.OrgID, id)
	if err != nil {
		return nil, mapLookupErr("shift", id, err)
	}
	return shift, nil
}

func (g *Generator) ListShifts(ctx context.Context, tc auth.TenantContext, f ShiftFilter, limit, offset int) ([]*Shift, int, error) {
	return g.shifts.List(ctx, tc.OrgID, f, limit, offset)
}

func (g *Generator) DeleteShift(ctx context.Context, tc auth.TenantContext, id uuid.UUID) error {
	if _, err := g.shifts.GetByID(ctx, tc.OrgID, id); err != nil {
		return mapLookupErr("shift", id, err)
	}
	return g.shifts.Delete(ctx, tc.OrgID, id)
}
