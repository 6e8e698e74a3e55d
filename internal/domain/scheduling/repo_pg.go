package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/slotbook/slotbook/internal/platform/db"
)

// -- Appointments --

type apptRepoPG struct{ pool *pgxpool.Pool }

func NewAppointmentRepoPG(pool *pgxpool.Pool) AppointmentRepository {
	return &apptRepoPG{pool: pool}
}

func (r *apptRepoPG) conn(ctx context.Context) db.Queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const apptCols = `id, org_id, member_id, service_id, client_id,
	walk_in_client_name, walk_in_client_phone, start_time, end_time, status,
	notes, internal_notes, cancellation_reason, cancelled_at,
	booked_by_user_id, cancelled_by_user_id, created_at, updated_at`

func scanAppt(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.OrgID, &a.MemberID, &a.ServiceID, &a.ClientID,
		&a.WalkInClientName, &a.WalkInClientPhone, &a.StartTime, &a.EndTime, &a.Status,
		&a.Notes, &a.InternalNotes, &a.CancellationReason, &a.CancelledAt,
		&a.BookedByUserID, &a.CancelledByUserID, &a.CreatedAt, &a.UpdatedAt)
	return &a, err
}

func (r *apptRepoPG) Create(ctx context.Context, a *Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointment (id, org_id, member_id, service_id, client_id,
			walk_in_client_name, walk_in_client_phone, start_time, end_time, status,
			notes, internal_notes, booked_by_user_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING created_at, updated_at`,
		a.ID, a.OrgID, a.MemberID, a.ServiceID, a.ClientID,
		a.WalkInClientName, a.WalkInClientPhone, a.StartTime, a.EndTime, a.Status,
		a.Notes, a.InternalNotes, a.BookedByUserID).
		Scan(&a.CreatedAt, &a.UpdatedAt)
}

func (r *apptRepoPG) GetByID(ctx context.Context, orgID, id uuid.UUID) (*Appointment, error) {
	return scanAppt(r.conn(ctx).QueryRow(ctx,
		`SELECT `+apptCols+` FROM appointment WHERE org_id = $1 AND id = $2`, orgID, id))
}

func (r *apptRepoPG) Update(ctx context.Context, a *Appointment) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointment SET client_id=$3, walk_in_client_name=$4, walk_in_client_phone=$5,
			start_time=$6, end_time=$7, status=$8, notes=$9, internal_notes=$10,
			cancellation_reason=$11, cancelled_at=$12, cancelled_by_user_id=$13, updated_at=NOW()
		WHERE org_id = $1 AND id = $2`,
		a.OrgID, a.ID, a.ClientID, a.WalkInClientName, a.WalkInClientPhone,
		a.StartTime, a.EndTime, a.Status, a.Notes, a.InternalNotes,
		a.CancellationReason, a.CancelledAt, a.CancelledByUserID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *apptRepoPG) ListOverlapping(ctx context.Context, orgID, memberID uuid.UUID, start, end time.Time) ([]*Appointment, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+apptCols+` FROM appointment
		WHERE org_id = $1 AND member_id = $2 AND status <> 'CANCELLED'
		  AND start_time < $4 AND end_time > $3
		ORDER BY start_time`,
		orgID, memberID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Appointment
	for rows.Next() {
		a, err := scanAppt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *apptRepoPG) List(ctx context.Context, orgID uuid.UUID, f AppointmentFilter, limit, offset int) ([]*Appointment, int, error) {
	where := `WHERE org_id = $1`
	args := []interface{}{orgID}
	if f.MemberID != uuid.Nil {
		args = append(args, f.MemberID)
		where += fmt.Sprintf(` AND member_id = $%d`, len(args))
	}
	if f.ClientID != uuid.Nil {
		args = append(args, f.ClientID)
		where += fmt.Sprintf(` AND client_id = $%d`, len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	if !f.From.IsZero() {
		args = append(args, f.From)
		where += fmt.Sprintf(` AND end_time >= $%d`, len(args))
	}
	if !f.To.IsZero() {
		args = append(args, f.To)
		where += fmt.Sprintf(` AND start_time < $%d`, len(args))
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM appointment `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		fmt.Sprintf(`SELECT `+apptCols+` FROM appointment %s ORDER BY start_time LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []*Appointment
	for rows.Next() {
		a, err := scanAppt(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, a)
	}
	return out, total, rows.Err()
}

// -- Shifts --

type shiftRepoPG struct{ pool *pgxpool.Pool }

func NewShiftRepoPG(pool *pgxpool.Pool) ShiftRepository {
	return &shiftRepoPG{pool: pool}
}

func (r *shiftRepoPG) conn(ctx context.Context) db.Queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const shiftCols = `id, org_id, member_id, date, start_minute, end_minute, status,
	breaks, parent_shift_id, recurrence_pattern, notes, created_at, updated_at`

func scanShiftRow(row pgx.Row) (*Shift, error) {
	var s Shift
	err := row.Scan(&s.ID, &s.OrgID, &s.MemberID, &s.Date, &s.StartMinute, &s.EndMinute, &s.Status,
		&s.Breaks, &s.ParentShiftID, &s.RecurrencePattern, &s.Notes, &s.CreatedAt, &s.UpdatedAt)
	return &s, err
}

func (r *shiftRepoPG) Create(ctx context.Context, s *Shift) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO shift (id, org_id, member_id, date, start_minute, end_minute, status,
			breaks, parent_shift_id, recurrence_pattern, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING created_at, updated_at`,
		s.ID, s.OrgID, s.MemberID, s.Date, s.StartMinute, s.EndMinute, s.Status,
		s.Breaks, s.ParentShiftID, s.RecurrencePattern, s.Notes).
		Scan(&s.CreatedAt, &s.UpdatedAt)
}

func (r *shiftRepoPG) GetByID(ctx context.Context, orgID, id uuid.UUID) (*Shift, error) {
	return scanShiftRow(r.conn(ctx).QueryRow(ctx,
		`SELECT `+shiftCols+` FROM shift WHERE org_id = $1 AND id = $2`, orgID, id))
}

func (r *shiftRepoPG) Update(ctx context.Context, s *Shift) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE shift SET date=$3, start_minute=$4, end_minute=$5, status=$6,
			breaks=$7, notes=$8, updated_at=NOW()
		WHERE org_id = $1 AND id = $2`,
		s.OrgID, s.ID, s.Date, s.StartMinute, s.EndMinute, s.Status, s.Breaks, s.Notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *shiftRepoPG) Delete(ctx context.Context, orgID, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`DELETE FROM shift WHERE org_id = $1 AND id = $2`, orgID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *shiftRepoPG) ListByDateRange(ctx context.Context, orgID, memberID uuid.UUID, from, to time.Time) ([]*Shift, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+shiftCols+` FROM shift
		WHERE org_id = $1 AND member_id = $2 AND status <> 'CANCELLED'
		  AND date BETWEEN $3 AND $4
		ORDER BY date, start_minute`,
		orgID, memberID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Shift
	for rows.Next() {
		s, err := scanShiftRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *shiftRepoPG) List(ctx context.Context, orgID uuid.UUID, f ShiftFilter, limit, offset int) ([]*Shift, int, error) {
	where := `WHERE org_id = $1`
	args := []interface{}{orgID}
	if f.MemberID != uuid.Nil {
		args = append(args, f.MemberID)
		where += fmt.Sprintf(` AND member_id = $%d`, len(args))
	}
	if !f.From.IsZero() {
		args = append(args, f.From)
		where += fmt.Sprintf(` AND date >= $%d`, len(args))
	}
	if !f.To.IsZero() {
		args = append(args, f.To)
		where += fmt.Sprintf(` AND date <= $%d`, len(args))
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM shift `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		fmt.Sprintf(`SELECT `+shiftCols+` FROM shift %s ORDER BY date, start_minute LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []*Shift
	for rows.Next() {
		s, err := scanShiftRow(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}

// -- Locker --

// pgLocker serializes writers for one member by locking the member row
// inside a retried transaction. The schema's exclusion constraints are the
// backstop for anything the lock misses.
type pgLocker struct{ pool *pgxpool.Pool }

func NewPGLocker(pool *pgxpool.Pool) Locker {
	return &pgLocker{pool: pool}
}

func (l *pgLocker) WithMemberLock(ctx context.Context, orgID, memberID uuid.UUID, fn func(ctx context.Context) error) error {
	return db.WithRetry(ctx, l.pool, func(ctx context.Context) error {
		tx := db.TxFromContext(ctx)
		if _, err := tx.Exec(ctx,
			`SELECT id FROM member WHERE org_id = $1 AND id = $2 FOR UPDATE`, orgID, memberID); err != nil {
			return err
		}
		return fn(ctx)
	})
}
