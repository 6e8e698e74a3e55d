package directory

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/slotbook/slotbook/internal/platform/db"
)

// -- Members --

type memberRepoPG struct{ pool *pgxpool.Pool }

func NewMemberRepoPG(pool *pgxpool.Pool) MemberRepository {
	return &memberRepoPG{pool: pool}
}

func (r *memberRepoPG) conn(ctx context.Context) db.Queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const memberCols = `id, org_id, display_name, email, external_id, is_active, created_at, updated_at`

func scanMember(row pgx.Row) (*Member, error) {
	var m Member
	err := row.Scan(&m.ID, &m.OrgID, &m.DisplayName, &m.Email, &m.ExternalID, &m.IsActive, &m.CreatedAt, &m.UpdatedAt)
	return &m, err
}

func (r *memberRepoPG) Create(ctx context.Context, m *Member) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO member (id, org_id, display_name, email, external_id, is_active)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at, updated_at`,
		m.ID, m.OrgID, m.DisplayName, m.Email, m.ExternalID, m.IsActive).
		Scan(&m.CreatedAt, &m.UpdatedAt)
}

func (r *memberRepoPG) GetByID(ctx context.Context, orgID, id uuid.UUID) (*Member, error) {
	return scanMember(r.conn(ctx).QueryRow(ctx,
		`SELECT `+memberCols+` FROM member WHERE org_id = $1 AND id = $2`, orgID, id))
}

func (r *memberRepoPG) GetByExternalID(ctx context.Context, orgID uuid.UUID, externalID string) (*Member, error) {
	return scanMember(r.conn(ctx).QueryRow(ctx,
		`SELECT `+memberCols+` FROM member WHERE org_id = $1 AND external_id = $2`, orgID, externalID))
}

func (r *memberRepoPG) Update(ctx context.Context, m *Member) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE member SET display_name=$3, email=$4, is_active=$5, updated_at=NOW()
		WHERE org_id = $1 AND id = $2`,
		m.OrgID, m.ID, m.DisplayName, m.Email, m.IsActive)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *memberRepoPG) List(ctx context.Context, orgID uuid.UUID, activeOnly bool, limit, offset int) ([]*Member, int, error) {
	where := `WHERE org_id = $1`
	if activeOnly {
		where += ` AND is_active`
	}
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM member `+where, orgID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+memberCols+` FROM member `+where+` ORDER BY display_name LIMIT $2 OFFSET $3`,
		orgID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, m)
	}
	return items, total, rows.Err()
}

// -- Services --

type serviceRepoPG struct{ pool *pgxpool.Pool }

func NewServiceRepoPG(pool *pgxpool.Pool) ServiceRepository {
	return &serviceRepoPG{pool: pool}
}

func (r *serviceRepoPG) conn(ctx context.Context) db.Queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const serviceCols = `id, org_id, name, duration_minutes, price_cents, category_id, is_active, created_at, updated_at`

func scanService(row pgx.Row) (*Service, error) {
	var s Service
	err := row.Scan(&s.ID, &s.OrgID, &s.Name, &s.DurationMinutes, &s.PriceCents, &s.CategoryID, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	return &s, err
}

func (r *serviceRepoPG) Create(ctx context.Context, s *Service) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO service (id, org_id, name, duration_minutes, price_cents, category_id, is_active)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at, updated_at`,
		s.ID, s.OrgID, s.Name, s.DurationMinutes, s.PriceCents, s.CategoryID, s.IsActive).
		Scan(&s.CreatedAt, &s.UpdatedAt)
}

func (r *serviceRepoPG) GetByID(ctx context.Context, orgID, id uuid.UUID) (*Service, error) {
	return scanService(r.conn(ctx).QueryRow(ctx,
		`SELECT `+serviceCols+` FROM service WHERE org_id = $1 AND id = $2`, orgID, id))
}

func (r *serviceRepoPG) Update(ctx context.Context, s *Service) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE service SET name=$3, price_cents=$4, category_id=$5, is_active=$6, updated_at=NOW()
		WHERE org_id = $1 AND id = $2`,
		s.OrgID, s.ID, s.Name, s.PriceCents, s.CategoryID, s.IsActive)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *serviceRepoPG) List(ctx context.Context, orgID uuid.UUID, activeOnly bool, limit, offset int) ([]*Service, int, error) {
	where := `WHERE org_id = $1`
	if activeOnly {
		where += ` AND is_active`
	}
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM service `+where, orgID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+serviceCols+` FROM service `+where+` ORDER BY name LIMIT $2 OFFSET $3`,
		orgID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Service
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	return items, total, rows.Err()
}

// -- Clients --

type clientRepoPG struct{ pool *pgxpool.Pool }

func NewClientRepoPG(pool *pgxpool.Pool) ClientRepository {
	return &clientRepoPG{pool: pool}
}

func (r *clientRepoPG) conn(ctx context.Context) db.Queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const clientCols = `id, org_id, name, phone, email, external_id, is_active, created_at, updated_at`

func scanClient(row pgx.Row) (*Client, error) {
	var c Client
	err := row.Scan(&c.ID, &c.OrgID, &c.Name, &c.Phone, &c.Email, &c.ExternalID, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	return &c, err
}

func (r *clientRepoPG) Create(ctx context.Context, c *Client) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO client (id, org_id, name, phone, email, external_id, is_active)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at, updated_at`,
		c.ID, c.OrgID, c.Name, c.Phone, c.Email, c.ExternalID, c.IsActive).
		Scan(&c.CreatedAt, &c.UpdatedAt)
}

func (r *clientRepoPG) GetByID(ctx context.Context, orgID, id uuid.UUID) (*Client, error) {
	return scanClient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+clientCols+` FROM client WHERE org_id = $1 AND id = $2`, orgID, id))
}

func (r *clientRepoPG) GetByExternalID(ctx context.Context, orgID uuid.UUID, externalID string) (*Client, error) {
	return scanClient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+clientCols+` FROM client WHERE org_id = $1 AND external_id = $2`, orgID, externalID))
}

func (r *clientRepoPG) Update(ctx context.Context, c *Client) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE client SET name=$3, phone=$4, email=$5, is_active=$6, updated_at=NOW()
		WHERE org_id = $1 AND id = $2`,
		c.OrgID, c.ID, c.Name, c.Phone, c.Email, c.IsActive)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *clientRepoPG) List(ctx context.Context, orgID uuid.UUID, activeOnly bool, limit, offset int) ([]*Client, int, error) {
	where := `WHERE org_id = $1`
	if activeOnly {
		where += ` AND is_active`
	}
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM client `+where, orgID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+clientCols+` FROM client `+where+` ORDER BY name LIMIT $2 OFFSET $3`,
		orgID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, c)
	}
	return items, total, rows.Err()
}
