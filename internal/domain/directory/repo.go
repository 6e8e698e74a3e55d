package directory

import (
	"context"

	"github.com/google/uuid"
)

type MemberRepository interface {
	Create(ctx context.Context, m *Member) error
	GetByID(ctx context.Context, orgID, id uuid.UUID) (*Member, error)
	GetByExternalID(ctx context.Context, orgID uuid.UUID, externalID string) (*Member, error)
	Update(ctx context.Context, m *Member) error
	List(ctx context.Context, orgID uuid.UUID, activeOnly bool, limit, offset int) ([]*Member, int, error)
}

type ServiceRepository interface {
	Create(ctx context.Context, s *Service) error
	GetByID(ctx context.Context, orgID, id uuid.UUID) (*Service, error)
	Update(ctx context.Context, s *Service) error
	List(ctx context.Context, orgID uuid.UUID, activeOnly bool, limit, offset int) ([]*Service, int, error)
}

type ClientRepository interface {
	Create(ctx context.Context, cl *Client) error
	GetByID(ctx context.Context, orgID, id uuid.UUID) (*Client, error)
	GetByExternalID(ctx context.Context, orgID uuid.UUID, externalID string) (*Client, error)
	Update(ctx context.Context, cl *Client) error
	List(ctx context.Context, orgID uuid.UUID, activeOnly bool, limit, offset int) ([]*Client, int, error)
}
