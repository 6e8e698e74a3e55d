package directory

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/slotbook/slotbook/internal/platform/auth"
)

// Manager implements the directory operations over the repositories.
type Manager struct {
	members  MemberRepository
	services ServiceRepository
	clients  ClientRepository
}

func NewManager(members MemberRepository, services ServiceRepository, clients ClientRepository) *Manager {
	return &Manager{members: members, services: services, clients: clients}
}

// -- Members --

func (m *Manager) CreateMember(ctx context.Context, tc auth.TenantContext, mb *Member) error {
	if strings.TrimSpace(mb.DisplayName) == "" {
		return fmt.Errorf("display_name is required")
	}
	mb.OrgID = tc.OrgID
	mb.IsActive = true
	return m.members.Create(ctx, mb)
}

func (m *Manager) GetMember(ctx context.Context, tc auth.TenantContext, id uuid.UUID) (*Member, error) {
	return m.members.GetByID(ctx, tc.OrgID, id)
}

func (m *Manager) ListMembers(ctx context.Context, tc auth.TenantContext, activeOnly bool, limit, offset int) ([]*Member, int, error) {
	return m.members.List(ctx, tc.OrgID, activeOnly, limit, offset)
}

func (m *Manager) UpdateMember(ctx context.Context, tc auth.TenantContext, mb *Member) error {
	existing, err := m.members.GetByID(ctx, tc.OrgID, mb.ID)
	if err != nil {
		return err
	}
	if strings.TrimSpace(mb.DisplayName) == "" {
		mb.DisplayName = existing.DisplayName
	}
	mb.OrgID = tc.OrgID
	mb.ExternalID = existing.ExternalID
	return m.members.Update(ctx, mb)
}

// DeactivateMember blocks new bookings for the member. Existing shifts and
// appointments are untouched.
func (m *Manager) DeactivateMember(ctx context.Context, tc auth.TenantContext, id uuid.UUID) error {
	mb, err := m.members.GetByID(ctx, tc.OrgID, id)
	if err != nil {
		return err
	}
	mb.IsActive = false
	return m.members.Update(ctx, mb)
}

// UpsertExternalMember synchronizes a member record from an identity-provider
// event, keyed by the provider's stable external id. Replaying the same event
// is a no-op update, never a duplicate.
func (m *Manager) UpsertExternalMember(ctx context.Context, tc auth.TenantContext, externalID, displayName string, email *string) (*Member, error) {
	if externalID == "" {
		return nil, fmt.Errorf("external_id is required")
	}
	existing, err := m.members.GetByExternalID(ctx, tc.OrgID, externalID)
	if err == nil {
		existing.DisplayName = displayName
		existing.Email = email
		if err := m.members.Update(ctx, existing); err != nil {
			return nil, err
		}
		return existing, nil
	}

	mb := &Member{
		OrgID:       tc.OrgID,
		DisplayName: displayName,
		Email:       email,
		ExternalID:  &externalID,
		IsActive:    true,
	}
	if err := m.members.Create(ctx, mb); err != nil {
		return nil, err
	}
	return mb, nil
}

// -- Services --

func (m *Manager) CreateService(ctx context.Context, tc auth.TenantContext, s *Service) error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if s.DurationMinutes < MinServiceDuration || s.DurationMinutes > MaxServiceDuration {
		return fmt.Errorf("duration_minutes must be between %d and %d", MinServiceDuration, MaxServiceDuration)
	}
	s.OrgID = tc.OrgID
	s.IsActive = true
	return m.services.Create(ctx, s)
}

func (m *Manager) GetService(ctx context.Context, tc auth.TenantContext, id uuid.UUID) (*Service, error) {
	return m.services.GetByID(ctx, tc.OrgID, id)
}

func (m *Manager) ListServices(ctx context.Context, tc auth.TenantContext, activeOnly bool, limit, offset int) ([]*Service, int, error) {
	return m.services.List(ctx, tc.OrgID, activeOnly, limit, offset)
}

// UpdateService updates name, price and category. Duration is immutable:
// appointment end times derived from it must stay valid for existing records.
func (m *Manager) UpdateService(ctx context.Context, tc auth.TenantContext, s *Service) error {
	existing, err := m.services.GetByID(ctx, tc.OrgID, s.ID)
	if err != nil {
		return err
	}
	if s.DurationMinutes != 0 && s.DurationMinutes != existing.DurationMinutes {
		return fmt.Errorf("duration_minutes is immutable")
	}
	s.OrgID = tc.OrgID
	s.DurationMinutes = existing.DurationMinutes
	if strings.TrimSpace(s.Name) == "" {
		s.Name = existing.Name
	}
	return m.services.Update(ctx, s)
}

func (m *Manager) DeactivateService(ctx context.Context, tc auth.TenantContext, id uuid.UUID) error {
	s, err := m.services.GetByID(ctx, tc.OrgID, id)
	if err != nil {
		return err
	}
	s.IsActive = false
	return m.services.Update(ctx, s)
}

// -- Clients --

func (m *Manager) CreateClient(ctx context.Context, tc auth.TenantContext, cl *Client) error {
	if strings.TrimSpace(cl.Name) == "" {
		return fmt.Errorf("name is required")
	}
	cl.OrgID = tc.OrgID
	cl.IsActive = true
	return m.clients.Create(ctx, cl)
}

func (m *Manager) GetClient(ctx context.Context, tc auth.TenantContext, id uuid.UUID) (*Client, error) {
	return m.clients.GetByID(ctx, tc.OrgID, id)
}

func (m *Manager) ListClients(ctx context.Context, tc auth.TenantContext, activeOnly bool, limit, offset int) ([]*Client, int, error) {
	return m.clients.List(ctx, tc.OrgID, activeOnly, limit, offset)
}

func (m *Manager) UpdateClient(ctx context.Context, tc auth.TenantContext, cl *Client) error {
	existing, err := m.clients.GetByID(ctx, tc.OrgID, cl.ID)
	if err != nil {
		return err
	}
	if strings.TrimSpace(cl.Name) == "" {
		cl.Name = existing.Name
	}
	cl.OrgID = tc.OrgID
	cl.ExternalID = existing.ExternalID
	return m.clients.Update(ctx, cl)
}

func (m *Manager) DeactivateClient(ctx context.Context, tc auth.TenantContext, id uuid.UUID) error {
	cl, err := m.clients.GetByID(ctx, tc.OrgID, id)
	if err != nil {
		return err
	}
	cl.IsActive = false
	return m.clients.Update(ctx, cl)
}

// UpsertExternalClient mirrors UpsertExternalMember for client records.
func (m *Manager) UpsertExternalClient(ctx context.Context, tc auth.TenantContext, externalID, name string, phone, email *string) (*Client, error) {
	if externalID == "" {
		return nil, fmt.Errorf("external_id is required")
	}
	existing, err := m.clients.GetByExternalID(ctx, tc.OrgID, externalID)
	if err == nil {
		existing.Name = name
		existing.Phone = phone
		existing.Email = email
		if err := m.clients.Update(ctx, existing); err != nil {
			return nil, err
		}
		return existing, nil
	}

	cl := &Client{
		OrgID:      tc.OrgID,
		Name:       name,
		Phone:      phone,
		Email:      email,
		ExternalID: &externalID,
		IsActive:   true,
	}
	if err := m.clients.Create(ctx, cl); err != nil {
		return nil, err
	}
	return cl, nil
}
