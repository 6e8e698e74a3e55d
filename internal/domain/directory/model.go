// Package directory manages the org-scoped registry of staff members,
// bookable services and clients that the scheduling engine books against.
package directory

import (
	"time"

	"github.com/google/uuid"
)

// Member is a staff resource that owns shifts and is booked for appointments.
// Deactivation blocks new bookings; it never deletes history.
type Member struct {
	ID          uuid.UUID `db:"id" json:"id"`
	OrgID       uuid.UUID `db:"org_id" json:"org_id"`
	DisplayName string    `db:"display_name" json:"display_name"`
	Email       *string   `db:"email" json:"email,omitempty"`
	ExternalID  *string   `db:"external_id" json:"external_id,omitempty"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Service duration bounds in minutes.
const (
	MinServiceDuration = 1
	MaxServiceDuration = 480
)

// Service is a bookable offering. DurationMinutes is immutable after
// creation; appointment end times are derived from it.
type Service struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	OrgID           uuid.UUID  `db:"org_id" json:"org_id"`
	Name            string     `db:"name" json:"name"`
	DurationMinutes int        `db:"duration_minutes" json:"duration_minutes"`
	PriceCents      int64      `db:"price_cents" json:"price_cents"`
	CategoryID      *uuid.UUID `db:"category_id" json:"category_id,omitempty"`
	IsActive        bool       `db:"is_active" json:"is_active"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// Client is a registered customer. Walk-in appointments reference no client.
type Client struct {
	ID         uuid.UUID `db:"id" json:"id"`
	OrgID      uuid.UUID `db:"org_id" json:"org_id"`
	Name       string    `db:"name" json:"name"`
	Phone      *string   `db:"phone" json:"phone,omitempty"`
	Email      *string   `db:"email" json:"email,omitempty"`
	ExternalID *string   `db:"external_id" json:"external_id,omitempty"`
	IsActive   bool      `db:"is_active" json:"is_active"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}
