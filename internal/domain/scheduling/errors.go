package scheduling

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Sentinel failures shared across engine operations.
var (
	ErrNotFound = errors.New("not found")
	ErrInactive = errors.New("resource is inactive")
)

// ValidationError reports malformed input that reached the engine. The
// upstream request layer validates shape; the engine re-checks the
// invariants it alone owns.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

// ConflictError reports that a proposed window overlaps an existing entity,
// or that no shift covers it. EntityID is zero when there is no single
// conflicting record to name.
type ConflictError struct {
	EntityType string
	EntityID   uuid.UUID
	Msg        string
}

func (e *ConflictError) Error() string {
	if e.EntityID != uuid.Nil {
		return fmt.Sprintf("conflicts with %s %s", e.EntityType, e.EntityID)
	}
	return e.Msg
}

// InvalidTransitionError reports a status change the state machine forbids.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot transition from %s to %s", e.From, e.To)
}

// InvalidStateError reports a business-rule violation that is not a status
// transition, e.g. converting an appointment that already has a client.
type InvalidStateError struct {
	Msg string
}

func (e *InvalidStateError) Error() string {
	return e.Msg
}
