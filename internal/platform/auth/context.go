// Package auth resolves the acting user and organization for each request.
// The upstream identity provider has already authenticated the caller; this
// package only extracts and carries the verified (orgID, userID) pair.
package auth

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// TenantContext identifies the organization and acting user for an engine
// call. It is passed explicitly into every service operation; engine code
// never reads tenant identity from globals or request state.
type TenantContext struct {
	OrgID  uuid.UUID
	UserID uuid.UUID
}

const tenantContextKey = "tenant_context"

// FromEchoContext returns the TenantContext stored by the auth middleware.
func FromEchoContext(c echo.Context) (TenantContext, error) {
	tc, ok := c.Get(tenantContextKey).(TenantContext)
	if !ok || tc.OrgID == uuid.Nil {
		return TenantContext{}, fmt.Errorf("no tenant context on request")
	}
	return tc, nil
}

func setTenantContext(c echo.Context, tc TenantContext) {
	c.Set(tenantContextKey, tc)
}
