package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

var testSigningKey = []byte("test-signing-key-for-hmac-mode!!")

func signToken(t *testing.T, claims Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString(testSigningKey)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return s
}

func doRequest(t *testing.T, mw echo.MiddlewareFunc, header string) (*httptest.ResponseRecorder, TenantContext) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var got TenantContext
	handler := func(c echo.Context) error {
		tc, err := FromEchoContext(c)
		if err != nil {
			return err
		}
		got = tc
		return c.NoContent(http.StatusOK)
	}

	if err := mw(handler)(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec, got
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	orgID := uuid.New()
	userID := uuid.New()
	tokenStr := signToken(t, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		OrgID: orgID.String(),
	})

	mw := JWTMiddleware(JWTConfig{SigningKey: testSigningKey})
	rec, tc := doRequest(t, mw, "Bearer "+tokenStr)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if tc.OrgID != orgID {
		t.Errorf("expected org %s, got %s", orgID, tc.OrgID)
	}
	if tc.UserID != userID {
		t.Errorf("expected user %s, got %s", userID, tc.UserID)
	}
}

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	mw := JWTMiddleware(JWTConfig{SigningKey: testSigningKey})
	rec, _ := doRequest(t, mw, "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestJWTMiddleware_MissingOrgClaim(t *testing.T) {
	tokenStr := signToken(t, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	mw := JWTMiddleware(JWTConfig{SigningKey: testSigningKey})
	rec, _ := doRequest(t, mw, "Bearer "+tokenStr)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for missing org_id, got %d", rec.Code)
	}
}

func TestJWTMiddleware_ExpiredToken(t *testing.T) {
	tokenStr := signToken(t, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
		OrgID: uuid.New().String(),
	})
	mw := JWTMiddleware(JWTConfig{SigningKey: testSigningKey})
	rec, _ := doRequest(t, mw, "Bearer "+tokenStr)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for expired token, got %d", rec.Code)
	}
}

func TestDevAuthMiddleware(t *testing.T) {
	orgID := uuid.New()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Org-ID", orgID.String())
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		tc, err := FromEchoContext(c)
		if err != nil {
			return err
		}
		if tc.OrgID != orgID {
			t.Errorf("expected org %s, got %s", orgID, tc.OrgID)
		}
		return c.NoContent(http.StatusOK)
	}

	if err := DevAuthMiddleware()(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDevAuthMiddleware_MissingOrg(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := DevAuthMiddleware()(func(c echo.Context) error { return nil })(c)
	if err == nil {
		t.Fatal("expected error without X-Org-ID")
	}
}

func TestFromEchoContext_Empty(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	if _, err := FromEchoContext(c); err == nil {
		t.Error("expected error when tenant context is absent")
	}
}
