package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func signToken(t *testing.T, key []byte, method jwt.SigningMethod, claims Claims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tok
}

func validClaims(roles ...string) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "analyst-1",
			Issuer:    "careinsights",
			Audience:  jwt.ClaimStrings{"reports"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Roles: roles,
	}
}

func serve(t *testing.T, mw echo.MiddlewareFunc, path, authHeader string) (echo.Context, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath(path)

	var seen echo.Context
	err := mw(func(c echo.Context) error {
		seen = c
		return c.NoContent(http.StatusOK)
	})(c)
	return seen, err
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T (%v)", err, err)
	}
	return he.Code
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	cfg := JWTConfig{Issuer: "careinsights", Audience: "reports", SigningKey: testKey}
	tok := signToken(t, testKey, jwt.SigningMethodHS256, validClaims(RoleAnalyst))

	c, err := serve(t, JWTMiddleware(cfg), "/api/v1/reports", "Bearer "+tok)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := c.Request().Context()
	if got := UserIDFromContext(ctx); got != "analyst-1" {
		t.Errorf("expected analyst-1, got %q", got)
	}
	if roles := RolesFromContext(ctx); len(roles) != 1 || roles[0] != RoleAnalyst {
		t.Errorf("unexpected roles %v", roles)
	}
}

func TestJWTMiddleware_Rejects(t *testing.T) {
	cfg := JWTConfig{Issuer: "careinsights", Audience: "reports", SigningKey: testKey}

	expired := validClaims(RoleAnalyst)
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	noExpiry := validClaims(RoleAnalyst)
	noExpiry.ExpiresAt = nil

	wrongIssuer := validClaims(RoleAnalyst)
	wrongIssuer.Issuer = "someone-else"

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc"},
		{"garbage", "Bearer not-a-jwt"},
		{"wrong key", "Bearer " + signToken(t, []byte("another-key-another-key-another!!"), jwt.SigningMethodHS256, validClaims())},
		{"expired", "Bearer " + signToken(t, testKey, jwt.SigningMethodHS256, expired)},
		{"no expiry", "Bearer " + signToken(t, testKey, jwt.SigningMethodHS256, noExpiry)},
		{"wrong issuer", "Bearer " + signToken(t, testKey, jwt.SigningMethodHS256, wrongIssuer)},
		{"wrong method", "Bearer " + signToken(t, testKey, jwt.SigningMethodHS512, validClaims())},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := serve(t, JWTMiddleware(cfg), "/api/v1/reports", tt.header)
			if code := statusOf(t, err); code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", code)
			}
		})
	}
}

func TestJWTMiddleware_SkipsPublicPaths(t *testing.T) {
	cfg := JWTConfig{SigningKey: testKey, Skipper: AuthSkipper}
	for _, path := range []string{"/health", "/health/db", "/metrics"} {
		if _, err := serve(t, JWTMiddleware(cfg), path, ""); err != nil {
			t.Errorf("%s: unexpected error: %v", path, err)
		}
	}
	_, err := serve(t, JWTMiddleware(cfg), "/api/v1/reports", "")
	if code := statusOf(t, err); code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", code)
	}
}

func TestDevAuthMiddleware_DefaultsToAdmin(t *testing.T) {
	c, err := serve(t, DevAuthMiddleware(), "/api/v1/reports", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := c.Request().Context()
	if got := UserIDFromContext(ctx); got != "dev-user" {
		t.Errorf("expected dev-user, got %q", got)
	}
	if !HasRole(RolesFromContext(ctx), RoleAnalyst) {
		t.Error("expected dev user to satisfy analyst role")
	}
}

func TestRequireRole(t *testing.T) {
	e := echo.New()
	tests := []struct {
		name    string
		roles   []string
		allowed bool
	}{
		{"analyst", []string{RoleAnalyst}, true},
		{"admin", []string{RoleAdmin}, true},
		{"viewer", []string{"viewer"}, false},
		{"none", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/reports", nil)
			req = req.WithContext(WithUser(req.Context(), "u", tt.roles))
			c := e.NewContext(req, httptest.NewRecorder())

			err := RequireRole(RoleAnalyst)(func(c echo.Context) error { return nil })(c)
			if tt.allowed && err != nil {
				t.Fatalf("expected access, got %v", err)
			}
			if !tt.allowed {
				if code := statusOf(t, err); code != http.StatusForbidden {
					t.Errorf("expected 403, got %d", code)
				}
			}
		})
	}
}
