package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weatherboard/weatherboard/internal/api/middleware"
	"github.com/weatherboard/weatherboard/internal/auth"
)

const testSigningKey = "test-secret-key-for-testing-only"

func newTestJWTService(now func() time.Time) *auth.JWTService {
	return auth.NewJWTService(auth.JWTConfig{
		SigningKey: testSigningKey,
		Issuer:     "https://weatherboard.dev",
		Audience:   "weatherboard-api",
		Now:        now,
	})
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuth_MissingAuthorizationHeader(t *testing.T) {
	handler := middleware.Auth(newTestJWTService(nil))(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/v1/users/me", http.NoBody)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
	assert.Contains(t, rec.Body.String(), "missing authorization header")
}

func TestAuth_InvalidAuthorizationFormat(t *testing.T) {
	handler := middleware.Auth(newTestJWTService(nil))(okHandler())

	tests := []struct {
		name   string
		header string
	}{
		{"no bearer prefix", "token123"},
		{"basic auth", "Basic dXNlcjpwYXNz"},
		{"bearer lowercase garbage", "bearer token123"},
		{"empty bearer", "Bearer "},
		{"just bearer", "Bearer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
			req.Header.Set("Authorization", tt.header)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestAuth_InvalidToken(t *testing.T) {
	handler := middleware.Auth(newTestJWTService(nil))(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.Header.Set("Authorization", "Bearer invalid.jwt.token")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid access token")
}

func TestAuth_ExpiredToken(t *testing.T) {
	issued := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	now := issued
	jwtService := newTestJWTService(func() time.Time { return now })

	token, _, err := jwtService.GenerateAccessToken(&auth.User{ID: 1, Name: "minji"})
	require.NoError(t, err)

	now = issued.Add(31 * time.Minute)

	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	middleware.Auth(jwtService)(okHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "access token has expired")
}

func TestAuth_ValidToken(t *testing.T) {
	jwtService := newTestJWTService(nil)

	user := &auth.User{ID: 42, Name: "minji", Email: "minji@example.com"}
	token, _, err := jwtService.GenerateAccessToken(user)
	require.NoError(t, err)

	var captured middleware.Principal
	handler := middleware.Auth(jwtService)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, _ = middleware.GetPrincipal(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, middleware.Principal{UserID: 42, Username: "minji"}, captured)
}

func TestAuth_CaseInsensitiveBearer(t *testing.T) {
	jwtService := newTestJWTService(nil)
	token, _, err := jwtService.GenerateAccessToken(&auth.User{ID: 1, Name: "minji"})
	require.NoError(t, err)

	handler := middleware.Auth(jwtService)(okHandler())

	for _, prefix := range []string{"Bearer ", "bearer ", "BEARER "} {
		t.Run(prefix, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
			req.Header.Set("Authorization", prefix+token)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
		})
	}
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.Header.Set("Authorization", "Bearer  abc.def.ghi ")

	token, detail := middleware.BearerToken(req)
	assert.Equal(t, "abc.def.ghi", token)
	assert.Empty(t, detail)
}

func TestGetUsername_NoAuth(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	assert.Empty(t, middleware.GetUsername(req.Context()))

	_, ok := middleware.GetPrincipal(req.Context())
	assert.False(t, ok)
}
