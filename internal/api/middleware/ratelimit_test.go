package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weatherboard/weatherboard/internal/api/middleware"
	"github.com/weatherboard/weatherboard/internal/api/models"
	"github.com/weatherboard/weatherboard/internal/auth"
)

func sendFrom(handler http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/v1/forecast/daily", http.NoBody)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestRateLimitByIP_SeparateBudgets(t *testing.T) {
	handler := middleware.RateLimitByIP(middleware.RateLimitConfig{
		RequestLimit: 2,
		WindowLength: time.Minute,
	})(okHandler())

	assert.Equal(t, http.StatusOK, sendFrom(handler, "172.16.0.1:1").Code)
	assert.Equal(t, http.StatusOK, sendFrom(handler, "172.16.0.1:2").Code)
	assert.Equal(t, http.StatusTooManyRequests, sendFrom(handler, "172.16.0.1:3").Code)

	assert.Equal(t, http.StatusOK, sendFrom(handler, "172.16.0.2:1").Code)
}

func TestRateLimitByIP_ExceededProblem(t *testing.T) {
	handler := middleware.RequestID(middleware.RateLimitByIP(middleware.RateLimitConfig{
		RequestLimit: 1,
		WindowLength: time.Minute,
	})(okHandler()))

	require.Equal(t, http.StatusOK, sendFrom(handler, "203.0.113.1:1").Code)
	rec := sendFrom(handler, "203.0.113.1:1")

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	retryAfter, err := strconv.Atoi(rec.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, retryAfter, 1)
	assert.LessOrEqual(t, retryAfter, 60)

	var problem models.Problem
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&problem))
	assert.Equal(t, models.ProblemTypeTooManyRequests, problem.Type)
	assert.Equal(t, "/v1/forecast/daily", problem.Instance)
	assert.Equal(t, rec.Header().Get("X-Request-Id"), problem.TraceID)
}

func TestRateLimit_SubSecondWindowRetriesAfterOneSecond(t *testing.T) {
	handler := middleware.RateLimitByIP(middleware.RateLimitConfig{
		RequestLimit: 1,
		WindowLength: 200 * time.Millisecond,
	})(okHandler())

	sendFrom(handler, "198.51.100.7:1")
	rec := sendFrom(handler, "198.51.100.7:1")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestRateLimitByUser_KeysByAccount(t *testing.T) {
	cfg := middleware.RateLimitConfig{RequestLimit: 2, WindowLength: time.Minute}

	jwtService := newTestJWTService(nil)
	tokenA, _, err := jwtService.GenerateAccessToken(&auth.User{ID: 1, Name: "alice"})
	require.NoError(t, err)
	tokenB, _, err := jwtService.GenerateAccessToken(&auth.User{ID: 2, Name: "bob"})
	require.NoError(t, err)

	handler := middleware.Auth(jwtService)(middleware.RateLimitByUser(cfg)(okHandler()))

	send := func(token, remoteAddr string) int {
		req := httptest.NewRequest(http.MethodGet, "/v1/me", http.NoBody)
		req.RemoteAddr = remoteAddr
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	// Same account from different addresses shares one budget
	assert.Equal(t, http.StatusOK, send(tokenA, "192.168.1.1:12345"))
	assert.Equal(t, http.StatusOK, send(tokenA, "192.168.1.2:12345"))
	assert.Equal(t, http.StatusTooManyRequests, send(tokenA, "192.168.1.3:12345"))

	// Another account from the same address is unaffected
	assert.Equal(t, http.StatusOK, send(tokenB, "192.168.1.1:12345"))
}

func TestRateLimitByUser_FallsBackToIP(t *testing.T) {
	handler := middleware.RateLimitByUser(middleware.RateLimitConfig{
		RequestLimit: 1,
		WindowLength: time.Minute,
	})(okHandler())

	assert.Equal(t, http.StatusOK, sendFrom(handler, "10.0.0.1:1").Code)
	assert.Equal(t, http.StatusTooManyRequests, sendFrom(handler, "10.0.0.1:1").Code)
	assert.Equal(t, http.StatusOK, sendFrom(handler, "10.0.0.2:1").Code)
}

func TestDefaultRateLimitConfigs(t *testing.T) {
	assert.Equal(t, middleware.RateLimitConfig{RequestLimit: 10, WindowLength: time.Minute}, middleware.AuthRateLimit)
	assert.Equal(t, middleware.RateLimitConfig{RequestLimit: 30, WindowLength: time.Minute}, middleware.ExpensiveRateLimit)
	assert.Equal(t, middleware.RateLimitConfig{RequestLimit: 100, WindowLength: time.Minute}, middleware.StandardRateLimit)
}
