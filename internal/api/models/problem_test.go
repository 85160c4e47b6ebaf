package models_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weatherboard/weatherboard/internal/api/models"
)

func TestNewProblem_Chaining(t *testing.T) {
	p := models.NewProblem(models.ProblemTypeValidation, "Validation error", http.StatusBadRequest, "req_1").
		WithDetail("lat must be between -90 and 90").
		WithInstance("/v1/forecast/daily")

	assert.Equal(t, models.ProblemTypeValidation, p.Type)
	assert.Equal(t, http.StatusBadRequest, p.Status)
	assert.Equal(t, "lat must be between -90 and 90", p.Detail)
	assert.Equal(t, "/v1/forecast/daily", p.Instance)
	assert.Nil(t, p.Errors)
}

func TestProblem_Write(t *testing.T) {
	p := models.NewBadRequest("req_1", "validation failed", []models.FieldError{
		{Field: "name", Message: "is required", Code: "required"},
	})

	rec := httptest.NewRecorder()
	p.Write(rec)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "req_1", rec.Header().Get("X-Request-Id"))

	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "req_1", body["traceId"])
	assert.NotContains(t, body, "instance")
	assert.Len(t, body["errors"], 1)
}

func TestProblem_WriteWithoutTraceID(t *testing.T) {
	rec := httptest.NewRecorder()
	models.NewInternalError("", "boom").Write(rec)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	_, set := rec.Header()["X-Request-Id"]
	assert.False(t, set)
}

func TestProblemConstructors(t *testing.T) {
	tests := []struct {
		problem *models.Problem
		status  int
		typ     string
	}{
		{models.NewInvalidCredentials("t", "d"), http.StatusBadRequest, models.ProblemTypeInvalidCredentials},
		{models.NewUnauthorized("t", "d"), http.StatusUnauthorized, models.ProblemTypeUnauthorized},
		{models.NewNotFound("t", "d"), http.StatusNotFound, models.ProblemTypeNotFound},
		{models.NewConflict("t", "d"), http.StatusConflict, models.ProblemTypeConflict},
		{models.NewTooManyRequests("t", "d"), http.StatusTooManyRequests, models.ProblemTypeTooManyRequests},
		{models.NewInternalError("t", "d"), http.StatusInternalServerError, models.ProblemTypeInternal},
		{models.NewBadGateway("t", "d"), http.StatusBadGateway, models.ProblemTypeBadGateway},
		{models.NewServiceUnavailable("t", "d"), http.StatusServiceUnavailable, models.ProblemTypeUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			assert.Equal(t, tt.status, tt.problem.Status)
			assert.Equal(t, tt.typ, tt.problem.Type)
			assert.Equal(t, "d", tt.problem.Detail)
			assert.Equal(t, "t", tt.problem.TraceID)
			assert.NotEmpty(t, tt.problem.Title)
		})
	}
}
