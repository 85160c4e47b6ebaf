// Package response writes the API's JSON, HTML and RFC 7807 responses.
// Every response echoes the request ID in X-Request-Id.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/weatherboard/weatherboard/internal/api/middleware"
	"github.com/weatherboard/weatherboard/internal/api/models"
)

// dashboardCSP relaxes the API's deny-all policy to inline styles, which is
// all the server-rendered dashboard needs.
const dashboardCSP = "default-src 'none'; style-src 'unsafe-inline'; img-src data:; form-action 'self'; frame-ancestors 'none'"

func setRequestID(w http.ResponseWriter, r *http.Request) string {
	id := middleware.GetRequestID(r.Context())
	if id != "" {
		w.Header().Set("X-Request-Id", id)
	}
	return id
}

// JSON writes data as JSON with status. A nil data writes no body.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	setRequestID(w, r)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// Created writes a 201 with an optional Location header.
func Created(w http.ResponseWriter, r *http.Request, location string, data any) {
	if location != "" {
		w.Header().Set("Location", location)
	}
	JSON(w, r, http.StatusCreated, data)
}

// HTML writes a rendered dashboard page.
func HTML(w http.ResponseWriter, r *http.Request, status int, body []byte) {
	setRequestID(w, r)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Security-Policy", dashboardCSP)
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// Error writes problem with its instance set to the request path.
func Error(w http.ResponseWriter, r *http.Request, problem *models.Problem) {
	problem.Instance = r.URL.Path
	problem.Write(w)
}

func writeProblem(w http.ResponseWriter, r *http.Request, build func(traceID, detail string) *models.Problem, detail string) {
	Error(w, r, build(middleware.GetRequestID(r.Context()), detail))
}

// BadRequest writes a 400 validation problem listing the offending fields.
func BadRequest(w http.ResponseWriter, r *http.Request, detail string, errors []models.FieldError) {
	Error(w, r, models.NewBadRequest(middleware.GetRequestID(r.Context()), detail, errors))
}

// InvalidCredentials writes the 400 returned for a failed login.
func InvalidCredentials(w http.ResponseWriter, r *http.Request, detail string) {
	writeProblem(w, r, models.NewInvalidCredentials, detail)
}

// Unauthorized writes a 401.
func Unauthorized(w http.ResponseWriter, r *http.Request, detail string) {
	writeProblem(w, r, models.NewUnauthorized, detail)
}

// NotFound writes a 404, used when the provider does not know a city.
func NotFound(w http.ResponseWriter, r *http.Request, detail string) {
	writeProblem(w, r, models.NewNotFound, detail)
}

// Conflict writes a 409 for a duplicate user name or email.
func Conflict(w http.ResponseWriter, r *http.Request, detail string) {
	writeProblem(w, r, models.NewConflict, detail)
}

// InternalError writes a 500.
func InternalError(w http.ResponseWriter, r *http.Request, detail string) {
	writeProblem(w, r, models.NewInternalError, detail)
}

// BadGateway writes a 502 for a failed or malformed provider response.
func BadGateway(w http.ResponseWriter, r *http.Request, detail string) {
	writeProblem(w, r, models.NewBadGateway, detail)
}

// ServiceUnavailable writes a 503 while the provider circuit is open.
func ServiceUnavailable(w http.ResponseWriter, r *http.Request, detail string) {
	writeProblem(w, r, models.NewServiceUnavailable, detail)
}
