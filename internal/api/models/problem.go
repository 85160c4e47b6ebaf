package models

import (
	"encoding/json"
	"net/http"
)

// Problem is an RFC 7807 error body, served as application/problem+json.
type Problem struct {
	Type     string       `json:"type"`
	Title    string       `json:"title"`
	Status   int          `json:"status"`
	Detail   string       `json:"detail,omitempty"`
	Instance string       `json:"instance,omitempty"`
	TraceID  string       `json:"traceId"`
	Errors   []FieldError `json:"errors,omitempty"`
}

// FieldError describes one rejected request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Problem type URIs.
const (
	ProblemTypeValidation           = "https://weatherboard.dev/problems/validation-error"
	ProblemTypeInvalidCredentials   = "https://weatherboard.dev/problems/invalid-credentials"
	ProblemTypeUnauthorized         = "https://weatherboard.dev/problems/unauthorized"
	ProblemTypeTLSRequired          = "https://weatherboard.dev/problems/tls-required"
	ProblemTypeNotFound             = "https://weatherboard.dev/problems/not-found"
	ProblemTypeConflict             = "https://weatherboard.dev/problems/conflict"
	ProblemTypeUnsupportedMediaType = "https://weatherboard.dev/problems/unsupported-media-type"
	ProblemTypeTooManyRequests      = "https://weatherboard.dev/problems/too-many-requests"
	ProblemTypeInternal             = "https://weatherboard.dev/problems/internal-error"
	ProblemTypeBadGateway           = "https://weatherboard.dev/problems/bad-gateway"
	ProblemTypeUnavailable          = "https://weatherboard.dev/problems/service-unavailable"
)

// NewProblem creates a Problem without detail or instance.
func NewProblem(problemType, title string, status int, traceID string) *Problem {
	return &Problem{
		Type:    problemType,
		Title:   title,
		Status:  status,
		TraceID: traceID,
	}
}

// WithDetail sets the occurrence-specific explanation.
func (p *Problem) WithDetail(detail string) *Problem {
	p.Detail = detail
	return p
}

// WithInstance sets the request path the problem occurred on.
func (p *Problem) WithInstance(instance string) *Problem {
	p.Instance = instance
	return p
}

// Write sends the problem with its status code.
func (p *Problem) Write(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/problem+json")
	if p.TraceID != "" {
		w.Header().Set("X-Request-Id", p.TraceID)
	}
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

// NewBadRequest creates a 400 validation problem.
func NewBadRequest(traceID, detail string, errors []FieldError) *Problem {
	p := NewProblem(ProblemTypeValidation, "Validation error", http.StatusBadRequest, traceID).WithDetail(detail)
	p.Errors = errors
	return p
}

// NewInvalidCredentials creates the 400 returned for a failed login.
func NewInvalidCredentials(traceID, detail string) *Problem {
	return NewProblem(ProblemTypeInvalidCredentials, "Invalid credentials", http.StatusBadRequest, traceID).WithDetail(detail)
}

func NewUnauthorized(traceID, detail string) *Problem {
	return NewProblem(ProblemTypeUnauthorized, "Unauthorized", http.StatusUnauthorized, traceID).WithDetail(detail)
}

func NewNotFound(traceID, detail string) *Problem {
	return NewProblem(ProblemTypeNotFound, "Not found", http.StatusNotFound, traceID).WithDetail(detail)
}

func NewConflict(traceID, detail string) *Problem {
	return NewProblem(ProblemTypeConflict, "Conflict", http.StatusConflict, traceID).WithDetail(detail)
}

func NewTooManyRequests(traceID, detail string) *Problem {
	return NewProblem(ProblemTypeTooManyRequests, "Too many requests", http.StatusTooManyRequests, traceID).WithDetail(detail)
}

func NewInternalError(traceID, detail string) *Problem {
	return NewProblem(ProblemTypeInternal, "Internal server error", http.StatusInternalServerError, traceID).WithDetail(detail)
}

// NewBadGateway creates a 502 for a failed or unusable provider response.
func NewBadGateway(traceID, detail string) *Problem {
	return NewProblem(ProblemTypeBadGateway, "Bad gateway", http.StatusBadGateway, traceID).WithDetail(detail)
}

// NewServiceUnavailable creates a 503 for an open provider circuit.
func NewServiceUnavailable(traceID, detail string) *Problem {
	return NewProblem(ProblemTypeUnavailable, "Service unavailable", http.StatusServiceUnavailable, traceID).WithDetail(detail)
}
