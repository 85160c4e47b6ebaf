package middleware

import (
	"mime"
	"net/http"
	"strings"

	"github.com/weatherboard/weatherboard/internal/api/models"
)

// ContentTypeJSON makes application/json the default response type.
// Handlers that set their own Content-Type (the dashboard) win.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", "application/json")
		}
		next.ServeHTTP(w, r)
	})
}

// AllowContentTypes rejects POST, PUT and PATCH requests whose body media
// type is not one of types with 415. Requests without a Content-Type pass
// through to the handler.
func AllowContentTypes(types ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(types))
	for _, t := range types {
		allowed[strings.ToLower(t)] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPost, http.MethodPut, http.MethodPatch:
			default:
				next.ServeHTTP(w, r)
				return
			}

			ct := r.Header.Get("Content-Type")
			if ct == "" {
				next.ServeHTTP(w, r)
				return
			}
			mediaType, _, err := mime.ParseMediaType(ct)
			if err != nil || !allowed[mediaType] {
				models.NewProblem(models.ProblemTypeUnsupportedMediaType, "Unsupported media type", http.StatusUnsupportedMediaType, GetRequestID(r.Context())).
					WithDetail("Content-Type must be one of: " + strings.Join(types, ", ")).
					WithInstance(r.URL.Path).
					Write(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
