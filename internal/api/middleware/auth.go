package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/weatherboard/weatherboard/internal/api/models"
	"github.com/weatherboard/weatherboard/internal/auth"
)

// principalKey is the context key for the authenticated principal.
type principalKey struct{}

// Principal identifies the caller behind a validated access token.
type Principal struct {
	UserID   int64
	Username string
}

// TokenValidator validates bearer access tokens.
type TokenValidator interface {
	ValidateAccessToken(token string) (*auth.JWTClaims, error)
}

// Auth creates authentication middleware that validates JWT bearer tokens.
func Auth(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, detail := BearerToken(r)
			if detail != "" {
				writeUnauthorized(w, r, detail)
				return
			}

			claims, err := validator.ValidateAccessToken(tokenString)
			if err != nil {
				switch {
				case errors.Is(err, auth.ErrAccessTokenExpired):
					writeUnauthorized(w, r, "access token has expired")
				case errors.Is(err, auth.ErrInvalidAccessToken):
					writeUnauthorized(w, r, "invalid access token")
				default:
					writeUnauthorized(w, r, "authentication failed")
				}
				return
			}

			ctx := context.WithValue(r.Context(), principalKey{}, Principal{
				UserID:   claims.UserID,
				Username: claims.Subject,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the token from the Authorization header. When the
// header is missing or malformed the token is empty and detail explains why.
func BearerToken(r *http.Request) (token, detail string) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", "missing authorization header"
	}

	// Case-insensitive scheme
	const bearerPrefix = "Bearer "
	if len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", "invalid authorization header format"
	}

	token = strings.TrimSpace(header[len(bearerPrefix):])
	if token == "" {
		return "", "missing bearer token"
	}
	return token, ""
}

// writeUnauthorized writes a 401 Unauthorized response.
// This is implemented directly here to avoid import cycle with response package.
func writeUnauthorized(w http.ResponseWriter, r *http.Request, detail string) {
	traceID := GetRequestID(r.Context())
	problem := models.NewUnauthorized(traceID, detail)
	problem.Instance = r.URL.Path
	w.Header().Set("WWW-Authenticate", "Bearer")
	problem.Write(w)
}

// GetPrincipal returns the authenticated principal, if any.
func GetPrincipal(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// GetUsername returns the authenticated account name.
// Returns an empty string if not authenticated.
func GetUsername(ctx context.Context) string {
	p, _ := GetPrincipal(ctx)
	return p.Username
}
