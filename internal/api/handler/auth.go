package handler

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"

	"github.com/weatherboard/weatherboard/internal/api/middleware"
	"github.com/weatherboard/weatherboard/internal/api/models"
	"github.com/weatherboard/weatherboard/internal/api/response"
	"github.com/weatherboard/weatherboard/internal/auth"
)

// maxAuthBody bounds registration and login bodies.
const maxAuthBody = 16 << 10

// UsersHandler handles registration, login and the current-user endpoint.
type UsersHandler struct {
	authService *auth.Service
}

// NewUsersHandler creates a new UsersHandler.
func NewUsersHandler(authService *auth.Service) *UsersHandler {
	return &UsersHandler{
		authService: authService,
	}
}

// Register handles POST /v1/users - create an account.
func (h *UsersHandler) Register(w http.ResponseWriter, r *http.Request) {
	var input models.UserCreate
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAuthBody)).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	user, err := h.authService.Register(r.Context(), &auth.RegisterRequest{
		Name:     input.Name,
		Email:    input.Email,
		Password: input.Password,
	})
	if err != nil {
		var verr *auth.ValidationError
		switch {
		case errors.As(err, &verr):
			response.BadRequest(w, r, "validation error", toFieldErrors(verr.Fields))
		case errors.Is(err, auth.ErrUserExists):
			response.Conflict(w, r, "name or email already registered")
		default:
			response.InternalError(w, r, "registration failed")
		}
		return
	}

	response.Created(w, r, "/v1/users/me", models.NewUserRead(user))
}

// Login handles POST /v1/login - exchange credentials for an access token.
// Accepts an OAuth2-style form (username, password) or the same fields as JSON.
func (h *UsersHandler) Login(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxAuthBody)

	var req auth.LoginRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.BadRequest(w, r, "invalid JSON body", nil)
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			response.BadRequest(w, r, "invalid form body", nil)
			return
		}
		req.Username = r.PostForm.Get("username")
		req.Password = r.PostForm.Get("password")
	}

	if err := req.Validate(); err != nil {
		var verr *auth.ValidationError
		if errors.As(err, &verr) {
			response.BadRequest(w, r, "validation error", toFieldErrors(verr.Fields))
			return
		}
		response.BadRequest(w, r, err.Error(), nil)
		return
	}

	token, err := h.authService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			response.InvalidCredentials(w, r, "incorrect username or password")
			return
		}
		response.InternalError(w, r, "login failed")
		return
	}

	response.JSON(w, r, http.StatusOK, models.Token{
		AccessToken: token.AccessToken,
		TokenType:   token.TokenType,
		ExpiresIn:   token.ExpiresIn,
	})
}

// Me handles GET /v1/users/me - the account behind the bearer token.
func (h *UsersHandler) Me(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		response.Unauthorized(w, r, "authentication required")
		return
	}

	user, err := h.authService.UserByName(r.Context(), principal.Username)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			response.Unauthorized(w, r, "account no longer exists")
			return
		}
		response.InternalError(w, r, "failed to load account")
		return
	}

	response.JSON(w, r, http.StatusOK, models.NewUserRead(user))
}

func toFieldErrors(fields []auth.FieldError) []models.FieldError {
	out := make([]models.FieldError, len(fields))
	for i, f := range fields {
		out[i] = models.FieldError{
			Field:   f.Field,
			Message: f.Message,
			Code:    f.Code,
		}
	}
	return out
}
