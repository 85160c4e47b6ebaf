// Package auth provides user registration, password login and bearer tokens.
package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// ErrValidation is returned when a request fails field validation.
var ErrValidation = errors.New("validation failed")

// User is a registered account.
type User struct {
	ID             int64
	Name           string
	Email          string
	HashedPassword string
	CreatedAt      time.Time
}

// RegisterRequest is the body of a registration request.
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=64"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72,bcryptlen"`
}

// LoginRequest carries login credentials. The username is the account name.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// FieldError represents a validation error on a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ValidationError lists the failing fields of a request.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	return ErrValidation.Error() + ": " + e.Fields[0].Field + " " + e.Fields[0].Message
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// TokenResponse is returned after a successful login.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// MaxPasswordBytes is the longest password bcrypt accepts, counted in bytes.
const MaxPasswordBytes = 72

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// max counts runes; bcrypt counts bytes, which matters for non-ASCII passwords.
	_ = v.RegisterValidation("bcryptlen", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= MaxPasswordBytes
	})
	return v
}

// Normalize trims names and lower-cases the email address.
func (r *RegisterRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
}

// Validate validates the registration request.
func (r *RegisterRequest) Validate() error {
	return validateStruct(r, map[string]string{
		"Name":     "name",
		"Email":    "email",
		"Password": "password",
	})
}

// Validate validates the login request.
func (r *LoginRequest) Validate() error {
	return validateStruct(r, map[string]string{
		"Username": "username",
		"Password": "password",
	})
}

func validateStruct(v any, names map[string]string) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := &ValidationError{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		field := names[fe.Field()]
		if field == "" {
			field = strings.ToLower(fe.Field())
		}
		out.Fields = append(out.Fields, FieldError{
			Field:   field,
			Message: fieldMessage(fe),
			Code:    strings.ToUpper(fe.Tag()),
		})
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "bcryptlen":
		return "must be at most 72 bytes"
	default:
		return "is invalid"
	}
}
