package models

import "github.com/weatherboard/weatherboard/internal/auth"

// UserCreate is the request body for registering an account.
type UserCreate struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserRead is the public view of an account.
type UserRead struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt Timestamp `json:"createdAt"`
}

// NewUserRead converts a stored user to its public view.
func NewUserRead(u *auth.User) UserRead {
	return UserRead{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		CreatedAt: Timestamp(u.CreatedAt),
	}
}

// Token is the login response. Field names follow the OAuth2 password flow.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}
