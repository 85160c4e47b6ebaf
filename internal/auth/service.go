package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Predefined service errors.
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user with this name or email already exists")
	ErrInvalidCredentials = errors.New("incorrect username or password")
)

// ServiceConfig holds configuration for the auth service.
type ServiceConfig struct {
	JWTService *JWTService
	UserRepo   UserRepository
	Logger     zerolog.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

// Service provides authentication operations.
type Service struct {
	jwtService *JWTService
	userRepo   UserRepository
	logger     zerolog.Logger
	now        func() time.Time
}

// NewService creates a new auth service.
func NewService(cfg ServiceConfig) *Service {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		jwtService: cfg.JWTService,
		userRepo:   cfg.UserRepo,
		logger:     cfg.Logger,
		now:        now,
	}
}

// Register validates the request, hashes the password and stores the user.
func (s *Service) Register(ctx context.Context, req *RegisterRequest) (*User, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &User{
		Name:           req.Name,
		Email:          req.Email,
		HashedPassword: hash,
		CreatedAt:      s.now().UTC(),
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, ErrUserExists) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}

	s.logger.Info().
		Int64("user_id", user.ID).
		Str("name", user.Name).
		Msg("user registered")

	return user, nil
}

// Login checks credentials and issues an access token. Unknown users and wrong
// passwords produce the same error.
func (s *Service) Login(ctx context.Context, username, password string) (*TokenResponse, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.userRepo.FindByName(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("finding user: %w", err)
	}

	if !CheckPassword(user.HashedPassword, password) {
		return nil, ErrInvalidCredentials
	}

	token, _, err := s.jwtService.GenerateAccessToken(user)
	if err != nil {
		return nil, err
	}

	return &TokenResponse{
		AccessToken: token,
		TokenType:   TokenTypeBearer,
		ExpiresIn:   int64(s.jwtService.TTL().Seconds()),
	}, nil
}

// ValidateAccessToken validates an access token and returns its claims.
func (s *Service) ValidateAccessToken(tokenString string) (*JWTClaims, error) {
	return s.jwtService.ValidateAccessToken(tokenString)
}

// CurrentUser resolves the user named by a valid access token.
func (s *Service) CurrentUser(ctx context.Context, tokenString string) (*User, error) {
	claims, err := s.jwtService.ValidateAccessToken(tokenString)
	if err != nil {
		return nil, err
	}
	return s.UserByName(ctx, claims.Subject)
}

// UserByName retrieves a user by account name.
func (s *Service) UserByName(ctx context.Context, name string) (*User, error) {
	return s.userRepo.FindByName(ctx, name)
}

// GetUser retrieves a user by ID.
func (s *Service) GetUser(ctx context.Context, id int64) (*User, error) {
	return s.userRepo.FindByID(ctx, id)
}

// Ping checks the user store when it supports it.
func (s *Service) Ping(ctx context.Context) error {
	if p, ok := s.userRepo.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
