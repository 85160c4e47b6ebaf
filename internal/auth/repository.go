package auth

import (
	"context"
	"strings"
	"sync"
)

// UserRepository defines the interface for user data operations.
type UserRepository interface {
	// Create stores a new user and assigns its ID. A taken name or email
	// yields ErrUserExists.
	Create(ctx context.Context, user *User) error

	// FindByName finds a user by account name.
	FindByName(ctx context.Context, name string) (*User, error)

	// FindByID finds a user by ID.
	FindByID(ctx context.Context, id int64) (*User, error)
}

// Pinger is implemented by repositories backed by a database connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// InMemoryUserRepository is an in-memory implementation of UserRepository.
// Used for tests and DB_DRIVER=memory.
type InMemoryUserRepository struct {
	mu      sync.RWMutex
	nextID  int64
	users   map[int64]*User
	byName  map[string]int64
	byEmail map[string]int64
}

// NewInMemoryUserRepository creates a new in-memory user repository.
func NewInMemoryUserRepository() *InMemoryUserRepository {
	return &InMemoryUserRepository{
		users:   make(map[int64]*User),
		byName:  make(map[string]int64),
		byEmail: make(map[string]int64),
	}
}

// Create creates a new user.
func (r *InMemoryUserRepository) Create(_ context.Context, user *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	email := strings.ToLower(user.Email)
	if _, ok := r.byName[user.Name]; ok {
		return ErrUserExists
	}
	if _, ok := r.byEmail[email]; ok {
		return ErrUserExists
	}

	r.nextID++
	user.ID = r.nextID

	userCopy := *user
	r.users[user.ID] = &userCopy
	r.byName[user.Name] = user.ID
	r.byEmail[email] = user.ID

	return nil
}

// FindByName finds a user by account name.
func (r *InMemoryUserRepository) FindByName(_ context.Context, name string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byName[name]
	if !ok {
		return nil, ErrUserNotFound
	}

	userCopy := *r.users[id]
	return &userCopy, nil
}

// FindByID finds a user by ID.
func (r *InMemoryUserRepository) FindByID(_ context.Context, id int64) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}

	userCopy := *user
	return &userCopy, nil
}
