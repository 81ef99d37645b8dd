package userrepo

import (
	"context"
	"time"

	"github.com/rice-apps/carpool-backend/internal/domain"
)

// User is the persistence shape used by the user repository. It is an
// internal record, not an HTTP DTO.
type User struct {
	ID domain.UserID

	// Username is the lowercased netid; unique.
	Username string
	Email    string

	// FirstName/LastName are nil for accounts provisioned lazily at first
	// SSO login.
	FirstName *string
	LastName  *string

	CreatedAt time.Time
}

// Repository provides access to persisted users.
type Repository interface {
	Create(ctx context.Context, u User) error

	GetByID(ctx context.Context, id domain.UserID) (User, error)
	GetByUsername(ctx context.Context, username string) (User, error)
}
