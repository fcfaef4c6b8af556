package repository

import (
	"context"
	"errors"

	"github.com/oksasatya/go-ddd-user-management/internal/domain/entity"
)

var (
	// ErrNotFound is returned when no persisted user matches the request.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when inserting a username that is already taken.
	ErrDuplicate = errors.New("already exists")
)

// UserRepository defines the interface for user-related database operations.
// Implementations join the transaction carried by ctx when one is active.
type UserRepository interface {
	// FindByUsername returns ErrNotFound when no user has that username.
	// The profile image is not loaded; use LoadImage.
	FindByUsername(ctx context.Context, username string) (*entity.User, error)
	FindAll(ctx context.Context) ([]*entity.User, error)
	// Save inserts a transient user (assigning its ID) or updates a persisted one.
	// Roles and preferences are synchronized, new credentials appended, stored
	// credentials never deleted. An unloaded image leaves the stored image as is.
	Save(ctx context.Context, u *entity.User) (*entity.User, error)
	// Remove deletes the user with its preferences, role links and credential history.
	// ErrNotFound when u has no persisted identity.
	Remove(ctx context.Context, u *entity.User) error
	Exists(ctx context.Context, username string) (bool, error)
	// LoadImage fills u.Details.Image from storage.
	LoadImage(ctx context.Context, u *entity.User) error
}
