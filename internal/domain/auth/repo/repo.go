package repo

import (
	"context"
	"time"

	"github.com/Morphiu/Squad-Yangu/internal/domain/auth/model"
	"github.com/google/uuid"
)

// UserRepo is the credential store. Lookups return errors.ErrNotFound when
// no row matches; unique violations surface as errors.ErrAlreadyExists.
type UserRepo interface {
	CreateUser(ctx context.Context, u model.User) (uuid.UUID, error)

	GetUserByID(ctx context.Context, id uuid.UUID) (model.User, error)

	GetUserByEmail(ctx context.Context, email string) (model.User, error)

	GetUserByUsername(ctx context.Context, username string) (model.User, error)

	// GetUserByResetTokenHash matches only tokens whose expiry is after now.
	GetUserByResetTokenHash(ctx context.Context, hash string, now time.Time) (model.User, error)

	// UpdateProfile writes username, email, bio and profile picture.
	// passwordHash replaces the stored hash only when non-empty; u.PasswordHash
	// is ignored. Reset columns are left untouched.
	UpdateProfile(ctx context.Context, u model.User, passwordHash string) error

	UpdatePasswordHash(ctx context.Context, id uuid.UUID, passwordHash string) error

	SetResetToken(ctx context.Context, id uuid.UUID, hash string, expiresAt time.Time) error

	ClearResetToken(ctx context.Context, id uuid.UUID) error

	// ConsumeResetToken sets the new password hash and clears both reset
	// columns in one conditional update. It returns errors.ErrNotFound when
	// the stored hash no longer matches or has expired.
	ConsumeResetToken(ctx context.Context, id uuid.UUID, tokenHash, passwordHash string, now time.Time) error
}

// ResetThrottle limits how often a reset email can be requested per key.
type ResetThrottle interface {
	Acquire(ctx context.Context, key string, window time.Duration) (bool, error)

	Release(ctx context.Context, key string) error
}
