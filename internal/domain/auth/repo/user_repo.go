package repo

import (
	"context"
	"time"

	"github.com/Miraines/MoonyAndStarry/session-service/internal/domain/auth/model"
	"github.com/google/uuid"
)

// UserRepo returns errors.ErrNotFound for missing users and
// errors.ErrAlreadyExists for unique violations.
type UserRepo interface {
	CreateUser(ctx context.Context, u model.User) (uuid.UUID, error)

	GetUserByEmail(ctx context.Context, email string) (model.User, error)

	GetUserByID(ctx context.Context, id uuid.UUID) (model.User, error)

	GetUserByUsername(ctx context.Context, username string) (model.User, error)

	// SetRefreshToken overwrites the stored rotation credential in a single
	// update. A nil token clears it.
	SetRefreshToken(ctx context.Context, id uuid.UUID, token *string) error

	UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error
}

// AttemptRepo counts failed logins per key inside a sliding window.
type AttemptRepo interface {
	Failures(ctx context.Context, key string) (int64, error)

	RecordFailure(ctx context.Context, key string, window time.Duration) (int64, error)

	Reset(ctx context.Context, key string) error
}
