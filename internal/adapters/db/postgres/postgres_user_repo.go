package postgres

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"

	customErrors "github.com/Miraines/MoonyAndStarry/session-service/internal/domain/auth/errors"
	"github.com/Miraines/MoonyAndStarry/session-service/internal/domain/auth/model"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

type PostgresUserRepo struct {
	db *gorm.DB
}

func NewPostgresUserRepo(db *gorm.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

func (p *PostgresUserRepo) CreateUser(ctx context.Context, user model.User) (uuid.UUID, error) {
	res := p.db.WithContext(ctx).Create(&user)
	if err := res.Error; err != nil {
		if isUniqueViolation(err) {
			return uuid.Nil, customErrors.ErrAlreadyExists
		}
		return uuid.Nil, classify(err, "CreateUser")
	}
	return user.ID, nil
}

func (p *PostgresUserRepo) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	return p.first(ctx, "GetUserByEmail", "email = ?", email)
}

func (p *PostgresUserRepo) GetUserByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	return p.first(ctx, "GetUserByID", "id = ?", id)
}

func (p *PostgresUserRepo) GetUserByUsername(ctx context.Context, username string) (model.User, error) {
	return p.first(ctx, "GetUserByUsername", "username = ?", username)
}

// SetRefreshToken writes or clears the rotation credential with one UPDATE,
// so concurrent logins resolve to whichever write lands last.
func (p *PostgresUserRepo) SetRefreshToken(ctx context.Context, id uuid.UUID, token *string) error {
	var value any = gorm.Expr("NULL")
	if token != nil {
		value = *token
	}
	return p.update(ctx, "SetRefreshToken", id, "refresh_token", value)
}

func (p *PostgresUserRepo) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	return p.update(ctx, "UpdatePasswordHash", id, "password_hash", hash)
}

func (p *PostgresUserRepo) first(ctx context.Context, op, query string, arg any) (model.User, error) {
	var u model.User
	res := p.db.WithContext(ctx).Where(query, arg).First(&u)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return model.User{}, customErrors.ErrNotFound
	}
	if err := res.Error; err != nil {
		return model.User{}, classify(err, op)
	}

	return u, nil
}

func (p *PostgresUserRepo) update(ctx context.Context, op string, id uuid.UUID, column string, value any) error {
	res := p.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", id).
		Update(column, value)
	if err := res.Error; err != nil {
		return classify(err, op)
	}
	if res.RowsAffected == 0 {
		return customErrors.ErrNotFound
	}

	return nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// classify separates outages, which callers may retry, from everything else.
func classify(err error, op string) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, driver.ErrBadConn),
		errors.As(err, &netErr),
		pgconn.Timeout(err),
		pgconn.SafeToRetry(err):
		return customErrors.WrapUnavailable(err, op)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgerrcode.IsConnectionException(pgErr.Code) {
		return customErrors.WrapUnavailable(err, op)
	}
	return customErrors.WrapInternal(err, op)
}
