package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/Miraines/MoonyAndStarry/session-service/internal/adapters/transport/http/dto"
	"github.com/Miraines/MoonyAndStarry/session-service/internal/app/auth/hasher"
	"github.com/Miraines/MoonyAndStarry/session-service/internal/app/auth/validation"
	customErrors "github.com/Miraines/MoonyAndStarry/session-service/internal/domain/auth/errors"
	"github.com/Miraines/MoonyAndStarry/session-service/internal/domain/auth/jwt"
	"github.com/Miraines/MoonyAndStarry/session-service/internal/domain/auth/model"
	repo "github.com/Miraines/MoonyAndStarry/session-service/internal/domain/auth/repo"
	"github.com/Miraines/MoonyAndStarry/session-service/internal/infra/config"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

const (
	retryBase        = 50 * time.Millisecond
	retryMaxAttempts = 3
)

type authService struct {
	userRepo    repo.UserRepo
	attemptRepo repo.AttemptRepo
	jwtUtil     jwt.JWTUtil
	hasher      hasher.PasswordHasher
	cfg         *config.Config
	v           *validator.Validate
	log         *zap.Logger

	// dummyHash is verified against for unknown usernames.
	dummyHash string
}

type Service interface {
	Register(context.Context, dto.RegisterDTO) (model.User, error)
	Login(context.Context, dto.LoginDTO) (model.Session, error)
	// Refresh checks the presented rotation credential against the stored
	// one and mints a new access credential only.
	Refresh(ctx context.Context, userID uuid.UUID, presented string) (model.TokenPair, error)
	Logout(ctx context.Context, userID uuid.UUID) error
	Me(ctx context.Context, userID uuid.UUID) (model.User, error)
}

// New builds the session issuer. ar may be nil, which disables failed-login
// throttling. It fails if the hasher cannot produce the dummy digest used to
// equalise login timing.
func New(
	ur repo.UserRepo,
	ar repo.AttemptRepo,
	jm jwt.JWTUtil,
	h hasher.PasswordHasher,
	cfg *config.Config,
	v *validator.Validate,
	log *zap.Logger,
) (Service, error) {
	if log == nil {
		log = zap.NewNop()
	}
	dummy, err := h.Hash(uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("dummy hash: %w", err)
	}
	return &authService{
		userRepo: ur, attemptRepo: ar, jwtUtil: jm, hasher: h, cfg: cfg, v: v,
		log:       log.Named("auth"),
		dummyHash: dummy,
	}, nil
}

func (a *authService) Register(ctx context.Context, in dto.RegisterDTO) (model.User, error) {
	if err := validation.Struct(a.v, in); err != nil {
		return model.User{}, err
	}

	err := a.withStore(ctx, "GetUserByEmail", true, func(ctx context.Context) error {
		_, err := a.userRepo.GetUserByEmail(ctx, in.Email)
		return err
	})
	switch {
	case err == nil:
		return model.User{}, customErrors.ErrEmailTaken
	case !customErrors.IsNotFound(err):
		return model.User{}, a.storeErr(err, "Register")
	}

	passwordHash, err := a.hasher.Hash(in.Password)
	if err != nil {
		return model.User{}, customErrors.WrapInternal(err, "Register")
	}

	user := model.User{
		ID:           uuid.New(),
		Name:         in.Name,
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: passwordHash,
	}
	err = a.withStore(ctx, "CreateUser", false, func(ctx context.Context) error {
		_, err := a.userRepo.CreateUser(ctx, user)
		return err
	})
	if err != nil {
		if customErrors.IsAlreadyExists(err) {
			return model.User{}, fmt.Errorf("%w: username or email already in use", customErrors.ErrAlreadyExists)
		}
		return model.User{}, a.storeErr(err, "Register")
	}

	a.log.Info("user registered", zap.String("user_id", user.ID.String()))

	user.PasswordHash = ""
	return user, nil
}

func (a *authService) Login(ctx context.Context, in dto.LoginDTO) (model.Session, error) {
	if err := validation.Struct(a.v, in); err != nil {
		return model.Session{}, err
	}

	// Lookups are case-sensitive, so the counter is too.
	key := in.Username
	if a.lockedOut(ctx, key) {
		return model.Session{}, customErrors.ErrTooManyAttempts
	}

	var user model.User
	err := a.withStore(ctx, "GetUserByUsername", true, func(ctx context.Context) error {
		var err error
		user, err = a.userRepo.GetUserByUsername(ctx, in.Username)
		return err
	})
	found := err == nil
	if err != nil && !customErrors.IsNotFound(err) {
		return model.Session{}, a.storeErr(err, "Login")
	}

	hash := user.PasswordHash
	if !found {
		// Unknown users pay for a verification too.
		hash = a.dummyHash
	}
	ok, err := a.hasher.Verify(in.Password, hash)
	if err != nil {
		return model.Session{}, customErrors.WrapInternal(err, "Login")
	}

	if !found || !ok {
		a.recordFailure(ctx, key)
		if found {
			a.log.Info("login rejected", zap.String("reason", "password mismatch"), zap.String("user_id", user.ID.String()))
		} else {
			a.log.Info("login rejected", zap.String("reason", "user not found"))
		}
		return model.Session{}, customErrors.ErrInvalidCredentials
	}

	a.resetFailures(ctx, key)

	if a.hasher.NeedsRehash(user.PasswordHash) {
		a.upgradeHash(ctx, user.ID, in.Password)
	}

	pair, err := a.issueTokens(user.ID)
	if err != nil {
		return model.Session{}, err
	}

	refresh := pair.RefreshToken
	err = a.withStore(ctx, "SetRefreshToken", true, func(ctx context.Context) error {
		return a.userRepo.SetRefreshToken(ctx, user.ID, &refresh)
	})
	if err != nil {
		return model.Session{}, a.storeErr(err, "Login")
	}

	a.log.Info("user logged in", zap.String("user_id", user.ID.String()))

	user.PasswordHash = ""
	user.RefreshToken = nil
	return model.Session{User: user, Tokens: pair}, nil
}

func (a *authService) Refresh(ctx context.Context, userID uuid.UUID, presented string) (model.TokenPair, error) {
	if presented == "" {
		return model.TokenPair{}, customErrors.ErrInvalidToken
	}

	var user model.User
	err := a.withStore(ctx, "GetUserByID", true, func(ctx context.Context) error {
		var err error
		user, err = a.userRepo.GetUserByID(ctx, userID)
		return err
	})
	switch {
	case customErrors.IsNotFound(err):
		return model.TokenPair{}, customErrors.ErrRevoked
	case err != nil:
		return model.TokenPair{}, a.storeErr(err, "Refresh")
	}

	if user.RefreshToken == nil {
		return model.TokenPair{}, customErrors.ErrRevoked
	}
	if subtle.ConstantTimeCompare([]byte(*user.RefreshToken), []byte(presented)) != 1 {
		a.log.Info("refresh rejected: credential superseded", zap.String("user_id", userID.String()))
		return model.TokenPair{}, customErrors.ErrRevoked
	}

	at, _, err := a.jwtUtil.GenerateAccessToken(userID)
	if err != nil {
		return model.TokenPair{}, customErrors.WrapInternal(err, "GenerateAccessToken")
	}

	return model.TokenPair{
		AccessToken: at,
		AccessTTL:   a.jwtUtil.AccessTTL(),
		UserId:      userID,
	}, nil
}

func (a *authService) Logout(ctx context.Context, userID uuid.UUID) error {
	err := a.withStore(ctx, "SetRefreshToken", true, func(ctx context.Context) error {
		return a.userRepo.SetRefreshToken(ctx, userID, nil)
	})
	if err != nil && !customErrors.IsNotFound(err) {
		return a.storeErr(err, "Logout")
	}
	a.log.Info("user logged out", zap.String("user_id", userID.String()))
	return nil
}

func (a *authService) Me(ctx context.Context, userID uuid.UUID) (model.User, error) {
	var user model.User
	err := a.withStore(ctx, "GetUserByID", true, func(ctx context.Context) error {
		var err error
		user, err = a.userRepo.GetUserByID(ctx, userID)
		return err
	})
	if err != nil {
		if customErrors.IsNotFound(err) {
			return model.User{}, fmt.Errorf("%w: user", customErrors.ErrNotFound)
		}
		return model.User{}, a.storeErr(err, "Me")
	}
	user.PasswordHash = ""
	user.RefreshToken = nil
	return user, nil
}

func (a *authService) issueTokens(uid uuid.UUID) (model.TokenPair, error) {
	at, _, err := a.jwtUtil.GenerateAccessToken(uid)
	if err != nil {
		return model.TokenPair{}, customErrors.WrapInternal(err, "GenerateAccessToken")
	}
	rt, _, err := a.jwtUtil.GenerateRefreshToken(uid)
	if err != nil {
		return model.TokenPair{}, customErrors.WrapInternal(err, "GenerateRefreshToken")
	}

	return model.TokenPair{
		AccessToken:  at,
		RefreshToken: rt,
		AccessTTL:    a.jwtUtil.AccessTTL(),
		RefreshTTL:   a.jwtUtil.RefreshTTL(),
		UserId:       uid,
	}, nil
}

// withStore runs fn under REPO_TIMEOUT. A timeout becomes
// ErrStorageUnavailable; retryable calls are repeated with backoff while the
// failure stays in that class. Cancellation of ctx itself is returned as is.
func (a *authService) withStore(ctx context.Context, op string, retryable bool, fn func(context.Context) error) error {
	attempt := func(ctx context.Context) error {
		cctx, cancel := context.WithTimeout(ctx, a.repoTimeout())
		defer cancel()

		err := fn(cctx)
		switch {
		case err == nil:
			return nil
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, context.DeadlineExceeded) || errors.Is(cctx.Err(), context.DeadlineExceeded):
			err = customErrors.WrapUnavailable(err, op)
		}

		if retryable && customErrors.IsStorageUnavailable(err) {
			a.log.Warn("storage call failed, retrying", zap.String("op", op), zap.Error(err))
			return retry.RetryableError(err)
		}
		return err
	}

	if !retryable {
		return attempt(ctx)
	}
	b := retry.WithMaxRetries(retryMaxAttempts-1, retry.NewExponential(retryBase))
	return retry.Do(ctx, b, attempt)
}

func (a *authService) repoTimeout() time.Duration {
	if a.cfg != nil && a.cfg.RepoTimeout > 0 {
		return a.cfg.RepoTimeout
	}
	return 3 * time.Second
}

// storeErr keeps the storage-unavailable and cancellation classes intact
// and folds everything else into ErrInternal.
func (a *authService) storeErr(err error, op string) error {
	switch {
	case customErrors.IsStorageUnavailable(err):
		a.log.Error("storage unavailable", zap.String("op", op), zap.Error(err))
		return err
	case errors.Is(err, context.Canceled):
		return err
	default:
		return customErrors.WrapInternal(err, op)
	}
}

func (a *authService) upgradeHash(ctx context.Context, id uuid.UUID, password string) {
	hash, err := a.hasher.Hash(password)
	if err == nil {
		err = a.withStore(ctx, "UpdatePasswordHash", true, func(ctx context.Context) error {
			return a.userRepo.UpdatePasswordHash(ctx, id, hash)
		})
	}
	if err != nil {
		a.log.Warn("password rehash failed", zap.String("user_id", id.String()), zap.Error(err))
		return
	}
	a.log.Info("password hash upgraded", zap.String("user_id", id.String()))
}

func (a *authService) limiterEnabled() bool {
	return a.attemptRepo != nil && a.cfg != nil && a.cfg.LoginMaxAttempts > 0
}

// lockedOut fails open: a broken counter store must not block logins.
func (a *authService) lockedOut(ctx context.Context, key string) bool {
	if !a.limiterEnabled() {
		return false
	}
	var n int64
	err := a.withStore(ctx, "Failures", false, func(ctx context.Context) error {
		var err error
		n, err = a.attemptRepo.Failures(ctx, key)
		return err
	})
	if err != nil {
		a.log.Warn("attempt counter unavailable", zap.Error(err))
		return false
	}
	return n >= int64(a.cfg.LoginMaxAttempts)
}

func (a *authService) recordFailure(ctx context.Context, key string) {
	if !a.limiterEnabled() {
		return
	}
	err := a.withStore(ctx, "RecordFailure", false, func(ctx context.Context) error {
		_, err := a.attemptRepo.RecordFailure(ctx, key, a.cfg.LoginLockoutWindow)
		return err
	})
	if err != nil {
		a.log.Warn("record failed login", zap.Error(err))
	}
}

func (a *authService) resetFailures(ctx context.Context, key string) {
	if !a.limiterEnabled() {
		return
	}
	err := a.withStore(ctx, "ResetFailures", false, func(ctx context.Context) error {
		return a.attemptRepo.Reset(ctx, key)
	})
	if err != nil {
		a.log.Warn("reset failed logins", zap.Error(err))
	}
}
