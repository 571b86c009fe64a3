package jwt

import (
	"errors"
	"time"

	customErrors "github.com/Miraines/MoonyAndStarry/session-service/internal/domain/auth/errors"
	jwt2 "github.com/Miraines/MoonyAndStarry/session-service/internal/domain/auth/jwt"
	"github.com/Miraines/MoonyAndStarry/session-service/internal/infra/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type JwtUtilImpl struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
	audience      string
	now           func() time.Time
}

var _ jwt2.JWTUtil = (*JwtUtilImpl)(nil)

func NewJWTUtil(cfg *config.Config) (*JwtUtilImpl, error) {
	if cfg.AccessTokenSecret == "" || cfg.RefreshTokenSecret == "" {
		return nil, customErrors.NewInvalidArgument("token secrets must be set")
	}
	if cfg.AccessTokenSecret == cfg.RefreshTokenSecret {
		return nil, customErrors.NewInvalidArgument("access and refresh secrets must differ")
	}

	return &JwtUtilImpl{
		accessSecret:  []byte(cfg.AccessTokenSecret),
		refreshSecret: []byte(cfg.RefreshTokenSecret),
		accessTTL:     cfg.AccessTokenTTL,
		refreshTTL:    cfg.RefreshTokenTTL,
		issuer:        cfg.Issuer,
		audience:      cfg.Audience,
		now:           time.Now,
	}, nil
}

// WithClock replaces the time source used for both signing and verification.
func (j *JwtUtilImpl) WithClock(now func() time.Time) *JwtUtilImpl {
	j.now = now
	return j
}

func (j *JwtUtilImpl) AccessTTL() time.Duration  { return j.accessTTL }
func (j *JwtUtilImpl) RefreshTTL() time.Duration { return j.refreshTTL }

func (j *JwtUtilImpl) GenerateAccessToken(userID uuid.UUID) (string, time.Time, error) {
	token, exp, err := j.Issue(userID, j.accessTTL, j.accessSecret)
	if err != nil {
		return "", time.Time{}, customErrors.WrapInternal(err, "sign access token")
	}
	return token, exp, nil
}

func (j *JwtUtilImpl) GenerateRefreshToken(userID uuid.UUID) (string, time.Time, error) {
	token, exp, err := j.Issue(userID, j.refreshTTL, j.refreshSecret)
	if err != nil {
		return "", time.Time{}, customErrors.WrapInternal(err, "sign refresh token")
	}
	return token, exp, nil
}

func (j *JwtUtilImpl) ValidateAccessToken(raw string) (uuid.UUID, error) {
	return j.Verify(raw, j.accessSecret)
}

func (j *JwtUtilImpl) ValidateRefreshToken(raw string) (uuid.UUID, error) {
	return j.Verify(raw, j.refreshSecret)
}

// Issue signs an HS256 token for userID that expires ttl from now. Every
// token gets a fresh jti, so two tokens minted in the same second differ.
func (j *JwtUtilImpl) Issue(userID uuid.UUID, ttl time.Duration, secret []byte) (string, time.Time, error) {
	now := j.now()

	claims := jwt2.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Issuer:    j.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	if j.audience != "" {
		claims.Audience = jwt.ClaimStrings{j.audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, claims.ExpiresAt.Time, nil
}

// Verify checks signature, expiry and the optional issuer/audience and
// returns the subject. Errors are ErrTokenExpired, ErrTokenMalformed,
// ErrTokenSignature or plain ErrInvalidToken.
func (j *JwtUtilImpl) Verify(raw string, secret []byte) (uuid.UUID, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(j.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if j.issuer != "" {
		opts = append(opts, jwt.WithIssuer(j.issuer))
	}
	if j.audience != "" {
		opts = append(opts, jwt.WithAudience(j.audience))
	}

	claims := &jwt2.Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	}, opts...)
	if err != nil {
		return uuid.Nil, classify(err)
	}
	if !token.Valid {
		return uuid.Nil, customErrors.ErrInvalidToken
	}

	uid, err := uuid.Parse(claims.Subject)
	if err != nil || uid == uuid.Nil {
		return uuid.Nil, customErrors.ErrTokenMalformed
	}
	return uid, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return customErrors.ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return customErrors.ErrTokenSignature
	case errors.Is(err, jwt.ErrTokenMalformed),
		errors.Is(err, jwt.ErrTokenUnverifiable),
		errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return customErrors.ErrTokenMalformed
	default:
		return customErrors.ErrInvalidToken
	}
}
