package jwt

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is shared by access and refresh tokens; the two kinds are told
// apart only by the secret that signed them.
type Claims struct {
	jwt.RegisteredClaims
}

// JWTUtil mints and checks the two credential kinds. Access and refresh
// tokens are signed with different secrets.
type JWTUtil interface {
	GenerateAccessToken(userID uuid.UUID) (token string, exp time.Time, err error)
	GenerateRefreshToken(userID uuid.UUID) (token string, exp time.Time, err error)
	ValidateAccessToken(token string) (userID uuid.UUID, err error)
	ValidateRefreshToken(token string) (userID uuid.UUID, err error)
	AccessTTL() time.Duration
	RefreshTTL() time.Duration
}
