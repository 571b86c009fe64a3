package middleware

import (
	"github.com/Miraines/MoonyAndStarry/session-service/internal/adapters/transport/http/cookie"
	"github.com/Miraines/MoonyAndStarry/session-service/internal/adapters/transport/http/response"
	"github.com/Miraines/MoonyAndStarry/session-service/internal/domain/auth/jwt"
	"github.com/Miraines/MoonyAndStarry/session-service/internal/domain/auth/principal"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// MsgUnauthenticated is the only body a gate rejection carries, whatever
// check failed.
const MsgUnauthenticated = "Unauthenticated"

// AccessGate admits requests carrying a valid access cookie. It never
// touches storage.
func AccessGate(tokens jwt.JWTUtil, transport *cookie.Transport, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := transport.Access(c)
		if err != nil {
			reject(c, log, "access cookie missing", err)
			return
		}

		userID, err := tokens.ValidateAccessToken(raw)
		if err != nil {
			reject(c, log, "access token rejected", err)
			return
		}

		c.Request = c.Request.WithContext(principal.WithUserID(c.Request.Context(), userID))
		c.Next()
	}
}

// RotationGate verifies the refresh cookie's signature and expiry and passes
// the subject and the presented token on. Comparing it with the stored value
// is left to the renewal handler.
func RotationGate(tokens jwt.JWTUtil, transport *cookie.Transport, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := transport.Refresh(c)
		if err != nil {
			reject(c, log, "refresh cookie missing", err)
			return
		}

		userID, err := tokens.ValidateRefreshToken(raw)
		if err != nil {
			reject(c, log, "refresh token rejected", err)
			return
		}

		ctx := principal.WithUserID(c.Request.Context(), userID)
		ctx = principal.WithRefreshToken(ctx, raw)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func reject(c *gin.Context, log *zap.Logger, msg string, err error) {
	log.Debug(msg, zap.String("path", c.FullPath()), zap.Error(err))
	response.Unauthenticated(c, MsgUnauthenticated)
}
