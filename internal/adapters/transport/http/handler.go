package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Miraines/MoonyAndStarry/session-service/internal/adapters/transport/http/cookie"
	"github.com/Miraines/MoonyAndStarry/session-service/internal/adapters/transport/http/dto"
	"github.com/Miraines/MoonyAndStarry/session-service/internal/adapters/transport/http/response"
	appsvc "github.com/Miraines/MoonyAndStarry/session-service/internal/app/auth/service"
	authErrors "github.com/Miraines/MoonyAndStarry/session-service/internal/domain/auth/errors"
	"github.com/Miraines/MoonyAndStarry/session-service/internal/domain/auth/principal"
	"github.com/Miraines/MoonyAndStarry/session-service/internal/infra/metrics"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

const statusClientClosedRequest = 499

type Handler struct {
	svc     appsvc.Service
	cookies *cookie.Transport
	metrics *metrics.Metrics
	health  map[string]HealthCheck
	log     *zap.Logger
}

func NewHandler(
	svc appsvc.Service,
	cookies *cookie.Transport,
	m *metrics.Metrics,
	health map[string]HealthCheck,
	log *zap.Logger,
) *Handler {
	return &Handler{svc: svc, cookies: cookies, metrics: m, health: health, log: log}
}

func (h *Handler) Login(c *gin.Context) {
	var body dto.LoginDTO
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "Invalid JSON format")
		return
	}

	sess, err := h.svc.Login(c.Request.Context(), body)
	if err != nil {
		h.event("login", err)
		h.handleError(c, err, "Login failed.")
		return
	}
	h.event("login", nil)

	h.cookies.SetPair(c, sess.Tokens)
	response.Success(c, dto.NewLoginResponse(sess.User), "Login successful")
}

func (h *Handler) Register(c *gin.Context) {
	var body dto.RegisterDTO
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "Invalid JSON format")
		return
	}

	user, err := h.svc.Register(c.Request.Context(), body)
	if err != nil {
		h.event("register", err)
		h.handleError(c, err, "Registration failed.")
		return
	}
	h.event("register", nil)

	response.Success(c, dto.NewRegisterResponse(user), "User successfully registered.")
}

// Logout sits behind the access gate.
func (h *Handler) Logout(c *gin.Context) {
	userID, ok := principal.UserIDFrom(c.Request.Context())
	if !ok {
		response.Unauthenticated(c, "Unauthenticated")
		return
	}

	if err := h.svc.Logout(c.Request.Context(), userID); err != nil {
		h.event("logout", err)
		h.handleError(c, err, "Logout failed.")
		return
	}
	h.event("logout", nil)

	h.cookies.Clear(c)
	response.Success(c, nil, "Logged out successfully.")
}

// Refresh sits behind the rotation gate.
func (h *Handler) Refresh(c *gin.Context) {
	ctx := c.Request.Context()
	userID, okID := principal.UserIDFrom(ctx)
	presented, okTok := principal.RefreshTokenFrom(ctx)
	if !okID || !okTok {
		response.Unauthenticated(c, "Unauthenticated")
		return
	}

	pair, err := h.svc.Refresh(ctx, userID, presented)
	if err != nil {
		h.event("refresh", err)
		h.handleError(c, err, "Failed to refresh token")
		return
	}
	h.event("refresh", nil)

	h.cookies.SetAccess(c, pair.AccessToken, pair.AccessTTL)
	response.Success(c, nil, "Access token refreshed successfully")
}

// Me returns the profile of the caller. It sits behind the access gate.
func (h *Handler) Me(c *gin.Context) {
	userID, ok := principal.UserIDFrom(c.Request.Context())
	if !ok {
		response.Unauthenticated(c, "Unauthenticated")
		return
	}

	user, err := h.svc.Me(c.Request.Context(), userID)
	if err != nil {
		h.handleError(c, err, "Internal server error")
		return
	}
	response.Success(c, gin.H{"user": dto.NewProfileResponse(user)}, "success")
}

func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := make(map[string]string, len(h.health))
	healthy := true
	for name, check := range h.health {
		if err := check(ctx); err != nil {
			h.log.Warn("health check failed", zap.String("dependency", name), zap.Error(err))
			checks[name] = "down"
			healthy = false
			continue
		}
		checks[name] = "up"
	}

	data := gin.H{"status": "ok", "time": time.Now().Unix(), "checks": checks}
	if !healthy {
		data["status"] = "degraded"
		c.JSON(http.StatusServiceUnavailable, response.Envelope{OK: false, Message: "unhealthy", Data: data})
		return
	}
	response.Success(c, data, "healthy")
}

func (h *Handler) handleError(c *gin.Context, err error, fallback string) {
	if v, ok := authErrors.AsValidation(err); ok {
		response.ValidationErrors(c, v.Fields)
		return
	}

	switch {
	case authErrors.IsInvalidArgument(err):
		response.BadRequest(c, "Invalid request data")
	case authErrors.IsInvalidCredentials(err):
		response.Unauthenticated(c, "Invalid credentials")
	case authErrors.IsInvalidToken(err), authErrors.IsRevoked(err):
		response.Unauthenticated(c, "Unauthenticated")
	case authErrors.IsTooManyAttempts(err):
		response.TooManyRequests(c, "Too many failed login attempts, try again later")
	case errors.Is(err, authErrors.ErrEmailTaken):
		response.Conflict(c, "Email already in use.")
	case authErrors.IsAlreadyExists(err):
		response.Conflict(c, "Username or email already in use.")
	case authErrors.IsNotFound(err):
		response.NotFound(c, "User not found")
	case authErrors.IsStorageUnavailable(err):
		_ = c.Error(err)
		response.Unavailable(c, "Service temporarily unavailable")
	case errors.Is(err, context.Canceled):
		c.AbortWithStatus(statusClientClosedRequest)
	default:
		_ = c.Error(err)
		response.Error(c, fallback)
	}
}

func (h *Handler) event(name string, err error) {
	switch {
	case err == nil:
		h.metrics.AuthEvent(name, metrics.OutcomeSuccess)
	case authErrors.IsInternal(err), authErrors.IsStorageUnavailable(err):
		h.metrics.AuthEvent(name, metrics.OutcomeError)
	default:
		h.metrics.AuthEvent(name, metrics.OutcomeRejected)
	}
}
