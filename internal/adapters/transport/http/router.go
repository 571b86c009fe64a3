package http

import (
	"time"

	"github.com/Miraines/MoonyAndStarry/session-service/internal/adapters/transport/http/cookie"
	"github.com/Miraines/MoonyAndStarry/session-service/internal/adapters/transport/http/middleware"
	appsvc "github.com/Miraines/MoonyAndStarry/session-service/internal/app/auth/service"
	"github.com/Miraines/MoonyAndStarry/session-service/internal/domain/auth/jwt"
	"github.com/Miraines/MoonyAndStarry/session-service/internal/infra/config"
	"github.com/Miraines/MoonyAndStarry/session-service/internal/infra/metrics"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	rateLimitCacheSize = 10_000
	rateLimitEntryTTL  = time.Hour
)

type Deps struct {
	Config   *config.Config
	Service  appsvc.Service
	Tokens   jwt.JWTUtil
	Cookies  *cookie.Transport
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Health   map[string]HealthCheck
	Log      *zap.Logger
}

func NewRouter(d Deps) *gin.Engine {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	cfg := d.Config

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(log.Named("http")))
	if d.Metrics != nil {
		router.Use(middleware.Metrics(d.Metrics))
	}
	if cfg.RateLimitRPS > 0 {
		router.Use(middleware.RateLimitPerIP(cfg.RateLimitRPS, cfg.RateLimitBurst, rateLimitCacheSize, rateLimitEntryTTL))
	}
	if len(cfg.AllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Requested-With"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: cfg.AllowCredentials,
			MaxAge:           12 * time.Hour,
		}))
	}

	h := NewHandler(d.Service, d.Cookies, d.Metrics, d.Health, log.Named("handler"))
	accessGate := middleware.AccessGate(d.Tokens, d.Cookies, log.Named("gate"))
	rotationGate := middleware.RotationGate(d.Tokens, d.Cookies, log.Named("gate"))

	auth := router.Group("/api/auth")
	auth.POST("/login", h.Login)
	auth.POST("/register", h.Register)
	auth.POST("/logout", accessGate, h.Logout)
	auth.POST("/refresh-token", rotationGate, h.Refresh)

	user := router.Group("/api/user")
	user.GET("/info", accessGate, h.Me)

	router.GET("/health", h.Health)
	if d.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	return router
}
