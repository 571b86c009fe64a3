package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	myPostgresRepo "github.com/Miraines/MoonyAndStarry/session-service/internal/adapters/db/postgres"
	myRedisRepo "github.com/Miraines/MoonyAndStarry/session-service/internal/adapters/db/redis"
	httptransport "github.com/Miraines/MoonyAndStarry/session-service/internal/adapters/transport/http"
	"github.com/Miraines/MoonyAndStarry/session-service/internal/adapters/transport/http/cookie"
	"github.com/Miraines/MoonyAndStarry/session-service/internal/app/auth/hasher"
	"github.com/Miraines/MoonyAndStarry/session-service/internal/app/auth/jwt"
	appsvc "github.com/Miraines/MoonyAndStarry/session-service/internal/app/auth/service"
	"github.com/Miraines/MoonyAndStarry/session-service/internal/app/auth/validation"
	"github.com/Miraines/MoonyAndStarry/session-service/internal/infra/config"
	lg "github.com/Miraines/MoonyAndStarry/session-service/internal/infra/log"
	"github.com/Miraines/MoonyAndStarry/session-service/internal/infra/metrics"
	"github.com/Miraines/MoonyAndStarry/session-service/internal/infra/migrate"
	"github.com/Miraines/MoonyAndStarry/session-service/internal/infra/server"
	"golang.org/x/sync/errgroup"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := lg.Must(os.Getenv("LOG_LEVEL"), false)
		boot.Fatal("failed to load config", zap.Error(err))
	}

	zapLog := lg.Must(cfg.LogLevel, cfg.IsProduction())
	defer func() { _ = zapLog.Sync() }()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		zapLog.Fatal("failed to connect to database", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		zapLog.Fatal("db handle", zap.Error(err))
	}
	defer sqlDB.Close()
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := migrate.Up(sqlDB, zapLog.Named("migrate")); err != nil {
		zapLog.Fatal("run migrations", zap.Error(err))
	}

	redisCli := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddress,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisCli.Close()

	jwtUtil, err := jwt.NewJWTUtil(cfg)
	if err != nil {
		zapLog.Fatal("failed to init JWT util", zap.Error(err))
	}

	userRepo := myPostgresRepo.NewPostgresUserRepo(db)
	attemptRepo := myRedisRepo.NewRedisAttemptRepo(redisCli)
	svc, err := appsvc.New(
		userRepo,
		attemptRepo,
		jwtUtil,
		hasher.NewArgon2idHasher(cfg.PasswordPepper),
		cfg,
		validation.New(),
		zapLog,
	)
	if err != nil {
		zapLog.Fatal("failed to init auth service", zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	router := httptransport.NewRouter(httptransport.Deps{
		Config:   cfg,
		Service:  svc,
		Tokens:   jwtUtil,
		Cookies:  cookie.NewTransport(cfg.CookieDomain, cfg.IsProduction()),
		Metrics:  metrics.New(reg),
		Gatherer: reg,
		Health: map[string]httptransport.HealthCheck{
			"postgres": sqlDB.PingContext,
			"redis": func(ctx context.Context) error {
				return redisCli.Ping(ctx).Err()
			},
		},
		Log: zapLog,
	})

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(rootCtx)

	g.Go(func() error {
		return server.StartHTTPServer(ctx, cfg, router, zapLog)
	})

	<-ctx.Done()
	zapLog.Info("shutting down")

	if err := g.Wait(); err != nil {
		zapLog.Error("server terminated", zap.Error(err))
	}
}
