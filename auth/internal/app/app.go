package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"nodove/auth/internal/app/cron"
	grpcapp "nodove/auth/internal/app/gprc"
	httpapp "nodove/auth/internal/app/http"
	"nodove/auth/internal/config"
	http_auth "nodove/auth/internal/http"
	"nodove/auth/internal/lib/kafka"
	"nodove/auth/internal/lib/logger/sl"
	"nodove/auth/internal/lib/metrics"
	"nodove/auth/internal/lib/password"
	"nodove/auth/internal/lib/ratelimiter"
	"nodove/auth/internal/lib/token"
	"nodove/auth/internal/repository/redis"
	"nodove/auth/internal/services/auth"
	"nodove/auth/internal/services/moderation"
	"nodove/auth/internal/storage/sqlite"
	"nodove/auth/pkg/utils"
)

type loginHistory interface {
	auth.LoginRecorder
	Close() error
}

type App struct {
	log           *slog.Logger
	GRPCSrv       *grpcapp.App
	HTTPSrv       *httpapp.App
	MetricsSrv    *httpapp.App
	BlockSweeper  *cron.BlockSweeper
	redisRepo     *redis.Repository
	storage       *sqlite.Storage
	history       loginHistory
	shutdownGrace time.Duration
}

func New(log *slog.Logger, cfg *config.Config) *App {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Redis.Timeout)
	defer cancel()

	redisRepo, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		panic(err)
	}

	log.Info("opening SQLite storage", slog.String("path", cfg.StoragePath))
	storage, err := sqlite.New(cfg.StoragePath)
	if err != nil {
		panic(err)
	}
	changed, err := storage.Migrate()
	if err != nil {
		panic(err)
	}
	if changed {
		log.Info("storage migrations applied")
	}

	codec, err := token.New(token.Options{
		Format:        token.Format(cfg.Token.Format),
		AccessSecret:  cfg.Token.AccessSecret,
		RefreshSecret: cfg.Token.RefreshSecret,
		AccessTTL:     cfg.Token.AccessTTL,
		RefreshTTL:    cfg.Token.RefreshTTL,
		ClockSkew:     cfg.Token.ClockSkew,
	})
	if err != nil {
		panic(err)
	}

	var history loginHistory = kafka.Nop{}
	if cfg.Kafka.Enabled {
		producer, err := kafka.NewKafkaProducer(log, cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			panic(err)
		}
		history = producer
	}

	limiter := ratelimiter.NewRateLimiter(
		redisRepo.Client,
		cfg.Limiter.MaxAttempts,
		cfg.Limiter.Window,
		cfg.Limiter.BlockTime,
	)

	authService := auth.New(log, codec, storage, password.Verifier{}, redisRepo, redisRepo, history,
		auth.WithLimiter(limiter),
	)
	moderationService := moderation.New(log, storage, redisRepo)

	m := metrics.New()

	proxies, err := utils.ParseTrustedProxies(cfg.HTTP.TrustedProxies)
	if err != nil {
		panic(err)
	}

	handler := http_auth.New(log, authService, moderationService, storage, m, http_auth.CookieConfig{
		Secure: cfg.Cookie.Secure,
		Domain: cfg.Cookie.Domain,
		MaxAge: codec.RefreshTTL(),
	}, http_auth.WithTrustedProxies(proxies))

	httpSrv := httpapp.New(log, "api", cfg.HTTP.Port, http_auth.NewRouter(handler), httpapp.Timeouts{
		Read:  cfg.HTTP.ReadTimeout,
		Write: cfg.HTTP.WriteTimeout,
		Idle:  cfg.HTTP.IdleTimeout,
	})

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", m.Handler())
	metricsSrv := httpapp.New(log, "metrics", cfg.Metrics.Port, metricsMux, httpapp.Timeouts{
		Read:  cfg.HTTP.ReadTimeout,
		Write: cfg.HTTP.WriteTimeout,
		Idle:  cfg.HTTP.IdleTimeout,
	})

	grpcApp := grpcapp.New(log, cfg.GRPC.Port, authService, m)

	sweeper := cron.NewBlockSweeper(
		log,
		redisRepo,
		cfg.Sweeper.Interval,
		cfg.Sweeper.Rate,
		cfg.Sweeper.Batch,
	)

	return &App{
		log:           log,
		GRPCSrv:       grpcApp,
		HTTPSrv:       httpSrv,
		MetricsSrv:    metricsSrv,
		BlockSweeper:  sweeper,
		redisRepo:     redisRepo,
		storage:       storage,
		history:       history,
		shutdownGrace: cfg.HTTP.WriteTimeout,
	}
}

// Stop shuts the servers down and then releases storage, cache and the producer.
func (a *App) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownGrace)
	defer cancel()

	a.BlockSweeper.Stop()
	a.HTTPSrv.Stop(ctx)
	a.MetricsSrv.Stop(ctx)
	a.GRPCSrv.Stop()

	if err := a.history.Close(); err != nil {
		a.log.Error("failed to close login history producer", sl.Err(err))
	}
	if err := a.redisRepo.Close(); err != nil {
		a.log.Error("failed to close redis", sl.Err(err))
	}
	if err := a.storage.Close(); err != nil {
		a.log.Error("failed to close storage", sl.Err(err))
	}
}
