package components

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"roadAccident/internal/api"
	"roadAccident/internal/api/handlers/http/system"
	"roadAccident/internal/classifier"
	"roadAccident/internal/config"
	"roadAccident/internal/domain"
	"roadAccident/internal/media"
	"roadAccident/internal/metrics"
	"roadAccident/internal/redis"
	"roadAccident/internal/render"
	"roadAccident/internal/service"
	"roadAccident/internal/sms"
	"roadAccident/internal/storage/postgres"
	"roadAccident/internal/workers"
	"roadAccident/pkg/logger"
)

type Components struct {
	logger     *slog.Logger
	HttpServer *api.Server
	SMSSender  *service.SMSSender
	Sweeper    *workers.SMSSweeper
	Auth       *service.AuthService
	Postgres   *postgres.Postgres
	Redis      *redis.Redis
}

func InitComponents(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Components, error) {
	logger.Info("Initializing Postgres")

	storage, err := postgres.NewPostgres(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to init postgres",
			slog.Any("error", err),
		)
		return nil, fmt.Errorf("failed to init postgres: %w", err)
	}

	logger.Info("Initializing Redis")
	redisClient, err := redis.NewRedis(ctx, cfg, logger)
	if err != nil {
		storage.Close()
		return nil, fmt.Errorf("failed to init redis: %w", err)
	}

	store, err := media.New(ctx, cfg.Media)
	if err != nil {
		storage.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("failed to init media store: %w", err)
	}
	logger.Info("Media store ready", slog.String("backend", cfg.Media.Backend))

	renderer, err := render.NewRenderer()
	if err != nil {
		storage.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("failed to init sms templates: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	smsQueue := redis.NewSMSQueue(redisClient.Client, cfg.SMS.QueueKey)
	statsCache := redis.NewStatsCache(redisClient)
	gateway := sms.New(cfg.SMS, logger)
	classifierClient := classifier.NewClient(logger, cfg.Classifier)

	reportSvc := service.NewReportService(storage.Report, store, classifierClient, statsCache, logger, m, cfg.SMS.CountryCode)
	reviewSvc := service.NewReviewService(
		storage.Report, store, smsQueue, statsCache,
		service.NewETAEstimator(cfg.Hospital.Latitude, cfg.Hospital.Longitude),
		service.DispatchDefaults{Hospital: cfg.Hospital.Name, Severity: domain.SeverityModerate},
		logger, m, cfg.SMS.CountryCode,
	)
	statsSvc := service.NewStatsService(storage.Report, statsCache, cfg.Stats.CacheTTL, logger)
	notifier := service.NewNotifier(gateway, renderer, logger, m, cfg.SMS.SendTimeout, cfg.SMS.CountryCode)
	authSvc := service.NewAuthService(storage.User, service.AuthConfig{
		Secret:        []byte(cfg.Auth.JWTSecret),
		TTL:           cfg.Auth.TokenTTL,
		AdminEmail:    cfg.Auth.AdminEmail,
		AdminPassword: cfg.Auth.AdminPassword,
	}, logger)

	srv := service.NewService(reportSvc, reviewSvc, statsSvc, notifier, authSvc)

	httpServer := api.NewServer(ctx, cfg, logger, srv, api.Deps{
		Metrics:  m,
		Gatherer: reg,
		Health: map[string]system.Pinger{
			"postgres": storage,
			"redis":    redisClient,
		},
	})
	logger.Info("Initialized server")

	sender := service.NewSMSSender(logger, smsQueue, storage.Report, notifier, m, cfg.SMS.MaxAttempts)

	var sweeper *workers.SMSSweeper
	if !cfg.Sweeper.Disabled {
		sweeper = workers.NewSMSSweeper(logger, storage.Report, smsQueue, cfg.Sweeper.Spec, cfg.Sweeper.StaleAge, cfg.Sweeper.Batch)
	}

	return &Components{
		logger:     logger,
		HttpServer: httpServer,
		SMSSender:  sender,
		Sweeper:    sweeper,
		Auth:       authSvc,
		Postgres:   storage,
		Redis:      redisClient,
	}, nil
}

func SetupLogger(env string) *slog.Logger {
	switch env {
	case "local":
		return logger.SetupPrettySlog()
	case "dev":
		return slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelDebug,
			}),
		)
	case "prod":
		return slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelInfo,
			}),
		)
	default:
		return slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelInfo,
			}),
		)
	}
}

func (c *Components) ShutdownAll() {
	start := time.Now()
	c.logger.Info("Components shutdown started")

	c.Postgres.Close()
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			c.logger.Error("Redis close failed", slog.String("err", err.Error()))
		}
	}

	c.logger.Info("All components stopped",
		slog.Duration("latency", time.Since(start)))
}
