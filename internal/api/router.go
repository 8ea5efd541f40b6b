package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"roadAccident/internal/api/handlers/http/admin"
	"roadAccident/internal/api/handlers/http/public"
	"roadAccident/internal/api/handlers/http/system"
	"roadAccident/internal/config"
	"roadAccident/internal/metrics"
	"roadAccident/internal/middleware"
	"roadAccident/internal/service"
)

type Server struct {
	logger *slog.Logger
	router *chi.Mux
	cfg    config.Config
}

// Deps is what the router needs besides the services.
type Deps struct {
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Health   map[string]system.Pinger
}

func NewServer(ctx context.Context, cfg *config.Config, logger *slog.Logger, svc *service.Service, deps Deps) *Server {
	adminHandler := admin.NewHandler(logger, svc.Reviews, svc.Stats, svc.Notifier)
	publicHandler := public.NewHandler(logger, svc.Reports, svc.Auth)
	systemHandler := system.NewHandler(logger, deps.Health)

	r := InitRouter(ctx, cfg, svc.Auth, adminHandler, publicHandler, systemHandler, deps, logger)

	return &Server{
		logger: logger,
		router: r,
		cfg:    *cfg,
	}
}

func InitRouter(
	ctx context.Context,
	cfg *config.Config,
	tokens middleware.TokenParser,
	adminHandler *admin.Handler,
	publicHandler *public.Handler,
	systemHandler *system.Handler,
	deps Deps,
	logger *slog.Logger,
) *chi.Mux {
	r := chi.NewMux()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Logger)
	r.Use(middleware.Metrics(deps.Metrics))
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler)

	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	authn := middleware.Authenticate(tokens, logger)
	submitLimit := middleware.Limit(ctx, cfg.Http.RateLimitRPS, cfg.Http.RateLimitBurst, 10*time.Minute, logger)
	authLimit := middleware.Limit(ctx, cfg.Http.RateLimitRPS/2, cfg.Http.RateLimitBurst/2+1, 10*time.Minute, logger)

	r.Route("/api/v1", func(api chi.Router) {
		api.Route("/auth", func(ar chi.Router) {
			ar.Use(authLimit)
			ar.Post("/register", publicHandler.AuthRegister)
			ar.Post("/login", publicHandler.AuthLogin)
			ar.Post("/admin/login", publicHandler.AuthAdminLogin)
		})

		api.Route("/reports", func(rr chi.Router) {
			rr.Use(authn)
			rr.With(submitLimit).Post("/", publicHandler.ReportCreate)
			rr.With(middleware.RequireUser).Get("/mine", publicHandler.ReportListMine)
			rr.Get("/{id}", publicHandler.ReportGet)
		})

		api.Route("/admin", func(ar chi.Router) {
			ar.Use(authn)
			ar.Use(middleware.RequireAdmin)

			ar.Get("/stats", adminHandler.AdminStats)

			ar.Route("/reports", func(ir chi.Router) {
				ir.Get("/", adminHandler.AdminReportList)
				ir.Get("/recent", adminHandler.AdminReportRecent)

				ir.Route("/{id}", func(rr chi.Router) {
					rr.Get("/", adminHandler.AdminReportGet)
					rr.Put("/approve", adminHandler.AdminReportApprove)
					rr.Put("/reject", adminHandler.AdminReportReject)
					rr.Delete("/", adminHandler.AdminReportDelete)
				})
			})

			ar.Route("/sms", func(sr chi.Router) {
				sr.Post("/test", adminHandler.AdminSMSTest)
				sr.Get("/status", adminHandler.AdminSMSStatus)
			})

			// local media is only served to reviewers
			if cfg.Media.Backend == "local" {
				const prefix = "/api/v1/admin/media/"
				ar.Handle("/media/*", http.StripPrefix(prefix, http.FileServer(http.Dir(cfg.Media.UploadDir))))
			}
		})

		api.Get("/health", systemHandler.SystemHealth)
		api.Get("/ready", systemHandler.SystemReady)
	})

	return r
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Run(ctx context.Context) error {
	port := s.cfg.Http.Port
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}

	srv := &http.Server{
		Addr:         port,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Http.ReadTimeout,
		WriteTimeout: s.cfg.Http.WriteTimeout,
		IdleTimeout:  30 * time.Second,
	}

	errChan := make(chan error, 1)

	go func() {
		s.logger.Info("🚀 Starting HTTP server",
			slog.String("addr", srv.Addr),
			slog.Duration("read_timeout", s.cfg.Http.ReadTimeout),
			slog.Duration("write_timeout", s.cfg.Http.WriteTimeout),
		)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("ListenAndServe error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("🛑 Shutting down HTTP server", slog.String("reason", ctx.Err().Error()))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Http.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Server shutdown failed", slog.Any("error", err))
			return err
		}
		return nil

	case err := <-errChan:
		return err
	}
}
