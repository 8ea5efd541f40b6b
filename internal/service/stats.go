package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"roadAccident/internal/domain"
	"roadAccident/pkg/e"
	"roadAccident/pkg/validator"
)

type StatsService struct {
	repo   ReportRepository
	cache  StatsCache
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
}

func NewStatsService(repo ReportRepository, cache StatsCache, ttl time.Duration, logger *slog.Logger) *StatsService {
	return &StatsService{
		repo:   repo,
		cache:  cache,
		ttl:    ttl,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Stats serves the dashboard overview. The cache is an optimization only: a
// cache error falls through to the database. A snapshot is cached only if no
// write invalidated the cache while it was being computed.
func (s *StatsService) Stats(ctx context.Context) (*domain.ReportStats, error) {
	var (
		gen       int64
		cacheable bool
	)
	if s.ttl > 0 {
		cached, g, err := s.cache.Get(ctx)
		switch {
		case err != nil:
			s.logger.Warn("stats cache get failed", slog.Any("error", err))
		case cached != nil:
			return cached, nil
		default:
			gen, cacheable = g, true
		}
	}

	st, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, err
	}
	st.AccuracyRate = accuracyRate(st.Approved, st.Rejected)

	if cacheable {
		stored, err := s.cache.Set(ctx, st, s.ttl, gen)
		switch {
		case err != nil:
			s.logger.Warn("stats cache set failed", slog.Any("error", err))
		case !stored:
			s.logger.Debug("stats changed while computing, snapshot not cached")
		}
	}
	return st, nil
}

// ListWindowed returns reports created within the last hours, newest first.
func (s *StatsService) ListWindowed(ctx context.Context, req domain.WindowRequest) ([]*domain.Report, error) {
	if err := validator.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("hours must be between 1 and 720: %w", e.ErrInvalidInput)
	}
	since := s.now().Add(-time.Duration(req.Hours) * time.Hour)
	return s.repo.ListSince(ctx, since)
}

// accuracyRate is the share of reviewed reports that were approved.
func accuracyRate(approved, rejected int64) float64 {
	reviewed := approved + rejected
	if reviewed == 0 {
		return 0
	}
	return float64(approved) / float64(reviewed)
}
