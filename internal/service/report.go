package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"roadAccident/internal/domain"
	"roadAccident/internal/intake"
	"roadAccident/internal/metrics"
	"roadAccident/pkg/e"

	"github.com/google/uuid"
)

const maxTextLen = 1000

// ReportService is the intake side of the report lifecycle.
type ReportService struct {
	repo        ReportRepository
	media       MediaStore
	classifier  Classifier
	cache       StatsCache
	logger      *slog.Logger
	metrics     *metrics.Metrics
	countryCode string
}

func NewReportService(
	repo ReportRepository,
	media MediaStore,
	classifier Classifier,
	cache StatsCache,
	logger *slog.Logger,
	m *metrics.Metrics,
	countryCode string,
) *ReportService {
	return &ReportService{
		repo:        repo,
		media:       media,
		classifier:  classifier,
		cache:       cache,
		logger:      logger,
		metrics:     m,
		countryCode: countryCode,
	}
}

// Create validates a submission, stores its media, classifies it and persists
// a pending report. Nothing is persisted when the classifier is unavailable.
func (s *ReportService) Create(ctx context.Context, req domain.CreateReportRequest) (*domain.Report, error) {
	const op = "service.Report.Create"

	if req.Media == nil || req.Media.Body == nil || req.Media.Size <= 0 {
		return nil, e.ErrMissingMedia
	}
	if req.Latitude == nil || req.Longitude == nil {
		return nil, e.ErrMissingLocation
	}
	if err := intake.ValidateLocation(*req.Latitude, *req.Longitude); err != nil {
		return nil, err
	}

	var phone string
	if raw := strings.TrimSpace(req.PhoneNumber); raw != "" {
		digits, err := intake.ValidatePhone(raw)
		if err != nil {
			return nil, err
		}
		phone = intake.NormalizePhone(digits, s.countryCode)
	}

	if err := intake.ValidateMedia(intake.MediaMeta{Size: req.Media.Size, ContentType: req.Media.ContentType}); err != nil {
		return nil, err
	}
	kind, _ := intake.MediaKindOf(req.Media.ContentType)

	description := strings.TrimSpace(req.Description)
	address := strings.TrimSpace(req.Address)
	if len(description) > maxTextLen || len(address) > maxTextLen {
		return nil, fmt.Errorf("description and address are limited to %d bytes: %w", maxTextLen, e.ErrInvalidInput)
	}

	ref, err := s.media.Save(ctx, req.Media)
	if err != nil {
		s.logger.Error("media save failed", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: media store: %v: %w", op, err, e.ErrDependency)
	}
	mediaRef := domain.MediaRef{
		Ref:         ref,
		ContentType: req.Media.ContentType,
		SizeBytes:   req.Media.Size,
		Kind:        kind,
	}

	start := time.Now()
	prediction, err := s.classifier.Classify(ctx, mediaRef)
	s.metrics.Classified(time.Since(start), err == nil)
	if err != nil {
		s.logger.Warn("classification failed, discarding media",
			slog.String("op", op),
			slog.String("ref", ref),
			slog.Any("error", err))
		s.removeMedia(ref)
		if !errors.Is(err, e.ErrClassificationUnavailable) {
			err = fmt.Errorf("%s: %v: %w", op, err, e.ErrClassificationUnavailable)
		}
		return nil, err
	}

	report := &domain.Report{
		ID:          uuid.New(),
		UserID:      req.UserID,
		Status:      domain.ReportPending,
		Media:       mediaRef,
		Location:    domain.Location{Latitude: *req.Latitude, Longitude: *req.Longitude, Address: address},
		Description: description,
		PhoneNumber: phone,
		Prediction:  prediction,
		SMSStatus:   domain.SMSNotProcessed,
	}
	if err := s.repo.Create(ctx, report); err != nil {
		s.removeMedia(ref)
		return nil, err
	}

	s.invalidateStats(ctx)
	s.metrics.ReportCreated(prediction.IsAccident)
	s.logger.Info("report created",
		slog.String("id", report.ID.String()),
		slog.Bool("is_accident", prediction.IsAccident),
		slog.Float64("confidence", prediction.Confidence),
		slog.Bool("has_phone", report.HasPhone()))

	return report, nil
}

// GetFor returns a report the caller may see: anonymous reports to anyone
// holding the id, owned reports to their owner and to admins.
func (s *ReportService) GetFor(ctx context.Context, id uuid.UUID, p *domain.Principal) (*domain.Report, error) {
	r, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.UserID == nil || p.IsAdmin() {
		return r, nil
	}
	if p == nil || p.UserID != *r.UserID {
		return nil, e.ErrForbidden
	}
	return r, nil
}

func (s *ReportService) ListMine(ctx context.Context, userID uuid.UUID, skip, limit int) (*domain.ListReportsResponse, error) {
	skip, limit = normalizePaging(skip, limit)

	reports, err := s.repo.List(ctx, domain.ListReportsRequest{Skip: skip, Limit: limit, UserID: &userID})
	if err != nil {
		return nil, err
	}
	return &domain.ListReportsResponse{Reports: reports, Skip: skip, Limit: limit}, nil
}

// removeMedia runs on a fresh context so cleanup survives a canceled request.
func (s *ReportService) removeMedia(ref string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.media.Delete(ctx, ref); err != nil {
		s.logger.Error("media cleanup failed", slog.String("ref", ref), slog.Any("error", err))
	}
}

func (s *ReportService) invalidateStats(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn("stats cache invalidate failed", slog.Any("error", err))
	}
}
