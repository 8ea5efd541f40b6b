package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"roadAccident/internal/domain"
	"roadAccident/internal/intake"
	"roadAccident/internal/metrics"
	"roadAccident/pkg/e"
	"roadAccident/pkg/validator"

	"github.com/google/uuid"
)

// DispatchDefaults fill the approval fields an admin leaves empty.
type DispatchDefaults struct {
	Ambulance string
	Hospital  string
	Severity  domain.Severity
}

// ReviewService is the admin side of the report lifecycle: review
// transitions, listing and deletion.
type ReviewService struct {
	repo     ReportRepository
	media    MediaStore
	queue    SMSQueue
	cache    StatsCache
	eta      ETAEstimator
	defaults DispatchDefaults
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time

	countryCode string
}

func NewReviewService(
	repo ReportRepository,
	media MediaStore,
	queue SMSQueue,
	cache StatsCache,
	eta ETAEstimator,
	defaults DispatchDefaults,
	logger *slog.Logger,
	m *metrics.Metrics,
	countryCode string,
) *ReviewService {
	if defaults.Ambulance == "" {
		defaults.Ambulance = "Dispatched"
	}
	if defaults.Hospital == "" {
		defaults.Hospital = "Nearest Hospital"
	}
	if defaults.Severity == "" {
		defaults.Severity = domain.SeverityModerate
	}
	return &ReviewService{
		repo:     repo,
		media:    media,
		queue:    queue,
		cache:    cache,
		eta:      eta,
		defaults: defaults,
		logger:   logger,
		metrics:  m,
		now:      func() time.Time { return time.Now().UTC() },

		countryCode: countryCode,
	}
}

func (s *ReviewService) List(ctx context.Context, req domain.ListReportsRequest) (*domain.ListReportsResponse, error) {
	req.Skip, req.Limit = normalizePaging(req.Skip, req.Limit)
	if req.Status != nil && !req.Status.Valid() {
		return nil, fmt.Errorf("unknown status %q: %w", *req.Status, e.ErrInvalidInput)
	}

	reports, err := s.repo.List(ctx, req)
	if err != nil {
		return nil, err
	}
	return &domain.ListReportsResponse{Reports: reports, Skip: req.Skip, Limit: req.Limit}, nil
}

func (s *ReviewService) Get(ctx context.Context, id uuid.UUID) (*domain.Report, error) {
	return s.repo.Get(ctx, id)
}

// Approve commits pending -> approved with dispatch details. When the admin
// gives no ETA it is estimated from the report location.
func (s *ReviewService) Approve(ctx context.Context, id uuid.UUID, req domain.ApproveReportRequest, reviewer string) (*domain.Report, error) {
	const op = "service.Review.Approve"

	if err := validator.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("%s: %v: %w", op, err, e.ErrInvalidInput)
	}

	phone, err := s.overridePhone(req.PhoneNumber)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	d := domain.Dispatch{
		Ambulance:  strings.TrimSpace(req.Ambulance),
		Hospital:   strings.TrimSpace(req.Hospital),
		ETA:        strings.TrimSpace(req.ETA),
		ETAMinutes: req.ETAMinutes,
		Severity:   req.Severity,
	}
	if d.Ambulance == "" {
		d.Ambulance = s.defaults.Ambulance
	}
	if d.Hospital == "" {
		d.Hospital = s.defaults.Hospital
	}
	if d.Severity == "" {
		d.Severity = s.defaults.Severity
	}
	if d.ETA == "" && d.ETAMinutes == 0 {
		current, err := s.repo.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if current.Status.Terminal() {
			return nil, fmt.Errorf("%s: %w", op, e.ErrAlreadyFinalized)
		}
		d.ETAMinutes = s.eta.Minutes(current.Location.Latitude, current.Location.Longitude)
	}
	if d.ETA == "" {
		d.ETA = fmt.Sprintf("%d minutes", d.ETAMinutes)
	}

	return s.transition(ctx, domain.Transition{
		ID:         id,
		To:         domain.ReportApproved,
		Dispatch:   &d,
		Notes:      strings.TrimSpace(req.Notes),
		ReviewedBy: reviewer,
		ReviewedAt: s.now(),

		PhoneNumber: phone,
	})
}

func (s *ReviewService) Reject(ctx context.Context, id uuid.UUID, req domain.RejectReportRequest, reviewer string) (*domain.Report, error) {
	const op = "service.Review.Reject"

	if err := validator.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("%s: %v: %w", op, err, e.ErrInvalidInput)
	}
	phone, err := s.overridePhone(req.PhoneNumber)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return s.transition(ctx, domain.Transition{
		ID:         id,
		To:         domain.ReportRejected,
		Notes:      strings.TrimSpace(req.Notes),
		ReviewedBy: reviewer,
		ReviewedAt: s.now(),

		PhoneNumber: phone,
	})
}

// overridePhone validates an admin-supplied SMS target. Empty means keep the
// number stored with the report.
func (s *ReviewService) overridePhone(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	digits, err := intake.ValidatePhone(raw)
	if err != nil {
		return "", err
	}
	return intake.NormalizePhone(digits, s.countryCode), nil
}

// transition commits first and only then queues the notification. A queue
// failure is written to the report as a failed delivery; the transition stands.
func (s *ReviewService) transition(ctx context.Context, t domain.Transition) (*domain.Report, error) {
	r, err := s.repo.Transition(ctx, t)
	if err != nil {
		return nil, err
	}

	s.metrics.Transition(string(r.Status))
	s.logger.Info("report reviewed",
		slog.String("id", r.ID.String()),
		slog.String("status", string(r.Status)),
		slog.String("reviewer", t.ReviewedBy),
		slog.String("sms_status", string(r.SMSStatus)))

	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn("stats cache invalidate failed", slog.Any("error", err))
	}

	if r.SMSStatus == domain.SMSNoPhone {
		s.metrics.SMSOutcome(string(domain.OutcomeNoPhone))
		return r, nil
	}

	if err := s.queue.Enqueue(ctx, domain.SMSJob{ReportID: r.ID, EnqueuedAt: s.now()}); err != nil {
		s.metrics.EnqueueFailed()
		s.logger.Error("sms enqueue failed", slog.String("id", r.ID.String()), slog.Any("error", err))

		out := domain.NotificationOutcome{Kind: domain.OutcomeFailed, At: s.now(), Reason: "notification queue unavailable"}
		applied, setErr := s.repo.SetSMSOutcome(context.WithoutCancel(ctx), r.ID, out)
		if setErr != nil {
			s.logger.Error("recording sms failure failed", slog.String("id", r.ID.String()), slog.Any("error", setErr))
		}
		if applied {
			r.SMSStatus = domain.SMSFailed
			r.SMSError = out.Reason
			s.metrics.SMSOutcome(string(domain.OutcomeFailed))
		}
	}
	return r, nil
}

// Delete removes a report in any status. Media cleanup is best effort.
func (s *ReviewService) Delete(ctx context.Context, id uuid.UUID) error {
	media, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}

	if err := s.media.Delete(context.WithoutCancel(ctx), media.Ref); err != nil {
		s.logger.Error("media delete failed", slog.String("id", id.String()), slog.String("ref", media.Ref), slog.Any("error", err))
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn("stats cache invalidate failed", slog.Any("error", err))
	}

	s.logger.Info("report deleted", slog.String("id", id.String()))
	return nil
}
