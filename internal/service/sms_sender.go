package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"roadAccident/internal/domain"
	"roadAccident/internal/metrics"
	"roadAccident/pkg/e"
)

// SMSSender drains the notification queue and writes each delivery outcome
// back to its report.
type SMSSender struct {
	logger      *slog.Logger
	queue       SMSQueue
	repo        ReportRepository
	notifier    ReportNotifier
	metrics     *metrics.Metrics
	maxAttempts int
	backoff     time.Duration
	claimTTL    time.Duration
	popTimeout  time.Duration
}

func NewSMSSender(
	logger *slog.Logger,
	queue SMSQueue,
	repo ReportRepository,
	notifier ReportNotifier,
	m *metrics.Metrics,
	maxAttempts int,
) *SMSSender {
	if maxAttempts < 1 {
		maxAttempts = 3
	}
	return &SMSSender{
		logger:      logger,
		queue:       queue,
		repo:        repo,
		notifier:    notifier,
		metrics:     m,
		maxAttempts: maxAttempts,
		backoff:     time.Second,
		claimTTL:    2 * time.Minute,
		popTimeout:  5 * time.Second,
	}
}

// WithBackoff sets the base delay between attempts; attempt n waits n*d.
func (s *SMSSender) WithBackoff(d time.Duration) *SMSSender {
	s.backoff = d
	return s
}

func (s *SMSSender) Run(ctx context.Context) {
	s.logger.Info("smsSender STARTED", slog.Int("max_attempts", s.maxAttempts))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("smsSender STOPPED", slog.String("reason", ctx.Err().Error()))
			return
		default:
		}

		job, err := s.queue.BRPop(ctx, s.popTimeout)
		if err != nil {
			if errors.Is(err, e.ErrQueueEmpty) || ctx.Err() != nil {
				continue
			}
			s.logger.Error("BRPop failed", slog.Any("error", err))
			sleep(ctx, 500*time.Millisecond)
			continue
		}

		s.Handle(ctx, job)
	}
}

// Handle delivers one job. Jobs for deleted reports or reports that already
// have an outcome are dropped.
func (s *SMSSender) Handle(ctx context.Context, job domain.SMSJob) {
	l := s.logger.With(slog.String("report_id", job.ReportID.String()))

	claimed, err := s.queue.Claim(ctx, job.ReportID, s.claimTTL)
	if err != nil {
		l.Warn("claim failed, delivering anyway", slog.Any("error", err))
	} else if !claimed {
		l.Debug("job already in progress elsewhere")
		return
	} else {
		defer func() {
			if err := s.queue.Release(context.WithoutCancel(ctx), job.ReportID); err != nil {
				l.Warn("release claim failed", slog.Any("error", err))
			}
		}()
	}

	r, err := s.repo.Get(ctx, job.ReportID)
	if err != nil {
		if errors.Is(err, e.ErrNotFound) {
			l.Info("report deleted before delivery, dropping job")
			return
		}
		l.Error("load report failed", slog.Any("error", err))
		return
	}
	if r.SMSStatus != domain.SMSPending {
		l.Debug("report has no pending delivery", slog.String("sms_status", string(r.SMSStatus)))
		return
	}

	out := s.deliverWithRetry(ctx, r)

	applied, err := s.repo.SetSMSOutcome(context.WithoutCancel(ctx), r.ID, out)
	if err != nil {
		l.Error("record sms outcome failed", slog.Any("error", err))
		return
	}
	if applied {
		s.metrics.SMSOutcome(string(out.Kind))
	}
	l.Info("sms outcome recorded",
		slog.String("outcome", string(out.Kind)),
		slog.Bool("applied", applied),
		slog.String("reason", out.Reason))
}

func (s *SMSSender) deliverWithRetry(ctx context.Context, r *domain.Report) domain.NotificationOutcome {
	var out domain.NotificationOutcome
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		out = s.notifier.Notify(ctx, r)
		if out.Kind != domain.OutcomeFailed {
			return out
		}

		s.logger.Warn("sms attempt failed",
			slog.String("report_id", r.ID.String()),
			slog.Int("attempt", attempt),
			slog.String("reason", out.Reason))

		// the timed out call may still land; a resend would duplicate it
		if out.Unconfirmed {
			s.logger.Info("stop retries, delivery unconfirmed", slog.String("report_id", r.ID.String()))
			return out
		}

		if attempt < s.maxAttempts && !sleep(ctx, time.Duration(attempt)*s.backoff) {
			s.logger.Info("stop retries due to context cancel")
			return out
		}
	}
	return out
}

// sleep waits d or until ctx is done. It reports whether the full wait elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
