package workers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"roadAccident/internal/domain"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

type StaleDeliveries interface {
	ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]uuid.UUID, error)
}

type JobQueue interface {
	Enqueue(ctx context.Context, job domain.SMSJob) error
	Len(ctx context.Context) (int64, error)
}

// SMSSweeper re-queues deliveries left pending longer than staleAge, e.g.
// after a worker crashed mid-send or a job was lost from the queue.
type SMSSweeper struct {
	logger   *slog.Logger
	reports  StaleDeliveries
	queue    JobQueue
	spec     string
	staleAge time.Duration
	batch    int
	now      func() time.Time
}

func NewSMSSweeper(logger *slog.Logger, reports StaleDeliveries, queue JobQueue, spec string, staleAge time.Duration, batch int) *SMSSweeper {
	if batch <= 0 {
		batch = 50
	}
	return &SMSSweeper{
		logger:   logger,
		reports:  reports,
		queue:    queue,
		spec:     spec,
		staleAge: staleAge,
		batch:    batch,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Run schedules Sweep on the cron spec (with seconds) and blocks until ctx is done.
func (w *SMSSweeper) Run(ctx context.Context) error {
	c := cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	if _, err := c.AddFunc(w.spec, func() {
		if _, err := w.Sweep(ctx); err != nil {
			w.logger.Error("sms sweep failed", slog.Any("error", err))
		}
	}); err != nil {
		return fmt.Errorf("sweeper: bad schedule %q: %w", w.spec, err)
	}

	c.Start()
	w.logger.Info("smsSweeper STARTED", slog.String("spec", w.spec), slog.Duration("stale_age", w.staleAge))

	<-ctx.Done()
	<-c.Stop().Done()
	w.logger.Info("smsSweeper STOPPED")
	return nil
}

// Sweep re-queues one batch and returns how many jobs were enqueued.
func (w *SMSSweeper) Sweep(ctx context.Context) (int, error) {
	ids, err := w.reports.ListStalePending(ctx, w.now().Add(-w.staleAge), w.batch)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, id := range ids {
		if err := w.queue.Enqueue(ctx, domain.SMSJob{ReportID: id, EnqueuedAt: w.now()}); err != nil {
			return n, err
		}
		n++
	}
	if n > 0 {
		backlog, err := w.queue.Len(ctx)
		if err != nil {
			backlog = -1
		}
		w.logger.Info("requeued stale sms deliveries", slog.Int("count", n), slog.Int64("backlog", backlog))
	}
	return n, nil
}
