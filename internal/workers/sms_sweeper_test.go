package workers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"roadAccident/internal/domain"
)

type fakeStale struct {
	ids       []uuid.UUID
	err       error
	olderThan time.Time
	limit     int
}

func (f *fakeStale) ListStalePending(_ context.Context, olderThan time.Time, limit int) ([]uuid.UUID, error) {
	f.olderThan, f.limit = olderThan, limit
	return f.ids, f.err
}

type fakeQueue struct {
	mu     sync.Mutex
	jobs   []domain.SMSJob
	failAt int
	pushed chan struct{}
}

func (q *fakeQueue) Enqueue(_ context.Context, job domain.SMSJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.failAt > 0 && len(q.jobs)+1 == q.failAt {
		return errors.New("queue down")
	}
	q.jobs = append(q.jobs, job)
	if q.pushed != nil {
		select {
		case q.pushed <- struct{}{}:
		default:
		}
	}
	return nil
}

func (q *fakeQueue) Len(context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.jobs)), nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSweep_RequeuesStale(t *testing.T) {
	t.Parallel()

	ids := []uuid.UUID{uuid.New(), uuid.New()}
	stale := &fakeStale{ids: ids}
	q := &fakeQueue{}
	w := NewSMSSweeper(discardLogger(), stale, q, "0 * * * * *", 5*time.Minute, 10)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return now }

	n, err := w.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, now.Add(-5*time.Minute), stale.olderThan)
	require.Equal(t, 10, stale.limit)
	require.Len(t, q.jobs, 2)
	require.Equal(t, ids[0], q.jobs[0].ReportID)
	require.Equal(t, ids[1], q.jobs[1].ReportID)
}

func TestSweep_StopsOnQueueError(t *testing.T) {
	t.Parallel()

	stale := &fakeStale{ids: []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}}
	q := &fakeQueue{failAt: 2}
	w := NewSMSSweeper(discardLogger(), stale, q, "0 * * * * *", time.Minute, 0)

	n, err := w.Sweep(context.Background())
	require.Error(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, 50, stale.limit)
}

func TestSweep_ListError(t *testing.T) {
	t.Parallel()

	w := NewSMSSweeper(discardLogger(), &fakeStale{err: errors.New("db down")}, &fakeQueue{}, "0 * * * * *", time.Minute, 5)
	_, err := w.Sweep(context.Background())
	require.Error(t, err)
}

func TestRun_BadSpec(t *testing.T) {
	t.Parallel()

	w := NewSMSSweeper(discardLogger(), &fakeStale{}, &fakeQueue{}, "not a cron spec", time.Minute, 5)
	require.Error(t, w.Run(context.Background()))
}

func TestRun_FiresAndStops(t *testing.T) {
	t.Parallel()

	q := &fakeQueue{pushed: make(chan struct{}, 1)}
	w := NewSMSSweeper(discardLogger(), &fakeStale{ids: []uuid.UUID{uuid.New()}}, q, "* * * * * *", time.Minute, 5)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	select {
	case <-q.pushed:
	case <-time.After(3 * time.Second):
		t.Fatalf("sweep never fired")
	}
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatalf("Run did not stop")
	}
}
