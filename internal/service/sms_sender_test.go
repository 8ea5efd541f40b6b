package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"

	"roadAccident/internal/domain"
	"roadAccident/internal/service"
	mock_service "roadAccident/internal/service/mocks"
	"roadAccident/pkg/e"
)

type senderDeps struct {
	queue    *mock_service.MockSMSQueue
	repo     *mock_service.MockReportRepository
	notifier *mock_service.MockReportNotifier
}

func newSender(t *testing.T, attempts int) (*service.SMSSender, senderDeps) {
	t.Helper()
	ctrl := gomock.NewController(t)
	d := senderDeps{
		queue:    mock_service.NewMockSMSQueue(ctrl),
		repo:     mock_service.NewMockReportRepository(ctrl),
		notifier: mock_service.NewMockReportNotifier(ctrl),
	}
	s := service.NewSMSSender(newTestLogger(), d.queue, d.repo, d.notifier, nil, attempts).WithBackoff(time.Millisecond)
	return s, d
}

func pendingDelivery(id uuid.UUID) *domain.Report {
	r := approvedReport("+919876543210")
	r.ID = id
	r.SMSStatus = domain.SMSPending
	return r
}

func TestHandle_RetriesThenSent(t *testing.T) {
	t.Parallel()

	s, d := newSender(t, 3)
	id := uuid.New()

	d.queue.EXPECT().Claim(gomock.Any(), id, gomock.Any()).Return(true, nil)
	d.queue.EXPECT().Release(gomock.Any(), id).Return(nil)
	d.repo.EXPECT().Get(gomock.Any(), id).Return(pendingDelivery(id), nil)
	gomock.InOrder(
		d.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(domain.NotificationOutcome{Kind: domain.OutcomeFailed, Reason: "timeout"}),
		d.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(domain.NotificationOutcome{Kind: domain.OutcomeSent, MessageID: "SM9"}),
	)
	d.repo.EXPECT().SetSMSOutcome(gomock.Any(), id, domain.NotificationOutcome{Kind: domain.OutcomeSent, MessageID: "SM9"}).Return(true, nil)

	s.Handle(context.Background(), domain.SMSJob{ReportID: id})
}

func TestHandle_ExhaustsAttempts_Failed(t *testing.T) {
	t.Parallel()

	s, d := newSender(t, 3)
	id := uuid.New()
	failed := domain.NotificationOutcome{Kind: domain.OutcomeFailed, Reason: "gateway 500"}

	d.queue.EXPECT().Claim(gomock.Any(), id, gomock.Any()).Return(true, nil)
	d.queue.EXPECT().Release(gomock.Any(), id).Return(nil)
	d.repo.EXPECT().Get(gomock.Any(), id).Return(pendingDelivery(id), nil)
	d.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(failed).Times(3)
	d.repo.EXPECT().SetSMSOutcome(gomock.Any(), id, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ uuid.UUID, out domain.NotificationOutcome) (bool, error) {
			if out.SMSStatus() != domain.SMSFailed {
				t.Fatalf("expected failed, got %s", out.SMSStatus())
			}
			return true, nil
		})

	s.Handle(context.Background(), domain.SMSJob{ReportID: id})
}

func TestHandle_UnconfirmedTimeout_NoResend(t *testing.T) {
	t.Parallel()

	s, d := newSender(t, 3)
	id := uuid.New()
	timedOut := domain.NotificationOutcome{Kind: domain.OutcomeFailed, Reason: "sms send aborted: context deadline exceeded", Unconfirmed: true}

	d.queue.EXPECT().Claim(gomock.Any(), id, gomock.Any()).Return(true, nil)
	d.queue.EXPECT().Release(gomock.Any(), id).Return(nil)
	d.repo.EXPECT().Get(gomock.Any(), id).Return(pendingDelivery(id), nil)
	d.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(timedOut).Times(1)
	d.repo.EXPECT().SetSMSOutcome(gomock.Any(), id, timedOut).Return(true, nil)

	s.Handle(context.Background(), domain.SMSJob{ReportID: id})
}

func TestHandle_SkipsWhenAlreadyResolved(t *testing.T) {
	t.Parallel()

	s, d := newSender(t, 3)
	id := uuid.New()
	r := pendingDelivery(id)
	r.SMSStatus = domain.SMSSent

	d.queue.EXPECT().Claim(gomock.Any(), id, gomock.Any()).Return(true, nil)
	d.queue.EXPECT().Release(gomock.Any(), id).Return(nil)
	d.repo.EXPECT().Get(gomock.Any(), id).Return(r, nil)
	d.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Times(0)

	s.Handle(context.Background(), domain.SMSJob{ReportID: id})
}

func TestHandle_ClaimedElsewhere(t *testing.T) {
	t.Parallel()

	s, d := newSender(t, 3)
	id := uuid.New()

	d.queue.EXPECT().Claim(gomock.Any(), id, gomock.Any()).Return(false, nil)
	d.repo.EXPECT().Get(gomock.Any(), gomock.Any()).Times(0)

	s.Handle(context.Background(), domain.SMSJob{ReportID: id})
}

func TestHandle_ClaimError_StillDelivers(t *testing.T) {
	t.Parallel()

	s, d := newSender(t, 1)
	id := uuid.New()

	d.queue.EXPECT().Claim(gomock.Any(), id, gomock.Any()).Return(false, errors.New("redis down"))
	d.repo.EXPECT().Get(gomock.Any(), id).Return(pendingDelivery(id), nil)
	d.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(domain.NotificationOutcome{Kind: domain.OutcomeSent})
	d.repo.EXPECT().SetSMSOutcome(gomock.Any(), id, gomock.Any()).Return(true, nil)

	s.Handle(context.Background(), domain.SMSJob{ReportID: id})
}

func TestHandle_DeletedReport_Dropped(t *testing.T) {
	t.Parallel()

	s, d := newSender(t, 3)
	id := uuid.New()

	d.queue.EXPECT().Claim(gomock.Any(), id, gomock.Any()).Return(true, nil)
	d.queue.EXPECT().Release(gomock.Any(), id).Return(nil)
	d.repo.EXPECT().Get(gomock.Any(), id).Return(nil, e.ErrNotFound)

	s.Handle(context.Background(), domain.SMSJob{ReportID: id})
}

func TestRun_StopsOnCancel(t *testing.T) {
	t.Parallel()

	s, d := newSender(t, 1)
	ctx, cancel := context.WithCancel(context.Background())

	d.queue.EXPECT().BRPop(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, time.Duration) (domain.SMSJob, error) {
			cancel()
			return domain.SMSJob{}, e.ErrQueueEmpty
		}).MinTimes(1)

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}
