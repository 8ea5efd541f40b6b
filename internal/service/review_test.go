package service_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"

	"roadAccident/internal/domain"
	"roadAccident/internal/service"
	mock_service "roadAccident/internal/service/mocks"
	"roadAccident/pkg/e"
)

type reviewDeps struct {
	repo  *mock_service.MockReportRepository
	media *mock_service.MockMediaStore
	queue *mock_service.MockSMSQueue
	cache *mock_service.MockStatsCache
}

func newReviewService(t *testing.T) (*service.ReviewService, reviewDeps) {
	t.Helper()
	ctrl := gomock.NewController(t)
	d := reviewDeps{
		repo:  mock_service.NewMockReportRepository(ctrl),
		media: mock_service.NewMockMediaStore(ctrl),
		queue: mock_service.NewMockSMSQueue(ctrl),
		cache: mock_service.NewMockStatsCache(ctrl),
	}
	svc := service.NewReviewService(
		d.repo, d.media, d.queue, d.cache,
		service.NewETAEstimator(12.9716, 77.5946),
		service.DispatchDefaults{},
		newTestLogger(), nil, "91",
	)
	return svc, d
}

// applyTransition mimics the repository: it fills in the committed fields.
func applyTransition(phone string) func(context.Context, domain.Transition) (*domain.Report, error) {
	return func(_ context.Context, tr domain.Transition) (*domain.Report, error) {
		r := &domain.Report{
			ID:          tr.ID,
			Status:      tr.To,
			Dispatch:    tr.Dispatch,
			AdminNotes:  tr.Notes,
			ReviewedBy:  tr.ReviewedBy,
			ReviewedAt:  &tr.ReviewedAt,
			PhoneNumber: phone,
			SMSStatus:   domain.SMSPending,
		}
		if phone == "" {
			r.SMSStatus = domain.SMSNoPhone
		}
		return r, nil
	}
}

func TestApprove_WithDispatchDetails(t *testing.T) {
	t.Parallel()

	svc, d := newReviewService(t)
	id := uuid.New()

	d.repo.EXPECT().Transition(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, tr domain.Transition) (*domain.Report, error) {
			want := domain.Dispatch{Ambulance: "AMB-101", Hospital: "City General", ETA: "15 minutes", Severity: domain.SeverityModerate}
			if tr.To != domain.ReportApproved || tr.Dispatch == nil || *tr.Dispatch != want {
				t.Fatalf("unexpected transition: %+v dispatch=%+v", tr, tr.Dispatch)
			}
			if tr.ReviewedBy != "admin@example.com" || tr.ReviewedAt.IsZero() {
				t.Fatalf("review metadata missing: %+v", tr)
			}
			return applyTransition("+919876543210")(ctx, tr)
		})
	d.cache.EXPECT().Invalidate(gomock.Any()).Return(nil)
	d.queue.EXPECT().Enqueue(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, job domain.SMSJob) error {
			if job.ReportID != id {
				t.Fatalf("enqueued wrong report %s", job.ReportID)
			}
			return nil
		})

	r, err := svc.Approve(context.Background(), id, domain.ApproveReportRequest{
		Ambulance: "AMB-101",
		ETA:       "15 minutes",
		Hospital:  "City General",
	}, "admin@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Status != domain.ReportApproved || r.SMSStatus != domain.SMSPending {
		t.Fatalf("unexpected state %s/%s", r.Status, r.SMSStatus)
	}
}

func TestApprove_EstimatesETAFromLocation(t *testing.T) {
	t.Parallel()

	svc, d := newReviewService(t)
	id := uuid.New()

	d.repo.EXPECT().Get(gomock.Any(), id).Return(&domain.Report{
		ID:       id,
		Status:   domain.ReportPending,
		Location: domain.Location{Latitude: 12.9716, Longitude: 77.5946},
	}, nil)
	d.repo.EXPECT().Transition(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, tr domain.Transition) (*domain.Report, error) {
			if tr.Dispatch.ETAMinutes != 5 || tr.Dispatch.ETA != "5 minutes" {
				t.Fatalf("expected 5 minute estimate, got %+v", tr.Dispatch)
			}
			if tr.Dispatch.Ambulance != "Dispatched" || tr.Dispatch.Hospital != "Nearest Hospital" {
				t.Fatalf("defaults not applied: %+v", tr.Dispatch)
			}
			return applyTransition("")(ctx, tr)
		})
	d.cache.EXPECT().Invalidate(gomock.Any()).Return(nil)

	if _, err := svc.Approve(context.Background(), id, domain.ApproveReportRequest{}, "admin"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestApprove_InvalidSeverity(t *testing.T) {
	t.Parallel()

	svc, _ := newReviewService(t)
	_, err := svc.Approve(context.Background(), uuid.New(), domain.ApproveReportRequest{Severity: "catastrophic", ETA: "10"}, "admin")
	if !errors.Is(err, e.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestApprove_Twice_AlreadyFinalized(t *testing.T) {
	t.Parallel()

	svc, d := newReviewService(t)
	id := uuid.New()

	gomock.InOrder(
		d.repo.EXPECT().Transition(gomock.Any(), gomock.Any()).DoAndReturn(applyTransition("")),
		d.repo.EXPECT().Transition(gomock.Any(), gomock.Any()).Return(nil, e.ErrAlreadyFinalized),
	)
	d.cache.EXPECT().Invalidate(gomock.Any()).Return(nil).Times(1)

	req := domain.ApproveReportRequest{ETA: "10 minutes"}
	if _, err := svc.Approve(context.Background(), id, req, "admin"); err != nil {
		t.Fatalf("first approve: %v", err)
	}
	_, err := svc.Approve(context.Background(), id, req, "admin")
	if !errors.Is(err, e.ErrAlreadyFinalized) || !errors.Is(err, e.ErrConflict) {
		t.Fatalf("expected already finalized conflict, got %v", err)
	}
}

func TestApprove_EstimateOnFinalizedReport(t *testing.T) {
	t.Parallel()

	svc, d := newReviewService(t)
	id := uuid.New()
	d.repo.EXPECT().Get(gomock.Any(), id).Return(&domain.Report{ID: id, Status: domain.ReportRejected}, nil)

	_, err := svc.Approve(context.Background(), id, domain.ApproveReportRequest{}, "admin")
	if !errors.Is(err, e.ErrAlreadyFinalized) {
		t.Fatalf("expected already finalized, got %v", err)
	}
}

func TestReject_WithoutPhone_NoEnqueue(t *testing.T) {
	t.Parallel()

	svc, d := newReviewService(t)
	id := uuid.New()

	d.repo.EXPECT().Transition(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, tr domain.Transition) (*domain.Report, error) {
			if tr.To != domain.ReportRejected || tr.Dispatch != nil || tr.Notes != "not an accident" {
				t.Fatalf("unexpected transition: %+v", tr)
			}
			return applyTransition("")(ctx, tr)
		})
	d.cache.EXPECT().Invalidate(gomock.Any()).Return(nil)
	d.queue.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Times(0)

	r, err := svc.Reject(context.Background(), id, domain.RejectReportRequest{Notes: " not an accident "}, "admin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.SMSStatus != domain.SMSNoPhone {
		t.Fatalf("expected no_phone, got %s", r.SMSStatus)
	}
}

func TestReject_EnqueueFails_RecordsFailure(t *testing.T) {
	t.Parallel()

	svc, d := newReviewService(t)
	id := uuid.New()

	d.repo.EXPECT().Transition(gomock.Any(), gomock.Any()).DoAndReturn(applyTransition("+919876543210"))
	d.cache.EXPECT().Invalidate(gomock.Any()).Return(nil)
	d.queue.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Return(e.ErrDependency)
	d.repo.EXPECT().SetSMSOutcome(gomock.Any(), id, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ uuid.UUID, out domain.NotificationOutcome) (bool, error) {
			if out.Kind != domain.OutcomeFailed || out.Reason == "" {
				t.Fatalf("expected failed outcome with reason, got %+v", out)
			}
			return true, nil
		})

	r, err := svc.Reject(context.Background(), id, domain.RejectReportRequest{}, "admin")
	if err != nil {
		t.Fatalf("transition must stand when the queue is down: %v", err)
	}
	if r.Status != domain.ReportRejected || r.SMSStatus != domain.SMSFailed {
		t.Fatalf("unexpected state %s/%s", r.Status, r.SMSStatus)
	}
}

func TestReject_NotFound(t *testing.T) {
	t.Parallel()

	svc, d := newReviewService(t)
	d.repo.EXPECT().Transition(gomock.Any(), gomock.Any()).Return(nil, e.ErrNotFound)

	if _, err := svc.Reject(context.Background(), uuid.New(), domain.RejectReportRequest{}, "admin"); !errors.Is(err, e.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestApprove_PhoneOverride_ReportWithoutPhone(t *testing.T) {
	t.Parallel()

	svc, d := newReviewService(t)
	id := uuid.New()

	d.repo.EXPECT().Transition(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, tr domain.Transition) (*domain.Report, error) {
			if tr.PhoneNumber != "+919876543210" {
				t.Fatalf("expected normalized override, got %q", tr.PhoneNumber)
			}
			// the stored report had no phone; the override becomes the target
			return applyTransition(tr.PhoneNumber)(ctx, tr)
		})
	d.cache.EXPECT().Invalidate(gomock.Any()).Return(nil)
	d.queue.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Return(nil).Times(1)

	r, err := svc.Approve(context.Background(), id, domain.ApproveReportRequest{
		ETA:         "15 minutes",
		PhoneNumber: "98765 43210",
	}, "admin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.SMSStatus != domain.SMSPending || r.PhoneNumber != "+919876543210" {
		t.Fatalf("expected pending sms to the override, got %s/%q", r.SMSStatus, r.PhoneNumber)
	}
}

func TestReject_PhoneOverride(t *testing.T) {
	t.Parallel()

	svc, d := newReviewService(t)
	id := uuid.New()

	d.repo.EXPECT().Transition(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, tr domain.Transition) (*domain.Report, error) {
			if tr.PhoneNumber != "+917012345678" {
				t.Fatalf("expected normalized override, got %q", tr.PhoneNumber)
			}
			return applyTransition(tr.PhoneNumber)(ctx, tr)
		})
	d.cache.EXPECT().Invalidate(gomock.Any()).Return(nil)
	d.queue.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Return(nil)

	r, err := svc.Reject(context.Background(), id, domain.RejectReportRequest{PhoneNumber: "70123-45678"}, "admin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.SMSStatus != domain.SMSPending {
		t.Fatalf("expected pending, got %s", r.SMSStatus)
	}
}

func TestReview_InvalidPhoneOverride(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		phone string
	}{
		{name: "too short", phone: "12345"},
		{name: "bad prefix", phone: "5123456789"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			svc, d := newReviewService(t)
			d.repo.EXPECT().Transition(gomock.Any(), gomock.Any()).Times(0)

			_, err := svc.Approve(context.Background(), uuid.New(), domain.ApproveReportRequest{ETA: "10 minutes", PhoneNumber: tc.phone}, "admin")
			if !errors.Is(err, e.ErrInvalidInput) {
				t.Fatalf("approve: expected invalid input, got %v", err)
			}
			_, err = svc.Reject(context.Background(), uuid.New(), domain.RejectReportRequest{PhoneNumber: tc.phone}, "admin")
			if !errors.Is(err, e.ErrInvalidInput) {
				t.Fatalf("reject: expected invalid input, got %v", err)
			}
		})
	}
}

func TestDelete_ThenGet_NotFound(t *testing.T) {
	t.Parallel()

	svc, d := newReviewService(t)
	id := uuid.New()

	d.repo.EXPECT().Delete(gomock.Any(), id).Return(domain.MediaRef{Ref: "r.jpg"}, nil)
	d.media.EXPECT().Delete(gomock.Any(), "r.jpg").Return(errors.New("already gone"))
	d.cache.EXPECT().Invalidate(gomock.Any()).Return(nil)
	d.repo.EXPECT().Get(gomock.Any(), id).Return(nil, e.ErrNotFound)

	if err := svc.Delete(context.Background(), id); err != nil {
		t.Fatalf("media cleanup failure must not fail delete: %v", err)
	}
	if _, err := svc.Get(context.Background(), id); !errors.Is(err, e.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestList_RejectsUnknownStatus(t *testing.T) {
	t.Parallel()

	svc, _ := newReviewService(t)
	bad := domain.ReportStatus("archived")

	if _, err := svc.List(context.Background(), domain.ListReportsRequest{Status: &bad}); !errors.Is(err, e.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestList_DefaultsLimit(t *testing.T) {
	t.Parallel()

	svc, d := newReviewService(t)
	pending := domain.ReportPending

	d.repo.EXPECT().
		List(gomock.Any(), domain.ListReportsRequest{Skip: 20, Limit: 100, Status: &pending}).
		Return(nil, nil)

	resp, err := svc.List(context.Background(), domain.ListReportsRequest{Skip: 20, Status: &pending})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Limit != 100 {
		t.Fatalf("expected default limit 100, got %d", resp.Limit)
	}
}

func TestList_TwiceWithoutWrites_Identical(t *testing.T) {
	t.Parallel()

	svc, d := newReviewService(t)
	approved := domain.ReportApproved
	reports := []*domain.Report{
		{ID: uuid.New(), Status: domain.ReportApproved, SMSStatus: domain.SMSSent},
		{ID: uuid.New(), Status: domain.ReportApproved, SMSStatus: domain.SMSNoPhone},
	}

	d.repo.EXPECT().List(gomock.Any(), gomock.Any()).Return(reports, nil).Times(2)

	req := domain.ListReportsRequest{Limit: 10, Status: &approved}
	first, err := svc.List(context.Background(), req)
	if err != nil {
		t.Fatalf("first list: %v", err)
	}
	second, err := svc.List(context.Background(), req)
	if err != nil {
		t.Fatalf("second list: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("list changed without writes:\n%+v\n%+v", first, second)
	}
}
