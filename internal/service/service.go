package service

import (
	"context"
	"time"

	"roadAccident/internal/domain"

	"github.com/google/uuid"
)

//go:generate mockgen -source=service.go -destination=mocks/mock.go
type ReportRepository interface {
	Create(ctx context.Context, r *domain.Report) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Report, error)
	List(ctx context.Context, req domain.ListReportsRequest) ([]*domain.Report, error)
	ListSince(ctx context.Context, since time.Time) ([]*domain.Report, error)
	Transition(ctx context.Context, t domain.Transition) (*domain.Report, error)
	SetSMSOutcome(ctx context.Context, id uuid.UUID, out domain.NotificationOutcome) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) (domain.MediaRef, error)
	Stats(ctx context.Context) (*domain.ReportStats, error)
}

type UserRepository interface {
	Create(ctx context.Context, u *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	UpsertAdmin(ctx context.Context, u *domain.User) error
}

type MediaStore interface {
	Save(ctx context.Context, upload *domain.MediaUpload) (string, error)
	Delete(ctx context.Context, ref string) error
}

type Classifier interface {
	Classify(ctx context.Context, media domain.MediaRef) (domain.Prediction, error)
}

type SMSQueue interface {
	Enqueue(ctx context.Context, job domain.SMSJob) error
	BRPop(ctx context.Context, timeout time.Duration) (domain.SMSJob, error)
	Claim(ctx context.Context, id uuid.UUID, ttl time.Duration) (bool, error)
	Release(ctx context.Context, id uuid.UUID) error
}

type StatsCache interface {
	// Get returns the cached stats (nil on a miss) and the cache generation.
	Get(ctx context.Context) (*domain.ReportStats, int64, error)
	// Set stores s only if the generation is still gen.
	Set(ctx context.Context, s *domain.ReportStats, ttl time.Duration, gen int64) (bool, error)
	Invalidate(ctx context.Context) error
}

type SMSGateway interface {
	Send(ctx context.Context, to, body string) (string, error)
	Name() string
	Enabled() bool
}

type MessageRenderer interface {
	Render(ev domain.NotificationEvent) (string, error)
	RenderTest() (string, error)
}

type ReportNotifier interface {
	Notify(ctx context.Context, r *domain.Report) domain.NotificationOutcome
}

type Service struct {
	Reports  *ReportService
	Reviews  *ReviewService
	Stats    *StatsService
	Notifier *Notifier
	Auth     *AuthService
}

func NewService(
	reports *ReportService,
	reviews *ReviewService,
	stats *StatsService,
	notifier *Notifier,
	auth *AuthService,
) *Service {
	return &Service{
		Reports:  reports,
		Reviews:  reviews,
		Stats:    stats,
		Notifier: notifier,
		Auth:     auth,
	}
}
