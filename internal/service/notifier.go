package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"roadAccident/internal/domain"
	"roadAccident/internal/intake"
	"roadAccident/internal/metrics"
	"roadAccident/internal/render"
)

const maxErrorLen = 200

// Notifier turns a finalized report into one SMS and reports what happened.
// It never returns an error: every failure becomes a Failed outcome.
type Notifier struct {
	gateway     SMSGateway
	renderer    MessageRenderer
	logger      *slog.Logger
	metrics     *metrics.Metrics
	sendTimeout time.Duration
	countryCode string
}

func NewNotifier(
	gateway SMSGateway,
	renderer MessageRenderer,
	logger *slog.Logger,
	m *metrics.Metrics,
	sendTimeout time.Duration,
	countryCode string,
) *Notifier {
	if sendTimeout <= 0 {
		sendTimeout = 10 * time.Second
	}
	return &Notifier{
		gateway:     gateway,
		renderer:    renderer,
		logger:      logger,
		metrics:     m,
		sendTimeout: sendTimeout,
		countryCode: countryCode,
	}
}

func (n *Notifier) Notify(ctx context.Context, r *domain.Report) domain.NotificationOutcome {
	ev, ok := domain.EventFor(r)
	if !ok {
		return failed("report is not finalized")
	}
	if !r.HasPhone() {
		return domain.NotificationOutcome{Kind: domain.OutcomeNoPhone, At: time.Now().UTC()}
	}

	body, err := n.renderer.Render(ev)
	if err != nil {
		n.logger.Error("render sms failed", slog.String("id", r.ID.String()), slog.Any("error", err))
		return failed(err.Error())
	}

	return n.send(ctx, r.PhoneNumber, body)
}

// TestSMS sends a fixed message to an arbitrary number through the configured gateway.
func (n *Notifier) TestSMS(ctx context.Context, phone string) (domain.NotificationOutcome, error) {
	digits, err := intake.ValidatePhone(phone)
	if err != nil {
		return domain.NotificationOutcome{}, err
	}
	body, err := n.renderer.RenderTest()
	if err != nil {
		return domain.NotificationOutcome{}, err
	}
	return n.send(ctx, intake.NormalizePhone(digits, n.countryCode), body), nil
}

func (n *Notifier) Status() domain.SMSGatewayStatus {
	st := domain.SMSGatewayStatus{
		Provider: n.gateway.Name(),
		Enabled:  n.gateway.Enabled(),
	}
	if st.Enabled {
		st.Message = "SMS service is configured and ready"
	} else {
		st.Message = "SMS delivery is simulated; messages are only logged"
	}
	return st
}

func (n *Notifier) send(ctx context.Context, to, body string) domain.NotificationOutcome {
	sctx, cancel := context.WithTimeout(ctx, n.sendTimeout)
	defer cancel()

	id, err := n.gateway.Send(sctx, to, body)
	if err != nil {
		n.logger.Warn("sms send failed",
			slog.String("provider", n.gateway.Name()),
			slog.Any("error", err))
		out := failed(err.Error())
		out.Unconfirmed = errors.Is(err, context.DeadlineExceeded)
		return out
	}

	n.logger.Info("sms sent",
		slog.String("provider", n.gateway.Name()),
		slog.String("message_id", id))
	return domain.NotificationOutcome{Kind: domain.OutcomeSent, At: time.Now().UTC(), MessageID: id}
}

func failed(reason string) domain.NotificationOutcome {
	return domain.NotificationOutcome{
		Kind:   domain.OutcomeFailed,
		At:     time.Now().UTC(),
		Reason: render.Truncate(reason, maxErrorLen),
	}
}
