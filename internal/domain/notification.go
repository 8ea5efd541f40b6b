package domain

import (
	"time"

	"github.com/google/uuid"
)

type SMSJob struct {
	ReportID   uuid.UUID `json:"report_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// NotificationEvent is what the reporter is told: ApprovedEvent or RejectedEvent.
type NotificationEvent interface {
	isNotificationEvent()
}

type ApprovedEvent struct {
	ReportID  string
	Ambulance string
	ETA       string
	Hospital  string
	Severity  Severity
}

type RejectedEvent struct {
	ReportID string
	Reason   string
}

func (ApprovedEvent) isNotificationEvent() {}
func (RejectedEvent) isNotificationEvent() {}

// EventFor maps a finalized report to its notification. Pending reports have none.
func EventFor(r *Report) (NotificationEvent, bool) {
	switch d := r.Decision().(type) {
	case Approved:
		return ApprovedEvent{
			ReportID:  r.ID.String(),
			Ambulance: d.Dispatch.Ambulance,
			ETA:       d.Dispatch.ETA,
			Hospital:  d.Dispatch.Hospital,
			Severity:  d.Dispatch.Severity,
		}, true
	case Rejected:
		return RejectedEvent{ReportID: r.ID.String(), Reason: d.Reason}, true
	}
	return nil, false
}

type OutcomeKind string

const (
	OutcomeSent    OutcomeKind = "sent"
	OutcomeFailed  OutcomeKind = "failed"
	OutcomeNoPhone OutcomeKind = "no_phone"
)

type NotificationOutcome struct {
	Kind      OutcomeKind `json:"kind"`
	At        time.Time   `json:"at"`
	Reason    string      `json:"reason,omitempty"`
	MessageID string      `json:"message_id,omitempty"`
	// Unconfirmed marks a failure where the provider call timed out and may
	// still deliver. Resending could duplicate the message.
	Unconfirmed bool `json:"unconfirmed,omitempty"`
}

func (o NotificationOutcome) SMSStatus() SMSStatus {
	switch o.Kind {
	case OutcomeSent:
		return SMSSent
	case OutcomeNoPhone:
		return SMSNoPhone
	default:
		return SMSFailed
	}
}

type SMSGatewayStatus struct {
	Provider string `json:"provider"`
	Enabled  bool   `json:"service_enabled"`
	Message  string `json:"message"`
}

type TestSMSRequest struct {
	PhoneNumber string `json:"phone_number" validate:"required"`
}
