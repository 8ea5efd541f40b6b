package domain

import (
	"time"

	"github.com/google/uuid"
)

type ReportStatus string

const (
	ReportPending  ReportStatus = "pending"
	ReportApproved ReportStatus = "approved"
	ReportRejected ReportStatus = "rejected"
)

func (s ReportStatus) Valid() bool {
	switch s {
	case ReportPending, ReportApproved, ReportRejected:
		return true
	}
	return false
}

func (s ReportStatus) Terminal() bool {
	return s == ReportApproved || s == ReportRejected
}

type SMSStatus string

const (
	SMSNotProcessed SMSStatus = "not_processed"
	SMSPending      SMSStatus = "pending"
	SMSSent         SMSStatus = "sent"
	SMSFailed       SMSStatus = "failed"
	SMSNoPhone      SMSStatus = "no_phone"
)

type Severity string

const (
	SeverityMinor    Severity = "minor"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
)

type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

type MediaRef struct {
	Ref         string    `json:"ref"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	Kind        MediaKind `json:"kind"`
}

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address,omitempty"`
}

// Prediction is the classifier verdict. The two probabilities come from
// independent model outputs and are not required to sum to 1.
type Prediction struct {
	IsAccident             bool    `json:"is_accident"`
	Confidence             float64 `json:"confidence"`
	AccidentProbability    float64 `json:"accident_probability"`
	NonAccidentProbability float64 `json:"non_accident_probability"`
}

type Dispatch struct {
	Ambulance  string   `json:"ambulance"`
	Hospital   string   `json:"hospital"`
	ETA        string   `json:"eta"`
	ETAMinutes int      `json:"eta_minutes"`
	Severity   Severity `json:"severity"`
}

type Report struct {
	ID          uuid.UUID    `json:"id"`
	UserID      *uuid.UUID   `json:"user_id,omitempty"`
	Status      ReportStatus `json:"status"`
	Media       MediaRef     `json:"media"`
	Location    Location     `json:"location"`
	Description string       `json:"description,omitempty"`
	PhoneNumber string       `json:"phone_number,omitempty"`
	Prediction  Prediction   `json:"prediction"`
	Dispatch    *Dispatch    `json:"dispatch,omitempty"`
	SMSStatus   SMSStatus    `json:"sms_status"`
	SMSSentAt   *time.Time   `json:"sms_sent_at,omitempty"`
	SMSError    string       `json:"sms_error,omitempty"`
	AdminNotes  string       `json:"admin_notes,omitempty"`
	ReviewedBy  string       `json:"reviewed_by,omitempty"`
	ReviewedAt  *time.Time   `json:"reviewed_at,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

func (r *Report) HasPhone() bool {
	return r.PhoneNumber != ""
}

// Decision is the report status as a closed variant: Pending, Approved or Rejected.
type Decision interface {
	isDecision()
}

type Pending struct{}

type Approved struct {
	Dispatch Dispatch
}

type Rejected struct {
	Reason string
}

func (Pending) isDecision()  {}
func (Approved) isDecision() {}
func (Rejected) isDecision() {}

func (r *Report) Decision() Decision {
	switch r.Status {
	case ReportApproved:
		var d Dispatch
		if r.Dispatch != nil {
			d = *r.Dispatch
		}
		return Approved{Dispatch: d}
	case ReportRejected:
		return Rejected{Reason: r.AdminNotes}
	default:
		return Pending{}
	}
}
