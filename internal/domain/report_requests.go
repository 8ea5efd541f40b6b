package domain

import (
	"io"
	"time"

	"github.com/google/uuid"
)

type MediaUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// CreateReportRequest carries an intake submission. Nil coordinates mean
// the field was not sent at all.
type CreateReportRequest struct {
	Media       *MediaUpload
	Latitude    *float64
	Longitude   *float64
	Address     string
	Description string
	PhoneNumber string
	UserID      *uuid.UUID
}

type ApproveReportRequest struct {
	Ambulance  string   `json:"ambulance" validate:"max=32"`
	Hospital   string   `json:"hospital" validate:"max=120"`
	ETA        string   `json:"eta" validate:"max=32"`
	ETAMinutes int      `json:"eta_minutes" validate:"min=0,max=600"`
	Severity   Severity `json:"severity" validate:"omitempty,oneof=minor moderate severe"`
	Notes      string   `json:"notes" validate:"max=500"`
	// PhoneNumber, when set, replaces the stored number as the SMS target.
	PhoneNumber string `json:"phone_number" validate:"max=32"`
}

type RejectReportRequest struct {
	Notes       string `json:"notes" validate:"max=500"`
	PhoneNumber string `json:"phone_number" validate:"max=32"`
}

// Transition is the full write set of a review, committed as one statement.
type Transition struct {
	ID         uuid.UUID
	To         ReportStatus
	Dispatch   *Dispatch
	Notes      string
	ReviewedBy string
	ReviewedAt time.Time
	// PhoneNumber overrides the stored phone when non-empty. It is already
	// normalized.
	PhoneNumber string
}

type ListReportsRequest struct {
	Skip   int           `query:"skip" validate:"min=0"`
	Limit  int           `query:"limit" validate:"min=1,max=500"`
	Status *ReportStatus `query:"status"`
	UserID *uuid.UUID
}

type ListReportsResponse struct {
	Reports []*Report `json:"reports"`
	Skip    int       `json:"skip"`
	Limit   int       `json:"limit"`
}
