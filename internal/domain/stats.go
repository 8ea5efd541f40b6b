package domain

type ReportStats struct {
	Total             int64   `json:"total_reports"`
	Pending           int64   `json:"pending_reports"`
	Approved          int64   `json:"approved_reports"`
	Rejected          int64   `json:"rejected_reports"`
	AccidentsDetected int64   `json:"total_accidents_detected"`
	NonAccidents      int64   `json:"total_non_accidents"`
	AccuracyRate      float64 `json:"accuracy_rate"`
}

type WindowRequest struct {
	Hours int `query:"hours" validate:"min=1,max=720"`
}
