package postgres

import (
	"context"
	"log/slog"

	"roadAccident/internal/domain"
	"roadAccident/pkg/e"
)

// Stats counts reports by status and verdict in a single scan. AccuracyRate is
// left to the caller.
func (p *ReportRepo) Stats(ctx context.Context) (*domain.ReportStats, error) {
	const op = "postgres.Report.Stats"

	const query = `
		SELECT COUNT(*),
			   COUNT(*) FILTER (WHERE status = 'pending'),
			   COUNT(*) FILTER (WHERE status = 'approved'),
			   COUNT(*) FILTER (WHERE status = 'rejected'),
			   COUNT(*) FILTER (WHERE is_accident),
			   COUNT(*) FILTER (WHERE NOT is_accident)
		FROM reports
	`

	var s domain.ReportStats
	err := p.pool.QueryRow(ctx, query).Scan(
		&s.Total,
		&s.Pending,
		&s.Approved,
		&s.Rejected,
		&s.AccidentsDetected,
		&s.NonAccidents,
	)
	if err != nil {
		p.logger.Error("db queryrow scan failed", slog.String("op", op), slog.Any("error", err))
		return nil, e.WrapError(ctx, op, err)
	}
	return &s, nil
}
