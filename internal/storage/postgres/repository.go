package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"roadAccident/internal/domain"
	"roadAccident/pkg/e"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const reportColumns = `
	id, user_id, status,
	media_ref, media_content_type, media_size, media_kind,
	latitude, longitude, address, description, phone_number,
	is_accident, confidence, accident_probability, non_accident_probability,
	ambulance, hospital, eta, eta_minutes, severity,
	sms_status, sms_sent_at, sms_error,
	admin_notes, reviewed_by, reviewed_at,
	created_at, updated_at`

type ReportRepo struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewReportRepo(pool *pgxpool.Pool, logger *slog.Logger) *ReportRepo {
	return &ReportRepo{pool: pool, logger: logger}
}

func scanReport(row pgx.Row) (*domain.Report, error) {
	var (
		r          domain.Report
		ambulance  *string
		hospital   *string
		eta        *string
		etaMinutes *int
		severity   *string
	)
	err := row.Scan(
		&r.ID, &r.UserID, &r.Status,
		&r.Media.Ref, &r.Media.ContentType, &r.Media.SizeBytes, &r.Media.Kind,
		&r.Location.Latitude, &r.Location.Longitude, &r.Location.Address, &r.Description, &r.PhoneNumber,
		&r.Prediction.IsAccident, &r.Prediction.Confidence,
		&r.Prediction.AccidentProbability, &r.Prediction.NonAccidentProbability,
		&ambulance, &hospital, &eta, &etaMinutes, &severity,
		&r.SMSStatus, &r.SMSSentAt, &r.SMSError,
		&r.AdminNotes, &r.ReviewedBy, &r.ReviewedAt,
		&r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if ambulance != nil {
		d := &domain.Dispatch{Ambulance: *ambulance}
		if hospital != nil {
			d.Hospital = *hospital
		}
		if eta != nil {
			d.ETA = *eta
		}
		if etaMinutes != nil {
			d.ETAMinutes = *etaMinutes
		}
		if severity != nil {
			d.Severity = domain.Severity(*severity)
		}
		r.Dispatch = d
	}
	return &r, nil
}

func collectReports(rows pgx.Rows) ([]*domain.Report, error) {
	defer rows.Close()

	reports := make([]*domain.Report, 0, 16)
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

func (p *ReportRepo) Create(ctx context.Context, r *domain.Report) error {
	const op = "postgres.Report.Create"

	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = r.CreatedAt
	if r.Status == "" {
		r.Status = domain.ReportPending
	}
	if r.SMSStatus == "" {
		r.SMSStatus = domain.SMSNotProcessed
	}

	const query = `
		INSERT INTO reports (
			id, user_id, status,
			media_ref, media_content_type, media_size, media_kind,
			latitude, longitude, address, description, phone_number,
			is_accident, confidence, accident_probability, non_accident_probability,
			sms_status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`

	_, err := p.pool.Exec(ctx, query,
		r.ID, r.UserID, string(r.Status),
		r.Media.Ref, r.Media.ContentType, r.Media.SizeBytes, string(r.Media.Kind),
		r.Location.Latitude, r.Location.Longitude, r.Location.Address, r.Description, r.PhoneNumber,
		r.Prediction.IsAccident, r.Prediction.Confidence,
		r.Prediction.AccidentProbability, r.Prediction.NonAccidentProbability,
		string(r.SMSStatus), r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		p.logger.Error("db exec failed", slog.String("op", op), slog.Any("error", err))
		return e.WrapError(ctx, op, err)
	}
	return nil
}

func (p *ReportRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Report, error) {
	const op = "postgres.Report.Get"

	query := `SELECT ` + reportColumns + ` FROM reports WHERE id = $1`

	r, err := scanReport(p.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, e.ErrNotFound)
		}
		p.logger.Error("db queryrow scan failed", slog.String("op", op), slog.Any("error", err), slog.String("id", id.String()))
		return nil, e.WrapError(ctx, op, err)
	}
	return r, nil
}

// List returns reports newest first. Status and UserID narrow the result when set.
func (p *ReportRepo) List(ctx context.Context, req domain.ListReportsRequest) ([]*domain.Report, error) {
	const op = "postgres.Report.List"

	var status *string
	if req.Status != nil {
		s := string(*req.Status)
		status = &s
	}

	query := `SELECT ` + reportColumns + `
		FROM reports
		WHERE ($3::text IS NULL OR status = $3)
		  AND ($4::uuid IS NULL OR user_id = $4)
		ORDER BY created_at DESC, id
		LIMIT $1 OFFSET $2`

	rows, err := p.pool.Query(ctx, query, req.Limit, req.Skip, status, req.UserID)
	if err != nil {
		p.logger.Error("db query failed", slog.String("op", op), slog.Any("error", err))
		return nil, e.WrapError(ctx, op, err)
	}
	reports, err := collectReports(rows)
	if err != nil {
		p.logger.Error("rows err", slog.String("op", op), slog.Any("error", err))
		return nil, e.WrapError(ctx, op, err)
	}
	return reports, nil
}

func (p *ReportRepo) ListSince(ctx context.Context, since time.Time) ([]*domain.Report, error) {
	const op = "postgres.Report.ListSince"

	query := `SELECT ` + reportColumns + `
		FROM reports
		WHERE created_at >= $1
		ORDER BY created_at DESC, id`

	rows, err := p.pool.Query(ctx, query, since)
	if err != nil {
		p.logger.Error("db query failed", slog.String("op", op), slog.Any("error", err))
		return nil, e.WrapError(ctx, op, err)
	}
	reports, err := collectReports(rows)
	if err != nil {
		p.logger.Error("rows err", slog.String("op", op), slog.Any("error", err))
		return nil, e.WrapError(ctx, op, err)
	}
	return reports, nil
}

// Transition moves a pending report to its terminal status in one statement.
// A non-empty t.PhoneNumber replaces the stored phone. The sms_status written
// alongside depends on the phone the row ends up with.
func (p *ReportRepo) Transition(ctx context.Context, t domain.Transition) (*domain.Report, error) {
	const op = "postgres.Report.Transition"

	if !t.To.Terminal() {
		return nil, fmt.Errorf("%s: target %q: %w", op, t.To, e.ErrInvalidInput)
	}
	if (t.To == domain.ReportApproved) != (t.Dispatch != nil) {
		return nil, fmt.Errorf("%s: dispatch only with approval: %w", op, e.ErrInvalidInput)
	}

	var ambulance, hospital, eta, severity *string
	var etaMinutes *int
	if d := t.Dispatch; d != nil {
		sev := string(d.Severity)
		ambulance, hospital, eta, severity = &d.Ambulance, &d.Hospital, &d.ETA, &sev
		etaMinutes = &d.ETAMinutes
	}

	query := `
		UPDATE reports
		SET status      = $2,
			ambulance   = $3,
			hospital    = $4,
			eta         = $5,
			eta_minutes = $6,
			severity    = $7,
			admin_notes = $8,
			reviewed_by = $9,
			reviewed_at = $10,
			phone_number = COALESCE(NULLIF($11::text, ''), phone_number),
			sms_status  = CASE WHEN COALESCE(NULLIF($11::text, ''), phone_number) = '' THEN 'no_phone' ELSE 'pending' END,
			updated_at  = $10
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + reportColumns

	r, err := scanReport(p.pool.QueryRow(ctx, query,
		t.ID, string(t.To),
		ambulance, hospital, eta, etaMinutes, severity,
		t.Notes, t.ReviewedBy, t.ReviewedAt, t.PhoneNumber,
	))
	if err == nil {
		return r, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		p.logger.Error("db transition failed", slog.String("op", op), slog.Any("error", err), slog.String("id", t.ID.String()))
		return nil, e.WrapError(ctx, op, err)
	}

	var exists bool
	if err := p.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM reports WHERE id = $1)`, t.ID).Scan(&exists); err != nil {
		p.logger.Error("db exists check failed", slog.String("op", op), slog.Any("error", err))
		return nil, e.WrapError(ctx, op, err)
	}
	if !exists {
		return nil, fmt.Errorf("%s: %w", op, e.ErrNotFound)
	}
	return nil, fmt.Errorf("%s: %w", op, e.ErrAlreadyFinalized)
}

// SetSMSOutcome records a delivery result. Only reports still waiting on a
// delivery are touched; applied is false otherwise.
func (p *ReportRepo) SetSMSOutcome(ctx context.Context, id uuid.UUID, out domain.NotificationOutcome) (bool, error) {
	const op = "postgres.Report.SetSMSOutcome"

	var sentAt *time.Time
	if out.Kind == domain.OutcomeSent {
		at := out.At
		sentAt = &at
	}

	const query = `
		UPDATE reports
		SET sms_status  = $2,
			sms_sent_at = $3,
			sms_error   = $4,
			updated_at  = now()
		WHERE id = $1 AND sms_status = 'pending'
	`

	cmd, err := p.pool.Exec(ctx, query, id, string(out.SMSStatus()), sentAt, out.Reason)
	if err != nil {
		p.logger.Error("db exec failed", slog.String("op", op), slog.Any("error", err), slog.String("id", id.String()))
		return false, e.WrapError(ctx, op, err)
	}
	return cmd.RowsAffected() == 1, nil
}

// ListStalePending returns reports whose delivery has been pending since before olderThan.
func (p *ReportRepo) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]uuid.UUID, error) {
	const op = "postgres.Report.ListStalePending"

	const query = `
		SELECT id
		FROM reports
		WHERE sms_status = 'pending' AND reviewed_at < $1
		ORDER BY reviewed_at
		LIMIT $2
	`

	rows, err := p.pool.Query(ctx, query, olderThan, limit)
	if err != nil {
		p.logger.Error("db query failed", slog.String("op", op), slog.Any("error", err))
		return nil, e.WrapError(ctx, op, err)
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0, 8)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			p.logger.Error("row scan failed", slog.String("op", op), slog.Any("error", err))
			return nil, e.WrapError(ctx, op, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		p.logger.Error("rows err", slog.String("op", op), slog.Any("error", err))
		return nil, e.WrapError(ctx, op, err)
	}
	return ids, nil
}

// Delete removes the row in any status and returns its media reference for cleanup.
func (p *ReportRepo) Delete(ctx context.Context, id uuid.UUID) (domain.MediaRef, error) {
	const op = "postgres.Report.Delete"

	const query = `
		DELETE FROM reports
		WHERE id = $1
		RETURNING media_ref, media_content_type, media_size, media_kind
	`

	var m domain.MediaRef
	err := p.pool.QueryRow(ctx, query, id).Scan(&m.Ref, &m.ContentType, &m.SizeBytes, &m.Kind)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.MediaRef{}, fmt.Errorf("%s: %w", op, e.ErrNotFound)
		}
		p.logger.Error("db delete failed", slog.String("op", op), slog.Any("error", err), slog.String("id", id.String()))
		return domain.MediaRef{}, e.WrapError(ctx, op, err)
	}
	return m, nil
}
