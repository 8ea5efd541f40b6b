package admin

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"roadAccident/internal/domain"
	"roadAccident/internal/middleware"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

//go:generate mockgen -source=handlers.go -destination=mocks/mock.go
type Reviews interface {
	List(ctx context.Context, req domain.ListReportsRequest) (*domain.ListReportsResponse, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Report, error)
	Approve(ctx context.Context, id uuid.UUID, req domain.ApproveReportRequest, reviewer string) (*domain.Report, error)
	Reject(ctx context.Context, id uuid.UUID, req domain.RejectReportRequest, reviewer string) (*domain.Report, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type StatsGetter interface {
	Stats(ctx context.Context) (*domain.ReportStats, error)
	ListWindowed(ctx context.Context, req domain.WindowRequest) ([]*domain.Report, error)
}

type SMSControl interface {
	TestSMS(ctx context.Context, phone string) (domain.NotificationOutcome, error)
	Status() domain.SMSGatewayStatus
}

type Handler struct {
	logger  *slog.Logger
	Reviews Reviews
	Stats   StatsGetter
	SMS     SMSControl
}

func NewHandler(logger *slog.Logger, reviews Reviews, stats StatsGetter, sms SMSControl) *Handler {
	return &Handler{
		logger:  logger,
		Reviews: reviews,
		Stats:   stats,
		SMS:     sms,
	}
}

func (h *Handler) log(r *http.Request) *slog.Logger {
	reqID := chimw.GetReqID(r.Context())
	if reqID == "" {
		return h.logger
	}
	return h.logger.With(slog.String("request_id", reqID))
}

func (h *Handler) AdminReportList(w http.ResponseWriter, r *http.Request) {
	l := h.log(r)
	l.Debug("AdminReportList", slog.String("query", r.URL.RawQuery), slog.String("remote", r.RemoteAddr))

	q := r.URL.Query()
	req := domain.ListReportsRequest{
		Skip:  parseInt(q.Get("skip"), 0),
		Limit: parseInt(q.Get("limit"), 100),
	}
	if s := strings.TrimSpace(q.Get("status")); s != "" {
		status := domain.ReportStatus(strings.ToLower(s))
		req.Status = &status
	}

	resp, err := h.Reviews.List(r.Context(), req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	l.Info("reports listed", slog.Int("count", len(resp.Reports)), slog.Int("skip", resp.Skip), slog.Int("limit", resp.Limit))
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) AdminReportRecent(w http.ResponseWriter, r *http.Request) {
	l := h.log(r)
	l.Debug("AdminReportRecent", slog.String("query", r.URL.RawQuery))

	hours := parseInt(r.URL.Query().Get("hours"), 24)

	reports, err := h.Stats.ListWindowed(r.Context(), domain.WindowRequest{Hours: hours})
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"reports": reports,
		"hours":   hours,
		"count":   len(reports),
	})
}

func (h *Handler) AdminReportGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.reportID(w, r)
	if !ok {
		return
	}

	report, err := h.Reviews.Get(r.Context(), id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, report)
}

func (h *Handler) AdminReportApprove(w http.ResponseWriter, r *http.Request) {
	l := h.log(r)

	id, ok := h.reportID(w, r)
	if !ok {
		return
	}

	var req domain.ApproveReportRequest
	if err := middleware.BindJSON(r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}

	report, err := h.Reviews.Approve(r.Context(), id, req, reviewer(r))
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	l.Info("report approved", slog.String("id", id.String()), slog.String("sms_status", string(report.SMSStatus)))
	h.writeJSON(w, http.StatusOK, report)
}

func (h *Handler) AdminReportReject(w http.ResponseWriter, r *http.Request) {
	l := h.log(r)

	id, ok := h.reportID(w, r)
	if !ok {
		return
	}

	var req domain.RejectReportRequest
	if err := middleware.BindJSON(r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}

	report, err := h.Reviews.Reject(r.Context(), id, req, reviewer(r))
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	l.Info("report rejected", slog.String("id", id.String()), slog.String("sms_status", string(report.SMSStatus)))
	h.writeJSON(w, http.StatusOK, report)
}

func (h *Handler) AdminReportDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.reportID(w, r)
	if !ok {
		return
	}

	if err := h.Reviews.Delete(r.Context(), id); err != nil {
		h.handleError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) AdminStats(w http.ResponseWriter, r *http.Request) {
	l := h.log(r)
	l.Debug("AdminStats", slog.String("remote", r.RemoteAddr))

	stats, err := h.Stats.Stats(r.Context())
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) AdminSMSTest(w http.ResponseWriter, r *http.Request) {
	l := h.log(r)

	var req domain.TestSMSRequest
	if err := middleware.BindJSON(r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}

	out, err := h.SMS.TestSMS(r.Context(), req.PhoneNumber)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	l.Info("test sms", slog.String("outcome", string(out.Kind)))
	h.writeJSON(w, http.StatusOK, map[string]any{
		"success": out.Kind == domain.OutcomeSent,
		"outcome": out,
	})
}

func (h *Handler) AdminSMSStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.SMS.Status())
}

func (h *Handler) reportID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		h.log(r).Warn("invalid id", slog.String("id", idStr), slog.String("error", err.Error()))
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return uuid.Nil, false
	}
	return id, true
}

func reviewer(r *http.Request) string {
	if p := middleware.PrincipalFrom(r.Context()); p != nil {
		if p.Email != "" {
			return p.Email
		}
		return p.UserID.String()
	}
	return "admin"
}
