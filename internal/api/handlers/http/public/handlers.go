package public

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"roadAccident/internal/domain"
	"roadAccident/internal/intake"
	"roadAccident/internal/middleware"
	"roadAccident/pkg/e"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	multipartMemory = 32 << 20
	// room for the form fields around the largest allowed video
	maxUploadBody = intake.MaxVideoBytes + 1<<20
)

//go:generate mockgen -source=handlers.go -destination=mocks/mock.go
type Reports interface {
	Create(ctx context.Context, req domain.CreateReportRequest) (*domain.Report, error)
	GetFor(ctx context.Context, id uuid.UUID, p *domain.Principal) (*domain.Report, error)
	ListMine(ctx context.Context, userID uuid.UUID, skip, limit int) (*domain.ListReportsResponse, error)
}

type Auth interface {
	Register(ctx context.Context, req domain.RegisterRequest) (*domain.TokenResponse, error)
	Login(ctx context.Context, req domain.LoginRequest) (*domain.TokenResponse, error)
	AdminLogin(ctx context.Context, req domain.LoginRequest) (*domain.TokenResponse, error)
}

type Handler struct {
	logger  *slog.Logger
	Reports Reports
	Auth    Auth
}

func NewHandler(logger *slog.Logger, reports Reports, auth Auth) *Handler {
	return &Handler{
		logger:  logger,
		Reports: reports,
		Auth:    auth,
	}
}

// ReportCreate accepts a multipart submission. The file goes in "media"
// ("image" is accepted for older clients).
func (h *Handler) ReportCreate(w http.ResponseWriter, r *http.Request) {
	l := h.log(r)
	l.Debug("ReportCreate", slog.String("remote", r.RemoteAddr))

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			h.handleError(w, r, intake.ErrTooLarge)
			return
		}
		l.Warn("invalid multipart form", slog.String("error", err.Error()))
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "expected multipart/form-data"})
		return
	}
	defer r.MultipartForm.RemoveAll()

	req := domain.CreateReportRequest{
		Address:     r.FormValue("address"),
		Description: r.FormValue("description"),
		PhoneNumber: r.FormValue("phone_number"),
	}
	if p := middleware.PrincipalFrom(r.Context()); p != nil {
		req.UserID = &p.UserID
	}

	var err error
	if req.Latitude, err = parseCoordinate(r.FormValue("latitude")); err != nil {
		h.handleError(w, r, err)
		return
	}
	if req.Longitude, err = parseCoordinate(r.FormValue("longitude")); err != nil {
		h.handleError(w, r, err)
		return
	}

	file, hdr, err := formFile(r, "media", "image")
	if err == nil {
		defer file.Close()
		req.Media = &domain.MediaUpload{
			Filename:    hdr.Filename,
			ContentType: contentTypeOf(hdr),
			Size:        hdr.Size,
			Body:        file,
		}
	} else if !errors.Is(err, http.ErrMissingFile) {
		l.Warn("read media failed", slog.String("error", err.Error()))
		h.handleError(w, r, fmt.Errorf("unreadable media: %w", e.ErrInvalidInput))
		return
	}

	report, err := h.Reports.Create(r.Context(), req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	l.Info("report submitted",
		slog.String("id", report.ID.String()),
		slog.Bool("is_accident", report.Prediction.IsAccident))
	h.writeJSON(w, http.StatusCreated, report)
}

func (h *Handler) ReportGet(w http.ResponseWriter, r *http.Request) {
	l := h.log(r)
	l.Debug("ReportGet", slog.String("remote", r.RemoteAddr))

	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		l.Warn("invalid id", slog.String("id", idStr), slog.String("error", err.Error()))
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	report, err := h.Reports.GetFor(r.Context(), id, middleware.PrincipalFrom(r.Context()))
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, report)
}

func (h *Handler) ReportListMine(w http.ResponseWriter, r *http.Request) {
	l := h.log(r)
	l.Debug("ReportListMine", slog.String("query", r.URL.RawQuery))

	p := middleware.PrincipalFrom(r.Context())
	if p == nil {
		h.handleError(w, r, e.ErrUnauthorized)
		return
	}

	skip := parseInt(r.URL.Query().Get("skip"), 0)
	limit := parseInt(r.URL.Query().Get("limit"), 100)

	resp, err := h.Reports.ListMine(r.Context(), p.UserID, skip, limit)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	l.Info("own reports listed", slog.Int("count", len(resp.Reports)))
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) AuthRegister(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if err := middleware.BindJSON(r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}

	resp, err := h.Auth.Register(r.Context(), req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) AuthLogin(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, h.Auth.Login)
}

func (h *Handler) AuthAdminLogin(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, h.Auth.AdminLogin)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request, fn func(context.Context, domain.LoginRequest) (*domain.TokenResponse, error)) {
	var req domain.LoginRequest
	if err := middleware.BindJSON(r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}

	resp, err := fn(r.Context(), req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// parseCoordinate returns nil for an absent field.
func parseCoordinate(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, e.ErrInvalidCoordinates
	}
	return &v, nil
}

func formFile(r *http.Request, fields ...string) (multipart.File, *multipart.FileHeader, error) {
	for _, f := range fields {
		file, hdr, err := r.FormFile(f)
		if errors.Is(err, http.ErrMissingFile) {
			continue
		}
		return file, hdr, err
	}
	return nil, nil, http.ErrMissingFile
}

// contentTypeOf trusts the part header and falls back to the file extension.
func contentTypeOf(hdr *multipart.FileHeader) string {
	if ct := hdr.Header.Get("Content-Type"); ct != "" && ct != "application/octet-stream" {
		return ct
	}
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(hdr.Filename))); ct != "" {
		return ct
	}
	return hdr.Header.Get("Content-Type")
}
