package handlers

import (
	"context"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/cloo-solutions/truststack/internal/api"
	"github.com/cloo-solutions/truststack/internal/domain"
	"github.com/cloo-solutions/truststack/internal/report"
	"github.com/cloo-solutions/truststack/internal/service"
	"github.com/go-chi/chi/v5"
)

type ReportService interface {
	Render(ctx context.Context, input service.RenderReportInput) (*report.Output, error)
}

type ReportHandler struct {
	svc ReportService
}

func NewReportHandler(svc ReportService) *ReportHandler {
	return &ReportHandler{svc: svc}
}

// Render returns the report bytes. as_of takes an RFC 3339 timestamp.
func (h *ReportHandler) Render(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	input := service.RenderReportInput{
		ProjectID: chi.URLParam(r, "id"),
		Format:    q.Get("format"),
	}
	if raw := q.Get("as_of"); raw != "" {
		asOf, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			api.HandleError(w, domain.NewValidationError("as_of", "as_of must be an RFC 3339 timestamp"))
			return
		}
		input.AsOf = &asOf
	}

	out, err := h.svc.Render(r.Context(), input)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	disposition := "attachment"
	if out.Format == report.FormatHTML {
		disposition = "inline"
	}
	w.Header().Set("Content-Type", out.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(out.Body)))
	w.Header().Set("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{"filename": out.FileName}))
	w.WriteHeader(http.StatusOK)
	w.Write(out.Body)
}
