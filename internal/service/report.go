package service

import (
	"context"
	"time"

	"github.com/cloo-solutions/truststack/internal/checklist"
	"github.com/cloo-solutions/truststack/internal/metrics"
	"github.com/cloo-solutions/truststack/internal/report"
	"github.com/cloo-solutions/truststack/internal/telemetry"
)

// ReportService renders project reports
type ReportService struct {
	repo    ProjectRepositoryInterface
	metrics *metrics.Metrics
	clock   Clock
}

func NewReportService(repo ProjectRepositoryInterface, m *metrics.Metrics) *ReportService {
	return NewReportServiceWithClock(repo, m, SystemClock{})
}

func NewReportServiceWithClock(repo ProjectRepositoryInterface, m *metrics.Metrics, clock Clock) *ReportService {
	return &ReportService{repo: repo, metrics: m, clock: clock}
}

// RenderReportInput selects a project and format. A nil AsOf means now.
type RenderReportInput struct {
	ProjectID string
	Format    string
	AsOf      *time.Time
}

// Render snapshots the committed project state and renders it
func (s *ReportService) Render(ctx context.Context, input RenderReportInput) (*report.Output, error) {
	ctx, span := telemetry.StartSpan(ctx, "ReportService.Render", telemetry.SpanAttributes{
		ProjectID: input.ProjectID,
		Operation: "render_report",
	})
	defer span.End()

	format, err := report.ParseFormat(input.Format)
	if err != nil {
		return nil, err
	}

	asOf := s.clock.Now()
	if input.AsOf != nil {
		asOf = *input.AsOf
	}

	rec, err := s.repo.Get(ctx, input.ProjectID)
	if err != nil {
		return nil, err
	}
	snap := report.NewSnapshot(rec, checklist.Summarize(rec.Checklist), asOf)

	out, err := report.Render(format, snap)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	s.metrics.IncrementReport(string(format))
	return out, nil
}
