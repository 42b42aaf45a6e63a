package server

import (
	"net/http"

	"github.com/cloo-solutions/truststack/internal/api/handlers"
	"github.com/cloo-solutions/truststack/internal/api/middleware"
	"github.com/cloo-solutions/truststack/internal/metrics"
	"github.com/go-chi/chi/v5"
)

const (
	maxBodyBytes int64 = 5 * 1024 * 1024

	// multipartOverhead covers boundaries and part headers around an
	// evidence file.
	multipartOverhead int64 = 64 * 1024
)

type RouterConfig struct {
	ProjectHandler   *handlers.ProjectHandler
	RegistryHandler  *handlers.RegistryHandler
	EvidenceHandler  *handlers.EvidenceHandler
	ReportHandler    *handlers.ReportHandler
	Metrics          *metrics.Metrics
	MaxEvidenceBytes int64
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Actor)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.Metrics(cfg.Metrics))

	r.Get("/health", cfg.RegistryHandler.Health)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	evidenceLimit := maxBodyBytes
	if cfg.MaxEvidenceBytes > 0 {
		evidenceLimit = cfg.MaxEvidenceBytes + multipartOverhead
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/industries", func(r chi.Router) {
			r.Get("/", cfg.RegistryHandler.ListIndustries)
			r.Get("/{industryID}", cfg.RegistryHandler.GetIndustry)
			r.Get("/{industryID}/segments/{segmentID}/use-cases/{useCaseID}", cfg.RegistryHandler.GetUseCase)
		})

		r.Route("/packs", func(r chi.Router) {
			r.Get("/", cfg.RegistryHandler.ListPacks)
			r.Get("/{domain}/{packID}", cfg.RegistryHandler.GetPackVersions)
			r.Get("/{domain}/{packID}/{version}", cfg.RegistryHandler.GetPack)
		})

		r.Route("/projects", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(middleware.MaxBodyBytes(maxBodyBytes))

				r.Post("/", cfg.ProjectHandler.Create)
				r.Get("/", cfg.ProjectHandler.List)
				r.Get("/{id}", cfg.ProjectHandler.Get)
				r.Post("/{id}/regenerate", cfg.ProjectHandler.Regenerate)
				r.Get("/{id}/checklist", cfg.ProjectHandler.Checklist)
				r.Patch("/{id}/checklist/{itemID}", cfg.ProjectHandler.PatchItem)
				r.Get("/{id}/evidence/{sha256}", cfg.EvidenceHandler.Download)
				r.Get("/{id}/report", cfg.ReportHandler.Render)
				r.Get("/{id}/audit", cfg.ProjectHandler.AuditLog)
			})

			// Evidence uploads get their own limit instead of the general one.
			r.With(middleware.MaxBodyBytes(evidenceLimit)).
				Post("/{id}/checklist/{itemID}/evidence", cfg.EvidenceHandler.Upload)
		})
	})

	return r
}
