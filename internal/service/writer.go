package service

import (
	"context"
	"log"
	"time"

	"github.com/cloo-solutions/truststack/internal/domain"
	"github.com/cloo-solutions/truststack/internal/lock"
	"github.com/cloo-solutions/truststack/internal/metrics"
	"github.com/cloo-solutions/truststack/internal/pagination"
	"github.com/cloo-solutions/truststack/internal/registry"
	"github.com/cloo-solutions/truststack/internal/telemetry"
)

// ProjectRepositoryInterface defines the repository interface for project persistence
type ProjectRepositoryInterface interface {
	Create(ctx context.Context, rec *domain.ProjectRecord) error
	Get(ctx context.Context, projectID string) (*domain.ProjectRecord, error)
	List(ctx context.Context) ([]domain.ProjectSummary, error)
	Save(ctx context.Context, rec *domain.ProjectRecord) error
	AppendAudit(ctx context.Context, ev domain.AuditEvent) error
	ListAuditWithCursor(ctx context.Context, projectID string, cursor *pagination.Cursor, limit int) (*pagination.PageResult[domain.AuditEvent], error)
}

// AuditMirror receives a copy of every audit event. Failures never fail the
// operation that produced the event.
type AuditMirror interface {
	Insert(ctx context.Context, ev domain.AuditEvent) error
}

// RegistrySource hands out the current configuration snapshot
type RegistrySource interface {
	Current() *registry.Registry
}

// DefaultActor is recorded when a caller does not name itself.
const DefaultActor = "anonymous"

// projectWriter holds what every mutating operation needs: the per-project
// lock, the store and the audit trail.
type projectWriter struct {
	repo    ProjectRepositoryInterface
	locker  lock.Locker
	mirror  AuditMirror
	metrics *metrics.Metrics
	uuidGen UUIDGenerator
	clock   Clock
}

// withLock runs fn while holding the project's write lock.
func (w *projectWriter) withLock(ctx context.Context, projectID string, fn func() error) error {
	start := time.Now()
	unlock, err := w.locker.Lock(ctx, projectID)
	if err != nil {
		w.metrics.ObserveLockWait("failed", time.Since(start))
		return err
	}
	w.metrics.ObserveLockWait("acquired", time.Since(start))
	defer unlock()
	return fn()
}

// audit records ev after the change it describes has been committed.
func (w *projectWriter) audit(ctx context.Context, ev domain.AuditEvent) {
	if ev.ID == "" {
		ev.ID = w.uuidGen.NewString()
	}
	if ev.Actor == "" {
		ev.Actor = DefaultActor
	}
	if err := w.repo.AppendAudit(ctx, ev); err != nil {
		log.Printf("audit: failed to append %s for project %s: %v", ev.Type, ev.ProjectID, err)
		telemetry.CaptureError(ctx, err)
	}
	if w.mirror == nil {
		return
	}
	if err := w.mirror.Insert(ctx, ev); err != nil {
		log.Printf("audit: failed to mirror %s for project %s: %v", ev.Type, ev.ProjectID, err)
		telemetry.CaptureError(ctx, err)
	}
}

// commit bumps the revision and persists rec.
func (w *projectWriter) commit(ctx context.Context, rec *domain.ProjectRecord, now time.Time) error {
	rec.Project.Revision++
	rec.Project.UpdatedAt = now
	return w.repo.Save(ctx, rec)
}
