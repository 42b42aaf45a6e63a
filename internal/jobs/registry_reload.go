package jobs

import (
	"context"
	"fmt"
	"log"

	"github.com/cloo-solutions/truststack/internal/metrics"
	"github.com/cloo-solutions/truststack/internal/registry"
	"github.com/cloo-solutions/truststack/internal/telemetry"
)

// RegistryReloader swaps in a fresh registry when the configuration root
// changes.
type RegistryReloader interface {
	Current() *registry.Registry
	Reload() (*registry.Registry, error)
	ReloadIfChanged() (bool, error)
}

// RegistryReloadProcessor polls the configuration root and reloads the
// registry after edits. A root that fails to load leaves the previous
// registry in effect.
type RegistryReloadProcessor struct {
	holder  RegistryReloader
	metrics *metrics.Metrics
}

// NewRegistryReloadProcessor creates a RegistryReloadProcessor instance
func NewRegistryReloadProcessor(holder RegistryReloader, m *metrics.Metrics) *RegistryReloadProcessor {
	m.SetRegistryPacks(len(holder.Current().ListPacks()))
	return &RegistryReloadProcessor{holder: holder, metrics: m}
}

// ProcessJobs implements the JobProcessor interface
func (p *RegistryReloadProcessor) ProcessJobs(ctx context.Context) error {
	ctx, span := telemetry.StartTransaction(ctx, "registry.reload", "job")
	defer span.End()

	changed, err := p.holder.ReloadIfChanged()
	if err != nil {
		return p.fail(ctx, span, err)
	}
	if !changed {
		p.metrics.IncrementReload("unchanged")
		return nil
	}
	p.loaded(ctx)
	return nil
}

// Reload loads the configuration root unconditionally, as on SIGHUP.
func (p *RegistryReloadProcessor) Reload(ctx context.Context) error {
	ctx, span := telemetry.StartTransaction(ctx, "registry.reload.forced", "job")
	defer span.End()

	if _, err := p.holder.Reload(); err != nil {
		return p.fail(ctx, span, err)
	}
	p.loaded(ctx)
	return nil
}

func (p *RegistryReloadProcessor) fail(ctx context.Context, span *telemetry.Span, err error) error {
	span.SetError(err)
	p.metrics.IncrementReload("error")
	telemetry.CaptureError(ctx, err)
	return fmt.Errorf("registry reload failed, keeping fingerprint %.12s: %w", p.holder.Current().Fingerprint(), err)
}

func (p *RegistryReloadProcessor) loaded(ctx context.Context) {
	reg := p.holder.Current()
	p.metrics.IncrementReload("ok")
	p.metrics.SetRegistryPacks(len(reg.ListPacks()))
	telemetry.CaptureMessage(ctx, fmt.Sprintf("registry reloaded (fingerprint %.12s)", reg.Fingerprint()))

	for _, f := range registry.Lint(reg) {
		log.Printf("registry lint: %s", f)
	}
}
