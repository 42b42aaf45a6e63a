package jobs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cloo-solutions/truststack/internal/metrics"
	"github.com/cloo-solutions/truststack/internal/registry"
	"github.com/cloo-solutions/truststack/internal/registry/registrytest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockJobProcessor is a mock implementation of JobProcessor
type MockJobProcessor struct {
	mock.Mock
}

func (m *MockJobProcessor) ProcessJobs(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func TestWorker_StartStop(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(nil)

	worker := NewWorker("test", mockProcessor, 100*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	time.Sleep(250 * time.Millisecond)

	worker.Stop()
	wg.Wait()

	mockProcessor.AssertCalled(t, "ProcessJobs", mock.Anything)
}

func TestWorker_ContextCancellation(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(errors.New("boom"))

	worker := NewWorker("test", mockProcessor, 100*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	time.Sleep(150 * time.Millisecond)

	// errors from the processor do not stop the loop
	cancel()
	wg.Wait()

	mockProcessor.AssertCalled(t, "ProcessJobs", mock.Anything)
}

func newHolder(t *testing.T) (*registry.Holder, string) {
	t.Helper()
	root := registrytest.NewRoot(t, nil)
	reg, err := registry.Load(root)
	require.NoError(t, err)
	return registry.NewHolder(reg), root
}

func TestRegistryReloadProcessor_Unchanged(t *testing.T) {
	holder, _ := newHolder(t)
	before := holder.Current()

	p := NewRegistryReloadProcessor(holder, metrics.New())
	require.NoError(t, p.ProcessJobs(context.Background()))

	assert.Same(t, before, holder.Current())
}

func TestRegistryReloadProcessor_PicksUpChanges(t *testing.T) {
	holder, root := newHolder(t)
	before := holder.Current()

	registrytest.WriteFiles(t, root, map[string]string{
		"packs/security/baseline/1.1.0/pack.yaml": `pack:
  id: baseline
  name: Security Baseline
  version: "1.1.0"
  domain: security
  type: control_catalog
  source: {name: Internal, reference: SB-1}
`,
		"packs/security/baseline/1.1.0/controls/controls.yaml": registrytest.ControlsYAML,
	})

	p := NewRegistryReloadProcessor(holder, metrics.New())
	require.NoError(t, p.ProcessJobs(context.Background()))

	after := holder.Current()
	assert.NotSame(t, before, after)
	versions, err := after.Versions("security", "baseline")
	require.NoError(t, err)
	assert.Equal(t, []string{"1.0.0", "1.1.0"}, versions)
}

func TestRegistryReloadProcessor_BrokenRootKeepsPrevious(t *testing.T) {
	holder, root := newHolder(t)
	before := holder.Current()

	require.NoError(t, os.WriteFile(filepath.Join(root, registrytest.ControlsPath), []byte("controls: [\n"), 0o644))

	p := NewRegistryReloadProcessor(holder, nil)
	err := p.ProcessJobs(context.Background())
	require.Error(t, err)
	assert.Same(t, before, holder.Current())

	err = p.Reload(context.Background())
	require.Error(t, err)
	assert.Same(t, before, holder.Current())
}

func TestRegistryReloadProcessor_ForcedReload(t *testing.T) {
	holder, _ := newHolder(t)
	before := holder.Current()

	p := NewRegistryReloadProcessor(holder, metrics.New())
	require.NoError(t, p.Reload(context.Background()))

	assert.NotSame(t, before, holder.Current())
	assert.Equal(t, before.Fingerprint(), holder.Current().Fingerprint())
}
