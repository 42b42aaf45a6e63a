package service

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/cloo-solutions/truststack/internal/domain"
	"github.com/cloo-solutions/truststack/internal/pagination"
	"github.com/cloo-solutions/truststack/internal/registry"
	"github.com/cloo-solutions/truststack/internal/registry/registrytest"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockProjectRepository is a mock implementation of ProjectRepositoryInterface
type MockProjectRepository struct {
	mock.Mock
}

func (m *MockProjectRepository) Create(ctx context.Context, rec *domain.ProjectRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockProjectRepository) Get(ctx context.Context, projectID string) (*domain.ProjectRecord, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ProjectRecord), args.Error(1)
}

func (m *MockProjectRepository) List(ctx context.Context) ([]domain.ProjectSummary, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ProjectSummary), args.Error(1)
}

func (m *MockProjectRepository) Save(ctx context.Context, rec *domain.ProjectRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockProjectRepository) AppendAudit(ctx context.Context, ev domain.AuditEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

func (m *MockProjectRepository) ListAuditWithCursor(ctx context.Context, projectID string, cursor *pagination.Cursor, limit int) (*pagination.PageResult[domain.AuditEvent], error) {
	args := m.Called(ctx, projectID, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pagination.PageResult[domain.AuditEvent]), args.Error(1)
}

// MockAuditMirror is a mock implementation of AuditMirror
type MockAuditMirror struct {
	mock.Mock
}

func (m *MockAuditMirror) Insert(ctx context.Context, ev domain.AuditEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

// MockMirrorClient is a mock implementation of MirrorClientInterface
type MockMirrorClient struct {
	mock.Mock
}

func (m *MockMirrorClient) PutObject(ctx context.Context, key string, data []byte, contentType string) error {
	args := m.Called(ctx, key, data, contentType)
	return args.Error(0)
}

func (m *MockMirrorClient) GetObject(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).(io.ReadCloser), args.Get(1).(int64), args.Error(2)
}

// MockUUIDGenerator hands out the given ids in order, then "default-uuid"
type MockUUIDGenerator struct {
	mu        sync.Mutex
	callCount int
	uuids     []string
}

func NewMockUUIDGenerator(uuids ...string) *MockUUIDGenerator {
	return &MockUUIDGenerator{uuids: uuids}
}

func (m *MockUUIDGenerator) NewString() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.callCount < len(m.uuids) {
		uuid := m.uuids[m.callCount]
		m.callCount++
		return uuid
	}
	return "default-uuid"
}

// fixedClock always reports the same instant
type fixedClock struct {
	t time.Time
}

func (c fixedClock) Now() time.Time { return c.t }

// stepClock advances one second per reading
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func newStepClock() *stepClock {
	return &stepClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

var testNow = time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)

var baselineRef = domain.PackRef{Domain: "security", PackID: "baseline", Version: "1.0.0"}

func newTestRegistry(t *testing.T) *registry.Holder {
	t.Helper()
	reg, err := registry.Load(registrytest.NewRoot(t, nil))
	require.NoError(t, err)
	return registry.NewHolder(reg)
}

func validCreateInput() CreateProjectInput {
	return CreateProjectInput{
		Name:          "Clinic Triage Bot",
		IndustryID:    registrytest.IndustryID,
		SegmentID:     registrytest.SegmentID,
		UseCaseID:     registrytest.UseCaseID,
		ScopeAnswers:  map[string]any{},
		SelectedPacks: []domain.PackRef{baselineRef},
		Actor:         "alice",
	}
}
