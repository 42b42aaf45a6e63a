package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cloo-solutions/truststack/internal/api/middleware"
	"github.com/cloo-solutions/truststack/internal/domain"
	"github.com/cloo-solutions/truststack/internal/pagination"
	"github.com/cloo-solutions/truststack/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockProjectService struct {
	mock.Mock
}

func (m *MockProjectService) Create(ctx context.Context, input service.CreateProjectInput) (*domain.ProjectRecord, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ProjectRecord), args.Error(1)
}

func (m *MockProjectService) Get(ctx context.Context, projectID string) (*domain.ProjectRecord, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ProjectRecord), args.Error(1)
}

func (m *MockProjectService) List(ctx context.Context, input service.ListProjectsInput) (*pagination.PageResult[domain.ProjectSummary], error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pagination.PageResult[domain.ProjectSummary]), args.Error(1)
}

func (m *MockProjectService) Checklist(ctx context.Context, projectID string) (*domain.Checklist, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Checklist), args.Error(1)
}

func (m *MockProjectService) Regenerate(ctx context.Context, input service.RegenerateInput) (*domain.Checklist, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Checklist), args.Error(1)
}

func (m *MockProjectService) PatchItem(ctx context.Context, input service.PatchItemInput) (*domain.ChecklistItem, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ChecklistItem), args.Error(1)
}

func (m *MockProjectService) AuditLog(ctx context.Context, input service.AuditLogInput) (*pagination.PageResult[domain.AuditEvent], error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pagination.PageResult[domain.AuditEvent]), args.Error(1)
}

// withParams attaches chi URL params and an actor to req.
func withParams(req *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	ctx = context.WithValue(ctx, middleware.ActorKey, "alice")
	return req.WithContext(ctx)
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data, ok := resp["data"].(map[string]interface{})
	require.True(t, ok, "response has no data object: %s", w.Body.String())
	return data
}

func TestProjectHandler_Create_Success(t *testing.T) {
	mockSvc := new(MockProjectService)
	handler := NewProjectHandler(mockSvc)

	mockSvc.On("Create", mock.Anything, mock.MatchedBy(func(in service.CreateProjectInput) bool {
		return in.Name == "Triage" &&
			in.Actor == "alice" &&
			in.ScopeAnswers["processes_biometric_data"] == true &&
			len(in.SelectedPacks) == 1 && in.SelectedPacks[0].PackID == "baseline"
	})).Return(&domain.ProjectRecord{Project: domain.Project{ID: "triage-0badc0de"}}, nil)

	body := `{"name":"Triage","industry_id":"healthcare","segment_id":"clinical","use_case_id":"triage",
		"scope_answers":{"processes_biometric_data":true},
		"selected_packs":[{"domain":"security","pack_id":"baseline","version":"1.0.0"}]}`
	req := withParams(httptest.NewRequest(http.MethodPost, "/api/projects", bytes.NewBufferString(body)), nil)
	w := httptest.NewRecorder()

	handler.Create(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "triage-0badc0de", decodeData(t, w)["project_id"])
	mockSvc.AssertExpectations(t)
}

func TestProjectHandler_Create_InvalidJSON(t *testing.T) {
	mockSvc := new(MockProjectService)
	handler := NewProjectHandler(mockSvc)

	req := withParams(httptest.NewRequest(http.MethodPost, "/api/projects", bytes.NewBufferString(`{invalid`)), nil)
	w := httptest.NewRecorder()

	handler.Create(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid request body")
	mockSvc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestProjectHandler_Create_ValidationError(t *testing.T) {
	mockSvc := new(MockProjectService)
	handler := NewProjectHandler(mockSvc)
	mockSvc.On("Create", mock.Anything, mock.Anything).Return(nil, domain.NewValidationError("scope_answers.hosting", "expected string"))

	req := withParams(httptest.NewRequest(http.MethodPost, "/api/projects", bytes.NewBufferString(`{"name":"x"}`)), nil)
	w := httptest.NewRecorder()

	handler.Create(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"field":"scope_answers.hosting"`)
}

func TestProjectHandler_Get(t *testing.T) {
	mockSvc := new(MockProjectService)
	handler := NewProjectHandler(mockSvc)
	mockSvc.On("Get", mock.Anything, "p1").Return(&domain.ProjectRecord{
		Project:   domain.Project{ID: "p1", Name: "Demo"},
		Checklist: []domain.ChecklistItem{{ItemID: "i1"}},
	}, nil)

	req := withParams(httptest.NewRequest(http.MethodGet, "/api/projects/p1", nil), map[string]string{"id": "p1"})
	w := httptest.NewRecorder()

	handler.Get(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Contains(t, data, "project")
	assert.Contains(t, data, "inputs")
	assert.Contains(t, data, "generation")
	assert.NotContains(t, data, "checklist")
}

func TestProjectHandler_Get_NotFound(t *testing.T) {
	mockSvc := new(MockProjectService)
	handler := NewProjectHandler(mockSvc)
	mockSvc.On("Get", mock.Anything, "nope").Return(nil, domain.ErrProjectNotFound)

	req := withParams(httptest.NewRequest(http.MethodGet, "/api/projects/nope", nil), map[string]string{"id": "nope"})
	w := httptest.NewRecorder()

	handler.Get(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProjectHandler_List(t *testing.T) {
	mockSvc := new(MockProjectService)
	handler := NewProjectHandler(mockSvc)
	mockSvc.On("List", mock.Anything, service.ListProjectsInput{Cursor: "abc", Limit: 2}).Return(
		&pagination.PageResult[domain.ProjectSummary]{
			Items:   []domain.ProjectSummary{{ID: "p1", Name: "One", UpdatedAt: time.Now()}},
			HasMore: false,
		}, nil)

	req := withParams(httptest.NewRequest(http.MethodGet, "/api/projects?limit=2&cursor=abc", nil), nil)
	w := httptest.NewRecorder()

	handler.List(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	items := decodeData(t, w)["items"].([]interface{})
	assert.Len(t, items, 1)
	mockSvc.AssertExpectations(t)
}

func TestProjectHandler_List_BadLimit(t *testing.T) {
	handler := NewProjectHandler(new(MockProjectService))

	req := withParams(httptest.NewRequest(http.MethodGet, "/api/projects?limit=many", nil), nil)
	w := httptest.NewRecorder()

	handler.List(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"field":"limit"`)
}

func TestProjectHandler_Regenerate_EmptyBody(t *testing.T) {
	mockSvc := new(MockProjectService)
	handler := NewProjectHandler(mockSvc)
	mockSvc.On("Regenerate", mock.Anything, service.RegenerateInput{ProjectID: "p1", Actor: "alice"}).
		Return(&domain.Checklist{Items: []domain.ChecklistItem{}}, nil)

	req := withParams(httptest.NewRequest(http.MethodPost, "/api/projects/p1/regenerate", nil), map[string]string{"id": "p1"})
	w := httptest.NewRecorder()

	handler.Regenerate(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestProjectHandler_Regenerate_Busy(t *testing.T) {
	mockSvc := new(MockProjectService)
	handler := NewProjectHandler(mockSvc)
	mockSvc.On("Regenerate", mock.Anything, mock.Anything).Return(nil, domain.NewConcurrencyError("p1", domain.ErrLockTimeout))

	req := withParams(httptest.NewRequest(http.MethodPost, "/api/projects/p1/regenerate",
		bytes.NewBufferString(`{"scope_answers":{"hosting":"cloud"}}`)), map[string]string{"id": "p1"})
	w := httptest.NewRecorder()

	handler.Regenerate(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestProjectHandler_PatchItem(t *testing.T) {
	mockSvc := new(MockProjectService)
	handler := NewProjectHandler(mockSvc)
	mockSvc.On("PatchItem", mock.Anything, mock.MatchedBy(func(in service.PatchItemInput) bool {
		return in.ProjectID == "p1" && in.ItemID == "i1" &&
			in.Patch.Status != nil && *in.Patch.Status == domain.StatusImplemented &&
			in.Patch.Owner == nil &&
			in.Patch.Notes != nil && *in.Patch.Notes == ""
	})).Return(&domain.ChecklistItem{ItemID: "i1", Status: domain.StatusImplemented}, nil)

	req := withParams(httptest.NewRequest(http.MethodPatch, "/api/projects/p1/checklist/i1",
		bytes.NewBufferString(`{"status":"implemented","notes":""}`)), map[string]string{"id": "p1", "itemID": "i1"})
	w := httptest.NewRecorder()

	handler.PatchItem(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "implemented", decodeData(t, w)["status"])
	mockSvc.AssertExpectations(t)
}

func TestProjectHandler_AuditLog(t *testing.T) {
	mockSvc := new(MockProjectService)
	handler := NewProjectHandler(mockSvc)
	mockSvc.On("AuditLog", mock.Anything, service.AuditLogInput{ProjectID: "p1"}).Return(
		&pagination.PageResult[domain.AuditEvent]{Items: []domain.AuditEvent{{ID: "e1", Type: domain.AuditProjectCreated}}}, nil)

	req := withParams(httptest.NewRequest(http.MethodGet, "/api/projects/p1/audit", nil), map[string]string{"id": "p1"})
	w := httptest.NewRecorder()

	handler.AuditLog(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), domain.AuditProjectCreated)
}
