package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/cloo-solutions/truststack/internal/api"
	"github.com/cloo-solutions/truststack/internal/api/middleware"
	"github.com/cloo-solutions/truststack/internal/domain"
	"github.com/cloo-solutions/truststack/internal/pagination"
	"github.com/cloo-solutions/truststack/internal/service"
	"github.com/go-chi/chi/v5"
)

type ProjectService interface {
	Create(ctx context.Context, input service.CreateProjectInput) (*domain.ProjectRecord, error)
	Get(ctx context.Context, projectID string) (*domain.ProjectRecord, error)
	List(ctx context.Context, input service.ListProjectsInput) (*pagination.PageResult[domain.ProjectSummary], error)
	Checklist(ctx context.Context, projectID string) (*domain.Checklist, error)
	Regenerate(ctx context.Context, input service.RegenerateInput) (*domain.Checklist, error)
	PatchItem(ctx context.Context, input service.PatchItemInput) (*domain.ChecklistItem, error)
	AuditLog(ctx context.Context, input service.AuditLogInput) (*pagination.PageResult[domain.AuditEvent], error)
}

type ProjectHandler struct {
	svc ProjectService
}

func NewProjectHandler(svc ProjectService) *ProjectHandler {
	return &ProjectHandler{svc: svc}
}

type CreateProjectRequest struct {
	Name          string           `json:"name"`
	Description   string           `json:"description"`
	IndustryID    string           `json:"industry_id"`
	SegmentID     string           `json:"segment_id"`
	UseCaseID     string           `json:"use_case_id"`
	ScopeAnswers  map[string]any   `json:"scope_answers"`
	SelectedPacks []domain.PackRef `json:"selected_packs"`
}

type CreateProjectResponse struct {
	ProjectID string `json:"project_id"`
}

// ProjectResponse is a project without its checklist
type ProjectResponse struct {
	Project    domain.Project       `json:"project"`
	Inputs     domain.ProjectInputs `json:"inputs"`
	Generation domain.Generation    `json:"generation"`
}

// RegenerateRequest optionally replaces the stored inputs
type RegenerateRequest struct {
	ScopeAnswers  map[string]any   `json:"scope_answers"`
	SelectedPacks []domain.PackRef `json:"selected_packs"`
}

type PatchItemRequest struct {
	Status *string `json:"status"`
	Owner  *string `json:"owner"`
	Notes  *string `json:"notes"`
}

func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		decodeError(w, err)
		return
	}

	rec, err := h.svc.Create(r.Context(), service.CreateProjectInput{
		Name:          req.Name,
		Description:   req.Description,
		IndustryID:    req.IndustryID,
		SegmentID:     req.SegmentID,
		UseCaseID:     req.UseCaseID,
		ScopeAnswers:  req.ScopeAnswers,
		SelectedPacks: req.SelectedPacks,
		Actor:         middleware.GetActor(r.Context()),
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, CreateProjectResponse{ProjectID: rec.Project.ID})
}

func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, ProjectResponse{
		Project:    rec.Project,
		Inputs:     rec.Inputs,
		Generation: rec.Generation,
	})
}

func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	page, err := h.svc.List(r.Context(), service.ListProjectsInput{
		Cursor: r.URL.Query().Get("cursor"),
		Limit:  limit,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, page)
}

func (h *ProjectHandler) Checklist(w http.ResponseWriter, r *http.Request) {
	cl, err := h.svc.Checklist(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, cl)
}

func (h *ProjectHandler) Regenerate(w http.ResponseWriter, r *http.Request) {
	var req RegenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		decodeError(w, err)
		return
	}

	cl, err := h.svc.Regenerate(r.Context(), service.RegenerateInput{
		ProjectID:     chi.URLParam(r, "id"),
		ScopeAnswers:  req.ScopeAnswers,
		SelectedPacks: req.SelectedPacks,
		Actor:         middleware.GetActor(r.Context()),
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, cl)
}

func (h *ProjectHandler) PatchItem(w http.ResponseWriter, r *http.Request) {
	var req PatchItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		decodeError(w, err)
		return
	}

	patch := domain.ItemPatch{Owner: req.Owner, Notes: req.Notes}
	if req.Status != nil {
		status := domain.ItemStatus(*req.Status)
		patch.Status = &status
	}

	item, err := h.svc.PatchItem(r.Context(), service.PatchItemInput{
		ProjectID: chi.URLParam(r, "id"),
		ItemID:    chi.URLParam(r, "itemID"),
		Patch:     patch,
		Actor:     middleware.GetActor(r.Context()),
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, item)
}

func (h *ProjectHandler) AuditLog(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	page, err := h.svc.AuditLog(r.Context(), service.AuditLogInput{
		ProjectID: chi.URLParam(r, "id"),
		Cursor:    r.URL.Query().Get("cursor"),
		Limit:     limit,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, page)
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		api.HandleError(w, domain.NewValidationError("limit", "limit must be a non-negative integer"))
		return 0, false
	}
	return limit, true
}

func decodeError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		api.HandleError(w, err)
		return
	}
	api.Error(w, http.StatusBadRequest, "invalid request body")
}
