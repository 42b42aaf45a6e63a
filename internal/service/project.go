package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/cloo-solutions/truststack/internal/checklist"
	"github.com/cloo-solutions/truststack/internal/domain"
	"github.com/cloo-solutions/truststack/internal/lock"
	"github.com/cloo-solutions/truststack/internal/metrics"
	"github.com/cloo-solutions/truststack/internal/pagination"
	"github.com/cloo-solutions/truststack/internal/registry"
	"github.com/cloo-solutions/truststack/internal/telemetry"
)

const (
	defaultProjectLimit = 50
	maxProjectLimit     = 200
	maxSlugLength       = 48
)

// ProjectService handles project lifecycle and checklist state
type ProjectService struct {
	projectWriter
	registry RegistrySource
}

// NewProjectService creates a new ProjectService instance. mirror may be nil.
func NewProjectService(
	repo ProjectRepositoryInterface,
	reg RegistrySource,
	locker lock.Locker,
	mirror AuditMirror,
	m *metrics.Metrics,
) *ProjectService {
	return NewProjectServiceWithUUIDGen(repo, reg, locker, mirror, m, &DefaultUUIDGenerator{}, SystemClock{})
}

// NewProjectServiceWithUUIDGen creates a new ProjectService with custom UUID generator and clock (for testing)
func NewProjectServiceWithUUIDGen(
	repo ProjectRepositoryInterface,
	reg RegistrySource,
	locker lock.Locker,
	mirror AuditMirror,
	m *metrics.Metrics,
	uuidGen UUIDGenerator,
	clock Clock,
) *ProjectService {
	return &ProjectService{
		projectWriter: projectWriter{
			repo:    repo,
			locker:  locker,
			mirror:  mirror,
			metrics: m,
			uuidGen: uuidGen,
			clock:   clock,
		},
		registry: reg,
	}
}

// CreateProjectInput represents the input for creating a project
type CreateProjectInput struct {
	Name          string
	Description   string
	IndustryID    string
	SegmentID     string
	UseCaseID     string
	ScopeAnswers  map[string]any
	SelectedPacks []domain.PackRef
	Actor         string
}

// RegenerateInput re-derives a project's checklist. Nil fields keep the
// stored inputs.
type RegenerateInput struct {
	ProjectID     string
	ScopeAnswers  map[string]any
	SelectedPacks []domain.PackRef
	Actor         string
}

// PatchItemInput updates the project-local fields of one item
type PatchItemInput struct {
	ProjectID string
	ItemID    string
	Patch     domain.ItemPatch
	Actor     string
}

type ListProjectsInput struct {
	Cursor string
	Limit  int
}

type AuditLogInput struct {
	ProjectID string
	Cursor    string
	Limit     int
}

// Create validates the inputs, generates the first checklist and persists
// the project.
func (s *ProjectService) Create(ctx context.Context, input CreateProjectInput) (*domain.ProjectRecord, error) {
	ctx, span := telemetry.StartSpan(ctx, "ProjectService.Create", telemetry.SpanAttributes{
		Actor:     input.Actor,
		Operation: "create",
	})
	defer span.End()

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, domain.NewValidationError("name", "name is required")
	}

	reg := s.registry.Current()
	inputs := domain.ProjectInputs{
		IndustryID:    input.IndustryID,
		SegmentID:     input.SegmentID,
		UseCaseID:     input.UseCaseID,
		ScopeAnswers:  cloneAnswers(input.ScopeAnswers),
		SelectedPacks: slices.Clone(input.SelectedPacks),
	}
	uc, err := resolveUseCase(reg, inputs)
	if err != nil {
		return nil, err
	}
	if err := validateAnswers(uc, inputs.ScopeAnswers); err != nil {
		return nil, err
	}
	if err := validatePacks(reg, inputs.SelectedPacks); err != nil {
		return nil, err
	}

	res, err := checklist.Generate(reg, inputs, uc)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	now := s.clock.Now()
	rec := &domain.ProjectRecord{
		Project: *domain.NewProject(newProjectID(name, s.uuidGen), name, input.Description, now),
		Inputs:  inputs,
	}
	rec.Project.Revision = 1
	rec.Checklist = checklist.Reconcile(nil, res.Candidates, reg, now)
	if rec.Generation, err = generation(reg, res, rec.Checklist, now); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, rec); err != nil {
		span.SetError(err)
		return nil, err
	}
	s.metrics.IncrementGeneration("create", len(rec.Checklist))

	s.audit(ctx, domain.AuditEvent{
		ProjectID: rec.Project.ID,
		Type:      domain.AuditProjectCreated,
		Actor:     input.Actor,
		At:        now,
		Data: map[string]any{
			"name":           name,
			"use_case":       fmt.Sprintf("%s/%s/%s", inputs.IndustryID, inputs.SegmentID, inputs.UseCaseID),
			"selected_packs": packStrings(inputs.SelectedPacks),
			"items":          len(rec.Checklist),
			"checklist_hash": rec.Generation.ChecklistHash,
		},
	})
	return rec, nil
}

// Get retrieves a project by ID
func (s *ProjectService) Get(ctx context.Context, projectID string) (*domain.ProjectRecord, error) {
	ctx, span := telemetry.StartSpan(ctx, "ProjectService.Get", telemetry.SpanAttributes{
		ProjectID: projectID,
		Operation: "get",
	})
	defer span.End()

	return s.repo.Get(ctx, projectID)
}

// List pages through projects, most recently updated first
func (s *ProjectService) List(ctx context.Context, input ListProjectsInput) (*pagination.PageResult[domain.ProjectSummary], error) {
	ctx, span := telemetry.StartSpan(ctx, "ProjectService.List", telemetry.SpanAttributes{
		Operation: "list",
	})
	defer span.End()

	cursor, err := pagination.DecodeCursor(input.Cursor)
	if err != nil {
		return nil, domain.NewValidationError("cursor", err.Error())
	}
	limit := input.Limit
	if limit <= 0 {
		limit = defaultProjectLimit
	}
	if limit > maxProjectLimit {
		limit = maxProjectLimit
	}

	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	start := 0
	if cursor != nil {
		// Resume after the cursor's position in (updated_at desc, id) order,
		// which stays valid even if that project was since updated.
		start = len(all)
		for i, p := range all {
			if p.UpdatedAt.Before(cursor.Timestamp) ||
				(p.UpdatedAt.Equal(cursor.Timestamp) && p.ID > cursor.LastID) {
				start = i
				break
			}
		}
	}

	page := all[start:]
	hasMore := len(page) > limit
	if hasMore {
		page = page[:limit]
	}
	var next string
	if hasMore {
		last := page[len(page)-1]
		next = pagination.EncodeCursor(last.ID, last.UpdatedAt)
	}
	return &pagination.PageResult[domain.ProjectSummary]{
		Items:   page,
		Cursor:  next,
		HasMore: hasMore,
	}, nil
}

// Checklist returns the project's items with freshly computed counts
func (s *ProjectService) Checklist(ctx context.Context, projectID string) (*domain.Checklist, error) {
	ctx, span := telemetry.StartSpan(ctx, "ProjectService.Checklist", telemetry.SpanAttributes{
		ProjectID: projectID,
		Operation: "checklist",
	})
	defer span.End()

	rec, err := s.repo.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	cl := checklist.Build(rec.Checklist)
	return &cl, nil
}

// Regenerate re-derives the checklist against the current registry, keeping
// item state and retaining items that no longer apply as orphans.
func (s *ProjectService) Regenerate(ctx context.Context, input RegenerateInput) (*domain.Checklist, error) {
	ctx, span := telemetry.StartSpan(ctx, "ProjectService.Regenerate", telemetry.SpanAttributes{
		ProjectID: input.ProjectID,
		Actor:     input.Actor,
		Operation: "regenerate",
	})
	defer span.End()

	reg := s.registry.Current()
	var out domain.Checklist
	err := s.withLock(ctx, input.ProjectID, func() error {
		rec, err := s.repo.Get(ctx, input.ProjectID)
		if err != nil {
			return err
		}

		inputs := rec.Inputs
		if input.ScopeAnswers != nil {
			inputs.ScopeAnswers = cloneAnswers(input.ScopeAnswers)
		}
		if input.SelectedPacks != nil {
			inputs.SelectedPacks = slices.Clone(input.SelectedPacks)
			if err := validatePacks(reg, inputs.SelectedPacks); err != nil {
				return err
			}
		}

		uc, err := resolveUseCase(reg, inputs)
		if err != nil {
			if input.ScopeAnswers != nil {
				return err
			}
			// The stored use case left the taxonomy. Rules still see the
			// stored answers, without defaults or tags.
			log.Printf("project %s: use case %s/%s/%s no longer resolves; regenerating without defaults",
				rec.Project.ID, inputs.IndustryID, inputs.SegmentID, inputs.UseCaseID)
			uc = nil
		} else if input.ScopeAnswers != nil {
			if err := validateAnswers(uc, inputs.ScopeAnswers); err != nil {
				return err
			}
		}

		res, err := checklist.Generate(reg, inputs, uc)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		beforeHash := rec.Generation.ChecklistHash
		rec.Inputs = inputs
		rec.Checklist = checklist.Reconcile(rec.Checklist, res.Candidates, reg, now)
		if rec.Generation, err = generation(reg, res, rec.Checklist, now); err != nil {
			return err
		}
		if err := s.commit(ctx, rec, now); err != nil {
			return err
		}
		s.metrics.IncrementGeneration("regenerate", len(rec.Checklist))

		out = checklist.Build(rec.Checklist)
		data := map[string]any{
			"items":          out.Counts.Total,
			"orphaned":       out.Counts.Orphaned,
			"checklist_hash": rec.Generation.ChecklistHash,
			"selected_packs": packStrings(inputs.SelectedPacks),
		}
		if len(res.Missing) > 0 {
			data["missing_packs"] = packStrings(res.Missing)
		}
		if uc == nil {
			data["use_case_missing"] = true
		}
		ev := domain.AuditEvent{
			ProjectID: rec.Project.ID,
			Type:      domain.AuditChecklistRegenerated,
			Actor:     input.Actor,
			At:        now,
			Before:    map[string]any{"checklist_hash": beforeHash},
			After:     map[string]any{"checklist_hash": rec.Generation.ChecklistHash},
			Data:      data,
		}
		if input.ScopeAnswers != nil {
			ev.After["scope_answers"] = inputs.ScopeAnswers
		}
		s.audit(ctx, ev)
		return nil
	})
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	return &out, nil
}

// PatchItem updates status, owner or notes of one item
func (s *ProjectService) PatchItem(ctx context.Context, input PatchItemInput) (*domain.ChecklistItem, error) {
	ctx, span := telemetry.StartSpan(ctx, "ProjectService.PatchItem", telemetry.SpanAttributes{
		ProjectID: input.ProjectID,
		ItemID:    input.ItemID,
		Actor:     input.Actor,
		Operation: "patch_item",
	})
	defer span.End()

	p := input.Patch
	if p.IsEmpty() {
		return nil, domain.ErrEmptyPatch
	}
	if p.Status != nil && !p.Status.IsValid() {
		return nil, domain.ErrInvalidItemStatus
	}

	var out domain.ChecklistItem
	err := s.withLock(ctx, input.ProjectID, func() error {
		rec, err := s.repo.Get(ctx, input.ProjectID)
		if err != nil {
			return err
		}
		item, ok := rec.Item(input.ItemID)
		if !ok {
			return domain.ErrItemNotFound
		}

		before := map[string]any{}
		after := map[string]any{}
		if p.Status != nil && *p.Status != item.Status {
			before["status"], after["status"] = item.Status, *p.Status
			item.Status = *p.Status
		}
		if p.Owner != nil && *p.Owner != item.Owner {
			before["owner"], after["owner"] = item.Owner, *p.Owner
			item.Owner = *p.Owner
		}
		if p.Notes != nil && *p.Notes != item.Notes {
			before["notes"], after["notes"] = item.Notes, *p.Notes
			item.Notes = *p.Notes
		}
		out = *item
		if len(after) == 0 {
			return nil
		}

		now := s.clock.Now()
		if err := s.commit(ctx, rec, now); err != nil {
			return err
		}
		s.audit(ctx, domain.AuditEvent{
			ProjectID: rec.Project.ID,
			Type:      domain.AuditItemUpdated,
			Actor:     input.Actor,
			At:        now,
			ItemID:    item.ItemID,
			Before:    before,
			After:     after,
		})
		return nil
	})
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	return &out, nil
}

// AuditLog pages through a project's audit events, oldest first
func (s *ProjectService) AuditLog(ctx context.Context, input AuditLogInput) (*pagination.PageResult[domain.AuditEvent], error) {
	ctx, span := telemetry.StartSpan(ctx, "ProjectService.AuditLog", telemetry.SpanAttributes{
		ProjectID: input.ProjectID,
		Operation: "audit_log",
	})
	defer span.End()

	cursor, err := pagination.DecodeCursor(input.Cursor)
	if err != nil {
		return nil, domain.NewValidationError("cursor", err.Error())
	}
	if _, err := s.repo.Get(ctx, input.ProjectID); err != nil {
		return nil, err
	}
	return s.repo.ListAuditWithCursor(ctx, input.ProjectID, cursor, input.Limit)
}

func resolveUseCase(reg *registry.Registry, in domain.ProjectInputs) (*domain.UseCase, error) {
	if in.IndustryID == "" {
		return nil, domain.NewValidationError("industry_id", "industry_id is required")
	}
	if in.SegmentID == "" {
		return nil, domain.NewValidationError("segment_id", "segment_id is required")
	}
	if in.UseCaseID == "" {
		return nil, domain.NewValidationError("use_case_id", "use_case_id is required")
	}
	ind, err := reg.Industry(in.IndustryID)
	if err != nil {
		return nil, domain.NewValidationError("industry_id", fmt.Sprintf("unknown industry %q", in.IndustryID))
	}
	if !slices.ContainsFunc(ind.Segments, func(s domain.Segment) bool { return s.ID == in.SegmentID }) {
		return nil, domain.NewValidationError("segment_id",
			fmt.Sprintf("segment %q does not belong to industry %q", in.SegmentID, in.IndustryID))
	}
	uc, err := reg.UseCase(in.IndustryID, in.SegmentID, in.UseCaseID)
	if err != nil {
		return nil, domain.NewValidationError("use_case_id",
			fmt.Sprintf("use case %q does not belong to %s/%s", in.UseCaseID, in.IndustryID, in.SegmentID))
	}
	return uc, nil
}

func validateAnswers(uc *domain.UseCase, answers map[string]any) error {
	ids := make([]string, 0, len(answers))
	for id := range answers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		field := "scope_answers." + id
		q, ok := uc.Question(id)
		if !ok {
			return domain.NewValidationError(field, "unknown scope question")
		}
		if answers[id] == nil {
			continue
		}
		if err := q.CheckAnswer(answers[id]); err != nil {
			return domain.NewValidationError(field, err.Error())
		}
	}
	return nil
}

func validatePacks(reg *registry.Registry, packs []domain.PackRef) error {
	if len(packs) == 0 {
		return domain.ErrNoPacksSelected
	}
	seen := make(map[domain.PackRef]bool, len(packs))
	for _, ref := range packs {
		if ref.Domain == "" || ref.PackID == "" || ref.Version == "" {
			return domain.NewValidationError("selected_packs", "each pack needs domain, pack_id and version")
		}
		if seen[ref] {
			return domain.NewValidationError("selected_packs", fmt.Sprintf("pack %s selected twice", ref))
		}
		seen[ref] = true
		if _, err := reg.Pack(ref); err != nil {
			if errors.Is(err, domain.ErrPackNotFound) {
				return domain.NewValidationError("selected_packs", fmt.Sprintf("unknown pack %s", ref))
			}
			return err
		}
	}
	return nil
}

func generation(reg *registry.Registry, res *checklist.Result, items []domain.ChecklistItem, now time.Time) (domain.Generation, error) {
	hash, err := checklist.Hash(items)
	if err != nil {
		return domain.Generation{}, fmt.Errorf("failed to hash checklist: %w", err)
	}
	return domain.Generation{
		GeneratorVersion: checklist.GeneratorVersion,
		TaxonomyHash:     reg.TaxonomyHash(),
		PackHashes:       res.PackHashes,
		ChecklistHash:    hash,
		GeneratedAt:      now,
	}, nil
}

var slugSeparators = regexp.MustCompile(`[^a-z0-9]+`)

// newProjectID derives a readable id from the project name plus a random
// suffix so equal names do not collide.
func newProjectID(name string, gen UUIDGenerator) string {
	slug := strings.Trim(slugSeparators.ReplaceAllString(strings.ToLower(name), "-"), "-")
	if len(slug) > maxSlugLength {
		slug = strings.TrimRight(slug[:maxSlugLength], "-")
	}
	if slug == "" {
		slug = "project"
	}
	suffix := strings.ReplaceAll(gen.NewString(), "-", "")
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	return slug + "-" + strings.ToLower(suffix)
}

func cloneAnswers(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func packStrings(refs []domain.PackRef) []string {
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = r.String()
	}
	return out
}
