package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/cloo-solutions/truststack/internal/domain"
	"gopkg.in/yaml.v3"
)

const (
	projectFile = "project.yaml"
	auditFile   = "auditlog.ndjson"
)

var projectIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,127}$`)

// ValidProjectID reports whether id can name a project directory.
func ValidProjectID(id string) bool {
	return projectIDPattern.MatchString(id)
}

// ProjectRepository stores each project as one directory under the
// workspace root. The directory holds project.yaml, the audit log and the
// evidence blobs, so it can be copied out as a unit.
type ProjectRepository struct {
	root string
}

// NewProjectRepository creates the workspace root if needed.
func NewProjectRepository(root string) (*ProjectRepository, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to ensure workspace dir: %w", err)
	}
	return &ProjectRepository{root: root}, nil
}

// Root returns the workspace directory.
func (r *ProjectRepository) Root() string {
	return r.root
}

// Dir returns a project's directory.
func (r *ProjectRepository) Dir(projectID string) string {
	return filepath.Join(r.root, projectID)
}

// Create persists a new project. It fails with ErrProjectAlreadyExists if
// the directory is taken.
func (r *ProjectRepository) Create(ctx context.Context, rec *domain.ProjectRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !ValidProjectID(rec.Project.ID) {
		return domain.NewValidationError("id", fmt.Sprintf("invalid project id %q", rec.Project.ID))
	}
	dir := r.Dir(rec.Project.ID)
	if err := os.Mkdir(dir, 0o755); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return domain.ErrProjectAlreadyExists
		}
		return fmt.Errorf("failed to create project dir: %w", err)
	}
	if err := r.write(rec); err != nil {
		os.RemoveAll(dir)
		return err
	}
	return nil
}

// Get loads a project's committed state.
func (r *ProjectRepository) Get(ctx context.Context, projectID string) (*domain.ProjectRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !ValidProjectID(projectID) {
		return nil, domain.ErrProjectNotFound
	}
	data, err := os.ReadFile(filepath.Join(r.Dir(projectID), projectFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, domain.ErrProjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read project %s: %w", projectID, err)
	}
	var rec domain.ProjectRecord
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode project %s: %w", projectID, err)
	}
	for i := range rec.Checklist {
		if rec.Checklist[i].Evidence == nil {
			rec.Checklist[i].Evidence = []domain.Evidence{}
		}
	}
	return &rec, nil
}

// List returns every project, most recently updated first.
func (r *ProjectRepository) List(ctx context.Context) ([]domain.ProjectSummary, error) {
	entries, err := os.ReadDir(r.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read workspace: %w", err)
	}
	summaries := make([]domain.ProjectSummary, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() || !ValidProjectID(e.Name()) {
			continue
		}
		rec, err := r.Get(ctx, e.Name())
		if errors.Is(err, domain.ErrProjectNotFound) {
			// directory without a committed project.yaml
			continue
		}
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, domain.ProjectSummary{
			ID:        rec.Project.ID,
			Name:      rec.Project.Name,
			UpdatedAt: rec.Project.UpdatedAt,
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		if !summaries[i].UpdatedAt.Equal(summaries[j].UpdatedAt) {
			return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
		}
		return summaries[i].ID < summaries[j].ID
	})
	return summaries, nil
}

// Save replaces a project's state. Callers hold the project lock.
func (r *ProjectRepository) Save(ctx context.Context, rec *domain.ProjectRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := os.Stat(filepath.Join(r.Dir(rec.Project.ID), projectFile)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.ErrProjectNotFound
		}
		return err
	}
	return r.write(rec)
}

// write stages the record in a temp file and renames it over project.yaml,
// so readers see either the old or the new state.
func (r *ProjectRepository) write(rec *domain.ProjectRecord) error {
	data, err := yaml.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode project: %w", err)
	}
	dir := r.Dir(rec.Project.ID)
	tmp, err := os.CreateTemp(dir, ".project.*.tmp")
	if err != nil {
		return fmt.Errorf("failed to stage project: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) //nolint:errcheck // no-op after rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to stage project: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync project: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to stage project: %w", err)
	}
	if err := os.Rename(tmpPath, filepath.Join(dir, projectFile)); err != nil {
		return fmt.Errorf("failed to commit project: %w", err)
	}
	return nil
}
