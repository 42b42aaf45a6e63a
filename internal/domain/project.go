package domain

import (
	"fmt"
	"time"
)

// Project is the metadata of an assessed AI system
type Project struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" yaml:"updated_at"`
	Revision    int64     `json:"revision" yaml:"revision"`
}

// ProjectInputs is the declared context a checklist is derived from
type ProjectInputs struct {
	IndustryID    string         `json:"industry_id" yaml:"industry_id"`
	SegmentID     string         `json:"segment_id" yaml:"segment_id"`
	UseCaseID     string         `json:"use_case_id" yaml:"use_case_id"`
	ScopeAnswers  map[string]any `json:"scope_answers" yaml:"scope_answers"`
	SelectedPacks []PackRef      `json:"selected_packs" yaml:"selected_packs"`
}

// Generation records which registry content produced the current checklist
type Generation struct {
	GeneratorVersion string            `json:"generator_version" yaml:"generator_version"`
	TaxonomyHash     string            `json:"taxonomy_hash" yaml:"taxonomy_hash"`
	PackHashes       map[string]string `json:"pack_hashes" yaml:"pack_hashes"`
	ChecklistHash    string            `json:"checklist_hash" yaml:"checklist_hash"`
	GeneratedAt      time.Time         `json:"generated_at" yaml:"generated_at"`
}

// ProjectRecord is everything persisted for one project, stored as a single unit
type ProjectRecord struct {
	Project    Project         `json:"project" yaml:"project"`
	Inputs     ProjectInputs   `json:"inputs" yaml:"inputs"`
	Generation Generation      `json:"generation" yaml:"generation"`
	Checklist  []ChecklistItem `json:"checklist" yaml:"checklist"`
}

// Item returns a pointer to the checklist item with the given id.
func (r *ProjectRecord) Item(itemID string) (*ChecklistItem, bool) {
	for i := range r.Checklist {
		if r.Checklist[i].ItemID == itemID {
			return &r.Checklist[i], true
		}
	}
	return nil, false
}

// ProjectSummary is the list view of a project
type ProjectSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewProject creates a new Project instance
func NewProject(id, name, description string, createdAt time.Time) *Project {
	return &Project{
		ID:          id,
		Name:        name,
		Description: description,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
}

// ValidateProject validates a Project instance
func ValidateProject(p *Project) error {
	if p == nil {
		return fmt.Errorf("project cannot be nil")
	}

	if p.ID == "" {
		return fmt.Errorf("project ID is required")
	}

	if p.Name == "" {
		return fmt.Errorf("project Name is required")
	}

	return nil
}
