package client

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloo-solutions/truststack/internal/domain"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// ProjectFile is the on-disk description accepted by "projects create -f".
// JSON files parse too.
type ProjectFile struct {
	Name          string         `yaml:"name" json:"name"`
	Description   string         `yaml:"description" json:"description,omitempty"`
	IndustryID    string         `yaml:"industry_id" json:"industry_id"`
	SegmentID     string         `yaml:"segment_id" json:"segment_id"`
	UseCaseID     string         `yaml:"use_case_id" json:"use_case_id"`
	ScopeAnswers  map[string]any `yaml:"scope_answers" json:"scope_answers"`
	SelectedPacks []string       `yaml:"selected_packs" json:"-"`
}

type createProjectRequest struct {
	ProjectFile
	Packs []domain.PackRef `json:"selected_packs"`
}

type regenerateRequest struct {
	ScopeAnswers  map[string]any   `json:"scope_answers,omitempty"`
	SelectedPacks []domain.PackRef `json:"selected_packs,omitempty"`
}

type projectSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	UpdatedAt time.Time `json:"updated_at"`
}

type projectPage struct {
	Items   []projectSummary `json:"items"`
	Cursor  string           `json:"cursor,omitempty"`
	HasMore bool             `json:"has_more"`
}

type projectView struct {
	Project    domain.Project       `json:"project"`
	Inputs     domain.ProjectInputs `json:"inputs"`
	Generation domain.Generation    `json:"generation"`
}

func ProjectsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "projects",
		Aliases: []string{"project"},
		Short:   "Create and inspect assessment projects",
	}

	cmd.AddCommand(projectsCreateCmd())
	cmd.AddCommand(projectsListCmd())
	cmd.AddCommand(projectsGetCmd())
	cmd.AddCommand(projectsRegenerateCmd())

	return cmd
}

func projectsCreateCmd() *cobra.Command {
	var (
		file    string
		pf      ProjectFile
		answers []string
		packs   []string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a project and generate its checklist",
		Long: `Create a project from flags, a YAML/JSON file (-f), or both. Flags override the file.

Answers are given as id=value; values parse as YAML scalars or lists,
so processes_biometric_data=true is a boolean and regions=[eu,us] a list.
Packs are given as domain/pack@version.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			base := ProjectFile{}
			if file != "" {
				loaded, err := LoadProjectFile(file)
				if err != nil {
					return err
				}
				base = *loaded
			}
			mergeProjectFlags(&base, pf)

			parsedAnswers, err := ParseAnswers(answers)
			if err != nil {
				return err
			}
			if base.ScopeAnswers == nil {
				base.ScopeAnswers = map[string]any{}
			}
			for k, v := range parsedAnswers {
				base.ScopeAnswers[k] = v
			}
			base.SelectedPacks = append(base.SelectedPacks, packs...)

			outputJSON, _ := cmd.Flags().GetBool("output")
			return runProjectsCreate(cmd, base, outputJSON)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Project description file (YAML or JSON)")
	cmd.Flags().StringVar(&pf.Name, "name", "", "Project name")
	cmd.Flags().StringVar(&pf.Description, "description", "", "Project description")
	cmd.Flags().StringVar(&pf.IndustryID, "industry", "", "Industry id")
	cmd.Flags().StringVar(&pf.SegmentID, "segment", "", "Segment id")
	cmd.Flags().StringVar(&pf.UseCaseID, "use-case", "", "Use case id")
	cmd.Flags().StringArrayVarP(&answers, "answer", "a", nil, "Scope answer as id=value (repeatable)")
	cmd.Flags().StringArrayVarP(&packs, "pack", "p", nil, "Pack as domain/pack@version (repeatable)")

	return cmd
}

func mergeProjectFlags(dst *ProjectFile, flags ProjectFile) {
	if flags.Name != "" {
		dst.Name = flags.Name
	}
	if flags.Description != "" {
		dst.Description = flags.Description
	}
	if flags.IndustryID != "" {
		dst.IndustryID = flags.IndustryID
	}
	if flags.SegmentID != "" {
		dst.SegmentID = flags.SegmentID
	}
	if flags.UseCaseID != "" {
		dst.UseCaseID = flags.UseCaseID
	}
}

// LoadProjectFile reads a project description.
func LoadProjectFile(path string) (*ProjectFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var pf ProjectFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &pf, nil
}

// ParseAnswers converts id=value pairs into scope answers.
func ParseAnswers(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		id, raw, ok := strings.Cut(pair, "=")
		id = strings.TrimSpace(id)
		if !ok || id == "" {
			return nil, fmt.Errorf("answer %q: expected id=value", pair)
		}
		var v any
		if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("answer %q: %w", pair, err)
		}
		if v == nil {
			v = raw
		}
		out[id] = v
	}
	return out, nil
}

// ParsePacks converts domain/pack@version strings into references.
func ParsePacks(values []string) ([]domain.PackRef, error) {
	refs := make([]domain.PackRef, 0, len(values))
	for _, v := range values {
		ref, err := domain.ParsePackRef(strings.TrimSpace(v))
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func runProjectsCreate(cmd *cobra.Command, pf ProjectFile, outputJSON bool) error {
	refs, err := ParsePacks(pf.SelectedPacks)
	if err != nil {
		return err
	}

	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Post("/api/projects", createProjectRequest{ProjectFile: pf, Packs: refs})
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}

	if outputJSON {
		fmt.Println(string(resp.Data))
		return nil
	}

	var created struct {
		ProjectID string `json:"project_id"`
	}
	if err := json.Unmarshal(resp.Data, &created); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	fmt.Printf("Project created: %s\n", created.ProjectID)
	return nil
}

func projectsListCmd() *cobra.Command {
	var (
		limit  int
		cursor string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects, most recently updated first",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			q := url.Values{}
			q.Set("limit", strconv.Itoa(limit))
			if cursor != "" {
				q.Set("cursor", cursor)
			}
			resp, err := api.Get("/api/projects?" + q.Encode())
			if err != nil {
				return fmt.Errorf("failed to list projects: %w", err)
			}

			if outputJSON {
				fmt.Println(string(resp.Data))
				return nil
			}

			var page projectPage
			if err := json.Unmarshal(resp.Data, &page); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}
			if len(page.Items) == 0 {
				fmt.Println("No projects found")
				return nil
			}
			for _, p := range page.Items {
				fmt.Printf("  %s: %s (updated: %s)\n", p.ID, p.Name, p.UpdatedAt.Format("2006-01-02 15:04:05"))
			}
			if page.HasMore && page.Cursor != "" {
				fmt.Printf("\nMore results available. Use --cursor %s\n", page.Cursor)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum number of results")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Pagination cursor from previous response")

	return cmd
}

func projectsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <project-id>",
		Short: "Show a project's inputs and generation metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			resp, err := api.Get("/api/projects/" + url.PathEscape(args[0]))
			if err != nil {
				return fmt.Errorf("failed to get project: %w", err)
			}

			if outputJSON {
				fmt.Println(string(resp.Data))
				return nil
			}

			var view projectView
			if err := json.Unmarshal(resp.Data, &view); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}
			fmt.Printf("%s (%s), revision %d\n", view.Project.Name, view.Project.ID, view.Project.Revision)
			if view.Project.Description != "" {
				fmt.Println(view.Project.Description)
			}
			fmt.Printf("Scope: %s / %s / %s\n", view.Inputs.IndustryID, view.Inputs.SegmentID, view.Inputs.UseCaseID)
			for _, ref := range view.Inputs.SelectedPacks {
				fmt.Printf("  pack %s\n", ref)
			}
			fmt.Printf("Generated %s by %s (checklist %.12s)\n",
				view.Generation.GeneratedAt.Format(time.RFC3339), view.Generation.GeneratorVersion, view.Generation.ChecklistHash)
			return nil
		},
	}
}

func projectsRegenerateCmd() *cobra.Command {
	var (
		answers []string
		packs   []string
	)

	cmd := &cobra.Command{
		Use:   "regenerate <project-id>",
		Short: "Regenerate a checklist, optionally with new answers or packs",
		Long:  "Regenerate a project's checklist. --answer replaces the stored answers as a whole, --pack the pack selection; omitted, the stored values are kept.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")

			var req regenerateRequest
			if len(answers) > 0 {
				parsed, err := ParseAnswers(answers)
				if err != nil {
					return err
				}
				req.ScopeAnswers = parsed
			}
			if len(packs) > 0 {
				refs, err := ParsePacks(packs)
				if err != nil {
					return err
				}
				req.SelectedPacks = refs
			}

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			resp, err := api.Post("/api/projects/"+url.PathEscape(args[0])+"/regenerate", req)
			if err != nil {
				return fmt.Errorf("failed to regenerate: %w", err)
			}
			return printChecklist(resp, outputJSON, checklistFilter{})
		},
	}

	cmd.Flags().StringArrayVarP(&answers, "answer", "a", nil, "Scope answer as id=value (repeatable)")
	cmd.Flags().StringArrayVarP(&packs, "pack", "p", nil, "Pack as domain/pack@version (repeatable)")

	return cmd
}
