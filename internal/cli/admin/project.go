package admin

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/cloo-solutions/truststack/internal/config"
	"github.com/cloo-solutions/truststack/internal/metrics"
	"github.com/cloo-solutions/truststack/internal/pagination"
	"github.com/cloo-solutions/truststack/internal/registry"
	"github.com/cloo-solutions/truststack/internal/repository"
	"github.com/cloo-solutions/truststack/internal/service"
	"github.com/spf13/cobra"
)

func ProjectsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "Maintain stored projects",
	}

	cmd.AddCommand(ProjectsRegenerateCmd())

	return cmd
}

func ProjectsRegenerateCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "regenerate [project-id...]",
		Short: "Regenerate checklists against the current registry",
		Long:  "Regenerate the checklist of each named project, or of every project with --all, keeping stored answers and pack selections.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) == 0 {
				return fmt.Errorf("name at least one project or pass --all")
			}
			actor, _ := cmd.Flags().GetString("actor")
			return runProjectsRegenerate(args, all, actor)
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Regenerate every project in the workspace")
	cmd.Flags().String("actor", "admin", "Actor recorded in the audit log")

	return cmd
}

func runProjectsRegenerate(ids []string, all bool, actor string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	reg, err := registry.Load(cfg.ConfigRoot)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	repo, err := repository.NewProjectRepository(cfg.WorkspaceRoot)
	if err != nil {
		return fmt.Errorf("failed to open workspace: %w", err)
	}
	if cfg.LockBackend == config.LockBackendMemory {
		log.Println("warning: memory lock backend does not coordinate with a running server")
	}

	b, err := connectBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	var auditMirror service.AuditMirror
	if b.pool != nil {
		auditMirror = repository.NewAuditMirrorRepository(b.pool)
	}
	svc := service.NewProjectService(repo, registry.NewHolder(reg), newLocker(cfg, b), auditMirror, metrics.New())

	if all {
		summaries, err := repo.List(ctx)
		if err != nil {
			return fmt.Errorf("failed to list projects: %w", err)
		}
		ids = ids[:0]
		for _, s := range summaries {
			ids = append(ids, s.ID)
		}
		sort.Strings(ids)
	}

	failed := 0
	for _, id := range ids {
		cl, err := svc.Regenerate(ctx, service.RegenerateInput{ProjectID: id, Actor: actor})
		if err != nil {
			failed++
			fmt.Printf("  %s: %v\n", id, err)
			continue
		}
		fmt.Printf("  %s: %d items (%d orphaned)\n", id, cl.Counts.Total, cl.Counts.Orphaned)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d project(s) failed to regenerate", failed, len(ids))
	}
	return nil
}

func AuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Query the audit mirror",
		Long:  "Query audit events mirrored into Postgres. Requires TRUSTSTACK_DATABASE_URL.",
	}

	cmd.AddCommand(AuditStatsCmd())
	cmd.AddCommand(AuditListCmd())

	return cmd
}

func AuditStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Count mirrored events by type",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputFormat, _ := cmd.Flags().GetString("output")
			return runAuditStats(outputFormat)
		},
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

func runAuditStats(outputFormat string) error {
	ctx := context.Background()

	mirror, closeFn, err := openAuditMirror(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	counts, err := mirror.CountByType(ctx)
	if err != nil {
		return fmt.Errorf("failed to count audit events: %w", err)
	}

	if outputFormat == "json" {
		return printJSON(counts)
	}

	types := make([]string, 0, len(counts))
	for typ := range counts {
		types = append(types, typ)
	}
	sort.Strings(types)
	if len(types) == 0 {
		fmt.Println("No audit events mirrored")
		return nil
	}
	for _, typ := range types {
		fmt.Printf("  %-24s %d\n", typ, counts[typ])
	}
	return nil
}

func AuditListCmd() *cobra.Command {
	var (
		limit  int
		cursor string
	)

	cmd := &cobra.Command{
		Use:   "list <project-id>",
		Short: "List mirrored events of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputFormat, _ := cmd.Flags().GetString("output")
			return runAuditList(args[0], outputFormat, limit, cursor)
		},
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum number of results")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Pagination cursor from previous response")

	return cmd
}

func runAuditList(projectID, outputFormat string, limit int, cursorStr string) error {
	ctx := context.Background()

	mirror, closeFn, err := openAuditMirror(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	cursor, err := pagination.DecodeCursor(cursorStr)
	if err != nil {
		return fmt.Errorf("invalid cursor: %w", err)
	}
	result, err := mirror.ListByProjectWithCursor(ctx, projectID, cursor, limit)
	if err != nil {
		return fmt.Errorf("failed to list audit events: %w", err)
	}

	if outputFormat == "json" {
		return printJSON(result)
	}

	if len(result.Items) == 0 {
		fmt.Println("No audit events found")
		return nil
	}
	for _, ev := range result.Items {
		line := fmt.Sprintf("  %s %-24s %s", ev.At.Format("2006-01-02 15:04:05"), ev.Type, ev.Actor)
		if ev.ItemID != "" {
			line += " item=" + ev.ItemID
		}
		fmt.Println(line)
	}
	if result.HasMore && result.Cursor != "" {
		fmt.Printf("\nMore results available. Use --cursor %s\n", result.Cursor)
	}
	return nil
}

func openAuditMirror(ctx context.Context) (*repository.AuditMirrorRepository, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if !cfg.HasDatabase() {
		return nil, nil, fmt.Errorf("audit mirror requires TRUSTSTACK_DATABASE_URL")
	}
	b, err := connectBackends(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return repository.NewAuditMirrorRepository(b.pool), b.Close, nil
}
