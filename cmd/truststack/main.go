package main

import (
	"fmt"
	"os"

	"github.com/cloo-solutions/truststack/internal/cli"
	"github.com/cloo-solutions/truststack/internal/cli/client"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "truststack",
		Short: "TrustStack CLI - AI governance checklists",
		Long: `TrustStack CLI drives a truststackd server: create projects, work
through their checklists, attach evidence and render reports.

Environment variables:
  TRUSTSTACK_API_URL   API base URL (default: http://localhost:8080)
  TRUSTSTACK_ACTOR     Name recorded in the audit log`,
		Version:      version,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("server", "", "API base URL (overrides env and config)")
	rootCmd.PersistentFlags().String("actor", "", "Actor recorded in the audit log (overrides env and config)")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.InitCmd())
	rootCmd.AddCommand(client.IndustriesCmd())
	rootCmd.AddCommand(client.PacksCmd())
	rootCmd.AddCommand(client.ProjectsCmd())
	rootCmd.AddCommand(client.ChecklistCmd())
	rootCmd.AddCommand(client.ItemCmd())
	rootCmd.AddCommand(client.EvidenceCmd())
	rootCmd.AddCommand(client.ReportCmd())
	rootCmd.AddCommand(client.AuditCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
