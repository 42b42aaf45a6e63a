package main

import (
	"fmt"
	"os"

	"github.com/cloo-solutions/truststack/internal/cli"
	"github.com/cloo-solutions/truststack/internal/cli/admin"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "truststackd",
		Short: "TrustStack daemon and admin CLI",
		Long:  "TrustStack daemon for running the API server and maintaining the registry, workspace and audit mirror",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.PacksCmd())
	rootCmd.AddCommand(admin.TaxonomyCmd())
	rootCmd.AddCommand(admin.ProjectsCmd())
	rootCmd.AddCommand(admin.AuditCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
