package admin

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloo-solutions/truststack/internal/config"
	"github.com/cloo-solutions/truststack/internal/registry"
	"github.com/spf13/cobra"
)

func PacksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "packs",
		Short: "Inspect control packs",
		Long:  "List and lint the control packs under the configuration root",
	}

	cmd.AddCommand(PacksListCmd())
	cmd.AddCommand(PacksLintCmd())

	return cmd
}

func PacksListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List packs and their versions",
		RunE:  runPacksList,
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

func runPacksList(cmd *cobra.Command, args []string) error {
	outputFormat, _ := cmd.Flags().GetString("output")

	reg, err := loadRegistry()
	if err != nil {
		return err
	}

	packs := reg.ListPacks()
	if outputFormat == "json" {
		return printJSON(packs)
	}

	if len(packs) == 0 {
		fmt.Println("No packs found")
		return nil
	}
	fmt.Println("Packs:")
	for _, p := range packs {
		fmt.Printf("  %s/%s: %s [%s]\n", p.Domain, p.PackID, p.Name, strings.Join(p.Versions, ", "))
	}
	return nil
}

func PacksLintCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lint",
		Short: "Check the configuration root for problems",
		Long:  "Load the configuration root and report non-fatal problems such as non-semver versions. Exits non-zero when the root fails to load or findings exist.",
		RunE:  runPacksLint,
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

func runPacksLint(cmd *cobra.Command, args []string) error {
	outputFormat, _ := cmd.Flags().GetString("output")

	reg, err := loadRegistry()
	if err != nil {
		return err
	}

	findings := registry.Lint(reg)
	if outputFormat == "json" {
		if findings == nil {
			findings = []registry.Finding{}
		}
		if err := printJSON(findings); err != nil {
			return err
		}
	} else {
		for _, f := range findings {
			fmt.Println(f)
		}
		if len(findings) == 0 {
			fmt.Printf("%s: ok (fingerprint %.12s)\n", reg.Root(), reg.Fingerprint())
		}
	}

	if len(findings) > 0 {
		return fmt.Errorf("%d lint finding(s)", len(findings))
	}
	return nil
}

func TaxonomyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "taxonomy",
		Short: "Print the industry taxonomy",
		RunE:  runTaxonomy,
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

func runTaxonomy(cmd *cobra.Command, args []string) error {
	outputFormat, _ := cmd.Flags().GetString("output")

	reg, err := loadRegistry()
	if err != nil {
		return err
	}

	industries := reg.ListIndustries()
	if outputFormat == "json" {
		return printJSON(industries)
	}

	for _, ind := range industries {
		fmt.Printf("%s: %s\n", ind.ID, ind.Name)
		for _, seg := range ind.Segments {
			fmt.Printf("  %s: %s\n", seg.ID, seg.Name)
			for _, uc := range seg.UseCases {
				fmt.Printf("    %s: %s (%d questions)\n", uc.ID, uc.Name, len(uc.ScopeQuestions))
			}
		}
	}
	return nil
}

func loadRegistry() (*registry.Registry, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	reg, err := registry.Load(cfg.ConfigRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to load registry: %w", err)
	}
	return reg, nil
}

func printJSON(v any) error {
	jsonBytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(jsonBytes))
	return nil
}
