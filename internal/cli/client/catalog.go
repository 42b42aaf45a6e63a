package client

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/cloo-solutions/truststack/internal/domain"
	"github.com/spf13/cobra"
)

func IndustriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "industries [industry-id]",
		Short: "Browse the industry taxonomy and its scope questions",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			path := "/api/industries"
			if len(args) == 1 {
				path += "/" + url.PathEscape(args[0])
			}
			resp, err := api.Get(path)
			if err != nil {
				return fmt.Errorf("failed to get industries: %w", err)
			}

			if outputJSON {
				fmt.Println(string(resp.Data))
				return nil
			}

			var industries []domain.Industry
			if len(args) == 1 {
				var one domain.Industry
				if err := json.Unmarshal(resp.Data, &one); err != nil {
					return fmt.Errorf("failed to parse response: %w", err)
				}
				industries = append(industries, one)
			} else if err := json.Unmarshal(resp.Data, &industries); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}

			for _, ind := range industries {
				fmt.Printf("%s: %s\n", ind.ID, ind.Name)
				for _, seg := range ind.Segments {
					fmt.Printf("  %s: %s\n", seg.ID, seg.Name)
					for _, uc := range seg.UseCases {
						fmt.Printf("    %s: %s\n", uc.ID, uc.Name)
						if len(args) == 0 {
							continue
						}
						for _, q := range uc.ScopeQuestions {
							fmt.Printf("      - %s (%s) %s\n", q.ID, q.Type, q.Prompt)
						}
					}
				}
			}
			return nil
		},
	}
}

func PacksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "packs",
		Short: "List available control packs",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			resp, err := api.Get("/api/packs")
			if err != nil {
				return fmt.Errorf("failed to list packs: %w", err)
			}

			if outputJSON {
				fmt.Println(string(resp.Data))
				return nil
			}

			var packs []domain.PackListing
			if err := json.Unmarshal(resp.Data, &packs); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}
			for _, p := range packs {
				for _, v := range p.Versions {
					ref := domain.PackRef{Domain: p.Domain, PackID: p.PackID, Version: v}
					fmt.Printf("  %-40s %s\n", ref, p.Name)
				}
			}
			if len(packs) == 0 {
				fmt.Println("No packs found")
			}
			return nil
		},
	}
}

func InitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Save the server URL and actor to the user config",
		Long:  "Writes --server and --actor to the user config file so later commands can omit them.",
		RunE: func(cmd *cobra.Command, args []string) error {
			server, _ := cmd.Flags().GetString("server")
			actor, _ := cmd.Flags().GetString("actor")

			config, err := LoadGlobalConfig()
			if err != nil {
				return err
			}
			if config == nil {
				config = &GlobalConfig{APIURL: defaultAPIURL}
			}
			if server != "" {
				config.APIURL = strings.TrimRight(server, "/")
			}
			if actor != "" {
				config.Actor = actor
			}
			if err := SaveGlobalConfig(config); err != nil {
				return err
			}

			path, _ := GetConfigPath()
			fmt.Printf("Saved %s (server %s, actor %q)\n", path, config.APIURL, config.Actor)
			return nil
		},
	}
}
