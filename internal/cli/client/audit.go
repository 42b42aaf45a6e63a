package client

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/cloo-solutions/truststack/internal/domain"
	"github.com/spf13/cobra"
)

type auditPage struct {
	Items   []domain.AuditEvent `json:"items"`
	Cursor  string              `json:"cursor,omitempty"`
	HasMore bool                `json:"has_more"`
}

func AuditCmd() *cobra.Command {
	var (
		limit  int
		cursor string
	)

	cmd := &cobra.Command{
		Use:   "audit <project-id>",
		Short: "Show a project's audit log, oldest first",
		Args:  cobra.ExactArgs(1),
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
			resp, err := api.Get("/api/projects/" + url.PathEscape(args[0]) + "/audit?" + q.Encode())
			if err != nil {
				return fmt.Errorf("failed to read audit log: %w", err)
			}

			if outputJSON {
				fmt.Println(string(resp.Data))
				return nil
			}

			var page auditPage
			if err := json.Unmarshal(resp.Data, &page); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}
			for _, ev := range page.Items {
				line := fmt.Sprintf("  %s %-24s %s", ev.At.Format("2006-01-02 15:04:05"), ev.Type, ev.Actor)
				if ev.ItemID != "" {
					line += " item=" + ev.ItemID
				}
				fmt.Println(line)
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
