package client

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/cloo-solutions/truststack/internal/domain"
	"github.com/spf13/cobra"
)

type checklistFilter struct {
	status   string
	domain   string
	orphaned bool
}

func (f checklistFilter) match(it domain.ChecklistItem) bool {
	if f.status != "" && string(it.Status) != f.status {
		return false
	}
	if f.domain != "" && it.Domain != f.domain {
		return false
	}
	if f.orphaned && !it.Orphaned {
		return false
	}
	return true
}

func ChecklistCmd() *cobra.Command {
	var filter checklistFilter

	cmd := &cobra.Command{
		Use:   "checklist <project-id>",
		Short: "Show a project's checklist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			resp, err := api.Get("/api/projects/" + url.PathEscape(args[0]) + "/checklist")
			if err != nil {
				return fmt.Errorf("failed to get checklist: %w", err)
			}
			return printChecklist(resp, outputJSON, filter)
		},
	}

	cmd.Flags().StringVar(&filter.status, "status", "", "Only items with this status")
	cmd.Flags().StringVar(&filter.domain, "domain", "", "Only items of this domain")
	cmd.Flags().BoolVar(&filter.orphaned, "orphaned", false, "Only items that no longer apply")

	return cmd
}

func printChecklist(resp *APIResponse, outputJSON bool, filter checklistFilter) error {
	if outputJSON {
		fmt.Println(string(resp.Data))
		return nil
	}

	var cl domain.Checklist
	if err := json.Unmarshal(resp.Data, &cl); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	currentDomain := ""
	for _, it := range cl.Items {
		if !filter.match(it) {
			continue
		}
		if it.Domain != currentDomain {
			currentDomain = it.Domain
			fmt.Printf("\n%s\n", strings.ToUpper(currentDomain))
		}
		marker := ""
		if it.Orphaned {
			marker = " (no longer applicable)"
		}
		fmt.Printf("  %s  [%-8s] %-15s %s%s\n", it.ItemID, it.Severity, it.Status, it.Title, marker)
		if it.Owner != "" {
			fmt.Printf("      owner: %s\n", it.Owner)
		}
		if n := len(it.Evidence); n > 0 {
			fmt.Printf("      evidence: %d file(s)\n", n)
		}
	}

	fmt.Printf("\n%d items, %d orphaned", cl.Counts.Total, cl.Counts.Orphaned)
	for _, s := range domain.ItemStatuses {
		if n := cl.Counts.ByStatus[s]; n > 0 {
			fmt.Printf(", %d %s", n, strings.ReplaceAll(string(s), "_", " "))
		}
	}
	fmt.Println()
	return nil
}

type patchItemRequest struct {
	Status *string `json:"status,omitempty"`
	Owner  *string `json:"owner,omitempty"`
	Notes  *string `json:"notes,omitempty"`
}

func ItemCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "item",
		Short: "Update checklist items",
	}

	cmd.AddCommand(itemSetCmd())

	return cmd
}

func itemSetCmd() *cobra.Command {
	var status, owner, notes string

	cmd := &cobra.Command{
		Use:   "set <project-id> <item-id>",
		Short: "Set the status, owner or notes of an item",
		Long:  "Set fields of a checklist item. Only the flags given are changed; pass an empty value (--owner \"\") to clear a field.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")

			var req patchItemRequest
			if cmd.Flags().Changed("status") {
				req.Status = &status
			}
			if cmd.Flags().Changed("owner") {
				req.Owner = &owner
			}
			if cmd.Flags().Changed("notes") {
				req.Notes = &notes
			}
			if req.Status == nil && req.Owner == nil && req.Notes == nil {
				return fmt.Errorf("nothing to change: pass --status, --owner or --notes")
			}

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			path := "/api/projects/" + url.PathEscape(args[0]) + "/checklist/" + url.PathEscape(args[1])
			resp, err := api.Patch(path, req)
			if err != nil {
				return fmt.Errorf("failed to update item: %w", err)
			}

			if outputJSON {
				fmt.Println(string(resp.Data))
				return nil
			}
			var item domain.ChecklistItem
			if err := json.Unmarshal(resp.Data, &item); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}
			fmt.Printf("%s: %s (%s)\n", item.ItemID, item.Status, item.Title)
			return nil
		},
	}

	cmd.Flags().StringVarP(&status, "status", "s", "", "not_started, in_progress, implemented, not_applicable or risk_accepted")
	cmd.Flags().StringVar(&owner, "owner", "", "Owner of the item")
	cmd.Flags().StringVar(&notes, "notes", "", "Free-form notes")

	return cmd
}
