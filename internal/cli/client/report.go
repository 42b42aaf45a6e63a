package client

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func ReportCmd() *cobra.Command {
	var (
		format string
		asOf   string
		output string
	)

	cmd := &cobra.Command{
		Use:   "report <project-id>",
		Short: "Render a project report",
		Long:  "Render a project report as html, csv, pdf or json. The file name defaults to the one suggested by the server.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			q.Set("format", format)
			if asOf != "" {
				if _, err := time.Parse(time.RFC3339, asOf); err != nil {
					return fmt.Errorf("--as-of must be an RFC 3339 timestamp: %w", err)
				}
				q.Set("as_of", asOf)
			}

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			written, err := api.Download("/api/projects/"+url.PathEscape(args[0])+"/report?"+q.Encode(), output, nil)
			if err != nil {
				return fmt.Errorf("failed to render report: %w", err)
			}
			if written != "-" {
				fmt.Fprintf(os.Stderr, "Saved %s\n", written)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "F", "html", "Report format (html, csv, pdf or json)")
	cmd.Flags().StringVar(&asOf, "as-of", "", "Report timestamp (RFC 3339), defaults to now")
	cmd.Flags().StringVarP(&output, "out", "O", "", "Output path, - for stdout")

	return cmd
}
