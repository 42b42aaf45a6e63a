package client

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"

	"github.com/cloo-solutions/truststack/internal/domain"
	"github.com/spf13/cobra"
)

func EvidenceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evidence",
		Short: "Upload and download evidence files",
	}

	cmd.AddCommand(evidenceUploadCmd())
	cmd.AddCommand(evidenceDownloadCmd())

	return cmd
}

func evidenceUploadCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "upload <project-id> <item-id> <file>",
		Short: "Attach a file to a checklist item",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			quiet, _ := cmd.Flags().GetBool("quiet")

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			var progress ProgressFunc
			if !quiet && !outputJSON {
				progress = stderrProgress("uploading")
			}
			path := "/api/projects/" + url.PathEscape(args[0]) + "/checklist/" + url.PathEscape(args[1]) + "/evidence"
			resp, err := api.UploadFile(path, args[2], name, progress)
			if progress != nil {
				fmt.Fprintln(os.Stderr)
			}
			if err != nil {
				return fmt.Errorf("failed to upload evidence: %w", err)
			}

			if outputJSON {
				fmt.Println(string(resp.Data))
				return nil
			}
			var ev domain.Evidence
			if err := json.Unmarshal(resp.Data, &ev); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}
			fmt.Printf("Uploaded %s (%d bytes, sha256 %s)\n", ev.FileName, ev.Size, ev.SHA256)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Stored file name (defaults to the local name)")
	cmd.Flags().BoolP("quiet", "q", false, "Do not print progress")

	return cmd
}

func evidenceDownloadCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "download <project-id> <sha256>",
		Short: "Download an evidence file by its hash",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			path := "/api/projects/" + url.PathEscape(args[0]) + "/evidence/" + url.PathEscape(args[1])
			written, err := api.Download(path, output, nil)
			if err != nil {
				return fmt.Errorf("failed to download evidence: %w", err)
			}
			if written != "-" {
				fmt.Fprintf(os.Stderr, "Saved %s\n", written)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "out", "O", "", "Output path, - for stdout (defaults to the stored file name)")

	return cmd
}

func stderrProgress(label string) ProgressFunc {
	return func(current, total int64) {
		if total > 0 {
			fmt.Fprintf(os.Stderr, "\r%s: %d%%", label, current*100/total)
			return
		}
		fmt.Fprintf(os.Stderr, "\r%s: %d bytes", label, current)
	}
}
