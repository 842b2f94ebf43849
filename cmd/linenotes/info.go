package main

import (
	"github.com/spf13/cobra"

	"linenotes/internal/api"
	"linenotes/internal/config"
)

func newInfoCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show project and storage info",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.GetInfo(cmd.Context())
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}

				_ = writePlain("project_root: %s\n", resp.ProjectRoot)
				_ = writePlain("backend: %s\n", resp.Backend)
				_ = writePlain("location: %s\n", resp.Location)
				_ = writePlain("files: %d\n", resp.Files)
				_ = writePlain("annotations: %d\n", resp.Annotations)
				return writePlain("pending: %d in %d files\n", resp.Pending, resp.PendingFiles)
			})
		},
	}
}
