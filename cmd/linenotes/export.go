package main

import (
	"os"

	"github.com/spf13/cobra"

	"linenotes/internal/api"
	"linenotes/internal/config"
	"linenotes/internal/format"
)

func newExportCmd(cfg *config.Config) *cobra.Command {
	var outputPath, formatName string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export annotations, pending candidates and the archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter, err := format.ByName(formatName)
			if err != nil {
				return err
			}
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.Export(cmd.Context())
				if err != nil {
					return err
				}
				w := os.Stdout
				if outputPath != "" {
					f, err := os.Create(outputPath)
					if err != nil {
						return err
					}
					defer f.Close()
					w = f
				}
				return formatter.Write(w, resp)
			})
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().StringVar(&formatName, "as", "json", "export format (json|yaml)")
	return cmd
}
