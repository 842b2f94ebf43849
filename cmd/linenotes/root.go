package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"linenotes/internal/config"
	"linenotes/internal/format"
)

func newRootCmd(cfg *config.Config) *cobra.Command {
	var (
		jsonOutput   bool
		outputFormat string
		logLevel     string
		projectRoot  string
	)

	cmd := &cobra.Command{
		Use:           "linenotes",
		Short:         "Linenotes keeps line annotations anchored while code changes",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			warning, err := configureLoggerForCLI(logLevel, cfg.LogLevel)
			if err != nil {
				return err
			}
			if warning != "" {
				fmt.Fprintln(os.Stderr, warning)
			}
			if outputFormat != "" {
				formatter, err := format.ByName(outputFormat)
				if err != nil {
					return err
				}
				outputFormatter = formatter
				jsonOutput = true
			}
			if projectRoot != "" {
				abs, err := filepath.Abs(projectRoot)
				if err != nil {
					return err
				}
				cfg.ProjectRoot = abs
			}
			return nil
		},
	}

	cmd.Version = version
	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output JSON")
	cmd.PersistentFlags().StringVar(&outputFormat, "format", "", "structured output format (json|yaml)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug|info|warn|error)")
	cmd.PersistentFlags().StringVar(&projectRoot, "project", "", "project root (default: current directory)")

	cmd.AddCommand(
		newSrvCmd(cfg),
		newAddCmd(cfg, &jsonOutput),
		newUpdateCmd(cfg, &jsonOutput),
		newRmCmd(cfg, &jsonOutput),
		newShowCmd(cfg, &jsonOutput),
		newFilesCmd(cfg, &jsonOutput),
		newMvCmd(cfg, &jsonOutput),
		newEditCmd(cfg, &jsonOutput),
		newLinesCmd(cfg, &jsonOutput),
		newSyncCmd(cfg, &jsonOutput),
		newPatchCmd(cfg, &jsonOutput),
		newPendingCmd(cfg, &jsonOutput),
		newArchiveCmd(cfg, &jsonOutput),
		newDiscardCmd(cfg, &jsonOutput),
		newHistoryCmd(cfg, &jsonOutput),
		newExportCmd(cfg),
		newInfoCmd(cfg, &jsonOutput),
		newMigrateCmd(cfg, &jsonOutput),
		newConfigCmd(cfg),
		newTokenCmd(),
	)

	return cmd
}
