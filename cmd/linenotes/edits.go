package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"linenotes/internal/api"
	"linenotes/internal/config"
	"linenotes/internal/models"
)

func newEditCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var (
		edit       models.EditDescriptor
		beforePath string
	)

	cmd := &cobra.Command{
		Use:   "edit <path>",
		Short: "Remap a file for one editor change given its pre-edit content",
		Args:  requireRangeArgs(1, 1, "path is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := projectPath(cfg.ProjectRoot, args[0])
			if err != nil {
				return err
			}
			before, err := readInput(beforePath)
			if err != nil {
				return err
			}
			req := api.EditRequest{Path: path, Edit: edit, Before: before}
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.ApplyEdit(cmd.Context(), req)
				return writeRemapResult(resp, err, *jsonOutput)
			})
		},
	}

	cmd.Flags().IntVar(&edit.Offset, "offset", 0, "character offset of the change")
	cmd.Flags().IntVar(&edit.OldLength, "old-length", 0, "number of characters replaced")
	cmd.Flags().IntVar(&edit.NewLength, "new-length", 0, "number of characters inserted")
	cmd.Flags().IntVar(&edit.LineCountBefore, "lines-before", 0, "line count before the change")
	cmd.Flags().IntVar(&edit.LineCountAfter, "lines-after", 0, "line count after the change")
	cmd.Flags().StringVar(&beforePath, "before", "", "file holding the pre-edit content (- for stdin)")
	_ = cmd.MarkFlagRequired("before")
	return cmd
}

func newLinesCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var after, delta int

	cmd := &cobra.Command{
		Use:   "lines <path>",
		Short: "Shift annotations below a line by a line delta",
		Long: "Shift annotations below a line by a line delta. A negative delta removes\n" +
			"the lines right after --after and stages their annotations as pending.",
		Args: requireRangeArgs(1, 1, "path is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := projectPath(cfg.ProjectRoot, args[0])
			if err != nil {
				return err
			}
			if after < 0 {
				return fmt.Errorf("--after must be >= 0")
			}
			req := api.LineChangesRequest{
				Path:    path,
				Changes: []models.LineChange{{StartLine: after - 1, Delta: delta}},
			}
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.ApplyLineChanges(cmd.Context(), req)
				return writeRemapResult(resp, err, *jsonOutput)
			})
		},
	}

	cmd.Flags().IntVar(&after, "after", 0, "last unchanged line (0 for the top of the file)")
	cmd.Flags().IntVar(&delta, "delta", 0, "lines inserted (positive) or removed (negative)")
	_ = cmd.MarkFlagRequired("delta")
	return cmd
}

func newSyncCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var beforePath, afterPath string

	cmd := &cobra.Command{
		Use:   "sync <path>",
		Short: "Remap a file from its previous and current content",
		Args:  requireRangeArgs(1, 1, "path is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := projectPath(cfg.ProjectRoot, args[0])
			if err != nil {
				return err
			}
			before, err := readInput(beforePath)
			if err != nil {
				return err
			}
			if afterPath == "" {
				afterPath = filepath.Join(cfg.ProjectRoot, filepath.FromSlash(path))
			}
			after, err := readInput(afterPath)
			if err != nil {
				return err
			}
			req := api.SyncRequest{Path: path, Before: before, After: after}
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.Sync(cmd.Context(), req)
				return writeRemapResult(resp, err, *jsonOutput)
			})
		},
	}

	cmd.Flags().StringVar(&beforePath, "before", "", "file holding the previous content (- for stdin)")
	cmd.Flags().StringVar(&afterPath, "after", "", "file holding the current content (default: the file itself)")
	_ = cmd.MarkFlagRequired("before")
	return cmd
}

func newPatchCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "patch [<file>]",
		Short: "Remap every file touched by a unified diff (default: stdin)",
		Args:  requireRangeArgs(0, 1, "at most one patch file is accepted"),
		RunE: func(cmd *cobra.Command, args []string) error {
			source := "-"
			if len(args) == 1 {
				source = args[0]
			}
			patch, err := readInput(source)
			if err != nil {
				return err
			}
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.ApplyPatch(cmd.Context(), api.PatchRequest{Patch: patch})
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				writeWarning(resp.Warning)
				for _, res := range resp.Results {
					if err := writeRemap(res); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func writeRemapResult(resp api.RemapResponse, err error, jsonOutput bool) error {
	if err != nil {
		return err
	}
	if jsonOutput {
		return writeJSON(resp)
	}
	writeWarning(resp.Warning)
	return writeRemap(resp)
}

// readInput reads a whole file, or stdin for "-".
func readInput(path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		return string(data), err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
