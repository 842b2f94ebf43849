package main

import (
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"linenotes/internal/api"
	"linenotes/internal/config"
)

func newAddCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var author string

	cmd := &cobra.Command{
		Use:   "add <path> <line> <text...>",
		Short: "Annotate a line, replacing any annotation already there",
		Args:  requireAtLeastArgs(3, "path, line and text are required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := projectPath(cfg.ProjectRoot, args[0])
			if err != nil {
				return err
			}
			line, err := parseLine(args[1])
			if err != nil {
				return err
			}
			req := api.CommentCreateRequest{
				Path:   path,
				Line:   &line,
				Text:   strings.Join(args[2:], " "),
				Author: author,
			}
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.AddComment(cmd.Context(), req)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				writeWarning(resp.Warning)
				return writeComment(resp.Comment)
			})
		},
	}

	cmd.Flags().StringVar(&author, "author", "", "author name (default: configured identity)")
	return cmd
}

func newUpdateCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "update <path> <line> <text...>",
		Short: "Replace the text of an existing annotation",
		Args:  requireAtLeastArgs(3, "path, line and text are required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := projectPath(cfg.ProjectRoot, args[0])
			if err != nil {
				return err
			}
			line, err := parseLine(args[1])
			if err != nil {
				return err
			}
			req := api.CommentUpdateRequest{Path: path, Line: &line, Text: strings.Join(args[2:], " ")}
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.UpdateComment(cmd.Context(), req)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				writeWarning(resp.Warning)
				return writeComment(resp.Comment)
			})
		},
	}
}

func newRmCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <path> <line>",
		Short: "Remove an annotation",
		Args:  requireRangeArgs(2, 2, "path and line are required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := projectPath(cfg.ProjectRoot, args[0])
			if err != nil {
				return err
			}
			line, err := parseLine(args[1])
			if err != nil {
				return err
			}
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.RemoveComment(cmd.Context(), path, line)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				writeWarning(resp.Warning)
				return writePlain("removed %s\n", formatCommentLine(resp.Comment))
			})
		},
	}
}

func newShowCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "show <path> [<line>]",
		Short: "Show the annotations of a file, or of one line",
		Args:  requireRangeArgs(1, 2, "path and optional line are required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := projectPath(cfg.ProjectRoot, args[0])
			if err != nil {
				return err
			}
			return withClient(cfg, func(client *api.Client) error {
				if len(args) == 2 {
					line, err := parseLine(args[1])
					if err != nil {
						return err
					}
					resp, err := client.GetComment(cmd.Context(), path, line)
					if err != nil {
						return err
					}
					if *jsonOutput {
						return writeJSON(resp)
					}
					return writeComment(resp.Comment)
				}

				resp, err := client.ListComments(cmd.Context(), path)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				writeWarning(resp.Warning)
				return writeCommentList(resp.Comments)
			})
		},
	}
}

func newFilesCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "files",
		Short: "List annotated files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.ListFiles(cmd.Context())
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				sort.Strings(resp.Files)
				for _, file := range resp.Files {
					if err := writePlain("%s\n", file); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func newMvCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "mv <old-path> <new-path>",
		Short: "Move the annotations of a renamed file",
		Args:  requireRangeArgs(2, 2, "old and new path are required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			oldPath, err := projectPath(cfg.ProjectRoot, args[0])
			if err != nil {
				return err
			}
			newPath, err := projectPath(cfg.ProjectRoot, args[1])
			if err != nil {
				return err
			}
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.RenameFile(cmd.Context(), api.FileRenameRequest{OldPath: oldPath, NewPath: newPath})
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				writeWarning(resp.Warning)
				return writePlain("moved %d annotations: %s -> %s\n", resp.Moved, resp.OldPath, resp.NewPath)
			})
		},
	}
}
