package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"linenotes/internal/api"
	"linenotes/internal/config"
)

func newPendingCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "pending [<path>]",
		Short: "List orphaned annotations waiting for a decision",
		Args:  requireRangeArgs(0, 1, "at most one path is accepted"),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				var err error
				if path, err = projectPath(cfg.ProjectRoot, args[0]); err != nil {
					return err
				}
			}
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.Pending(cmd.Context(), path)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				if path == "" {
					for _, file := range resp.Files {
						if err := writePlain("%s\n", file); err != nil {
							return err
						}
					}
					return nil
				}
				return writeCandidates(resp.Candidates)
			})
		},
	}
}

func newArchiveCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var (
		lines []string
		all   bool
	)

	cmd := &cobra.Command{
		Use:   "archive <path>",
		Short: "Archive chosen orphaned annotations of a file and drop the rest",
		Args:  requireRangeArgs(1, 1, "path is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := projectPath(cfg.ProjectRoot, args[0])
			if err != nil {
				return err
			}
			if all == (len(lines) > 0) {
				return fmt.Errorf("pass either --all or --lines")
			}
			chosen, err := parseLines(lines)
			if err != nil {
				return err
			}
			req := api.PendingDecisionRequest{Path: path, Lines: chosen, All: all}
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.ArchivePending(cmd.Context(), req)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				return writeArchived(resp.Archived)
			})
		},
	}

	cmd.Flags().StringSliceVar(&lines, "lines", nil, "original lines to archive (comma-separated)")
	cmd.Flags().BoolVar(&all, "all", false, "archive every pending annotation of the file")
	return cmd
}

func newDiscardCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "discard <path>",
		Short: "Drop every orphaned annotation of a file without archiving",
		Args:  requireRangeArgs(1, 1, "path is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := projectPath(cfg.ProjectRoot, args[0])
			if err != nil {
				return err
			}
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.DiscardPending(cmd.Context(), path)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				return writePlain("discarded %d annotations\n", len(resp.Discarded))
			})
		},
	}
}

func newHistoryCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "history [<path>]",
		Short: "List archived annotations, oldest first",
		Args:  requireRangeArgs(0, 1, "at most one path is accepted"),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				var err error
				if path, err = projectPath(cfg.ProjectRoot, args[0]); err != nil {
					return err
				}
			}
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.History(cmd.Context(), path)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				return writeArchived(resp.Records)
			})
		},
	}
}
