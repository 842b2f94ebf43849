package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"linenotes/internal/auth"
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Create API tokens for the server",
	}
	cmd.AddCommand(newTokenGenerateCmd(), newTokenHashCmd())
	return cmd
}

func newTokenGenerateCmd() *cobra.Command {
	var save, global bool

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a random token and print it with its hash",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := auth.GenerateToken()
			if err != nil {
				return err
			}
			hash, err := auth.HashToken(token)
			if err != nil {
				return err
			}
			if save {
				if err := setConfigValue(global, "api_token_hash", hash); err != nil {
					return err
				}
				fmt.Fprintln(os.Stderr, "saved api_token_hash; export LINENOTES_API_TOKEN for clients")
			}
			_ = writePlain("token: %s\n", token)
			return writePlain("hash: %s\n", hash)
		},
	}

	cmd.Flags().BoolVar(&save, "save", false, "store the hash as api_token_hash")
	cmd.Flags().BoolVar(&global, "global", false, "with --save, write to global config")
	return cmd
}

func newTokenHashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash <token>",
		Short: "Print the bcrypt hash of a token for api_token_hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := auth.HashToken(args[0])
			if err != nil {
				return err
			}
			return writePlain("%s\n", hash)
		},
	}
}
