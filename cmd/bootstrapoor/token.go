package main

import (
	"fmt"

	"github.com/ethpandaops/bootstrapoor/pkg/auth"
	"github.com/spf13/cobra"
)

func newTokenCmd() *cobra.Command {
	var (
		token string
		cost  int
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Generate an upload bearer token and its hash",
		Long: `Generate a random bearer token (or hash the one given with --token) and
print the value to put in HTTP_AUTH_TOKEN_HASH.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				generated, err := auth.GenerateToken()
				if err != nil {
					return fmt.Errorf("generating token: %w", err)
				}

				token = generated
			}

			hash, err := auth.HashToken(token, cost)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Token:                %s\n", token)
			fmt.Fprintf(out, "HTTP_AUTH_TOKEN_HASH: '%s'\n", hash)

			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "Token to hash instead of generating one")
	cmd.Flags().IntVar(&cost, "cost", 0, "bcrypt cost (default 10)")

	return cmd
}
