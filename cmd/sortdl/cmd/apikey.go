package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/solatis/sortdl/internal/core/auth"
)

func newAPIKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "api-key",
		Short: "Generate an API key for the suggest service",
		Long: `Prints a new random API key. Set it as SORTDL_SERVER_API_KEY for
'sortdl serve' and send it in x-api-key metadata from clients.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := auth.GenerateAPIKey()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
}
