package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/solatis/sortdl/internal/rename"
)

func newRenameCmd() *cobra.Command {
	var (
		name   string
		domain string
		date   string
	)

	cmd := &cobra.Command{
		Use:   "rename <pattern>",
		Short: "Preview a rename pattern",
		Long: `Expands a rename pattern the way a matched rule would.

Variables: {` + strings.Join(rename.Variables, "}, {") + `}.
Unknown variables are kept as written.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			when := time.Now()
			if date != "" {
				t, err := time.Parse(time.RFC3339, date)
				if err != nil {
					return fmt.Errorf("invalid --date: %w", err)
				}
				when = t
			}

			result := rename.GenerateFilename(rename.FileMetadata{
				Date:         when,
				Domain:       domain,
				OriginalName: name,
			}, args[0])

			fmt.Fprintln(cmd.OutOrStdout(), result)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "original filename including extension")
	cmd.Flags().StringVar(&domain, "domain", "", "download host, optionally with port")
	cmd.Flags().StringVar(&date, "date", "", "download time (RFC 3339); defaults to now")
	cmd.MarkFlagRequired("name")
	return cmd
}
