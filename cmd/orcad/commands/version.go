package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/orcalabs/orcad/internals/timeouts"
	"github.com/orcalabs/orcad/internals/version"
	"github.com/orcalabs/orcad/sdk"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print client and daemon versions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "client: %s\n", version.Version())

			ctx, cancel := context.WithTimeout(cmd.Context(), timeouts.SecondShort)
			defer cancel()
			daemon, err := sdk.NewClient().Version(ctx)
			if err != nil {
				fmt.Fprintln(cmd.OutOrStdout(), "daemon: not running")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "daemon: %s\n", daemon)
			return nil
		},
	}
}
