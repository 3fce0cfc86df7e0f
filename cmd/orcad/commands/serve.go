package commands

import (
	"github.com/spf13/cobra"

	"github.com/orcalabs/orcad/orcad/server"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the orcad daemon in the foreground",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return server.New().Start()
		},
	}
}
