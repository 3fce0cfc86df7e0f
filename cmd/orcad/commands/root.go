// Package commands wires the orcad CLI: the daemon plus thin client
// commands built on the SDK.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/orcalabs/orcad/internals/version"
)

func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "orcad",
		Short:         "Devcontainer agent session daemon",
		Version:       version.Version(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newServeCommand(),
		newRunCommand(),
		newStatusCommand(),
		newStopCommand(),
		newSessionsCommand(),
		newWatchCommand(),
		newVersionCommand(),
	)
	return root
}
