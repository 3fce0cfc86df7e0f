// Package main is the entry point for the orcad daemon and CLI.
package main

import (
	"fmt"
	"os"

	"github.com/orcalabs/orcad/cmd/orcad/commands"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
