// Package main implements the dcc CLI: control-flow structuring over
// serialized procedure CFGs.
package main

import (
	"os"

	"github.com/gitmesam/dcc/cmd/dcc/commands"
)

var version = "dev"

func main() {
	commands.RootCmd.Version = version
	commands.RootCmd.SetVersionTemplate(`dcc version {{.Version}}
`)

	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
