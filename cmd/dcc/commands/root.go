// Package commands provides the CLI commands for the dcc tool.
package commands

import (
	"github.com/spf13/cobra"
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "dcc",
	Short: "dcc - control-flow structuring for decompiled procedures",
	Long: `dcc recovers high-level control structures from serialized
control-flow graphs of disassembled procedures.

Commands:
  structure   Run the structuring pass over a procedure file
  intervals   Show the derived interval sequence of a procedure
  init        Initialize dcc configuration interactively

Use "dcc [command] --help" for more information about a command.`,
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return RootCmd.Execute()
}

func init() {
	RootCmd.AddCommand(structureCmd)
	RootCmd.AddCommand(intervalsCmd)
	RootCmd.AddCommand(initCmd)
}
