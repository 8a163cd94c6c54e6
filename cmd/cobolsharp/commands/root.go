// Package commands provides the CLI commands for the cobolsharp-go tool.
package commands

import (
	"github.com/spf13/cobra"
)

// RootCmd represents the base command when called without any subcommands.
var RootCmd = &cobra.Command{
	Use:   "cobolsharp <cobol-file> [cobol-file...]",
	Short: "cobolsharp-go - reconstruct structured control flow from COBOL goto graphs",
	Long: `cobolsharp-go reconstructs if/while/break/continue control flow from the
goto-and-perform statement graphs found in legacy COBOL procedure divisions,
and renders the result as pseudo-code, HTML, or a GraphViz ".dot" view of
any pipeline stage.

Use "cobolsharp --help" for the full flag list.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runReconstruct,
}

func init() {
	RootCmd.Flags().StringP("format", "f", "html",
		"output format: html, code, full_stmt_graph, stmt_graph, cobol_graph, acyclic_graph, scope_graph, xml")
	RootCmd.Flags().IntP("tabsize", "t", 0, "tab width (default from config, normally 4); validated but not applied to the input")
	RootCmd.Flags().StringP("encoding", "e", "", "source file encoding (default from config, normally iso-8859-1)")
	RootCmd.Flags().StringP("destdir", "d", "", "write output files to this directory instead of next to the source")
	RootCmd.Flags().BoolP("verbose", "v", false, "enable debug-level logging")
	RootCmd.Flags().Bool("no-cache", false, "disable the on-disk structured-tree cache")
}

// Execute runs the root command.
func Execute() error {
	return RootCmd.Execute()
}
