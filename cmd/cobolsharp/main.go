// Package main implements the cobolsharp-go CLI binary.
package main

import (
	"fmt"
	"os"

	"github.com/cobolsharp/cobolsharp-go/cmd/cobolsharp/commands"
)

var version = "dev"

func main() {
	commands.RootCmd.Version = version
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "cobolsharp:", err)
		os.Exit(1)
	}
}
