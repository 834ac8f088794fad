// Command memoryd runs the persistent memory store and task queue as an
// MCP server over stdio, plus a small set of operator subcommands.
package main

import (
	"fmt"
	"os"

	"github.com/cerplabs/memoryd/cmd/memoryd/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
