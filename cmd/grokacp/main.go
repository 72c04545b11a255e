// Command grokacp runs the grokacp coding agent.
package main

import (
	"fmt"
	"os"

	"github.com/grokacp/grokacp/cmd/grokacp/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
