// Command recall is the entry point for the incident recall service.
// It provides a CLI interface (via Cobra) for ingesting incident history,
// searching it, and running LLM-backed analyses, plus an HTTP server mode.
package main

import (
	"fmt"
	"os"

	"github.com/opsrecall/recall-go/cmd/recall/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
