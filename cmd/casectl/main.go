// Command casectl answers stage, estimate and eligibility questions from the tracking configuration
// without a running server.
package main

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/BTreeMap/CaseTrack/internal/cli"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	tty := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	app := &cli.App{Format: cli.Formatter{Plain: !tty || os.Getenv("NO_COLOR") != ""}}
	return cli.NewRootCmd(app).Execute()
}
