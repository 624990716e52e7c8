// Command navkit is a small CLI around the navkit engine: a repl that
// drives a memory-mode engine interactively, and a bridge server that
// accepts WebSocket connections from a browser shim.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "navkit",
		Short: "Drive and inspect a navkit navigation engine",
		Long: `navkit is a command-line companion to the navkit library.

It does not replace the library's Go API; it gives you a terminal
session against a memory-mode engine (repl) and a WebSocket endpoint
for a browser shim to drive a history-mode engine remotely (bridge).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		replCmd(),
		bridgeCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}

func success(format string, args ...any) {
	fmt.Printf("\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}

func errorMsg(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "\033[31m✗\033[0m %s\n", fmt.Sprintf(format, args...))
}
