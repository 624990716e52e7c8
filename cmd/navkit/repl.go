package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/navkit-dev/navkit"
	"github.com/navkit-dev/navkit/memadapter"
)

func replCmd() *cobra.Command {
	var startURL string

	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Interactively drive a memory-mode navigation engine",
		Long: `repl opens a line-oriented session against an in-process, memory-mode
engine (no host window, no network). Useful for exploring navkit's
transition semantics without wiring up a browser.

Commands:
  nav <url>       navigate to url (auto: replace on the same path, else push)
  replace <url>   replace-navigate to url
  reload          reload the current entry
  back            go back one entry
  forward         go forward one entry
  entries         list all entries, marking the current one
  quit            exit the repl`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRepl(cmd, startURL)
		},
	}

	cmd.Flags().StringVar(&startURL, "start", "https://navkit.local/", "initial location")
	return cmd
}

func runRepl(cmd *cobra.Command, startURL string) error {
	adapter := memadapter.New(memadapter.WithURL(startURL))
	engine := navkit.New(adapter, adapter.Origin())

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	printCurrent(engine)

	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("navkit> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			fmt.Print("navkit> ")
			continue
		}

		fields := strings.SplitN(line, " ", 2)
		command := fields[0]
		var arg string
		if len(fields) > 1 {
			arg = strings.TrimSpace(fields[1])
		}

		if err := dispatchReplCommand(ctx, engine, command, arg); err != nil {
			if err == errQuit {
				return nil
			}
			errorMsg("%s", err)
		}
		fmt.Print("navkit> ")
	}
	return scanner.Err()
}

var errQuit = fmt.Errorf("quit")

func dispatchReplCommand(ctx context.Context, engine *navkit.Engine, command, arg string) error {
	switch command {
	case "quit", "exit":
		return errQuit

	case "nav":
		if arg == "" {
			return fmt.Errorf("usage: nav <url>")
		}
		dest, err := engine.Navigate(ctx, arg)
		return reportTransition(dest, err)

	case "replace":
		if arg == "" {
			return fmt.Errorf("usage: replace <url>")
		}
		dest, err := engine.Navigate(ctx, arg, navkit.WithHistory(navkit.HistoryReplace))
		return reportTransition(dest, err)

	case "reload":
		dest, err := engine.Reload(ctx, nil)
		return reportTransition(dest, err)

	case "back":
		dest, err := engine.Back(ctx, nil)
		return reportTransition(dest, err)

	case "forward":
		dest, err := engine.Forward(ctx, nil)
		return reportTransition(dest, err)

	case "entries":
		printEntries(engine)
		return nil

	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func reportTransition(dest navkit.Destination, err error) error {
	if err != nil {
		return err
	}
	success("%s", dest.URL)
	return nil
}

func printCurrent(engine *navkit.Engine) {
	info("current: %s", engine.CurrentEntry().URL)
}

func printEntries(engine *navkit.Engine) {
	current := engine.CurrentEntry()
	for i, e := range engine.Entries() {
		marker := "  "
		if e.Key == current.Key {
			marker = "->"
		}
		info("%s [%s] %s", marker, strconv.Itoa(i), e.URL)
	}
}
