// File: cmd/websec/main.go
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/xkilldash9x/websec-cli/cmd"
	"github.com/xkilldash9x/websec-cli/internal/observability"
)

const panicLogFile = "websec-panic.log"

const banner = `
  __      __   _    ___
  \ \    / /__| |__/ __| ___ __
   \ \/\/ / -_) '_ \__ \/ -_) _|
    \_/\_/\___|_.__/___/\___\__|   [ websec %s ]

  scan, history, chat, intel, serve. "help" lists commands, "exit" quits.

`

// Function variables so tests can observe the exit path.
var (
	osWriteFile = os.WriteFile
	osExit      = os.Exit
)

func main() {
	defer handlePanic()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if len(os.Args) > 1 {
		if err := cmd.Execute(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				osExit(0)
				return
			}
			osExit(1)
		}
		return
	}

	if err := runShell(ctx, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "Error reading from stdin:", err)
		osExit(1)
	}
}

// runShell runs one command per input line until exit, quit or EOF.
func runShell(ctx context.Context, in io.Reader, out io.Writer) error {
	fmt.Fprintf(out, banner, cmd.Version)
	scanner := bufio.NewScanner(in)

	for {
		fmt.Fprint(out, "websec > ")
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}
		executeInteractiveCommand(ctx, line, out)
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	fmt.Fprintln(out, "Exiting websec.")
	return nil
}

// executeInteractiveCommand runs one line on a fresh command tree. Errors and
// panics are reported without leaving the shell.
func executeInteractiveCommand(ctx context.Context, line string, out io.Writer) {
	rootCmd := cmd.NewRootCommand()
	rootCmd.SetArgs(strings.Fields(line))
	rootCmd.SetOut(out)

	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Error: command panicked: %v\n", r)
		}
	}()
	if err := rootCmd.ExecuteContext(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
}

// handlePanic writes the stack of an unrecovered panic to panicLogFile.
func handlePanic() {
	r := recover()
	if r == nil {
		return
	}
	observability.Sync()

	panicMessage := fmt.Sprintf("panic: %v\n\n%s", r, debug.Stack())
	if err := osWriteFile(panicLogFile, []byte(panicMessage), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL: Failed to write panic log: %v\n", err)
		fmt.Fprintf(os.Stderr, "Panic details:\n%s\n", panicMessage)
		osExit(2)
		return
	}
	fmt.Fprintf(os.Stderr, "\nwebsec crashed unexpectedly. Details logged to %s\n", panicLogFile)
	osExit(2)
}
