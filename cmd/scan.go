// File: cmd/scan.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/websec-cli/api/schemas"
	"github.com/xkilldash9x/websec-cli/internal/config"
	"github.com/xkilldash9x/websec-cli/internal/events"
	"github.com/xkilldash9x/websec-cli/internal/orchestrator"
	"github.com/xkilldash9x/websec-cli/internal/reporting"
	"github.com/xkilldash9x/websec-cli/internal/service"
)

// scanOptions holds the parsed scan flags.
type scanOptions struct {
	target  string
	kind    string
	file    string
	modules []string
	format  string
	output  string
	quiet   bool
}

// newScanCmd creates and configures the `scan` command.
func newScanCmd(factory service.ComponentFactory) *cobra.Command {
	opts := &scanOptions{}

	scanCmd := &cobra.Command{
		Use:   "scan [target]",
		Short: "Runs an AI security assessment of a URL or a source snippet",
		Long: `Runs one assessment and prints the report.

A URL target must start with http:// or https://. For source code, pass
--type code with the snippet as the argument or read it with --file
(use "-" for stdin). Successful reports are saved to the history.`,
		Example: `  websec scan https://shop.example.com --module nmap --module burp
  websec scan --type code --file handler.php --format sarif -o report.sarif`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.target = args[0]
			}
			if opts.file != "" {
				if opts.target != "" {
					return fmt.Errorf("pass the target as an argument or with --file, not both")
				}
				source, err := readSource(cmd.InOrStdin(), opts.file)
				if err != nil {
					return err
				}
				opts.target = source
				if !cmd.Flags().Changed("type") {
					opts.kind = string(schemas.ScanKindCode)
				}
			}

			components, cfg, logger, err := loadComponents(cmd, factory)
			if err != nil {
				return err
			}
			defer components.Shutdown()

			return runScan(cmd.Context(), logger, cfg, components, *opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	scanCmd.Flags().StringVarP(&opts.kind, "type", "t", string(schemas.ScanKindURL), "Target type: 'url' or 'code'")
	scanCmd.Flags().StringVar(&opts.file, "file", "", "Read the code snippet from a file ('-' for stdin)")
	scanCmd.Flags().StringSliceVarP(&opts.modules, "module", "m", nil, "Enable an engagement module (nmap, burp, nuclei, subdomain); repeatable")
	scanCmd.Flags().StringVarP(&opts.format, "format", "f", reporting.FormatText, "Report format: 'text', 'json' or 'sarif'")
	scanCmd.Flags().StringVarP(&opts.output, "output", "o", "", "Write the report to a file instead of stdout")
	scanCmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "Do not print the progress log")
	scanCmd.Flags().Float64("pace", 1.0, "Scale the progress narration delays (0 disables them). Overrides config/env")

	return scanCmd
}

// runScan executes one scan with the progress log on errOut and the report
// on out (or the --output file).
func runScan(ctx context.Context, logger *zap.Logger, cfg config.Interface, components *service.Components, opts scanOptions, out, errOut io.Writer) error {
	modules, err := resolveModules(opts.modules)
	if err != nil {
		return err
	}
	req := schemas.ScanRequest{
		Target:   opts.target,
		ScanType: schemas.ScanKind(strings.ToLower(opts.kind)),
		Modules:  modules,
	}
	if err := req.Validate(); err != nil {
		return err
	}

	// Fail on a bad format before spending a generation call.
	switch opts.format {
	case reporting.FormatText, reporting.FormatJSON, reporting.FormatSARIF:
	default:
		return fmt.Errorf("unsupported output format: %s", opts.format)
	}

	logger.Info("Starting new scan",
		zap.String("kind", string(req.ScanType)),
		zap.Strings("modules", req.ActiveModules()),
		zap.Float64("pace", cfg.Scan().NarrationPace))

	stopProgress := func() {}
	if !opts.quiet {
		var wg sync.WaitGroup
		stream, unsubscribe := components.Orchestrator.Subscribe()
		wg.Add(1)
		go func() {
			defer wg.Done()
			printProgress(errOut, stream)
		}()
		stopProgress = func() {
			unsubscribe()
			wg.Wait()
		}
	}

	result, err := components.Orchestrator.Scan(ctx, req)
	// Flush the remaining progress lines before the report.
	stopProgress()
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("Scan aborted by user signal")
			return err
		}
		return fmt.Errorf("scan failed: %w", err)
	}

	reporter, err := newReporter(opts.format, opts.output, out)
	if err != nil {
		return err
	}
	if err := reporter.Write(result); err != nil {
		_ = reporter.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := reporter.Close(); err != nil {
		return err
	}

	if opts.output != "" {
		fmt.Fprintf(errOut, "Report written to %s (saved to history as %s)\n", opts.output, result.Timestamp)
	}
	return nil
}

// newReporter writes to the --output file, or to out with colors when out is a terminal.
func newReporter(format, output string, out io.Writer) (reporting.Reporter, error) {
	if output != "" {
		return reporting.New(format, output, Version)
	}
	colorize := false
	if f, ok := out.(*os.File); ok && f == os.Stdout {
		colorize = !color.NoColor
	}
	return reporting.NewWriter(format, out, colorize, Version)
}

// printProgress echoes narration lines until the stream closes.
func printProgress(w io.Writer, stream <-chan events.Message) {
	success := color.New(color.FgGreen)
	failure := color.New(color.FgRed, color.Bold)
	for msg := range stream {
		if msg.Type != events.TypeLog {
			continue
		}
		payload, ok := msg.Payload.(events.LogPayload)
		if !ok {
			continue
		}
		switch {
		case strings.HasSuffix(payload.Line, orchestrator.LineSuccess):
			success.Fprintln(w, payload.Line)
		case strings.HasSuffix(payload.Line, orchestrator.LineFailure):
			failure.Fprintln(w, payload.Line)
		default:
			fmt.Fprintln(w, payload.Line)
		}
	}
}

// resolveModules enables the named modules in the catalog. A module matches
// by its full name or by the first word of it, case-insensitively.
func resolveModules(names []string) ([]schemas.ScanModule, error) {
	catalog := schemas.DefaultModules()
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		found := false
		for i := range catalog {
			if moduleMatches(catalog[i].Name, name) {
				catalog[i].Enabled = true
				found = true
			}
		}
		if !found {
			return nil, fmt.Errorf("unknown module %q. Available: %s", name, strings.Join(moduleAliases(), ", "))
		}
	}
	return catalog, nil
}

func moduleMatches(full, name string) bool {
	lower := strings.ToLower(full)
	return lower == name || strings.Fields(lower)[0] == name
}

func moduleAliases() []string {
	var aliases []string
	for _, m := range schemas.DefaultModules() {
		aliases = append(aliases, strings.ToLower(strings.Fields(m.Name)[0]))
	}
	sort.Strings(aliases)
	return aliases
}

// readSource reads a code snippet from path, or from in when path is "-".
func readSource(in io.Reader, path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(in)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read source from %s: %w", path, err)
	}
	return string(data), nil
}
