// File: cmd/history.go
package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/websec-cli/api/schemas"
	"github.com/xkilldash9x/websec-cli/internal/history"
	"github.com/xkilldash9x/websec-cli/internal/reporting"
	"github.com/xkilldash9x/websec-cli/internal/results"
	"github.com/xkilldash9x/websec-cli/internal/service"
)

func newHistoryCmd(factory service.ComponentFactory) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Lists, shows and deletes saved scan reports",
		Long: `Saved reports are kept newest first, up to the configured bound.
An entry is addressed by its timestamp or by its position in "history list".`,
	}

	historyCmd.AddCommand(
		newHistoryListCmd(factory),
		newHistoryShowCmd(factory),
		newHistoryDeleteCmd(factory),
		newHistoryClearCmd(factory),
	)
	return historyCmd
}

func newHistoryListCmd(factory service.ComponentFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Lists saved reports, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			components, _, _, err := loadComponents(cmd, factory)
			if err != nil {
				return err
			}
			defer components.Shutdown()

			printHistory(cmd.OutOrStdout(), components.History.List(cmd.Context()))
			return nil
		},
	}
}

func newHistoryShowCmd(factory service.ComponentFactory) *cobra.Command {
	var format, output string

	cmd := &cobra.Command{
		Use:   "show <timestamp|index>",
		Short: "Prints a saved report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			components, _, _, err := loadComponents(cmd, factory)
			if err != nil {
				return err
			}
			defer components.Shutdown()

			entry, err := findEntry(cmd, components.History, args[0])
			if err != nil {
				return err
			}

			reporter, err := newReporter(format, output, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if err := reporter.Write(&entry); err != nil {
				_ = reporter.Close()
				return fmt.Errorf("failed to write report: %w", err)
			}
			return reporter.Close()
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", reporting.FormatText, "Report format: 'text', 'json' or 'sarif'")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the report to a file instead of stdout")
	return cmd
}

func newHistoryDeleteCmd(factory service.ComponentFactory) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <timestamp|index>",
		Aliases: []string{"rm"},
		Short:   "Deletes one saved report",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			components, _, logger, err := loadComponents(cmd, factory)
			if err != nil {
				return err
			}
			defer components.Shutdown()

			entry, err := findEntry(cmd, components.History, args[0])
			if err != nil {
				return err
			}
			if !components.History.Remove(cmd.Context(), entry.Timestamp) {
				return fmt.Errorf("no saved report with timestamp %s", entry.Timestamp)
			}
			logger.Info("Removed history entry", zap.String("timestamp", entry.Timestamp))
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted report %s\n", entry.Timestamp)
			return nil
		},
	}
}

func newHistoryClearCmd(factory service.ComponentFactory) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Deletes every saved report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes && !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), "Delete all saved reports? [y/N]: ") {
				fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
				return nil
			}

			components, _, _, err := loadComponents(cmd, factory)
			if err != nil {
				return err
			}
			defer components.Shutdown()

			components.History.Clear(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "History cleared.")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

// findEntry resolves a timestamp, or a 1-based position in the list.
func findEntry(cmd *cobra.Command, store *history.Store, ref string) (schemas.ScanResult, error) {
	if entry, ok := store.Get(cmd.Context(), ref); ok {
		return entry, nil
	}
	if n, err := strconv.Atoi(ref); err == nil {
		entries := store.List(cmd.Context())
		if n >= 1 && n <= len(entries) {
			return entries[n-1], nil
		}
	}
	return schemas.ScanResult{}, fmt.Errorf("no saved report matches %q", ref)
}

func printHistory(w io.Writer, entries []schemas.ScanResult) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No saved reports.")
		return
	}
	t := newTable("#", "TIMESTAMP", "TYPE", "RISK", "TARGET")
	for i, e := range entries {
		t.Row(
			strconv.Itoa(i+1),
			e.Timestamp,
			strings.ToUpper(string(e.ScanType)),
			fmt.Sprintf("%d/100 %s", e.RiskScore, results.BandFor(e.RiskScore)),
			oneLine(results.TruncateTarget(e.Target)),
		)
	}
	fmt.Fprintln(w, t.String())
}

// oneLine keeps code snippets from breaking the table.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// confirm asks a yes/no question on out and reads the answer from in.
func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprint(out, prompt)
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && answer == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}
