// File: cmd/intel.go
package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/websec-cli/internal/intel"
)

func newIntelCmd() *cobra.Command {
	var minScore float64

	cmd := &cobra.Command{
		Use:   "intel [cve-id]",
		Short: "Shows the feed of verified high-profile advisories",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 1 {
				advisory, ok := intel.Lookup(args[0])
				if !ok {
					return fmt.Errorf("no advisory with id %q", args[0])
				}
				printAdvisory(out, advisory)
				return nil
			}

			feed := intel.Filter(minScore)
			if len(feed) == 0 {
				fmt.Fprintf(out, "No advisories score %.1f or higher.\n", minScore)
				return nil
			}
			t := newTable("ID", "SEVERITY", "CVSS", "DATE", "CATEGORY", "TITLE")
			for _, a := range feed {
				t.Row(a.ID, renderSeverity(a.Severity), fmt.Sprintf("%.1f", a.Score), a.Date, a.Category, a.Title)
			}
			fmt.Fprintln(out, t.String())
			return nil
		},
	}
	cmd.Flags().Float64Var(&minScore, "min-score", 0, "Only show advisories with at least this CVSS score")
	return cmd
}

func printAdvisory(w io.Writer, a intel.Advisory) {
	fmt.Fprintf(w, "%s  %s\n", headerStyle.Render(a.ID), a.Title)
	fmt.Fprintf(w, "Severity: %s (CVSS %.1f)\n", renderSeverity(a.Severity), a.Score)
	fmt.Fprintf(w, "Published: %s   Category: %s\n", a.Date, a.Category)
	fmt.Fprintf(w, "Tags: %s\n\n", subtleStyle.Render(strings.Join(a.Tags, ", ")))
	fmt.Fprintln(w, a.Description)
}
