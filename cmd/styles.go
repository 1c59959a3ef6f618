// File: cmd/styles.go
package cmd

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	cellStyle     = lipgloss.NewStyle().Padding(0, 1)
	borderStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	subtleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	userStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("75"))
	sentinelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
)

var severityStyles = map[string]lipgloss.Style{
	"CRITICAL": lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
	"HIGH":     lipgloss.NewStyle().Foreground(lipgloss.Color("208")),
	"MEDIUM":   lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
	"LOW":      lipgloss.NewStyle().Foreground(lipgloss.Color("75")),
}

// renderSeverity colors a severity label, ignoring case.
func renderSeverity(severity string) string {
	if style, ok := severityStyles[strings.ToUpper(severity)]; ok {
		return style.Render(severity)
	}
	return severity
}

// newTable returns a bordered table whose header row is highlighted.
func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle.Padding(0, 1)
			}
			return cellStyle
		})
}
