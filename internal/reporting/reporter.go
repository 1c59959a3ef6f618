// Package reporting renders scan reports as colorized text, JSON or SARIF.
package reporting

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"

	"github.com/xkilldash9x/websec-cli/api/schemas"
)

// Supported output formats.
const (
	FormatText  = "text"
	FormatJSON  = "json"
	FormatSARIF = "sarif"
)

// Reporter defines the interface for writing scan results to an output.
type Reporter interface {
	// Write adds a single report.
	Write(result *schemas.ScanResult) error
	// Close finalizes the report and closes any underlying resources (e.g., file handles).
	Close() error
}

// nopWriteCloser wraps an io.Writer and provides a no-op Close method.
type nopWriteCloser struct {
	io.Writer
}

func (nwc *nopWriteCloser) Close() error {
	return nil
}

// New creates a new reporter based on the specified format and output path.
// An empty path or "stdout" writes to standard output.
func New(format, outputPath, toolVersion string) (Reporter, error) {
	switch format {
	case FormatText, FormatJSON, FormatSARIF:
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}

	var writer io.WriteCloser
	isStdOut := outputPath == "" || outputPath == "stdout"
	if isStdOut {
		// Wrap Stdout so Close() is a no-op.
		writer = &nopWriteCloser{os.Stdout}
	} else {
		f, err := os.Create(outputPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create output file %s: %w", outputPath, err)
		}
		writer = f
	}

	return newReporter(format, writer, isStdOut && !color.NoColor, toolVersion), nil
}

// NewWriter creates a reporter on an already open writer. Closing the
// reporter leaves w open.
func NewWriter(format string, w io.Writer, colorize bool, toolVersion string) (Reporter, error) {
	switch format {
	case FormatText, FormatJSON, FormatSARIF:
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
	return newReporter(format, &nopWriteCloser{w}, colorize, toolVersion), nil
}

func newReporter(format string, writer io.WriteCloser, colorize bool, toolVersion string) Reporter {
	switch format {
	case FormatSARIF:
		return NewSARIFReporter(writer, toolVersion)
	case FormatJSON:
		return NewJSONReporter(writer)
	default:
		return NewTextReporter(writer, colorize)
	}
}
