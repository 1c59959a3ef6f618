package reporting

import (
	"fmt"
	"io"
	"sync"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/websec-cli/api/schemas"
)

var jsonCodec = jsoniter.ConfigCompatibleWithStandardLibrary

// JSONReporter buffers reports and writes them as one indented JSON array on Close.
type JSONReporter struct {
	mu      sync.Mutex
	writer  io.WriteCloser
	results []schemas.ScanResult
}

// NewJSONReporter creates a reporter writing a JSON array to writer.
func NewJSONReporter(writer io.WriteCloser) *JSONReporter {
	return &JSONReporter{writer: writer, results: []schemas.ScanResult{}}
}

// Write buffers one report.
func (r *JSONReporter) Write(result *schemas.ScanResult) error {
	if result == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, *result)
	return nil
}

// Close encodes every buffered report and closes the writer.
func (r *JSONReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, encodeErr := jsonCodec.MarshalIndent(r.results, "", "  ")
	if encodeErr == nil {
		_, encodeErr = r.writer.Write(append(data, '\n'))
	}
	closeErr := r.writer.Close()

	if encodeErr != nil {
		return fmt.Errorf("failed to encode JSON output: %w", encodeErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close output writer: %w", closeErr)
	}
	return nil
}
