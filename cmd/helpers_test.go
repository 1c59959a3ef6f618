// File: cmd/helpers_test.go
package cmd

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/websec-cli/internal/mocks"
	"github.com/xkilldash9x/websec-cli/internal/service"
)

// scanReply is a minimal analysis payload the engine accepts.
const scanReply = `{
  "summary": "One reflected XSS on the search page.",
  "riskScore": 64,
  "vulnerabilities": [
    {"id": "VULN-001", "title": "Reflected XSS", "severity": "Medium", "description": "Search echoes input.", "cwe": "CWE-79"}
  ]
}`

// setupTestEnv points the configuration at a throwaway history directory
// with narration delays disabled and returns that directory.
func setupTestEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("WEBSEC_HISTORY_BACKEND", "file")
	t.Setenv("WEBSEC_HISTORY_DIR", dir)
	t.Setenv("WEBSEC_SCAN_NARRATION_PACE", "0")
	t.Setenv("WEBSEC_LOGGER_LEVEL", "fatal")

	// Run from an empty directory so no ./config.yaml is picked up.
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("HOME", t.TempDir())
	return dir
}

// newTestLLM returns a mock client that tolerates being closed by every command.
func newTestLLM() *mocks.MockLLMClient {
	llm := new(mocks.MockLLMClient)
	llm.On("Close").Return(nil).Maybe()
	return llm
}

type cmdResult struct {
	stdout string
	stderr string
	err    error
}

// executeCommand runs args against a fresh command tree.
func executeCommand(t *testing.T, factory service.ComponentFactory, stdin io.Reader, args ...string) cmdResult {
	t.Helper()
	root := newRootCmd(factory)

	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	if stdin == nil {
		stdin = strings.NewReader("")
	}
	root.SetIn(stdin)
	root.SetArgs(args)

	err := root.ExecuteContext(context.Background())
	return cmdResult{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

// factoryWith builds real components around llm.
func factoryWith(llm *mocks.MockLLMClient) service.ComponentFactory {
	return service.NewComponentFactory(service.WithLLMClient(llm))
}

// createTempConfig writes content to a config file and returns its path.
func createTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}
