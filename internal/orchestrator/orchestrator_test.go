package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/websec-cli/api/schemas"
	"github.com/xkilldash9x/websec-cli/internal/config"
	"github.com/xkilldash9x/websec-cli/internal/events"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// -- Mock Implementations for Testing --

type mockAnalyzer struct {
	mu      sync.Mutex
	calls   int
	target  string
	kind    schemas.ScanKind
	modules []string
	result  *schemas.ScanResult
	err     error
	release chan struct{} // when set, Analyze blocks until closed
	// beforeReturn runs after the analysis succeeds, just before it returns.
	beforeReturn func()
}

func (m *mockAnalyzer) Analyze(ctx context.Context, target string, kind schemas.ScanKind, modules []string) (*schemas.ScanResult, error) {
	m.mu.Lock()
	m.calls++
	m.target, m.kind, m.modules = target, kind, modules
	release := m.release
	m.mu.Unlock()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	if m.beforeReturn != nil {
		m.beforeReturn()
	}
	r := *m.result
	return &r, nil
}

type mockRecorder struct {
	mu       sync.Mutex
	recorded []schemas.ScanResult
}

func (m *mockRecorder) Record(_ context.Context, result schemas.ScanResult) schemas.ScanResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	result.Timestamp = "2025-01-01T00:00:00.000Z"
	m.recorded = append(m.recorded, result)
	return result
}

func (m *mockRecorder) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.recorded)
}

func sampleResult() *schemas.ScanResult {
	return &schemas.ScanResult{
		Target:    "https://example.com",
		ScanType:  schemas.ScanKindURL,
		RiskScore: 72,
	}
}

var fixedClock = func() time.Time { return time.Date(2025, 3, 4, 13, 5, 9, 0, time.UTC) }

func newTestOrchestrator(t *testing.T, analyzer Analyzer, recorder Recorder) (*Orchestrator, *events.Bus) {
	t.Helper()
	bus := events.NewBus(zaptest.NewLogger(t), 64)
	t.Cleanup(bus.Shutdown)
	o, err := New(config.ScanConfig{NarrationPace: 0}, analyzer, recorder, bus, zaptest.NewLogger(t), WithClock(fixedClock))
	require.NoError(t, err)
	return o, bus
}

func urlRequest(modules ...string) schemas.ScanRequest {
	req := schemas.ScanRequest{Target: "https://example.com", ScanType: schemas.ScanKindURL}
	for _, m := range modules {
		req.Modules = append(req.Modules, schemas.ScanModule{Name: m, Enabled: true})
	}
	return req
}

func stripPrefix(lines []string) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = strings.TrimPrefix(l, "[13:05:09] ")
	}
	return out
}

// -- Test Cases --

func TestNew_NilDependencies(t *testing.T) {
	bus := events.NewBus(zaptest.NewLogger(t), 1)
	defer bus.Shutdown()

	_, err := New(config.ScanConfig{}, nil, &mockRecorder{}, bus, zaptest.NewLogger(t))
	assert.Error(t, err)
	_, err = New(config.ScanConfig{}, &mockAnalyzer{}, nil, bus, zaptest.NewLogger(t))
	assert.Error(t, err)
	_, err = New(config.ScanConfig{}, &mockAnalyzer{}, &mockRecorder{}, nil, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestNarration(t *testing.T) {
	t.Run("URL with Nmap and Burp", func(t *testing.T) {
		steps := Narration("https://example.com", schemas.ScanKindURL, []string{schemas.ModuleNmap, schemas.ModuleBurp})
		var lines []string
		for _, s := range steps {
			if s.Line != "" {
				lines = append(lines, s.Line)
			}
		}
		assert.Equal(t, []string{
			"TARGET_ACQUIRED: https://example.com... [Type: URL]",
			"MODULES_ENGAGED: Nmap Port Scanner, Burp Suite Pro",
			"INITIATING_HANDSHAKE: SSL/TLS Negotiation & Certificate Pinning check...",
			"NMAP_SCRIPT_ENGINE: Scanning top 1000 ports (TCP/SYN)...",
			"THREAT_INTEL: Querying CVE Databases for known domain signatures...",
			"BURP_REPEATER: Fuzzing parameters for SQLi/XSS...",
			"LOGIC_PROBE: Analyzing Authentication & IDOR vulnerability surfaces...",
			"VALIDATION: Cross-referencing findings with false-positive reduction filter...",
		}, lines)
		assert.Equal(t, 600*2+800+1200+800+1000+1000+1500, int(TotalDelay(steps)/time.Millisecond))
	})

	t.Run("code without modules", func(t *testing.T) {
		steps := Narration("func main() {}", schemas.ScanKindCode, nil)
		require.Len(t, steps, 5)
		assert.Equal(t, "TARGET_ACQUIRED: func main() {}... [Type: CODE]", steps[0].Line)
		assert.Equal(t, "PARSING_SYNTAX: Building Abstract Syntax Tree (AST)...", steps[1].Line)
		assert.Empty(t, steps[2].Line, "silent pause")
		assert.Equal(t, time.Second, steps[2].Delay)
		assert.Equal(t, 600+800+1000+1500, int(TotalDelay(steps)/time.Millisecond))
	})

	t.Run("target is cut to 30 runes", func(t *testing.T) {
		target := "https://" + strings.Repeat("ü", 40)
		steps := Narration(target, schemas.ScanKindURL, nil)
		assert.Equal(t, "TARGET_ACQUIRED: https://"+strings.Repeat("ü", 22)+"... [Type: URL]", steps[0].Line)
	})
}

func TestScan_Success(t *testing.T) {
	analyzer := &mockAnalyzer{result: sampleResult()}
	recorder := &mockRecorder{}
	o, _ := newTestOrchestrator(t, analyzer, recorder)

	res, err := o.Scan(context.Background(), urlRequest(schemas.ModuleNuclei))
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "2025-01-01T00:00:00.000Z", res.Timestamp)
	assert.Equal(t, 1, recorder.count())

	assert.Equal(t, []string{schemas.ModuleNuclei}, analyzer.modules)
	assert.Equal(t, schemas.ScanKindURL, analyzer.kind)

	snap := o.Snapshot()
	assert.Equal(t, StateSucceeded, snap.State)
	assert.Empty(t, snap.Error)
	require.NotNil(t, snap.Result)
	assert.Equal(t, res.Timestamp, snap.Result.Timestamp)

	for _, l := range snap.Log {
		assert.True(t, strings.HasPrefix(l, "[13:05:09] "), l)
	}
	lines := stripPrefix(snap.Log)
	assert.Equal(t, "MODULES_ENGAGED: Nuclei Templates", lines[1])
	assert.Equal(t, LineSuccess, lines[len(lines)-1])
	assert.Equal(t, "VALIDATION: Cross-referencing findings with false-positive reduction filter...", lines[len(lines)-2])
}

func TestScan_Failure(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{"error message surfaces", errors.New("API Key is missing"), "API Key is missing"},
		{"empty message falls back", errors.New(""), "An unexpected error occurred during the analysis."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := &mockRecorder{}
			o, _ := newTestOrchestrator(t, &mockAnalyzer{err: tt.err}, recorder)

			res, err := o.Scan(context.Background(), urlRequest())
			assert.Nil(t, res)
			assert.ErrorIs(t, err, tt.err)

			snap := o.Snapshot()
			assert.Equal(t, StateFailed, snap.State)
			assert.Equal(t, tt.wantMsg, snap.Error)
			assert.Nil(t, snap.Result)
			assert.Zero(t, recorder.count(), "failed scans are never recorded")

			lines := stripPrefix(snap.Log)
			assert.Equal(t, LineFailure, lines[len(lines)-1])
			// The narration runs to the end even though the analysis failed immediately.
			assert.Equal(t, "VALIDATION: Cross-referencing findings with false-positive reduction filter...", lines[len(lines)-2])
		})
	}
}

func TestScan_InvalidRequestLeavesStateUntouched(t *testing.T) {
	analyzer := &mockAnalyzer{result: sampleResult()}
	o, _ := newTestOrchestrator(t, analyzer, &mockRecorder{})

	_, err := o.Scan(context.Background(), schemas.ScanRequest{Target: "example.com", ScanType: schemas.ScanKindURL})
	assert.ErrorIs(t, err, schemas.ErrInvalidURL)

	_, err = o.Scan(context.Background(), schemas.ScanRequest{Target: "  ", ScanType: schemas.ScanKindCode})
	assert.ErrorIs(t, err, schemas.ErrEmptySource)

	assert.Equal(t, StateIdle, o.Snapshot().State)
	assert.Zero(t, analyzer.calls)
}

func TestScan_RejectsConcurrentScan(t *testing.T) {
	analyzer := &mockAnalyzer{result: sampleResult(), release: make(chan struct{})}
	o, _ := newTestOrchestrator(t, analyzer, &mockRecorder{})

	done, err := o.Start(context.Background(), urlRequest())
	require.NoError(t, err)
	assert.Equal(t, StateRunning, o.Snapshot().State)

	_, err = o.Scan(context.Background(), urlRequest())
	assert.ErrorIs(t, err, ErrScanInProgress)
	assert.ErrorIs(t, o.Dismiss(), ErrScanInProgress)
	assert.ErrorIs(t, o.Load(*sampleResult()), ErrScanInProgress)

	close(analyzer.release)
	<-done
	o.Wait()

	assert.Equal(t, StateSucceeded, o.Snapshot().State)
	assert.Equal(t, 1, analyzer.calls)
}

func TestScan_ContextCancelled(t *testing.T) {
	analyzer := &mockAnalyzer{result: sampleResult(), release: make(chan struct{})}
	o, _ := newTestOrchestrator(t, analyzer, &mockRecorder{})

	ctx, cancel := context.WithCancel(context.Background())
	done, err := o.Start(ctx, urlRequest())
	require.NoError(t, err)
	cancel()
	<-done

	snap := o.Snapshot()
	assert.Equal(t, StateFailed, snap.State)
	assert.Equal(t, context.Canceled.Error(), snap.Error)
}

func TestScan_CancelledAfterAnalysisRecordsNothing(t *testing.T) {
	recorder := &mockRecorder{}
	analyzer := &mockAnalyzer{result: sampleResult()}
	o, _ := newTestOrchestrator(t, analyzer, recorder)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// Let the narration reach its last line, then cancel as the report arrives.
	analyzer.beforeReturn = func() {
		assert.Eventually(t, func() bool {
			lines := stripPrefix(o.Snapshot().Log)
			return len(lines) > 0 && strings.HasPrefix(lines[len(lines)-1], "VALIDATION:")
		}, time.Second, time.Millisecond)
		cancel()
	}

	_, err := o.Scan(ctx, urlRequest())
	require.ErrorIs(t, err, context.Canceled)

	snap := o.Snapshot()
	assert.Equal(t, StateFailed, snap.State)
	assert.Nil(t, snap.Result)
	assert.Zero(t, recorder.count(), "a cancelled scan is not saved")
	lines := stripPrefix(snap.Log)
	assert.Equal(t, LineFailure, lines[len(lines)-1])
}

func TestSubscribe_ReceivesLogAndState(t *testing.T) {
	o, _ := newTestOrchestrator(t, &mockAnalyzer{result: sampleResult()}, &mockRecorder{})

	ch, unsubscribe := o.Subscribe()
	defer unsubscribe()

	_, err := o.Scan(context.Background(), urlRequest())
	require.NoError(t, err)

	var states []string
	var logs int
	timeout := time.After(time.Second)
	for len(states) < 2 {
		select {
		case msg := <-ch:
			switch p := msg.Payload.(type) {
			case events.StatePayload:
				states = append(states, p.State)
			case events.LogPayload:
				logs++
			}
		case <-timeout:
			t.Fatalf("timed out waiting for events, got states %v", states)
		}
	}
	assert.Equal(t, []string{"running", "succeeded"}, states)
	assert.Equal(t, len(o.Snapshot().Log), logs)
}

func TestDismissAndLoad(t *testing.T) {
	o, _ := newTestOrchestrator(t, &mockAnalyzer{result: sampleResult()}, &mockRecorder{})

	_, err := o.Scan(context.Background(), urlRequest())
	require.NoError(t, err)

	require.NoError(t, o.Dismiss())
	snap := o.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.Nil(t, snap.Result)
	assert.NotEmpty(t, snap.Log)

	entry := *sampleResult()
	entry.Timestamp = "2024-12-31T23:59:59.000Z"
	require.NoError(t, o.Load(entry))
	snap = o.Snapshot()
	assert.Equal(t, StateSucceeded, snap.State)
	assert.Empty(t, snap.Log)
	require.NotNil(t, snap.Result)
	assert.Equal(t, entry.Timestamp, snap.Result.Timestamp)
}
