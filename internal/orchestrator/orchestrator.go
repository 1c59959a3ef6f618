// Package orchestrator manages the lifecycle of a single scan: it narrates
// progress while the analysis runs, records successful reports in history and
// exposes the observable state to the CLI and the HTTP API.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/websec-cli/api/schemas"
	"github.com/xkilldash9x/websec-cli/internal/config"
	"github.com/xkilldash9x/websec-cli/internal/events"
)

// ErrScanInProgress is returned when a scan is requested while another one is running.
var ErrScanInProgress = errors.New("a scan is already in progress")

// fallbackErrorMessage replaces errors that carry no text.
const fallbackErrorMessage = "An unexpected error occurred during the analysis."

// State is the observable lifecycle phase of the orchestrator.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// Analyzer produces a normalized report for one target.
type Analyzer interface {
	Analyze(ctx context.Context, target string, kind schemas.ScanKind, activeModules []string) (*schemas.ScanResult, error)
}

// Recorder persists a finished report and returns the stamped copy.
type Recorder interface {
	Record(ctx context.Context, result schemas.ScanResult) schemas.ScanResult
}

// Snapshot is a point-in-time copy of the orchestrator state.
type Snapshot struct {
	State  State               `json:"state"`
	Log    []string            `json:"log"`
	Result *schemas.ScanResult `json:"result,omitempty"`
	Error  string              `json:"error,omitempty"`
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock overrides the clock used for log line prefixes.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// Orchestrator runs at most one scan at a time.
type Orchestrator struct {
	analyzer Analyzer
	history  Recorder
	bus      *events.Bus
	logger   *zap.Logger
	pace     float64
	now      func() time.Time

	mu     sync.Mutex
	state  State
	log    []string
	result *schemas.ScanResult
	err    string

	wg sync.WaitGroup
}

// New creates an Orchestrator with its collaborators provided as interfaces.
func New(cfg config.ScanConfig, analyzer Analyzer, history Recorder, bus *events.Bus, logger *zap.Logger, opts ...Option) (*Orchestrator, error) {
	if analyzer == nil || history == nil || bus == nil || logger == nil {
		return nil, fmt.Errorf("cannot initialize orchestrator with nil dependencies")
	}
	o := &Orchestrator{
		analyzer: analyzer,
		history:  history,
		bus:      bus,
		logger:   logger.Named("orchestrator"),
		pace:     cfg.NarrationPace,
		now:      time.Now,
		state:    StateIdle,
		log:      []string{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Scan runs a scan to completion and returns the recorded report.
func (o *Orchestrator) Scan(ctx context.Context, req schemas.ScanRequest) (*schemas.ScanResult, error) {
	if err := o.begin(req); err != nil {
		return nil, err
	}
	return o.run(ctx, req)
}

// Start launches a scan in the background. The state is already running when
// Start returns; the returned channel is closed once the scan settles.
func (o *Orchestrator) Start(ctx context.Context, req schemas.ScanRequest) (<-chan struct{}, error) {
	if err := o.begin(req); err != nil {
		return nil, err
	}
	done := make(chan struct{})
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer close(done)
		_, _ = o.run(ctx, req)
	}()
	return done, nil
}

// Wait blocks until every background scan has settled.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

func (o *Orchestrator) begin(req schemas.ScanRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	o.mu.Lock()
	if o.state == StateRunning {
		o.mu.Unlock()
		return ErrScanInProgress
	}
	o.state = StateRunning
	o.err = ""
	o.result = nil
	o.log = []string{}
	o.mu.Unlock()

	o.publishState(StateRunning, "")
	return nil
}

func (o *Orchestrator) run(ctx context.Context, req schemas.ScanRequest) (*schemas.ScanResult, error) {
	modules := req.ActiveModules()
	o.logger.Info("Scan started",
		zap.String("kind", string(req.ScanType)),
		zap.Int("target_len", len(req.Target)),
		zap.Strings("modules", modules))
	start := time.Now()

	var (
		g          errgroup.Group
		result     *schemas.ScanResult
		analyzeErr error
		narrateErr error
	)

	// Neither goroutine returns an error to the group: a failed analysis must
	// not cut the narration short.
	g.Go(func() error {
		result, analyzeErr = o.analyzer.Analyze(ctx, req.Target, req.ScanType, modules)
		return nil
	})
	g.Go(func() error {
		narrateErr = o.narrate(ctx, Narration(req.Target, req.ScanType, modules))
		return nil
	})
	_ = g.Wait()

	err := analyzeErr
	if err == nil && result == nil {
		err = errors.New(fallbackErrorMessage)
	}
	if err == nil && narrateErr != nil {
		err = narrateErr
	}
	if err != nil {
		return nil, o.fail(err, time.Since(start))
	}

	o.appendLog(LineSuccess)
	if err := o.sleep(ctx, settleDelay); err != nil {
		return nil, o.fail(err, time.Since(start))
	}

	recorded := o.history.Record(ctx, *result)

	o.mu.Lock()
	o.result = &recorded
	o.state = StateSucceeded
	o.mu.Unlock()
	o.publishState(StateSucceeded, "")

	o.logger.Info("Scan completed",
		zap.String("timestamp", recorded.Timestamp),
		zap.Int("risk_score", recorded.RiskScore),
		zap.Duration("duration", time.Since(start)))

	out := recorded
	return &out, nil
}

func (o *Orchestrator) fail(err error, elapsed time.Duration) error {
	msg := err.Error()
	if msg == "" {
		msg = fallbackErrorMessage
	}
	o.logger.Error("Scan failed", zap.Error(err), zap.Duration("duration", elapsed))

	o.mu.Lock()
	o.err = msg
	o.mu.Unlock()
	o.appendLog(LineFailure)

	o.mu.Lock()
	o.state = StateFailed
	o.mu.Unlock()
	o.publishState(StateFailed, msg)
	return err
}

func (o *Orchestrator) narrate(ctx context.Context, steps []Step) error {
	for _, step := range steps {
		if step.Line != "" {
			o.appendLog(step.Line)
		}
		if err := o.sleep(ctx, step.Delay); err != nil {
			return err
		}
	}
	return nil
}

// sleep waits for d scaled by the narration pace.
func (o *Orchestrator) sleep(ctx context.Context, d time.Duration) error {
	scaled := time.Duration(float64(d) * o.pace)
	if scaled <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(scaled)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) appendLog(line string) {
	stamped := fmt.Sprintf("[%s] %s", o.now().UTC().Format("15:04:05"), line)
	o.mu.Lock()
	o.log = append(o.log, stamped)
	o.mu.Unlock()
	o.bus.Publish(events.TypeLog, events.LogPayload{Line: stamped})
}

func (o *Orchestrator) publishState(state State, errMsg string) {
	o.bus.Publish(events.TypeState, events.StatePayload{State: string(state), Error: errMsg})
}

// Snapshot returns a copy of the current state, progress log and report.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	snap := Snapshot{
		State: o.state,
		Log:   append([]string(nil), o.log...),
		Error: o.err,
	}
	if snap.Log == nil {
		snap.Log = []string{}
	}
	if o.result != nil {
		r := *o.result
		snap.Result = &r
	}
	return snap
}

// Subscribe streams log lines and state changes. Slow subscribers miss events.
func (o *Orchestrator) Subscribe() (<-chan events.Message, func()) {
	return o.bus.Subscribe(events.TypeLog, events.TypeState)
}

// Dismiss leaves the report view and returns to idle.
func (o *Orchestrator) Dismiss() error {
	o.mu.Lock()
	if o.state == StateRunning {
		o.mu.Unlock()
		return ErrScanInProgress
	}
	o.result = nil
	o.state = StateIdle
	o.mu.Unlock()

	o.publishState(StateIdle, "")
	return nil
}

// Load makes a previously recorded report the active one.
func (o *Orchestrator) Load(result schemas.ScanResult) error {
	o.mu.Lock()
	if o.state == StateRunning {
		o.mu.Unlock()
		return ErrScanInProgress
	}
	o.result = &result
	o.log = []string{}
	o.err = ""
	o.state = StateSucceeded
	o.mu.Unlock()

	o.publishState(StateSucceeded, "")
	return nil
}
