package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/etlboard/etlboard/internal/dataset"
)

// Phase is the pipeline's position in the extract → transform → load sequence.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseExtracted   Phase = "extracted"
	PhaseTransformed Phase = "transformed"
	PhaseAnalyzed    Phase = "analyzed"
)

// Stage names used in logs, observer callbacks and metric labels.
const (
	StageExtract   = "extract"
	StageTransform = "transform"
	StageLoad      = "load"
)

// ErrNotReady is returned when a stage is run before the one feeding it.
// Callers should treat it as "out of order", not as a stage failure.
var ErrNotReady = errors.New("pipeline: previous stage has not run")

// LogEntry is one timestamped processing-log line shown on the dashboard.
type LogEntry struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

// StageTiming records one stage execution for the status panel.
type StageTiming struct {
	Stage      string    `json:"stage"`
	DurationMS float64   `json:"duration_ms"`
	RanAt      time.Time `json:"ran_at"`
}

// Observer receives stage lifecycle events. Implementations must be fast;
// callbacks run on the request path.
type Observer interface {
	StageStarted(runID, stage string)
	StageCompleted(runID, stage string, duration time.Duration, err error)
}

// Status is a point-in-time snapshot of the pipeline for the API and the
// WebSocket stream.
type Status struct {
	Phase        Phase         `json:"phase"`
	RunID        string        `json:"run_id,omitempty"`
	Source       string        `json:"source,omitempty"` // "generated" | "csv"
	RawRecords   int           `json:"raw_records"`
	CleanRecords int           `json:"clean_records"`
	ErrorRecords int           `json:"error_records"`
	QualityScore float64       `json:"quality_score"`
	Timings      []StageTiming `json:"timings"`
}

// Pipeline holds the demo's entire transient state: the raw sample, the
// transformed rows, the quality report, the insights and the processing log.
// Everything is in-memory and discarded on process exit.
//
// Pipeline is safe for concurrent use. Stages are meant to be driven one at
// a time from the dashboard; readers (status, charts, the WS hub) may poll
// concurrently.
type Pipeline struct {
	mu  sync.RWMutex
	now func() time.Time // injectable for deterministic tests

	genOpts    dataset.Options
	stageDelay time.Duration

	// observers is append-only and set up before the server starts serving,
	// so it is read without the lock.
	observers []Observer

	runID    string
	phase    Phase
	source   string
	raw      []dataset.Order
	rows     []Row
	report   *QualityReport
	insights *Insights
	logs     []LogEntry
	timings  []StageTiming
}

// New creates an idle Pipeline with the given generator options and the
// configured per-stage demo delay.
func New(genOpts dataset.Options, stageDelay time.Duration) *Pipeline {
	return &Pipeline{
		now:        time.Now,
		genOpts:    genOpts,
		stageDelay: stageDelay,
		phase:      PhaseIdle,
	}
}

// Subscribe registers an observer for stage events. Must be called before
// the pipeline starts serving requests.
func (p *Pipeline) Subscribe(o Observer) {
	p.observers = append(p.observers, o)
}

// Configure replaces the generator options and stage delay. Called on config
// hot reload; takes effect from the next extract.
func (p *Pipeline) Configure(genOpts dataset.Options, stageDelay time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.genOpts = genOpts
	p.stageDelay = stageDelay
}

// Extract runs the extract stage with freshly generated sample data,
// starting a new run and discarding any previous run's state. records
// overrides the configured record count when positive.
func (p *Pipeline) Extract(ctx context.Context, records int) error {
	p.mu.RLock()
	opts := p.genOpts
	p.mu.RUnlock()
	if records > 0 {
		opts.Records = records
	}

	runID := uuid.New().String()
	return p.runStage(ctx, StageExtract, runID, func() error {
		orders := dataset.New(opts).Generate()
		p.beginRun(runID, "generated", orders)
		p.logf("generated %d sample records", len(orders))
		return nil
	})
}

// ExtractOrders runs the extract stage with externally supplied orders
// (the CSV upload path), starting a new run.
func (p *Pipeline) ExtractOrders(ctx context.Context, orders []dataset.Order) error {
	if len(orders) == 0 {
		return fmt.Errorf("pipeline: extract: no orders supplied")
	}
	runID := uuid.New().String()
	return p.runStage(ctx, StageExtract, runID, func() error {
		p.beginRun(runID, "csv", orders)
		p.logf("loaded %d records from uploaded file", len(orders))
		return nil
	})
}

// Transform runs the transform stage: type conversion, validation, business
// rules and enrichment. Returns ErrNotReady if extract has not run.
func (p *Pipeline) Transform(ctx context.Context) error {
	p.mu.RLock()
	raw := p.raw
	runID := p.runID
	p.mu.RUnlock()
	if len(raw) == 0 {
		return ErrNotReady
	}

	return p.runStage(ctx, StageTransform, runID, func() error {
		rows, report := transform(raw, p.now())

		p.mu.Lock()
		p.rows = rows
		p.report = report
		p.insights = nil
		p.phase = PhaseTransformed
		p.logfLocked("transformation complete: %d/%d clean records (score %.2f%%)",
			report.CleanRecords, report.TotalRecords, report.Score)
		p.mu.Unlock()
		return nil
	})
}

// Analyze runs the load stage: it derives the headline insights from the
// transformed rows. Returns ErrNotReady if transform has not run.
func (p *Pipeline) Analyze(ctx context.Context) error {
	p.mu.RLock()
	rows := p.rows
	runID := p.runID
	p.mu.RUnlock()
	if len(rows) == 0 {
		return ErrNotReady
	}

	return p.runStage(ctx, StageLoad, runID, func() error {
		ins := analyze(rows)

		p.mu.Lock()
		p.insights = ins
		p.phase = PhaseAnalyzed
		p.logfLocked("analysis complete: %d orders, %.2f total revenue",
			ins.TotalOrders, ins.TotalRevenue)
		p.mu.Unlock()
		return nil
	})
}

// Reset returns the pipeline to idle, discarding all transient state
// including the processing log.
func (p *Pipeline) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.runID = ""
	p.phase = PhaseIdle
	p.source = ""
	p.raw = nil
	p.rows = nil
	p.report = nil
	p.insights = nil
	p.logs = nil
	p.timings = nil
	slog.Info("pipeline reset")
}

// --- accessors ---------------------------------------------------------------

// Phase returns the current phase.
func (p *Pipeline) Phase() Phase {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.phase
}

// RunID returns the current run's ID, or "" when idle.
func (p *Pipeline) RunID() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.runID
}

// RawCount returns the number of extracted records.
func (p *Pipeline) RawCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.raw)
}

// RawSample returns up to n raw records for the preview table.
func (p *Pipeline) RawSample(n int) []dataset.Order {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if n > len(p.raw) {
		n = len(p.raw)
	}
	out := make([]dataset.Order, n)
	copy(out, p.raw[:n])
	return out
}

// Rows returns a copy of the transformed rows, or nil before transform.
func (p *Pipeline) Rows() []Row {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.rows == nil {
		return nil
	}
	out := make([]Row, len(p.rows))
	copy(out, p.rows)
	return out
}

// Report returns a copy of the quality report, or nil before transform.
func (p *Pipeline) Report() *QualityReport {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.report == nil {
		return nil
	}
	cp := *p.report
	cp.Issues = append([]Issue(nil), p.report.Issues...)
	return &cp
}

// Insights returns a copy of the derived insights, or nil before load.
func (p *Pipeline) Insights() *Insights {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.insights == nil {
		return nil
	}
	cp := *p.insights
	return &cp
}

// Logs returns a copy of the processing log.
func (p *Pipeline) Logs() []LogEntry {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]LogEntry(nil), p.logs...)
}

// Status returns a point-in-time snapshot for the API and WS stream.
func (p *Pipeline) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	st := Status{
		Phase:      p.phase,
		RunID:      p.runID,
		Source:     p.source,
		RawRecords: len(p.raw),
		Timings:    append([]StageTiming(nil), p.timings...),
	}
	if p.report != nil {
		st.CleanRecords = p.report.CleanRecords
		st.ErrorRecords = p.report.ErrorRecords
		st.QualityScore = p.report.Score
	}
	return st
}

// --- internal ----------------------------------------------------------------

// runStage wraps a stage body with observer callbacks, the configured demo
// delay, duration tracking and error logging. runID is the run the stage
// belongs to; extract passes the new run's ID before beginRun installs it.
func (p *Pipeline) runStage(ctx context.Context, stage, runID string, body func() error) error {
	p.mu.RLock()
	delay := p.stageDelay
	p.mu.RUnlock()

	for _, o := range p.observers {
		o.StageStarted(runID, stage)
	}
	start := p.now()

	var err error
	if delay > 0 {
		select {
		case <-ctx.Done():
			err = ctx.Err()
		case <-time.After(delay):
		}
	}
	if err == nil {
		err = body()
	}
	duration := p.now().Sub(start)

	p.mu.Lock()
	p.timings = append(p.timings, StageTiming{
		Stage:      stage,
		DurationMS: float64(duration.Microseconds()) / 1000,
		RanAt:      p.now(),
	})
	if err != nil {
		p.logfLocked("%s failed: %v", stage, err)
	}
	p.mu.Unlock()

	if err != nil {
		slog.Error("stage failed", "stage", stage, "run_id", runID, "err", err)
	} else {
		slog.Info("stage complete", "stage", stage, "run_id", runID, "duration", duration)
	}

	for _, o := range p.observers {
		o.StageCompleted(runID, stage, duration, err)
	}
	return err
}

// beginRun installs raw data for a new run and clears downstream state.
// Called from inside a stage body; takes the write lock itself.
func (p *Pipeline) beginRun(runID, source string, orders []dataset.Order) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.runID = runID
	p.phase = PhaseExtracted
	p.source = source
	p.raw = orders
	p.rows = nil
	p.report = nil
	p.insights = nil
	p.logs = nil
	p.timings = nil
}

func (p *Pipeline) logf(format string, args ...interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logfLocked(format, args...)
}

// logfLocked appends a processing-log entry; the caller holds the write lock.
func (p *Pipeline) logfLocked(format string, args ...interface{}) {
	p.logs = append(p.logs, LogEntry{
		Time:    p.now(),
		Message: fmt.Sprintf(format, args...),
	})
}
