package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/etlboard/etlboard/internal/dataset"
)

func testPipeline() *Pipeline {
	return New(dataset.Options{
		Records:         200,
		Seed:            42,
		InvalidEmailPct: 5,
		InvalidPricePct: 2,
	}, 0)
}

// recordingObserver collects stage events for assertions.
type recordingObserver struct {
	mu          sync.Mutex
	started     []string
	startedRuns []string
	completed   []string
	errs        []error
}

func (o *recordingObserver) StageStarted(runID, stage string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started = append(o.started, stage)
	o.startedRuns = append(o.startedRuns, runID)
}

func (o *recordingObserver) StageCompleted(runID, stage string, d time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.completed = append(o.completed, stage)
	o.errs = append(o.errs, err)
}

func TestPipeline_FullFlow(t *testing.T) {
	p := testPipeline()
	ctx := context.Background()

	if p.Phase() != PhaseIdle {
		t.Fatalf("initial phase: got %s, want idle", p.Phase())
	}

	if err := p.Extract(ctx, 0); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if p.Phase() != PhaseExtracted {
		t.Errorf("phase after extract: got %s, want extracted", p.Phase())
	}
	if p.RawCount() != 200 {
		t.Errorf("raw count: got %d, want 200", p.RawCount())
	}
	if p.RunID() == "" {
		t.Error("run ID empty after extract")
	}

	if err := p.Transform(ctx); err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if p.Phase() != PhaseTransformed {
		t.Errorf("phase after transform: got %s, want transformed", p.Phase())
	}
	report := p.Report()
	if report == nil {
		t.Fatal("Report nil after transform")
	}
	if report.TotalRecords != 200 {
		t.Errorf("report total: got %d, want 200", report.TotalRecords)
	}
	if report.CleanRecords+report.ErrorRecords != report.TotalRecords {
		t.Errorf("report does not add up: %+v", report)
	}

	if err := p.Analyze(ctx); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if p.Phase() != PhaseAnalyzed {
		t.Errorf("phase after analyze: got %s, want analyzed", p.Phase())
	}
	ins := p.Insights()
	if ins == nil {
		t.Fatal("Insights nil after analyze")
	}
	if ins.TotalOrders != 200 {
		t.Errorf("insights orders: got %d, want 200", ins.TotalOrders)
	}
	if ins.TotalRevenue <= 0 {
		t.Errorf("insights revenue: got %g, want > 0", ins.TotalRevenue)
	}
}

func TestPipeline_OutOfOrder(t *testing.T) {
	p := testPipeline()
	ctx := context.Background()

	if err := p.Transform(ctx); !errors.Is(err, ErrNotReady) {
		t.Errorf("Transform before extract: got %v, want ErrNotReady", err)
	}
	if err := p.Analyze(ctx); !errors.Is(err, ErrNotReady) {
		t.Errorf("Analyze before transform: got %v, want ErrNotReady", err)
	}

	if err := p.Extract(ctx, 0); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if err := p.Analyze(ctx); !errors.Is(err, ErrNotReady) {
		t.Errorf("Analyze before transform: got %v, want ErrNotReady", err)
	}
}

func TestPipeline_ExtractOrders(t *testing.T) {
	p := testPipeline()
	orders := dataset.New(dataset.Options{Records: 10, Seed: 7}).Generate()

	if err := p.ExtractOrders(context.Background(), orders); err != nil {
		t.Fatalf("ExtractOrders: %v", err)
	}
	if p.RawCount() != 10 {
		t.Errorf("raw count: got %d, want 10", p.RawCount())
	}
	if st := p.Status(); st.Source != "csv" {
		t.Errorf("source: got %q, want csv", st.Source)
	}

	if err := p.ExtractOrders(context.Background(), nil); err == nil {
		t.Error("ExtractOrders with no orders: expected error, got nil")
	}
}

func TestPipeline_NewRunDiscardsDownstream(t *testing.T) {
	p := testPipeline()
	ctx := context.Background()

	if err := p.Extract(ctx, 0); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	firstRun := p.RunID()
	if err := p.Transform(ctx); err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if err := p.Analyze(ctx); err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if err := p.Extract(ctx, 50); err != nil {
		t.Fatalf("re-Extract: %v", err)
	}
	if p.RunID() == firstRun {
		t.Error("run ID did not change on re-extract")
	}
	if p.Phase() != PhaseExtracted {
		t.Errorf("phase: got %s, want extracted", p.Phase())
	}
	if p.Report() != nil || p.Insights() != nil {
		t.Error("downstream state survived a new extract")
	}
	if p.RawCount() != 50 {
		t.Errorf("raw count: got %d, want 50 (records override)", p.RawCount())
	}
}

func TestPipeline_Reset(t *testing.T) {
	p := testPipeline()
	ctx := context.Background()

	if err := p.Extract(ctx, 0); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	p.Reset()

	if p.Phase() != PhaseIdle {
		t.Errorf("phase after reset: got %s, want idle", p.Phase())
	}
	if p.RawCount() != 0 || p.RunID() != "" || len(p.Logs()) != 0 {
		t.Error("reset left state behind")
	}
}

func TestPipeline_LogsAndTimings(t *testing.T) {
	p := testPipeline()
	base := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return base }
	ctx := context.Background()

	if err := p.Extract(ctx, 0); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if err := p.Transform(ctx); err != nil {
		t.Fatalf("Transform: %v", err)
	}

	logs := p.Logs()
	if len(logs) != 2 {
		t.Fatalf("logs: got %d entries, want 2", len(logs))
	}
	if !logs[0].Time.Equal(base) {
		t.Errorf("log time: got %v, want %v", logs[0].Time, base)
	}

	st := p.Status()
	if len(st.Timings) != 2 {
		t.Fatalf("timings: got %d, want 2", len(st.Timings))
	}
	if st.Timings[0].Stage != StageExtract || st.Timings[1].Stage != StageTransform {
		t.Errorf("timing stages: got %+v", st.Timings)
	}
}

func TestPipeline_ObserverEvents(t *testing.T) {
	p := testPipeline()
	obs := &recordingObserver{}
	p.Subscribe(obs)
	ctx := context.Background()

	if err := p.Extract(ctx, 0); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if err := p.Transform(ctx); err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if err := p.Analyze(ctx); err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	want := []string{StageExtract, StageTransform, StageLoad}
	obs.mu.Lock()
	defer obs.mu.Unlock()
	if len(obs.completed) != len(want) {
		t.Fatalf("completed events: got %v, want %v", obs.completed, want)
	}
	for i := range want {
		if obs.completed[i] != want[i] {
			t.Errorf("completed[%d]: got %s, want %s", i, obs.completed[i], want[i])
		}
		if obs.errs[i] != nil {
			t.Errorf("completed[%d] err: got %v", i, obs.errs[i])
		}
	}
}

func TestPipeline_ObserverRunIDs(t *testing.T) {
	p := testPipeline()
	obs := &recordingObserver{}
	p.Subscribe(obs)
	ctx := context.Background()

	if err := p.Extract(ctx, 0); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	firstRun := p.RunID()
	if err := p.Transform(ctx); err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if err := p.Extract(ctx, 0); err != nil {
		t.Fatalf("re-Extract: %v", err)
	}
	secondRun := p.RunID()

	// Extract announces the run it is about to install, not the previous
	// one; downstream stages carry the run they operate on.
	want := []string{firstRun, firstRun, secondRun}
	obs.mu.Lock()
	defer obs.mu.Unlock()
	if len(obs.startedRuns) != len(want) {
		t.Fatalf("started events: got %v, want 3", obs.startedRuns)
	}
	for i := range want {
		if obs.startedRuns[i] != want[i] {
			t.Errorf("started[%d] run: got %q, want %q", i, obs.startedRuns[i], want[i])
		}
	}
}

func TestPipeline_StageDelayHonorsContext(t *testing.T) {
	p := New(dataset.Options{Records: 10, Seed: 1}, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := p.Extract(ctx, 0); !errors.Is(err, context.Canceled) {
		t.Errorf("Extract with cancelled ctx: got %v, want context.Canceled", err)
	}
}

func TestPipeline_Configure(t *testing.T) {
	p := testPipeline()
	p.Configure(dataset.Options{Records: 7, Seed: 1}, 0)

	if err := p.Extract(context.Background(), 0); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if p.RawCount() != 7 {
		t.Errorf("raw count after Configure: got %d, want 7", p.RawCount())
	}
}
