package metrics

import (
	"sort"
	"sync"
	"time"

	dto "github.com/prometheus/client_model/go"
	"google.golang.org/protobuf/proto"
)

// Registry is the demo's own metric state: stage run counts, last stage
// durations and the latest dataset/quality gauges, rendered on demand as
// Prometheus metric families.
//
// Registry implements pipeline.Observer so stage counters update themselves.
// It is safe for concurrent use.
type Registry struct {
	mu sync.Mutex

	stageRuns    map[string]float64 // stage → completed runs
	stageErrors  map[string]float64 // stage → failed runs
	stageSeconds map[string]float64 // stage → last duration in seconds

	recordsExtracted float64
	recordsClean     float64
	recordsError     float64
	qualityScore     float64

	clientCount func() int // connected WS clients; nil until wired
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		stageRuns:    make(map[string]float64),
		stageErrors:  make(map[string]float64),
		stageSeconds: make(map[string]float64),
	}
}

// SetClientCounter wires the WebSocket hub's connection count into the
// exposition. Must be called before the server starts serving.
func (r *Registry) SetClientCounter(fn func() int) {
	r.clientCount = fn
}

// StageStarted implements pipeline.Observer.
func (r *Registry) StageStarted(runID, stage string) {}

// StageCompleted implements pipeline.Observer.
func (r *Registry) StageCompleted(runID, stage string, duration time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stageRuns[stage]++
	if err != nil {
		r.stageErrors[stage]++
	}
	r.stageSeconds[stage] = duration.Seconds()
}

// ObserveExtract records the size of the freshly extracted dataset.
func (r *Registry) ObserveExtract(records int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recordsExtracted = float64(records)
}

// ObserveQuality records the latest transform run's quality numbers.
func (r *Registry) ObserveQuality(clean, errored int, score float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recordsClean = float64(clean)
	r.recordsError = float64(errored)
	r.qualityScore = score
}

// gather renders the current state as metric families, sorted by name.
func (r *Registry) gather() []*dto.MetricFamily {
	r.mu.Lock()
	defer r.mu.Unlock()

	fams := []*dto.MetricFamily{
		counterFamily("etlboard_stage_runs_total",
			"Completed pipeline stage executions.", "stage", r.stageRuns),
		counterFamily("etlboard_stage_errors_total",
			"Failed pipeline stage executions.", "stage", r.stageErrors),
		gaugeFamily("etlboard_stage_duration_seconds",
			"Duration of the most recent execution per stage.", "stage", r.stageSeconds),
		scalarGauge("etlboard_records_extracted",
			"Records in the current run's raw dataset.", r.recordsExtracted),
		scalarGauge("etlboard_records_clean",
			"Clean records in the latest quality report.", r.recordsClean),
		scalarGauge("etlboard_records_error",
			"Flagged records in the latest quality report.", r.recordsError),
		scalarGauge("etlboard_quality_score",
			"Latest data quality score in percent.", r.qualityScore),
	}
	if r.clientCount != nil {
		fams = append(fams, scalarGauge("etlboard_ws_clients",
			"Currently connected dashboard WebSocket clients.", float64(r.clientCount())))
	}

	sort.Slice(fams, func(i, j int) bool { return fams[i].GetName() < fams[j].GetName() })
	return fams
}

// counterFamily builds a counter family with one metric per label value,
// in sorted label order.
func counterFamily(name, help, label string, values map[string]float64) *dto.MetricFamily {
	mf := &dto.MetricFamily{
		Name: proto.String(name),
		Help: proto.String(help),
		Type: dto.MetricType_COUNTER.Enum(),
	}
	for _, lv := range sortedKeys(values) {
		mf.Metric = append(mf.Metric, &dto.Metric{
			Label: []*dto.LabelPair{{
				Name:  proto.String(label),
				Value: proto.String(lv),
			}},
			Counter: &dto.Counter{Value: proto.Float64(values[lv])},
		})
	}
	return mf
}

// gaugeFamily builds a gauge family with one metric per label value.
func gaugeFamily(name, help, label string, values map[string]float64) *dto.MetricFamily {
	mf := &dto.MetricFamily{
		Name: proto.String(name),
		Help: proto.String(help),
		Type: dto.MetricType_GAUGE.Enum(),
	}
	for _, lv := range sortedKeys(values) {
		mf.Metric = append(mf.Metric, &dto.Metric{
			Label: []*dto.LabelPair{{
				Name:  proto.String(label),
				Value: proto.String(lv),
			}},
			Gauge: &dto.Gauge{Value: proto.Float64(values[lv])},
		})
	}
	return mf
}

// scalarGauge builds an unlabelled single-value gauge family.
func scalarGauge(name, help string, value float64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name: proto.String(name),
		Help: proto.String(help),
		Type: dto.MetricType_GAUGE.Enum(),
		Metric: []*dto.Metric{
			{Gauge: &dto.Gauge{Value: proto.Float64(value)}},
		},
	}
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
