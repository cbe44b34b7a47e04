package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/etlboard/etlboard/internal/analytics"
	"github.com/etlboard/etlboard/internal/dataset"
	"github.com/etlboard/etlboard/internal/metrics"
	"github.com/etlboard/etlboard/internal/pipeline"
	"github.com/etlboard/etlboard/internal/quality"
)

// maxUploadBytes caps CSV uploads (the 100K-record demo file is ~30MB).
const maxUploadBytes = 64 << 20

// Handler is the HTTP handler for all /api/v1/* endpoints. It drives the
// pipeline and reads its state back as JSON responses.
type Handler struct {
	pipe       *pipeline.Pipeline
	alerts     *quality.Engine
	registry   *metrics.Registry
	sampleRows int
	mux        *http.ServeMux
}

// New creates a Handler wired to the given pipeline, alert engine and metric
// registry, and registers all routes. sampleRows is the default preview size
// for GET /api/v1/sample.
func New(pipe *pipeline.Pipeline, alerts *quality.Engine, registry *metrics.Registry, sampleRows int) *Handler {
	h := &Handler{
		pipe:       pipe,
		alerts:     alerts,
		registry:   registry,
		sampleRows: sampleRows,
		mux:        http.NewServeMux(),
	}

	h.mux.HandleFunc("/api/v1/healthz", h.healthz)
	h.mux.HandleFunc("/api/v1/status", h.status)
	h.mux.HandleFunc("/api/v1/extract", h.extract)
	h.mux.HandleFunc("/api/v1/transform", h.transform)
	h.mux.HandleFunc("/api/v1/load", h.load)
	h.mux.HandleFunc("/api/v1/reset", h.reset)
	h.mux.HandleFunc("/api/v1/sample", h.sample)
	h.mux.HandleFunc("/api/v1/export", h.export)
	h.mux.HandleFunc("/api/v1/quality", h.quality)
	h.mux.HandleFunc("/api/v1/insights", h.insights)
	h.mux.HandleFunc("/api/v1/logs", h.logs)
	h.mux.HandleFunc("/api/v1/alerts", h.activeAlerts)
	h.mux.HandleFunc("/api/v1/charts/", h.chart) // subtree; extracts {name}

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// BuildState assembles the full dashboard state. Shared by GET /api/v1/status
// and the WebSocket hub.
func BuildState(pipe *pipeline.Pipeline, alerts *quality.Engine) StateResponse {
	resp := StateResponse{
		Status:   pipe.Status(),
		Quality:  pipe.Report(),
		Insights: pipe.Insights(),
		Alerts:   alerts.Active(),
	}
	logs := pipe.Logs()
	if len(logs) > logTail {
		logs = logs[len(logs)-logTail:]
	}
	resp.Logs = logs
	return resp
}

// --- route handlers ----------------------------------------------------------

// healthz returns GET /api/v1/healthz: liveness only.
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, map[string]string{"status": "ok"})
}

// status returns GET /api/v1/status: the full dashboard state.
func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, BuildState(h.pipe, h.alerts))
}

// extract handles POST /api/v1/extract. With a multipart body it ingests the
// uploaded CSV file; otherwise it generates sample data, honoring an
// optional {"records": N} JSON body.
func (h *Handler) extract(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var err error
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		err = h.extractUpload(w, r)
	} else {
		var req extractRequest
		if r.Body != nil {
			// An empty or absent body means "use the configured count".
			_ = json.NewDecoder(r.Body).Decode(&req)
		}
		err = h.pipe.Extract(r.Context(), req.Records)
	}
	if err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}

	h.registry.ObserveExtract(h.pipe.RawCount())
	jsonResp(w, http.StatusOK, BuildState(h.pipe, h.alerts))
}

// extractUpload reads the "file" form field and feeds it to the pipeline.
func (h *Handler) extractUpload(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, _, err := r.FormFile("file")
	if err != nil {
		return errors.New("upload: missing form field \"file\"")
	}
	defer file.Close()

	orders, err := dataset.Import(file)
	if err != nil {
		return err
	}
	return h.pipe.ExtractOrders(r.Context(), orders)
}

// transform handles POST /api/v1/transform: 409 when extract hasn't run.
func (h *Handler) transform(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if err := h.pipe.Transform(r.Context()); err != nil {
		if errors.Is(err, pipeline.ErrNotReady) {
			jsonErr(w, http.StatusConflict, "no data extracted yet")
			return
		}
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}

	if report := h.pipe.Report(); report != nil {
		h.alerts.Evaluate(report, h.pipe.RunID())
		h.registry.ObserveQuality(report.CleanRecords, report.ErrorRecords, report.Score)
	}
	jsonResp(w, http.StatusOK, BuildState(h.pipe, h.alerts))
}

// load handles POST /api/v1/load: 409 when transform hasn't run.
func (h *Handler) load(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if err := h.pipe.Analyze(r.Context()); err != nil {
		if errors.Is(err, pipeline.ErrNotReady) {
			jsonErr(w, http.StatusConflict, "no transformed data yet")
			return
		}
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	jsonResp(w, http.StatusOK, BuildState(h.pipe, h.alerts))
}

// reset handles POST /api/v1/reset: back to idle, alerts cleared.
func (h *Handler) reset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	h.pipe.Reset()
	h.alerts.Reset()
	jsonResp(w, http.StatusOK, BuildState(h.pipe, h.alerts))
}

// sample returns GET /api/v1/sample: the first rows of the raw dataset.
// An optional ?n= overrides the configured preview size.
func (h *Handler) sample(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.pipe.RawCount() == 0 {
		jsonErr(w, http.StatusNotFound, "no data extracted yet")
		return
	}

	n := h.sampleRows
	if q := r.URL.Query().Get("n"); q != "" {
		v, err := strconv.Atoi(q)
		if err != nil || v <= 0 {
			jsonErr(w, http.StatusBadRequest, "n must be a positive integer")
			return
		}
		n = v
	}

	jsonResp(w, http.StatusOK, SampleResponse{
		Records: h.pipe.RawSample(n),
		Total:   h.pipe.RawCount(),
	})
}

// export returns GET /api/v1/export: the current raw dataset as a CSV
// download. The file round-trips through POST /api/v1/extract.
func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	total := h.pipe.RawCount()
	if total == 0 {
		jsonErr(w, http.StatusNotFound, "no data extracted yet")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="etlboard_orders.csv"`)
	if err := dataset.Export(w, h.pipe.RawSample(total)); err != nil {
		// The header is already written; all we can do is log.
		slog.Error("csv export failed", "err", err)
	}
}

// quality returns GET /api/v1/quality: the latest quality report.
func (h *Handler) quality(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	report := h.pipe.Report()
	if report == nil {
		jsonErr(w, http.StatusNotFound, "no transformed data yet")
		return
	}
	jsonResp(w, http.StatusOK, report)
}

// insights returns GET /api/v1/insights: the load stage's output.
func (h *Handler) insights(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	ins := h.pipe.Insights()
	if ins == nil {
		jsonErr(w, http.StatusNotFound, "no analysis yet")
		return
	}
	jsonResp(w, http.StatusOK, ins)
}

// logs returns GET /api/v1/logs: the full processing log.
func (h *Handler) logs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, h.pipe.Logs())
}

// activeAlerts returns GET /api/v1/alerts: firing and recently resolved
// quality alerts.
func (h *Handler) activeAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, h.alerts.Active())
}

// chart returns GET /api/v1/charts/{name}: one chart-ready series.
func (h *Handler) chart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rows := h.pipe.Rows()
	if rows == nil {
		jsonErr(w, http.StatusNotFound, "no transformed data yet")
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/api/v1/charts/")
	switch name {
	case "categories":
		jsonResp(w, http.StatusOK, analytics.CategoryRevenue(rows))
	case "monthly":
		jsonResp(w, http.StatusOK, analytics.MonthlyRevenue(rows))
	case "regions":
		jsonResp(w, http.StatusOK, analytics.RegionPerformance(rows))
	case "segments":
		jsonResp(w, http.StatusOK, analytics.SegmentCounts(rows))
	case "tiers":
		jsonResp(w, http.StatusOK, analytics.TierRevenue(rows))
	case "statuses":
		jsonResp(w, http.StatusOK, analytics.StatusCounts(rows))
	default:
		jsonErr(w, http.StatusNotFound, "unknown chart")
	}
}

// --- helpers -----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
