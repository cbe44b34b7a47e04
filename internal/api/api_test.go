package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/etlboard/etlboard/internal/config"
	"github.com/etlboard/etlboard/internal/dataset"
	"github.com/etlboard/etlboard/internal/metrics"
	"github.com/etlboard/etlboard/internal/pipeline"
	"github.com/etlboard/etlboard/internal/quality"
)

func testOptions() dataset.Options {
	return dataset.Options{
		Records:         200,
		Seed:            7,
		InvalidEmailPct: 10,
		InvalidPricePct: 5,
	}
}

func newTestServer(t *testing.T, rules ...config.QualityRule) *httptest.Server {
	t.Helper()
	pipe := pipeline.New(testOptions(), 0)
	alerts := quality.New(config.QualityConfig{Rules: rules})
	srv := httptest.NewServer(New(pipe, alerts, metrics.New(), 5))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body string, out interface{}) int {
	t.Helper()
	var rd *strings.Reader
	if body != "" {
		rd = strings.NewReader(body)
	} else {
		rd = strings.NewReader("")
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decode body: %v", method, url, err)
		}
	}
	return resp.StatusCode
}

func runFullFlow(t *testing.T, srv *httptest.Server) StateResponse {
	t.Helper()
	var state StateResponse
	for _, step := range []string{"extract", "transform", "load"} {
		if code := doJSON(t, http.MethodPost, srv.URL+"/api/v1/"+step, "", &state); code != http.StatusOK {
			t.Fatalf("POST %s: got status %d", step, code)
		}
	}
	return state
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)

	var body map[string]string
	if code := doJSON(t, http.MethodGet, srv.URL+"/api/v1/healthz", "", &body); code != http.StatusOK {
		t.Fatalf("healthz: got status %d", code)
	}
	if body["status"] != "ok" {
		t.Errorf("healthz body: got %v", body)
	}
}

func TestFullFlow(t *testing.T) {
	srv := newTestServer(t)

	var state StateResponse
	if code := doJSON(t, http.MethodPost, srv.URL+"/api/v1/extract", "", &state); code != http.StatusOK {
		t.Fatalf("extract: got status %d", code)
	}
	if state.Phase != pipeline.PhaseExtracted || state.RawRecords != 200 {
		t.Errorf("after extract: phase %q, raw %d", state.Phase, state.RawRecords)
	}
	if state.Source != "generated" {
		t.Errorf("source: got %q, want generated", state.Source)
	}
	if state.RunID == "" {
		t.Error("run id empty after extract")
	}

	if code := doJSON(t, http.MethodPost, srv.URL+"/api/v1/transform", "", &state); code != http.StatusOK {
		t.Fatalf("transform: got status %d", code)
	}
	if state.Phase != pipeline.PhaseTransformed || state.Quality == nil {
		t.Errorf("after transform: phase %q, quality %v", state.Phase, state.Quality)
	}
	if state.Quality.TotalRecords != 200 {
		t.Errorf("quality total: got %d, want 200", state.Quality.TotalRecords)
	}

	if code := doJSON(t, http.MethodPost, srv.URL+"/api/v1/load", "", &state); code != http.StatusOK {
		t.Fatalf("load: got status %d", code)
	}
	if state.Phase != pipeline.PhaseAnalyzed || state.Insights == nil {
		t.Errorf("after load: phase %q, insights %v", state.Phase, state.Insights)
	}
	if state.Insights.TotalOrders != 200 {
		t.Errorf("insights orders: got %d, want 200", state.Insights.TotalOrders)
	}
	if len(state.Logs) == 0 {
		t.Error("no processing log entries after a full run")
	}

	var status StateResponse
	if code := doJSON(t, http.MethodGet, srv.URL+"/api/v1/status", "", &status); code != http.StatusOK {
		t.Fatalf("status: got status %d", code)
	}
	if status.Phase != pipeline.PhaseAnalyzed || len(status.Timings) != 3 {
		t.Errorf("status: phase %q, %d timings", status.Phase, len(status.Timings))
	}
}

func TestStageOrderEnforced(t *testing.T) {
	srv := newTestServer(t)

	var errBody errorResponse
	if code := doJSON(t, http.MethodPost, srv.URL+"/api/v1/transform", "", &errBody); code != http.StatusConflict {
		t.Errorf("transform before extract: got status %d, want 409", code)
	}
	if code := doJSON(t, http.MethodPost, srv.URL+"/api/v1/load", "", &errBody); code != http.StatusConflict {
		t.Errorf("load before transform: got status %d, want 409", code)
	}
	if errBody.Error == "" {
		t.Error("conflict response carries no error message")
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t)

	if code := doJSON(t, http.MethodGet, srv.URL+"/api/v1/extract", "", nil); code != http.StatusMethodNotAllowed {
		t.Errorf("GET extract: got status %d, want 405", code)
	}
	if code := doJSON(t, http.MethodPost, srv.URL+"/api/v1/status", "", nil); code != http.StatusMethodNotAllowed {
		t.Errorf("POST status: got status %d, want 405", code)
	}
}

func TestExtract_RecordsOverride(t *testing.T) {
	srv := newTestServer(t)

	var state StateResponse
	if code := doJSON(t, http.MethodPost, srv.URL+"/api/v1/extract", `{"records": 25}`, &state); code != http.StatusOK {
		t.Fatalf("extract: got status %d", code)
	}
	if state.RawRecords != 25 {
		t.Errorf("raw records: got %d, want 25", state.RawRecords)
	}
}

func TestSample(t *testing.T) {
	srv := newTestServer(t)

	if code := doJSON(t, http.MethodGet, srv.URL+"/api/v1/sample", "", nil); code != http.StatusNotFound {
		t.Errorf("sample before extract: got status %d, want 404", code)
	}

	doJSON(t, http.MethodPost, srv.URL+"/api/v1/extract", "", nil)

	var sample SampleResponse
	if code := doJSON(t, http.MethodGet, srv.URL+"/api/v1/sample", "", &sample); code != http.StatusOK {
		t.Fatalf("sample: got status %d", code)
	}
	if len(sample.Records) != 5 || sample.Total != 200 {
		t.Errorf("sample: got %d records of %d, want 5 of 200", len(sample.Records), sample.Total)
	}

	if code := doJSON(t, http.MethodGet, srv.URL+"/api/v1/sample?n=3", "", &sample); code != http.StatusOK {
		t.Fatalf("sample?n=3: got status %d", code)
	}
	if len(sample.Records) != 3 {
		t.Errorf("sample?n=3: got %d records", len(sample.Records))
	}

	if code := doJSON(t, http.MethodGet, srv.URL+"/api/v1/sample?n=abc", "", nil); code != http.StatusBadRequest {
		t.Errorf("sample?n=abc: got status %d, want 400", code)
	}
}

func TestQualityAndInsightsBeforeRun(t *testing.T) {
	srv := newTestServer(t)

	if code := doJSON(t, http.MethodGet, srv.URL+"/api/v1/quality", "", nil); code != http.StatusNotFound {
		t.Errorf("quality before transform: got status %d, want 404", code)
	}
	if code := doJSON(t, http.MethodGet, srv.URL+"/api/v1/insights", "", nil); code != http.StatusNotFound {
		t.Errorf("insights before load: got status %d, want 404", code)
	}
}

func TestCharts(t *testing.T) {
	srv := newTestServer(t)

	if code := doJSON(t, http.MethodGet, srv.URL+"/api/v1/charts/categories", "", nil); code != http.StatusNotFound {
		t.Errorf("chart before transform: got status %d, want 404", code)
	}

	doJSON(t, http.MethodPost, srv.URL+"/api/v1/extract", "", nil)
	doJSON(t, http.MethodPost, srv.URL+"/api/v1/transform", "", nil)

	for _, name := range []string{"categories", "monthly", "regions", "segments", "tiers", "statuses"} {
		var series []map[string]interface{}
		if code := doJSON(t, http.MethodGet, srv.URL+"/api/v1/charts/"+name, "", &series); code != http.StatusOK {
			t.Errorf("chart %s: got status %d", name, code)
			continue
		}
		if len(series) == 0 {
			t.Errorf("chart %s: empty series", name)
		}
	}

	if code := doJSON(t, http.MethodGet, srv.URL+"/api/v1/charts/nope", "", nil); code != http.StatusNotFound {
		t.Errorf("unknown chart: got status %d, want 404", code)
	}
}

func TestExport(t *testing.T) {
	srv := newTestServer(t)

	if code := doJSON(t, http.MethodGet, srv.URL+"/api/v1/export", "", nil); code != http.StatusNotFound {
		t.Errorf("export before extract: got status %d, want 404", code)
	}

	doJSON(t, http.MethodPost, srv.URL+"/api/v1/extract", `{"records": 40}`, nil)

	resp, err := http.Get(srv.URL + "/api/v1/export")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("export: got status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/csv" {
		t.Errorf("content type: got %q, want text/csv", ct)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "etlboard_orders.csv") {
		t.Errorf("content disposition: got %q", cd)
	}

	// The download round-trips through the CSV importer.
	orders, err := dataset.Import(resp.Body)
	if err != nil {
		t.Fatalf("import exported csv: %v", err)
	}
	if len(orders) != 40 {
		t.Errorf("exported orders: got %d, want 40", len(orders))
	}
}

func TestUpload(t *testing.T) {
	srv := newTestServer(t)

	opts := testOptions()
	opts.Records = 30
	orders := dataset.New(opts).Generate()

	var csvBuf bytes.Buffer
	if err := dataset.Export(&csvBuf, orders); err != nil {
		t.Fatalf("export csv: %v", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "orders.csv")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	fw.Write(csvBuf.Bytes())
	mw.Close()

	resp, err := http.Post(srv.URL+"/api/v1/extract", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upload: got status %d", resp.StatusCode)
	}

	var state StateResponse
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		t.Fatalf("decode upload response: %v", err)
	}
	if state.Source != "csv" || state.RawRecords != 30 {
		t.Errorf("after upload: source %q, raw %d", state.Source, state.RawRecords)
	}
}

func TestUpload_MissingFile(t *testing.T) {
	srv := newTestServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	mw.WriteField("notfile", "x")
	mw.Close()

	resp, err := http.Post(srv.URL+"/api/v1/extract", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("upload without file: got status %d, want 400", resp.StatusCode)
	}
}

func TestReset(t *testing.T) {
	srv := newTestServer(t)
	runFullFlow(t, srv)

	var state StateResponse
	if code := doJSON(t, http.MethodPost, srv.URL+"/api/v1/reset", "", &state); code != http.StatusOK {
		t.Fatalf("reset: got status %d", code)
	}
	if state.Phase != pipeline.PhaseIdle || state.RawRecords != 0 || len(state.Logs) != 0 {
		t.Errorf("after reset: %+v", state)
	}
}

func TestAlertsEndpoint(t *testing.T) {
	srv := newTestServer(t, config.QualityRule{
		Name:      "any-errors",
		Condition: "error_records > 0",
		Severity:  "info",
	})

	var alerts []*quality.Alert
	if code := doJSON(t, http.MethodGet, srv.URL+"/api/v1/alerts", "", &alerts); code != http.StatusOK {
		t.Fatalf("alerts: got status %d", code)
	}
	if len(alerts) != 0 {
		t.Errorf("alerts before any run: got %d", len(alerts))
	}

	doJSON(t, http.MethodPost, srv.URL+"/api/v1/extract", "", nil)
	doJSON(t, http.MethodPost, srv.URL+"/api/v1/transform", "", nil)

	if code := doJSON(t, http.MethodGet, srv.URL+"/api/v1/alerts", "", &alerts); code != http.StatusOK {
		t.Fatalf("alerts: got status %d", code)
	}
	// 10% bad emails on 200 records guarantees error_records > 0.
	if len(alerts) != 1 || alerts[0].RuleName != "any-errors" {
		t.Fatalf("alerts after transform: got %+v", alerts)
	}
	if alerts[0].State != "firing" {
		t.Errorf("alert state: got %q", alerts[0].State)
	}
}

func TestLogsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	doJSON(t, http.MethodPost, srv.URL+"/api/v1/extract", "", nil)

	var logs []pipeline.LogEntry
	if code := doJSON(t, http.MethodGet, srv.URL+"/api/v1/logs", "", &logs); code != http.StatusOK {
		t.Fatalf("logs: got status %d", code)
	}
	if len(logs) == 0 {
		t.Fatal("no log entries after extract")
	}
	want := fmt.Sprintf("generated %d sample records", 200)
	if logs[0].Message != want {
		t.Errorf("first log entry: got %q, want %q", logs[0].Message, want)
	}
}
