package api

import (
	"github.com/etlboard/etlboard/internal/dataset"
	"github.com/etlboard/etlboard/internal/pipeline"
	"github.com/etlboard/etlboard/internal/quality"
)

// logTail is how many processing-log entries StateResponse carries.
const logTail = 50

// StateResponse is the payload for GET /api/v1/status and the WebSocket
// stream: everything the dashboard needs to render in one message.
type StateResponse struct {
	pipeline.Status
	Quality  *pipeline.QualityReport `json:"quality,omitempty"`
	Insights *pipeline.Insights      `json:"insights,omitempty"`
	Alerts   []*quality.Alert        `json:"alerts"`
	Logs     []pipeline.LogEntry     `json:"logs"`
}

// SampleResponse is the payload for GET /api/v1/sample.
type SampleResponse struct {
	Records []dataset.Order `json:"records"`
	Total   int             `json:"total"`
}

// extractRequest is the optional JSON body for POST /api/v1/extract.
type extractRequest struct {
	Records int `json:"records"`
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
