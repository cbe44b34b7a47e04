// Package api implements the HTTP REST API driving the ETL demo.
//
// New(pipe, alerts, registry, sampleRows) returns a handler that serves:
//
//	GET  /api/v1/healthz         - liveness
//	GET  /api/v1/status          - full dashboard state (phase, quality, insights, logs, alerts)
//	POST /api/v1/extract         - generate sample data, or multipart CSV upload
//	POST /api/v1/transform       - clean/enrich; 409 before extract
//	POST /api/v1/load            - derive insights; 409 before transform
//	POST /api/v1/reset           - back to idle
//	GET  /api/v1/sample          - raw data preview (?n= rows)
//	GET  /api/v1/export          - raw dataset as a CSV download; 404 before extract
//	GET  /api/v1/quality         - quality report; 404 before transform
//	GET  /api/v1/insights        - headline insights; 404 before load
//	GET  /api/v1/logs            - processing log
//	GET  /api/v1/alerts          - firing / recently resolved quality alerts
//	GET  /api/v1/charts/{name}   - categories|monthly|regions|segments|tiers|statuses
//
// All endpoints respond with Content-Type: application/json (export with
// text/csv) and return 405 for wrong methods. No external HTTP framework is
// used.
package api
