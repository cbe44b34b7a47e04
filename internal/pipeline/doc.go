// Package pipeline implements the demo's sequential ETL engine.
//
// A Pipeline moves through four phases (idle, extracted, transformed,
// analyzed), driven one stage at a time from the dashboard:
//
//	Extract    generates the sample dataset (or ingests an uploaded CSV)
//	Transform  validates, flags dirty rows and enriches with derived fields
//	Analyze    derives the headline insights (the "load" step of the demo)
//
// Running a stage before the one feeding it returns ErrNotReady. Every stage
// appends timestamped entries to the processing log and notifies subscribed
// Observers, which is how the metrics registry and the WebSocket hub learn
// about progress. All state is held in memory for the browser session and
// discarded on exit; Reset returns to idle at any time.
package pipeline
