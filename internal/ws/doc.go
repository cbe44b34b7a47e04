// Package ws implements the WebSocket hub for the live dashboard.
//
// Hub manages a set of connected browser tabs and broadcasts the current
// dashboard state to all of them on a configurable interval, plus
// immediately after every pipeline stage completes (Hub implements
// pipeline.Observer).
//
// Message format sent to clients:
//
//	{
//	  "event": "state",
//	  "data":  { /* same schema as GET /api/v1/status */ }
//	}
//
// The WebSocket endpoint is mounted at /ws/stream by the server.
package ws
