// Package web serves the embedded single-page dashboard. The page talks to
// the REST API for actions and charts and listens on /ws/stream for live
// state updates.
package web
