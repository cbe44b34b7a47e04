// Package analytics builds chart-ready series from transformed pipeline rows:
// revenue by category, the monthly revenue trend, the regional performance
// table and the segment/tier/status breakdowns the dashboard renders.
package analytics
