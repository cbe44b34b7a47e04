// Package quality is the threshold alert engine for the transform stage's
// data quality report.
//
// Rules come from the YAML config as simple "field op value" expressions
// ("quality_score < 90", "invalid_emails > 0"). The engine is evaluated once
// per transform run: rules that cross their threshold fire (with a cooldown
// so re-running the demo doesn't spam), and firing alerts resolve when a
// later run passes. Fired and resolved alerts are optionally delivered to
// slack or plain HTTP webhooks whose URLs are read from the environment.
package quality
