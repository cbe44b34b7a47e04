// Package config loads and validates the etlboard YAML configuration.
//
// Load(path) parses the file, fills missing fields with defaults and
// validates the result. Default() returns a ready-to-run configuration for
// when no file is supplied. Watch(ctx, path, onChange) hot-reloads the file
// on write so generator settings and quality rules can be tuned mid-demo
// without a restart.
package config
