package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "etlboard.yaml")
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoad_Defaults(t *testing.T) {
	// Minimal config: only the port; everything else defaulted.
	p := writeConfig(t, `server:
  http_port: 9000
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.HTTPPort != 9000 {
		t.Errorf("http_port: got %d, want 9000", cfg.Server.HTTPPort)
	}
	if cfg.Dataset.Records != DefaultRecords {
		t.Errorf("dataset.records: got %d, want %d", cfg.Dataset.Records, DefaultRecords)
	}
	if cfg.Dataset.SampleRows != DefaultSampleRows {
		t.Errorf("dataset.sample_rows: got %d, want %d", cfg.Dataset.SampleRows, DefaultSampleRows)
	}
	if cfg.Pipeline.StageDelay != DefaultStageDelay {
		t.Errorf("pipeline.stage_delay: got %v, want %v", cfg.Pipeline.StageDelay, DefaultStageDelay)
	}
}

func TestLoad_Full(t *testing.T) {
	p := writeConfig(t, `server:
  http_port: 8080
dataset:
  records: 250
  seed: 7
  invalid_email_pct: 10
  invalid_price_pct: 0
  sample_rows: 3
pipeline:
  stage_delay: 500ms
quality:
  rules:
    - name: low-score
      condition: "quality_score < 95"
      severity: critical
      cooldown: 30s
  webhooks:
    - type: slack
      url_env: MY_WEBHOOK
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Dataset.Records != 250 {
		t.Errorf("records: got %d, want 250", cfg.Dataset.Records)
	}
	if cfg.Dataset.Seed != 7 {
		t.Errorf("seed: got %d, want 7", cfg.Dataset.Seed)
	}
	if cfg.Dataset.InvalidEmailPct != 10 {
		t.Errorf("invalid_email_pct: got %g, want 10", cfg.Dataset.InvalidEmailPct)
	}
	if cfg.Pipeline.StageDelay != 500*time.Millisecond {
		t.Errorf("stage_delay: got %v, want 500ms", cfg.Pipeline.StageDelay)
	}
	if len(cfg.Quality.Rules) != 1 || cfg.Quality.Rules[0].Cooldown != 30*time.Second {
		t.Errorf("quality rules: got %+v", cfg.Quality.Rules)
	}
	if len(cfg.Quality.Webhooks) != 1 || cfg.Quality.Webhooks[0].URLEnv != "MY_WEBHOOK" {
		t.Errorf("webhooks: got %+v", cfg.Quality.Webhooks)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("Load on missing file: expected error, got nil")
	}
}

func TestLoad_Invalid(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"port out of range", "server:\n  http_port: 70000\n"},
		{"zero records", "dataset:\n  records: -5\n"},
		{"email pct over 100", "dataset:\n  invalid_email_pct: 120\n"},
		{"negative delay", "pipeline:\n  stage_delay: -1s\n"},
		{"bad severity", "quality:\n  rules:\n    - name: r\n      condition: \"quality_score < 1\"\n      severity: loud\n"},
		{"unnamed rule", "quality:\n  rules:\n    - condition: \"quality_score < 1\"\n"},
		{"bad webhook type", "quality:\n  webhooks:\n    - type: carrier-pigeon\n"},
		{"not yaml", "{{{"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := writeConfig(t, tc.yaml)
			if _, err := Load(p); err == nil {
				t.Errorf("Load(%q): expected error, got nil", tc.yaml)
			}
		})
	}
}

func TestWebhookURL_FromEnv(t *testing.T) {
	t.Setenv("ETLBOARD_TEST_HOOK", "https://example.com/hook")
	w := WebhookConfig{Type: "http", URLEnv: "ETLBOARD_TEST_HOOK"}
	if got := w.URL(); got != "https://example.com/hook" {
		t.Errorf("URL: got %q", got)
	}
	if got := (WebhookConfig{}).URL(); got != "" {
		t.Errorf("URL with empty env name: got %q, want empty", got)
	}
}
