package quality

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/etlboard/etlboard/internal/config"
	"github.com/etlboard/etlboard/internal/pipeline"
)

const (
	defaultCooldown = 15 * time.Minute
	maxHistoryLen   = 200
	recentWindow    = time.Hour
)

// Alert represents a single alert event produced by the rule engine.
type Alert struct {
	ID         string     `json:"id"`
	RuleName   string     `json:"rule_name"`
	RunID      string     `json:"run_id"`
	Severity   string     `json:"severity"`
	Message    string     `json:"message"`
	Value      float64    `json:"value"`
	FiredAt    time.Time  `json:"fired_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	State      string     `json:"state"` // "firing" | "resolved"
}

// Engine evaluates quality rules against each transform run's QualityReport
// and delivers webhook notifications when rules fire or resolve.
//
// Engine is safe for concurrent use.
type Engine struct {
	mu       sync.Mutex
	rules    []config.QualityRule
	webhooks []config.WebhookConfig

	active   map[string]*Alert    // key: rule name
	lastFire map[string]time.Time // last fire time per rule (for cooldown)
	history  []*Alert             // recently resolved alerts
	client   *http.Client
	now      func() time.Time // injectable for deterministic tests
}

// New creates an Engine from the quality configuration.
// An Engine with empty rules is valid; Evaluate then only resolves whatever
// alerts an earlier rule set left firing.
func New(cfg config.QualityConfig) *Engine {
	return &Engine{
		rules:    cfg.Rules,
		webhooks: cfg.Webhooks,
		active:   make(map[string]*Alert),
		lastFire: make(map[string]time.Time),
		client:   &http.Client{Timeout: 10 * time.Second},
		now:      time.Now,
	}
}

// SetConfig swaps the rules and webhooks. Called on config hot reload;
// alerts whose rules disappeared resolve on the next evaluation.
func (e *Engine) SetConfig(cfg config.QualityConfig) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = cfg.Rules
	e.webhooks = cfg.Webhooks
}

// Evaluate tests all configured rules against the report.
// Alerts that fire are stored and webhook delivery is triggered
// asynchronously. Alerts that were firing but whose condition is now false
// are resolved.
func (e *Engine) Evaluate(report *pipeline.QualityReport, runID string) {
	e.mu.Lock()
	rules := e.rules
	e.mu.Unlock()
	if report == nil {
		return
	}

	now := e.now()
	e.resolveRemoved(rules, runID, now)
	for _, rule := range rules {
		fires, value := evalCondition(rule.Condition, report)

		e.mu.Lock()

		if fires {
			cooldown := rule.Cooldown
			if cooldown <= 0 {
				cooldown = defaultCooldown
			}
			if now.Sub(e.lastFire[rule.Name]) > cooldown {
				sev := rule.Severity
				if sev == "" {
					sev = "warning"
				}
				a := &Alert{
					ID:       fmt.Sprintf("%s:%d", rule.Name, now.UnixNano()),
					RuleName: rule.Name,
					RunID:    runID,
					Severity: sev,
					Value:    value,
					Message: fmt.Sprintf("[%s] %s fired on run %s: %s = %.2f",
						sev, rule.Name, runID, rule.Condition, value),
					FiredAt: now,
					State:   "firing",
				}
				e.active[rule.Name] = a
				e.lastFire[rule.Name] = now
				alertCopy := *a
				e.mu.Unlock()

				slog.Warn("quality alert fired",
					"rule", rule.Name,
					"run_id", runID,
					"value", value,
					"severity", sev,
				)
				go e.deliver(&alertCopy)
			} else {
				e.mu.Unlock()
			}
		} else {
			if a, ok := e.active[rule.Name]; ok && a.State == "firing" {
				resolved := now
				a.State = "resolved"
				a.ResolvedAt = &resolved
				delete(e.active, rule.Name)

				e.history = append(e.history, a)
				if len(e.history) > maxHistoryLen {
					e.history = e.history[len(e.history)-maxHistoryLen:]
				}
				alertCopy := *a
				e.mu.Unlock()

				slog.Info("quality alert resolved",
					"rule", rule.Name,
					"run_id", runID,
				)
				go e.deliver(&alertCopy)
			} else {
				e.mu.Unlock()
			}
		}
	}
}

// resolveRemoved resolves firing alerts whose rule is no longer configured,
// so a hot reload that drops or renames a rule does not leave its alert stuck.
func (e *Engine) resolveRemoved(rules []config.QualityRule, runID string, now time.Time) {
	configured := make(map[string]struct{}, len(rules))
	for _, r := range rules {
		configured[r.Name] = struct{}{}
	}

	e.mu.Lock()
	var dropped []*Alert
	for name, a := range e.active {
		if _, ok := configured[name]; ok {
			continue
		}
		resolved := now
		a.State = "resolved"
		a.ResolvedAt = &resolved
		delete(e.active, name)

		e.history = append(e.history, a)
		if len(e.history) > maxHistoryLen {
			e.history = e.history[len(e.history)-maxHistoryLen:]
		}
		cp := *a
		dropped = append(dropped, &cp)
	}
	e.mu.Unlock()

	for _, a := range dropped {
		slog.Info("quality alert resolved",
			"rule", a.RuleName,
			"run_id", runID,
			"reason", "rule removed",
		)
		go e.deliver(a)
	}
}

// Active returns copies of all currently firing alerts plus any alerts
// resolved within the past hour, firing first.
func (e *Engine) Active() []*Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := e.now().Add(-recentWindow)
	out := make([]*Alert, 0, len(e.active))

	for _, a := range e.active {
		cp := *a
		out = append(out, &cp)
	}
	for _, a := range e.history {
		if a.ResolvedAt != nil && a.ResolvedAt.After(cutoff) {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out
}

// Reset clears all active alerts, history and cooldowns. Called when the
// pipeline itself is reset.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.active = make(map[string]*Alert)
	e.lastFire = make(map[string]time.Time)
	e.history = nil
}
