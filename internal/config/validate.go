package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks configuration invariants after defaults and normalization.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Paths.DataDir) == "" {
		problems = append(problems, "paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Inference.BaseURL) == "" {
		problems = append(problems, "inference.base_url must be set")
	}
	if c.Inference.TimeoutSeconds < 0 {
		problems = append(problems, "inference.timeout_seconds must not be negative")
	}
	if c.Sync.DrainIntervalSeconds <= 0 {
		problems = append(problems, "sync.drain_interval must be positive")
	}
	if c.Sync.MaxRetries < 1 {
		problems = append(problems, "sync.max_retries must be at least 1")
	}
	if c.Sync.ProbeIntervalSeconds <= 0 {
		problems = append(problems, "sync.probe_interval must be positive")
	}
	if c.Storage.BudgetBytes <= 0 {
		problems = append(problems, "storage.budget_bytes must be positive")
	}
	if c.Storage.KeepRecentNotes < 0 {
		problems = append(problems, "storage.keep_recent_notes must not be negative")
	}
	if c.Storage.DiagnosticCap < 1 {
		problems = append(problems, "storage.diagnostic_cap must be at least 1")
	}
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format %q is not supported (console, json)", c.Logging.Format))
	}

	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}
