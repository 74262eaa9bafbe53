// Package config loads the agent's YAML configuration. Everything tunable
// lives here: monitored paths, scan cadence, the remediation action table,
// and retry policy. Nothing is hardcoded in the components.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/driftwatch/internal/notify"
)

// Remediation holds the dispatcher configuration: how the external
// orchestration tool is invoked and which alert maps to which action.
type Remediation struct {
	// Command is the orchestration executable, e.g. "ansible-playbook".
	Command string `yaml:"command"`
	// Inventory is passed as -i to the orchestration command.
	Inventory string `yaml:"inventory"`
	// PlaybookDir is the directory holding the action playbooks.
	PlaybookDir string `yaml:"playbook_dir"`
	// Table is the closed, explicit mapping from alert name to playbook.
	// Unknown alert names are rejected, never defaulted.
	Table map[string]string `yaml:"table"`

	RetryCeiling      int `yaml:"retry_ceiling"`
	BackoffBaseSec    int `yaml:"backoff_base_seconds"`
	AttemptTimeoutSec int `yaml:"attempt_timeout_seconds"`
	Workers           int `yaml:"workers"`
}

// Config is the full agent configuration.
type Config struct {
	MonitoredPaths []string `yaml:"monitored_paths"`
	ExcludedPaths  []string `yaml:"excluded_paths"`
	CriticalPaths  []string `yaml:"critical_paths"`

	ScanIntervalSec int `yaml:"scan_interval"`
	ScanTimeoutSec  int `yaml:"scan_timeout"`

	Listen            string `yaml:"listen"`
	DebounceWindowSec int    `yaml:"debounce_window_seconds"`
	BaselinePath      string `yaml:"baseline_file"`
	AuditLogPath      string `yaml:"audit_log"`
	TaskDBPath        string `yaml:"task_db"`
	ReportPath        string `yaml:"report_file"`

	Remediation   Remediation            `yaml:"remediation"`
	Notifications []notify.WebhookConfig `yaml:"notifications"`
}

// Default returns the built-in configuration matching the operational
// deployment defaults.
func Default() *Config {
	return &Config{
		MonitoredPaths: []string{"/etc", "/usr/bin", "/usr/sbin", "/var/log", "/home", "/opt"},
		ExcludedPaths:  []string{"/tmp", "/var/tmp", "/var/cache", "/var/log/*", "/proc", "/sys", "/dev"},
		CriticalPaths:  []string{"/etc", "/usr/sbin"},

		ScanIntervalSec: 300,
		ScanTimeoutSec:  240,

		Listen:            ":8080",
		DebounceWindowSec: 30,
		BaselinePath:      "/var/lib/driftwatch/baseline.json",
		AuditLogPath:      "/var/log/driftwatch/audit.jsonl",
		TaskDBPath:        "/var/lib/driftwatch/tasks.db",
		ReportPath:        "/var/log/driftwatch/last-report.json",

		Remediation: Remediation{
			Command:           "ansible-playbook",
			RetryCeiling:      3,
			BackoffBaseSec:    2,
			AttemptTimeoutSec: 300,
			Workers:           4,
			Table:             map[string]string{},
		},
	}
}

// Load reads a YAML config file and merges it over the defaults.
// An empty path returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects configurations that cannot run.
func (c *Config) Validate() error {
	if len(c.MonitoredPaths) == 0 {
		return fmt.Errorf("monitored_paths must not be empty")
	}
	if c.ScanIntervalSec <= 0 {
		return fmt.Errorf("scan_interval must be positive, got %d", c.ScanIntervalSec)
	}
	if c.ScanTimeoutSec <= 0 || c.ScanTimeoutSec > c.ScanIntervalSec {
		return fmt.Errorf("scan_timeout must be positive and at most scan_interval")
	}
	if c.Remediation.RetryCeiling < 1 {
		return fmt.Errorf("remediation.retry_ceiling must be at least 1")
	}
	if c.Remediation.Workers < 1 {
		return fmt.Errorf("remediation.workers must be at least 1")
	}
	return nil
}

// ScanInterval returns the scan cadence.
func (c *Config) ScanInterval() time.Duration {
	return time.Duration(c.ScanIntervalSec) * time.Second
}

// ScanTimeout returns the per-pass deadline.
func (c *Config) ScanTimeout() time.Duration {
	return time.Duration(c.ScanTimeoutSec) * time.Second
}

// DebounceWindow returns the alert dedup window.
func (c *Config) DebounceWindow() time.Duration {
	return time.Duration(c.DebounceWindowSec) * time.Second
}

// BackoffBase returns the base delay for remediation retry backoff.
func (r Remediation) BackoffBase() time.Duration {
	return time.Duration(r.BackoffBaseSec) * time.Second
}

// AttemptTimeout returns the per-attempt deadline for a remediation action.
func (r Remediation) AttemptTimeout() time.Duration {
	return time.Duration(r.AttemptTimeoutSec) * time.Second
}
