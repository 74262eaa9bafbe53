// Package daemon wires the scanning loop, the alert webhook, and the
// remediation dispatcher into one long-running agent process.
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/driftwatch/internal/audit"
	"github.com/ppiankov/driftwatch/internal/baseline"
	"github.com/ppiankov/driftwatch/internal/config"
	"github.com/ppiankov/driftwatch/internal/fim"
	"github.com/ppiankov/driftwatch/internal/metrics"
	"github.com/ppiankov/driftwatch/internal/notify"
	"github.com/ppiankov/driftwatch/internal/remed"
	"github.com/ppiankov/driftwatch/internal/webhook"
)

// uptimeInterval is how often the uptime gauge refreshes.
const uptimeInterval = 15 * time.Second

// Daemon is the assembled agent.
type Daemon struct {
	cfg     *config.Config
	cfgPath string
	logger  *slog.Logger

	metrics    *metrics.Metrics
	scanner    *fim.Scanner
	classifier *fim.Classifier
	baselines  *baseline.Store
	auditLog   *audit.Log
	taskStore  *remed.Store
	dispatcher *remed.Dispatcher
	server     *webhook.Server
	notifier   *notify.Dispatcher
}

// New builds a daemon from configuration, opening the audit log and the
// task store. cfgPath may be empty; hot-reload is then disabled.
func New(cfg *config.Config, cfgPath string, logger *slog.Logger) (*Daemon, error) {
	auditLog, err := audit.Open(cfg.AuditLogPath)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}

	taskStore, err := remed.OpenStore(cfg.TaskDBPath)
	if err != nil {
		auditLog.Close()
		return nil, fmt.Errorf("open task store: %w", err)
	}

	m := metrics.New()
	scanner := fim.NewScanner(cfg.MonitoredPaths, cfg.ExcludedPaths, func(path string, err error) {
		logger.Debug("skipping unreadable path", "path", path, "error", err)
	})

	runner := &remed.PlaybookRunner{
		Command:     cfg.Remediation.Command,
		Inventory:   cfg.Remediation.Inventory,
		PlaybookDir: cfg.Remediation.PlaybookDir,
	}
	dispatcher := remed.NewDispatcher(cfg.Remediation.Table, runner, auditLog, taskStore, logger, remed.Config{
		RetryCeiling:   cfg.Remediation.RetryCeiling,
		BackoffBase:    cfg.Remediation.BackoffBase(),
		AttemptTimeout: cfg.Remediation.AttemptTimeout(),
		Workers:        cfg.Remediation.Workers,
	})

	notifier := notify.NewDispatcher(cfg.Notifications)
	dispatcher.SetNotify(func(task remed.Task, outcome string) {
		notifier.Dispatch(notify.Event{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Type:      "remediation_" + outcome,
			Target:    task.Target,
			Alert:     task.AlertName,
			TaskID:    task.ID,
			Detail:    task.Reason,
		})
	})

	server := webhook.NewServer(webhook.Config{
		Listen:         cfg.Listen,
		DebounceWindow: cfg.DebounceWindow(),
	}, dispatcher, auditLog, m, logger)

	return &Daemon{
		cfg:        cfg,
		cfgPath:    cfgPath,
		logger:     logger,
		metrics:    m,
		scanner:    scanner,
		classifier: fim.NewClassifier(cfg.CriticalPaths),
		baselines:  baseline.NewStore(cfg.BaselinePath),
		auditLog:   auditLog,
		taskStore:  taskStore,
		dispatcher: dispatcher,
		server:     server,
		notifier:   notifier,
	}, nil
}

// Run starts all agent loops and blocks until ctx is cancelled or a
// fatal error (audit write failure) occurs.
func (d *Daemon) Run(ctx context.Context) error {
	d.logger.Info("driftwatch agent starting",
		"listen", d.cfg.Listen,
		"scan_interval", d.cfg.ScanInterval(),
		"monitored_paths", len(d.cfg.MonitoredPaths),
		"remediation_actions", len(d.cfg.Remediation.Table))

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return d.scanLoop(ctx) })
	g.Go(func() error { return d.dispatcher.Run(ctx) })
	g.Go(func() error { return d.server.Run(ctx) })
	g.Go(func() error { return d.uptimeLoop(ctx) })

	if d.cfgPath != "" {
		reloader, err := NewReloader(d, d.cfgPath)
		if err != nil {
			d.logger.Warn("config hot-reload disabled", "error", err)
		} else {
			g.Go(func() error { return reloader.Run(ctx) })
		}
	}

	return g.Wait()
}

// Close releases the daemon's resources.
func (d *Daemon) Close() error {
	err := d.taskStore.Close()
	if cerr := d.auditLog.Close(); err == nil {
		err = cerr
	}
	return err
}

// scanLoop runs the single-flight periodic scan. A tick that fires while
// a pass is still in progress is dropped, not queued, bounding resource
// usage under slow storage.
func (d *Daemon) scanLoop(ctx context.Context) error {
	// First pass immediately; the ticker covers the rest.
	if err := d.runScanPass(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(d.cfg.ScanInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := d.runScanPass(ctx); err != nil {
				return err
			}
			// Drop the tick that may have fired during a slow pass.
			select {
			case <-ticker.C:
			default:
			}
		}
	}
}

// runScanPass performs one scan, diffs against the baseline, and records
// the changes. Per-file errors never abort the pass; an audit write
// failure is returned and takes the process down.
func (d *Daemon) runScanPass(ctx context.Context) error {
	base, err := d.baselines.Load()
	if err != nil {
		if errors.Is(err, baseline.ErrNotInitialized) {
			d.logger.Warn("baseline not initialized; run 'driftwatch baseline init' to start drift detection")
			return nil
		}
		d.logger.Error("baseline load failed", "error", err)
		return nil
	}

	scanCtx, cancel := context.WithTimeout(ctx, d.cfg.ScanTimeout())
	defer cancel()

	snap, stats, err := d.scanner.Scan(scanCtx)
	if err != nil {
		d.logger.Error("scan pass failed", "error", err)
		return nil
	}
	d.metrics.ObserveScan(stats, snap.ScannedAt)
	if stats.Partial {
		d.logger.Warn("scan pass abandoned at deadline",
			"files", stats.Files, "duration", stats.Duration)
	}

	events := fim.Diff(base, snap, time.Now().UTC())
	d.classifier.Label(events)

	for _, ev := range events {
		d.metrics.RecordEvent(ev.Kind, ev.Critical)
		d.logger.Warn("drift detected", "path", ev.Path, "kind", ev.Kind, "critical", ev.Critical)
		if _, err := d.auditLog.Append(audit.TypeChange, ev); err != nil {
			return fmt.Errorf("audit change event: %w", err)
		}
		eventType := notify.EventDrift
		if ev.Critical {
			eventType = notify.EventCriticalDrift
		}
		d.notifier.Dispatch(notify.Event{
			Timestamp: ev.DetectedAt.Format(time.RFC3339),
			Type:      eventType,
			Path:      ev.Path,
			Kind:      string(ev.Kind),
		})
	}

	if len(events) > 0 {
		d.writeReport(events)
	}

	d.logger.Info("scan pass completed",
		"files", stats.Files, "dirs", stats.Dirs, "skipped", stats.Skipped,
		"changes", len(events), "duration", stats.Duration, "partial", stats.Partial)
	return nil
}

// writeReport persists the most recent pass's changes for operators.
// Best effort; the audit log is the durable record.
func (d *Daemon) writeReport(events []fim.ChangeEvent) {
	if d.cfg.ReportPath == "" {
		return
	}
	report := struct {
		Timestamp    time.Time         `json:"timestamp"`
		TotalChanges int               `json:"total_changes"`
		Changes      []fim.ChangeEvent `json:"changes"`
	}{time.Now().UTC(), len(events), events}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		d.logger.Error("marshal scan report", "error", err)
		return
	}
	if err := os.WriteFile(d.cfg.ReportPath, data, 0600); err != nil {
		d.logger.Error("write scan report", "path", d.cfg.ReportPath, "error", err)
	}
}

func (d *Daemon) uptimeLoop(ctx context.Context) error {
	ticker := time.NewTicker(uptimeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			d.metrics.UpdateUptime()
		}
	}
}
