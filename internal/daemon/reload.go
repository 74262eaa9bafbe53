package daemon

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ppiankov/driftwatch/internal/config"
)

// Reloader watches the config file and hot-reloads the parts that are
// safe to swap at runtime: the remediation action table and the
// critical-path prefixes. Monitored path changes require a restart.
type Reloader struct {
	watcher *fsnotify.Watcher
	daemon  *Daemon
	path    string
}

// NewReloader creates a file watcher for the config path.
func NewReloader(d *Daemon, path string) (*Reloader, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %q: %w", path, err)
	}
	return &Reloader{watcher: watcher, daemon: d, path: path}, nil
}

// Run watches for config changes and reloads. Blocks until ctx is cancelled.
func (r *Reloader) Run(ctx context.Context) error {
	defer r.watcher.Close()

	// Debounce: wait 500ms after last write before reloading
	var debounce *time.Timer

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return nil

		case event, ok := <-r.watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(500*time.Millisecond, r.reload)
			}

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return nil
			}
			r.daemon.logger.Warn("config watcher error", "error", err)
		}
	}
}

func (r *Reloader) reload() {
	cfg, err := config.Load(r.path)
	if err != nil {
		r.daemon.logger.Error("config hot-reload failed", "error", err)
		return
	}
	r.daemon.dispatcher.UpdateTable(cfg.Remediation.Table)
	r.daemon.classifier.SetPrefixes(cfg.CriticalPaths)
	r.daemon.logger.Info("config hot-reloaded",
		"remediation_actions", len(cfg.Remediation.Table),
		"critical_paths", len(cfg.CriticalPaths))
}
