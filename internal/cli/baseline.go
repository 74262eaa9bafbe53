package cli

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/ppiankov/driftwatch/internal/baseline"
	"github.com/ppiankov/driftwatch/internal/config"
	"github.com/ppiankov/driftwatch/internal/fim"
)

func init() {
	rootCmd.AddCommand(baselineCmd)
	baselineCmd.AddCommand(baselineInitCmd)
	baselineCmd.AddCommand(baselineShowCmd)
}

var baselineCmd = &cobra.Command{
	Use:   "baseline",
	Short: "Baseline operations",
	Long:  "Commands for initializing and inspecting the trusted baseline snapshot.",
}

var baselineInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Promote a fresh scan to be the new baseline",
	Long:  "Runs a full scan of the monitored path set and atomically replaces the\npersisted baseline with the result. Used for first-run bootstrap and for\napproved-change rebaselining; drift never becomes the baseline implicitly.",
	RunE:  runBaselineInit,
}

var baselineShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Summarize the persisted baseline",
	RunE:  runBaselineShow,
}

func runBaselineInit(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	scanner := fim.NewScanner(cfg.MonitoredPaths, cfg.ExcludedPaths, func(path string, err error) {
		fmt.Fprintf(os.Stderr, "skipping %s: %v\n", path, err)
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ScanTimeout())
	defer cancel()

	snap, stats, err := scanner.Scan(ctx)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}
	if stats.Partial {
		return fmt.Errorf("scan hit the %s deadline after %d files; refusing to baseline a partial snapshot", cfg.ScanTimeout(), stats.Files)
	}

	store := baseline.NewStore(cfg.BaselinePath)
	if err := store.Initialize(snap); err != nil {
		return err
	}

	fmt.Printf("Baseline initialized: %d files, %d directories (%s)\n",
		stats.Files, stats.Dirs, cfg.BaselinePath)
	if stats.Skipped > 0 {
		fmt.Printf("Skipped %d unreadable files\n", stats.Skipped)
	}
	return nil
}

func runBaselineShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	snap, err := baseline.NewStore(cfg.BaselinePath).Load()
	if err != nil {
		return err
	}

	paths := make([]string, 0, len(snap.Files))
	for p := range snap.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	fmt.Printf("Baseline: %d files, scanned at %s\n", len(paths), snap.ScannedAt.Format("2006-01-02 15:04:05 UTC"))
	for _, p := range paths {
		rec := snap.Files[p]
		fmt.Printf("  %s  %o  %d bytes  %s\n", rec.Hash, rec.Mode, rec.Size, p)
	}
	return nil
}
