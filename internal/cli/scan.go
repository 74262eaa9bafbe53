package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/driftwatch/internal/baseline"
	"github.com/ppiankov/driftwatch/internal/config"
	"github.com/ppiankov/driftwatch/internal/fim"
)

var scanJSON bool

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "Print change events as JSON")
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a single scan pass and print the drift",
	Long:  "Performs one scan of the monitored path set, diffs it against the\npersisted baseline, and prints the change events. Nothing is persisted.\nExits non-zero on a fatal scanner error.",
	RunE:  runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	base, err := baseline.NewStore(cfg.BaselinePath).Load()
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

	events := fim.Diff(base, snap, time.Now().UTC())
	fim.NewClassifier(cfg.CriticalPaths).Label(events)

	if scanJSON {
		out, err := json.MarshalIndent(events, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
	} else {
		for _, ev := range events {
			marker := " "
			if ev.Critical {
				marker = "!"
			}
			fmt.Printf("%s %-19s %s\n", marker, ev.Kind, ev.Path)
		}
	}

	fmt.Fprintf(os.Stderr, "Scanned %d files, %d directories in %s; %d changes",
		stats.Files, stats.Dirs, stats.Duration.Round(time.Millisecond), len(events))
	if stats.Partial {
		fmt.Fprintf(os.Stderr, " (partial: deadline exceeded)")
	}
	fmt.Fprintln(os.Stderr)
	return nil
}
