package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/driftwatch/internal/config"
	"github.com/ppiankov/driftwatch/internal/remed"
)

var (
	tasksLimit int
	tasksJSON  bool
)

func init() {
	rootCmd.AddCommand(tasksCmd)
	tasksCmd.Flags().IntVarP(&tasksLimit, "limit", "n", 20, "Number of recent tasks to show")
	tasksCmd.Flags().BoolVar(&tasksJSON, "json", false, "Print tasks as JSON")
}

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List recent remediation tasks",
	Long:  "Reads the task store and prints the most recently updated remediation\ntasks with their state and attempt count.",
	RunE:  runTasks,
}

func runTasks(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	store, err := remed.OpenStore(cfg.TaskDBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	tasks, err := store.Recent(tasksLimit)
	if err != nil {
		return err
	}

	if tasksJSON {
		out, err := json.MarshalIndent(tasks, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	if len(tasks) == 0 {
		fmt.Println("No remediation tasks recorded.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTARGET\tALERT\tSTATE\tATTEMPTS\tUPDATED")
	for _, t := range tasks {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			shortID(t.ID), t.Target, t.AlertName, t.State, t.Attempts,
			t.UpdatedAt.Format(time.RFC3339))
	}
	return w.Flush()
}

// shortID abbreviates a task ID for table display. IDs are normally
// UUIDs, but rows from a hand-edited or foreign store may be shorter.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
