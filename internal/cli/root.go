package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/driftwatch/internal/integrity"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "driftwatch",
	Short: "File-integrity monitoring with automated remediation",
	Long:  "Fingerprints a monitored file set on a schedule, detects drift against a trusted baseline, exposes Prometheus metrics, and dispatches bounded remediation actions for alerts fired on those metrics.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := integrity.Verify(); err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
			os.Exit(78) // EX_CONFIG
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML configuration file")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
