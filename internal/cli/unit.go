package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/driftwatch/internal/systemd"
)

func init() {
	rootCmd.AddCommand(unitCmd)
	unitCmd.AddCommand(unitPrintCmd)
	unitCmd.AddCommand(unitRecordCmd)
}

var unitCmd = &cobra.Command{
	Use:   "unit",
	Short: "Systemd unit operations",
	Long:  "Commands for installing the agent's systemd unit and recording its\ninstall-time hash for tamper detection.",
}

var unitPrintCmd = &cobra.Command{
	Use:   "print",
	Short: "Print the systemd unit file",
	Long:  "Writes the hardened driftwatch.service unit to stdout, for\ninstallation under /etc/systemd/system/.",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Print(systemd.AgentTemplate())
	},
}

var unitRecordCmd = &cobra.Command{
	Use:   "record-hash",
	Short: "Record the installed unit file hash",
	Long:  "Stores the SHA-256 of the installed unit file so the agent can warn\nat startup if the unit is later modified.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := systemd.RecordUnitFileHash(); err != nil {
			return err
		}
		fmt.Printf("Recorded unit file hash to %s\n", systemd.UnitHashPath)
		return nil
	},
}
