package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/driftwatch/internal/config"
	"github.com/ppiankov/driftwatch/internal/daemon"
	"github.com/ppiankov/driftwatch/internal/systemd"
)

var (
	agentListen   string
	agentAuditLog string
)

func init() {
	rootCmd.AddCommand(agentCmd)
	agentCmd.Flags().StringVar(&agentListen, "listen", "", "Listen address override for webhook and metrics")
	agentCmd.Flags().StringVar(&agentAuditLog, "audit-log", "", "Audit log path override")
}

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run the monitoring agent",
	Long:  "Runs the periodic scanner, the /metrics exporter, the alert webhook,\nand the remediation dispatcher as one long-lived process.",
	RunE:  runAgent,
}

func runAgent(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if agentListen != "" {
		cfg.Listen = agentListen
	}
	if agentAuditLog != "" {
		cfg.AuditLogPath = agentAuditLog
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	if warning := systemd.CheckUnitFileIntegrity(); warning != "" {
		logger.Warn("unit file integrity check failed", "detail", warning)
	}

	d, err := daemon.New(cfg, configPath, logger)
	if err != nil {
		return fmt.Errorf("failed to create agent: %w", err)
	}
	defer d.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down")
		cancel()
	}()

	return d.Run(ctx)
}
