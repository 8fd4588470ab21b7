package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nodewatch/nodewatch/internal/monitor"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

type config struct {
	port             int
	heartbeatMillis  int
	failureTolerance int
	configPath       string
	logLevel         string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := &config{}

	root := &cobra.Command{
		Use:   "nodewatchd",
		Short: "nodewatchd — blockchain node liveness monitor",
		Long: `nodewatchd watches a fleet of blockchain nodes, probing each on a fixed
heartbeat, tracking consecutive failures, and dispatching an operator-supplied
revival command once a node's failures cross a configured tolerance.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfg)
		},
	}

	root.AddCommand(newVersionCmd())

	root.PersistentFlags().IntVar(&cfg.port, "port", envOrDefaultInt("NODEWATCH_PORT", 0),
		"Control server TCP port (0 = auto-discover a free port in [9545, 9644))")
	root.PersistentFlags().IntVar(&cfg.heartbeatMillis, "heartbeat-ms", envOrDefaultInt("NODEWATCH_HEARTBEAT_MS", 5000),
		"Heartbeat interval in milliseconds")
	root.PersistentFlags().IntVar(&cfg.failureTolerance, "failure-tolerance", envOrDefaultInt("NODEWATCH_FAILURE_TOLERANCE", 3),
		"Consecutive probe failures before a node is revived")
	root.PersistentFlags().StringVar(&cfg.configPath, "config", envOrDefault("NODEWATCH_CONFIG_PATH", "./nodewatch.jsonl"),
		"Path to the line-delimited JSON node config file")
	root.PersistentFlags().StringVar(&cfg.logLevel, "log-level", envOrDefault("NODEWATCH_LOG_LEVEL", "info"),
		"Log level (debug, info, warn, error)")

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("nodewatchd %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

func run(ctx context.Context, cfg *config) error {
	logger, err := buildLogger(cfg.logLevel)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting nodewatchd",
		zap.String("version", version),
		zap.Int("port", cfg.port),
		zap.Int("heartbeat_ms", cfg.heartbeatMillis),
		zap.Int("failure_tolerance", cfg.failureTolerance),
		zap.String("config_path", cfg.configPath),
	)

	m, err := monitor.New(monitor.Config{
		HeartbeatInterval: time.Duration(cfg.heartbeatMillis) * time.Millisecond,
		FailureTolerance:  cfg.failureTolerance,
		ConfigPath:        cfg.configPath,
		Port:              cfg.port,
		Logger:            logger,
	})
	if err != nil {
		return fmt.Errorf("failed to build monitor: %w", err)
	}

	if err := m.Start(ctx); err != nil {
		return fmt.Errorf("failed to start monitor: %w", err)
	}
	logger.Info("nodewatchd listening", zap.Int("port", m.Port()))

	<-ctx.Done()
	logger.Info("shutting down nodewatchd")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := m.Stop(shutdownCtx); err != nil {
		logger.Warn("monitor graceful shutdown error", zap.Error(err))
	}

	logger.Info("nodewatchd stopped")
	return nil
}

func buildLogger(level string) (*zap.Logger, error) {
	var cfg zap.Config

	switch level {
	case "debug":
		cfg = zap.NewDevelopmentConfig()
	default:
		cfg = zap.NewProductionConfig()
	}

	switch level {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	return cfg.Build()
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}
