package main

import (
	"fmt"
	"os"

	"nerddash/internal/bus"
	"nerddash/internal/config"
	"nerddash/internal/logging"
	"nerddash/internal/store"
	"nerddash/internal/transport"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	verbose    bool
	configPath string
	endpoint   string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "nerddash",
	Short: "nerddash - real-time sync client for the NERD orchestrator",
	Long: `nerddash is the real-time synchronization core of the NERD dashboard.

It maintains one WebSocket session to the orchestrator, republishes
server-pushed events on a typed event bus, and folds them into local
domain snapshots (chat, reasoning, evolution, metrics, MCP servers).
The connection degrades gracefully: sends while offline are dropped
with a warning and reconnection uses capped exponential backoff.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
}

// runtime bundles the wired sync layer for a command invocation.
type runtime struct {
	cfg     *config.Config
	bus     *bus.Bus
	session *transport.Session
	store   *store.Store
}

// buildRuntime loads config and wires bus, session and store.
func buildRuntime() (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if err := logging.Initialize("."); err != nil {
		logger.Warn("file logging unavailable", zap.Error(err))
	}

	b := bus.New()
	session := transport.NewSession(cfg, b)
	st := store.New()
	st.Wire(b)

	return &runtime{cfg: cfg, bus: b, session: session, store: st}, nil
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", ".nerddash/config.yaml", "config file path")
	rootCmd.PersistentFlags().StringVar(&endpoint, "endpoint", "", "WebSocket endpoint override")

	rootCmd.AddCommand(tailCmd)
	rootCmd.AddCommand(sayCmd)
	rootCmd.AddCommand(statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
