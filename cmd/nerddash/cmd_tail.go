package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"nerddash/internal/config"
	"nerddash/internal/protocol"
	"nerddash/internal/transport"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// tailTypes is everything tail prints, in display order.
var tailTypes = []string{
	protocol.TypeChatResponse,
	protocol.TypeTypingIndicator,
	protocol.TypeReasoningUpdate,
	protocol.TypeReasoningComplete,
	protocol.TypeEvolutionProgress,
	protocol.TypeEvolutionComplete,
	protocol.TypeSystemMetrics,
	protocol.TypeSystemAlert,
	protocol.TypeMCPServerStatus,
	protocol.TypeMCPServerHealth,
	protocol.TypeOllamaStatus,
	protocol.TypeOllamaModelUpdate,
	protocol.TypeOllamaMetrics,
	protocol.TypeOllamaError,
	protocol.TypeError,
	transport.EventConnectionStatus,
	transport.EventReconnectExhausted,
}

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Connect and print every inbound event until interrupted",
	RunE:  runTail,
}

func runTail(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime()
	if err != nil {
		return err
	}

	for _, t := range tailTypes {
		eventType := t
		rt.bus.Subscribe(eventType, func(data json.RawMessage) {
			fmt.Printf("%-22s %s\n", eventType, string(data))
		})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Hot-reload the reconnect policy while tailing.
	watcher, err := config.NewWatcher(configPath, rt.session.UpdateConfig)
	if err == nil {
		if werr := watcher.Start(ctx); werr == nil {
			defer watcher.Stop()
		}
	} else {
		logger.Debug("config watcher unavailable", zap.Error(err))
	}

	if err := rt.session.Connect(ctx, endpoint); err != nil {
		// Degraded mode: keep running, reconnects may still succeed
		// after a transient failure on a later explicit connect.
		logger.Warn("initial connect failed, operating offline", zap.Error(err))
	}

	<-ctx.Done()
	return rt.session.Disconnect()
}
