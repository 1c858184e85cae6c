package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print connectivity status and store contents",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), rt.cfg.GetDialTimeout())
	defer cancel()

	if err := rt.session.Connect(ctx, endpoint); err != nil {
		fmt.Printf("connection: offline (%v)\n", err)
	}
	defer rt.session.Disconnect()

	// Give pushed snapshots a moment to arrive.
	time.Sleep(500 * time.Millisecond)

	st := rt.session.Status()
	fmt.Printf("connected:          %v\n", st.Connected)
	fmt.Printf("connecting:         %v\n", st.IsConnecting)
	fmt.Printf("reconnect attempts: %d\n", st.ReconnectAttempts)

	stats := rt.store.Stats()
	fmt.Printf("conversations:      %d (%d messages)\n", stats.Conversations, stats.Messages)
	fmt.Printf("mcp servers:        %d\n", stats.Servers)
	fmt.Printf("alerts:             %d\n", stats.Alerts)

	if m, ok := rt.store.Metrics(); ok {
		fmt.Printf("cpu/mem:            %.1f%% / %.1f%% (%d agents)\n",
			m.CPUPercent, m.MemoryPercent, m.ActiveAgents)
	}
	return nil
}
