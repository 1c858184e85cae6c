package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"nerddash/internal/intent"
	"nerddash/internal/protocol"

	"github.com/spf13/cobra"
)

var (
	sayConversation string
	sayWait         time.Duration
)

var sayCmd = &cobra.Command{
	Use:   "say [text]",
	Short: "Send a chat message and wait briefly for the response",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSay,
}

func init() {
	sayCmd.Flags().StringVar(&sayConversation, "conversation", "default", "conversation id")
	sayCmd.Flags().DurationVar(&sayWait, "wait", 10*time.Second, "how long to wait for a response")
}

func runSay(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime()
	if err != nil {
		return err
	}

	responses := make(chan protocol.ChatResponse, 8)
	rt.bus.Subscribe(protocol.TypeChatResponse, func(data json.RawMessage) {
		var resp protocol.ChatResponse
		if json.Unmarshal(data, &resp) == nil {
			select {
			case responses <- resp:
			default:
			}
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), sayWait)
	defer cancel()

	if err := rt.session.Connect(ctx, endpoint); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer rt.session.Disconnect()

	sender := intent.NewSender(rt.session)
	text := strings.Join(args, " ")

	// Optimistic append before server acknowledgment.
	msg := sender.SendChatMessage(sayConversation, text)
	rt.store.AddMessage(sayConversation, msg)
	fmt.Printf("you> %s\n", text)

	select {
	case resp := <-responses:
		fmt.Printf("%s> %s\n", resp.Role, resp.Content)
	case <-ctx.Done():
		fmt.Println("(no response)")
	}
	return nil
}
