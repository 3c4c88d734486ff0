package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/fredcamaral/reloadrelay/internal/domain/entities"
)

// tailCmd attaches as a tab and prints what the relay broadcasts
var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Attach to a relay as a tab and print its broadcasts",
	Long: `Connect to a running relay the way a browser tab does and print each
broadcast as a JSON line. With --events-url the config handshake is sent
first, so tail can also start a relay that no tab has configured yet.

Example:
  reloadrelay tail
  reloadrelay tail --url ws://localhost:35729/ws --events-url http://localhost:5173/_events`,
	Args: cobra.NoArgs,
	RunE: runTail,
}

func init() {
	rootCmd.AddCommand(tailCmd)

	tailCmd.Flags().String("url", "ws://localhost:35729/ws", "Relay websocket URL")
	tailCmd.Flags().String("events-url", "", "Send a config handshake with this events URL")
	tailCmd.Flags().String("origin", "", "Origin header sent with the handshake")
}

func runTail(cmd *cobra.Command, args []string) error {
	wsURL, _ := cmd.Flags().GetString("url")
	eventsURL, _ := cmd.Flags().GetString("events-url")
	origin, _ := cmd.Flags().GetString("origin")

	return tail(cmd.Context(), wsURL, origin, eventsURL, cmd.OutOrStdout())
}

// tail streams broadcasts from wsURL to out until ctx ends or the relay
// closes the connection.
func tail(ctx context.Context, wsURL, origin, eventsURL string, out io.Writer) error {
	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", wsURL, err)
	}
	defer func() { _ = conn.Close() }()

	// Unblock ReadMessage when ctx ends
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if eventsURL != "" {
		handshake := map[string]any{
			"type": "config",
			"data": entities.RelayConfig{EventsURL: eventsURL},
		}
		if err := conn.WriteJSON(handshake); err != nil {
			return fmt.Errorf("sending config handshake: %w", err)
		}
	}

	encoder := json.NewEncoder(out)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				return nil
			}
			return fmt.Errorf("reading broadcast: %w", err)
		}

		var msg entities.BroadcastMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			fmt.Fprintf(out, "unparsable frame: %s\n", data)
			continue
		}

		if err := encoder.Encode(msg); err != nil {
			return err
		}
	}
}
