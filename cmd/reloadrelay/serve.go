package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	httpadapter "github.com/fredcamaral/reloadrelay/internal/adapters/primary/http"
	"github.com/fredcamaral/reloadrelay/internal/adapters/secondary/browser"
	"github.com/fredcamaral/reloadrelay/internal/adapters/secondary/logging"
	"github.com/fredcamaral/reloadrelay/internal/adapters/secondary/monitoring"
	"github.com/fredcamaral/reloadrelay/internal/adapters/secondary/stream"
	"github.com/fredcamaral/reloadrelay/internal/domain/entities"
	"github.com/fredcamaral/reloadrelay/internal/domain/ports"
	"github.com/fredcamaral/reloadrelay/internal/domain/services"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the relay",
	Long: `Start the relay daemon. Tabs attach at /ws and the first one to send
a config handshake decides which event stream the relay follows. With
--events-url the relay starts streaming immediately.

Example:
  reloadrelay serve
  reloadrelay serve --port 35729 --events-url http://localhost:5173/_events`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	// Zero values mean "not set"; config loading supplies the defaults
	serveCmd.Flags().IntP("port", "p", 0, "Port to serve on (overrides config)")
	serveCmd.Flags().String("host", "", "Host to bind to (overrides config)")
	serveCmd.Flags().String("events-url", "", "Upstream events URL, skips waiting for a tab handshake")
	serveCmd.Flags().String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
	serveCmd.Flags().Bool("open", false, "Open the status page in a browser once listening")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, closer, err := logging.New(cfg.Logging, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()
	slog.SetDefault(logger)

	var onReady func(addr string)
	if open, _ := cmd.Flags().GetBool("open"); open {
		onReady = func(addr string) {
			openStatusPage(browser.NewLauncher(), addr, logger)
		}
	}

	return serve(cmd.Context(), cfg, logger, onReady)
}

// openStatusPage opens the relay dashboard; failure only costs a warning
func openStatusPage(launcher ports.BrowserLauncher, addr string, logger *slog.Logger) {
	url := "http://" + addr + "/status"
	if err := launcher.Open(url); err != nil {
		logger.Warn("Failed to open browser", slog.String("url", url), slog.String("error", err.Error()))
	}
}

// relay bundles the wired components of one daemon
type relay struct {
	coordinator *services.RelayCoordinator
	server      *httpadapter.Server
	monitor     *monitoring.RelayMonitor
}

// newRelay wires consumer, coordinator, monitor and server from cfg
func newRelay(cfg *entities.Config, logger *slog.Logger) (*relay, error) {
	monitor := monitoring.NewRelayMonitor(monitoring.DefaultSampleInterval, logger)

	client := ports.NewStreamingHTTPClient(ports.HTTPClientConfig{
		DialTimeout:           cfg.Relay.GetDialTimeout(),
		ResponseHeaderTimeout: cfg.Relay.GetResponseHeaderTimeout(),
		UserAgent:             "reloadrelay/" + Version,
	})
	consumer := stream.NewConsumer(client,
		stream.WithBackoff(cfg.Relay.GetRetryDelay(), cfg.Relay.GetMaxRetryDelay()),
		stream.WithMetrics(monitor),
		stream.WithLogger(logger),
	)

	// The server is both the coordinator's broadcaster and its config front end
	var server *httpadapter.Server
	coordinator := services.NewRelayCoordinator(consumer,
		ports.BroadcasterFunc(func(msg entities.BroadcastMessage) error {
			return server.Publish(msg)
		}),
		logger, monitor,
	)
	server = httpadapter.NewServer(coordinator, coordinator, &cfg.Server,
		httpadapter.WithLogger(logger),
		httpadapter.WithMetrics(monitor),
		httpadapter.WithStats(monitor),
		httpadapter.WithClientBuffer(cfg.Relay.GetClientBuffer()),
	)

	if cfg.Relay.EventsURL != "" {
		if _, err := coordinator.Configure(entities.RelayConfig{EventsURL: cfg.Relay.EventsURL}); err != nil {
			return nil, fmt.Errorf("preconfigured events URL: %w", err)
		}
	}

	return &relay{coordinator: coordinator, server: server, monitor: monitor}, nil
}

// serve runs the relay until ctx ends. onReady, when set, is called with the
// bound address once the server accepts connections.
func serve(ctx context.Context, cfg *entities.Config, logger *slog.Logger, onReady func(addr string)) error {
	r, err := newRelay(cfg, logger)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	r.monitor.Start(runCtx)
	defer r.monitor.Stop()

	if err := r.server.Start(runCtx, cfg.Server.Port, cfg.Server.Host); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	logger.Info("Relay listening",
		slog.String("ws", "ws://"+r.server.Addr()+"/ws"),
		slog.String("status", "http://"+r.server.Addr()+"/status"),
	)
	if onReady != nil {
		onReady(r.server.Addr())
	}

	runErr := make(chan error, 1)
	go func() {
		runErr <- r.coordinator.Run(runCtx)
	}()

	var result error
	select {
	case <-ctx.Done():
		logger.Info("Shutting down relay")
	case err := <-runErr:
		runErr = nil
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Relay stopped", slog.String("error", err.Error()))
			result = fmt.Errorf("relay: %w", err)
		}
	}

	cancel()
	if runErr != nil {
		<-runErr
	}

	// runCtx is done; shutdown gets its own deadline from the server config
	if err := r.server.Stop(context.Background()); err != nil {
		logger.Error("Error during shutdown", slog.String("error", err.Error()))
	}

	return result
}
