package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/fredcamaral/reloadrelay/internal/domain/entities"
	"github.com/fredcamaral/reloadrelay/internal/domain/ports"
)

// ErrAlreadyRunning is returned when Run is called while another Run is active
var ErrAlreadyRunning = errors.New("relay already running")

// streamErrorPause is how long Run waits after an error the stream did not absorb
const streamErrorPause = 500 * time.Millisecond

// RelayCoordinator owns the single upstream event stream of a session and
// rebroadcasts normalized messages to every attached tab.
type RelayCoordinator struct {
	opener      ports.StreamOpener
	broadcaster ports.Broadcaster
	metrics     ports.RelayMetrics
	logger      *slog.Logger
	configured  *Signal

	mu      sync.Mutex
	config  *entities.RelayConfig
	stream  ports.EventStream
	running bool

	// lastVersionID is written only by the Run goroutine; the lock exists
	// so status readers see a consistent value.
	versionMu     sync.RWMutex
	lastVersionID *string
}

// NewRelayCoordinator creates a new relay coordinator
func NewRelayCoordinator(
	opener ports.StreamOpener,
	broadcaster ports.Broadcaster,
	logger *slog.Logger,
	metrics ports.RelayMetrics,
) *RelayCoordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}

	return &RelayCoordinator{
		opener:      opener,
		broadcaster: broadcaster,
		metrics:     metrics,
		logger:      logger.With("service", "relay"),
		configured:  NewSignal(),
	}
}

// Configure records the relay configuration. The first valid configuration
// wins; later ones are ignored and reported as not accepted. Invalid
// configurations are rejected without consuming the first-writer slot.
func (r *RelayCoordinator) Configure(cfg entities.RelayConfig) (bool, error) {
	if err := cfg.Validate(); err != nil {
		return false, err
	}

	r.mu.Lock()
	if r.config != nil {
		current := *r.config
		r.mu.Unlock()

		if current.EventsURL != cfg.EventsURL {
			r.logger.Debug("Ignoring differing relay configuration",
				slog.String("events_url", cfg.EventsURL),
				slog.String("configured_events_url", current.EventsURL),
			)
		}
		return false, nil
	}
	accepted := cfg
	r.config = &accepted
	r.mu.Unlock()

	r.logger.Info("Relay configured", slog.String("events_url", cfg.EventsURL))
	r.configured.Notify()

	return true, nil
}

// Config returns the accepted configuration, if any
func (r *RelayCoordinator) Config() (entities.RelayConfig, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.config == nil {
		return entities.RelayConfig{}, false
	}
	return *r.config, true
}

// State returns the coordinator lifecycle state
func (r *RelayCoordinator) State() entities.RelayState {
	if _, ok := r.Config(); ok {
		return entities.RelayStreaming
	}
	return entities.RelayAwaitingConfig
}

// LastVersionID returns the most recently observed version id
func (r *RelayCoordinator) LastVersionID() (string, bool) {
	r.versionMu.RLock()
	defer r.versionMu.RUnlock()

	if r.lastVersionID == nil {
		return "", false
	}
	return *r.lastVersionID, true
}

// Status returns a snapshot for the status surface
func (r *RelayCoordinator) Status() entities.RelayStatus {
	r.mu.Lock()
	cfg := r.config
	stream := r.stream
	r.mu.Unlock()

	status := entities.RelayStatus{
		State:  entities.RelayAwaitingConfig,
		Stream: entities.ConnIdle,
	}
	if cfg != nil {
		status.State = entities.RelayStreaming
		status.EventsURL = cfg.EventsURL
	}
	if stream != nil {
		status.Stream = stream.State()
	}
	if version, ok := r.LastVersionID(); ok {
		status.LastVersionID = version
	}
	status.StateName = status.State.String()
	status.StreamName = status.Stream.String()

	return status
}

// Run waits for configuration, opens the upstream stream and processes its
// events in arrival order until ctx ends.
func (r *RelayCoordinator) Run(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return ErrAlreadyRunning
	}
	r.running = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	cfg, err := r.awaitConfig(ctx)
	if err != nil {
		return err
	}

	stream := r.opener.Open(cfg.EventsURL)
	r.mu.Lock()
	r.stream = stream
	r.mu.Unlock()

	defer func() {
		if err := stream.Close(); err != nil {
			r.logger.Warn("Failed to close event stream", slog.String("error", err.Error()))
		}
	}()

	r.logger.Info("Streaming upstream events", slog.String("events_url", cfg.EventsURL))

	for {
		event, err := stream.Next(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if errors.Is(err, ports.ErrStreamClosed) {
				return err
			}
			r.logger.Warn("Unexpected event stream error", slog.String("error", err.Error()))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(streamErrorPause):
			}
			continue
		}

		r.HandleEvent(event)
	}
}

// awaitConfig blocks until a configuration has been accepted
func (r *RelayCoordinator) awaitConfig(ctx context.Context) (entities.RelayConfig, error) {
	for {
		// Take the wait channel before checking so a Configure in between is not missed
		wait := r.configured.Wait()
		if cfg, ok := r.Config(); ok {
			return cfg, nil
		}

		r.logger.Debug("Waiting for relay configuration")

		select {
		case <-ctx.Done():
			return entities.RelayConfig{}, ctx.Err()
		case <-wait:
		}
	}
}

// HandleEvent classifies one upstream event and broadcasts the result. It is
// called from the Run goroutine only.
func (r *RelayCoordinator) HandleEvent(event entities.UpstreamEvent) {
	r.metrics.RecordEvent(event.Kind)

	switch event.Kind {
	case entities.EventKindPing:
		previous, seen := r.LastVersionID()
		if seen && previous != event.VersionID {
			r.logger.Info("Server version changed",
				slog.String("previous_version", previous),
				slog.String("version", event.VersionID),
			)
			r.publish(entities.NewRestartBroadcast())
		}

		version := event.VersionID
		r.versionMu.Lock()
		r.lastVersionID = &version
		r.versionMu.Unlock()

	case entities.EventKindReload:
		r.logger.Debug("Resource changed", slog.String("path", event.Path))
		r.publish(entities.NewReloadBroadcast(event.Path))

	default:
		r.logger.Warn("Ignoring unknown event kind", slog.String("kind", string(event.Kind)))
	}
}

// publish sends a message to all tabs
func (r *RelayCoordinator) publish(msg entities.BroadcastMessage) {
	if err := r.broadcaster.Publish(msg); err != nil {
		r.logger.Warn("Failed to broadcast to tabs",
			slog.String("error", err.Error()),
			slog.String("type", string(msg.Type)),
		)
		return
	}

	r.metrics.RecordBroadcast(msg.Type)
}

// Ensure RelayCoordinator implements the ports it serves
var (
	_ ports.ConfigSink          = (*RelayCoordinator)(nil)
	_ ports.RelayStatusProvider = (*RelayCoordinator)(nil)
)
