package ports

import (
	"context"
	"errors"

	"github.com/fredcamaral/reloadrelay/internal/domain/entities"
)

// EventStream is a pull-based, effectively infinite sequence of upstream events.
// Transport failures are absorbed by the implementation; callers only ever see
// decoded events, cancellation, or closure.
type EventStream interface {
	// Next blocks until the next event is decoded
	Next(ctx context.Context) (entities.UpstreamEvent, error)
	// Close abandons the stream and stops further reconnects
	Close() error
	// State reports the current connection state
	State() entities.ConnState
}

// StreamOpener opens event streams against an events URL
type StreamOpener interface {
	Open(url string) EventStream
}

// Broadcaster fans a message out to every attached tab without acknowledgment
type Broadcaster interface {
	Publish(msg entities.BroadcastMessage) error
}

// BroadcasterFunc adapts a function to the Broadcaster interface
type BroadcasterFunc func(msg entities.BroadcastMessage) error

// Publish calls f(msg)
func (f BroadcasterFunc) Publish(msg entities.BroadcastMessage) error {
	return f(msg)
}

// ConfigSink receives relay configuration handshakes from attaching tabs
type ConfigSink interface {
	// Configure reports whether cfg became the relay configuration
	Configure(cfg entities.RelayConfig) (bool, error)
}

// ErrStreamClosed is returned by EventStream.Next once the stream was closed
var ErrStreamClosed = errors.New("event stream closed")

// RelayStatusProvider exposes the coordinator's state to the status surface
type RelayStatusProvider interface {
	Status() entities.RelayStatus
}
