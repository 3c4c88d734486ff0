package entities

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidEventsURL is returned when a relay configuration carries an unusable events URL
var ErrInvalidEventsURL = errors.New("invalid events url")

// RelayConfig is the one piece of external state the relay needs.
// It is supplied once per process lifetime and never changes afterwards.
type RelayConfig struct {
	EventsURL string `json:"eventsUrl"`
}

// Validate checks that the events URL is an absolute http(s) URL
func (c RelayConfig) Validate() error {
	if strings.TrimSpace(c.EventsURL) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidEventsURL)
	}

	u, err := url.Parse(c.EventsURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEventsURL, err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme must be http or https, got %q", ErrInvalidEventsURL, u.Scheme)
	}

	if u.Host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidEventsURL)
	}

	return nil
}

// EventKind discriminates upstream events
type EventKind string

const (
	// EventKindPing is the periodic liveness/version signal
	EventKindPing EventKind = "ping"
	// EventKindReload names one changed resource
	EventKindReload EventKind = "reload"
)

// UpstreamEvent is one decoded record from the development server's event stream
type UpstreamEvent struct {
	Kind      EventKind
	VersionID string
	Path      string
}

// NewPingEvent creates a ping event carrying a version id
func NewPingEvent(versionID string) UpstreamEvent {
	return UpstreamEvent{Kind: EventKindPing, VersionID: versionID}
}

// NewReloadEvent creates a reload event for a single resource
func NewReloadEvent(path string) UpstreamEvent {
	return UpstreamEvent{Kind: EventKindReload, Path: path}
}

// upstreamPayload is the wire shape of an upstream record's data field
type upstreamPayload struct {
	Type      string  `json:"type"`
	VersionID *string `json:"versionId"`
	Path      *string `json:"path"`
}

// DecodeUpstreamEvent parses a record payload. When the payload carries no
// type discriminator, eventName (the SSE "event:" field) is used instead.
func DecodeUpstreamEvent(eventName string, data []byte) (UpstreamEvent, error) {
	var payload upstreamPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return UpstreamEvent{}, fmt.Errorf("decoding event payload: %w", err)
	}

	kind := payload.Type
	if kind == "" {
		kind = eventName
	}

	switch EventKind(kind) {
	case EventKindPing:
		if payload.VersionID == nil {
			return UpstreamEvent{}, errors.New("ping event missing versionId")
		}
		return NewPingEvent(*payload.VersionID), nil
	case EventKindReload:
		if payload.Path == nil {
			return UpstreamEvent{}, errors.New("reload event missing path")
		}
		return NewReloadEvent(*payload.Path), nil
	case "":
		return UpstreamEvent{}, errors.New("event type missing")
	default:
		return UpstreamEvent{}, fmt.Errorf("unknown event type %q", kind)
	}
}

// BroadcastType discriminates messages sent to attached tabs
type BroadcastType string

const (
	// BroadcastReload tells tabs a single resource changed
	BroadcastReload BroadcastType = "reload"
	// BroadcastRestart tells tabs the whole page must reload
	BroadcastRestart BroadcastType = "restart"
)

// BroadcastMessage is what the relay fans out to every attached tab
type BroadcastMessage struct {
	Type BroadcastType `json:"type"`
	Path string        `json:"path,omitempty"`
}

// NewReloadBroadcast creates a reload broadcast for path
func NewReloadBroadcast(path string) BroadcastMessage {
	return BroadcastMessage{Type: BroadcastReload, Path: path}
}

// NewRestartBroadcast creates a restart broadcast
func NewRestartBroadcast() BroadcastMessage {
	return BroadcastMessage{Type: BroadcastRestart}
}
