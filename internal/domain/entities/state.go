package entities

// ConnState is the connection state of the upstream stream consumer
type ConnState int

const (
	// ConnIdle is the state before the first connection attempt
	ConnIdle ConnState = iota
	// ConnConnecting means a request is in flight
	ConnConnecting
	// ConnOpen means the stream is delivering records
	ConnOpen
	// ConnBackoff means the consumer is waiting before reconnecting
	ConnBackoff
	// ConnClosed means the caller abandoned the stream
	ConnClosed
)

// String returns the string representation of ConnState
func (s ConnState) String() string {
	switch s {
	case ConnIdle:
		return "idle"
	case ConnConnecting:
		return "connecting"
	case ConnOpen:
		return "open"
	case ConnBackoff:
		return "backoff"
	case ConnClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// RelayState is the lifecycle state of the relay coordinator
type RelayState int

const (
	// RelayAwaitingConfig means no tab has supplied configuration yet
	RelayAwaitingConfig RelayState = iota
	// RelayStreaming means the upstream stream has been opened
	RelayStreaming
)

// String returns the string representation of RelayState
func (s RelayState) String() string {
	switch s {
	case RelayAwaitingConfig:
		return "awaiting_config"
	case RelayStreaming:
		return "streaming"
	default:
		return "unknown"
	}
}

// RelayStatus is a point-in-time view of the relay for status reporting
type RelayStatus struct {
	State         RelayState `json:"-"`
	StateName     string     `json:"state"`
	EventsURL     string     `json:"eventsUrl,omitempty"`
	LastVersionID string     `json:"lastVersionId,omitempty"`
	Stream        ConnState  `json:"-"`
	StreamName    string     `json:"stream"`
}
