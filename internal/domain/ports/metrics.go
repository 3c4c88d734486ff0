package ports

import "github.com/fredcamaral/reloadrelay/internal/domain/entities"

// RelayMetrics records relay activity for the status surface.
// Implementations must be safe for concurrent use.
type RelayMetrics interface {
	RecordEvent(kind entities.EventKind)
	RecordBroadcast(msgType entities.BroadcastType)
	RecordDecodeFailure()
	RecordReconnect()
	RecordTabAttached()
	RecordTabDetached()
}

// NopMetrics discards all measurements
type NopMetrics struct{}

func (NopMetrics) RecordEvent(entities.EventKind)         {}
func (NopMetrics) RecordBroadcast(entities.BroadcastType) {}
func (NopMetrics) RecordDecodeFailure()                   {}
func (NopMetrics) RecordReconnect()                       {}
func (NopMetrics) RecordTabAttached()                     {}
func (NopMetrics) RecordTabDetached()                     {}

// MetricsProvider exposes recorded metrics to the status surface
type MetricsProvider interface {
	Snapshot() entities.MetricsSnapshot
}
