package monitoring

import (
	"context"
	"log/slog"
	"math"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/fredcamaral/reloadrelay/internal/domain/entities"
	"github.com/fredcamaral/reloadrelay/internal/domain/ports"
)

// DefaultSampleInterval is how often process stats are refreshed
const DefaultSampleInterval = 15 * time.Second

// RelayMonitor counts relay activity and periodically samples runtime and
// process statistics. Counters are lock-free; samples are guarded by mu.
type RelayMonitor struct {
	startedAt time.Time
	interval  time.Duration
	logger    *slog.Logger
	proc      *process.Process

	pingEvents        atomic.Int64
	reloadEvents      atomic.Int64
	reloadBroadcasts  atomic.Int64
	restartBroadcasts atomic.Int64
	decodeFailures    atomic.Int64
	reconnects        atomic.Int64
	tabsAttached      atomic.Int64
	tabsDetached      atomic.Int64

	mu      sync.RWMutex
	sample  processSample
	running bool
	stopCh  chan struct{}
}

type processSample struct {
	goroutines int
	heapBytes  int64
	gcCycles   uint32
	rssBytes   int64
	cpuPercent float64
	sampledAt  time.Time
}

// NewRelayMonitor creates a monitor sampling every interval
func NewRelayMonitor(interval time.Duration, logger *slog.Logger) *RelayMonitor {
	if interval <= 0 {
		interval = DefaultSampleInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	m := &RelayMonitor{
		startedAt: time.Now(),
		interval:  interval,
		logger:    logger.With("component", "monitor"),
	}

	// Process stats are optional; runtime stats are always available
	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil { // #nosec G115 - pids fit in int32
		m.proc = proc
	} else {
		m.logger.Debug("Process stats unavailable", slog.String("error", err.Error()))
	}

	return m
}

// Start takes an initial sample and refreshes it until ctx ends or Stop is called
func (m *RelayMonitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.stopCh = make(chan struct{})
	stopCh := m.stopCh
	m.mu.Unlock()

	m.Sample()

	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-stopCh:
				return
			case <-ticker.C:
				m.Sample()
			}
		}
	}()
}

// Stop stops periodic sampling
func (m *RelayMonitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	m.running = false
	close(m.stopCh)
}

// Sample refreshes runtime and process statistics
func (m *RelayMonitor) Sample() {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	s := processSample{
		goroutines: runtime.NumGoroutine(),
		heapBytes:  safeUint64ToInt64(memStats.HeapAlloc),
		gcCycles:   memStats.NumGC,
		sampledAt:  time.Now(),
	}

	if m.proc != nil {
		if mem, err := m.proc.MemoryInfo(); err == nil && mem != nil {
			s.rssBytes = safeUint64ToInt64(mem.RSS)
		}
		if cpu, err := m.proc.CPUPercent(); err == nil {
			s.cpuPercent = cpu
		}
	}

	m.mu.Lock()
	m.sample = s
	m.mu.Unlock()
}

// RecordEvent counts a decoded upstream event
func (m *RelayMonitor) RecordEvent(kind entities.EventKind) {
	switch kind {
	case entities.EventKindPing:
		m.pingEvents.Add(1)
	case entities.EventKindReload:
		m.reloadEvents.Add(1)
	}
}

// RecordBroadcast counts a message published to tabs
func (m *RelayMonitor) RecordBroadcast(msgType entities.BroadcastType) {
	switch msgType {
	case entities.BroadcastReload:
		m.reloadBroadcasts.Add(1)
	case entities.BroadcastRestart:
		m.restartBroadcasts.Add(1)
	}
}

func (m *RelayMonitor) RecordDecodeFailure() { m.decodeFailures.Add(1) }
func (m *RelayMonitor) RecordReconnect()     { m.reconnects.Add(1) }
func (m *RelayMonitor) RecordTabAttached()   { m.tabsAttached.Add(1) }
func (m *RelayMonitor) RecordTabDetached()   { m.tabsDetached.Add(1) }

// Snapshot returns a copy of the current counters and the latest sample
func (m *RelayMonitor) Snapshot() entities.MetricsSnapshot {
	m.mu.RLock()
	s := m.sample
	m.mu.RUnlock()

	uptime := time.Since(m.startedAt)

	return entities.MetricsSnapshot{
		StartedAt: m.startedAt,
		Uptime:    uptime,
		UptimeSec: int64(uptime / time.Second),

		PingEvents:        m.pingEvents.Load(),
		ReloadEvents:      m.reloadEvents.Load(),
		ReloadBroadcasts:  m.reloadBroadcasts.Load(),
		RestartBroadcasts: m.restartBroadcasts.Load(),
		DecodeFailures:    m.decodeFailures.Load(),
		Reconnects:        m.reconnects.Load(),
		TabsAttached:      m.tabsAttached.Load(),
		TabsDetached:      m.tabsDetached.Load(),

		Goroutines: s.goroutines,
		HeapBytes:  s.heapBytes,
		GCCycles:   s.gcCycles,
		RSSBytes:   s.rssBytes,
		CPUPercent: s.cpuPercent,
		SampledAt:  s.sampledAt,
	}
}

// safeUint64ToInt64 safely converts uint64 to int64, capping at max int64 value
func safeUint64ToInt64(val uint64) int64 {
	if val > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(val)
}

var (
	_ ports.RelayMetrics    = (*RelayMonitor)(nil)
	_ ports.MetricsProvider = (*RelayMonitor)(nil)
)
