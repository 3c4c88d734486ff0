package entities

import "time"

// MetricsSnapshot is a point-in-time copy of relay counters and process stats
type MetricsSnapshot struct {
	StartedAt time.Time     `json:"startedAt"`
	Uptime    time.Duration `json:"-"`
	UptimeSec int64         `json:"uptimeSeconds"`

	PingEvents        int64 `json:"pingEvents"`
	ReloadEvents      int64 `json:"reloadEvents"`
	ReloadBroadcasts  int64 `json:"reloadBroadcasts"`
	RestartBroadcasts int64 `json:"restartBroadcasts"`
	DecodeFailures    int64 `json:"decodeFailures"`
	Reconnects        int64 `json:"reconnects"`
	TabsAttached      int64 `json:"tabsAttached"`
	TabsDetached      int64 `json:"tabsDetached"`

	Goroutines int       `json:"goroutines"`
	HeapBytes  int64     `json:"heapBytes"`
	GCCycles   uint32    `json:"gcCycles"`
	RSSBytes   int64     `json:"rssBytes"`
	CPUPercent float64   `json:"cpuPercent"`
	SampledAt  time.Time `json:"sampledAt"`
}
