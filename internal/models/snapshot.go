// Package models defines the data shapes shared across mintdeck:
// the aggregated status snapshot and the buffered event/activity records.
package models

// RemoteHealth is the result of one timed probe against the mint's
// /v1/info endpoint. When Reachable is false, LatencyMs still holds the
// wall-clock time spent until the failure; the optional fields stay nil.
type RemoteHealth struct {
	Reachable bool  `json:"reachable"`
	LatencyMs int64 `json:"latency_ms"`
	// RemoteTimeUnix is the server-reported unix timestamp, if the info
	// response carried one.
	RemoteTimeUnix *int64 `json:"remote_time_unix,omitempty"`
	// ClockDriftSec = localUnixSec - remoteUnixSec. Positive means the
	// local clock is ahead of the mint's.
	ClockDriftSec *int64 `json:"clock_drift_sec,omitempty"`
	Error         string `json:"error,omitempty"`
}

// MemoryStats describes physical memory usage.
type MemoryStats struct {
	TotalBytes  uint64  `json:"total_bytes"`
	FreeBytes   uint64  `json:"free_bytes"`
	UsedPercent float64 `json:"used_percent"`
}

// DiskStats describes usage of the primary volume.
type DiskStats struct {
	TotalBytes  uint64  `json:"total_bytes"`
	FreeBytes   uint64  `json:"free_bytes"`
	UsedPercent float64 `json:"used_percent"`
}

// LoadAverages holds the classic 1/5/15 minute load figures.
type LoadAverages struct {
	Load1  float64 `json:"1m"`
	Load5  float64 `json:"5m"`
	Load15 float64 `json:"15m"`
}

// CPU sampling methods reported in HostResources.CPUMethod.
const (
	CPUMethodDelta    = "delta"    // computed from two cpu.Times samples
	CPUMethodLifetime = "lifetime" // busy/total ratio since boot (first call)
)

// HostResources is the host OS slice of a snapshot. Sub-fields that the
// platform cannot provide (disk stats in a sandbox, load averages on
// Windows) are nil rather than failing the whole collection.
type HostResources struct {
	CPUPercent *float64      `json:"cpu_percent"`
	CPUMethod  string        `json:"cpu_method,omitempty"`
	Memory     *MemoryStats  `json:"memory"`
	Disk       *DiskStats    `json:"disk"`
	Load       *LoadAverages `json:"load_avg"`
	UptimeSec  uint64        `json:"uptime_sec"`
	Hostname   string        `json:"hostname"`
	Platform   string        `json:"platform"`
}

// WindowCounts are rows created within a recent wall-clock window.
type WindowCounts struct {
	Last1h  *int64 `json:"last_1h"`
	Last24h *int64 `json:"last_24h"`
}

// TableCounts aggregates one mint table. Total is nil when neither the
// primary table name nor its known alias exists in this schema version.
type TableCounts struct {
	Total   *int64           `json:"total"`
	ByState map[string]int64 `json:"by_state,omitempty"`
	Recent  *WindowCounts    `json:"recent,omitempty"`
}

// EntityCounts is the mint-database slice of a snapshot. Available is
// false (with a human-readable Reason) when no database is configured or
// the file cannot be opened; individual table figures degrade to nil.
type EntityCounts struct {
	Available     bool                   `json:"available"`
	Reason        string                 `json:"reason,omitempty"`
	Tables        map[string]TableCounts `json:"tables,omitempty"`
	ActiveKeysets *int64                 `json:"active_keysets,omitempty"`
}

// ActivitySummary carries cumulative per-operation totals plus the most
// recent records from the activity buffer.
type ActivitySummary struct {
	Totals map[OpType]uint64 `json:"totals"`
	Recent []ActivityRecord  `json:"recent"`
}

// Snapshot is one consistent point-in-time aggregate of every
// operational signal. It is assembled fresh on every pull or push cycle
// and never persisted. Assembly cannot fail: a failing source degrades
// its own field and leaves the rest populated.
type Snapshot struct {
	Mint          RemoteHealth    `json:"mint"`
	OS            HostResources   `json:"os"`
	DB            EntityCounts    `json:"db"`
	Monitoring    ActivitySummary `json:"monitoring"`
	GeneratedAtMs int64           `json:"generated_at_ms"`
}
