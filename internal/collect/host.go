// Package collect implements the metric source adapters and the
// aggregation service that merges them into a status snapshot.
// Host telemetry comes from gopsutil for cross-platform support.
package collect

import (
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/mintdeck/mintdeck/internal/models"
)

// HostCollector gathers host OS resource metrics. Every sub-metric fails
// soft: whatever the platform cannot provide is reported as nil, never as
// an error for the whole collection.
type HostCollector struct {
	mu        sync.Mutex
	prevBusy  float64
	prevTotal float64
	primed    bool

	diskPath string
}

// NewHostCollector creates a collector. diskPath is the mount point
// reported as the primary volume; empty means "/".
func NewHostCollector(diskPath string) *HostCollector {
	if diskPath == "" {
		diskPath = "/"
	}
	return &HostCollector{diskPath: diskPath}
}

// Collect gathers the current host resource snapshot.
func (c *HostCollector) Collect() models.HostResources {
	res := models.HostResources{}

	if h, err := os.Hostname(); err == nil {
		res.Hostname = h
	}

	if info, err := host.Info(); err == nil {
		res.UptimeSec = info.Uptime
		if info.Platform != "" {
			res.Platform = info.Platform
			if info.PlatformVersion != "" {
				res.Platform = fmt.Sprintf("%s %s", info.Platform, info.PlatformVersion)
			}
		}
	}
	if res.Platform == "" {
		res.Platform = runtime.GOOS
	}

	if pct, method, ok := c.cpuPercent(); ok {
		res.CPUPercent = &pct
		res.CPUMethod = method
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		res.Memory = &models.MemoryStats{
			TotalBytes:  vm.Total,
			FreeBytes:   vm.Available,
			UsedPercent: vm.UsedPercent,
		}
	}

	// Disk stats are unsupported in some sandboxes; nil is fine.
	if du, err := disk.Usage(c.diskPath); err == nil {
		res.Disk = &models.DiskStats{
			TotalBytes:  du.Total,
			FreeBytes:   du.Free,
			UsedPercent: du.UsedPercent,
		}
	}

	if avg, err := load.Avg(); err == nil {
		res.Load = &models.LoadAverages{
			Load1:  avg.Load1,
			Load5:  avg.Load5,
			Load15: avg.Load15,
		}
	}

	return res
}

// cpuPercent computes aggregate CPU utilization. With a previous sample
// available it uses the delta between two cpu.Times readings; the first
// call falls back to the busy/total ratio since boot. The method used is
// labeled in the snapshot so consumers can tell the two apart.
func (c *HostCollector) cpuPercent() (pct float64, method string, ok bool) {
	times, err := cpu.Times(false)
	if err != nil || len(times) == 0 {
		return 0, "", false
	}
	t := times[0]
	total := t.User + t.System + t.Idle + t.Nice + t.Iowait + t.Irq + t.Softirq + t.Steal
	busy := total - t.Idle - t.Iowait

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.primed {
		dTotal := total - c.prevTotal
		dBusy := busy - c.prevBusy
		c.prevTotal, c.prevBusy = total, busy
		if dTotal > 0 {
			return clampPercent(dBusy / dTotal * 100), models.CPUMethodDelta, true
		}
		// No elapsed CPU time since the previous sample; report the
		// lifetime figure instead of dividing by zero.
	} else {
		c.prevTotal, c.prevBusy = total, busy
		c.primed = true
	}

	if total > 0 {
		return clampPercent(busy / total * 100), models.CPUMethodLifetime, true
	}
	return 0, "", false
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
