// Package resources takes lightweight host resource snapshots used for
// advisory logging in the daemon loop and for the read-only monitor.
package resources

import (
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
)

// Snapshot is a point-in-time read of host resource utilization.
type Snapshot struct {
	CPUPercent  float64
	MemPercent  float64
	DiskPercent float64
	Taken       time.Time
}

// Sample blocks for the given interval to measure CPU utilization, then
// reads memory and disk usage for path. Errors reading any one metric leave
// it at zero rather than failing the whole snapshot.
func Sample(interval time.Duration, path string) Snapshot {
	snap := Snapshot{Taken: time.Now()}

	if percentages, err := cpu.Percent(interval, false); err == nil && len(percentages) > 0 {
		snap.CPUPercent = percentages[0]
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		snap.MemPercent = vm.UsedPercent
	}

	if usage, err := disk.Usage(path); err == nil {
		snap.DiskPercent = usage.UsedPercent
	}

	return snap
}
