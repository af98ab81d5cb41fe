// Package sysprobe reports host memory occupancy for the Background
// Maintainer's pressure-based eviction (C9). There is no GPU-memory
// probe here: VRAM occupancy is only known to the inference sidecar,
// which does not currently expose a percentage (only a GPU-available
// boolean), so the gateway's pressure sources cover RAM only.
package sysprobe

import "syscall"

// RAMPercent reports the fraction of total RAM currently in use, via
// syscall.Sysinfo (Linux). observable is false on platforms where the
// syscall is unavailable or fails, so callers skip this source rather
// than evict on a bogus reading.
func RAMPercent() (pct float64, observable bool) {
	var info syscall.Sysinfo_t
	if err := syscall.Sysinfo(&info); err != nil {
		return 0, false
	}
	if info.Totalram == 0 {
		return 0, false
	}
	used := info.Totalram - info.Freeram
	return float64(used) / float64(info.Totalram) * 100.0, true
}
