package helpers

import "runtime"

// MemoryInfo is a point-in-time memory reading for diagnostics
type MemoryInfo struct {
	TotalMB     int
	AvailableMB int
	HeapMB      int
	Goroutines  int
}

// -----------------------------------------------------------------------------

// ReadMemoryInfo combines the OS view of physical memory with the Go runtime's
// own heap usage. OS figures are 0 where the platform probe is unavailable.
func ReadMemoryInfo() MemoryInfo {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	total, available := readSystemMemoryMB()
	return MemoryInfo{
		TotalMB:     total,
		AvailableMB: available,
		HeapMB:      int(ms.HeapAlloc / 1024 / 1024),
		Goroutines:  runtime.NumGoroutine(),
	}
}

// -----------------------------------------------------------------------------

// Healthy reports whether at least 10% of physical memory is still available.
// Unknown platforms count as healthy.
func (m MemoryInfo) Healthy() bool {
	if m.TotalMB == 0 {
		return true
	}
	return m.AvailableMB*10 >= m.TotalMB
}
