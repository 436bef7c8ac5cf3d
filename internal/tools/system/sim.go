package system

import "runtime"

// RuntimeMemoryReporter reports the Go runtime's current heap
// headroom as a stand-in for a real free-heap driver (OUT OF SCOPE
// per this module's hardware boundary), the same simulated-seam
// convention as gpio.SimulatedController and i2c.SimulatedScanner.
type RuntimeMemoryReporter struct{}

// FreeBytes returns bytes obtained from the OS but not currently in
// use by the Go heap.
func (RuntimeMemoryReporter) FreeBytes() uint64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return stats.HeapIdle - stats.HeapReleased
}
