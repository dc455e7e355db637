package metrics

import (
	"fmt"
	"runtime"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	systemOnce sync.Once

	DiskUsedPercent = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "optibase",
			Subsystem: "system",
			Name:      "disk_used_percent",
			Help:      "Used share of the filesystem holding the path",
		},
		[]string{"path"},
	)

	DiskFreeBytes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "optibase",
			Subsystem: "system",
			Name:      "disk_free_bytes",
			Help:      "Bytes available to unprivileged writers on the filesystem holding the path",
		},
		[]string{"path"},
	)

	HeapAllocBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "optibase",
			Subsystem: "system",
			Name:      "heap_alloc_bytes",
			Help:      "Bytes of allocated heap objects at the last sample",
		},
	)

	Goroutines = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "optibase",
			Subsystem: "system",
			Name:      "goroutines",
			Help:      "Goroutines alive at the last sample",
		},
	)
)

// RegisterSystem installs the helper gauges exactly once.
func RegisterSystem() {
	systemOnce.Do(func() {
		prometheus.MustRegister(DiskUsedPercent, DiskFreeBytes, HeapAllocBytes, Goroutines)
	})
}

// SystemSnapshot is one sampled reading.
type SystemSnapshot struct {
	DiskUsedPercent float64
	DiskFreeBytes   uint64
	HeapAllocBytes  uint64
	Goroutines      int
}

// SampleSystem reads the runtime and the filesystem holding path, updating
// the helper gauges and returning the snapshot.
func SampleSystem(path string) (SystemSnapshot, error) {
	var st syscall.Statfs_t
	if err := syscall.Statfs(path, &st); err != nil {
		return SystemSnapshot{}, fmt.Errorf("statfs %s: %w", path, err)
	}

	bsize := uint64(st.Bsize)
	used := (st.Blocks - st.Bfree) * bsize
	avail := st.Bavail * bsize
	usedPercent := 0.0
	if used+avail > 0 {
		usedPercent = float64(used) / float64(used+avail) * 100
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	snap := SystemSnapshot{
		DiskUsedPercent: usedPercent,
		DiskFreeBytes:   avail,
		HeapAllocBytes:  ms.HeapAlloc,
		Goroutines:      runtime.NumGoroutine(),
	}

	DiskUsedPercent.WithLabelValues(path).Set(snap.DiskUsedPercent)
	DiskFreeBytes.WithLabelValues(path).Set(float64(snap.DiskFreeBytes))
	HeapAllocBytes.Set(float64(snap.HeapAllocBytes))
	Goroutines.Set(float64(snap.Goroutines))

	return snap, nil
}
