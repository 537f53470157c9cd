package queue

import (
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemMetrics tracks resource usage for worker pool monitoring
type SystemMetrics struct {
	WorkersActive  int     `json:"workers_active"`  // Fetches currently in flight
	WorkersTotal   int     `json:"workers_total"`   // Configured concurrency ceiling
	DiskFreeBytes  uint64  `json:"disk_free_bytes"` // Free bytes on the download volume
	MemoryPercent  float64 `json:"memory_percent"`  // System memory utilization percentage
	JobsQueued     int     `json:"jobs_queued"`     // Jobs waiting in queue
	JobsInProgress int     `json:"jobs_in_progress"`
}

// diskFreeBytes reports free bytes on the volume holding path.
// This backs the worker's storage precondition check.
func diskFreeBytes(path string) (uint64, error) {
	if path == "" {
		path = "."
	}
	usage, err := disk.Usage(path)
	if err != nil {
		return 0, err
	}
	return usage.Free, nil
}

// GetSystemMetrics returns current worker and resource usage.
// Store or probe errors degrade to zero values rather than failing the
// metrics call.
func (wp *WorkerPool) GetSystemMetrics() SystemMetrics {
	metrics := SystemMetrics{
		WorkersActive: wp.Active(),
		WorkersTotal:  wp.poolConfig.Workers,
	}

	if free, err := wp.freeBytes(wp.poolConfig.DownloadDir); err == nil {
		metrics.DiskFreeBytes = free
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		metrics.MemoryPercent = vm.UsedPercent
	}
	if stats, err := wp.store.GetStats(); err == nil {
		metrics.JobsQueued = stats.Queued
		metrics.JobsInProgress = stats.InProgress
	}

	return metrics
}
