// Package health reports server liveness and resource usage for the
// health endpoint.
package health

import (
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// ServerHealth represents overall server health
type ServerHealth struct {
	Status            string    `json:"status"`
	Uptime            int64     `json:"uptime_seconds"`
	Timestamp         time.Time `json:"timestamp"`
	ConnectedClients  int       `json:"connected_clients"`
	Goroutines        int       `json:"goroutines"`
	ProcessMemoryMB   uint64    `json:"process_memory_mb"`
	HostMemoryPercent float64   `json:"host_memory_percent"`
	HostCPUPercent    float64   `json:"host_cpu_percent"`
}

// Monitor tracks server uptime and samples host metrics
type Monitor struct {
	startTime time.Time
}

// NewMonitor creates a new health monitor
func NewMonitor() *Monitor {
	return &Monitor{
		startTime: time.Now(),
	}
}

// GetHealth returns the current server health. Host metrics are
// best-effort; a sampling failure leaves the field at zero.
func (m *Monitor) GetHealth(connectedClients int) *ServerHealth {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	health := &ServerHealth{
		Status:           "healthy",
		Uptime:           int64(time.Since(m.startTime).Seconds()),
		Timestamp:        time.Now(),
		ConnectedClients: connectedClients,
		Goroutines:       runtime.NumGoroutine(),
		ProcessMemoryMB:  stats.Alloc / 1024 / 1024,
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		health.HostMemoryPercent = vm.UsedPercent
	}
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		health.HostCPUPercent = percents[0]
	}

	return health
}
