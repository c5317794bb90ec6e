// Package monitoring carries the operational side-concerns: host
// utilization reporting and the runaway-job watchdog.
package monitoring

import (
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// HardwareMetrics is a point-in-time snapshot of host utilization
type HardwareMetrics struct {
	CPUUsage    float64  `json:"cpu_usage"`
	MemoryUsage float64  `json:"memory_usage"`
	DiskUsage   float64  `json:"disk_usage"`
	GPUUsage    *float64 `json:"gpu_usage,omitempty"`
	GPUMemory   *float64 `json:"gpu_memory,omitempty"`
}

// CollectHardwareMetrics samples current CPU, memory and disk usage.
// GPU figures are left unset; accelerator telemetry comes from the
// trainer's own output, not from the orchestrator host.
func CollectHardwareMetrics() (*HardwareMetrics, error) {
	cpuPercents, err := cpu.Percent(time.Second, false)
	if err != nil {
		return nil, err
	}
	vm, err := mem.VirtualMemory()
	if err != nil {
		return nil, err
	}
	du, err := disk.Usage("/")
	if err != nil {
		return nil, err
	}

	m := &HardwareMetrics{
		MemoryUsage: vm.UsedPercent,
		DiskUsage:   du.UsedPercent,
	}
	if len(cpuPercents) > 0 {
		m.CPUUsage = cpuPercents[0]
	}
	return m, nil
}
