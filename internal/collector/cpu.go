// CPU usage collector: gathers overall utilization and current frequency.
// Uses gopsutil for cross-platform CPU metrics.
package collector

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
)

// CPUResult holds the collected CPU usage data.
type CPUResult struct {
	Usage     float64
	Frequency float64 // MHz
}

// CPUCollector collects CPU usage metrics.
type CPUCollector struct {
	window time.Duration
}

// NewCPUCollector creates a new CPU collector.
func NewCPUCollector() *CPUCollector {
	return &CPUCollector{window: time.Second}
}

// Name returns the collector identifier.
func (c *CPUCollector) Name() string { return "cpu" }

// Collect measures overall CPU usage over a short window. Frequency is
// best-effort and left at zero when unavailable.
func (c *CPUCollector) Collect(ctx context.Context) (interface{}, error) {
	overall, err := cpu.PercentWithContext(ctx, c.window, false)
	if err != nil {
		return nil, err
	}

	var result CPUResult
	if len(overall) > 0 {
		result.Usage = overall[0]
	}
	if infos, err := cpu.InfoWithContext(ctx); err == nil && len(infos) > 0 {
		result.Frequency = infos[0].Mhz
	}
	return result, nil
}

// IsAvailable returns true; CPU metrics are available on all platforms.
func (c *CPUCollector) IsAvailable() bool { return true }
