// RAM and swap usage collector.
// Uses gopsutil for cross-platform memory metrics.
package collector

import (
	"context"

	"github.com/shirou/gopsutil/v3/mem"
)

// MemoryResult holds memory and swap usage percentages.
type MemoryResult struct {
	MemoryUsage float64
	SwapUsage   float64
}

// MemoryCollector collects RAM and swap usage.
type MemoryCollector struct{}

// NewMemoryCollector creates a new memory collector.
func NewMemoryCollector() *MemoryCollector {
	return &MemoryCollector{}
}

// Name returns the collector identifier.
func (c *MemoryCollector) Name() string { return "memory" }

// Collect gathers memory usage. Swap is optional: hosts without swap, or
// where it cannot be read, report zero.
func (c *MemoryCollector) Collect(ctx context.Context) (interface{}, error) {
	v, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, err
	}
	result := MemoryResult{MemoryUsage: v.UsedPercent}
	if s, err := mem.SwapMemoryWithContext(ctx); err == nil {
		result.SwapUsage = s.UsedPercent
	}
	return result, nil
}

// IsAvailable returns true; memory metrics are available on all platforms.
func (c *MemoryCollector) IsAvailable() bool { return true }
