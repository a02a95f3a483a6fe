// Network I/O collector: gathers cumulative RX/TX byte counters.
// Uses gopsutil for cross-platform network metrics. Rates are derived
// downstream from consecutive samples.
package collector

import (
	"context"
	"strings"

	"github.com/shirou/gopsutil/v3/net"

	"github.com/vitalis-app/probe/internal/models"
)

// NetworkCollector sums cumulative byte counters over all non-loopback
// interfaces.
type NetworkCollector struct{}

// NewNetworkCollector creates a new network collector.
func NewNetworkCollector() *NetworkCollector {
	return &NetworkCollector{}
}

// Name returns the collector identifier.
func (c *NetworkCollector) Name() string { return "network" }

// Collect returns models.NetworkCounters for the host.
func (c *NetworkCollector) Collect(ctx context.Context) (interface{}, error) {
	counters, err := net.IOCountersWithContext(ctx, true)
	if err != nil {
		return nil, err
	}

	loopback := make(map[string]bool)
	if ifaces, err := net.InterfacesWithContext(ctx); err == nil {
		for _, iface := range ifaces {
			for _, flag := range iface.Flags {
				if flag == "loopback" {
					loopback[iface.Name] = true
				}
			}
		}
	}

	return sumCounters(counters, loopback), nil
}

// IsAvailable returns true; network metrics are available on all platforms.
func (c *NetworkCollector) IsAvailable() bool { return true }

// sumCounters adds up per-interface counters, skipping loopback devices.
func sumCounters(counters []net.IOCountersStat, loopback map[string]bool) models.NetworkCounters {
	var total models.NetworkCounters
	for _, cnt := range counters {
		if loopback[cnt.Name] || looksLikeLoopback(cnt.Name) {
			continue
		}
		total.RxBytes += cnt.BytesRecv
		total.TxBytes += cnt.BytesSent
	}
	return total
}

// looksLikeLoopback catches loopback names when interface flags are missing.
func looksLikeLoopback(name string) bool {
	lower := strings.ToLower(name)
	return lower == "lo" || strings.HasPrefix(lower, "lo0") || strings.Contains(lower, "loopback")
}
