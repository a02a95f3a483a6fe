package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"

	"github.com/vitalis-app/probe/internal/models"
	"github.com/vitalis-app/probe/internal/platform"
)

// collectTimeout bounds a single dynamic collection.
const collectTimeout = 10 * time.Second

// requiredCollectors must succeed for a dynamic sample to be usable.
var requiredCollectors = []string{"cpu", "memory"}

// System is the host metrics source used by the reporter.
type System struct {
	registry *Registry
	location string
	logger   *zap.Logger
	now      func() time.Time
}

// NewSystem creates a source with the standard collector set. location is
// reported verbatim in the static info.
func NewSystem(location string, logger *zap.Logger) *System {
	registry := NewRegistry(logger)
	registry.Register(NewCPUCollector())
	registry.Register(NewMemoryCollector())
	registry.Register(NewDiskCollector(logger))
	registry.Register(NewNetworkCollector())
	registry.Register(NewUptimeCollector())

	return NewSystemWithRegistry(registry, location, logger)
}

// NewSystemWithRegistry creates a source backed by a caller-built registry.
func NewSystemWithRegistry(registry *Registry, location string, logger *zap.Logger) *System {
	return &System{
		registry: registry,
		location: location,
		logger:   logger,
		now:      time.Now,
	}
}

// CollectStatic captures hardware and OS facts. CPU and memory facts are
// required; the disk inventory is best-effort.
func (s *System) CollectStatic(ctx context.Context) (models.StaticInfo, error) {
	infos, err := cpu.InfoWithContext(ctx)
	if err != nil {
		return models.StaticInfo{}, fmt.Errorf("cpu info: %w", err)
	}
	cores, err := cpu.CountsWithContext(ctx, true)
	if err != nil {
		return models.StaticInfo{}, fmt.Errorf("cpu count: %w", err)
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return models.StaticInfo{}, fmt.Errorf("memory info: %w", err)
	}

	osInfo := DetectOS(ctx)
	static := models.StaticInfo{
		CPUCores:      cores,
		CPUArch:       osInfo.KernelArch,
		OSVersion:     osInfo.Version,
		OSModel:       osInfo.Model,
		KernelVersion: osInfo.KernelVersion,
		TotalMemory:   vm.Total,
		Disks:         []models.DiskInfo{},
		Location:      s.location,
	}
	if len(infos) > 0 {
		static.CPUModel = infos[0].ModelName
	}
	if swap, err := mem.SwapMemoryWithContext(ctx); err == nil {
		static.TotalSwap = swap.Total
	}

	volumes, err := localVolumes(ctx, s.logger)
	if err != nil {
		s.logger.Warn("Failed to list disks for static info", zap.Error(err))
	}
	for _, v := range volumes {
		static.Disks = append(static.Disks, models.DiskInfo{
			Mount: v.partition.Mountpoint,
			Fs:    v.partition.Fstype,
			Total: v.usage.Total,
		})
	}

	return static, nil
}

// Platform returns the normalized tag for the running OS.
func (s *System) Platform() platform.Tag {
	return platform.Current()
}

// CollectDynamic runs every registered collector and assembles a sample.
func (s *System) CollectDynamic(ctx context.Context) (models.DynamicSample, error) {
	collectCtx, cancel := context.WithTimeout(ctx, collectTimeout)
	defer cancel()

	res := s.registry.CollectAll(collectCtx)
	return assembleSample(res, s.now().UTC())
}

// assembleSample maps collector results into a DynamicSample.
func assembleSample(res Results, ts time.Time) (models.DynamicSample, error) {
	for _, name := range requiredCollectors {
		if _, ok := res.Data[name]; !ok {
			if err := res.Errors[name]; err != nil {
				return models.DynamicSample{}, fmt.Errorf("%s collector: %w", name, err)
			}
			return models.DynamicSample{}, fmt.Errorf("%s collector produced no data", name)
		}
	}

	sample := models.DynamicSample{Timestamp: ts}

	if c, ok := res.Data["cpu"].(CPUResult); ok {
		sample.CPUUsage = c.Usage
		sample.CPUFrequency = c.Frequency
	}
	if m, ok := res.Data["memory"].(MemoryResult); ok {
		sample.MemoryUsage = m.MemoryUsage
		sample.SwapUsage = m.SwapUsage
	}
	if v, ok := res.Data["disk"].([]models.VolumeUsage); ok {
		sample.Volumes = v
		sample.DiskUsage = overallDiskUsage(v)
	}
	if n, ok := res.Data["network"].(models.NetworkCounters); ok {
		sample.Network = n
	}
	if u, ok := res.Data["uptime"].(uint64); ok {
		sample.UptimeSeconds = u
	}

	return sample, nil
}
