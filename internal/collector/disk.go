// Disk usage collector: gathers per-mount usage for local volumes.
// Uses gopsutil for cross-platform disk metrics.
package collector

import (
	"context"
	"strings"

	"github.com/shirou/gopsutil/v3/disk"
	"go.uber.org/zap"

	"github.com/vitalis-app/probe/internal/models"
)

// pseudoFSTypes contains filesystem types that should be excluded from disk metrics.
// These are virtual/system filesystems and network/remote filesystems that don't
// represent local storage devices.
var pseudoFSTypes = map[string]bool{
	// Virtual / system filesystems
	"devfs":         true,
	"autofs":        true,
	"nullfs":        true,
	"tmpfs":         true,
	"sysfs":         true,
	"proc":          true,
	"procfs":        true,
	"devtmpfs":      true,
	"cgroup":        true,
	"cgroup2":       true,
	"overlay":       true,
	"squashfs":      true,
	"fuse.snapfuse": true,
	"nsfs":          true,
	"pstore":        true,
	"debugfs":       true,
	"tracefs":       true,
	"securityfs":    true,
	"configfs":      true,
	"fusectl":       true,
	"mqueue":        true,
	"hugetlbfs":     true,
	"binfmt_misc":   true,
	"efivarfs":      true,
	"bpf":           true,
	"ramfs":         true,

	// Network / remote filesystems
	"nfs":            true,
	"nfs4":           true,
	"cifs":           true,
	"smbfs":          true,
	"fuse.sshfs":     true,
	"fuse.rclone":    true,
	"9p":             true,
	"afs":            true,
	"ncpfs":          true,
	"glusterfs":      true,
	"lustre":         true,
	"ceph":           true,
	"fuse.ceph":      true,
	"gpfs":           true,
	"pvfs2":          true,
	"fuse.s3fs":      true,
	"fuse.gcsfuse":   true,
	"fuse.blobfuse":  true,
	"davfs2":         true,
}

// isSystemMount returns true for mount points that are macOS system volumes
// or other OS-internal paths that shouldn't be reported.
func isSystemMount(mount string) bool {
	for _, prefix := range []string{"/System/Volumes/", "/private/var/vm"} {
		if strings.HasPrefix(mount, prefix) {
			return true
		}
	}
	return false
}

// localVolume pairs a partition with its usage.
type localVolume struct {
	partition disk.PartitionStat
	usage     *disk.UsageStat
}

// localVolumes lists mounted local filesystems with a non-zero size.
// Inaccessible partitions are skipped.
func localVolumes(ctx context.Context, logger *zap.Logger) ([]localVolume, error) {
	partitions, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		return nil, err
	}

	var out []localVolume
	for _, p := range partitions {
		if pseudoFSTypes[p.Fstype] || isSystemMount(p.Mountpoint) {
			logger.Debug("Skipping non-local filesystem",
				zap.String("mount", p.Mountpoint),
				zap.String("fstype", p.Fstype))
			continue
		}
		usage, err := disk.UsageWithContext(ctx, p.Mountpoint)
		if err != nil || usage.Total == 0 {
			continue
		}
		out = append(out, localVolume{partition: p, usage: usage})
	}
	return out, nil
}

// DiskCollector collects disk usage metrics per mount point.
type DiskCollector struct {
	logger *zap.Logger
}

// NewDiskCollector creates a new disk collector.
func NewDiskCollector(logger *zap.Logger) *DiskCollector {
	return &DiskCollector{logger: logger}
}

// Name returns the collector identifier.
func (c *DiskCollector) Name() string { return "disk" }

// Collect returns []models.VolumeUsage for all local volumes.
func (c *DiskCollector) Collect(ctx context.Context) (interface{}, error) {
	volumes, err := localVolumes(ctx, c.logger)
	if err != nil {
		return nil, err
	}

	results := make([]models.VolumeUsage, 0, len(volumes))
	for _, v := range volumes {
		results = append(results, models.VolumeUsage{
			Mount:        v.partition.Mountpoint,
			Total:        v.usage.Total,
			Used:         v.usage.Used,
			UsagePercent: v.usage.UsedPercent,
		})
	}
	return results, nil
}

// IsAvailable returns true; disk metrics are available on all platforms.
func (c *DiskCollector) IsAvailable() bool { return true }

// overallDiskUsage returns used/total across volumes as a percentage.
func overallDiskUsage(volumes []models.VolumeUsage) float64 {
	var used, total uint64
	for _, v := range volumes {
		used += v.Used
		total += v.Total
	}
	if total == 0 {
		return 0
	}
	return float64(used) / float64(total) * 100
}
