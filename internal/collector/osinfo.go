// OS info detection: gathers OS name and version information.
// Uses gopsutil host info everywhere, refined per platform:
//   - Linux: /etc/os-release PRETTY_NAME
//   - macOS: sw_vers
//
// Results are cached since the OS version does not change during runtime.
package collector

import (
	"context"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"

	"github.com/shirou/gopsutil/v3/host"
)

// OSInfo holds the detected OS information.
type OSInfo struct {
	Model         string // e.g. "Ubuntu 22.04.4 LTS", "macOS", "Microsoft Windows 11 Pro"
	Version       string // e.g. "22.04", "14.2.1", "10.0.22631"
	KernelVersion string
	KernelArch    string
}

var (
	osInfoOnce  sync.Once
	osInfoCache OSInfo
)

// DetectOS returns the host OS description. The first call does the work.
func DetectOS(ctx context.Context) OSInfo {
	osInfoOnce.Do(func() {
		osInfoCache = detectOS(ctx)
	})
	return osInfoCache
}

func detectOS(ctx context.Context) OSInfo {
	info := OSInfo{
		Model:      runtime.GOOS,
		Version:    "unknown",
		KernelArch: runtime.GOARCH,
	}

	if h, err := host.InfoWithContext(ctx); err == nil {
		if h.Platform != "" {
			info.Model = h.Platform
		}
		if h.PlatformVersion != "" {
			info.Version = h.PlatformVersion
		}
		info.KernelVersion = h.KernelVersion
		if h.KernelArch != "" {
			info.KernelArch = h.KernelArch
		}
	}

	switch runtime.GOOS {
	case "linux":
		if data, err := os.ReadFile("/etc/os-release"); err == nil {
			applyOSRelease(&info, parseKeyValueFile(string(data)))
		}
	case "darwin":
		if out, err := exec.CommandContext(ctx, "sw_vers", "-productName").Output(); err == nil {
			if name := strings.TrimSpace(string(out)); name != "" {
				info.Model = name
			}
		}
	}

	return info
}

// applyOSRelease refines info from /etc/os-release fields.
func applyOSRelease(info *OSInfo, fields map[string]string) {
	if name, ok := fields["NAME"]; ok {
		info.Model = strings.Trim(name, "\"")
	}
	if pretty, ok := fields["PRETTY_NAME"]; ok {
		info.Model = strings.Trim(pretty, "\"")
	}
	if version, ok := fields["VERSION_ID"]; ok {
		info.Version = strings.Trim(version, "\"")
	}
}

// parseKeyValueFile parses a file with KEY=VALUE lines (like /etc/os-release).
func parseKeyValueFile(content string) map[string]string {
	fields := make(map[string]string)
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) == 2 {
			fields[parts[0]] = parts[1]
		}
	}
	return fields
}
