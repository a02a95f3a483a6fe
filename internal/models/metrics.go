// Package models defines the report data structures used throughout the probe.
// These structures are serialized to JSON for transmission to the collector
// and for the on-disk report cache.
package models

import "time"

// StaticInfo is the hardware/OS snapshot captured once at startup.
type StaticInfo struct {
	CPUModel      string     `json:"cpuModel"`
	CPUCores      int        `json:"cpuCores"`
	CPUArch       string     `json:"cpuArch"`
	OSVersion     string     `json:"osVersion"`
	OSModel       string     `json:"osModel"`
	KernelVersion string     `json:"kernelVersion,omitempty"`
	TotalMemory   uint64     `json:"totalMemory"`
	TotalSwap     uint64     `json:"totalSwap"`
	Disks         []DiskInfo `json:"disks"`
	Location      string     `json:"location"`
}

// DiskInfo describes a single local volume in the static inventory.
type DiskInfo struct {
	Mount string `json:"mount"`
	Fs    string `json:"fs,omitempty"`
	Total uint64 `json:"total"`
}

// VolumeUsage represents usage for a single disk/partition.
type VolumeUsage struct {
	Mount        string  `json:"mount"`
	Total        uint64  `json:"total"`
	Used         uint64  `json:"used"`
	UsagePercent float64 `json:"usagePercent"`
}

// NetworkCounters holds cumulative byte counters summed across interfaces.
type NetworkCounters struct {
	RxBytes uint64 `json:"rxBytes"`
	TxBytes uint64 `json:"txBytes"`
}

// DynamicSample is a single point-in-time reading of time-varying metrics.
// Network holds raw cumulative counters; see WithRates.
type DynamicSample struct {
	Timestamp     time.Time
	CPUUsage      float64
	CPUFrequency  float64
	MemoryUsage   float64
	SwapUsage     float64
	DiskUsage     float64
	Volumes       []VolumeUsage
	UptimeSeconds uint64
	Network       NetworkCounters
}

// DynamicStatus is the wire form of a DynamicSample, carrying throughput
// rates in bytes per second instead of cumulative counters.
type DynamicStatus struct {
	Timestamp       time.Time     `json:"timestamp"`
	CPUUsage        float64       `json:"cpuUsage"`
	CPUFrequency    float64       `json:"cpuFrequency"`
	MemoryUsage     float64       `json:"memoryUsage"`
	SwapUsage       float64       `json:"swapUsage"`
	DiskUsage       float64       `json:"diskUsage"`
	Volumes         []VolumeUsage `json:"volumes"`
	UptimeSeconds   uint64        `json:"uptimeSeconds"`
	NetworkUpload   float64       `json:"networkUpload"`
	NetworkDownload float64       `json:"networkDownload"`
}

// WithRates returns the wire status for s with the given throughput rates.
func (s DynamicSample) WithRates(upload, download float64) DynamicStatus {
	return DynamicStatus{
		Timestamp:       s.Timestamp,
		CPUUsage:        s.CPUUsage,
		CPUFrequency:    s.CPUFrequency,
		MemoryUsage:     s.MemoryUsage,
		SwapUsage:       s.SwapUsage,
		DiskUsage:       s.DiskUsage,
		Volumes:         s.Volumes,
		UptimeSeconds:   s.UptimeSeconds,
		NetworkUpload:   upload,
		NetworkDownload: download,
	}
}

// ReportPayload is the body sent to the collector via POST /api/reports.
type ReportPayload struct {
	ClientID      string        `json:"clientId"`
	ClientName    string        `json:"clientName"`
	ClientTags    []string      `json:"clientTags"`
	ClientPurpose string        `json:"clientPurpose"`
	Hostname      string        `json:"hostname"`
	Platform      string        `json:"platform"`
	StaticInfo    StaticInfo    `json:"staticInfo"`
	DynamicStatus DynamicStatus `json:"dynamicStatus"`
}

// CachedReport wraps a payload that failed delivery and awaits retry.
type CachedReport struct {
	Payload    ReportPayload `json:"payload"`
	Timestamp  time.Time     `json:"timestamp"`
	RetryCount int           `json:"retryCount"`
}
