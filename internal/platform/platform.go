// Package platform normalizes the host operating system into the platform
// tag reported to the collector.
package platform

import "runtime"

// Tag is the normalized platform name sent in every report.
type Tag string

const (
	Windows Tag = "windows"
	Linux   Tag = "linux"
	Darwin  Tag = "darwin"
)

// Normalize maps a GOOS value to a Tag. Unix-likes other than macOS
// report as linux, the closest family the collector understands.
func Normalize(goos string) Tag {
	switch goos {
	case "windows":
		return Windows
	case "darwin", "ios":
		return Darwin
	default:
		return Linux
	}
}

// Current returns the tag for the running process.
func Current() Tag {
	return Normalize(runtime.GOOS)
}

func (t Tag) String() string { return string(t) }
