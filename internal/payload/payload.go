// Package payload assembles the wire report from the client identity, the
// static hardware snapshot and a dynamic status.
package payload

import (
	"errors"
	"sync"

	"github.com/vitalis-app/probe/internal/config"
	"github.com/vitalis-app/probe/internal/models"
	"github.com/vitalis-app/probe/internal/platform"
)

// ErrStaticInfoUnset is returned when a payload is built before the static
// snapshot has been captured.
var ErrStaticInfoUnset = errors.New("payload: static info not set")

// Build merges its inputs into a report payload.
func Build(
	identity string,
	client config.ClientConfig,
	static *models.StaticInfo,
	tag platform.Tag,
	hostname string,
	status models.DynamicStatus,
) (models.ReportPayload, error) {
	if static == nil {
		return models.ReportPayload{}, ErrStaticInfoUnset
	}

	tags := make([]string, len(client.Tags))
	copy(tags, client.Tags)

	return models.ReportPayload{
		ClientID:      identity,
		ClientName:    client.Name,
		ClientTags:    tags,
		ClientPurpose: client.Purpose,
		Hostname:      hostname,
		Platform:      tag.String(),
		StaticInfo:    *static,
		DynamicStatus: status,
	}, nil
}

// Assembler holds everything that stays fixed for the process lifetime.
type Assembler struct {
	identity string
	client   config.ClientConfig
	platform platform.Tag
	hostname string

	mu     sync.RWMutex
	static *models.StaticInfo
}

// NewAssembler creates an assembler without static info.
func NewAssembler(identity string, client config.ClientConfig, tag platform.Tag, hostname string) *Assembler {
	return &Assembler{
		identity: identity,
		client:   client,
		platform: tag,
		hostname: hostname,
	}
}

// SetStatic stores the static snapshot used by every subsequent Build.
func (a *Assembler) SetStatic(info models.StaticInfo) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.static = &info
}

// Build assembles a payload for status.
func (a *Assembler) Build(status models.DynamicStatus) (models.ReportPayload, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return Build(a.identity, a.client, a.static, a.platform, a.hostname, status)
}
