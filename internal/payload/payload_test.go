package payload

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalis-app/probe/internal/config"
	"github.com/vitalis-app/probe/internal/models"
	"github.com/vitalis-app/probe/internal/platform"
)

var client = config.ClientConfig{
	Name:    "db-primary",
	Tags:    []string{"prod", "postgres"},
	Purpose: "database",
}

func TestBuild_RequiresStaticInfo(t *testing.T) {
	_, err := Build("id-1", client, nil, platform.Linux, "db1", models.DynamicStatus{})
	assert.ErrorIs(t, err, ErrStaticInfoUnset)
}

func TestBuild_MergesInputs(t *testing.T) {
	static := &models.StaticInfo{CPUModel: "Ryzen", CPUCores: 12, Location: "fra1"}
	status := models.DynamicSample{
		Timestamp: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		CPUUsage:  33.3,
		Network:   models.NetworkCounters{RxBytes: 99, TxBytes: 77},
	}.WithRates(10, 20)

	p, err := Build("id-1", client, static, platform.Darwin, "db1", status)
	require.NoError(t, err)

	assert.Equal(t, "id-1", p.ClientID)
	assert.Equal(t, "db-primary", p.ClientName)
	assert.Equal(t, []string{"prod", "postgres"}, p.ClientTags)
	assert.Equal(t, "database", p.ClientPurpose)
	assert.Equal(t, "db1", p.Hostname)
	assert.Equal(t, "darwin", p.Platform)
	assert.Equal(t, "fra1", p.StaticInfo.Location)
	assert.Equal(t, 10.0, p.DynamicStatus.NetworkUpload)
	assert.Equal(t, 20.0, p.DynamicStatus.NetworkDownload)
}

func TestBuild_DoesNotAliasConfigTags(t *testing.T) {
	cfg := config.ClientConfig{Tags: []string{"a"}}
	p, err := Build("id", cfg, &models.StaticInfo{}, platform.Linux, "h", models.DynamicStatus{})
	require.NoError(t, err)

	cfg.Tags[0] = "mutated"
	assert.Equal(t, []string{"a"}, p.ClientTags)
}

func TestBuild_WireFieldsHaveNoRawCounters(t *testing.T) {
	status := models.DynamicSample{Network: models.NetworkCounters{RxBytes: 1, TxBytes: 2}}.WithRates(0, 0)
	p, err := Build("id", client, &models.StaticInfo{}, platform.Windows, "h", status)
	require.NoError(t, err)

	data, err := json.Marshal(p)
	require.NoError(t, err)

	var wire struct {
		DynamicStatus map[string]any `json:"dynamicStatus"`
	}
	require.NoError(t, json.Unmarshal(data, &wire))
	assert.NotContains(t, wire.DynamicStatus, "rxBytes")
	assert.Contains(t, wire.DynamicStatus, "networkUpload")
	assert.Contains(t, wire.DynamicStatus, "networkDownload")
}

func TestAssembler(t *testing.T) {
	a := NewAssembler("id-9", client, platform.Linux, "web1")

	_, err := a.Build(models.DynamicStatus{})
	require.ErrorIs(t, err, ErrStaticInfoUnset)

	a.SetStatic(models.StaticInfo{CPUModel: "Graviton"})
	p, err := a.Build(models.DynamicStatus{CPUUsage: 5})
	require.NoError(t, err)
	assert.Equal(t, "Graviton", p.StaticInfo.CPUModel)
	assert.Equal(t, "web1", p.Hostname)
	assert.Equal(t, 5.0, p.DynamicStatus.CPUUsage)
}
