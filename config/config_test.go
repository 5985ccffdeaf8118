package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultMatchesLaneTable(t *testing.T) {
	d := Default()
	assert.Equal(t, 220, d.ShorteningThreshold)
	assert.Equal(t, uint64(512*1024*1024), d.CacheBytes)
	assert.Equal(t, 5*time.Minute, d.CacheTTL)
	assert.Equal(t, 500*time.Millisecond, d.NegativeTTL)
	assert.Equal(t, 32, d.BoundedPoolMaxLeaks)
	assert.Equal(t, float64(0), d.BulkReadsPerSecond)
	assert.Equal(t, 8, d.BulkBurst)

	assert.Equal(t, 256, d.LaneQueueCapacities.Control)
	assert.Equal(t, 1024, d.LaneQueueCapacities.Metadata)
	assert.Equal(t, 2048, d.LaneQueueCapacities.ReadForeground)
	assert.Equal(t, 1024, d.LaneQueueCapacities.WriteStructural)
	assert.Equal(t, 512, d.LaneQueueCapacities.Bulk)

	assert.Equal(t, 5*time.Second, d.LaneDeadlines.Control)
	assert.Equal(t, 2*time.Second, d.LaneDeadlines.Metadata)
	assert.Equal(t, 10*time.Second, d.LaneDeadlines.ReadForeground)
	assert.Equal(t, 10*time.Second, d.LaneDeadlines.WriteStructural)
	assert.Equal(t, 30*time.Second, d.LaneDeadlines.Bulk)
}

func TestAttributeTTLByMountMode(t *testing.T) {
	local := Default()
	assert.Equal(t, time.Second, local.AttributeTTL())

	cloud := Default()
	cloud.MountMode = MountModeCloudSynced
	assert.Equal(t, 60*time.Second, cloud.AttributeTTL())
}

func TestLoadAppliesDefaults(t *testing.T) {
	v := New()
	c, err := Load(v)
	assert.NoError(t, err)
	assert.Equal(t, Default().ShorteningThreshold, c.ShorteningThreshold)
	assert.Equal(t, Default().LaneQueueCapacities, c.LaneQueueCapacities)
	assert.Equal(t, MountModeLocal, c.MountMode)
}

func TestLoadOverride(t *testing.T) {
	v := New()
	v.Set("shortening_threshold", 100)
	v.Set("mount_mode", "cloud-synced")
	v.Set("cache_ttl", "1m")

	c, err := Load(v)
	assert.NoError(t, err)
	assert.Equal(t, 100, c.ShorteningThreshold)
	assert.Equal(t, MountModeCloudSynced, c.MountMode)
	assert.Equal(t, time.Minute, c.CacheTTL)
}
