// Package config defines the runtime configuration recognised by the vault
// core (SPEC_FULL.md §6): shortening threshold, mount mode, cache sizing,
// per-lane scheduler capacities/deadlines, and the bounded-pool leak quota.
// Loading merges flags, environment variables (OXCRYPT_ prefix), and an
// optional config file via spf13/viper, decoded into Config with
// mitchellh/mapstructure, following the flag/env/file layering of the
// admin CLI's cobra+viper wiring (§6.1).
package config

import (
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// MountMode affects the default attribute-cache TTLs (see AttributeTTL): a
// local mount revalidates cached attributes after 1s, while a cloud-synced
// mount keeps them for 60s.
type MountMode int

const (
	MountModeLocal MountMode = iota
	MountModeCloudSynced
)

func (m MountMode) String() string {
	if m == MountModeCloudSynced {
		return "cloud-synced"
	}
	return "local"
}

// ParseMountMode parses the "mount_mode" config value.
func ParseMountMode(s string) MountMode {
	if s == "cloud-synced" || s == "cloud_synced" || s == "CloudSynced" {
		return MountModeCloudSynced
	}
	return MountModeLocal
}

// LaneCapacities are the per-lane bounded-queue capacities admission
// control enforces before a request ever reaches a worker (§4.4).
type LaneCapacities struct {
	Control         int `mapstructure:"control"`
	Metadata        int `mapstructure:"metadata"`
	ReadForeground  int `mapstructure:"read_foreground"`
	WriteStructural int `mapstructure:"write_structural"`
	Bulk            int `mapstructure:"bulk"`
}

// DefaultLaneCapacities matches the §4.4 lane table.
func DefaultLaneCapacities() LaneCapacities {
	return LaneCapacities{
		Control:         256,
		Metadata:        1024,
		ReadForeground:  2048,
		WriteStructural: 1024,
		Bulk:            512,
	}
}

// LaneDeadlines are the per-lane reply deadlines the scheduler's
// exactly-once reply race runs against (§4.4).
type LaneDeadlines struct {
	Control         time.Duration `mapstructure:"control"`
	Metadata        time.Duration `mapstructure:"metadata"`
	ReadForeground  time.Duration `mapstructure:"read_foreground"`
	WriteStructural time.Duration `mapstructure:"write_structural"`
	Bulk            time.Duration `mapstructure:"bulk"`
}

// DefaultLaneDeadlines matches the §4.4 lane table.
func DefaultLaneDeadlines() LaneDeadlines {
	return LaneDeadlines{
		Control:         5 * time.Second,
		Metadata:        2 * time.Second,
		ReadForeground:  10 * time.Second,
		WriteStructural: 10 * time.Second,
		Bulk:            30 * time.Second,
	}
}

// Config is the full set of tunables the core reads at mount time.
type Config struct {
	ShorteningThreshold int           `mapstructure:"shortening_threshold"`
	MountMode           MountMode     `mapstructure:"-"`
	CacheBytes          uint64        `mapstructure:"cache_bytes"`
	CacheTTL            time.Duration `mapstructure:"cache_ttl"`
	NegativeTTL         time.Duration `mapstructure:"negative_ttl"`

	LaneQueueCapacities LaneCapacities `mapstructure:"lane_queue_capacities"`
	LaneDeadlines       LaneDeadlines  `mapstructure:"lane_deadlines"`

	BoundedPoolMaxLeaks int `mapstructure:"bounded_pool_max_leaks"`

	// BulkReadsPerSecond throttles LaneBulk dispatch (large reads,
	// prefetch, background scans) via golang.org/x/time/rate, so a
	// prefetch storm cannot saturate a network-backed vault root and
	// starve the foreground lanes of I/O bandwidth. 0 means unlimited.
	BulkReadsPerSecond float64 `mapstructure:"bulk_reads_per_second"`
	BulkBurst          int     `mapstructure:"bulk_burst"`
}

// Default returns the configuration a fresh mount uses absent any
// flags/env/file overrides.
func Default() Config {
	return Config{
		ShorteningThreshold: 220,
		MountMode:           MountModeLocal,
		CacheBytes:          512 * 1024 * 1024,
		CacheTTL:            5 * time.Minute,
		NegativeTTL:         500 * time.Millisecond,
		LaneQueueCapacities: DefaultLaneCapacities(),
		LaneDeadlines:       DefaultLaneDeadlines(),
		BoundedPoolMaxLeaks: 32,
		BulkReadsPerSecond:  0,
		BulkBurst:           8,
	}
}

// AttributeTTL returns the positive attribute-cache TTL for the configured
// mount mode: 1s for a local mount, 60s for a cloud-synced one, per §4.4.
func (c Config) AttributeTTL() time.Duration {
	if c.MountMode == MountModeCloudSynced {
		return 60 * time.Second
	}
	return time.Second
}

// New builds a viper instance pre-seeded with Default()'s values, ready to
// have flags bound and a config file merged in by the CLI layer.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("OXCRYPT")
	v.AutomaticEnv()

	d := Default()
	v.SetDefault("shortening_threshold", d.ShorteningThreshold)
	v.SetDefault("mount_mode", d.MountMode.String())
	v.SetDefault("cache_bytes", d.CacheBytes)
	v.SetDefault("cache_ttl", d.CacheTTL)
	v.SetDefault("negative_ttl", d.NegativeTTL)
	v.SetDefault("lane_queue_capacities.control", d.LaneQueueCapacities.Control)
	v.SetDefault("lane_queue_capacities.metadata", d.LaneQueueCapacities.Metadata)
	v.SetDefault("lane_queue_capacities.read_foreground", d.LaneQueueCapacities.ReadForeground)
	v.SetDefault("lane_queue_capacities.write_structural", d.LaneQueueCapacities.WriteStructural)
	v.SetDefault("lane_queue_capacities.bulk", d.LaneQueueCapacities.Bulk)
	v.SetDefault("lane_deadlines.control", d.LaneDeadlines.Control)
	v.SetDefault("lane_deadlines.metadata", d.LaneDeadlines.Metadata)
	v.SetDefault("lane_deadlines.read_foreground", d.LaneDeadlines.ReadForeground)
	v.SetDefault("lane_deadlines.write_structural", d.LaneDeadlines.WriteStructural)
	v.SetDefault("lane_deadlines.bulk", d.LaneDeadlines.Bulk)
	v.SetDefault("bounded_pool_max_leaks", d.BoundedPoolMaxLeaks)
	v.SetDefault("bulk_reads_per_second", d.BulkReadsPerSecond)
	v.SetDefault("bulk_burst", d.BulkBurst)
	return v
}

// Load decodes v's merged flag/env/file state into a Config, applying the
// StringToTimeDurationHookFunc so "10s"-style values in a config file
// decode into time.Duration fields.
func Load(v *viper.Viper) (Config, error) {
	var c Config
	decodeHook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
	)
	if err := v.Unmarshal(&c, viper.DecodeHook(decodeHook)); err != nil {
		return Config{}, err
	}
	c.MountMode = ParseMountMode(v.GetString("mount_mode"))
	return c, nil
}
