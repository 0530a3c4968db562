// Package config loads and validates the feed configuration.
//
// Configuration is a YAML file with ${VAR} environment expansion, optional
// fields filled by applyDefaults, and hard validation at startup — a bad
// symbol set or interval is fatal before any component starts.
package config

import "time"

// FeedConfig is the root configuration for a feed instance.
type FeedConfig struct {
	Instance  InstanceConfig  `yaml:"instance"`
	Upstream  UpstreamConfig  `yaml:"upstream"`
	Symbols   []string        `yaml:"symbols"`
	Poller    PollerConfig    `yaml:"poller"`
	Broadcast BroadcastConfig `yaml:"broadcast"`
	Server    ServerConfig    `yaml:"server"`
	Client    ClientConfig    `yaml:"client"`
}

// InstanceConfig identifies this feed instance.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// UpstreamConfig holds exchange API settings.
type UpstreamConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// PollerConfig holds fetch loop settings.
type PollerConfig struct {
	Interval         time.Duration `yaml:"interval"`
	FailureThreshold int           `yaml:"failure_threshold"`
}

// BroadcastConfig holds fan-out settings.
type BroadcastConfig struct {
	BufferSize int `yaml:"buffer_size"`
}

// ServerConfig holds the HTTP surface settings.
type ServerConfig struct {
	Addr              string        `yaml:"addr"`
	AllowedOrigin     string        `yaml:"allowed_origin"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	SnapshotMaxAge    time.Duration `yaml:"snapshot_max_age"`
}

// ClientConfig holds the consumer-side stream controller settings.
type ClientConfig struct {
	RetryCeiling     int           `yaml:"retry_ceiling"`
	BackoffMin       time.Duration `yaml:"backoff_min"`
	BackoffMax       time.Duration `yaml:"backoff_max"`
	PollInterval     time.Duration `yaml:"poll_interval"`
	UpgradeInterval  time.Duration `yaml:"upgrade_interval"`
	PullFailureLimit int           `yaml:"pull_failure_limit"`
}
