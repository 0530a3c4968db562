package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultUpstreamBaseURL   = "https://api.binance.com"
	DefaultUpstreamTimeout   = 5 * time.Second
	DefaultPollInterval      = 30 * time.Second
	DefaultFailureThreshold  = 3
	DefaultBroadcastBuffer   = 16
	DefaultServerAddr        = ":8090"
	DefaultAllowedOrigin     = "*"
	DefaultHeartbeatInterval = 25 * time.Second
	DefaultSnapshotMaxAge    = 20 * time.Second
	DefaultRetryCeiling      = 10
	DefaultBackoffMin        = 500 * time.Millisecond
	DefaultBackoffMax        = 30 * time.Second
	DefaultClientPoll        = 60 * time.Second
	DefaultUpgradeInterval   = 3 * time.Minute
	DefaultPullFailureLimit  = 5
)

func (c *FeedConfig) applyDefaults() {
	if c.Upstream.BaseURL == "" {
		c.Upstream.BaseURL = DefaultUpstreamBaseURL
	}
	if c.Upstream.Timeout == 0 {
		c.Upstream.Timeout = DefaultUpstreamTimeout
	}

	if c.Poller.Interval == 0 {
		c.Poller.Interval = DefaultPollInterval
	}
	if c.Poller.FailureThreshold == 0 {
		c.Poller.FailureThreshold = DefaultFailureThreshold
	}

	if c.Broadcast.BufferSize == 0 {
		c.Broadcast.BufferSize = DefaultBroadcastBuffer
	}

	if c.Server.Addr == "" {
		c.Server.Addr = DefaultServerAddr
	}
	if c.Server.AllowedOrigin == "" {
		c.Server.AllowedOrigin = DefaultAllowedOrigin
	}
	if c.Server.HeartbeatInterval == 0 {
		c.Server.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.Server.SnapshotMaxAge == 0 {
		c.Server.SnapshotMaxAge = DefaultSnapshotMaxAge
	}

	if c.Client.RetryCeiling == 0 {
		c.Client.RetryCeiling = DefaultRetryCeiling
	}
	if c.Client.BackoffMin == 0 {
		c.Client.BackoffMin = DefaultBackoffMin
	}
	if c.Client.BackoffMax == 0 {
		c.Client.BackoffMax = DefaultBackoffMax
	}
	if c.Client.PollInterval == 0 {
		c.Client.PollInterval = DefaultClientPoll
	}
	if c.Client.UpgradeInterval == 0 {
		c.Client.UpgradeInterval = DefaultUpgradeInterval
	}
	if c.Client.PullFailureLimit == 0 {
		c.Client.PullFailureLimit = DefaultPullFailureLimit
	}
}
