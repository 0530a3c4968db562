package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
// Configuration errors are the only fatal startup errors in the feed.
func (c *FeedConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if len(c.Symbols) == 0 {
		return errors.New("symbols must not be empty")
	}
	for _, s := range c.Symbols {
		if s == "" {
			return errors.New("symbols must not contain empty entries")
		}
	}

	if c.Upstream.Timeout <= 0 {
		return errors.New("upstream.timeout must be positive")
	}
	if c.Poller.Interval <= 0 {
		return errors.New("poller.interval must be positive")
	}
	if c.Upstream.Timeout >= c.Poller.Interval {
		return fmt.Errorf("upstream.timeout (%v) must be shorter than poller.interval (%v)",
			c.Upstream.Timeout, c.Poller.Interval)
	}
	if c.Poller.FailureThreshold < 1 {
		return errors.New("poller.failure_threshold must be >= 1")
	}

	if c.Broadcast.BufferSize < 1 {
		return errors.New("broadcast.buffer_size must be >= 1")
	}

	if c.Server.HeartbeatInterval <= 0 {
		return errors.New("server.heartbeat_interval must be positive")
	}
	if c.Server.SnapshotMaxAge < 0 {
		return errors.New("server.snapshot_max_age must not be negative")
	}

	if c.Client.RetryCeiling < 1 {
		return errors.New("client.retry_ceiling must be >= 1")
	}
	if c.Client.BackoffMin <= 0 || c.Client.BackoffMax < c.Client.BackoffMin {
		return fmt.Errorf("client backoff bounds invalid: min=%v max=%v",
			c.Client.BackoffMin, c.Client.BackoffMax)
	}
	if c.Client.PollInterval <= 0 {
		return errors.New("client.poll_interval must be positive")
	}
	if c.Client.PullFailureLimit < 1 {
		return errors.New("client.pull_failure_limit must be >= 1")
	}

	return nil
}
