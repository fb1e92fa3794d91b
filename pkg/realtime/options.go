package realtime

import (
	"log/slog"
	"time"
)

// Default protocol timings.
const (
	DefaultJoinTimeout       = 10 * time.Second
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultHeartbeatTimeout  = 10 * time.Second
	DefaultReconnectDelay    = 5 * time.Second
)

// Option configures the Channel.
type Option func(*Channel)

// WithDialer replaces the websocket dialer.
func WithDialer(d Dialer) Option {
	return func(c *Channel) {
		c.dialer = d
	}
}

// WithHandler receives every inbound event that is not protocol traffic.
func WithHandler(h Handler) Option {
	return func(c *Channel) {
		c.handler = h
	}
}

// WithToken supplies the bearer token sent with each join.
// It is called on every (re)join so refreshed tokens are picked up.
func WithToken(token func() string) Option {
	return func(c *Channel) {
		c.token = token
	}
}

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Channel) {
		c.logger = logger
	}
}

// WithJoinTimeout overrides how long a join may stay unacknowledged.
func WithJoinTimeout(d time.Duration) Option {
	return func(c *Channel) {
		c.joinTimeout = d
	}
}

// WithHeartbeat overrides the heartbeat interval and per-heartbeat timeout.
func WithHeartbeat(interval, timeout time.Duration) Option {
	return func(c *Channel) {
		c.heartbeatInterval = interval
		c.heartbeatTimeout = timeout
	}
}

// WithReconnectDelay overrides the fixed delay between reconnect attempts.
func WithReconnectDelay(d time.Duration) Option {
	return func(c *Channel) {
		c.reconnectDelay = d
	}
}
