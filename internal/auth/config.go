package auth

import (
	"log/slog"
	"time"
)

const (
	// DefaultTTL is how long an issued session stays valid when Config.TTL
	// is unset. Deliberately short; deployments configure their own.
	DefaultTTL = 30 * time.Second

	// DefaultSweepInterval is how often the Sweeper runs when
	// Config.SweepInterval is unset.
	DefaultSweepInterval = 60 * time.Second
)

// Config contains configuration for the session registry and sweeper.
type Config struct {
	// TTL is the fixed lifetime of every issued session, counted from
	// issuance. There is no sliding expiration or renewal on use.
	// Default: DefaultTTL.
	TTL time.Duration

	// SweepInterval is the period of the background expiry sweep.
	// Default: DefaultSweepInterval.
	SweepInterval time.Duration

	// MultiSession allows a user to hold several concurrent sessions.
	// When false, issuing a session evicts any session the user already
	// holds, so at most one token per user is ever valid.
	MultiSession bool

	// Logger receives sweep and rejection events. Tokens are never
	// logged. Default: slog.Default().
	Logger *slog.Logger
}

// applyDefaults fills in default values for zero-value fields.
func (c *Config) applyDefaults() {
	if c.TTL <= 0 {
		c.TTL = DefaultTTL
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = DefaultSweepInterval
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
