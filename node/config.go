package node

import "time"

// Default configuration constants.
const (
	DefaultStatusInterval  = 1600 * time.Millisecond
	DefaultStaleMultiplier = 3
	DefaultTickInterval    = 100 * time.Millisecond
)

// Config holds the configuration for one vehicle.
type Config struct {
	// Name identifies the vehicle; it is the suffix of its NET: command
	// tag and the name it announces on the discovery channels.
	Name string

	// Discovery timing. A peer is considered stale after
	// StatusInterval * StaleMultiplier without contact.
	StatusInterval  time.Duration
	StaleMultiplier int

	// TickInterval is the host scheduler cadence.
	TickInterval time.Duration

	// Radio bridge configuration for running over zmq. Empty RadioBind
	// means the vehicle runs on an in-process bus.
	RadioBind  string
	RadioPeers []string

	// MetricsAddr exposes /metrics when non-empty.
	MetricsAddr string
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig(name string) *Config {
	return &Config{
		Name:            name,
		StatusInterval:  DefaultStatusInterval,
		StaleMultiplier: DefaultStaleMultiplier,
		TickInterval:    DefaultTickInterval,
	}
}

// Validate checks if the config is valid.
func (c *Config) Validate() error {
	if c.Name == "" {
		return ErrNameRequired
	}
	if c.StatusInterval <= 0 {
		return ErrInvalidStatusInterval
	}
	if c.StaleMultiplier < 1 {
		return ErrInvalidStaleMultiplier
	}
	if c.TickInterval <= 0 {
		return ErrInvalidTickInterval
	}
	return nil
}
