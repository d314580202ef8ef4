package daemon

import (
	"net"
	"time"

	"github.com/Brotsalat/zkill-ws-slack/feed"
	"github.com/Brotsalat/zkill-ws-slack/killmail"
	"github.com/Brotsalat/zkill-ws-slack/logging"
	"github.com/Brotsalat/zkill-ws-slack/reference"
	"github.com/Brotsalat/zkill-ws-slack/webhook"
	"github.com/pkg/errors"
)

// DefaultConfigPath is where the YAML configuration is looked for unless --config is given.
const DefaultConfigPath = "/etc/zkill-ws-slack/config.yml"

// EnvPrefix prefixes every environment variable the configuration is read from.
const EnvPrefix = "ZKILL_"

// Watch selects the entity whose kills and losses are notified about.
type Watch struct {
	EntityID int64         `yaml:"entity_id" env:"ENTITY_ID"`
	Kind     killmail.Kind `yaml:"kind" env:"KIND" default:"alliance"`
	// All notifies about every kill regardless of the entity.
	All bool `yaml:"all" env:"ALL"`
}

// Entity returns the watched entity reference.
func (w Watch) Entity() killmail.EntityRef {
	return killmail.EntityRef{ID: w.EntityID, Kind: w.Kind}
}

// Validate checks constraints in the supplied configuration and returns an error if they are violated.
func (w *Watch) Validate() error {
	if w.Kind != killmail.KindAlliance && w.Kind != killmail.KindCorporation {
		return errors.Errorf("watch kind must be either %q or %q, got %q",
			killmail.KindAlliance, killmail.KindCorporation, w.Kind)
	}

	if w.EntityID < 0 || (w.EntityID == 0 && !w.All) {
		return errors.New("watch entity_id must be positive unless all kills are watched")
	}

	return nil
}

// Metrics configures the Prometheus endpoint.
type Metrics struct {
	// Listen is the address /metrics is served on. Empty disables the endpoint.
	Listen string `yaml:"listen" env:"LISTEN"`
}

// Validate checks constraints in the supplied configuration and returns an error if they are violated.
func (m *Metrics) Validate() error {
	if m.Listen == "" {
		return nil
	}

	if _, _, err := net.SplitHostPort(m.Listen); err != nil {
		return errors.Wrap(err, "invalid metrics listen address")
	}

	return nil
}

// Config is the process configuration. It is loaded once at startup and not modified afterwards.
type Config struct {
	Watch     Watch            `yaml:"watch" envPrefix:"WATCH_"`
	Feed      feed.Config      `yaml:"feed" envPrefix:"FEED_"`
	Reference reference.Config `yaml:"reference" envPrefix:"REFERENCE_"`
	Webhook   webhook.Config   `yaml:"webhook" envPrefix:"WEBHOOK_"`
	Logging   logging.Config   `yaml:"logging" envPrefix:"LOGGING_"`
	Metrics   Metrics          `yaml:"metrics" envPrefix:"METRICS_"`

	// MaxInFlight bounds the number of kills processed concurrently. Zero means unbounded.
	MaxInFlight int64 `yaml:"max_in_flight" env:"MAX_IN_FLIGHT"`

	// ShutdownGrace is how long kills still being processed are waited for on shutdown.
	// Zero exits right away.
	ShutdownGrace time.Duration `yaml:"shutdown_grace" env:"SHUTDOWN_GRACE"`
}

// Validate checks constraints in the supplied configuration and returns an error if they are violated.
func (c *Config) Validate() error {
	if err := c.Watch.Validate(); err != nil {
		return err
	}
	if err := c.Feed.Validate(); err != nil {
		return err
	}
	if err := c.Reference.Validate(); err != nil {
		return err
	}
	if err := c.Webhook.Validate(); err != nil {
		return err
	}
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	if err := c.Metrics.Validate(); err != nil {
		return err
	}

	if c.MaxInFlight < 0 {
		return errors.New("max_in_flight must not be negative")
	}
	if c.ShutdownGrace < 0 {
		return errors.New("shutdown_grace must not be negative")
	}

	return nil
}
