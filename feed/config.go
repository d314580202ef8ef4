package feed

import (
	"net/url"
	"time"

	"github.com/pkg/errors"
)

// Config defines the feed connection configuration.
type Config struct {
	// Url is the websocket endpoint of the killmail relay.
	Url string `yaml:"url" env:"URL" default:"wss://api.pizza.moe/stream/killmails/"`

	// UserAgent is sent with the websocket handshake.
	UserAgent string `yaml:"user_agent" env:"USER_AGENT" default:"zKill-WS Slack/1.1"`

	HandshakeTimeout  time.Duration `yaml:"handshake_timeout" env:"HANDSHAKE_TIMEOUT" default:"30s"`
	KeepaliveInterval time.Duration `yaml:"keepalive_interval" env:"KEEPALIVE_INTERVAL" default:"10s"`

	// ReadTimeout, if > 0, closes the connection if neither a frame nor a pong arrived within it.
	ReadTimeout time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`

	// Reconnect re-dials with backoff after a connection failure instead of giving up.
	Reconnect bool `yaml:"reconnect" env:"RECONNECT"`
	// ReconnectTimeout, if > 0, limits how long re-dialing is attempted.
	ReconnectTimeout time.Duration `yaml:"reconnect_timeout" env:"RECONNECT_TIMEOUT"`
}

// Validate checks constraints in the supplied configuration and returns an error if they are violated.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Url)
	if err != nil {
		return errors.Wrap(err, "unable to parse feed URL")
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return errors.Errorf("feed URL must use ws or wss, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("feed URL must include a host")
	}

	if c.KeepaliveInterval <= 0 {
		return errors.New("keepalive_interval must be positive")
	}

	if c.HandshakeTimeout < 0 || c.ReadTimeout < 0 || c.ReconnectTimeout < 0 {
		return errors.New("feed timeouts must not be negative")
	}

	if c.ReadTimeout > 0 && c.ReadTimeout <= c.KeepaliveInterval {
		return errors.New("read_timeout must be longer than keepalive_interval")
	}

	return nil
}
