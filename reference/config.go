package reference

import (
	"net/url"
	"time"

	"github.com/pkg/errors"
)

// Config defines the reference data service client configuration.
type Config struct {
	// BaseUrl is the service root that resources are addressed relative to.
	BaseUrl string `yaml:"base_url" env:"BASE_URL" default:"https://crest-tq.eveonline.com/"`

	// UserAgent identifies this client to the service.
	UserAgent string `yaml:"user_agent" env:"USER_AGENT" default:"zKill-WS Slack/1.1"`

	// Timeout limits each request. Zero means no timeout.
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`

	// CacheSize is the number of response bodies kept in memory across events. Zero disables caching.
	CacheSize int `yaml:"cache_size" env:"CACHE_SIZE"`

	// RateLimit caps outgoing requests per second. Zero means unlimited.
	RateLimit float64 `yaml:"rate_limit" env:"RATE_LIMIT"`
}

// Validate checks constraints in the supplied configuration and returns an error if they are violated.
func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseUrl)
	if err != nil {
		return errors.Wrap(err, "unable to parse reference base URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.Errorf("reference base URL must use http or https, got %q", u.Scheme)
	}
	if c.UserAgent == "" {
		return errors.New("reference user_agent missing")
	}
	if c.Timeout < 0 {
		return errors.New("reference timeout must not be negative")
	}
	if c.CacheSize < 0 {
		return errors.New("reference cache_size must not be negative")
	}
	if c.RateLimit < 0 {
		return errors.New("reference rate_limit must not be negative")
	}

	return nil
}
