package webhook

import (
	"net/url"
	"time"

	"github.com/Brotsalat/zkill-ws-slack/config"
	"github.com/pkg/errors"
)

// Flavor selects the payload format expected by the webhook endpoint.
type Flavor string

const (
	Slack   Flavor = "slack"
	Discord Flavor = "discord"
)

// Config defines the webhook publisher configuration.
type Config struct {
	// Url is the incoming webhook URL. It usually embeds a secret, so it can also be read from UrlFile.
	Url     string `yaml:"url" env:"URL,unset"` // #nosec G117 -- exported secret field
	UrlFile string `yaml:"url_file" env:"URL_FILE"`

	Flavor    Flavor        `yaml:"flavor" env:"FLAVOR" default:"slack"`
	DryRun    bool          `yaml:"dry_run" env:"DRY_RUN"`
	UserAgent string        `yaml:"user_agent" env:"USER_AGENT" default:"zKill-WS Slack/1.1"`
	Timeout   time.Duration `yaml:"timeout" env:"TIMEOUT"`

	TlsOptions config.TLS `yaml:",inline"`
}

// Validate checks constraints in the supplied configuration and returns an error if they are violated.
// The URL is only required if DryRun is off.
func (c *Config) Validate() error {
	if err := config.LoadSecretFile(&c.Url, c.UrlFile); err != nil {
		return err
	}

	switch c.Flavor {
	case Slack, Discord:
	default:
		return errors.Errorf("webhook flavor must be either %q or %q, got %q", Slack, Discord, c.Flavor)
	}

	if c.Timeout < 0 {
		return errors.New("webhook timeout must not be negative")
	}

	if c.Url == "" {
		if c.DryRun {
			return nil
		}

		return errors.New("webhook URL missing")
	}

	u, err := url.Parse(c.Url)
	if err != nil {
		return errors.Wrap(err, "unable to parse webhook URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.Errorf("webhook URL must use http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("webhook URL must include a host")
	}

	return nil
}
