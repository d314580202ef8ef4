package main

import (
	"os"
	"strconv"
	"strings"

	"github.com/Brotsalat/zkill-ws-slack/config"
	"github.com/Brotsalat/zkill-ws-slack/daemon"
	"github.com/Brotsalat/zkill-ws-slack/killmail"
	"github.com/Brotsalat/zkill-ws-slack/logging"
)

// Flags are the command line options. Except for --config and --env-file, each one overrides
// the corresponding setting from the config file and the environment.
type Flags struct {
	Config  string `long:"config" description:"path to config file (default: /etc/zkill-ws-slack/config.yml)"`
	EnvFile string `long:"env-file" description:"read ZKILL_ environment variables from this dotenv file"`

	All         bool   `short:"a" long:"all" description:"notify about every kill, not only those involving the entity"`
	Corporation bool   `short:"c" long:"corporation" description:"the entity ID is a corporation instead of an alliance"`
	DryRun      bool   `short:"d" long:"dry-run" description:"log notifications instead of posting them"`
	EntityID    int64  `short:"e" long:"entity-id" description:"ID of the alliance or corporation to watch"`
	LogFile     string `short:"f" long:"log-file" description:"write logs to this file instead of stderr"`
	LogLevel    string `short:"l" long:"log-level" description:"log level: debug, info, warn or error"`
	WebhookUrl  string `short:"w" long:"webhook-url" description:"incoming webhook URL"`
}

// GetConfigPath implements config.Flags.
func (f Flags) GetConfigPath() string {
	if f.Config == "" {
		return daemon.DefaultConfigPath
	}

	return f.Config
}

// IsExplicitConfigPath implements config.Flags.
func (f Flags) IsExplicitConfigPath() bool {
	return f.Config != ""
}

// Environment returns the variables configuration is read from: the process environment,
// supplemented by the env file if given, overridden by the flags.
func (f Flags) Environment() (map[string]string, error) {
	var environment map[string]string
	if f.EnvFile != "" {
		var err error
		if environment, err = config.LoadEnvFile(f.EnvFile); err != nil {
			return nil, err
		}
	} else {
		environment = make(map[string]string)
		for _, kv := range os.Environ() {
			if k, v, ok := strings.Cut(kv, "="); ok {
				environment[k] = v
			}
		}
	}

	f.override(environment)

	return environment, nil
}

func (f Flags) override(environment map[string]string) {
	set := func(key, value string) {
		environment[daemon.EnvPrefix+key] = value
	}

	if f.All {
		set("WATCH_ALL", "true")
	}
	if f.Corporation {
		set("WATCH_KIND", string(killmail.KindCorporation))
	}
	if f.EntityID != 0 {
		set("WATCH_ENTITY_ID", strconv.FormatInt(f.EntityID, 10))
	}
	if f.DryRun {
		set("WEBHOOK_DRY_RUN", "true")
	}
	if f.WebhookUrl != "" {
		set("WEBHOOK_URL", f.WebhookUrl)
	}
	if f.LogFile != "" {
		set("LOGGING_OUTPUT", logging.FILE)
		set("LOGGING_FILE", f.LogFile)
	}
	if f.LogLevel != "" {
		set("LOGGING_LEVEL", f.LogLevel)
	}
}
