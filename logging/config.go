package logging

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap/zapcore"
)

// Log outputs.
const (
	// CONSOLE writes to stderr.
	CONSOLE = "console"
	// FILE appends to Config.File.
	FILE = "file"
	// JOURNAL sends to systemd-journald.
	JOURNAL = "systemd-journald"
)

// Options define child loggers with their desired log level.
type Options map[string]zapcore.Level

// UnmarshalText implements encoding.TextUnmarshaler to allow Options to be parsed by env,
// e.g. from "feed:debug,webhook:warn".
func (o *Options) UnmarshalText(text []byte) error {
	optionsMap := make(map[string]zapcore.Level)

	for _, entry := range strings.Split(string(text), ",") {
		key, valueStr, found := strings.Cut(entry, ":")
		if !found {
			return fmt.Errorf("entry %q cannot be unmarshalled as an Option entry", entry)
		}

		valueLvl, err := parseLevel(valueStr)
		if err != nil {
			return fmt.Errorf("entry %q cannot be unmarshalled as level, %w", entry, err)
		}

		optionsMap[key] = valueLvl
	}

	*o = optionsMap
	return nil
}

// UnmarshalYAML accepts a mapping of child logger names to levels as well as the env string form.
func (o *Options) UnmarshalYAML(unmarshal func(any) error) error {
	var levels map[string]any
	if err := unmarshal(&levels); err != nil {
		var text string
		if textErr := unmarshal(&text); textErr != nil {
			return err
		}

		return o.UnmarshalText([]byte(text))
	}

	optionsMap := make(map[string]zapcore.Level, len(levels))
	for key, value := range levels {
		lvl, err := parseLevel(fmt.Sprint(value))
		if err != nil {
			return fmt.Errorf("option %q cannot be unmarshalled as level, %w", key, err)
		}

		optionsMap[key] = lvl
	}

	*o = optionsMap
	return nil
}

// parseLevel parses a level name or its numeric value, e.g. "debug" or "-1".
func parseLevel(text string) (zapcore.Level, error) {
	lvl, err := zapcore.ParseLevel(text)
	if err == nil {
		return lvl, nil
	}

	n, numErr := strconv.ParseInt(text, 10, 8)
	if numErr != nil || n < int64(zapcore.DebugLevel) || n > int64(zapcore.FatalLevel) {
		return lvl, err
	}

	return zapcore.Level(n), nil
}

// Config defines Logger configuration.
type Config struct {
	// zapcore.Level at 0 is for info level.
	Level  zapcore.Level `yaml:"level" env:"LEVEL" default:"0"`
	Output string        `yaml:"output" env:"OUTPUT"`
	// File is the log file used with the FILE output.
	File string `yaml:"file" env:"FILE"`

	Options Options `yaml:"options" env:"OPTIONS"`
}

// Validate checks constraints in the configuration and returns an error if they are violated.
// An unset output becomes FILE if a log file is given, otherwise CONSOLE.
func (c *Config) Validate() error {
	if c.Output == "" {
		if c.File != "" {
			c.Output = FILE
		} else {
			c.Output = CONSOLE
		}
	}

	if err := AssertOutput(c.Output); err != nil {
		return err
	}

	if c.Output == FILE && c.File == "" {
		return errors.New("log output file requires a log file path")
	}

	return nil
}

// AssertOutput returns an error if output is not a valid logger output.
func AssertOutput(o string) error {
	switch o {
	case CONSOLE, FILE, JOURNAL:
		return nil
	default:
		return fmt.Errorf("%s is not a valid logger output. Must be one of %q, %q or %q", o, CONSOLE, FILE, JOURNAL)
	}
}
