// Package config loads daemon configuration from a YAML file, environment variables and an optional
// dotenv file, applies `default` struct tag values and validates the result.
// It also provides the TLS client settings used for outbound HTTPS.
package config

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/creasty/defaults"
	"github.com/goccy/go-yaml"
	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// ErrInvalidArgument is returned if the value to load configuration into is not a non-nil struct pointer.
var ErrInvalidArgument = stderrors.New("invalid argument")

// ErrInvalidConfiguration is attached to errors returned by Validate.
// errors.Is() recognizes both ErrInvalidConfiguration and the original error.
var ErrInvalidConfiguration = stderrors.New("invalid configuration")

// EnvOptions is a type alias for [env.Options], so that only this package needs to import [env].
type EnvOptions = env.Options

// FromYAMLFile sets defaults on v, decodes the YAML file name into it and validates the result.
// Unknown keys are rejected.
func FromYAMLFile(name string, v Validator) error {
	if err := validateNonNilStructPointer(v); err != nil {
		return errors.WithStack(err)
	}

	// #nosec G304 -- config file path is user input by design.
	f, err := os.Open(name)
	if err != nil {
		return errors.Wrap(err, "can't open YAML file "+name)
	}
	defer func() { _ = f.Close() }()

	if err := defaults.Set(v); err != nil {
		return errors.Wrap(err, "can't set config defaults")
	}

	if err := yaml.NewDecoder(f, yaml.DisallowUnknownField()).Decode(v); err != nil {
		// FormatError renders the source position, which the plain error string omits.
		return errors.Wrap(errors.New(yaml.FormatError(err, false, true)), "can't parse YAML file "+name)
	}

	return validate(v)
}

// FromEnv sets defaults on v, overrides them from environment variables and validates the result.
func FromEnv(v Validator, options EnvOptions) error {
	if err := validateNonNilStructPointer(v); err != nil {
		return errors.WithStack(err)
	}

	if err := defaults.Set(v); err != nil {
		return errors.Wrap(err, "can't set config defaults")
	}

	if err := env.ParseWithOptions(v, options); err != nil {
		return errors.Wrap(err, "can't parse environment variables")
	}

	return validate(v)
}

// LoadOptions contains options for loading configuration from both files and environment variables.
type LoadOptions struct {
	// Flags locates the YAML file.
	Flags Flags

	// EnvOptions contains options for loading configuration from environment variables.
	EnvOptions EnvOptions
}

// Load reads the YAML file named by the flags and then applies environment variables on top.
//
// A missing file is tolerated if its path is the default one, in which case the configuration
// is expected to come from the environment entirely. An invalid YAML configuration is tolerated
// as well since the environment may complete it. The final result is validated once more.
func Load(v Validator, options LoadOptions) error {
	if err := validateNonNilStructPointer(v); err != nil {
		return errors.WithStack(err)
	}

	path := options.Flags.GetConfigPath()
	var missingDefault bool

	if err := FromYAMLFile(path, v); err != nil {
		missingDefault = errors.Is(err, fs.ErrNotExist) && !options.Flags.IsExplicitConfigPath()
		if !missingDefault && !errors.Is(err, ErrInvalidConfiguration) {
			return errors.WithStack(err)
		}
	}

	if err := FromEnv(v, options.EnvOptions); err != nil {
		if missingDefault {
			return stderrors.Join(errors.WithStack(err), fmt.Errorf(
				"default config file %s does not exist, configuration must be provided via environment", path))
		}

		return errors.WithStack(err)
	}

	return nil
}

// ParseFlags parses os.Args into v, which must be a go-flags annotated struct pointer.
// If -h or --help is given, the help message is printed to [os.Stdout] and the process exits.
// Errors are returned, not printed.
func ParseFlags(v any) error {
	if err := validateNonNilStructPointer(v); err != nil {
		return errors.WithStack(err)
	}

	parser := flags.NewParser(v, flags.Default^flags.PrintErrors)

	if _, err := parser.Parse(); err != nil {
		var flagErr *flags.Error
		if errors.As(err, &flagErr) && errors.Is(flagErr.Type, flags.ErrHelp) {
			_, _ = fmt.Fprintln(os.Stdout, flagErr)
			os.Exit(0)
		}

		return errors.Wrap(err, "can't parse CLI flags")
	}

	return nil
}

// LoadEnvFile reads KEY=VALUE pairs from a dotenv file into a map suitable for EnvOptions.Environment.
// Variables already present in the process environment take precedence over the file.
func LoadEnvFile(name string) (map[string]string, error) {
	fileEnv, err := godotenv.Read(name)
	if err != nil {
		return nil, errors.Wrapf(err, "can't read env file %q", name)
	}

	merged := make(map[string]string, len(fileEnv))
	for k, v := range fileEnv {
		merged[k] = v
	}

	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			merged[k] = v
		}
	}

	return merged, nil
}

// LoadSecretFile populates secret from the content of secretFile, with surrounding whitespace trimmed.
// It is meant to be called from Validate implementations, which may run more than once per load,
// so a secret that already holds the file content is accepted. Any other combination of both is an error.
func LoadSecretFile(secret *string, secretFile string) error {
	if secretFile == "" {
		return nil
	}

	content, err := os.ReadFile(secretFile) // #nosec G304 -- secret file path is trusted configuration
	if err != nil {
		return errors.Wrapf(err, "can't read secret file %q", secretFile)
	}

	fileSecret := strings.TrimSpace(string(content))
	if *secret != "" && *secret != fileSecret {
		return errors.New("both secret and secret file are set")
	}

	*secret = fileSecret

	return nil
}

func validate(v Validator) error {
	if err := v.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfiguration, errors.WithStack(err))
	}

	return nil
}

// validateNonNilStructPointer checks if the provided value is a non-nil pointer to a struct.
func validateNonNilStructPointer(v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return errors.Wrapf(ErrInvalidArgument, "non-nil struct pointer expected, got %T", v)
	}

	return nil
}
