package config

// Validator is implemented by configuration types that check their own constraints after loading.
type Validator interface {
	Validate() error
}

// Flags provides access to the command line flags that influence where configuration is loaded from.
type Flags interface {
	// GetConfigPath returns the path of the YAML configuration file.
	GetConfigPath() string

	// IsExplicitConfigPath reports whether the path was given on the command line
	// rather than being the built-in default.
	IsExplicitConfigPath() bool
}
