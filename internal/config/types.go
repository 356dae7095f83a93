// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

const (
	// ContainerEngineAuto prefers Docker and falls back to Podman.
	ContainerEngineAuto ContainerEngine = "auto"
	// ContainerEngineDocker uses Docker only.
	ContainerEngineDocker ContainerEngine = "docker"
	// ContainerEnginePodman uses Podman only.
	ContainerEnginePodman ContainerEngine = "podman"

	// DefaultSuricataImage is the Suricata image used when none is configured.
	DefaultSuricataImage = "docker.io/jasonish/suricata:latest"
	// DefaultEveBoxImage is the EveBox image used when none is configured.
	DefaultEveBoxImage = "docker.io/jasonish/evebox:master"
	// DefaultUpdateURL is the base URL self-update downloads from.
	DefaultUpdateURL = "https://evebox.org/files/simplensm"
)

var (
	// ErrInvalidContainerEngine is returned when a ContainerEngine value is not recognized.
	ErrInvalidContainerEngine = errors.New("invalid container engine")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError and schema failures.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrUnknownKey is returned by Set for keys that are not part of the configuration.
	ErrUnknownKey = errors.New("unknown config key")
	// ErrInvalidValue is returned by Set when a value cannot be converted to the key's type.
	ErrInvalidValue = errors.New("invalid config value")
)

type (
	// ContainerEngine specifies which container runtime to use.
	ContainerEngine string

	// InvalidContainerEngineError is returned when a ContainerEngine value is not recognized.
	// It wraps ErrInvalidContainerEngine for errors.Is() compatibility.
	InvalidContainerEngineError struct {
		Value ContainerEngine
	}

	// InvalidConfigError collects every field-level problem of a Config.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// UnknownKeyError is returned when a dotted key does not name a setting.
	UnknownKeyError struct {
		Key string
	}

	// Config is the root configuration structure.
	// The json tags drive schema validation, the toml tags the file format
	// and the mapstructure tags the viper decoding.
	Config struct {
		ContainerEngine ContainerEngine `json:"container_engine" toml:"container_engine" mapstructure:"container_engine" comment:"auto, docker or podman"`
		// DataDirectory, when set, holds the Suricata logs and EveBox data as
		// host directories instead of named volumes.
		DataDirectory string         `json:"data_directory" toml:"data_directory" mapstructure:"data_directory" comment:"host directory for logs and data; empty uses named volumes"`
		StartOnBoot   bool           `json:"start_on_boot" toml:"start_on_boot" mapstructure:"start_on_boot" comment:"restart containers on boot (Docker only)"`
		Suricata      SuricataConfig `json:"suricata" toml:"suricata" mapstructure:"suricata"`
		EveBox        EveBoxConfig   `json:"evebox" toml:"evebox" mapstructure:"evebox"`
		Update        UpdateConfig   `json:"update" toml:"update" mapstructure:"update"`
		UI            UIConfig       `json:"ui" toml:"ui" mapstructure:"ui"`
	}

	// SuricataConfig configures the packet inspection container.
	SuricataConfig struct {
		Interface string `json:"interface" toml:"interface" mapstructure:"interface" comment:"network interface to capture on"`
		// BPF is an optional capture filter appended to the Suricata command line.
		BPF   string `json:"bpf" toml:"bpf" mapstructure:"bpf"`
		Image string `json:"image" toml:"image" mapstructure:"image"`
	}

	// EveBoxConfig configures the event viewer container.
	EveBoxConfig struct {
		Enabled     bool   `json:"enabled" toml:"enabled" mapstructure:"enabled"`
		AllowRemote bool   `json:"allow_remote" toml:"allow_remote" mapstructure:"allow_remote" comment:"listen on all interfaces instead of localhost"`
		NoTLS       bool   `json:"no_tls" toml:"no_tls" mapstructure:"no_tls"`
		NoAuth      bool   `json:"no_auth" toml:"no_auth" mapstructure:"no_auth"`
		Image       string `json:"image" toml:"image" mapstructure:"image"`
	}

	// UpdateConfig configures self-update.
	UpdateConfig struct {
		URL string `json:"url" toml:"url" mapstructure:"url"`
	}

	// UIConfig contains UI-related settings.
	UIConfig struct {
		// Verbose enables debug logging.
		Verbose bool `json:"verbose" toml:"verbose" mapstructure:"verbose"`
	}
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		ContainerEngine: ContainerEngineAuto,
		StartOnBoot:     true,
		Suricata: SuricataConfig{
			Image: DefaultSuricataImage,
		},
		EveBox: EveBoxConfig{
			Enabled: true,
			Image:   DefaultEveBoxImage,
		},
		Update: UpdateConfig{
			URL: DefaultUpdateURL,
		},
	}
}

// String returns the string representation of the ContainerEngine.
func (ce ContainerEngine) String() string { return string(ce) }

// Validate returns an error if the ContainerEngine is not one of the defined engine types.
// The zero value is treated as auto.
func (ce ContainerEngine) Validate() error {
	switch ce {
	case ContainerEngineAuto, ContainerEngineDocker, ContainerEnginePodman, "":
		return nil
	default:
		return &InvalidContainerEngineError{Value: ce}
	}
}

// Error implements the error interface.
func (e *InvalidContainerEngineError) Error() string {
	return fmt.Sprintf("invalid container engine %q (valid: auto, docker, podman)", e.Value)
}

// Unwrap returns ErrInvalidContainerEngine so callers can use errors.Is for programmatic detection.
func (e *InvalidContainerEngineError) Unwrap() error {
	return ErrInvalidContainerEngine
}

// Validate checks the constraints that hold across the whole configuration,
// including values that came from the environment and never saw the schema.
func (c *Config) Validate() error {
	var errs []error
	if err := c.ContainerEngine.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.DataDirectory != "" && !strings.HasPrefix(c.DataDirectory, "/") {
		errs = append(errs, fmt.Errorf("data_directory %q must be an absolute path", c.DataDirectory))
	}
	if strings.TrimSpace(c.Suricata.Image) == "" {
		errs = append(errs, errors.New("suricata.image must not be empty"))
	}
	if strings.TrimSpace(c.EveBox.Image) == "" {
		errs = append(errs, errors.New("evebox.image must not be empty"))
	}
	if u, err := url.Parse(c.Update.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("update.url %q must be an http(s) URL", c.Update.URL))
	}
	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}

// Error implements the error interface.
func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid config: %v", errors.Join(e.FieldErrors...))
}

// Unwrap returns ErrInvalidConfig followed by the field errors.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}

// Error implements the error interface.
func (e *UnknownKeyError) Error() string {
	return fmt.Sprintf("unknown config key %q (valid: %s)", e.Key, strings.Join(KnownKeys(), ", "))
}

// Unwrap returns ErrUnknownKey for errors.Is() compatibility.
func (e *UnknownKeyError) Unwrap() error { return ErrUnknownKey }

// Engine returns the effective engine preference, mapping the zero value to auto.
func (c *Config) Engine() ContainerEngine {
	if c.ContainerEngine == "" {
		return ContainerEngineAuto
	}
	return c.ContainerEngine
}
