// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/simplensm/simplensm/internal/issue"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "simplensm"
	// ConfigFileName is the config file looked up in the working directory.
	ConfigFileName = "simplensm.toml"
	// EnvPrefix prefixes environment overrides (SIMPLENSM_SURICATA_INTERFACE=eth0).
	EnvPrefix = "SIMPLENSM"
	// ConfigPathEnv names the environment variable that overrides the config file path.
	ConfigPathEnv = "SIMPLENSM_CONFIG"

	// maxConfigFileSize bounds how much of a config file is read.
	maxConfigFileSize = 1 << 20

	fileHeader = "# SimpleNSM configuration. Edit with 'simplensm config set KEY VALUE'.\n\n"
)

type keyKind int

const (
	kindString keyKind = iota
	kindBool
)

//go:embed config_schema.cue
var configSchema string

// knownKeys maps each dotted configuration key to its value type.
//
//nolint:gochecknoglobals // Static key table shared by defaults and Set.
var knownKeys = map[string]keyKind{
	"container_engine":    kindString,
	"data_directory":      kindString,
	"start_on_boot":       kindBool,
	"suricata.interface":  kindString,
	"suricata.bpf":        kindString,
	"suricata.image":      kindString,
	"evebox.enabled":      kindBool,
	"evebox.allow_remote": kindBool,
	"evebox.no_tls":       kindBool,
	"evebox.no_auth":      kindBool,
	"evebox.image":        kindString,
	"update.url":          kindString,
	"ui.verbose":          kindBool,
}

// KnownKeys returns every settable key in sorted order.
func KnownKeys() []string {
	return slices.Sorted(maps.Keys(knownKeys))
}

// DefaultPath returns the config file path: $SIMPLENSM_CONFIG when set,
// otherwise simplensm.toml in the working directory.
func DefaultPath() string {
	if p := os.Getenv(ConfigPathEnv); p != "" {
		return p
	}
	return ConfigFileName
}

// newViper returns a viper instance seeded with the defaults.
func newViper() *viper.Viper {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("container_engine", defaults.ContainerEngine)
	v.SetDefault("data_directory", defaults.DataDirectory)
	v.SetDefault("start_on_boot", defaults.StartOnBoot)
	v.SetDefault("suricata.interface", defaults.Suricata.Interface)
	v.SetDefault("suricata.bpf", defaults.Suricata.BPF)
	v.SetDefault("suricata.image", defaults.Suricata.Image)
	v.SetDefault("evebox.enabled", defaults.EveBox.Enabled)
	v.SetDefault("evebox.allow_remote", defaults.EveBox.AllowRemote)
	v.SetDefault("evebox.no_tls", defaults.EveBox.NoTLS)
	v.SetDefault("evebox.no_auth", defaults.EveBox.NoAuth)
	v.SetDefault("evebox.image", defaults.EveBox.Image)
	v.SetDefault("update.url", defaults.Update.URL)
	v.SetDefault("ui.verbose", defaults.UI.Verbose)

	return v
}

// loadWithOptions performs option-driven config loading without mutating
// package-level state.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := newViper()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := opts.ConfigFilePath != "" || os.Getenv(ConfigPathEnv) != ""
	path := ResolvePath(opts)
	resolvedPath := ""

	switch {
	case fileExists(path):
		if err := loadTOMLIntoViper(v, path); err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(path).
				WithSuggestion("Check that the file contains valid TOML").
				WithSuggestion("Verify the keys and values match 'simplensm config show'").
				Wrap(err).
				BuildError()
		}
		resolvedPath = path
	case explicit:
		return nil, "", issue.NewErrorContext().
			WithOperation("load configuration").
			WithResource(path).
			WithSuggestion("Verify the file path is correct").
			WithSuggestion("Run 'simplensm config init' to create it").
			Wrap(fmt.Errorf("config file not found: %s", path)).
			BuildError()
	}
	// No config file and none requested: defaults plus environment.

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(path).
			WithSuggestion("Check SIMPLENSM_* environment variables as well as the file").
			Wrap(err).
			BuildError()
	}

	return &cfg, resolvedPath, nil
}

// loadTOMLIntoViper parses a TOML file, validates it against the #Config
// schema and merges it into viper. Defaults stay in place for unset keys.
func loadTOMLIntoViper(v *viper.Viper, path string) error {
	raw, err := readTOML(path)
	if err != nil {
		return err
	}

	if err := validateAgainstSchema(raw, path); err != nil {
		return err
	}

	if err := v.MergeConfigMap(raw); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}

	return nil
}

func readTOML(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if len(data) > maxConfigFileSize {
		return nil, fmt.Errorf("%s: config file is larger than %d bytes", path, maxConfigFileSize)
	}

	raw := make(map[string]any)
	if err := toml.Unmarshal(data, &raw); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return nil, fmt.Errorf("%s:%d:%d: %w", path, row, col, err)
		}
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return raw, nil
}

// validateAgainstSchema unifies value (a decoded map or a *Config) with the
// embedded #Config definition.
func validateAgainstSchema(value any, name string) error {
	ctx := cuecontext.New()

	schemaValue := ctx.CompileString(configSchema, cue.Filename("config_schema.cue"))
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	userValue := ctx.Encode(value)
	if userValue.Err() != nil {
		return formatSchemaError(userValue.Err(), name)
	}

	schema := schemaValue.LookupPath(cue.ParsePath("#Config"))
	unified := schema.Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return formatSchemaError(err, name)
	}

	return nil
}

func formatSchemaError(err error, name string) error {
	details := strings.TrimSpace(cueerrors.Details(err, nil))
	return fmt.Errorf("%w in %s:\n%s", ErrInvalidConfig, name, details)
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// CreateDefaultConfig writes the default configuration to path unless a file
// already exists there. It reports whether a file was written.
func CreateDefaultConfig(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}
	if err := Save(DefaultConfig(), path); err != nil {
		return false, err
	}
	return true, nil
}

// Save validates cfg and writes it to path as TOML.
func Save(cfg *Config, path string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := validateAgainstSchema(cfg, path); err != nil {
		return err
	}

	content, err := GenerateTOML(cfg)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GenerateTOML renders cfg in the config file format.
func GenerateTOML(cfg *Config) (string, error) {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("failed to encode config: %w", err)
	}
	return fileHeader + string(data), nil
}

// Set changes one key in the config file at path, creating the file from
// defaults when missing, and returns the resulting configuration. Environment
// overrides are not applied so they never end up in the file.
func Set(path, key, value string) (*Config, error) {
	kind, ok := knownKeys[key]
	if !ok {
		return nil, &UnknownKeyError{Key: key}
	}

	var typed any = value
	if kind == kindBool {
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("%w: %s expects true or false, got %q", ErrInvalidValue, key, value)
		}
		typed = b
	}

	v := newViper()
	if fileExists(path) {
		if err := loadTOMLIntoViper(v, path); err != nil {
			return nil, err
		}
	}
	v.Set(key, typed)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := Save(&cfg, path); err != nil {
		return nil, err
	}
	return &cfg, nil
}
