// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"strings"
	"testing"
)

func TestContainerEngine_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value   ContainerEngine
		wantErr bool
	}{
		{ContainerEngineAuto, false},
		{ContainerEngineDocker, false},
		{ContainerEnginePodman, false},
		{"", false},
		{"Docker", true},
		{"lxc", true},
	}

	for _, tt := range tests {
		t.Run(string(tt.value), func(t *testing.T) {
			t.Parallel()

			err := tt.value.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("ContainerEngine(%q).Validate() error = %v, wantErr %v", tt.value, err, tt.wantErr)
			}
			if err == nil {
				return
			}
			if !errors.Is(err, ErrInvalidContainerEngine) {
				t.Errorf("error should wrap ErrInvalidContainerEngine, got: %v", err)
			}
			var ceErr *InvalidContainerEngineError
			if !errors.As(err, &ceErr) || ceErr.Value != tt.value {
				t.Errorf("error should be *InvalidContainerEngineError for %q, got: %v", tt.value, err)
			}
		})
	}
}

func TestConfig_Engine(t *testing.T) {
	t.Parallel()

	if got := (&Config{}).Engine(); got != ContainerEngineAuto {
		t.Errorf("Engine() for zero value = %q, want auto", got)
	}
	if got := (&Config{ContainerEngine: ContainerEnginePodman}).Engine(); got != ContainerEnginePodman {
		t.Errorf("Engine() = %q, want podman", got)
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		mutate    func(*Config)
		wantCount int
	}{
		{"defaults", func(*Config) {}, 0},
		{"absolute data directory", func(c *Config) { c.DataDirectory = "/srv/nsm" }, 0},
		{"relative data directory", func(c *Config) { c.DataDirectory = "nsm" }, 1},
		{"blank images", func(c *Config) { c.Suricata.Image = " "; c.EveBox.Image = "" }, 2},
		{"bad update url", func(c *Config) { c.Update.URL = "evebox.org/files" }, 1},
		{"everything", func(c *Config) {
			c.ContainerEngine = "lxc"
			c.DataDirectory = "x"
			c.Suricata.Image = ""
			c.EveBox.Image = ""
			c.Update.URL = ""
		}, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()

			if tt.wantCount == 0 {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			var cfgErr *InvalidConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("Validate() error = %T, want *InvalidConfigError", err)
			}
			if len(cfgErr.FieldErrors) != tt.wantCount {
				t.Errorf("got %d field errors, want %d: %v", len(cfgErr.FieldErrors), tt.wantCount, cfgErr.FieldErrors)
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Error("InvalidConfigError should wrap ErrInvalidConfig")
			}
		})
	}
}

func TestUnknownKeyError(t *testing.T) {
	t.Parallel()

	err := &UnknownKeyError{Key: "colour"}
	if !errors.Is(err, ErrUnknownKey) {
		t.Error("UnknownKeyError should wrap ErrUnknownKey")
	}
	if !strings.Contains(err.Error(), "suricata.interface") {
		t.Errorf("error should list valid keys, got: %s", err.Error())
	}
}
