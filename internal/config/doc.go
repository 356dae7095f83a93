// SPDX-License-Identifier: MPL-2.0

// Package config handles application configuration using Viper with TOML as the file format.
//
// Configuration is loaded from simplensm.toml in the working directory, or the
// path given by --config or $SIMPLENSM_CONFIG. Every key can be overridden from
// the environment: suricata.interface becomes SIMPLENSM_SURICATA_INTERFACE.
//
// Files are validated against an embedded CUE schema (config_schema.cue)
// before they are merged, so unknown keys and bad values are reported with
// their location instead of being silently ignored.
package config
