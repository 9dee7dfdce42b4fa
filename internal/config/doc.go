// SPDX-License-Identifier: MPL-2.0

// Package config handles application configuration using Viper with CUE as the file format.
//
// Configuration is loaded from ~/.config/cmat/config.cue (XDG_CONFIG_HOME on Linux,
// ~/Library/Application Support/cmat/config.cue on macOS, %APPDATA%\cmat\config.cue
// on Windows) and may be overridden with CMAT_* environment variables. It selects
// the template source, download and extraction limits, extra required files and
// UI preferences.
//
// The file is validated against an embedded CUE schema (config_schema.cue) so
// that typos and out-of-range values are reported with their field path.
package config
