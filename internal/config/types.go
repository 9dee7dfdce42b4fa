// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"
)

const (
	// ColorSchemeAuto detects the terminal color scheme automatically.
	ColorSchemeAuto ColorScheme = "auto"
	// ColorSchemeDark forces dark color scheme.
	ColorSchemeDark ColorScheme = "dark"
	// ColorSchemeLight forces light color scheme.
	ColorSchemeLight ColorScheme = "light"
)

var (
	// ErrInvalidColorScheme is returned when a ColorScheme value is not recognized.
	ErrInvalidColorScheme = errors.New("invalid color scheme")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// ColorScheme specifies the terminal color scheme preference.
	ColorScheme string

	// InvalidColorSchemeError is returned when a ColorScheme value is not recognized.
	// It wraps ErrInvalidColorScheme for errors.Is() compatibility.
	InvalidColorSchemeError struct {
		Value ColorScheme
	}

	// InvalidConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidConfig and collects every field-level error.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the application configuration.
	Config struct {
		// Source selects the template repository and ref.
		Source SourceConfig `json:"source" mapstructure:"source"`
		// Download configures the archive request.
		Download DownloadConfig `json:"download" mapstructure:"download"`
		// Extract configures archive extraction limits.
		Extract ExtractConfig `json:"extract" mapstructure:"extract"`
		// Install configures template validation.
		Install InstallConfig `json:"install" mapstructure:"install"`
		// UI configures the user interface
		UI UIConfig `json:"ui" mapstructure:"ui"`
	}

	// SourceConfig identifies where the template archive comes from.
	SourceConfig struct {
		// BaseURL is the archive host, https only.
		BaseURL string `json:"base_url" mapstructure:"base_url"`
		Owner   string `json:"owner" mapstructure:"owner"`
		Repo    string `json:"repo" mapstructure:"repo"`
		// Ref is a branch name or a semver tag such as "v3.0.0".
		Ref string `json:"ref" mapstructure:"ref"`
	}

	// DownloadConfig configures the single archive request.
	DownloadConfig struct {
		Timeout  time.Duration `json:"timeout" mapstructure:"timeout"`
		MaxBytes int64         `json:"max_bytes" mapstructure:"max_bytes"`
		// SHA256 optionally pins the archive digest (hex). Empty disables the check.
		SHA256    string `json:"sha256" mapstructure:"sha256"`
		UserAgent string `json:"user_agent" mapstructure:"user_agent"`
	}

	// ExtractConfig bounds what an archive may expand to.
	ExtractConfig struct {
		MaxFileBytes  int64 `json:"max_file_bytes" mapstructure:"max_file_bytes"`
		MaxTotalBytes int64 `json:"max_total_bytes" mapstructure:"max_total_bytes"`
		MaxEntries    int   `json:"max_entries" mapstructure:"max_entries"`
		// StrictNames rejects entries with characters that are illegal on
		// Windows instead of logging a warning.
		StrictNames bool `json:"strict_names" mapstructure:"strict_names"`
	}

	// InstallConfig configures structure validation.
	InstallConfig struct {
		// ExtraRequiredFiles are added to the built-in manifest, relative to .claude.
		ExtraRequiredFiles []string `json:"extra_required_files" mapstructure:"extra_required_files"`
	}

	// UIConfig configures the user interface.
	UIConfig struct {
		// ColorScheme sets the color scheme ("auto", "dark", "light")
		ColorScheme ColorScheme `json:"color_scheme" mapstructure:"color_scheme"`
		// Verbose enables debug logging and full error chains
		Verbose bool `json:"verbose" mapstructure:"verbose"`
		// Accessible switches prompts to screen-reader friendly mode
		Accessible bool `json:"accessible" mapstructure:"accessible"`
	}
)

// Error implements the error interface.
func (e *InvalidColorSchemeError) Error() string {
	return fmt.Sprintf("invalid color scheme %q (valid: auto, dark, light)", e.Value)
}

// Unwrap returns ErrInvalidColorScheme so callers can use errors.Is for programmatic detection.
func (e *InvalidColorSchemeError) Unwrap() error { return ErrInvalidColorScheme }

// IsValid returns whether the ColorScheme is one of the defined color schemes.
func (c ColorScheme) IsValid() (bool, []error) {
	switch c {
	case ColorSchemeAuto, ColorSchemeDark, ColorSchemeLight:
		return true, nil
	default:
		return false, []error{&InvalidColorSchemeError{Value: c}}
	}
}

// String returns the string representation of the ColorScheme.
func (c ColorScheme) String() string { return string(c) }

// Error implements the error interface.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return "invalid config: " + strings.Join(msgs, "; ")
}

// Unwrap returns ErrInvalidConfig so callers can use errors.Is for programmatic detection.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Source: SourceConfig{
			BaseURL: "https://github.com",
			Owner:   "dasien",
			Repo:    "ClaudeMultiAgentTemplate",
			Ref:     "main",
		},
		Download: DownloadConfig{
			Timeout:   60 * time.Second,
			MaxBytes:  200 << 20,
			UserAgent: "cmat-installer",
		},
		Extract: ExtractConfig{
			MaxFileBytes:  50 << 20,
			MaxTotalBytes: 500 << 20,
			MaxEntries:    20000,
		},
		Install: InstallConfig{
			ExtraRequiredFiles: []string{},
		},
		UI: UIConfig{
			ColorScheme: ColorSchemeAuto,
		},
	}
}

// Validate checks constraints the CUE schema cannot express and returns an
// *InvalidConfigError listing every violation.
func (c *Config) Validate() error {
	var errs []error

	if u, err := url.Parse(c.Source.BaseURL); err != nil || u.Scheme != "https" || u.Host == "" {
		errs = append(errs, fmt.Errorf("source.base_url %q must be an https URL", c.Source.BaseURL))
	}
	if strings.TrimSpace(c.Source.Owner) == "" || strings.TrimSpace(c.Source.Repo) == "" {
		errs = append(errs, errors.New("source.owner and source.repo must not be empty"))
	}
	if strings.TrimSpace(c.Source.Ref) == "" {
		errs = append(errs, errors.New("source.ref must not be empty"))
	}
	if c.Download.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("download.timeout %s must be positive", c.Download.Timeout))
	}
	if c.Download.MaxBytes <= 0 {
		errs = append(errs, errors.New("download.max_bytes must be positive"))
	}
	if c.Download.SHA256 != "" && !isHexDigest(c.Download.SHA256) {
		errs = append(errs, fmt.Errorf("download.sha256 %q is not a 64 character hex digest", c.Download.SHA256))
	}
	if c.Extract.MaxFileBytes <= 0 || c.Extract.MaxTotalBytes <= 0 || c.Extract.MaxEntries <= 0 {
		errs = append(errs, errors.New("extract limits must be positive"))
	}
	for i, f := range c.Install.ExtraRequiredFiles {
		if err := validateRelativeFile(f); err != nil {
			errs = append(errs, fmt.Errorf("install.extra_required_files[%d]: %w", i, err))
		}
	}
	if ok, fieldErrs := c.UI.ColorScheme.IsValid(); !ok {
		errs = append(errs, fieldErrs...)
	}

	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}

func validateRelativeFile(f string) error {
	slashed := strings.ReplaceAll(f, `\`, "/")
	switch {
	case strings.TrimSpace(f) == "":
		return errors.New("path must not be empty")
	case strings.HasPrefix(slashed, "/") || (len(slashed) > 1 && slashed[1] == ':'):
		return fmt.Errorf("path %q must be relative to .claude", f)
	case path.Clean(slashed) == ".." || strings.HasPrefix(path.Clean(slashed), "../"):
		return fmt.Errorf("path %q must stay inside .claude", f)
	}
	return nil
}

func isHexDigest(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}
