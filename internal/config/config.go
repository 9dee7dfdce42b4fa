// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"

	"github.com/dasien/ClaudeMultiAgentUI-sub000/internal/issue"
)

const (
	// AppName is the application name.
	AppName = "cmat"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// EnvPrefix prefixes environment overrides, e.g. CMAT_SOURCE_REF.
	EnvPrefix = "CMAT"
)

//go:embed config_schema.cue
var configSchema string

// ConfigDir returns the cmat configuration directory using platform-specific
// conventions: Windows uses %APPDATA%, macOS uses ~/Library/Application Support,
// and Linux/others use $XDG_CONFIG_HOME (defaulting to ~/.config).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}

	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default:
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// FilePath returns the config file that Load would read for opts, whether or
// not it exists.
func FilePath(opts LoadOptions) (string, error) {
	if opts.ConfigFilePath != "" {
		return opts.ConfigFilePath, nil
	}
	cfgDir, err := configDirWithOverride(opts.ConfigDirPath)
	if err != nil {
		return "", err
	}
	return filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt), nil
}

// loadWithOptions layers defaults, the CUE file and CMAT_* environment
// variables, in increasing precedence, and validates the result. It returns
// the config file path that was read, or "" when defaults were used.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cuePath, err := FilePath(opts)
	if err != nil {
		return nil, "", err
	}

	resolvedPath := ""
	switch {
	case fileExists(cuePath):
		if err := loadCUEIntoViper(v, cuePath); err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(cuePath).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the configuration values match the expected schema").
				WithSuggestion("Run 'cmat config init' in an empty config directory to see the defaults").
				WithIssue(issue.ConfigLoadFailedID).
				Wrap(err).
				BuildError()
		}
		resolvedPath = cuePath
	case opts.ConfigFilePath != "":
		// An explicit --config must exist; the default location is optional.
		return nil, "", issue.NewErrorContext().
			WithOperation("load configuration").
			WithResource(opts.ConfigFilePath).
			WithSuggestion("Verify the file path is correct").
			WithSuggestion("Use 'cmat config show' to see the default configuration").
			WithIssue(issue.ConfigLoadFailedID).
			Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
			BuildError()
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(resolvedPath).
			WithSuggestion("Check CMAT_* environment variables as well as the config file").
			WithIssue(issue.ConfigLoadFailedID).
			Wrap(err).
			BuildError()
	}

	return &cfg, resolvedPath, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("source.base_url", d.Source.BaseURL)
	v.SetDefault("source.owner", d.Source.Owner)
	v.SetDefault("source.repo", d.Source.Repo)
	v.SetDefault("source.ref", d.Source.Ref)
	v.SetDefault("download.timeout", d.Download.Timeout.String())
	v.SetDefault("download.max_bytes", d.Download.MaxBytes)
	v.SetDefault("download.sha256", d.Download.SHA256)
	v.SetDefault("download.user_agent", d.Download.UserAgent)
	v.SetDefault("extract.max_file_bytes", d.Extract.MaxFileBytes)
	v.SetDefault("extract.max_total_bytes", d.Extract.MaxTotalBytes)
	v.SetDefault("extract.max_entries", d.Extract.MaxEntries)
	v.SetDefault("extract.strict_names", d.Extract.StrictNames)
	v.SetDefault("install.extra_required_files", d.Install.ExtraRequiredFiles)
	v.SetDefault("ui.color_scheme", string(d.UI.ColorScheme))
	v.SetDefault("ui.verbose", d.UI.Verbose)
	v.SetDefault("ui.accessible", d.UI.Accessible)
}

// configDirWithOverride resolves the configuration directory, honoring
// explicit provider options before platform defaults.
func configDirWithOverride(configDirPath string) (string, error) {
	if configDirPath != "" {
		return configDirPath, nil
	}

	return ConfigDir()
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// CreateDefaultConfig writes the default config file for opts unless one
// already exists. It returns the file path and whether it was created.
func CreateDefaultConfig(opts LoadOptions) (string, bool, error) {
	cfgPath, err := FilePath(opts)
	if err != nil {
		return "", false, err
	}

	if _, err := os.Stat(cfgPath); err == nil {
		return cfgPath, false, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o755); err != nil {
		return "", false, fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(cfgPath, []byte(GenerateCUE(DefaultConfig())), 0o644); err != nil {
		return "", false, fmt.Errorf("failed to write config file: %w", err)
	}

	return cfgPath, true, nil
}

// GenerateCUE generates a CUE representation of the configuration that
// validates against the #Config schema.
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// cmat configuration file\n")
	sb.WriteString("// Environment variables such as CMAT_SOURCE_REF override these values.\n\n")

	sb.WriteString("source: {\n")
	fmt.Fprintf(&sb, "\tbase_url: %q\n", cfg.Source.BaseURL)
	fmt.Fprintf(&sb, "\towner:    %q\n", cfg.Source.Owner)
	fmt.Fprintf(&sb, "\trepo:     %q\n", cfg.Source.Repo)
	fmt.Fprintf(&sb, "\tref:      %q\n", cfg.Source.Ref)
	sb.WriteString("}\n")

	sb.WriteString("\ndownload: {\n")
	fmt.Fprintf(&sb, "\ttimeout:    %q\n", cfg.Download.Timeout.String())
	fmt.Fprintf(&sb, "\tmax_bytes:  %d\n", cfg.Download.MaxBytes)
	if cfg.Download.SHA256 != "" {
		fmt.Fprintf(&sb, "\tsha256:     %q\n", cfg.Download.SHA256)
	}
	fmt.Fprintf(&sb, "\tuser_agent: %q\n", cfg.Download.UserAgent)
	sb.WriteString("}\n")

	sb.WriteString("\nextract: {\n")
	fmt.Fprintf(&sb, "\tmax_file_bytes:  %d\n", cfg.Extract.MaxFileBytes)
	fmt.Fprintf(&sb, "\tmax_total_bytes: %d\n", cfg.Extract.MaxTotalBytes)
	fmt.Fprintf(&sb, "\tmax_entries:     %d\n", cfg.Extract.MaxEntries)
	fmt.Fprintf(&sb, "\tstrict_names:    %v\n", cfg.Extract.StrictNames)
	sb.WriteString("}\n")

	sb.WriteString("\ninstall: {\n")
	if len(cfg.Install.ExtraRequiredFiles) == 0 {
		sb.WriteString("\textra_required_files: []\n")
	} else {
		sb.WriteString("\textra_required_files: [\n")
		for _, f := range cfg.Install.ExtraRequiredFiles {
			fmt.Fprintf(&sb, "\t\t%q,\n", f)
		}
		sb.WriteString("\t]\n")
	}
	sb.WriteString("}\n")

	sb.WriteString("\nui: {\n")
	fmt.Fprintf(&sb, "\tcolor_scheme: %q\n", cfg.UI.ColorScheme)
	fmt.Fprintf(&sb, "\tverbose:      %v\n", cfg.UI.Verbose)
	fmt.Fprintf(&sb, "\taccessible:   %v\n", cfg.UI.Accessible)
	sb.WriteString("}\n")

	return sb.String()
}
