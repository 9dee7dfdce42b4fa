// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"

	"github.com/dasien/ClaudeMultiAgentUI-sub000/internal/config"
	"github.com/dasien/ClaudeMultiAgentUI-sub000/internal/installer"
	"github.com/dasien/ClaudeMultiAgentUI-sub000/internal/tui"
)

type (
	// App wires CLI services and shared dependencies. All Cobra command
	// handlers receive an App reference.
	App struct {
		Config     ConfigProvider
		stdout     io.Writer
		stderr     io.Writer
		configDir  string
		getenv     func(string) string
		httpClient *http.Client
		confirm    func(tui.ConfirmOptions) (bool, error)
		flags      rootFlags
	}

	// Dependencies defines the injection points for building an App. Nil fields
	// are replaced with production defaults by NewApp.
	Dependencies struct {
		Config ConfigProvider
		Stdout io.Writer
		Stderr io.Writer
		// ConfigDir replaces the platform config directory when set.
		ConfigDir string
		// Getenv looks up environment variables such as GITHUB_TOKEN.
		Getenv func(string) string
		// HTTPClient replaces the TLS client built from download.timeout.
		HTTPClient *http.Client
		// Confirm replaces the interactive huh prompt.
		Confirm func(tui.ConfirmOptions) (bool, error)
	}

	// ConfigProvider loads configuration using explicit options.
	ConfigProvider interface {
		Load(ctx context.Context, opts config.LoadOptions) (*config.Config, error)
	}

	rootFlags struct {
		configPath string
		verbose    bool
	}
)

// NewApp creates an App from deps, filling in production defaults.
func NewApp(deps Dependencies) *App {
	app := &App{
		Config:     deps.Config,
		stdout:     deps.Stdout,
		stderr:     deps.Stderr,
		configDir:  deps.ConfigDir,
		getenv:     deps.Getenv,
		httpClient: deps.HTTPClient,
		confirm:    deps.Confirm,
	}
	if app.Config == nil {
		app.Config = config.NewProvider()
	}
	if app.stdout == nil {
		app.stdout = os.Stdout
	}
	if app.stderr == nil {
		app.stderr = os.Stderr
	}
	if app.getenv == nil {
		app.getenv = os.Getenv
	}
	if app.confirm == nil {
		app.confirm = tui.Confirm
	}
	return app
}

func (a *App) loadOptions() config.LoadOptions {
	return config.LoadOptions{
		ConfigFilePath: a.flags.configPath,
		ConfigDirPath:  a.configDir,
	}
}

// loadConfig loads the effective configuration and lets --verbose win over
// ui.verbose.
func (a *App) loadConfig(ctx context.Context) (*config.Config, error) {
	cfg, err := a.Config.Load(ctx, a.loadOptions())
	if err != nil {
		return nil, err
	}
	if a.flags.verbose {
		cfg.UI.Verbose = true
	}
	return cfg, nil
}

// newLogger builds the CLI logger. Verbose mode logs every installer step.
func (a *App) newLogger(verbose bool) *log.Logger {
	level := log.WarnLevel
	if verbose {
		level = log.DebugLevel
	}
	return log.NewWithOptions(a.stderr, log.Options{
		Prefix: config.AppName,
		Level:  level,
	})
}

// uiConfig derives prompt settings from cfg.
func (a *App) uiConfig(cfg *config.Config) tui.Config {
	ui := tui.DefaultConfig()
	ui.Theme = tui.ThemeFor(cfg.UI.ColorScheme.String())
	ui.Accessible = ui.Accessible || cfg.UI.Accessible
	if ui.Accessible {
		ui.Output = a.stderr
	} else {
		ui.Output = a.stdout
	}
	return ui
}

// glamourStyle picks the Markdown style for issue rendering.
func (a *App) glamourStyle(cfg *config.Config) string {
	if !tui.IsTerminal(a.stderr) {
		return "notty"
	}
	if cfg == nil {
		return "auto"
	}
	switch cfg.UI.ColorScheme {
	case config.ColorSchemeDark, config.ColorSchemeLight:
		return cfg.UI.ColorScheme.String()
	default:
		return "auto"
	}
}

// buildInstaller assembles an Installer from cfg.
func (a *App) buildInstaller(cfg *config.Config, logger *log.Logger) (*installer.Installer, *installer.DirectoryValidator) {
	client := a.httpClient
	if client == nil {
		client = installer.NewHTTPClient(cfg.Download.Timeout)
	}

	fetchOpts := []installer.FetcherOption{
		installer.WithHTTPClient(client),
		installer.WithBaseURL(cfg.Source.BaseURL),
		installer.WithRepo(cfg.Source.Owner, cfg.Source.Repo),
		installer.WithRef(cfg.Source.Ref),
		installer.WithUserAgent(cfg.Download.UserAgent + "/" + Version),
		installer.WithMaxArchiveBytes(cfg.Download.MaxBytes),
	}
	if token := a.getenv("GITHUB_TOKEN"); token != "" {
		fetchOpts = append(fetchOpts, installer.WithToken(token))
	}

	validator := installer.NewDirectoryValidator()
	in := installer.New(
		installer.WithLogger(logger.WithPrefix("installer")),
		installer.WithDirectoryValidator(validator),
		installer.WithFetcher(installer.NewArchiveFetcher(fetchOpts...)),
		installer.WithExtractor(installer.NewSecureExtractor(
			installer.WithStrictNames(cfg.Extract.StrictNames),
			installer.WithMaxFileBytes(cfg.Extract.MaxFileBytes),
			installer.WithMaxTotalBytes(cfg.Extract.MaxTotalBytes),
			installer.WithMaxEntries(cfg.Extract.MaxEntries),
			installer.WithExtractLogger(logger.WithPrefix("extract")),
		)),
		installer.WithStructureValidator(installer.NewStructureValidator(
			installer.WithExtraRequiredFiles(cfg.Install.ExtraRequiredFiles...),
		)),
		installer.WithBackupManager(installer.NewBackupManager()),
		installer.WithExpectedSHA256(cfg.Download.SHA256),
	)
	return in, validator
}
