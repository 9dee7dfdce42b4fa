// SPDX-License-Identifier: MPL-2.0

package tui

import (
	"errors"
	"io"
	"os"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"
)

const (
	// ThemeDefault uses the default huh theme.
	ThemeDefault Theme = "default"
	// ThemeCharm uses the Charm theme.
	ThemeCharm Theme = "charm"
	// ThemeDracula uses the Dracula theme.
	ThemeDracula Theme = "dracula"
	// ThemeBase16 uses the Base16 theme, which suits light terminals.
	ThemeBase16 Theme = "base16"

	keyCtrlC = "ctrl+c"
)

// ErrCancelled is returned when the user cancels a prompt.
var ErrCancelled = errors.New("cancelled by user")

type (
	// Theme represents the visual theme for prompts.
	Theme string

	// Config holds common configuration for TUI components.
	Config struct {
		// Theme specifies the visual theme to use.
		Theme Theme
		// Accessible enables accessible mode for screen readers.
		Accessible bool
		// Input is where prompts read answers from (default: stdin).
		Input io.Reader
		// Output specifies where to write the component output.
		Output io.Writer
	}
)

// DefaultConfig returns the default configuration for TUI components.
// Accessible mode is enabled automatically when stdin is not a terminal or the
// ACCESSIBLE environment variable is set. In that case output goes to stderr so
// prompts stay visible when stdout is redirected.
func DefaultConfig() Config {
	accessible := !isInputTerminal() || os.Getenv("ACCESSIBLE") != ""

	var output io.Writer = os.Stdout
	if accessible {
		output = os.Stderr
	}

	return Config{
		Theme:      ThemeDefault,
		Accessible: accessible,
		Output:     output,
	}
}

// IsTerminal reports whether w is a file attached to a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// IsInteractive reports whether both stdin and cfg's output are terminals and
// accessible mode is off.
func IsInteractive(cfg Config) bool {
	return !shouldUseAccessible(cfg) && IsTerminal(getOutputWriter(cfg))
}

// isInputTerminal returns true if stdin is connected to a terminal.
func isInputTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// shouldUseAccessible returns true if accessible mode should be used, either
// because cfg asks for it or because stdin is not a terminal.
func shouldUseAccessible(cfg Config) bool {
	return cfg.Accessible || !isInputTerminal()
}

// getOutputWriter returns cfg.Output, or stderr/stdout depending on whether
// accessible mode is needed.
func getOutputWriter(cfg Config) io.Writer {
	if cfg.Output != nil {
		return cfg.Output
	}
	if shouldUseAccessible(cfg) {
		return os.Stderr
	}
	return os.Stdout
}

// ThemeFor picks a prompt theme for a color scheme name ("auto", "dark",
// "light").
func ThemeFor(colorScheme string) Theme {
	switch colorScheme {
	case "light":
		return ThemeBase16
	case "dark":
		return ThemeDracula
	default:
		return ThemeCharm
	}
}

// getHuhTheme converts a Theme to a huh.Theme.
func getHuhTheme(t Theme) *huh.Theme {
	switch t {
	case ThemeCharm:
		return huh.ThemeCharm()
	case ThemeDracula:
		return huh.ThemeDracula()
	case ThemeBase16:
		return huh.ThemeBase16()
	default:
		return huh.ThemeBase()
	}
}
