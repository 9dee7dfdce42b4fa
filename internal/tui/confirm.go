// SPDX-License-Identifier: MPL-2.0

package tui

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"
)

// ConfirmOptions configures the Confirm component.
type ConfirmOptions struct {
	// Title is the question/prompt to display.
	Title string
	// Description provides additional context below the title.
	Description string
	// Affirmative is the text for the affirmative option (default: "Yes").
	Affirmative string
	// Negative is the text for the negative option (default: "No").
	Negative string
	// Default is the default value (true for yes, false for no).
	Default bool
	// Config holds common TUI configuration.
	Config Config
}

// Confirm prompts the user to confirm an action (yes/no).
// Returns ErrCancelled if the user aborts the prompt.
func Confirm(opts ConfirmOptions) (bool, error) {
	result := opts.Default
	if err := newConfirmForm(opts, &result).Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, ErrCancelled
		}
		return false, fmt.Errorf("confirmation prompt: %w", err)
	}
	return result, nil
}

func newConfirmForm(opts ConfirmOptions, result *bool) *huh.Form {
	affirmative, negative := opts.Affirmative, opts.Negative
	if affirmative == "" {
		affirmative = "Yes"
	}
	if negative == "" {
		negative = "No"
	}

	field := huh.NewConfirm().
		Title(opts.Title).
		Affirmative(affirmative).
		Negative(negative).
		Value(result)
	if opts.Description != "" {
		field = field.Description(opts.Description)
	}

	form := huh.NewForm(huh.NewGroup(field)).
		WithTheme(getHuhTheme(opts.Config.Theme)).
		WithAccessible(shouldUseAccessible(opts.Config)).
		WithOutput(getOutputWriter(opts.Config))
	if opts.Config.Input != nil {
		form = form.WithInput(opts.Config.Input)
	}
	return form
}
