// SPDX-License-Identifier: MPL-2.0

// Package tui provides the terminal components used by the installer: a
// yes/no confirmation built on huh and a progress view built on Bubble Tea and
// bubbles/progress. Both fall back to plain line-oriented output when the
// terminal is not interactive or accessible mode is requested.
package tui
