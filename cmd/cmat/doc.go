// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the cmat command tree: install, check and config.
package cmd
