// SPDX-License-Identifier: MPL-2.0

// Package platform provides cross-platform file name checks.
package platform

import "strings"

// windowsReservedNames are device names Windows reserves regardless of extension.
var windowsReservedNames = map[string]bool{ //nolint:gochecknoglobals // Immutable lookup table.
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true,
	"COM5": true, "COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true,
	"LPT5": true, "LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// IsWindowsReservedName reports whether a single file name is a Windows
// device name. "nul.txt" counts, because Windows ignores the extension.
func IsWindowsReservedName(name string) bool {
	upper := strings.ToUpper(strings.TrimRight(name, " ."))
	if idx := strings.IndexByte(upper, '.'); idx != -1 {
		upper = upper[:idx]
	}
	return windowsReservedNames[upper]
}

// ReservedSegment returns the first segment of a slash-separated path that is
// a Windows device name.
func ReservedSegment(p string) (string, bool) {
	for seg := range strings.SplitSeq(p, "/") {
		if seg != "" && IsWindowsReservedName(seg) {
			return seg, true
		}
	}
	return "", false
}
