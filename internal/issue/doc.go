// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable error handling with user-friendly messages.
//
// ActionableError carries the failed operation, the resource involved and
// suggestions for the user. Errors may link to an Issue from the catalog,
// whose Markdown guidance is rendered with glamour when cmat runs verbosely.
package issue
