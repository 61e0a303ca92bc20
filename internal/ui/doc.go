// Package ui renders styled terminal output for the CLI with lipgloss.
//
// Progress lines, pool listings and cache statistics share one [Palette]. Styling is dropped automatically when
// the output is not a terminal.
package ui
