package ui

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/desertthunder/trackpool/internal/models"
)

var styles = NewPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262")

// Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
}

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title: NewBold(t).MarginBottom(1),
		ok:    NewBold(s),
		err:   NewBold(e),
		warn:  NewStyle(w),
		help:  NewEm(h),
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}

func Title(s string) string   { return styles.title.Render(s) }
func Success(s string) string { return styles.ok.Render(s) }
func Failure(s string) string { return styles.err.Render(s) }
func Warning(s string) string { return styles.warn.Render(s) }
func Muted(s string) string   { return styles.help.Render(s) }

// Pool writes a numbered, styled pool listing.
func Pool(w io.Writer, heading string, pool []models.ResolvedTrack) {
	fmt.Fprintln(w, Title(fmt.Sprintf("%s (%d)", heading, len(pool))))
	if len(pool) == 0 {
		fmt.Fprintln(w, Warning("no playable tracks"))
		return
	}
	width := len(fmt.Sprint(len(pool)))
	for i, t := range pool {
		num := fmt.Sprintf("%*d.", width, i+1)
		fmt.Fprintf(w, "%s %s %s %s\n", Muted(num), Success(t.Artist), "-", t.Title)
		fmt.Fprintf(w, "%s %s\n", strings.Repeat(" ", width+1), Muted(t.SourceURL))
	}
}

// Stats writes a summary of the durable resolution store.
func Stats(w io.Writer, stats models.ResolutionStats, memoryEntries int) {
	fmt.Fprintln(w, Title("Resolution cache"))
	fmt.Fprintf(w, "%-12s %d\n", "durable", stats.Total)
	fmt.Fprintf(w, "%-12s %s\n", "resolved", Success(fmt.Sprint(stats.Resolved)))
	fmt.Fprintf(w, "%-12s %s\n", "unresolved", Warning(fmt.Sprint(stats.Unresolved)))
	if memoryEntries >= 0 {
		fmt.Fprintf(w, "%-12s %d\n", "in memory", memoryEntries)
	}
	providers := make([]string, 0, len(stats.Providers))
	for p := range stats.Providers {
		providers = append(providers, p)
	}
	sort.Strings(providers)
	for _, p := range providers {
		fmt.Fprintf(w, "  %s %d\n", Muted(fmt.Sprintf("%-10s", p)), stats.Providers[p])
	}
}
