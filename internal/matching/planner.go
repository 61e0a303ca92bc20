package matching

import (
	"regexp"
	"strings"

	"github.com/desertthunder/trackpool/internal/models"
)

// Intent labels a group of search queries by the class of video it is looking for.
type Intent string

const (
	IntentOfficialClip  Intent = "official_clip"
	IntentOfficialAudio Intent = "official_audio"
	IntentFallback      Intent = "fallback"
)

// QueryGroup is an ordered set of queries sharing one intent.
type QueryGroup struct {
	Intent  Intent
	Queries []string
}

var (
	bracketed      = regexp.MustCompile(`\s*(\([^)]*\)|\[[^\]]*\]|【[^】]*】|（[^）]*）|「[^」]*」)`)
	featSuffix     = regexp.MustCompile(`(?i)\s+(feat\.?|ft\.?|featuring)\s+.*$`)
	versionSuffix  = regexp.MustCompile(`(?i)\s+[-–—]\s+[^-–—]*\b(remaster|remastered|version|edit|mono|stereo|single|mix)\b.*$`)
	spaceCollapser = regexp.MustCompile(`\s+`)
)

// SanitizeTitle strips bracketed content, "feat." suffixes and " - Remastered"-style suffixes.
//
// Returns the trimmed original when stripping would leave nothing.
func SanitizeTitle(title string) string {
	s := bracketed.ReplaceAllString(title, " ")
	s = featSuffix.ReplaceAllString(s, "")
	s = versionSuffix.ReplaceAllString(s, "")
	s = collapse(s)
	if s == "" {
		return collapse(title)
	}
	return s
}

// Plan builds the ordered query groups for a track: official clip, then official audio, then a bare fallback.
//
// Queries are whitespace-normalized and deduplicated case-insensitively within a group; empty groups are dropped.
// A track without a title yields no plan.
func Plan(track models.CatalogTrack) []QueryGroup {
	title := collapse(track.Title)
	if title == "" {
		return nil
	}
	artist := collapse(track.Artist)
	clean := SanitizeTitle(title)

	groups := []QueryGroup{
		{Intent: IntentOfficialClip, Queries: dedupe(
			join(artist, title, "official music video"),
			join(artist, title, "official video"),
			join(artist, title, "official clip"),
			join(artist, clean, "official video"),
		)},
		{Intent: IntentOfficialAudio, Queries: dedupe(
			join(artist, title, "official audio"),
			join(artist, clean, "official audio"),
		)},
		{Intent: IntentFallback, Queries: dedupe(
			join(artist, title),
			join(artist, clean),
		)},
	}

	out := groups[:0]
	for _, g := range groups {
		if len(g.Queries) > 0 {
			out = append(out, g)
		}
	}
	return out
}

func join(parts ...string) string {
	return collapse(strings.Join(parts, " "))
}

func collapse(s string) string {
	return strings.TrimSpace(spaceCollapser.ReplaceAllString(s, " "))
}

func dedupe(queries ...string) []string {
	seen := make(map[string]bool, len(queries))
	out := make([]string, 0, len(queries))
	for _, q := range queries {
		q = collapse(q)
		key := strings.ToLower(q)
		if q == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, q)
	}
	return out
}
