// Package sources classifies raw source strings into typed [models.SourceDescriptor] values.
//
// Parsing is pure: no network calls, and the same input always yields the same descriptor.
package sources

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/desertthunder/trackpool/internal/models"
)

// DefaultSearchQuery is used when the raw source is empty.
const DefaultSearchQuery = "top hits"

const (
	prefixSpotifyPlaylist = "spotify:playlist:"
	prefixDeezerPlaylist  = "deezer:playlist:"
	prefixDeezerChart     = "deezer:chart"
	prefixCatalogUsers    = "catalog:users:"
	prefixAniListUsers    = "anilist:users:"
)

var (
	trailingID   = regexp.MustCompile(`[A-Za-z0-9]+$`)
	validID      = regexp.MustCompile(`^[A-Za-z0-9]+$`)
	userSplitter = regexp.MustCompile(`[\s,;]+`)
)

// Parse classifies raw into a source descriptor.
//
// Recognised forms:
//   - spotify:playlist:<id or url>
//   - deezer:playlist:<id or url>
//   - deezer:chart
//   - catalog:users:<name,name> (also anilist:users:)
//   - a bare open.spotify.com or deezer.com playlist URL
//
// Anything else is a free-text search; empty input searches for [DefaultSearchQuery].
func Parse(raw string) models.SourceDescriptor {
	text := strings.TrimSpace(raw)
	if text == "" {
		return models.SearchSource{Query: DefaultSearchQuery}
	}
	lower := strings.ToLower(text)

	switch {
	case strings.HasPrefix(lower, prefixSpotifyPlaylist):
		if id := PlaylistID(text[len(prefixSpotifyPlaylist):]); id != "" {
			return models.PlaylistSource{Provider: models.ProviderSpotify, PlaylistID: id}
		}
	case strings.HasPrefix(lower, prefixDeezerPlaylist):
		if id := PlaylistID(text[len(prefixDeezerPlaylist):]); id != "" {
			return models.PlaylistSource{Provider: models.ProviderDeezer, PlaylistID: id}
		}
	case lower == prefixDeezerChart || strings.HasPrefix(lower, prefixDeezerChart+":"):
		return models.ChartSource{Provider: models.ProviderDeezer}
	case strings.HasPrefix(lower, prefixCatalogUsers):
		if users := Usernames(text[len(prefixCatalogUsers):]); len(users) > 0 {
			return models.CatalogUsersSource{Usernames: users}
		}
	case strings.HasPrefix(lower, prefixAniListUsers):
		if users := Usernames(text[len(prefixAniListUsers):]); len(users) > 0 {
			return models.CatalogUsersSource{Usernames: users}
		}
	case isPlaylistURL(lower, "open.spotify.com"):
		if id := PlaylistID(text); id != "" {
			return models.PlaylistSource{Provider: models.ProviderSpotify, PlaylistID: id}
		}
	case isPlaylistURL(lower, "deezer.com"):
		if id := PlaylistID(text); id != "" {
			return models.PlaylistSource{Provider: models.ProviderDeezer, PlaylistID: id}
		}
	}

	return models.SearchSource{Query: text}
}

func isPlaylistURL(lower, host string) bool {
	return !strings.ContainsAny(lower, " \t") && strings.Contains(lower, host+"/") && strings.Contains(lower, "/playlist/")
}

// PlaylistID extracts a playlist identifier from an id, a provider URI, or a playlist URL.
//
// URL hosts, query strings and fragments are stripped; when what remains is not a plain alphanumeric id the
// trailing alphanumeric run is used. Returns "" when nothing usable remains.
func PlaylistID(payload string) string {
	s := strings.TrimSpace(payload)
	if s == "" {
		return ""
	}

	if strings.Contains(s, "://") || strings.Contains(s, "/") {
		candidate := s
		if !strings.Contains(candidate, "://") {
			candidate = "https://" + candidate
		}
		if u, err := url.Parse(candidate); err == nil {
			s = pathID(u.Path)
		}
	}

	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	if i := strings.LastIndex(s, ":"); i >= 0 {
		s = s[i+1:]
	}
	s = strings.Trim(s, "/ ")

	if validID.MatchString(s) {
		return s
	}
	return trailingID.FindString(s)
}

// pathID returns the path segment following "playlist", or the last non-empty segment.
func pathID(p string) string {
	segments := strings.Split(strings.Trim(p, "/"), "/")
	for i, seg := range segments {
		if strings.EqualFold(seg, "playlist") && i+1 < len(segments) {
			return segments[i+1]
		}
	}
	for i := len(segments) - 1; i >= 0; i-- {
		if segments[i] != "" {
			return segments[i]
		}
	}
	return ""
}

// Usernames splits a comma, semicolon or whitespace separated list, dropping blanks and case-insensitive duplicates.
func Usernames(payload string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, name := range userSplitter.Split(payload, -1) {
		name = strings.TrimPrefix(strings.TrimSpace(name), "@")
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, name)
	}
	return out
}
