package matching

import (
	"regexp"

	"github.com/desertthunder/trackpool/internal/models"
)

// junkPatterns match against normalized "title artist" text.
var junkPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(advert|adverts|advertisement|advertising|publicite|publicites|publicidad|pubblicita|pub|annonce|annonces|werbung|reklame|anuncio|anuncios|sponsor|sponsored)\b`),
	regexp.MustCompile(`\b(download|get|try|install) (the |our )?(app|premium)\b`),
	regexp.MustCompile(`\b(app store|google play|play store)\b`),
	regexp.MustCompile(`\b(premium (free|gratuit|gratis|trial)|free trial|essai gratuit|prueba gratis)\b`),
	regexp.MustCompile(`\b(deezer|spotify|apple music|youtube music|tidal|amazon music|soundcloud|napster|qobuz) (alternative|alternatives|ads|ad)\b`),
}

// IsJunk reports whether a track is an advertisement or app promotion rather than music.
func IsJunk(title, artist string) bool {
	text := Normalize(title + " " + artist)
	if text == "" {
		return false
	}
	for _, p := range junkPatterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

// FilterJunk returns the tracks that are not junk, preserving order. The input slice is not modified.
func FilterJunk(tracks []models.CatalogTrack) []models.CatalogTrack {
	out := make([]models.CatalogTrack, 0, len(tracks))
	for _, t := range tracks {
		if IsJunk(t.Title, t.Artist) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// IsJunkCandidate applies the junk filter to a video search result.
func IsJunkCandidate(c models.VideoCandidate) bool {
	return IsJunk(c.Title, c.ChannelTitle)
}
