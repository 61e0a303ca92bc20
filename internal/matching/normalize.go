package matching

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// combiningDiacritics covers U+0300..U+036F only. Kana voicing marks (U+3099, U+309A) are outside the range,
// so "ガ" survives folding.
var combiningDiacritics = &unicode.RangeTable{
	R16: []unicode.Range16{{Lo: 0x0300, Hi: 0x036f, Stride: 1}},
}

// stopWords never count toward title-token overlap.
var stopWords = map[string]bool{
	"official": true, "video": true, "music": true, "mv": true, "audio": true, "clip": true,
	"feat": true, "ft": true, "featuring": true, "lyrics": true, "lyric": true,
	"hd": true, "hq": true, "4k": true, "the": true, "a": true, "pv": true,
	"full": true, "version": true, "ver": true,
}

// Fold strips Latin diacritics and applies compatibility normalization, so "Publicité" becomes "Publicite" and
// full-width "ＳＴＡＲＤＯＭ" becomes "STARDOM".
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(combiningDiacritics)), norm.NFKC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Normalize folds s, lowercases it, replaces everything that is not a letter or number with a space,
// and collapses whitespace.
func Normalize(s string) string {
	folded := strings.ToLower(Fold(s))
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.Is(unicode.Mn, r) {
			return r
		}
		return ' '
	}, folded)
	return strings.Join(strings.Fields(mapped), " ")
}

// Signature is the volatile cache and dedupe key of a track: normalize(title) + "::" + normalize(artist).
func Signature(title, artist string) string {
	return Normalize(title) + "::" + Normalize(artist)
}

// Tokens returns the distinct normalized tokens of s with stop-words removed, in first-seen order.
//
// A title made only of stop-words keeps them, so "Video" still has a token.
func Tokens(s string) []string {
	fields := strings.Fields(Normalize(s))
	out := distinct(fields, true)
	if len(out) == 0 {
		out = distinct(fields, false)
	}
	return out
}

func distinct(fields []string, dropStop bool) []string {
	seen := make(map[string]bool, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if seen[f] || (dropStop && stopWords[f]) {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

// compact removes spaces from an already normalized string.
func compact(s string) string {
	return strings.ReplaceAll(s, " ", "")
}

// hasCJK reports whether s contains Han, Hiragana, Katakana or Hangul runes.
//
// CJK titles are rarely space separated, so token overlap falls back to substring checks for them.
func hasCJK(s string) bool {
	for _, r := range s {
		if unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul) {
			return true
		}
	}
	return false
}
