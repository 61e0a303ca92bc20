package matching

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/desertthunder/trackpool/internal/models"
)

// MinAcceptScore is the lowest score a selected candidate may have.
const MinAcceptScore = 1

// Score weights.
const (
	zeroOverlapPenalty   = -120
	overlapWeight        = 60
	fullOverlapBonus     = 20
	artistChannelBonus   = 50
	artistQualifierBonus = 15
	artistInTitleBonus   = 10
	clipBonus            = 25
	audioBonus           = 15
	offVersionPenalty    = -200
	deprioritizedPenalty = -40
)

var (
	clipMarkers   = regexp.MustCompile(`\b(official (music )?video|music video|official mv|mv|m v|pv|official clip|clip officiel|videoclip|video clip|video oficial|videoclipe)\b`)
	audioMarkers  = regexp.MustCompile(`\b(official audio|audio oficial|audio|visuali[sz]er)\b`)
	topicChannel  = regexp.MustCompile(`\btopic$`)
	channelSuffix = regexp.MustCompile(`(\s*(topic|vevo|official|channel|music))+$`)
	artistSplit   = regexp.MustCompile(`(?i)\s*(,|&|/|;|\s+x\s+|\s+feat\.?\s+|\s+ft\.?\s+|\s+featuring\s+|、)\s*`)

	deprioritized = regexp.MustCompile(`\b(lyrics?|lyric video|reaction|reacts?|shorts|trailer|interview|teaser|dance practice|behind the scenes|making of|tutorial|how to play|tiktok)\b|歌詞`)
)

// variant is a performance version a candidate can be that the source did not ask for.
type variant struct {
	name string
	re   *regexp.Regexp
}

var offVersions = []variant{
	{"live", regexp.MustCompile(`\blive\b|ライブ`)},
	{"cover", regexp.MustCompile(`\bcover(ed)?\b|歌ってみた|弾いてみた|叩いてみた`)},
	{"karaoke", regexp.MustCompile(`\bkaraoke\b|カラオケ`)},
	{"instrumental", regexp.MustCompile(`\b(instrumental|off vocal|inst)\b`)},
	{"nightcore", regexp.MustCompile(`\bnightcore\b`)},
	{"slowed", regexp.MustCompile(`\b(slowed|reverb)\b`)},
	{"sped up", regexp.MustCompile(`\b(sped up|speed up)\b`)},
	{"short ver", regexp.MustCompile(`\bshort (ver|version|edit)\b`)},
	{"tv size", regexp.MustCompile(`\btv (size|ver|version|edit)\b`)},
	{"remix", regexp.MustCompile(`\bremix\b`)},
	{"8d", regexp.MustCompile(`\b8d\b`)},
	{"acoustic", regexp.MustCompile(`\bacoustic\b`)},
}

// Score computes the heuristic score of a video candidate for a source track.
func Score(c models.VideoCandidate, track models.CatalogTrack) models.ScoredCandidate {
	candTitle := Normalize(c.Title)
	srcTitle := Normalize(track.Title)

	sc := models.ScoredCandidate{Candidate: c}

	srcTokens := Tokens(SanitizeTitle(track.Title))
	sc.TitleTokenCount = len(srcTokens)
	sc.TitleTokenOverlap = overlap(srcTokens, candTitle)

	switch {
	case sc.TitleTokenCount == 0:
	case sc.TitleTokenOverlap == 0:
		sc.Score += zeroOverlapPenalty
	default:
		sc.Score += overlapWeight * sc.TitleTokenOverlap / sc.TitleTokenCount
		if sc.TitleTokenOverlap == sc.TitleTokenCount {
			sc.Score += fullOverlapBonus
		}
	}

	sc.IsClip = clipMarkers.MatchString(candTitle)
	channel := Normalize(c.ChannelTitle)
	sc.IsAudio = audioMarkers.MatchString(candTitle) || topicChannel.MatchString(channel)
	if sc.IsClip {
		sc.Score += clipBonus
	}
	if sc.IsAudio {
		sc.Score += audioBonus
	}

	sc.ArtistChannelMatch = ArtistMatchesChannel(track.Artist, c.ChannelTitle)
	if sc.ArtistChannelMatch {
		sc.Score += artistChannelBonus
		if sc.IsClip || sc.IsAudio {
			sc.Score += artistQualifierBonus
		}
	}

	if artist := Normalize(track.Artist); artist != "" && strings.Contains(candTitle, artist) {
		sc.Score += artistInTitleBonus
	}

	sc.OffVersionMismatch = offVersion(candTitle, srcTitle)
	if sc.OffVersionMismatch {
		sc.Score += offVersionPenalty
	}

	if deprioritized.MatchString(candTitle) && !deprioritized.MatchString(srcTitle) {
		sc.Score += deprioritizedPenalty
	}

	return sc
}

// overlap counts source tokens present in the normalized candidate title.
func overlap(srcTokens []string, candTitle string) int {
	cand := make(map[string]bool)
	for _, f := range strings.Fields(candTitle) {
		cand[f] = true
	}

	n := 0
	for _, tok := range srcTokens {
		if cand[tok] || (hasCJK(tok) && strings.Contains(candTitle, tok)) {
			n++
		}
	}
	return n
}

func offVersion(candTitle, srcTitle string) bool {
	for _, v := range offVersions {
		if v.re.MatchString(candTitle) && !v.re.MatchString(srcTitle) {
			return true
		}
	}
	return false
}

// ArtistMatchesChannel reports whether a channel name belongs to the artist.
//
// It accepts a whole-word contains, a compacted match ("King Gnu" against "KingGnuVEVO"), or every artist token appearing
// in the channel. Multi-artist credits match on any single credited artist.
func ArtistMatchesChannel(artist, channel string) bool {
	ch := strings.TrimSpace(channelSuffix.ReplaceAllString(Normalize(channel), ""))
	if ch == "" {
		ch = Normalize(channel)
	}
	if ch == "" {
		return false
	}

	names := append([]string{artist}, artistSplit.Split(artist, -1)...)
	for _, name := range names {
		if matchesChannel(Normalize(name), ch) {
			return true
		}
	}
	return false
}

func matchesChannel(artist, channel string) bool {
	if artist == "" {
		return false
	}
	if strings.Contains(" "+channel+" ", " "+artist+" ") {
		return true
	}

	ca, cc := compact(artist), compact(channel)
	if ca == cc {
		return true
	}
	if (utf8.RuneCountInString(ca) >= 5 || hasCJK(ca)) && strings.Contains(cc, ca) {
		return true
	}

	chTokens := make(map[string]bool)
	for _, f := range strings.Fields(channel) {
		chTokens[f] = true
	}
	tokens := strings.Fields(artist)
	if len(tokens) < 2 {
		return false
	}
	for _, tok := range tokens {
		if !chTokens[tok] {
			return false
		}
	}
	return true
}

// accepts reports whether a scored candidate satisfies the hard requirement of an intent.
func accepts(sc models.ScoredCandidate, intent Intent) bool {
	switch intent {
	case IntentOfficialClip:
		return sc.IsClip
	case IntentOfficialAudio:
		return sc.IsAudio && !sc.IsClip
	default:
		return sc.TitleTokenOverlap > 0
	}
}

// Select picks the winning candidate for an intent.
//
// Candidates failing the intent's hard requirement are dropped; off-version candidates are dropped when a clean one
// remains; artist-channel matches are preferred when any exist; then the highest score wins. Equal scores go to the
// shorter title, then to the earlier candidate. The winner must reach [MinAcceptScore].
func Select(scored []models.ScoredCandidate, intent Intent) (models.ScoredCandidate, bool) {
	pool := make([]models.ScoredCandidate, 0, len(scored))
	for _, sc := range scored {
		if accepts(sc, intent) {
			pool = append(pool, sc)
		}
	}

	pool = preferIf(pool, func(sc models.ScoredCandidate) bool { return !sc.OffVersionMismatch })
	pool = preferIf(pool, func(sc models.ScoredCandidate) bool { return sc.ArtistChannelMatch })

	var best models.ScoredCandidate
	found := false
	for _, sc := range pool {
		if !found || better(sc, best) {
			best, found = sc, true
		}
	}

	if !found || best.Score < MinAcceptScore {
		return models.ScoredCandidate{}, false
	}
	return best, true
}

// preferIf narrows pool to the matching subset, unless that subset is empty.
func preferIf(pool []models.ScoredCandidate, keep func(models.ScoredCandidate) bool) []models.ScoredCandidate {
	var subset []models.ScoredCandidate
	for _, sc := range pool {
		if keep(sc) {
			subset = append(subset, sc)
		}
	}
	if len(subset) == 0 {
		return pool
	}
	return subset
}

func better(a, b models.ScoredCandidate) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return utf8.RuneCountInString(a.Candidate.Title) < utf8.RuneCountInString(b.Candidate.Title)
}

var (
	displayChannelSuffix = regexp.MustCompile(`(?i)(\s*-\s*topic|\s*vevo|\s+official(\s+(channel|music))?)+\s*$`)
	titleSeparator       = regexp.MustCompile(`\s+[-–—]\s+`)
)

// IsOffVersion reports whether a video title signals a live, cover or other variant performance.
func IsOffVersion(title string) bool {
	return offVersion(Normalize(title), "")
}

// ChannelArtist strips "- Topic", "VEVO" and "Official" decorations from a channel name.
func ChannelArtist(channel string) string {
	if name := strings.TrimSpace(displayChannelSuffix.ReplaceAllString(channel, "")); name != "" {
		return name
	}
	return strings.TrimSpace(channel)
}

// SplitVideoTitle guesses the song title and artist of a video found without a source track.
//
// "Artist - Title (Official Video)" splits on the separator; anything else keeps the sanitized title and takes the
// artist from the channel.
func SplitVideoTitle(title, channel string) (string, string) {
	if parts := titleSeparator.Split(title, 2); len(parts) == 2 {
		artist, song := strings.TrimSpace(parts[0]), SanitizeTitle(parts[1])
		if artist != "" && song != "" {
			return song, artist
		}
	}
	return SanitizeTitle(title), ChannelArtist(channel)
}
