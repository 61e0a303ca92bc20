// package models defines the data model for the track resolution engine
package models

import (
	"strings"
	"time"
)

// Playback providers a [ResolvedTrack] can be bound to.
const (
	ProviderYouTube     = "youtube"
	ProviderAnimeThemes = "animethemes"
)

// Catalog providers.
const (
	ProviderSpotify = "spotify"
	ProviderDeezer  = "deezer"
)

// Answer modes carried on [TrackAnswer].
const (
	AnswerModeTrack = "track"
	AnswerModeAnime = "anime"
)

// TrackAnswer lists the titles a player may answer with for a catalog-derived track.
type TrackAnswer struct {
	Canonical string   `json:"canonical"`
	Aliases   []string `json:"aliases,omitempty"`
	Mode      string   `json:"mode"`
}

// CatalogTrack represents a track returned by a catalog provider, prior to resolution.
//
// Zero values mean absent.
type CatalogTrack struct {
	Provider    string       `json:"provider"`
	SourceID    string       `json:"sourceId"`
	Title       string       `json:"title"`
	Artist      string       `json:"artist"`
	DurationSec int          `json:"durationSec,omitempty"`
	PreviewURL  string       `json:"previewUrl,omitempty"`
	SourceURL   string       `json:"sourceUrl,omitempty"`
	Answer      *TrackAnswer `json:"answer,omitempty"`
}

// HasPreview reports whether the provider supplied an audio preview.
func (t CatalogTrack) HasPreview() bool {
	return strings.TrimSpace(t.PreviewURL) != ""
}

// ResolvedTrack is a track bound to a single playable video.
//
// PreviewURL is always nil: playback happens through the embed, never through an audio preview.
type ResolvedTrack struct {
	Provider    string       `json:"provider"`
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Artist      string       `json:"artist"`
	DurationSec int          `json:"durationSec,omitempty"`
	SourceURL   string       `json:"sourceUrl"`
	PreviewURL  *string      `json:"previewUrl"`
	Answer      *TrackAnswer `json:"answer,omitempty"`
}

// VideoCandidate is one result of a video search call. It is never persisted.
type VideoCandidate struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	ChannelTitle string `json:"channelTitle"`
	SourceURL    string `json:"sourceUrl"`
}

// ScoredCandidate is a [VideoCandidate] with the signals the scorer derived for it.
type ScoredCandidate struct {
	Candidate          VideoCandidate
	Score              int
	IsClip             bool
	IsAudio            bool
	ArtistChannelMatch bool
	TitleTokenOverlap  int
	TitleTokenCount    int
	OffVersionMismatch bool
}

// Resolution is the durable record of a resolution attempt, keyed by (Provider, SourceID).
//
// An empty VideoID is the null outcome: it counts attempts but never short-circuits a later search.
type Resolution struct {
	ID         string    `json:"id"`
	Provider   string    `json:"provider"`
	SourceID   string    `json:"sourceId"`
	Title      string    `json:"title"`
	Artist     string    `json:"artist"`
	VideoID    string    `json:"videoId,omitempty"`
	DurationMs int64     `json:"durationMs,omitempty"`
	Attempts   int       `json:"attempts"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Resolved reports whether the record points at a playable video.
func (r Resolution) Resolved() bool {
	return r.VideoID != ""
}

// ResolutionStats summarizes the durable store.
type ResolutionStats struct {
	Total      int
	Resolved   int
	Unresolved int
	Providers  map[string]int
}
