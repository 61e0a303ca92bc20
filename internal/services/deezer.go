package services

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/desertthunder/trackpool/internal/models"
	"github.com/desertthunder/trackpool/internal/shared"
)

const (
	deezerBaseURL = "https://api.deezer.com"

	deezerQuotaExceeded = 4
	deezerDataNotFound  = 800
)

// DeezerArtist is the artist object embedded in Deezer track responses.
type DeezerArtist struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// DeezerTrack represents a Deezer track.
type DeezerTrack struct {
	ID       int64        `json:"id"`
	Title    string       `json:"title"`
	Readable *bool        `json:"readable"`
	Duration int          `json:"duration"`
	Preview  string       `json:"preview"`
	Link     string       `json:"link"`
	Type     string       `json:"type"`
	Artist   DeezerArtist `json:"artist"`
}

type deezerError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// deezerTrackList is the envelope of /chart, /playlist/{id}/tracks and /search.
type deezerTrackList struct {
	Data  []DeezerTrack `json:"data"`
	Total int           `json:"total"`
	Next  string        `json:"next"`
	Error *deezerError  `json:"error"`
}

// DeezerService fetches charts, playlists and search results from the public Deezer API.
//
// No credentials are needed. Deezer reports quota errors in a 200 response body, which are surfaced as
// [shared.ErrRateLimited].
type DeezerService struct {
	api *APIService
}

// NewDeezerService creates a Deezer client. An empty baseURL uses the public API.
func NewDeezerService(baseURL string, opts Options) *DeezerService {
	if baseURL == "" {
		baseURL = deezerBaseURL
	}
	return &DeezerService{api: NewAPIService(models.ProviderDeezer, baseURL, opts)}
}

// Name returns the provider name.
func (d *DeezerService) Name() string {
	return models.ProviderDeezer
}

// FetchTracks returns up to limit tracks for a chart, playlist or search descriptor.
func (d *DeezerService) FetchTracks(ctx context.Context, desc models.SourceDescriptor, limit int) ([]models.CatalogTrack, error) {
	if limit <= 0 {
		return nil, nil
	}

	params := url.Values{"limit": {strconv.Itoa(limit)}}

	switch src := desc.(type) {
	case models.ChartSource:
		return d.fetch(ctx, "/chart/0/tracks", params, limit)
	case models.PlaylistSource:
		return d.fetch(ctx, "/playlist/"+url.PathEscape(src.PlaylistID)+"/tracks", params, limit)
	case models.SearchSource:
		params.Set("q", src.Query)
		return d.fetch(ctx, "/search", params, limit)
	default:
		return nil, fmt.Errorf("%w: deezer cannot serve %s", shared.ErrUnsupportedSource, desc)
	}
}

func (d *DeezerService) fetch(ctx context.Context, path string, params url.Values, limit int) ([]models.CatalogTrack, error) {
	var list deezerTrackList
	if err := d.api.Get(ctx, path, params, &list); err != nil {
		if IsStatus(err, 404) {
			return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, path)
		}
		return nil, err
	}

	if err := checkDeezerError(list.Error); err != nil {
		return nil, err
	}

	tracks := DecodeDeezerTracks(list.Data)
	if len(tracks) > limit {
		tracks = tracks[:limit]
	}
	return tracks, nil
}

func checkDeezerError(e *deezerError) error {
	if e == nil {
		return nil
	}
	switch e.Code {
	case deezerQuotaExceeded:
		return &shared.RateLimitError{Service: models.ProviderDeezer}
	case deezerDataNotFound:
		return fmt.Errorf("%w: deezer: %s", shared.ErrPlaylistNotFound, e.Message)
	default:
		return fmt.Errorf("%w: deezer %s (%d): %s", shared.ErrAPIRequest, e.Type, e.Code, e.Message)
	}
}

// DecodeDeezerTracks converts Deezer tracks into catalog tracks, skipping unreadable and incomplete entries.
func DecodeDeezerTracks(items []DeezerTrack) []models.CatalogTrack {
	out := make([]models.CatalogTrack, 0, len(items))
	for _, t := range items {
		if t.ID == 0 || strings.TrimSpace(t.Title) == "" {
			continue
		}
		if t.Readable != nil && !*t.Readable {
			continue
		}
		if t.Type != "" && t.Type != "track" {
			continue
		}
		title := strings.TrimSpace(t.Title)
		out = append(out, models.CatalogTrack{
			Provider:    models.ProviderDeezer,
			SourceID:    strconv.FormatInt(t.ID, 10),
			Title:       title,
			Artist:      strings.TrimSpace(t.Artist.Name),
			DurationSec: t.Duration,
			PreviewURL:  t.Preview,
			SourceURL:   t.Link,
			Answer:      trackAnswer(title),
		})
	}
	return out
}
