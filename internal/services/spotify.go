// Spotify catalog provider
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/desertthunder/trackpool/internal/models"
	"github.com/desertthunder/trackpool/internal/shared"
)

const (
	spotifyTokenURL  = "https://accounts.spotify.com/api/token"
	spotifyBaseURL   = "https://api.spotify.com/v1"
	spotifyPageSize  = 100
	spotifySearchMax = 50
)

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type externalURLs struct {
	Spotify string `json:"spotify"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Artists      []SpotifyArtist `json:"artists"`
	DurationMS   int             `json:"duration_ms"`
	PreviewURL   *string         `json:"preview_url"`
	ExternalURLs externalURLs    `json:"external_urls"`
	IsLocal      bool            `json:"is_local"`
	Type         string          `json:"type"`
}

// SpotifyPlaylistTrack represents a track within a playlist context.
type SpotifyPlaylistTrack struct {
	AddedAt string        `json:"added_at"`
	Track   *SpotifyTrack `json:"track"`
}

// SpotifyPaginatedPlaylistTracks is one page of /playlists/{id}/tracks.
type SpotifyPaginatedPlaylistTracks struct {
	Items  []SpotifyPlaylistTrack `json:"items"`
	Total  int                    `json:"total"`
	Limit  int                    `json:"limit"`
	Offset int                    `json:"offset"`
	Next   *string                `json:"next"`
}

type spotifySearchResponse struct {
	Tracks struct {
		Items []SpotifyTrack `json:"items"`
	} `json:"tracks"`
}

// SpotifyService fetches playlist and search tracks using an app token from the client credentials grant.
//
// The [clientcredentials.Config] token source caches and refreshes the token, so no user OAuth flow is involved.
type SpotifyService struct {
	api    *APIService
	market string
}

// NewSpotifyService creates a Spotify client. Empty URLs use the public endpoints.
func NewSpotifyService(cfg shared.SpotifyConfig, baseURL, tokenURL string, opts Options) (*SpotifyService, error) {
	if strings.TrimSpace(cfg.ClientID) == "" {
		return nil, fmt.Errorf("%w: spotify client_id", shared.ErrMissingCredentials)
	}
	if strings.TrimSpace(cfg.ClientSecret) == "" {
		return nil, fmt.Errorf("%w: spotify client_secret", shared.ErrMissingCredentials)
	}
	if baseURL == "" {
		baseURL = spotifyBaseURL
	}
	if tokenURL == "" {
		tokenURL = spotifyTokenURL
	}

	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     tokenURL,
	}

	opts = opts.withDefaults()
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, opts.HTTPClient)
	opts.HTTPClient = cc.Client(ctx)

	return &SpotifyService{
		api:    NewAPIService(models.ProviderSpotify, baseURL, opts),
		market: cfg.Market,
	}, nil
}

// Name returns the provider name.
func (s *SpotifyService) Name() string {
	return models.ProviderSpotify
}

// FetchTracks returns up to limit tracks for a playlist or search descriptor.
func (s *SpotifyService) FetchTracks(ctx context.Context, desc models.SourceDescriptor, limit int) ([]models.CatalogTrack, error) {
	if limit <= 0 {
		return nil, nil
	}

	switch src := desc.(type) {
	case models.PlaylistSource:
		return s.playlistTracks(ctx, src.PlaylistID, limit)
	case models.SearchSource:
		return s.search(ctx, src.Query, limit)
	default:
		return nil, fmt.Errorf("%w: spotify cannot serve %s", shared.ErrUnsupportedSource, desc)
	}
}

func (s *SpotifyService) playlistTracks(ctx context.Context, playlistID string, limit int) ([]models.CatalogTrack, error) {
	var tracks []models.CatalogTrack
	for offset := 0; len(tracks) < limit; offset += spotifyPageSize {
		params := url.Values{
			"limit":  {strconv.Itoa(spotifyPageSize)},
			"offset": {strconv.Itoa(offset)},
			"fields": {"items(track(id,name,type,is_local,duration_ms,preview_url,external_urls,artists(id,name))),next,total"},
		}
		if s.market != "" {
			params.Set("market", s.market)
		}

		var page SpotifyPaginatedPlaylistTracks
		if err := s.api.Get(ctx, "/playlists/"+url.PathEscape(playlistID)+"/tracks", params, &page); err != nil {
			if IsStatus(err, 404) {
				return nil, fmt.Errorf("%w: spotify playlist %s", shared.ErrPlaylistNotFound, playlistID)
			}
			return nil, err
		}

		for _, item := range page.Items {
			if item.Track != nil {
				tracks = append(tracks, DecodeSpotifyTracks([]SpotifyTrack{*item.Track})...)
			}
		}
		if page.Next == nil || len(page.Items) == 0 {
			break
		}
	}

	if len(tracks) > limit {
		tracks = tracks[:limit]
	}
	return tracks, nil
}

func (s *SpotifyService) search(ctx context.Context, query string, limit int) ([]models.CatalogTrack, error) {
	params := url.Values{
		"q":     {query},
		"type":  {"track"},
		"limit": {strconv.Itoa(min(limit, spotifySearchMax))},
	}
	if s.market != "" {
		params.Set("market", s.market)
	}

	var resp spotifySearchResponse
	if err := s.api.Get(ctx, "/search", params, &resp); err != nil {
		return nil, err
	}
	return DecodeSpotifyTracks(resp.Tracks.Items), nil
}

// DecodeSpotifyTracks converts Spotify tracks into catalog tracks, skipping local files, episodes and incomplete entries.
func DecodeSpotifyTracks(items []SpotifyTrack) []models.CatalogTrack {
	out := make([]models.CatalogTrack, 0, len(items))
	for _, t := range items {
		if t.IsLocal || t.ID == "" || strings.TrimSpace(t.Name) == "" {
			continue
		}
		if t.Type != "" && t.Type != "track" {
			continue
		}

		names := make([]string, 0, len(t.Artists))
		for _, a := range t.Artists {
			if n := strings.TrimSpace(a.Name); n != "" {
				names = append(names, n)
			}
		}

		title := strings.TrimSpace(t.Name)
		track := models.CatalogTrack{
			Provider:    models.ProviderSpotify,
			SourceID:    t.ID,
			Title:       title,
			Artist:      strings.Join(names, ", "),
			DurationSec: t.DurationMS / 1000,
			SourceURL:   t.ExternalURLs.Spotify,
			Answer:      trackAnswer(title),
		}
		if t.PreviewURL != nil {
			track.PreviewURL = *t.PreviewURL
		}
		out = append(out, track)
	}
	return out
}
