package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/trackpool/internal/models"
	"github.com/desertthunder/trackpool/internal/shared"
)

const (
	anilistBaseURL     = "https://graphql.anilist.co"
	animeThemesBaseURL = "https://api.animethemes.moe"
	animeThemesBatch   = 25
)

const anilistWatchListQuery = `query ($userName: String) {
  MediaListCollection(userName: $userName, type: ANIME, status_in: [COMPLETED, CURRENT, REPEATING]) {
    lists { entries { media { id title { romaji english native } } } }
  }
}`

// AniListTitle holds the titles AniList knows a show by.
type AniListTitle struct {
	Romaji  string `json:"romaji"`
	English string `json:"english"`
	Native  string `json:"native"`
}

// AniListMedia is an anime entry on a user's list.
type AniListMedia struct {
	ID    int          `json:"id"`
	Title AniListTitle `json:"title"`
}

type anilistRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type anilistResponse struct {
	Data struct {
		MediaListCollection *struct {
			Lists []struct {
				Entries []struct {
					Media AniListMedia `json:"media"`
				} `json:"entries"`
			} `json:"lists"`
		} `json:"MediaListCollection"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
		Status  int    `json:"status"`
	} `json:"errors"`
}

// AnimeThemesVideo is a playable theme video.
type AnimeThemesVideo struct {
	Basename string `json:"basename"`
	Link     string `json:"link"`
}

// AnimeThemesTheme is an opening or ending of a show.
type AnimeThemesTheme struct {
	Type     string `json:"type"`
	Sequence int    `json:"sequence"`
	Slug     string `json:"slug"`
	Song     *struct {
		Title   string `json:"title"`
		Artists []struct {
			Name string `json:"name"`
		} `json:"artists"`
	} `json:"song"`
	Entries []struct {
		Videos []AnimeThemesVideo `json:"videos"`
	} `json:"animethemeentries"`
}

// AnimeThemesAnime is a show with its themes and external resource links.
type AnimeThemesAnime struct {
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	Resources []struct {
		Site       string `json:"site"`
		ExternalID int    `json:"external_id"`
	} `json:"resources"`
	Themes []AnimeThemesTheme `json:"animethemes"`
}

type animeThemesResponse struct {
	Anime []AnimeThemesAnime `json:"anime"`
}

// CatalogService turns users' AniList watch lists into AnimeThemes tracks.
//
// AnimeThemes videos are directly playable, so tracks from this provider never reach video search.
type CatalogService struct {
	anilist *APIService
	themes  *APIService
	logger  *log.Logger
}

// NewCatalogService creates a catalog client. Empty URLs use the public endpoints.
func NewCatalogService(anilistURL, themesURL string, opts Options) *CatalogService {
	if anilistURL == "" {
		anilistURL = anilistBaseURL
	}
	if themesURL == "" {
		themesURL = animeThemesBaseURL
	}
	opts = opts.withDefaults()
	return &CatalogService{
		anilist: NewAPIService("anilist", anilistURL, opts),
		themes:  NewAPIService(models.ProviderAnimeThemes, themesURL, opts),
		logger:  shared.WithLogger(opts.Logger, "service", models.ProviderAnimeThemes),
	}
}

// Name returns the provider name.
func (c *CatalogService) Name() string {
	return models.ProviderAnimeThemes
}

// FetchTracks returns up to limit theme songs from the watch lists of the descriptor's users.
//
// Unknown users are logged and skipped; rate limits propagate.
func (c *CatalogService) FetchTracks(ctx context.Context, desc models.SourceDescriptor, limit int) ([]models.CatalogTrack, error) {
	src, ok := desc.(models.CatalogUsersSource)
	if !ok {
		return nil, fmt.Errorf("%w: catalog cannot serve %s", shared.ErrUnsupportedSource, desc)
	}
	if limit <= 0 {
		return nil, nil
	}

	var (
		ids    []int
		titles = make(map[int]AniListTitle)
	)
	for _, user := range src.Usernames {
		media, err := c.WatchList(ctx, user)
		if err != nil {
			if errors.Is(err, shared.ErrRateLimited) {
				return nil, err
			}
			c.logger.Warn("skipping watch list", "user", user, "error", err)
			continue
		}
		for _, m := range media {
			if _, seen := titles[m.ID]; seen {
				continue
			}
			titles[m.ID] = m.Title
			ids = append(ids, m.ID)
		}
	}

	var tracks []models.CatalogTrack
	for start := 0; start < len(ids) && len(tracks) < limit; start += animeThemesBatch {
		end := min(start+animeThemesBatch, len(ids))
		anime, err := c.Themes(ctx, ids[start:end])
		if err != nil {
			if errors.Is(err, shared.ErrRateLimited) {
				return nil, err
			}
			c.logger.Warn("theme lookup failed", "batch_start", start, "error", err)
			continue
		}
		tracks = append(tracks, DecodeAnimeThemes(anime, titles)...)
	}

	if len(tracks) > limit {
		tracks = tracks[:limit]
	}
	return tracks, nil
}

// WatchList returns the anime on a user's completed, current and repeating lists.
func (c *CatalogService) WatchList(ctx context.Context, user string) ([]AniListMedia, error) {
	req := anilistRequest{Query: anilistWatchListQuery, Variables: map[string]any{"userName": user}}

	var resp anilistResponse
	if err := c.anilist.Post(ctx, "", req, &resp); err != nil {
		if IsStatus(err, 404) {
			return nil, fmt.Errorf("%w: anilist user %q", shared.ErrInvalidInput, user)
		}
		return nil, err
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("%w: anilist: %s", shared.ErrAPIRequest, resp.Errors[0].Message)
	}
	if resp.Data.MediaListCollection == nil {
		return nil, nil
	}

	var out []AniListMedia
	for _, list := range resp.Data.MediaListCollection.Lists {
		for _, e := range list.Entries {
			if e.Media.ID != 0 {
				out = append(out, e.Media)
			}
		}
	}
	return out, nil
}

// Themes looks up the themes of shows by AniList id.
func (c *CatalogService) Themes(ctx context.Context, anilistIDs []int) ([]AnimeThemesAnime, error) {
	if len(anilistIDs) == 0 {
		return nil, nil
	}
	ids := make([]string, len(anilistIDs))
	for i, id := range anilistIDs {
		ids[i] = strconv.Itoa(id)
	}

	params := url.Values{
		"filter[has]":         {"resources"},
		"filter[site]":        {"AniList"},
		"filter[external_id]": {strings.Join(ids, ",")},
		"include":             {"resources,animethemes.song.artists,animethemes.animethemeentries.videos"},
		"page[size]":          {strconv.Itoa(animeThemesBatch)},
	}

	var resp animeThemesResponse
	if err := c.themes.Get(ctx, "/anime", params, &resp); err != nil {
		return nil, err
	}
	return resp.Anime, nil
}

// DecodeAnimeThemes converts shows into catalog tracks, one per theme that has a video.
//
// titles maps AniList ids to the titles used as answer aliases.
func DecodeAnimeThemes(anime []AnimeThemesAnime, titles map[int]AniListTitle) []models.CatalogTrack {
	var out []models.CatalogTrack
	for _, a := range anime {
		var aliases []string
		for _, r := range a.Resources {
			if strings.EqualFold(r.Site, "AniList") {
				t := titles[r.ExternalID]
				aliases = appendDistinct(aliases, a.Name, t.English, t.Romaji, t.Native)
			}
		}

		for _, theme := range a.Themes {
			video, ok := firstVideo(theme)
			if !ok {
				continue
			}

			title := strings.TrimSpace(a.Name + " " + theme.Slug)
			var artists []string
			if theme.Song != nil {
				if s := strings.TrimSpace(theme.Song.Title); s != "" {
					title = s
				}
				for _, artist := range theme.Song.Artists {
					if n := strings.TrimSpace(artist.Name); n != "" {
						artists = append(artists, n)
					}
				}
			}

			out = append(out, models.CatalogTrack{
				Provider:  models.ProviderAnimeThemes,
				SourceID:  strings.TrimSuffix(video.Basename, path.Ext(video.Basename)),
				Title:     title,
				Artist:    strings.Join(artists, ", "),
				SourceURL: video.Link,
				Answer: &models.TrackAnswer{
					Canonical: a.Name,
					Aliases:   aliases,
					Mode:      models.AnswerModeAnime,
				},
			})
		}
	}
	return out
}

func firstVideo(theme AnimeThemesTheme) (AnimeThemesVideo, bool) {
	for _, e := range theme.Entries {
		for _, v := range e.Videos {
			if v.Link != "" && v.Basename != "" {
				return v, true
			}
		}
	}
	return AnimeThemesVideo{}, false
}

// appendDistinct appends the non-blank values of vs not already present in list, compared case-insensitively.
// The canonical name itself is never added.
func appendDistinct(list []string, canonical string, vs ...string) []string {
	seen := map[string]bool{strings.ToLower(strings.TrimSpace(canonical)): true}
	for _, v := range list {
		seen[strings.ToLower(v)] = true
	}
	for _, v := range vs {
		v = strings.TrimSpace(v)
		if v == "" || seen[strings.ToLower(v)] {
			continue
		}
		seen[strings.ToLower(v)] = true
		list = append(list, v)
	}
	return list
}
