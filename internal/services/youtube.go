// YouTube Data API video search
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/desertthunder/trackpool/internal/models"
	"github.com/desertthunder/trackpool/internal/shared"
)

const (
	youtubeBaseURL   = "https://www.googleapis.com/youtube/v3"
	youtubeWatchURL  = "https://www.youtube.com/watch?v="
	youtubeMaxResult = 50
)

// YouTubeSearchItem is one result of search.list.
type YouTubeSearchItem struct {
	ID struct {
		Kind    string `json:"kind"`
		VideoID string `json:"videoId"`
	} `json:"id"`
	Snippet struct {
		Title        string `json:"title"`
		ChannelTitle string `json:"channelTitle"`
	} `json:"snippet"`
}

type youtubeSearchResponse struct {
	Items []YouTubeSearchItem `json:"items"`
}

// youtubeErrorBody is the error envelope of the Data API.
type youtubeErrorBody struct {
	Error struct {
		Code   int `json:"code"`
		Errors []struct {
			Reason string `json:"reason"`
		} `json:"errors"`
	} `json:"error"`
}

// YouTubeService searches embeddable videos through the YouTube Data API.
//
// Calls are paced by a [rate.Limiter]. Without an API key every search returns no results and a warning is logged once.
type YouTubeService struct {
	api        *APIService
	apiKey     string
	regionCode string
	limiter    *rate.Limiter
	logger     *log.Logger
	warnOnce   sync.Once
}

// NewYouTubeService creates a search client from the [credentials.youtube] config section.
func NewYouTubeService(cfg shared.YouTubeConfig, opts Options) *YouTubeService {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = youtubeBaseURL
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	opts = opts.withDefaults()
	return &YouTubeService{
		api:        NewAPIService(models.ProviderYouTube, baseURL, opts),
		apiKey:     strings.TrimSpace(cfg.APIKey),
		regionCode: cfg.RegionCode,
		limiter:    rate.NewLimiter(limit, 1),
		logger:     shared.WithLogger(opts.Logger, "service", models.ProviderYouTube),
	}
}

// Name returns the service name.
func (y *YouTubeService) Name() string {
	return models.ProviderYouTube
}

// Search returns up to limit embeddable videos for query.
//
// Quota exhaustion is reported as [shared.ErrRateLimited].
func (y *YouTubeService) Search(ctx context.Context, query string, limit int) ([]models.VideoCandidate, error) {
	query = strings.TrimSpace(query)
	if query == "" || limit <= 0 {
		return nil, nil
	}
	if y.apiKey == "" {
		y.warnOnce.Do(func() {
			y.logger.Warn("youtube api key missing, video search disabled")
		})
		return nil, nil
	}

	if err := y.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{
		"part":            {"snippet"},
		"type":            {"video"},
		"videoEmbeddable": {"true"},
		"maxResults":      {strconv.Itoa(min(limit, youtubeMaxResult))},
		"q":               {query},
		"key":             {y.apiKey},
	}
	if y.regionCode != "" {
		params.Set("regionCode", y.regionCode)
	}

	var resp youtubeSearchResponse
	if err := y.api.Get(ctx, "/search", params, &resp); err != nil {
		return nil, quotaError(err)
	}
	return DecodeYouTubeSearch(resp.Items), nil
}

// quotaError converts a 403 quota response into a rate limit.
func quotaError(err error) error {
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != 403 {
		return err
	}

	var body youtubeErrorBody
	if json.Unmarshal([]byte(se.Body), &body) != nil {
		return err
	}
	for _, e := range body.Error.Errors {
		switch e.Reason {
		case "quotaExceeded", "rateLimitExceeded", "userRateLimitExceeded", "dailyLimitExceeded":
			return fmt.Errorf("%w: %s", &shared.RateLimitError{Service: models.ProviderYouTube}, e.Reason)
		}
	}
	return err
}

// DecodeYouTubeSearch converts search items into candidates, dropping non-video results.
func DecodeYouTubeSearch(items []YouTubeSearchItem) []models.VideoCandidate {
	out := make([]models.VideoCandidate, 0, len(items))
	for _, it := range items {
		if it.ID.VideoID == "" {
			continue
		}
		out = append(out, models.VideoCandidate{
			ID:           it.ID.VideoID,
			Title:        html.UnescapeString(it.Snippet.Title),
			ChannelTitle: html.UnescapeString(it.Snippet.ChannelTitle),
			SourceURL:    WatchURL(it.ID.VideoID),
		})
	}
	return out
}

// WatchURL returns the canonical watch URL of a video.
func WatchURL(videoID string) string {
	return youtubeWatchURL + videoID
}

// YouTubeVideoID extracts the video id from watch, short, embed and youtu.be URLs. Returns "" for anything else.
func YouTubeVideoID(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return ""
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")

	var id string
	switch host {
	case "youtu.be":
		id = segments[0]
	case "youtube.com", "music.youtube.com", "youtube-nocookie.com":
		switch {
		case u.Path == "/watch":
			id = u.Query().Get("v")
		case len(segments) >= 2 && (segments[0] == "embed" || segments[0] == "shorts" || segments[0] == "live" || segments[0] == "v"):
			id = segments[1]
		}
	}

	if !IsVideoID(id) {
		return ""
	}
	return id
}

// IsVideoID reports whether id has the shape of a YouTube video id.
func IsVideoID(id string) bool {
	if len(id) != 11 {
		return false
	}
	for _, r := range id {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_') {
			return false
		}
	}
	return true
}
