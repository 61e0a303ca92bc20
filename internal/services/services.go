// package services implements the HTTP collaborators of the resolution engine
//
// Catalog providers (Deezer, Spotify, AniList + AnimeThemes) and the YouTube video search.
package services

import (
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/trackpool/internal/matching"
	"github.com/desertthunder/trackpool/internal/models"
	"github.com/desertthunder/trackpool/internal/shared"
)

const (
	defaultTimeout   = 8 * time.Second
	defaultRetries   = 2
	defaultRetryWait = 500 * time.Millisecond
	maxErrorBody     = 512
)

// Options holds the HTTP behaviour shared by every client in this package.
type Options struct {
	HTTPClient *http.Client
	Timeout    time.Duration // per attempt
	Retries    int           // extra attempts after the first on network errors and 5xx
	RetryWait  time.Duration // base of the exponential backoff
	Logger     *log.Logger
}

// OptionsFromConfig builds Options from the [providers] config section.
func OptionsFromConfig(cfg *shared.Config, logger *log.Logger) Options {
	return Options{
		Timeout: cfg.ProviderTimeout(),
		Retries: cfg.Providers.Retries,
		Logger:  logger,
	}
}

func (o Options) withDefaults() Options {
	if o.HTTPClient == nil {
		o.HTTPClient = http.DefaultClient
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.Retries < 0 {
		o.Retries = 0
	}
	if o.RetryWait <= 0 {
		o.RetryWait = defaultRetryWait
	}
	if o.Logger == nil {
		o.Logger = shared.NewLogger(nil)
	}
	return o
}

// trackAnswer accepts the catalog title, and the title without brackets or version suffixes when that differs.
func trackAnswer(title string) *models.TrackAnswer {
	if title == "" {
		return nil
	}
	answer := &models.TrackAnswer{Canonical: title, Mode: models.AnswerModeTrack}
	if clean := matching.SanitizeTitle(title); !strings.EqualFold(clean, title) {
		answer.Aliases = []string{clean}
	}
	return answer
}
