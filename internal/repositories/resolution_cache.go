package repositories

import (
	"context"
	"errors"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/trackpool/internal/models"
	"github.com/desertthunder/trackpool/internal/shared"
)

// ResolutionCacheAdapter implements tasks.DurableCache using ResolutionRepository.
//
// Store failures are logged and swallowed: the resolver treats an unavailable store as a permanent cache miss.
// A nil repository behaves the same way.
type ResolutionCacheAdapter struct {
	repo   *ResolutionRepository
	logger *log.Logger
}

// NewResolutionCacheAdapter creates a new ResolutionCacheAdapter with the given repository
func NewResolutionCacheAdapter(repo *ResolutionRepository, logger *log.Logger) *ResolutionCacheAdapter {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &ResolutionCacheAdapter{repo: repo, logger: shared.WithLogger(logger, "component", "durable-cache")}
}

// Lookup returns the stored resolution for a catalog track when it points at a video.
//
// Records without a video id are misses.
func (a *ResolutionCacheAdapter) Lookup(ctx context.Context, provider, sourceID string) (*models.Resolution, bool) {
	if a == nil || a.repo == nil || provider == "" || sourceID == "" {
		return nil, false
	}

	res, err := a.repo.Get(ctx, provider, sourceID)
	if err != nil {
		if !errors.Is(err, shared.ErrTrackNotFound) {
			a.logger.Warn("durable lookup failed", "provider", provider, "source_id", sourceID, "error", err)
		}
		return nil, false
	}

	if !res.Resolved() {
		return nil, false
	}
	return res, true
}

// Store records a resolution attempt.
func (a *ResolutionCacheAdapter) Store(ctx context.Context, res models.Resolution) {
	if a == nil || a.repo == nil || res.Provider == "" || res.SourceID == "" {
		return
	}

	if err := a.repo.Upsert(ctx, &res); err != nil {
		a.logger.Warn("durable write failed",
			"provider", res.Provider, "source_id", res.SourceID,
			"title", res.Title, "artist", res.Artist, "error", err)
	}
}
