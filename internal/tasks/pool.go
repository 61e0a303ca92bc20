package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/trackpool/internal/matching"
	"github.com/desertthunder/trackpool/internal/models"
	"github.com/desertthunder/trackpool/internal/services"
	"github.com/desertthunder/trackpool/internal/shared"
	"github.com/desertthunder/trackpool/internal/sources"
)

const (
	MinFetchSize = 24
	MaxFetchSize = 120
	// MaxFillQueries bounds the free-text top-up queries of one pool.
	MaxFillQueries = 3
)

// PoolRequest asks for a pool of playable tracks drawn from a raw source query.
type PoolRequest struct {
	SourceQuery string                `json:"sourceQuery"`
	Size        int                   `json:"size"`
	Progress    chan<- ProgressUpdate `json:"-"`
}

// PoolAssembler turns a source query into a pool of resolved tracks.
type PoolAssembler struct {
	resolver       *Resolver
	searcher       VideoSearcher
	sources        map[string]TrackSource
	searchProvider string
	searchLimit    int
	logger         *log.Logger
	shuffle        func([]models.CatalogTrack)
}

// NewPoolAssembler registers each source under its Name. Free-text sources are fetched from searchProvider.
func NewPoolAssembler(resolver *Resolver, searcher VideoSearcher, searchProvider string, logger *log.Logger, srcs ...TrackSource) *PoolAssembler {
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}
	if searchProvider == "" {
		searchProvider = models.ProviderDeezer
	}
	registry := make(map[string]TrackSource, len(srcs))
	for _, s := range srcs {
		if s != nil {
			registry[s.Name()] = s
		}
	}
	return &PoolAssembler{
		resolver:       resolver,
		searcher:       searcher,
		sources:        registry,
		searchProvider: searchProvider,
		searchLimit:    resolver.opts.SearchLimit,
		logger:         shared.WithLogger(logger, "component", "pool"),
		shuffle: func(ts []models.CatalogTrack) {
			rand.Shuffle(len(ts), func(i, j int) { ts[i], ts[j] = ts[j], ts[i] })
		},
	}
}

// FetchSize is how many raw tracks to request from a provider for a pool of size.
func FetchSize(size int) int {
	return min(MaxFetchSize, max(MinFetchSize, size*2))
}

// Source returns the provider serving desc.
func (p *PoolAssembler) Source(desc models.SourceDescriptor) (TrackSource, error) {
	var name string
	switch d := desc.(type) {
	case models.SearchSource:
		name = p.searchProvider
	case models.PlaylistSource:
		name = d.Provider
	case models.ChartSource:
		name = d.Provider
	case models.CatalogUsersSource:
		name = models.ProviderAnimeThemes
	default:
		return nil, fmt.Errorf("%w: %v", shared.ErrUnsupportedSource, desc)
	}

	src, ok := p.sources[name]
	if !ok {
		return nil, fmt.Errorf("%w: no %s provider configured for %s", shared.ErrUnsupportedSource, name, desc)
	}
	return src, nil
}

// ResolveTrackPoolFromSource parses req.SourceQuery, fetches raw tracks from the matching provider and resolves them
// to at most req.Size playable tracks.
//
// A playlist, chart or catalog source that yields nothing produces an empty pool; only free-text searches are topped
// up with direct video search. Rate limiting from any collaborator is returned as an error wrapping
// [shared.ErrRateLimited], together with whatever tracks resolved before it; every other provider failure degrades to
// fewer tracks.
func (p *PoolAssembler) ResolveTrackPoolFromSource(ctx context.Context, req PoolRequest) ([]models.ResolvedTrack, error) {
	if req.Size <= 0 {
		return nil, fmt.Errorf("%w: size must be positive, got %d", shared.ErrInvalidArgument, req.Size)
	}

	desc := sources.Parse(req.SourceQuery)
	sendProgress(req.Progress, parseSourceUpdate(desc))

	raw, err := p.fetch(ctx, desc, FetchSize(req.Size), req.Progress)
	if err != nil {
		return nil, err
	}

	fillQuery := ""
	if search, ok := desc.(models.SearchSource); ok {
		fillQuery = search.Query
	} else if len(raw) == 0 {
		p.logger.Info("source returned no tracks", "source", desc.String())
		sendProgress(req.Progress, completeUpdate(0, req.Size))
		return []models.ResolvedTrack{}, nil
	}

	p.shuffle(raw)
	sort.SliceStable(raw, func(i, j int) bool {
		return raw[i].HasPreview() && !raw[j].HasPreview()
	})

	return p.assemble(ctx, raw, req.Size, fillQuery, req.Progress)
}

// ResolveTracksToPlayable resolves a pre-fetched pool, such as tracks contributed by players.
//
// A non-empty fillQuery enables the free-text top-up when too few tracks resolve.
func (p *PoolAssembler) ResolveTracksToPlayable(ctx context.Context, tracks []models.CatalogTrack, size int, fillQuery string) ([]models.ResolvedTrack, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: size must be positive, got %d", shared.ErrInvalidArgument, size)
	}
	return p.assemble(ctx, tracks, size, strings.TrimSpace(fillQuery), nil)
}

func (p *PoolAssembler) fetch(ctx context.Context, desc models.SourceDescriptor, limit int, progress chan<- ProgressUpdate) ([]models.CatalogTrack, error) {
	src, err := p.Source(desc)
	if err != nil {
		p.logger.Warn("no provider for source", "source", desc.String(), "err", err)
		return nil, nil
	}

	sendProgress(progress, fetchSourceUpdate(src.Name(), limit))
	tracks, err := src.FetchTracks(ctx, desc, limit)
	if err != nil {
		if errors.Is(err, shared.ErrRateLimited) {
			return nil, err
		}
		p.logger.Warn("provider fetch failed", "provider", src.Name(), "source", desc.String(), "err", err)
		return nil, nil
	}
	sendProgress(progress, fetchedSourceUpdate(src.Name(), len(tracks)))
	return tracks, nil
}

func (p *PoolAssembler) assemble(ctx context.Context, tracks []models.CatalogTrack, size int, fillQuery string, progress chan<- ProgressUpdate) ([]models.ResolvedTrack, error) {
	kept := matching.FilterJunk(tracks)
	sendProgress(progress, filterJunkUpdate(len(kept), len(tracks)))

	pool, stats := p.resolver.Resolve(ctx, kept, ResolveOpts{Size: size, Progress: progress})
	if pool == nil {
		pool = []models.ResolvedTrack{}
	}

	limited := stats.RateLimit
	if len(pool) < size && fillQuery != "" && limited == nil {
		filled, err := p.queryFill(ctx, fillQuery, pool, size, progress)
		switch {
		case err == nil:
		case errors.Is(err, shared.ErrRateLimited):
			limited = err
		case len(filled) == 0:
			return nil, err
		default:
			p.logger.Warn("query fill stopped", "query", fillQuery, "err", err)
		}
		pool = filled
	}

	if limited != nil {
		p.logger.Warn("video search rate limited",
			"resolved", len(pool), "size", size, "retry_after", shared.RetryAfter(limited), "err", limited)
		if len(pool) == 0 {
			return nil, limited
		}
	}

	sendProgress(progress, completeUpdate(len(pool), size))
	return pool, limited
}

// queryFill tops pool up with videos found by broad free-text queries, skipping ads, off-version uploads and anything
// already in the pool.
func (p *PoolAssembler) queryFill(ctx context.Context, query string, pool []models.ResolvedTrack, size int, progress chan<- ProgressUpdate) ([]models.ResolvedTrack, error) {
	if p.searcher == nil {
		return pool, nil
	}

	seenID := make(map[string]bool, len(pool))
	seenSig := make(map[string]bool, len(pool))
	for _, rt := range pool {
		seenID[rt.ID] = true
		seenSig[matching.Signature(rt.Title, rt.Artist)] = true
	}

	queries := FillQueries(query)
	for i, q := range queries {
		if len(pool) >= size {
			break
		}
		sendProgress(progress, queryFillUpdate(i+1, len(queries), q))

		candidates, err := p.searcher.Search(ctx, q, p.searchLimit)
		if err != nil {
			if errors.Is(err, shared.ErrRateLimited) || ctx.Err() != nil {
				return pool, err
			}
			p.logger.Warn("query fill search failed", "query", q, "err", err)
			continue
		}

		for _, c := range candidates {
			if len(pool) >= size {
				break
			}
			if c.ID == "" || seenID[c.ID] || matching.IsJunkCandidate(c) || matching.IsOffVersion(c.Title) {
				continue
			}
			title, artist := matching.SplitVideoTitle(c.Title, c.ChannelTitle)
			sig := matching.Signature(title, artist)
			if seenSig[sig] || matching.IsJunk(title, artist) {
				continue
			}
			seenID[c.ID] = true
			seenSig[sig] = true
			pool = append(pool, models.ResolvedTrack{
				Provider:  models.ProviderYouTube,
				ID:        c.ID,
				Title:     title,
				Artist:    artist,
				SourceURL: services.WatchURL(c.ID),
			})
		}
	}
	return pool, nil
}

// FillQueries returns the distinct top-up queries for a free-text source.
func FillQueries(query string) []string {
	query = strings.Join(strings.Fields(query), " ")
	if query == "" {
		return nil
	}
	candidates := []string{query, query + " official video", query + " official audio"}

	seen := make(map[string]bool, len(candidates))
	out := make([]string, 0, len(candidates))
	for _, q := range candidates {
		key := strings.ToLower(q)
		if seen[key] || len(out) == MaxFillQueries {
			continue
		}
		seen[key] = true
		out = append(out, q)
	}
	return out
}
