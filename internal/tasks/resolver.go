package tasks

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/desertthunder/trackpool/internal/cache"
	"github.com/desertthunder/trackpool/internal/matching"
	"github.com/desertthunder/trackpool/internal/models"
	"github.com/desertthunder/trackpool/internal/services"
	"github.com/desertthunder/trackpool/internal/shared"
)

const (
	DefaultWorkers     = 4
	DefaultSearchLimit = 8
	// MaxResolveBudget is the upper clamp of [ResolveBudget].
	MaxResolveBudget = 48
)

var errNoMatch = errors.New("no acceptable candidate")

// TrackSource is a catalog provider.
//
// Implementations apply their own timeout and retry, and return errors wrapping [shared.ErrRateLimited] when the
// provider throttles.
type TrackSource interface {
	Name() string
	FetchTracks(ctx context.Context, desc models.SourceDescriptor, limit int) ([]models.CatalogTrack, error)
}

// VideoSearcher finds video candidates for a free-text query.
type VideoSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]models.VideoCandidate, error)
}

// DurableCache is the persistent tier of the resolution cache.
//
// Both methods must tolerate an unavailable store: failures behave as a miss.
type DurableCache interface {
	Lookup(ctx context.Context, provider, sourceID string) (*models.Resolution, bool)
	Store(ctx context.Context, res models.Resolution)
}

// ResolverOptions tunes a [Resolver]. Zero values use the package defaults.
type ResolverOptions struct {
	Workers     int
	SearchLimit int
	MaxBudget   int
}

// ResolveOpts configures a single [Resolver.Resolve] batch.
type ResolveOpts struct {
	Size      int                   // Number of resolved tracks wanted
	Remaining int                   // Tracks still missing from the caller's pool, defaults to Size
	Budget    int                   // Explicit cap on tracks reaching search, overrides the computed budget
	Progress  chan<- ProgressUpdate // Optional, never blocks
}

// ResolveStats counts what happened to the tracks of one batch.
type ResolveStats struct {
	Budget          int
	Attempted       int // Tracks that reached external search
	Resolved        int // Tracks returned to the caller
	AlreadyPlayable int
	DurableHits     int
	CacheHits       int
	SearchResolved  int
	Failed          int // Searched without an acceptable candidate
	Skipped         int // Left unresolved because the budget ran out or searching was halted
	Duplicates      int
	SearchCalls     int
	EmptyQueries    int
	FailedQueries   int
	RateLimit       error // Set when a search was throttled; searching stopped for the rest of the batch
}

// Resolver binds catalog tracks to playable videos.
//
// One Resolver is shared by every request of a process: concurrent searches for the same signature are collapsed
// into a single flight. A batch whose own context is live never loses a track to another batch's cancellation.
type Resolver struct {
	searcher VideoSearcher
	memory   *cache.MemoryCache
	durable  DurableCache
	logger   *log.Logger
	opts     ResolverOptions
	flights  singleflight.Group
}

// NewResolver creates a Resolver. memory defaults to a fresh [cache.MemoryCache]; durable and logger may be nil.
func NewResolver(searcher VideoSearcher, memory *cache.MemoryCache, durable DurableCache, logger *log.Logger, opts ResolverOptions) *Resolver {
	if memory == nil {
		memory = cache.NewMemoryCache(cache.DefaultTTL)
	}
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = DefaultSearchLimit
	}
	if opts.MaxBudget <= 0 {
		opts.MaxBudget = MaxResolveBudget
	}
	return &Resolver{
		searcher: searcher,
		memory:   memory,
		durable:  durable,
		logger:   shared.WithLogger(logger, "component", "resolver"),
		opts:     opts,
	}
}

// Memory returns the volatile cache tier.
func (r *Resolver) Memory() *cache.MemoryCache {
	return r.memory
}

// ResolveBudget is the default number of tracks a batch may send to external search:
// max(size*2, remaining*4) clamped to [1, MaxResolveBudget].
func ResolveBudget(size, remaining int) int {
	return clampBudget(max(size*2, remaining*4), MaxResolveBudget)
}

func clampBudget(b, ceiling int) int {
	return min(max(b, 1), ceiling)
}

func (r *Resolver) budget(opts ResolveOpts) int {
	if opts.Budget > 0 {
		return opts.Budget
	}
	remaining := opts.Remaining
	if remaining <= 0 {
		remaining = opts.Size
	}
	return clampBudget(max(opts.Size*2, remaining*4), r.opts.MaxBudget)
}

type resolveJob struct {
	step  int
	track models.CatalogTrack
}

type resolveResult struct {
	track    models.ResolvedTrack
	resolved bool
}

// batch holds the shared state of one Resolve call.
type batch struct {
	budget   int
	total    int
	progress chan<- ProgressUpdate

	mu       sync.Mutex
	stats    ResolveStats
	searched int
}

func (b *batch) record(fn func(*ResolveStats)) {
	b.mu.Lock()
	fn(&b.stats)
	b.mu.Unlock()
}

// reserve claims one unit of search budget.
func (b *batch) reserve() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stats.RateLimit != nil || b.searched >= b.budget {
		b.stats.Skipped++
		return false
	}
	b.searched++
	b.stats.Attempted++
	return true
}

func (b *batch) halt(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stats.RateLimit == nil {
		b.stats.RateLimit = err
	}
}

func (b *batch) halted() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats.RateLimit
}

func (b *batch) snapshot() ResolveStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

// Resolve binds up to opts.Size of tracks to playable videos.
//
// Tracks are deduplicated by signature and handed to a fixed worker pool. Each worker checks, in order, whether the
// track is already playable, the durable tier, the volatile tier, and finally runs the query plan against video
// search while budget remains. The batch stops as soon as opts.Size tracks are resolved. Output is in completion
// order. A failed search is never cached as a negative.
func (r *Resolver) Resolve(ctx context.Context, tracks []models.CatalogTrack, opts ResolveOpts) ([]models.ResolvedTrack, ResolveStats) {
	if opts.Size <= 0 || len(tracks) == 0 {
		return nil, ResolveStats{}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	unique, dupes := dedupeTracks(tracks)
	b := &batch{budget: r.budget(opts), total: len(unique), progress: opts.Progress}
	b.stats.Budget = b.budget
	b.stats.Duplicates = dupes

	jobs := make(chan resolveJob)
	results := make(chan resolveResult, r.opts.Workers)

	var wg sync.WaitGroup
	for i := 0; i < r.opts.Workers; i++ {
		wg.Add(1)
		go r.resolveWorker(ctx, &wg, b, jobs, results)
	}

	go func() {
		defer close(jobs)
		for i, t := range unique {
			select {
			case <-ctx.Done():
				return
			case jobs <- resolveJob{step: i + 1, track: t}:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	out := make([]models.ResolvedTrack, 0, opts.Size)
	for res := range results {
		if !res.resolved || len(out) >= opts.Size {
			continue
		}
		out = append(out, res.track)
		sendProgress(opts.Progress, resolvedTrackUpdate(len(out), opts.Size, res.track))
		if len(out) >= opts.Size {
			cancel()
		}
	}

	stats := b.snapshot()
	stats.Resolved = len(out)
	r.logger.Debug("batch resolved",
		"size", opts.Size, "tracks", len(unique), "resolved", stats.Resolved, "budget", stats.Budget,
		"attempted", stats.Attempted, "failed", stats.Failed, "search_calls", stats.SearchCalls,
		"empty_queries", stats.EmptyQueries, "failed_queries", stats.FailedQueries)
	return out, stats
}

// resolveWorker drains the jobs channel until it is closed or the batch is cancelled.
func (r *Resolver) resolveWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	b *batch,
	jobs <-chan resolveJob,
	results chan<- resolveResult,
) {
	defer wg.Done()

	for job := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}

		sendProgress(b.progress, resolveTrackUpdate(job.step, b.total, job.track))
		rt, ok := r.resolveOne(ctx, b, job.track)
		results <- resolveResult{track: rt, resolved: ok}
	}
}

func (r *Resolver) resolveOne(ctx context.Context, b *batch, t models.CatalogTrack) (models.ResolvedTrack, bool) {
	if rt, ok := Playable(t); ok {
		b.record(func(s *ResolveStats) { s.AlreadyPlayable++ })
		return rt, true
	}

	sig := matching.Signature(t.Title, t.Artist)

	if r.durable != nil && t.SourceID != "" {
		if rec, ok := r.durable.Lookup(ctx, t.Provider, t.SourceID); ok {
			rt := bindVideo(t, rec.VideoID)
			if rt.DurationSec == 0 && rec.DurationMs > 0 {
				rt.DurationSec = int(rec.DurationMs / 1000)
			}
			r.memory.Set(sig, rt)
			b.record(func(s *ResolveStats) { s.DurableHits++ })
			return rt, true
		}
	}

	if cached, ok := r.memory.Get(sig); ok {
		rt := bindVideo(t, cached.ID)
		if rt.DurationSec == 0 {
			rt.DurationSec = cached.DurationSec
		}
		b.record(func(s *ResolveStats) { s.CacheHits++ })
		return rt, true
	}

	if r.searcher == nil || !b.reserve() {
		return models.ResolvedTrack{}, false
	}

	rt, err := r.searchShared(ctx, b, t, sig)
	if err != nil {
		switch {
		case errors.Is(err, shared.ErrRateLimited):
			b.halt(err)
		case ctx.Err() != nil:
		default:
			b.record(func(s *ResolveStats) { s.Failed++ })
		}
		return models.ResolvedTrack{}, false
	}

	b.record(func(s *ResolveStats) { s.SearchResolved++ })
	return bindVideo(t, rt.ID), true
}

// searchShared joins the in-flight search for sig, or leads one. The leader searches under its own batch context, so a
// flight cut short by another batch stopping is searched again once under ctx.
func (r *Resolver) searchShared(ctx context.Context, b *batch, t models.CatalogTrack, sig string) (models.ResolvedTrack, error) {
	var (
		v   any
		err error
	)
	for attempt := 0; attempt < 2; attempt++ {
		v, err, _ = r.flights.Do(sig, func() (any, error) {
			return r.searchAndStore(ctx, b, t, sig)
		})
		if err == nil || !isCancellation(err) || ctx.Err() != nil {
			break
		}
		r.logger.Debug("shared search cancelled by another batch, retrying", "title", t.Title, "artist", t.Artist)
	}
	if err != nil {
		return models.ResolvedTrack{}, err
	}
	return v.(models.ResolvedTrack), nil
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// searchAndStore runs the query plan and writes the outcome to both tiers.
//
// Misses are written to the durable tier as attempt rows without a video, which never short-circuit a later search.
func (r *Resolver) searchAndStore(ctx context.Context, b *batch, t models.CatalogTrack, sig string) (models.ResolvedTrack, error) {
	winner, err := r.search(ctx, b, t)
	switch {
	case err == nil:
		rt := bindVideo(t, winner.Candidate.ID)
		r.memory.Set(sig, rt)
		r.store(ctx, t, winner.Candidate.ID)
		r.logger.Debug("track resolved",
			"title", t.Title, "artist", t.Artist, "video_id", winner.Candidate.ID,
			"video_title", winner.Candidate.Title, "channel", winner.Candidate.ChannelTitle, "score", winner.Score)
		return rt, nil
	case errors.Is(err, errNoMatch):
		r.store(ctx, t, "")
		stats := b.snapshot()
		r.logger.Info("no acceptable video",
			"title", t.Title, "artist", t.Artist, "attempted", stats.Attempted,
			"empty_queries", stats.EmptyQueries, "failed_queries", stats.FailedQueries)
		return models.ResolvedTrack{}, err
	default:
		return models.ResolvedTrack{}, err
	}
}

// search tries each query group of the plan in order. The first group yielding an acceptable candidate wins; an
// artist-channel winner ends its group early.
func (r *Resolver) search(ctx context.Context, b *batch, t models.CatalogTrack) (models.ScoredCandidate, error) {
	for _, group := range matching.Plan(t) {
		var (
			scored []models.ScoredCandidate
			winner models.ScoredCandidate
			found  bool
		)
		seen := make(map[string]bool)

		for _, query := range group.Queries {
			if err := b.halted(); err != nil {
				return models.ScoredCandidate{}, err
			}
			if err := ctx.Err(); err != nil {
				return models.ScoredCandidate{}, err
			}

			b.record(func(s *ResolveStats) { s.SearchCalls++ })
			candidates, err := r.searcher.Search(ctx, query, r.opts.SearchLimit)
			if err != nil {
				if errors.Is(err, shared.ErrRateLimited) || ctx.Err() != nil {
					return models.ScoredCandidate{}, err
				}
				b.record(func(s *ResolveStats) { s.FailedQueries++ })
				r.logger.Warn("video search failed", "query", query, "title", t.Title, "artist", t.Artist, "err", err)
				continue
			}
			if len(candidates) == 0 {
				b.record(func(s *ResolveStats) { s.EmptyQueries++ })
				continue
			}

			for _, c := range candidates {
				if c.ID == "" || seen[c.ID] || matching.IsJunkCandidate(c) {
					continue
				}
				seen[c.ID] = true
				scored = append(scored, matching.Score(c, t))
			}

			winner, found = matching.Select(scored, group.Intent)
			if found && winner.ArtistChannelMatch {
				break
			}
		}

		if found {
			return winner, nil
		}
	}
	return models.ScoredCandidate{}, errNoMatch
}

// store upserts a durable attempt row. It outlives batch cancellation so early stop never drops a write.
func (r *Resolver) store(ctx context.Context, t models.CatalogTrack, videoID string) {
	if r.durable == nil || t.SourceID == "" || t.Provider == "" {
		return
	}
	r.durable.Store(context.WithoutCancel(ctx), models.Resolution{
		Provider:   t.Provider,
		SourceID:   t.SourceID,
		Title:      t.Title,
		Artist:     t.Artist,
		VideoID:    videoID,
		DurationMs: int64(t.DurationSec) * 1000,
	})
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Playable returns the track as-is when its provider already serves playable media: a YouTube track with a video id,
// or an AnimeThemes track with a video link.
func Playable(t models.CatalogTrack) (models.ResolvedTrack, bool) {
	switch t.Provider {
	case models.ProviderYouTube:
		id := services.YouTubeVideoID(t.SourceURL)
		if id == "" && services.IsVideoID(t.SourceID) {
			id = t.SourceID
		}
		if id == "" {
			return models.ResolvedTrack{}, false
		}
		return bindVideo(t, id), true
	case models.ProviderAnimeThemes:
		link := strings.TrimSpace(t.SourceURL)
		if link == "" {
			return models.ResolvedTrack{}, false
		}
		id := t.SourceID
		if id == "" {
			id = link
		}
		return bind(t, models.ProviderAnimeThemes, id, link), true
	default:
		return models.ResolvedTrack{}, false
	}
}

func bindVideo(t models.CatalogTrack, videoID string) models.ResolvedTrack {
	return bind(t, models.ProviderYouTube, videoID, services.WatchURL(videoID))
}

func bind(t models.CatalogTrack, provider, id, link string) models.ResolvedTrack {
	return models.ResolvedTrack{
		Provider:    provider,
		ID:          id,
		Title:       t.Title,
		Artist:      t.Artist,
		DurationSec: t.DurationSec,
		SourceURL:   link,
		Answer:      t.Answer,
	}
}

// dedupeTracks keeps the first track of each signature. Tracks without a searchable title are kept only when they
// are already playable.
func dedupeTracks(tracks []models.CatalogTrack) ([]models.CatalogTrack, int) {
	seen := make(map[string]bool, len(tracks))
	out := make([]models.CatalogTrack, 0, len(tracks))
	dupes := 0
	for _, t := range tracks {
		key := matching.Signature(t.Title, t.Artist)
		if matching.Normalize(t.Title) == "" {
			if _, ok := Playable(t); !ok {
				continue
			}
			key = t.Provider + "/" + t.SourceID + "/" + t.SourceURL
		}
		if seen[key] {
			dupes++
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	return out, dupes
}
