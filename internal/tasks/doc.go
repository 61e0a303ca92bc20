// Package tasks assembles pools of playable tracks for a guessing round, with real-time progress reporting.
//
// # Core Operations
//
//  1. [PoolAssembler.ResolveTrackPoolFromSource] : raw source query to pool
//     - Parses the query into a source descriptor
//     - Fetches min(120, max(24, size*2)) tracks from the matching provider
//     - Drops ads and jingles, shuffles, and moves tracks with previews first
//     - Resolves through the [Resolver]
//     - Tops up free-text searches with direct video search
//
//  2. [PoolAssembler.ResolveTracksToPlayable] : pre-fetched tracks to pool
//
//  3. [Resolver.Resolve] : bounded worker pool binding catalog tracks to videos
//     - Already-playable tracks pass through
//     - Durable then volatile cache lookups
//     - Query plan against video search, capped by the resolve budget
//
// # Progress Reporting
//
// Operations accept an optional channel of [ProgressUpdate]. Updates use select with default to prevent blocking.
//
// # Errors
//
// Rate limiting is the only failure that reaches the caller, as an error wrapping shared.ErrRateLimited. Every
// other provider or search failure is logged and leaves the pool smaller. Tracks are never invented for a
// playlist, chart or catalog source.
package tasks
