// Package repositories implements SQLite persistence for durable resolution records.
//
// Key Implementations:
//   - [ResolutionRepository] : CRUD and maintenance queries over the track_resolutions table
//   - [ResolutionCacheAdapter] : the never-fatal durable cache used by the batch resolver
//
// Records are keyed by (provider, source_id). A row with a NULL video_id is an attempt that found nothing; it is kept
// for observability and never treated as a terminal answer.
package repositories
