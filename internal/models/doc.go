// Package models defines the domain types of the track resolution engine.
//
// The package contains three categories of types:
//
// 1. Source descriptors: the typed form of a raw "where do tracks come from" string
//   - [SearchSource] : free-text search
//   - [PlaylistSource] : a streaming provider playlist
//   - [ChartSource] : a provider's top chart
//   - [CatalogUsersSource] : one or more users' anime watch lists
//
// 2. Tracks flowing through the pipeline
//   - [CatalogTrack] : a track as returned by a catalog provider, before resolution
//   - [VideoCandidate] : a single video search result
//   - [ScoredCandidate] : a candidate with its heuristic score
//   - [ResolvedTrack] : a track bound to one playable video, the engine's output unit
//
// 3. Persistent entities
//   - [Resolution] : the durable record of a resolution attempt keyed by (provider, source id)
package models
