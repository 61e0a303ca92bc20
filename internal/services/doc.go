// Package services implements the external collaborators of the resolution engine.
//
// # Catalog Providers
//
// Each provider turns a [models.SourceDescriptor] into normalized [models.CatalogTrack] values:
//   - [DeezerService] : charts, playlists and track search over the public Deezer API
//   - [SpotifyService] : playlists and track search using the client credentials grant
//   - [CatalogService] : AniList watch lists resolved to AnimeThemes videos
//
// Provider JSON never leaves this package: every provider has a dedicated decoder function
// ([DecodeDeezerTracks], [DecodeSpotifyTracks], [DecodeAnimeThemes]).
//
// # Video Search
//
// [YouTubeService] searches embeddable videos through the YouTube Data API, paced by a rate limiter.
//
// # Error Handling
//
// All clients share [APIService], which applies a per-attempt timeout and retries network errors and 5xx
// responses with exponential backoff. Errors use the sentinels from the shared package:
//   - [shared.ErrRateLimited] : 429 responses and provider quota errors, never retried
//   - [shared.ErrMissingCredentials] : missing or rejected credentials
//   - [shared.ErrPlaylistNotFound] : unknown playlist ids
//   - [shared.ErrAPIRequest] : other 4xx responses and undecodable bodies
//   - [shared.ErrServiceUnavailable] : 5xx responses after the last retry
package services
