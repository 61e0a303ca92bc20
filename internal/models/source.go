package models

import (
	"fmt"
	"strings"
)

// SourceKind tags the concrete variant of a [SourceDescriptor].
type SourceKind int

const (
	SourceSearch SourceKind = iota
	SourcePlaylist
	SourceChart
	SourceCatalogUsers
)

func (k SourceKind) String() string {
	switch k {
	case SourceSearch:
		return "search"
	case SourcePlaylist:
		return "provider_playlist"
	case SourceChart:
		return "provider_chart"
	case SourceCatalogUsers:
		return "catalog_users"
	default:
		return "unknown"
	}
}

// SourceDescriptor is the parsed, typed form of a raw source string.
//
// The interface is sealed: only the variants in this package implement it, so a type switch over
// [SearchSource], [PlaylistSource], [ChartSource] and [CatalogUsersSource] is exhaustive.
type SourceDescriptor interface {
	Kind() SourceKind
	String() string
	sourceDescriptor()
}

// SearchSource requests tracks matching a free-text query.
type SearchSource struct {
	Query string `json:"query"`
}

// PlaylistSource requests the tracks of a provider playlist.
type PlaylistSource struct {
	Provider   string `json:"provider"`
	PlaylistID string `json:"playlistId"`
}

// ChartSource requests a provider's chart.
type ChartSource struct {
	Provider string `json:"provider"`
}

// CatalogUsersSource requests theme songs from the watch lists of the given users.
type CatalogUsersSource struct {
	Usernames []string `json:"usernames"`
}

func (SearchSource) Kind() SourceKind       { return SourceSearch }
func (PlaylistSource) Kind() SourceKind     { return SourcePlaylist }
func (ChartSource) Kind() SourceKind        { return SourceChart }
func (CatalogUsersSource) Kind() SourceKind { return SourceCatalogUsers }

func (SearchSource) sourceDescriptor()       {}
func (PlaylistSource) sourceDescriptor()     {}
func (ChartSource) sourceDescriptor()        {}
func (CatalogUsersSource) sourceDescriptor() {}

func (s SearchSource) String() string { return fmt.Sprintf("search(%q)", s.Query) }

func (s PlaylistSource) String() string {
	return fmt.Sprintf("%s:playlist:%s", s.Provider, s.PlaylistID)
}

func (s ChartSource) String() string { return s.Provider + ":chart" }

func (s CatalogUsersSource) String() string {
	return "catalog:users:" + strings.Join(s.Usernames, ",")
}

// AllowsQueryFill reports whether the pool assembler may top up results with broader free-text searches.
//
// Only a request that was itself a free-text search qualifies.
func AllowsQueryFill(d SourceDescriptor) bool {
	_, ok := d.(SearchSource)
	return ok
}
