package tasks

import (
	"fmt"

	"github.com/desertthunder/trackpool/internal/models"
)

// ProgressUpdate represents a progress event during pool assembly.
//
// Used to send real-time updates to the CLI or server layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	ParseSource Phase = iota
	FetchSource
	FilterJunk
	ResolveTracks
	QueryFill
	Complete
)

func (p Phase) String() string {
	switch p {
	case ParseSource:
		return "parse_source"
	case FetchSource:
		return "fetch_source"
	case FilterJunk:
		return "filter_junk"
	case ResolveTracks:
		return "resolve_tracks"
	case QueryFill:
		return "query_fill"
	case Complete:
		return "complete"
	default:
		return ""
	}
}

func parseSourceUpdate(desc models.SourceDescriptor) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ParseSource,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Parsed source: %s", desc),
		Data:    desc,
	}
}

func fetchSourceUpdate(provider string, limit int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchSource,
		Step:    0,
		Total:   limit,
		Message: fmt.Sprintf("Fetching up to %d tracks from %s...", limit, provider),
	}
}

func fetchedSourceUpdate(provider string, count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchSource,
		Step:    count,
		Total:   count,
		Message: fmt.Sprintf("Fetched %d tracks from %s", count, provider),
	}
}

func filterJunkUpdate(kept, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FilterJunk,
		Step:    kept,
		Total:   total,
		Message: fmt.Sprintf("Kept %d of %d tracks after filtering", kept, total),
	}
}

func resolveTrackUpdate(step, total int, tr models.CatalogTrack) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ResolveTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s - %s", step, total, tr.Artist, tr.Title),
	}
}

func resolvedTrackUpdate(step, total int, rt models.ResolvedTrack) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ResolveTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s - %s (%s)", step, total, rt.Artist, rt.Title, rt.ID),
		Data:    rt,
	}
}

func queryFillUpdate(step, total int, query string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   QueryFill,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Topping up pool with %q...", step, total, query),
	}
}

func completeUpdate(count, size int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Complete,
		Step:    count,
		Total:   size,
		Message: fmt.Sprintf("Pool ready: %d of %d tracks", count, size),
	}
}
