package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/trackpool/internal/formatter"
	"github.com/desertthunder/trackpool/internal/models"
	"github.com/desertthunder/trackpool/internal/server"
	"github.com/desertthunder/trackpool/internal/shared"
	"github.com/desertthunder/trackpool/internal/sources"
	"github.com/desertthunder/trackpool/internal/tasks"
	"github.com/desertthunder/trackpool/internal/ui"
)

// SourceParse prints the descriptor a source query parses to.
func (r *Runner) SourceParse(ctx context.Context, cmd *cli.Command) error {
	raw := strings.Join(cmd.Args().Slice(), " ")
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%w: source query", shared.ErrMissingArgument)
	}

	desc := sources.Parse(raw)
	if cmd.Bool("json") {
		return r.writeJSON(server.SourceResponse{
			Raw:             raw,
			Kind:            desc.Kind().String(),
			Description:     desc.String(),
			Descriptor:      desc,
			AllowsQueryFill: models.AllowsQueryFill(desc),
		}, true)
	}

	fill := ui.Failure("no")
	if models.AllowsQueryFill(desc) {
		fill = ui.Success("yes")
	}
	return r.writePlain("%s %s\n%s %s\n%s %s\n",
		ui.Muted("kind:      "), desc.Kind(),
		ui.Muted("source:    "), desc,
		ui.Muted("query fill:"), fill,
	)
}

// Pool resolves a source query into a pool of playable tracks.
func (r *Runner) Pool(ctx context.Context, cmd *cli.Command) error {
	raw := cmd.String("source")
	if raw == "" {
		raw = strings.Join(cmd.Args().Slice(), " ")
	}
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%w: --source or a source query argument", shared.ErrMissingArgument)
	}

	size := int(cmd.Int("size"))
	format := cmd.String("format")
	if err := checkFormat(format); err != nil {
		return err
	}

	r.logger.Info("assembling pool", "source", raw, "size", size)

	progress := make(chan tasks.ProgressUpdate, 64)
	done := r.logProgress(progress)
	pool, err := r.engine().ResolveTrackPoolFromSource(ctx, tasks.PoolRequest{SourceQuery: raw, Size: size, Progress: progress})
	close(progress)
	<-done

	if err != nil && !r.partial(pool, err) {
		return fmt.Errorf("failed to assemble pool: %w", err)
	}
	if emitErr := r.emit(pool, format, cmd.String("output"), sources.Parse(raw).String()); emitErr != nil {
		return emitErr
	}
	return err
}

// Resolve resolves catalog tracks read from --file into playable tracks.
func (r *Runner) Resolve(ctx context.Context, cmd *cli.Command) error {
	format := cmd.String("format")
	if err := checkFormat(format); err != nil {
		return err
	}

	tracks, err := readTracks(cmd.String("file"))
	if err != nil {
		return err
	}

	size := int(cmd.Int("size"))
	r.logger.Info("resolving tracks", "tracks", len(tracks), "size", size)

	pool, err := r.engine().ResolveTracksToPlayable(ctx, tracks, size, cmd.String("fill"))
	if err != nil && !r.partial(pool, err) {
		return fmt.Errorf("failed to resolve tracks: %w", err)
	}
	if emitErr := r.emit(pool, format, cmd.String("output"), "Resolved"); emitErr != nil {
		return emitErr
	}
	return err
}

// partial reports whether err is a rate limit that still left tracks to emit. The rate limit is returned after the
// pool is written so the process exits 2.
func (r *Runner) partial(pool []models.ResolvedTrack, err error) bool {
	if len(pool) == 0 || !errors.Is(err, shared.ErrRateLimited) {
		return false
	}
	r.logger.Warn("rate limited, pool is partial", "tracks", len(pool), "retry_after", shared.RetryAfter(err))
	return true
}

// emit writes the pool in the requested format, to a file when output is set.
func (r *Runner) emit(pool []models.ResolvedTrack, format, output, heading string) error {
	if output != "" {
		if format == formatPretty {
			format = formatter.FormatJSON
		}
		path, err := formatter.WritePoolFile(pool, format, output)
		if err != nil {
			return err
		}
		r.logger.Info("pool written", "path", path, "tracks", len(pool))
		return r.writePlain("%s %d tracks written to %s\n", ui.Success("✓"), len(pool), path)
	}

	if format == formatPretty {
		ui.Pool(r.output, heading, pool)
		return nil
	}
	return formatter.WritePool(r.output, pool, format)
}

// logProgress drains progress updates to the debug log until the channel is closed.
func (r *Runner) logProgress(progress <-chan tasks.ProgressUpdate) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for u := range progress {
			r.logger.Debug(u.Message, "phase", u.Phase, "step", u.Step, "total", u.Total)
		}
	}()
	return done
}

func checkFormat(format string) error {
	if format == formatPretty {
		return nil
	}
	for _, f := range formatter.Formats {
		if strings.EqualFold(format, f) {
			return nil
		}
	}
	return fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, format)
}

func readTracks(path string) ([]models.CatalogTrack, error) {
	var in io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open tracks file: %w", err)
		}
		defer f.Close()
		in = f
	}
	return formatter.ReadTracks(in)
}
