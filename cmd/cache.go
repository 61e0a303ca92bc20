package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/trackpool/internal/formatter"
	"github.com/desertthunder/trackpool/internal/models"
	"github.com/desertthunder/trackpool/internal/shared"
	"github.com/desertthunder/trackpool/internal/ui"
)

// CacheStats summarizes the durable resolution store.
func (r *Runner) CacheStats(ctx context.Context, cmd *cli.Command) error {
	repo, err := r.database()
	if err != nil {
		return err
	}

	stats, err := repo.Stats(ctx)
	if err != nil {
		return err
	}

	// the volatile tier only lives inside `serve`
	ui.Stats(r.output, *stats, -1)
	return nil
}

// CacheList prints resolution records, most recently updated first.
func (r *Runner) CacheList(ctx context.Context, cmd *cli.Command) error {
	if cmd.Bool("resolved") && cmd.Bool("unresolved") {
		return fmt.Errorf("%w: cannot specify both --resolved and --unresolved", shared.ErrInvalidArgument)
	}

	repo, err := r.database()
	if err != nil {
		return err
	}

	criteria := map[string]any{"limit": int(cmd.Int("limit"))}
	if p := cmd.String("provider"); p != "" {
		criteria["provider"] = p
	}
	switch {
	case cmd.Bool("resolved"):
		criteria["resolved"] = true
	case cmd.Bool("unresolved"):
		criteria["resolved"] = false
	}

	records, err := repo.List(ctx, criteria)
	if err != nil {
		return err
	}

	rows := make([]models.Resolution, 0, len(records))
	for _, rec := range records {
		rows = append(rows, *rec)
	}

	if cmd.Bool("json") {
		return r.writeJSON(rows, true)
	}
	return formatter.WriteResolutions(r.output, rows)
}

// CacheClear deletes every durable record and empties the volatile tier.
func (r *Runner) CacheClear(ctx context.Context, cmd *cli.Command) error {
	repo, err := r.database()
	if err != nil {
		return err
	}

	n, err := repo.Clear(ctx)
	if err != nil {
		return err
	}
	r.volatile().Clear()

	r.logger.Info("cache cleared", "removed", n)
	return r.writePlain("%s removed %d records\n", ui.Success("✓"), n)
}

// CachePrune deletes failed attempts that have not been retried within --older-than.
func (r *Runner) CachePrune(ctx context.Context, cmd *cli.Command) error {
	olderThan := cmd.Duration("older-than")
	if olderThan == 0 {
		olderThan = r.config.PruneUnresolvedAfter()
	}
	if olderThan <= 0 {
		return fmt.Errorf("%w: --older-than must be positive", shared.ErrInvalidArgument)
	}

	repo, err := r.database()
	if err != nil {
		return err
	}

	n, err := repo.PruneUnresolved(ctx, olderThan)
	if err != nil {
		return err
	}

	r.logger.Info("unresolved records pruned", "removed", n, "older_than", olderThan)
	return r.writePlain("%s pruned %d unresolved records older than %s\n", ui.Success("✓"), n, olderThan)
}
