package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/trackpool/internal/models"
	"github.com/desertthunder/trackpool/internal/shared"
)

const resolutionColumns = `id, provider, source_id, title, artist, video_id, duration_ms, attempts, created_at, updated_at`

// ResolutionRepository persists [models.Resolution] rows keyed by (provider, source_id).
type ResolutionRepository struct {
	db *sql.DB
}

// NewResolutionRepository creates a new ResolutionRepository with the given database connection
func NewResolutionRepository(db *sql.DB) *ResolutionRepository {
	return &ResolutionRepository{db: db}
}

// Get retrieves the record for a catalog track.
//
// Returns [shared.ErrTrackNotFound] when no attempt has been recorded.
func (r *ResolutionRepository) Get(ctx context.Context, provider, sourceID string) (*models.Resolution, error) {
	query := `SELECT ` + resolutionColumns + ` FROM track_resolutions WHERE provider = ? AND source_id = ?`
	return r.scanOne(r.db.QueryRowContext(ctx, query, provider, sourceID))
}

// Upsert records a resolution attempt.
//
// Attempts are counted. A NULL video id never replaces a stored one, so a failed retry cannot erase an earlier success.
func (r *ResolutionRepository) Upsert(ctx context.Context, res *models.Resolution) error {
	if res.Provider == "" || res.SourceID == "" {
		return fmt.Errorf("%w: resolution requires provider and source id", shared.ErrInvalidInput)
	}

	ts := now()
	id := res.ID
	if id == "" {
		id = shared.GenerateID()
	}

	query := `
		INSERT INTO track_resolutions (id, provider, source_id, title, artist, video_id, duration_ms, attempts, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT (provider, source_id) DO UPDATE SET
			title = excluded.title,
			artist = excluded.artist,
			video_id = COALESCE(excluded.video_id, track_resolutions.video_id),
			duration_ms = COALESCE(excluded.duration_ms, track_resolutions.duration_ms),
			attempts = track_resolutions.attempts + 1,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		id,
		res.Provider,
		res.SourceID,
		res.Title,
		res.Artist,
		nullString(res.VideoID),
		nullInt64(res.DurationMs),
		ts,
		ts,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert resolution: %w", err)
	}

	res.UpdatedAt = ts
	return nil
}

// Delete removes the record for a catalog track.
func (r *ResolutionRepository) Delete(ctx context.Context, provider, sourceID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM track_resolutions WHERE provider = ? AND source_id = ?`, provider, sourceID)
	if err != nil {
		return fmt.Errorf("failed to delete resolution: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s/%s", shared.ErrTrackNotFound, provider, sourceID)
	}

	return nil
}

// List retrieves records matching the given criteria, most recently updated first.
//
// Supported criteria: "provider" (string), "resolved" (bool), "limit" (int).
func (r *ResolutionRepository) List(ctx context.Context, criteria map[string]any) ([]*models.Resolution, error) {
	query := `SELECT ` + resolutionColumns + ` FROM track_resolutions WHERE 1 = 1`
	args := []any{}

	if provider, ok := criteria["provider"].(string); ok && provider != "" {
		query += " AND provider = ?"
		args = append(args, provider)
	}

	if resolved, ok := criteria["resolved"].(bool); ok {
		if resolved {
			query += " AND video_id IS NOT NULL"
		} else {
			query += " AND video_id IS NULL"
		}
	}

	query += " ORDER BY updated_at DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query resolutions: %w", err)
	}
	defer rows.Close()

	var out []*models.Resolution
	for rows.Next() {
		res, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return out, nil
}

// Stats counts records per provider and by outcome.
func (r *ResolutionRepository) Stats(ctx context.Context) (*models.ResolutionStats, error) {
	query := `
		SELECT provider, COUNT(*), SUM(CASE WHEN video_id IS NOT NULL THEN 1 ELSE 0 END)
		FROM track_resolutions
		GROUP BY provider
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query resolution stats: %w", err)
	}
	defer rows.Close()

	stats := &models.ResolutionStats{Providers: make(map[string]int)}
	for rows.Next() {
		var (
			provider        string
			total, resolved int
		)
		if err := rows.Scan(&provider, &total, &resolved); err != nil {
			return nil, fmt.Errorf("failed to scan resolution stats: %w", err)
		}
		stats.Providers[provider] = total
		stats.Total += total
		stats.Resolved += resolved
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	stats.Unresolved = stats.Total - stats.Resolved
	return stats, nil
}

// PruneUnresolved deletes NULL-video records not touched within olderThan and returns how many were removed.
func (r *ResolutionRepository) PruneUnresolved(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("%w: prune age must be positive", shared.ErrInvalidArgument)
	}

	result, err := r.db.ExecContext(ctx,
		`DELETE FROM track_resolutions WHERE video_id IS NULL AND updated_at < ?`,
		now().Add(-olderThan),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune resolutions: %w", err)
	}

	return result.RowsAffected()
}

// Clear deletes every record and returns how many were removed.
func (r *ResolutionRepository) Clear(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM track_resolutions`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear resolutions: %w", err)
	}
	return result.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

// scanOne scans a single [sql.Row] into a [models.Resolution]
func (r *ResolutionRepository) scanOne(row *sql.Row) (*models.Resolution, error) {
	res, err := scanResolution(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrTrackNotFound
	}
	return res, err
}

// scanRow scans a row from [sql.Rows] into a [models.Resolution]
func (r *ResolutionRepository) scanRow(rows *sql.Rows) (*models.Resolution, error) {
	return scanResolution(rows)
}

func scanResolution(s scanner) (*models.Resolution, error) {
	var (
		res        models.Resolution
		videoID    sql.NullString
		durationMs sql.NullInt64
	)

	err := s.Scan(
		&res.ID,
		&res.Provider,
		&res.SourceID,
		&res.Title,
		&res.Artist,
		&videoID,
		&durationMs,
		&res.Attempts,
		&res.CreatedAt,
		&res.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan resolution: %w", err)
	}

	res.VideoID = videoID.String
	res.DurationMs = durationMs.Int64
	return &res, nil
}
