package repositories

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/trackpool/internal/models"
	"github.com/desertthunder/trackpool/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

// withClock pins the repository clock for the duration of the test.
func withClock(t *testing.T, at time.Time) func(time.Duration) {
	t.Helper()
	current := at
	prev := now
	now = func() time.Time { return current }
	t.Cleanup(func() { now = prev })
	return func(d time.Duration) { current = current.Add(d) }
}

func TestResolutionRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Upsert and Get", func(t *testing.T) {
		repo := NewResolutionRepository(setupTestDB(t))

		res := &models.Resolution{
			Provider: "deezer", SourceID: "3135556", Title: "STARDOM", Artist: "King Gnu",
			VideoID: "abc123", DurationMs: 241000,
		}
		if err := repo.Upsert(ctx, res); err != nil {
			t.Fatalf("failed to upsert: %v", err)
		}

		got, err := repo.Get(ctx, "deezer", "3135556")
		if err != nil {
			t.Fatalf("failed to get: %v", err)
		}
		if got.VideoID != "abc123" {
			t.Errorf("expected video id abc123, got %q", got.VideoID)
		}
		if got.DurationMs != 241000 {
			t.Errorf("expected duration 241000, got %d", got.DurationMs)
		}
		if got.Attempts != 1 {
			t.Errorf("expected 1 attempt, got %d", got.Attempts)
		}
		if got.ID == "" {
			t.Error("expected generated id")
		}
	})

	t.Run("Get NotFound", func(t *testing.T) {
		repo := NewResolutionRepository(setupTestDB(t))

		_, err := repo.Get(ctx, "deezer", "missing")
		if !errors.Is(err, shared.ErrTrackNotFound) {
			t.Fatalf("expected ErrTrackNotFound, got %v", err)
		}
	})

	t.Run("Upsert never replaces a video with null", func(t *testing.T) {
		repo := NewResolutionRepository(setupTestDB(t))

		if err := repo.Upsert(ctx, &models.Resolution{Provider: "spotify", SourceID: "x", Title: "T", Artist: "A", VideoID: "vid"}); err != nil {
			t.Fatalf("failed to upsert: %v", err)
		}
		if err := repo.Upsert(ctx, &models.Resolution{Provider: "spotify", SourceID: "x", Title: "T", Artist: "A"}); err != nil {
			t.Fatalf("failed to upsert null: %v", err)
		}

		got, err := repo.Get(ctx, "spotify", "x")
		if err != nil {
			t.Fatalf("failed to get: %v", err)
		}
		if got.VideoID != "vid" {
			t.Errorf("expected video id to survive, got %q", got.VideoID)
		}
		if got.Attempts != 2 {
			t.Errorf("expected 2 attempts, got %d", got.Attempts)
		}
	})

	t.Run("Upsert fills a previously null video", func(t *testing.T) {
		repo := NewResolutionRepository(setupTestDB(t))

		if err := repo.Upsert(ctx, &models.Resolution{Provider: "deezer", SourceID: "1", Title: "T", Artist: "A"}); err != nil {
			t.Fatalf("failed to upsert: %v", err)
		}
		if err := repo.Upsert(ctx, &models.Resolution{Provider: "deezer", SourceID: "1", Title: "T", Artist: "A", VideoID: "late"}); err != nil {
			t.Fatalf("failed to upsert: %v", err)
		}

		got, _ := repo.Get(ctx, "deezer", "1")
		if got == nil || got.VideoID != "late" {
			t.Fatalf("expected late video id, got %+v", got)
		}
	})

	t.Run("Upsert validation", func(t *testing.T) {
		repo := NewResolutionRepository(setupTestDB(t))
		if err := repo.Upsert(ctx, &models.Resolution{Provider: "deezer"}); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("List Stats Delete", func(t *testing.T) {
		repo := NewResolutionRepository(setupTestDB(t))

		seed := []models.Resolution{
			{Provider: "deezer", SourceID: "1", Title: "One", Artist: "A", VideoID: "v1"},
			{Provider: "deezer", SourceID: "2", Title: "Two", Artist: "A"},
			{Provider: "spotify", SourceID: "3", Title: "Three", Artist: "B", VideoID: "v3"},
		}
		for i := range seed {
			if err := repo.Upsert(ctx, &seed[i]); err != nil {
				t.Fatalf("failed to seed: %v", err)
			}
		}

		all, err := repo.List(ctx, map[string]any{})
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if len(all) != 3 {
			t.Errorf("expected 3 records, got %d", len(all))
		}

		unresolved, err := repo.List(ctx, map[string]any{"resolved": false})
		if err != nil {
			t.Fatalf("failed to list unresolved: %v", err)
		}
		if len(unresolved) != 1 || unresolved[0].SourceID != "2" {
			t.Errorf("expected only source 2 unresolved, got %+v", unresolved)
		}

		deezer, err := repo.List(ctx, map[string]any{"provider": "deezer", "limit": 1})
		if err != nil {
			t.Fatalf("failed to list by provider: %v", err)
		}
		if len(deezer) != 1 {
			t.Errorf("expected limit to apply, got %d", len(deezer))
		}

		stats, err := repo.Stats(ctx)
		if err != nil {
			t.Fatalf("failed to get stats: %v", err)
		}
		if stats.Total != 3 || stats.Resolved != 2 || stats.Unresolved != 1 {
			t.Errorf("unexpected stats %+v", stats)
		}
		if stats.Providers["deezer"] != 2 {
			t.Errorf("expected 2 deezer records, got %d", stats.Providers["deezer"])
		}

		if err := repo.Delete(ctx, "deezer", "1"); err != nil {
			t.Fatalf("failed to delete: %v", err)
		}
		if err := repo.Delete(ctx, "deezer", "1"); !errors.Is(err, shared.ErrTrackNotFound) {
			t.Errorf("expected ErrTrackNotFound on second delete, got %v", err)
		}

		n, err := repo.Clear(ctx)
		if err != nil {
			t.Fatalf("failed to clear: %v", err)
		}
		if n != 2 {
			t.Errorf("expected 2 cleared, got %d", n)
		}
	})

	t.Run("PruneUnresolved", func(t *testing.T) {
		repo := NewResolutionRepository(setupTestDB(t))
		advance := withClock(t, time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))

		if err := repo.Upsert(ctx, &models.Resolution{Provider: "deezer", SourceID: "old", Title: "T", Artist: "A"}); err != nil {
			t.Fatalf("failed to seed: %v", err)
		}
		if err := repo.Upsert(ctx, &models.Resolution{Provider: "deezer", SourceID: "hit", Title: "T", Artist: "A", VideoID: "v"}); err != nil {
			t.Fatalf("failed to seed: %v", err)
		}

		advance(48 * time.Hour)
		if err := repo.Upsert(ctx, &models.Resolution{Provider: "deezer", SourceID: "fresh", Title: "T", Artist: "A"}); err != nil {
			t.Fatalf("failed to seed: %v", err)
		}

		n, err := repo.PruneUnresolved(ctx, 24*time.Hour)
		if err != nil {
			t.Fatalf("failed to prune: %v", err)
		}
		if n != 1 {
			t.Errorf("expected 1 pruned record, got %d", n)
		}

		if _, err := repo.Get(ctx, "deezer", "hit"); err != nil {
			t.Errorf("resolved record must survive pruning: %v", err)
		}
		if _, err := repo.Get(ctx, "deezer", "fresh"); err != nil {
			t.Errorf("fresh record must survive pruning: %v", err)
		}

		if _, err := repo.PruneUnresolved(ctx, 0); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument for zero age, got %v", err)
		}
	})
}

func TestResolutionCacheAdapter(t *testing.T) {
	ctx := context.Background()

	t.Run("hit only for resolved records", func(t *testing.T) {
		adapter := NewResolutionCacheAdapter(NewResolutionRepository(setupTestDB(t)), shared.NewLogger(&bytes.Buffer{}))

		adapter.Store(ctx, models.Resolution{Provider: "deezer", SourceID: "1", Title: "T", Artist: "A"})
		if _, ok := adapter.Lookup(ctx, "deezer", "1"); ok {
			t.Error("null video id must be a miss")
		}

		adapter.Store(ctx, models.Resolution{Provider: "deezer", SourceID: "1", Title: "T", Artist: "A", VideoID: "v"})
		res, ok := adapter.Lookup(ctx, "deezer", "1")
		if !ok || res.VideoID != "v" {
			t.Errorf("expected hit with video v, got %+v, %v", res, ok)
		}
	})

	t.Run("unavailable store is a miss", func(t *testing.T) {
		var buf bytes.Buffer
		db := setupTestDB(t)
		adapter := NewResolutionCacheAdapter(NewResolutionRepository(db), shared.NewLogger(&buf))
		db.Close()

		if _, ok := adapter.Lookup(ctx, "deezer", "1"); ok {
			t.Error("closed store must be a miss")
		}
		adapter.Store(ctx, models.Resolution{Provider: "deezer", SourceID: "1", VideoID: "v"})

		if !strings.Contains(buf.String(), "durable lookup failed") {
			t.Errorf("expected lookup failure to be logged, got %q", buf.String())
		}
		if !strings.Contains(buf.String(), "durable write failed") {
			t.Errorf("expected write failure to be logged, got %q", buf.String())
		}
	})

	t.Run("nil repository", func(t *testing.T) {
		adapter := NewResolutionCacheAdapter(nil, nil)
		adapter.Store(ctx, models.Resolution{Provider: "deezer", SourceID: "1", VideoID: "v"})
		if _, ok := adapter.Lookup(ctx, "deezer", "1"); ok {
			t.Error("nil repository must be a miss")
		}
	})
}
