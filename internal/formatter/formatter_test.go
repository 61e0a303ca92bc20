package formatter

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/trackpool/internal/models"
	"github.com/desertthunder/trackpool/internal/shared"
	th "github.com/desertthunder/trackpool/internal/testing"
)

func testPool() []models.ResolvedTrack {
	return []models.ResolvedTrack{
		{
			Provider:    models.ProviderYouTube,
			ID:          "dQw4w9WgXcQ",
			Title:       "Never Gonna Give You Up",
			Artist:      "Rick Astley",
			DurationSec: 213,
			SourceURL:   "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		},
		{
			Provider:  models.ProviderAnimeThemes,
			ID:        "ChainsawMan-OP1",
			Title:     "KICK BACK",
			Artist:    "Kenshi Yonezu, \"Chainsaw\"",
			SourceURL: "https://v.animethemes.moe/ChainsawMan-OP1.webm",
		},
	}
}

func TestExporters(t *testing.T) {
	t.Run("PoolToJSON", func(t *testing.T) {
		data, err := PoolToJSON(testPool())
		if err != nil {
			t.Fatalf("PoolToJSON failed: %v", err)
		}
		output := string(data)

		if !strings.Contains(output, `"previewUrl": null`) {
			t.Errorf("JSON should carry an explicit null preview, got: %s", output)
		}
		if !strings.Contains(output, `"id": "dQw4w9WgXcQ"`) {
			t.Errorf("JSON missing track id, got: %s", output)
		}
	})

	t.Run("PoolToJSON empty", func(t *testing.T) {
		data, err := PoolToJSON(nil)
		if err != nil {
			t.Fatalf("PoolToJSON failed: %v", err)
		}
		if strings.TrimSpace(string(data)) != "[]" {
			t.Errorf("expected empty array, got %s", data)
		}
	})

	t.Run("PoolToCSV", func(t *testing.T) {
		data, err := PoolToCSV(testPool())
		if err != nil {
			t.Fatalf("PoolToCSV failed: %v", err)
		}
		output := string(data)

		if !strings.HasPrefix(output, "Provider,ID,Title,Artist,Duration,URL\n") {
			t.Errorf("CSV missing headers, got: %s", output)
		}
		if !strings.Contains(output, "youtube,dQw4w9WgXcQ,Never Gonna Give You Up,Rick Astley,213,") {
			t.Errorf("CSV missing first record, got: %s", output)
		}
		if !strings.Contains(output, `"Kenshi Yonezu, ""Chainsaw"""`) {
			t.Errorf("CSV should quote commas and quotes, got: %s", output)
		}

		lines := strings.Split(strings.TrimSpace(output), "\n")
		if len(lines) != 3 {
			t.Errorf("expected 3 lines, got %d", len(lines))
		}
	})

	t.Run("PoolToText", func(t *testing.T) {
		data, err := PoolToText(testPool())
		if err != nil {
			t.Fatalf("PoolToText failed: %v", err)
		}
		output := string(data)

		if !strings.Contains(output, "Tracks: 2") {
			t.Errorf("text missing count, got: %s", output)
		}
		if !strings.Contains(output, "1. Rick Astley - Never Gonna Give You Up [3:33]") {
			t.Errorf("text missing first track, got: %s", output)
		}
		if strings.Contains(output, "KICK BACK [") {
			t.Errorf("unknown duration should be omitted, got: %s", output)
		}
	})

	t.Run("Pool unknown format", func(t *testing.T) {
		if _, err := Pool(testPool(), "xml"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestWritePool(t *testing.T) {
	t.Run("writes to writer", func(t *testing.T) {
		var buf bytes.Buffer
		if err := WritePool(&buf, testPool(), FormatText); err != nil {
			t.Fatalf("WritePool failed: %v", err)
		}
		if !strings.Contains(buf.String(), "KICK BACK") {
			t.Errorf("unexpected output: %s", buf.String())
		}
	})

	t.Run("write failure", func(t *testing.T) {
		if err := WritePool(&th.FWriter{}, testPool(), FormatJSON); err == nil {
			t.Error("expected write error")
		}
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "pool.csv")
		got, err := WritePoolFile(testPool(), FormatCSV, path)
		if err != nil {
			t.Fatalf("WritePoolFile failed: %v", err)
		}
		if got != path {
			t.Errorf("expected %s, got %s", path, got)
		}
		if content := th.MustReadFile(t, path); !strings.Contains(content, "ChainsawMan-OP1") {
			t.Errorf("file missing track, got: %s", content)
		}
	})

	t.Run("file in missing directory", func(t *testing.T) {
		if _, err := WritePoolFile(testPool(), FormatJSON, "/nonexistent/dir/pool.json"); err == nil {
			t.Error("expected error for missing directory")
		}
	})
}

func TestReadTracks(t *testing.T) {
	tracks, err := ReadTracks(strings.NewReader(`[{"provider":"spotify","sourceId":"abc","title":"Song","artist":"Artist","previewUrl":"https://p"}]`))
	if err != nil {
		t.Fatalf("ReadTracks failed: %v", err)
	}
	if len(tracks) != 1 || tracks[0].SourceID != "abc" || !tracks[0].HasPreview() {
		t.Errorf("unexpected tracks: %+v", tracks)
	}

	if _, err := ReadTracks(strings.NewReader(`{"not":"an array"}`)); !errors.Is(err, shared.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestWriteResolutions(t *testing.T) {
	rows := []models.Resolution{
		{Provider: "deezer", SourceID: "3135556", Title: "Song", Artist: "Artist", VideoID: "dQw4w9WgXcQ", Attempts: 1, UpdatedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)},
		{Provider: "spotify", SourceID: "abc", Title: "Other", Artist: "Band", Attempts: 3, UpdatedAt: time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC)},
	}

	var buf bytes.Buffer
	if err := WriteResolutions(&buf, rows); err != nil {
		t.Fatalf("WriteResolutions failed: %v", err)
	}
	output := buf.String()

	if !strings.Contains(output, "PROVIDER") || !strings.Contains(output, "dQw4w9WgXcQ") {
		t.Errorf("missing header or video, got: %s", output)
	}
	if !strings.Contains(output, "2024-05-02 12:00:00") {
		t.Errorf("missing timestamp, got: %s", output)
	}

	limited := th.NewLimitedWriter(0, 0, &buf)
	if err := WriteResolutions(&limited, rows); err == nil {
		t.Error("expected error from failing writer")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		seconds int
		want    string
	}{
		{seconds: 0, want: "0:00"},
		{seconds: 59, want: "0:59"},
		{seconds: 213, want: "3:33"},
		{seconds: 3725, want: "1:02:05"},
	}

	for _, tt := range tests {
		if got := FormatDuration(tt.seconds); got != tt.want {
			t.Errorf("FormatDuration(%d) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}
