package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/desertthunder/trackpool/internal/models"
	"github.com/desertthunder/trackpool/internal/shared"
)

const deezerChartJSON = `{
  "data": [
    {"id": 3135556, "title": "STARDOM", "duration": 241, "preview": "https://cdn/preview.mp3", "link": "https://www.deezer.com/track/3135556", "type": "track", "artist": {"id": 1, "name": "King Gnu"}},
    {"id": 2, "title": "Publicité", "duration": 30, "type": "track", "artist": {"id": 2, "name": "Deezer Ads"}},
    {"id": 3, "title": "Hidden", "readable": false, "type": "track", "artist": {"name": "Nobody"}},
    {"id": 0, "title": "Broken", "type": "track", "artist": {"name": "Nobody"}}
  ],
  "total": 4
}`

func TestTrackAnswer(t *testing.T) {
	if trackAnswer("") != nil {
		t.Error("expected no answer without a title")
	}

	plain := trackAnswer("STARDOM")
	if plain.Canonical != "STARDOM" || plain.Mode != models.AnswerModeTrack || len(plain.Aliases) != 0 {
		t.Errorf("unexpected answer %+v", plain)
	}

	noisy := trackAnswer("Idol (feat. Someone) - 2019 Remaster")
	if noisy.Canonical != "Idol (feat. Someone) - 2019 Remaster" {
		t.Errorf("expected catalog title as canonical, got %q", noisy.Canonical)
	}
	if len(noisy.Aliases) != 1 || noisy.Aliases[0] != "Idol" {
		t.Errorf("expected sanitized alias, got %v", noisy.Aliases)
	}
}

func TestDeezerService(t *testing.T) {
	ctx := context.Background()

	t.Run("Name", func(t *testing.T) {
		if got := NewDeezerService("", testOptions()).Name(); got != "deezer" {
			t.Errorf("expected deezer, got %s", got)
		}
	})

	t.Run("Chart", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/chart/0/tracks" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			if r.URL.Query().Get("limit") != "24" {
				t.Errorf("expected limit 24, got %s", r.URL.Query().Get("limit"))
			}
			w.Write([]byte(deezerChartJSON))
		}))
		defer server.Close()

		tracks, err := NewDeezerService(server.URL, testOptions()).FetchTracks(ctx, models.ChartSource{Provider: "deezer"}, 24)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(tracks) != 2 {
			t.Fatalf("expected 2 decodable tracks, got %d", len(tracks))
		}

		got := tracks[0]
		if got.Provider != "deezer" || got.SourceID != "3135556" || got.Title != "STARDOM" || got.Artist != "King Gnu" {
			t.Errorf("unexpected track %+v", got)
		}
		if got.DurationSec != 241 || !got.HasPreview() {
			t.Errorf("expected duration and preview, got %+v", got)
		}
		if got.Answer == nil || got.Answer.Canonical != "STARDOM" || got.Answer.Mode != models.AnswerModeTrack {
			t.Errorf("expected track answer, got %+v", got.Answer)
		}
	})

	t.Run("Playlist and search routing", func(t *testing.T) {
		var paths []string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			paths = append(paths, r.URL.Path+"?q="+r.URL.Query().Get("q"))
			w.Write([]byte(`{"data": []}`))
		}))
		defer server.Close()

		svc := NewDeezerService(server.URL, testOptions())
		if _, err := svc.FetchTracks(ctx, models.PlaylistSource{Provider: "deezer", PlaylistID: "908622995"}, 10); err != nil {
			t.Fatalf("playlist fetch failed: %v", err)
		}
		if _, err := svc.FetchTracks(ctx, models.SearchSource{Query: "city pop"}, 10); err != nil {
			t.Fatalf("search fetch failed: %v", err)
		}

		want := []string{"/playlist/908622995/tracks?q=", "/search?q=city pop"}
		if len(paths) != 2 || paths[0] != want[0] || paths[1] != want[1] {
			t.Errorf("expected %v, got %v", want, paths)
		}
	})

	t.Run("Quota error in body is a rate limit", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"error": {"type": "Exception", "message": "Quota limit exceeded", "code": 4}}`))
		}))
		defer server.Close()

		_, err := NewDeezerService(server.URL, testOptions()).FetchTracks(ctx, models.ChartSource{Provider: "deezer"}, 10)
		if !errors.Is(err, shared.ErrRateLimited) {
			t.Fatalf("expected ErrRateLimited, got %v", err)
		}
	})

	t.Run("Missing playlist", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"error": {"type": "DataException", "message": "no data", "code": 800}}`))
		}))
		defer server.Close()

		_, err := NewDeezerService(server.URL, testOptions()).FetchTracks(ctx, models.PlaylistSource{Provider: "deezer", PlaylistID: "1"}, 10)
		if !errors.Is(err, shared.ErrPlaylistNotFound) {
			t.Fatalf("expected ErrPlaylistNotFound, got %v", err)
		}
	})

	t.Run("Unsupported descriptor", func(t *testing.T) {
		_, err := NewDeezerService("", testOptions()).FetchTracks(ctx, models.CatalogUsersSource{Usernames: []string{"a"}}, 10)
		if !errors.Is(err, shared.ErrUnsupportedSource) {
			t.Fatalf("expected ErrUnsupportedSource, got %v", err)
		}
	})

	t.Run("Zero limit", func(t *testing.T) {
		tracks, err := NewDeezerService("http://127.0.0.1:0", testOptions()).FetchTracks(ctx, models.ChartSource{Provider: "deezer"}, 0)
		if err != nil || tracks != nil {
			t.Errorf("expected no work for zero limit, got %v, %v", tracks, err)
		}
	})
}
