package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/trackpool/internal/models"
	"github.com/desertthunder/trackpool/internal/shared"
	"github.com/desertthunder/trackpool/internal/tasks"
)

type fakePool struct {
	tracks     []models.ResolvedTrack
	err        error
	lastReq    tasks.PoolRequest
	lastTracks []models.CatalogTrack
	lastFill   string
}

func (f *fakePool) ResolveTrackPoolFromSource(ctx context.Context, req tasks.PoolRequest) ([]models.ResolvedTrack, error) {
	f.lastReq = req
	return f.tracks, f.err
}

func (f *fakePool) ResolveTracksToPlayable(ctx context.Context, tracks []models.CatalogTrack, size int, fillQuery string) ([]models.ResolvedTrack, error) {
	f.lastTracks = tracks
	f.lastFill = fillQuery
	return f.tracks, f.err
}

func newTestServer(t *testing.T, pool PoolService) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewAPI(pool, shared.NewLogger(io.Discard)).Routes())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &fakePool{})

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get(RequestIDHeader) == "" {
		t.Error("expected a request id header")
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %q", body["status"])
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, &fakePool{})

	resp, err := http.Get(srv.URL + "/api/pool")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", resp.StatusCode)
	}
}

func TestSources(t *testing.T) {
	srv := newTestServer(t, &fakePool{})

	tests := []struct {
		query    string
		kind     string
		fillable bool
	}{
		{query: "city pop", kind: "search", fillable: true},
		{query: "deezer:playlist:908622995", kind: "provider_playlist"},
		{query: "deezer:chart", kind: "provider_chart"},
		{query: "anilist:users:alice", kind: "catalog_users"},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			resp, err := http.Get(srv.URL + "/api/sources?q=" + strings.ReplaceAll(tt.query, " ", "+"))
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			defer resp.Body.Close()

			var body struct {
				Kind            string          `json:"kind"`
				Descriptor      json.RawMessage `json:"descriptor"`
				AllowsQueryFill bool            `json:"allowsQueryFill"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode body: %v", err)
			}
			if body.Kind != tt.kind {
				t.Errorf("expected kind %s, got %s", tt.kind, body.Kind)
			}
			if body.AllowsQueryFill != tt.fillable {
				t.Errorf("expected allowsQueryFill %v, got %v", tt.fillable, body.AllowsQueryFill)
			}
			if len(body.Descriptor) == 0 {
				t.Error("expected descriptor payload")
			}
		})
	}
}

func TestPool(t *testing.T) {
	track := models.ResolvedTrack{Provider: models.ProviderYouTube, ID: "dQw4w9WgXcQ", Title: "Song", Artist: "Artist"}

	t.Run("success", func(t *testing.T) {
		pool := &fakePool{tracks: []models.ResolvedTrack{track}}
		srv := newTestServer(t, pool)

		resp := postJSON(t, srv.URL+"/api/pool", `{"sourceQuery":"deezer:chart","size":5}`)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}

		var body struct {
			Tracks []map[string]any `json:"tracks"`
			Count  int              `json:"count"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode body: %v", err)
		}
		if body.Count != 1 || len(body.Tracks) != 1 {
			t.Fatalf("expected one track, got %+v", body)
		}
		if v, ok := body.Tracks[0]["previewUrl"]; !ok || v != nil {
			t.Errorf("expected explicit null previewUrl, got %v", v)
		}
		if pool.lastReq.SourceQuery != "deezer:chart" || pool.lastReq.Size != 5 {
			t.Errorf("unexpected forwarded request %+v", pool.lastReq)
		}
	})

	t.Run("empty pool is an empty array", func(t *testing.T) {
		srv := newTestServer(t, &fakePool{tracks: []models.ResolvedTrack{}})

		resp := postJSON(t, srv.URL+"/api/pool", `{"sourceQuery":"deezer:playlist:1","size":5}`)
		raw, _ := io.ReadAll(resp.Body)
		if !bytes.Contains(raw, []byte(`"tracks":[]`)) {
			t.Errorf("expected empty tracks array, got %s", raw)
		}
	})

	t.Run("rate limited", func(t *testing.T) {
		srv := newTestServer(t, &fakePool{err: &shared.RateLimitError{Service: "deezer", RetryAfter: 1500 * time.Millisecond}})

		resp := postJSON(t, srv.URL+"/api/pool", `{"sourceQuery":"city pop","size":5}`)
		if resp.StatusCode != http.StatusTooManyRequests {
			t.Errorf("expected 429, got %d", resp.StatusCode)
		}
		if got := resp.Header.Get("Retry-After"); got != "2" {
			t.Errorf("expected Retry-After 2, got %q", got)
		}
	})

	t.Run("partial pool after rate limit", func(t *testing.T) {
		srv := newTestServer(t, &fakePool{
			tracks: []models.ResolvedTrack{track},
			err:    &shared.RateLimitError{Service: "youtube", RetryAfter: 30 * time.Second},
		})

		resp := postJSON(t, srv.URL+"/api/resolve", `{"tracks":[{"title":"Song","artist":"Artist"}],"size":5}`)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		if got := resp.Header.Get("Retry-After"); got != "30" {
			t.Errorf("expected Retry-After 30, got %q", got)
		}

		var body PoolResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode body: %v", err)
		}
		if body.Count != 1 || body.RetryAfter != 30 {
			t.Errorf("expected one track and retryAfter 30, got %+v", body)
		}
	})

	t.Run("bad input", func(t *testing.T) {
		srv := newTestServer(t, &fakePool{})

		for _, body := range []string{
			`{"sourceQuery":"city pop","size":0}`,
			`{"sourceQuery":"city pop","size":1000}`,
			`{"sourceQuery":"city pop","size":"five"}`,
			`{"sourceQuery":"city pop","size":5,"extra":true}`,
			`not json`,
		} {
			resp := postJSON(t, srv.URL+"/api/pool", body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("%s: expected 400, got %d", body, resp.StatusCode)
			}
		}
	})
}

func TestResolve(t *testing.T) {
	pool := &fakePool{tracks: []models.ResolvedTrack{}}
	srv := newTestServer(t, pool)

	resp := postJSON(t, srv.URL+"/api/resolve",
		`{"tracks":[{"provider":"spotify","sourceId":"abc","title":"Song","artist":"Artist"}],"size":3,"fillQuery":"city pop"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if len(pool.lastTracks) != 1 || pool.lastTracks[0].SourceID != "abc" {
		t.Errorf("tracks not forwarded: %+v", pool.lastTracks)
	}
	if pool.lastFill != "city pop" {
		t.Errorf("expected fill query city pop, got %q", pool.lastFill)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{err: fmt.Errorf("%w: x", shared.ErrRateLimited), want: http.StatusTooManyRequests},
		{err: fmt.Errorf("%w: x", shared.ErrInvalidArgument), want: http.StatusBadRequest},
		{err: fmt.Errorf("%w: x", shared.ErrUnsupportedSource), want: http.StatusBadRequest},
		{err: fmt.Errorf("%w: x", shared.ErrPlaylistNotFound), want: http.StatusNotFound},
		{err: fmt.Errorf("%w: x", shared.ErrServiceUnavailable), want: http.StatusBadGateway},
		{err: errors.New("boom"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := StatusFor(tt.err); got != tt.want {
			t.Errorf("StatusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestRecover(t *testing.T) {
	r := NewBasicRouter()
	r.Use(RequestID(), Recover(shared.NewLogger(io.Discard)))
	r.HandleFunc(http.MethodGet, "/panic", func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}

func TestRequestIDReusesIncoming(t *testing.T) {
	r := NewBasicRouter()
	r.Use(RequestID())
	var seen string
	r.HandleFunc(http.MethodGet, "/", func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFrom(r.Context())
	})

	incoming := "2f1c7f64-8a4e-4b8e-9b0a-0d6b7a1e5c3d"
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, incoming)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if seen != incoming {
		t.Errorf("expected %s, got %s", incoming, seen)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "not-a-uuid")
	r.ServeHTTP(httptest.NewRecorder(), req)
	if seen == "not-a-uuid" || seen == "" {
		t.Errorf("expected a generated id, got %q", seen)
	}
}
