package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/trackpool/internal/models"
	"github.com/desertthunder/trackpool/internal/shared"
	"github.com/desertthunder/trackpool/internal/sources"
	"github.com/desertthunder/trackpool/internal/tasks"
)

const (
	// MaxPoolSize bounds the size a client may request.
	MaxPoolSize = 100
	// MaxResolveTracks bounds the pre-fetched pool accepted by POST /api/resolve.
	MaxResolveTracks = 500

	maxBodyBytes = 1 << 20
)

// PoolService is the engine behind the API, satisfied by [tasks.PoolAssembler].
type PoolService interface {
	ResolveTrackPoolFromSource(ctx context.Context, req tasks.PoolRequest) ([]models.ResolvedTrack, error)
	ResolveTracksToPlayable(ctx context.Context, tracks []models.CatalogTrack, size int, fillQuery string) ([]models.ResolvedTrack, error)
}

// PoolRequest is the body of POST /api/pool.
type PoolRequest struct {
	SourceQuery string `json:"sourceQuery"`
	Size        int    `json:"size"`
}

// ResolveRequest is the body of POST /api/resolve.
type ResolveRequest struct {
	Tracks    []models.CatalogTrack `json:"tracks"`
	Size      int                   `json:"size"`
	FillQuery string                `json:"fillQuery,omitempty"`
}

// PoolResponse wraps a resolved pool.
//
// RetryAfter is set, in seconds, when video search was rate limited and the pool is partial.
type PoolResponse struct {
	Tracks     []models.ResolvedTrack `json:"tracks"`
	Count      int                    `json:"count"`
	RetryAfter int                    `json:"retryAfter,omitempty"`
}

// SourceResponse describes a parsed source query.
type SourceResponse struct {
	Raw             string                  `json:"raw"`
	Kind            string                  `json:"kind"`
	Description     string                  `json:"description"`
	Descriptor      models.SourceDescriptor `json:"descriptor"`
	AllowsQueryFill bool                    `json:"allowsQueryFill"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// API serves the pool endpoints.
type API struct {
	pool    PoolService
	logger  *log.Logger
	started time.Time
}

func NewAPI(pool PoolService, logger *log.Logger) *API {
	return &API{pool: pool, logger: logger, started: time.Now()}
}

// Routes builds the router with the standard middleware stack.
func (a *API) Routes() http.Handler {
	r := NewBasicRouter()
	r.Use(RequestID(), Recover(a.logger), Logging(a.logger))

	r.HandleFunc(http.MethodGet, "/health", a.handleHealth)
	r.HandleFunc(http.MethodGet, "/api/sources", a.handleSource)
	r.HandleFunc(http.MethodPost, "/api/pool", a.handlePool)
	r.HandleFunc(http.MethodPost, "/api/resolve", a.handleResolve)
	return r
}

// handleHealth handles GET /health
func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
		"uptime": time.Since(a.started).Round(time.Second).String(),
	})
}

// handleSource handles GET /api/sources?q=
func (a *API) handleSource(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("q")
	desc := sources.Parse(raw)
	writeJSON(w, http.StatusOK, SourceResponse{
		Raw:             raw,
		Kind:            desc.Kind().String(),
		Description:     desc.String(),
		Descriptor:      desc,
		AllowsQueryFill: models.AllowsQueryFill(desc),
	})
}

// handlePool handles POST /api/pool
func (a *API) handlePool(w http.ResponseWriter, r *http.Request) {
	var req PoolRequest
	if err := decodeBody(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := validateSize(req.Size); err != nil {
		a.fail(w, r, err)
		return
	}

	pool, err := a.pool.ResolveTrackPoolFromSource(r.Context(), tasks.PoolRequest{SourceQuery: req.SourceQuery, Size: req.Size})
	a.writePool(w, r, pool, err)
}

// handleResolve handles POST /api/resolve
func (a *API) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequest
	if err := decodeBody(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := validateSize(req.Size); err != nil {
		a.fail(w, r, err)
		return
	}
	if len(req.Tracks) > MaxResolveTracks {
		a.fail(w, r, fmt.Errorf("%w: at most %d tracks per request", shared.ErrInvalidInput, MaxResolveTracks))
		return
	}

	pool, err := a.pool.ResolveTracksToPlayable(r.Context(), req.Tracks, req.Size, req.FillQuery)
	a.writePool(w, r, pool, err)
}

// writePool answers with the pool. A rate limit that left the pool partial still answers 200, with Retry-After set;
// any other error fails the request.
func (a *API) writePool(w http.ResponseWriter, r *http.Request, pool []models.ResolvedTrack, err error) {
	if err != nil && (len(pool) == 0 || !errors.Is(err, shared.ErrRateLimited)) {
		a.fail(w, r, err)
		return
	}

	resp := PoolResponse{Tracks: pool, Count: len(pool)}
	if err != nil {
		resp.RetryAfter = retrySeconds(shared.RetryAfter(err))
		w.Header().Set("Retry-After", strconv.Itoa(resp.RetryAfter))
		a.logger.Warn("partial pool after rate limit", "path", r.URL.Path, "count", len(pool), "request_id", RequestIDFrom(r.Context()))
	}
	writeJSON(w, http.StatusOK, resp)
}

// fail maps an engine error onto a status code.
func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", strconv.Itoa(retrySeconds(shared.RetryAfter(err))))
	}
	if status >= http.StatusInternalServerError {
		a.logger.Error("request failed", "path", r.URL.Path, "err", err, "request_id", RequestIDFrom(r.Context()))
	}
	writeError(w, status, err.Error())
}

// StatusFor maps sentinel errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, shared.ErrInvalidArgument),
		errors.Is(err, shared.ErrInvalidInput),
		errors.Is(err, shared.ErrMissingArgument),
		errors.Is(err, shared.ErrUnsupportedSource):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrPlaylistNotFound), errors.Is(err, shared.ErrTrackNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrServiceUnavailable), errors.Is(err, shared.ErrAPIRequest):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// retrySeconds rounds a retry delay up to whole seconds, at least one.
func retrySeconds(d time.Duration) int {
	return max(int(math.Ceil(d.Seconds())), 1)
}

func validateSize(size int) error {
	if size <= 0 || size > MaxPoolSize {
		return fmt.Errorf("%w: size must be within [1, %d], got %d", shared.ErrInvalidArgument, MaxPoolSize, size)
	}
	return nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		return fmt.Errorf("%w: content type must be application/json", shared.ErrInvalidInput)
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    status,
	})
}
