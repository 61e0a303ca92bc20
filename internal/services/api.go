package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"

	"github.com/desertthunder/trackpool/internal/shared"
)

// StatusError is a non-2xx response that is not a rate limit.
type StatusError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Service, e.StatusCode, e.Body)
}

// Unwrap maps 5xx to [shared.ErrServiceUnavailable] and everything else to [shared.ErrAPIRequest].
func (e *StatusError) Unwrap() error {
	if e.StatusCode >= 500 {
		return shared.ErrServiceUnavailable
	}
	return shared.ErrAPIRequest
}

// IsStatus reports whether err carries the given HTTP status.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// APIService performs JSON requests against one base URL with a per-attempt timeout and retry.
//
// Network errors and 5xx responses are retried with exponential backoff. 4xx responses are returned immediately.
// 429 becomes a [shared.RateLimitError] and is never retried.
type APIService struct {
	name       string
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	retries    int
	retryWait  time.Duration
	logger     *log.Logger
}

// NewAPIService creates a client named name for baseURL.
func NewAPIService(name, baseURL string, opts Options) *APIService {
	opts = opts.withDefaults()
	return &APIService{
		name:       name,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: opts.HTTPClient,
		timeout:    opts.Timeout,
		retries:    opts.Retries,
		retryWait:  opts.RetryWait,
		logger:     shared.WithLogger(opts.Logger, "service", name),
	}
}

// Get performs a GET request and decodes the JSON response into result.
func (a *APIService) Get(ctx context.Context, path string, params url.Values, result any) error {
	return a.do(ctx, http.MethodGet, path, params, nil, result)
}

// Post performs a POST request with a JSON body and decodes the JSON response into result.
func (a *APIService) Post(ctx context.Context, path string, body, result any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}
	return a.do(ctx, http.MethodPost, path, nil, data, result)
}

func (a *APIService) do(ctx context.Context, method, path string, params url.Values, body []byte, result any) error {
	fullURL := a.baseURL + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	var lastErr error
	for attempt := 0; attempt <= a.retries; attempt++ {
		if attempt > 0 {
			wait := a.retryWait * time.Duration(1<<(attempt-1))
			a.logger.Debug("retrying request", "attempt", attempt, "wait", wait, "error", lastErr)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}

		retry, err := a.attempt(ctx, method, fullURL, body, result)
		if err == nil {
			return nil
		}
		if !retry {
			return err
		}
		lastErr = err
	}

	return fmt.Errorf("%s: request failed after %d retries: %w", a.name, a.retries, lastErr)
}

// attempt performs one request and reports whether a failure is worth retrying.
func (a *APIService) attempt(ctx context.Context, method, fullURL string, body []byte, result any) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		var tokenErr *oauth2.RetrieveError
		if errors.As(err, &tokenErr) {
			return false, fmt.Errorf("%w: %s token request rejected: %v", shared.ErrMissingCredentials, a.name, tokenErr)
		}
		if ctx.Err() != nil && !errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return false, ctx.Err()
		}
		return true, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return true, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return false, &shared.RateLimitError{Service: a.name, RetryAfter: ParseRetryAfter(resp.Header.Get("Retry-After"))}
	case resp.StatusCode >= 500:
		return true, &StatusError{Service: a.name, StatusCode: resp.StatusCode, Body: truncate(string(data))}
	case resp.StatusCode >= 400:
		return false, &StatusError{Service: a.name, StatusCode: resp.StatusCode, Body: truncate(string(data))}
	}

	if result != nil && len(data) > 0 {
		if err := json.Unmarshal(data, result); err != nil {
			return false, fmt.Errorf("%w: %s: failed to parse response: %v", shared.ErrAPIRequest, a.name, err)
		}
	}
	return false, nil
}

// ParseRetryAfter reads a Retry-After header given in seconds or as an HTTP date.
func ParseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d.Round(time.Second)
		}
	}
	return 0
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxErrorBody {
		return s[:maxErrorBody] + "..."
	}
	return s
}
