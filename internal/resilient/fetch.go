// Package resilient wraps single outbound HTTP calls with bounded retry and
// exponential backoff for transient failures.
package resilient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"flyerproxy/internal/infra"
	"flyerproxy/internal/metrics"
)

const maxErrorBody = 4 << 10

// Request is a replayable description of an outbound call.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

func (r Request) build(ctx context.Context) (*http.Request, error) {
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if r.Body != nil {
		body = bytes.NewReader(r.Body)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.URL, body)
	if err != nil {
		return nil, err
	}
	for k, values := range r.Header {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	return req, nil
}

// StatusError is returned when every attempt ended in a transient status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("upstream status %d", e.StatusCode)
	}
	return fmt.Sprintf("upstream status %d: %s", e.StatusCode, body)
}

// IsTransient reports whether status is retried: 429, 500 and 503 only.
func IsTransient(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusServiceUnavailable:
		return true
	}
	return false
}

// Fetcher performs resilient calls. The zero value is usable.
type Fetcher struct {
	Client  *http.Client
	Sleeper Sleeper
	Logger  *infra.Logger
	Metrics *metrics.Metrics
}

// Do sends req, retrying transient statuses and network errors up to
// maxRetries attempts in total. Before attempt n+1 it waits
// initialDelay * 2^n. Non-transient responses, successful or not, are returned
// as-is and the caller owns the body.
func (f *Fetcher) Do(ctx context.Context, req Request, maxRetries int, initialDelay time.Duration) (*http.Response, error) {
	if maxRetries < 1 {
		maxRetries = 1
	}
	if initialDelay <= 0 {
		initialDelay = time.Second
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	sleeper := f.Sleeper
	if sleeper == nil {
		sleeper = RealSleeper{}
	}
	logger := infra.OrDiscard(f.Logger)

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		httpReq, err := req.build(ctx)
		if err != nil {
			return nil, fmt.Errorf("resilient: build request: %w", err)
		}
		resp, err := client.Do(httpReq)
		reason := ""
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			reason = "network"
		case !IsTransient(resp.StatusCode):
			return resp, nil
		default:
			body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			resp.Body.Close()
			lastErr = &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
			reason = "status_" + strconv.Itoa(resp.StatusCode)
		}

		if attempt == maxRetries-1 {
			break
		}
		delay := initialDelay << attempt
		logger.Warn().
			Err(lastErr).
			Int("attempt", attempt+1).
			Int("max_attempts", maxRetries).
			Dur("backoff", delay).
			Str("url", redact(req.URL)).
			Msg("resilient: transient failure, retrying")
		f.Metrics.FetchRetry(reason)
		if err := sleeper.Sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

// redact drops the query string, which may carry credentials.
func redact(raw string) string {
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		return raw[:i]
	}
	return raw
}
