package resilient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return ctx.Err()
}

func TestDoRetriesTransientThenSucceeds(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if string(body) != "payload" {
			t.Errorf("attempt %d body = %q, want replayed payload", atomic.LoadInt32(&calls)+1, body)
		}
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer ts.Close()

	sleeper := &recordingSleeper{}
	f := &Fetcher{Sleeper: sleeper}
	resp, err := f.Do(context.Background(), Request{Method: http.MethodPost, URL: ts.URL, Body: []byte("payload")}, 3, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}
	if len(sleeper.delays) != len(want) {
		t.Fatalf("delays = %v, want %v", sleeper.delays, want)
	}
	for i := range want {
		if sleeper.delays[i] != want[i] {
			t.Fatalf("delays[%d] = %s, want %s", i, sleeper.delays[i], want[i])
		}
	}
}

func TestDoExhaustsOnPersistent429(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("quota exhausted"))
	}))
	defer ts.Close()

	sleeper := &recordingSleeper{}
	f := &Fetcher{Sleeper: sleeper}
	_, err := f.Do(context.Background(), Request{URL: ts.URL}, 3, time.Second)
	if err == nil {
		t.Fatalf("expected error after exhausting retries")
	}
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("err = %T, want *StatusError", err)
	}
	if statusErr.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", statusErr.StatusCode)
	}
	if !strings.Contains(err.Error(), "quota exhausted") {
		t.Fatalf("error %q does not describe last body", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
	if len(sleeper.delays) != 2 {
		t.Fatalf("sleeps = %d, want 2 (no wait after final attempt)", len(sleeper.delays))
	}
}

func TestDoReturnsPermanentStatusImmediately(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusForbidden, http.StatusBadGateway, http.StatusGatewayTimeout} {
		var calls int32
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(status)
		}))
		f := &Fetcher{Sleeper: &recordingSleeper{}}
		resp, err := f.Do(context.Background(), Request{URL: ts.URL}, 3, time.Second)
		if err != nil {
			t.Fatalf("status %d: unexpected error %v", status, err)
		}
		resp.Body.Close()
		if resp.StatusCode != status || calls != 1 {
			t.Fatalf("status %d: got status %d after %d calls", status, resp.StatusCode, calls)
		}
		ts.Close()
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func TestDoRetriesNetworkErrors(t *testing.T) {
	var calls int
	client := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		calls++
		return nil, errors.New("connection reset")
	})}
	sleeper := &recordingSleeper{}
	f := &Fetcher{Client: client, Sleeper: sleeper}
	_, err := f.Do(context.Background(), Request{URL: "http://upstream.invalid/x"}, 4, 10*time.Millisecond)
	if err == nil || !strings.Contains(err.Error(), "connection reset") {
		t.Fatalf("err = %v, want last network error", err)
	}
	if calls != 4 {
		t.Fatalf("calls = %d, want 4", calls)
	}
	want := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 40 * time.Millisecond}
	for i, d := range want {
		if sleeper.delays[i] != d {
			t.Fatalf("delays[%d] = %s, want %s", i, sleeper.delays[i], d)
		}
	}
}

func TestDoStopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	client := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusServiceUnavailable, Body: io.NopCloser(strings.NewReader(""))}, nil
	})}
	f := &Fetcher{Client: client, Sleeper: sleeperFunc(func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	})}
	_, err := f.Do(ctx, Request{URL: "http://upstream.invalid/x"}, 5, time.Second)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

type sleeperFunc func(context.Context, time.Duration) error

func (f sleeperFunc) Sleep(ctx context.Context, d time.Duration) error { return f(ctx, d) }

func TestIsTransient(t *testing.T) {
	for status, want := range map[int]bool{429: true, 500: true, 503: true, 502: false, 504: false, 404: false, 200: false} {
		if got := IsTransient(status); got != want {
			t.Fatalf("IsTransient(%d) = %v, want %v", status, got, want)
		}
	}
}
