package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func get(url string) func(ctx context.Context) (*http.Response, error) {
	return func(ctx context.Context) (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		return http.DefaultClient.Do(req)
	}
}

func TestRetrierRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := Retrier{MaxRetries: 3, BaseBackoff: time.Millisecond, Logger: zaptest.NewLogger(t)}
	resp, err := r.Do(context.Background(), get(srv.URL))
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK || calls.Load() != 3 {
		t.Fatalf("expected success on third call, got status %d after %d calls", resp.StatusCode, calls.Load())
	}
}

func TestRetrierDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	r := Retrier{MaxRetries: 3, BaseBackoff: time.Millisecond}
	resp, err := r.Do(context.Background(), get(srv.URL))
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	resp.Body.Close()

	if calls.Load() != 1 {
		t.Fatalf("4xx must not be retried, got %d calls", calls.Load())
	}
}

func TestRetrierExhausts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	r := Retrier{MaxRetries: 1, BaseBackoff: time.Millisecond}
	if _, err := r.Do(context.Background(), get(srv.URL)); err == nil {
		t.Fatalf("expected error after retries")
	}
}

func TestRetrierStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := Retrier{MaxRetries: 5}
	_, err := r.Do(ctx, func(context.Context) (*http.Response, error) {
		t.Fatalf("call must not happen after cancel")
		return nil, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestParseRetryAfter(t *testing.T) {
	resp := &http.Response{Header: http.Header{}}
	resp.Header.Set("Retry-After", "2")
	if got := ParseRetryAfter(resp); got != 2*time.Second {
		t.Fatalf("expected 2s, got %v", got)
	}

	resp.Header.Set("Retry-After", "86400")
	if got := ParseRetryAfter(resp); got != 5*time.Minute {
		t.Fatalf("expected cap at 5m, got %v", got)
	}

	resp.Header.Set("Retry-After", "soon")
	if got := ParseRetryAfter(resp); got != 0 {
		t.Fatalf("expected 0 for garbage, got %v", got)
	}
}

func TestComputeBackoffBounds(t *testing.T) {
	for attempt := 0; attempt < 20; attempt++ {
		d := ComputeBackoff(100*time.Millisecond, attempt)
		if d < 0 || d > time.Minute {
			t.Fatalf("backoff out of bounds at attempt %d: %v", attempt, d)
		}
	}
}

func TestShouldRetryStatus(t *testing.T) {
	for _, s := range []int{0, 408, 429, 500, 503} {
		if !ShouldRetryStatus(s) {
			t.Fatalf("expected retry for %d", s)
		}
	}
	for _, s := range []int{200, 301, 400, 404} {
		if ShouldRetryStatus(s) {
			t.Fatalf("unexpected retry for %d", s)
		}
	}
}
