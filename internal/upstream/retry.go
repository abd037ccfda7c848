// Package upstream holds the HTTP plumbing shared by the generation and
// synthesis clients: pooled transports and retry with backoff.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	maxExponent   = 10
	maxBackoff    = 60 * time.Second
	maxRetryAfter = 5 * time.Minute
)

// Retrier retries an HTTP call on transient network errors, 408, 429 and
// 5xx, with exponential backoff and full jitter. Retry-After is honoured.
type Retrier struct {
	MaxRetries  int
	BaseBackoff time.Duration
	Logger      *zap.Logger
}

// Do calls do up to MaxRetries+1 times. The returned response, if any, has
// a non-retryable status and an open body.
func (r Retrier) Do(
	ctx context.Context,
	do func(ctx context.Context) (*http.Response, error),
) (*http.Response, error) {
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	maxAttempts := r.MaxRetries + 1
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		start := time.Now()
		resp, err := do(ctx)

		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		logger.Debug("upstream request",
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", maxAttempts),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)

		var retryAfter time.Duration
		switch {
		case err != nil:
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			if !IsTransientNetError(err) {
				return nil, err
			}
			lastErr = err
		case !ShouldRetryStatus(status):
			return resp, nil
		default:
			lastErr = fmt.Errorf("upstream status %d", status)
			retryAfter = ParseRetryAfter(resp)
			if resp.Body != nil {
				resp.Body.Close()
			}
		}

		if attempt == maxAttempts-1 {
			break
		}

		wait := retryAfter
		if wait <= 0 {
			wait = ComputeBackoff(r.BaseBackoff, attempt)
		} else {
			logger.Info("honoring Retry-After header",
				zap.Duration("wait", wait),
				zap.Int("status", status),
			)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}

	logger.Warn("upstream request exhausted all retries",
		zap.Int("attempts", maxAttempts),
		zap.Error(lastErr),
	)
	if lastErr == nil {
		lastErr = errors.New("unknown upstream error")
	}
	return nil, fmt.Errorf("max retries (%d) exceeded: %w", maxAttempts, lastErr)
}

// IsTransientNetError reports whether err is a network failure worth retrying.
func IsTransientNetError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTimeout || dnsErr.IsTemporary
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		switch opErr.Op {
		case "dial", "read", "write":
			return true
		}
	}

	// wrapped errors sometimes only keep the message
	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"no such host",
		"temporary failure",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// ShouldRetryStatus returns true for 0, 408, 429 and 5xx.
func ShouldRetryStatus(status int) bool {
	switch {
	case status == 0:
		return true
	case status == http.StatusTooManyRequests:
		return true
	case status == http.StatusRequestTimeout:
		return true
	case status >= 500 && status <= 599:
		return true
	default:
		return false
	}
}

// ParseRetryAfter reads a Retry-After header in seconds or HTTP-date form,
// capped at five minutes. It returns 0 when absent or invalid.
func ParseRetryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	value := strings.TrimSpace(resp.Header.Get("Retry-After"))
	if value == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds <= 0 {
			return 0
		}
		return min(time.Duration(seconds)*time.Second, maxRetryAfter)
	}

	if t, err := http.ParseTime(value); err == nil {
		if d := time.Until(t); d > 0 {
			return min(d, maxRetryAfter)
		}
	}
	return 0
}

// ComputeBackoff returns a random duration in [0, base*2^attempt), capped
// at one minute.
func ComputeBackoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	if attempt > maxExponent {
		attempt = maxExponent
	}

	ceiling := time.Duration(float64(base) * math.Pow(2, float64(attempt)))
	if ceiling > maxBackoff {
		ceiling = maxBackoff
	}
	return time.Duration(rand.Float64() * float64(ceiling))
}
