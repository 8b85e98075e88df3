package fetcher

import (
	"context"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/teamcutter/ipfilter/internal/domain"
)

type RetryConfig struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	JitterFrac    float64 // ±fraction of delay to randomize
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		InitialDelay:  1 * time.Second,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2.0,
		JitterFrac:    0.3,
	}
}

func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusInternalServerError ||
		code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable ||
		code == http.StatusGatewayTimeout
}

// get issues the GET, retrying transport errors and retryable statuses.
// The last response is returned as-is when retries run out on a status.
func (f *HTTPFetcher) get(ctx context.Context, rawURL string) (*http.Response, error) {
	var lastErr error
	delay := f.retry.InitialDelay

	for attempt := 0; attempt <= f.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := applyJitter(delay, f.retry.JitterFrac)
			log.Debug("retrying request", "attempt", attempt, "delay", wait, "url", rawURL)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}

			delay = time.Duration(float64(delay) * f.retry.BackoffFactor)
			if delay > f.retry.MaxDelay {
				delay = f.retry.MaxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", userAgent())

		resp, err := f.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			lastErr = err
			continue
		}

		if !isRetryableStatus(resp.StatusCode) || attempt == f.retry.MaxRetries {
			return resp, nil
		}

		if ra := retryAfter(resp); ra > 0 {
			delay = min(ra, f.retry.MaxDelay)
		}
		resp.Body.Close()
		lastErr = &domain.NetworkError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	log.Warn("all retries exhausted", "url", rawURL, "attempts", f.retry.MaxRetries+1, "error", lastErr)
	return nil, lastErr
}

func retryAfter(resp *http.Response) time.Duration {
	if resp.StatusCode != http.StatusTooManyRequests {
		return 0
	}
	secs, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(min(secs, 3600)) * time.Second
}

func applyJitter(d time.Duration, frac float64) time.Duration {
	if frac <= 0 {
		return d
	}
	jitter := float64(d) * frac * (2*rand.Float64() - 1)
	result := time.Duration(float64(d) + jitter)
	if result < 0 {
		return 0
	}
	return result
}
