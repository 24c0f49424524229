package payload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/sync/singleflight"

	"github.com/pscheid92/pulsecast/internal/domain"
	"github.com/pscheid92/pulsecast/internal/metrics"
	"github.com/pscheid92/pulsecast/internal/platform/retry"
)

const (
	fetchTimeout = 5 * time.Second
	maxBodySize  = 8 << 20
)

// Fetcher retrieves the expensive payload from upstream. Concurrent callers
// are collapsed into a single in-flight request via singleflight, transient
// upstream failures are retried, and a circuit breaker stops hammering a
// dead upstream.
type Fetcher struct {
	urlFn  func() string
	client *http.Client
	cb     *gobreaker.CircuitBreaker
	group  singleflight.Group
	policy retry.Policy
}

// NewFetcher creates a fetcher. urlFn is evaluated per fetch so a hot reload
// of the upstream URL takes effect without restart.
func NewFetcher(urlFn func() string) *Fetcher {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "upstream",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Upstream circuit breaker state changed", "from", from.String(), "to", to.String())
		},
	})

	return &Fetcher{
		urlFn:  urlFn,
		client: &http.Client{Timeout: fetchTimeout},
		cb:     cb,
		policy: retry.Policy{
			MaxAttempts:    3,
			InitialBackoff: 100 * time.Millisecond,
			OnRetry: func(attempt int, err error, backoff time.Duration) {
				slog.Warn("Upstream fetch retry", "attempt", attempt, "backoff", backoff, "error", err)
			},
		},
	}
}

// Fetch returns the expensive payload. Callers arriving while a fetch is in
// flight share its result instead of starting another request.
func (f *Fetcher) Fetch(ctx context.Context) (*domain.FetchedPayload, error) {
	v, err, _ := f.group.Do("upstream", func() (any, error) {
		return f.cb.Execute(func() (any, error) {
			return retry.Do(ctx, f.policy, classifyFetchError, func() (*domain.FetchedPayload, error) {
				return f.fetchOnce(ctx)
			})
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrUpstreamFetch, err)
	}
	return v.(*domain.FetchedPayload), nil
}

func (f *Fetcher) fetchOnce(ctx context.Context) (*domain.FetchedPayload, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.urlFn(), nil)
	if err != nil {
		return nil, &permanentFetchError{err: fmt.Errorf("build upstream request: %w", err)}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return nil, &permanentFetchError{err: fmt.Errorf("upstream returned %s", resp.Status)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("upstream returned %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read upstream body: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	metrics.UpstreamFetchDuration.Observe(time.Since(start).Seconds())

	return &domain.FetchedPayload{
		Data:        data,
		ContentType: contentType,
		FetchedAt:   time.Now(),
	}, nil
}

type permanentFetchError struct {
	err error
}

func (e *permanentFetchError) Error() string { return e.err.Error() }
func (e *permanentFetchError) Unwrap() error { return e.err }

func classifyFetchError(err error) retry.Action {
	var perm *permanentFetchError
	if errors.As(err, &perm) {
		return retry.Stop
	}
	return retry.Retry
}
