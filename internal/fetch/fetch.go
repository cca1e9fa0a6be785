// Package fetch provides the bounded-retry HTTP layer shared by every
// catalog client. Transport failures and 429/5xx statuses are retried with
// linear backoff; everything else fails fast.
package fetch

import (
	"context"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultMaxRetries is the number of retries after the first attempt.
	DefaultMaxRetries = 2
	defaultTimeout    = 10 * time.Second
	probeTimeout      = 6 * time.Second
	defaultBackoff    = 500 * time.Millisecond
)

// HTTPDoer is an interface for making HTTP requests.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Fetcher issues GET and HEAD requests with retry on transient failures.
type Fetcher struct {
	client      HTTPDoer
	probeClient HTTPDoer
	maxRetries  int
	backoffBase time.Duration
}

// Option is a functional option for configuring the Fetcher.
type Option func(*Fetcher)

// WithHTTPClient sets a custom client for metadata GET requests.
func WithHTTPClient(c HTTPDoer) Option {
	return func(f *Fetcher) {
		if c != nil {
			f.client = c
		}
	}
}

// WithProbeClient sets a custom client for HEAD probe requests.
func WithProbeClient(c HTTPDoer) Option {
	return func(f *Fetcher) {
		if c != nil {
			f.probeClient = c
		}
	}
}

// WithMaxRetries sets the number of retries after the initial attempt.
func WithMaxRetries(n int) Option {
	return func(f *Fetcher) {
		if n >= 0 {
			f.maxRetries = n
		}
	}
}

// WithBackoffBase sets the base unit of the linear retry backoff.
func WithBackoffBase(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.backoffBase = d
		}
	}
}

// New creates a Fetcher with the default timeouts: 10s for metadata
// fetches, 6s for cover probes.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:      &http.Client{Timeout: defaultTimeout},
		probeClient: &http.Client{Timeout: probeTimeout},
		maxRetries:  DefaultMaxRetries,
		backoffBase: defaultBackoff,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Get fetches url and returns the response body. Retryable failures are
// retried up to maxRetries times, sleeping (attempt+1) x backoffBase between
// attempts. Non-retryable failures propagate immediately.
func (f *Fetcher) Get(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= f.maxRetries; attempt++ {
		body, err := f.doGet(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !IsRetryable(err) || attempt == f.maxRetries {
			return nil, err
		}
		select {
		case <-time.After(time.Duration(attempt+1) * f.backoffBase):
		case <-ctx.Done():
			return nil, &TransportError{URL: url, Err: ctx.Err()}
		}
	}
	return nil, lastErr
}

func (f *Fetcher) doGet(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{URL: url, Code: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}
	return body, nil
}

// ProbeResult holds the observable outcome of a HEAD request.
type ProbeResult struct {
	StatusCode  int
	ContentType string
}

// Head issues a single HEAD request with the probe timeout and cache
// bypass. Probes are one-shot: reachability checks iterate candidates
// instead of retrying any single one.
func (f *Fetcher) Head(ctx context.Context, url string) (*ProbeResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := f.probeClient.Do(req)
	if err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	return &ProbeResult{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}
