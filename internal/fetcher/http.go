package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/gisfun/geoharvest/internal/resilience"
)

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
	Limiter    *rate.Limiter
}

// HTTPFetcher implements Fetcher using net/http with bounded retry and a
// shared rate limiter applied before every attempt.
type HTTPFetcher struct {
	client  *http.Client
	opts    HTTPOptions
	limiter *rate.Limiter
}

// NewHTTPFetcher creates a new HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "geoharvest/1.0"
	}
	limiter := opts.Limiter
	if limiter == nil {
		limiter = rate.NewLimiter(5, 5)
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		opts:    opts,
		limiter: limiter,
	}
}

// statusError marks a transient response status so the retry policy can
// tell it apart from transport failures.
type statusError struct {
	code int
	url  string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("fetcher: http %d from %s", e.code, e.url)
}

func (f *HTTPFetcher) doWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	policy := resilience.Policy{
		MaxAttempts: f.opts.MaxRetries,
		BaseDelay:   time.Second,
		Jitter:      0.3,
		ShouldRetry: func(err error) bool {
			var se *statusError
			if errors.As(err, &se) {
				return resilience.IsTransientStatus(se.code)
			}
			return resilience.IsNetworkTransient(err)
		},
		OnRetry: resilience.Logger("fetcher", req.URL.String()),
	}

	var resp *http.Response
	err := resilience.Do(ctx, policy, func(ctx context.Context) error {
		if err := f.limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "fetcher: rate limiter wait")
		}

		r, err := f.client.Do(req.Clone(ctx))
		if err != nil {
			return err
		}
		if resilience.IsTransientStatus(r.StatusCode) {
			_ = r.Body.Close()
			return &statusError{code: r.StatusCode, url: req.URL.String()}
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: request")
	}
	return resp, nil
}

// Download fetches the URL and returns the response body.
func (f *HTTPFetcher) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)

	resp, err := f.doWithRetry(ctx, req)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: download")
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, eris.Errorf("fetcher: unexpected status %d from %s", resp.StatusCode, rawURL)
	}

	return resp.Body, nil
}

// DownloadToFile fetches the URL and writes it to the given path.
func (f *HTTPFetcher) DownloadToFile(ctx context.Context, rawURL string, path string) (int64, error) {
	body, err := f.Download(ctx, rawURL)
	if err != nil {
		return 0, err
	}
	defer body.Close() //nolint:errcheck

	file, err := os.Create(path)
	if err != nil {
		return 0, eris.Wrap(err, "fetcher: create file")
	}
	defer file.Close() //nolint:errcheck

	n, err := io.Copy(file, body)
	if err != nil {
		return n, eris.Wrap(err, "fetcher: write file")
	}

	return n, nil
}
