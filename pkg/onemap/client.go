// Package onemap provides a client for the OneMap Singapore elastic search API.
package onemap

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://www.onemap.gov.sg"

// Record is one raw address hit from the search API. The field set is
// whatever the API returns (SEARCHVAL, ADDRESS, POSTAL, LATITUDE, LONGITUDE,
// ...); callers that need specific fields interpret them at export time.
type Record map[string]any

// SearchPage is one page of the elastic search response.
type SearchPage struct {
	Found         int      `json:"found"`
	TotalNumPages int      `json:"totalNumPages"`
	PageNum       int      `json:"pageNum"`
	Results       []Record `json:"results"`
}

// StatusError reports a non-200 response from the API.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("onemap: status %d", e.Code)
}

// Client performs paginated searches against OneMap.
type Client interface {
	// SearchPage fetches one page of results for a search value.
	SearchPage(ctx context.Context, searchVal string, page int) (*SearchPage, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(base string) Option {
	return func(c *httpClient) {
		c.baseURL = base
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithToken sets a bearer token for authenticated access. The public search
// endpoint works without one, so this is off by default.
func WithToken(token string) Option {
	return func(c *httpClient) {
		c.token = token
	}
}

// WithLimiter sets the shared token-bucket limiter applied before every
// request, including the first page of every search.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *httpClient) {
		c.limiter = l
	}
}

type httpClient struct {
	baseURL string
	token   string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a new OneMap search client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 20 * time.Second,
		},
		limiter: rate.NewLimiter(5, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SearchPage fetches one page of results for a search value. Non-200
// responses return *StatusError; transport and decode failures return a
// wrapped error. The caller decides what to retry.
func (c *httpClient) SearchPage(ctx context.Context, searchVal string, page int) (*SearchPage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "onemap: rate limit wait")
	}

	params := url.Values{
		"searchVal":      {searchVal},
		"returnGeom":     {"Y"},
		"getAddrDetails": {"Y"},
		"pageNum":        {strconv.Itoa(page)},
	}
	reqURL := c.baseURL + "/api/common/elastic/search?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "onemap: build request")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "onemap: search %q page %d", searchVal, page)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{Code: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "onemap: read body")
	}

	var sp SearchPage
	if err := json.Unmarshal(body, &sp); err != nil {
		return nil, eris.Wrap(err, "onemap: decode response")
	}

	return &sp, nil
}
