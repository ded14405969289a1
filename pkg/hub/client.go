// Package hub provides a minimal Hugging Face Hub client for publishing
// files into a dataset repository via the commit API.
package hub

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://huggingface.co"

// Client publishes files to a dataset repository.
type Client interface {
	// Upload commits one local file to repoPath in the dataset repo.
	Upload(ctx context.Context, localPath, repoPath string) error
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

// WithRevision sets the target branch. Default: main.
func WithRevision(rev string) Option {
	return func(c *httpClient) {
		c.revision = rev
	}
}

type httpClient struct {
	baseURL  string
	repoID   string
	token    string
	revision string
	http     *http.Client
}

// NewClient creates a client for the given dataset repo (e.g.
// "gisfun/spatial-datasets") authenticated with a bearer token.
func NewClient(repoID, token string, opts ...Option) Client {
	c := &httpClient{
		baseURL:  defaultBaseURL,
		repoID:   repoID,
		token:    token,
		revision: "main",
		http: &http.Client{
			Timeout: 2 * time.Minute,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// commitOp is one NDJSON line of the commit payload.
type commitOp struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

type commitHeader struct {
	Summary     string `json:"summary"`
	Description string `json:"description"`
}

type commitFile struct {
	Path     string `json:"path"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

// Upload commits one local file to repoPath in the dataset repo. Transient
// statuses are retried with doubling backoff; any other failure is returned
// to the caller, which treats it as fatal.
func (c *httpClient) Upload(ctx context.Context, localPath, repoPath string) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return eris.Wrapf(err, "hub: read %s", localPath)
	}

	payload, err := commitPayload(repoPath, data)
	if err != nil {
		return err
	}

	reqURL := fmt.Sprintf("%s/api/datasets/%s/commit/%s", c.baseURL, c.repoID, c.revision)

	body, status, err := c.retryDo(ctx, reqURL, payload)
	if err != nil {
		return eris.Wrapf(err, "hub: commit %s", repoPath)
	}
	if status != http.StatusOK {
		return eris.Errorf("hub: commit %s: status %d: %s", repoPath, status, string(body))
	}
	return nil
}

// commitPayload builds the NDJSON commit body: a header op followed by one
// base64-encoded file op.
func commitPayload(repoPath string, data []byte) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)

	ops := []commitOp{
		{Key: "header", Value: commitHeader{Summary: "Add " + repoPath}},
		{Key: "file", Value: commitFile{
			Path:     repoPath,
			Content:  base64.StdEncoding.EncodeToString(data),
			Encoding: "base64",
		}},
	}
	for _, op := range ops {
		if err := enc.Encode(op); err != nil {
			return nil, eris.Wrap(err, "hub: encode commit op")
		}
	}
	return buf.Bytes(), nil
}

// retryableStatusCode returns true if the status should trigger a retry.
func retryableStatusCode(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// retryDo posts the payload with exponential backoff on transient failures.
// The request is rebuilt per attempt so the body is always readable.
func (c *httpClient) retryDo(ctx context.Context, reqURL string, payload []byte) ([]byte, int, error) {
	const maxAttempts = 3
	backoff := time.Second

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(payload))
		if err != nil {
			return nil, 0, eris.Wrap(err, "hub: build request")
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Content-Type", "application/x-ndjson")

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			if attempt < maxAttempts {
				select {
				case <-ctx.Done():
					return nil, 0, ctx.Err()
				case <-time.After(backoff):
				}
				backoff *= 2
				continue
			}
			return nil, 0, lastErr
		}

		body := new(bytes.Buffer)
		_, readErr := body.ReadFrom(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, resp.StatusCode, eris.Wrap(readErr, "hub: read response body")
		}

		if retryableStatusCode(resp.StatusCode) && attempt < maxAttempts {
			lastErr = eris.Errorf("hub: status %d: %s", resp.StatusCode, body.String())
			select {
			case <-ctx.Done():
				return nil, 0, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			continue
		}

		return body.Bytes(), resp.StatusCode, nil
	}

	return nil, 0, lastErr
}
