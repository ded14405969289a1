package stops

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/gisfun/geoharvest/internal/export"
	"github.com/gisfun/geoharvest/internal/fetcher"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<busstops>
  <busstop name="Opp Blk 1" wab="true">
    <details>Aft Jln Bukit Merah</details>
    <coordinates><lat>1.2764</lat><long>103.8540</long></coordinates>
  </busstop>
  <busstop name="Marina Ctr Ter" wab="false">
    <details></details>
    <coordinates><lat>1.2910</lat><long>103.8630</long></coordinates>
  </busstop>
</busstops>`

type captureExporter struct {
	calls   int
	records []export.Record
	err     error
}

func (c *captureExporter) ExportStops(_ context.Context, records []export.Record) error {
	c.calls++
	c.records = records
	return c.err
}

func feedServer(t *testing.T, body string, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
}

func testFetcher() fetcher.Fetcher {
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		Limiter: rate.NewLimiter(rate.Inf, 1),
	})
}

func TestPipeline_Run(t *testing.T) {
	t.Parallel()

	srv := feedServer(t, sampleFeed, http.StatusOK)
	defer srv.Close()

	exp := &captureExporter{}
	count, err := NewPipeline(testFetcher(), exp, srv.URL).Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, 1, exp.calls)
	require.Len(t, exp.records, 2)

	first := exp.records[0]
	assert.Equal(t, "Opp Blk 1", first["name"])
	assert.Equal(t, true, first["wab"])
	assert.Equal(t, "Aft Jln Bukit Merah", first["details"])
	assert.Equal(t, "1.2764", first["lat"])
	assert.Equal(t, "103.8540", first["long"])

	assert.Equal(t, false, exp.records[1]["wab"])
}

func TestPipeline_EmptyFeed(t *testing.T) {
	t.Parallel()

	srv := feedServer(t, `<?xml version="1.0"?><busstops></busstops>`, http.StatusOK)
	defer srv.Close()

	exp := &captureExporter{}
	_, err := NewPipeline(testFetcher(), exp, srv.URL).Run(context.Background())

	assert.ErrorIs(t, err, ErrEmptyFeed)
	assert.Equal(t, 0, exp.calls)
}

func TestPipeline_DownloadFailureIsFatal(t *testing.T) {
	t.Parallel()

	srv := feedServer(t, "gone", http.StatusNotFound)
	defer srv.Close()

	exp := &captureExporter{}
	_, err := NewPipeline(testFetcher(), exp, srv.URL).Run(context.Background())

	require.Error(t, err)
	assert.Equal(t, 0, exp.calls)
}

func TestPipeline_ExportFailurePropagates(t *testing.T) {
	t.Parallel()

	srv := feedServer(t, sampleFeed, http.StatusOK)
	defer srv.Close()

	exp := &captureExporter{err: assert.AnError}
	_, err := NewPipeline(testFetcher(), exp, srv.URL).Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "export")
}
