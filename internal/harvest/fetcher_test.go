package harvest

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"

	"github.com/gisfun/geoharvest/internal/resilience"
	"github.com/gisfun/geoharvest/pkg/onemap"
)

// pageResp scripts one SearchPage call.
type pageResp struct {
	page *onemap.SearchPage
	err  error
}

// fakeClient serves scripted responses per key and instruments concurrency.
// Keys without a script get a single empty page.
type fakeClient struct {
	mu     sync.Mutex
	script map[string][]pageResp
	calls  map[string]int
	delay  time.Duration

	inFlight    atomic.Int64
	maxInFlight atomic.Int64
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		script: make(map[string][]pageResp),
		calls:  make(map[string]int),
	}
}

func (f *fakeClient) SearchPage(_ context.Context, key string, page int) (*onemap.SearchPage, error) {
	cur := f.inFlight.Add(1)
	for {
		max := f.maxInFlight.Load()
		if cur <= max || f.maxInFlight.CompareAndSwap(max, cur) {
			break
		}
	}
	defer f.inFlight.Add(-1)

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[key]++

	q := f.script[key]
	if len(q) == 0 {
		return &onemap.SearchPage{TotalNumPages: 0, PageNum: page}, nil
	}
	r := q[0]
	f.script[key] = q[1:]
	return r.page, r.err
}

func (f *fakeClient) callCount(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

func rec(id string) onemap.Record {
	return onemap.Record{"SEARCHVAL": id, "LATITUDE": "1.30", "LONGITUDE": "103.85"}
}

func fastRetry() resilience.Policy {
	return resilience.Policy{
		MaxAttempts: 4,
		BaseDelay:   time.Millisecond,
		MaxDelay:    2 * time.Millisecond,
	}
}

func TestFetchKey_PaginationTerminates(t *testing.T) {
	t.Parallel()

	client := newFakeClient()
	client.script["018989"] = []pageResp{
		{page: &onemap.SearchPage{TotalNumPages: 3, PageNum: 1, Results: []onemap.Record{rec("a"), rec("b")}}},
		{page: &onemap.SearchPage{TotalNumPages: 3, PageNum: 2, Results: []onemap.Record{rec("c")}}},
		{page: &onemap.SearchPage{TotalNumPages: 3, PageNum: 3, Results: []onemap.Record{rec("d")}}},
	}

	f := NewFetcher(client, fastRetry())
	res := f.FetchKey(context.Background(), "018989")

	assert.Equal(t, Complete, res.Outcome)
	assert.Equal(t, 3, client.callCount("018989"))

	ids := make([]string, len(res.Records))
	for i, r := range res.Records {
		ids[i] = r["SEARCHVAL"].(string)
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids)
}

func TestFetchKey_PermanentStatusStopsImmediately(t *testing.T) {
	t.Parallel()

	client := newFakeClient()
	client.script["000404"] = []pageResp{
		{err: &onemap.StatusError{Code: http.StatusNotFound}},
	}

	f := NewFetcher(client, fastRetry())
	res := f.FetchKey(context.Background(), "000404")

	assert.Equal(t, Partial, res.Outcome)
	assert.Equal(t, ReasonPermanentStatus, res.Reason)
	assert.Empty(t, res.Records)
	assert.Equal(t, 1, client.callCount("000404"), "permanent errors must not be retried")
}

func TestFetchKey_RetryBudgetExhaustedKeepsPartial(t *testing.T) {
	t.Parallel()

	client := newFakeClient()
	script := []pageResp{
		{page: &onemap.SearchPage{TotalNumPages: 2, PageNum: 1, Results: []onemap.Record{rec("a"), rec("b")}}},
	}
	for range 4 {
		script = append(script, pageResp{err: &onemap.StatusError{Code: http.StatusTooManyRequests}})
	}
	client.script["000429"] = script

	f := NewFetcher(client, fastRetry())
	res := f.FetchKey(context.Background(), "000429")

	assert.Equal(t, Partial, res.Outcome)
	assert.Equal(t, ReasonRetriesExhausted, res.Reason)
	assert.Len(t, res.Records, 2, "pages collected before exhaustion are kept")
	assert.Equal(t, 5, client.callCount("000429"), "one good page plus four attempts on page 2")
}

func TestFetchKey_TransientThenSuccess(t *testing.T) {
	t.Parallel()

	client := newFakeClient()
	client.script["000500"] = []pageResp{
		{err: &onemap.StatusError{Code: http.StatusInternalServerError}},
		{err: eris.New("connection reset by peer")},
		{page: &onemap.SearchPage{TotalNumPages: 1, PageNum: 1, Results: []onemap.Record{rec("a")}}},
	}

	f := NewFetcher(client, fastRetry())
	res := f.FetchKey(context.Background(), "000500")

	assert.Equal(t, Complete, res.Outcome)
	assert.Len(t, res.Records, 1)
	assert.Equal(t, 3, client.callCount("000500"))
}

func TestFetchKey_NoResultsIsEmpty(t *testing.T) {
	t.Parallel()

	client := newFakeClient()

	f := NewFetcher(client, fastRetry())
	res := f.FetchKey(context.Background(), "999999")

	assert.Equal(t, Empty, res.Outcome)
	assert.Equal(t, ReasonNone, res.Reason)
	assert.Empty(t, res.Records)
}

func TestFetchKey_RetryBudgetResetsPerPage(t *testing.T) {
	t.Parallel()

	// Three transient failures before each of two pages: under a per-page
	// budget of four this completes; a run-wide budget would give up.
	client := newFakeClient()
	var script []pageResp
	for range 3 {
		script = append(script, pageResp{err: &onemap.StatusError{Code: http.StatusServiceUnavailable}})
	}
	script = append(script, pageResp{page: &onemap.SearchPage{TotalNumPages: 2, PageNum: 1, Results: []onemap.Record{rec("a")}}})
	for range 3 {
		script = append(script, pageResp{err: &onemap.StatusError{Code: http.StatusServiceUnavailable}})
	}
	script = append(script, pageResp{page: &onemap.SearchPage{TotalNumPages: 2, PageNum: 2, Results: []onemap.Record{rec("b")}}})
	client.script["000503"] = script

	f := NewFetcher(client, fastRetry())
	res := f.FetchKey(context.Background(), "000503")

	assert.Equal(t, Complete, res.Outcome)
	assert.Len(t, res.Records, 2)
	assert.Equal(t, 8, client.callCount("000503"))
}
