package harvest

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/gisfun/geoharvest/internal/resilience"
	"github.com/gisfun/geoharvest/pkg/onemap"
)

// Fetcher drives one key's multi-page retrieval against the search API.
type Fetcher struct {
	client onemap.Client
	retry  resilience.Policy
}

// NewFetcher creates a fetcher. The retry policy is applied per page; the
// attempt budget resets every time a page succeeds.
func NewFetcher(client onemap.Client, retry resilience.Policy) *Fetcher {
	return &Fetcher{client: client, retry: retry}
}

// FetchKey retrieves every result page for one postal code. It never
// returns an error: a permanent status abandons the key immediately and an
// exhausted retry budget stops early, both degrading to a Partial result
// holding whatever was collected so far.
func (f *Fetcher) FetchKey(ctx context.Context, key string) KeyResult {
	log := zap.L().With(
		zap.String("component", "harvest.fetcher"),
		zap.String("key", key),
	)

	res := KeyResult{Key: key, Outcome: Complete}

	policy := f.retry
	policy.ShouldRetry = retryable
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		log.Warn("transient page failure, backing off",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
	}

	for page := 1; ; {
		var sp *onemap.SearchPage
		err := resilience.Do(ctx, policy, func(ctx context.Context) error {
			p, perr := f.client.SearchPage(ctx, key, page)
			if perr != nil {
				return perr
			}
			sp = p
			return nil
		})
		if err != nil {
			res.Outcome = Partial
			var se *onemap.StatusError
			if errors.As(err, &se) && !resilience.IsTransientStatus(se.Code) {
				log.Warn("permanent status, abandoning key",
					zap.Int("status", se.Code),
					zap.Int("page", page),
				)
				res.Reason = ReasonPermanentStatus
			} else {
				log.Warn("retry budget exhausted, keeping partial collection",
					zap.Int("page", page),
					zap.Int("collected", len(res.Records)),
					zap.Error(err),
				)
				res.Reason = ReasonRetriesExhausted
			}
			return res
		}

		res.Records = append(res.Records, sp.Results...)

		// Page N+1 is only requested once page N is fully processed.
		if sp.TotalNumPages > page {
			page++
			continue
		}
		break
	}

	if len(res.Records) == 0 {
		res.Outcome = Empty
	}
	return res
}

// retryable treats transport and decode failures as transient; for status
// errors only 408/429/5xx are worth another attempt.
func retryable(err error) bool {
	var se *onemap.StatusError
	if errors.As(err, &se) {
		return resilience.IsTransientStatus(se.Code)
	}
	return true
}
