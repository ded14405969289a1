package harvest

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Engine fans one fetcher out per key under a fixed concurrency cap and
// drains completions as they arrive.
type Engine struct {
	fetcher  *Fetcher
	limit    int
	logEvery int
}

// NewEngine creates an engine. limit bounds concurrently active fetchers;
// logEvery sets the progress log cadence in completions.
func NewEngine(f *Fetcher, limit, logEvery int) *Engine {
	if limit <= 0 {
		limit = 1
	}
	if logEvery <= 0 {
		logEvery = 50
	}
	return &Engine{fetcher: f, limit: limit, logEvery: logEvery}
}

// Run fetches every key and returns one result per key in completion order.
// A single consumer drains the completion channel, so the progress counter
// and the aggregate need no cross-task synchronization. Fetches never fail;
// degraded keys show up as Partial results in the stats.
func (e *Engine) Run(ctx context.Context, keys []string) ([]KeyResult, Stats) {
	log := zap.L().With(zap.String("component", "harvest.engine"))

	results := make(chan KeyResult)

	var g errgroup.Group
	g.SetLimit(e.limit)

	go func() {
		for _, key := range keys {
			g.Go(func() error {
				results <- e.fetcher.FetchKey(ctx, key)
				return nil
			})
		}
		_ = g.Wait()
		close(results)
	}()

	stats := Stats{Total: len(keys)}
	out := make([]KeyResult, 0, len(keys))
	done := 0

	for r := range results {
		done++
		out = append(out, r)
		stats.Records += len(r.Records)

		switch r.Outcome {
		case Complete:
			stats.Completed++
		case Partial:
			stats.Partial++
		case Empty:
			stats.Empty++
		}

		if done%e.logEvery == 0 || done == stats.Total {
			log.Info("progress",
				zap.Int("done", done),
				zap.Int("total", stats.Total),
				zap.Int("records", stats.Records),
				zap.Float64("pct", float64(done)/float64(stats.Total)*100),
			)
		}
	}

	return out, stats
}
