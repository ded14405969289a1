package harvest

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/gisfun/geoharvest/pkg/onemap"
)

// maxPostalCode is the largest value a six-digit postal code can hold.
const maxPostalCode = 999999

// Exporter persists a harvested record set. The range driver calls it
// exactly once per run, and only with a non-empty record set.
type Exporter interface {
	ExportAddresses(ctx context.Context, records []onemap.Record, start, end int) error
}

// RangeDriver owns one harvest run: key generation, engine invocation,
// aggregation, and the export hand-off.
type RangeDriver struct {
	engine   *Engine
	exporter Exporter
}

// NewRangeDriver creates a range driver.
func NewRangeDriver(engine *Engine, exporter Exporter) *RangeDriver {
	return &RangeDriver{engine: engine, exporter: exporter}
}

// Keys returns the zero-padded six-digit postal codes in [start, end].
func Keys(start, end int) ([]string, error) {
	if start < 0 || end > maxPostalCode {
		return nil, eris.Errorf("harvest: range %d..%d outside 0..%d", start, end, maxPostalCode)
	}
	if start > end {
		return nil, eris.Errorf("harvest: invalid range: start %d after end %d", start, end)
	}

	keys := make([]string, 0, end-start+1)
	for p := start; p <= end; p++ {
		keys = append(keys, fmt.Sprintf("%06d", p))
	}
	return keys, nil
}

// Run harvests the range and hands any records to the exporter. Per-key
// fetch failures are never fatal; ErrNoData is returned when every key came
// back empty, and export failures propagate as-is.
func (d *RangeDriver) Run(ctx context.Context, start, end int) (Stats, error) {
	keys, err := Keys(start, end)
	if err != nil {
		return Stats{}, err
	}

	log := zap.L().With(
		zap.String("component", "harvest.range"),
		zap.String("range", fmt.Sprintf("%06d-%06d", start, end)),
	)
	log.Info("starting harvest", zap.Int("keys", len(keys)))

	results, stats := d.engine.Run(ctx, keys)

	records, err := Aggregate(results)
	if err != nil {
		log.Warn("no records collected, skipping export",
			zap.Int("keys", stats.Total),
			zap.Int("partial", stats.Partial),
		)
		return stats, err
	}

	if err := d.exporter.ExportAddresses(ctx, records, start, end); err != nil {
		return stats, eris.Wrap(err, "harvest: export")
	}

	log.Info("harvest complete",
		zap.Int("records", stats.Records),
		zap.Int("completed", stats.Completed),
		zap.Int("partial", stats.Partial),
		zap.Int("empty", stats.Empty),
	)
	return stats, nil
}
