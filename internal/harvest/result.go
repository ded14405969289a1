package harvest

import (
	"github.com/rotisserie/eris"

	"github.com/gisfun/geoharvest/pkg/onemap"
)

// Outcome classifies how a key's fetch terminated.
type Outcome int

const (
	// Complete means every page was fetched and at least one record found.
	Complete Outcome = iota + 1
	// Partial means the fetch gave up early; Records holds whatever was
	// collected before that point, possibly nothing.
	Partial
	// Empty means every page was fetched and the key has no records.
	Empty
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case Complete:
		return "complete"
	case Partial:
		return "partial"
	case Empty:
		return "empty"
	default:
		return "unknown"
	}
}

// Reason records why a Partial fetch stopped.
type Reason string

const (
	ReasonNone             Reason = ""
	ReasonRetriesExhausted Reason = "retries_exhausted"
	ReasonPermanentStatus  Reason = "permanent_status"
)

// KeyResult is the terminal state of one key's fetch. Exactly one is
// produced per key regardless of how the fetch went.
type KeyResult struct {
	Key     string
	Records []onemap.Record
	Outcome Outcome
	Reason  Reason
}

// Stats summarizes one engine run.
type Stats struct {
	Total     int
	Completed int
	Partial   int
	Empty     int
	Records   int
}

// ErrNoData is returned by Aggregate when every key came back empty, so
// callers can skip the export stage entirely.
var ErrNoData = eris.New("harvest: no records collected")

// Aggregate flattens per-key results into one record set. Order between
// keys follows completion order; order within a key is page order. Records
// are passed through unchanged.
func Aggregate(results []KeyResult) ([]onemap.Record, error) {
	var out []onemap.Record
	for _, r := range results {
		out = append(out, r.Records...)
	}
	if len(out) == 0 {
		return nil, ErrNoData
	}
	return out, nil
}
