// Package harvest implements the bounded-concurrency postal-code fetch
// pipeline: one paginated OneMap fetch per key, fanned out under a
// concurrency cap with a shared request rate limit, per-page retry with
// exponential backoff, and a single consumer draining completions into the
// aggregate record set.
package harvest
