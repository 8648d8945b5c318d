// Package materialize fans normalized item events out to the primary store
// and the search index. Each sink is written independently with a bounded
// retry loop; the sinks' conditional writes make redelivery and reordering
// safe, so the coordinator never holds locks across the fan-out.
package materialize

// Outcome classifies the result of one write attempt against one sink.
type Outcome int

const (
	// OutcomeApplied means the sink accepted and stored the version.
	OutcomeApplied Outcome = iota
	// OutcomeSkipped means the sink already held an equal-or-newer
	// version. Skips are convergence, not failure.
	OutcomeSkipped
	// OutcomeFailed means the write errored after exhausting retries or
	// hit a fatal error.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result reports how one sink handled one item version. Fatal is set on
// failures that were not worth retrying; unset failures exhausted the
// retry budget on transient errors.
type Result struct {
	Sink     string
	Outcome  Outcome
	Attempts int
	Fatal    bool
	Err      error
}
