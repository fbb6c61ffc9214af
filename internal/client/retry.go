package client

// RetryPolicy decides when a waiting state (SELECTING, REQUESTING, RENEWING)
// has run out of time. When Expired reports true the session abandons the
// exchange and restarts the whole negotiation from INIT; there is no partial
// retransmit. The policy is swappable so a consumer can bound retries
// without touching the transition logic.
type RetryPolicy interface {
	// Expired reports whether elapsed milliseconds in the current waiting
	// state exceed the policy's patience.
	Expired(elapsed uint32) bool
}

// DefaultRequestTimeout is the per-state wait before the negotiation
// restarts, in milliseconds.
const DefaultRequestTimeout = 10000

// FixedRetry restarts after a fixed interval, forever. This is the behaviour
// of an always-on embedded client: no backoff, no attempt cap.
type FixedRetry struct {
	// IntervalMillis is the per-state timeout. Zero means
	// DefaultRequestTimeout.
	IntervalMillis uint32
}

// Expired implements RetryPolicy.
func (p FixedRetry) Expired(elapsed uint32) bool {
	interval := p.IntervalMillis
	if interval == 0 {
		interval = DefaultRequestTimeout
	}
	return elapsed > interval
}
