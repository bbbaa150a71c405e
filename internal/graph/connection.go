package graph

// SetLatencyOutcome is the result of Connection.SetLatency.
type SetLatencyOutcome int

const (
	LatencyOK SetLatencyOutcome = iota
	// ConnectionsNeedReset is returned when shrinking the delay line would
	// require popping samples that have not been pushed yet - the caller
	// must prepare_to_play before the next WorkSet. spec.md §4.2.
	ConnectionsNeedReset
)

// Connection is the sample queue between one output pad and one input
// pad, with an adjustable delay line for latency compensation -
// spec.md §3/§4.2.
type Connection struct {
	samples          []float64
	latency          int
	remainingLatency int
}

// NewConnection returns an empty, zero-latency connection.
func NewConnection() *Connection {
	return &Connection{}
}

// SetLatency adjusts the delay line to a new target latency, in samples.
// Shrinking the delay (new_latency < already_delayed) pops samples from
// the head of the queue to "catch up"; if there aren't enough buffered
// samples to pop, the connection can't shrink without glitching and
// ConnectionsNeedReset is returned (the caller must re-prepare the
// graph). Growing the delay increases the remaining-latency counter so
// future reads see that many additional silent samples first.
//
// Grounded on original_source's connection.rs::Connection::set_latency.
func (c *Connection) SetLatency(newLatency int) SetLatencyOutcome {
	alreadyDelayed := c.latency - c.remainingLatency
	diff := newLatency - alreadyDelayed

	if diff < 0 {
		for i := 0; i < -diff; i++ {
			if len(c.samples) == 0 {
				return ConnectionsNeedReset
			}
			c.samples = c.samples[1:]
		}
		c.remainingLatency = 0
	} else {
		c.remainingLatency = diff
	}

	c.latency = newLatency
	return LatencyOK
}

// Latency returns the connection's current target latency, in samples.
func (c *Connection) Latency() int { return c.latency }

// Push appends samples produced by the upstream node this cycle.
func (c *Connection) Push(samples []float64) {
	c.samples = append(c.samples, samples...)
}

// Pull removes and returns exactly n samples for the downstream node to
// read, silence-filling while remaining_latency > 0 and padding with
// trailing silence if fewer than n real samples are buffered (keeps the
// invariant "every connection produces exactly buffer_size samples per
// downstream read" even when an upstream node missed its deadline).
func (c *Connection) Pull(n int) []float64 {
	out := make([]float64, n)
	i := 0

	for i < n && c.remainingLatency > 0 {
		c.remainingLatency--
		i++
	}

	take := n - i
	if take > len(c.samples) {
		take = len(c.samples)
	}
	copy(out[i:i+take], c.samples[:take])
	c.samples = c.samples[take:]

	// Any shortfall (buffer underrun) is left as zero - silence.
	return out
}

// Buffered reports how many real (non-silence) samples are currently
// queued - used by property tests checking the per-cycle sample-count
// invariant.
func (c *Connection) Buffered() int { return len(c.samples) }
