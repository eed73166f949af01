package stats

import (
	"sync/atomic"
	"time"
)

// IVFCounters holds the process-wide monotonic counters accumulated across
// IVF searches. Updates happen at parallel-region boundaries rather than
// per-scan, so flushes are eventually consistent under concurrent searches.
type IVFCounters struct {
	Nq                 atomic.Int64
	Nlist              atomic.Int64 // lists scanned
	Ndis               atomic.Int64 // distances computed
	NheapUpdates       atomic.Int64
	QuantizationTimeMs atomic.Int64
	SearchTimeMs       atomic.Int64
}

// Default is the global counter sink used when an IVF index is not given
// its own via Index.SetStats.
var Default = &IVFCounters{}

// Reset zeroes every counter.
func (c *IVFCounters) Reset() {
	c.Nq.Store(0)
	c.Nlist.Store(0)
	c.Ndis.Store(0)
	c.NheapUpdates.Store(0)
	c.QuantizationTimeMs.Store(0)
	c.SearchTimeMs.Store(0)
}

// AddQuantizationTime records elapsed quantization time.
func (c *IVFCounters) AddQuantizationTime(d time.Duration) {
	c.QuantizationTimeMs.Add(d.Milliseconds())
}

// AddSearchTime records elapsed search time.
func (c *IVFCounters) AddSearchTime(d time.Duration) {
	c.SearchTimeMs.Add(d.Milliseconds())
}

// Snapshot is a point-in-time copy of the counters, safe to hand to callers.
type Snapshot struct {
	Nq                 int64
	Nlist              int64
	Ndis               int64
	NheapUpdates       int64
	QuantizationTimeMs int64
	SearchTimeMs       int64
}

// Snapshot reads every counter.
func (c *IVFCounters) Snapshot() Snapshot {
	return Snapshot{
		Nq:                 c.Nq.Load(),
		Nlist:              c.Nlist.Load(),
		Ndis:               c.Ndis.Load(),
		NheapUpdates:       c.NheapUpdates.Load(),
		QuantizationTimeMs: c.QuantizationTimeMs.Load(),
		SearchTimeMs:       c.SearchTimeMs.Load(),
	}
}
