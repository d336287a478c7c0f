package world

import (
	"sync/atomic"
)

// Metrics tracks counters of the chunk streaming of a World. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	generated atomic.Uint64
	failed    atomic.Uint64
	evicted   atomic.Uint64
	coalesced atomic.Uint64
	rejected  atomic.Uint64
	cancelled atomic.Uint64

	resident atomic.Int64
	inFlight atomic.Int64
}

// MetricsSnapshot is a point-in-time copy of Metrics.
type MetricsSnapshot struct {
	// Generated is the number of chunks generated successfully.
	Generated uint64 `json:"generated"`
	// Failed is the number of generation attempts that returned an error or
	// panicked.
	Failed uint64 `json:"failed"`
	// Evicted is the number of chunks removed for leaving the retention area.
	Evicted uint64 `json:"evicted"`
	// Coalesced is the number of requests merged into a generation already in
	// flight.
	Coalesced uint64 `json:"coalesced"`
	// Rejected is the number of dispatches refused by the worker pool, the
	// rate limit or the per-tick budget.
	Rejected uint64 `json:"rejected"`
	// Cancelled is the number of generated chunks dropped because they were no
	// longer needed when generation completed.
	Cancelled uint64 `json:"cancelled"`
	// Resident is the number of resident chunks after the last tick.
	Resident int64 `json:"resident"`
	// InFlight is the number of chunks queued or generating after the last
	// tick.
	InFlight int64 `json:"in_flight"`
}

// Snapshot returns the current values of m.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	return MetricsSnapshot{
		Generated: m.generated.Load(),
		Failed:    m.failed.Load(),
		Evicted:   m.evicted.Load(),
		Coalesced: m.coalesced.Load(),
		Rejected:  m.rejected.Load(),
		Cancelled: m.cancelled.Load(),
		Resident:  m.resident.Load(),
		InFlight:  m.inFlight.Load(),
	}
}

func (m *Metrics) incGenerated() {
	if m != nil {
		m.generated.Add(1)
	}
}

func (m *Metrics) incFailed() {
	if m != nil {
		m.failed.Add(1)
	}
}

func (m *Metrics) incEvicted() {
	if m != nil {
		m.evicted.Add(1)
	}
}

func (m *Metrics) incCoalesced() {
	if m != nil {
		m.coalesced.Add(1)
	}
}

func (m *Metrics) incRejected() {
	if m != nil {
		m.rejected.Add(1)
	}
}

func (m *Metrics) incCancelled() {
	if m != nil {
		m.cancelled.Add(1)
	}
}

func (m *Metrics) setGauges(resident, inFlight int) {
	if m == nil {
		return
	}
	m.resident.Store(int64(resident))
	m.inFlight.Store(int64(inFlight))
}
