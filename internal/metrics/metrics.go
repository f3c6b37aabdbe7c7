// Package metrics provides lightweight, lock-free counters and gauges
// for tracking runtime statistics of a running server.
//
// All methods are safe for concurrent use.  A nil *Collector is a
// valid no-op receiver, so callers never need to nil-check.
package metrics

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Collector tracks runtime metrics for the server.
// A nil Collector is safe to use; all methods become no-ops.
type Collector struct {
	connectionsActive atomic.Int64
	connectionsTotal  atomic.Int64
	bytesIn           atomic.Int64
	bytesOut          atomic.Int64
	refused           atomic.Int64
	lookupsResolved   atomic.Int64
	copyovers         atomic.Int64
	errorsTotal       atomic.Int64

	mu           sync.RWMutex
	startTime    time.Time
	lastTick     time.Time
	lastError    time.Time
	lastErrorMsg string
}

// New creates a metrics collector with the start time set to now.
func New() *Collector {
	return &Collector{startTime: time.Now()}
}

// ── Connection metrics ───────────────────────────────────────────────

// ConnectionOpened increments both the active and total counters.
func (c *Collector) ConnectionOpened() {
	if c == nil {
		return
	}
	c.connectionsActive.Add(1)
	c.connectionsTotal.Add(1)
}

// ConnectionClosed decrements the active connection counter.
func (c *Collector) ConnectionClosed() {
	if c == nil {
		return
	}
	c.connectionsActive.Add(-1)
}

// ActiveConnections returns the current number of open connections.
func (c *Collector) ActiveConnections() int64 {
	if c == nil {
		return 0
	}
	return c.connectionsActive.Load()
}

// TotalConnections returns the lifetime connection count.
func (c *Collector) TotalConnections() int64 {
	if c == nil {
		return 0
	}
	return c.connectionsTotal.Load()
}

// ── I/O metrics ──────────────────────────────────────────────────────

// BytesReceived records n bytes read from the network.
func (c *Collector) BytesReceived(n int64) {
	if c == nil {
		return
	}
	c.bytesIn.Add(n)
}

// BytesSent records n bytes written to the network.
func (c *Collector) BytesSent(n int64) {
	if c == nil {
		return
	}
	c.bytesOut.Add(n)
}

// TotalBytesIn returns total bytes received.
func (c *Collector) TotalBytesIn() int64 {
	if c == nil {
		return 0
	}
	return c.bytesIn.Load()
}

// TotalBytesOut returns total bytes sent.
func (c *Collector) TotalBytesOut() int64 {
	if c == nil {
		return 0
	}
	return c.bytesOut.Load()
}

// ConnectionRefused records an accept turned away by the connection limit.
func (c *Collector) ConnectionRefused() {
	if c == nil {
		return
	}
	c.refused.Add(1)
}

// RefusedConnections returns how many accepts were turned away.
func (c *Collector) RefusedConnections() int64 {
	if c == nil {
		return 0
	}
	return c.refused.Load()
}

// ── Lifecycle metrics ────────────────────────────────────────────────

// LookupResolved records a completed background hostname lookup.
func (c *Collector) LookupResolved() {
	if c == nil {
		return
	}
	c.lookupsResolved.Add(1)
}

// LookupsResolved returns the number of completed hostname lookups.
func (c *Collector) LookupsResolved() int64 {
	if c == nil {
		return 0
	}
	return c.lookupsResolved.Load()
}

// Copyover records a copyover attempt.
func (c *Collector) Copyover() {
	if c == nil {
		return
	}
	c.copyovers.Add(1)
}

// Copyovers returns the number of copyover attempts.
func (c *Collector) Copyovers() int64 {
	if c == nil {
		return 0
	}
	return c.copyovers.Load()
}

// ── Error metrics ────────────────────────────────────────────────────

// RecordError increments the error counter and stores the message.
func (c *Collector) RecordError(msg string) {
	if c == nil {
		return
	}
	c.errorsTotal.Add(1)
	c.mu.Lock()
	c.lastError = time.Now()
	c.lastErrorMsg = msg
	c.mu.Unlock()
}

// ErrorCount returns the total number of errors recorded.
func (c *Collector) ErrorCount() int64 {
	if c == nil {
		return 0
	}
	return c.errorsTotal.Load()
}

// ── Ticks ────────────────────────────────────────────────────────────

// RecordTick updates the timestamp of the last once-per-second update.
func (c *Collector) RecordTick() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.lastTick = time.Now()
	c.mu.Unlock()
}

// ── Snapshot ─────────────────────────────────────────────────────────

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Uptime            string `json:"uptime"`
	ConnectionsActive int64  `json:"connections_active"`
	ConnectionsTotal  int64  `json:"connections_total"`
	BytesIn           int64  `json:"bytes_in"`
	BytesOut          int64  `json:"bytes_out"`
	Refused           int64  `json:"connections_refused"`
	LookupsResolved   int64  `json:"lookups_resolved"`
	Copyovers         int64  `json:"copyovers"`
	ErrorsTotal       int64  `json:"errors_total"`
	LastTick          string `json:"last_tick,omitempty"`
	LastError         string `json:"last_error,omitempty"`
	LastErrorMessage  string `json:"last_error_message,omitempty"`
}

// Snapshot returns a copy of all current metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Uptime:            time.Since(c.startTime).Truncate(time.Second).String(),
		ConnectionsActive: c.connectionsActive.Load(),
		ConnectionsTotal:  c.connectionsTotal.Load(),
		BytesIn:           c.bytesIn.Load(),
		BytesOut:          c.bytesOut.Load(),
		Refused:           c.refused.Load(),
		LookupsResolved:   c.lookupsResolved.Load(),
		Copyovers:         c.copyovers.Load(),
		ErrorsTotal:       c.errorsTotal.Load(),
	}
	if !c.lastTick.IsZero() {
		s.LastTick = c.lastTick.Format(time.RFC3339)
	}
	if !c.lastError.IsZero() {
		s.LastError = c.lastError.Format(time.RFC3339)
		s.LastErrorMessage = c.lastErrorMsg
	}
	return s
}

// JSON returns the snapshot as an indented JSON string.
func (c *Collector) JSON() string {
	s := c.Snapshot()
	data, _ := json.MarshalIndent(s, "", "  ")
	return string(data)
}
