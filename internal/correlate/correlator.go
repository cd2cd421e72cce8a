// Package correlate assembles streamed request lifecycle events into
// logical rows keyed by correlation id, and tracks recently observed
// filter values for the query surface. Both indexes are bounded and
// evict their oldest entry under capacity pressure.
package correlate

import (
	"sort"
	"sync"
	"time"

	"github.com/meshtap/meshtap/internal/config"
	"github.com/meshtap/meshtap/internal/metricsexporter"
	"github.com/meshtap/meshtap/internal/tapevent"
)

// RowState tracks a correlation id through its lifecycle. Ids absent
// from the index have either never been seen or were already removed.
type RowState int

const (
	// StatePartial means at least one phase has been recorded but the
	// response has not finished.
	StatePartial RowState = iota
	// StateComplete means the responseEnd phase has been recorded.
	StateComplete
)

// Row is one logical request assembled from its lifecycle events.
// Base is the first event observed for the id and carries the shared
// metadata (direction, endpoints). At most one event is stored per
// phase; a duplicate phase overwrites its slot.
type Row struct {
	ID           tapevent.EventID
	Base         *tapevent.Event
	RequestInit  *tapevent.Event
	ResponseInit *tapevent.Event
	ResponseEnd  *tapevent.Event
	State        RowState
	LastUpdated  time.Time
}

// Completed reports whether the responseEnd phase has been recorded.
func (r *Row) Completed() bool {
	return r.State == StateComplete
}

// Direction returns the traffic direction from the base event.
func (r *Row) Direction() tapevent.Direction {
	if r.Base == nil {
		return ""
	}
	return r.Base.Direction
}

// Source returns the source endpoint from the base event.
func (r *Row) Source() tapevent.Endpoint {
	if r.Base == nil {
		return tapevent.Endpoint{}
	}
	return r.Base.Source
}

// Destination returns the destination endpoint from the base event.
func (r *Row) Destination() tapevent.Endpoint {
	if r.Base == nil {
		return tapevent.Endpoint{}
	}
	return r.Base.Destination
}

// TLS reports the connection security of the base event.
func (r *Row) TLS() bool {
	if r.Base == nil {
		return false
	}
	return r.Base.TLS()
}

// Method returns the HTTP method recorded on the requestInit phase.
func (r *Row) Method() string {
	if r.RequestInit == nil || r.RequestInit.RequestInit == nil {
		return ""
	}
	return r.RequestInit.RequestInit.Method
}

// Path returns the request path recorded on the requestInit phase.
func (r *Row) Path() string {
	if r.RequestInit == nil || r.RequestInit.RequestInit == nil {
		return ""
	}
	return r.RequestInit.RequestInit.Path
}

// Scheme returns the request scheme recorded on the requestInit phase.
func (r *Row) Scheme() string {
	if r.RequestInit == nil || r.RequestInit.RequestInit == nil {
		return ""
	}
	return r.RequestInit.RequestInit.Scheme
}

// Authority returns the :authority recorded on the requestInit phase.
func (r *Row) Authority() string {
	if r.RequestInit == nil || r.RequestInit.RequestInit == nil {
		return ""
	}
	return r.RequestInit.RequestInit.Authority
}

// HTTPStatus returns the status recorded on the responseInit phase,
// or zero when that phase has not been observed.
func (r *Row) HTTPStatus() int {
	if r.ResponseInit == nil || r.ResponseInit.ResponseInit == nil {
		return 0
	}
	return r.ResponseInit.ResponseInit.HTTPStatus
}

// GRPCStatus returns the gRPC status recorded on the responseEnd
// phase, or nil for plain HTTP traffic.
func (r *Row) GRPCStatus() *uint32 {
	if r.ResponseEnd == nil || r.ResponseEnd.ResponseEnd == nil {
		return nil
	}
	return r.ResponseEnd.ResponseEnd.GRPCStatusCode
}

// ResponseBytes returns the body size recorded on the responseEnd phase.
func (r *Row) ResponseBytes() uint64 {
	if r.ResponseEnd == nil || r.ResponseEnd.ResponseEnd == nil {
		return 0
	}
	return r.ResponseEnd.ResponseEnd.ResponseBytes
}

// Latency returns the end-to-end duration recorded on the responseEnd
// phase. Rows without a completed response report zero.
func (r *Row) Latency() (time.Duration, error) {
	if r.ResponseEnd == nil || r.ResponseEnd.ResponseEnd == nil {
		return 0, nil
	}
	return tapevent.ParseLatency(r.ResponseEnd.ResponseEnd.SinceRequestInit)
}

// Snapshot is a read-only view of the correlator index. Version
// changes on every mutation so consumers can skip unchanged frames.
type Snapshot struct {
	Rows    []Row
	Version uint64
}

// Correlator indexes in-flight requests by correlation id. Events for
// the same id are merged into one Row; when a promote callback is set,
// completed rows are handed to it and removed from the index.
type Correlator struct {
	mu      sync.Mutex
	rows    map[string]*Row
	cap     int
	version uint64
	promote func(Row)
}

// NewCorrelator creates a Correlator holding at most cap rows. promote
// may be nil, in which case completed rows stay in the index until
// evicted; when set it receives a copy of each row as it completes.
func NewCorrelator(cap int, promote func(Row)) *Correlator {
	if cap <= 0 {
		cap = config.TapResultCap
	}
	return &Correlator{
		rows:    make(map[string]*Row),
		cap:     cap,
		promote: promote,
	}
}

// Apply merges one event into the index. New ids create a row with the
// event as base; known ids have the matching phase slot overwritten. A
// responseEnd marks the row complete and, when a promote callback is
// set, removes it from the index after promotion.
func (c *Correlator) Apply(e *tapevent.Event, now time.Time) {
	if e == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	key := e.ID.String()
	row, ok := c.rows[key]
	if !ok {
		row = &Row{ID: e.ID, Base: e}
		c.rows[key] = row
	}
	switch e.Phase {
	case tapevent.PhaseRequestInit:
		row.RequestInit = e
	case tapevent.PhaseResponseInit:
		row.ResponseInit = e
	case tapevent.PhaseResponseEnd:
		row.ResponseEnd = e
		row.State = StateComplete
	}
	row.LastUpdated = now
	c.version++

	if row.State == StateComplete && c.promote != nil {
		promoted := *row
		delete(c.rows, key)
		c.promote(promoted)
		return
	}
	if len(c.rows) > c.cap {
		c.evictOldest()
	}
}

// evictOldest removes the row with the smallest LastUpdated. Ties go
// to whichever entry the scan reaches first. Callers hold the lock.
func (c *Correlator) evictOldest() {
	var oldestKey string
	var oldest time.Time
	first := true
	for key, row := range c.rows {
		if first || row.LastUpdated.Before(oldest) {
			oldestKey = key
			oldest = row.LastUpdated
			first = false
		}
	}
	if oldestKey != "" {
		delete(c.rows, oldestKey)
		metricsexporter.RecordCorrelatorEviction()
	}
}

// Snapshot returns the current rows in reverse chronological order.
// The returned rows are copies; the events they point at are immutable.
func (c *Correlator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	rows := make([]Row, 0, len(c.rows))
	for _, row := range c.rows {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].LastUpdated.Equal(rows[j].LastUpdated) {
			return rows[i].ID.String() < rows[j].ID.String()
		}
		return rows[i].LastUpdated.After(rows[j].LastUpdated)
	})
	return Snapshot{Rows: rows, Version: c.version}
}

// Len returns the number of rows currently indexed.
func (c *Correlator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.rows)
}

// Version returns the mutation counter without copying the rows.
func (c *Correlator) Version() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

// Reset clears the index. Used when a stream is restarted.
func (c *Correlator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows = make(map[string]*Row)
	c.version++
}
