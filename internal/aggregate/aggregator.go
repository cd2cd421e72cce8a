// Package aggregate folds completed tap requests into per-route
// traffic aggregates. The index is bounded; the oldest-updated route
// is evicted under capacity pressure.
package aggregate

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/meshtap/meshtap/internal/config"
	"github.com/meshtap/meshtap/internal/correlate"
	"github.com/meshtap/meshtap/internal/logger"
	"github.com/meshtap/meshtap/internal/metricsexporter"
	"github.com/meshtap/meshtap/internal/tapevent"
)

// RouteKey identifies one logical route between two workloads.
type RouteKey struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Method      string `json:"method"`
	Path        string `json:"path"`
}

func (k RouteKey) String() string {
	return k.Source + " " + k.Destination + " " + k.Method + " " + k.Path
}

// Row is a read-only view of one aggregated route.
type Row struct {
	Key                RouteKey      `json:"route"`
	Count              uint64        `json:"count"`
	Success            uint64        `json:"success"`
	Failure            uint64        `json:"failure"`
	SuccessRate        float64       `json:"successRate"`
	Best               time.Duration `json:"bestNs"`
	Worst              time.Duration `json:"worstNs"`
	Last               time.Duration `json:"lastNs"`
	SourceDisplay      []string      `json:"sourceDisplay,omitempty"`
	DestinationDisplay []string      `json:"destinationDisplay,omitempty"`
	Meshed             bool          `json:"meshed"`
	LastUpdated        time.Time     `json:"lastUpdated"`
}

// routeEntry accumulates counters for one route between snapshots.
type routeEntry struct {
	count       uint64
	success     uint64
	failure     uint64
	best        time.Duration
	worst       time.Duration
	last        time.Duration
	srcDisplay  map[string]struct{}
	dstDisplay  map[string]struct{}
	meshed      bool
	lastUpdated time.Time
}

// Snapshot is a read-only view of the aggregate index. Version changes
// on every fold so consumers can skip unchanged frames.
type Snapshot struct {
	Rows              []Row    `json:"routes"`
	UnmeshedNeighbors []string `json:"unmeshedNeighbors,omitempty"`
	Version           uint64   `json:"version"`
}

// Aggregator reduces completed requests into bounded per-route rows.
// Fold matches the correlator's promote callback signature, so an
// Aggregator can be wired directly into a Correlator.
type Aggregator struct {
	mu         sync.Mutex
	routes     map[RouteKey]*routeEntry
	unmeshed   map[string]time.Time
	cap        int
	displayCap int
	version    uint64
}

// NewAggregator creates an Aggregator holding at most cap routes.
func NewAggregator(cap int) *Aggregator {
	if cap <= 0 {
		cap = config.TopResultCap
	}
	return &Aggregator{
		routes:     make(map[RouteKey]*routeEntry),
		unmeshed:   make(map[string]time.Time),
		cap:        cap,
		displayCap: config.DisplaySetCap,
	}
}

// Success classifies one completed request. HTTP status below 500 is
// tentatively a success; a gRPC status code, when present, overrides
// it because gRPC failures ride on HTTP 200 responses.
func Success(row correlate.Row) bool {
	if code := row.GRPCStatus(); code != nil {
		return *code == 0
	}
	return row.HTTPStatus() < 500
}

// Fold merges one completed request into its route aggregate. Rows
// that never completed are ignored. The row's LastUpdated timestamp
// orders evictions.
func (a *Aggregator) Fold(row correlate.Row) {
	if !row.Completed() {
		return
	}
	success := Success(row)
	latency, err := row.Latency()
	if err != nil {
		logger.Debug("Unparseable latency on completed request",
			zap.String("id", row.ID.String()),
			zap.Error(err))
		latency = 0
	}
	key := RouteKey{
		Source:      row.Source().Identity(),
		Destination: row.Destination().Identity(),
		Method:      row.Method(),
		Path:        row.Path(),
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	entry, ok := a.routes[key]
	if !ok {
		entry = &routeEntry{
			best:       latency,
			worst:      latency,
			srcDisplay: make(map[string]struct{}),
			dstDisplay: make(map[string]struct{}),
		}
		a.routes[key] = entry
	}
	entry.count++
	if success {
		entry.success++
	} else {
		entry.failure++
	}
	entry.last = latency
	if latency < entry.best {
		entry.best = latency
	}
	if latency > entry.worst {
		entry.worst = latency
	}
	entry.meshed = row.Source().IsMeshed() && row.Destination().IsMeshed()
	entry.lastUpdated = row.LastUpdated
	a.addDisplay(entry.srcDisplay, row.Source().IP)
	a.addDisplay(entry.srcDisplay, row.Source().Pod())
	a.addDisplay(entry.dstDisplay, row.Destination().IP)
	a.addDisplay(entry.dstDisplay, row.Destination().Pod())
	a.version++
	metricsexporter.RecordFold()
	metricsexporter.ObserveRequestLatency(string(row.Direction()), latency)

	if len(a.routes) > a.cap {
		a.evictOldest()
	}
	if row.Direction() == tapevent.DirectionInbound && !row.Source().IsMeshed() {
		a.observeUnmeshed(row.Source().Addr(), row.LastUpdated)
	}
}

// addDisplay inserts value into a display set unless the set is full.
// Display sets are an affordance for the rendered table, not an index.
func (a *Aggregator) addDisplay(set map[string]struct{}, value string) {
	if value == "" {
		return
	}
	if _, ok := set[value]; ok {
		return
	}
	if len(set) >= a.displayCap {
		return
	}
	set[value] = struct{}{}
}

// observeUnmeshed records a neighbor that talks to the mesh without a
// sidecar. Best effort; bounded by the route cap. Callers hold the lock.
func (a *Aggregator) observeUnmeshed(addr string, now time.Time) {
	a.unmeshed[addr] = now
	if len(a.unmeshed) <= a.cap {
		return
	}
	var oldestAddr string
	var oldest time.Time
	first := true
	for addr, ts := range a.unmeshed {
		if first || ts.Before(oldest) {
			oldestAddr = addr
			oldest = ts
			first = false
		}
	}
	delete(a.unmeshed, oldestAddr)
}

// evictOldest removes the route with the smallest lastUpdated. Ties go
// to whichever entry the scan reaches first. Callers hold the lock.
func (a *Aggregator) evictOldest() {
	var oldestKey RouteKey
	var oldest time.Time
	first := true
	for key, entry := range a.routes {
		if first || entry.lastUpdated.Before(oldest) {
			oldestKey = key
			oldest = entry.lastUpdated
			first = false
		}
	}
	if !first {
		delete(a.routes, oldestKey)
		metricsexporter.RecordAggregateEviction()
	}
}

// Snapshot returns the aggregated routes in reverse chronological
// order with the success rate derived from the tallies.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	rows := make([]Row, 0, len(a.routes))
	for key, entry := range a.routes {
		row := Row{
			Key:                key,
			Count:              entry.count,
			Success:            entry.success,
			Failure:            entry.failure,
			Best:               entry.best,
			Worst:              entry.worst,
			Last:               entry.last,
			SourceDisplay:      sortedSet(entry.srcDisplay),
			DestinationDisplay: sortedSet(entry.dstDisplay),
			Meshed:             entry.meshed,
			LastUpdated:        entry.lastUpdated,
		}
		if entry.success+entry.failure > 0 {
			row.SuccessRate = float64(entry.success) / float64(entry.success+entry.failure)
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].LastUpdated.Equal(rows[j].LastUpdated) {
			return rows[i].Key.String() < rows[j].Key.String()
		}
		return rows[i].LastUpdated.After(rows[j].LastUpdated)
	})

	neighbors := make([]string, 0, len(a.unmeshed))
	for addr := range a.unmeshed {
		neighbors = append(neighbors, addr)
	}
	sort.Strings(neighbors)

	return Snapshot{Rows: rows, UnmeshedNeighbors: neighbors, Version: a.version}
}

func sortedSet(set map[string]struct{}) []string {
	values := make([]string, 0, len(set))
	for v := range set {
		values = append(values, v)
	}
	sort.Strings(values)
	return values
}

// Len returns the number of routes currently aggregated.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.routes)
}

// Version returns the mutation counter without copying the rows.
func (a *Aggregator) Version() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.version
}

// Reset clears the aggregate and the unmeshed-neighbor table.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.routes = make(map[RouteKey]*routeEntry)
	a.unmeshed = make(map[string]time.Time)
	a.version++
}
