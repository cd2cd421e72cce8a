package correlate

import (
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/meshtap/meshtap/internal/config"
	"github.com/meshtap/meshtap/internal/metricsexporter"
	"github.com/meshtap/meshtap/internal/tapevent"
)

// Dimension names one filterable attribute of the tap stream.
type Dimension string

const (
	DimSource      Dimension = "source"
	DimDestination Dimension = "destination"
	DimPath        Dimension = "path"
	DimAuthority   Dimension = "authority"
	DimScheme      Dimension = "scheme"
	DimStatus      Dimension = "status"
	DimTLS         Dimension = "tls"
)

// FilterOptions tracks the values recently observed for each filter
// dimension. Each dimension keeps at most cap distinct values; adding
// a value beyond the cap evicts the one with the oldest last-seen
// timestamp. The sets are a best-effort affordance for building filter
// suggestions, never an authoritative view of the traffic.
type FilterOptions struct {
	mu      sync.Mutex
	cap     int
	seen    map[Dimension]map[string]time.Time
	version uint64
}

// NewFilterOptions creates a tracker keeping at most cap values per
// dimension.
func NewFilterOptions(cap int) *FilterOptions {
	if cap <= 0 {
		cap = config.FilterOptionCap
	}
	return &FilterOptions{
		cap:  cap,
		seen: make(map[Dimension]map[string]time.Time),
	}
}

// Observe inserts or refreshes value in the dimension's set. Empty
// values are ignored.
func (f *FilterOptions) Observe(dim Dimension, value string, now time.Time) {
	if value == "" {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	set, ok := f.seen[dim]
	if !ok {
		set = make(map[string]time.Time)
		f.seen[dim] = set
	}
	set[value] = now
	f.version++

	if len(set) > f.cap {
		var oldestValue string
		var oldest time.Time
		first := true
		for v, ts := range set {
			if first || ts.Before(oldest) {
				oldestValue = v
				oldest = ts
				first = false
			}
		}
		delete(set, oldestValue)
		metricsexporter.RecordFilterEviction()
	}
}

// ObserveEvent feeds every dimension present on one event.
func (f *FilterOptions) ObserveEvent(e *tapevent.Event, now time.Time) {
	if e == nil {
		return
	}
	f.Observe(DimSource, e.Source.DisplayName(), now)
	f.Observe(DimDestination, e.Destination.DisplayName(), now)
	f.Observe(DimTLS, strconv.FormatBool(e.TLS()), now)
	if e.RequestInit != nil {
		f.Observe(DimPath, e.RequestInit.Path, now)
		f.Observe(DimAuthority, e.RequestInit.Authority, now)
		f.Observe(DimScheme, e.RequestInit.Scheme, now)
	}
	if e.ResponseInit != nil {
		f.Observe(DimStatus, strconv.Itoa(e.ResponseInit.HTTPStatus), now)
	}
}

// Values returns the dimension's observed values sorted alphabetically.
func (f *FilterOptions) Values(dim Dimension) []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	set := f.seen[dim]
	values := make([]string, 0, len(set))
	for v := range set {
		values = append(values, v)
	}
	sort.Strings(values)
	return values
}

// Options returns every dimension's values, sorted, as one map.
func (f *FilterOptions) Options() map[Dimension][]string {
	f.mu.Lock()
	dims := make([]Dimension, 0, len(f.seen))
	for dim := range f.seen {
		dims = append(dims, dim)
	}
	f.mu.Unlock()

	options := make(map[Dimension][]string, len(dims))
	for _, dim := range dims {
		options[dim] = f.Values(dim)
	}
	return options
}

// Version returns the mutation counter.
func (f *FilterOptions) Version() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.version
}

// Reset clears all dimensions.
func (f *FilterOptions) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = make(map[Dimension]map[string]time.Time)
	f.version++
}
