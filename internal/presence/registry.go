package presence

import (
	"sort"
	"sync"
	"time"
)

// ScanEntry is one device line from a router scan.
type ScanEntry struct {
	// Key is the device key. Entries with an empty key are ignored.
	Key string

	// Observation holds the reported name, address and WAN access.
	Observation Observation

	// Active reports whether the device is connected right now.
	Active bool
}

// Registry maps device keys to presence records.
//
// Records are created on first sight and never removed by ApplyScan.
// All public methods are thread-safe.
type Registry struct {
	records map[string]*Record
	mu      sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		records: make(map[string]*Record),
	}
}

// ApplyScan merges a scan into the registry.
//
// Existing records are updated in place; unknown keys get a new record.
// Records whose key is missing from scan are left untouched, so presence
// decays only through the consider-home window.
//
// Returns:
//   - bool: true if at least one record was created
func (r *Registry) ApplyScan(now time.Time, considerHome time.Duration, scan []ScanEntry) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	anyNew := false
	for _, entry := range scan {
		if entry.Key == "" {
			continue
		}

		rec, ok := r.records[entry.Key]
		if !ok {
			rec = NewRecord(entry.Key, "")
			r.records[entry.Key] = rec
			anyNew = true
		}
		rec.Update(entry.Observation, entry.Active, considerHome, now)
	}

	return anyNew
}

// Get returns a copy of the record for key.
func (r *Registry) Get(key string) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[key]
	if !ok {
		return Record{}, false
	}
	return rec.Copy(), true
}

// Records returns copies of all records ordered by key.
func (r *Registry) Records() []Record {
	r.mu.RLock()
	out := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec.Copy())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Len returns the number of tracked records.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// ConnectedCount returns how many records are currently connected.
func (r *Registry) ConnectedCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, rec := range r.records {
		if rec.Connected {
			n++
		}
	}
	return n
}
