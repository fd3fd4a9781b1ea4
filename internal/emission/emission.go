// Package emission implements the append-only per-event emission history
// described in spec.md §4.D: every successful emission of an event is
// recorded with its timestamp, optional payload and contributing source
// events, and the log exposes the two queries the temporal engine needs —
// the last emission and a count of emissions since some epoch.
package emission

import (
	"sort"
	"sync"

	"github.com/dagu-org/taskkernel/internal/handle"
)

// Record is one immutable emission of an event.
type Record struct {
	Event   handle.ID
	Time    float64 // seconds, same unit as ivalset.Interval deltas
	Payload any
	Sources []handle.ID // contributing parent events (AND/OR/filter combinators)
}

// Log is the append-only emission history for a set of events. It is safe
// for concurrent readers; the engine thread is the sole writer (§5).
type Log struct {
	mu   sync.RWMutex
	byID map[handle.ID][]Record
}

// New returns an empty emission log.
func New() *Log {
	return &Log{byID: make(map[handle.ID][]Record)}
}

// Append records a new emission for event id. Records for the same event
// must be appended in non-decreasing Time order; the log does not
// re-sort, matching the single-threaded, monotonic-clock tick model of
// §5.
func (l *Log) Append(id handle.ID, t float64, payload any, sources []handle.ID) Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec := Record{Event: id, Time: t, Payload: payload, Sources: append([]handle.ID(nil), sources...)}
	l.byID[id] = append(l.byID[id], rec)
	return rec
}

// History returns a copy of every recorded emission of id, ascending by
// time.
func (l *Log) History(id handle.ID) []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	recs := l.byID[id]
	out := make([]Record, len(recs))
	copy(out, recs)
	return out
}

// Last returns the most recent emission of id, if any.
func (l *Log) Last(id handle.ID) (Record, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	recs := l.byID[id]
	if len(recs) == 0 {
		return Record{}, false
	}
	return recs[len(recs)-1], true
}

// HasEmitted reports whether id has ever emitted.
func (l *Log) HasEmitted(id handle.ID) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.byID[id]) > 0
}

// CountSince returns the number of emissions of id with Time >= epoch.
// Used by the occurrence-constraint check, whose epoch is either 0 (not
// recurrent) or the time of the target's last firing (recurrent).
func (l *Log) CountSince(id handle.ID, epoch float64) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	recs := l.byID[id]
	// Time is monotonic per event, so a binary search finds the first
	// record not before epoch.
	i := sort.Search(len(recs), func(i int) bool { return recs[i].Time >= epoch })
	return len(recs) - i
}

// AnySatisfies reports whether any emission of id satisfies pred; it stops
// at the first match. Used by the forward-temporal-constraint check,
// which only needs existence, not the full matching set.
func (l *Log) AnySatisfies(id handle.ID, pred func(Record) bool) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, r := range l.byID[id] {
		if pred(r) {
			return true
		}
	}
	return false
}

// Remove discards all history for id. Used when an event is finalised; the
// log keeps no copy of the discarded records.
func (l *Log) Remove(id handle.ID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.byID, id)
}
