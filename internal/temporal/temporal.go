// Package temporal implements the forward/backward temporal-constraint
// engine described in spec.md §4.E: interval-based emission gating,
// occurrence bounds, the deadline registry and the should-emit-after
// predicate used to derive task-level should_start_after edges.
package temporal

import (
	"sort"
	"sync"

	"github.com/dagu-org/taskkernel/internal/emission"
	"github.com/dagu-org/taskkernel/internal/handle"
	"github.com/dagu-org/taskkernel/internal/ivalset"
	"github.com/dagu-org/taskkernel/internal/relation"
)

// Deadline is one outstanding (deadline, source, target) triple in the
// registry (§4.E "Deadlines").
type Deadline struct {
	At     float64
	Source handle.ID
	Target handle.ID
}

// Engine evaluates temporal and occurrence constraints over a relation
// graph and an emission log, and maintains the deadline multiset.
type Engine struct {
	graph    *relation.Graphs
	emitted  *emission.Log
	mu       sync.Mutex
	deadline map[handle.ID][]Deadline // indexed by target
}

// New builds a temporal engine over the given relation graph and emission
// log. Both are owned by the plan and the engine only reads them; the one
// state it mutates is its own deadline registry (RecordEmission,
// ConsumeDeadlinesFor).
func New(graph *relation.Graphs, emitted *emission.Log) *Engine {
	return &Engine{
		graph:    graph,
		emitted:  emitted,
		deadline: make(map[handle.ID][]Deadline),
	}
}

// Emittable reports whether v may emit at time t given every incoming
// ForwardTemporalConstraint edge. On failure it also returns the
// offending edge (find_failed_temporal_constraint in spec.md §4.E).
func (e *Engine) Emittable(v handle.ID, t float64) (bool, *relation.Edge) {
	for _, edge := range e.graph.InEdges(relation.ForwardTemporalConstraint, v) {
		u := edge.From
		set, _ := edge.Data.(*ivalset.Set)

		if !e.emitted.HasEmitted(u) {
			continue
		}
		satisfied := e.emitted.AnySatisfies(u, func(r emission.Record) bool {
			return set.Include(t - r.Time)
		})
		if !satisfied {
			edgeCopy := edge
			return false, &edgeCopy
		}
	}
	return true, nil
}

// OccurrenceSatisfied reports whether every incoming OccurrenceConstraint
// edge into v currently permits v to fire, i.e. the number of emissions
// of each source u since the relevant epoch lies within [min, max]. The
// epoch is 0 unless the edge is recurrent, in which case it is the time
// of v's own last emission (§4.E "Occurrence constraints").
func (e *Engine) OccurrenceSatisfied(v handle.ID) (bool, *relation.Edge) {
	for _, edge := range e.graph.InEdges(relation.OccurrenceConstraint, v) {
		data, _ := edge.Data.(relation.OccurrenceData)

		epoch := 0.0
		if data.Recurrent {
			if last, ok := e.emitted.Last(v); ok {
				epoch = last.Time
			}
		}

		count := e.emitted.CountSince(edge.From, epoch)
		if count < data.Min || (data.Max >= 0 && count > data.Max) {
			edgeCopy := edge
			return false, &edgeCopy
		}
	}
	return true, nil
}

// RecordEmission runs the side effects of a successful emission of id at
// time t: inserting a new deadline for every outgoing forward temporal
// constraint (the next window's upper bound), and clearing every deadline
// that targeted id.
func (e *Engine) RecordEmission(id handle.ID, t float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.deadline, id)

	for _, edge := range e.graph.OutEdges(relation.ForwardTemporalConstraint, id) {
		set, _ := edge.Data.(*ivalset.Set)
		if set.IsEmpty() {
			continue
		}
		if hi, ok := set.Max(0); ok {
			d := Deadline{At: t + hi, Source: id, Target: edge.To}
			e.deadline[edge.To] = append(e.deadline[edge.To], d)
		}
	}
}

// CheckDeadlines returns every outstanding deadline whose At is strictly
// before now, ordered by (At, Source, Target) for determinism. Missed
// deadlines are reported, not cleared: they are consumed only when their
// target event finally emits (RecordEmission) or the caller explicitly
// discards them via ConsumeDeadlinesFor.
func (e *Engine) CheckDeadlines(now float64) []Deadline {
	e.mu.Lock()
	defer e.mu.Unlock()

	var missed []Deadline
	for _, ds := range e.deadline {
		for _, d := range ds {
			if d.At < now {
				missed = append(missed, d)
			}
		}
	}
	sort.Slice(missed, func(i, j int) bool {
		if missed[i].At != missed[j].At {
			return missed[i].At < missed[j].At
		}
		if missed[i].Source != missed[j].Source {
			return missed[i].Source < missed[j].Source
		}
		return missed[i].Target < missed[j].Target
	})
	return missed
}

// ConsumeDeadlinesFor discards every outstanding deadline targeting id
// without requiring an emission, e.g. when id has become unreachable
// because its owning task was finalised (see spec.md §9 Open Questions).
func (e *Engine) ConsumeDeadlinesFor(id handle.ID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.deadline, id)
}

// ShouldEmitAfter reports whether a "should emit after" b: a
// ForwardTemporalConstraint edge a->b exists whose interval set has only
// non-positive lower bounds (§4.E). The scheduler uses this, restricted
// to task start events, to derive should_start_after edges.
func (e *Engine) ShouldEmitAfter(a, b handle.ID) bool {
	data, ok := e.graph.EdgeData(relation.ForwardTemporalConstraint, a, b)
	if !ok {
		return false
	}
	set, _ := data.(*ivalset.Set)
	if set.IsEmpty() {
		return false
	}
	allNonPositive := true
	set.Each(func(iv ivalset.Interval) bool {
		if iv.Lo > 0 {
			allNonPositive = false
			return false
		}
		return true
	})
	return allNonPositive
}
