// Package relation implements the typed directed multigraph that backs
// every relation kind in the plan graph: signal/forward propagation edges,
// causal/precedence ordering, forward temporal constraints, occurrence
// constraints, scheduling constraints and the task-level dependency,
// planned-by and should-start-after edges.
//
// The graph is vertex-space agnostic: callers pass dense integer handles
// (task ids or event ids, depending on Kind) and the graph does not care
// which arena they came from. Component C (package plan) is responsible
// for keeping vertex spaces straight per kind.
package relation

import (
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/samber/lo"

	"github.com/dagu-org/taskkernel/internal/handle"
)

// VertexID is an opaque dense handle into whichever arena owns the
// vertices for a given Kind (task ids for task-space kinds, event ids for
// event-space kinds).
type VertexID = handle.ID

// Kind identifies one of the relation kinds declared in spec.md §3.
type Kind int

const (
	Signal Kind = iota
	Forward
	CausalLink
	Precedence
	ForwardTemporalConstraint
	OccurrenceConstraint
	SchedulingConstraint
	Dependency
	PlannedBy
	ShouldStartAfter
	// ScheduleAs is not enumerated in spec.md §3's relation-kind list, but
	// §4.F and the GLOSSARY both name "schedule_as" as a task-level
	// builder operation distinct from dependency/should_start_after. The
	// literal text never assigns it a §3 kind, so it is added here as the
	// most direct transcription: a task->task kind, normalised into the
	// scheduled-as graph exactly like dependency (§4.F step 1).
	ScheduleAs

	numKinds
)

// kindOrder fixes the deterministic order in which kinds are walked when
// an operation (vertex removal, replacement) must enumerate "every kind".
var kindOrder = []Kind{
	Signal, Forward, CausalLink, Precedence, ForwardTemporalConstraint,
	OccurrenceConstraint, SchedulingConstraint, Dependency, PlannedBy,
	ShouldStartAfter, ScheduleAs,
}

func (k Kind) String() string {
	switch k {
	case Signal:
		return "signal"
	case Forward:
		return "forward"
	case CausalLink:
		return "causal_link"
	case Precedence:
		return "precedence"
	case ForwardTemporalConstraint:
		return "forward_temporal_constraint"
	case OccurrenceConstraint:
		return "occurrence_constraint"
	case SchedulingConstraint:
		return "scheduling_constraint"
	case Dependency:
		return "dependency"
	case PlannedBy:
		return "planned_by"
	case ShouldStartAfter:
		return "should_start_after"
	case ScheduleAs:
		return "schedule_as"
	default:
		return "unknown"
	}
}

// strongKinds are skipped by Replace unless the caller explicitly opts in.
// planned_by is structural (it defines which task produced which), so it
// does not automatically migrate across a replace the way ordering/signal
// edges do.
var strongKinds = map[Kind]bool{
	PlannedBy: true,
}

// IsStrong reports whether k is classified strong (see §4.B).
func IsStrong(k Kind) bool { return strongKinds[k] }

// OccurrenceData is the edge payload for an OccurrenceConstraint edge.
// Max < 0 means unbounded (no upper limit on occurrences).
type OccurrenceData struct {
	Min       int
	Max       int
	Recurrent bool
}

// SchedulingData is the edge payload for a SchedulingConstraint edge.
type SchedulingData struct{}

// Edge is a materialised (u, v, data) triple returned by enumeration calls.
type Edge struct {
	Kind Kind
	From VertexID
	To   VertexID
	Data any
}

// Graphs owns one directed multigraph per Kind, all sharing VertexID space
// per the caller's convention.
type Graphs struct {
	mu   sync.RWMutex
	out  [numKinds]map[VertexID]map[VertexID]any
	in   [numKinds]map[VertexID]map[VertexID]any
	outC *lru.Cache[cacheKey, []Edge]
	inC  *lru.Cache[cacheKey, []Edge]
}

type cacheKey struct {
	kind Kind
	v    VertexID
}

// New constructs an empty set of relation graphs. cacheSize bounds the
// number of (kind, vertex) adjacency slices memoised; 0 disables caching.
func New(cacheSize int) *Graphs {
	g := &Graphs{}
	for i := range g.out {
		g.out[i] = make(map[VertexID]map[VertexID]any)
		g.in[i] = make(map[VertexID]map[VertexID]any)
	}
	if cacheSize > 0 {
		g.outC, _ = lru.New[cacheKey, []Edge](cacheSize)
		g.inC, _ = lru.New[cacheKey, []Edge](cacheSize)
	}
	return g
}

// ErrDuplicateEdge-style sentinel lives in the plan package, which wraps
// structural failures with plan-level context; this package reports
// duplication via the boolean return of AddEdge instead, keeping it
// dependency-free of the plan package's error taxonomy.

// AddEdge inserts a u->v edge of the given kind carrying data. It reports
// false if the edge already existed (the caller decides whether that is a
// DuplicateEdge failure).
func (g *Graphs) AddEdge(kind Kind, u, v VertexID, data any) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.out[kind][u][v]; exists {
		return false
	}
	if g.out[kind][u] == nil {
		g.out[kind][u] = make(map[VertexID]any)
	}
	if g.in[kind][v] == nil {
		g.in[kind][v] = make(map[VertexID]any)
	}
	g.out[kind][u][v] = data
	g.in[kind][v][u] = data
	g.invalidate(kind, u, v)
	return true
}

// RemoveEdge deletes the u->v edge of kind, if present.
func (g *Graphs) RemoveEdge(kind Kind, u, v VertexID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.removeEdgeLocked(kind, u, v)
}

func (g *Graphs) removeEdgeLocked(kind Kind, u, v VertexID) {
	if adj := g.out[kind][u]; adj != nil {
		delete(adj, v)
	}
	if adj := g.in[kind][v]; adj != nil {
		delete(adj, u)
	}
	g.invalidate(kind, u, v)
}

func (g *Graphs) invalidate(kind Kind, u, v VertexID) {
	if g.outC != nil {
		g.outC.Remove(cacheKey{kind, u})
	}
	if g.inC != nil {
		g.inC.Remove(cacheKey{kind, v})
	}
}

// HasEdge reports whether a u->v edge of kind exists.
func (g *Graphs) HasEdge(kind Kind, u, v VertexID) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.out[kind][u][v]
	return ok
}

// EdgeData returns the data stored on the u->v edge of kind, if present.
func (g *Graphs) EdgeData(kind Kind, u, v VertexID) (any, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	d, ok := g.out[kind][u][v]
	return d, ok
}

// OutEdges returns every kind-edge leaving u, sorted ascending by
// destination vertex id for deterministic iteration.
func (g *Graphs) OutEdges(kind Kind, u VertexID) []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.outC != nil {
		if cached, ok := g.outC.Get(cacheKey{kind, u}); ok {
			return cached
		}
	}
	adj := g.out[kind][u]
	edges := make([]Edge, 0, len(adj))
	for v, data := range adj {
		edges = append(edges, Edge{Kind: kind, From: u, To: v, Data: data})
	}
	sort.Slice(edges, func(i, j int) bool { return edges[i].To < edges[j].To })
	if g.outC != nil {
		g.outC.Add(cacheKey{kind, u}, edges)
	}
	return edges
}

// InEdges returns every kind-edge arriving at v, sorted ascending by
// source vertex id for deterministic iteration.
func (g *Graphs) InEdges(kind Kind, v VertexID) []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.inC != nil {
		if cached, ok := g.inC.Get(cacheKey{kind, v}); ok {
			return cached
		}
	}
	adj := g.in[kind][v]
	edges := make([]Edge, 0, len(adj))
	for u, data := range adj {
		edges = append(edges, Edge{Kind: kind, From: u, To: v, Data: data})
	}
	sort.Slice(edges, func(i, j int) bool { return edges[i].From < edges[j].From })
	if g.inC != nil {
		g.inC.Add(cacheKey{kind, v}, edges)
	}
	return edges
}

// EachEdgeSorted walks every edge of kind in ascending (from, to) order.
func (g *Graphs) EachEdgeSorted(kind Kind, fn func(Edge) bool) {
	g.mu.RLock()
	var all []Edge
	for u, adj := range g.out[kind] {
		for v, data := range adj {
			all = append(all, Edge{Kind: kind, From: u, To: v, Data: data})
		}
	}
	g.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].From != all[j].From {
			return all[i].From < all[j].From
		}
		return all[i].To < all[j].To
	})
	for _, e := range all {
		if !fn(e) {
			return
		}
	}
}

// RemoveVertex severs every edge incident on v, across every kind, in
// deterministic kind order, so that no relation ever dangles once its
// vertex has been removed from the owning arena (§3 invariant).
func (g *Graphs) RemoveVertex(v VertexID) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, kind := range kindOrder {
		outNeighbors := sortedKeys(g.out[kind][v])
		for _, to := range outNeighbors {
			g.removeEdgeLocked(kind, v, to)
		}
		inNeighbors := sortedKeys(g.in[kind][v])
		for _, from := range inNeighbors {
			g.removeEdgeLocked(kind, from, v)
		}
	}
}

// Replace re-creates every edge incident on oldV onto newV with identical
// data, then removes oldV's edges. Kinds classified strong are skipped
// unless includeStrong is true (§4.B/§4.C copy-on-replace semantics).
func (g *Graphs) Replace(oldV, newV VertexID, includeStrong bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, kind := range kindOrder {
		if IsStrong(kind) && !includeStrong {
			continue
		}
		for _, to := range sortedKeys(g.out[kind][oldV]) {
			data := g.out[kind][oldV][to]
			g.addEdgeLocked(kind, newV, to, data)
			g.removeEdgeLocked(kind, oldV, to)
		}
		for _, from := range sortedKeys(g.in[kind][oldV]) {
			data := g.in[kind][oldV][from]
			g.addEdgeLocked(kind, from, newV, data)
			g.removeEdgeLocked(kind, from, oldV)
		}
	}
}

func (g *Graphs) addEdgeLocked(kind Kind, u, v VertexID, data any) {
	if g.out[kind][u] == nil {
		g.out[kind][u] = make(map[VertexID]any)
	}
	if g.in[kind][v] == nil {
		g.in[kind][v] = make(map[VertexID]any)
	}
	g.out[kind][u][v] = data
	g.in[kind][v][u] = data
	g.invalidate(kind, u, v)
}

func sortedKeys(m map[VertexID]any) []VertexID {
	keys := lo.Keys(m)
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
