// Package schedgroup implements the scheduling-group resolver of spec.md
// §4.F: it condenses the scheduled-as/depends_on graph on pending tasks
// into strongly-connected-component groups and propagates blocking state
// across the resulting DAG.
//
// The resolver is stateless between calls: Resolve rebuilds everything
// from the relation graph and the two oracle callbacks it is given, so
// edits to the plan are observed immediately (§4.F).
package schedgroup

import (
	"sort"

	"github.com/samber/lo"

	"github.com/dagu-org/taskkernel/internal/handle"
	"github.com/dagu-org/taskkernel/internal/relation"
)

// State is a scheduling group's final, most-restrictive classification.
type State int

const (
	// Schedulable groups may be started this tick.
	Schedulable State = iota
	// PendingTemporal groups are blocked by an unmet temporal constraint,
	// their own or an upstream group's.
	PendingTemporal
	// NonSchedulable groups contain a task that individually cannot be
	// started, or depend on a group that cannot.
	NonSchedulable
)

func (s State) String() string {
	switch s {
	case Schedulable:
		return "SCHEDULABLE"
	case PendingTemporal:
		return "PENDING_TEMPORAL"
	case NonSchedulable:
		return "NON_SCHEDULABLE"
	default:
		return "UNKNOWN"
	}
}

// merge returns the more restrictive of a and b (NonSchedulable >
// PendingTemporal > Schedulable, per §4.F step 4).
func merge(a, b State) State {
	if a > b {
		return a
	}
	return b
}

// Group is one strongly-connected component of the scheduled-as graph,
// restricted to pending tasks, plus the resolved blocking state.
type Group struct {
	ID                 int
	Tasks              []handle.ID // ascending, deterministic
	State              State
	HeldByTemporal     []int // group IDs blocking this one via temporal constraints
	HeldNonSchedulable []int // group IDs blocking this one via non-startability
}

// Oracle supplies the two per-task predicates the resolver needs from the
// scheduler; it does not import the scheduler package to avoid a cycle.
type Oracle struct {
	// IndividuallyStartable reports whether task is startable in
	// isolation (§4.G preconditions 1-3 and 5, minus group-level
	// coupling); precondition 4 is reported through TemporallyPending.
	IndividuallyStartable func(handle.ID) bool
	// TemporallyPending reports whether task itself has an unmet
	// incoming temporal constraint (distinct from should_start_after
	// edges between groups, which the scheduler checks separately).
	TemporallyPending func(handle.ID) bool
}

// Resolve builds the scheduling-group DAG over pending and returns every
// group, in deterministic order: the order in which Tarjan's algorithm
// completes the components when vertices and neighbours are visited in
// ascending task id, so every group comes after the groups it depends on.
func Resolve(graph *relation.Graphs, pending []handle.ID, oracle Oracle) []*Group {
	pendingSet := make(map[handle.ID]bool, len(pending))
	for _, t := range pending {
		pendingSet[t] = true
	}

	adj := buildScheduledAsAdjacency(graph, pendingSet)
	comps := tarjanSCC(pending, adj)

	groupOf := make(map[handle.ID]int, len(pending))
	groups := make([]*Group, len(comps))
	for i, comp := range comps {
		sort.Slice(comp, func(a, b int) bool { return comp[a] < comp[b] })
		groups[i] = &Group{ID: i, Tasks: comp}
		for _, t := range comp {
			groupOf[t] = i
		}
	}

	// Condensed edges: group -> group it depends on (scheduled-as parent).
	dependsOn := make([]map[int]bool, len(groups))
	dependents := make([]map[int]bool, len(groups))
	for i := range groups {
		dependsOn[i] = make(map[int]bool)
		dependents[i] = make(map[int]bool)
	}
	for u, vs := range adj {
		gu := groupOf[u]
		for v := range vs {
			gv := groupOf[v]
			if gu == gv {
				continue
			}
			dependsOn[gu][gv] = true
			dependents[gv][gu] = true
		}
	}

	resolveOwnState(groups, oracle)
	propagate(groups, dependsOn, dependents)

	return groups
}

func resolveOwnState(groups []*Group, oracle Oracle) {
	for _, g := range groups {
		state := Schedulable
		for _, t := range g.Tasks {
			if oracle.IndividuallyStartable != nil && !oracle.IndividuallyStartable(t) {
				state = NonSchedulable
				break
			}
		}
		if state != NonSchedulable {
			for _, t := range g.Tasks {
				if oracle.TemporallyPending != nil && oracle.TemporallyPending(t) {
					state = PendingTemporal
					break
				}
			}
		}
		g.State = state
	}
}

// propagate pushes blocking state from each group to the groups that
// depend on it (§4.F step 3), processing independent groups (those with
// no outstanding dependencies) first.
func propagate(groups []*Group, dependsOn, dependents []map[int]bool) {
	outstanding := make([]int, len(groups))
	for i := range groups {
		outstanding[i] = len(dependsOn[i])
	}

	var ready []int
	for i, n := range outstanding {
		if n == 0 {
			ready = append(ready, i)
		}
	}
	sort.Ints(ready)

	processed := make([]bool, len(groups))
	for len(ready) > 0 {
		sort.Ints(ready)
		id := ready[0]
		ready = ready[1:]
		if processed[id] {
			continue
		}
		processed[id] = true

		g := groups[id]
		for dep := range dependsOn[id] {
			target := groups[dep]
			switch target.State {
			case NonSchedulable:
				g.State = merge(g.State, NonSchedulable)
				g.HeldNonSchedulable = appendSorted(g.HeldNonSchedulable, dep)
			case PendingTemporal:
				g.State = merge(g.State, PendingTemporal)
				g.HeldByTemporal = appendSorted(g.HeldByTemporal, dep)
			}
		}

		for dependent := range dependents[id] {
			outstanding[dependent]--
			if outstanding[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
	}
}

func appendSorted(s []int, v int) []int {
	s = append(s, v)
	sort.Ints(s)
	return lo.Uniq(s)
}

// buildScheduledAsAdjacency merges the ScheduleAs and Dependency kinds
// into one normalised a->b ("child scheduled with parent") adjacency,
// restricted to vertices in pendingSet (§4.F step 1).
func buildScheduledAsAdjacency(graph *relation.Graphs, pendingSet map[handle.ID]bool) map[handle.ID]map[handle.ID]bool {
	adj := make(map[handle.ID]map[handle.ID]bool)
	addFrom := func(kind relation.Kind) {
		for t := range pendingSet {
			for _, e := range graph.OutEdges(kind, t) {
				if !pendingSet[e.To] {
					continue
				}
				if adj[e.From] == nil {
					adj[e.From] = make(map[handle.ID]bool)
				}
				adj[e.From][e.To] = true
			}
		}
	}
	addFrom(relation.ScheduleAs)
	addFrom(relation.Dependency)
	return adj
}

// tarjanSCC computes strongly connected components restricted to the
// given vertex set, returning one []handle.ID per component (including
// singletons with no self-loop).
func tarjanSCC(vertices []handle.ID, adj map[handle.ID]map[handle.ID]bool) [][]handle.ID {
	sorted := append([]handle.ID(nil), vertices...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	index := make(map[handle.ID]int)
	low := make(map[handle.ID]int)
	onStack := make(map[handle.ID]bool)
	var stack []handle.ID
	counter := 0
	var comps [][]handle.ID

	var strongConnect func(v handle.ID)
	strongConnect = func(v handle.ID) {
		index[v] = counter
		low[v] = counter
		counter++
		stack = append(stack, v)
		onStack[v] = true

		neighbors := lo.Keys(adj[v])
		sort.Slice(neighbors, func(i, j int) bool { return neighbors[i] < neighbors[j] })
		for _, w := range neighbors {
			if _, seen := index[w]; !seen {
				strongConnect(w)
				if low[w] < low[v] {
					low[v] = low[w]
				}
			} else if onStack[w] {
				if index[w] < low[v] {
					low[v] = index[w]
				}
			}
		}

		if low[v] == index[v] {
			var comp []handle.ID
			for {
				n := len(stack) - 1
				w := stack[n]
				stack = stack[:n]
				onStack[w] = false
				comp = append(comp, w)
				if w == v {
					break
				}
			}
			comps = append(comps, comp)
		}
	}

	for _, v := range sorted {
		if _, seen := index[v]; !seen {
			strongConnect(v)
		}
	}
	return comps
}
