package relation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddEdgeRejectsDuplicate(t *testing.T) {
	g := New(16)
	require.True(t, g.AddEdge(Dependency, 1, 2, nil))
	require.False(t, g.AddEdge(Dependency, 1, 2, nil))
	require.True(t, g.HasEdge(Dependency, 1, 2))
}

func TestOutEdgesAndInEdgesSortedDeterministic(t *testing.T) {
	g := New(16)
	g.AddEdge(Dependency, 1, 5, "a")
	g.AddEdge(Dependency, 1, 2, "b")
	g.AddEdge(Dependency, 1, 9, "c")

	out := g.OutEdges(Dependency, 1)
	require.Len(t, out, 3)
	require.Equal(t, []VertexID{2, 5, 9}, []VertexID{out[0].To, out[1].To, out[2].To})

	g.AddEdge(Dependency, 3, 2, "d")
	in := g.InEdges(Dependency, 2)
	require.Len(t, in, 2)
	require.Equal(t, []VertexID{1, 3}, []VertexID{in[0].From, in[1].From})
}

func TestRemoveVertexSeversAllIncidentEdgesAcrossKinds(t *testing.T) {
	g := New(16)
	g.AddEdge(Dependency, 1, 2, nil)
	g.AddEdge(Signal, 2, 1, nil)
	g.AddEdge(PlannedBy, 1, 3, nil)

	g.RemoveVertex(1)

	require.False(t, g.HasEdge(Dependency, 1, 2))
	require.False(t, g.HasEdge(Signal, 2, 1))
	require.False(t, g.HasEdge(PlannedBy, 1, 3))
	require.Empty(t, g.OutEdges(Dependency, 1))
	require.Empty(t, g.InEdges(Signal, 1))
}

func TestReplaceSkipsStrongKindsByDefault(t *testing.T) {
	g := New(16)
	g.AddEdge(Dependency, 1, 2, "dep")
	g.AddEdge(PlannedBy, 1, 9, "plan")

	g.Replace(1, 100, false)

	require.True(t, g.HasEdge(Dependency, 100, 2))
	require.False(t, g.HasEdge(Dependency, 1, 2))

	// planned_by is strong: it stays on the old vertex.
	require.True(t, g.HasEdge(PlannedBy, 1, 9))
	require.False(t, g.HasEdge(PlannedBy, 100, 9))
}

func TestReplaceIncludesStrongKindsWhenRequested(t *testing.T) {
	g := New(16)
	g.AddEdge(PlannedBy, 1, 9, "plan")

	g.Replace(1, 100, true)

	require.True(t, g.HasEdge(PlannedBy, 100, 9))
	require.False(t, g.HasEdge(PlannedBy, 1, 9))
}

func TestEachEdgeSortedDeterministicOrder(t *testing.T) {
	g := New(16)
	g.AddEdge(Dependency, 2, 1, nil)
	g.AddEdge(Dependency, 1, 2, nil)
	g.AddEdge(Dependency, 1, 1, nil)

	var seen [][2]VertexID
	g.EachEdgeSorted(Dependency, func(e Edge) bool {
		seen = append(seen, [2]VertexID{e.From, e.To})
		return true
	})

	require.Equal(t, [][2]VertexID{{1, 1}, {1, 2}, {2, 1}}, seen)
}

func TestCacheInvalidatedOnMutation(t *testing.T) {
	g := New(16)
	g.AddEdge(Dependency, 1, 2, nil)
	require.Len(t, g.OutEdges(Dependency, 1), 1)

	g.AddEdge(Dependency, 1, 3, nil)
	require.Len(t, g.OutEdges(Dependency, 1), 2)

	g.RemoveEdge(Dependency, 1, 2)
	require.Len(t, g.OutEdges(Dependency, 1), 1)
}
