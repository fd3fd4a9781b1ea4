package schedgroup

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dagu-org/taskkernel/internal/handle"
	"github.com/dagu-org/taskkernel/internal/relation"
)

func allStartable(ids ...handle.ID) func(handle.ID) bool {
	set := make(map[handle.ID]bool)
	for _, id := range ids {
		set[id] = true
	}
	return func(id handle.ID) bool { return set[id] }
}

func TestIndependentTasksEachOwnGroup(t *testing.T) {
	g := relation.New(0)
	groups := Resolve(g, []handle.ID{1, 2, 3}, Oracle{
		IndividuallyStartable: allStartable(1, 2, 3),
	})
	require.Len(t, groups, 3)
	for _, grp := range groups {
		require.Equal(t, Schedulable, grp.State)
	}
}

func TestCycleCollapsesIntoOneGroup(t *testing.T) {
	g := relation.New(0)
	g.AddEdge(relation.ScheduleAs, 1, 2, nil)
	g.AddEdge(relation.ScheduleAs, 2, 1, nil)

	groups := Resolve(g, []handle.ID{1, 2}, Oracle{
		IndividuallyStartable: allStartable(1, 2),
	})
	require.Len(t, groups, 1)
	require.ElementsMatch(t, []handle.ID{1, 2}, groups[0].Tasks)
	require.Equal(t, Schedulable, groups[0].State)
}

func TestCycleBlockedIfAnyMemberNotStartable(t *testing.T) {
	g := relation.New(0)
	g.AddEdge(relation.ScheduleAs, 1, 2, nil)
	g.AddEdge(relation.ScheduleAs, 2, 1, nil)

	groups := Resolve(g, []handle.ID{1, 2}, Oracle{
		IndividuallyStartable: allStartable(1), // 2 is not executable
	})
	require.Len(t, groups, 1)
	require.Equal(t, NonSchedulable, groups[0].State)
}

func TestNonSchedulableDependentDoesNotBlockItsDependency(t *testing.T) {
	g := relation.New(0)
	// R depends on C: R -> C
	g.AddEdge(relation.Dependency, 10, 20, nil)

	groups := Resolve(g, []handle.ID{10, 20}, Oracle{
		IndividuallyStartable: allStartable(20), // 10 itself is not startable
	})
	require.Len(t, groups, 2)

	var rGroup, cGroup *Group
	for _, grp := range groups {
		if grp.Tasks[0] == 10 {
			rGroup = grp
		} else {
			cGroup = grp
		}
	}
	require.Equal(t, NonSchedulable, rGroup.State)
	require.Equal(t, Schedulable, cGroup.State)
}

func TestDependentGroupBlockedByNonSchedulableTarget(t *testing.T) {
	g := relation.New(0)
	g.AddEdge(relation.Dependency, 10, 20, nil)

	groups := Resolve(g, []handle.ID{10, 20}, Oracle{
		IndividuallyStartable: allStartable(10), // 20 (the dependency) is not startable
	})

	var rGroup *Group
	for _, grp := range groups {
		if grp.Tasks[0] == 10 {
			rGroup = grp
		}
	}
	require.Equal(t, NonSchedulable, rGroup.State)
	require.Contains(t, rGroup.HeldNonSchedulable, groupIDOf(groups, 20))
}

func TestTemporallyPendingPropagates(t *testing.T) {
	g := relation.New(0)
	g.AddEdge(relation.Dependency, 10, 20, nil)

	groups := Resolve(g, []handle.ID{10, 20}, Oracle{
		IndividuallyStartable: allStartable(10, 20),
		TemporallyPending:     func(id handle.ID) bool { return id == 20 },
	})

	var rGroup *Group
	for _, grp := range groups {
		if grp.Tasks[0] == 10 {
			rGroup = grp
		}
	}
	require.Equal(t, PendingTemporal, rGroup.State)
}

func groupIDOf(groups []*Group, task handle.ID) int {
	for _, g := range groups {
		for _, t := range g.Tasks {
			if t == task {
				return g.ID
			}
		}
	}
	return -1
}
