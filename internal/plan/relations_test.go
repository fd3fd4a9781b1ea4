package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dagu-org/taskkernel/internal/ivalset"
	"github.com/dagu-org/taskkernel/internal/kernelerr"
	"github.com/dagu-org/taskkernel/internal/relation"
)

func TestDependsOnWiresTaskEdge(t *testing.T) {
	p := New()
	child, _ := p.AddTask(nil, true)
	parent, _ := p.AddTask(nil, true)

	require.NoError(t, p.DependsOn(child, parent))
	assert.True(t, p.rel.HasEdge(relation.Dependency, child.raw, parent.raw))

	err := p.DependsOn(child, parent)
	assert.ErrorIs(t, err, kernelerr.ErrDuplicateEdge)
}

func TestScheduleAsAndPlannedBy(t *testing.T) {
	p := New()
	a, _ := p.AddTask(nil, true)
	b, _ := p.AddTask(nil, true)

	require.NoError(t, p.ScheduleAs(a, b))
	require.NoError(t, p.ScheduleAs(b, a))
	assert.True(t, p.rel.HasEdge(relation.ScheduleAs, a.raw, b.raw))
	assert.True(t, p.rel.HasEdge(relation.ScheduleAs, b.raw, a.raw))

	require.NoError(t, p.PlannedBy(b, a))
	assert.True(t, p.rel.HasEdge(relation.PlannedBy, b.raw, a.raw))
}

func TestForwardTemporalConstraintAddsNegatedReverseEdge(t *testing.T) {
	p := New()
	owner, _ := p.AddTask(nil, true)
	u, err := p.AddTaskEvent(owner, "u", true, false)
	require.NoError(t, err)
	v, err := p.AddTaskEvent(owner, "v", true, false)
	require.NoError(t, err)

	set := ivalset.New([2]float64{1, 5})
	require.NoError(t, p.ForwardTemporalConstraint(u, v, set))

	fwd, ok := p.rel.EdgeData(relation.ForwardTemporalConstraint, u.raw, v.raw)
	require.True(t, ok)
	assert.True(t, fwd.(*ivalset.Set).Include(3))

	rev, ok := p.rel.EdgeData(relation.ForwardTemporalConstraint, v.raw, u.raw)
	require.True(t, ok)
	assert.True(t, rev.(*ivalset.Set).Include(-3))
	assert.False(t, rev.(*ivalset.Set).Include(3))
}

func TestForwardTemporalConstraintDerivesShouldStartAfter(t *testing.T) {
	p := New()
	taskA, _ := p.AddTask(nil, true)
	taskB, _ := p.AddTask(nil, true)
	startA, err := p.TaskEvent(taskA, "start")
	require.NoError(t, err)
	startB, err := p.TaskEvent(taskB, "start")
	require.NoError(t, err)

	// B's start must follow A's start by at least zero: Lo <= 0 so
	// ShouldEmitAfter(startB, startA) holds (§4.E).
	set := ivalset.New([2]float64{0, 100})
	require.NoError(t, p.ForwardTemporalConstraint(startA, startB, set))

	assert.True(t, p.rel.HasEdge(relation.ShouldStartAfter, taskB.raw, taskA.raw))
}

func TestRelationMethodsRejectCrossPlanHandles(t *testing.T) {
	p := New()
	other := New()

	foreignTask, _ := other.AddTask(nil, true)
	localTask, _ := p.AddTask(nil, true)
	assert.ErrorIs(t, p.DependsOn(localTask, foreignTask), kernelerr.ErrCrossPlanEdge)

	foreignEvent, _ := other.AddFreeEvent("x", true)
	localEvent, _ := p.AddFreeEvent("y", true)
	assert.ErrorIs(t, p.Signal(localEvent, foreignEvent), kernelerr.ErrCrossPlanEdge)
}
