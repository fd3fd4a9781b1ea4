package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dagu-org/taskkernel/internal/ivalset"
	"github.com/dagu-org/taskkernel/internal/plan"
)

func TestScheduleReturnsOnlyExecutablePendingTasks(t *testing.T) {
	p := plan.New()
	executable, err := p.AddTask(nil, true)
	require.NoError(t, err)
	_, err = p.AddTask(nil, false)
	require.NoError(t, err)

	sched := New(p)
	out := sched.ComputeTasksToSchedule(0)

	require.Len(t, out, 1)
	assert.Equal(t, executable, out[0].ID)
}

func TestScheduleExcludesNonPendingTask(t *testing.T) {
	p := plan.New()
	task, err := p.AddTask(nil, true)
	require.NoError(t, err)
	require.NoError(t, p.Start(task))

	sched := New(p)
	out := sched.ComputeTasksToSchedule(0)
	assert.Empty(t, out)
}

func TestScheduleOrdersByAdditionTimeThenID(t *testing.T) {
	p := plan.New()
	first, err := p.AddTask(nil, true)
	require.NoError(t, err)
	second, err := p.AddTask(nil, true)
	require.NoError(t, err)

	sched := New(p)
	out := sched.ComputeTasksToSchedule(0)

	require.Len(t, out, 2)
	assert.Equal(t, first, out[0].ID)
	assert.Equal(t, second, out[1].ID)
}

func TestScheduleBlocksOnUnsatisfiedOccurrenceConstraint(t *testing.T) {
	p := plan.New()
	gate, err := p.AddFreeEvent("gate", true)
	require.NoError(t, err)
	task, err := p.AddTask(nil, true)
	require.NoError(t, err)
	startEv, err := p.TaskEvent(task, "start")
	require.NoError(t, err)

	require.NoError(t, p.OccurrenceConstraint(gate, startEv, 1, -1, false))

	sched := New(p)
	out := sched.ComputeTasksToSchedule(0)
	assert.Empty(t, out)

	require.NoError(t, p.Emit(gate, nil))
	out = sched.ComputeTasksToSchedule(0)
	require.Len(t, out, 1)
	assert.Equal(t, task, out[0].ID)
}

func TestScheduleBlocksOnExpiredTemporalWindow(t *testing.T) {
	p := plan.New()
	gate, err := p.AddFreeEvent("gate", true)
	require.NoError(t, err)
	task, err := p.AddTask(nil, true)
	require.NoError(t, err)
	startEv, err := p.TaskEvent(task, "start")
	require.NoError(t, err)

	require.NoError(t, p.ForwardTemporalConstraint(gate, startEv, ivalset.New([2]float64{0, 10})))

	sched := New(p)
	out := sched.ComputeTasksToSchedule(0)
	require.Len(t, out, 1, "no prior gate emission: window check vacuously passes")

	require.NoError(t, p.EmitAt(gate, 0, nil))
	out = sched.ComputeTasksToSchedule(5)
	require.Len(t, out, 1, "within the [0,10] window opened by gate's emission")

	out = sched.ComputeTasksToSchedule(20)
	assert.Empty(t, out, "window closed at t=10, now=20 is outside it")
}

func TestSchedulePlannedByPreconditionWaitsForChildSuccess(t *testing.T) {
	p := plan.New()
	producer, err := p.AddTask(nil, true)
	require.NoError(t, err)
	child, err := p.AddTask(nil, true)
	require.NoError(t, err)
	require.NoError(t, p.PlannedBy(child, producer))

	sched := New(p)
	out := sched.ComputeTasksToSchedule(0)

	var producerListed bool
	for _, task := range out {
		if task.ID == producer {
			producerListed = true
		}
	}
	assert.False(t, producerListed, "producer waits on its not-yet-succeeded planned child")

	require.NoError(t, p.Start(child))
	require.NoError(t, p.Succeed(child, nil))

	out = sched.ComputeTasksToSchedule(0)
	producerListed = false
	for _, task := range out {
		if task.ID == producer {
			producerListed = true
		}
	}
	assert.True(t, producerListed)
}

func TestSchedulePlannedByPreconditionSkipsNotYetExecutableChild(t *testing.T) {
	p := plan.New()
	producer, err := p.AddTask(nil, true)
	require.NoError(t, err)
	child, err := p.AddTask(nil, false)
	require.NoError(t, err)
	require.NoError(t, p.PlannedBy(child, producer))

	sched := New(p)
	out := sched.ComputeTasksToSchedule(0)

	var producerListed bool
	for _, task := range out {
		if task.ID == producer {
			producerListed = true
		}
	}
	assert.True(t, producerListed, "producer may start while its planned child is still being planned (not executable yet)")
}

func TestScheduleShouldStartAfterWithholdsUntilPrerequisiteStarts(t *testing.T) {
	p := plan.New()
	prerequisite, err := p.AddTask(nil, true)
	require.NoError(t, err)
	dependent, err := p.AddTask(nil, true)
	require.NoError(t, err)
	require.NoError(t, p.ShouldStartAfter(dependent, prerequisite))

	sched := New(p)

	out := sched.ComputeTasksToSchedule(0)
	var dependentListed, prerequisiteListed bool
	for _, task := range out {
		switch task.ID {
		case dependent:
			dependentListed = true
		case prerequisite:
			prerequisiteListed = true
		}
	}
	assert.True(t, prerequisiteListed, "prerequisite has nothing holding it back")
	assert.False(t, dependentListed, "dependent is withheld: prerequisite's start event hasn't emitted")

	require.NoError(t, p.Start(prerequisite))

	out = sched.ComputeTasksToSchedule(1)
	dependentListed = false
	for _, task := range out {
		if task.ID == dependent {
			dependentListed = true
		}
	}
	assert.True(t, dependentListed, "released on the next tick once prerequisite's start event has emitted")
}
