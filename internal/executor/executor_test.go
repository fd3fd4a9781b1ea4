package executor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dagu-org/taskkernel/internal/ivalset"
	"github.com/dagu-org/taskkernel/internal/plan"
)

func TestTickStartsSchedulableTasks(t *testing.T) {
	p := plan.New()
	task, err := p.AddTask(nil, true)
	require.NoError(t, err)

	f := New(p)
	report := f.Tick(context.Background(), time.Unix(0, 0))

	require.Len(t, report.Started, 1)
	assert.Equal(t, task.Raw(), report.Started[0])

	snap, err := p.Task(task)
	require.NoError(t, err)
	assert.Equal(t, plan.Starting, snap.State)
}

func TestTickDeliversQueuedEmissionsFirst(t *testing.T) {
	p := plan.New()
	ev, err := p.AddFreeEvent("gate", true)
	require.NoError(t, err)

	f := New(p)
	f.Enqueue(PendingCommand{Event: ev, Payload: "hello"})

	report := f.Tick(context.Background(), time.Unix(0, 0))
	assert.Empty(t, report.Errors)

	rec, ok := p.Emissions().Last(ev.Raw())
	require.True(t, ok)
	assert.Equal(t, "hello", rec.Payload)
}

func TestTickReportsDeadlineMisses(t *testing.T) {
	p := plan.New()
	owner, err := p.AddTask(nil, true)
	require.NoError(t, err)
	u, err := p.AddTaskEvent(owner, "u", true, false)
	require.NoError(t, err)
	v, err := p.AddTaskEvent(owner, "v", true, false)
	require.NoError(t, err)

	set := ivalset.New([2]float64{0, 10})
	require.NoError(t, p.ForwardTemporalConstraint(u, v, set))
	require.NoError(t, p.EmitAt(u, 0, nil))

	f := New(p)
	report := f.Tick(context.Background(), time.Unix(100, 0))
	assert.NotEmpty(t, report.Errors)
}

func TestTickDeadlineGraceSuppressesRecentMiss(t *testing.T) {
	p := plan.New()
	owner, err := p.AddTask(nil, true)
	require.NoError(t, err)
	u, err := p.AddTaskEvent(owner, "u", true, false)
	require.NoError(t, err)
	v, err := p.AddTaskEvent(owner, "v", true, false)
	require.NoError(t, err)

	set := ivalset.New([2]float64{0, 10})
	require.NoError(t, p.ForwardTemporalConstraint(u, v, set))
	require.NoError(t, p.EmitAt(u, 0, nil))

	f := New(p, WithDeadlineGrace(95*time.Second))
	report := f.Tick(context.Background(), time.Unix(100, 0))
	assert.Empty(t, report.Errors, "deadline at t=10 is within the 95s grace window from now=100")
}

func TestNumTicksIncrementsEachCall(t *testing.T) {
	p := plan.New()
	f := New(p)
	r1 := f.Tick(context.Background(), time.Unix(0, 0))
	r2 := f.Tick(context.Background(), time.Unix(1, 0))
	assert.Equal(t, 1, r1.NumTicks)
	assert.Equal(t, 2, r2.NumTicks)
}
