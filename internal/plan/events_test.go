package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddFreeEventIsOwnerless(t *testing.T) {
	p := New()
	id, err := p.AddFreeEvent("tick", true)
	require.NoError(t, err)

	ev, err := p.Event(id)
	require.NoError(t, err)
	assert.True(t, ev.Owner.IsZero())
	assert.Equal(t, Plain, ev.Kind)
}

func TestAddTaskEventRejectsUnknownTask(t *testing.T) {
	a := New()
	b := New()
	foreign, _ := b.AddTask(nil, true)

	_, err := a.AddTaskEvent(foreign, "custom", true, false)
	assert.Error(t, err)
}

func TestAddAndEventRejectsUnknownParent(t *testing.T) {
	p := New()
	other := New()
	foreignEvent, err := other.AddFreeEvent("x", true)
	require.NoError(t, err)

	_, err = p.AddAndEvent(TaskID{}, "and1", false, foreignEvent)
	assert.Error(t, err)
}

func TestRemoveFreeEventFinalises(t *testing.T) {
	p := New()
	id, err := p.AddFreeEvent("tick", true)
	require.NoError(t, err)

	require.NoError(t, p.RemoveFreeEvent(id))

	_, err = p.Event(id)
	assert.Error(t, err)
}

func TestRemoveFreeEventRejectsTaskBoundEvent(t *testing.T) {
	p := New()
	task, err := p.AddTask(nil, true)
	require.NoError(t, err)
	start, err := p.TaskEvent(task, "start")
	require.NoError(t, err)

	err = p.RemoveFreeEvent(start)
	assert.ErrorIs(t, err, errTaskBoundEvent)
}

func TestRegisterEventFinalizerRunsOnRemoval(t *testing.T) {
	p := New()
	id, err := p.AddFreeEvent("tick", true)
	require.NoError(t, err)

	var fired bool
	require.NoError(t, p.RegisterEventFinalizer(id, func(TaskID) { fired = true }))
	require.NoError(t, p.RemoveFreeEvent(id))
	assert.True(t, fired)
}
