package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dagu-org/taskkernel/internal/kernelerr"
)

func TestEmitRejectsUncontrollableEvent(t *testing.T) {
	p := New()
	id, err := p.AddFreeEvent("derived", false)
	require.NoError(t, err)

	err = p.Emit(id, nil)
	assert.ErrorIs(t, err, kernelerr.ErrNotControllable)
}

func TestStartTransitionsTaskToStarting(t *testing.T) {
	p := New()
	task, err := p.AddTask(nil, true)
	require.NoError(t, err)

	require.NoError(t, p.Start(task))

	snap, err := p.Task(task)
	require.NoError(t, err)
	assert.Equal(t, Starting, snap.State)
}

func TestSucceedTransitionsTaskToSucceeded(t *testing.T) {
	p := New()
	task, err := p.AddTask(nil, true)
	require.NoError(t, err)
	require.NoError(t, p.Start(task))

	require.NoError(t, p.Succeed(task, "ok"))

	snap, err := p.Task(task)
	require.NoError(t, err)
	assert.Equal(t, Succeeded, snap.State)
}

func TestOrEventFiresOnEitherParent(t *testing.T) {
	p := New()
	a, err := p.AddFreeEvent("a", true)
	require.NoError(t, err)
	b, err := p.AddFreeEvent("b", true)
	require.NoError(t, err)
	or, err := p.AddOrEvent(TaskID{}, "or", false, a, b)
	require.NoError(t, err)

	require.NoError(t, p.Emit(a, "from-a"))
	assert.True(t, p.emitted.HasEmitted(or.raw))

	rec, ok := p.emitted.Last(or.raw)
	require.True(t, ok)
	assert.Equal(t, "from-a", rec.Payload)
}

func TestAndEventFiresOnlyAfterAllParents(t *testing.T) {
	p := New()
	a, err := p.AddFreeEvent("a", true)
	require.NoError(t, err)
	b, err := p.AddFreeEvent("b", true)
	require.NoError(t, err)
	and, err := p.AddAndEvent(TaskID{}, "and", false, a, b)
	require.NoError(t, err)

	require.NoError(t, p.Emit(a, nil))
	assert.False(t, p.emitted.HasEmitted(and.raw))

	require.NoError(t, p.Emit(b, nil))
	assert.True(t, p.emitted.HasEmitted(and.raw))
}

func TestAndEventResetsAfterFiring(t *testing.T) {
	p := New()
	a, _ := p.AddFreeEvent("a", true)
	b, _ := p.AddFreeEvent("b", true)
	and, err := p.AddAndEvent(TaskID{}, "and", false, a, b)
	require.NoError(t, err)

	require.NoError(t, p.Emit(a, nil))
	require.NoError(t, p.Emit(b, nil))
	require.Equal(t, 1, len(p.emitted.History(and.raw)))

	require.NoError(t, p.Emit(a, nil))
	assert.Equal(t, 1, len(p.emitted.History(and.raw)), "second round not yet complete")

	require.NoError(t, p.Emit(b, nil))
	assert.Equal(t, 2, len(p.emitted.History(and.raw)))
}

func TestFilterEventRelaysOnlyMatchingPayloads(t *testing.T) {
	p := New()
	src, _ := p.AddFreeEvent("src", true)
	evenOnly, err := p.AddFilterEvent(TaskID{}, "even", false, src, func(payload any) bool {
		n, ok := payload.(int)
		return ok && n%2 == 0
	})
	require.NoError(t, err)

	require.NoError(t, p.Emit(src, 3))
	assert.False(t, p.emitted.HasEmitted(evenOnly.raw))

	require.NoError(t, p.Emit(src, 4))
	assert.True(t, p.emitted.HasEmitted(evenOnly.raw))
}

func TestUntilEventStopsRelayingAfterUntilFires(t *testing.T) {
	p := New()
	trigger, _ := p.AddFreeEvent("trigger", true)
	stop, _ := p.AddFreeEvent("stop", true)
	relay, err := p.AddUntilEvent(TaskID{}, "relay", false, trigger, stop)
	require.NoError(t, err)

	require.NoError(t, p.Emit(trigger, 1))
	assert.Equal(t, 1, len(p.emitted.History(relay.raw)))

	require.NoError(t, p.Emit(stop, nil))
	require.NoError(t, p.Emit(trigger, 2))
	assert.Equal(t, 1, len(p.emitted.History(relay.raw)), "no further relay once until has fired")
}

func TestSignalPropagatesToTarget(t *testing.T) {
	p := New()
	u, _ := p.AddFreeEvent("u", true)
	v, _ := p.AddFreeEvent("v", false)
	require.NoError(t, p.Signal(u, v))

	require.NoError(t, p.Emit(u, "payload"))
	assert.True(t, p.emitted.HasEmitted(v.raw))
}
