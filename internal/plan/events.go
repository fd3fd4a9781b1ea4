package plan

import (
	"errors"
	"time"

	"github.com/dagu-org/taskkernel/internal/handle"
)

// errTaskBoundEvent is returned by RemoveFreeEvent when called on an event
// owned by a task; those are only finalised by RemoveTask, which cascades
// to every event it owns.
var errTaskBoundEvent = errors.New("event is task-bound; finalise its task instead")

// AddFreeEvent registers a plan-owned event with no task owner.
func (p *Plan) AddFreeEvent(name string, controllable bool) (EventID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.addEventLocked(TaskID{}, name, Plain, controllable, false, nil, nil)
}

// AddTaskEvent registers a plain event bound to task, distinct from its
// auto-created lifecycle events.
func (p *Plan) AddTaskEvent(task TaskID, name string, controllable, terminal bool) (EventID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := p.checkTask(task); err != nil {
		return EventID{}, err
	}
	return p.addEventLocked(task, name, Plain, controllable, terminal, nil, nil)
}

// AddAndEvent registers a generator that fires once every parent has
// emitted since its own last firing (§3 "and").
func (p *Plan) AddAndEvent(owner TaskID, name string, controllable bool, parents ...EventID) (EventID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.addGeneratorLocked(owner, name, And, controllable, parents, nil)
}

// AddOrEvent registers a generator that fires whenever any parent fires
// (§3 "or").
func (p *Plan) AddOrEvent(owner TaskID, name string, controllable bool, parents ...EventID) (EventID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.addGeneratorLocked(owner, name, Or, controllable, parents, nil)
}

// AddFilterEvent registers a generator that relays parent's emissions for
// which pred(payload) is true (§3 "filter").
func (p *Plan) AddFilterEvent(owner TaskID, name string, controllable bool, parent EventID, pred func(payload any) bool) (EventID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.addGeneratorLocked(owner, name, Filter, controllable, []EventID{parent}, pred)
}

// AddUntilEvent registers a generator that relays trigger's emissions
// until until has ever fired (§3 "until").
func (p *Plan) AddUntilEvent(owner TaskID, name string, controllable bool, trigger, until EventID) (EventID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.addGeneratorLocked(owner, name, Until, controllable, []EventID{trigger, until}, nil)
}

func (p *Plan) addGeneratorLocked(owner TaskID, name string, kind EventKind, controllable bool, parents []EventID, pred func(any) bool) (EventID, error) {
	for _, parent := range parents {
		if _, err := p.checkEvent(parent); err != nil {
			return EventID{}, err
		}
	}
	if !owner.IsZero() {
		if _, err := p.checkTask(owner); err != nil {
			return EventID{}, err
		}
	}
	return p.addEventLocked(owner, name, kind, controllable, false, parents, pred)
}

func (p *Plan) addEventLocked(owner TaskID, name string, kind EventKind, controllable, terminal bool, parents []EventID, filterFn func(any) bool) (EventID, error) {
	p.nextEvent++
	raw := handle.ID(p.nextEvent)
	id := EventID{plan: p, raw: raw}

	entry := &eventEntry{
		Event: Event{
			ID:           id,
			Owner:        owner,
			Name:         name,
			Kind:         kind,
			Controllable: controllable,
			Terminal:     terminal,
			Parents:      append([]EventID(nil), parents...),
		},
		filter: filterFn,
	}
	p.events[raw] = entry

	if !owner.IsZero() {
		p.taskEvents[owner.raw][name] = raw
	}
	for _, parent := range parents {
		p.childrenByParent[parent.raw] = append(p.childrenByParent[parent.raw], raw)
	}
	if kind == And {
		entry.andSatisfied = make(map[handle.ID]bool, len(parents))
	}
	return id, nil
}

// addTaskEventLocked is used during AddTask to bind the four lifecycle
// events; callers already hold p.mu.
func (p *Plan) addTaskEventLocked(task TaskID, name string, kind EventKind, controllable, terminal bool, parents []EventID) (EventID, error) {
	return p.addEventLocked(task, name, kind, controllable, terminal, parents, nil)
}

func (p *Plan) finalizeEventLocked(id handle.ID) {
	e, ok := p.events[id]
	if !ok || e.FinalizedAt != nil {
		return
	}
	now := time.Now()
	e.FinalizedAt = &now
	for _, h := range p.eventFinalizers[id] {
		h.Fn(e.Owner)
	}
	p.rel.RemoveVertex(id)
	p.emitted.Remove(id)
	p.temporal.ConsumeDeadlinesFor(id)
}

// RegisterEventFinalizer installs a handler run when event id is
// finalised (cascading from its owning task's removal, or directly for
// free events via RemoveFreeEvent).
func (p *Plan) RegisterEventFinalizer(id EventID, fn func(TaskID)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := p.checkEvent(id); err != nil {
		return err
	}
	p.eventFinalizers[id.raw] = append(p.eventFinalizers[id.raw], FinalizeHandler{Fn: fn})
	return nil
}

// RemoveFreeEvent finalises a plan-owned free event directly (task-bound
// events are only finalised by their task's removal).
func (p *Plan) RemoveFreeEvent(id EventID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, err := p.checkEvent(id)
	if err != nil {
		return err
	}
	if !e.Owner.IsZero() {
		return errTaskBoundEvent
	}
	p.finalizeEventLocked(id.raw)
	return nil
}
