package plan

import (
	"time"

	"dario.cat/mergo"
	"github.com/google/uuid"

	"github.com/dagu-org/taskkernel/internal/handle"
	"github.com/dagu-org/taskkernel/internal/kernelerr"
	"github.com/dagu-org/taskkernel/internal/stream"
)

// lifecycleEvents are auto-created on every task, bound by name, so that
// start!/stop!/success!/failed! (§6) always have a controllable event to
// command.
var lifecycleEvents = []struct {
	name         string
	terminal     bool
	controllable bool
}{
	{name: "start", controllable: true},
	{name: "stop", controllable: true},
	{name: "success", controllable: true, terminal: true},
	{name: "failed", controllable: true, terminal: true},
}

// AddTask registers a new task with the plan and binds its four lifecycle
// events (start, stop, success, failed). executable marks whether the
// task may ever be individually startable (§3). args is merged over the
// plan's default task args (set via WithDefaultTaskArgs), with args'
// values taking precedence on key conflicts (DOMAIN STACK: dario.cat/mergo).
func (p *Plan) AddTask(args map[string]any, executable bool) (TaskID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	merged := map[string]any{}
	for k, v := range p.defaultArgs {
		merged[k] = v
	}
	if err := mergo.Merge(&merged, args, mergo.WithOverride); err != nil {
		return TaskID{}, err
	}

	p.nextTask++
	raw := handle.ID(p.nextTask)
	id := TaskID{plan: p, raw: raw}

	entry := &taskEntry{Task: Task{
		ID:         id,
		ExternalID: uuid.New(),
		State:      Pending,
		Executable: executable,
		Args:       merged,
		AddedAt:    time.Now(),
	}}
	p.tasks[raw] = entry
	p.taskEvents[raw] = make(map[string]handle.ID)

	for _, le := range lifecycleEvents {
		if _, err := p.addTaskEventLocked(id, le.name, Plain, le.controllable, le.terminal, nil); err != nil {
			return TaskID{}, err
		}
	}

	p.pub.Publish(stream.TaskAdded{ID: raw, ExternalID: entry.ExternalID, At: entry.AddedAt})
	return id, nil
}

// RemoveTask finalises task id: instance- and (if the plan is executable)
// type-level finalisers run, its bound events are finalised and every
// incident relation edge is severed (§4.C).
func (p *Plan) RemoveTask(id TaskID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	t, err := p.checkTask(id)
	if err != nil {
		return err
	}

	now := time.Now()
	t.FinalizedAt = &now

	for _, h := range p.taskFinalizers[id.raw] {
		h.Fn(id)
	}
	if p.executable {
		for _, h := range p.typeFinalizers {
			h.Fn(id)
		}
	}

	for _, evID := range p.taskEvents[id.raw] {
		p.finalizeEventLocked(evID)
	}
	delete(p.taskEvents, id.raw)

	p.rel.RemoveVertex(id.raw)
	p.pub.Publish(stream.TaskRemoved{ID: id.raw, At: now})
	return nil
}

// SetExecutable toggles whether task id may be individually startable.
func (p *Plan) SetExecutable(id TaskID, executable bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, err := p.checkTask(id)
	if err != nil {
		return err
	}
	t.Executable = executable
	return nil
}

// SetState forcibly sets task id's lifecycle state. Normal transitions
// happen through event emission (emit.go); this exists for callers (the
// executor facade, tests) that need to reflect externally-observed
// progress without commanding an event.
func (p *Plan) SetState(id TaskID, state TaskState) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, err := p.checkTask(id)
	if err != nil {
		return err
	}
	t.State = state
	return nil
}

// TaskEvent looks up the event bound to (task, name).
func (p *Plan) TaskEvent(task TaskID, name string) (EventID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if task.plan != p {
		return EventID{}, kernelerr.ErrCrossPlanEdge
	}
	raw, ok := p.taskEvents[task.raw][name]
	if !ok {
		return EventID{}, kernelerr.ErrNotFound
	}
	return EventID{plan: p, raw: raw}, nil
}

// RegisterTaskFinalizer installs an instance-level handler, run when id is
// finalised, in registration order. copyOnReplace controls whether the
// handler is re-installed on the replacement object by ReplaceTask.
func (p *Plan) RegisterTaskFinalizer(id TaskID, fn func(TaskID), copyOnReplace bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := p.checkTask(id); err != nil {
		return err
	}
	p.taskFinalizers[id.raw] = append(p.taskFinalizers[id.raw], FinalizeHandler{Fn: fn, CopyOnReplace: copyOnReplace})
	return nil
}

// RegisterTypeFinalizer installs a model-level handler that runs for every
// task finalised while the plan is executable (§4.C).
func (p *Plan) RegisterTypeFinalizer(fn func(TaskID)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.typeFinalizers = append(p.typeFinalizers, FinalizeHandler{Fn: fn})
}

// ReplaceTask migrates every non-strong relation edge and copy-on-replace
// finalisers from old to replacement, then finalises old (§4.B/§4.C).
func (p *Plan) ReplaceTask(old, replacement TaskID, includeStrong bool) error {
	p.mu.Lock()
	if _, err := p.checkTask(old); err != nil {
		p.mu.Unlock()
		return err
	}
	if _, err := p.checkTask(replacement); err != nil {
		p.mu.Unlock()
		return err
	}
	p.rel.Replace(old.raw, replacement.raw, includeStrong)
	for _, h := range p.taskFinalizers[old.raw] {
		if h.CopyOnReplace {
			p.taskFinalizers[replacement.raw] = append(p.taskFinalizers[replacement.raw], h)
		}
	}
	p.mu.Unlock()
	return p.RemoveTask(old)
}
