package plan

import (
	"time"

	"github.com/dagu-org/taskkernel/internal/handle"
	"github.com/dagu-org/taskkernel/internal/kernelerr"
	"github.com/dagu-org/taskkernel/internal/relation"
	"github.com/dagu-org/taskkernel/internal/stream"
)

// Emit commands event id to fire with payload at the current time (§3's
// "commanded emission"). Only controllable events may be commanded
// directly; everything downstream fires by propagation.
func (p *Plan) Emit(id EventID, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, err := p.checkEvent(id)
	if err != nil {
		return err
	}
	if !e.Controllable {
		return kernelerr.ErrNotControllable
	}
	now := toSeconds(time.Now())
	return p.emitLocked(id.raw, now, payload, nil)
}

// EmitAt is Emit with an explicit event time, for deterministic tests and
// for replaying externally-timestamped occurrences.
func (p *Plan) EmitAt(id EventID, t float64, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, err := p.checkEvent(id)
	if err != nil {
		return err
	}
	if !e.Controllable {
		return kernelerr.ErrNotControllable
	}
	return p.emitLocked(id.raw, t, payload, nil)
}

// emitLocked performs the actual gated emission of raw at time t, then
// propagates to every dependent event (Signal/Forward relation targets
// and And/Or/Filter/Until generator children). Callers hold p.mu.
func (p *Plan) emitLocked(raw handle.ID, t float64, payload any, sources []handle.ID) error {
	e, ok := p.events[raw]
	if !ok || e.FinalizedAt != nil {
		return kernelerr.ErrNotFound
	}

	if ok, edge := p.temporal.Emittable(raw, t); !ok {
		return &kernelerr.TemporalConstraintViolation{Source: edge.From, Target: edge.To, At: t}
	}
	if ok, edge := p.temporal.OccurrenceSatisfied(raw); !ok {
		data, _ := edge.Data.(relation.OccurrenceData)
		count := p.emitted.CountSince(edge.From, 0)
		return &kernelerr.OccurrenceConstraintViolation{
			Source: edge.From, Target: edge.To,
			Count: count, Min: data.Min, Max: data.Max,
		}
	}

	p.emitted.Append(raw, t, payload, sources)
	p.temporal.RecordEmission(raw, t)
	p.pub.Publish(stream.Emitted{Event: raw, At: t, Payload: payload})

	if !e.Owner.IsZero() {
		p.applyLifecycleLocked(e.Owner, e.Name, t)
	}

	p.propagateLocked(raw, t, payload)
	return nil
}

// propagateLocked re-evaluates every event downstream of raw's firing:
// Signal/Forward relation targets always relay, generator children
// (And/Or/Filter/Until) relay according to their combinator semantics
// (§3).
func (p *Plan) propagateLocked(raw handle.ID, t float64, payload any) {
	for _, edge := range p.rel.OutEdges(relation.Signal, raw) {
		p.relayLocked(edge.To, t, payload, raw)
	}
	for _, edge := range p.rel.OutEdges(relation.Forward, raw) {
		p.relayLocked(edge.To, t, payload, raw)
	}

	for _, child := range p.childrenByParent[raw] {
		ce, ok := p.events[child]
		if !ok || ce.FinalizedAt != nil {
			continue
		}
		switch ce.Kind {
		case Or:
			p.relayLocked(child, t, payload, raw)

		case Filter:
			if ce.filter == nil || ce.filter(payload) {
				p.relayLocked(child, t, payload, raw)
			}

		case And:
			ce.andSatisfied[raw] = true
			allSeen := true
			for _, parent := range ce.Parents {
				if !ce.andSatisfied[parent.raw] {
					allSeen = false
					break
				}
			}
			if allSeen {
				for k := range ce.andSatisfied {
					delete(ce.andSatisfied, k)
				}
				p.relayLocked(child, t, payload, raw)
			}

		case Until:
			if len(ce.Parents) != 2 {
				continue
			}
			trigger, until := ce.Parents[0].raw, ce.Parents[1].raw
			if raw != trigger {
				continue
			}
			if p.emitted.HasEmitted(until) {
				continue
			}
			p.relayLocked(child, t, payload, raw)
		}
	}
}

// relayLocked fires target as a consequence of source's emission,
// ignoring target's Controllable flag (propagation is never a command)
// but still subject to the same temporal/occurrence gating as any other
// emission.
func (p *Plan) relayLocked(target handle.ID, t float64, payload any, source handle.ID) {
	_ = p.emitLocked(target, t, payload, []handle.ID{source})
}

// applyLifecycleLocked reflects a lifecycle event firing into the owning
// task's State (§3's pending -> starting -> running -> finishing ->
// succeeded|failed machine). Names other than the four lifecycle events
// have no state side effect.
func (p *Plan) applyLifecycleLocked(owner TaskID, name string, t float64) {
	task, ok := p.tasks[owner.raw]
	if !ok || task.FinalizedAt != nil {
		return
	}
	switch name {
	case "start":
		if task.State == Pending {
			task.State = Starting
		}
	case "stop":
		if task.State == Starting || task.State == Running {
			task.State = Finishing
		}
	case "success":
		task.State = Succeeded
	case "failed":
		task.State = Failed
	}
}

// Start commands task id's start event.
func (p *Plan) Start(id TaskID) error { return p.commandLifecycle(id, "start", nil) }

// Stop commands task id's stop event.
func (p *Plan) Stop(id TaskID) error { return p.commandLifecycle(id, "stop", nil) }

// Succeed commands task id's success event.
func (p *Plan) Succeed(id TaskID, payload any) error { return p.commandLifecycle(id, "success", payload) }

// Fail commands task id's failed event.
func (p *Plan) Fail(id TaskID, payload any) error { return p.commandLifecycle(id, "failed", payload) }

func (p *Plan) commandLifecycle(id TaskID, name string, payload any) error {
	p.mu.Lock()
	raw, ok := p.taskEvents[id.raw][name]
	p.mu.Unlock()
	if !ok {
		return kernelerr.ErrNotFound
	}
	return p.Emit(EventID{plan: p, raw: raw}, payload)
}

// MarkRunning reflects externally-observed progress (a started task has
// begun doing work) without commanding an event, mirroring SetState.
func (p *Plan) MarkRunning(id TaskID) error {
	return p.SetState(id, Running)
}
