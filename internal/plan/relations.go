package plan

import (
	"github.com/dagu-org/taskkernel/internal/ivalset"
	"github.com/dagu-org/taskkernel/internal/kernelerr"
	"github.com/dagu-org/taskkernel/internal/relation"
	"github.com/dagu-org/taskkernel/internal/stream"
)

// Relation-wiring methods are written per vertex space (event-space vs
// task-space) rather than behind one shared interface: spec.md's kinds
// are typed per space, and a shared interface would let a caller pass a
// TaskID where an EventID belongs.

func (p *Plan) eventEdge(kind relation.Kind, u, v EventID, data any) error {
	if u.plan != p || v.plan != p {
		return kernelerr.ErrCrossPlanEdge
	}
	if _, err := p.checkEvent(u); err != nil {
		return err
	}
	if _, err := p.checkEvent(v); err != nil {
		return err
	}
	if !p.rel.AddEdge(kind, u.raw, v.raw, data) {
		return kernelerr.ErrDuplicateEdge
	}
	p.pub.Publish(stream.RelationAdded{Kind: kind.String(), From: u.raw, To: v.raw})
	return nil
}

// Signal declares a signal propagation edge u->v.
func (p *Plan) Signal(u, v EventID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.eventEdge(relation.Signal, u, v, nil)
}

// Forward declares a forward propagation edge u->v.
func (p *Plan) Forward(u, v EventID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.eventEdge(relation.Forward, u, v, nil)
}

// CausalLink declares an ordering edge u->v.
func (p *Plan) CausalLink(u, v EventID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.eventEdge(relation.CausalLink, u, v, nil)
}

// Precedence declares an ordering edge u->v.
func (p *Plan) Precedence(u, v EventID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.eventEdge(relation.Precedence, u, v, nil)
}

// SchedulingConstraint declares that v's start is coupled to u's start.
func (p *Plan) SchedulingConstraint(u, v EventID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.eventEdge(relation.SchedulingConstraint, u, v, relation.SchedulingData{})
}

// OccurrenceConstraint declares that v may only fire while the number of
// emissions of u since the relevant epoch lies in [min, max]. max < 0
// means unbounded.
func (p *Plan) OccurrenceConstraint(u, v EventID, min, max int, recurrent bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.eventEdge(relation.OccurrenceConstraint, u, v, relation.OccurrenceData{Min: min, Max: max, Recurrent: recurrent})
}

// ForwardTemporalConstraint declares that v may only fire at time t if
// some emission tu of u satisfies (t - tu) in set. Per §3's invariant, the
// reverse edge v->u is created automatically with set negated, both
// canonicalised via ivalset. If u and v are both bound "start" events of
// distinct tasks, and the declared constraint places v downstream of u
// (temporal.ShouldEmitAfter), a derived should_start_after task edge is
// added as well (§4.E "Should-emit-after").
func (p *Plan) ForwardTemporalConstraint(u, v EventID, set *ivalset.Set) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.eventEdge(relation.ForwardTemporalConstraint, u, v, set); err != nil {
		return err
	}
	if err := p.eventEdge(relation.ForwardTemporalConstraint, v, u, set.Negate()); err != nil {
		return err
	}

	if p.temporal.ShouldEmitAfter(v.raw, u.raw) {
		uEntry := p.events[u.raw]
		vEntry := p.events[v.raw]
		if uEntry != nil && vEntry != nil && !uEntry.Owner.IsZero() && !vEntry.Owner.IsZero() &&
			uEntry.Name == "start" && vEntry.Name == "start" && uEntry.Owner.raw != vEntry.Owner.raw {
			// v should start after u: add a derived task-level edge.
			_ = p.rel.AddEdge(relation.ShouldStartAfter, vEntry.Owner.raw, uEntry.Owner.raw, nil)
		}
	}
	return nil
}

// Task-space relations.

func (p *Plan) taskEdgeFn(kind relation.Kind, u, v TaskID, data any) error {
	if u.plan != p || v.plan != p {
		return kernelerr.ErrCrossPlanEdge
	}
	if _, err := p.checkTask(u); err != nil {
		return err
	}
	if _, err := p.checkTask(v); err != nil {
		return err
	}
	if !p.rel.AddEdge(kind, u.raw, v.raw, data) {
		return kernelerr.ErrDuplicateEdge
	}
	p.pub.Publish(stream.RelationAdded{Kind: kind.String(), From: u.raw, To: v.raw})
	return nil
}

// DependsOn declares that child depends on parent, producing the a->b
// ("child scheduled with parent") edge the group resolver reads (§4.F).
func (p *Plan) DependsOn(child, parent TaskID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.taskEdgeFn(relation.Dependency, child, parent, nil)
}

// ScheduleAs declares that a is scheduled together with b: the group
// resolver will start or refuse to start them as one unit. Declaring it
// in both directions (a.ScheduleAs(b) and b.ScheduleAs(a)) forms the
// mutual coupling described in the GLOSSARY.
func (p *Plan) ScheduleAs(a, b TaskID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.taskEdgeFn(relation.ScheduleAs, a, b, nil)
}

// PlannedBy declares that produced is planned by producer: produced.
// planned_by(producer). The scheduler's precondition 3 (§4.G) reads this
// edge to decide whether producer may start: it waits until every task it
// plans has succeeded, unless one of them is not yet executable.
func (p *Plan) PlannedBy(produced, producer TaskID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.taskEdgeFn(relation.PlannedBy, produced, producer, nil)
}

// ShouldStartAfter explicitly declares that dependent may only start once
// prerequisite's start event has emitted. Usually this edge is derived
// automatically from a ForwardTemporalConstraint between two start
// events, but it can also be declared directly.
func (p *Plan) ShouldStartAfter(dependent, prerequisite TaskID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.taskEdgeFn(relation.ShouldStartAfter, dependent, prerequisite, nil)
}
