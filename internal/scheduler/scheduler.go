// Package scheduler implements the global scheduler of spec.md §4.G: the
// per-tick decision of which pending tasks are startable, built on top of
// the scheduling-group resolver (package schedgroup) and the individual
// preconditions a task must meet.
package scheduler

import (
	"sort"

	"github.com/dagu-org/taskkernel/internal/handle"
	"github.com/dagu-org/taskkernel/internal/plan"
	"github.com/dagu-org/taskkernel/internal/relation"
	"github.com/dagu-org/taskkernel/internal/schedgroup"
)

// Scheduler computes the set of tasks to start on each tick, per the plan
// store it is bound to.
type Scheduler struct {
	plan *plan.Plan
}

// New binds a scheduler to p.
func New(p *plan.Plan) *Scheduler { return &Scheduler{plan: p} }

// ComputeTasksToSchedule is compute_tasks_to_schedule(now) (§4.G): the
// ordered list of tasks to command start on this tick, deterministically
// tie-broken by (earliest addition time in the task's scheduling group,
// then task id).
func (s *Scheduler) ComputeTasksToSchedule(now float64) []plan.Task {
	pendingTasks := s.pendingTasks()
	if len(pendingTasks) == 0 {
		return nil
	}

	byRaw := make(map[handle.ID]plan.Task, len(pendingTasks))
	rawIDs := make([]handle.ID, 0, len(pendingTasks))
	for _, t := range pendingTasks {
		byRaw[t.ID.Raw()] = t
		rawIDs = append(rawIDs, t.ID.Raw())
	}

	oracle := schedgroup.Oracle{
		IndividuallyStartable: func(raw handle.ID) bool {
			return s.individuallyStartable(byRaw[raw], now)
		},
		TemporallyPending: func(raw handle.ID) bool {
			return s.temporallyPending(byRaw[raw], now)
		},
	}

	groups := schedgroup.Resolve(s.plan.Relations(), rawIDs, oracle)
	s.applyShouldStartAfter(groups, now)

	type ordered struct {
		minAdded float64
		group    *schedgroup.Group
	}
	var schedulable []ordered
	for _, g := range groups {
		if g.State != schedgroup.Schedulable {
			continue
		}
		min := -1.0
		for _, raw := range g.Tasks {
			added := byRaw[raw].AddedAt
			secs := float64(added.UnixNano()) / 1e9
			if min < 0 || secs < min {
				min = secs
			}
		}
		schedulable = append(schedulable, ordered{minAdded: min, group: g})
	}
	sort.Slice(schedulable, func(i, j int) bool {
		if schedulable[i].minAdded != schedulable[j].minAdded {
			return schedulable[i].minAdded < schedulable[j].minAdded
		}
		return schedulable[i].group.Tasks[0] < schedulable[j].group.Tasks[0]
	})

	var out []plan.Task
	for _, o := range schedulable {
		tasks := append([]handle.ID(nil), o.group.Tasks...)
		sort.Slice(tasks, func(i, j int) bool { return tasks[i] < tasks[j] })
		for _, raw := range tasks {
			out = append(out, byRaw[raw])
		}
	}
	return out
}

func (s *Scheduler) pendingTasks() []plan.Task {
	var pending []plan.Task
	for _, t := range s.plan.Tasks() {
		if t.State == plan.Pending {
			pending = append(pending, t)
		}
	}
	return pending
}

// individuallyStartable checks §4.G preconditions 1, 2, 3 and 5; the
// temporal window check (precondition 4) is surfaced separately via
// temporallyPending so the group resolver can classify it as
// PENDING_TEMPORAL rather than NON_SCHEDULABLE (§4.F step 3).
func (s *Scheduler) individuallyStartable(t plan.Task, now float64) bool {
	if t.State != plan.Pending {
		return false
	}
	if !t.Executable {
		return false
	}
	if !s.plannedByPrecondition(t) {
		return false
	}
	startEv, err := s.plan.TaskEvent(t.ID, "start")
	if err != nil {
		return false
	}
	if ok, _ := s.plan.Temporal().OccurrenceSatisfied(startEv.Raw()); !ok {
		return false
	}
	return true
}

// temporallyPending is precondition 4: T's start event has an unsatisfied
// incoming forward temporal constraint at now.
func (s *Scheduler) temporallyPending(t plan.Task, now float64) bool {
	startEv, err := s.plan.TaskEvent(t.ID, "start")
	if err != nil {
		return false
	}
	ok, _ := s.plan.Temporal().Emittable(startEv.Raw(), now)
	return !ok
}

// plannedByPrecondition implements §4.G precondition 3: every task planned
// by t (i.e. every X with X.planned_by(t), read as the incoming PlannedBy
// edges into t) must have succeeded, unless t is itself still in the
// process of planning one of them (one of those produced tasks is not yet
// executable, so it cannot meaningfully be waited on).
func (s *Scheduler) plannedByPrecondition(t plan.Task) bool {
	children := s.plan.Relations().InEdges(relation.PlannedBy, t.ID.Raw())
	if len(children) == 0 {
		return true
	}
	allSucceeded := true
	anyNotExecutable := false
	for _, edge := range children {
		child, err := s.plan.Task(s.plan.TaskHandle(edge.From))
		if err != nil {
			continue
		}
		if child.State != plan.Succeeded {
			allSucceeded = false
		}
		if !child.Executable {
			anyNotExecutable = true
		}
	}
	return allSucceeded || anyNotExecutable
}

// applyShouldStartAfter implements the remainder of §4.G step 3: for every
// group with an outgoing should_start_after edge to a task in a different
// group whose start event has not yet emitted, the source group is
// downgraded to PENDING_TEMPORAL, recording the target group.
func (s *Scheduler) applyShouldStartAfter(groups []*schedgroup.Group, now float64) {
	groupOf := make(map[handle.ID]int, len(groups)*2)
	for _, g := range groups {
		for _, raw := range g.Tasks {
			groupOf[raw] = g.ID
		}
	}

	for _, g := range groups {
		if g.State == schedgroup.NonSchedulable {
			continue
		}
		for _, raw := range g.Tasks {
			for _, edge := range s.plan.Relations().OutEdges(relation.ShouldStartAfter, raw) {
				targetGroup, ok := groupOf[edge.To]
				if !ok || targetGroup == g.ID {
					continue
				}
				startEv, err := s.plan.TaskEvent(s.plan.TaskHandle(edge.To), "start")
				if err != nil {
					continue
				}
				if !s.plan.Emissions().HasEmitted(startEv.Raw()) {
					g.State = maxState(g.State, schedgroup.PendingTemporal)
					g.HeldByTemporal = appendSortedUnique(g.HeldByTemporal, targetGroup)
				}
			}
		}
	}
}

func maxState(a, b schedgroup.State) schedgroup.State {
	if a > b {
		return a
	}
	return b
}

func appendSortedUnique(s []int, v int) []int {
	for _, x := range s {
		if x == v {
			return s
		}
	}
	s = append(s, v)
	sort.Ints(s)
	return s
}
