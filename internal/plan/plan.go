// Package plan implements the plan store of spec.md §4.C: the arena that
// owns every task and event in one plan, their ownership and lifecycle,
// and the construction API through which callers build up the relation
// graph and emission history that the temporal engine and scheduler read.
//
// Tasks and events are never referenced by pointer across package
// boundaries. Callers hold opaque TaskID/EventID handles that embed a
// pointer back to their owning Plan only so that a handle from a
// different Plan is rejected as CrossPlanEdge (§3); the numeric payload
// is the dense arena index described in spec.md §9.
package plan

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dagu-org/taskkernel/internal/emission"
	"github.com/dagu-org/taskkernel/internal/handle"
	"github.com/dagu-org/taskkernel/internal/kernelerr"
	"github.com/dagu-org/taskkernel/internal/relation"
	"github.com/dagu-org/taskkernel/internal/stream"
	"github.com/dagu-org/taskkernel/internal/temporal"
)

// TaskState is a task's position in the pending -> starting -> running ->
// finishing -> succeeded|failed lifecycle (§3).
type TaskState int

const (
	Pending TaskState = iota
	Starting
	Running
	Finishing
	Succeeded
	Failed
)

func (s TaskState) String() string {
	switch s {
	case Pending:
		return "pending"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Finishing:
		return "finishing"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// EventKind distinguishes the event-generator combinators of §3.
type EventKind int

const (
	Plain EventKind = iota
	And
	Or
	Filter
	Until
	ForwardGen
)

// TaskID is an opaque handle to a task owned by exactly one Plan.
type TaskID struct {
	plan *Plan
	raw  handle.ID
}

// IsZero reports whether id is the zero handle (no task).
func (id TaskID) IsZero() bool { return id.plan == nil && id.raw == handle.Nil }

// Raw exposes id's dense arena index for collaborating packages
// (scheduler, executor) that must walk the relation graph, emission log
// and temporal engine directly. It carries no validity guarantee on its
// own; callers still go through the owning Plan for anything that
// mutates state.
func (id TaskID) Raw() handle.ID { return id.raw }

// EventID is an opaque handle to an event owned by exactly one Plan.
type EventID struct {
	plan *Plan
	raw  handle.ID
}

// IsZero reports whether id is the zero handle (no event).
func (id EventID) IsZero() bool { return id.plan == nil && id.raw == handle.Nil }

// Raw exposes id's dense arena index; see TaskID.Raw.
func (id EventID) Raw() handle.ID { return id.raw }

// Task is a snapshot of one task's state. It is returned by value; callers
// wanting live state should re-query the plan.
type Task struct {
	ID          TaskID
	ExternalID  uuid.UUID
	State       TaskState
	Executable  bool
	Args        map[string]any
	AddedAt     time.Time
	FinalizedAt *time.Time
}

// Event is a snapshot of one event generator's declaration.
type Event struct {
	ID           EventID
	Owner        TaskID // zero value: free (plan-owned) event
	Name         string
	Kind         EventKind
	Controllable bool
	Terminal     bool
	Parents      []EventID
	FinalizedAt  *time.Time
}

type taskEntry struct {
	Task
}

type eventEntry struct {
	Event
	filter       func(payload any) bool // only set for Filter-kind events
	andSatisfied map[handle.ID]bool     // parents seen since this And event's own last firing
}

// FinalizeHandler is invoked once when a task is finalised.
type FinalizeHandler struct {
	Fn            func(TaskID)
	CopyOnReplace bool
}

// Plan is the arena owning all tasks, events and their relations for one
// plan-executive instance (§4.C). The zero value is not usable; construct
// with New.
type Plan struct {
	mu sync.Mutex

	log *slog.Logger
	pub stream.Publisher

	executable bool // whether model-level (type) finalisers fire at all

	nextTask  uint64
	nextEvent uint64

	tasks  map[handle.ID]*taskEntry
	events map[handle.ID]*eventEntry

	// name -> id lookup within one task's bound events, and the reverse
	// set of every event id bound to a task (for cascading finalisation).
	taskEvents map[handle.ID]map[string]handle.ID

	rel      *relation.Graphs
	emitted  *emission.Log
	temporal *temporal.Engine

	// defaultArgs seeds every AddTask call; caller-supplied args override
	// matching keys (DOMAIN STACK: dario.cat/mergo, see AddTask).
	defaultArgs map[string]any

	// childrenByParent indexes And/Or/Filter/Until generator events by the
	// parent event ids declared in their Parents list, so that emitLocked
	// can find which generators to re-evaluate when a parent fires.
	childrenByParent map[handle.ID][]handle.ID

	taskFinalizers  map[handle.ID][]FinalizeHandler
	eventFinalizers map[handle.ID][]FinalizeHandler
	typeFinalizers  []FinalizeHandler
}

// Option configures a new Plan.
type Option func(*Plan)

// WithLogger attaches a structured logger; defaults to slog.Default().
func WithLogger(l *slog.Logger) Option { return func(p *Plan) { p.log = l } }

// WithPublisher attaches an observability publisher (§6); defaults to a
// no-op publisher.
func WithPublisher(pub stream.Publisher) Option { return func(p *Plan) { p.pub = pub } }

// Executable marks the plan itself executable, which gates whether
// type-level (model) finalisation handlers fire (§4.C).
func Executable(v bool) Option { return func(p *Plan) { p.executable = v } }

// WithDefaultTaskArgs seeds every subsequent AddTask call with defaults;
// a caller's own args override matching keys (see AddTask).
func WithDefaultTaskArgs(args map[string]any) Option {
	return func(p *Plan) { p.defaultArgs = args }
}

// New constructs an empty plan.
func New(opts ...Option) *Plan {
	p := &Plan{
		log:              slog.Default(),
		pub:              stream.Noop{},
		executable:       true,
		tasks:            make(map[handle.ID]*taskEntry),
		events:           make(map[handle.ID]*eventEntry),
		taskEvents:       make(map[handle.ID]map[string]handle.ID),
		childrenByParent: make(map[handle.ID][]handle.ID),
		taskFinalizers:   make(map[handle.ID][]FinalizeHandler),
		eventFinalizers:  make(map[handle.ID][]FinalizeHandler),
	}
	p.rel = relation.New(4096)
	p.emitted = emission.New()
	p.temporal = temporal.New(p.rel, p.emitted)
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// TaskHandle wraps a raw arena index (as found on relation-graph edges
// read via Relations()) back into a checked TaskID. It performs no
// validity check itself; the returned handle is only as good as the
// caller's knowledge that raw still names a live task in this plan.
func (p *Plan) TaskHandle(raw handle.ID) TaskID { return TaskID{plan: p, raw: raw} }

// EventHandle wraps a raw arena index back into a checked EventID; see
// TaskHandle.
func (p *Plan) EventHandle(raw handle.ID) EventID { return EventID{plan: p, raw: raw} }

// Relations exposes the underlying relation graph for read-only callers
// (the scheduler and group resolver walk it directly).
func (p *Plan) Relations() *relation.Graphs { return p.rel }

// Temporal exposes the underlying temporal-constraint engine.
func (p *Plan) Temporal() *temporal.Engine { return p.temporal }

// Emissions exposes the underlying emission log.
func (p *Plan) Emissions() *emission.Log { return p.emitted }

func (p *Plan) checkTask(id TaskID) (*taskEntry, error) {
	if id.plan != p {
		return nil, kernelerr.ErrCrossPlanEdge
	}
	t, ok := p.tasks[id.raw]
	if !ok {
		return nil, kernelerr.ErrNotFound
	}
	if t.FinalizedAt != nil {
		return nil, kernelerr.ErrFinalizedObject
	}
	return t, nil
}

func (p *Plan) checkEvent(id EventID) (*eventEntry, error) {
	if id.plan != p {
		return nil, kernelerr.ErrCrossPlanEdge
	}
	e, ok := p.events[id.raw]
	if !ok {
		return nil, kernelerr.ErrNotFound
	}
	if e.FinalizedAt != nil {
		return nil, kernelerr.ErrFinalizedObject
	}
	return e, nil
}

// Task returns a snapshot of id's current state.
func (p *Plan) Task(id TaskID) (Task, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, err := p.checkTask(id)
	if err != nil {
		return Task{}, err
	}
	return t.Task, nil
}

// Event returns a snapshot of id's current declaration.
func (p *Plan) Event(id EventID) (Event, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, err := p.checkEvent(id)
	if err != nil {
		return Event{}, err
	}
	return e.Event, nil
}

// Tasks enumerates every non-finalised task, ascending by handle id for
// determinism.
func (p *Plan) Tasks() []Task {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Task, 0, len(p.tasks))
	for _, id := range sortedHandleKeys(p.tasks) {
		t := p.tasks[id]
		if t.FinalizedAt == nil {
			out = append(out, t.Task)
		}
	}
	return out
}
