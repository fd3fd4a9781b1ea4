// Package executor implements the executor facade of spec.md §4.H: the
// single-threaded tick driver that sequences emission propagation,
// deadline checking, scheduling and task-start commands, instrumented
// with OpenTelemetry spans per tick and per phase (DOMAIN STACK:
// go.opentelemetry.io/otel, go.opentelemetry.io/otel/trace).
package executor

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/dagu-org/taskkernel/internal/handle"
	"github.com/dagu-org/taskkernel/internal/kernelerr"
	"github.com/dagu-org/taskkernel/internal/plan"
	"github.com/dagu-org/taskkernel/internal/scheduler"
	"github.com/dagu-org/taskkernel/internal/stream"
)

var tracer = otel.Tracer("github.com/dagu-org/taskkernel/internal/executor")

// PendingCommand is one queued external operation to drain at the start
// of a tick (§5: "external callers... enqueue operations to be drained at
// the next tick boundary").
type PendingCommand struct {
	Event   plan.EventID
	Payload any
}

// Facade drives the plan-executive's tick loop (§4.H).
type Facade struct {
	plan      *plan.Plan
	scheduler *scheduler.Scheduler
	log       *slog.Logger
	pub       stream.Publisher

	// deadlineGrace delays how long past a deadline's instant checkDeadlines
	// waits before reporting it missed (kernelconfig's deadline_grace_ms).
	deadlineGrace time.Duration

	numTicks int
	queue    []PendingCommand
}

// Option configures a new Facade.
type Option func(*Facade)

// WithLogger attaches a structured logger; defaults to slog.Default().
func WithLogger(l *slog.Logger) Option { return func(f *Facade) { f.log = l } }

// WithPublisher attaches an observability publisher for TickReport
// records; defaults to a no-op publisher.
func WithPublisher(pub stream.Publisher) Option { return func(f *Facade) { f.pub = pub } }

// WithDeadlineGrace sets how long past a deadline's instant checkDeadlines
// waits before reporting it missed; defaults to 0 (report as soon as the
// tick's now passes the deadline).
func WithDeadlineGrace(d time.Duration) Option {
	return func(f *Facade) { f.deadlineGrace = d }
}

// New builds a facade over p.
func New(p *plan.Plan, opts ...Option) *Facade {
	f := &Facade{
		plan:      p,
		scheduler: scheduler.New(p),
		log:       slog.Default(),
		pub:       stream.Noop{},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Enqueue queues an externally-sourced event emission for delivery at the
// start of the next tick, per §5's suspension-point rule: the facade
// never blocks, so collaborators submit results this way instead of
// calling Plan.Emit directly from another goroutine.
func (f *Facade) Enqueue(cmd PendingCommand) {
	f.queue = append(f.queue, cmd)
}

// Tick runs one full cycle: (a) fix now, (b) deliver queued emissions,
// (c) check deadlines, (d) run the scheduler, (e) issue start commands in
// order, (f) cycle-end hook (§4.H).
func (f *Facade) Tick(ctx context.Context, now time.Time) stream.TickReport {
	ctx, span := tracer.Start(ctx, "executor.Tick", trace.WithAttributes())
	defer span.End()

	f.numTicks++
	nowSeconds := float64(now.UnixNano()) / 1e9

	report := stream.TickReport{At: now, NumTicks: f.numTicks}

	f.deliverQueued(ctx, &report)
	f.checkDeadlines(ctx, nowSeconds, &report)
	started := f.runScheduler(ctx, nowSeconds, &report)
	report.Started = started
	f.cycleEnd(ctx)

	f.pub.Publish(report)
	return report
}

func (f *Facade) deliverQueued(ctx context.Context, report *stream.TickReport) {
	_, span := tracer.Start(ctx, "executor.deliverQueued")
	defer span.End()

	pending := f.queue
	f.queue = nil
	for _, cmd := range pending {
		if err := f.plan.Emit(cmd.Event, cmd.Payload); err != nil {
			f.log.Warn("queued emission rejected", "error", err)
			report.Errors = append(report.Errors, err.Error())
		}
	}
}

func (f *Facade) checkDeadlines(ctx context.Context, now float64, report *stream.TickReport) {
	_, span := tracer.Start(ctx, "executor.checkDeadlines")
	defer span.End()

	graced := now - f.deadlineGrace.Seconds()
	for _, d := range f.plan.Temporal().CheckDeadlines(graced) {
		f.log.Warn("missed deadline", "source", d.Source, "target", d.Target, "at", d.At)
		err := &kernelerr.MissedDeadline{Source: d.Source, Target: d.Target, Deadline: d.At}
		report.Errors = append(report.Errors, err.Error())
	}
}

func (f *Facade) runScheduler(ctx context.Context, now float64, report *stream.TickReport) []handle.ID {
	_, span := tracer.Start(ctx, "executor.schedule")
	defer span.End()

	tasks := f.scheduler.ComputeTasksToSchedule(now)
	started := make([]handle.ID, 0, len(tasks))
	for _, task := range tasks {
		if err := f.plan.Start(task.ID); err != nil {
			f.log.Warn("start command failed", "task", task.ID.Raw(), "error", err)
			report.Errors = append(report.Errors, err.Error())
			continue
		}
		started = append(started, task.ID.Raw())
	}
	return started
}

func (f *Facade) cycleEnd(ctx context.Context) {
	_, span := tracer.Start(ctx, "executor.cycleEnd")
	defer span.End()
}
