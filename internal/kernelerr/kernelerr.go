// Package kernelerr defines the error taxonomy of spec.md §7: structural
// errors that fail the specific call and leave plan state unchanged,
// temporal errors that are either rejected synchronously or collected into
// a tick report, and the fatal invariant-violation class.
package kernelerr

import (
	"errors"
	"fmt"
)

// Structural sentinel errors. Test with errors.Is.
var (
	ErrCrossPlanEdge   = errors.New("cross-plan edge")
	ErrFinalizedObject = errors.New("finalized object")
	ErrDuplicateEdge   = errors.New("duplicate edge")
	ErrNotControllable = errors.New("event is not controllable")
	ErrNotFound        = errors.New("object not found")
)

// TemporalConstraintViolation reports that an emission was rejected
// because no recorded emission of the constraining source event satisfies
// the declared interval set at the attempted time (§4.D step 2, §4.E).
type TemporalConstraintViolation struct {
	Source any // handle.ID of the offending predecessor event
	Target any // handle.ID of the event that failed to emit
	At     float64
}

func (e *TemporalConstraintViolation) Error() string {
	return fmt.Sprintf("temporal constraint violation: %v -> %v at t=%v", e.Source, e.Target, e.At)
}

// OccurrenceConstraintViolation reports that an emission was rejected
// because an incoming occurrence-constraint edge's bounds are not
// currently satisfied (§4.D step 3, §4.E).
type OccurrenceConstraintViolation struct {
	Source any
	Target any
	Count  int
	Min    int
	Max    int
}

func (e *OccurrenceConstraintViolation) Error() string {
	return fmt.Sprintf("occurrence constraint violation: %v -> %v count=%d bounds=[%d,%d]", e.Source, e.Target, e.Count, e.Min, e.Max)
}

// MissedDeadline reports a deadline triple whose time has passed without
// the target event emitting (§4.E "Deadlines"). It does not, by itself,
// mutate the plan; the executor facade surfaces it in the TickReport.
type MissedDeadline struct {
	Source   any
	Target   any
	Deadline float64
}

func (e *MissedDeadline) Error() string {
	return fmt.Sprintf("missed deadline: %v -> %v due=%v", e.Source, e.Target, e.Deadline)
}

// InvariantViolation indicates a bug in the engine: a precondition the
// kernel itself is responsible for upholding did not hold. The facade's
// tick aborts when this is raised (§7).
type InvariantViolation struct {
	Msg string
}

func (e *InvariantViolation) Error() string {
	return "invariant violation: " + e.Msg
}
