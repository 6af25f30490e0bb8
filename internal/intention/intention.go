// Package intention implements the BDI intention (spec.md §3, §4.5): a
// predicate the agent has committed to, resolved by trying plans from the
// configured library in order until one is applicable and completes.
package intention

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/niceyeti/deliveroo-agent/internal/client"
	"github.com/niceyeti/deliveroo-agent/internal/planerr"
	"github.com/niceyeti/deliveroo-agent/internal/predicate"
	"github.com/niceyeti/deliveroo-agent/internal/worldmap"
)

// State is an intention's lifecycle stage (spec.md §3): Fresh → Running at
// most once; Stopped is terminal.
type State int

const (
	Fresh State = iota
	Running
	Stopped
	Completed
)

func (s State) String() string {
	switch s {
	case Fresh:
		return "fresh"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	case Completed:
		return "completed"
	default:
		return "unknown"
	}
}

// AgentContext is everything a Plan needs from the owning agent: current
// position, pathfinding, the move/pickup/putdown RPCs, and the two
// carry-state mutators. It is implemented by internal/agent.Agent; keeping
// it as a narrow interface here (rather than importing internal/agent)
// avoids an import cycle between intention and its plans.
type AgentContext interface {
	CurrentPosition(ctx context.Context) (worldmap.Position, error)
	FindPath(ctx context.Context, start, end worldmap.Position) ([]worldmap.Position, error)
	EmitMove(ctx context.Context, dir client.Direction) (ok bool, x, y int, err error)
	EmitPickup(ctx context.Context) (ok bool, err error)
	EmitPutdown(ctx context.Context) (ok bool, err error)
	PickedUpParcel(id string)
	DroppedAllParcels()
}

// Plan is one in-flight execution of a plan class against a predicate. It
// is created fresh per Intention.Achieve attempt so its stopped flag and
// any sub-intentions it spawns are scoped to that attempt.
type Plan interface {
	// Execute runs the plan against pred. it is the owning Intention, passed
	// so a plan may raise sub-intentions via it.NewSubIntention and track
	// them for cancellation cascade.
	Execute(ctx context.Context, it *Intention, pred predicate.Predicate) (bool, error)
	// Stop cascades cancellation depth-first into this plan's
	// sub-intentions (spec.md §4.5/§5).
	Stop()
}

// PlanFactory is the capability pair spec.md §9 describes: a static
// applicability test plus a constructor for a fresh Plan instance.
type PlanFactory interface {
	Name() string
	Applicable(pred predicate.Predicate) bool
	New(ac AgentContext) Plan
}

// Intention wraps a predicate and resolves it by trying the plan library in
// order (spec.md §4.5).
type Intention struct {
	// ID uniquely identifies this intention for log correlation
	// (SPEC_FULL.md §2.2); it carries no semantic meaning.
	ID     string
	Pred   predicate.Predicate
	parent *Intention

	library []PlanFactory
	ac      AgentContext

	mu          sync.Mutex
	state       State
	currentPlan Plan
	done        chan struct{}
	result      bool
	err         error
}

// New constructs a fresh, Fresh-state intention for pred, to be resolved
// against library using ac. parent is nil for top-level intentions and set
// for sub-intentions a plan raises.
func New(pred predicate.Predicate, parent *Intention, library []PlanFactory, ac AgentContext) *Intention {
	return &Intention{
		ID:      uuid.NewString(),
		Pred:    pred,
		parent:  parent,
		library: library,
		ac:      ac,
		done:    make(chan struct{}),
	}
}

// State returns the intention's current lifecycle stage.
func (it *Intention) State() State {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.state
}

// NewSubIntention creates a child intention sharing this intention's plan
// library and agent context, for a plan to raise (spec.md §4.4's GoPickUp
// raising go_to, for example).
func (it *Intention) NewSubIntention(pred predicate.Predicate) *Intention {
	return New(pred, it, it.library, it.ac)
}

// Achieve is idempotent (spec.md §4.5/§8): a second call returns the
// existing value without restarting or emitting further RPCs. It tries
// each plan factory in library order; the first applicable plan is
// instantiated and executed. On success its return value surfaces; on
// failure (other than ErrStopped) the next applicable plan is tried. If no
// plan is applicable, it fails with ErrNoApplicablePlan; if every applicable
// plan failed, it fails with the last plan's error. If stop() was called,
// it fails with ErrStopped.
func (it *Intention) Achieve(ctx context.Context) (bool, error) {
	it.mu.Lock()
	if it.state != Fresh {
		done := it.done
		it.mu.Unlock()
		<-done
		it.mu.Lock()
		result, err := it.result, it.err
		it.mu.Unlock()
		return result, err
	}
	it.state = Running
	stopped := it.stoppedLocked()
	it.mu.Unlock()

	if stopped {
		return it.finish(false, planerr.ErrStopped)
	}

	var lastErr error = planerr.ErrNoApplicablePlan
	for _, factory := range it.library {
		if !factory.Applicable(it.Pred) {
			continue
		}

		plan := factory.New(it.ac)
		it.mu.Lock()
		if it.stoppedLocked() {
			it.mu.Unlock()
			return it.finish(false, planerr.ErrStopped)
		}
		it.currentPlan = plan
		it.mu.Unlock()

		result, err := plan.Execute(ctx, it, it.Pred)
		if err == nil {
			return it.finish(result, nil)
		}
		if errors.Is(err, planerr.ErrStopped) {
			return it.finish(false, planerr.ErrStopped)
		}
		lastErr = err
	}

	return it.finish(false, lastErr)
}

func (it *Intention) finish(result bool, err error) (bool, error) {
	it.mu.Lock()
	if it.state == Stopped {
		// Stop() was called while the plan ran: the intention fails with
		// ErrStopped whatever the plan returned.
		result, err = false, planerr.ErrStopped
	}
	it.result, it.err = result, err
	if errors.Is(err, planerr.ErrStopped) {
		it.state = Stopped
	} else {
		it.state = Completed
	}
	done := it.done
	it.mu.Unlock()
	close(done)
	return result, err
}

func (it *Intention) stoppedLocked() bool {
	return it.state == Stopped
}

// Stop marks the intention stopped and cascades to the currently executing
// plan, which in turn cascades to its sub-intentions depth-first (spec.md
// §4.5, §5). Stop is safe to call from any goroutine.
func (it *Intention) Stop() {
	it.mu.Lock()
	if it.state == Fresh {
		// Never started: record the outcome now so a later Achieve returns
		// ErrStopped instead of waiting for a run that never happens.
		it.result, it.err = false, planerr.ErrStopped
		close(it.done)
	}
	if it.state != Completed {
		it.state = Stopped
	}
	plan := it.currentPlan
	it.mu.Unlock()

	// Achieve, if in flight, observes state==Stopped at its next check and
	// finishes itself with ErrStopped; plan.Stop() cascades to whatever
	// sub-intentions that plan has already spawned.
	if plan != nil {
		plan.Stop()
	}
}
