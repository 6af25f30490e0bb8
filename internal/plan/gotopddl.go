package plan

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/niceyeti/deliveroo-agent/internal/intention"
	"github.com/niceyeti/deliveroo-agent/internal/pddl"
	"github.com/niceyeti/deliveroo-agent/internal/planerr"
	"github.com/niceyeti/deliveroo-agent/internal/predicate"
	"github.com/niceyeti/deliveroo-agent/internal/worldmap"
)

// GoToPDDLFactory constructs the optional symbolic replanner (spec.md
// §4.4): a drop-in GoTo replacement selected by configuration, never part
// of the default plan library.
type GoToPDDLFactory struct {
	WM         *worldmap.Map
	Self       worldmap.Role
	Solver     pddl.Solver
	ProblemDir string
}

func (GoToPDDLFactory) Name() string { return "go_to_pddl" }
func (GoToPDDLFactory) Applicable(pred predicate.Predicate) bool {
	_, ok := pred.(predicate.GoTo)
	return ok
}
func (f GoToPDDLFactory) New(ac intention.AgentContext) intention.Plan {
	return &goToPDDLPlan{
		ac:      ac,
		wm:      f.WM,
		self:    f.Self,
		solver:  f.Solver,
		dir:     f.ProblemDir,
		stopped: make(chan struct{}),
	}
}

// goToPDDLPlan emits a PDDL problem file, invokes the injected solver, and
// follows the returned path like GoTo. Per spec.md §9's Open Question
// resolution it fails soft (returns false, nil) when the belief export, the
// problem file, the solver or a move does not succeed, rather than retrying
// or replanning, preserving the option generator's right to re-propose the
// same go_to next tick. An error from CurrentPosition or from the EmitMove
// transport is returned as is, and a Stop yields ErrStopped.
type goToPDDLPlan struct {
	ac      intention.AgentContext
	wm      *worldmap.Map
	self    worldmap.Role
	solver  pddl.Solver
	dir     string
	stopped chan struct{}
	once    sync.Once
}

func (p *goToPDDLPlan) Stop() {
	p.once.Do(func() { close(p.stopped) })
}

func (p *goToPDDLPlan) isStopped() bool {
	select {
	case <-p.stopped:
		return true
	default:
		return false
	}
}

func (p *goToPDDLPlan) Execute(ctx context.Context, it *intention.Intention, pred predicate.Predicate) (bool, error) {
	gp, ok := pred.(predicate.GoTo)
	if !ok {
		return false, planerr.ErrMalformedPredicate
	}
	dest := worldmap.Position{X: gp.X, Y: gp.Y}

	cur, err := p.ac.CurrentPosition(ctx)
	if err != nil {
		return false, err
	}
	if cur == dest {
		return true, nil
	}

	beliefs, err := p.wm.BeliefSet(ctx, p.self, true)
	if err != nil {
		return false, nil
	}

	problem := pddl.BuildProblem(beliefs, cur, dest)
	problemPath := fmt.Sprintf("%s/problem-%d-%d-%d-%d-%d.yaml", p.dir, cur.X, cur.Y, dest.X, dest.Y, time.Now().UnixNano())
	if err := pddl.WriteProblemFile(problemPath, problem); err != nil {
		return false, nil
	}

	steps, err := p.solver.Solve(ctx, problemPath)
	if err != nil {
		return false, nil
	}

	path, err := pddl.ParsePath(steps)
	if err != nil || len(path) == 0 {
		return false, nil
	}

	for _, next := range path {
		if p.isStopped() {
			return false, planerr.ErrStopped
		}
		ok, _, _, err := p.ac.EmitMove(ctx, directionTo(mustCurrent(ctx, p.ac, next), next))
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// mustCurrent fetches the live position to compute a direction from; on
// error it falls back to next itself, for which directionTo returns its
// default direction (Down), and the subsequent EmitMove reports the outcome
// instead of the plan panicking.
func mustCurrent(ctx context.Context, ac intention.AgentContext, next worldmap.Position) worldmap.Position {
	cur, err := ac.CurrentPosition(ctx)
	if err != nil {
		return next
	}
	return cur
}
