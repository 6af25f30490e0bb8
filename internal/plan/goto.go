// Package plan implements the plan library (spec.md §4.4): GoTo, GoPickUp,
// GoDropOff, and the optional GoToPDDL, each as an intention.PlanFactory
// paired with a per-execution intention.Plan instance.
package plan

import (
	"context"
	"sync"
	"time"

	"github.com/niceyeti/deliveroo-agent/internal/client"
	"github.com/niceyeti/deliveroo-agent/internal/intention"
	"github.com/niceyeti/deliveroo-agent/internal/planerr"
	"github.com/niceyeti/deliveroo-agent/internal/predicate"
	"github.com/niceyeti/deliveroo-agent/internal/worldmap"
)

const (
	moveRetries  = 2
	moveRetryGap = 10 * time.Millisecond
)

// GoToFactory constructs GoTo plan instances.
type GoToFactory struct{}

func (GoToFactory) Name() string { return "go_to" }
func (GoToFactory) Applicable(pred predicate.Predicate) bool {
	_, ok := pred.(predicate.GoTo)
	return ok
}
func (GoToFactory) New(ac intention.AgentContext) intention.Plan {
	return &goToPlan{ac: ac, stopped: make(chan struct{})}
}

// goToPlan implements spec.md §4.4's GoTo: walk the A* path one tile at a
// time, retrying a stuck step before replanning from scratch.
type goToPlan struct {
	ac       intention.AgentContext
	stopped  chan struct{}
	stopOnce sync.Once
}

func (p *goToPlan) Stop() {
	p.stopOnce.Do(func() { close(p.stopped) })
}

func (p *goToPlan) isStopped() bool {
	select {
	case <-p.stopped:
		return true
	default:
		return false
	}
}

func (p *goToPlan) checkStopped() error {
	if p.isStopped() {
		return planerr.ErrStopped
	}
	return nil
}

func (p *goToPlan) Execute(ctx context.Context, it *intention.Intention, pred predicate.Predicate) (bool, error) {
	gp, ok := pred.(predicate.GoTo)
	if !ok {
		return false, planerr.ErrMalformedPredicate
	}
	return p.goTo(ctx, worldmap.Position{X: gp.X, Y: gp.Y})
}

// goTo is the replan entry point: called once per top-level attempt and
// again, recursively, every time a step exhausts its retries.
func (p *goToPlan) goTo(ctx context.Context, dest worldmap.Position) (bool, error) {
	if err := p.checkStopped(); err != nil {
		return false, err
	}

	cur, err := p.ac.CurrentPosition(ctx)
	if err != nil {
		return false, err
	}
	if cur == dest {
		return true, nil
	}

	path, err := p.ac.FindPath(ctx, cur, dest)
	if err != nil {
		return false, err
	}
	if path == nil {
		return false, planerr.ErrNoPath
	}

	for _, next := range path {
		reached, err := p.step(ctx, next)
		if err != nil {
			return false, err
		}
		if !reached {
			return p.goTo(ctx, dest)
		}
	}
	return true, nil
}

// step drives the agent toward next, retrying up to moveRetries times with
// moveRetryGap between attempts (spec.md §4.4, §7's "transient execution"
// error class). It reports whether next was actually reached.
func (p *goToPlan) step(ctx context.Context, next worldmap.Position) (bool, error) {
	for attempt := 0; attempt <= moveRetries; attempt++ {
		if err := p.checkStopped(); err != nil {
			return false, err
		}

		cur, err := p.ac.CurrentPosition(ctx)
		if err != nil {
			return false, err
		}
		if cur == next {
			return true, nil
		}

		dir := directionTo(cur, next)
		ok, _, _, err := p.ac.EmitMove(ctx, dir)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}

		if attempt < moveRetries {
			select {
			case <-time.After(moveRetryGap):
			case <-p.stopped:
				return false, planerr.ErrStopped
			case <-ctx.Done():
				return false, ctx.Err()
			}
		}
	}
	return false, nil
}

// directionTo picks a cardinal direction whose sign matches next relative
// to cur, preferring horizontal movement when both axes differ (spec.md
// §4.4). Y increases upward, matching the game server's tile coordinates.
func directionTo(cur, next worldmap.Position) client.Direction {
	dx := next.X - cur.X
	dy := next.Y - cur.Y
	if dx != 0 {
		if dx > 0 {
			return client.Right
		}
		return client.Left
	}
	if dy > 0 {
		return client.Up
	}
	return client.Down
}
