package plan

import (
	"context"
	"sync"

	"github.com/niceyeti/deliveroo-agent/internal/intention"
	"github.com/niceyeti/deliveroo-agent/internal/planerr"
	"github.com/niceyeti/deliveroo-agent/internal/predicate"
)

// GoDropOffFactory constructs GoDropOff plan instances.
type GoDropOffFactory struct{}

func (GoDropOffFactory) Name() string { return "go_drop_off" }
func (GoDropOffFactory) Applicable(pred predicate.Predicate) bool {
	_, ok := pred.(predicate.GoDropOff)
	return ok
}
func (GoDropOffFactory) New(ac intention.AgentContext) intention.Plan {
	return &goDropOffPlan{ac: ac, stopped: make(chan struct{})}
}

// goDropOffPlan implements spec.md §4.4's GoDropOff: same shape as
// GoPickUp but issues a putdown RPC and resets carry state. The depot id
// on the predicate is a hint only and is never consulted here.
type goDropOffPlan struct {
	ac       intention.AgentContext
	stopped  chan struct{}
	stopOnce sync.Once

	mu  sync.Mutex
	sub *intention.Intention
}

func (p *goDropOffPlan) Stop() {
	p.stopOnce.Do(func() { close(p.stopped) })
	p.mu.Lock()
	sub := p.sub
	p.mu.Unlock()
	if sub != nil {
		sub.Stop()
	}
}

func (p *goDropOffPlan) isStopped() bool {
	select {
	case <-p.stopped:
		return true
	default:
		return false
	}
}

func (p *goDropOffPlan) Execute(ctx context.Context, it *intention.Intention, pred predicate.Predicate) (bool, error) {
	gp, ok := pred.(predicate.GoDropOff)
	if !ok {
		return false, planerr.ErrMalformedPredicate
	}

	cur, err := p.ac.CurrentPosition(ctx)
	if err != nil {
		return false, err
	}

	if cur.X != gp.X || cur.Y != gp.Y {
		sub := it.NewSubIntention(predicate.GoTo{X: gp.X, Y: gp.Y})
		p.mu.Lock()
		p.sub = sub
		p.mu.Unlock()

		if p.isStopped() {
			return false, planerr.ErrStopped
		}

		ok, err := sub.Achieve(ctx)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, planerr.ErrNoPath
		}
	}

	if p.isStopped() {
		return false, planerr.ErrStopped
	}

	ok2, err := p.ac.EmitPutdown(ctx)
	if err != nil {
		return false, err
	}
	if !ok2 {
		return false, nil
	}

	p.ac.DroppedAllParcels()
	return true, nil
}
