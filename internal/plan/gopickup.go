package plan

import (
	"context"
	"sync"

	"github.com/niceyeti/deliveroo-agent/internal/intention"
	"github.com/niceyeti/deliveroo-agent/internal/planerr"
	"github.com/niceyeti/deliveroo-agent/internal/predicate"
)

// GoPickUpFactory constructs GoPickUp plan instances.
type GoPickUpFactory struct{}

func (GoPickUpFactory) Name() string { return "go_pick_up" }
func (GoPickUpFactory) Applicable(pred predicate.Predicate) bool {
	_, ok := pred.(predicate.GoPickUp)
	return ok
}
func (GoPickUpFactory) New(ac intention.AgentContext) intention.Plan {
	return &goPickUpPlan{ac: ac, stopped: make(chan struct{})}
}

// goPickUpPlan implements spec.md §4.4's GoPickUp: raise a go_to
// sub-intention to reach the parcel, then issue the pickup RPC.
type goPickUpPlan struct {
	ac       intention.AgentContext
	stopped  chan struct{}
	stopOnce sync.Once

	mu  sync.Mutex
	sub *intention.Intention
}

func (p *goPickUpPlan) Stop() {
	p.stopOnce.Do(func() { close(p.stopped) })
	p.mu.Lock()
	sub := p.sub
	p.mu.Unlock()
	if sub != nil {
		sub.Stop()
	}
}

func (p *goPickUpPlan) isStopped() bool {
	select {
	case <-p.stopped:
		return true
	default:
		return false
	}
}

func (p *goPickUpPlan) Execute(ctx context.Context, it *intention.Intention, pred predicate.Predicate) (bool, error) {
	gp, ok := pred.(predicate.GoPickUp)
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

	ok2, err := p.ac.EmitPickup(ctx)
	if err != nil {
		return false, err
	}
	if !ok2 {
		return false, nil
	}

	p.ac.PickedUpParcel(gp.ParcelID)
	return true, nil
}
