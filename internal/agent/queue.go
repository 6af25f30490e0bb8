package agent

import (
	"context"
	"math"
	"sort"

	"github.com/niceyeti/deliveroo-agent/internal/intention"
	"github.com/niceyeti/deliveroo-agent/internal/predicate"
	"github.com/niceyeti/deliveroo-agent/internal/worldmap"
)

// SetPickupOrderHook installs the callback invoked whenever sortIntentionQueue
// recomputes the pickup ordering while hand2Hand is None in a dual-agent
// deployment (spec.md §4.6 step 3: "emit a multi_pickup message containing
// the ordered list of pickup ids"). Kept as an injected hook rather than an
// import of internal/coordination, which depends on this package instead.
func (a *Agent) SetPickupOrderHook(hook func(ctx context.Context, parcelIDs []string)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onPickupOrderChanged = hook
}

// Push implements spec.md §4.6's push: reject an element-wise duplicate,
// otherwise wrap pred in a fresh Intention, append, and re-sort.
func (a *Agent) Push(ctx context.Context, pred predicate.Predicate) {
	a.mu.Lock()
	for _, it := range a.queue {
		if it.Pred.Equal(pred) {
			a.mu.Unlock()
			return
		}
	}
	it := a.NewIntention(pred)
	a.queue = append(a.queue, it)
	a.mu.Unlock()

	a.sortIntentionQueue(ctx)
}

// PopHead removes and returns the queue's first intention, or nil if empty.
func (a *Agent) PopHead() *intention.Intention {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.queue) == 0 {
		return nil
	}
	head := a.queue[0]
	a.queue = a.queue[1:]
	return head
}

// QueueLen reports the current queue length, for the agent loop's
// non-empty check.
func (a *Agent) QueueLen() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.queue)
}

type scoredPickup struct {
	it   *intention.Intention
	dist float64
}

// sortIntentionQueue enforces spec.md §4.6's priority policy: pickups
// ordered by ascending A* distance from a single "before sort" position, at
// most one drop-off and one goto kept, and a carry-saturation filter that
// collapses the queue down to drop-offs only.
func (a *Agent) sortIntentionQueue(ctx context.Context) {
	pos, err := a.CurrentPosition(ctx)
	if err != nil {
		a.log.Warn().Err(err).Msg("sortIntentionQueue: could not read current position, skipping sort")
		return
	}

	a.mu.Lock()
	queue := a.queue
	a.mu.Unlock()

	var pickups []scoredPickup
	var dropoff *intention.Intention
	var goTo *intention.Intention

	for _, it := range queue {
		switch it.Pred.Tag() {
		case predicate.TagGoPickUp:
			pickups = append(pickups, scoredPickup{it: it, dist: a.pathDistance(ctx, pos, it.Pred.Position())})
		case predicate.TagGoDropOff:
			if dropoff == nil {
				dropoff = it
			}
		case predicate.TagGoTo:
			if goTo == nil {
				goTo = it
			}
		}
	}

	sort.SliceStable(pickups, func(i, j int) bool {
		return pickups[i].dist < pickups[j].dist
	})

	rebuilt := make([]*intention.Intention, 0, len(pickups)+2)
	ids := make([]string, 0, len(pickups))
	for _, sp := range pickups {
		rebuilt = append(rebuilt, sp.it)
		if gp, ok := sp.it.Pred.(predicate.GoPickUp); ok {
			ids = append(ids, gp.ParcelID)
		}
	}
	if dropoff != nil {
		rebuilt = append(rebuilt, dropoff)
	}
	if goTo != nil {
		rebuilt = append(rebuilt, goTo)
	}

	if a.CompanionID() != "" && a.Mode() == ModeNone && len(ids) > 0 {
		a.mu.Lock()
		hook := a.onPickupOrderChanged
		a.mu.Unlock()
		if hook != nil {
			hook(ctx, ids)
		}
	}

	if a.IsCarrySaturated() {
		filtered := make([]*intention.Intention, 0, 1)
		for _, it := range rebuilt {
			if it.Pred.Tag() == predicate.TagGoDropOff {
				filtered = append(filtered, it)
			}
		}
		rebuilt = filtered
	}

	a.mu.Lock()
	a.queue = rebuilt
	a.mu.Unlock()
}

// Snapshot returns the current queue's predicates in order, for
// inspection by the debug view and tests.
func (a *Agent) Snapshot() []predicate.Predicate {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]predicate.Predicate, len(a.queue))
	for i, it := range a.queue {
		out[i] = it.Pred
	}
	return out
}

// pathDistance returns the A* path length from pos to dest, or +Inf if
// unreachable (spec.md §4.6 step 2).
func (a *Agent) pathDistance(ctx context.Context, pos, dest worldmap.Position) float64 {
	path, err := a.FindPath(ctx, pos, dest)
	if err != nil || path == nil {
		return math.Inf(1)
	}
	return float64(len(path))
}
