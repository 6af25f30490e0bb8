// Package options implements C7, the option generator: a function of
// beliefs plus behavior mode that pushes candidate predicates onto the
// agent's intention queue (spec.md §4.7). It is triggered by the worker on
// every sense event and on a fixed interval timer.
package options

import (
	"context"
	"math"
	"math/rand"

	"github.com/niceyeti/deliveroo-agent/internal/agent"
	"github.com/niceyeti/deliveroo-agent/internal/predicate"
	"github.com/niceyeti/deliveroo-agent/internal/worldmap"
)

// Config is the subset of process configuration the option generator
// consults (spec.md §6).
type Config struct {
	MaxDistanceForRandomMove float64
	MaxRetryCommonDelivery   int
}

// DeliveryTileHook is invoked when Deliver mode successfully negotiates a
// new delivery tile, so the caller can send the delivery_tile{set} message
// (spec.md §4.7, §4.8) without this package importing internal/coordination.
type DeliveryTileHook func(ctx context.Context, tile worldmap.Position)

// DeliveryTileErrorHook is invoked when Gather mode finds its negotiated
// deliveryTile has become unreachable, so the caller can send the
// delivery_tile{error} message (spec.md §4.7, §4.8) back to the Deliverer,
// again without this package importing internal/coordination.
type DeliveryTileErrorHook func(ctx context.Context)

// Generate dispatches to the mode-specific producer matching a.Mode()
// (spec.md §4.7's three mode-specific producers).
func Generate(ctx context.Context, a *agent.Agent, cfg Config, onDeliveryTile DeliveryTileHook, onDeliveryTileError DeliveryTileErrorHook) error {
	switch a.Mode() {
	case agent.ModeGather:
		return generateGather(ctx, a, onDeliveryTileError)
	case agent.ModeDeliver:
		return generateDeliver(ctx, a, cfg, onDeliveryTile)
	default:
		return generateNormal(ctx, a, cfg)
	}
}

// canPickUp mirrors spec.md §4.7: not carried (implied by appearing in
// Map().Parcels() at all, since carried parcels are never inserted) and
// not on the ignore list.
func canPickUp(a *agent.Agent, p worldmap.Parcel) bool {
	return !a.IsIgnored(p.ID)
}

func generateNormal(ctx context.Context, a *agent.Agent, cfg Config) error {
	var pushedAny bool

	for _, p := range a.Map().Parcels() {
		if !canPickUp(a, p) {
			continue
		}
		a.Push(ctx, predicate.GoPickUp{X: p.X, Y: p.Y, ParcelID: p.ID})
		pushedAny = true
	}

	if a.IsCarrying() {
		if depot, ok, err := nearestDepot(ctx, a); err == nil && ok {
			a.Push(ctx, predicate.GoDropOff{X: depot.X, Y: depot.Y})
			pushedAny = true
		}
	}

	if !pushedAny {
		if err := pushRandomSpawnMove(ctx, a, cfg.MaxDistanceForRandomMove); err != nil {
			return err
		}
	}

	return nil
}

// generateGather implements spec.md §4.7's Gather producer, including the
// reachability check spec.md §4.7/§4.8 describe: if the negotiated
// deliveryTile stops being reachable from the agent's current position (the
// companion moved, a tile was blocked), clear it and notify the Deliverer
// via delivery_tile{status:error} so it re-negotiates.
func generateGather(ctx context.Context, a *agent.Agent, onDeliveryTileError DeliveryTileErrorHook) error {
	deliveryTile, ok := a.DeliveryTile()
	if !ok {
		return nil
	}

	pos, err := a.CurrentPosition(ctx)
	if err != nil {
		return err
	}
	if path, err := a.FindPath(ctx, pos, deliveryTile); err != nil {
		return err
	} else if path == nil && pos != deliveryTile {
		a.ClearDeliveryTile()
		if onDeliveryTileError != nil {
			onDeliveryTileError(ctx)
		}
		return nil
	}

	var pushedAny bool
	for _, p := range a.Map().Parcels() {
		if p.X == deliveryTile.X && p.Y == deliveryTile.Y {
			continue
		}
		if !canPickUp(a, p) {
			continue
		}
		a.Push(ctx, predicate.GoPickUp{X: p.X, Y: p.Y, ParcelID: p.ID})
		pushedAny = true
	}

	if a.IsCarrying() {
		a.Push(ctx, predicate.GoDropOff{X: deliveryTile.X, Y: deliveryTile.Y})
		return nil
	}

	if !pushedAny {
		spawns, err := a.Map().GetSpawnTilesAsync(ctx)
		if err != nil {
			return err
		}
		if len(spawns) > 0 {
			a.Push(ctx, predicate.GoTo{X: spawns[0].X, Y: spawns[0].Y})
		}
	}
	return nil
}

func generateDeliver(ctx context.Context, a *agent.Agent, cfg Config, onDeliveryTile DeliveryTileHook) error {
	depot, ok := a.Depot()
	if !ok {
		return nil
	}

	pos, err := a.CurrentPosition(ctx)
	if err != nil {
		return err
	}

	if !a.IsCarrying() && pos != depot {
		a.Push(ctx, predicate.GoTo{X: depot.X, Y: depot.Y})
	}

	if _, haveTile := a.DeliveryTile(); !haveTile && a.RetryCommonDeliveryCount() < cfg.MaxRetryCommonDelivery {
		a.IncrementRetryCommonDelivery()
		candidates, err := deliveryTileCandidates(ctx, a)
		if err != nil {
			return err
		}
		if tile, found, err := findCommonDeliveryTile(ctx, a, pos, candidates); err != nil {
			return err
		} else if found {
			a.SetDeliveryTile(tile)
			if onDeliveryTile != nil {
				onDeliveryTile(ctx, tile)
			}
		}
	}

	if deliveryTile, ok := a.DeliveryTile(); ok {
		for _, p := range a.Map().Parcels() {
			if p.X == deliveryTile.X && p.Y == deliveryTile.Y && canPickUp(a, p) {
				a.Push(ctx, predicate.GoPickUp{X: p.X, Y: p.Y, ParcelID: p.ID})
			}
		}
	}

	if a.IsCarrying() {
		a.Push(ctx, predicate.GoDropOff{X: depot.X, Y: depot.Y})
	}

	return nil
}

func nearestDepot(ctx context.Context, a *agent.Agent) (worldmap.Position, bool, error) {
	depots, err := a.Map().GetDepotTilesAsync(ctx)
	if err != nil {
		return worldmap.Position{}, false, err
	}
	pos, err := a.CurrentPosition(ctx)
	if err != nil {
		return worldmap.Position{}, false, err
	}

	var best worldmap.Position
	bestLen := math.Inf(1)
	found := false
	for _, t := range depots {
		dest := worldmap.Position{X: t.X, Y: t.Y}
		path, err := a.FindPath(ctx, pos, dest)
		if err != nil || path == nil {
			continue
		}
		if l := float64(len(path)); l < bestLen {
			bestLen = l
			best = dest
			found = true
		}
	}
	return best, found, nil
}

// pushRandomSpawnMove implements spec.md §4.7's random-move fallback:
// Euclidean-distance filter, then a path-length filter over the survivors,
// falling back to every spawn tile if the Euclidean filter is empty, then
// a uniform random choice.
func pushRandomSpawnMove(ctx context.Context, a *agent.Agent, maxDist float64) error {
	spawns, err := a.Map().GetSpawnTilesAsync(ctx)
	if err != nil {
		return err
	}
	if len(spawns) == 0 {
		return nil
	}

	pos, err := a.CurrentPosition(ctx)
	if err != nil {
		return err
	}

	var euclideanSurvivors []worldmap.Position
	for _, t := range spawns {
		if euclidean(pos, worldmap.Position{X: t.X, Y: t.Y}) <= maxDist {
			euclideanSurvivors = append(euclideanSurvivors, worldmap.Position{X: t.X, Y: t.Y})
		}
	}

	candidates := euclideanSurvivors
	if len(candidates) > 0 {
		var pathSurvivors []worldmap.Position
		for _, c := range candidates {
			path, err := a.FindPath(ctx, pos, c)
			if err == nil && path != nil && float64(len(path)) <= maxDist {
				pathSurvivors = append(pathSurvivors, c)
			}
		}
		candidates = pathSurvivors
	}

	if len(candidates) == 0 {
		for _, t := range spawns {
			candidates = append(candidates, worldmap.Position{X: t.X, Y: t.Y})
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	chosen := candidates[rand.Intn(len(candidates))]
	a.Push(ctx, predicate.GoTo{X: chosen.X, Y: chosen.Y})
	return nil
}

func euclidean(a, b worldmap.Position) float64 {
	dx := float64(a.X - b.X)
	dy := float64(a.Y - b.Y)
	return math.Sqrt(dx*dx + dy*dy)
}

// deliveryTileCandidates seeds findCommonDeliveryTile's search queue. The
// companion's last known position is the natural rendezvous anchor for a
// hand-to-hand relay; spec.md leaves the candidate source unspecified, so
// absent a companion fix this falls back to the agent's own spawn tiles.
func deliveryTileCandidates(ctx context.Context, a *agent.Agent) ([]worldmap.Position, error) {
	if companion, ok := a.Map().CompanionPosition(a.SelfRole()); ok {
		return []worldmap.Position{companion}, nil
	}
	spawns, err := a.Map().GetSpawnTilesAsync(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]worldmap.Position, 0, len(spawns))
	for _, t := range spawns {
		out = append(out, worldmap.Position{X: t.X, Y: t.Y})
	}
	return out, nil
}

// findCommonDeliveryTile implements spec.md §4.7's BFS-style search:
// dequeue the first candidate; if it's not in the persistent
// TILES_TO_AVOID and reachable from `from`, return it; otherwise mark it
// avoided and enqueue its walkable neighbours (minus already-avoided).
func findCommonDeliveryTile(ctx context.Context, a *agent.Agent, from worldmap.Position, seed []worldmap.Position) (worldmap.Position, bool, error) {
	queue := append([]worldmap.Position{}, seed...)

	for len(queue) > 0 {
		cand := queue[0]
		queue = queue[1:]

		if !a.IsTileAvoided(cand) {
			path, err := a.FindPath(ctx, from, cand)
			if err != nil {
				return worldmap.Position{}, false, err
			}
			if path != nil {
				return cand, true, nil
			}
		}

		a.AddTileToAvoid(cand)
		neighbors, err := a.Map().GetNeighborTiles(ctx, worldmap.Tile{X: cand.X, Y: cand.Y}, a.SelfRole(), true, false)
		if err != nil {
			return worldmap.Position{}, false, err
		}
		for _, n := range neighbors {
			p := worldmap.Position{X: n.X, Y: n.Y}
			if !a.IsTileAvoided(p) {
				queue = append(queue, p)
			}
		}
	}

	return worldmap.Position{}, false, nil
}
