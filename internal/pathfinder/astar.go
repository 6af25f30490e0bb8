// Package pathfinder implements the synchronous A* search described in
// spec.md §4.3, queried both by the option generator (for scoring) and by
// plan execution (for routing) against a WorldMap snapshot.
package pathfinder

import (
	"container/heap"
	"context"

	"github.com/niceyeti/deliveroo-agent/internal/worldmap"
)

// mapView is the minimal surface the pathfinder needs from a belief map,
// so tests can supply a fixture without constructing a full worldmap.Map.
type mapView interface {
	GetWalkableTiles(ctx context.Context, self worldmap.Role, withAgents bool) ([]worldmap.Tile, error)
	GetNeighborTiles(ctx context.Context, tile worldmap.Tile, self worldmap.Role, walkable bool, withAgents bool) ([]worldmap.Tile, error)
}

// Finder runs A* over a single WorldMap's current snapshot.
type Finder struct {
	m mapView
}

// New returns a Finder bound to the given map.
func New(m *worldmap.Map) *Finder {
	return &Finder{m: m}
}

func manhattan(a, b worldmap.Position) int {
	return worldmap.Manhattan(a, b)
}

type nodeState struct {
	pos      worldmap.Position
	gScore   float64
	fScore   float64
	cameFrom *worldmap.Position
	inOpen   bool
	index    int
}

// priorityQueue is a min-heap keyed by fScore, matching spec.md §4.3's
// "open set is a min-heap keyed by fScore" with "first-in-heap order among
// equal fScore" as the acceptable tie-break.
type priorityQueue []*nodeState

func (pq priorityQueue) Len() int { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool {
	return pq[i].fScore < pq[j].fScore
}
func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index, pq[j].index = i, j
}
func (pq *priorityQueue) Push(x interface{}) {
	n := x.(*nodeState)
	n.index = len(*pq)
	*pq = append(*pq, n)
}
func (pq *priorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*pq = old[:n-1]
	return item
}

const inf = 1e18

// FindPath runs A* from start to end over the current walkable-tile
// snapshot. It returns a nil path (no error) when the destination is
// unwalkable or unreachable, and an empty, non-nil path when start == end,
// exactly as spec.md §4.3 specifies. withAgents matches spec.md §3's
// Walkable Tile definition: false (the default real callers use) treats
// the companion's own tile as unwalkable; true is reserved for the PDDL
// belief-set export, which wants the full tile set.
func (f *Finder) FindPath(ctx context.Context, self worldmap.Role, start, end worldmap.Position, withAgents bool) ([]worldmap.Position, error) {
	if start == end {
		return []worldmap.Position{}, nil
	}

	walkable, err := f.m.GetWalkableTiles(ctx, self, withAgents)
	if err != nil {
		return nil, err
	}

	nodes := make(map[worldmap.Position]*nodeState, len(walkable))
	var endWalkable bool
	for _, t := range walkable {
		pos := worldmap.Position{X: t.X, Y: t.Y}
		nodes[pos] = &nodeState{pos: pos, gScore: inf, fScore: inf}
		if pos == end {
			endWalkable = true
		}
	}
	if !endWalkable {
		return nil, nil
	}

	startNode, ok := nodes[start]
	if !ok {
		// The start tile itself may be occupied transiently (e.g. by the
		// agent's own prior position); seed it anyway so a path can still
		// be found leaving it.
		startNode = &nodeState{pos: start, gScore: inf, fScore: inf}
		nodes[start] = startNode
	}
	startNode.gScore = 0
	startNode.fScore = float64(manhattan(start, end))

	open := &priorityQueue{}
	heap.Init(open)
	heap.Push(open, startNode)
	startNode.inOpen = true

	for open.Len() > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		current := heap.Pop(open).(*nodeState)
		current.inOpen = false

		if current.pos == end {
			return reconstruct(nodes, current), nil
		}

		neighbors, err := f.m.GetNeighborTiles(ctx, worldmap.Tile{X: current.pos.X, Y: current.pos.Y}, self, true, withAgents)
		if err != nil {
			return nil, err
		}

		for _, nt := range neighbors {
			npos := worldmap.Position{X: nt.X, Y: nt.Y}
			neighbor, ok := nodes[npos]
			if !ok {
				neighbor = &nodeState{pos: npos, gScore: inf, fScore: inf}
				nodes[npos] = neighbor
			}

			tentativeG := current.gScore + 1
			if tentativeG < neighbor.gScore {
				cp := current.pos
				neighbor.cameFrom = &cp
				neighbor.gScore = tentativeG
				neighbor.fScore = tentativeG + float64(manhattan(npos, end))
				if neighbor.inOpen {
					heap.Fix(open, neighbor.index)
				} else {
					heap.Push(open, neighbor)
					neighbor.inOpen = true
				}
			}
		}
	}

	return nil, nil
}

// reconstruct walks cameFrom back to the start node, per spec.md §4.3, then
// reverses the result so it reads start-exclusive, end-inclusive.
func reconstruct(nodes map[worldmap.Position]*nodeState, end *nodeState) []worldmap.Position {
	var rev []worldmap.Position
	cur := end
	for cur != nil {
		rev = append(rev, cur.pos)
		if cur.cameFrom == nil {
			break
		}
		cur = nodes[*cur.cameFrom]
	}

	// rev is end..start; drop the start tile itself (the caller is already
	// there) and reverse into start-exclusive, end-inclusive order.
	if len(rev) > 0 {
		rev = rev[:len(rev)-1]
	}
	path := make([]worldmap.Position, len(rev))
	for i, p := range rev {
		path[len(rev)-1-i] = p
	}
	return path
}
