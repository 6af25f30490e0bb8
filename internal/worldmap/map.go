// Package worldmap holds the authoritative spatial belief: tiles, depots,
// spawns, parcels, adversaries, and the two teammates' positions (spec.md
// §3, component C1). It is owned by one WorldStateObserver per agent
// process (spec.md §4.2) but read concurrently by the option generator,
// the pathfinder, and the debug view, so every exported method takes the
// map's mutex rather than relying on the single-goroutine invariant the
// agent loop itself enjoys.
package worldmap

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Map is the authoritative spatial model described in spec.md §3/§4.1.
type Map struct {
	mu sync.RWMutex

	width, height int
	tiles         []Tile
	depotTiles    []Tile
	spawnTiles    []Tile

	parcels     map[string]*Parcel
	adversaries map[string]*AdversaryAgent

	leaderPos   *Position
	followerPos *Position

	populated bool
	ready     chan struct{}
	readyOnce sync.Once
}

// New returns an empty, unpopulated map. Readers that call a GetXAsync
// method before SetTiles block until it is populated, per spec.md §4.1.
func New() *Map {
	return &Map{
		parcels:     make(map[string]*Parcel),
		adversaries: make(map[string]*AdversaryAgent),
		ready:       make(chan struct{}),
	}
}

// SetTiles installs the initial map built by the world-state observer from
// onMap's raw tiles. It is called exactly once in normal operation, but is
// not guarded against repeat calls since a reconnect could legitimately
// resend the map.
func (m *Map) SetTiles(width, height int, tiles []Tile) error {
	if len(tiles) != width*height {
		return fmt.Errorf("worldmap: expected %d tiles, got %d", width*height, len(tiles))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.width, m.height = width, height
	m.tiles = make([]Tile, len(tiles))
	copy(m.tiles, tiles)

	m.depotTiles = m.depotTiles[:0]
	m.spawnTiles = m.spawnTiles[:0]
	for _, t := range m.tiles {
		switch t.Type {
		case Depot:
			m.depotTiles = append(m.depotTiles, t)
		case Spawn:
			m.spawnTiles = append(m.spawnTiles, t)
		}
	}

	if !m.populated {
		m.populated = true
		m.readyOnce.Do(func() { close(m.ready) })
	}
	return nil
}

func (m *Map) index(x, y int) (int, bool) {
	if x < 0 || y < 0 || x >= m.width || y >= m.height {
		return 0, false
	}
	return y*m.width + x, true
}

// UpdateTile replaces the tile at its coordinate, rejecting out-of-bounds
// tiles and keeping the depot/spawn index lists consistent with the new type.
func (m *Map) UpdateTile(tile Tile) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx, ok := m.index(tile.X, tile.Y)
	if !ok {
		return fmt.Errorf("worldmap: tile (%d,%d) out of bounds %dx%d", tile.X, tile.Y, m.width, m.height)
	}

	old := m.tiles[idx]
	m.tiles[idx] = tile
	if old.Type == Depot {
		m.depotTiles = removeTile(m.depotTiles, old)
	}
	if old.Type == Spawn {
		m.spawnTiles = removeTile(m.spawnTiles, old)
	}
	if tile.Type == Depot {
		m.depotTiles = append(m.depotTiles, tile)
	}
	if tile.Type == Spawn {
		m.spawnTiles = append(m.spawnTiles, tile)
	}
	return nil
}

func removeTile(tiles []Tile, target Tile) []Tile {
	out := tiles[:0]
	for _, t := range tiles {
		if t.X != target.X || t.Y != target.Y {
			out = append(out, t)
		}
	}
	return out
}

// UpdateParcels drops expired parcels from the current belief, then upserts
// newParcels by id, keeping whichever timestamp is newer (spec.md §4.1).
// Parcels carried by someone are never stored.
func (m *Map) UpdateParcels(newParcels []Parcel, now time.Time, decayInterval time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, p := range m.parcels {
		if p.IsExpired(now, decayInterval) {
			delete(m.parcels, id)
		}
	}

	for _, np := range newParcels {
		if np.CarriedBy != "" {
			continue
		}
		if existing, ok := m.parcels[np.ID]; ok && !np.Timestamp.After(existing.Timestamp) {
			continue
		}
		cp := np
		m.parcels[np.ID] = &cp
	}
}

// ParcelPickedUp removes a parcel from the belief by id, e.g. once this
// agent (or the companion) has successfully picked it up.
func (m *Map) ParcelPickedUp(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.parcels, id)
}

// Parcels returns a snapshot of the currently believed-free parcels.
func (m *Map) Parcels() []Parcel {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Parcel, 0, len(m.parcels))
	for _, p := range m.parcels {
		out = append(out, *p)
	}
	return out
}

// UpdateAdversaryAgents upserts by id, keeping the newer timestamp.
func (m *Map) UpdateAdversaryAgents(agents []AdversaryAgent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range agents {
		if existing, ok := m.adversaries[a.ID]; ok && !a.Timestamp.After(existing.Timestamp) {
			continue
		}
		cp := a
		m.adversaries[a.ID] = &cp
	}
}

// AdversaryAgents returns a snapshot of currently-believed adversary positions.
func (m *Map) AdversaryAgents() []AdversaryAgent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]AdversaryAgent, 0, len(m.adversaries))
	for _, a := range m.adversaries {
		out = append(out, *a)
	}
	return out
}

// UpdateLeaderPosition records the leader teammate's last known tile.
func (m *Map) UpdateLeaderPosition(p Position) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pp := p
	m.leaderPos = &pp
}

// UpdateFollowerPosition records the follower teammate's last known tile.
func (m *Map) UpdateFollowerPosition(p Position) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pp := p
	m.followerPos = &pp
}

// CompanionPosition returns the position of whichever teammate is not
// self, given self's role, and whether it is known yet.
func (m *Map) CompanionPosition(self Role) (Position, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var p *Position
	if self == RoleLeader {
		p = m.followerPos
	} else {
		p = m.leaderPos
	}
	if p == nil {
		return Position{}, false
	}
	return *p, true
}

// Dimensions returns the map's width and height.
func (m *Map) Dimensions() (width, height int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.width, m.height
}

// AllTiles returns every installed tile (walls included), blocking until
// populated. It exists for the debug view, which renders the full grid
// rather than just the walkable subset GetWalkableTiles reports.
func (m *Map) AllTiles(ctx context.Context) ([]Tile, int, int, error) {
	if err := m.waitPopulated(ctx); err != nil {
		return nil, 0, 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Tile(nil), m.tiles...), m.width, m.height, nil
}

// waitPopulated blocks until SetTiles has been called at least once, or ctx
// is done, per the "blocks until the map has been populated" contract
// spec.md §4.1 attaches to getWalkableTiles/getDepotTilesAsync/getSpawnTilesAsync.
func (m *Map) waitPopulated(ctx context.Context) error {
	select {
	case <-m.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// snapshot is an internal, lock-free view used while computing derived
// queries (walkable tiles, neighbors) without re-acquiring the mutex per field.
type snapshot struct {
	width, height int
	tiles         []Tile
	adversaries   map[string]AdversaryAgent
	companion     *Position
}

func (m *Map) snapshotFor(self Role, withAgents bool) snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := snapshot{
		width:       m.width,
		height:      m.height,
		tiles:       append([]Tile(nil), m.tiles...),
		adversaries: make(map[string]AdversaryAgent, len(m.adversaries)),
	}
	for id, a := range m.adversaries {
		s.adversaries[id] = *a
	}
	if !withAgents {
		var companion *Position
		if self == RoleLeader {
			companion = m.followerPos
		} else {
			companion = m.leaderPos
		}
		if companion != nil {
			cp := *companion
			s.companion = &cp
		}
	}
	return s
}

func (s snapshot) isWalkable(t Tile) bool {
	if t.Type == Wall {
		return false
	}
	for _, a := range s.adversaries {
		if a.X == t.X && a.Y == t.Y {
			return false
		}
	}
	if s.companion != nil && s.companion.X == t.X && s.companion.Y == t.Y {
		return false
	}
	return true
}

// GetWalkableTiles returns a snapshot of every tile that may currently be
// stepped onto: not a Wall, not occupied by an adversary, and (unless
// withAgents is set) not the companion's tile (spec.md §3's Walkable Tile
// definition). It blocks until the map has been populated at least once.
func (m *Map) GetWalkableTiles(ctx context.Context, self Role, withAgents bool) ([]Tile, error) {
	if err := m.waitPopulated(ctx); err != nil {
		return nil, err
	}
	s := m.snapshotFor(self, withAgents)
	out := make([]Tile, 0, len(s.tiles))
	for _, t := range s.tiles {
		if s.isWalkable(t) {
			out = append(out, t)
		}
	}
	return out, nil
}

// GetNeighborTiles returns the 4-connected neighbors of tile that lie
// within bounds; if walkable is true the result is intersected with
// GetWalkableTiles (spec.md §4.1).
func (m *Map) GetNeighborTiles(ctx context.Context, tile Tile, self Role, walkable bool, withAgents bool) ([]Tile, error) {
	if err := m.waitPopulated(ctx); err != nil {
		return nil, err
	}

	m.mu.RLock()
	tileAt := func(x, y int) (Tile, bool) {
		idx, ok := m.index(x, y)
		if !ok {
			return Tile{}, false
		}
		return m.tiles[idx], true
	}
	candidates := make([]Tile, 0, 4)
	deltas := [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
	for _, d := range deltas {
		if t, ok := tileAt(tile.X+d[0], tile.Y+d[1]); ok {
			candidates = append(candidates, t)
		}
	}
	m.mu.RUnlock()

	if !walkable {
		return candidates, nil
	}

	s := m.snapshotFor(self, withAgents)
	out := make([]Tile, 0, len(candidates))
	for _, t := range candidates {
		if s.isWalkable(t) {
			out = append(out, t)
		}
	}
	return out, nil
}

// GetDepotTilesAsync returns every Depot tile, blocking until populated.
func (m *Map) GetDepotTilesAsync(ctx context.Context) ([]Tile, error) {
	if err := m.waitPopulated(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Tile(nil), m.depotTiles...), nil
}

// GetSpawnTilesAsync returns every Spawn tile, blocking until populated.
func (m *Map) GetSpawnTilesAsync(ctx context.Context) ([]Tile, error) {
	if err := m.waitPopulated(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Tile(nil), m.spawnTiles...), nil
}
