// Package debugview renders a worldmap.Map and its agent as a 2D grid
// snapshot for the debug server, adapted from the teacher's
// server/cell_views package. The teacher's isometric SVG and per-cell
// policy-arrow rendering (server/cell_views/value_function_view.go) has no
// analogue here — there is no value function to visualize — so this keeps
// only the grid-conversion idea (cell_views.Convert) and drops the rest
// (recorded in DESIGN.md).
package debugview

import (
	"context"

	"github.com/niceyeti/deliveroo-agent/internal/agent"
	"github.com/niceyeti/deliveroo-agent/internal/worldmap"
)

// Symbol is the single-character rendering of one grid cell.
type Symbol byte

const (
	SymbolWall      Symbol = '#'
	SymbolOther     Symbol = '.'
	SymbolSpawn     Symbol = 'S'
	SymbolDepot     Symbol = 'D'
	SymbolParcel    Symbol = 'p'
	SymbolSelf      Symbol = '@'
	SymbolCompanion Symbol = '&'
	SymbolAdversary Symbol = 'x'
)

// Cell is one rendered grid position, carrying enough for an html/template
// table cell (cell_views.Cell's role in the teacher).
type Cell struct {
	X, Y   int
	Symbol Symbol
}

// Snapshot is one full render: the grid plus the rendering agent's own
// status line.
type Snapshot struct {
	Width, Height int
	Cells         [][]Cell
	Mode          string
	QueueLen      int
	CarriedCount  int
}

// Build renders a's worldmap and own status into a Snapshot. ctx bounds the
// calls into wm's populated-wait (spec.md §4.1): until the map is populated
// Build blocks, and if ctx ends first it returns a zero Snapshot and ctx's
// error.
func Build(ctx context.Context, wm *worldmap.Map, a *agent.Agent) (Snapshot, error) {
	tiles, width, height, err := wm.AllTiles(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	grid := make([][]Cell, height)
	for y := 0; y < height; y++ {
		grid[y] = make([]Cell, width)
		for x := 0; x < width; x++ {
			grid[y][x] = Cell{X: x, Y: y, Symbol: SymbolOther}
		}
	}
	for _, t := range tiles {
		if t.Y < 0 || t.Y >= height || t.X < 0 || t.X >= width {
			continue
		}
		grid[t.Y][t.X].Symbol = symbolForTileType(t.Type)
	}

	for _, p := range wm.Parcels() {
		if p.Y >= 0 && p.Y < height && p.X >= 0 && p.X < width {
			grid[p.Y][p.X].Symbol = SymbolParcel
		}
	}

	if companion, ok := wm.CompanionPosition(a.SelfRole()); ok {
		if companion.Y >= 0 && companion.Y < height && companion.X >= 0 && companion.X < width {
			grid[companion.Y][companion.X].Symbol = SymbolCompanion
		}
	}

	if pos, err := a.CurrentPosition(ctx); err == nil {
		if pos.Y >= 0 && pos.Y < height && pos.X >= 0 && pos.X < width {
			grid[pos.Y][pos.X].Symbol = SymbolSelf
		}
	}

	return Snapshot{
		Width:        width,
		Height:       height,
		Cells:        grid,
		Mode:         a.Mode().String(),
		QueueLen:     a.QueueLen(),
		CarriedCount: a.CarriedParcelCount(),
	}, nil
}

func symbolForTileType(t worldmap.TileType) Symbol {
	switch t {
	case worldmap.Wall:
		return SymbolWall
	case worldmap.Spawn:
		return SymbolSpawn
	case worldmap.Depot:
		return SymbolDepot
	default:
		return SymbolOther
	}
}
