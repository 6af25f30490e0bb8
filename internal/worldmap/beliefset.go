package worldmap

import (
	"context"
	"fmt"
)

// BeliefSet emits the directional PDDL predicates the optional GoToPDDL
// plan needs: below/above/left/right tileX_Y tileX'_Y', one pair per
// adjacent, walkable, non-occupied tile pair (spec.md §4.1). It is the only
// PDDL-shaped export worldmap makes; the problem-file assembly itself lives
// in internal/pddl so this package stays free of solver concerns.
func (m *Map) BeliefSet(ctx context.Context, self Role, withAgents bool) ([]string, error) {
	tiles, err := m.GetWalkableTiles(ctx, self, withAgents)
	if err != nil {
		return nil, err
	}

	walkable := make(map[[2]int]bool, len(tiles))
	for _, t := range tiles {
		walkable[[2]int{t.X, t.Y}] = true
	}

	var preds []string
	for _, t := range tiles {
		name := TileName(t.X, t.Y)
		if right, ok := walkable[[2]int{t.X + 1, t.Y}]; ok && right {
			preds = append(preds, fmt.Sprintf("(left %s %s)", name, TileName(t.X+1, t.Y)))
			preds = append(preds, fmt.Sprintf("(right %s %s)", TileName(t.X+1, t.Y), name))
		}
		if up, ok := walkable[[2]int{t.X, t.Y + 1}]; ok && up {
			preds = append(preds, fmt.Sprintf("(below %s %s)", name, TileName(t.X, t.Y+1)))
			preds = append(preds, fmt.Sprintf("(above %s %s)", TileName(t.X, t.Y+1), name))
		}
	}
	return preds, nil
}

// TileName renders the `tileX_Y` PDDL object name spec.md §4.4 describes
// for GoToPDDL's problem file and plan-step parsing.
func TileName(x, y int) string {
	return fmt.Sprintf("tile%d_%d", x, y)
}
