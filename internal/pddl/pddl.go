// Package pddl implements the optional symbolic replanner's problem-file
// plumbing (spec.md §4.4's GoToPDDL, §1's "optional symbolic PDDL
// replanner"): assembling a problem from the map's belief set, writing it
// for an external solver, and parsing the solver's step args back into a
// path of tiles.
package pddl

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/niceyeti/deliveroo-agent/internal/worldmap"
)

// Problem is the belief-set-derived PDDL problem, serialized as YAML for
// the debug problem-file dump (the teacher uses yaml.v3 for all of its
// debug snapshots; a real STRIPS problem file is plain text, but this
// module only needs a format the bundled solver and debug tooling agree
// on, so YAML it is).
type Problem struct {
	Objects []string `yaml:"objects"`
	Init    []string `yaml:"init"`
	Goal    string   `yaml:"goal"`
}

// Step is one action the solver's plan returns: an action name plus its
// positional args, e.g. Action "goto" Args ["TILE3_4"].
type Step struct {
	Action string
	Args   []string
}

// Solver invokes an external PDDL planner against a written problem file
// and returns its plan. It is injected so the core stays testable without
// a real solver binary (spec.md §1, §9).
type Solver interface {
	Solve(ctx context.Context, problemPath string) ([]Step, error)
}

// tileName renders spec.md §4.2's "tileX_Y" object naming.
func tileName(x, y int) string {
	return fmt.Sprintf("tile%d_%d", x, y)
}

// BuildProblem combines beliefs (worldmap.Map.BeliefSet's output) with the
// start/goal `(on_tile tileX_Y)` facts spec.md §4.4 describes.
func BuildProblem(beliefs []string, start, goal worldmap.Position) Problem {
	objects := make([]string, 0, len(beliefs))
	seen := make(map[string]bool)
	for _, b := range beliefs {
		for _, tok := range tileTokens(b) {
			if !seen[tok] {
				seen[tok] = true
				objects = append(objects, tok)
			}
		}
	}

	init := make([]string, 0, len(beliefs)+1)
	init = append(init, beliefs...)
	init = append(init, fmt.Sprintf("(on_tile %s)", tileName(start.X, start.Y)))

	return Problem{
		Objects: objects,
		Init:    init,
		Goal:    fmt.Sprintf("(on_tile %s)", tileName(goal.X, goal.Y)),
	}
}

var tileTokenRe = regexp.MustCompile(`tile-?\d+_-?\d+`)

func tileTokens(predicate string) []string {
	return tileTokenRe.FindAllString(predicate, -1)
}

// WriteProblemFile serializes problem as YAML to path, for both the
// solver's consumption and debugging (spec.md §5's "persisted state: a
// PDDL problem file may be written for debugging").
func WriteProblemFile(path string, problem Problem) error {
	b, err := yaml.Marshal(problem)
	if err != nil {
		return fmt.Errorf("marshal pddl problem: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write pddl problem file %s: %w", path, err)
	}
	return nil
}

var tileStepRe = regexp.MustCompile(`^(?i)tile(-?\d+)_(-?\d+)$`)

// ParsePath converts a solver's step list into a path of tile positions,
// matching args of the form "TILEX_Y" (spec.md §4.4) and ignoring any
// other argument shape a step may carry.
func ParsePath(steps []Step) ([]worldmap.Position, error) {
	path := make([]worldmap.Position, 0, len(steps))
	for _, step := range steps {
		for _, arg := range step.Args {
			m := tileStepRe.FindStringSubmatch(arg)
			if m == nil {
				continue
			}
			x, err := strconv.Atoi(m[1])
			if err != nil {
				return nil, fmt.Errorf("parse pddl step arg %q: %w", arg, err)
			}
			y, err := strconv.Atoi(m[2])
			if err != nil {
				return nil, fmt.Errorf("parse pddl step arg %q: %w", arg, err)
			}
			path = append(path, worldmap.Position{X: x, Y: y})
		}
	}
	return path, nil
}
