package plan

import (
	"github.com/niceyeti/deliveroo-agent/internal/intention"
	"github.com/niceyeti/deliveroo-agent/internal/pddl"
	"github.com/niceyeti/deliveroo-agent/internal/worldmap"
)

// DefaultLibrary is the normal plan library ordering (spec.md §4.4): GoTo
// handles bare navigation, GoPickUp and GoDropOff each raise a go_to
// sub-intention first.
func DefaultLibrary() []intention.PlanFactory {
	return []intention.PlanFactory{
		GoPickUpFactory{},
		GoDropOffFactory{},
		GoToFactory{},
	}
}

// LibraryWithPDDL is DefaultLibrary with the symbolic replanner substituted
// for GoToFactory (spec.md §4.4, §9's "drop-in replacement chosen by
// configuration"); the worker selects between the two per config.Config's
// PDDLEnabled flag.
func LibraryWithPDDL(wm *worldmap.Map, self worldmap.Role, solver pddl.Solver, problemDir string) []intention.PlanFactory {
	return []intention.PlanFactory{
		GoPickUpFactory{},
		GoDropOffFactory{},
		GoToPDDLFactory{WM: wm, Self: self, Solver: solver, ProblemDir: problemDir},
	}
}
