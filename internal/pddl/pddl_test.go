package pddl

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/niceyeti/deliveroo-agent/internal/worldmap"
)

func TestBuildProblem(t *testing.T) {
	Convey("Given a belief set and a start/goal pair", t, func() {
		beliefs := []string{"(left tile0_0 tile1_0)", "(right tile1_0 tile0_0)"}
		start := worldmap.Position{X: 0, Y: 0}
		goal := worldmap.Position{X: 1, Y: 0}

		problem := BuildProblem(beliefs, start, goal)

		Convey("it includes the start fact and the goal", func() {
			So(problem.Init, ShouldContain, "(on_tile tile0_0)")
			So(problem.Goal, ShouldEqual, "(on_tile tile1_0)")
		})

		Convey("it collects every distinct tile object referenced", func() {
			So(problem.Objects, ShouldContain, "tile0_0")
			So(problem.Objects, ShouldContain, "tile1_0")
		})
	})
}

func TestParsePath(t *testing.T) {
	Convey("Given solver steps naming tiles as args", t, func() {
		steps := []Step{
			{Action: "goto", Args: []string{"TILE1_0"}},
			{Action: "goto", Args: []string{"tile2_0"}},
		}

		path, err := ParsePath(steps)

		Convey("it parses each into a position, case-insensitively", func() {
			So(err, ShouldBeNil)
			So(path, ShouldResemble, []worldmap.Position{{X: 1, Y: 0}, {X: 2, Y: 0}})
		})
	})

	Convey("Given a step with no tile-shaped arg", t, func() {
		steps := []Step{{Action: "noop", Args: []string{"foo"}}}

		path, err := ParsePath(steps)

		Convey("it is simply skipped", func() {
			So(err, ShouldBeNil)
			So(path, ShouldBeEmpty)
		})
	})
}
