package plan

import (
	"context"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/niceyeti/deliveroo-agent/internal/intention"
	"github.com/niceyeti/deliveroo-agent/internal/predicate"
	"github.com/niceyeti/deliveroo-agent/internal/worldmap"
)

func TestGoDropOffPlan(t *testing.T) {
	Convey("Given the agent is already on the depot tile", t, func() {
		ac := &fakeAgentContext{pos: worldmap.Position{X: 5, Y: 5}, putdownOK: true}
		library := []intention.PlanFactory{GoDropOffFactory{}, GoToFactory{}}
		it := intention.New(predicate.GoDropOff{X: 5, Y: 5}, nil, library, ac)

		Convey("it issues the putdown RPC and resets carry state", func() {
			ok, err := it.Achieve(context.Background())
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			So(ac.droppedAll, ShouldEqual, 1)
		})
	})

	Convey("Given the depot id hint is set", t, func() {
		ac := &fakeAgentContext{pos: worldmap.Position{X: 5, Y: 5}, putdownOK: true}
		depot := "depot-1"
		library := []intention.PlanFactory{GoDropOffFactory{}}
		it := intention.New(predicate.GoDropOff{X: 5, Y: 5, DepotID: &depot}, nil, library, ac)

		Convey("it is not consulted operationally; the drop-off still succeeds", func() {
			ok, err := it.Achieve(context.Background())
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
		})
	})
}
