package plan

import (
	"context"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/niceyeti/deliveroo-agent/internal/intention"
	"github.com/niceyeti/deliveroo-agent/internal/predicate"
	"github.com/niceyeti/deliveroo-agent/internal/worldmap"
)

func TestGoPickUpPlan(t *testing.T) {
	Convey("Given the agent is already on the parcel tile", t, func() {
		ac := &fakeAgentContext{pos: worldmap.Position{X: 2, Y: 2}, pickupOK: true}
		library := []intention.PlanFactory{GoPickUpFactory{}, GoToFactory{}}
		it := intention.New(predicate.GoPickUp{X: 2, Y: 2, ParcelID: "p1"}, nil, library, ac)

		Convey("it skips navigation and issues the pickup RPC directly", func() {
			ok, err := it.Achieve(context.Background())
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			So(ac.pickedUp, ShouldResemble, []string{"p1"})
		})
	})

	Convey("Given the agent must walk to the parcel first", t, func() {
		ac := &fakeAgentContext{
			pos:      worldmap.Position{X: 0, Y: 0},
			path:     []worldmap.Position{{X: 1, Y: 0}},
			pickupOK: true,
		}
		library := []intention.PlanFactory{GoPickUpFactory{}, GoToFactory{}}
		it := intention.New(predicate.GoPickUp{X: 1, Y: 0, ParcelID: "p2"}, nil, library, ac)

		Convey("it raises a go_to sub-intention then picks up", func() {
			ok, err := it.Achieve(context.Background())
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			So(ac.pos, ShouldResemble, worldmap.Position{X: 1, Y: 0})
			So(ac.pickedUp, ShouldResemble, []string{"p2"})
		})
	})

	Convey("Given the pickup RPC returns false", t, func() {
		ac := &fakeAgentContext{pos: worldmap.Position{X: 2, Y: 2}, pickupOK: false}
		library := []intention.PlanFactory{GoPickUpFactory{}}
		it := intention.New(predicate.GoPickUp{X: 2, Y: 2, ParcelID: "p3"}, nil, library, ac)

		Convey("it finishes unsuccessfully without calling pickedUpParcel", func() {
			ok, err := it.Achieve(context.Background())
			So(err, ShouldBeNil)
			So(ok, ShouldBeFalse)
			So(ac.pickedUp, ShouldBeEmpty)
		})
	})
}
