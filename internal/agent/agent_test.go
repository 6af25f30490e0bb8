package agent

import (
	"context"
	"os"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/niceyeti/deliveroo-agent/internal/client"
	"github.com/niceyeti/deliveroo-agent/internal/logging"
	"github.com/niceyeti/deliveroo-agent/internal/observer"
	"github.com/niceyeti/deliveroo-agent/internal/predicate"
	"github.com/niceyeti/deliveroo-agent/internal/worldmap"
)

type noopGameClient struct{}

func (noopGameClient) Connect(ctx context.Context) error  { return nil }
func (noopGameClient) Subscribe(sink client.EventSink)    {}
func (noopGameClient) EmitMove(ctx context.Context, dir client.Direction) (bool, int, int, error) {
	return true, 0, 0, nil
}
func (noopGameClient) EmitPickup(ctx context.Context) (bool, error)  { return true, nil }
func (noopGameClient) EmitPutdown(ctx context.Context) (bool, error) { return true, nil }
func (noopGameClient) EmitSay(ctx context.Context, recipientID string, msg client.Message) error {
	return nil
}
func (noopGameClient) Close() error { return nil }

func tenByTenClearMap() *worldmap.Map {
	wm := worldmap.New()
	tiles := make([]worldmap.Tile, 0, 100)
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			tiles = append(tiles, worldmap.Tile{X: x, Y: y, Type: worldmap.Other})
		}
	}
	_ = wm.SetTiles(10, 10, tiles)
	return wm
}

func newTestAgent(maxCarried int) *Agent {
	log := logging.New("ERROR", os.Stderr)
	wm := tenByTenClearMap()
	obs := observer.New(log, wm, "self", "", worldmap.RoleLeader)
	obs.OnYou(client.You{ID: "self", X: 0, Y: 0})
	return New(log, "self", "", worldmap.RoleLeader, false, wm, obs, noopGameClient{}, nil, Config{MaxCarriedParcels: maxCarried})
}

func TestPushDeduplication(t *testing.T) {
	Convey("Given an agent and a predicate pushed twice", t, func() {
		a := newTestAgent(4)
		ctx := context.Background()
		a.Push(ctx, predicate.GoTo{X: 5, Y: 5})
		a.Push(ctx, predicate.GoTo{X: 5, Y: 5})

		Convey("the queue holds only one entry", func() {
			So(a.QueueLen(), ShouldEqual, 1)
		})
	})
}

func TestSortIntentionQueuePriority(t *testing.T) {
	Convey("Given the spec's priority-sort scenario", t, func() {
		a := newTestAgent(4)
		ctx := context.Background()

		a.Push(ctx, predicate.GoPickUp{X: 5, Y: 5, ParcelID: "P1"})
		a.Push(ctx, predicate.GoPickUp{X: 1, Y: 0, ParcelID: "P2"})
		a.Push(ctx, predicate.GoDropOff{X: 3, Y: 3})
		a.Push(ctx, predicate.GoTo{X: 7, Y: 7})

		Convey("the resulting order is [P2, P1, drop_off(3,3), go_to(7,7)]", func() {
			snap := a.Snapshot()
			So(len(snap), ShouldEqual, 4)
			p2, ok := snap[0].(predicate.GoPickUp)
			So(ok, ShouldBeTrue)
			So(p2.ParcelID, ShouldEqual, "P2")
			p1, ok := snap[1].(predicate.GoPickUp)
			So(ok, ShouldBeTrue)
			So(p1.ParcelID, ShouldEqual, "P1")
			_, ok = snap[2].(predicate.GoDropOff)
			So(ok, ShouldBeTrue)
			_, ok = snap[3].(predicate.GoTo)
			So(ok, ShouldBeTrue)
		})
	})
}

func TestCarrySaturationFiltersQueue(t *testing.T) {
	Convey("Given MAX_CARRIED_PARCELS=2 and carriedParcelCount already at 2", t, func() {
		a := newTestAgent(2)
		ctx := context.Background()
		a.PickedUpParcel("already-1")
		a.PickedUpParcel("already-2")

		a.Push(ctx, predicate.GoDropOff{X: 0, Y: 0})
		a.Push(ctx, predicate.GoPickUp{X: 4, Y: 4, ParcelID: "P3"})

		Convey("the resulting queue holds only the drop-off", func() {
			snap := a.Snapshot()
			So(len(snap), ShouldEqual, 1)
			_, ok := snap[0].(predicate.GoDropOff)
			So(ok, ShouldBeTrue)
		})
	})
}
