package options

import (
	"context"
	"os"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/niceyeti/deliveroo-agent/internal/agent"
	"github.com/niceyeti/deliveroo-agent/internal/client"
	"github.com/niceyeti/deliveroo-agent/internal/logging"
	"github.com/niceyeti/deliveroo-agent/internal/observer"
	"github.com/niceyeti/deliveroo-agent/internal/predicate"
	"github.com/niceyeti/deliveroo-agent/internal/worldmap"
)

type noopGameClient struct{}

func (noopGameClient) Connect(ctx context.Context) error { return nil }
func (noopGameClient) Subscribe(sink client.EventSink)   {}
func (noopGameClient) EmitMove(ctx context.Context, dir client.Direction) (bool, int, int, error) {
	return true, 0, 0, nil
}
func (noopGameClient) EmitPickup(ctx context.Context) (bool, error)  { return true, nil }
func (noopGameClient) EmitPutdown(ctx context.Context) (bool, error) { return true, nil }
func (noopGameClient) EmitSay(ctx context.Context, recipientID string, msg client.Message) error {
	return nil
}
func (noopGameClient) Close() error { return nil }

func gridWithDepotAndSpawn() *worldmap.Map {
	wm := worldmap.New()
	tiles := make([]worldmap.Tile, 0, 36)
	for y := 0; y < 6; y++ {
		for x := 0; x < 6; x++ {
			tt := worldmap.Other
			if x == 5 && y == 5 {
				tt = worldmap.Depot
			}
			if x == 0 && y == 5 {
				tt = worldmap.Spawn
			}
			tiles = append(tiles, worldmap.Tile{X: x, Y: y, Type: tt})
		}
	}
	_ = wm.SetTiles(6, 6, tiles)
	return wm
}

func newOptionsTestAgent(cfg agent.Config) (*agent.Agent, *worldmap.Map) {
	log := logging.New("ERROR", os.Stderr)
	wm := gridWithDepotAndSpawn()
	obs := observer.New(log, wm, "self", "", worldmap.RoleLeader)
	obs.OnYou(client.You{ID: "self", X: 0, Y: 0})
	a := agent.New(log, "self", "", worldmap.RoleLeader, false, wm, obs, noopGameClient{}, nil, cfg)
	return a, wm
}

func TestGenerateNormalPushesPickupsAndDropoff(t *testing.T) {
	Convey("Given a sensed parcel and the agent carrying one already", t, func() {
		a, wm := newOptionsTestAgent(agent.Config{MaxCarriedParcels: 4})
		now := time.Now()
		wm.UpdateParcels([]worldmap.Parcel{{ID: "p1", X: 2, Y: 2, Reward: 10, Timestamp: now}}, now, time.Hour)
		a.PickedUpParcel("carried-already")

		err := Generate(context.Background(), a, Config{MaxDistanceForRandomMove: 5, MaxRetryCommonDelivery: 10}, nil, nil)

		Convey("it pushes a pickup for the sensed parcel and a drop-off at the depot", func() {
			So(err, ShouldBeNil)
			snap := a.Snapshot()
			var sawPickup, sawDropoff bool
			for _, pred := range snap {
				switch pred.(type) {
				case predicate.GoPickUp:
					sawPickup = true
				case predicate.GoDropOff:
					sawDropoff = true
				}
			}
			So(sawPickup, ShouldBeTrue)
			So(sawDropoff, ShouldBeTrue)
		})
	})
}

func TestGenerateNormalFallsBackToRandomMove(t *testing.T) {
	Convey("Given no sensed parcels and an empty queue", t, func() {
		a, _ := newOptionsTestAgent(agent.Config{MaxCarriedParcels: 4})

		err := Generate(context.Background(), a, Config{MaxDistanceForRandomMove: 10, MaxRetryCommonDelivery: 10}, nil, nil)

		Convey("it pushes a go_to toward a spawn tile", func() {
			So(err, ShouldBeNil)
			snap := a.Snapshot()
			So(len(snap), ShouldEqual, 1)
			_, ok := snap[0].(predicate.GoTo)
			So(ok, ShouldBeTrue)
		})
	})
}

func TestFindCommonDeliveryTile(t *testing.T) {
	Convey("Given a candidate list with an unreachable first entry", t, func() {
		a, _ := newOptionsTestAgent(agent.Config{MaxCarriedParcels: 4})
		from := worldmap.Position{X: 0, Y: 0}
		seed := []worldmap.Position{{X: 100, Y: 100}, {X: 1, Y: 1}}

		tile, found, err := findCommonDeliveryTile(context.Background(), a, from, seed)

		Convey("it skips the unreachable tile and returns a reachable one", func() {
			So(err, ShouldBeNil)
			So(found, ShouldBeTrue)
			So(tile, ShouldResemble, worldmap.Position{X: 1, Y: 1})
		})
	})
}

func TestGenerateGatherRejectsUnreachableDeliveryTile(t *testing.T) {
	Convey("Given a Gather agent whose negotiated deliveryTile is off the map", t, func() {
		a, _ := newOptionsTestAgent(agent.Config{MaxCarriedParcels: 4})
		a.SetMode(agent.ModeGather)
		a.SetDeliveryTile(worldmap.Position{X: 100, Y: 100})

		var gotError bool
		err := generateGather(context.Background(), a, func(ctx context.Context) {
			gotError = true
		})

		Convey("it clears the tile and fires the error hook instead of pushing toward it", func() {
			So(err, ShouldBeNil)
			So(gotError, ShouldBeTrue)
			_, ok := a.DeliveryTile()
			So(ok, ShouldBeFalse)
		})
	})
}

func TestGenerateGatherKeepsReachableDeliveryTile(t *testing.T) {
	Convey("Given a Gather agent whose negotiated deliveryTile is reachable", t, func() {
		a, _ := newOptionsTestAgent(agent.Config{MaxCarriedParcels: 4})
		a.SetMode(agent.ModeGather)
		a.SetDeliveryTile(worldmap.Position{X: 5, Y: 5})

		var gotError bool
		err := generateGather(context.Background(), a, func(ctx context.Context) {
			gotError = true
		})

		Convey("it keeps the tile and never fires the error hook", func() {
			So(err, ShouldBeNil)
			So(gotError, ShouldBeFalse)
			tile, ok := a.DeliveryTile()
			So(ok, ShouldBeTrue)
			So(tile, ShouldResemble, worldmap.Position{X: 5, Y: 5})
		})
	})
}
