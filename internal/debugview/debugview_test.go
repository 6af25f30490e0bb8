package debugview

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

func TestBuildRendersAgentAndParcels(t *testing.T) {
	Convey("Given a 3x3 map with a depot, a parcel, and the agent at (0,0)", t, func() {
		wm := worldmap.New()
		tiles := []worldmap.Tile{
			{X: 0, Y: 0, Type: worldmap.Other}, {X: 1, Y: 0, Type: worldmap.Other}, {X: 2, Y: 0, Type: worldmap.Depot},
			{X: 0, Y: 1, Type: worldmap.Other}, {X: 1, Y: 1, Type: worldmap.Wall}, {X: 2, Y: 1, Type: worldmap.Other},
			{X: 0, Y: 2, Type: worldmap.Spawn}, {X: 1, Y: 2, Type: worldmap.Other}, {X: 2, Y: 2, Type: worldmap.Other},
		}
		_ = wm.SetTiles(3, 3, tiles)
		now := time.Now()
		wm.UpdateParcels([]worldmap.Parcel{{ID: "p1", X: 1, Y: 2, Timestamp: now}}, now, time.Hour)

		log := logging.New("ERROR", os.Stderr)
		obs := observer.New(log, wm, "self", "", worldmap.RoleLeader)
		obs.OnYou(client.You{ID: "self", X: 0, Y: 0})
		a := agent.New(log, "self", "", worldmap.RoleLeader, false, wm, obs, noopGameClient{}, nil, agent.Config{MaxCarriedParcels: 4})

		snap, err := Build(context.Background(), wm, a)

		Convey("the grid reflects depot, wall, spawn, parcel, and self symbols", func() {
			So(err, ShouldBeNil)
			So(snap.Width, ShouldEqual, 3)
			So(snap.Height, ShouldEqual, 3)
			So(snap.Cells[0][2].Symbol, ShouldEqual, SymbolDepot)
			So(snap.Cells[1][1].Symbol, ShouldEqual, SymbolWall)
			So(snap.Cells[2][0].Symbol, ShouldEqual, SymbolSpawn)
			So(snap.Cells[2][1].Symbol, ShouldEqual, SymbolParcel)
			So(snap.Cells[0][0].Symbol, ShouldEqual, SymbolSelf)
		})
	})
}
