package worldmap

import (
	"context"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func fiveByFive() []Tile {
	tiles := make([]Tile, 0, 25)
	for y := 0; y < 5; y++ {
		for x := 0; x < 5; x++ {
			tiles = append(tiles, Tile{X: x, Y: y, Type: Other})
		}
	}
	return tiles
}

func TestWorldMap(t *testing.T) {
	Convey("Given a freshly constructed map", t, func() {
		m := New()

		Convey("GetWalkableTiles blocks until SetTiles is called", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			defer cancel()
			_, err := m.GetWalkableTiles(ctx, RoleLeader, true)
			So(err, ShouldNotBeNil)
		})

		Convey("When SetTiles installs a 5x5 grid with one wall", func() {
			tiles := fiveByFive()
			tiles[idx(5, 2, 2)] = Tile{X: 2, Y: 2, Type: Wall}
			tiles[idx(5, 1, 1)] = Tile{X: 1, Y: 1, Type: Spawn}
			tiles[idx(5, 3, 3)] = Tile{X: 3, Y: 3, Type: Depot}
			So(m.SetTiles(5, 5, tiles), ShouldBeNil)

			Convey("spawn and depot tiles are indexed", func() {
				spawns, err := m.GetSpawnTilesAsync(context.Background())
				So(err, ShouldBeNil)
				So(spawns, ShouldResemble, []Tile{{X: 1, Y: 1, Type: Spawn}})

				depots, err := m.GetDepotTilesAsync(context.Background())
				So(err, ShouldBeNil)
				So(depots, ShouldResemble, []Tile{{X: 3, Y: 3, Type: Depot}})
			})

			Convey("walkable tiles exclude the wall", func() {
				walkable, err := m.GetWalkableTiles(context.Background(), RoleLeader, true)
				So(err, ShouldBeNil)
				So(len(walkable), ShouldEqual, 24)
			})

			Convey("walkable tiles exclude an adversary-occupied tile", func() {
				m.UpdateAdversaryAgents([]AdversaryAgent{{ID: "a1", X: 0, Y: 0, Timestamp: time.Now()}})
				walkable, err := m.GetWalkableTiles(context.Background(), RoleLeader, true)
				So(err, ShouldBeNil)
				for _, tl := range walkable {
					So(tl.X == 0 && tl.Y == 0, ShouldBeFalse)
				}
			})

			Convey("walkable tiles exclude the companion's tile unless withAgents", func() {
				m.UpdateFollowerPosition(Position{X: 4, Y: 4})
				without, err := m.GetWalkableTiles(context.Background(), RoleLeader, false)
				So(err, ShouldBeNil)
				for _, tl := range without {
					So(tl.X == 4 && tl.Y == 4, ShouldBeFalse)
				}

				with, err := m.GetWalkableTiles(context.Background(), RoleLeader, true)
				So(err, ShouldBeNil)
				found := false
				for _, tl := range with {
					if tl.X == 4 && tl.Y == 4 {
						found = true
					}
				}
				So(found, ShouldBeTrue)
			})

			Convey("GetNeighborTiles returns in-bounds 4-connected tiles", func() {
				neighbors, err := m.GetNeighborTiles(context.Background(), Tile{X: 0, Y: 0}, RoleLeader, false, true)
				So(err, ShouldBeNil)
				So(len(neighbors), ShouldEqual, 2)
			})
		})
	})

	Convey("Given parcel expiry", t, func() {
		now := time.Unix(6, 0)
		p := Parcel{ID: "p1", Reward: 5, Timestamp: time.Unix(0, 0)}
		Convey("a parcel decays below zero reward after enough elapsed decay intervals", func() {
			So(p.IsExpired(now, time.Second), ShouldBeTrue)
		})
	})

	Convey("Given a map with an expired parcel", t, func() {
		m := New()
		So(m.SetTiles(5, 5, fiveByFive()), ShouldBeNil)
		m.UpdateParcels([]Parcel{{ID: "p1", Reward: 5, Timestamp: time.Unix(0, 0)}}, time.Unix(0, 0), time.Second)
		So(len(m.Parcels()), ShouldEqual, 1)

		Convey("updateParcels with an empty list at a much later time removes it", func() {
			m.UpdateParcels(nil, time.Unix(6, 0), time.Second)
			So(len(m.Parcels()), ShouldEqual, 0)
		})
	})

	Convey("Given a map, carried parcels are never stored", t, func() {
		m := New()
		So(m.SetTiles(5, 5, fiveByFive()), ShouldBeNil)
		m.UpdateParcels([]Parcel{{ID: "p1", Reward: 5, Timestamp: time.Now(), CarriedBy: "a1"}}, time.Now(), time.Minute)
		So(len(m.Parcels()), ShouldEqual, 0)
	})
}

func idx(width, x, y int) int {
	return y*width + x
}
