package pathfinder

import (
	"context"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/niceyeti/deliveroo-agent/internal/worldmap"
)

func grid5x5(walls map[[2]int]bool) *worldmap.Map {
	m := worldmap.New()
	tiles := make([]worldmap.Tile, 0, 25)
	for y := 0; y < 5; y++ {
		for x := 0; x < 5; x++ {
			tt := worldmap.Other
			if walls[[2]int{x, y}] {
				tt = worldmap.Wall
			}
			tiles = append(tiles, worldmap.Tile{X: x, Y: y, Type: tt})
		}
	}
	_ = m.SetTiles(5, 5, tiles)
	return m
}

func TestAStar(t *testing.T) {
	Convey("Scenario 1: A* basic, 5x5 all-Other map", t, func() {
		m := grid5x5(nil)
		f := New(m)
		path, err := f.FindPath(context.Background(), worldmap.RoleLeader, worldmap.Position{X: 0, Y: 0}, worldmap.Position{X: 2, Y: 3}, false)
		So(err, ShouldBeNil)
		So(path, ShouldNotBeNil)
		So(len(path), ShouldEqual, 5)
		So(path[len(path)-1], ShouldResemble, worldmap.Position{X: 2, Y: 3})
		for i := 1; i < len(path); i++ {
			So(worldmap.Manhattan(path[i-1], path[i]), ShouldEqual, 1)
		}
		So(worldmap.Manhattan(worldmap.Position{X: 0, Y: 0}, path[0]), ShouldEqual, 1)
	})

	Convey("Scenario 2: A* blocked by a wall column", t, func() {
		walls := map[[2]int]bool{
			{1, 0}: true, {1, 1}: true, {1, 2}: true, {1, 3}: true, {1, 4}: true,
		}
		m := grid5x5(walls)
		f := New(m)
		path, err := f.FindPath(context.Background(), worldmap.RoleLeader, worldmap.Position{X: 0, Y: 0}, worldmap.Position{X: 2, Y: 0}, false)
		So(err, ShouldBeNil)
		So(path, ShouldBeNil)
	})

	Convey("start == end yields an empty, non-nil path", t, func() {
		m := grid5x5(nil)
		f := New(m)
		path, err := f.FindPath(context.Background(), worldmap.RoleLeader, worldmap.Position{X: 2, Y: 2}, worldmap.Position{X: 2, Y: 2}, false)
		So(err, ShouldBeNil)
		So(path, ShouldNotBeNil)
		So(len(path), ShouldEqual, 0)
	})

	Convey("destination on a wall tile is unreachable", t, func() {
		walls := map[[2]int]bool{{2, 2}: true}
		m := grid5x5(walls)
		f := New(m)
		path, err := f.FindPath(context.Background(), worldmap.RoleLeader, worldmap.Position{X: 0, Y: 0}, worldmap.Position{X: 2, Y: 2}, false)
		So(err, ShouldBeNil)
		So(path, ShouldBeNil)
	})
}
