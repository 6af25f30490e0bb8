package plan

import (
	"context"
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/niceyeti/deliveroo-agent/internal/client"
	"github.com/niceyeti/deliveroo-agent/internal/intention"
	"github.com/niceyeti/deliveroo-agent/internal/planerr"
	"github.com/niceyeti/deliveroo-agent/internal/predicate"
	"github.com/niceyeti/deliveroo-agent/internal/worldmap"
)

// fakeAgentContext is a scripted intention.AgentContext double: moves
// always succeed unless a position is listed in failOnce, in which case
// the first attempt to step onto it fails once before succeeding.
type fakeAgentContext struct {
	mu          sync.Mutex
	pos         worldmap.Position
	path        []worldmap.Position
	failOnce    map[worldmap.Position]bool
	pickedUp    []string
	droppedAll  int
	pickupOK    bool
	putdownOK   bool
	findPathErr error
}

func (f *fakeAgentContext) CurrentPosition(ctx context.Context) (worldmap.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pos, nil
}

func (f *fakeAgentContext) FindPath(ctx context.Context, start, end worldmap.Position) ([]worldmap.Position, error) {
	if f.findPathErr != nil {
		return nil, f.findPathErr
	}
	return f.path, nil
}

func (f *fakeAgentContext) EmitMove(ctx context.Context, dir client.Direction) (bool, int, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	next := f.pos
	switch dir {
	case client.Up:
		next.Y++
	case client.Down:
		next.Y--
	case client.Left:
		next.X--
	case client.Right:
		next.X++
	}

	if f.failOnce != nil && f.failOnce[next] {
		delete(f.failOnce, next)
		return false, f.pos.X, f.pos.Y, nil
	}
	f.pos = next
	return true, f.pos.X, f.pos.Y, nil
}

func (f *fakeAgentContext) EmitPickup(ctx context.Context) (bool, error)  { return f.pickupOK, nil }
func (f *fakeAgentContext) EmitPutdown(ctx context.Context) (bool, error) { return f.putdownOK, nil }
func (f *fakeAgentContext) PickedUpParcel(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pickedUp = append(f.pickedUp, id)
}
func (f *fakeAgentContext) DroppedAllParcels() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.droppedAll++
}

func TestGoToPlan(t *testing.T) {
	Convey("Given a GoTo plan with a clear path", t, func() {
		ac := &fakeAgentContext{
			pos:  worldmap.Position{X: 0, Y: 0},
			path: []worldmap.Position{{X: 1, Y: 0}, {X: 2, Y: 0}},
		}
		factory := GoToFactory{}
		p := factory.New(ac)
		it := intention.New(predicate.GoTo{X: 2, Y: 0}, nil, []intention.PlanFactory{factory}, ac)

		Convey("it walks every step and succeeds", func() {
			ok, err := p.Execute(context.Background(), it, predicate.GoTo{X: 2, Y: 0})
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			So(ac.pos, ShouldResemble, worldmap.Position{X: 2, Y: 0})
		})
	})

	Convey("Given a start tile equal to the destination", t, func() {
		ac := &fakeAgentContext{pos: worldmap.Position{X: 3, Y: 3}}
		factory := GoToFactory{}
		p := factory.New(ac)
		it := intention.New(predicate.GoTo{X: 3, Y: 3}, nil, []intention.PlanFactory{factory}, ac)

		Convey("it succeeds immediately without issuing any move", func() {
			ok, err := p.Execute(context.Background(), it, predicate.GoTo{X: 3, Y: 3})
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
		})
	})

	Convey("Given the pathfinder reports no path", t, func() {
		ac := &fakeAgentContext{pos: worldmap.Position{X: 0, Y: 0}, path: nil}
		factory := GoToFactory{}
		p := factory.New(ac)
		it := intention.New(predicate.GoTo{X: 9, Y: 9}, nil, []intention.PlanFactory{factory}, ac)

		Convey("it fails with ErrNoPath", func() {
			_, err := p.Execute(context.Background(), it, predicate.GoTo{X: 9, Y: 9})
			So(err, ShouldBeError, planerr.ErrNoPath)
		})
	})

	Convey("Given a step whose first move attempt fails once", t, func() {
		ac := &fakeAgentContext{
			pos:      worldmap.Position{X: 0, Y: 0},
			path:     []worldmap.Position{{X: 1, Y: 0}},
			failOnce: map[worldmap.Position]bool{{X: 1, Y: 0}: true},
		}
		factory := GoToFactory{}
		p := factory.New(ac)
		it := intention.New(predicate.GoTo{X: 1, Y: 0}, nil, []intention.PlanFactory{factory}, ac)

		Convey("it retries and ultimately reaches the destination", func() {
			ok, err := p.Execute(context.Background(), it, predicate.GoTo{X: 1, Y: 0})
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			So(ac.pos, ShouldResemble, worldmap.Position{X: 1, Y: 0})
		})
	})
}
