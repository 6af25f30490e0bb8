package worker

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/niceyeti/deliveroo-agent/internal/client"
	"github.com/niceyeti/deliveroo-agent/internal/client/simclient"
	"github.com/niceyeti/deliveroo-agent/internal/logging"
	"github.com/niceyeti/deliveroo-agent/internal/worldmap"
)

func smallMap() (int, int, []client.RawTile) {
	return 3, 3, []client.RawTile{
		{X: 0, Y: 0, TypeCode: 3}, {X: 1, Y: 0, TypeCode: 3}, {X: 2, Y: 0, TypeCode: 2},
		{X: 0, Y: 1, TypeCode: 3}, {X: 1, Y: 1, TypeCode: 3}, {X: 2, Y: 1, TypeCode: 3},
		{X: 0, Y: 2, TypeCode: 1}, {X: 1, Y: 2, TypeCode: 3}, {X: 2, Y: 2, TypeCode: 3},
	}
}

func TestWorkerRunInitializesFromSensorEvents(t *testing.T) {
	Convey("Given a worker wired to a scripted client", t, func() {
		log := logging.New("ERROR", os.Stderr)
		gc := simclient.New()
		w := New(log, "", "", worldmap.RoleLeader, true, false, gc, Config{
			OptionGenerationInterval: 10 * time.Millisecond,
			MaxCarriedParcels:        4,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()

		done := make(chan error, 1)
		go func() { done <- w.Run(ctx) }()

		gc.FireConnect()
		gc.FireConfig(client.Config{ParcelDecayInterval: time.Hour, ParcelsObservationDistance: 10})
		width, height, tiles := smallMap()
		gc.FireMap(width, height, tiles)
		gc.FireYou(client.You{ID: "self", X: 0, Y: 0})
		gc.FireParcelsSensing(nil)

		Convey("the agent becomes initialized and the loop runs until cancellation", func() {
			deadline := time.After(500 * time.Millisecond)
			for !w.Agent().Initialized() {
				select {
				case <-deadline:
					t.Fatal("agent never initialized")
				case <-time.After(5 * time.Millisecond):
				}
			}
			So(w.Agent().Initialized(), ShouldBeTrue)

			err := <-done
			So(errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled), ShouldBeTrue)
		})
	})
}

func TestWorkerSetCompanionIDPropagates(t *testing.T) {
	Convey("Given a dual-agent worker", t, func() {
		log := logging.New("ERROR", os.Stderr)
		gc := simclient.New()
		w := New(log, "", "", worldmap.RoleLeader, true, true, gc, Config{
			OptionGenerationInterval: 10 * time.Millisecond,
			MaxCarriedParcels:        4,
		})

		Convey("SetCompanionID updates the worker and agent consistently", func() {
			w.SetCompanionID("companion-42")
			So(w.currentCompanionID(), ShouldEqual, "companion-42")
			So(w.Agent().CompanionID(), ShouldEqual, "companion-42")
		})
	})
}
