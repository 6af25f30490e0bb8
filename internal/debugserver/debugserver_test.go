package debugserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

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

func newTestServer() *Server {
	log := logging.New("ERROR", os.Stderr)
	wm := worldmap.New()
	_ = wm.SetTiles(2, 2, []worldmap.Tile{
		{X: 0, Y: 0, Type: worldmap.Other},
		{X: 1, Y: 0, Type: worldmap.Other},
		{X: 0, Y: 1, Type: worldmap.Other},
		{X: 1, Y: 1, Type: worldmap.Other},
	})
	obs := observer.New(log, wm, "self", "", worldmap.RoleLeader)
	obs.OnYou(client.You{ID: "self", X: 0, Y: 0})
	a := agent.New(log, "self", "", worldmap.RoleLeader, false, wm, obs, noopGameClient{}, nil, agent.Config{MaxCarriedParcels: 4})
	return New(log, ":0", wm, a)
}

func TestServePushIntentionValidPredicate(t *testing.T) {
	Convey("Given a well-formed go_to raw tuple posted to /intention", t, func() {
		srv := newTestServer()
		body, _ := json.Marshal(predicate.Raw{Action: "go_to", X: 1, Y: 1})
		req := httptest.NewRequest(http.MethodPost, "/intention", bytes.NewReader(body))
		rec := httptest.NewRecorder()

		srv.mux.ServeHTTP(rec, req)

		Convey("it accepts and pushes the parsed predicate onto the agent's queue", func() {
			So(rec.Code, ShouldEqual, http.StatusAccepted)
			snap := srv.a.Snapshot()
			So(len(snap), ShouldEqual, 1)
			So(snap[0], ShouldResemble, predicate.GoTo{X: 1, Y: 1})
		})
	})
}

func TestServePushIntentionMalformedPredicate(t *testing.T) {
	Convey("Given a raw tuple naming an unknown action", t, func() {
		srv := newTestServer()
		body, _ := json.Marshal(predicate.Raw{Action: "fly"})
		req := httptest.NewRequest(http.MethodPost, "/intention", bytes.NewReader(body))
		rec := httptest.NewRecorder()

		srv.mux.ServeHTTP(rec, req)

		Convey("it rejects the request with 400", func() {
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}
