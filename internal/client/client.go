// Package client defines the external collaborator surface the core
// consumes (spec.md §6): sensor callbacks delivered as an EventSink, and
// action RPCs issued through the GameClient interface. The real network
// transport, process/worker spawning, and JWT token handling are kept out
// of scope (spec.md §1); this package only defines the boundary so the core
// is testable against a simulated world (spec.md §9).
package client

import (
	"context"
	"time"
)

// Direction is one of the four cardinal move RPCs.
type Direction string

const (
	Up    Direction = "up"
	Down  Direction = "down"
	Left  Direction = "left"
	Right Direction = "right"
)

// Config is the game-server configuration delivered by onConfig (spec.md §4.2).
type Config struct {
	ParcelDecayInterval        time.Duration
	ParcelsObservationDistance float64
	ParcelRewardAvg            float64
	ParcelRewardVariance       float64
}

// RawTile is a single cell of onMap's raw tile array, before the observer
// translates its type code into a worldmap.TileType (spec.md §4.2).
type RawTile struct {
	X, Y     int
	TypeCode int
}

// You is the payload of onYou: this agent's own position and score.
type You struct {
	ID    string
	X, Y  int
	Score float64
}

// SensedParcel is one entry of onParcelsSensing, before timestamping.
type SensedParcel struct {
	ID        string
	X, Y      int
	Reward    int
	CarriedBy string
}

// SensedAgent is one entry of onAgentsSensing, before the observer splits
// it into "this is me" vs. "this is an adversary or the companion".
type SensedAgent struct {
	ID   string
	X, Y int
}

// Message is a coordination-protocol envelope received via onMsg or sent
// via EmitSay; its Body is left as raw bytes so internal/coordination owns
// the action-discriminated decoding (spec.md §4.8).
type Message struct {
	Body []byte
}

// EventSink receives the sensor callbacks a GameClient delivers. Exactly
// one EventSink subscribes per GameClient, matching spec.md §4.2's "a
// single shared instance" world-state observer.
type EventSink interface {
	OnConnect()
	OnDisconnect(err error)
	OnConfig(cfg Config)
	OnMap(width, height int, tiles []RawTile)
	OnYou(you You)
	OnParcelsSensing(parcels []SensedParcel)
	OnAgentsSensing(agents []SensedAgent)
	OnMsg(senderID, senderName string, msg Message)
}

// GameClient is the action-RPC side of the external collaborator: every
// call returns a success flag (or propagates a transport error) per
// spec.md §6.
type GameClient interface {
	Connect(ctx context.Context) error
	Subscribe(sink EventSink)

	EmitMove(ctx context.Context, dir Direction) (ok bool, x, y int, err error)
	EmitPickup(ctx context.Context) (ok bool, err error)
	EmitPutdown(ctx context.Context) (ok bool, err error)
	EmitSay(ctx context.Context, recipientID string, msg Message) error

	Close() error
}
