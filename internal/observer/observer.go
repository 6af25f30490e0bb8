// Package observer implements the world-state observer (spec.md §4.2):
// it subscribes to a client.GameClient's sensor callbacks and translates
// them into worldmap.Map updates. spec.md describes it as "a single shared
// instance"; per spec.md §9's design note this is reified as an explicit
// collaborator constructed once per agent and injected wherever it's
// needed, never a package-level singleton.
package observer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/niceyeti/deliveroo-agent/internal/client"
	"github.com/niceyeti/deliveroo-agent/internal/planerr"
	"github.com/niceyeti/deliveroo-agent/internal/worldmap"
)

// MessageHandler is invoked for every onMsg event, letting
// internal/coordination own action-discriminated decoding without the
// observer importing it (avoids an import cycle; the worker wires them
// together).
type MessageHandler func(senderID, senderName string, msg client.Message)

// Observer is the process-wide (per-agent) world-state observer.
type Observer struct {
	log zerolog.Logger
	wm  *worldmap.Map

	selfID      string
	companionID string
	selfRole    worldmap.Role

	mu      sync.RWMutex
	cfg     client.Config
	you     client.You
	haveYou bool
	ready   chan struct{}
	readyOnce sync.Once

	onMsg   MessageHandler
	onSense func()
}

// SetSenseHook installs a callback fired after every parcels/agents sensing
// event, letting the worker fan sense events into its option-generation
// mailbox channel without this package importing internal/events.
func (o *Observer) SetSenseHook(h func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onSense = h
}

func (o *Observer) fireSenseHook() {
	o.mu.RLock()
	h := o.onSense
	o.mu.RUnlock()
	if h != nil {
		h()
	}
}

// New constructs an Observer bound to wm. selfRole is this agent's own
// role (leader or follower); companionID is the teammate's agent id, or
// empty in single-agent mode.
func New(log zerolog.Logger, wm *worldmap.Map, selfID, companionID string, selfRole worldmap.Role) *Observer {
	return &Observer{
		log:         log,
		wm:          wm,
		selfID:      selfID,
		companionID: companionID,
		selfRole:    selfRole,
		ready:       make(chan struct{}),
	}
}

// SetMessageHandler installs the callback invoked for every onMsg event.
func (o *Observer) SetMessageHandler(h MessageHandler) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onMsg = h
}

// Config returns the last onConfig payload received.
func (o *Observer) Config() client.Config {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.cfg
}

// GetCurrentPosition awaits the first onYou event, per spec.md §5's
// "getCurrentPosition busy-yields until the first onYou arrives" — mapped
// here to a channel wait rather than a spin loop (spec.md §9's Go mapping).
func (o *Observer) GetCurrentPosition(ctx context.Context) (worldmap.Position, error) {
	select {
	case <-o.ready:
	case <-ctx.Done():
		return worldmap.Position{}, ctx.Err()
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	return worldmap.Position{X: o.you.X, Y: o.you.Y}, nil
}

// OnConnect implements client.EventSink.
func (o *Observer) OnConnect() {
	o.log.Info().Msg("connected")
}

// OnDisconnect implements client.EventSink.
func (o *Observer) OnDisconnect(err error) {
	o.log.Warn().Err(err).Msg("disconnected")
}

// OnConfig implements client.EventSink; it captures the world-config
// constants spec.md §4.2 lists (decay interval, observation distance,
// reward distribution).
func (o *Observer) OnConfig(cfg client.Config) {
	o.mu.Lock()
	o.cfg = cfg
	o.mu.Unlock()
	o.log.Debug().
		Dur("parcel_decay_interval", cfg.ParcelDecayInterval).
		Float64("parcels_observation_distance", cfg.ParcelsObservationDistance).
		Msg("config received")
}

// tileTypeFromCode maps onMap's raw type codes per spec.md §4.2:
// 0→Wall, 1→Spawn, 2→Depot, 3/4/5→Other; any other code is a hard error.
func tileTypeFromCode(code int) (worldmap.TileType, error) {
	switch code {
	case 0:
		return worldmap.Wall, nil
	case 1:
		return worldmap.Spawn, nil
	case 2:
		return worldmap.Depot, nil
	case 3, 4, 5:
		return worldmap.Other, nil
	default:
		return 0, fmt.Errorf("%w: code %d", planerr.ErrUnknownTileType, code)
	}
}

// OnMap implements client.EventSink, building the initial map. An unknown
// tile type code is fatal at map initialization (spec.md §4.2, §7).
func (o *Observer) OnMap(width, height int, raw []client.RawTile) {
	tiles := make([]worldmap.Tile, len(raw))
	for i, rt := range raw {
		tt, err := tileTypeFromCode(rt.TypeCode)
		if err != nil {
			o.log.Fatal().Err(err).Int("x", rt.X).Int("y", rt.Y).Msg("unknown tile type at map init")
			return
		}
		tiles[i] = worldmap.Tile{X: rt.X, Y: rt.Y, Type: tt}
	}

	if err := o.wm.SetTiles(width, height, tiles); err != nil {
		o.log.Fatal().Err(err).Msg("failed to install map")
		return
	}
	o.log.Info().Int("width", width).Int("height", height).Msg("map initialized")
}

// OnYou implements client.EventSink. The server's onYou payload is the
// authoritative source of this agent's own id — selfID passed to New is
// only a placeholder for callers that don't yet know it (the normal case
// for a freshly-dialed connection, since the id isn't known until this
// first event arrives).
func (o *Observer) OnYou(you client.You) {
	o.mu.Lock()
	o.you = you
	o.haveYou = true
	o.selfID = you.ID
	o.mu.Unlock()
	o.readyOnce.Do(func() { close(o.ready) })
}

// SelfID awaits the first onYou event and returns the id it carried.
func (o *Observer) SelfID(ctx context.Context) (string, error) {
	select {
	case <-o.ready:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.selfID, nil
}

// SetCompanionID late-binds the teammate's id once learned (spec.md §9's
// two tokens each resolve to an id only after that connection's own onYou
// fires, so the pairing must be completed after both are connected rather
// than at construction time).
func (o *Observer) SetCompanionID(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.companionID = id
}

func (o *Observer) currentSelfID() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.selfID
}

func (o *Observer) currentCompanionID() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.companionID
}

// OnParcelsSensing implements client.EventSink: timestamp with now, build
// Parcel objects for those not carried, forward to updateParcels.
func (o *Observer) OnParcelsSensing(parcels []client.SensedParcel) {
	now := time.Now()
	decay := o.Config().ParcelDecayInterval
	selfID := o.currentSelfID()

	out := make([]worldmap.Parcel, 0, len(parcels))
	for _, sp := range parcels {
		if sp.CarriedBy != "" {
			if sp.CarriedBy == selfID {
				// Our own carried parcel; the agent's carry state tracks
				// this (spec.md §3), the belief map never does.
				continue
			}
			continue
		}
		out = append(out, worldmap.Parcel{
			ID:        sp.ID,
			X:         sp.X,
			Y:         sp.Y,
			Reward:    sp.Reward,
			Timestamp: now,
		})
	}
	o.wm.UpdateParcels(out, now, decay)
	o.fireSenseHook()
}

// OnAgentsSensing implements client.EventSink: own-team observations
// (self or companion) update positions, everyone else becomes an
// adversary record (spec.md §4.2, §3).
func (o *Observer) OnAgentsSensing(agents []client.SensedAgent) {
	now := time.Now()
	var adversaries []worldmap.AdversaryAgent
	selfID, companionID := o.currentSelfID(), o.currentCompanionID()

	for _, a := range agents {
		switch a.ID {
		case selfID:
			// Redundant with onYou in most deployments; onYou remains the
			// source of truth for "am I ready", this just refreshes position.
			o.mu.Lock()
			o.you.X, o.you.Y = a.X, a.Y
			o.mu.Unlock()
		case companionID:
			companionRole := worldmap.RoleFollower
			if o.selfRole == worldmap.RoleFollower {
				companionRole = worldmap.RoleLeader
			}
			pos := worldmap.Position{X: a.X, Y: a.Y}
			if companionRole == worldmap.RoleLeader {
				o.wm.UpdateLeaderPosition(pos)
			} else {
				o.wm.UpdateFollowerPosition(pos)
			}
		default:
			adversaries = append(adversaries, worldmap.AdversaryAgent{
				ID: a.ID, X: a.X, Y: a.Y, Timestamp: now,
			})
		}
	}

	if len(adversaries) > 0 {
		o.wm.UpdateAdversaryAgents(adversaries)
	}
	o.fireSenseHook()
}

// OnMsg implements client.EventSink, forwarding to the installed
// MessageHandler (internal/coordination), if any.
func (o *Observer) OnMsg(senderID, senderName string, msg client.Message) {
	o.mu.RLock()
	h := o.onMsg
	o.mu.RUnlock()
	if h != nil {
		h(senderID, senderName, msg)
	}
}
