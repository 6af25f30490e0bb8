// Package worker wires one agent's full collaborator graph together and
// runs it to completion: the observer, the agent and its intention loop,
// the option generator, and the coordination handler, plus the periodic
// tickers that drive option generation and companion-position broadcast
// (spec.md §4.6, §4.7, §4.8).
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	channerics "github.com/niceyeti/channerics/channels"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/niceyeti/deliveroo-agent/internal/agent"
	"github.com/niceyeti/deliveroo-agent/internal/client"
	"github.com/niceyeti/deliveroo-agent/internal/coordination"
	"github.com/niceyeti/deliveroo-agent/internal/events"
	"github.com/niceyeti/deliveroo-agent/internal/observer"
	"github.com/niceyeti/deliveroo-agent/internal/options"
	"github.com/niceyeti/deliveroo-agent/internal/pddl"
	"github.com/niceyeti/deliveroo-agent/internal/plan"
	"github.com/niceyeti/deliveroo-agent/internal/planerr"
	"github.com/niceyeti/deliveroo-agent/internal/worldmap"
)

// Config is the subset of process configuration a single worker needs
// (spec.md §6); cmd/deliveroo builds one of these per agent from the
// shared config.Config.
type Config struct {
	OptionGenerationInterval time.Duration
	MaxCarriedParcels        int
	MaxDistanceForRandomMove float64
	MaxRetryCommonDelivery   int

	// PDDLEnabled substitutes the symbolic replanner (plan.GoToPDDLFactory)
	// for the default GoTo plan; PDDLSolverPath/PDDLProblemDir configure it.
	PDDLEnabled    bool
	PDDLSolverPath string
	PDDLProblemDir string
}

// Worker owns one agent's collaborator graph end to end.
type Worker struct {
	log zerolog.Logger

	wm    *worldmap.Map
	obs   *observer.Observer
	gc    client.GameClient
	agent *agent.Agent
	coord *coordination.Handler

	dualAgent bool

	mu          sync.RWMutex
	companionID string
	cfg         Config
}

// New constructs a Worker for one game-client connection. selfID and
// companionID are placeholders, usually empty, for callers that don't yet
// know them; dualAgent records whether a companion is expected at all, so
// Run knows to start the companion-position broadcast even before the
// bootstrap rendezvous (see SetCompanionID) supplies the real id.
func New(
	log zerolog.Logger,
	selfID, companionID string,
	selfRole worldmap.Role,
	isLeader bool,
	dualAgent bool,
	gc client.GameClient,
	cfg Config,
) *Worker {
	wm := worldmap.New()
	obs := observer.New(log, wm, selfID, companionID, selfRole)

	library := plan.DefaultLibrary()
	if cfg.PDDLEnabled {
		solver := pddl.ExecSolver{BinPath: cfg.PDDLSolverPath}
		library = plan.LibraryWithPDDL(wm, selfRole, solver, cfg.PDDLProblemDir)
	}
	ag := agent.New(log, selfID, companionID, selfRole, isLeader, wm, obs, gc, library, agent.Config{
		MaxCarriedParcels: cfg.MaxCarriedParcels,
	})
	coord := coordination.New(log, ag)

	if !dualAgent {
		// Single-agent mode has no companion_position/hand2hand handshake
		// to wait on (spec.md's initialized flag is only ever set by those
		// handlers), so there is nothing to gate the intention loop on.
		ag.SetInitialized(true)
	}

	w := &Worker{
		log:         log,
		wm:          wm,
		obs:         obs,
		gc:          gc,
		agent:       ag,
		coord:       coord,
		dualAgent:   dualAgent,
		companionID: companionID,
		cfg:         cfg,
	}

	gc.Subscribe(obs)
	obs.SetMessageHandler(w.handleMessage)
	ag.SetPickupOrderHook(w.onPickupOrderChanged)

	return w
}

// Agent exposes the underlying Agent for a debug view to attach to.
func (w *Worker) Agent() *agent.Agent { return w.agent }

// SelfID awaits this worker's own onYou event and returns the id it
// carried, syncing it onto the Agent (the observer updates itself from
// onYou directly; the Agent does not observe that event, so this is the
// one place the two are kept consistent). Used for the bootstrap
// rendezvous that pairs two workers together once both are connected.
func (w *Worker) SelfID(ctx context.Context) (string, error) {
	id, err := w.obs.SelfID(ctx)
	if err != nil {
		return "", err
	}
	w.agent.SetID(id)
	return id, nil
}

// SetCompanionID late-binds the teammate's id once learned, propagating it
// to the observer and agent so every collaborator agrees on who "the
// companion" is. In dual-agent mode it may be called while Run is already
// running: until the id is set, the companion-position broadcast skips its
// ticks.
func (w *Worker) SetCompanionID(id string) {
	w.mu.Lock()
	w.companionID = id
	w.mu.Unlock()
	w.obs.SetCompanionID(id)
	w.agent.SetCompanionID(id)
}

func (w *Worker) currentCompanionID() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.companionID
}

func (w *Worker) handleMessage(senderID, senderName string, msg client.Message) {
	err := w.coord.Handle(context.Background(), senderID, senderName, msg)
	if err == nil {
		return
	}
	if errors.Is(err, planerr.ErrProtocolViolation) {
		w.log.Fatal().Err(err).Str("sender_id", senderID).Str("sender_name", senderName).
			Msg("coordination protocol violation")
		return
	}
	w.log.Warn().Err(err).Str("sender_id", senderID).Msg("coordination message handling failed")
}

func (w *Worker) onPickupOrderChanged(ctx context.Context, parcelIDs []string) {
	companionID := w.currentCompanionID()
	if companionID == "" {
		return
	}
	if err := w.coord.SendMultiPickup(ctx, companionID, parcelIDs); err != nil {
		w.log.Warn().Err(err).Msg("failed to send multi_pickup")
	}
}

func (w *Worker) onDeliveryTile(ctx context.Context, tile worldmap.Position) {
	companionID := w.currentCompanionID()
	if companionID == "" {
		return
	}
	if err := w.coord.SendDeliveryTileSet(ctx, companionID, tile); err != nil {
		w.log.Warn().Err(err).Msg("failed to send delivery_tile")
	}
}

// onDeliveryTileError implements the Gather side of spec.md §4.7/§4.8's
// delivery_tile negotiation: the tile it was given has gone unreachable, so
// tell the Deliverer to drop it and try again.
func (w *Worker) onDeliveryTileError(ctx context.Context) {
	companionID := w.currentCompanionID()
	if companionID == "" {
		return
	}
	if err := w.coord.SendDeliveryTileError(ctx, companionID); err != nil {
		w.log.Warn().Err(err).Msg("failed to send delivery_tile error")
	}
}

// Run connects the game client and runs the agent loop, the option
// generator, and (in dual-agent mode) the companion-position broadcast
// until ctx is cancelled or any one fails.
func (w *Worker) Run(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		return w.gc.Connect(ctx)
	})
	eg.Go(func() error {
		return w.agent.Run(ctx)
	})
	eg.Go(func() error {
		return w.runOptionLoop(ctx)
	})
	if w.dualAgent {
		eg.Go(func() error {
			return w.runCompanionPositionBroadcast(ctx)
		})
	}

	return eg.Wait()
}

// runOptionLoop implements spec.md §4.7's trigger condition: regenerate
// options on every sense event and on a fixed interval timer, fanned in
// with channerics.Merge the way the teacher fans in its view-update
// channels (server/root_view/root_view.go's fanIn).
func (w *Worker) runOptionLoop(ctx context.Context) error {
	senseCh := make(chan events.Event, 16)
	w.obs.SetSenseHook(func() {
		select {
		case senseCh <- events.Event{}:
		default:
		}
	})

	tickCh := channerics.NewTicker(ctx.Done(), w.cfg.OptionGenerationInterval)
	tickEvents := channerics.Convert(ctx.Done(), tickCh, func(time.Time) events.Event {
		return events.Event{}
	})

	optCfg := options.Config{
		MaxDistanceForRandomMove: w.cfg.MaxDistanceForRandomMove,
		MaxRetryCommonDelivery:   w.cfg.MaxRetryCommonDelivery,
	}

	for range channerics.Merge(ctx.Done(), (<-chan events.Event)(senseCh), tickEvents) {
		if !w.agent.Initialized() {
			continue
		}
		if err := options.Generate(ctx, w.agent, optCfg, w.onDeliveryTile, w.onDeliveryTileError); err != nil {
			w.log.Warn().Err(err).Msg("option generation failed")
		}
	}
	return ctx.Err()
}

// runCompanionPositionBroadcast periodically sends this agent's current
// position to its companion, the trigger for the companion's leader-side
// role election (spec.md §4.8).
func (w *Worker) runCompanionPositionBroadcast(ctx context.Context) error {
	tick := channerics.NewTicker(ctx.Done(), w.cfg.OptionGenerationInterval)
	for range tick {
		companionID := w.currentCompanionID()
		if companionID == "" {
			// Bootstrap rendezvous (SetCompanionID) hasn't completed yet.
			continue
		}
		pos, err := w.agent.CurrentPosition(ctx)
		if err != nil {
			continue
		}
		if err := w.coord.SendCompanionPosition(ctx, companionID, pos); err != nil {
			w.log.Warn().Err(err).Msg("failed to send companion_position")
		}
	}
	return ctx.Err()
}
