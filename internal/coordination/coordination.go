// Package coordination implements C8, the multi-agent coordination
// protocol (spec.md §4.8): ignore-list propagation, hand-to-hand role
// election, and delivery-tile negotiation over the game's per-agent `say`
// channel.
package coordination

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/niceyeti/deliveroo-agent/internal/agent"
	"github.com/niceyeti/deliveroo-agent/internal/client"
	"github.com/niceyeti/deliveroo-agent/internal/planerr"
	"github.com/niceyeti/deliveroo-agent/internal/worldmap"
)

// Action discriminates the wire message's payload shape (spec.md §4.8).
type Action string

const (
	ActionMultiPickup       Action = "multi_pickup"
	ActionCompanionPosition Action = "companion_position"
	ActionHand2Hand         Action = "hand2hand"
	ActionDeliveryTile      Action = "delivery_tile"
)

// Envelope wraps every wire message. Seq is a monotonic per-sender counter
// (SPEC_FULL.md §2.3): the protocol still assumes in-order, non-lossy
// delivery per spec.md §4.8, so Seq is diagnostic only — an out-of-order
// arrival is logged, never used to reorder or drop.
type Envelope struct {
	Action Action          `json:"action"`
	Seq    uint64          `json:"seq"`
	Body   json.RawMessage `json:"body"`
}

type multiPickupBody struct {
	ParcelIDs []string `json:"parcelIds"`
}

type companionPositionBody struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type hand2HandBody struct {
	Behavior string `json:"behavior"` // "deliver" | "gather" | "none"
}

type deliveryTileBody struct {
	Status string `json:"status"` // "set" | "error"
	X      int    `json:"x,omitempty"`
	Y      int    `json:"y,omitempty"`
}

// Handler decodes incoming messages and mutates the owning Agent's
// coordination state accordingly. One Handler per agent.
type Handler struct {
	log zerolog.Logger
	a   *agent.Agent

	seq uint64

	mu            sync.Mutex
	lastSeqBySender map[string]uint64
	electOnce     sync.Once
}

// New constructs a Handler for a's coordination state.
func New(log zerolog.Logger, a *agent.Agent) *Handler {
	return &Handler{
		log:             log,
		a:               a,
		lastSeqBySender: make(map[string]uint64),
	}
}

// Handle decodes msg and applies its effect. A returned
// planerr.ErrProtocolViolation is fatal for the worker (spec.md §7); any
// other error is a decode/transient failure the caller should log and
// continue past.
func (h *Handler) Handle(ctx context.Context, senderID, senderName string, msg client.Message) error {
	var env Envelope
	if err := json.Unmarshal(msg.Body, &env); err != nil {
		return fmt.Errorf("decode coordination envelope: %w", err)
	}
	h.trackSeq(senderID, env.Seq)

	switch env.Action {
	case ActionMultiPickup:
		return h.handleMultiPickup(env.Body)
	case ActionCompanionPosition:
		return h.handleCompanionPosition(ctx, senderID, env.Body)
	case ActionHand2Hand:
		return h.handleHand2Hand(ctx, env.Body)
	case ActionDeliveryTile:
		return h.handleDeliveryTile(env.Body)
	default:
		return fmt.Errorf("%w: unknown coordination action %q", planerr.ErrMalformedPredicate, env.Action)
	}
}

func (h *Handler) trackSeq(senderID string, seq uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if last, ok := h.lastSeqBySender[senderID]; ok && seq <= last {
		h.log.Warn().Str("sender", senderID).Uint64("seq", seq).Uint64("last_seq", last).
			Msg("coordination message arrived out of order")
	}
	h.lastSeqBySender[senderID] = seq
}

func (h *Handler) handleMultiPickup(body json.RawMessage) error {
	var b multiPickupBody
	if err := json.Unmarshal(body, &b); err != nil {
		return fmt.Errorf("decode multi_pickup: %w", err)
	}
	h.a.ReplaceIgnoreList(b.ParcelIDs)
	return nil
}

func (h *Handler) handleCompanionPosition(ctx context.Context, senderID string, body json.RawMessage) error {
	var b companionPositionBody
	if err := json.Unmarshal(body, &b); err != nil {
		return fmt.Errorf("decode companion_position: %w", err)
	}

	companionRole := worldmap.RoleFollower
	if h.a.SelfRole() == worldmap.RoleFollower {
		companionRole = worldmap.RoleLeader
	}
	pos := worldmap.Position{X: b.X, Y: b.Y}
	if companionRole == worldmap.RoleLeader {
		h.a.Map().UpdateLeaderPosition(pos)
	} else {
		h.a.Map().UpdateFollowerPosition(pos)
	}

	if h.a.IsLeader() {
		var electErr error
		h.electOnce.Do(func() {
			electErr = h.runElection(ctx, senderID)
		})
		if electErr != nil {
			return electErr
		}
	}
	h.a.SetInitialized(true)
	return nil
}

// runElection implements spec.md §4.8's leader-side role election,
// triggered once by the first companion_position message.
func (h *Handler) runElection(ctx context.Context, companionID string) error {
	pos, err := h.a.CurrentPosition(ctx)
	if err != nil {
		return err
	}

	canDeliver, nearestDepot, err := h.reachableTile(ctx, pos, tileKindDepot)
	if err != nil {
		return err
	}
	canGather, _, err := h.reachableTile(ctx, pos, tileKindSpawn)
	if err != nil {
		return err
	}

	switch {
	case !canDeliver:
		if err := h.sendHand2Hand(ctx, companionID, "deliver"); err != nil {
			return err
		}
		h.a.SetMode(agent.ModeGather)
	case !canGather:
		if err := h.sendHand2Hand(ctx, companionID, "gather"); err != nil {
			return err
		}
		h.a.SetMode(agent.ModeDeliver)
		h.a.SetDepot(nearestDepot)
	default:
		if err := h.sendHand2Hand(ctx, companionID, "none"); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) handleHand2Hand(ctx context.Context, body json.RawMessage) error {
	var b hand2HandBody
	if err := json.Unmarshal(body, &b); err != nil {
		return fmt.Errorf("decode hand2hand: %w", err)
	}

	pos, err := h.a.CurrentPosition(ctx)
	if err != nil {
		return err
	}

	switch b.Behavior {
	case "deliver":
		ok, depot, err := h.reachableTile(ctx, pos, tileKindDepot)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: commanded to deliver with no reachable depot", planerr.ErrProtocolViolation)
		}
		h.a.SetMode(agent.ModeDeliver)
		h.a.SetDepot(depot)
	case "gather":
		ok, _, err := h.reachableTile(ctx, pos, tileKindSpawn)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: commanded to gather with no reachable spawn", planerr.ErrProtocolViolation)
		}
		h.a.SetMode(agent.ModeGather)
	case "none":
		h.a.SetMode(agent.ModeNone)
	default:
		return fmt.Errorf("%w: unknown hand2hand behavior %q", planerr.ErrProtocolViolation, b.Behavior)
	}

	h.a.SetInitialized(true)
	return nil
}

func (h *Handler) handleDeliveryTile(body json.RawMessage) error {
	var b deliveryTileBody
	if err := json.Unmarshal(body, &b); err != nil {
		return fmt.Errorf("decode delivery_tile: %w", err)
	}

	switch b.Status {
	case "set":
		h.a.SetDeliveryTile(worldmap.Position{X: b.X, Y: b.Y})
	case "error":
		h.a.ClearDeliveryTile()
	default:
		return fmt.Errorf("%w: unknown delivery_tile status %q", planerr.ErrMalformedPredicate, b.Status)
	}
	return nil
}

type tileKind int

const (
	tileKindDepot tileKind = iota
	tileKindSpawn
)

// reachableTile answers spec.md §4.8's canDeliver/canGather checks: does a
// depot (or spawn) tile exist that is reachable from pos? It also returns
// the nearest such tile, for SetDepot's use when electing into Deliver.
func (h *Handler) reachableTile(ctx context.Context, pos worldmap.Position, kind tileKind) (bool, worldmap.Position, error) {
	var tiles []worldmap.Tile
	var err error
	switch kind {
	case tileKindDepot:
		tiles, err = h.a.Map().GetDepotTilesAsync(ctx)
	case tileKindSpawn:
		tiles, err = h.a.Map().GetSpawnTilesAsync(ctx)
	}
	if err != nil {
		return false, worldmap.Position{}, err
	}

	var best worldmap.Position
	bestLen := -1
	for _, t := range tiles {
		dest := worldmap.Position{X: t.X, Y: t.Y}
		path, err := h.a.FindPath(ctx, pos, dest)
		if err != nil {
			return false, worldmap.Position{}, err
		}
		if path == nil {
			continue
		}
		if bestLen == -1 || len(path) < bestLen {
			bestLen = len(path)
			best = dest
		}
	}
	return bestLen != -1, best, nil
}

// SendMultiPickup sends spec.md §4.6 step 3's multi_pickup message.
func (h *Handler) SendMultiPickup(ctx context.Context, recipientID string, parcelIDs []string) error {
	body, err := json.Marshal(multiPickupBody{ParcelIDs: parcelIDs})
	if err != nil {
		return err
	}
	return h.send(ctx, recipientID, ActionMultiPickup, body)
}

// SendCompanionPosition sends this agent's own position to recipientID, the
// trigger for the receiver's role election if it is the leader.
func (h *Handler) SendCompanionPosition(ctx context.Context, recipientID string, pos worldmap.Position) error {
	body, err := json.Marshal(companionPositionBody{X: pos.X, Y: pos.Y})
	if err != nil {
		return err
	}
	return h.send(ctx, recipientID, ActionCompanionPosition, body)
}

func (h *Handler) sendHand2Hand(ctx context.Context, recipientID, behavior string) error {
	body, err := json.Marshal(hand2HandBody{Behavior: behavior})
	if err != nil {
		return err
	}
	return h.send(ctx, recipientID, ActionHand2Hand, body)
}

// SendDeliveryTileSet sends the Deliver agent's negotiated tile to the
// Gather agent (spec.md §4.7/§4.8); wired as an options.DeliveryTileHook.
func (h *Handler) SendDeliveryTileSet(ctx context.Context, recipientID string, tile worldmap.Position) error {
	body, err := json.Marshal(deliveryTileBody{Status: "set", X: tile.X, Y: tile.Y})
	if err != nil {
		return err
	}
	return h.send(ctx, recipientID, ActionDeliveryTile, body)
}

// SendDeliveryTileError sends the Gather agent's rejection, forcing the
// Deliver agent to clear and renegotiate.
func (h *Handler) SendDeliveryTileError(ctx context.Context, recipientID string) error {
	body, err := json.Marshal(deliveryTileBody{Status: "error"})
	if err != nil {
		return err
	}
	return h.send(ctx, recipientID, ActionDeliveryTile, body)
}

func (h *Handler) send(ctx context.Context, recipientID string, action Action, body json.RawMessage) error {
	seq := atomic.AddUint64(&h.seq, 1)
	env := Envelope{Action: action, Seq: seq, Body: body}
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return h.a.EmitSay(ctx, recipientID, payload)
}
