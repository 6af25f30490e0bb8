// Package agent implements C6, the Agent: intention queue, priority sort,
// the loop that consumes intentions, and the agent's own position/carry
// state (spec.md §3, §4.6). Per spec.md §9's design note, this is a
// per-worker collaborator constructed once and injected into plans via
// intention.AgentContext — never a module-level singleton.
package agent

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/niceyeti/deliveroo-agent/internal/client"
	"github.com/niceyeti/deliveroo-agent/internal/intention"
	"github.com/niceyeti/deliveroo-agent/internal/observer"
	"github.com/niceyeti/deliveroo-agent/internal/pathfinder"
	"github.com/niceyeti/deliveroo-agent/internal/predicate"
	"github.com/niceyeti/deliveroo-agent/internal/worldmap"
)

// Mode is the hand-to-hand behavior the option generator consults
// (spec.md §3's hand2HandMode).
type Mode int

const (
	ModeNone Mode = iota
	ModeGather
	ModeDeliver
)

func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeGather:
		return "gather"
	case ModeDeliver:
		return "deliver"
	default:
		return "unknown"
	}
}

// Config is the subset of the process configuration the agent loop and
// option generator need (spec.md §6).
type Config struct {
	MaxCarriedParcels int
}

// Agent is C6: the single per-worker owner of the intention queue, carry
// state, and hand-to-hand coordination flags.
type Agent struct {
	log     zerolog.Logger
	id      string
	companionID string
	selfRole worldmap.Role
	isLeader bool

	wm  *worldmap.Map
	pf  *pathfinder.Finder
	obs *observer.Observer
	gc  client.GameClient

	library []intention.PlanFactory
	cfg     Config

	mu                 sync.Mutex
	carriedParcelCount int
	hand2Hand          Mode
	depot              *worldmap.Position
	deliveryTile       *worldmap.Position
	parcelsToIgnore    map[string]bool
	queue              []*intention.Intention
	initialized        bool
	tilesToAvoid       map[worldmap.Position]bool
	retryCommonDelivery int
	onPickupOrderChanged func(ctx context.Context, parcelIDs []string)
}

// New constructs an Agent for one worker. selfRole/isLeader/companionID
// encode this worker's place in the (optional) two-agent deployment;
// companionID is empty in single-agent mode.
func New(
	log zerolog.Logger,
	id string,
	companionID string,
	selfRole worldmap.Role,
	isLeader bool,
	wm *worldmap.Map,
	obs *observer.Observer,
	gc client.GameClient,
	library []intention.PlanFactory,
	cfg Config,
) *Agent {
	return &Agent{
		log:             log,
		id:              id,
		companionID:     companionID,
		selfRole:        selfRole,
		isLeader:        isLeader,
		wm:              wm,
		pf:              pathfinder.New(wm),
		obs:             obs,
		gc:              gc,
		library:         library,
		cfg:             cfg,
		parcelsToIgnore: make(map[string]bool),
		tilesToAvoid:    make(map[worldmap.Position]bool),
	}
}

func (a *Agent) ID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.id
}

// SetID late-binds this agent's own id once learned from the server's
// onYou event; the id passed to New is only a placeholder for callers
// that don't yet know it (the normal case for a freshly-dialed connection).
func (a *Agent) SetID(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.id = id
}

func (a *Agent) CompanionID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.companionID
}

// SetCompanionID late-binds the teammate's id once learned, mirroring
// observer.Observer.SetCompanionID; the pairing completes after both
// connections' own onYou events have fired rather than at construction.
func (a *Agent) SetCompanionID(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.companionID = id
}

func (a *Agent) SelfRole() worldmap.Role { return a.selfRole }
func (a *Agent) IsLeader() bool      { return a.isLeader }
func (a *Agent) Map() *worldmap.Map  { return a.wm }
func (a *Agent) Pathfinder() *pathfinder.Finder { return a.pf }

func (a *Agent) Mode() Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.hand2Hand
}

func (a *Agent) SetMode(m Mode) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.hand2Hand = m
}

func (a *Agent) Depot() (worldmap.Position, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.depot == nil {
		return worldmap.Position{}, false
	}
	return *a.depot, true
}

func (a *Agent) SetDepot(p worldmap.Position) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.depot = &p
}

func (a *Agent) DeliveryTile() (worldmap.Position, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.deliveryTile == nil {
		return worldmap.Position{}, false
	}
	return *a.deliveryTile, true
}

func (a *Agent) SetDeliveryTile(p worldmap.Position) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.deliveryTile = &p
}

func (a *Agent) ClearDeliveryTile() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.deliveryTile = nil
}

// RetryCommonDeliveryCount and IncrementRetryCommonDelivery back the
// option generator's MAX_RETRY_COMMON_DELIVERY gate (spec.md §4.7).
func (a *Agent) RetryCommonDeliveryCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.retryCommonDelivery
}

func (a *Agent) IncrementRetryCommonDelivery() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.retryCommonDelivery++
}

// ReplaceIgnoreList implements the multi_pickup message's effect: the
// receiver's parcelsToIgnore is wholesale replaced (spec.md §4.8).
func (a *Agent) ReplaceIgnoreList(ids []string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.parcelsToIgnore = make(map[string]bool, len(ids))
	for _, id := range ids {
		a.parcelsToIgnore[id] = true
	}
}

func (a *Agent) IsIgnored(parcelID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.parcelsToIgnore[parcelID]
}

func (a *Agent) Initialized() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.initialized
}

func (a *Agent) SetInitialized(v bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.initialized = v
}

// IsTileAvoided and AddTileToAvoid back findCommonDeliveryTile's
// TILES_TO_AVOID set. Per spec.md §9's Open Question resolution it is
// never reset for the agent's lifetime (module-global in the original,
// here scoped to this Agent instance rather than a package-level var).
func (a *Agent) IsTileAvoided(p worldmap.Position) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tilesToAvoid[p]
}

func (a *Agent) AddTileToAvoid(p worldmap.Position) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tilesToAvoid[p] = true
}

func (a *Agent) CarriedParcelCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.carriedParcelCount
}

func (a *Agent) IsCarrying() bool {
	return a.CarriedParcelCount() > 0
}

func (a *Agent) IsCarrySaturated() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.carriedParcelCount >= a.cfg.MaxCarriedParcels
}

// --- intention.AgentContext ---

func (a *Agent) CurrentPosition(ctx context.Context) (worldmap.Position, error) {
	return a.obs.GetCurrentPosition(ctx)
}

// FindPath is the intention.AgentContext entry point plans and the option
// generator route real movement through; it always excludes the
// companion's tile from the walkable set (spec.md §3's default
// withAgents=false), never the PDDL belief-set export's full-tile view.
func (a *Agent) FindPath(ctx context.Context, start, end worldmap.Position) ([]worldmap.Position, error) {
	return a.pf.FindPath(ctx, a.selfRole, start, end, false)
}

func (a *Agent) EmitMove(ctx context.Context, dir client.Direction) (bool, int, int, error) {
	return a.gc.EmitMove(ctx, dir)
}

func (a *Agent) EmitPickup(ctx context.Context) (bool, error) {
	return a.gc.EmitPickup(ctx)
}

func (a *Agent) EmitPutdown(ctx context.Context) (bool, error) {
	return a.gc.EmitPutdown(ctx)
}

// PickedUpParcel implements spec.md §4.4's GoPickUp completion hook:
// increment carriedParcelCount and remove the parcel from the map.
func (a *Agent) PickedUpParcel(id string) {
	a.mu.Lock()
	a.carriedParcelCount++
	a.mu.Unlock()
	a.wm.ParcelPickedUp(id)
	a.log.Debug().Str("parcel_id", id).Msg("picked up parcel")
}

// DroppedAllParcels implements spec.md §4.4's GoDropOff completion hook.
func (a *Agent) DroppedAllParcels() {
	a.mu.Lock()
	a.carriedParcelCount = 0
	a.mu.Unlock()
	a.log.Debug().Msg("dropped all parcels")
}

// EmitSay sends a coordination message to recipientID (spec.md §4.8);
// internal/coordination builds the payload, this just forwards the RPC.
func (a *Agent) EmitSay(ctx context.Context, recipientID string, payload []byte) error {
	return a.gc.EmitSay(ctx, recipientID, client.Message{Body: payload})
}

var _ intention.AgentContext = (*Agent)(nil)

// NewIntention wraps pred as a top-level (parent-less) intention against
// this agent's plan library, for the agent loop to Achieve.
func (a *Agent) NewIntention(pred predicate.Predicate) *intention.Intention {
	return intention.New(pred, nil, a.library, a)
}
