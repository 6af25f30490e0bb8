// Package simclient is a scripted, in-memory client.GameClient double used
// to exercise the core against a simulated world without a live game
// server (spec.md §9: "the core is testable against a simulated world").
package simclient

import (
	"context"
	"sync"

	"github.com/niceyeti/deliveroo-agent/internal/client"
)

// MoveResult is the scripted outcome of one EmitMove call.
type MoveResult struct {
	OK   bool
	X, Y int
	Err  error
}

// Client is a GameClient whose RPC responses are pre-scripted and whose
// sensor events are injected by test code calling its Fire* methods.
type Client struct {
	mu sync.Mutex

	sink client.EventSink

	moveResults []MoveResult
	pickupOK    bool
	putdownOK   bool

	sentMessages []sentMessage
	closed       bool
}

type sentMessage struct {
	RecipientID string
	Body        []byte
}

// New constructs a Client defaulting to successful pickup/putdown; queue
// move results with QueueMoveResult before exercising a plan that moves.
func New() *Client {
	return &Client{pickupOK: true, putdownOK: true}
}

// Subscribe implements client.GameClient.
func (c *Client) Subscribe(sink client.EventSink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sink = sink
}

// Connect implements client.GameClient: a no-op, since there is no
// transport to dial.
func (c *Client) Connect(ctx context.Context) error {
	return nil
}

// Close implements client.GameClient.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// QueueMoveResult appends one scripted EmitMove outcome, consumed FIFO.
func (c *Client) QueueMoveResult(r MoveResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.moveResults = append(c.moveResults, r)
}

// SetPickupResult/SetPutdownResult script the next call's outcome.
func (c *Client) SetPickupResult(ok bool)  { c.mu.Lock(); c.pickupOK = ok; c.mu.Unlock() }
func (c *Client) SetPutdownResult(ok bool) { c.mu.Lock(); c.putdownOK = ok; c.mu.Unlock() }

// EmitMove implements client.GameClient, popping the next scripted result.
func (c *Client) EmitMove(ctx context.Context, dir client.Direction) (bool, int, int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.moveResults) == 0 {
		return true, 0, 0, nil
	}
	r := c.moveResults[0]
	c.moveResults = c.moveResults[1:]
	return r.OK, r.X, r.Y, r.Err
}

// EmitPickup implements client.GameClient.
func (c *Client) EmitPickup(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pickupOK, nil
}

// EmitPutdown implements client.GameClient.
func (c *Client) EmitPutdown(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.putdownOK, nil
}

// EmitSay implements client.GameClient, recording the message for
// assertion via SentMessages.
func (c *Client) EmitSay(ctx context.Context, recipientID string, msg client.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sentMessages = append(c.sentMessages, sentMessage{RecipientID: recipientID, Body: msg.Body})
	return nil
}

// SentMessages returns every message handed to EmitSay so far, recipient
// paired with body.
func (c *Client) SentMessages() map[string][][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string][][]byte)
	for _, m := range c.sentMessages {
		out[m.RecipientID] = append(out[m.RecipientID], m.Body)
	}
	return out
}

// FireConnect, FireConfig, FireMap, FireYou, FireParcelsSensing,
// FireAgentsSensing, and FireMsg drive the subscribed EventSink exactly as
// a live game server's callbacks would.
func (c *Client) FireConnect() {
	if s := c.currentSink(); s != nil {
		s.OnConnect()
	}
}

func (c *Client) FireConfig(cfg client.Config) {
	if s := c.currentSink(); s != nil {
		s.OnConfig(cfg)
	}
}

func (c *Client) FireMap(width, height int, tiles []client.RawTile) {
	if s := c.currentSink(); s != nil {
		s.OnMap(width, height, tiles)
	}
}

func (c *Client) FireYou(you client.You) {
	if s := c.currentSink(); s != nil {
		s.OnYou(you)
	}
}

func (c *Client) FireParcelsSensing(parcels []client.SensedParcel) {
	if s := c.currentSink(); s != nil {
		s.OnParcelsSensing(parcels)
	}
}

func (c *Client) FireAgentsSensing(agents []client.SensedAgent) {
	if s := c.currentSink(); s != nil {
		s.OnAgentsSensing(agents)
	}
}

func (c *Client) FireMsg(senderID, senderName string, msg client.Message) {
	if s := c.currentSink(); s != nil {
		s.OnMsg(senderID, senderName, msg)
	}
}

func (c *Client) currentSink() client.EventSink {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sink
}

var _ client.GameClient = (*Client)(nil)
