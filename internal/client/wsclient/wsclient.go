// Package wsclient implements client.GameClient over a websocket connection
// to the game server, grounded on the teacher's fastview websocket client
// (server/fastview/client.go): a websock wrapper that serializes concurrent
// reads/writes with semaphore channels, a ping/pong liveness loop driven by
// channerics.NewTicker, and an errgroup fanning out the read pump and the
// liveness loop. In place of the teacher's update publisher, a pending-RPC
// correlation table matches each response frame to its waiting call.
package wsclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	channerics "github.com/niceyeti/channerics/channels"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/niceyeti/deliveroo-agent/internal/client"
)

const (
	writeWait      = 2 * time.Second
	maxMessageSize = 1 << 16

	pingResolution = 2 * time.Second
	pongWait       = pingResolution * 4

	rpcTimeout = 5 * time.Second

	readDeadline     = time.Second
	writeDeadline    = time.Second
	closeGracePeriod = 2 * time.Second
)

// ErrPongDeadlineExceeded mirrors the teacher's liveness-check error: the
// server stopped answering pings.
var ErrPongDeadlineExceeded = errors.New("server disconnect, pong deadline exceeded")

// ErrSockCongestion indicates too many concurrent waiters on the socket.
var ErrSockCongestion = errors.New("sock op failed due to congestion")

// frame is the wire envelope for every message exchanged with the game
// server: an event name, an optional correlation id for request/response
// RPCs (EmitMove et al.), and an opaque payload.
type frame struct {
	Event string          `json:"event"`
	ID    uint64          `json:"id,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type moveAck struct {
	OK bool `json:"ok"`
	X  int  `json:"x"`
	Y  int  `json:"y"`
}

type boolAck struct {
	OK bool `json:"ok"`
}

type configPayload struct {
	ParcelDecayIntervalMs      int64   `json:"parcelDecayIntervalMs"`
	ParcelsObservationDistance float64 `json:"parcelsObservationDistance"`
	ParcelRewardAvg            float64 `json:"parcelRewardAvg"`
	ParcelRewardVariance       float64 `json:"parcelRewardVariance"`
}

type mapPayload struct {
	Width  int `json:"width"`
	Height int `json:"height"`
	Tiles  []struct {
		X    int `json:"x"`
		Y    int `json:"y"`
		Type int `json:"type"`
	} `json:"tiles"`
}

type youPayload struct {
	ID    string  `json:"id"`
	X     int     `json:"x"`
	Y     int     `json:"y"`
	Score float64 `json:"score"`
}

type sensingPayload struct {
	Parcels []client.SensedParcel `json:"parcels,omitempty"`
	Agents  []client.SensedAgent  `json:"agents,omitempty"`
}

type msgPayload struct {
	SenderID   string `json:"senderId"`
	SenderName string `json:"senderName"`
	Body       []byte `json:"body"`
}

// Client dials a single game-server connection and implements
// client.GameClient over it.
type Client struct {
	log   zerolog.Logger
	rawURL string
	token string

	sock *websock
	sink client.EventSink

	mu      sync.Mutex
	pending map[uint64]chan json.RawMessage
	nextID  uint64
}

// New constructs a wsclient.Client for rawURL, authenticating with token
// (sent as a query parameter, matching the game server's connection
// handshake per spec.md §6).
func New(log zerolog.Logger, rawURL, token string) *Client {
	return &Client{
		log:     log,
		rawURL:  rawURL,
		token:   token,
		pending: make(map[uint64]chan json.RawMessage),
	}
}

// Subscribe implements client.GameClient.
func (c *Client) Subscribe(sink client.EventSink) {
	c.sink = sink
}

// Connect dials the server and runs the read pump and liveness loop until
// ctx is cancelled or the connection is lost.
func (c *Client) Connect(ctx context.Context) error {
	u, err := url.Parse(c.rawURL)
	if err != nil {
		return fmt.Errorf("parse server url: %w", err)
	}
	q := u.Query()
	q.Set("token", c.token)
	u.RawQuery = q.Encode()

	dialer := websocket.Dialer{HandshakeTimeout: rpcTimeout}
	conn, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial game server: %w", err)
	}
	if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
		_ = conn.Close()
		return fmt.Errorf("unexpected handshake status %d", resp.StatusCode)
	}
	conn.SetReadLimit(maxMessageSize)
	c.sock = newWebsock(conn)

	if c.sink != nil {
		c.sink.OnConnect()
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return c.readPump(groupCtx) })
	group.Go(func() error { return c.pingPong(groupCtx) })

	err = group.Wait()
	if c.sink != nil {
		c.sink.OnDisconnect(err)
	}
	return err
}

func (c *Client) readPump(ctx context.Context) error {
	for {
		var f frame
		err := c.sock.Read(ctx, func(conn *websocket.Conn) error {
			return conn.ReadJSON(&f)
		})
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.dispatch(f)
	}
}

// dispatch routes an inbound frame either to a pending RPC waiter (by ID)
// or to the subscribed EventSink (by Event name).
func (c *Client) dispatch(f frame) {
	if f.ID != 0 {
		c.mu.Lock()
		ch, ok := c.pending[f.ID]
		if ok {
			delete(c.pending, f.ID)
		}
		c.mu.Unlock()
		if ok {
			ch <- f.Data
			return
		}
	}

	if c.sink == nil {
		return
	}

	switch f.Event {
	case "config":
		var p configPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			c.log.Warn().Err(err).Msg("malformed config event")
			return
		}
		c.sink.OnConfig(client.Config{
			ParcelDecayInterval:        time.Duration(p.ParcelDecayIntervalMs) * time.Millisecond,
			ParcelsObservationDistance: p.ParcelsObservationDistance,
			ParcelRewardAvg:            p.ParcelRewardAvg,
			ParcelRewardVariance:       p.ParcelRewardVariance,
		})
	case "map":
		var p mapPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			c.log.Warn().Err(err).Msg("malformed map event")
			return
		}
		tiles := make([]client.RawTile, len(p.Tiles))
		for i, t := range p.Tiles {
			tiles[i] = client.RawTile{X: t.X, Y: t.Y, TypeCode: t.Type}
		}
		c.sink.OnMap(p.Width, p.Height, tiles)
	case "you":
		var p youPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			c.log.Warn().Err(err).Msg("malformed you event")
			return
		}
		c.sink.OnYou(client.You{ID: p.ID, X: p.X, Y: p.Y, Score: p.Score})
	case "parcels_sensing":
		var p sensingPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			c.log.Warn().Err(err).Msg("malformed parcels_sensing event")
			return
		}
		c.sink.OnParcelsSensing(p.Parcels)
	case "agents_sensing":
		var p sensingPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			c.log.Warn().Err(err).Msg("malformed agents_sensing event")
			return
		}
		c.sink.OnAgentsSensing(p.Agents)
	case "msg":
		var p msgPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			c.log.Warn().Err(err).Msg("malformed msg event")
			return
		}
		c.sink.OnMsg(p.SenderID, p.SenderName, client.Message{Body: p.Body})
	default:
		c.log.Debug().Str("event", f.Event).Msg("unhandled event")
	}
}

func (c *Client) pingPong(ctx context.Context) error {
	pong := make(chan struct{}, 1)
	c.sock.Conn().SetPongHandler(func(string) error {
		select {
		case pong <- struct{}{}:
		default:
		}
		return nil
	})

	pinger := channerics.NewTicker(ctx.Done(), pingResolution)
	lastPong := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-pinger:
			if time.Since(lastPong) > pongWait {
				return ErrPongDeadlineExceeded
			}
			if err := c.sock.Write(ctx, func(conn *websocket.Conn) error {
				return conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			}); err != nil {
				return err
			}
		case <-pong:
			lastPong = time.Now()
		}
	}
}

// call sends event with payload data and blocks for its correlated
// response, honoring both ctx and a bounded rpcTimeout (spec.md §6's RPCs
// all complete in bounded time under normal play).
func (c *Client) call(ctx context.Context, event string, data interface{}) (json.RawMessage, error) {
	body, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	id := atomic.AddUint64(&c.nextID, 1)
	ch := make(chan json.RawMessage, 1)
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()

	f := frame{Event: event, ID: id, Data: body}
	if err := c.sock.Write(ctx, func(conn *websocket.Conn) error {
		if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			return err
		}
		return conn.WriteJSON(f)
	}); err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, err
	}

	select {
	case resp := <-ch:
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(rpcTimeout):
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, fmt.Errorf("%s: %w", event, context.DeadlineExceeded)
	}
}

// EmitMove implements client.GameClient.
func (c *Client) EmitMove(ctx context.Context, dir client.Direction) (bool, int, int, error) {
	resp, err := c.call(ctx, "move", struct {
		Direction client.Direction `json:"direction"`
	}{Direction: dir})
	if err != nil {
		return false, 0, 0, err
	}
	var ack moveAck
	if err := json.Unmarshal(resp, &ack); err != nil {
		return false, 0, 0, err
	}
	return ack.OK, ack.X, ack.Y, nil
}

// EmitPickup implements client.GameClient.
func (c *Client) EmitPickup(ctx context.Context) (bool, error) {
	resp, err := c.call(ctx, "pickup", struct{}{})
	if err != nil {
		return false, err
	}
	var ack boolAck
	if err := json.Unmarshal(resp, &ack); err != nil {
		return false, err
	}
	return ack.OK, nil
}

// EmitPutdown implements client.GameClient.
func (c *Client) EmitPutdown(ctx context.Context) (bool, error) {
	resp, err := c.call(ctx, "putdown", struct{}{})
	if err != nil {
		return false, err
	}
	var ack boolAck
	if err := json.Unmarshal(resp, &ack); err != nil {
		return false, err
	}
	return ack.OK, nil
}

// EmitSay implements client.GameClient; say is fire-and-forget so it does
// not wait for a correlated ack.
func (c *Client) EmitSay(ctx context.Context, recipientID string, msg client.Message) error {
	body, err := json.Marshal(struct {
		RecipientID string `json:"recipientId"`
		Body        []byte `json:"body"`
	}{RecipientID: recipientID, Body: msg.Body})
	if err != nil {
		return err
	}
	f := frame{Event: "say", Data: body}
	return c.sock.Write(ctx, func(conn *websocket.Conn) error {
		if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			return err
		}
		return conn.WriteJSON(f)
	})
}

// Close implements client.GameClient.
func (c *Client) Close() error {
	if c.sock == nil {
		return nil
	}
	c.sock.Close()
	return nil
}

// websock serializes reads and writes to the underlying connection, one
// reader and one writer at a time, identical in shape to the teacher's
// fastview websock (server/fastview/client.go).
type websock struct {
	readSem  chan struct{}
	writeSem chan struct{}
	ws       *websocket.Conn
}

func newWebsock(ws *websocket.Conn) *websock {
	return &websock{
		readSem:  make(chan struct{}, 1),
		writeSem: make(chan struct{}, 1),
		ws:       ws,
	}
}

func (s *websock) Conn() *websocket.Conn { return s.ws }

func (s *websock) Close() {
	s.readSem <- struct{}{}
	s.writeSem <- struct{}{}
	_ = s.ws.SetWriteDeadline(time.Now().Add(writeWait))
	_ = s.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	time.Sleep(closeGracePeriod)
	_ = s.ws.Close()
}

func (s *websock) Read(ctx context.Context, fn func(*websocket.Conn) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case s.readSem <- struct{}{}:
		defer func() { <-s.readSem }()
		return fn(s.ws)
	case <-time.After(readDeadline):
		return ErrSockCongestion
	}
}

func (s *websock) Write(ctx context.Context, fn func(*websocket.Conn) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case s.writeSem <- struct{}{}:
		defer func() { <-s.writeSem }()
		return fn(s.ws)
	case <-time.After(writeDeadline):
		return ErrSockCongestion
	}
}
