// Package debugserver serves a single page per agent rendering its current
// belief state, adapted from the teacher's server.Server
// (server/server.go): one websocket per page, a ping/pong liveness loop,
// and a throttled publish loop. Route dispatch here uses gorilla/mux in
// place of the teacher's bare http.HandleFunc, since a per-agent deployment
// needs named routes ("/", "/ws", "/healthz") rather than the teacher's
// single hard-coded page.
package debugserver

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	channerics "github.com/niceyeti/channerics/channels"
	"github.com/rs/zerolog"

	"github.com/niceyeti/deliveroo-agent/internal/agent"
	"github.com/niceyeti/deliveroo-agent/internal/debugview"
	"github.com/niceyeti/deliveroo-agent/internal/predicate"
	"github.com/niceyeti/deliveroo-agent/internal/worldmap"
)

const (
	writeWait        = time.Second
	pubResolution    = 200 * time.Millisecond
	pingResolution   = 500 * time.Millisecond
	pongWait         = pingResolution * 10
	closeGracePeriod = 2 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server serves one agent's debug page.
type Server struct {
	log  zerolog.Logger
	addr string
	wm   *worldmap.Map
	a    *agent.Agent
	mux  *mux.Router
}

// New builds a Server rendering wm/a's state at addr (e.g. ":8090").
func New(log zerolog.Logger, addr string, wm *worldmap.Map, a *agent.Agent) *Server {
	s := &Server{log: log, addr: addr, wm: wm, a: a, mux: mux.NewRouter()}
	s.mux.HandleFunc("/", s.serveIndex).Methods(http.MethodGet)
	s.mux.HandleFunc("/ws", s.serveWebsocket).Methods(http.MethodGet)
	s.mux.HandleFunc("/healthz", s.serveHealthz).Methods(http.MethodGet)
	s.mux.HandleFunc("/intention", s.servePushIntention).Methods(http.MethodPost)
	return s
}

// Serve blocks serving HTTP on s.addr until ctx is cancelled or
// ListenAndServe fails.
func (s *Server) Serve(ctx context.Context) error {
	httpSrv := &http.Server{Addr: s.addr, Handler: s.mux}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), closeGracePeriod)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return fmt.Errorf("debugserver: %w", err)
	}
}

func (s *Server) serveHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	snap, err := debugview.Build(r.Context(), s.wm, s.a)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	tmpl, err := template.New("index").Parse(indexTemplate)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := tmpl.Execute(w, snap); err != nil {
		s.log.Warn().Err(err).Msg("failed to render debug index")
	}
}

// servePushIntention is an operator escape hatch: decode a wire-tuple
// predicate.Raw from the request body via predicate.Parse (spec.md §4.4's
// parsePredicate) and push it onto the agent's own queue, the same path the
// option generator uses, for manually nudging a stuck agent during
// debugging without needing a typed Go call.
func (s *Server) servePushIntention(w http.ResponseWriter, r *http.Request) {
	var raw predicate.Raw
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	pred, err := predicate.Parse(raw)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.a.Push(r.Context(), pred)
	w.WriteHeader(http.StatusAccepted)
}

// serveWebsocket pushes debugview.Snapshot updates at pubResolution,
// mirroring the teacher's publishEleUpdates but publishing a JSON snapshot
// instead of an EleUpdate batch.
func (s *Server) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	pong := make(chan struct{}, 1)
	conn.SetPongHandler(func(string) error {
		select {
		case pong <- struct{}{}:
		default:
		}
		return nil
	})

	pinger := channerics.NewTicker(ctx.Done(), pingResolution)
	publisher := channerics.NewTicker(ctx.Done(), pubResolution)
	lastPong := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case <-pinger:
			if time.Since(lastPong) > pongWait {
				return
			}
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-pong:
			lastPong = time.Now()
		case <-publisher:
			snap, err := debugview.Build(ctx, s.wm, s.a)
			if err != nil {
				continue
			}
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			b, err := json.Marshal(snap)
			if err != nil {
				s.log.Warn().Err(err).Msg("failed to marshal debug snapshot")
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		}
	}
}

const indexTemplate = `<!DOCTYPE html>
<html>
<head><title>agent debug view</title>
<style>
body { font-family: monospace; background: #111; color: #ddd; }
table { border-collapse: collapse; }
td { width: 1.4em; height: 1.4em; text-align: center; border: 1px solid #333; }
</style>
</head>
<body>
<div>mode: {{.Mode}} | queue: {{.QueueLen}} | carrying: {{.CarriedCount}}</div>
<table>
{{range .Cells}}<tr>{{range .}}<td>{{printf "%c" .Symbol}}</td>{{end}}</tr>
{{end}}
</table>
<script>
const ws = new WebSocket("ws://" + location.host + "/ws");
ws.onmessage = (ev) => {
  const snap = JSON.parse(ev.data);
  document.querySelector("div").textContent =
    "mode: " + snap.Mode + " | queue: " + snap.QueueLen + " | carrying: " + snap.CarriedCount;
};
</script>
</body>
</html>
`
