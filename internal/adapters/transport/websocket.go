// Package transport provides the reliable point-to-point network layer
// between host and peers over websocket. It emits connection events only;
// gameplay payloads are out of scope.
package transport

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/playroom/internal/core"
	"github.com/dkeye/playroom/internal/domain"
)

const (
	dialTimeout     = 5 * time.Second
	shutdownTimeout = 3 * time.Second
)

type mode int

const (
	modeIdle mode = iota
	modeHost
	modeClient
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Config describes the local endpoint and participant.
type Config struct {
	ListenAddr  string
	Identity    domain.Identity
	DisplayName string
}

// Adapter is a core.Transport over websocket: the host runs an http listener,
// clients dial it. One adapter serves one participant.
type Adapter struct {
	cfg Config

	mu       sync.Mutex
	sink     core.Sink
	mode     mode
	srv      *http.Server
	ln       net.Listener
	conns    map[uint64]*peerConn
	nextConn uint64
}

type peerConn struct {
	id   uint64
	conn *websocket.Conn

	mu     sync.Mutex
	closed bool
}

func (p *peerConn) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	_ = p.conn.Close()
}

func New(cfg Config) *Adapter {
	return &Adapter{
		cfg:   cfg,
		conns: make(map[uint64]*peerConn),
	}
}

func (a *Adapter) Bind(sink core.Sink) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sink = sink
}

func (a *Adapter) Unbind() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sink = nil
}

func (a *Adapter) dispatch(ev core.Event) {
	a.mu.Lock()
	sink := a.sink
	a.mu.Unlock()
	if sink == nil {
		return
	}
	sink.Dispatch(ev)
}

// StartHost begins listening. ServerStarted fires once the listener is up;
// no peer is implied connected yet.
func (a *Adapter) StartHost() error {
	a.mu.Lock()
	if a.mode != modeIdle {
		a.mu.Unlock()
		return core.ErrAlreadyRunning
	}

	ln, err := net.Listen("tcp", a.cfg.ListenAddr)
	if err != nil {
		a.mu.Unlock()
		log.Error().Err(err).Str("module", "transport").Str("addr", a.cfg.ListenAddr).Msg("listen")
		return core.ErrBindFailed
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/transport", a.handleAccept)
	srv := &http.Server{Handler: mux}
	a.srv = srv
	a.ln = ln
	a.mode = modeHost
	a.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Str("module", "transport").Msg("serve")
		}
	}()

	log.Info().Str("module", "transport").Str("addr", ln.Addr().String()).Msg("hosting")
	a.dispatch(core.ServerStarted{Addr: ln.Addr().String()})
	return nil
}

func (a *Adapter) handleAccept(w http.ResponseWriter, r *http.Request) {
	identity := domain.Identity(r.URL.Query().Get("identity"))
	name := r.URL.Query().Get("name")
	if identity == "" {
		http.Error(w, "missing identity", http.StatusBadRequest)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "transport").Msg("upgrade")
		return
	}

	a.mu.Lock()
	if a.mode != modeHost {
		a.mu.Unlock()
		_ = ws.Close()
		return
	}
	a.nextConn++
	pc := &peerConn{id: a.nextConn, conn: ws}
	a.conns[pc.id] = pc
	a.mu.Unlock()

	log.Info().Str("module", "transport").Uint64("conn", pc.id).Str("identity", string(identity)).Msg("peer accepted")
	a.dispatch(core.ClientConnected{ConnID: pc.id, Identity: identity, DisplayName: name})
	go a.readPump(pc)
}

// StartClient dials the host. Fails fast when the target is not set; this is
// the guard against starting a client before the host's address is known.
func (a *Adapter) StartClient(target core.ConnectionTarget) error {
	if target.IsZero() || target.Addr == "" {
		return core.ErrMissingTarget
	}

	a.mu.Lock()
	if a.mode == modeClient {
		a.mu.Unlock()
		return core.ErrAlreadyConnected
	}
	if a.mode != modeIdle {
		a.mu.Unlock()
		return core.ErrAlreadyRunning
	}
	a.mode = modeClient
	a.mu.Unlock()

	u := url.URL{
		Scheme:   "ws",
		Host:     target.Addr,
		Path:     "/transport",
		RawQuery: url.Values{"identity": {string(a.cfg.Identity)}, "name": {a.cfg.DisplayName}}.Encode(),
	}
	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	ws, _, err := dialer.Dial(u.String(), nil)
	if err != nil {
		a.mu.Lock()
		a.mode = modeIdle
		a.mu.Unlock()
		log.Error().Err(err).Str("module", "transport").Str("addr", target.Addr).Msg("dial host")
		return core.ErrUnreachable
	}

	a.mu.Lock()
	a.nextConn++
	pc := &peerConn{id: a.nextConn, conn: ws}
	a.conns[pc.id] = pc
	a.mu.Unlock()

	log.Info().Str("module", "transport").Str("addr", target.Addr).Msg("connected to host")
	a.dispatch(core.ClientConnected{ConnID: pc.id, Identity: target.Identity})
	go a.readPump(pc)
	return nil
}

func (a *Adapter) readPump(pc *peerConn) {
	defer func() {
		pc.close()
		a.mu.Lock()
		_, tracked := a.conns[pc.id]
		delete(a.conns, pc.id)
		a.mu.Unlock()
		// Conns already untracked by Shutdown stay silent; the teardown was
		// deliberate and the consumer is on its way out.
		if tracked {
			a.dispatch(core.ClientDisconnected{ConnID: pc.id})
		}
		log.Info().Str("module", "transport").Uint64("conn", pc.id).Msg("connection closed")
	}()

	for {
		// Control traffic only; the payload plane is not this layer's job.
		if _, _, err := pc.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Shutdown tears down the listener and all connections.
// Idempotent; safe to call from any state.
func (a *Adapter) Shutdown() {
	a.mu.Lock()
	if a.mode == modeIdle && len(a.conns) == 0 {
		a.mu.Unlock()
		return
	}
	srv := a.srv
	conns := make([]*peerConn, 0, len(a.conns))
	for _, pc := range a.conns {
		conns = append(conns, pc)
	}
	a.srv = nil
	a.ln = nil
	a.conns = make(map[uint64]*peerConn)
	a.mode = modeIdle
	a.mu.Unlock()

	for _, pc := range conns {
		pc.close()
	}
	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}

	log.Info().Str("module", "transport").Msg("transport shut down")
}
