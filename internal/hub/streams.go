package hub

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/playroom/internal/domain"
)

// envelope is the notification wire format shared with clients: a type tag
// plus the fields that type uses.
type envelope struct {
	Type      string           `json:"type"`
	SessionID domain.SessionID `json:"session_id"`
	Member    *domain.Member   `json:"member,omitempty"`
	Identity  domain.Identity  `json:"identity,omitempty"`
	Key       string           `json:"key,omitempty"`
	Value     string           `json:"value,omitempty"`
	From      *domain.Member   `json:"from,omitempty"`
}

var errStreamBackpressure = errors.New("stream backpressure")

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// stream is one participant's notification channel.
// Owned by the registry; the registry must Close() it.
type stream struct {
	conn *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	closed bool
}

func (s *stream) trySend(b []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("stream closed")
	}
	select {
	case s.send <- b:
	default:
		return errStreamBackpressure
	}
	return nil
}

func (s *stream) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.send)
	_ = s.conn.Close()
}

// Streams tracks one live notification stream per identity.
// A reconnect replaces the previous stream.
type Streams struct {
	mu      sync.Mutex
	byIdent map[domain.Identity]*stream
}

func NewStreams() *Streams {
	return &Streams{byIdent: make(map[domain.Identity]*stream)}
}

// Attach registers a freshly upgraded connection and starts its pumps.
func (r *Streams) Attach(id domain.Identity, conn *websocket.Conn) {
	st := &stream{conn: conn, send: make(chan []byte, 32)}

	r.mu.Lock()
	if prev, ok := r.byIdent[id]; ok {
		prev.close()
	}
	r.byIdent[id] = st
	r.mu.Unlock()

	go r.writePump(st)
	go r.readPump(id, st)
	log.Info().Str("module", "hub.streams").Str("identity", string(id)).Msg("event stream attached")
}

// Send marshals and queues a notification for one participant.
// Participants without a live stream miss it; membership state is
// re-synced from the join/create responses, not replayed.
func (r *Streams) Send(to domain.Identity, env envelope) {
	r.mu.Lock()
	st, ok := r.byIdent[to]
	r.mu.Unlock()
	if !ok {
		return
	}
	b, err := json.Marshal(env)
	if err != nil {
		log.Error().Err(err).Str("module", "hub.streams").Msg("marshal notification")
		return
	}
	if err := st.trySend(b); err != nil {
		log.Warn().Err(err).Str("module", "hub.streams").Str("identity", string(to)).Msg("notification dropped")
	}
}

func (r *Streams) writePump(st *stream) {
	for b := range st.send {
		if err := st.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
			return
		}
		if err := st.conn.WriteMessage(websocket.TextMessage, b); err != nil {
			log.Error().Err(err).Str("module", "hub.streams").Msg("writePump write error")
			return
		}
	}
}

func (r *Streams) readPump(id domain.Identity, st *stream) {
	defer func() {
		st.close()
		r.mu.Lock()
		if r.byIdent[id] == st {
			delete(r.byIdent, id)
		}
		r.mu.Unlock()
		log.Info().Str("module", "hub.streams").Str("identity", string(id)).Msg("event stream detached")
	}()

	// Inbound traffic is ignored; the stream is one-way.
	for {
		if _, _, err := st.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// CloseAll tears down every stream, for server shutdown.
func (r *Streams) CloseAll() {
	r.mu.Lock()
	streams := make([]*stream, 0, len(r.byIdent))
	for _, st := range r.byIdent {
		streams = append(streams, st)
	}
	r.byIdent = make(map[domain.Identity]*stream)
	r.mu.Unlock()
	for _, st := range streams {
		st.close()
	}
}
