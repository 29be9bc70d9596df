package matchmaking

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/playroom/internal/core"
	"github.com/dkeye/playroom/internal/domain"
)

// envelope is the hub's notification wire format: a type tag plus the fields
// that type uses.
type envelope struct {
	Type      string           `json:"type"`
	SessionID domain.SessionID `json:"session_id"`
	Member    *domain.Member   `json:"member,omitempty"`
	Identity  domain.Identity  `json:"identity,omitempty"`
	Key       string           `json:"key,omitempty"`
	Value     string           `json:"value,omitempty"`
	From      *domain.Member   `json:"from,omitempty"`
}

type eventStream struct {
	conn *websocket.Conn

	// Backends may redeliver; identical consecutive member_joined events for
	// one identity are collapsed before forwarding.
	lastJoinSession  domain.SessionID
	lastJoinIdentity domain.Identity
}

const streamDialRetries = 5

// streamDialBackoff is a variable so tests can shorten it.
var streamDialBackoff = 2 * time.Second

// Bind starts notification delivery into sink. Rebinding replaces the sink
// but keeps the existing stream. A failed dial is retried in the background;
// until a stream is up the lifecycle runs without membership notifications.
func (a *Adapter) Bind(sink core.Sink) {
	a.mu.Lock()
	a.sink = sink
	open := a.stream != nil
	a.mu.Unlock()
	if open || a.openStream() {
		return
	}
	go a.redial()
}

// openStream dials the notification stream, reporting false when the hub is
// unreachable. A stream opened after Unbind, or racing another open, is
// discarded.
func (a *Adapter) openStream() bool {
	header := http.Header{}
	header.Set(identityHeader, string(a.cfg.Identity))
	header.Set(nameHeader, a.cfg.DisplayName)
	conn, _, err := websocket.DefaultDialer.Dial(a.wsURL(), header)
	if err != nil {
		log.Error().Err(err).Str("module", "matchmaking").Msg("event stream dial")
		return false
	}

	a.mu.Lock()
	if a.sink == nil || a.stream != nil {
		a.mu.Unlock()
		_ = conn.Close()
		return true
	}
	st := &eventStream{conn: conn}
	a.stream = st
	a.mu.Unlock()

	go a.readPump(st)
	log.Info().Str("module", "matchmaking").Str("identity", string(a.cfg.Identity)).Msg("event stream open")
	return true
}

// redial retries the stream dial a bounded number of times, stopping early
// on Unbind or once a stream is up.
func (a *Adapter) redial() {
	for i := 0; i < streamDialRetries; i++ {
		time.Sleep(streamDialBackoff)
		a.mu.Lock()
		bound := a.sink != nil
		open := a.stream != nil
		a.mu.Unlock()
		if !bound || open {
			return
		}
		if a.openStream() {
			return
		}
	}
	log.Error().Str("module", "matchmaking").Msg("event stream unavailable, giving up")
}

// Unbind stops delivery. Events read after Unbind are dropped, never
// delivered into a torn-down consumer. No-op when not bound.
func (a *Adapter) Unbind() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sink = nil
	if a.stream != nil {
		_ = a.stream.conn.Close()
		a.stream = nil
	}
}

func (a *Adapter) readPump(st *eventStream) {
	defer func() {
		a.mu.Lock()
		if a.stream == st {
			a.stream = nil
		}
		a.mu.Unlock()
		_ = st.conn.Close()
		log.Info().Str("module", "matchmaking").Msg("event stream closed")
	}()

	for {
		_, data, err := st.conn.ReadMessage()
		if err != nil {
			return
		}
		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Error().Err(err).Str("module", "matchmaking").Msg("bad notification json")
			continue
		}
		ev, ok := st.translate(env)
		if !ok {
			continue
		}
		a.mu.Lock()
		sink := a.sink
		a.mu.Unlock()
		if sink != nil {
			sink.Dispatch(ev)
		}
	}
}

// translate converts a wire envelope into a typed event, collapsing
// redelivered consecutive member_joined notifications.
func (st *eventStream) translate(env envelope) (core.Event, bool) {
	if env.Type != "member_joined" {
		st.lastJoinSession, st.lastJoinIdentity = "", ""
	}

	switch env.Type {
	case "member_joined":
		if env.Member == nil {
			return nil, false
		}
		if env.SessionID == st.lastJoinSession && env.Member.Identity == st.lastJoinIdentity {
			log.Debug().Str("module", "matchmaking").Str("identity", string(env.Member.Identity)).Msg("duplicate member_joined dropped")
			return nil, false
		}
		st.lastJoinSession, st.lastJoinIdentity = env.SessionID, env.Member.Identity
		return core.MemberJoined{SessionID: env.SessionID, Member: *env.Member}, true
	case "member_left":
		return core.MemberLeft{SessionID: env.SessionID, Identity: env.Identity}, true
	case "metadata_changed":
		return core.MetadataChanged{SessionID: env.SessionID, Key: env.Key, Value: env.Value}, true
	case "invite":
		if env.From == nil {
			return nil, false
		}
		return core.InviteReceived{From: *env.From, SessionID: env.SessionID}, true
	case "join_requested":
		return core.JoinRequested{SessionID: env.SessionID, Inviter: env.Identity}, true
	default:
		log.Warn().Str("module", "matchmaking").Str("type", env.Type).Msg("unknown notification")
		return nil, false
	}
}
