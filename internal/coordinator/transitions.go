package coordinator

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/playroom/internal/core"
	"github.com/dkeye/playroom/internal/domain"
)

// process runs one transition to completion. Blocking backend calls are never
// made inline; they are issued on worker goroutines and their eventual result
// re-enters the queue as a new event.
func (c *Coordinator) process(ctx context.Context, ev any) {
	switch e := ev.(type) {
	case cmdHost:
		c.handleRequestHost(e.maxMembers)
	case cmdJoin:
		c.handleRequestJoin(ctx, e.sessionID)
	case cmdLeave:
		c.handleRequestLeave()
	case evConnectTimeout:
		c.handleConnectTimeout(e)
	case core.SessionCreated:
		c.handleSessionCreated(e)
	case core.SessionEntered:
		c.handleSessionEntered(e)
	case core.MemberJoined, core.MemberLeft, core.MetadataChanged:
		c.processMembership(ev.(core.Event))
	case core.InviteReceived:
		c.notify(InviteReceived{From: e.From, SessionID: e.SessionID})
	case core.JoinRequested:
		c.handleJoinRequested(ctx, e)
	case core.ClientConnected:
		c.handleClientConnected(e)
	case core.ClientDisconnected:
		c.handleClientDisconnected(e)
	case core.ServerStarted:
		c.handleServerStarted(ctx, e)
	default:
		log.Warn().Str("module", "coordinator").Msgf("unknown event %T", ev)
	}
}

func (c *Coordinator) handleRequestHost(maxMembers int) {
	if c.state != StateIdle {
		log.Warn().Str("module", "coordinator").Stringer("state", c.state).Msg("host request ignored: not idle")
		return
	}
	c.matchmaker.Bind(c)
	c.transport.Bind(c)
	if err := c.transport.StartHost(); err != nil {
		log.Error().Err(err).Str("module", "coordinator").Msg("start host")
		c.abortAttempt("", HostFailed{Reason: err})
		return
	}
	// Registration waits for ServerStarted: the session record must carry the
	// resolved listener address, not the configured bind address (which may
	// be ":0").
	c.pendingMaxMembers = maxMembers
	c.setState(StateCreatingSession)
}

func (c *Coordinator) handleServerStarted(ctx context.Context, ev core.ServerStarted) {
	log.Info().Str("module", "coordinator").Str("addr", ev.Addr).Msg("transport listening")
	if c.state != StateCreatingSession || c.cancelAttempt != nil {
		return
	}
	maxMembers := c.pendingMaxMembers
	gen := c.gen
	callCtx, cancel := context.WithCancel(ctx)
	c.cancelAttempt = cancel
	go func() {
		s, err := c.matchmaker.CreateSession(callCtx, maxMembers, ev.Addr)
		c.Dispatch(core.SessionCreated{Gen: gen, Session: s, Err: err})
	}()
}

func (c *Coordinator) handleSessionCreated(ev core.SessionCreated) {
	if ev.Gen != c.gen {
		log.Debug().Str("module", "coordinator").Err(core.ErrStaleCallback).Msg("session created after cancel")
		return
	}
	if c.state != StateCreatingSession {
		log.Warn().Str("module", "coordinator").Stringer("state", c.state).Msg("session created in unexpected state")
		return
	}
	c.cancelAttempt = nil
	if ev.Err != nil {
		log.Error().Err(ev.Err).Str("module", "coordinator").Msg("create session")
		c.abortAttempt("", HostFailed{Reason: ev.Err})
		return
	}

	s := ev.Session.Clone()
	local := domain.Member{Identity: c.opts.Identity, DisplayName: c.opts.DisplayName}
	s = domain.ApplyMemberJoined(s, local)
	c.setSession(&s)

	c.matchmaker.SetMetadata(s.ID, domain.MetadataKeyName, c.opts.SessionName)
	c.matchmaker.SetJoinable(s.ID, true)

	c.setState(StateHostingIdle)
	c.flushPending()
	if !c.checkInvariant() {
		return
	}
	c.notify(RoleAssigned{Role: domain.RoleHost, Session: c.session.Clone()})
	log.Info().Str("module", "coordinator").Str("session", string(s.ID)).Msg("hosting session")
}

func (c *Coordinator) handleRequestJoin(ctx context.Context, id domain.SessionID) {
	if c.state != StateIdle {
		log.Warn().Str("module", "coordinator").Stringer("state", c.state).Str("session", string(id)).Msg("join request ignored: not idle")
		return
	}
	c.matchmaker.Bind(c)
	c.transport.Bind(c)
	c.setState(StateAwaitingJoinConfirmation)
	gen := c.gen
	callCtx, cancel := context.WithCancel(ctx)
	c.cancelAttempt = cancel
	go func() {
		s, err := c.matchmaker.JoinSession(callCtx, id)
		c.Dispatch(core.SessionEntered{Gen: gen, Session: s, Err: err})
	}()
}

func (c *Coordinator) handleJoinRequested(ctx context.Context, ev core.JoinRequested) {
	// Platform-level invite accept. Joining while already in a session is a
	// user error, not a lifecycle transition.
	if c.state != StateIdle {
		log.Warn().Str("module", "coordinator").Stringer("state", c.state).
			Str("session", string(ev.SessionID)).Msg("invite accept ignored: already in a session")
		return
	}
	c.handleRequestJoin(ctx, ev.SessionID)
}

func (c *Coordinator) handleSessionEntered(ev core.SessionEntered) {
	if ev.Gen != c.gen {
		log.Debug().Str("module", "coordinator").Err(core.ErrStaleCallback).Msg("session entered after cancel")
		return
	}
	if c.state.hosting() {
		// The host's own entry event must never start a client against itself.
		log.Debug().Str("module", "coordinator").Msg("own session entry suppressed")
		return
	}
	if c.state != StateAwaitingJoinConfirmation {
		log.Warn().Str("module", "coordinator").Stringer("state", c.state).Msg("session entered in unexpected state")
		return
	}
	c.cancelAttempt = nil
	if ev.Err != nil {
		log.Error().Err(ev.Err).Str("module", "coordinator").Msg("join session")
		c.abortAttempt("", JoinFailed{Reason: ev.Err})
		return
	}

	s := ev.Session.Clone()
	c.setSession(&s)
	c.flushPending()

	if s.Owner == c.opts.Identity {
		// Already own this session; no client start.
		c.setState(StateHostingIdle)
		if !c.checkInvariant() {
			return
		}
		c.notify(RoleAssigned{Role: domain.RoleHost, Session: c.session.Clone()})
		return
	}

	target := core.ConnectionTarget{
		Identity: s.Owner,
		Addr:     s.Metadata[domain.MetadataKeyHostAddr],
	}
	if err := c.transport.StartClient(target); err != nil {
		log.Error().Err(err).Str("module", "coordinator").Msg("start client")
		c.abortAttempt(s.ID, JoinFailed{Reason: err})
		return
	}
	c.setState(StateConnectingAsClient)
	gen := c.gen
	c.connectTimer = time.AfterFunc(c.opts.ConnectTimeout, func() {
		c.enqueue(evConnectTimeout{gen: gen})
	})
}

func (c *Coordinator) handleConnectTimeout(ev evConnectTimeout) {
	if ev.gen != c.gen || c.state != StateConnectingAsClient {
		return
	}
	log.Error().Str("module", "coordinator").Msg("connect timed out")
	id := c.session.ID
	c.abortAttempt(id, JoinFailed{Reason: core.ErrUnreachable})
}

func (c *Coordinator) handleClientConnected(ev core.ClientConnected) {
	switch c.state {
	case StateConnectingAsClient:
		c.stopConnectTimer()
		c.conns[ev.ConnID] = ev.Identity
		c.setState(StateConnectedClient)
		snap := c.session.Clone()
		c.notify(RoleAssigned{Role: domain.RolePeer, Session: snap})
		log.Info().Str("module", "coordinator").Str("session", string(snap.ID)).Msg("connected as client")
	case StateHostingIdle, StateConnectedHost:
		c.conns[ev.ConnID] = ev.Identity
		c.setState(StateConnectedHost)
		log.Info().Str("module", "coordinator").Uint64("conn", ev.ConnID).
			Str("identity", string(ev.Identity)).Msg("peer connected")
	default:
		log.Warn().Str("module", "coordinator").Stringer("state", c.state).Uint64("conn", ev.ConnID).Msg("stray connect event")
	}
}

func (c *Coordinator) handleClientDisconnected(ev core.ClientDisconnected) {
	switch c.state {
	case StateConnectingAsClient:
		id := c.session.ID
		c.abortAttempt(id, JoinFailed{Reason: core.ErrUnreachable})
	case StateConnectedClient:
		// Our link to the host is gone; the session is over for us.
		c.teardown(EndReasonDisconnected)
	case StateHostingIdle, StateConnectedHost:
		identity, ok := c.conns[ev.ConnID]
		delete(c.conns, ev.ConnID)
		if !ok || c.session == nil {
			return
		}
		before := len(c.session.Members)
		s := domain.ApplyMemberLeft(*c.session, identity)
		c.setSession(&s)
		if len(s.Members) != before {
			c.notify(MemberRemoved{Identity: identity})
		}
		c.checkInvariant()
	default:
		log.Debug().Str("module", "coordinator").Uint64("conn", ev.ConnID).Msg("stray disconnect event")
	}
}

// processMembership folds backend membership notifications into the model.
// Events arriving before the session record exists are buffered in arrival
// order and replayed once it does; they are never dropped or reordered.
func (c *Coordinator) processMembership(ev core.Event) {
	if c.session == nil {
		switch c.state {
		case StateCreatingSession, StateAwaitingJoinConfirmation:
			c.pending = append(c.pending, ev)
		default:
			log.Debug().Str("module", "coordinator").Msgf("dropping %T outside a session", ev)
		}
		return
	}
	c.foldMembership(ev)
}

func (c *Coordinator) foldMembership(ev core.Event) {
	switch e := ev.(type) {
	case core.MemberJoined:
		if e.Member.Identity == c.opts.Identity {
			return
		}
		before := len(c.session.Members)
		s := domain.ApplyMemberJoined(*c.session, e.Member)
		c.setSession(&s)
		if len(s.Members) != before {
			m, _ := s.MemberByIdentity(e.Member.Identity)
			c.notify(MemberAdded{Member: m})
		}
	case core.MemberLeft:
		if e.Identity == c.session.Owner && !c.state.hosting() {
			log.Info().Str("module", "coordinator").Msg("host left session")
			c.teardown(EndReasonHostLeft)
			return
		}
		before := len(c.session.Members)
		s := domain.ApplyMemberLeft(*c.session, e.Identity)
		c.setSession(&s)
		if len(s.Members) != before {
			c.notify(MemberRemoved{Identity: e.Identity})
		}
	case core.MetadataChanged:
		// Display data only; never affects role assignment.
		s := domain.ApplyMetadataChanged(*c.session, e.Key, e.Value)
		c.setSession(&s)
	}
	c.checkInvariant()
}

func (c *Coordinator) flushPending() {
	buffered := c.pending
	c.pending = nil
	for _, ev := range buffered {
		if c.session == nil {
			return
		}
		c.foldMembership(ev)
	}
}

func (c *Coordinator) handleRequestLeave() {
	if c.state == StateIdle {
		log.Debug().Str("module", "coordinator").Msg("leave request while idle")
		return
	}
	c.teardown(EndReasonLeft)
}

// checkInvariant verifies the one-host rule. A violation is fatal to the
// current session only; it forces a teardown back to idle.
func (c *Coordinator) checkInvariant() bool {
	if c.session == nil {
		return true
	}
	if _, err := domain.OwnerOf(*c.session); err != nil {
		log.Error().Err(err).Str("module", "coordinator").Str("session", string(c.session.ID)).Msg("invariant violation")
		c.teardown(EndReasonInconsistent)
		return false
	}
	return true
}

// abortAttempt rolls a failed host/join attempt back to idle and reports the
// failure. leaveID is the session to leave, empty when none was entered.
func (c *Coordinator) abortAttempt(leaveID domain.SessionID, n Notice) {
	c.cleanup(leaveID)
	c.notify(n)
}

// teardown ends a live session lifecycle from any state.
func (c *Coordinator) teardown(reason EndReason) {
	c.setState(StateDisconnecting)
	var leaveID domain.SessionID
	hadSession := c.session != nil
	if hadSession {
		leaveID = c.session.ID
	}
	c.cleanup(leaveID)
	if hadSession {
		c.notify(SessionEnded{Reason: reason})
	}
}

// cleanup cancels outstanding async work, releases both adapters and restores
// idle. Bumping the generation makes any late callback stale.
func (c *Coordinator) cleanup(leaveID domain.SessionID) {
	if c.cancelAttempt != nil {
		c.cancelAttempt()
		c.cancelAttempt = nil
	}
	c.stopConnectTimer()
	if leaveID != "" {
		c.matchmaker.LeaveSession(leaveID)
	}
	c.transport.Shutdown()
	c.transport.Unbind()
	c.matchmaker.Unbind()
	c.setSession(nil)
	c.pending = nil
	c.pendingMaxMembers = 0
	c.conns = make(map[uint64]domain.Identity)
	c.gen++
	c.setState(StateIdle)
}
