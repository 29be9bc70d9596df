// Package coordinator owns the session lifecycle: it reconciles matchmaking
// and transport events into one consistent view of who is in the session and
// in what role, and drives the create -> confirm -> start transport -> bind
// role sequence.
package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/eapache/queue"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/playroom/internal/core"
	"github.com/dkeye/playroom/internal/domain"
)

const defaultConnectTimeout = 10 * time.Second

// Options configures a Coordinator. Identity and DisplayName describe the
// local participant; ListenAddr is the transport bind address when hosting.
// Joining peers are given the resolved listener address, not this value,
// so a ":0" bind works.
type Options struct {
	Identity       domain.Identity
	DisplayName    string
	SessionName    string
	ListenAddr     string
	ConnectTimeout time.Duration
}

// Coordinator is the single writer of the session/state pair. All inbound
// events and commands go through one FIFO queue processed by Run; transitions
// are run-to-completion, so no two of them ever interleave.
type Coordinator struct {
	matchmaker core.Matchmaker
	transport  core.Transport
	opts       Options

	qmu    sync.Mutex
	events *queue.Queue
	wake   chan struct{}

	subMu   sync.Mutex
	subs    []subscriber
	nextSub int

	// Loop-owned. stateMu guards only the published snapshot reads.
	stateMu sync.RWMutex
	state   State
	session *domain.Session

	gen               uint64
	pending           []core.Event
	pendingMaxMembers int
	conns             map[uint64]domain.Identity
	connectTimer      *time.Timer
	cancelAttempt     context.CancelFunc
}

type subscriber struct {
	id int
	fn func(Notice)
}

// internal commands and timers; they ride the same queue as adapter events so
// there is exactly one writer.
type (
	cmdHost  struct{ maxMembers int }
	cmdJoin  struct{ sessionID domain.SessionID }
	cmdLeave struct{}

	evConnectTimeout struct{ gen uint64 }
)

func New(opts Options, mm core.Matchmaker, tp core.Transport) *Coordinator {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = defaultConnectTimeout
	}
	return &Coordinator{
		matchmaker: mm,
		transport:  tp,
		opts:       opts,
		events:     queue.New(),
		wake:       make(chan struct{}, 1),
		state:      StateIdle,
		conns:      make(map[uint64]domain.Identity),
	}
}

// Dispatch feeds an adapter event into the queue. Safe from any goroutine.
func (c *Coordinator) Dispatch(ev core.Event) {
	c.enqueue(ev)
}

// RequestHost starts a host lifecycle: start the transport listener, then
// register a session with the backend. Ignored with a logged conflict unless
// the coordinator is idle.
func (c *Coordinator) RequestHost(maxMembers int) {
	c.enqueue(cmdHost{maxMembers: maxMembers})
}

// RequestJoin starts a client lifecycle against an existing session.
func (c *Coordinator) RequestJoin(id domain.SessionID) {
	c.enqueue(cmdJoin{sessionID: id})
}

// RequestLeave tears down the current lifecycle from any state. Idempotent.
func (c *Coordinator) RequestLeave() {
	c.enqueue(cmdLeave{})
}

// Subscribe registers a consumer callback, invoked synchronously from the
// event loop in subscription order. The returned func unsubscribes; callers
// must invoke it on teardown so no notice fires into a dead consumer.
func (c *Coordinator) Subscribe(fn func(Notice)) func() {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.subs = append(c.subs, subscriber{id: id, fn: fn})
	return func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		for i, s := range c.subs {
			if s.id == id {
				c.subs = append(c.subs[:i], c.subs[i+1:]...)
				return
			}
		}
	}
}

// Snapshot returns the current state and a copy of the live session, if any.
func (c *Coordinator) Snapshot() (State, domain.Session, bool) {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	if c.session == nil {
		return c.state, domain.Session{}, false
	}
	return c.state, c.session.Clone(), true
}

// Run processes the queue until ctx is canceled, then leaves any live session
// and shuts the transport down. Blocking; callers run it in its own goroutine.
func (c *Coordinator) Run(ctx context.Context) {
	log.Info().Str("module", "coordinator").Str("identity", string(c.opts.Identity)).Msg("event loop started")
	for {
		select {
		case <-ctx.Done():
			c.teardown(EndReasonLeft)
			log.Info().Str("module", "coordinator").Msg("event loop stopped")
			return
		case <-c.wake:
			for {
				ev, ok := c.dequeue()
				if !ok {
					break
				}
				c.process(ctx, ev)
			}
		}
	}
}

func (c *Coordinator) enqueue(ev any) {
	c.qmu.Lock()
	c.events.Add(ev)
	c.qmu.Unlock()
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Coordinator) dequeue() (any, bool) {
	c.qmu.Lock()
	defer c.qmu.Unlock()
	if c.events.Length() == 0 {
		return nil, false
	}
	return c.events.Remove(), true
}

func (c *Coordinator) notify(n Notice) {
	c.subMu.Lock()
	subs := append([]subscriber(nil), c.subs...)
	c.subMu.Unlock()
	for _, s := range subs {
		s.fn(n)
	}
}

func (c *Coordinator) setState(s State) {
	c.stateMu.Lock()
	c.state = s
	c.stateMu.Unlock()
}

func (c *Coordinator) setSession(s *domain.Session) {
	c.stateMu.Lock()
	c.session = s
	c.stateMu.Unlock()
}

func (c *Coordinator) stopConnectTimer() {
	if c.connectTimer != nil {
		c.connectTimer.Stop()
		c.connectTimer = nil
	}
}
