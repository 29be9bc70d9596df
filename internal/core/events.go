package core

import "github.com/dkeye/playroom/internal/domain"

// Event is a typed notification crossing an adapter boundary into the
// coordinator's queue. One struct per event; no raw backend or transport
// payloads ride along.
type Event interface {
	event()
}

// Sink receives adapter events. The coordinator implements it; adapters hold
// it only while bound and must stop delivering after Unbind.
type Sink interface {
	Dispatch(Event)
}

// SessionCreated is the eventual result of a CreateSession call.
// Gen carries the lifecycle generation current when the call was issued.
type SessionCreated struct {
	Gen     uint64
	Session domain.Session
	Err     error
}

// SessionEntered is the eventual result of a JoinSession call.
type SessionEntered struct {
	Gen     uint64
	Session domain.Session
	Err     error
}

// MemberJoined reports a participant added to the session's member set.
type MemberJoined struct {
	SessionID domain.SessionID
	Member    domain.Member
}

// MemberLeft reports a participant removed from the session's member set.
type MemberLeft struct {
	SessionID domain.SessionID
	Identity  domain.Identity
}

// MetadataChanged reports a session metadata entry replaced.
type MetadataChanged struct {
	SessionID domain.SessionID
	Key       string
	Value     string
}

// InviteReceived reports an invite delivered to the local participant.
type InviteReceived struct {
	From      domain.Member
	SessionID domain.SessionID
}

// JoinRequested reports a platform-level invite accept: the local participant
// asked to join through the backend's own UI, bypassing the in-app flow.
type JoinRequested struct {
	SessionID domain.SessionID
	Inviter   domain.Identity
}

// ClientConnected reports a transport connection established. On the host it
// fires once per accepted peer; on a client it fires once for the link to the
// host. Identity is learned during the transport handshake.
type ClientConnected struct {
	ConnID      uint64
	Identity    domain.Identity
	DisplayName string
}

// ClientDisconnected reports a transport connection torn down.
type ClientDisconnected struct {
	ConnID uint64
}

// ServerStarted reports the host transport listening.
type ServerStarted struct {
	Addr string
}

func (SessionCreated) event()     {}
func (SessionEntered) event()     {}
func (MemberJoined) event()       {}
func (MemberLeft) event()         {}
func (MetadataChanged) event()    {}
func (InviteReceived) event()     {}
func (JoinRequested) event()      {}
func (ClientConnected) event()    {}
func (ClientDisconnected) event() {}
func (ServerStarted) event()      {}
