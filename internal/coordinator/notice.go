package coordinator

import "github.com/dkeye/playroom/internal/domain"

// Notice is a coordinator-level event for downstream consumers (UI, player
// spawn logic). This is the only surface presentation code may use; no raw
// backend or transport types cross it.
type Notice interface {
	notice()
}

// EndReason explains why a session ended.
type EndReason int

const (
	EndReasonLeft EndReason = iota + 1
	EndReasonDisconnected
	EndReasonHostLeft
	EndReasonInconsistent
)

func (r EndReason) String() string {
	switch r {
	case EndReasonLeft:
		return "left"
	case EndReasonDisconnected:
		return "disconnected"
	case EndReasonHostLeft:
		return "host_left"
	case EndReasonInconsistent:
		return "inconsistent"
	default:
		return "unknown"
	}
}

// HostFailed reports a failed host attempt; the coordinator is back in idle.
type HostFailed struct {
	Reason error
}

// JoinFailed reports a failed join attempt; the coordinator is back in idle.
type JoinFailed struct {
	Reason error
}

// RoleAssigned fires exactly once per session lifecycle, when the local role
// is fixed.
type RoleAssigned struct {
	Role    domain.Role
	Session domain.Session
}

// MemberAdded reports a new participant in the session.
type MemberAdded struct {
	Member domain.Member
}

// MemberRemoved reports a participant gone from the session.
type MemberRemoved struct {
	Identity domain.Identity
}

// SessionEnded reports the live session gone; the coordinator is back in idle.
type SessionEnded struct {
	Reason EndReason
}

// InviteReceived surfaces an invite as a user-actionable notification.
// No automatic state change happens.
type InviteReceived struct {
	From      domain.Member
	SessionID domain.SessionID
}

func (HostFailed) notice()     {}
func (JoinFailed) notice()     {}
func (RoleAssigned) notice()   {}
func (MemberAdded) notice()    {}
func (MemberRemoved) notice()  {}
func (SessionEnded) notice()   {}
func (InviteReceived) notice() {}
