// Package domain contains entity without logic, just meta-data
// plus the pure membership functions over a session record.
package domain

import "github.com/google/uuid"

// Identity is an opaque stable id for a participant.
// Immutable once assigned.
type Identity string

// NewIdentity is a tiny helper to avoid ad-hoc id construction in adapters.
func NewIdentity() Identity {
	return Identity(uuid.NewString())
}

// Role is a member's responsibility inside a session.
// Exactly one member of a live session holds RoleHost.
type Role int

const (
	RoleNone Role = iota
	RoleHost
	RolePeer
)

func (r Role) String() string {
	switch r {
	case RoleHost:
		return "host"
	case RolePeer:
		return "peer"
	default:
		return "none"
	}
}
