package domain

import "errors"

const (
	// MetadataKeyName is the display name persisted on the session record.
	MetadataKeyName = "name"
	// MetadataKeyHostAddr is the dialable transport address of the owner,
	// published at creation so joining peers can derive their target.
	MetadataKeyHostAddr = "host_addr"
)

// ErrInconsistentSession reports a session whose member set does not hold
// exactly one host. It should never surface if the coordinator's transition
// rules are followed; seeing it in tests indicates a protocol bug.
var ErrInconsistentSession = errors.New("inconsistent session: host count != 1")

type SessionID string

// Session is a discoverable multiplayer room record held by the matchmaking
// backend. The coordinator owns the live value; everyone else sees copies.
type Session struct {
	ID       SessionID         `json:"id"`
	Metadata map[string]string `json:"metadata"`
	Joinable bool              `json:"joinable"`
	Owner    Identity          `json:"owner"`
	Members  []Member          `json:"members"`
}

// Clone returns a deep copy safe to hand to subscribers.
func (s Session) Clone() Session {
	out := s
	out.Metadata = make(map[string]string, len(s.Metadata))
	for k, v := range s.Metadata {
		out.Metadata[k] = v
	}
	out.Members = append([]Member(nil), s.Members...)
	return out
}

// MemberByIdentity returns the member with the given identity, if present.
func (s Session) MemberByIdentity(id Identity) (Member, bool) {
	for _, m := range s.Members {
		if m.Identity == id {
			return m, true
		}
	}
	return Member{}, false
}

// ApplyMemberJoined returns the session with the member added.
// Idempotent by identity: a redelivered join for a present member is a no-op.
func ApplyMemberJoined(s Session, m Member) Session {
	if _, ok := s.MemberByIdentity(m.Identity); ok {
		return s
	}
	out := s.Clone()
	if m.Identity == s.Owner {
		m.Role = RoleHost
	} else {
		m.Role = RolePeer
	}
	out.Members = append(out.Members, m)
	return out
}

// ApplyMemberLeft returns the session with the member removed.
// No-op if the identity is not a member.
func ApplyMemberLeft(s Session, id Identity) Session {
	if _, ok := s.MemberByIdentity(id); !ok {
		return s
	}
	out := s.Clone()
	kept := out.Members[:0]
	for _, m := range out.Members {
		if m.Identity != id {
			kept = append(kept, m)
		}
	}
	out.Members = kept
	return out
}

// ApplyMetadataChanged returns the session with the metadata entry replaced.
func ApplyMetadataChanged(s Session, key, value string) Session {
	out := s.Clone()
	out.Metadata[key] = value
	return out
}

// OwnerOf returns the host member. Defensive check: fails with
// ErrInconsistentSession when zero or more than one host is present.
func OwnerOf(s Session) (Member, error) {
	var host Member
	count := 0
	for _, m := range s.Members {
		if m.Role == RoleHost {
			host = m
			count++
		}
	}
	if count != 1 || host.Identity != s.Owner {
		return Member{}, ErrInconsistentSession
	}
	return host, nil
}
