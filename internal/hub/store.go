// Package hub is the reference matchmaking backend: lobby records, member
// bookkeeping and notification fan-out behind a small REST + websocket API.
// Peers treat it as an opaque service; none of its types leak past the
// matchmaking adapter.
package hub

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/playroom/internal/domain"
)

var (
	errNotFound      = errors.New("lobby not found")
	errFull          = errors.New("lobby full")
	errBanned        = errors.New("banned from lobby")
	errNotJoinable   = errors.New("lobby not joinable")
	errQuotaExceeded = errors.New("lobby quota exceeded")
	errNotOwner      = errors.New("only the owner may do that")
	errNotMember     = errors.New("not a member")
)

const defaultOwnedQuota = 2

type lobby struct {
	session    domain.Session
	maxMembers int
	banned     map[domain.Identity]bool
}

// Store holds all live lobbies. One mutex guards the lot; lobby churn is
// low-frequency control traffic.
type Store struct {
	mu      sync.Mutex
	lobbies map[domain.SessionID]*lobby
	quota   int

	// send delivers a notification to one participant's event stream.
	// Injected by the stream registry; nil drops silently (tests).
	send func(to domain.Identity, env envelope)
}

func NewStore(send func(domain.Identity, envelope)) *Store {
	return &Store{
		lobbies: make(map[domain.SessionID]*lobby),
		quota:   defaultOwnedQuota,
		send:    send,
	}
}

func (st *Store) deliver(to domain.Identity, env envelope) {
	if st.send != nil {
		st.send(to, env)
	}
}

// fanout notifies every member except the originator, preserving call order.
// Callers hold st.mu.
func (st *Store) fanout(l *lobby, except domain.Identity, env envelope) {
	for _, m := range l.session.Members {
		if m.Identity == except {
			continue
		}
		st.deliver(m.Identity, env)
	}
}

// Create registers a lobby owned by the caller. The owner is its first member
// and the only host.
func (st *Store) Create(owner domain.Identity, ownerName string, maxMembers int, hostAddr string) (domain.Session, error) {
	if maxMembers < 1 {
		maxMembers = 1
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	owned := 0
	for _, l := range st.lobbies {
		if l.session.Owner == owner {
			owned++
		}
	}
	if owned >= st.quota {
		return domain.Session{}, errQuotaExceeded
	}

	s := domain.Session{
		ID:       domain.SessionID(uuid.NewString()),
		Metadata: map[string]string{},
		Joinable: false,
		Owner:    owner,
		Members: []domain.Member{
			{Identity: owner, DisplayName: ownerName, Role: domain.RoleHost},
		},
	}
	if hostAddr != "" {
		s.Metadata[domain.MetadataKeyHostAddr] = hostAddr
	}
	st.lobbies[s.ID] = &lobby{
		session:    s,
		maxMembers: maxMembers,
		banned:     make(map[domain.Identity]bool),
	}
	log.Info().Str("module", "hub").Str("lobby", string(s.ID)).Str("owner", string(owner)).Msg("lobby created")
	return s.Clone(), nil
}

// Join adds the caller to a lobby and notifies the other members.
func (st *Store) Join(id domain.SessionID, who domain.Identity, name string) (domain.Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	l, ok := st.lobbies[id]
	if !ok {
		return domain.Session{}, errNotFound
	}
	if l.banned[who] {
		return domain.Session{}, errBanned
	}
	if _, present := l.session.MemberByIdentity(who); present {
		// Rejoin is a no-op; hand back the current record.
		return l.session.Clone(), nil
	}
	if !l.session.Joinable {
		return domain.Session{}, errNotJoinable
	}
	if len(l.session.Members) >= l.maxMembers {
		return domain.Session{}, errFull
	}

	m := domain.Member{Identity: who, DisplayName: name, Role: domain.RolePeer}
	l.session = domain.ApplyMemberJoined(l.session, m)
	st.fanout(l, who, envelope{Type: "member_joined", SessionID: id, Member: &m})
	log.Info().Str("module", "hub").Str("lobby", string(id)).Str("identity", string(who)).Msg("member joined")
	return l.session.Clone(), nil
}

// Leave removes the caller. Owner departure destroys the lobby; remaining
// members learn about it through the owner's member_left. Leaving a lobby
// you are not in, or one that is gone, is a no-op error the API maps to 404.
func (st *Store) Leave(id domain.SessionID, who domain.Identity) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	l, ok := st.lobbies[id]
	if !ok {
		return errNotFound
	}
	if _, present := l.session.MemberByIdentity(who); !present {
		return errNotMember
	}

	l.session = domain.ApplyMemberLeft(l.session, who)
	st.fanout(l, who, envelope{Type: "member_left", SessionID: id, Identity: who})

	if who == l.session.Owner || len(l.session.Members) == 0 {
		delete(st.lobbies, id)
		log.Info().Str("module", "hub").Str("lobby", string(id)).Msg("lobby destroyed")
		return nil
	}
	log.Info().Str("module", "hub").Str("lobby", string(id)).Str("identity", string(who)).Msg("member left")
	return nil
}

// SetMetadata replaces one metadata entry. Owner only.
func (st *Store) SetMetadata(id domain.SessionID, who domain.Identity, key, value string) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	l, ok := st.lobbies[id]
	if !ok {
		return errNotFound
	}
	if who != l.session.Owner {
		return errNotOwner
	}
	l.session = domain.ApplyMetadataChanged(l.session, key, value)
	st.fanout(l, who, envelope{Type: "metadata_changed", SessionID: id, Key: key, Value: value})
	return nil
}

// SetJoinable flips discoverability. Owner only.
func (st *Store) SetJoinable(id domain.SessionID, who domain.Identity, joinable bool) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	l, ok := st.lobbies[id]
	if !ok {
		return errNotFound
	}
	if who != l.session.Owner {
		return errNotOwner
	}
	l.session.Joinable = joinable
	return nil
}

// Invite delivers an invite notification to another participant. With
// autoJoin the target's client receives a platform-level join request
// instead, the overlay-accept flow.
func (st *Store) Invite(id domain.SessionID, from, to domain.Identity, autoJoin bool) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	l, ok := st.lobbies[id]
	if !ok {
		return errNotFound
	}
	inviter, present := l.session.MemberByIdentity(from)
	if !present {
		return errNotMember
	}

	if autoJoin {
		st.deliver(to, envelope{Type: "join_requested", SessionID: id, Identity: from})
	} else {
		st.deliver(to, envelope{Type: "invite", SessionID: id, From: &inviter})
	}
	log.Info().Str("module", "hub").Str("lobby", string(id)).Str("to", string(to)).Bool("auto_join", autoJoin).Msg("invite sent")
	return nil
}

// Ban blocks an identity from joining and kicks it if present. Owner only.
func (st *Store) Ban(id domain.SessionID, who, target domain.Identity) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	l, ok := st.lobbies[id]
	if !ok {
		return errNotFound
	}
	if who != l.session.Owner {
		return errNotOwner
	}
	l.banned[target] = true
	if _, present := l.session.MemberByIdentity(target); present {
		l.session = domain.ApplyMemberLeft(l.session, target)
		st.fanout(l, "", envelope{Type: "member_left", SessionID: id, Identity: target})
	}
	return nil
}

// LobbyInfo is the listing view.
type LobbyInfo struct {
	ID          domain.SessionID `json:"id"`
	Name        string           `json:"name"`
	MemberCount int              `json:"member_count"`
	MaxMembers  int              `json:"max_members"`
	Joinable    bool             `json:"joinable"`
}

// List returns the joinable lobbies.
func (st *Store) List() []LobbyInfo {
	st.mu.Lock()
	defer st.mu.Unlock()

	out := make([]LobbyInfo, 0, len(st.lobbies))
	for id, l := range st.lobbies {
		if !l.session.Joinable {
			continue
		}
		out = append(out, LobbyInfo{
			ID:          id,
			Name:        l.session.Metadata[domain.MetadataKeyName],
			MemberCount: len(l.session.Members),
			MaxMembers:  l.maxMembers,
			Joinable:    l.session.Joinable,
		})
	}
	return out
}

// Get returns a lobby snapshot for members.
func (st *Store) Get(id domain.SessionID, who domain.Identity) (domain.Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	l, ok := st.lobbies[id]
	if !ok {
		return domain.Session{}, errNotFound
	}
	if _, present := l.session.MemberByIdentity(who); !present {
		return domain.Session{}, errNotMember
	}
	return l.session.Clone(), nil
}
