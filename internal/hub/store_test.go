package hub

import (
	"errors"
	"testing"
	"time"

	"github.com/dkeye/playroom/internal/domain"
)

type sentNote struct {
	to  domain.Identity
	env envelope
}

type noteRecorder struct {
	notes []sentNote
}

func (r *noteRecorder) send(to domain.Identity, env envelope) {
	r.notes = append(r.notes, sentNote{to: to, env: env})
}

func newTestStore() (*Store, *noteRecorder) {
	rec := &noteRecorder{}
	return NewStore(rec.send), rec
}

func TestCreateOwnerIsHost(t *testing.T) {
	st, _ := newTestStore()
	s, err := st.Create("host-id", "Host", 4, "127.0.0.1:9000")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if s.Owner != "host-id" {
		t.Fatalf("expected owner host-id, got %q", s.Owner)
	}
	if len(s.Members) != 1 || s.Members[0].Role != domain.RoleHost {
		t.Fatalf("expected single host member, got %+v", s.Members)
	}
	if s.Metadata[domain.MetadataKeyHostAddr] != "127.0.0.1:9000" {
		t.Fatalf("expected host addr metadata, got %+v", s.Metadata)
	}
	if s.Joinable {
		t.Fatal("lobbies start unjoinable until the owner opens them")
	}
}

func TestCreateQuota(t *testing.T) {
	st, _ := newTestStore()
	for i := 0; i < defaultOwnedQuota; i++ {
		if _, err := st.Create("host-id", "Host", 4, ""); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}
	if _, err := st.Create("host-id", "Host", 4, ""); !errors.Is(err, errQuotaExceeded) {
		t.Fatalf("expected errQuotaExceeded, got %v", err)
	}
}

func openLobby(t *testing.T, st *Store, max int) domain.Session {
	t.Helper()
	s, err := st.Create("host-id", "Host", max, "127.0.0.1:9000")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := st.SetJoinable(s.ID, "host-id", true); err != nil {
		t.Fatalf("set joinable: %v", err)
	}
	return s
}

func TestJoinNotifiesOthers(t *testing.T) {
	st, rec := newTestStore()
	s := openLobby(t, st, 4)

	got, err := st.Join(s.ID, "peer-1", "Alice")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if len(got.Members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(got.Members))
	}
	if len(rec.notes) != 1 || rec.notes[0].to != "host-id" {
		t.Fatalf("expected one notification to host, got %+v", rec.notes)
	}
	if rec.notes[0].env.Type != "member_joined" || rec.notes[0].env.Member.Identity != "peer-1" {
		t.Fatalf("unexpected envelope %+v", rec.notes[0].env)
	}
}

func TestJoinRejections(t *testing.T) {
	st, _ := newTestStore()
	s := openLobby(t, st, 2)

	if _, err := st.Join("ghost", "peer-1", "Alice"); !errors.Is(err, errNotFound) {
		t.Fatalf("expected errNotFound, got %v", err)
	}

	if _, err := st.Join(s.ID, "peer-1", "Alice"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := st.Join(s.ID, "peer-2", "Bob"); !errors.Is(err, errFull) {
		t.Fatalf("expected errFull, got %v", err)
	}

	if err := st.Ban(s.ID, "host-id", "peer-3"); err != nil {
		t.Fatalf("ban: %v", err)
	}
	if _, err := st.Join(s.ID, "peer-3", "Mallory"); !errors.Is(err, errBanned) {
		t.Fatalf("expected errBanned, got %v", err)
	}
}

func TestJoinIsIdempotentForMembers(t *testing.T) {
	st, rec := newTestStore()
	s := openLobby(t, st, 4)

	if _, err := st.Join(s.ID, "peer-1", "Alice"); err != nil {
		t.Fatalf("join: %v", err)
	}
	before := len(rec.notes)
	got, err := st.Join(s.ID, "peer-1", "Alice")
	if err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	if len(got.Members) != 2 {
		t.Fatalf("expected 2 members after rejoin, got %d", len(got.Members))
	}
	if len(rec.notes) != before {
		t.Fatal("rejoin must not renotify")
	}
}

func TestOwnerLeaveDestroysLobby(t *testing.T) {
	st, rec := newTestStore()
	s := openLobby(t, st, 4)
	if _, err := st.Join(s.ID, "peer-1", "Alice"); err != nil {
		t.Fatalf("join: %v", err)
	}

	if err := st.Leave(s.ID, "host-id"); err != nil {
		t.Fatalf("leave: %v", err)
	}

	last := rec.notes[len(rec.notes)-1]
	if last.to != "peer-1" || last.env.Type != "member_left" || last.env.Identity != "host-id" {
		t.Fatalf("expected member_left(host) to peer, got %+v", last)
	}
	if _, err := st.Join(s.ID, "peer-2", "Bob"); !errors.Is(err, errNotFound) {
		t.Fatalf("expected lobby destroyed, got %v", err)
	}
}

func TestLeaveTwice(t *testing.T) {
	st, _ := newTestStore()
	s := openLobby(t, st, 4)
	if _, err := st.Join(s.ID, "peer-1", "Alice"); err != nil {
		t.Fatalf("join: %v", err)
	}

	if err := st.Leave(s.ID, "peer-1"); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if err := st.Leave(s.ID, "peer-1"); !errors.Is(err, errNotMember) {
		t.Fatalf("expected errNotMember on second leave, got %v", err)
	}
}

func TestInviteAndAutoJoin(t *testing.T) {
	st, rec := newTestStore()
	s := openLobby(t, st, 4)

	if err := st.Invite(s.ID, "host-id", "peer-1", false); err != nil {
		t.Fatalf("invite: %v", err)
	}
	if err := st.Invite(s.ID, "host-id", "peer-2", true); err != nil {
		t.Fatalf("auto-join invite: %v", err)
	}

	if rec.notes[0].env.Type != "invite" || rec.notes[0].env.From.Identity != "host-id" {
		t.Fatalf("unexpected invite envelope %+v", rec.notes[0].env)
	}
	if rec.notes[1].env.Type != "join_requested" || rec.notes[1].to != "peer-2" {
		t.Fatalf("unexpected join_requested envelope %+v", rec.notes[1])
	}

	if err := st.Invite(s.ID, "stranger", "peer-3", false); !errors.Is(err, errNotMember) {
		t.Fatalf("expected errNotMember for non-member inviter, got %v", err)
	}
}

func TestListOnlyJoinable(t *testing.T) {
	st, _ := newTestStore()
	if _, err := st.Create("host-a", "A", 4, ""); err != nil {
		t.Fatalf("create: %v", err)
	}
	s := openLobby(t, st, 4)
	if err := st.SetMetadata(s.ID, "host-id", domain.MetadataKeyName, "playroom"); err != nil {
		t.Fatalf("set metadata: %v", err)
	}

	list := st.List()
	if len(list) != 1 {
		t.Fatalf("expected 1 joinable lobby, got %d", len(list))
	}
	if list[0].Name != "playroom" {
		t.Fatalf("expected name playroom, got %q", list[0].Name)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	if !rl.Allow("id") || !rl.Allow("id") {
		t.Fatal("expected first attempts allowed")
	}
	if rl.Allow("id") {
		t.Fatal("expected third attempt blocked")
	}
	if !rl.Allow("other") {
		t.Fatal("limits are per identity")
	}
}
