package domain

import (
	"errors"
	"testing"
)

func testSession() Session {
	return Session{
		ID:       "lobby-1",
		Metadata: map[string]string{MetadataKeyName: "playroom"},
		Joinable: true,
		Owner:    "host-id",
		Members: []Member{
			{Identity: "host-id", DisplayName: "Host", Role: RoleHost},
		},
	}
}

func TestApplyMemberJoinedIdempotent(t *testing.T) {
	s := testSession()
	peer := Member{Identity: "peer-1", DisplayName: "Alice"}

	s = ApplyMemberJoined(s, peer)
	if len(s.Members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(s.Members))
	}
	got, ok := s.MemberByIdentity("peer-1")
	if !ok {
		t.Fatal("expected peer-1 to be a member")
	}
	if got.Role != RolePeer {
		t.Fatalf("expected role peer, got %v", got.Role)
	}

	// Redelivered join for the same identity must not duplicate.
	s = ApplyMemberJoined(s, peer)
	if len(s.Members) != 2 {
		t.Fatalf("expected 2 members after redelivery, got %d", len(s.Members))
	}
}

func TestApplyMemberJoinedOwnerGetsHostRole(t *testing.T) {
	s := Session{ID: "lobby-1", Metadata: map[string]string{}, Owner: "host-id"}
	s = ApplyMemberJoined(s, Member{Identity: "host-id", DisplayName: "Host"})
	got, ok := s.MemberByIdentity("host-id")
	if !ok {
		t.Fatal("expected owner to be a member")
	}
	if got.Role != RoleHost {
		t.Fatalf("expected owner role host, got %v", got.Role)
	}
}

func TestApplyMemberLeftAbsentIsNoop(t *testing.T) {
	s := testSession()
	out := ApplyMemberLeft(s, "ghost")
	if len(out.Members) != 1 {
		t.Fatalf("expected 1 member, got %d", len(out.Members))
	}
}

func TestApplyMemberLeftRemoves(t *testing.T) {
	s := ApplyMemberJoined(testSession(), Member{Identity: "peer-1", DisplayName: "Alice"})
	s = ApplyMemberLeft(s, "peer-1")
	if len(s.Members) != 1 {
		t.Fatalf("expected 1 member, got %d", len(s.Members))
	}
	if _, ok := s.MemberByIdentity("peer-1"); ok {
		t.Fatal("expected peer-1 to be gone")
	}
}

func TestApplyMetadataChangedDoesNotMutateOriginal(t *testing.T) {
	s := testSession()
	out := ApplyMetadataChanged(s, MetadataKeyName, "renamed")
	if s.Metadata[MetadataKeyName] != "playroom" {
		t.Fatalf("original mutated: %q", s.Metadata[MetadataKeyName])
	}
	if out.Metadata[MetadataKeyName] != "renamed" {
		t.Fatalf("expected renamed, got %q", out.Metadata[MetadataKeyName])
	}
}

func TestOwnerOf(t *testing.T) {
	s := testSession()
	host, err := OwnerOf(s)
	if err != nil {
		t.Fatalf("owner of: %v", err)
	}
	if host.Identity != "host-id" {
		t.Fatalf("expected host-id, got %q", host.Identity)
	}
}

func TestOwnerOfInconsistent(t *testing.T) {
	s := testSession()
	s.Members = append(s.Members, Member{Identity: "peer-1", DisplayName: "Alice", Role: RoleHost})
	if _, err := OwnerOf(s); !errors.Is(err, ErrInconsistentSession) {
		t.Fatalf("expected ErrInconsistentSession, got %v", err)
	}

	s.Members = nil
	if _, err := OwnerOf(s); !errors.Is(err, ErrInconsistentSession) {
		t.Fatalf("expected ErrInconsistentSession for empty set, got %v", err)
	}
}

func TestNewMemberValidation(t *testing.T) {
	if _, err := NewMember("id", ""); !errors.Is(err, ErrDisplayNameEmpty) {
		t.Fatalf("expected ErrDisplayNameEmpty, got %v", err)
	}
	long := make([]byte, MaxDisplayNameLen+1)
	for i := range long {
		long[i] = 'a'
	}
	if _, err := NewMember("id", string(long)); !errors.Is(err, ErrDisplayNameTooLong) {
		t.Fatalf("expected ErrDisplayNameTooLong, got %v", err)
	}
}
