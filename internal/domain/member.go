package domain

import "errors"

const MaxDisplayNameLen = 36

var (
	ErrDisplayNameTooLong = errors.New("display name too long")
	ErrDisplayNameEmpty   = errors.New("display name empty")
)

// Member represents a participant currently counted as part of a session.
// Exists only while present in the session's member set.
type Member struct {
	Identity    Identity `json:"identity"`
	DisplayName string   `json:"display_name"`
	Role        Role     `json:"role"`
}

// NewMember avoids raw literals in adapters and keeps construction obvious.
func NewMember(id Identity, displayName string) (Member, error) {
	if len(displayName) == 0 {
		return Member{}, ErrDisplayNameEmpty
	}
	if len(displayName) > MaxDisplayNameLen {
		return Member{}, ErrDisplayNameTooLong
	}
	return Member{Identity: id, DisplayName: displayName, Role: RolePeer}, nil
}
