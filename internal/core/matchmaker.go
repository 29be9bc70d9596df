package core

import (
	"context"

	"github.com/dkeye/playroom/internal/domain"
)

// Matchmaker abstracts the out-of-band matchmaking backend.
// Calls are blocking; the coordinator issues them from worker goroutines and
// folds the results back into its queue as SessionCreated/SessionEntered.
// Notifications (member joins, invites, metadata) arrive through the Sink
// bound with Bind.
type Matchmaker interface {
	// CreateSession registers a new session; the caller becomes its owner.
	CreateSession(ctx context.Context, maxMembers int, hostAddr string) (domain.Session, error)
	// JoinSession adds the caller to an existing session.
	JoinSession(ctx context.Context, id domain.SessionID) (domain.Session, error)
	// LeaveSession is fire-and-forget; safe to call when already left.
	LeaveSession(id domain.SessionID)
	// SetMetadata is best-effort; failures are logged, not fatal.
	SetMetadata(id domain.SessionID, key, value string)
	// SetJoinable is best-effort; failures are logged, not fatal.
	SetJoinable(id domain.SessionID, joinable bool)

	// Bind starts notification delivery into sink. Unbind stops it; events
	// after Unbind are dropped, not delivered into a torn-down consumer.
	Bind(sink Sink)
	Unbind()
}
