package core

import "github.com/dkeye/playroom/internal/domain"

// ConnectionTarget is the address a joining peer must dial, derived from the
// session owner. Zero value means "not known yet".
type ConnectionTarget struct {
	Identity domain.Identity
	Addr     string
}

func (t ConnectionTarget) IsZero() bool {
	return t.Identity == "" && t.Addr == ""
}

// Transport abstracts the reliable point-to-point network layer between host
// and peers. Connection events arrive through the Sink bound with Bind.
type Transport interface {
	// StartHost begins listening. It does not by itself imply any peer is
	// connected; ServerStarted fires once the listener is up, carrying the
	// resolved address. Implementations must always announce it on success.
	StartHost() error
	// StartClient dials the host. Fails fast with ErrMissingTarget when the
	// target is the zero value.
	StartClient(target ConnectionTarget) error
	// Shutdown tears down the listener and all connections.
	// Idempotent; safe to call from any state.
	Shutdown()

	// Bind and Unbind must stay symmetric: every Bind on lifecycle entry has
	// a matching Unbind on exit, so no callback fires into a torn-down
	// coordinator.
	Bind(sink Sink)
	Unbind()
}
