package coordinator

// State is the coordinator's lifecycle position. Only the event loop mutates
// it; everyone else reads snapshots.
type State int

const (
	StateIdle State = iota
	StateCreatingSession
	StateHostingIdle
	StateAwaitingJoinConfirmation
	StateConnectingAsClient
	StateConnectedHost
	StateConnectedClient
	StateDisconnecting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCreatingSession:
		return "creating_session"
	case StateHostingIdle:
		return "hosting_idle"
	case StateAwaitingJoinConfirmation:
		return "awaiting_join_confirmation"
	case StateConnectingAsClient:
		return "connecting_as_client"
	case StateConnectedHost:
		return "connected_host"
	case StateConnectedClient:
		return "connected_client"
	case StateDisconnecting:
		return "disconnecting"
	default:
		return "unknown"
	}
}

// hosting reports whether the local participant currently owns the session.
func (s State) hosting() bool {
	return s == StateHostingIdle || s == StateConnectedHost
}
