package core

import "errors"

// Failure taxonomy for matchmaking and transport boundaries. Adapters convert
// raw backend/transport failures into these before anything reaches the
// coordinator; raw errors never cross the coordinator boundary.
var (
	// Backend-side.
	ErrBackendUnavailable = errors.New("matchmaking backend unavailable")
	ErrQuotaExceeded      = errors.New("session quota exceeded")

	// Join-time.
	ErrNotFound = errors.New("session not found")
	ErrFull     = errors.New("session full")
	ErrBanned   = errors.New("banned from session")

	// Host-time.
	ErrBindFailed     = errors.New("transport bind failed")
	ErrAlreadyRunning = errors.New("transport already running")

	// Client-connect-time.
	ErrUnreachable      = errors.New("host unreachable")
	ErrAlreadyConnected = errors.New("transport already connected")
	ErrMissingTarget    = errors.New("connection target not set")

	// ErrStaleCallback marks a late async result discarded after the
	// lifecycle generation moved on. Diagnostic only, never user-visible.
	ErrStaleCallback = errors.New("stale callback discarded")
)
