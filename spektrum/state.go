package spektrum

import "time"

// ConnectionState represents the current state of the game connection.
// Exactly one state holds at any time; transitions happen only inside the
// client's event loop.
type ConnectionState int

const (
	// StateInitial means no connection has ever been requested.
	StateInitial ConnectionState = iota

	// StateConnecting means the client is establishing a transport.
	StateConnecting

	// StateConnected means the transport is open and usable.
	StateConnected

	// StateDisconnected means the client was torn down deliberately, either
	// by the user or by a clean server-side closure.
	StateDisconnected

	// StateError means the client gave up: retries were exhausted or the
	// session was declared invalid. Only a manual reconnect or a fresh
	// Connect can leave this state.
	StateError

	// StateReconnecting means an unexpected disconnect occurred and a retry
	// is scheduled.
	StateReconnecting

	// StateSuspended means the application is hidden; timers are paused and
	// no retries run until it becomes visible again.
	StateSuspended

	// StateOffline means the network is reported down; no retries run until
	// it comes back.
	StateOffline
)

// String returns the string representation of a ConnectionState.
func (s ConnectionState) String() string {
	switch s {
	case StateInitial:
		return "initial"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateError:
		return "error"
	case StateReconnecting:
		return "reconnecting"
	case StateSuspended:
		return "suspended"
	case StateOffline:
		return "offline"
	default:
		return "unknown"
	}
}

// StateEvent represents a state change notification.
type StateEvent struct {
	OldState ConnectionState
	NewState ConnectionState
	Error    error // Optional error that caused the state change
}

// Snapshot is a read-only view of the client's connection status.
type Snapshot struct {
	State         ConnectionState
	Err           error
	Attempts      int
	NextRetry     time.Time // zero when no retry timer is scheduled
	Generation    uint64
	HasCredential bool
}
