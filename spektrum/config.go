package spektrum

import "time"

// Config controls how the client connects and recovers.
type Config struct {
	// URL is the websocket endpoint, e.g. "ws://localhost:8765/ws".
	URL string

	// DialTimeout bounds transport establishment. Zero disables it.
	DialTimeout time.Duration

	// HandshakeTimeout bounds the wait for the server's Connected reply
	// after the transport opens. Zero disables it.
	HandshakeTimeout time.Duration

	// WriteTimeout bounds each outbound write. Zero disables it.
	WriteTimeout time.Duration

	// HeartbeatInterval is how often a ping probe is sent while connected
	// and visible. Zero disables heartbeat probing.
	HeartbeatInterval time.Duration

	// HeartbeatTimeout bounds the wait for a probe acknowledgement.
	HeartbeatTimeout time.Duration

	// LivenessInterval is how often the last-activity clock is checked.
	// Zero disables the check.
	LivenessInterval time.Duration

	// LivenessTimeout is the longest the connection may stay silent before
	// it is treated as lost.
	LivenessTimeout time.Duration

	// ReconnectInitialDelay and ReconnectMaxDelay shape the retry backoff.
	ReconnectInitialDelay time.Duration
	ReconnectMaxDelay     time.Duration

	// MaxReconnectAttempts is the ceiling on consecutive failed automatic
	// attempts before the client settles in StateError.
	MaxReconnectAttempts int

	// Dialer overrides transport creation. Nil uses the websocket dialer.
	Dialer Dialer

	// Store persists session credentials. Nil uses DefaultStore().
	Store SessionStore

	// Env supplies visibility and network signals. Nil means the client
	// assumes it is always visible and online.
	Env EnvSource
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		DialTimeout:           10 * time.Second,
		HandshakeTimeout:      10 * time.Second,
		WriteTimeout:          10 * time.Second,
		HeartbeatInterval:     20 * time.Second,
		HeartbeatTimeout:      10 * time.Second,
		LivenessInterval:      15 * time.Second,
		LivenessTimeout:       60 * time.Second,
		ReconnectInitialDelay: time.Second,
		ReconnectMaxDelay:     30 * time.Second,
		MaxReconnectAttempts:  5,
	}
}
