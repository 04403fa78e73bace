// Package transport is the out-of-scope-per-spec "byte transport"
// collaborator made concrete: the server and client packages depend only
// on these interfaces (§1 "all network I/O is delegated to an injected
// transport abstraction, as is wall-clock time"), never on net directly,
// so tests can swap in fakes without a socket.
package transport

import "time"

// Connection is a single bidirectional byte stream, server- or
// client-side. Grounded on §6 "Transport contract": peer-id, the two
// delegate setters, send and break.
type Connection interface {
	// PeerID returns a stable string identifying the remote endpoint
	// (e.g. "host:port"), used in log context. The client's
	// persistent-connection pool is keyed by the requested host:port,
	// not by PeerID.
	PeerID() string

	// SetDataReceivedCB installs the callback invoked with each batch of
	// newly received bytes. Must be called before the connection is
	// usable; at most one callback is active at a time.
	SetDataReceivedCB(func(data []byte))

	// SetBrokenCB installs the callback invoked exactly once when the
	// connection can no longer be used, with clean=true for a graceful
	// half-close and false for an abortive failure.
	SetBrokenCB(func(clean bool))

	// Send writes bytes to the peer. Implementations queue/buffer as
	// needed; Send does not block on the full round trip.
	Send(data []byte) error

	// Break tears the connection down. clean=true lets any
	// already-queued Send data drain first; false is immediate/abortive.
	Break(clean bool) error
}

// ServerTransport accepts inbound connections.
type ServerTransport interface {
	// Bind starts listening on port and installs newConnCB, invoked once
	// per accepted Connection. Returns false on bind failure (§4.4
	// mobilize contract: "Returns false on bind failure").
	Bind(port int, newConnCB func(Connection)) bool

	// Release stops accepting new connections and releases the
	// listening socket. Idempotent.
	Release()
}

// ClientTransport originates outbound connections.
type ClientTransport interface {
	// Connect dials host:port and returns a live Connection with dataCB
	// and brokenCB already wired, or nil on failure.
	Connect(host string, port int, dataCB func([]byte), brokenCB func(bool)) Connection
}

// Clock is the injected wall-clock collaborator (§6 "Time contract"):
// Now returns a time.Time (monotonic preferred); callers take differences
// in seconds via Sub(...).Seconds().
type Clock interface {
	Now() time.Time
}

// SystemClock is the real wall clock, used outside of tests.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }
