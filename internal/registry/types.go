package registry

import (
	"strings"
	"sync/atomic"
	"time"
)

// CloseReason is sent in the close frame so a client can tell why it was
// dropped (replaced, rejected, or internal error).
type CloseReason struct {
	Code int
	Text string
}

var (
	// ReasonNormal is an ordinary close initiated by this side.
	ReasonNormal = CloseReason{Code: 1000, Text: ""}

	// ReasonSuperseded tells the old client its identity reconnected elsewhere.
	ReasonSuperseded = CloseReason{Code: 1000, Text: "connected from another device"}

	// ReasonStale marks a teardown for a connection with no recent liveness signal.
	ReasonStale = CloseReason{Code: 1001, Text: "connection stale"}

	// ReasonAuthFailed rejects an unauthenticated handshake.
	ReasonAuthFailed = CloseReason{Code: 1008, Text: "authentication failed"}

	// ReasonInternal covers abnormal teardowns.
	ReasonInternal = CloseReason{Code: 1011, Text: "internal error"}
)

// Channel is the duplex transport handle for one client connection. The
// registry owns it exclusively: only the registry closes it.
type Channel interface {
	// SendJSON writes v as a JSON text frame.
	SendJSON(v any) error

	// Close closes the transport with the given reason. Safe to call more
	// than once.
	Close(reason CloseReason) error

	// Alive reports whether the transport can still accept sends.
	Alive() bool
}

// Metadata holds per-connection user attributes (role, display name,
// contact identifiers, notification flag, free-form preferences).
type Metadata map[string]any

// Role returns the metadata role, or "" when absent.
func (m Metadata) Role() string {
	if m == nil {
		return ""
	}
	role, _ := m["role"].(string)
	return role
}

// HasRole reports whether the metadata role matches, case-insensitively.
func (m Metadata) HasRole(role string) bool {
	return role != "" && strings.EqualFold(m.Role(), role)
}

// Connection is one live registered connection.
type Connection struct {
	// ID is unique per registration and distinguishes a superseded entry
	// from its replacement for the same user.
	ID string

	UserID      string
	Channel     Channel
	ConnectedAt time.Time
	Metadata    Metadata

	lastSeen atomic.Int64 // unix nanos of the last successful liveness signal
}

// LastSeen returns the time of the last successful heartbeat or send.
func (c *Connection) LastSeen() time.Time {
	return time.Unix(0, c.lastSeen.Load())
}

// Touch records a successful liveness signal.
func (c *Connection) Touch() {
	c.lastSeen.Store(time.Now().UnixNano())
}

// Config holds registry timing parameters.
type Config struct {
	// HeartbeatInterval is the sleep between liveness probes.
	HeartbeatInterval time.Duration

	// PersistTimeout bounds each best-effort persistence write.
	PersistTimeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		HeartbeatInterval: 30 * time.Second,
		PersistTimeout:    3 * time.Second,
	}
}
