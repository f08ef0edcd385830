// Package registry implements the realtime connection registry.
//
// The registry:
//   - Holds the authoritative in-memory map of live WebSocket connections,
//     at most one per user (a newer connection supersedes the older one)
//   - Runs one heartbeat goroutine per connection to probe liveness
//   - Runs a singleton reaper that tears down connections with no recent
//     liveness signal
//   - Issues best-effort persistence writes on connect and disconnect
package registry
