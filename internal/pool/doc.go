// Package pool manages the set of tool-provider sessions.
//
// # Overview
//
// The pool maps each alias to at most one live Session. It owns the full
// connect/reconnect lifecycle and the descriptor table that records every
// registered provider, connected or not.
//
// # Pool
//
// The Pool tracks descriptors and live sessions:
//
//	p := pool.New(nil, store, logger)
//
// Key operations:
//
//   - Register(ctx, desc, persist): Add or update a descriptor
//   - GetOrConnect(ctx, alias): Return the live session, connecting if needed
//   - MarkDead(alias): Evict a broken session so the next call reconnects
//   - Disconnect(ctx, alias, forget): Close, optionally removing the descriptor
//   - ListServers(): Ordered introspection of every descriptor
//
// # Connect serialization
//
// Each alias has its own connect lock. Concurrent GetOrConnect calls for
// the same not-yet-connected alias serialize on that lock, so exactly one
// subprocess is spawned; the losers find the cached session and return it.
// Connected sessions accept pipelined Invoke calls concurrently; the
// transport correlates responses by request id.
//
// # Descriptor states
//
// Disconnected -> Connecting -> Connected, with Failed on connect errors.
// Descriptors are never deleted by disconnects; Forget is explicit and is
// rejected for the default alias.
//
// # Persistence
//
// Register with persist stores the launch spec durably; LoadPersisted
// restores the descriptor table after a process restart. Reconnects use
// the exact persisted spec.
package pool
