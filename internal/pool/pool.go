// ABOUTME: Session pool maps aliases to at most one live provider session
// ABOUTME: Owns connect/reconnect lifecycle and per-alias connect serialization

package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/2389/toolmux/internal/mcp"
)

// Pool errors.
var (
	// ErrAliasUnknown means no descriptor is registered under the alias.
	ErrAliasUnknown = errors.New("alias unknown")

	// ErrDefaultProtected means the operation would remove the default
	// provider, which the system assumes is always available.
	ErrDefaultProtected = errors.New("default provider cannot be removed")
)

// State is the connection state of a server descriptor.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateFailed       State = "failed"
)

// ServerDescriptor describes one registered tool provider. Descriptors are
// never deleted on disconnect; Forget removes them explicitly.
type ServerDescriptor struct {
	Alias   string
	Spec    mcp.LaunchSpec
	State   State
	Default bool
}

// ServerStatus is the introspection view of one descriptor.
type ServerStatus struct {
	Alias     string
	Connected bool
	Default   bool
	Spec      mcp.LaunchSpec
}

// Session is what the pool needs from a live transport session.
type Session interface {
	ListTools() []*mcp.Tool
	Invoke(ctx context.Context, tool string, args map[string]any) (*mcp.Result, error)
	Alive() bool
	Close() error
}

// Connector establishes a session for a descriptor. The default connector
// spawns the subprocess via mcp.Connect; tests substitute fakes.
type Connector func(ctx context.Context, alias string, spec mcp.LaunchSpec) (Session, error)

// SpecStore durably persists launch specs so a process restart can
// reconnect with the exact same spec.
type SpecStore interface {
	SaveServer(ctx context.Context, alias string, spec mcp.LaunchSpec, isDefault bool) error
	DeleteServer(ctx context.Context, alias string) error
	ListServers(ctx context.Context) (map[string]PersistedServer, error)
}

// PersistedServer is a launch spec as read back from the store.
type PersistedServer struct {
	Spec    mcp.LaunchSpec
	Default bool
}

// reconnectCooldown is how long a failed alias waits before the next
// connect attempt, so a persistently unhealthy provider is not hammered.
const reconnectCooldown = 5 * time.Second

// Pool owns every live session and the descriptor table.
type Pool struct {
	connect Connector
	store   SpecStore
	logger  *slog.Logger

	mu          sync.Mutex
	descriptors map[string]*ServerDescriptor
	sessions    map[string]Session
	aliasLocks  map[string]*sync.Mutex
	lastFailure map[string]time.Time

	// OnRefresh is called with the fresh tool list after every successful
	// (re)connect, before the session is visible to other callers.
	OnRefresh func(alias string, tools []*mcp.Tool)
}

// New creates a pool. store may be nil when persistence is disabled.
func New(connect Connector, store SpecStore, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	if connect == nil {
		connect = func(ctx context.Context, alias string, spec mcp.LaunchSpec) (Session, error) {
			return mcp.Connect(ctx, alias, spec, logger)
		}
	}
	return &Pool{
		connect:     connect,
		store:       store,
		logger:      logger.With("component", "pool"),
		descriptors: make(map[string]*ServerDescriptor),
		sessions:    make(map[string]Session),
		aliasLocks:  make(map[string]*sync.Mutex),
		lastFailure: make(map[string]time.Time),
	}
}

// Register adds or updates a descriptor. It never connects implicitly.
// With persist set, the launch spec is durably stored under the alias.
func (p *Pool) Register(ctx context.Context, desc ServerDescriptor, persist bool) error {
	if desc.Alias == "" {
		return fmt.Errorf("alias is required")
	}

	p.mu.Lock()
	existing, ok := p.descriptors[desc.Alias]
	if ok {
		existing.Spec = desc.Spec
		existing.Default = existing.Default || desc.Default
	} else {
		d := desc
		d.State = StateDisconnected
		p.descriptors[desc.Alias] = &d
	}
	isDefault := p.descriptors[desc.Alias].Default
	p.mu.Unlock()

	if persist && p.store != nil {
		if err := p.store.SaveServer(ctx, desc.Alias, desc.Spec, isDefault); err != nil {
			return fmt.Errorf("persist launch spec: %w", err)
		}
	}

	p.logger.Info("provider registered", "alias", desc.Alias, "persisted", persist)
	return nil
}

// LoadPersisted registers every durably stored descriptor. Called once at
// startup, before any connects.
func (p *Pool) LoadPersisted(ctx context.Context) error {
	if p.store == nil {
		return nil
	}
	servers, err := p.store.ListServers(ctx)
	if err != nil {
		return fmt.Errorf("load persisted servers: %w", err)
	}
	for alias, srv := range servers {
		if err := p.Register(ctx, ServerDescriptor{Alias: alias, Spec: srv.Spec, Default: srv.Default}, false); err != nil {
			return err
		}
	}
	return nil
}

// GetOrConnect returns the live session for alias, connecting first when
// none is cached. The per-alias lock guarantees at most one concurrent
// connect attempt per alias, so simultaneous requests never spawn
// duplicate subprocesses.
func (p *Pool) GetOrConnect(ctx context.Context, alias string) (Session, error) {
	p.mu.Lock()
	desc, ok := p.descriptors[alias]
	if !ok {
		p.mu.Unlock()
		return nil, fmt.Errorf("%w: %q", ErrAliasUnknown, alias)
	}
	lock := p.aliasLock(alias)
	p.mu.Unlock()

	lock.Lock()
	defer lock.Unlock()

	p.mu.Lock()
	if sess, ok := p.sessions[alias]; ok && sess.Alive() {
		p.mu.Unlock()
		return sess, nil
	}
	delete(p.sessions, alias)
	if failed, ok := p.lastFailure[alias]; ok && time.Since(failed) < reconnectCooldown {
		desc.State = StateFailed
		p.mu.Unlock()
		return nil, fmt.Errorf("connect %q: in cooldown after recent failure", alias)
	}
	desc.State = StateConnecting
	spec := desc.Spec
	p.mu.Unlock()

	sess, err := p.connect(ctx, alias, spec)

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		desc.State = StateFailed
		p.lastFailure[alias] = time.Now()
		p.logger.Error("provider connect failed", "alias", alias, "error", err)
		return nil, fmt.Errorf("connect %q: %w", alias, err)
	}

	p.sessions[alias] = sess
	desc.State = StateConnected
	delete(p.lastFailure, alias)
	if p.OnRefresh != nil {
		p.OnRefresh(alias, sess.ListTools())
	}
	return sess, nil
}

// MarkDead evicts the cached session and flips the descriptor to
// Disconnected so the next GetOrConnect starts fresh. The close runs off
// the caller's goroutine to avoid double-free races with in-flight calls.
func (p *Pool) MarkDead(alias string) {
	p.mu.Lock()
	sess, ok := p.sessions[alias]
	if ok {
		delete(p.sessions, alias)
	}
	if desc, exists := p.descriptors[alias]; exists {
		desc.State = StateDisconnected
	}
	p.mu.Unlock()

	if ok {
		go func() {
			if err := sess.Close(); err != nil {
				p.logger.Warn("session close failed", "alias", alias, "error", err)
			}
		}()
		p.logger.Info("session marked dead", "alias", alias)
	}
}

// Disconnect closes the alias's session. With forget set the descriptor is
// removed entirely, including its persisted launch spec. Forgetting the
// default alias is rejected.
func (p *Pool) Disconnect(ctx context.Context, alias string, forget bool) error {
	p.mu.Lock()
	desc, ok := p.descriptors[alias]
	if !ok {
		p.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrAliasUnknown, alias)
	}
	if forget && desc.Default {
		p.mu.Unlock()
		return ErrDefaultProtected
	}
	p.mu.Unlock()

	p.MarkDead(alias)

	if forget {
		p.mu.Lock()
		delete(p.descriptors, alias)
		delete(p.aliasLocks, alias)
		delete(p.lastFailure, alias)
		p.mu.Unlock()
		if p.store != nil {
			if err := p.store.DeleteServer(ctx, alias); err != nil {
				return fmt.Errorf("forget persisted spec: %w", err)
			}
		}
		p.logger.Info("provider forgotten", "alias", alias)
	}
	return nil
}

// ListServers returns all descriptors ordered by alias. Two consecutive
// calls with no intervening lifecycle change return identical output.
func (p *Pool) ListServers() []ServerStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]ServerStatus, 0, len(p.descriptors))
	for _, desc := range p.descriptors {
		_, live := p.sessions[desc.Alias]
		out = append(out, ServerStatus{
			Alias:     desc.Alias,
			Connected: live && desc.State == StateConnected,
			Default:   desc.Default,
			Spec:      desc.Spec,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Alias < out[j].Alias })
	return out
}

// DefaultAlias returns the alias flagged as default, or "".
func (p *Pool) DefaultAlias() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, desc := range p.descriptors {
		if desc.Default {
			return desc.Alias
		}
	}
	return ""
}

// aliasLock returns the connect lock for alias, creating it on first use.
// Caller must hold p.mu.
func (p *Pool) aliasLock(alias string) *sync.Mutex {
	lock, ok := p.aliasLocks[alias]
	if !ok {
		lock = &sync.Mutex{}
		p.aliasLocks[alias] = lock
	}
	return lock
}
