// ABOUTME: Pool tests: single spawn under concurrent connects, default
// ABOUTME: alias protection, dead-session eviction, reconnect cooldown.

package pool

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/toolmux/internal/mcp"
)

type stubSession struct {
	alive atomic.Bool
	tools []*mcp.Tool
}

func newStubSession() *stubSession {
	s := &stubSession{}
	s.alive.Store(true)
	return s
}

func (s *stubSession) ListTools() []*mcp.Tool { return s.tools }

func (s *stubSession) Invoke(ctx context.Context, tool string, args map[string]any) (*mcp.Result, error) {
	return &mcp.Result{Content: []mcp.ResultContent{{Type: "text", Text: "ok"}}}, nil
}

func (s *stubSession) Alive() bool  { return s.alive.Load() }
func (s *stubSession) Close() error { s.alive.Store(false); return nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func registerAlias(t *testing.T, p *Pool, alias string, isDefault bool) {
	t.Helper()
	require.NoError(t, p.Register(context.Background(), ServerDescriptor{
		Alias:   alias,
		Spec:    mcp.LaunchSpec{Command: "stub"},
		Default: isDefault,
	}, false))
}

func TestGetOrConnectSpawnsOnce(t *testing.T) {
	var spawns atomic.Int64
	connector := func(ctx context.Context, alias string, spec mcp.LaunchSpec) (Session, error) {
		spawns.Add(1)
		time.Sleep(10 * time.Millisecond) // widen the race window
		return newStubSession(), nil
	}
	p := New(connector, nil, discardLogger())
	registerAlias(t, p, "trading", false)

	var wg sync.WaitGroup
	sessions := make([]Session, 20)
	for i := range sessions {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := p.GetOrConnect(context.Background(), "trading")
			require.NoError(t, err)
			sessions[i] = s
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), spawns.Load())
	for _, s := range sessions[1:] {
		assert.Same(t, sessions[0], s)
	}
}

func TestGetOrConnectUnknownAlias(t *testing.T) {
	p := New(func(ctx context.Context, alias string, spec mcp.LaunchSpec) (Session, error) {
		return newStubSession(), nil
	}, nil, discardLogger())

	_, err := p.GetOrConnect(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrAliasUnknown)
}

func TestMarkDeadEvictsAndReconnects(t *testing.T) {
	var spawns atomic.Int64
	connector := func(ctx context.Context, alias string, spec mcp.LaunchSpec) (Session, error) {
		spawns.Add(1)
		return newStubSession(), nil
	}
	p := New(connector, nil, discardLogger())
	registerAlias(t, p, "trading", false)

	first, err := p.GetOrConnect(context.Background(), "trading")
	require.NoError(t, err)

	p.MarkDead("trading")

	second, err := p.GetOrConnect(context.Background(), "trading")
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Equal(t, int64(2), spawns.Load())
}

func TestDeadSessionReplacedOnNextGet(t *testing.T) {
	connector := func(ctx context.Context, alias string, spec mcp.LaunchSpec) (Session, error) {
		return newStubSession(), nil
	}
	p := New(connector, nil, discardLogger())
	registerAlias(t, p, "trading", false)

	first, err := p.GetOrConnect(context.Background(), "trading")
	require.NoError(t, err)

	// Simulate the subprocess dying without anyone calling MarkDead.
	first.(*stubSession).alive.Store(false)

	second, err := p.GetOrConnect(context.Background(), "trading")
	require.NoError(t, err)
	assert.NotSame(t, first, second)
}

func TestConnectFailureAppliesCooldown(t *testing.T) {
	var spawns atomic.Int64
	connector := func(ctx context.Context, alias string, spec mcp.LaunchSpec) (Session, error) {
		spawns.Add(1)
		return nil, &mcp.ConnectError{Kind: mcp.ConnectSpawn, Err: errors.New("no such binary")}
	}
	p := New(connector, nil, discardLogger())
	registerAlias(t, p, "trading", false)

	_, err := p.GetOrConnect(context.Background(), "trading")
	require.Error(t, err)

	// Within the cooldown the pool refuses to respawn.
	_, err = p.GetOrConnect(context.Background(), "trading")
	require.Error(t, err)
	assert.Equal(t, int64(1), spawns.Load())
}

func TestForgettingDefaultAliasRejected(t *testing.T) {
	p := New(func(ctx context.Context, alias string, spec mcp.LaunchSpec) (Session, error) {
		return newStubSession(), nil
	}, nil, discardLogger())
	registerAlias(t, p, "jarvis", true)

	err := p.Disconnect(context.Background(), "jarvis", true)
	assert.ErrorIs(t, err, ErrDefaultProtected)

	// Plain disconnect (no forget) is fine.
	require.NoError(t, p.Disconnect(context.Background(), "jarvis", false))
}

func TestOnRefreshFiresWithTools(t *testing.T) {
	tools := []*mcp.Tool{{Name: "get_price"}}
	connector := func(ctx context.Context, alias string, spec mcp.LaunchSpec) (Session, error) {
		s := newStubSession()
		s.tools = tools
		return s, nil
	}
	p := New(connector, nil, discardLogger())
	registerAlias(t, p, "trading", false)

	var gotAlias string
	var gotTools []*mcp.Tool
	p.OnRefresh = func(alias string, ts []*mcp.Tool) {
		gotAlias, gotTools = alias, ts
	}

	_, err := p.GetOrConnect(context.Background(), "trading")
	require.NoError(t, err)
	assert.Equal(t, "trading", gotAlias)
	assert.Equal(t, tools, gotTools)
}

func TestListServersSorted(t *testing.T) {
	p := New(func(ctx context.Context, alias string, spec mcp.LaunchSpec) (Session, error) {
		return newStubSession(), nil
	}, nil, discardLogger())
	registerAlias(t, p, "zeta", false)
	registerAlias(t, p, "alpha", true)
	registerAlias(t, p, "mid", false)

	servers := p.ListServers()
	require.Len(t, servers, 3)
	assert.Equal(t, "alpha", servers[0].Alias)
	assert.Equal(t, "mid", servers[1].Alias)
	assert.Equal(t, "zeta", servers[2].Alias)
	assert.Equal(t, "alpha", p.DefaultAlias())

	// Stable across repeated calls with no intervening mutation.
	assert.Equal(t, servers, p.ListServers())
}

type memSpecStore struct {
	mu      sync.Mutex
	servers map[string]PersistedServer
}

func newMemSpecStore() *memSpecStore {
	return &memSpecStore{servers: make(map[string]PersistedServer)}
}

func (m *memSpecStore) SaveServer(ctx context.Context, alias string, spec mcp.LaunchSpec, isDefault bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.servers[alias] = PersistedServer{Spec: spec, Default: isDefault}
	return nil
}

func (m *memSpecStore) DeleteServer(ctx context.Context, alias string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.servers, alias)
	return nil
}

func (m *memSpecStore) ListServers(ctx context.Context) (map[string]PersistedServer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]PersistedServer, len(m.servers))
	for k, v := range m.servers {
		out[k] = v
	}
	return out, nil
}

func TestPersistedSpecSurvivesRestart(t *testing.T) {
	st := newMemSpecStore()
	spec := mcp.LaunchSpec{
		Command: "provider-bin",
		Args:    []string{"--mode", "live"},
		WorkDir: "/srv/provider",
		Env:     map[string]string{"API_KEY": "k"},
	}

	first := New(func(ctx context.Context, alias string, s mcp.LaunchSpec) (Session, error) {
		return newStubSession(), nil
	}, st, discardLogger())
	require.NoError(t, first.Register(context.Background(), ServerDescriptor{
		Alias: "trading", Spec: spec, Default: true,
	}, true))

	// A fresh pool over the same store stands in for a process restart.
	var got mcp.LaunchSpec
	second := New(func(ctx context.Context, alias string, s mcp.LaunchSpec) (Session, error) {
		got = s
		return newStubSession(), nil
	}, st, discardLogger())
	require.NoError(t, second.LoadPersisted(context.Background()))

	_, err := second.GetOrConnect(context.Background(), "trading")
	require.NoError(t, err)
	assert.Equal(t, spec, got)
	assert.Equal(t, "trading", second.DefaultAlias())
}
