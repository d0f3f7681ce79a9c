// ABOUTME: End-to-end pipeline tests over fake provider sessions:
// ABOUTME: routing, execution failures, the single repair, and quests.

package gateway

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/toolmux/internal/config"
	"github.com/2389/toolmux/internal/convo"
	"github.com/2389/toolmux/internal/engine"
	"github.com/2389/toolmux/internal/format"
	"github.com/2389/toolmux/internal/mcp"
	"github.com/2389/toolmux/internal/music"
	"github.com/2389/toolmux/internal/pool"
	"github.com/2389/toolmux/internal/registry"
	"github.com/2389/toolmux/internal/router"
	"github.com/2389/toolmux/internal/store"
)

// fakeProviderSession answers tools/call per canned responses and
// records every invocation.
type fakeProviderSession struct {
	tools     []*mcp.Tool
	responses map[string]string
	calls     []recordedCall
}

type recordedCall struct {
	Tool string
	Args map[string]any
}

func (f *fakeProviderSession) ListTools() []*mcp.Tool { return f.tools }

func (f *fakeProviderSession) Invoke(ctx context.Context, tool string, args map[string]any) (*mcp.Result, error) {
	f.calls = append(f.calls, recordedCall{Tool: tool, Args: args})
	text, ok := f.responses[tool]
	if !ok {
		return nil, &mcp.RemoteError{Code: -32601, Message: "unknown tool " + tool}
	}
	return &mcp.Result{Content: []mcp.ResultContent{{Type: "text", Text: text}}}, nil
}

func (f *fakeProviderSession) Alive() bool  { return true }
func (f *fakeProviderSession) Close() error { return nil }

func textTool(name string) *mcp.Tool {
	schema, _ := json.Marshal(map[string]any{"type": "object"})
	return &mcp.Tool{Name: name, InputSchema: schema}
}

// newTestGateway builds a gateway over fake sessions, one per alias.
func newTestGateway(t *testing.T, sessions map[string]*fakeProviderSession) *Gateway {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	reg := registry.New("jarvis", logger)
	connector := func(ctx context.Context, alias string, spec mcp.LaunchSpec) (pool.Session, error) {
		return sessions[alias], nil
	}
	p := pool.New(connector, st, logger)
	p.OnRefresh = reg.Refresh

	ctx := context.Background()
	for alias := range sessions {
		require.NoError(t, p.Register(ctx, pool.ServerDescriptor{
			Alias:   alias,
			Spec:    mcp.LaunchSpec{Command: "fake"},
			Default: alias == "jarvis",
		}, false))
	}

	g := &Gateway{
		config:   &config.Config{},
		store:    st,
		pool:     p,
		registry: reg,
		engine:   engine.New(p, 0, logger),
		polisher: format.New(nil, "", 0, logger),
		convo:    convo.New(convo.DefaultWindow),
		player:   music.New([]string{"midnight city"}, logger),
		logger:   logger,
	}
	g.router, err = router.NewRouter(router.DefaultRules("jarvis"), reg, g.convo, g.player, logger)
	require.NoError(t, err)
	return g
}

func defaultSessions() map[string]*fakeProviderSession {
	return map[string]*fakeProviderSession{
		"trading": {
			tools:     []*mcp.Tool{textTool("get_price"), textTool("get_ohlcv")},
			responses: map[string]string{"get_price": `{"symbol": "BTC/USD", "price": 97412}`},
		},
		"search": {
			tools:     []*mcp.Tool{textTool("web_search")},
			responses: map[string]string{"web_search": "Top result: bitcoin steady above 97k"},
		},
		"jarvis": {
			tools:     []*mcp.Tool{textTool("chat")},
			responses: map[string]string{"chat": "Hello! How can I help?"},
		},
	}
}

func TestHandlePriceCommand(t *testing.T) {
	sessions := defaultSessions()
	g := newTestGateway(t, sessions)

	reply := g.Handle(context.Background(), "u1", "c1", "/price BTC")
	assert.Contains(t, reply, "97412")

	calls := sessions["trading"].calls
	require.Len(t, calls, 1)
	assert.Equal(t, "get_price", calls[0].Tool)
	assert.Equal(t, "BTC/USD", calls[0].Args["symbol"])
}

func TestHandleChatFallback(t *testing.T) {
	sessions := defaultSessions()
	g := newTestGateway(t, sessions)

	reply := g.Handle(context.Background(), "u1", "c1", "good morning")
	assert.Equal(t, "Hello! How can I help?", reply)
	require.Len(t, sessions["jarvis"].calls, 1)
	assert.Equal(t, "good morning", sessions["jarvis"].calls[0].Args["message"])
}

func TestHandleLocalShortcutTouchesNoSession(t *testing.T) {
	sessions := defaultSessions()
	g := newTestGateway(t, sessions)

	reply := g.Handle(context.Background(), "u1", "c1", "/play midnight city")
	assert.Contains(t, reply, "midnight city")
	for alias, s := range sessions {
		assert.Empty(t, s.calls, "alias %s should not be called", alias)
	}
}

func TestHandleRepromptOnMissingSymbol(t *testing.T) {
	g := newTestGateway(t, defaultSessions())

	reply := g.Handle(context.Background(), "new-user", "c1", "/price")
	assert.Contains(t, reply, "symbol")
}

func TestHandleRepairsEmptyResultOnce(t *testing.T) {
	sessions := defaultSessions()
	sessions["trading"].responses["get_price"] = "Error: unknown symbol"
	g := newTestGateway(t, sessions)

	reply := g.Handle(context.Background(), "u1", "c1", "/price OBS")
	assert.Contains(t, reply, "bitcoin steady")
	assert.Len(t, sessions["trading"].calls, 1)
	assert.Len(t, sessions["search"].calls, 1)
}

func TestHandleRemembersTurns(t *testing.T) {
	g := newTestGateway(t, defaultSessions())

	g.Handle(context.Background(), "u1", "c1", "/price ETH")
	turns := g.convo.Recent("u1", 5)
	require.Len(t, turns, 1)
	assert.Equal(t, "/price ETH", turns[0].Input)
	assert.Equal(t, "trading.get_price", turns[0].Tool)

	// The remembered symbol fills the next bare /price.
	reply := g.Handle(context.Background(), "u1", "c1", "/price")
	assert.NotContains(t, reply, "Which symbol")
}

func TestHandleQuestList(t *testing.T) {
	g := newTestGateway(t, defaultSessions())
	ctx := context.Background()

	reply := g.Handle(ctx, "u1", "c1", "/quests")
	assert.Equal(t, "No quests yet.", reply)

	q, err := g.store.CreateQuest(ctx, "u1", "check the charts")
	require.NoError(t, err)
	require.NoError(t, g.store.CompleteQuest(ctx, q.ID))
	_, err = g.store.CreateQuest(ctx, "u1", "read the news")
	require.NoError(t, err)

	reply = g.Handle(ctx, "u1", "c1", "/quests")
	assert.Contains(t, reply, "✅ check the charts")
	assert.Contains(t, reply, "▫ read the news")
}

func TestHandleUnknownProviderToolIsUserFacing(t *testing.T) {
	sessions := defaultSessions()
	delete(sessions["trading"].responses, "get_price")
	g := newTestGateway(t, sessions)

	reply := g.Handle(context.Background(), "u1", "c1", "/price BTC")
	assert.Contains(t, reply, "trading provider")
}

func TestSummarizeCutsOnRuneBoundary(t *testing.T) {
	s := strings.Repeat("→", 100) // 300 bytes
	out := summarize(s)
	assert.True(t, utf8.ValidString(out))
	assert.LessOrEqual(t, len(out), summaryLen)
}
